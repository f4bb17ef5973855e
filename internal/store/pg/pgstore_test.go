package pg

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"taskforge.org/internal/pm"
)

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewStore(db), mock
}

func TestCreateProjectInsertsOwnerMembership(t *testing.T) {
	s, mock := newMock(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`insert into projects`).
		WithArgs(sqlmock.AnyArg(), "Apollo", "", pm.ProjectPending, "u1").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	mock.ExpectExec(`insert into project_members`).
		WithArgs(sqlmock.AnyArg(), "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	p, err := s.CreateProject(context.Background(), pm.NewProject{Name: " Apollo ", OwnerID: "u1"})
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	if p.Name != "Apollo" || p.Status != pm.ProjectPending {
		t.Fatalf("project = %+v", p)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetProjectNotFound(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery(`select .* from projects where id=\$1`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "description", "status", "owner_id", "created_at", "updated_at"}))

	_, err := s.GetProject(context.Background(), "missing")
	if !errors.Is(err, pm.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestAddMemberConflict(t *testing.T) {
	s, mock := newMock(t)
	now := time.Now()
	project := sqlmock.NewRows([]string{"id", "name", "description", "status", "owner_id", "created_at", "updated_at"}).
		AddRow("p1", "Apollo", "", pm.ProjectActive, "u1", now, now)
	mock.ExpectQuery(`select .* from projects where id=\$1`).WithArgs("p1").WillReturnRows(project)
	// on conflict do nothing returns no row when the member already exists.
	mock.ExpectQuery(`insert into project_members`).
		WithArgs("p1", "u2", "").
		WillReturnRows(sqlmock.NewRows([]string{"joined_at"}))

	_, err := s.AddMember(context.Background(), pm.Member{ProjectID: "p1", UserID: "u2"})
	if !errors.Is(err, pm.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
}

func TestDeleteTaskNotFound(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectExec(`delete from tasks where id=\$1`).
		WithArgs("t1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.DeleteTask(context.Background(), "t1")
	if !errors.Is(err, pm.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestMoveTaskStatusRejectsUnknown(t *testing.T) {
	s, _ := newMock(t)
	_, err := s.MoveTaskStatus(context.Background(), "t1", "parked")
	if !errors.Is(err, pm.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestListNotificationsUnreadOnly(t *testing.T) {
	s, mock := newMock(t)
	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "user_id", "type", "message", "project_id", "task_id", "read", "created_at"}).
		AddRow("n2", "u1", "task_created", "two", "", "t1", false, now).
		AddRow("n1", "u1", "task_created", "one", "", "t1", false, now)
	mock.ExpectQuery(`from notifications where user_id=\$1 and not read`).
		WithArgs("u1", 50).
		WillReturnRows(rows)

	got, err := s.ListNotifications(context.Background(), "u1", true, 0)
	if err != nil {
		t.Fatalf("ListNotifications: %v", err)
	}
	if len(got) != 2 || got[0].ID != "n2" {
		t.Fatalf("got = %+v", got)
	}
}

func TestMarkNotificationReadScopedToUser(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectExec(`update notifications set read=true where id=\$1 and user_id=\$2`).
		WithArgs("n1", "u2").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.MarkNotificationRead(context.Background(), "u2", "n1")
	if !errors.Is(err, pm.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
