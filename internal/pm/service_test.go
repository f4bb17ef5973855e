package pm

import (
	"context"
	"errors"
	"testing"
)

func newProject(t *testing.T, svc *InMemory, owner string) Project {
	t.Helper()
	p, err := svc.CreateProject(context.Background(), NewProject{Name: "Apollo", OwnerID: owner})
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	return p
}

func TestCreateProjectDefaultsAndOwnerMembership(t *testing.T) {
	svc := NewInMemory()
	p := newProject(t, svc, "u-owner")
	if p.Status != ProjectPending {
		t.Fatalf("status = %s, want %s", p.Status, ProjectPending)
	}
	ok, err := svc.IsMember(context.Background(), p.ID, "u-owner")
	if err != nil || !ok {
		t.Fatalf("IsMember(owner) = %v, %v; want true", ok, err)
	}
	members, err := svc.ListMembers(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("ListMembers: %v", err)
	}
	if len(members) != 1 || members[0].Position != "owner" {
		t.Fatalf("members = %+v, want single owner row", members)
	}
}

func TestCreateProjectValidation(t *testing.T) {
	svc := NewInMemory()
	ctx := context.Background()
	if _, err := svc.CreateProject(ctx, NewProject{Name: "  ", OwnerID: "u1"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("blank name: err = %v, want ErrInvalidInput", err)
	}
	if _, err := svc.CreateProject(ctx, NewProject{Name: "X", OwnerID: "u1", Status: "archived"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("bad status: err = %v, want ErrInvalidInput", err)
	}
}

func TestUpdateProjectPartial(t *testing.T) {
	svc := NewInMemory()
	p := newProject(t, svc, "u1")
	name := "Apollo II"
	status := ProjectActive
	got, err := svc.UpdateProject(context.Background(), p.ID, ProjectUpdate{Name: &name, Status: &status})
	if err != nil {
		t.Fatalf("UpdateProject: %v", err)
	}
	if got.Name != "Apollo II" || got.Status != ProjectActive {
		t.Fatalf("got %+v", got)
	}
	if got.Description != p.Description {
		t.Fatalf("description changed without being set")
	}
}

func TestDeleteProjectCascades(t *testing.T) {
	svc := NewInMemory()
	ctx := context.Background()
	p := newProject(t, svc, "u1")
	task, err := svc.CreateTask(ctx, NewTask{ProjectID: p.ID, Title: "t", CreatedBy: "u1"})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if _, err := svc.AddComment(ctx, NewComment{TaskID: task.ID, AuthorID: "u1", Body: "hi"}); err != nil {
		t.Fatalf("AddComment: %v", err)
	}
	if err := svc.DeleteProject(ctx, p.ID); err != nil {
		t.Fatalf("DeleteProject: %v", err)
	}
	if _, err := svc.GetTask(ctx, task.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("task survived project deletion: %v", err)
	}
	if _, err := svc.ListMembers(ctx, p.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("ListMembers after delete: %v", err)
	}
}

func TestListProjectsByMemberAndStatus(t *testing.T) {
	svc := NewInMemory()
	ctx := context.Background()
	p1 := newProject(t, svc, "u1")
	newProject(t, svc, "u2")
	active := ProjectActive
	if _, err := svc.UpdateProject(ctx, p1.ID, ProjectUpdate{Status: &active}); err != nil {
		t.Fatalf("UpdateProject: %v", err)
	}

	got, err := svc.ListProjects(ctx, ProjectFilter{MemberID: "u1"})
	if err != nil {
		t.Fatalf("ListProjects: %v", err)
	}
	if len(got) != 1 || got[0].ID != p1.ID {
		t.Fatalf("member filter = %+v", got)
	}
	got, err = svc.ListProjects(ctx, ProjectFilter{Status: ProjectActive})
	if err != nil {
		t.Fatalf("ListProjects: %v", err)
	}
	if len(got) != 1 || got[0].ID != p1.ID {
		t.Fatalf("status filter = %+v", got)
	}
}

func TestAddMemberDuplicate(t *testing.T) {
	svc := NewInMemory()
	ctx := context.Background()
	p := newProject(t, svc, "u1")
	if _, err := svc.AddMember(ctx, Member{ProjectID: p.ID, UserID: "u2"}); err != nil {
		t.Fatalf("AddMember: %v", err)
	}
	if _, err := svc.AddMember(ctx, Member{ProjectID: p.ID, UserID: "u2"}); !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate member: err = %v, want ErrConflict", err)
	}
	if err := svc.RemoveMember(ctx, p.ID, "u2"); err != nil {
		t.Fatalf("RemoveMember: %v", err)
	}
	if err := svc.RemoveMember(ctx, p.ID, "u2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("remove twice: err = %v, want ErrNotFound", err)
	}
}

func TestCreateTaskDefaults(t *testing.T) {
	svc := NewInMemory()
	p := newProject(t, svc, "u1")
	task, err := svc.CreateTask(context.Background(), NewTask{ProjectID: p.ID, Title: "fix bug", CreatedBy: "u1"})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if task.Status != TaskTodo || task.Priority != PriorityMedium {
		t.Fatalf("defaults = %s/%s", task.Status, task.Priority)
	}
}

func TestCreateTaskUnknownProject(t *testing.T) {
	svc := NewInMemory()
	_, err := svc.CreateTask(context.Background(), NewTask{ProjectID: "nope", Title: "t", CreatedBy: "u1"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestAssignTaskRequiresMembership(t *testing.T) {
	svc := NewInMemory()
	ctx := context.Background()
	p := newProject(t, svc, "u1")
	task, err := svc.CreateTask(ctx, NewTask{ProjectID: p.ID, Title: "t", CreatedBy: "u1"})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if _, err := svc.AssignTask(ctx, task.ID, "outsider"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("assign outsider: err = %v, want ErrInvalidInput", err)
	}
	if _, err := svc.AddMember(ctx, Member{ProjectID: p.ID, UserID: "u2"}); err != nil {
		t.Fatalf("AddMember: %v", err)
	}
	got, err := svc.AssignTask(ctx, task.ID, "u2")
	if err != nil {
		t.Fatalf("AssignTask: %v", err)
	}
	if got.AssigneeID != "u2" {
		t.Fatalf("assignee = %s", got.AssigneeID)
	}
}

func TestMoveTaskStatus(t *testing.T) {
	svc := NewInMemory()
	ctx := context.Background()
	p := newProject(t, svc, "u1")
	task, _ := svc.CreateTask(ctx, NewTask{ProjectID: p.ID, Title: "t", CreatedBy: "u1"})
	got, err := svc.MoveTaskStatus(ctx, task.ID, TaskInProgress)
	if err != nil {
		t.Fatalf("MoveTaskStatus: %v", err)
	}
	if got.Status != TaskInProgress {
		t.Fatalf("status = %s", got.Status)
	}
	if _, err := svc.MoveTaskStatus(ctx, task.ID, "blocked"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("bad status: err = %v, want ErrInvalidInput", err)
	}
}

func TestListTasksFilters(t *testing.T) {
	svc := NewInMemory()
	ctx := context.Background()
	p := newProject(t, svc, "u1")
	t1, _ := svc.CreateTask(ctx, NewTask{ProjectID: p.ID, Title: "a", CreatedBy: "u1"})
	svc.CreateTask(ctx, NewTask{ProjectID: p.ID, Title: "b", CreatedBy: "u1"})
	if _, err := svc.MoveTaskStatus(ctx, t1.ID, TaskReview); err != nil {
		t.Fatalf("MoveTaskStatus: %v", err)
	}
	got, err := svc.ListTasks(ctx, TaskFilter{ProjectID: p.ID, Status: TaskReview})
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if len(got) != 1 || got[0].ID != t1.ID {
		t.Fatalf("filtered = %+v", got)
	}
	got, err = svc.ListTasks(ctx, TaskFilter{ProjectID: p.ID, Limit: 1})
	if err != nil || len(got) != 1 {
		t.Fatalf("limit = %+v, %v", got, err)
	}
}

func TestCommentsOrderedAndValidated(t *testing.T) {
	svc := NewInMemory()
	ctx := context.Background()
	p := newProject(t, svc, "u1")
	task, _ := svc.CreateTask(ctx, NewTask{ProjectID: p.ID, Title: "t", CreatedBy: "u1"})
	if _, err := svc.AddComment(ctx, NewComment{TaskID: task.ID, AuthorID: "u1", Body: "  "}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("blank body: err = %v, want ErrInvalidInput", err)
	}
	first, _ := svc.AddComment(ctx, NewComment{TaskID: task.ID, AuthorID: "u1", Body: "first"})
	second, _ := svc.AddComment(ctx, NewComment{TaskID: task.ID, AuthorID: "u2", Body: "second"})
	got, err := svc.ListComments(ctx, task.ID)
	if err != nil {
		t.Fatalf("ListComments: %v", err)
	}
	if len(got) != 2 || got[0].ID != first.ID || got[1].ID != second.ID {
		t.Fatalf("comments = %+v", got)
	}
}

func TestNotificationsLifecycle(t *testing.T) {
	svc := NewInMemory()
	ctx := context.Background()
	n1, err := svc.CreateNotification(ctx, Notification{UserID: "u1", Type: "task_created", Message: "one"})
	if err != nil {
		t.Fatalf("CreateNotification: %v", err)
	}
	svc.CreateNotification(ctx, Notification{UserID: "u1", Type: "task_created", Message: "two"})
	svc.CreateNotification(ctx, Notification{UserID: "u2", Type: "task_created", Message: "other"})

	got, err := svc.ListNotifications(ctx, "u1", true, 0)
	if err != nil {
		t.Fatalf("ListNotifications: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("unread for u1 = %d, want 2", len(got))
	}
	// Newest first.
	if got[0].Message != "two" {
		t.Fatalf("order = %s first", got[0].Message)
	}

	if err := svc.MarkNotificationRead(ctx, "u1", n1.ID); err != nil {
		t.Fatalf("MarkNotificationRead: %v", err)
	}
	got, _ = svc.ListNotifications(ctx, "u1", true, 0)
	if len(got) != 1 {
		t.Fatalf("unread after mark = %d, want 1", len(got))
	}

	if err := svc.MarkNotificationRead(ctx, "u2", n1.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("cross-user mark: err = %v, want ErrNotFound", err)
	}

	if err := svc.MarkAllNotificationsRead(ctx, "u1"); err != nil {
		t.Fatalf("MarkAllNotificationsRead: %v", err)
	}
	got, _ = svc.ListNotifications(ctx, "u1", true, 0)
	if len(got) != 0 {
		t.Fatalf("unread after mark-all = %d, want 0", len(got))
	}
}
