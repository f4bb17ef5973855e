package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"taskforge.org/internal/ids"
	"taskforge.org/internal/pm"
)

// Store implements pm.Service on Postgres.
type Store struct {
	db *sql.DB
}

var _ pm.Service = (*Store)(nil)

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewStore wraps an existing connection. Used by tests.
func NewStore(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

const projectCols = `id, name, description, status, owner_id, created_at, updated_at`

func scanProject(row interface{ Scan(...any) error }) (pm.Project, error) {
	var p pm.Project
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Status, &p.OwnerID, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return pm.Project{}, pm.ErrNotFound
	}
	if err != nil {
		return pm.Project{}, err
	}
	return p, nil
}

func (s *Store) CreateProject(ctx context.Context, np pm.NewProject) (pm.Project, error) {
	name := strings.TrimSpace(np.Name)
	if name == "" {
		return pm.Project{}, fmt.Errorf("%w: project name required", pm.ErrInvalidInput)
	}
	if np.OwnerID == "" {
		return pm.Project{}, fmt.Errorf("%w: owner required", pm.ErrInvalidInput)
	}
	status := np.Status
	if status == "" {
		status = pm.ProjectPending
	}
	if !pm.ValidProjectStatus(status) {
		return pm.Project{}, fmt.Errorf("%w: unknown project status %q", pm.ErrInvalidInput, status)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return pm.Project{}, err
	}
	defer func() { _ = tx.Rollback() }()

	p := pm.Project{
		ID:          ids.New(),
		Name:        name,
		Description: strings.TrimSpace(np.Description),
		Status:      status,
		OwnerID:     np.OwnerID,
	}
	err = tx.QueryRowContext(ctx, `
		insert into projects(id, name, description, status, owner_id)
		values ($1,$2,$3,$4,$5)
		returning created_at, updated_at
	`, p.ID, p.Name, p.Description, p.Status, p.OwnerID).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return pm.Project{}, err
	}
	if _, err := tx.ExecContext(ctx, `
		insert into project_members(project_id, user_id, position)
		values ($1,$2,'owner')
	`, p.ID, p.OwnerID); err != nil {
		return pm.Project{}, err
	}
	if err := tx.Commit(); err != nil {
		return pm.Project{}, err
	}
	return p, nil
}

func (s *Store) GetProject(ctx context.Context, id string) (pm.Project, error) {
	row := s.db.QueryRowContext(ctx, `select `+projectCols+` from projects where id=$1`, id)
	return scanProject(row)
}

func (s *Store) ListProjects(ctx context.Context, f pm.ProjectFilter) ([]pm.Project, error) {
	if f.Status != "" && !pm.ValidProjectStatus(f.Status) {
		return nil, fmt.Errorf("%w: unknown project status %q", pm.ErrInvalidInput, f.Status)
	}
	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	q := `select ` + projectCols + ` from projects where true`
	args := []any{}
	if f.Status != "" {
		args = append(args, f.Status)
		q += fmt.Sprintf(` and status=$%d`, len(args))
	}
	if f.MemberID != "" {
		args = append(args, f.MemberID)
		q += fmt.Sprintf(` and id in (select project_id from project_members where user_id=$%d)`, len(args))
	}
	args = append(args, limit, f.Offset)
	q += fmt.Sprintf(` order by id limit $%d offset $%d`, len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []pm.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) UpdateProject(ctx context.Context, id string, upd pm.ProjectUpdate) (pm.Project, error) {
	set := []string{}
	args := []any{}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return pm.Project{}, fmt.Errorf("%w: project name required", pm.ErrInvalidInput)
		}
		args = append(args, name)
		set = append(set, fmt.Sprintf("name=$%d", len(args)))
	}
	if upd.Description != nil {
		args = append(args, strings.TrimSpace(*upd.Description))
		set = append(set, fmt.Sprintf("description=$%d", len(args)))
	}
	if upd.Status != nil {
		if !pm.ValidProjectStatus(*upd.Status) {
			return pm.Project{}, fmt.Errorf("%w: unknown project status %q", pm.ErrInvalidInput, *upd.Status)
		}
		args = append(args, *upd.Status)
		set = append(set, fmt.Sprintf("status=$%d", len(args)))
	}
	if len(set) == 0 {
		return s.GetProject(ctx, id)
	}
	args = append(args, id)
	q := fmt.Sprintf(`update projects set %s, updated_at=now() where id=$%d returning `+projectCols,
		strings.Join(set, ", "), len(args))
	return scanProject(s.db.QueryRowContext(ctx, q, args...))
}

func (s *Store) DeleteProject(ctx context.Context, id string) error {
	// Members, tasks and comments cascade via foreign keys.
	res, err := s.db.ExecContext(ctx, `delete from projects where id=$1`, id)
	if err != nil {
		return err
	}
	return requireRow(res, fmt.Errorf("%w: project %s", pm.ErrNotFound, id))
}

func (s *Store) AddMember(ctx context.Context, m pm.Member) (pm.Member, error) {
	if m.ProjectID == "" || m.UserID == "" {
		return pm.Member{}, fmt.Errorf("%w: project and user required", pm.ErrInvalidInput)
	}
	if _, err := s.GetProject(ctx, m.ProjectID); err != nil {
		return pm.Member{}, err
	}
	err := s.db.QueryRowContext(ctx, `
		insert into project_members(project_id, user_id, position)
		values ($1,$2,$3)
		on conflict (project_id, user_id) do nothing
		returning joined_at
	`, m.ProjectID, m.UserID, m.Position).Scan(&m.JoinedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return pm.Member{}, fmt.Errorf("%w: user %s already a member", pm.ErrConflict, m.UserID)
	}
	if err != nil {
		return pm.Member{}, err
	}
	return m, nil
}

func (s *Store) RemoveMember(ctx context.Context, projectID, userID string) error {
	res, err := s.db.ExecContext(ctx, `
		delete from project_members where project_id=$1 and user_id=$2
	`, projectID, userID)
	if err != nil {
		return err
	}
	return requireRow(res, fmt.Errorf("%w: member %s", pm.ErrNotFound, userID))
}

func (s *Store) ListMembers(ctx context.Context, projectID string) ([]pm.Member, error) {
	if _, err := s.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		select project_id, user_id, position, joined_at
		from project_members where project_id=$1 order by user_id
	`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []pm.Member{}
	for rows.Next() {
		var m pm.Member
		if err := rows.Scan(&m.ProjectID, &m.UserID, &m.Position, &m.JoinedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) IsMember(ctx context.Context, projectID, userID string) (bool, error) {
	var ok bool
	err := s.db.QueryRowContext(ctx, `
		select exists(select 1 from project_members where project_id=$1 and user_id=$2)
	`, projectID, userID).Scan(&ok)
	return ok, err
}

const taskCols = `id, project_id, title, description, status, priority, assignee_id, created_by, due_date, created_at, updated_at`

func scanTask(row interface{ Scan(...any) error }) (pm.Task, error) {
	var t pm.Task
	var assignee sql.NullString
	var due sql.NullTime
	err := row.Scan(&t.ID, &t.ProjectID, &t.Title, &t.Description, &t.Status, &t.Priority,
		&assignee, &t.CreatedBy, &due, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return pm.Task{}, pm.ErrNotFound
	}
	if err != nil {
		return pm.Task{}, err
	}
	if assignee.Valid {
		t.AssigneeID = assignee.String
	}
	if due.Valid {
		d := due.Time
		t.DueDate = &d
	}
	return t, nil
}

func (s *Store) CreateTask(ctx context.Context, nt pm.NewTask) (pm.Task, error) {
	title := strings.TrimSpace(nt.Title)
	if title == "" {
		return pm.Task{}, fmt.Errorf("%w: task title required", pm.ErrInvalidInput)
	}
	if nt.CreatedBy == "" {
		return pm.Task{}, fmt.Errorf("%w: creator required", pm.ErrInvalidInput)
	}
	priority := nt.Priority
	if priority == "" {
		priority = pm.PriorityMedium
	}
	if !pm.ValidTaskPriority(priority) {
		return pm.Task{}, fmt.Errorf("%w: unknown priority %q", pm.ErrInvalidInput, priority)
	}
	if _, err := s.GetProject(ctx, nt.ProjectID); err != nil {
		return pm.Task{}, err
	}

	t := pm.Task{
		ID:          ids.New(),
		ProjectID:   nt.ProjectID,
		Title:       title,
		Description: strings.TrimSpace(nt.Description),
		Status:      pm.TaskTodo,
		Priority:    priority,
		AssigneeID:  nt.AssigneeID,
		CreatedBy:   nt.CreatedBy,
		DueDate:     nt.DueDate,
	}
	err := s.db.QueryRowContext(ctx, `
		insert into tasks(id, project_id, title, description, status, priority, assignee_id, created_by, due_date)
		values ($1,$2,$3,$4,$5,$6,nullif($7,''),$8,$9)
		returning created_at, updated_at
	`, t.ID, t.ProjectID, t.Title, t.Description, t.Status, t.Priority, t.AssigneeID, t.CreatedBy, t.DueDate).
		Scan(&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return pm.Task{}, err
	}
	return t, nil
}

func (s *Store) GetTask(ctx context.Context, id string) (pm.Task, error) {
	row := s.db.QueryRowContext(ctx, `select `+taskCols+` from tasks where id=$1`, id)
	return scanTask(row)
}

func (s *Store) ListTasks(ctx context.Context, f pm.TaskFilter) ([]pm.Task, error) {
	if f.Status != "" && !pm.ValidTaskStatus(f.Status) {
		return nil, fmt.Errorf("%w: unknown task status %q", pm.ErrInvalidInput, f.Status)
	}
	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	q := `select ` + taskCols + ` from tasks where true`
	args := []any{}
	if f.ProjectID != "" {
		args = append(args, f.ProjectID)
		q += fmt.Sprintf(` and project_id=$%d`, len(args))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		q += fmt.Sprintf(` and status=$%d`, len(args))
	}
	if f.AssigneeID != "" {
		args = append(args, f.AssigneeID)
		q += fmt.Sprintf(` and assignee_id=$%d`, len(args))
	}
	args = append(args, limit, f.Offset)
	q += fmt.Sprintf(` order by id limit $%d offset $%d`, len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []pm.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) UpdateTask(ctx context.Context, id string, upd pm.TaskUpdate) (pm.Task, error) {
	set := []string{}
	args := []any{}
	if upd.Title != nil {
		title := strings.TrimSpace(*upd.Title)
		if title == "" {
			return pm.Task{}, fmt.Errorf("%w: task title required", pm.ErrInvalidInput)
		}
		args = append(args, title)
		set = append(set, fmt.Sprintf("title=$%d", len(args)))
	}
	if upd.Description != nil {
		args = append(args, strings.TrimSpace(*upd.Description))
		set = append(set, fmt.Sprintf("description=$%d", len(args)))
	}
	if upd.Priority != nil {
		if !pm.ValidTaskPriority(*upd.Priority) {
			return pm.Task{}, fmt.Errorf("%w: unknown priority %q", pm.ErrInvalidInput, *upd.Priority)
		}
		args = append(args, *upd.Priority)
		set = append(set, fmt.Sprintf("priority=$%d", len(args)))
	}
	if upd.DueDate != nil {
		args = append(args, *upd.DueDate)
		set = append(set, fmt.Sprintf("due_date=$%d", len(args)))
	}
	if len(set) == 0 {
		return s.GetTask(ctx, id)
	}
	args = append(args, id)
	q := fmt.Sprintf(`update tasks set %s, updated_at=now() where id=$%d returning `+taskCols,
		strings.Join(set, ", "), len(args))
	return scanTask(s.db.QueryRowContext(ctx, q, args...))
}

func (s *Store) DeleteTask(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from tasks where id=$1`, id)
	if err != nil {
		return err
	}
	return requireRow(res, fmt.Errorf("%w: task %s", pm.ErrNotFound, id))
}

func (s *Store) AssignTask(ctx context.Context, id, assigneeID string) (pm.Task, error) {
	if assigneeID == "" {
		return pm.Task{}, fmt.Errorf("%w: assignee required", pm.ErrInvalidInput)
	}
	t, err := s.GetTask(ctx, id)
	if err != nil {
		return pm.Task{}, err
	}
	ok, err := s.IsMember(ctx, t.ProjectID, assigneeID)
	if err != nil {
		return pm.Task{}, err
	}
	if !ok {
		return pm.Task{}, fmt.Errorf("%w: assignee %s is not a project member", pm.ErrInvalidInput, assigneeID)
	}
	row := s.db.QueryRowContext(ctx, `
		update tasks set assignee_id=$2, updated_at=now() where id=$1 returning `+taskCols, id, assigneeID)
	return scanTask(row)
}

func (s *Store) MoveTaskStatus(ctx context.Context, id, status string) (pm.Task, error) {
	if !pm.ValidTaskStatus(status) {
		return pm.Task{}, fmt.Errorf("%w: unknown task status %q", pm.ErrInvalidInput, status)
	}
	row := s.db.QueryRowContext(ctx, `
		update tasks set status=$2, updated_at=now() where id=$1 returning `+taskCols, id, status)
	return scanTask(row)
}

func (s *Store) AddComment(ctx context.Context, nc pm.NewComment) (pm.Comment, error) {
	body := strings.TrimSpace(nc.Body)
	if body == "" {
		return pm.Comment{}, fmt.Errorf("%w: comment body required", pm.ErrInvalidInput)
	}
	if nc.AuthorID == "" {
		return pm.Comment{}, fmt.Errorf("%w: author required", pm.ErrInvalidInput)
	}
	if _, err := s.GetTask(ctx, nc.TaskID); err != nil {
		return pm.Comment{}, err
	}
	c := pm.Comment{ID: ids.New(), TaskID: nc.TaskID, AuthorID: nc.AuthorID, Body: body}
	err := s.db.QueryRowContext(ctx, `
		insert into comments(id, task_id, author_id, body)
		values ($1,$2,$3,$4) returning created_at
	`, c.ID, c.TaskID, c.AuthorID, c.Body).Scan(&c.CreatedAt)
	if err != nil {
		return pm.Comment{}, err
	}
	return c, nil
}

func (s *Store) ListComments(ctx context.Context, taskID string) ([]pm.Comment, error) {
	if _, err := s.GetTask(ctx, taskID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		select id, task_id, author_id, body, created_at
		from comments where task_id=$1 order by id
	`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []pm.Comment{}
	for rows.Next() {
		var c pm.Comment
		if err := rows.Scan(&c.ID, &c.TaskID, &c.AuthorID, &c.Body, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) CreateNotification(ctx context.Context, n pm.Notification) (pm.Notification, error) {
	if n.UserID == "" || n.Type == "" {
		return pm.Notification{}, fmt.Errorf("%w: user and type required", pm.ErrInvalidInput)
	}
	n.ID = ids.New()
	n.Read = false
	err := s.db.QueryRowContext(ctx, `
		insert into notifications(id, user_id, type, message, project_id, task_id)
		values ($1,$2,$3,$4,nullif($5,''),nullif($6,'')) returning created_at
	`, n.ID, n.UserID, n.Type, n.Message, n.ProjectID, n.TaskID).Scan(&n.CreatedAt)
	if err != nil {
		return pm.Notification{}, err
	}
	return n, nil
}

func (s *Store) ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]pm.Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	q := `
		select id, user_id, type, message, coalesce(project_id,''), coalesce(task_id,''), read, created_at
		from notifications where user_id=$1`
	if unreadOnly {
		q += ` and not read`
	}
	q += ` order by id desc limit $2`

	rows, err := s.db.QueryContext(ctx, q, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []pm.Notification{}
	for rows.Next() {
		var n pm.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Message, &n.ProjectID, &n.TaskID, &n.Read, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *Store) MarkNotificationRead(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx, `
		update notifications set read=true where id=$1 and user_id=$2
	`, id, userID)
	if err != nil {
		return err
	}
	return requireRow(res, fmt.Errorf("%w: notification %s", pm.ErrNotFound, id))
}

func (s *Store) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `
		update notifications set read=true where user_id=$1 and not read
	`, userID)
	return err
}

func requireRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
