package pm

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"taskforge.org/internal/ids"
)

// Service is the project-management storage contract. Implementations are
// pure persistence: validation of referential rules happens here, event
// publication happens in the callers.
type Service interface {
	CreateProject(ctx context.Context, p NewProject) (Project, error)
	GetProject(ctx context.Context, id string) (Project, error)
	ListProjects(ctx context.Context, f ProjectFilter) ([]Project, error)
	UpdateProject(ctx context.Context, id string, upd ProjectUpdate) (Project, error)
	DeleteProject(ctx context.Context, id string) error

	AddMember(ctx context.Context, m Member) (Member, error)
	RemoveMember(ctx context.Context, projectID, userID string) error
	ListMembers(ctx context.Context, projectID string) ([]Member, error)
	IsMember(ctx context.Context, projectID, userID string) (bool, error)

	CreateTask(ctx context.Context, t NewTask) (Task, error)
	GetTask(ctx context.Context, id string) (Task, error)
	ListTasks(ctx context.Context, f TaskFilter) ([]Task, error)
	UpdateTask(ctx context.Context, id string, upd TaskUpdate) (Task, error)
	DeleteTask(ctx context.Context, id string) error
	AssignTask(ctx context.Context, id, assigneeID string) (Task, error)
	MoveTaskStatus(ctx context.Context, id, status string) (Task, error)

	AddComment(ctx context.Context, c NewComment) (Comment, error)
	ListComments(ctx context.Context, taskID string) ([]Comment, error)

	CreateNotification(ctx context.Context, n Notification) (Notification, error)
	ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]Notification, error)
	MarkNotificationRead(ctx context.Context, userID, id string) error
	MarkAllNotificationsRead(ctx context.Context, userID string) error
}

type memberKey struct{ projectID, userID string }

// InMemory is a map-backed Service used by tests and by the API when no
// database is configured.
type InMemory struct {
	mu            sync.RWMutex
	projects      map[string]Project
	members       map[memberKey]Member
	tasks         map[string]Task
	comments      map[string]Comment
	notifications map[string]Notification
	now           func() time.Time
}

// NewInMemory returns an empty in-memory service.
func NewInMemory() *InMemory {
	return &InMemory{
		projects:      make(map[string]Project),
		members:       make(map[memberKey]Member),
		tasks:         make(map[string]Task),
		comments:      make(map[string]Comment),
		notifications: make(map[string]Notification),
		now:           time.Now,
	}
}

func (m *InMemory) CreateProject(_ context.Context, p NewProject) (Project, error) {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return Project{}, fmt.Errorf("%w: project name required", ErrInvalidInput)
	}
	if p.OwnerID == "" {
		return Project{}, fmt.Errorf("%w: owner required", ErrInvalidInput)
	}
	status := p.Status
	if status == "" {
		status = ProjectPending
	}
	if !ValidProjectStatus(status) {
		return Project{}, fmt.Errorf("%w: unknown project status %q", ErrInvalidInput, status)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now().UTC()
	proj := Project{
		ID:          ids.New(),
		Name:        name,
		Description: strings.TrimSpace(p.Description),
		Status:      status,
		OwnerID:     p.OwnerID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	m.projects[proj.ID] = proj
	m.members[memberKey{proj.ID, p.OwnerID}] = Member{
		ProjectID: proj.ID,
		UserID:    p.OwnerID,
		Position:  "owner",
		JoinedAt:  now,
	}
	return proj, nil
}

func (m *InMemory) GetProject(_ context.Context, id string) (Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	proj, ok := m.projects[id]
	if !ok {
		return Project{}, fmt.Errorf("%w: project %s", ErrNotFound, id)
	}
	return proj, nil
}

func (m *InMemory) ListProjects(_ context.Context, f ProjectFilter) ([]Project, error) {
	if f.Status != "" && !ValidProjectStatus(f.Status) {
		return nil, fmt.Errorf("%w: unknown project status %q", ErrInvalidInput, f.Status)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Project, 0, len(m.projects))
	for _, p := range m.projects {
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		if f.MemberID != "" {
			if _, ok := m.members[memberKey{p.ID, f.MemberID}]; !ok {
				continue
			}
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return page(out, f.Offset, f.Limit), nil
}

func (m *InMemory) UpdateProject(_ context.Context, id string, upd ProjectUpdate) (Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	proj, ok := m.projects[id]
	if !ok {
		return Project{}, fmt.Errorf("%w: project %s", ErrNotFound, id)
	}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return Project{}, fmt.Errorf("%w: project name required", ErrInvalidInput)
		}
		proj.Name = name
	}
	if upd.Description != nil {
		proj.Description = strings.TrimSpace(*upd.Description)
	}
	if upd.Status != nil {
		if !ValidProjectStatus(*upd.Status) {
			return Project{}, fmt.Errorf("%w: unknown project status %q", ErrInvalidInput, *upd.Status)
		}
		proj.Status = *upd.Status
	}
	proj.UpdatedAt = m.now().UTC()
	m.projects[id] = proj
	return proj, nil
}

func (m *InMemory) DeleteProject(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.projects[id]; !ok {
		return fmt.Errorf("%w: project %s", ErrNotFound, id)
	}
	delete(m.projects, id)
	for k := range m.members {
		if k.projectID == id {
			delete(m.members, k)
		}
	}
	for tid, t := range m.tasks {
		if t.ProjectID != id {
			continue
		}
		delete(m.tasks, tid)
		for cid, c := range m.comments {
			if c.TaskID == tid {
				delete(m.comments, cid)
			}
		}
	}
	return nil
}

func (m *InMemory) AddMember(_ context.Context, mem Member) (Member, error) {
	if mem.ProjectID == "" || mem.UserID == "" {
		return Member{}, fmt.Errorf("%w: project and user required", ErrInvalidInput)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.projects[mem.ProjectID]; !ok {
		return Member{}, fmt.Errorf("%w: project %s", ErrNotFound, mem.ProjectID)
	}
	key := memberKey{mem.ProjectID, mem.UserID}
	if _, ok := m.members[key]; ok {
		return Member{}, fmt.Errorf("%w: user %s already a member", ErrConflict, mem.UserID)
	}
	mem.JoinedAt = m.now().UTC()
	m.members[key] = mem
	return mem, nil
}

func (m *InMemory) RemoveMember(_ context.Context, projectID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := memberKey{projectID, userID}
	if _, ok := m.members[key]; !ok {
		return fmt.Errorf("%w: member %s", ErrNotFound, userID)
	}
	delete(m.members, key)
	return nil
}

func (m *InMemory) ListMembers(_ context.Context, projectID string) ([]Member, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.projects[projectID]; !ok {
		return nil, fmt.Errorf("%w: project %s", ErrNotFound, projectID)
	}
	out := make([]Member, 0, 4)
	for k, mem := range m.members {
		if k.projectID == projectID {
			out = append(out, mem)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (m *InMemory) IsMember(_ context.Context, projectID, userID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.members[memberKey{projectID, userID}]
	return ok, nil
}

func (m *InMemory) CreateTask(_ context.Context, t NewTask) (Task, error) {
	title := strings.TrimSpace(t.Title)
	if title == "" {
		return Task{}, fmt.Errorf("%w: task title required", ErrInvalidInput)
	}
	if t.CreatedBy == "" {
		return Task{}, fmt.Errorf("%w: creator required", ErrInvalidInput)
	}
	priority := t.Priority
	if priority == "" {
		priority = PriorityMedium
	}
	if !ValidTaskPriority(priority) {
		return Task{}, fmt.Errorf("%w: unknown priority %q", ErrInvalidInput, priority)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.projects[t.ProjectID]; !ok {
		return Task{}, fmt.Errorf("%w: project %s", ErrNotFound, t.ProjectID)
	}
	now := m.now().UTC()
	task := Task{
		ID:          ids.New(),
		ProjectID:   t.ProjectID,
		Title:       title,
		Description: strings.TrimSpace(t.Description),
		Status:      TaskTodo,
		Priority:    priority,
		AssigneeID:  t.AssigneeID,
		CreatedBy:   t.CreatedBy,
		DueDate:     t.DueDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	m.tasks[task.ID] = task
	return task, nil
}

func (m *InMemory) GetTask(_ context.Context, id string) (Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	task, ok := m.tasks[id]
	if !ok {
		return Task{}, fmt.Errorf("%w: task %s", ErrNotFound, id)
	}
	return task, nil
}

func (m *InMemory) ListTasks(_ context.Context, f TaskFilter) ([]Task, error) {
	if f.Status != "" && !ValidTaskStatus(f.Status) {
		return nil, fmt.Errorf("%w: unknown task status %q", ErrInvalidInput, f.Status)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		if f.ProjectID != "" && t.ProjectID != f.ProjectID {
			continue
		}
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		if f.AssigneeID != "" && t.AssigneeID != f.AssigneeID {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return page(out, f.Offset, f.Limit), nil
}

func (m *InMemory) UpdateTask(_ context.Context, id string, upd TaskUpdate) (Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[id]
	if !ok {
		return Task{}, fmt.Errorf("%w: task %s", ErrNotFound, id)
	}
	if upd.Title != nil {
		title := strings.TrimSpace(*upd.Title)
		if title == "" {
			return Task{}, fmt.Errorf("%w: task title required", ErrInvalidInput)
		}
		task.Title = title
	}
	if upd.Description != nil {
		task.Description = strings.TrimSpace(*upd.Description)
	}
	if upd.Priority != nil {
		if !ValidTaskPriority(*upd.Priority) {
			return Task{}, fmt.Errorf("%w: unknown priority %q", ErrInvalidInput, *upd.Priority)
		}
		task.Priority = *upd.Priority
	}
	if upd.DueDate != nil {
		task.DueDate = upd.DueDate
	}
	task.UpdatedAt = m.now().UTC()
	m.tasks[id] = task
	return task, nil
}

func (m *InMemory) DeleteTask(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[id]; !ok {
		return fmt.Errorf("%w: task %s", ErrNotFound, id)
	}
	delete(m.tasks, id)
	for cid, c := range m.comments {
		if c.TaskID == id {
			delete(m.comments, cid)
		}
	}
	return nil
}

func (m *InMemory) AssignTask(_ context.Context, id, assigneeID string) (Task, error) {
	if assigneeID == "" {
		return Task{}, fmt.Errorf("%w: assignee required", ErrInvalidInput)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[id]
	if !ok {
		return Task{}, fmt.Errorf("%w: task %s", ErrNotFound, id)
	}
	if _, ok := m.members[memberKey{task.ProjectID, assigneeID}]; !ok {
		return Task{}, fmt.Errorf("%w: assignee %s is not a project member", ErrInvalidInput, assigneeID)
	}
	task.AssigneeID = assigneeID
	task.UpdatedAt = m.now().UTC()
	m.tasks[id] = task
	return task, nil
}

func (m *InMemory) MoveTaskStatus(_ context.Context, id, status string) (Task, error) {
	if !ValidTaskStatus(status) {
		return Task{}, fmt.Errorf("%w: unknown task status %q", ErrInvalidInput, status)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[id]
	if !ok {
		return Task{}, fmt.Errorf("%w: task %s", ErrNotFound, id)
	}
	task.Status = status
	task.UpdatedAt = m.now().UTC()
	m.tasks[id] = task
	return task, nil
}

func (m *InMemory) AddComment(_ context.Context, c NewComment) (Comment, error) {
	body := strings.TrimSpace(c.Body)
	if body == "" {
		return Comment{}, fmt.Errorf("%w: comment body required", ErrInvalidInput)
	}
	if c.AuthorID == "" {
		return Comment{}, fmt.Errorf("%w: author required", ErrInvalidInput)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[c.TaskID]; !ok {
		return Comment{}, fmt.Errorf("%w: task %s", ErrNotFound, c.TaskID)
	}
	com := Comment{
		ID:        ids.New(),
		TaskID:    c.TaskID,
		AuthorID:  c.AuthorID,
		Body:      body,
		CreatedAt: m.now().UTC(),
	}
	m.comments[com.ID] = com
	return com, nil
}

func (m *InMemory) ListComments(_ context.Context, taskID string) ([]Comment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.tasks[taskID]; !ok {
		return nil, fmt.Errorf("%w: task %s", ErrNotFound, taskID)
	}
	out := make([]Comment, 0, 4)
	for _, c := range m.comments {
		if c.TaskID == taskID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *InMemory) CreateNotification(_ context.Context, n Notification) (Notification, error) {
	if n.UserID == "" || n.Type == "" {
		return Notification{}, fmt.Errorf("%w: user and type required", ErrInvalidInput)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	n.ID = ids.New()
	n.Read = false
	n.CreatedAt = m.now().UTC()
	m.notifications[n.ID] = n
	return n, nil
}

func (m *InMemory) ListNotifications(_ context.Context, userID string, unreadOnly bool, limit int) ([]Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Notification, 0, 8)
	for _, n := range m.notifications {
		if n.UserID != userID {
			continue
		}
		if unreadOnly && n.Read {
			continue
		}
		out = append(out, n)
	}
	// Newest first. ULIDs are lexicographically time-ordered.
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *InMemory) MarkNotificationRead(_ context.Context, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notifications[id]
	if !ok || n.UserID != userID {
		return fmt.Errorf("%w: notification %s", ErrNotFound, id)
	}
	n.Read = true
	m.notifications[id] = n
	return nil
}

func (m *InMemory) MarkAllNotificationsRead(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, n := range m.notifications {
		if n.UserID == userID && !n.Read {
			n.Read = true
			m.notifications[id] = n
		}
	}
	return nil
}

func page[T any](in []T, offset, limit int) []T {
	if offset > 0 {
		if offset >= len(in) {
			return []T{}
		}
		in = in[offset:]
	}
	if limit > 0 && len(in) > limit {
		in = in[:limit]
	}
	return in
}
