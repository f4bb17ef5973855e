package pm

import (
	"errors"
	"time"
)

// Project statuses.
const (
	ProjectPending   = "pending"
	ProjectActive    = "active"
	ProjectCompleted = "completed"
	ProjectCancelled = "cancelled"
)

// Task statuses.
const (
	TaskTodo       = "todo"
	TaskInProgress = "in_progress"
	TaskReview     = "review"
	TaskCompleted  = "completed"
)

// Task priorities.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

var (
	ErrNotFound     = errors.New("pm: not found")
	ErrInvalidInput = errors.New("pm: invalid input")
	ErrConflict     = errors.New("pm: already exists")
)

var projectStatuses = map[string]struct{}{
	ProjectPending: {}, ProjectActive: {}, ProjectCompleted: {}, ProjectCancelled: {},
}

var taskStatuses = map[string]struct{}{
	TaskTodo: {}, TaskInProgress: {}, TaskReview: {}, TaskCompleted: {},
}

var taskPriorities = map[string]struct{}{
	PriorityLow: {}, PriorityMedium: {}, PriorityHigh: {},
}

// ValidProjectStatus reports whether s is a known project status.
func ValidProjectStatus(s string) bool { _, ok := projectStatuses[s]; return ok }

// ValidTaskStatus reports whether s is a known task status.
func ValidTaskStatus(s string) bool { _, ok := taskStatuses[s]; return ok }

// ValidTaskPriority reports whether p is a known task priority.
func ValidTaskPriority(p string) bool { _, ok := taskPriorities[p]; return ok }

// Project groups tasks under an owner.
type Project struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Status      string    `json:"status"`
	OwnerID     string    `json:"owner_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Member records one user's membership in a project.
type Member struct {
	ProjectID string    `json:"project_id"`
	UserID    string    `json:"user_id"`
	Position  string    `json:"position,omitempty"`
	JoinedAt  time.Time `json:"joined_at"`
}

// Task is a unit of work inside a project.
type Task struct {
	ID          string     `json:"id"`
	ProjectID   string     `json:"project_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority"`
	AssigneeID  string     `json:"assignee_id,omitempty"`
	CreatedBy   string     `json:"created_by"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Comment is a remark attached to a task.
type Comment struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"task_id"`
	AuthorID  string    `json:"author_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// Notification is a stored per-user record of a domain event.
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	ProjectID string    `json:"project_id,omitempty"`
	TaskID    string    `json:"task_id,omitempty"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// NewProject carries the fields required to create a project.
type NewProject struct {
	Name        string
	Description string
	Status      string
	OwnerID     string
}

// ProjectUpdate mutates the non-nil fields.
type ProjectUpdate struct {
	Name        *string
	Description *string
	Status      *string
}

// ProjectFilter narrows project listings.
type ProjectFilter struct {
	Status   string
	MemberID string
	Limit    int
	Offset   int
}

// NewTask carries the fields required to create a task.
type NewTask struct {
	ProjectID   string
	Title       string
	Description string
	Priority    string
	AssigneeID  string
	CreatedBy   string
	DueDate     *time.Time
}

// TaskUpdate mutates the non-nil fields. Status moves through MoveTaskStatus.
type TaskUpdate struct {
	Title       *string
	Description *string
	Priority    *string
	DueDate     *time.Time
}

// TaskFilter narrows task listings.
type TaskFilter struct {
	ProjectID  string
	Status     string
	AssigneeID string
	Limit      int
	Offset     int
}

// NewComment carries the fields required to add a comment.
type NewComment struct {
	TaskID   string
	AuthorID string
	Body     string
}
