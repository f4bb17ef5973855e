package httpapi

import (
	"net/http"
	"strings"
	"time"

	"taskforge.org/internal/auth"
	"taskforge.org/internal/events"
	"taskforge.org/internal/pm"
)

type createTaskRequest struct {
	ProjectID   string     `json:"project_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Priority    string     `json:"priority"`
	AssigneeID  string     `json:"assignee_id"`
	DueDate     *time.Time `json:"due_date"`
}

type updateTaskRequest struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Priority    *string    `json:"priority"`
	DueDate     *time.Time `json:"due_date"`
}

type assignTaskRequest struct {
	AssigneeID string `json:"assignee_id"`
}

type moveTaskRequest struct {
	Status string `json:"status"`
}

type addCommentRequest struct {
	Body string `json:"body"`
}

type listTasksResponse struct {
	Items []pm.Task `json:"items"`
	AsOf  time.Time `json:"as_of"`
}

func (a *API) handleTasksCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listTasks(w, r)
	case http.MethodPost:
		a.createTask(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleTaskResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/tasks/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(strings.TrimSuffix(path, "/"), "/")

	switch {
	case len(parts) == 1:
		a.taskByID(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "assign":
		a.assignTask(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "status":
		a.moveTaskStatus(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "comments":
		a.taskComments(w, r, parts[0])
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) taskByID(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodGet:
		if !a.allow(w, r, policyViewTask) {
			return
		}
		t, err := a.pm.GetTask(r.Context(), id)
		if err != nil {
			handlePMError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, t)
	case http.MethodPatch:
		if !a.allow(w, r, policyEditTask) {
			return
		}
		a.updateTask(w, r, id)
	case http.MethodDelete:
		if !a.allow(w, r, policyDeleteTask) {
			return
		}
		a.deleteTask(w, r, id)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPatch, http.MethodDelete)
	}
}

func (a *API) listTasks(w http.ResponseWriter, r *http.Request) {
	if !a.allow(w, r, policyViewTask) {
		return
	}
	limit, err := parsePositiveInt(r.URL.Query().Get("limit"), 50, 1, 200)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	offset, err := parsePositiveInt(r.URL.Query().Get("offset"), 0, 0, 1<<20)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	f := pm.TaskFilter{
		ProjectID:  strings.TrimSpace(r.URL.Query().Get("project")),
		Status:     strings.TrimSpace(r.URL.Query().Get("status")),
		AssigneeID: strings.TrimSpace(r.URL.Query().Get("assignee")),
		Limit:      limit,
		Offset:     offset,
	}
	items, err := a.pm.ListTasks(r.Context(), f)
	if err != nil {
		handlePMError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listTasksResponse{Items: items, AsOf: time.Now().UTC()})
}

func (a *API) createTask(w http.ResponseWriter, r *http.Request) {
	if !a.allow(w, r, policyCreateTask) {
		return
	}
	ident, _ := auth.IdentityFromContext(r.Context())
	var req createTaskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	t, err := a.pm.CreateTask(r.Context(), pm.NewTask{
		ProjectID:   strings.TrimSpace(req.ProjectID),
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		AssigneeID:  strings.TrimSpace(req.AssigneeID),
		CreatedBy:   ident.UserID,
		DueDate:     req.DueDate,
	})
	if err != nil {
		handlePMError(w, r, err)
		return
	}

	a.audit(r.Context(), "task.create", map[string]any{
		"task_id":    t.ID,
		"project_id": t.ProjectID,
	})
	a.publish(events.Event{
		Type:       events.TaskCreated,
		ActorID:    ident.UserID,
		ProjectID:  t.ProjectID,
		TaskID:     t.ID,
		Message:    "task " + t.Title + " created",
		Recipients: a.memberIDs(r.Context(), t.ProjectID),
	})

	w.Header().Set("Location", "/v1/tasks/"+t.ID)
	writeJSON(w, http.StatusCreated, t)
}

func (a *API) updateTask(w http.ResponseWriter, r *http.Request, id string) {
	ident, _ := auth.IdentityFromContext(r.Context())
	var req updateTaskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	t, err := a.pm.UpdateTask(r.Context(), id, pm.TaskUpdate{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		DueDate:     req.DueDate,
	})
	if err != nil {
		handlePMError(w, r, err)
		return
	}

	a.audit(r.Context(), "task.update", map[string]any{
		"task_id": t.ID,
	})
	a.publish(events.Event{
		Type:       events.TaskUpdated,
		ActorID:    ident.UserID,
		ProjectID:  t.ProjectID,
		TaskID:     t.ID,
		Message:    "task " + t.Title + " updated",
		Recipients: taskWatchers(t),
	})
	writeJSON(w, http.StatusOK, t)
}

func (a *API) deleteTask(w http.ResponseWriter, r *http.Request, id string) {
	ident, _ := auth.IdentityFromContext(r.Context())
	t, err := a.pm.GetTask(r.Context(), id)
	if err != nil {
		handlePMError(w, r, err)
		return
	}
	if err := a.pm.DeleteTask(r.Context(), id); err != nil {
		handlePMError(w, r, err)
		return
	}

	a.audit(r.Context(), "task.delete", map[string]any{
		"task_id": id,
	})
	a.publish(events.Event{
		Type:       events.TaskDeleted,
		ActorID:    ident.UserID,
		ProjectID:  t.ProjectID,
		TaskID:     id,
		Message:    "task " + t.Title + " deleted",
		Recipients: taskWatchers(t),
	})
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) assignTask(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if !a.allow(w, r, policyAssignTask) {
		return
	}
	ident, _ := auth.IdentityFromContext(r.Context())
	var req assignTaskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	t, err := a.pm.AssignTask(r.Context(), id, strings.TrimSpace(req.AssigneeID))
	if err != nil {
		handlePMError(w, r, err)
		return
	}

	a.audit(r.Context(), "task.assign", map[string]any{
		"task_id":     t.ID,
		"assignee_id": t.AssigneeID,
	})
	a.publish(events.Event{
		Type:       events.TaskAssigned,
		ActorID:    ident.UserID,
		ProjectID:  t.ProjectID,
		TaskID:     t.ID,
		Message:    "task " + t.Title + " was assigned to you",
		Recipients: []string{t.AssigneeID},
	})
	writeJSON(w, http.StatusOK, t)
}

func (a *API) moveTaskStatus(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if !a.allow(w, r, policyMoveTask) {
		return
	}
	ident, _ := auth.IdentityFromContext(r.Context())
	var req moveTaskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	t, err := a.pm.MoveTaskStatus(r.Context(), id, strings.TrimSpace(req.Status))
	if err != nil {
		handlePMError(w, r, err)
		return
	}

	a.audit(r.Context(), "task.status", map[string]any{
		"task_id": t.ID,
		"status":  t.Status,
	})
	a.publish(events.Event{
		Type:       events.TaskStatusMoved,
		ActorID:    ident.UserID,
		ProjectID:  t.ProjectID,
		TaskID:     t.ID,
		Message:    "task " + t.Title + " moved to " + t.Status,
		Recipients: taskWatchers(t),
	})
	writeJSON(w, http.StatusOK, t)
}

func (a *API) taskComments(w http.ResponseWriter, r *http.Request, taskID string) {
	switch r.Method {
	case http.MethodGet:
		if !a.allow(w, r, policyViewTask) {
			return
		}
		items, err := a.pm.ListComments(r.Context(), taskID)
		if err != nil {
			handlePMError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	case http.MethodPost:
		if !a.allow(w, r, policyCommentTask) {
			return
		}
		a.addComment(w, r, taskID)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) addComment(w http.ResponseWriter, r *http.Request, taskID string) {
	ident, _ := auth.IdentityFromContext(r.Context())
	var req addCommentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	c, err := a.pm.AddComment(r.Context(), pm.NewComment{
		TaskID:   taskID,
		AuthorID: ident.UserID,
		Body:     req.Body,
	})
	if err != nil {
		handlePMError(w, r, err)
		return
	}

	t, err := a.pm.GetTask(r.Context(), taskID)
	if err == nil {
		a.publish(events.Event{
			Type:       events.TaskCommentAdded,
			ActorID:    ident.UserID,
			ProjectID:  t.ProjectID,
			TaskID:     taskID,
			Message:    "new comment on task " + t.Title,
			Recipients: taskWatchers(t),
		})
	}
	a.audit(r.Context(), "task.comment", map[string]any{
		"task_id":    taskID,
		"comment_id": c.ID,
	})
	writeJSON(w, http.StatusCreated, c)
}

// taskWatchers returns who should hear about a task change: the creator
// and the current assignee.
func taskWatchers(t pm.Task) []string {
	out := []string{t.CreatedBy}
	if t.AssigneeID != "" && t.AssigneeID != t.CreatedBy {
		out = append(out, t.AssigneeID)
	}
	return out
}
