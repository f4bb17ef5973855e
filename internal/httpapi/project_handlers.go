package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"taskforge.org/internal/auth"
	"taskforge.org/internal/events"
	"taskforge.org/internal/pm"
)

type createProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Status      string `json:"status"`
}

type updateProjectRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
}

type addMemberRequest struct {
	UserID   string `json:"user_id"`
	Position string `json:"position"`
}

type listProjectsResponse struct {
	Items []pm.Project `json:"items"`
	AsOf  time.Time    `json:"as_of"`
}

func (a *API) handleProjectsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listProjects(w, r)
	case http.MethodPost:
		a.createProject(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleProjectResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/projects/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(strings.TrimSuffix(path, "/"), "/")

	switch {
	case len(parts) == 1:
		a.projectByID(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "members":
		a.projectMembers(w, r, parts[0])
	case len(parts) == 3 && parts[1] == "members":
		a.projectMember(w, r, parts[0], parts[2])
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) projectByID(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodGet:
		if !a.allow(w, r, policyViewProject) {
			return
		}
		p, err := a.pm.GetProject(r.Context(), id)
		if err != nil {
			handlePMError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	case http.MethodPatch:
		if !a.allow(w, r, policyEditProject) {
			return
		}
		a.updateProject(w, r, id)
	case http.MethodDelete:
		if !a.allow(w, r, policyDeleteProject) {
			return
		}
		a.deleteProject(w, r, id)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPatch, http.MethodDelete)
	}
}

func (a *API) listProjects(w http.ResponseWriter, r *http.Request) {
	if !a.allow(w, r, policyViewProject) {
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
	f := pm.ProjectFilter{
		Status:   strings.TrimSpace(r.URL.Query().Get("status")),
		MemberID: strings.TrimSpace(r.URL.Query().Get("member")),
		Limit:    limit,
		Offset:   offset,
	}
	items, err := a.pm.ListProjects(r.Context(), f)
	if err != nil {
		handlePMError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listProjectsResponse{Items: items, AsOf: time.Now().UTC()})
}

func (a *API) createProject(w http.ResponseWriter, r *http.Request) {
	if !a.allow(w, r, policyCreateProject) {
		return
	}
	ident, _ := auth.IdentityFromContext(r.Context())
	var req createProjectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	p, err := a.pm.CreateProject(r.Context(), pm.NewProject{
		Name:        req.Name,
		Description: req.Description,
		Status:      req.Status,
		OwnerID:     ident.UserID,
	})
	if err != nil {
		handlePMError(w, r, err)
		return
	}

	a.audit(r.Context(), "project.create", map[string]any{
		"project_id": p.ID,
		"owner_id":   p.OwnerID,
	})
	a.publish(events.Event{
		Type:       events.ProjectCreated,
		ActorID:    ident.UserID,
		ProjectID:  p.ID,
		Message:    "project " + p.Name + " created",
		Recipients: a.memberIDs(r.Context(), p.ID),
	})

	w.Header().Set("Location", "/v1/projects/"+p.ID)
	writeJSON(w, http.StatusCreated, p)
}

func (a *API) updateProject(w http.ResponseWriter, r *http.Request, id string) {
	ident, _ := auth.IdentityFromContext(r.Context())
	var req updateProjectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	p, err := a.pm.UpdateProject(r.Context(), id, pm.ProjectUpdate{
		Name:        req.Name,
		Description: req.Description,
		Status:      req.Status,
	})
	if err != nil {
		handlePMError(w, r, err)
		return
	}

	a.audit(r.Context(), "project.update", map[string]any{
		"project_id": p.ID,
	})
	a.publish(events.Event{
		Type:       events.ProjectUpdated,
		ActorID:    ident.UserID,
		ProjectID:  p.ID,
		Message:    "project " + p.Name + " updated",
		Recipients: a.memberIDs(r.Context(), p.ID),
	})
	writeJSON(w, http.StatusOK, p)
}

func (a *API) deleteProject(w http.ResponseWriter, r *http.Request, id string) {
	ident, _ := auth.IdentityFromContext(r.Context())
	p, err := a.pm.GetProject(r.Context(), id)
	if err != nil {
		handlePMError(w, r, err)
		return
	}
	recipients := a.memberIDs(r.Context(), id)
	if err := a.pm.DeleteProject(r.Context(), id); err != nil {
		handlePMError(w, r, err)
		return
	}

	a.audit(r.Context(), "project.delete", map[string]any{
		"project_id": id,
	})
	a.publish(events.Event{
		Type:       events.ProjectDeleted,
		ActorID:    ident.UserID,
		ProjectID:  id,
		Message:    "project " + p.Name + " deleted",
		Recipients: recipients,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) projectMembers(w http.ResponseWriter, r *http.Request, projectID string) {
	switch r.Method {
	case http.MethodGet:
		if !a.allow(w, r, policyViewProject) {
			return
		}
		members, err := a.pm.ListMembers(r.Context(), projectID)
		if err != nil {
			handlePMError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": members})
	case http.MethodPost:
		if !a.allow(w, r, policyManageMembers) {
			return
		}
		a.addMember(w, r, projectID)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) addMember(w http.ResponseWriter, r *http.Request, projectID string) {
	ident, _ := auth.IdentityFromContext(r.Context())
	var req addMemberRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	m, err := a.pm.AddMember(r.Context(), pm.Member{
		ProjectID: projectID,
		UserID:    strings.TrimSpace(req.UserID),
		Position:  strings.TrimSpace(req.Position),
	})
	if err != nil {
		handlePMError(w, r, err)
		return
	}

	a.audit(r.Context(), "project.member.add", map[string]any{
		"project_id": projectID,
		"user_id":    m.UserID,
	})
	a.publish(events.Event{
		Type:       events.ProjectMemberAdded,
		ActorID:    ident.UserID,
		ProjectID:  projectID,
		Message:    "you were added to a project",
		Recipients: []string{m.UserID},
	})
	writeJSON(w, http.StatusCreated, m)
}

func (a *API) projectMember(w http.ResponseWriter, r *http.Request, projectID, userID string) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w, r, http.MethodDelete)
		return
	}
	if !a.allow(w, r, policyManageMembers) {
		return
	}
	ident, _ := auth.IdentityFromContext(r.Context())
	if err := a.pm.RemoveMember(r.Context(), projectID, userID); err != nil {
		handlePMError(w, r, err)
		return
	}

	a.audit(r.Context(), "project.member.remove", map[string]any{
		"project_id": projectID,
		"user_id":    userID,
	})
	a.publish(events.Event{
		Type:       events.ProjectMemberRemoved,
		ActorID:    ident.UserID,
		ProjectID:  projectID,
		Message:    "you were removed from a project",
		Recipients: []string{userID},
	})
	w.WriteHeader(http.StatusNoContent)
}

// memberIDs lists the user ids of a project's members; empty on error so
// event publication degrades rather than failing the request.
func (a *API) memberIDs(ctx context.Context, projectID string) []string {
	members, err := a.pm.ListMembers(ctx, projectID)
	if err != nil {
		return nil
	}
	out := make([]string, 0, len(members))
	for _, m := range members {
		out = append(out, m.UserID)
	}
	return out
}
