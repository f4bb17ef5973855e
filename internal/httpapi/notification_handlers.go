package httpapi

import (
	"net/http"
	"strings"

	"taskforge.org/internal/auth"
)

func (a *API) handleNotificationsCollection(w http.ResponseWriter, r *http.Request) {
	ident, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		a.handleAuthError(w, r, auth.ErrUnauthenticated)
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	limit, err := parsePositiveInt(r.URL.Query().Get("limit"), 50, 1, 200)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	unreadOnly := r.URL.Query().Get("unread") == "true"
	items, err := a.pm.ListNotifications(r.Context(), ident.UserID, unreadOnly, limit)
	if err != nil {
		handlePMError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (a *API) handleNotificationResource(w http.ResponseWriter, r *http.Request) {
	ident, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		a.handleAuthError(w, r, auth.ErrUnauthenticated)
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/v1/notifications/")
	path = strings.TrimSuffix(path, "/")

	if path == "read-all" {
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		if err := a.pm.MarkAllNotificationsRead(r.Context(), ident.UserID); err != nil {
			handlePMError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "all_read"})
		return
	}

	id, ok := strings.CutSuffix(path, "/read")
	if !ok || id == "" || strings.Contains(id, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if err := a.pm.MarkNotificationRead(r.Context(), ident.UserID, id); err != nil {
		handlePMError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "read"})
}
