package httpapi

import (
	"errors"
	"net/http"
	"time"

	"taskforge.org/internal/auth"
)

type registerRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expires_at"`
	User      auth.Identity `json:"user"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	ident, err := a.auth.Register(r.Context(), req.Email, req.Username, req.Password)
	if err != nil {
		handleAccountError(w, r, err)
		return
	}

	a.audit(r.Context(), "auth.register", map[string]any{
		"user_id": ident.UserID,
		"email":   ident.Email,
	})
	writeJSON(w, http.StatusCreated, ident)
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	token, expiresAt, ident, err := a.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrUnauthenticated) {
			writeError(w, r, http.StatusUnauthorized, "invalid credentials")
			return
		}
		handleAccountError(w, r, err)
		return
	}

	a.audit(r.Context(), "auth.login", map[string]any{
		"user_id": ident.UserID,
	})
	writeJSON(w, http.StatusOK, loginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      ident,
	})
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	ident, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		a.handleAuthError(w, r, auth.ErrUnauthenticated)
		return
	}
	writeJSON(w, http.StatusOK, ident)
}

func (a *API) handleSignout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	ident, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		a.handleAuthError(w, r, auth.ErrUnauthenticated)
		return
	}
	if err := a.auth.Signout(r.Context(), ident.UserID); err != nil {
		handleAccountError(w, r, err)
		return
	}
	a.audit(r.Context(), "auth.signout", map[string]any{
		"user_id": ident.UserID,
	})
	writeJSON(w, http.StatusOK, map[string]any{"status": "signed_out"})
}

func (a *API) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	ident, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		a.handleAuthError(w, r, auth.ErrUnauthenticated)
		return
	}
	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.auth.ChangePassword(r.Context(), ident.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		if errors.Is(err, auth.ErrUnauthenticated) {
			writeError(w, r, http.StatusUnauthorized, "current password is incorrect")
			return
		}
		handleAccountError(w, r, err)
		return
	}
	a.audit(r.Context(), "auth.change_password", map[string]any{
		"user_id": ident.UserID,
	})
	writeJSON(w, http.StatusOK, map[string]any{"status": "password_changed"})
}

func handleAccountError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrConflict):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, auth.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
