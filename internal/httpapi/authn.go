package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"taskforge.org/internal/auth"
	"taskforge.org/internal/obs"
)

const authHeader = "Authorization"

var publicPaths = []string{
	"/v1/auth/register",
	"/v1/auth/login",
	"/metrics",
	"/healthz",
	"/readyz",
	"/v1/info",
	"/openapi.yaml",
	"/",
}

// withAuth resolves the bearer token on every non-public request and puts
// the caller's identity on the context. Handlers downstream can assume a
// resolved identity or none at all.
func (a *API) withAuth(next http.Handler) http.Handler {
	if a.resolver == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		ident, err := a.resolver.ResolveHeader(r.Context(), r.Header.Get(authHeader))
		if err != nil {
			a.handleAuthError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.ContextWithIdentity(r.Context(), ident)))
	})
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}

// handleAuthError maps identity and gate errors onto HTTP statuses. A
// missing permission definition is an operator problem and surfaces as a
// 500, never as a denial.
func (a *API) handleAuthError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		obs.CountAuthDenial("unauthenticated")
		w.Header().Set("WWW-Authenticate", `Bearer realm="taskforge"`)
		writeError(w, r, http.StatusUnauthorized, "authentication required")
	case errors.Is(err, auth.ErrNotFound):
		obs.CountAuthDenial("subject_gone")
		writeError(w, r, http.StatusNotFound, "account not found")
	case errors.Is(err, auth.ErrForbidden):
		obs.CountAuthDenial("forbidden")
		writeError(w, r, http.StatusForbidden, denialMessage(err))
	case errors.Is(err, auth.ErrMisconfigured):
		obs.CountAuthDenial("misconfigured")
		a.audit(r.Context(), "authz.misconfigured", map[string]any{
			"path":  r.URL.Path,
			"error": err.Error(),
		})
		writeError(w, r, http.StatusInternalServerError, "authorization misconfigured")
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

// denialMessage strips the sentinel prefix so responses carry only the
// caller-specific detail, never the configured role sets.
func denialMessage(err error) string {
	msg := err.Error()
	if rest, ok := strings.CutPrefix(msg, auth.ErrForbidden.Error()); ok {
		rest = strings.TrimPrefix(rest, ": ")
		if rest != "" {
			return rest
		}
	}
	return "access denied"
}

// allow runs pol through the gate, writing the error response itself.
// Returns false when the request has been answered.
func (a *API) allow(w http.ResponseWriter, r *http.Request, pol auth.Policy) bool {
	if a.gate == nil {
		return true
	}
	if err := a.gate.Evaluate(r.Context(), pol); err != nil {
		a.handleAuthError(w, r, err)
		return false
	}
	return true
}
