package httpapi

import (
	"context"
	"net/http"
	"testing"
)

func TestPublicPathsSkipAuth(t *testing.T) {
	env := newTestEnv(t)
	for _, path := range []string{"/healthz", "/readyz", "/v1/info", "/metrics", "/openapi.yaml"} {
		res := env.do(t, http.MethodGet, path, "", nil)
		if res.Code == http.StatusUnauthorized {
			t.Fatalf("%s requires auth", path)
		}
	}
}

func TestMissingTokenIsUnauthorized(t *testing.T) {
	env := newTestEnv(t)
	res := env.do(t, http.MethodGet, "/v1/projects", "", nil)
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", res.Code)
	}
	if got := res.Header().Get("WWW-Authenticate"); got == "" {
		t.Fatal("WWW-Authenticate header missing")
	}
}

func TestGarbageTokenIsUnauthorized(t *testing.T) {
	env := newTestEnv(t)
	res := env.do(t, http.MethodGet, "/v1/projects", "not-a-jwt", nil)
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", res.Code)
	}
}

func TestDeletedSubjectIsNotFound(t *testing.T) {
	env := newTestEnv(t)
	token, userID := env.registerStaff(t, "gone@example.com", "goner")
	if err := env.authSvc.DeleteAccount(context.Background(), userID); err != nil {
		t.Fatalf("delete account: %v", err)
	}

	res := env.do(t, http.MethodGet, "/v1/auth/me", token, nil)
	if res.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", res.Code)
	}
}

func TestMeReturnsIdentity(t *testing.T) {
	env := newTestEnv(t)
	token, userID := env.registerStaff(t, "me@example.com", "myself")

	res := env.do(t, http.MethodGet, "/v1/auth/me", token, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("status = %d body %s", res.Code, res.Body.String())
	}
	body := decodeBody[map[string]any](t, res)
	if body["user_id"] != userID {
		t.Fatalf("user_id = %v, want %s", body["user_id"], userID)
	}
}

func TestSignoutDeactivatesAccount(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.registerStaff(t, "out@example.com", "leaver")

	res := env.do(t, http.MethodPost, "/v1/auth/signout", token, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("signout status = %d", res.Code)
	}
	// Login reactivates; wrong password still rejected.
	res = env.do(t, http.MethodPost, "/v1/auth/login", "", map[string]any{
		"email":    "out@example.com",
		"password": "wrong-password",
	})
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("bad login status = %d, want 401", res.Code)
	}
}

func TestChangePasswordFlow(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.registerStaff(t, "pw@example.com", "rotator")

	res := env.do(t, http.MethodPost, "/v1/auth/change-password", token, map[string]any{
		"current_password": "nope",
		"new_password":     "next-secret",
	})
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("wrong current password: status = %d, want 401", res.Code)
	}

	res = env.do(t, http.MethodPost, "/v1/auth/change-password", token, map[string]any{
		"current_password": "secret123",
		"new_password":     "next-secret",
	})
	if res.Code != http.StatusOK {
		t.Fatalf("change password: status = %d body %s", res.Code, res.Body.String())
	}

	res = env.do(t, http.MethodPost, "/v1/auth/login", "", map[string]any{
		"email":    "pw@example.com",
		"password": "next-secret",
	})
	if res.Code != http.StatusOK {
		t.Fatalf("login with new password: status = %d", res.Code)
	}
}

func TestRegisterValidationAndConflict(t *testing.T) {
	env := newTestEnv(t)
	res := env.do(t, http.MethodPost, "/v1/auth/register", "", map[string]any{
		"email":    "bad",
		"username": "ab",
		"password": "secret123",
	})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("invalid register: status = %d, want 400", res.Code)
	}

	env.registerStaff(t, "dup@example.com", "original")
	res = env.do(t, http.MethodPost, "/v1/auth/register", "", map[string]any{
		"email":    "dup@example.com",
		"username": "copycat",
		"password": "secret123",
	})
	if res.Code != http.StatusConflict {
		t.Fatalf("duplicate register: status = %d, want 409", res.Code)
	}
}
