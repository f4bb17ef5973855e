package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"taskforge.org/internal/auth"
	"taskforge.org/internal/events"
	"taskforge.org/internal/pm"
)

type testEnv struct {
	api     *API
	handler http.Handler
	store   *auth.MemStore
	authSvc *auth.Service
	pmStore *pm.InMemory
	bus     *events.Bus
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := auth.NewMemStore()
	tokens, err := auth.NewTokens(auth.TokenConfig{Secret: []byte("test-secret"), Issuer: "taskforge"})
	if err != nil {
		t.Fatalf("tokens: %v", err)
	}
	svc, err := auth.NewService(store, tokens, auth.DefaultCatalog())
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	if err := svc.EnsureReferenceData(context.Background()); err != nil {
		t.Fatalf("ensure catalog: %v", err)
	}
	resolver, err := auth.NewResolver(tokens, store)
	if err != nil {
		t.Fatalf("resolver: %v", err)
	}
	gate, err := auth.NewGate(store)
	if err != nil {
		t.Fatalf("gate: %v", err)
	}
	pmStore := pm.NewInMemory()
	bus := events.NewBus()
	api := New(Config{
		Version:  "test",
		Resolver: resolver,
		Gate:     gate,
		Auth:     svc,
		PM:       pmStore,
		Bus:      bus,
	})
	return &testEnv{
		api:     api,
		handler: api.Handler(),
		store:   store,
		authSvc: svc,
		pmStore: pmStore,
		bus:     bus,
	}
}

// registerStaff creates a staff account through the public API and returns
// the bearer token and user id.
func (e *testEnv) registerStaff(t *testing.T, email, username string) (string, string) {
	t.Helper()
	res := e.do(t, http.MethodPost, "/v1/auth/register", "", map[string]any{
		"email":    email,
		"username": username,
		"password": "secret123",
	})
	if res.Code != http.StatusCreated {
		t.Fatalf("register %s: status %d body %s", email, res.Code, res.Body.String())
	}
	return e.login(t, email)
}

// registerLeader seeds a leader account directly in the store.
func (e *testEnv) registerLeader(t *testing.T, email, username string) (string, string) {
	t.Helper()
	ctx := context.Background()
	role, err := e.store.FindRoleByName(ctx, auth.RoleLeader)
	if err != nil {
		t.Fatalf("leader role: %v", err)
	}
	hash, err := auth.HashPassword("secret123")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	u := &auth.User{
		Email:        email,
		Username:     username,
		PasswordHash: hash,
		RoleID:       role.ID,
		Active:       true,
	}
	if err := e.store.CreateUser(ctx, u); err != nil {
		t.Fatalf("create leader: %v", err)
	}
	return e.login(t, email)
}

func (e *testEnv) login(t *testing.T, email string) (string, string) {
	t.Helper()
	res := e.do(t, http.MethodPost, "/v1/auth/login", "", map[string]any{
		"email":    email,
		"password": "secret123",
	})
	if res.Code != http.StatusOK {
		t.Fatalf("login %s: status %d body %s", email, res.Code, res.Body.String())
	}
	var out loginResponse
	if err := json.Unmarshal(res.Body.Bytes(), &out); err != nil {
		t.Fatalf("login response: %v", err)
	}
	return out.Token, out.User.UserID
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res := httptest.NewRecorder()
	e.handler.ServeHTTP(res, req)
	return res
}

func decodeBody[T any](t *testing.T, res *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(res.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v (body %s)", err, res.Body.String())
	}
	return out
}
