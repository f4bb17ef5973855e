package auth

import (
	"context"
	"errors"
	"testing"
)

// countingStore records lookup counts so tests can assert short-circuiting.
type countingStore struct {
	Store
	roleLookups int
	permLookups int
	grantChecks int
}

func (c *countingStore) FindRoleByID(ctx context.Context, id string) (*Role, error) {
	c.roleLookups++
	return c.Store.FindRoleByID(ctx, id)
}

func (c *countingStore) FindPermissionByCode(ctx context.Context, code string) (*Permission, error) {
	c.permLookups++
	return c.Store.FindPermissionByCode(ctx, code)
}

func (c *countingStore) RoleHasPermission(ctx context.Context, roleID, permissionID string) (bool, error) {
	c.grantChecks++
	return c.Store.RoleHasPermission(ctx, roleID, permissionID)
}

func seededStore(t *testing.T) *MemStore {
	t.Helper()
	store := NewMemStore()
	if err := store.EnsureCatalog(context.Background(), DefaultCatalog()); err != nil {
		t.Fatalf("EnsureCatalog: %v", err)
	}
	return store
}

func identityWithRole(t *testing.T, store *MemStore, roleName string) Identity {
	t.Helper()
	role, err := store.FindRoleByName(context.Background(), roleName)
	if err != nil {
		t.Fatalf("FindRoleByName(%s): %v", roleName, err)
	}
	return Identity{UserID: "u-" + roleName, RoleID: role.ID, Active: true}
}

func TestEvaluateMissingIdentity(t *testing.T) {
	gate, err := NewGate(seededStore(t))
	if err != nil {
		t.Fatalf("NewGate: %v", err)
	}
	err = gate.Evaluate(context.Background(), RequireRoles(RoleLeader))
	if !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestEvaluateRoleSet(t *testing.T) {
	store := seededStore(t)
	gate, _ := NewGate(store)

	leader := identityWithRole(t, store, RoleLeader)
	staff := identityWithRole(t, store, RoleStaff)

	ctx := ContextWithIdentity(context.Background(), leader)
	if err := gate.Evaluate(ctx, RequireRoles(RoleLeader)); err != nil {
		t.Fatalf("leader should pass: %v", err)
	}

	ctx = ContextWithIdentity(context.Background(), staff)
	err := gate.Evaluate(ctx, RequireRoles(RoleLeader))
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestEvaluatePermission(t *testing.T) {
	store := seededStore(t)
	gate, _ := NewGate(store)

	leader := identityWithRole(t, store, RoleLeader)
	staff := identityWithRole(t, store, RoleStaff)

	ctx := ContextWithIdentity(context.Background(), leader)
	if err := gate.Evaluate(ctx, RequirePermission(PermCreateProject)); err != nil {
		t.Fatalf("leader should hold create_project: %v", err)
	}

	ctx = ContextWithIdentity(context.Background(), staff)
	err := gate.Evaluate(ctx, RequirePermission(PermDeleteProject))
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if err := gate.Evaluate(ctx, RequirePermission(PermChangeTaskStatus)); err != nil {
		t.Fatalf("staff should hold change_task_status: %v", err)
	}
}

func TestEvaluateMisconfiguredPermission(t *testing.T) {
	store := seededStore(t)
	var logged []string
	gate, _ := NewGate(store, WithGateLog(func(event string, fields map[string]any) {
		logged = append(logged, event)
	}))

	ctx := ContextWithIdentity(context.Background(), identityWithRole(t, store, RoleLeader))
	err := gate.Evaluate(ctx, RequirePermission("archive_project"))
	if !errors.Is(err, ErrMisconfigured) {
		t.Fatalf("expected ErrMisconfigured, got %v", err)
	}
	if errors.Is(err, ErrForbidden) {
		t.Fatalf("misconfiguration must not read as a plain denial")
	}
	if len(logged) != 1 || logged[0] != "auth.gate.misconfigured" {
		t.Fatalf("expected misconfiguration log event, got %v", logged)
	}
}

func TestEvaluateCombinedShortCircuits(t *testing.T) {
	store := seededStore(t)
	counting := &countingStore{Store: store}
	gate, _ := NewGate(counting)

	staff := identityWithRole(t, store, RoleStaff)
	ctx := ContextWithIdentity(context.Background(), staff)

	pol := RequireRolesAndPermission([]string{RoleLeader}, PermDeleteProject)
	err := gate.Evaluate(ctx, pol)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if counting.roleLookups != 1 {
		t.Fatalf("expected 1 role lookup, got %d", counting.roleLookups)
	}
	if counting.permLookups != 0 || counting.grantChecks != 0 {
		t.Fatalf("permission lookup must be skipped after role denial: perm=%d grant=%d",
			counting.permLookups, counting.grantChecks)
	}
}

func TestEvaluateCombinedPasses(t *testing.T) {
	store := seededStore(t)
	counting := &countingStore{Store: store}
	gate, _ := NewGate(counting)

	leader := identityWithRole(t, store, RoleLeader)
	ctx := ContextWithIdentity(context.Background(), leader)

	pol := RequireRolesAndPermission([]string{RoleLeader}, PermCreateProject)
	if err := gate.Evaluate(ctx, pol); err != nil {
		t.Fatalf("expected pass, got %v", err)
	}
	if counting.roleLookups != 1 || counting.permLookups != 1 || counting.grantChecks != 1 {
		t.Fatalf("unexpected lookup counts: role=%d perm=%d grant=%d",
			counting.roleLookups, counting.permLookups, counting.grantChecks)
	}
}

func TestEvaluateZeroPolicyAllowsAnyIdentity(t *testing.T) {
	store := seededStore(t)
	gate, _ := NewGate(store)
	ctx := ContextWithIdentity(context.Background(), identityWithRole(t, store, RoleStaff))
	if err := gate.Evaluate(ctx, Policy{}); err != nil {
		t.Fatalf("zero policy should pass any authenticated identity: %v", err)
	}
}

func TestEnsureCatalogIdempotent(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := store.EnsureCatalog(ctx, DefaultCatalog()); err != nil {
			t.Fatalf("EnsureCatalog pass %d: %v", i+1, err)
		}
	}
	gate, _ := NewGate(store)
	leader := identityWithRole(t, store, RoleLeader)
	evalCtx := ContextWithIdentity(ctx, leader)
	if err := gate.Evaluate(evalCtx, RequirePermission(PermCreateProject)); err != nil {
		t.Fatalf("double seeding should not change the grant result: %v", err)
	}
}
