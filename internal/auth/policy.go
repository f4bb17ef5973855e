package auth

import (
	"context"
	"errors"
	"fmt"
)

// Policy declares the authorization requirement for one operation. A policy
// is built once per route, not per request. The zero value allows any
// authenticated identity.
type Policy struct {
	// Roles is the set of allowed role names; empty allows any role.
	Roles []string
	// Permission is the required permission code; empty requires none.
	Permission string
}

// RequireRoles builds a policy passing when the identity's role name is a
// member of the given set.
func RequireRoles(names ...string) Policy {
	return Policy{Roles: names}
}

// RequirePermission builds a policy passing when the identity's role is
// granted the given permission code.
func RequirePermission(code string) Policy {
	return Policy{Permission: code}
}

// RequireRolesAndPermission builds a combined policy. The role-set check runs
// first; the permission lookup is skipped when it fails.
func RequireRolesAndPermission(names []string, code string) Policy {
	return Policy{Roles: names, Permission: code}
}

// Gate evaluates access policies against the reference-data store. It is a
// pure decision component: it performs lookups but never writes.
type Gate struct {
	store Store
	logf  LogFunc
}

// GateOption configures Gate.
type GateOption func(*Gate)

// WithGateLog sets the diagnostic log sink. Misconfigured permission codes
// are reported through it so operators notice them.
func WithGateLog(fn LogFunc) GateOption {
	return func(g *Gate) {
		if fn != nil {
			g.logf = fn
		}
	}
}

// NewGate constructs a Gate.
func NewGate(store Store, opts ...GateOption) (*Gate, error) {
	if store == nil {
		return nil, errors.New("auth: store is required")
	}
	g := &Gate{store: store, logf: nopLog}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Evaluate decides whether the identity attached to ctx satisfies the policy.
// It returns nil on pass; otherwise ErrUnauthenticated (no identity in
// context), ErrForbidden (role or permission denied) or ErrMisconfigured
// (policy references an unknown permission code).
//
// Checks run in declaration order and short-circuit: when the role-set check
// fails, the permission lookup is not attempted. Denials name the actual role
// or missing capability but never enumerate the allowed set.
func (g *Gate) Evaluate(ctx context.Context, pol Policy) error {
	identity, ok := IdentityFromContext(ctx)
	if !ok {
		return ErrUnauthenticated
	}
	if len(pol.Roles) > 0 {
		if err := g.checkRoleSet(ctx, identity, pol.Roles); err != nil {
			return err
		}
	}
	if pol.Permission != "" {
		if err := g.checkPermission(ctx, identity, pol.Permission); err != nil {
			return err
		}
	}
	return nil
}

func (g *Gate) checkRoleSet(ctx context.Context, identity Identity, allowed []string) error {
	role, err := g.store.FindRoleByID(ctx, identity.RoleID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("%w: role not resolved", ErrForbidden)
		}
		return err
	}
	for _, name := range allowed {
		if role.Name == name {
			return nil
		}
	}
	return fmt.Errorf("%w: role %s lacks access", ErrForbidden, role.Name)
}

func (g *Gate) checkPermission(ctx context.Context, identity Identity, code string) error {
	perm, err := g.store.FindPermissionByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			g.logf("auth.gate.misconfigured", map[string]any{"permission": code})
			return fmt.Errorf("%w: unknown permission code %q", ErrMisconfigured, code)
		}
		return err
	}
	granted, err := g.store.RoleHasPermission(ctx, identity.RoleID, perm.ID)
	if err != nil {
		return err
	}
	if !granted {
		return fmt.Errorf("%w: missing permission %s", ErrForbidden, code)
	}
	return nil
}
