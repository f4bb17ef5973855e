package auth

import "context"

// Store describes the persistence operations the auth components consume.
// Role, permission and grant records are read-only reference data from the
// perspective of the resolver and the gate.
type Store interface {
	CreateUser(ctx context.Context, u *User) error
	FindUserByID(ctx context.Context, id string) (*User, error)
	FindUserByEmail(ctx context.Context, email string) (*User, error)
	SetUserActive(ctx context.Context, id string, active bool) error
	SetUserPassword(ctx context.Context, id, passwordHash string) error
	DeleteUser(ctx context.Context, id string) error

	FindRoleByID(ctx context.Context, id string) (*Role, error)
	FindRoleByName(ctx context.Context, name string) (*Role, error)
	FindPermissionByCode(ctx context.Context, code string) (*Permission, error)
	RoleHasPermission(ctx context.Context, roleID, permissionID string) (bool, error)

	// EnsureCatalog seeds roles, permissions and grants. Re-seeding an
	// existing pair is a no-op.
	EnsureCatalog(ctx context.Context, cat Catalog) error
}
