package auth

import "time"

// User is a registered account. Every user references exactly one role.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	RoleID       string    `json:"role_id"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Role is a named authorization category. Roles are immutable reference data
// seeded once at startup.
type Role struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Permission names a single capability by unique code.
type Permission struct {
	ID          string `json:"id"`
	Code        string `json:"code"`
	Description string `json:"description,omitempty"`
}

// RolePermission grants one permission to one role. The (role, permission)
// pair is unique; granting the same pair twice is a no-op.
type RolePermission struct {
	RoleID       string `json:"role_id"`
	PermissionID string `json:"permission_id"`
}

// Identity is the authenticated subject attached to the request context after
// resolution. It intentionally carries no credential material.
type Identity struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	Username string `json:"username"`
	RoleID   string `json:"role_id"`
	Active   bool   `json:"active"`
}

// IdentityOf strips secret material from a user record.
func IdentityOf(u User) Identity {
	return Identity{
		UserID:   u.ID,
		Email:    u.Email,
		Username: u.Username,
		RoleID:   u.RoleID,
		Active:   u.Active,
	}
}
