package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	minPasswordLength = 6
	minUsernameLength = 3
)

// Service provides account lifecycle operations: registration, login,
// signout and password changes. Token issuance is delegated to Tokens.
type Service struct {
	store   Store
	tokens  *Tokens
	catalog Catalog
	now     func() time.Time
}

// ServiceOption configures Service.
type ServiceOption func(*Service)

// WithServiceClock overrides the time source (useful for tests).
func WithServiceClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs a Service.
func NewService(store Store, tokens *Tokens, catalog Catalog, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth: store is required")
	}
	if tokens == nil {
		return nil, errors.New("auth: tokens are required")
	}
	s := &Service{store: store, tokens: tokens, catalog: catalog, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// EnsureReferenceData seeds roles, permissions and grants. Safe to call on
// every startup; existing records are left untouched.
func (s *Service) EnsureReferenceData(ctx context.Context) error {
	return s.store.EnsureCatalog(ctx, s.catalog)
}

// Register creates a new active account. New accounts start with the staff
// role; promoting to leader is an administrative action on the store.
func (s *Service) Register(ctx context.Context, email, username, password string) (Identity, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || !strings.Contains(email, "@") {
		return Identity{}, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	username = strings.TrimSpace(username)
	if len(username) < minUsernameLength {
		return Identity{}, fmt.Errorf("%w: username must be at least %d characters", ErrInvalidInput, minUsernameLength)
	}
	if len(password) < minPasswordLength {
		return Identity{}, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLength)
	}
	if _, err := s.store.FindUserByEmail(ctx, email); err == nil {
		return Identity{}, fmt.Errorf("%w: email already registered", ErrConflict)
	} else if !errors.Is(err, ErrNotFound) {
		return Identity{}, err
	}
	role, err := s.store.FindRoleByName(ctx, RoleStaff)
	if err != nil {
		return Identity{}, fmt.Errorf("resolve default role: %w", err)
	}
	hash, err := HashPassword(password)
	if err != nil {
		return Identity{}, err
	}
	user := &User{
		Email:        email,
		Username:     username,
		PasswordHash: hash,
		RoleID:       role.ID,
		Active:       true,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return Identity{}, err
	}
	return IdentityOf(*user), nil
}

// Login verifies credentials, marks the account active and issues a token.
// Invalid credentials and unknown accounts are indistinguishable to callers.
func (s *Service) Login(ctx context.Context, email, password string) (string, time.Time, Identity, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return "", time.Time{}, Identity{}, ErrUnauthenticated
	}
	user, err := s.store.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", time.Time{}, Identity{}, ErrUnauthenticated
		}
		return "", time.Time{}, Identity{}, err
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		return "", time.Time{}, Identity{}, ErrUnauthenticated
	}
	if err := s.store.SetUserActive(ctx, user.ID, true); err != nil {
		return "", time.Time{}, Identity{}, err
	}
	user.Active = true
	token, expiresAt, err := s.tokens.Issue(user.ID)
	if err != nil {
		return "", time.Time{}, Identity{}, err
	}
	return token, expiresAt, IdentityOf(*user), nil
}

// Signout marks the account inactive. Tokens stay stateless; clients discard
// theirs.
func (s *Service) Signout(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	return s.store.SetUserActive(ctx, userID, false)
}

// ChangePassword verifies the current password before storing the new one.
func (s *Service) ChangePassword(ctx context.Context, userID, current, next string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if len(next) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLength)
	}
	user, err := s.store.FindUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := VerifyPassword(user.PasswordHash, current); err != nil {
		return ErrUnauthenticated
	}
	hash, err := HashPassword(next)
	if err != nil {
		return err
	}
	return s.store.SetUserPassword(ctx, userID, hash)
}

// DeleteAccount removes the account entirely.
func (s *Service) DeleteAccount(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	return s.store.DeleteUser(ctx, userID)
}
