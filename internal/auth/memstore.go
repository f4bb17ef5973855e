package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"taskforge.org/internal/ids"
)

// MemStore implements Store in process memory. Used in tests and when the
// server runs without a database.
type MemStore struct {
	mu          sync.RWMutex
	users       map[string]*User
	usersByMail map[string]string
	roles       map[string]*Role
	rolesByName map[string]string
	perms       map[string]*Permission // keyed by code
	permsByID   map[string]string      // id -> code
	grants      map[string]map[string]struct{} // roleID -> permissionID set
}

var _ Store = (*MemStore)(nil)

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		users:       make(map[string]*User),
		usersByMail: make(map[string]string),
		roles:       make(map[string]*Role),
		rolesByName: make(map[string]string),
		perms:       make(map[string]*Permission),
		permsByID:   make(map[string]string),
		grants:      make(map[string]map[string]struct{}),
	}
}

func (s *MemStore) CreateUser(ctx context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.usersByMail[u.Email]; exists {
		return fmt.Errorf("%w: email %s", ErrConflict, u.Email)
	}
	if u.ID == "" {
		u.ID = ids.New()
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	cp := *u
	s.users[u.ID] = &cp
	s.usersByMail[u.Email] = u.ID
	return nil
}

func (s *MemStore) FindUserByID(ctx context.Context, id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *MemStore) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.usersByMail[email]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s.users[id]
	return &cp, nil
}

func (s *MemStore) SetUserActive(ctx context.Context, id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return ErrNotFound
	}
	u.Active = active
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemStore) SetUserPassword(ctx context.Context, id, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return ErrNotFound
	}
	u.PasswordHash = passwordHash
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemStore) DeleteUser(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return ErrNotFound
	}
	delete(s.usersByMail, u.Email)
	delete(s.users, id)
	return nil
}

func (s *MemStore) FindRoleByID(ctx context.Context, id string) (*Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	role, ok := s.roles[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *role
	return &cp, nil
}

func (s *MemStore) FindRoleByName(ctx context.Context, name string) (*Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.rolesByName[name]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s.roles[id]
	return &cp, nil
}

func (s *MemStore) FindPermissionByCode(ctx context.Context, code string) (*Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	perm, ok := s.perms[code]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *perm
	return &cp, nil
}

func (s *MemStore) RoleHasPermission(ctx context.Context, roleID, permissionID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set, ok := s.grants[roleID]
	if !ok {
		return false, nil
	}
	_, granted := set[permissionID]
	return granted, nil
}

func (s *MemStore) EnsureCatalog(ctx context.Context, cat Catalog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, role := range cat.Roles {
		if _, exists := s.rolesByName[role.Name]; exists {
			continue
		}
		cp := role
		if cp.ID == "" {
			cp.ID = ids.New()
		}
		s.roles[cp.ID] = &cp
		s.rolesByName[cp.Name] = cp.ID
	}
	for _, perm := range cat.Permissions {
		if _, exists := s.perms[perm.Code]; exists {
			continue
		}
		cp := perm
		if cp.ID == "" {
			cp.ID = ids.New()
		}
		s.perms[cp.Code] = &cp
		s.permsByID[cp.ID] = cp.Code
	}
	for roleName, codes := range cat.Grants {
		roleID, ok := s.rolesByName[roleName]
		if !ok {
			return fmt.Errorf("%w: grant references unknown role %s", ErrMisconfigured, roleName)
		}
		set, ok := s.grants[roleID]
		if !ok {
			set = make(map[string]struct{})
			s.grants[roleID] = set
		}
		for _, code := range codes {
			perm, ok := s.perms[code]
			if !ok {
				return fmt.Errorf("%w: grant references unknown permission %s", ErrMisconfigured, code)
			}
			set[perm.ID] = struct{}{}
		}
	}
	return nil
}
