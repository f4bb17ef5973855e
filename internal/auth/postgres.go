package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"taskforge.org/internal/ids"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	db *sql.DB
}

// NewPGStore wraps an open database handle.
func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) CreateUser(ctx context.Context, u *User) error {
	if u.ID == "" {
		u.ID = ids.New()
	}
	row := s.db.QueryRowContext(ctx,
		`insert into users(id, email, username, password_hash, role_id, active)
		 values($1,$2,$3,$4,$5,$6)
		 returning created_at, updated_at`,
		u.ID, u.Email, u.Username, u.PasswordHash, u.RoleID, u.Active,
	)
	return row.Scan(&u.CreatedAt, &u.UpdatedAt)
}

func (s *PGStore) FindUserByID(ctx context.Context, id string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, email, username, password_hash, role_id, active, created_at, updated_at
		 from users where id=$1`, id)
	return scanUser(row)
}

func (s *PGStore) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, email, username, password_hash, role_id, active, created_at, updated_at
		 from users where email=$1`, email)
	return scanUser(row)
}

func scanUser(row *sql.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.Username, &u.PasswordHash, &u.RoleID,
		&u.Active, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *PGStore) SetUserActive(ctx context.Context, id string, active bool) error {
	res, err := s.db.ExecContext(ctx,
		`update users set active=$2, updated_at=now() where id=$1`, id, active)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *PGStore) SetUserPassword(ctx context.Context, id, passwordHash string) error {
	res, err := s.db.ExecContext(ctx,
		`update users set password_hash=$2, updated_at=now() where id=$1`, id, passwordHash)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *PGStore) DeleteUser(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from users where id=$1`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) FindRoleByID(ctx context.Context, id string) (*Role, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, name, description from roles where id=$1`, id)
	return scanRole(row)
}

func (s *PGStore) FindRoleByName(ctx context.Context, name string) (*Role, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, name, description from roles where name=$1`, name)
	return scanRole(row)
}

func scanRole(row *sql.Row) (*Role, error) {
	var role Role
	err := row.Scan(&role.ID, &role.Name, &role.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &role, nil
}

func (s *PGStore) FindPermissionByCode(ctx context.Context, code string) (*Permission, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, code, description from permissions where code=$1`, code)
	var perm Permission
	err := row.Scan(&perm.ID, &perm.Code, &perm.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &perm, nil
}

func (s *PGStore) RoleHasPermission(ctx context.Context, roleID, permissionID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`select exists(select 1 from role_permissions where role_id=$1 and permission_id=$2)`,
		roleID, permissionID,
	).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// EnsureCatalog upserts reference data. Duplicate grants hit the unique
// (role_id, permission_id) constraint and are skipped.
func (s *PGStore) EnsureCatalog(ctx context.Context, cat Catalog) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, role := range cat.Roles {
		id := role.ID
		if id == "" {
			id = ids.New()
		}
		if _, err := tx.ExecContext(ctx,
			`insert into roles(id, name, description) values($1,$2,$3)
			 on conflict (name) do nothing`,
			id, role.Name, role.Description,
		); err != nil {
			return fmt.Errorf("ensure role %s: %w", role.Name, err)
		}
	}
	for _, perm := range cat.Permissions {
		id := perm.ID
		if id == "" {
			id = ids.New()
		}
		if _, err := tx.ExecContext(ctx,
			`insert into permissions(id, code, description) values($1,$2,$3)
			 on conflict (code) do nothing`,
			id, perm.Code, perm.Description,
		); err != nil {
			return fmt.Errorf("ensure permission %s: %w", perm.Code, err)
		}
	}
	for roleName, codes := range cat.Grants {
		for _, code := range codes {
			if _, err := tx.ExecContext(ctx,
				`insert into role_permissions(role_id, permission_id)
				 select r.id, p.id from roles r, permissions p
				 where r.name=$1 and p.code=$2
				 on conflict do nothing`,
				roleName, code,
			); err != nil {
				return fmt.Errorf("ensure grant %s->%s: %w", roleName, code, err)
			}
		}
	}
	return tx.Commit()
}
