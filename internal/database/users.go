package database

import (
	"context"
	"database/sql"
	"fmt"

	"ghouse/pkg/types"
)

// CreateUser inserts a new account and returns it with its assigned id.
func (m *Manager) CreateUser(ctx context.Context, user *types.User) (*types.User, error) {
	err := m.executeWrite(func(db *sql.DB) error {
		res, err := db.ExecContext(ctx, `
			INSERT INTO users (username, email, password_hash, role, is_active)
			VALUES (?, ?, ?, ?, ?)
		`, user.Username, user.Email, user.PasswordHash, user.Role, user.IsActive)
		if err != nil {
			return fmt.Errorf("failed to insert user: %w", err)
		}
		user.ID, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return nil, err
	}
	return m.GetUserByID(ctx, user.ID)
}

// GetUserByID returns one account or ErrNotFound.
func (m *Manager) GetUserByID(ctx context.Context, id int64) (*types.User, error) {
	return m.scanUser(m.db.QueryRowContext(ctx, `
		SELECT id, username, email, password_hash, role, is_active, created_at
		FROM users WHERE id = ?
	`, id))
}

// GetUserByUsername returns one account or ErrNotFound.
func (m *Manager) GetUserByUsername(ctx context.Context, username string) (*types.User, error) {
	return m.scanUser(m.db.QueryRowContext(ctx, `
		SELECT id, username, email, password_hash, role, is_active, created_at
		FROM users WHERE username = ?
	`, username))
}

// ListAdminUsers returns all active administrator accounts.
func (m *Manager) ListAdminUsers(ctx context.Context) ([]*types.User, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, username, email, password_hash, role, is_active, created_at
		FROM users WHERE role = 'admin' AND is_active = 1
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query admin users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var users []*types.User
	for rows.Next() {
		user, err := m.scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// ListUsers returns accounts ordered by id.
func (m *Manager) ListUsers(ctx context.Context, limit, offset int) ([]*types.User, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, username, email, password_hash, role, is_active, created_at
		FROM users ORDER BY id LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var users []*types.User
	for rows.Next() {
		user, err := m.scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// UserUpdate carries the mutable account fields; nil means keep the current
// value.
type UserUpdate struct {
	Email    *string
	Role     *string
	IsActive *bool
}

// UpdateUser applies a partial update and returns the updated account, or
// ErrNotFound for an unknown id.
func (m *Manager) UpdateUser(ctx context.Context, id int64, upd *UserUpdate) (*types.User, error) {
	err := m.executeWrite(func(db *sql.DB) error {
		res, err := db.ExecContext(ctx, `
			UPDATE users SET
				email     = COALESCE(?, email),
				role      = COALESCE(?, role),
				is_active = COALESCE(?, is_active)
			WHERE id = ?
		`, upd.Email, upd.Role, upd.IsActive, id)
		if err != nil {
			return fmt.Errorf("failed to update user: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return m.GetUserByID(ctx, id)
}

// UpdateUserPassword replaces the stored password hash.
func (m *Manager) UpdateUserPassword(ctx context.Context, id int64, passwordHash string) error {
	return m.executeWrite(func(db *sql.DB) error {
		res, err := db.ExecContext(ctx, `UPDATE users SET password_hash = ? WHERE id = ?`, passwordHash, id)
		if err != nil {
			return fmt.Errorf("failed to update password: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// DeleteUser removes an account, or ErrNotFound for an unknown id.
func (m *Manager) DeleteUser(ctx context.Context, id int64) error {
	return m.executeWrite(func(db *sql.DB) error {
		res, err := db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("failed to delete user: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// EnsureUser creates the account if no user with that username exists.
// Used to seed the default admin on first start.
func (m *Manager) EnsureUser(ctx context.Context, user *types.User) error {
	_, err := m.GetUserByUsername(ctx, user.Username)
	if err == nil {
		return nil
	}
	if err != ErrNotFound {
		return err
	}
	_, err = m.CreateUser(ctx, user)
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (m *Manager) scanUser(row rowScanner) (*types.User, error) {
	var user types.User
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.IsActive,
		&user.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return &user, nil
}
