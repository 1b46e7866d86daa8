package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/KeaPin/kami/internal/domain"
)

// ─── Admin Account Operations ───────────────────────────────────────────────

// CreateAdmin inserts an administrative account.
func (db *DB) CreateAdmin(ctx context.Context, admin domain.Admin) error {
	_, err := db.db.ExecContext(ctx, `
		INSERT INTO admins (id, username, password_hash, created_at)
		VALUES (?, ?, ?, ?)
	`, admin.ID, admin.Username, admin.PasswordHash, admin.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("insert admin: %w", err)
	}
	return nil
}

// GetAdminByUsername returns the admin with the given username, or nil
// when none exists.
func (db *DB) GetAdminByUsername(ctx context.Context, username string) (*domain.Admin, error) {
	var a domain.Admin
	var created int64
	err := db.db.QueryRowContext(ctx, `
		SELECT id, username, password_hash, created_at
		FROM admins WHERE username = ?
	`, username).Scan(&a.ID, &a.Username, &a.PasswordHash, &created)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get admin: %w", err)
	}
	a.CreatedAt = time.Unix(created, 0)
	return &a, nil
}

// CountAdmins returns the number of admin accounts.
func (db *DB) CountAdmins(ctx context.Context) (int, error) {
	var n int
	err := db.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM admins`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count admins: %w", err)
	}
	return n, nil
}
