package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/KeaPin/kami/internal/domain"
)

// ─── Resource Operations ────────────────────────────────────────────────────

// CreateResource inserts a new active resource.
func (db *DB) CreateResource(ctx context.Context, id, name, targetURL string, createdAt time.Time) (*domain.Resource, error) {
	_, err := db.db.ExecContext(ctx, `
		INSERT INTO resources (id, name, target_url, status, created_at)
		VALUES (?, ?, ?, 'active', ?)
	`, id, name, targetURL, createdAt.Unix())
	if err != nil {
		return nil, fmt.Errorf("insert resource: %w", err)
	}
	return &domain.Resource{
		ID:        id,
		Name:      name,
		TargetURL: targetURL,
		Status:    domain.ResourceActive,
		CreatedAt: createdAt,
	}, nil
}

// GetResource returns a resource by id, or domain.ErrResourceNotFound.
func (db *DB) GetResource(ctx context.Context, id string) (*domain.Resource, error) {
	row := db.db.QueryRowContext(ctx, `
		SELECT id, name, target_url, status, created_at
		FROM resources WHERE id = ?
	`, id)
	r, err := scanResource(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrResourceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get resource: %w", err)
	}
	return r, nil
}

// ListResources returns all resources, newest first.
func (db *DB) ListResources(ctx context.Context) ([]domain.Resource, error) {
	rows, err := db.db.QueryContext(ctx, `
		SELECT id, name, target_url, status, created_at
		FROM resources ORDER BY created_at DESC, id
	`)
	if err != nil {
		return nil, fmt.Errorf("list resources: %w", err)
	}
	defer rows.Close()

	var result []domain.Resource
	for rows.Next() {
		r, err := scanResource(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *r)
	}
	return result, rows.Err()
}

// DisableResource marks a resource disabled; bound cards keep the binding
// but the resource drops out of redemption results. Idempotent.
func (db *DB) DisableResource(ctx context.Context, id string) error {
	_, err := db.db.ExecContext(ctx,
		`UPDATE resources SET status = 'disabled' WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("disable resource: %w", err)
	}
	return nil
}

// DeleteResource removes a resource and any bindings pointing at it.
// Idempotent.
func (db *DB) DeleteResource(ctx context.Context, id string) error {
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete resource: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM card_resources WHERE resource_id = ?`, id); err != nil {
		return fmt.Errorf("delete bindings: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM resources WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete resource: %w", err)
	}
	return tx.Commit()
}

func scanResource(row rowScanner) (*domain.Resource, error) {
	var r domain.Resource
	var created int64
	if err := row.Scan(&r.ID, &r.Name, &r.TargetURL, &r.Status, &created); err != nil {
		return nil, err
	}
	r.CreatedAt = time.Unix(created, 0)
	return &r, nil
}
