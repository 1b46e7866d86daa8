package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/KeaPin/kami/internal/domain"
)

// ─── Usage Log Operations ───────────────────────────────────────────────────
// The usage log is append-only. This package exposes no update or delete
// for it; rows outlive the cards they reference.

// AppendUsage inserts the given audit entries in one transaction.
func (db *DB) AppendUsage(ctx context.Context, entries []domain.AuditEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin usage append: %w", err)
	}
	defer tx.Rollback()

	for _, e := range entries {
		var cardID any
		if e.CardID != "" {
			cardID = e.CardID
		}
		var resourceID any
		if e.ResourceID != nil {
			resourceID = *e.ResourceID
		}
		success := 0
		if e.Success {
			success = 1
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO usage_logs (id, card_id, resource_id, success, ip_address, used_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, e.ID, cardID, resourceID, success, e.IPAddress, e.UsedAt.Unix())
		if err != nil {
			return fmt.Errorf("insert usage log: %w", err)
		}
	}
	return tx.Commit()
}

// UsageEntries returns the audit trail for a card, oldest first.
func (db *DB) UsageEntries(ctx context.Context, cardID string) ([]domain.AuditEntry, error) {
	rows, err := db.db.QueryContext(ctx, `
		SELECT id, card_id, resource_id, success, ip_address, used_at
		FROM usage_logs WHERE card_id = ?
		ORDER BY used_at, id
	`, cardID)
	if err != nil {
		return nil, fmt.Errorf("usage entries: %w", err)
	}
	defer rows.Close()

	var result []domain.AuditEntry
	for rows.Next() {
		var e domain.AuditEntry
		var card, resource sql.NullString
		var success int
		var usedAt int64
		if err := rows.Scan(&e.ID, &card, &resource, &success, &e.IPAddress, &usedAt); err != nil {
			return nil, fmt.Errorf("scan usage log: %w", err)
		}
		e.CardID = card.String
		if resource.Valid {
			r := resource.String
			e.ResourceID = &r
		}
		e.Success = success == 1
		e.UsedAt = time.Unix(usedAt, 0)
		result = append(result, e)
	}
	return result, rows.Err()
}

// CountUsage returns success/failure totals across the whole log.
func (db *DB) CountUsage(ctx context.Context) (successes, failures int64, err error) {
	err = db.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN success = 1 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN success = 0 THEN 1 ELSE 0 END), 0)
		FROM usage_logs
	`).Scan(&successes, &failures)
	return
}
