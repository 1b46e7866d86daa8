package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/KeaPin/kami/internal/domain"
)

// ─── Atomic Consume ─────────────────────────────────────────────────────────

// AtomicConsume takes one use from the card identified by code, in a single
// conditional UPDATE. Eligibility (active, unexpired, uses remaining) is
// re-checked by the statement itself at commit time, so two concurrent calls
// against a card with one remaining use can never both succeed — the loser
// affects zero rows and observes NotEligible.
func (db *DB) AtomicConsume(ctx context.Context, code string, now time.Time) (domain.ConsumeResult, error) {
	res, err := db.db.ExecContext(ctx, `
		UPDATE cards
		SET current_uses = current_uses + 1,
		    status = CASE
		        WHEN max_uses != -1 AND current_uses + 1 >= max_uses THEN 'used'
		        ELSE status
		    END
		WHERE code = ?
		  AND status = 'active'
		  AND (expires_at IS NULL OR expires_at > ?)
		  AND (max_uses = -1 OR current_uses < max_uses)
	`, code, now.Unix())
	if err != nil {
		return domain.ConsumeResult{}, fmt.Errorf("consume card: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return domain.ConsumeResult{}, fmt.Errorf("consume card: %w", err)
	}

	if n == 0 {
		// Resolve why only far enough to audit: a card id means the card
		// exists but was not eligible. Callers must not expose the difference.
		var cardID string
		err := db.db.QueryRowContext(ctx, `SELECT id FROM cards WHERE code = ?`, code).Scan(&cardID)
		if err == sql.ErrNoRows {
			return domain.ConsumeResult{Outcome: domain.ConsumeNotFound}, nil
		}
		if err != nil {
			return domain.ConsumeResult{}, fmt.Errorf("resolve card: %w", err)
		}
		return domain.ConsumeResult{Outcome: domain.ConsumeNotEligible, CardID: cardID}, nil
	}

	card, err := db.getCard(ctx, `code = ?`, code)
	if err != nil {
		return domain.ConsumeResult{}, fmt.Errorf("reload consumed card: %w", err)
	}
	return domain.ConsumeResult{Outcome: domain.Consumed, CardID: card.ID, Card: card}, nil
}

// ─── Card CRUD ──────────────────────────────────────────────────────────────

// CreateCard inserts the card row and its resource bindings in one
// transaction. Returns domain.ErrDuplicateCode on a code collision and
// domain.ErrUnknownResource when a resource id does not exist.
func (db *DB) CreateCard(ctx context.Context, params domain.CreateCardParams) (*domain.Card, error) {
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin create card: %w", err)
	}
	defer tx.Rollback()

	var expiresAt any
	if params.ExpiresAt != nil {
		expiresAt = params.ExpiresAt.Unix()
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO cards (id, code, status, max_uses, current_uses, expires_at, note, created_at)
		VALUES (?, ?, 'active', ?, 0, ?, ?, ?)
	`, params.ID, params.Code, params.MaxUses, expiresAt, params.Note, params.CreatedAt.Unix())
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: cards.code") {
			return nil, domain.ErrDuplicateCode
		}
		return nil, fmt.Errorf("insert card: %w", err)
	}

	for _, resourceID := range params.ResourceIDs {
		var exists int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM resources WHERE id = ?`, resourceID).Scan(&exists); err != nil {
			return nil, fmt.Errorf("check resource: %w", err)
		}
		if exists == 0 {
			return nil, domain.ErrUnknownResource
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO card_resources (id, card_id, resource_id, created_at)
			VALUES (?, ?, ?, ?)
		`, uuid.NewString(), params.ID, resourceID, params.CreatedAt.Unix())
		if err != nil {
			return nil, fmt.Errorf("insert binding: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit create card: %w", err)
	}

	card := &domain.Card{
		ID:          params.ID,
		Code:        params.Code,
		Status:      domain.CardActive,
		MaxUses:     params.MaxUses,
		CurrentUses: 0,
		ExpiresAt:   params.ExpiresAt,
		Note:        params.Note,
		CreatedAt:   params.CreatedAt,
	}
	return card, nil
}

// GetCard returns a card by id, or domain.ErrCardNotFound.
func (db *DB) GetCard(ctx context.Context, id string) (*domain.Card, error) {
	card, err := db.getCard(ctx, `id = ?`, id)
	if err == sql.ErrNoRows {
		return nil, domain.ErrCardNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get card: %w", err)
	}
	return card, nil
}

// GetCardByCode returns a card by canonical code, or domain.ErrCardNotFound.
func (db *DB) GetCardByCode(ctx context.Context, code string) (*domain.Card, error) {
	card, err := db.getCard(ctx, `code = ?`, code)
	if err == sql.ErrNoRows {
		return nil, domain.ErrCardNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get card by code: %w", err)
	}
	return card, nil
}

func (db *DB) getCard(ctx context.Context, where string, arg any) (*domain.Card, error) {
	row := db.db.QueryRowContext(ctx, `
		SELECT id, code, status, max_uses, current_uses, expires_at, note, created_at
		FROM cards WHERE `+where, arg)
	return scanCard(row)
}

// ListCards returns card summaries newest first, optionally filtered by a
// keyword (code or note substring) and/or status.
func (db *DB) ListCards(ctx context.Context, keyword string, status domain.CardStatus) ([]domain.CardSummary, error) {
	q := `
		SELECT
			c.id, c.code, c.status, c.max_uses, c.current_uses, c.expires_at, c.note, c.created_at,
			COUNT(DISTINCT cr.resource_id),
			COALESCE(GROUP_CONCAT(DISTINCT r.name), '')
		FROM cards c
		LEFT JOIN card_resources cr ON c.id = cr.card_id
		LEFT JOIN resources r ON cr.resource_id = r.id
		WHERE 1=1`
	var args []any

	if keyword != "" {
		q += ` AND (c.code LIKE ? OR c.note LIKE ?)`
		args = append(args, "%"+keyword+"%", "%"+keyword+"%")
	}
	if status != "" {
		q += ` AND c.status = ?`
		args = append(args, string(status))
	}
	q += ` GROUP BY c.id ORDER BY c.created_at DESC, c.id`

	rows, err := db.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}
	defer rows.Close()

	var result []domain.CardSummary
	for rows.Next() {
		var s domain.CardSummary
		var expires sql.NullInt64
		var created int64
		err := rows.Scan(&s.ID, &s.Code, &s.Status, &s.MaxUses, &s.CurrentUses,
			&expires, &s.Note, &created, &s.ResourceCount, &s.ResourceNames)
		if err != nil {
			return nil, fmt.Errorf("scan card summary: %w", err)
		}
		if expires.Valid {
			t := time.Unix(expires.Int64, 0)
			s.ExpiresAt = &t
		}
		s.CreatedAt = time.Unix(created, 0)
		result = append(result, s)
	}
	return result, rows.Err()
}

// DisableCard marks a card disabled. Idempotent; disabling a missing card
// is a no-op.
func (db *DB) DisableCard(ctx context.Context, id string) error {
	_, err := db.db.ExecContext(ctx,
		`UPDATE cards SET status = 'disabled' WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("disable card: %w", err)
	}
	return nil
}

// DeleteCard removes a card and its bindings. Idempotent. Usage logs are
// left untouched — the audit trail outlives the card.
func (db *DB) DeleteCard(ctx context.Context, id string) error {
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete card: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM card_resources WHERE card_id = ?`, id); err != nil {
		return fmt.Errorf("delete bindings: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM cards WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete card: %w", err)
	}
	return tx.Commit()
}

// ─── Bound Resources ────────────────────────────────────────────────────────

// BoundResources returns the card's bound resources filtered to active
// ones, ordered by creation time then id for stability.
func (db *DB) BoundResources(ctx context.Context, cardID string) ([]domain.Resource, error) {
	rows, err := db.db.QueryContext(ctx, `
		SELECT r.id, r.name, r.target_url, r.status, r.created_at
		FROM card_resources cr
		JOIN resources r ON cr.resource_id = r.id
		WHERE cr.card_id = ? AND r.status = 'active'
		ORDER BY r.created_at, r.id
	`, cardID)
	if err != nil {
		return nil, fmt.Errorf("bound resources: %w", err)
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

// ─── Scan Helpers ───────────────────────────────────────────────────────────

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCard(row rowScanner) (*domain.Card, error) {
	var c domain.Card
	var expires sql.NullInt64
	var created int64
	err := row.Scan(&c.ID, &c.Code, &c.Status, &c.MaxUses, &c.CurrentUses,
		&expires, &c.Note, &created)
	if err != nil {
		return nil, err
	}
	if expires.Valid {
		t := time.Unix(expires.Int64, 0)
		c.ExpiresAt = &t
	}
	c.CreatedAt = time.Unix(created, 0)
	return &c, nil
}
