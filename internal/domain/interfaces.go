package domain

import (
	"context"
	"time"
)

// ─── Service Interfaces ─────────────────────────────────────────────────────
// These interfaces define boundaries between layers.
// Infrastructure implements them; application layer depends on them.

// CardStore is what the redemption engine needs from persistence.
type CardStore interface {
	// AtomicConsume checks eligibility and takes one use in a single
	// isolated operation. Concurrent calls against a card with one
	// remaining use must yield at most one Consumed outcome.
	AtomicConsume(ctx context.Context, code string, now time.Time) (ConsumeResult, error)

	// BoundResources returns the card's active resources in stable order.
	BoundResources(ctx context.Context, cardID string) ([]Resource, error)
}

// AuditLog records redemption attempts. Append-only from the engine's
// perspective — entries are never updated or deleted.
type AuditLog interface {
	AppendUsage(ctx context.Context, entries []AuditEntry) error
}

// CreateCardParams carries everything needed to insert a card and its
// resource bindings.
type CreateCardParams struct {
	ID          string
	Code        string
	MaxUses     int
	ExpiresAt   *time.Time
	Note        string
	ResourceIDs []string
	CreatedAt   time.Time
}

// IssueStore is what the batch issuer needs from persistence.
type IssueStore interface {
	// CreateCard inserts the card and its bindings. Returns
	// ErrDuplicateCode when the code collides with an existing card and
	// ErrUnknownResource when a resource id does not exist.
	CreateCard(ctx context.Context, params CreateCardParams) (*Card, error)
}
