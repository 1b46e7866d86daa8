// Package redeem implements the redemption engine and batch issuance.
// It orchestrates domain logic over the storage interfaces and owns the
// policy of what callers get to learn about failures.
package redeem

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/KeaPin/kami/internal/domain"
	"github.com/KeaPin/kami/internal/infra/observability"
)

// Engine drives a single redemption attempt end to end:
// canonicalize, consume, resolve resources, audit.
type Engine struct {
	store   domain.CardStore
	audit   domain.AuditLog
	metrics *observability.Metrics
}

// NewEngine wires the redemption engine.
func NewEngine(store domain.CardStore, audit domain.AuditLog, metrics *observability.Metrics) *Engine {
	return &Engine{store: store, audit: audit, metrics: metrics}
}

// Redeem attempts to consume one use of the card identified by rawCode and
// returns the unlocked resources. origin is the caller's address, recorded
// in the audit trail.
//
// Callers learn exactly two kinds of rejection: ErrInvalidFormat when the
// input cannot be a card key at all, and ErrInvalidCard for everything
// else — unknown, expired, exhausted, and disabled cards are deliberately
// indistinguishable so the endpoint cannot be used to probe card state.
func (e *Engine) Redeem(ctx context.Context, rawCode, origin string) (*domain.RedemptionResult, error) {
	start := time.Now()

	code, err := domain.CanonicalizeCode(rawCode)
	if err != nil {
		// Malformed input never reaches storage.
		e.metrics.ObserveRedemption(observability.OutcomeInvalidFormat, 0)
		return nil, domain.ErrInvalidFormat
	}

	consume, err := e.store.AtomicConsume(ctx, code, start)
	if err != nil {
		e.metrics.ObserveRedemption(observability.OutcomeError, 0)
		return nil, fmt.Errorf("consume card: %w", err)
	}

	switch consume.Outcome {
	case domain.Consumed:
		return e.finishSuccess(ctx, consume.Card, origin, start)
	case domain.ConsumeNotEligible, domain.ConsumeNotFound:
		e.recordFailure(ctx, consume.CardID, origin, start)
		e.metrics.ObserveRedemption(observability.OutcomeInvalidCard, 0)
		return nil, domain.ErrInvalidCard
	default:
		e.metrics.ObserveRedemption(observability.OutcomeError, 0)
		return nil, fmt.Errorf("unexpected consume outcome %d", consume.Outcome)
	}
}

// finishSuccess resolves bound resources and writes the success audit
// entries. The use is already taken at this point: errors here are
// surfaced to the caller but the consumption is never rolled back, and a
// retry would burn another use.
func (e *Engine) finishSuccess(ctx context.Context, card *domain.Card, origin string, start time.Time) (*domain.RedemptionResult, error) {
	resources, err := e.store.BoundResources(ctx, card.ID)
	if err != nil {
		log.WithError(err).WithField("card_id", card.ID).
			Error("use consumed but resource resolution failed")
		e.metrics.ObserveRedemption(observability.OutcomeError, 0)
		return nil, fmt.Errorf("resolve resources: %w", err)
	}

	usedAt := time.Now()
	entries := successEntries(card.ID, resources, origin, usedAt)
	if err := e.audit.AppendUsage(ctx, entries); err != nil {
		log.WithError(err).WithField("card_id", card.ID).
			Error("use consumed but audit write failed")
		e.metrics.ObserveRedemption(observability.OutcomeError, 0)
		return nil, fmt.Errorf("record usage: %w", err)
	}

	e.metrics.ObserveRedemption(observability.OutcomeSuccess, time.Since(start).Seconds())
	return &domain.RedemptionResult{Card: *card, Resources: resources}, nil
}

// successEntries builds one audit row per unlocked resource, sharing a
// single timestamp. A card with no active resources still gets one row so
// the consumed use stays accounted for.
func successEntries(cardID string, resources []domain.Resource, origin string, usedAt time.Time) []domain.AuditEntry {
	if len(resources) == 0 {
		return []domain.AuditEntry{{
			ID:        uuid.NewString(),
			CardID:    cardID,
			Success:   true,
			IPAddress: origin,
			UsedAt:    usedAt,
		}}
	}
	entries := make([]domain.AuditEntry, 0, len(resources))
	for i := range resources {
		entries = append(entries, domain.AuditEntry{
			ID:         uuid.NewString(),
			CardID:     cardID,
			ResourceID: &resources[i].ID,
			Success:    true,
			IPAddress:  origin,
			UsedAt:     usedAt,
		})
	}
	return entries
}

// recordFailure writes a failed-attempt audit row. Best effort: the caller
// already gets a rejection either way, so an audit error is only logged.
// cardID is empty when the code resolved to no card at all.
func (e *Engine) recordFailure(ctx context.Context, cardID, origin string, usedAt time.Time) {
	entry := domain.AuditEntry{
		ID:        uuid.NewString(),
		CardID:    cardID,
		Success:   false,
		IPAddress: origin,
		UsedAt:    usedAt,
	}
	if err := e.audit.AppendUsage(ctx, []domain.AuditEntry{entry}); err != nil {
		log.WithError(err).WithField("card_id", cardID).
			Warn("failed to audit rejected redemption")
	}
}

// IsRejection reports whether err is one of the two caller-visible
// redemption rejections rather than an internal failure.
func IsRejection(err error) bool {
	return errors.Is(err, domain.ErrInvalidFormat) || errors.Is(err, domain.ErrInvalidCard)
}
