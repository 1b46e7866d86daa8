package redeem

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/KeaPin/kami/internal/domain"
	"github.com/KeaPin/kami/internal/infra/observability"
)

// Batch issuance limits.
const (
	// MaxBatchSize caps how many cards one request may create.
	MaxBatchSize = 100
	// generateRetries bounds regeneration attempts after a code collision.
	generateRetries = 5
)

// Issuer creates cards in batches with collision-safe code generation.
type Issuer struct {
	store   domain.IssueStore
	metrics *observability.Metrics
}

// NewIssuer wires the batch issuer.
func NewIssuer(store domain.IssueStore, metrics *observability.Metrics) *Issuer {
	return &Issuer{store: store, metrics: metrics}
}

// IssueParams describes one batch of identical cards.
type IssueParams struct {
	Count       int
	MaxUses     int
	ExpiresAt   *time.Time
	Note        string
	ResourceIDs []string
}

// BatchResult reports what a batch actually produced. Cards may be shorter
// than Requested when issuance failed partway through.
type BatchResult struct {
	Requested int           `json:"requested"`
	Cards     []domain.Card `json:"cards"`
}

// IssueBatch creates params.Count cards, each with a freshly generated
// code and the same bindings. On mid-batch failure the cards created so
// far are returned alongside the error; they are valid and stay issued.
func (i *Issuer) IssueBatch(ctx context.Context, params IssueParams) (*BatchResult, error) {
	if params.Count < 1 || params.Count > MaxBatchSize {
		return nil, domain.ErrInvalidBatchCount
	}
	if len(params.ResourceIDs) == 0 {
		return nil, domain.ErrNoResources
	}
	if params.MaxUses != domain.UnlimitedUses && params.MaxUses < 1 {
		return nil, domain.ErrInvalidMaxUses
	}

	result := &BatchResult{Requested: params.Count, Cards: make([]domain.Card, 0, params.Count)}
	for n := 0; n < params.Count; n++ {
		card, err := i.issueOne(ctx, params)
		if err != nil {
			return result, err
		}
		result.Cards = append(result.Cards, *card)
		i.metrics.CardsIssued.Inc()
	}
	return result, nil
}

// issueOne inserts a single card, regenerating the code on collision.
// The unique index on the code column is the collision authority; the
// generator never checks for duplicates up front.
func (i *Issuer) issueOne(ctx context.Context, params IssueParams) (*domain.Card, error) {
	for attempt := 0; attempt <= generateRetries; attempt++ {
		code, err := domain.GenerateCode()
		if err != nil {
			return nil, err
		}
		card, err := i.store.CreateCard(ctx, domain.CreateCardParams{
			ID:          uuid.NewString(),
			Code:        code,
			MaxUses:     params.MaxUses,
			ExpiresAt:   params.ExpiresAt,
			Note:        params.Note,
			ResourceIDs: params.ResourceIDs,
			CreatedAt:   time.Now(),
		})
		if errors.Is(err, domain.ErrDuplicateCode) {
			i.metrics.CodeRetries.Inc()
			continue
		}
		if err != nil {
			return nil, err
		}
		return card, nil
	}
	return nil, domain.ErrGenerationExhausted
}
