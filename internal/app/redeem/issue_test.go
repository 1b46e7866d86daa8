package redeem

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/KeaPin/kami/internal/domain"
	"github.com/KeaPin/kami/internal/infra/observability"
)

// fakeIssueStore records created cards and can inject per-call errors.
type fakeIssueStore struct {
	created []domain.CreateCardParams
	// errs is consumed one per CreateCard call; nil entries mean success.
	errs []error
}

func (f *fakeIssueStore) CreateCard(ctx context.Context, params domain.CreateCardParams) (*domain.Card, error) {
	var err error
	if len(f.errs) > 0 {
		err, f.errs = f.errs[0], f.errs[1:]
	}
	if err != nil {
		return nil, err
	}
	f.created = append(f.created, params)
	return &domain.Card{
		ID:      params.ID,
		Code:    params.Code,
		Status:  domain.CardActive,
		MaxUses: params.MaxUses,
	}, nil
}

func TestIssueBatch_Validation(t *testing.T) {
	issuer := NewIssuer(&fakeIssueStore{}, observability.New())
	ctx := context.Background()
	base := IssueParams{Count: 1, MaxUses: 1, ResourceIDs: []string{"res-1"}}

	cases := []struct {
		name   string
		mutate func(*IssueParams)
		want   error
	}{
		{"count zero", func(p *IssueParams) { p.Count = 0 }, domain.ErrInvalidBatchCount},
		{"count over cap", func(p *IssueParams) { p.Count = MaxBatchSize + 1 }, domain.ErrInvalidBatchCount},
		{"no resources", func(p *IssueParams) { p.ResourceIDs = nil }, domain.ErrNoResources},
		{"zero max uses", func(p *IssueParams) { p.MaxUses = 0 }, domain.ErrInvalidMaxUses},
		{"negative max uses", func(p *IssueParams) { p.MaxUses = -2 }, domain.ErrInvalidMaxUses},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			params := base
			params.ResourceIDs = append([]string(nil), base.ResourceIDs...)
			tc.mutate(&params)
			if _, err := issuer.IssueBatch(ctx, params); !errors.Is(err, tc.want) {
				t.Errorf("error = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestIssueBatch_CreatesRequestedCount(t *testing.T) {
	store := &fakeIssueStore{}
	metrics := observability.New()
	issuer := NewIssuer(store, metrics)

	result, err := issuer.IssueBatch(context.Background(), IssueParams{
		Count:       5,
		MaxUses:     3,
		Note:        "launch batch",
		ResourceIDs: []string{"res-1", "res-2"},
	})
	if err != nil {
		t.Fatalf("IssueBatch() error: %v", err)
	}
	if result.Requested != 5 || len(result.Cards) != 5 {
		t.Fatalf("result = %d/%d, want 5/5", result.Requested, len(result.Cards))
	}

	seen := make(map[string]bool)
	for _, card := range result.Cards {
		if !domain.ValidCodeFormat(card.Code) {
			t.Errorf("issued code %q has invalid format", card.Code)
		}
		if seen[card.Code] {
			t.Errorf("duplicate code in batch: %s", card.Code)
		}
		seen[card.Code] = true
	}
	if got := testutil.ToFloat64(metrics.CardsIssued); got != 5 {
		t.Errorf("issued metric = %v, want 5", got)
	}
}

func TestIssueBatch_UnlimitedUsesAccepted(t *testing.T) {
	issuer := NewIssuer(&fakeIssueStore{}, observability.New())

	result, err := issuer.IssueBatch(context.Background(), IssueParams{
		Count:       1,
		MaxUses:     domain.UnlimitedUses,
		ResourceIDs: []string{"res-1"},
	})
	if err != nil {
		t.Fatalf("IssueBatch() error: %v", err)
	}
	if result.Cards[0].MaxUses != domain.UnlimitedUses {
		t.Errorf("max uses = %d", result.Cards[0].MaxUses)
	}
}

func TestIssueBatch_RetriesDuplicateCodes(t *testing.T) {
	store := &fakeIssueStore{errs: []error{domain.ErrDuplicateCode, domain.ErrDuplicateCode, nil}}
	metrics := observability.New()
	issuer := NewIssuer(store, metrics)

	result, err := issuer.IssueBatch(context.Background(), IssueParams{
		Count: 1, MaxUses: 1, ResourceIDs: []string{"res-1"},
	})
	if err != nil {
		t.Fatalf("IssueBatch() error: %v", err)
	}
	if len(result.Cards) != 1 {
		t.Fatalf("cards = %d, want 1", len(result.Cards))
	}
	if got := testutil.ToFloat64(metrics.CodeRetries); got != 2 {
		t.Errorf("retry metric = %v, want 2", got)
	}
}

func TestIssueBatch_GenerationExhausted(t *testing.T) {
	// One card issues cleanly, then every attempt collides.
	errs := []error{nil}
	for n := 0; n <= generateRetries; n++ {
		errs = append(errs, domain.ErrDuplicateCode)
	}
	store := &fakeIssueStore{errs: errs}
	issuer := NewIssuer(store, observability.New())

	result, err := issuer.IssueBatch(context.Background(), IssueParams{
		Count: 2, MaxUses: 1, ResourceIDs: []string{"res-1"},
	})
	if !errors.Is(err, domain.ErrGenerationExhausted) {
		t.Fatalf("error = %v, want ErrGenerationExhausted", err)
	}
	// The first card stays issued.
	if result == nil || result.Requested != 2 || len(result.Cards) != 1 {
		t.Errorf("partial result = %+v", result)
	}
}

func TestIssueBatch_PartialOnStoreError(t *testing.T) {
	store := &fakeIssueStore{errs: []error{nil, nil, domain.ErrUnknownResource}}
	issuer := NewIssuer(store, observability.New())

	result, err := issuer.IssueBatch(context.Background(), IssueParams{
		Count: 3, MaxUses: 1, ResourceIDs: []string{"res-missing"},
	})
	if !errors.Is(err, domain.ErrUnknownResource) {
		t.Fatalf("error = %v, want ErrUnknownResource", err)
	}
	if len(result.Cards) != 2 {
		t.Errorf("partial cards = %d, want 2", len(result.Cards))
	}
}
