package redeem

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/KeaPin/kami/internal/domain"
	"github.com/KeaPin/kami/internal/infra/observability"
)

// fakeStore scripts consume outcomes and counts storage traffic.
type fakeStore struct {
	consumeCalls  int
	consume       domain.ConsumeResult
	consumeErr    error
	resources     []domain.Resource
	resourcesErr  error
	resourceCalls int
}

func (f *fakeStore) AtomicConsume(ctx context.Context, code string, now time.Time) (domain.ConsumeResult, error) {
	f.consumeCalls++
	return f.consume, f.consumeErr
}

func (f *fakeStore) BoundResources(ctx context.Context, cardID string) ([]domain.Resource, error) {
	f.resourceCalls++
	return f.resources, f.resourcesErr
}

type fakeAudit struct {
	entries []domain.AuditEntry
	err     error
}

func (f *fakeAudit) AppendUsage(ctx context.Context, entries []domain.AuditEntry) error {
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, entries...)
	return nil
}

func consumedCard(id string) domain.ConsumeResult {
	return domain.ConsumeResult{
		Outcome: domain.Consumed,
		CardID:  id,
		Card: &domain.Card{
			ID:          id,
			Code:        "KAMI-AAAA-BBBB-CCCC",
			Status:      domain.CardUsed,
			MaxUses:     1,
			CurrentUses: 1,
			CreatedAt:   time.Now(),
		},
	}
}

func TestRedeem_InvalidFormatNeverReachesStorage(t *testing.T) {
	store := &fakeStore{}
	audit := &fakeAudit{}
	engine := NewEngine(store, audit, observability.New())

	for _, raw := range []string{"", "NOPE-1234", "KAMI-SHORT", "1234-5678-9ABC-DEFG"} {
		if _, err := engine.Redeem(context.Background(), raw, "203.0.113.1"); !errors.Is(err, domain.ErrInvalidFormat) {
			t.Errorf("Redeem(%q) error = %v, want ErrInvalidFormat", raw, err)
		}
	}
	if store.consumeCalls != 0 || store.resourceCalls != 0 {
		t.Errorf("storage touched for malformed input: %d consume, %d resource calls",
			store.consumeCalls, store.resourceCalls)
	}
	if len(audit.entries) != 0 {
		t.Errorf("audit written for malformed input: %d entries", len(audit.entries))
	}
}

func TestRedeem_RejectionsAreIndistinguishable(t *testing.T) {
	// Unknown code and ineligible card must produce the identical error.
	cases := []struct {
		name    string
		consume domain.ConsumeResult
	}{
		{"not found", domain.ConsumeResult{Outcome: domain.ConsumeNotFound}},
		{"not eligible", domain.ConsumeResult{Outcome: domain.ConsumeNotEligible, CardID: "card-1"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := &fakeStore{consume: tc.consume}
			engine := NewEngine(store, &fakeAudit{}, observability.New())

			_, err := engine.Redeem(context.Background(), "KAMI-AAAA-BBBB-CCCC", "")
			if !errors.Is(err, domain.ErrInvalidCard) {
				t.Errorf("error = %v, want ErrInvalidCard", err)
			}
		})
	}
}

func TestRedeem_FailedAttemptIsAudited(t *testing.T) {
	store := &fakeStore{consume: domain.ConsumeResult{Outcome: domain.ConsumeNotEligible, CardID: "card-1"}}
	audit := &fakeAudit{}
	engine := NewEngine(store, audit, observability.New())

	engine.Redeem(context.Background(), "KAMI-AAAA-BBBB-CCCC", "203.0.113.7")

	if len(audit.entries) != 1 {
		t.Fatalf("audit entries = %d, want 1", len(audit.entries))
	}
	e := audit.entries[0]
	if e.Success || e.CardID != "card-1" || e.IPAddress != "203.0.113.7" {
		t.Errorf("failure entry = %+v", e)
	}
}

func TestRedeem_AuditErrorOnFailureIsSwallowed(t *testing.T) {
	// Rejections are best-effort audited: a broken audit log must not
	// change what the caller sees.
	store := &fakeStore{consume: domain.ConsumeResult{Outcome: domain.ConsumeNotEligible, CardID: "card-1"}}
	engine := NewEngine(store, &fakeAudit{err: errors.New("disk full")}, observability.New())

	if _, err := engine.Redeem(context.Background(), "KAMI-AAAA-BBBB-CCCC", ""); !errors.Is(err, domain.ErrInvalidCard) {
		t.Errorf("error = %v, want ErrInvalidCard", err)
	}
}

func TestRedeem_SuccessAuditsPerResource(t *testing.T) {
	store := &fakeStore{
		consume: consumedCard("card-1"),
		resources: []domain.Resource{
			{ID: "res-1", Name: "alpha", Status: domain.ResourceActive},
			{ID: "res-2", Name: "beta", Status: domain.ResourceActive},
		},
	}
	audit := &fakeAudit{}
	engine := NewEngine(store, audit, observability.New())

	result, err := engine.Redeem(context.Background(), "kami-aaaa-bbbb-cccc", "203.0.113.2")
	if err != nil {
		t.Fatalf("Redeem() error: %v", err)
	}
	if len(result.Resources) != 2 {
		t.Errorf("resources = %d, want 2", len(result.Resources))
	}
	if result.Card.CurrentUses != 1 {
		t.Errorf("card uses = %d, want 1", result.Card.CurrentUses)
	}

	if len(audit.entries) != 2 {
		t.Fatalf("audit entries = %d, want 2", len(audit.entries))
	}
	for _, e := range audit.entries {
		if !e.Success || e.CardID != "card-1" || e.ResourceID == nil {
			t.Errorf("success entry = %+v", e)
		}
	}
	if !audit.entries[0].UsedAt.Equal(audit.entries[1].UsedAt) {
		t.Error("entries from one redemption must share a timestamp")
	}
}

func TestRedeem_SuccessWithoutResources(t *testing.T) {
	store := &fakeStore{consume: consumedCard("card-1")}
	audit := &fakeAudit{}
	engine := NewEngine(store, audit, observability.New())

	result, err := engine.Redeem(context.Background(), "KAMI-AAAA-BBBB-CCCC", "")
	if err != nil {
		t.Fatalf("Redeem() error: %v", err)
	}
	if len(result.Resources) != 0 {
		t.Errorf("resources = %d, want 0", len(result.Resources))
	}
	// The consumed use still gets exactly one row, with no resource.
	if len(audit.entries) != 1 {
		t.Fatalf("audit entries = %d, want 1", len(audit.entries))
	}
	if audit.entries[0].ResourceID != nil || !audit.entries[0].Success {
		t.Errorf("entry = %+v", audit.entries[0])
	}
}

func TestRedeem_AuditErrorAfterConsumeSurfaces(t *testing.T) {
	store := &fakeStore{consume: consumedCard("card-1")}
	engine := NewEngine(store, &fakeAudit{err: errors.New("disk full")}, observability.New())

	_, err := engine.Redeem(context.Background(), "KAMI-AAAA-BBBB-CCCC", "")
	if err == nil || IsRejection(err) {
		t.Errorf("error = %v, want internal failure", err)
	}
	// One consume only. A retry here would burn a second use.
	if store.consumeCalls != 1 {
		t.Errorf("consume calls = %d, want 1", store.consumeCalls)
	}
}

func TestRedeem_StoreErrorSurfaces(t *testing.T) {
	store := &fakeStore{consumeErr: errors.New("database locked")}
	engine := NewEngine(store, &fakeAudit{}, observability.New())

	_, err := engine.Redeem(context.Background(), "KAMI-AAAA-BBBB-CCCC", "")
	if err == nil || IsRejection(err) {
		t.Errorf("error = %v, want internal failure", err)
	}
}
