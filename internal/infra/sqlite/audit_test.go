package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/KeaPin/kami/internal/domain"
)

func TestAppendUsage_AndRead(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	card := mustCard(t, db, "KAMI-AAAA-BBBB-CCCC", 1, nil)
	resourceID := uuid.NewString()

	now := time.Now().Truncate(time.Second)
	entries := []domain.AuditEntry{
		{ID: uuid.NewString(), CardID: card.ID, ResourceID: &resourceID, Success: true, IPAddress: "203.0.113.9", UsedAt: now},
		{ID: uuid.NewString(), CardID: card.ID, Success: false, IPAddress: "203.0.113.9", UsedAt: now},
	}
	if err := db.AppendUsage(ctx, entries); err != nil {
		t.Fatalf("AppendUsage() error: %v", err)
	}

	got, err := db.UsageEntries(ctx, card.ID)
	if err != nil {
		t.Fatalf("UsageEntries() error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("entries = %d, want 2", len(got))
	}

	var withResource, withoutResource *domain.AuditEntry
	for i := range got {
		if got[i].ResourceID != nil {
			withResource = &got[i]
		} else {
			withoutResource = &got[i]
		}
	}
	if withResource == nil || *withResource.ResourceID != resourceID {
		t.Error("entry with resource reference missing or wrong")
	}
	if !withResource.Success {
		t.Error("resource entry should be a success")
	}
	if withoutResource == nil || withoutResource.Success {
		t.Error("null-resource entry should be the failure")
	}
	if !withResource.UsedAt.Equal(now) {
		t.Errorf("used_at = %v, want %v", withResource.UsedAt, now)
	}
}

func TestAppendUsage_Empty(t *testing.T) {
	db := newTestDB(t)
	if err := db.AppendUsage(context.Background(), nil); err != nil {
		t.Errorf("AppendUsage(nil) error: %v", err)
	}
}

func TestCountUsage(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	card := mustCard(t, db, "KAMI-AAAA-BBBB-CCCC", 1, nil)

	db.AppendUsage(ctx, []domain.AuditEntry{
		{ID: uuid.NewString(), CardID: card.ID, Success: true, UsedAt: time.Now()},
		{ID: uuid.NewString(), CardID: card.ID, Success: true, UsedAt: time.Now()},
		{ID: uuid.NewString(), CardID: card.ID, Success: false, UsedAt: time.Now()},
	})

	successes, failures, err := db.CountUsage(ctx)
	if err != nil {
		t.Fatalf("CountUsage() error: %v", err)
	}
	if successes != 2 || failures != 1 {
		t.Errorf("counts = %d/%d, want 2/1", successes, failures)
	}
}

func TestUsageEntries_SurviveCardDelete(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	card := mustCard(t, db, "KAMI-AAAA-BBBB-CCCC", 1, nil)

	db.AppendUsage(ctx, []domain.AuditEntry{
		{ID: uuid.NewString(), CardID: card.ID, Success: true, UsedAt: time.Now()},
	})
	if err := db.DeleteCard(ctx, card.ID); err != nil {
		t.Fatal(err)
	}

	got, err := db.UsageEntries(ctx, card.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Errorf("audit trail gone after card delete: %d entries", len(got))
	}
}
