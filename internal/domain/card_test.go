package domain

import (
	"testing"
	"time"
)

func TestCard_Exhausted(t *testing.T) {
	tests := []struct {
		name    string
		maxUses int
		current int
		want    bool
	}{
		{"fresh", 3, 0, false},
		{"partial", 3, 2, false},
		{"at limit", 3, 3, true},
		{"unlimited never exhausts", UnlimitedUses, 100000, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Card{MaxUses: tt.maxUses, CurrentUses: tt.current}
			if got := c.Exhausted(); got != tt.want {
				t.Errorf("Exhausted() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCard_Expired(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	if (&Card{}).Expired(now) {
		t.Error("card without expiry should never expire")
	}
	if !(&Card{ExpiresAt: &past}).Expired(now) {
		t.Error("card with past expiry should be expired")
	}
	if (&Card{ExpiresAt: &future}).Expired(now) {
		t.Error("card with future expiry should not be expired")
	}
	// Expiry boundary is exclusive: expires_at == now counts as expired.
	if !(&Card{ExpiresAt: &now}).Expired(now) {
		t.Error("card expiring exactly now should be expired")
	}
}

func TestCard_Redeemable(t *testing.T) {
	now := time.Now()
	future := now.Add(time.Hour)

	tests := []struct {
		name string
		card Card
		want bool
	}{
		{"active with uses left", Card{Status: CardActive, MaxUses: 3, CurrentUses: 1}, true},
		{"active unlimited", Card{Status: CardActive, MaxUses: UnlimitedUses, CurrentUses: 9}, true},
		{"used", Card{Status: CardUsed, MaxUses: 1, CurrentUses: 1}, false},
		{"disabled", Card{Status: CardDisabled, MaxUses: 3}, false},
		{"exhausted but still active", Card{Status: CardActive, MaxUses: 2, CurrentUses: 2}, false},
		{"future expiry ok", Card{Status: CardActive, MaxUses: 1, ExpiresAt: &future}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.card.Redeemable(now); got != tt.want {
				t.Errorf("Redeemable() = %v, want %v", got, tt.want)
			}
		})
	}
}
