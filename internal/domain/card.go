// Package domain contains pure business types with ZERO infrastructure imports.
// This is the innermost ring of clean architecture — it depends on nothing.
package domain

import "time"

// ─── Card Types ─────────────────────────────────────────────────────────────

// CardStatus is the lifecycle state of a card.
type CardStatus string

const (
	// CardActive cards can still be redeemed.
	CardActive CardStatus = "active"
	// CardUsed cards have exhausted their use budget. Terminal for redemption.
	CardUsed CardStatus = "used"
	// CardDisabled cards were shut off by an administrator. Terminal for redemption.
	CardDisabled CardStatus = "disabled"
)

// UnlimitedUses is the max_uses sentinel for cards with no use cap.
const UnlimitedUses = -1

// Card is a redemption code record controlling access to bound resources.
type Card struct {
	ID          string     `json:"id"`
	Code        string     `json:"code"`
	Status      CardStatus `json:"status"`
	MaxUses     int        `json:"max_uses"`
	CurrentUses int        `json:"current_uses"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	Note        string     `json:"note,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Exhausted reports whether the card has no uses left.
// Cards with UnlimitedUses never exhaust.
func (c *Card) Exhausted() bool {
	return c.MaxUses != UnlimitedUses && c.CurrentUses >= c.MaxUses
}

// Expired reports whether the card's expiry (if any) has passed at now.
func (c *Card) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && !c.ExpiresAt.After(now)
}

// Redeemable reports whether a redemption attempt at now could succeed.
func (c *Card) Redeemable(now time.Time) bool {
	return c.Status == CardActive && !c.Expired(now) && !c.Exhausted()
}

// CardSummary is a card list entry with aggregate binding information.
type CardSummary struct {
	Card
	ResourceCount int    `json:"resource_count"`
	ResourceNames string `json:"resource_names,omitempty"`
}

// ─── Resource Types ─────────────────────────────────────────────────────────

// ResourceStatus is the lifecycle state of a resource.
type ResourceStatus string

const (
	ResourceActive   ResourceStatus = "active"
	ResourceDisabled ResourceStatus = "disabled"
)

// Resource is an unlockable target. Disabled resources stay bound to cards
// but are excluded from redemption results.
type Resource struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	TargetURL string         `json:"target_url"`
	Status    ResourceStatus `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
}

// ─── Audit Types ────────────────────────────────────────────────────────────

// AuditEntry is one append-only usage log row. CardID is empty when the
// attempt could not be resolved to a card; ResourceID is nil when a
// successful redemption unlocked no resources.
type AuditEntry struct {
	ID         string    `json:"id"`
	CardID     string    `json:"card_id"`
	ResourceID *string   `json:"resource_id,omitempty"`
	Success    bool      `json:"success"`
	IPAddress  string    `json:"ip_address,omitempty"`
	UsedAt     time.Time `json:"used_at"`
}

// ─── Redemption Types ───────────────────────────────────────────────────────

// RedemptionResult is returned to the caller after a successful redemption:
// the card's post-consume state plus the resources it unlocked.
// Resources may be empty — consumption still counts.
type RedemptionResult struct {
	Card      Card       `json:"card"`
	Resources []Resource `json:"resources"`
}

// ConsumeOutcome classifies the result of an atomic consume attempt.
type ConsumeOutcome int

const (
	// ConsumeNotFound — no card exists for the code.
	ConsumeNotFound ConsumeOutcome = iota
	// ConsumeNotEligible — the card exists but is expired, disabled, or exhausted.
	ConsumeNotEligible
	// Consumed — one use was taken; Card holds the post-consume state.
	Consumed
)

// ConsumeResult reports the outcome of AtomicConsume. CardID is set for
// ConsumeNotEligible and Consumed so failed attempts can still be audited.
type ConsumeResult struct {
	Outcome ConsumeOutcome
	CardID  string
	Card    *Card
}

// ─── Admin Types ────────────────────────────────────────────────────────────

// Admin is an administrative account. Only the password hash is stored.
type Admin struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}
