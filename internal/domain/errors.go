package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure — no infrastructure dependency.

var (
	// Redemption errors
	ErrInvalidFormat = errors.New("card code format is invalid")
	// ErrInvalidCard deliberately covers not-found, expired, exhausted and
	// disabled cards alike so callers cannot probe which codes exist.
	ErrInvalidCard = errors.New("card is invalid, expired or used up")

	// Issuance errors
	ErrDuplicateCode       = errors.New("card code already exists")
	ErrGenerationExhausted = errors.New("code generation retries exhausted")
	ErrUnknownResource     = errors.New("resource does not exist")
	ErrInvalidBatchCount   = errors.New("batch count must be between 1 and 100")
	ErrNoResources         = errors.New("at least one resource is required")
	ErrInvalidMaxUses      = errors.New("max uses must be at least 1 or unlimited")

	// Admin errors
	ErrCardNotFound     = errors.New("card not found")
	ErrResourceNotFound = errors.New("resource not found")
	ErrBadCredentials   = errors.New("invalid username or password")
)
