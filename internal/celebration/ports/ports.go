// Package ports defines shared interfaces for the celebration module.
// Interfaces are placed here when consumed by multiple services to avoid duplication.
package ports

import (
	"context"
	"time"

	"celebrate/internal/celebration/models"
	compliance "celebrate/internal/compliance/models"
	"celebrate/pkg/domain"
)

// CelebrationStore persists celebrations and their status ledgers.
// AppendTransition must atomically append the entry and update
// current_status; the two must never diverge.
type CelebrationStore interface {
	// Create persists a new celebration with its initial ledger entry.
	// Returns CodeConflict when the idempotency key already exists.
	Create(ctx context.Context, c *models.Celebration) error

	// Get retrieves a celebration by ID. Returns CodeNotFound when absent.
	Get(ctx context.Context, id domain.CelebrationID) (*models.Celebration, error)

	// GetByIdempotencyKey retrieves the celebration created under key.
	GetByIdempotencyKey(ctx context.Context, key string) (*models.Celebration, error)

	// ListByDonor returns all of a donor's celebrations, oldest first.
	ListByDonor(ctx context.Context, donorID domain.DonorID) ([]*models.Celebration, error)

	// ListByBill returns celebrations bound to a bill, optionally filtered by status.
	ListByBill(ctx context.Context, billID domain.BillID, statuses ...models.Status) ([]*models.Celebration, error)

	// ListByStatus returns all celebrations currently in one of the given statuses.
	ListByStatus(ctx context.Context, statuses ...models.Status) ([]*models.Celebration, error)

	// AppendTransition atomically appends a ledger entry and moves
	// current_status to entry.NewStatus. Returns CodeConflict when the stored
	// status no longer matches entry.PreviousStatus.
	AppendTransition(ctx context.Context, id domain.CelebrationID, entry models.StatusLedgerEntry) error

	// SetChargeID records the payment charge produced on resolution.
	SetChargeID(ctx context.Context, id domain.CelebrationID, chargeID string) error
}

// Locker serializes flows that read, validate, and then write. Acquire
// blocks up to the implementation's bound and returns a release func.
// Creation holds a per-donor lock across read-validate-persist; resolution
// holds a per-celebration lock so capture runs at most once.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// ComplianceChecker is the compliance orchestrator as seen by the
// celebration creation flow.
type ComplianceChecker interface {
	CheckDonation(ctx context.Context, req compliance.CheckRequest) (*compliance.ComplianceResult, error)
	CheckPACTip(ctx context.Context, history []compliance.DonationRecord, attemptedTipCents int64) (*compliance.PACLimitResult, error)
}

// PaymentCapturer executes the charge against a payment intent when a
// celebration resolves. External collaborator; never invoked on any other
// transition.
type PaymentCapturer interface {
	Capture(ctx context.Context, paymentIntent string, amountCents int64) (chargeID string, err error)
}

// Clock is injected for deterministic ledger timestamps in tests.
type Clock func() time.Time
