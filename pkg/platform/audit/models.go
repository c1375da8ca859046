package audit

import (
	"context"
	"time"

	id "celebrate/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryCompliance covers events with legal/regulatory significance.
	// FEC recordkeeping requires tamper-proof storage and long retention.
	// Examples: donation validation verdicts, celebration creation, status
	// ledger transitions, payment captures.
	CategoryCompliance EventCategory = "compliance"

	// CategoryOperations covers events useful for debugging and operational
	// visibility. These can be sampled with shorter retention.
	// Examples: resolver fallbacks, sweep summaries.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category      EventCategory
	Timestamp     time.Time
	DonorID       id.DonorID
	CelebrationID string
	Action        string
	Decision      string
	Reason        string
	Method        string // validation method for verdict events
	RequestID     string
	// ActorID tracks who performed the action when different from the donor.
	// Used for admin transitions and congressional-session sweeps.
	ActorID string
}

type AuditEvent string

const (
	// Compliance engine events
	EventDonationValidated  AuditEvent = "donation_validated"
	EventDonationRejected   AuditEvent = "donation_rejected"
	EventPACLimitReached    AuditEvent = "pac_limit_reached"
	EventComplianceFallback AuditEvent = "compliance_fallback"

	// Celebration lifecycle events
	EventCelebrationCreated AuditEvent = "celebration_created"
	EventStatusTransitioned AuditEvent = "status_transitioned"
	EventPaymentCaptured    AuditEvent = "payment_captured"
	EventSessionSweep       AuditEvent = "session_sweep"
)

// eventCategories maps each audit event to its category.
var eventCategories = map[AuditEvent]EventCategory{
	EventDonationValidated:  CategoryCompliance,
	EventDonationRejected:   CategoryCompliance,
	EventPACLimitReached:    CategoryCompliance,
	EventCelebrationCreated: CategoryCompliance,
	EventStatusTransitioned: CategoryCompliance,
	EventPaymentCaptured:    CategoryCompliance,

	EventComplianceFallback: CategoryOperations,
	EventSessionSweep:       CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists audit events. Implementations may buffer through an outbox;
// Append returning nil must mean the event will not be lost.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// Publisher emits audit events from domain services.
type Publisher interface {
	Emit(ctx context.Context, event Event) error
}
