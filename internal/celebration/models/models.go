package models

import (
	"time"

	"github.com/google/uuid"

	compliance "celebrate/internal/compliance/models"
	"celebrate/pkg/domain"
	dErrors "celebrate/pkg/domain-errors"
)

// Status is a celebration's lifecycle state.
type Status string

const (
	// StatusActive: funds escrowed, waiting on the bill's trigger condition.
	StatusActive Status = "active"
	// StatusPaused: upstream bill status put the celebration on hold.
	StatusPaused Status = "paused"
	// StatusResolved: trigger condition met, funds charged and released.
	// Terminal for funds movement.
	StatusResolved Status = "resolved"
	// StatusDefunct: session ended or candidate dropped out before the
	// trigger fired. Funds never move. Terminal.
	StatusDefunct Status = "defunct"
)

// IsValid checks if the status is one of the supported enum values.
func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusPaused, StatusResolved, StatusDefunct:
		return true
	}
	return false
}

// IsTerminal reports whether no further transitions are permitted.
func (s Status) IsTerminal() bool {
	return s == StatusResolved || s == StatusDefunct
}

// CanTransitionTo encodes the full transition matrix:
// active → paused|resolved|defunct, paused → active|defunct, terminals → none.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusActive:
		return next == StatusPaused || next == StatusResolved || next == StatusDefunct
	case StatusPaused:
		return next == StatusActive || next == StatusDefunct
	default:
		return false
	}
}

// String returns the string representation.
func (s Status) String() string { return string(s) }

// ParseStatus creates a Status from a string, validating it.
func ParseStatus(raw string) (Status, error) {
	if raw == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "status cannot be empty")
	}
	s := Status(raw)
	if !s.IsValid() {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown status: %q", raw)
	}
	return s, nil
}

// Actor identifies what triggered a status transition.
type Actor string

const (
	ActorSystem               Actor = "system"
	ActorAdmin                Actor = "admin"
	ActorUser                 Actor = "user"
	ActorAPI                  Actor = "api"
	ActorCongressionalSession Actor = "congressional_session"
)

// IsValid checks if the actor is one of the supported enum values.
func (a Actor) IsValid() bool {
	switch a {
	case ActorSystem, ActorAdmin, ActorUser, ActorAPI, ActorCongressionalSession:
		return true
	}
	return false
}

// String returns the string representation.
func (a Actor) String() string { return string(a) }

// ParseActor creates an Actor from a string, validating it.
func ParseActor(raw string) (Actor, error) {
	if raw == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "actor cannot be empty")
	}
	a := Actor(raw)
	if !a.IsValid() {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown actor: %q", raw)
	}
	return a, nil
}

// StatusLedgerEntry records one transition. Entries are never edited or
// deleted; the ledger is the sole source of truth for what happened and why.
type StatusLedgerEntry struct {
	ID                   uuid.UUID                 `json:"status_change_id"`
	PreviousStatus       Status                    `json:"previous_status"`
	NewStatus            Status                    `json:"new_status"`
	ChangedAt            time.Time                 `json:"change_datetime"`
	Reason               string                    `json:"reason"`
	TriggeredBy          Actor                     `json:"triggered_by"`
	TriggeredByID        string                    `json:"triggered_by_id,omitempty"`
	Metadata             map[string]any            `json:"metadata"`
	ComplianceTierAtTime compliance.ComplianceTier `json:"compliance_tier_at_time"`
}

// DonorInfo is the immutable snapshot of the donor's profile and compliance
// tier at the moment of donation. Kept for audit and legal purposes; must
// never be recomputed from current user state.
type DonorInfo struct {
	DonorID        domain.DonorID            `json:"donor_id"`
	Name           string                    `json:"name"`
	Email          string                    `json:"email"`
	Address        string                    `json:"address"`
	City           string                    `json:"city"`
	State          string                    `json:"state"`
	Zip            string                    `json:"zip"`
	Occupation     string                    `json:"occupation"`
	Employer       string                    `json:"employer"`
	ComplianceTier compliance.ComplianceTier `json:"compliance_tier"`
}

// Celebration is an escrowed donation pledge, conditional on a legislative
// trigger bound to BillID.
type Celebration struct {
	ID             domain.CelebrationID `json:"id"`
	IdempotencyKey string               `json:"idempotency_key"`
	DonationCents  int64                `json:"donation"`
	TipCents       int64                `json:"tip"`
	FeeCents       int64                `json:"fee"`
	RecipientID    domain.RecipientID   `json:"pol_id"`
	BillID         domain.BillID        `json:"bill_id"`
	FECID          string               `json:"FEC_id"`
	PaymentIntent  string               `json:"payment_intent"`
	ChargeID       *string              `json:"charge_id"`
	CurrentStatus  Status               `json:"current_status"`
	StatusLedger   []StatusLedgerEntry  `json:"status_ledger"`
	DonorInfo      DonorInfo            `json:"donor_info"`
	CreatedAt      time.Time            `json:"created_at"`
}

// ToDonationRecord projects the celebration into the compliance engine's
// history shape. Status flags are derived from CurrentStatus, never stored
// independently.
func (c *Celebration) ToDonationRecord() compliance.DonationRecord {
	return compliance.DonationRecord{
		AmountCents: c.DonationCents,
		TipCents:    c.TipCents,
		RecipientID: c.RecipientID,
		CreatedAt:   c.CreatedAt,
		Resolved:    c.CurrentStatus == StatusResolved,
		Defunct:     c.CurrentStatus == StatusDefunct,
		Paused:      c.CurrentStatus == StatusPaused,
	}
}

// LastLedgerEntry returns the newest ledger entry, or nil for an empty ledger.
// CurrentStatus must always equal the returned entry's NewStatus.
func (c *Celebration) LastLedgerEntry() *StatusLedgerEntry {
	if len(c.StatusLedger) == 0 {
		return nil
	}
	return &c.StatusLedger[len(c.StatusLedger)-1]
}
