package models

import (
	"time"

	"celebrate/pkg/domain"
	dErrors "celebrate/pkg/domain-errors"
)

// ComplianceTier classifies a donor for contribution-limit purposes.
type ComplianceTier string

const (
	// TierGuest: unverified donors. Low per-donation limit plus a calendar-year
	// aggregate cap.
	TierGuest ComplianceTier = "guest"
	// TierCompliant: donors with full FEC-required info on file. Higher
	// per-donation limit; aggregate cap is per candidate per election cycle.
	TierCompliant ComplianceTier = "compliant"
)

// IsValid checks if the tier is one of the supported enum values.
func (t ComplianceTier) IsValid() bool {
	switch t {
	case TierGuest, TierCompliant:
		return true
	}
	return false
}

// String returns the string representation.
func (t ComplianceTier) String() string { return string(t) }

// ParseComplianceTier creates a ComplianceTier from a string, validating it.
func ParseComplianceTier(s string) (ComplianceTier, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "compliance tier cannot be empty")
	}
	t := ComplianceTier(s)
	if !t.IsValid() {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown compliance tier: %q", s)
	}
	return t, nil
}

// ResetPolicy describes when a tier's aggregate limit window resets.
type ResetPolicy string

const (
	ResetCalendarYear  ResetPolicy = "calendar_year"
	ResetElectionCycle ResetPolicy = "election_cycle"
)

// TierLimits is the immutable limit set for a tier. Exactly one of AnnualCap
// and PerElectionLimit is non-nil, matching the tier's reset policy.
type TierLimits struct {
	PerDonationLimit int64       `json:"per_donation_limit"`
	AnnualCap        *int64      `json:"annual_cap"`
	PerElectionLimit *int64      `json:"per_election_limit"`
	ResetPolicy      ResetPolicy `json:"reset_policy"`
}

// DonationRecord is a historical contribution as seen by the validators. The
// status flags are derived from the owning celebration's current status; a
// record counts toward running totals only while live.
type DonationRecord struct {
	AmountCents int64              `json:"amount"`
	TipCents    int64              `json:"tip"`
	RecipientID domain.RecipientID `json:"recipient_id"`
	CreatedAt   time.Time          `json:"created_at"`
	Resolved    bool               `json:"resolved"`
	Defunct     bool               `json:"defunct"`
	Paused      bool               `json:"paused"`
}

// IsLive reports whether the record still counts toward running totals.
func (r DonationRecord) IsLive() bool {
	return !r.Resolved && !r.Defunct && !r.Paused
}

// ValidationMethod tags which evaluation path produced a verdict.
type ValidationMethod string

const (
	// MethodEnhanced: election-cycle-aware evaluation backed by external
	// election-date data.
	MethodEnhanced ValidationMethod = "enhanced"
	// MethodLegacy: calendar-year / cutoff-date evaluation used when the
	// election data collaborator is unavailable.
	MethodLegacy ValidationMethod = "legacy"
)

// Reason identifies which rule a non-compliant verdict tripped.
type Reason string

const (
	ReasonBelowMinimum       Reason = "below_minimum"
	ReasonExceedsPerDonation Reason = "exceeds_per_donation_limit"
	ReasonExceedsAnnualCap   Reason = "exceeds_annual_cap"
	ReasonExceedsPerElection Reason = "exceeds_per_election_limit"
)

// CheckRequest carries everything a donation compliance check needs. History
// must be the donor's full donation history; sums are recomputed from scratch
// on every call.
type CheckRequest struct {
	Tier        ComplianceTier
	AmountCents int64
	History     []DonationRecord
	CandidateID domain.RecipientID
	State       string
}

// ComplianceResult is the structured verdict returned to the donation flow.
// Limit fields are always populated so the client can explain which cap was
// hit and how much headroom remains.
type ComplianceResult struct {
	IsCompliant      bool             `json:"is_compliant"`
	Reason           Reason           `json:"reason,omitempty"`
	ValidationMethod ValidationMethod `json:"validation_method"`
	PerDonationLimit int64            `json:"per_donation_limit"`
	AnnualCap        *int64           `json:"annual_cap"`
	PerElectionLimit *int64           `json:"per_election_limit"`
}

// PACLimitResult is the verdict for a platform-PAC tip attempt. PAC limits
// apply uniformly across tiers.
type PACLimitResult struct {
	IsCompliant     bool  `json:"is_compliant"`
	AttemptedTip    int64 `json:"attempted_tip_amount"`
	CurrentTotal    int64 `json:"current_pac_total"`
	Remaining       int64 `json:"remaining_pac_limit"`
	WouldExceed     bool  `json:"would_exceed"`
	HasReachedLimit bool  `json:"has_reached_limit"`
	Limit           int64 `json:"pac_limit"`
}
