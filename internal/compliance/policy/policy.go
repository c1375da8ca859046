// Package policy is the static compliance-tier limit table. Values are FEC
// contribution limits expressed in cents; they change only with regulation,
// so they live in code rather than configuration.
package policy

import (
	"celebrate/internal/compliance/models"
	dErrors "celebrate/pkg/domain-errors"
)

const (
	// MinimumDonationCents is the platform-wide floor for a single donation.
	MinimumDonationCents int64 = 100

	// GuestPerDonationCents caps a single guest donation at $50.
	GuestPerDonationCents int64 = 5_000
	// GuestAnnualCapCents caps a guest's aggregate live donations at $200 per
	// calendar year.
	GuestAnnualCapCents int64 = 20_000

	// CompliantPerDonationCents caps a single compliant-tier donation at $3,500.
	CompliantPerDonationCents int64 = 350_000
	// CompliantPerElectionCents caps aggregate live donations to one candidate
	// at $3,500 per election cycle.
	CompliantPerElectionCents int64 = 350_000

	// PACAnnualLimitCents caps aggregate tips to the platform PAC at $5,000
	// per calendar year, independent of tier.
	PACAnnualLimitCents int64 = 500_000
)

// LimitsFor returns the limit set for a tier. Adding a tier without a case
// here is a compile-time reminder via the exhaustive switch in IsValid plus
// the tests pinning each tier's limits.
func LimitsFor(tier models.ComplianceTier) (models.TierLimits, error) {
	switch tier {
	case models.TierGuest:
		cap := GuestAnnualCapCents
		return models.TierLimits{
			PerDonationLimit: GuestPerDonationCents,
			AnnualCap:        &cap,
			ResetPolicy:      models.ResetCalendarYear,
		}, nil
	case models.TierCompliant:
		perElection := CompliantPerElectionCents
		return models.TierLimits{
			PerDonationLimit: CompliantPerDonationCents,
			PerElectionLimit: &perElection,
			ResetPolicy:      models.ResetElectionCycle,
		}, nil
	default:
		return models.TierLimits{}, dErrors.Newf(dErrors.CodeInvalidInput, "unknown compliance tier: %q", tier)
	}
}
