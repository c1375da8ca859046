// Package validators holds the pure limit predicates. No I/O, no side
// effects: every function receives the donor's history and recomputes totals
// from scratch. Business failures are values; only malformed input errors.
package validators

import (
	"time"

	"celebrate/internal/compliance/models"
	"celebrate/pkg/domain"
	dErrors "celebrate/pkg/domain-errors"
)

// PerDonation checks a single attempt against the tier's per-donation cap.
// History-independent; applies to every tier on every attempt.
func PerDonation(limits models.TierLimits, amountCents int64) (bool, error) {
	if amountCents < 0 {
		return false, dErrors.New(dErrors.CodeInvalidInput, "donation amount cannot be negative")
	}
	return amountCents <= limits.PerDonationLimit, nil
}

// AnnualCap checks the attempt against the tier's calendar-year aggregate
// cap. The year window is computed in loc: the legacy path passes time.Local,
// the enhanced guest path passes America/New_York. Returns the current live
// total alongside the verdict. Tiers without an annual cap pass trivially.
func AnnualCap(history []models.DonationRecord, limits models.TierLimits, amountCents int64, now time.Time, loc *time.Location) (bool, int64, error) {
	if amountCents < 0 {
		return false, 0, dErrors.New(dErrors.CodeInvalidInput, "donation amount cannot be negative")
	}
	if limits.AnnualCap == nil {
		return true, 0, nil
	}

	start, end := yearWindow(now, loc)
	var total int64
	for _, rec := range history {
		if !rec.IsLive() {
			continue
		}
		if rec.CreatedAt.Before(start) || !rec.CreatedAt.Before(end) {
			continue
		}
		total += rec.AmountCents
	}
	return total+amountCents <= *limits.AnnualCap, total, nil
}

// PerElection checks the attempt against the tier's per-candidate,
// per-election-cycle aggregate cap. Only records for the same candidate
// count; whether a record falls in the current cycle is delegated to the
// inCycle predicate so the caller chooses cycle-aware or cutoff-date
// semantics. Tiers without a per-election limit pass trivially.
func PerElection(history []models.DonationRecord, candidateID domain.RecipientID, limits models.TierLimits, amountCents int64, inCycle func(models.DonationRecord) bool) (bool, int64, error) {
	if amountCents < 0 {
		return false, 0, dErrors.New(dErrors.CodeInvalidInput, "donation amount cannot be negative")
	}
	if limits.PerElectionLimit == nil {
		return true, 0, nil
	}

	var total int64
	for _, rec := range history {
		if !rec.IsLive() || rec.RecipientID != candidateID {
			continue
		}
		if inCycle != nil && !inCycle(rec) {
			continue
		}
		total += rec.AmountCents
	}
	return total+amountCents <= *limits.PerElectionLimit, total, nil
}

// PACAnnual checks a tip attempt against the platform PAC's calendar-year
// cap. Sums only tip fields of live records in the current year, never
// donation amounts. Tier-independent.
func PACAnnual(history []models.DonationRecord, attemptedTipCents, limitCents int64, now time.Time) (*models.PACLimitResult, error) {
	if attemptedTipCents < 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "tip amount cannot be negative")
	}

	start, end := yearWindow(now, time.Local)
	var total int64
	for _, rec := range history {
		if !rec.IsLive() {
			continue
		}
		if rec.CreatedAt.Before(start) || !rec.CreatedAt.Before(end) {
			continue
		}
		total += rec.TipCents
	}

	remaining := limitCents - total - attemptedTipCents
	if remaining < 0 {
		remaining = 0
	}
	return &models.PACLimitResult{
		IsCompliant:     total+attemptedTipCents <= limitCents,
		AttemptedTip:    attemptedTipCents,
		CurrentTotal:    total,
		Remaining:       remaining,
		WouldExceed:     total+attemptedTipCents > limitCents,
		HasReachedLimit: total+attemptedTipCents >= limitCents,
		Limit:           limitCents,
	}, nil
}

// yearWindow returns [Jan 1 00:00, next Jan 1 00:00) of now's year in loc.
func yearWindow(now time.Time, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.Local
	}
	year := now.In(loc).Year()
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, loc)
	return start, start.AddDate(1, 0, 0)
}
