// Package domain holds typed identifiers shared across modules. Typed IDs
// make cross-entity assignment a compile error instead of a data bug.
package domain

import (
	"github.com/google/uuid"

	dErrors "celebrate/pkg/domain-errors"
)

// DonorID identifies the donor behind a celebration. Donation history
// aggregation and creation locking both key on it.
type DonorID uuid.UUID

// CelebrationID identifies a single escrowed donation.
type CelebrationID uuid.UUID

// RecipientID is the candidate/committee identifier donations are bound to
// (pol_id in the persisted shape). Supplied by the upstream candidate feed,
// so it stays an opaque string rather than a UUID.
type RecipientID string

// BillID identifies the bill whose trigger condition resolves a celebration.
type BillID string

// SessionID identifies a congressional session for end-of-session sweeps.
type SessionID string

func NewDonorID() DonorID             { return DonorID(uuid.New()) }
func NewCelebrationID() CelebrationID { return CelebrationID(uuid.New()) }

// ParseDonorID validates and converts a string into a DonorID.
// Rejects empty, malformed, and nil UUIDs.
func ParseDonorID(s string) (DonorID, error) {
	u, err := parseUUID(s, "donor_id")
	return DonorID(u), err
}

// ParseCelebrationID validates and converts a string into a CelebrationID.
func ParseCelebrationID(s string) (CelebrationID, error) {
	u, err := parseUUID(s, "celebration_id")
	return CelebrationID(u), err
}

func parseUUID(s, field string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s cannot be empty", field)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s is not a valid UUID", field)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s cannot be the nil UUID", field)
	}
	return u, nil
}

func (id DonorID) String() string { return uuid.UUID(id).String() }
func (id DonorID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

func (id CelebrationID) String() string { return uuid.UUID(id).String() }
func (id CelebrationID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

// Text marshalling keeps IDs as canonical UUID strings on the wire.

func (id DonorID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *DonorID) UnmarshalText(data []byte) error {
	parsed, err := ParseDonorID(string(data))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id CelebrationID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *CelebrationID) UnmarshalText(data []byte) error {
	parsed, err := ParseCelebrationID(string(data))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id RecipientID) String() string { return string(id) }
func (id BillID) String() string      { return string(id) }
func (id SessionID) String() string   { return string(id) }
