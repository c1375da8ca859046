package handler

import (
	"strings"

	"celebrate/internal/compliance/models"
	id "celebrate/pkg/domain"
	dErrors "celebrate/pkg/domain-errors"
)

// CheckRequest is the HTTP request body for POST /compliance/check.
type CheckRequest struct {
	DonorID     string `json:"donor_id"`
	Tier        string `json:"compliance_tier"`
	Amount      int64  `json:"amount"`
	CandidateID string `json:"pol_id"`
	State       string `json:"state"`

	// Parsed values (populated by Validate)
	parsedDonorID id.DonorID
	parsedTier    models.ComplianceTier
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *CheckRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	r.DonorID = strings.TrimSpace(r.DonorID)
	if r.DonorID == "" {
		return dErrors.New(dErrors.CodeValidation, "donor_id is required")
	}
	donorID, err := id.ParseDonorID(r.DonorID)
	if err != nil {
		return err
	}
	r.parsedDonorID = donorID

	tier, err := models.ParseComplianceTier(strings.TrimSpace(r.Tier))
	if err != nil {
		return err
	}
	r.parsedTier = tier

	if r.Amount < 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "amount must not be negative")
	}

	return nil
}

// ParsedDonorID returns the validated donor ID.
func (r *CheckRequest) ParsedDonorID() id.DonorID {
	return r.parsedDonorID
}

// ParsedTier returns the validated compliance tier.
func (r *CheckRequest) ParsedTier() models.ComplianceTier {
	return r.parsedTier
}

// PACCheckRequest is the HTTP request body for POST /compliance/pac-check.
type PACCheckRequest struct {
	DonorID   string `json:"donor_id"`
	TipAmount int64  `json:"tip_amount"`

	parsedDonorID id.DonorID
}

// Validate validates and parses the request.
func (r *PACCheckRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	r.DonorID = strings.TrimSpace(r.DonorID)
	if r.DonorID == "" {
		return dErrors.New(dErrors.CodeValidation, "donor_id is required")
	}
	donorID, err := id.ParseDonorID(r.DonorID)
	if err != nil {
		return err
	}
	r.parsedDonorID = donorID

	if r.TipAmount < 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "tip_amount must not be negative")
	}

	return nil
}

// ParsedDonorID returns the validated donor ID.
func (r *PACCheckRequest) ParsedDonorID() id.DonorID {
	return r.parsedDonorID
}
