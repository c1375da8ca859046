package handler

import (
	"strings"
	"time"

	"celebrate/internal/celebration/models"
	"celebrate/internal/celebration/service"
	compliance "celebrate/internal/compliance/models"
	id "celebrate/pkg/domain"
	dErrors "celebrate/pkg/domain-errors"
)

// CreateRequest is the HTTP request body for POST /celebrations.
// Monetary fields are integer cents.
type CreateRequest struct {
	IdempotencyKey string    `json:"idempotency_key"`
	Donation       int64     `json:"donation"`
	Tip            int64     `json:"tip"`
	Fee            int64     `json:"fee"`
	RecipientID    string    `json:"pol_id"`
	BillID         string    `json:"bill_id"`
	FECID          string    `json:"FEC_id"`
	PaymentIntent  string    `json:"payment_intent"`
	State          string    `json:"state"`
	DonorInfo      DonorInfo `json:"donor_info"`

	parsedDonorID id.DonorID
	parsedTier    compliance.ComplianceTier
}

// DonorInfo is the donor snapshot supplied at creation.
type DonorInfo struct {
	DonorID        string `json:"donor_id"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	Address        string `json:"address"`
	City           string `json:"city"`
	State          string `json:"state"`
	Zip            string `json:"zip"`
	Occupation     string `json:"occupation"`
	Employer       string `json:"employer"`
	ComplianceTier string `json:"compliance_tier"`
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *CreateRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	if r.Donation < 0 || r.Tip < 0 || r.Fee < 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "amounts must not be negative")
	}

	r.RecipientID = strings.TrimSpace(r.RecipientID)
	if r.RecipientID == "" {
		return dErrors.New(dErrors.CodeValidation, "pol_id is required")
	}
	if strings.TrimSpace(r.PaymentIntent) == "" {
		return dErrors.New(dErrors.CodeValidation, "payment_intent is required")
	}

	r.DonorInfo.DonorID = strings.TrimSpace(r.DonorInfo.DonorID)
	if r.DonorInfo.DonorID == "" {
		return dErrors.New(dErrors.CodeValidation, "donor_info.donor_id is required")
	}
	donorID, err := id.ParseDonorID(r.DonorInfo.DonorID)
	if err != nil {
		return err
	}
	r.parsedDonorID = donorID

	tier, err := compliance.ParseComplianceTier(strings.TrimSpace(r.DonorInfo.ComplianceTier))
	if err != nil {
		return err
	}
	r.parsedTier = tier

	return nil
}

// ToServiceRequest maps the validated body onto the domain request.
func (r *CreateRequest) ToServiceRequest() service.CreateRequest {
	return service.CreateRequest{
		IdempotencyKey: r.IdempotencyKey,
		DonationCents:  r.Donation,
		TipCents:       r.Tip,
		FeeCents:       r.Fee,
		RecipientID:    id.RecipientID(r.RecipientID),
		BillID:         id.BillID(r.BillID),
		FECID:          r.FECID,
		PaymentIntent:  r.PaymentIntent,
		State:          r.State,
		Actor:          models.ActorUser,
		DonorInfo: models.DonorInfo{
			DonorID:        r.parsedDonorID,
			Name:           r.DonorInfo.Name,
			Email:          r.DonorInfo.Email,
			Address:        r.DonorInfo.Address,
			City:           r.DonorInfo.City,
			State:          r.DonorInfo.State,
			Zip:            r.DonorInfo.Zip,
			Occupation:     r.DonorInfo.Occupation,
			Employer:       r.DonorInfo.Employer,
			ComplianceTier: r.parsedTier,
		},
	}
}

// TransitionRequest is the HTTP request body for POST /celebrations/{id}/transitions.
type TransitionRequest struct {
	NewStatus string         `json:"new_status"`
	Actor     string         `json:"actor"`
	Reason    string         `json:"reason"`
	Metadata  map[string]any `json:"metadata"`

	parsedStatus models.Status
	parsedActor  models.Actor
}

// Validate validates and parses the request.
func (r *TransitionRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	status, err := models.ParseStatus(strings.TrimSpace(r.NewStatus))
	if err != nil {
		return err
	}
	r.parsedStatus = status

	actorStr := strings.TrimSpace(r.Actor)
	if actorStr == "" {
		actorStr = string(models.ActorSystem)
	}
	actor, err := models.ParseActor(actorStr)
	if err != nil {
		return err
	}
	r.parsedActor = actor

	if strings.TrimSpace(r.Reason) == "" {
		return dErrors.New(dErrors.CodeValidation, "reason is required")
	}

	return nil
}

// ParsedStatus returns the validated target status.
func (r *TransitionRequest) ParsedStatus() models.Status {
	return r.parsedStatus
}

// ParsedActor returns the validated actor.
func (r *TransitionRequest) ParsedActor() models.Actor {
	return r.parsedActor
}

// SessionDefunctRequest is the HTTP request body for POST /admin/sessions/{id}/defunct.
type SessionDefunctRequest struct {
	SessionEnd string `json:"session_end"`

	parsedSessionEnd time.Time
}

// Validate validates and parses the request.
func (r *SessionDefunctRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if strings.TrimSpace(r.SessionEnd) == "" {
		r.parsedSessionEnd = time.Now().UTC()
		return nil
	}
	t, err := time.Parse(time.RFC3339, r.SessionEnd)
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, "session_end must be RFC 3339")
	}
	r.parsedSessionEnd = t
	return nil
}

// ParsedSessionEnd returns the validated session end time.
func (r *SessionDefunctRequest) ParsedSessionEnd() time.Time {
	return r.parsedSessionEnd
}

// BillSweepRequest is the HTTP request body for the bill sweep endpoints.
type BillSweepRequest struct {
	Reason   string         `json:"reason"`
	Metadata map[string]any `json:"metadata"`
}

// Validate validates the request.
func (r *BillSweepRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if strings.TrimSpace(r.Reason) == "" {
		return dErrors.New(dErrors.CodeValidation, "reason is required")
	}
	return nil
}

// SweepResponse reports how many celebrations a sweep changed.
type SweepResponse struct {
	Changed int `json:"changed"`
}
