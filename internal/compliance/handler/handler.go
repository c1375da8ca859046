package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"celebrate/internal/compliance/models"
	id "celebrate/pkg/domain"
	"celebrate/pkg/platform/httputil"
	"celebrate/pkg/requestcontext"
)

// Service defines the interface for compliance verdicts.
type Service interface {
	CheckDonation(ctx context.Context, req models.CheckRequest) (*models.ComplianceResult, error)
	CheckPACTip(ctx context.Context, history []models.DonationRecord, attemptedTipCents int64) (*models.PACLimitResult, error)
}

// HistoryProvider supplies a donor's donation history for validation.
type HistoryProvider interface {
	History(ctx context.Context, donorID id.DonorID) ([]models.DonationRecord, error)
}

// Handler wires compliance endpoints to the compliance service.
type Handler struct {
	service Service
	history HistoryProvider
	logger  *slog.Logger
}

// New constructs a compliance handler with its dependencies.
func New(service Service, history HistoryProvider, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		history: history,
		logger:  logger,
	}
}

// Register mounts compliance endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/compliance/check", h.HandleCheck)
	r.Post("/compliance/pac-check", h.HandlePACCheck)
}

// HandleCheck handles POST /compliance/check requests.
func (h *Handler) HandleCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[CheckRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	history, err := h.history.History(ctx, req.ParsedDonorID())
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to load donor history",
			"request_id", requestID,
			"donor_id", req.DonorID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	result, err := h.service.CheckDonation(ctx, models.CheckRequest{
		Tier:        req.ParsedTier(),
		AmountCents: req.Amount,
		History:     history,
		CandidateID: id.RecipientID(req.CandidateID),
		State:       req.State,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "compliance check failed",
			"request_id", requestID,
			"donor_id", req.DonorID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "compliance checked",
		"request_id", requestID,
		"donor_id", req.DonorID,
		"tier", req.Tier,
		"is_compliant", result.IsCompliant,
		"validation_method", result.ValidationMethod,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	httputil.WriteJSON(w, http.StatusOK, result)
}

// HandlePACCheck handles POST /compliance/pac-check requests.
func (h *Handler) HandlePACCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[PACCheckRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	history, err := h.history.History(ctx, req.ParsedDonorID())
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to load donor history",
			"request_id", requestID,
			"donor_id", req.DonorID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	result, err := h.service.CheckPACTip(ctx, history, req.TipAmount)
	if err != nil {
		h.logger.ErrorContext(ctx, "pac tip check failed",
			"request_id", requestID,
			"donor_id", req.DonorID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "pac tip checked",
		"request_id", requestID,
		"donor_id", req.DonorID,
		"is_compliant", result.IsCompliant,
	)

	httputil.WriteJSON(w, http.StatusOK, result)
}
