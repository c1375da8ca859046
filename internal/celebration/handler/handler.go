package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"celebrate/internal/celebration/models"
	"celebrate/internal/celebration/service"
	"celebrate/internal/platform/middleware"
	id "celebrate/pkg/domain"
	dErrors "celebrate/pkg/domain-errors"
	"celebrate/pkg/platform/httputil"
	"celebrate/pkg/requestcontext"
)

// Service defines the interface for celebration lifecycle operations.
type Service interface {
	Create(ctx context.Context, req service.CreateRequest) (*models.Celebration, bool, error)
	Get(ctx context.Context, celebrationID id.CelebrationID) (*models.Celebration, error)
	Transition(ctx context.Context, celebrationID id.CelebrationID, newStatus models.Status, actor models.Actor, reason string, metadata map[string]any) (*models.StatusLedgerEntry, error)
	DefunctBySession(ctx context.Context, sessionID id.SessionID, sessionEnd time.Time) (int, error)
	PauseByBill(ctx context.Context, billID id.BillID, reason string, metadata map[string]any) (int, error)
	ResumeByBill(ctx context.Context, billID id.BillID, reason string, metadata map[string]any) (int, error)
	ResolveByBill(ctx context.Context, billID id.BillID, reason string, metadata map[string]any) (int, error)
}

// Handler handles celebration endpoints.
type Handler struct {
	service      Service
	logger       *slog.Logger
	jwtValidator middleware.JWTValidator
}

// New creates a new celebration Handler.
func New(service Service, logger *slog.Logger, jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{
		service:      service,
		logger:       logger,
		jwtValidator: jwtValidator,
	}
}

// Register registers the celebration routes with the chi router. Bill and
// session sweeps are an admin-only surface.
func (h *Handler) Register(r chi.Router) {
	r.Post("/celebrations", h.HandleCreate)
	r.Get("/celebrations/{id}", h.HandleGet)
	r.Post("/celebrations/{id}/transitions", h.HandleTransition)

	admin := chi.NewRouter()
	admin.Use(middleware.RequireAdmin(h.jwtValidator, h.logger))
	admin.Post("/sessions/{id}/defunct", h.HandleSessionDefunct)
	admin.Post("/bills/{id}/pause", h.HandleBillPause)
	admin.Post("/bills/{id}/resume", h.HandleBillResume)
	admin.Post("/bills/{id}/resolve", h.HandleBillResolve)
	r.Mount("/admin", admin)
}

// HandleCreate handles POST /celebrations requests. A replayed idempotency
// key returns the original celebration with 200 instead of 201.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[CreateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if headerKey := r.Header.Get("Idempotency-Key"); headerKey != "" {
		req.IdempotencyKey = headerKey
	}
	if req.IdempotencyKey == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "idempotency_key is required"))
		return
	}

	celebration, created, err := h.service.Create(ctx, req.ToServiceRequest())
	if err != nil {
		h.logger.WarnContext(ctx, "celebration creation failed",
			"request_id", requestID,
			"donor_id", req.DonorInfo.DonorID,
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}

	status := http.StatusCreated
	if !created {
		status = http.StatusOK
	}

	h.logger.InfoContext(ctx, "celebration created",
		"request_id", requestID,
		"celebration_id", celebration.ID,
		"donor_id", celebration.DonorInfo.DonorID,
		"replayed", !created,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	httputil.WriteJSON(w, status, celebration)
}

// HandleGet handles GET /celebrations/{id} requests.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	celebrationID, err := id.ParseCelebrationID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	celebration, err := h.service.Get(ctx, celebrationID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, celebration)
}

// HandleTransition handles POST /celebrations/{id}/transitions requests.
// Transitions claimed by an admin actor must carry an admin bearer token;
// the token subject becomes the ledger entry's triggered_by_id.
func (h *Handler) HandleTransition(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	celebrationID, err := id.ParseCelebrationID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[TransitionRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	if req.ParsedActor() == models.ActorAdmin {
		actorID, err := h.authenticateAdmin(r)
		if err != nil {
			h.logger.WarnContext(ctx, "admin transition rejected",
				"request_id", requestID,
				"celebration_id", celebrationID,
				"error", err.Error(),
			)
			httputil.WriteError(w, err)
			return
		}
		ctx = requestcontext.WithActorID(ctx, actorID)
	}

	entry, err := h.service.Transition(ctx, celebrationID, req.ParsedStatus(), req.ParsedActor(), req.Reason, req.Metadata)
	if err != nil {
		h.logger.WarnContext(ctx, "transition failed",
			"request_id", requestID,
			"celebration_id", celebrationID,
			"new_status", req.NewStatus,
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "celebration transitioned",
		"request_id", requestID,
		"celebration_id", celebrationID,
		"previous_status", entry.PreviousStatus,
		"new_status", entry.NewStatus,
		"triggered_by", entry.TriggeredBy,
	)

	httputil.WriteJSON(w, http.StatusOK, entry)
}

// authenticateAdmin validates the bearer token and returns its subject.
func (h *Handler) authenticateAdmin(r *http.Request) (string, error) {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || token == "" {
		return "", dErrors.New(dErrors.CodeUnauthorized, "admin transitions require a bearer token")
	}
	claims, err := h.jwtValidator.ValidateToken(token)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeUnauthorized, "invalid or expired token")
	}
	if claims.Role != "admin" {
		return "", dErrors.New(dErrors.CodeForbidden, "admin role required")
	}
	return claims.Subject, nil
}

// HandleSessionDefunct handles POST /admin/sessions/{id}/defunct requests.
func (h *Handler) HandleSessionDefunct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	sessionID := id.SessionID(chi.URLParam(r, "id"))
	if sessionID == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "session id is required"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[SessionDefunctRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	swept, err := h.service.DefunctBySession(ctx, sessionID, req.ParsedSessionEnd())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "session sweep completed",
		"request_id", requestID,
		"session_id", sessionID,
		"swept", swept,
	)

	httputil.WriteJSON(w, http.StatusOK, SweepResponse{Changed: swept})
}

func (h *Handler) HandleBillPause(w http.ResponseWriter, r *http.Request) {
	h.handleBillSweep(w, r, h.service.PauseByBill)
}

func (h *Handler) HandleBillResume(w http.ResponseWriter, r *http.Request) {
	h.handleBillSweep(w, r, h.service.ResumeByBill)
}

func (h *Handler) HandleBillResolve(w http.ResponseWriter, r *http.Request) {
	h.handleBillSweep(w, r, h.service.ResolveByBill)
}

func (h *Handler) handleBillSweep(w http.ResponseWriter, r *http.Request,
	sweep func(context.Context, id.BillID, string, map[string]any) (int, error)) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	billID := id.BillID(chi.URLParam(r, "id"))
	if billID == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "bill id is required"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[BillSweepRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	changed, err := sweep(ctx, billID, req.Reason, req.Metadata)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "bill sweep completed",
		"request_id", requestID,
		"bill_id", billID,
		"changed", changed,
	)

	httputil.WriteJSON(w, http.StatusOK, SweepResponse{Changed: changed})
}
