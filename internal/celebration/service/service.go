// Package service drives the celebration lifecycle: compliance-gated
// creation and ledger-audited status transitions. The compliance
// orchestrator is consulted only at creation; later transitions are driven
// by external political events, never by re-checking limits.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"celebrate/internal/celebration/metrics"
	"celebrate/internal/celebration/models"
	"celebrate/internal/celebration/ports"
	compliance "celebrate/internal/compliance/models"
	"celebrate/pkg/domain"
	dErrors "celebrate/pkg/domain-errors"
	"celebrate/pkg/platform/audit"
	"celebrate/pkg/requestcontext"
)

type Service struct {
	store          ports.CelebrationStore
	locker         ports.Locker
	checker        ports.ComplianceChecker
	capturer       ports.PaymentCapturer
	auditPublisher audit.Publisher
	logger         *slog.Logger
	metrics        *metrics.Metrics
	now            ports.Clock
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher audit.Publisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithPaymentCapturer wires the processor invoked on active → resolved.
func WithPaymentCapturer(capturer ports.PaymentCapturer) Option {
	return func(s *Service) {
		s.capturer = capturer
	}
}

// WithClock injects a clock for deterministic ledger timestamps in tests.
func WithClock(now ports.Clock) Option {
	return func(s *Service) {
		s.now = now
	}
}

func New(store ports.CelebrationStore, locker ports.Locker, checker ports.ComplianceChecker, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("celebration store is required")
	}
	if locker == nil {
		return nil, fmt.Errorf("locker is required")
	}
	if checker == nil {
		return nil, fmt.Errorf("compliance checker is required")
	}

	svc := &Service{
		store:   store,
		locker:  locker,
		checker: checker,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// CreateRequest carries everything needed to open a celebration. DonorInfo is
// snapshotted as supplied; it is the caller's statement of the donor's
// profile and tier at this moment.
type CreateRequest struct {
	IdempotencyKey string
	DonationCents  int64
	TipCents       int64
	FeeCents       int64
	RecipientID    domain.RecipientID
	BillID         domain.BillID
	FECID          string
	PaymentIntent  string
	State          string
	DonorInfo      models.DonorInfo
	Actor          models.Actor
}

// Create validates the attempt against the donor's full history and persists
// the celebration in active state. The donor lock is held across
// read-validate-persist so concurrent attempts cannot jointly exceed a
// limit. A duplicate idempotency key replays the original celebration,
// signalled by the returned bool being false.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*models.Celebration, bool, error) {
	if req.IdempotencyKey == "" {
		return nil, false, dErrors.New(dErrors.CodeInvalidInput, "idempotency key is required")
	}
	if req.DonorInfo.DonorID.IsNil() {
		return nil, false, dErrors.New(dErrors.CodeInvalidInput, "donor_id is required")
	}
	if !req.DonorInfo.ComplianceTier.IsValid() {
		return nil, false, dErrors.Newf(dErrors.CodeInvalidInput, "unknown compliance tier: %q", req.DonorInfo.ComplianceTier)
	}
	actor := req.Actor
	if actor == "" {
		actor = models.ActorUser
	}

	// Replay check before taking the lock: a retried request should not
	// contend with live creations.
	if existing, err := s.store.GetByIdempotencyKey(ctx, req.IdempotencyKey); err == nil {
		s.metrics.IncrementCreation("replayed")
		return existing, false, nil
	} else if !dErrors.HasCode(err, dErrors.CodeNotFound) {
		return nil, false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check idempotency key")
	}

	release, err := s.locker.Acquire(ctx, "donor:"+req.DonorInfo.DonorID.String())
	if err != nil {
		return nil, false, err
	}
	defer release()

	history, err := s.loadHistory(ctx, req.DonorInfo.DonorID)
	if err != nil {
		return nil, false, err
	}

	verdict, err := s.checker.CheckDonation(ctx, compliance.CheckRequest{
		Tier:        req.DonorInfo.ComplianceTier,
		AmountCents: req.DonationCents,
		History:     history,
		CandidateID: req.RecipientID,
		State:       req.State,
	})
	if err != nil {
		return nil, false, err
	}
	if !verdict.IsCompliant {
		s.metrics.IncrementCreation("rejected")
		return nil, false, dErrors.Newf(dErrors.CodeValidation, "donation not permitted: %s", verdict.Reason)
	}

	if req.TipCents > 0 {
		pac, err := s.checker.CheckPACTip(ctx, history, req.TipCents)
		if err != nil {
			return nil, false, err
		}
		if !pac.IsCompliant {
			s.metrics.IncrementCreation("rejected")
			return nil, false, dErrors.Newf(dErrors.CodeValidation,
				"tip not permitted: would exceed PAC annual limit (remaining %d)", pac.Remaining)
		}
	}

	now := s.now()
	celebration := &models.Celebration{
		ID:             domain.NewCelebrationID(),
		IdempotencyKey: req.IdempotencyKey,
		DonationCents:  req.DonationCents,
		TipCents:       req.TipCents,
		FeeCents:       req.FeeCents,
		RecipientID:    req.RecipientID,
		BillID:         req.BillID,
		FECID:          req.FECID,
		PaymentIntent:  req.PaymentIntent,
		CurrentStatus:  models.StatusActive,
		DonorInfo:      req.DonorInfo,
		CreatedAt:      now,
		StatusLedger: []models.StatusLedgerEntry{{
			ID:                   uuid.New(),
			PreviousStatus:       "",
			NewStatus:            models.StatusActive,
			ChangedAt:            now,
			Reason:               "celebration created",
			TriggeredBy:          actor,
			Metadata:             map[string]any{"validation_method": string(verdict.ValidationMethod)},
			ComplianceTierAtTime: req.DonorInfo.ComplianceTier,
		}},
	}

	if err := s.store.Create(ctx, celebration); err != nil {
		if dErrors.HasCode(err, dErrors.CodeConflict) {
			// Lost a race on the key; the winner's celebration is the answer.
			existing, getErr := s.store.GetByIdempotencyKey(ctx, req.IdempotencyKey)
			if getErr == nil {
				s.metrics.IncrementCreation("replayed")
				return existing, false, nil
			}
		}
		return nil, false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist celebration")
	}

	s.metrics.IncrementCreation("created")
	s.emit(ctx, audit.Event{
		Action:        string(audit.EventCelebrationCreated),
		DonorID:       req.DonorInfo.DonorID,
		CelebrationID: celebration.ID.String(),
		Decision:      "created",
		Method:        string(verdict.ValidationMethod),
		ActorID:       string(actor),
	})

	return celebration, true, nil
}

// History returns the donor's donation history in the compliance engine's
// shape, recomputed from the store on every call.
func (s *Service) History(ctx context.Context, donorID domain.DonorID) ([]compliance.DonationRecord, error) {
	return s.loadHistory(ctx, donorID)
}

func (s *Service) loadHistory(ctx context.Context, donorID domain.DonorID) ([]compliance.DonationRecord, error) {
	celebrations, err := s.store.ListByDonor(ctx, donorID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load donation history")
	}
	history := make([]compliance.DonationRecord, 0, len(celebrations))
	for _, c := range celebrations {
		history = append(history, c.ToDonationRecord())
	}
	return history, nil
}

// Get returns a celebration with its full ledger.
func (s *Service) Get(ctx context.Context, id domain.CelebrationID) (*models.Celebration, error) {
	return s.store.Get(ctx, id)
}

// Transition moves a celebration to newStatus, appending exactly one ledger
// entry. Terminal states never transition; active → resolved additionally
// captures the payment, and a capture failure aborts with no ledger write.
// Transitions for one celebration are serialized through the locker: capture
// runs before the ledger write, so the read-capture-append span must be one
// unit or two racing resolutions would both charge the donor.
func (s *Service) Transition(ctx context.Context, id domain.CelebrationID, newStatus models.Status, actor models.Actor, reason string, metadata map[string]any) (*models.StatusLedgerEntry, error) {
	if !newStatus.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "unknown status: %q", newStatus)
	}
	if !actor.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "unknown actor: %q", actor)
	}

	release, err := s.locker.Acquire(ctx, "celebration:"+id.String())
	if err != nil {
		return nil, err
	}
	defer release()

	celebration, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	current := celebration.CurrentStatus
	if current.IsTerminal() {
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation,
			"celebration %s is %s; no transition out of a terminal state", id, current)
	}
	if !current.CanTransitionTo(newStatus) {
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation,
			"transition %s → %s is not permitted", current, newStatus)
	}

	var chargeID string
	if newStatus == models.StatusResolved {
		chargeID, err = s.capture(ctx, celebration)
		if err != nil {
			// No ledger write: the celebration stays active and the trigger
			// can be retried once the processor recovers.
			return nil, err
		}
		if metadata == nil {
			metadata = make(map[string]any)
		}
		metadata["charge_id"] = chargeID
	}

	entry := models.StatusLedgerEntry{
		ID:                   uuid.New(),
		PreviousStatus:       current,
		NewStatus:            newStatus,
		ChangedAt:            s.now(),
		Reason:               reason,
		TriggeredBy:          actor,
		TriggeredByID:        requestcontext.ActorID(ctx),
		Metadata:             metadata,
		ComplianceTierAtTime: celebration.DonorInfo.ComplianceTier,
	}

	if err := s.store.AppendTransition(ctx, id, entry); err != nil {
		return nil, err
	}
	if chargeID != "" {
		if err := s.store.SetChargeID(ctx, id, chargeID); err != nil {
			return nil, err
		}
	}

	s.metrics.IncrementTransition(string(current), string(newStatus))
	s.emit(ctx, audit.Event{
		Action:        string(audit.EventStatusTransitioned),
		DonorID:       celebration.DonorInfo.DonorID,
		CelebrationID: id.String(),
		Decision:      string(newStatus),
		Reason:        reason,
		ActorID:       string(actor),
	})

	return &entry, nil
}

func (s *Service) capture(ctx context.Context, c *models.Celebration) (string, error) {
	if s.capturer == nil {
		return "", dErrors.New(dErrors.CodeInternal, "payment capturer not configured")
	}
	chargeID, err := s.capturer.Capture(ctx, c.PaymentIntent, c.DonationCents+c.TipCents+c.FeeCents)
	if err != nil {
		s.metrics.IncrementCapture("failed")
		return "", dErrors.Wrap(err, dErrors.CodeUnavailable, "payment capture failed")
	}
	s.metrics.IncrementCapture("captured")
	s.emit(ctx, audit.Event{
		Action:        string(audit.EventPaymentCaptured),
		DonorID:       c.DonorInfo.DonorID,
		CelebrationID: c.ID.String(),
		Decision:      chargeID,
	})
	return chargeID, nil
}

// DefunctBySession marks every active and paused celebration defunct at the
// end of a congressional session. Terminal celebrations are untouched.
// Invoked by the external session scheduler through the transition API.
func (s *Service) DefunctBySession(ctx context.Context, sessionID domain.SessionID, sessionEnd time.Time) (int, error) {
	open, err := s.store.ListByStatus(ctx, models.StatusActive, models.StatusPaused)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list open celebrations")
	}

	ctx = requestcontext.WithActorID(ctx, sessionID.String())
	swept := 0
	for _, c := range open {
		_, err := s.Transition(ctx, c.ID, models.StatusDefunct, models.ActorCongressionalSession,
			"congressional session ended", map[string]any{
				"session_id":  sessionID.String(),
				"session_end": sessionEnd.Format(time.RFC3339),
			})
		if err != nil {
			// Keep sweeping; one stuck document must not strand the rest.
			if s.logger != nil {
				s.logger.WarnContext(ctx, "session sweep transition failed",
					"celebration_id", c.ID, "error", err)
			}
			continue
		}
		swept++
	}

	s.emit(ctx, audit.Event{
		Action:   string(audit.EventSessionSweep),
		Decision: fmt.Sprintf("%d swept", swept),
		ActorID:  string(models.ActorCongressionalSession),
	})
	return swept, nil
}

// PauseByBill pauses every active celebration bound to a bill.
func (s *Service) PauseByBill(ctx context.Context, billID domain.BillID, reason string, metadata map[string]any) (int, error) {
	return s.sweepBill(ctx, billID, models.StatusActive, models.StatusPaused, reason, metadata)
}

// ResumeByBill reactivates every paused celebration bound to a bill.
func (s *Service) ResumeByBill(ctx context.Context, billID domain.BillID, reason string, metadata map[string]any) (int, error) {
	return s.sweepBill(ctx, billID, models.StatusPaused, models.StatusActive, reason, metadata)
}

// ResolveByBill resolves every open celebration bound to a bill whose
// trigger condition fired. Capture failures leave individual celebrations
// active for retry.
func (s *Service) ResolveByBill(ctx context.Context, billID domain.BillID, reason string, metadata map[string]any) (int, error) {
	return s.sweepBill(ctx, billID, models.StatusActive, models.StatusResolved, reason, metadata)
}

func (s *Service) sweepBill(ctx context.Context, billID domain.BillID, from, to models.Status, reason string, metadata map[string]any) (int, error) {
	celebrations, err := s.store.ListByBill(ctx, billID, from)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list celebrations for bill")
	}

	changed := 0
	for _, c := range celebrations {
		meta := make(map[string]any, len(metadata))
		for k, v := range metadata {
			meta[k] = v
		}
		if _, err := s.Transition(ctx, c.ID, to, models.ActorSystem, reason, meta); err != nil {
			if s.logger != nil {
				s.logger.WarnContext(ctx, "bill sweep transition failed",
					"celebration_id", c.ID, "bill_id", billID, "error", err)
			}
			continue
		}
		changed++
	}
	return changed, nil
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditPublisher == nil {
		return
	}
	if err := s.auditPublisher.Emit(ctx, event); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event", "action", event.Action, "error", err)
	}
}
