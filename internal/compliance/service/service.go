// Package service composes the tier policy, the limit validators, and the
// election cycle resolver into the donation compliance orchestrator.
package service

import (
	"context"
	"log/slog"
	"time"

	"celebrate/internal/compliance/cycle"
	"celebrate/internal/compliance/metrics"
	"celebrate/internal/compliance/models"
	"celebrate/internal/compliance/policy"
	"celebrate/internal/compliance/validators"
	"celebrate/pkg/domain"
	dErrors "celebrate/pkg/domain-errors"
	"celebrate/pkg/platform/audit"
	"celebrate/pkg/platform/circuit"
)

const defaultResolverTimeout = 2 * time.Second

// Service is the compliance orchestrator. Validation is request-scoped and
// stateless between calls: every check re-reads the supplied history and
// recomputes totals from scratch.
type Service struct {
	resolver        cycle.Resolver
	resolverBreaker *circuit.Breaker
	resolverTimeout time.Duration
	legacyCutoff    time.Time
	auditPublisher  audit.Publisher
	logger          *slog.Logger
	metrics         *metrics.Metrics
	now             func() time.Time
	eastern         *time.Location
}

type Option func(*Service)

// WithResolver enables enhanced, election-cycle-aware evaluation. Without a
// resolver every verdict takes the legacy path.
func WithResolver(r cycle.Resolver) Option {
	return func(s *Service) {
		s.resolver = r
	}
}

// WithResolverTimeout bounds each resolver call.
func WithResolverTimeout(d time.Duration) Option {
	return func(s *Service) {
		s.resolverTimeout = d
	}
}

// WithLegacyCycleCutoff sets the cutoff date used by the legacy per-election
// rule: history records created before it do not count toward the current
// cycle. Zero cutoff counts all records.
func WithLegacyCycleCutoff(t time.Time) Option {
	return func(s *Service) {
		s.legacyCutoff = t
	}
}

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

// WithClock injects a clock for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func New(opts ...Option) *Service {
	s := &Service{
		resolverBreaker: circuit.New("election-cycle-resolver"),
		resolverTimeout: defaultResolverTimeout,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		// tzdata can be absent in minimal containers; EST keeps the enhanced
		// guest window deterministic rather than silently going UTC.
		loc = time.FixedZone("EST", -5*60*60)
	}
	s.eastern = loc
	return s
}

// evaluation is the explicit outcome of one evaluation path. The
// enhanced/legacy split is a selected branch, never recovered control flow.
type evaluation struct {
	method    models.ValidationMethod
	compliant bool
	reason    models.Reason
}

// CheckDonation decides whether the attempted amount is legally permitted
// given the donor's tier and history. Limit-exceeded conditions are verdicts,
// not errors; errors mean malformed input.
func (s *Service) CheckDonation(ctx context.Context, req models.CheckRequest) (*models.ComplianceResult, error) {
	if req.AmountCents < 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "donation amount cannot be negative")
	}

	limits, err := policy.LimitsFor(req.Tier)
	if err != nil {
		return nil, err
	}

	if req.AmountCents < policy.MinimumDonationCents {
		return s.finish(ctx, req, limits, evaluation{
			method: models.MethodLegacy,
			reason: models.ReasonBelowMinimum,
		}), nil
	}

	// Per-donation is the cheapest, universal check; failure short-circuits
	// before the enhanced path is attempted.
	ok, err := validators.PerDonation(limits, req.AmountCents)
	if err != nil {
		return nil, err
	}
	if !ok {
		return s.finish(ctx, req, limits, evaluation{
			method: models.MethodLegacy,
			reason: models.ReasonExceedsPerDonation,
		}), nil
	}

	ev, enhancedErr := s.evaluateEnhanced(ctx, req, limits)
	if enhancedErr != nil {
		// Election dates are externally sourced and can be missing or stale.
		// A donation must never be blocked because auxiliary calendar data
		// failed to load; degrade to the conservative calendar-year rule.
		s.metrics.IncrementFallback()
		if s.logger != nil {
			s.logger.WarnContext(ctx, "election cycle resolver unavailable, using legacy validation",
				"candidate_id", req.CandidateID,
				"error", enhancedErr,
			)
		}
		s.emit(ctx, audit.Event{
			Action: string(audit.EventComplianceFallback),
			Reason: enhancedErr.Error(),
		})

		ev, err = s.evaluateLegacy(req, limits)
		if err != nil {
			return nil, err
		}
	}

	return s.finish(ctx, req, limits, ev), nil
}

// CheckPACTip decides whether a tip to the platform PAC is permitted.
// PAC limits apply uniformly across tiers.
func (s *Service) CheckPACTip(ctx context.Context, history []models.DonationRecord, attemptedTipCents int64) (*models.PACLimitResult, error) {
	result, err := validators.PACAnnual(history, attemptedTipCents, policy.PACAnnualLimitCents, s.now())
	if err != nil {
		return nil, err
	}

	s.metrics.IncrementPACVerdict(result.IsCompliant)
	if result.HasReachedLimit {
		s.emit(ctx, audit.Event{
			Action:   string(audit.EventPACLimitReached),
			Decision: decisionLabel(result.IsCompliant),
		})
	}
	return result, nil
}

// evaluateEnhanced runs the cycle-aware (compliant) or EST-midnight-aware
// (guest) aggregate check. Any resolver failure is returned to the caller,
// which selects the legacy branch.
func (s *Service) evaluateEnhanced(ctx context.Context, req models.CheckRequest, limits models.TierLimits) (evaluation, error) {
	switch req.Tier {
	case models.TierGuest:
		ok, _, err := validators.AnnualCap(req.History, limits, req.AmountCents, s.now(), s.eastern)
		if err != nil {
			return evaluation{}, err
		}
		return verdict(models.MethodEnhanced, ok, models.ReasonExceedsAnnualCap), nil

	case models.TierCompliant:
		inCycle, err := s.cyclePredicate(ctx, req.CandidateID, req.State, req.History)
		if err != nil {
			return evaluation{}, err
		}
		ok, _, err := validators.PerElection(req.History, req.CandidateID, limits, req.AmountCents, inCycle)
		if err != nil {
			return evaluation{}, err
		}
		return verdict(models.MethodEnhanced, ok, models.ReasonExceedsPerElection), nil

	default:
		return evaluation{}, dErrors.Newf(dErrors.CodeInvalidInput, "unknown compliance tier: %q", req.Tier)
	}
}

// evaluateLegacy applies calendar-year (guest) or cutoff-date (compliant)
// rules with no external data dependency.
func (s *Service) evaluateLegacy(req models.CheckRequest, limits models.TierLimits) (evaluation, error) {
	switch req.Tier {
	case models.TierGuest:
		ok, _, err := validators.AnnualCap(req.History, limits, req.AmountCents, s.now(), time.Local)
		if err != nil {
			return evaluation{}, err
		}
		return verdict(models.MethodLegacy, ok, models.ReasonExceedsAnnualCap), nil

	case models.TierCompliant:
		cutoff := s.legacyCutoff
		inCycle := func(rec models.DonationRecord) bool {
			return cutoff.IsZero() || !rec.CreatedAt.Before(cutoff)
		}
		ok, _, err := validators.PerElection(req.History, req.CandidateID, limits, req.AmountCents, inCycle)
		if err != nil {
			return evaluation{}, err
		}
		return verdict(models.MethodLegacy, ok, models.ReasonExceedsPerElection), nil

	default:
		return evaluation{}, dErrors.Newf(dErrors.CodeInvalidInput, "unknown compliance tier: %q", req.Tier)
	}
}

// cyclePredicate resolves, up front, which of the candidate's live history
// records fall inside the currently open election cycle. Resolving eagerly
// keeps the validator pure and surfaces resolver failures before any total
// is computed.
func (s *Service) cyclePredicate(ctx context.Context, candidateID domain.RecipientID, state string, history []models.DonationRecord) (func(models.DonationRecord) bool, error) {
	if s.resolver == nil {
		return nil, dErrors.New(dErrors.CodeUnavailable, "election cycle resolver not configured")
	}
	inCycle := make(map[models.DonationRecord]bool, len(history))
	for _, rec := range history {
		if !rec.IsLive() || rec.RecipientID != candidateID {
			continue
		}
		ok, err := s.resolveInCycle(ctx, candidateID, state, rec.CreatedAt)
		if err != nil {
			return nil, err
		}
		inCycle[rec] = ok
	}
	return func(rec models.DonationRecord) bool { return inCycle[rec] }, nil
}

// resolveInCycle makes one bounded resolver call and feeds the outcome to the
// resolver breaker. The breaker does not gate calls; it tracks sustained
// outages so open/close transitions land in the logs exactly once.
func (s *Service) resolveInCycle(ctx context.Context, candidateID domain.RecipientID, state string, createdAt time.Time) (bool, error) {
	rctx, cancel := context.WithTimeout(ctx, s.resolverTimeout)
	start := s.now()
	ok, err := s.resolver.InCurrentCycle(rctx, candidateID, state, createdAt)
	cancel()
	s.metrics.ObserveResolverLatency(time.Since(start))

	if err != nil {
		if _, change := s.resolverBreaker.RecordFailure(); change.Opened && s.logger != nil {
			s.logger.WarnContext(ctx, "election cycle resolver circuit opened",
				"breaker", s.resolverBreaker.Name(),
			)
		}
		return false, err
	}
	if _, change := s.resolverBreaker.RecordSuccess(); change.Closed && s.logger != nil {
		s.logger.InfoContext(ctx, "election cycle resolver circuit closed",
			"breaker", s.resolverBreaker.Name(),
		)
	}
	return ok, nil
}

// finish builds the verdict, records metrics, and emits the audit event.
func (s *Service) finish(ctx context.Context, req models.CheckRequest, limits models.TierLimits, ev evaluation) *models.ComplianceResult {
	result := &models.ComplianceResult{
		IsCompliant:      ev.compliant,
		Reason:           ev.reason,
		ValidationMethod: ev.method,
		PerDonationLimit: limits.PerDonationLimit,
		AnnualCap:        limits.AnnualCap,
		PerElectionLimit: limits.PerElectionLimit,
	}

	s.metrics.IncrementVerdict(string(ev.method), ev.compliant)

	action := audit.EventDonationValidated
	if !ev.compliant {
		action = audit.EventDonationRejected
	}
	s.emit(ctx, audit.Event{
		Action:   string(action),
		Decision: decisionLabel(ev.compliant),
		Reason:   string(ev.reason),
		Method:   string(ev.method),
	})

	return result
}

// emit publishes an audit event, logging failures without surfacing them.
// Verdict audit is observability; the status ledger is the legal record.
func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditPublisher == nil {
		return
	}
	if err := s.auditPublisher.Emit(ctx, event); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event", "action", event.Action, "error", err)
	}
}

func verdict(method models.ValidationMethod, compliant bool, failReason models.Reason) evaluation {
	ev := evaluation{method: method, compliant: compliant}
	if !compliant {
		ev.reason = failReason
	}
	return ev
}

func decisionLabel(compliant bool) string {
	if compliant {
		return "compliant"
	}
	return "non_compliant"
}
