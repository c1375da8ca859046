// Package ops provides a fire-and-forget audit publisher for operational
// events. Emission never blocks the caller and never fails the calling
// operation; high-volume actions can be sampled down.
package ops

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	audit "celebrate/pkg/platform/audit"
)

// Sampler provides configurable sampling for ops events.
type Sampler struct {
	mu           sync.RWMutex
	defaultRate  float64
	rateByAction map[string]float64
}

// NewSampler creates a sampler with the given default rate.
// Rate should be between 0.0 (sample nothing) and 1.0 (sample everything).
func NewSampler(defaultRate float64) *Sampler {
	if defaultRate < 0 {
		defaultRate = 0
	}
	if defaultRate > 1 {
		defaultRate = 1
	}
	return &Sampler{
		defaultRate:  defaultRate,
		rateByAction: make(map[string]float64),
	}
}

// ShouldSample returns true if the event should be kept.
func (s *Sampler) ShouldSample(action string) bool {
	return rand.Float64() < s.rateFor(action) //nolint:gosec // sampling doesn't need crypto rand
}

// SetRate overrides the default rate for a specific action.
func (s *Sampler) SetRate(action string, rate float64) {
	if rate < 0 {
		rate = 0
	}
	if rate > 1 {
		rate = 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rateByAction[action] = rate
}

func (s *Sampler) rateFor(action string) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if rate, ok := s.rateByAction[action]; ok {
		return rate
	}
	return s.defaultRate
}

// Publisher buffers ops events through a bounded channel and drops on
// overflow. Losing an ops event is acceptable; blocking a donation is not.
type Publisher struct {
	store   audit.Store
	sampler *Sampler
	logger  *slog.Logger
	inbox   chan audit.Event
	done    chan struct{}
	once    sync.Once
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithLogger sets a logger for drop reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) { p.logger = logger }
}

// WithSampler sets the event sampler. Default keeps everything.
func WithSampler(s *Sampler) Option {
	return func(p *Publisher) { p.sampler = s }
}

// New creates an ops publisher and starts its background drain.
func New(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{
		store:   store,
		sampler: NewSampler(1.0),
		inbox:   make(chan audit.Event, 256),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	go p.drain()
	return p
}

// Emit enqueues an event without blocking. Always returns nil.
func (p *Publisher) Emit(_ context.Context, event audit.Event) error {
	if !p.sampler.ShouldSample(event.Action) {
		return nil
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	event.Category = audit.CategoryOperations
	select {
	case p.inbox <- event:
	default:
		if p.logger != nil {
			p.logger.Warn("ops audit buffer full, event dropped", "action", event.Action)
		}
	}
	return nil
}

func (p *Publisher) drain() {
	for {
		select {
		case <-p.done:
			return
		case event := <-p.inbox:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := p.store.Append(ctx, event); err != nil && p.logger != nil {
				p.logger.Warn("ops audit append failed", "action", event.Action, "error", err)
			}
			cancel()
		}
	}
}

// Close stops the background drain. Buffered events may be lost.
func (p *Publisher) Close() error {
	p.once.Do(func() { close(p.done) })
	return nil
}
