package router

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "celebrate/pkg/platform/audit"
)

type recordingPublisher struct {
	events []audit.Event
	err    error
}

func (p *recordingPublisher) Emit(_ context.Context, event audit.Event) error {
	p.events = append(p.events, event)
	return p.err
}

func TestEmitRoutesByCategory(t *testing.T) {
	ctx := context.Background()

	t.Run("compliance events go to the compliance publisher", func(t *testing.T) {
		compliancePub := &recordingPublisher{}
		opsPub := &recordingPublisher{}
		r := New(compliancePub, opsPub)

		for _, action := range []audit.AuditEvent{
			audit.EventCelebrationCreated,
			audit.EventStatusTransitioned,
			audit.EventPaymentCaptured,
		} {
			err := r.Emit(ctx, audit.Event{Action: string(action)})
			require.NoError(t, err)
		}

		assert.Len(t, compliancePub.events, 3)
		assert.Empty(t, opsPub.events)
	})

	t.Run("operational events go to the ops publisher", func(t *testing.T) {
		compliancePub := &recordingPublisher{}
		opsPub := &recordingPublisher{}
		r := New(compliancePub, opsPub)

		err := r.Emit(ctx, audit.Event{Action: string(audit.EventSessionSweep)})
		require.NoError(t, err)
		err = r.Emit(ctx, audit.Event{Action: string(audit.EventComplianceFallback)})
		require.NoError(t, err)

		assert.Empty(t, compliancePub.events)
		assert.Len(t, opsPub.events, 2)
	})

	t.Run("unknown actions fall through to ops", func(t *testing.T) {
		compliancePub := &recordingPublisher{}
		opsPub := &recordingPublisher{}
		r := New(compliancePub, opsPub)

		err := r.Emit(ctx, audit.Event{Action: "cache_warmed"})
		require.NoError(t, err)
		assert.Len(t, opsPub.events, 1)
	})

	t.Run("compliance delegate errors fail the caller", func(t *testing.T) {
		compliancePub := &recordingPublisher{err: errors.New("outbox down")}
		r := New(compliancePub, &recordingPublisher{})

		err := r.Emit(ctx, audit.Event{Action: string(audit.EventCelebrationCreated)})
		assert.Error(t, err)
	})
}
