package ops

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "celebrate/pkg/platform/audit"
	auditmemory "celebrate/pkg/platform/audit/store/memory"
)

func TestEmitNeverFails(t *testing.T) {
	ctx := context.Background()
	store := auditmemory.NewInMemoryStore()
	pub := New(store)
	defer pub.Close()

	err := pub.Emit(ctx, audit.Event{Action: string(audit.EventSessionSweep)})
	require.NoError(t, err)

	// The background drain writes asynchronously.
	require.Eventually(t, func() bool {
		events, err := store.ListAll(ctx)
		return err == nil && len(events) == 1
	}, 2*time.Second, 10*time.Millisecond)

	events, err := store.ListAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, audit.CategoryOperations, events[0].Category)
	assert.False(t, events[0].Timestamp.IsZero())
}

func TestSamplerDropsEvents(t *testing.T) {
	ctx := context.Background()
	store := auditmemory.NewInMemoryStore()

	sampler := NewSampler(1.0)
	sampler.SetRate(string(audit.EventComplianceFallback), 0)

	pub := New(store, WithSampler(sampler))
	defer pub.Close()

	require.NoError(t, pub.Emit(ctx, audit.Event{Action: string(audit.EventComplianceFallback)}))
	require.NoError(t, pub.Emit(ctx, audit.Event{Action: string(audit.EventSessionSweep)}))

	require.Eventually(t, func() bool {
		events, err := store.ListAll(ctx)
		return err == nil && len(events) == 1
	}, 2*time.Second, 10*time.Millisecond)

	events, err := store.ListAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, string(audit.EventSessionSweep), events[0].Action)
}

func TestSamplerRateClamping(t *testing.T) {
	s := NewSampler(2.0)
	assert.True(t, s.ShouldSample("anything"))

	s = NewSampler(-1.0)
	assert.False(t, s.ShouldSample("anything"))

	s = NewSampler(1.0)
	s.SetRate("quiet", -5)
	assert.False(t, s.ShouldSample("quiet"))
	assert.True(t, s.ShouldSample("other"))
}

func TestCloseIsIdempotent(t *testing.T) {
	pub := New(auditmemory.NewInMemoryStore())
	require.NoError(t, pub.Close())
	require.NoError(t, pub.Close())
}
