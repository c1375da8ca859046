package compliance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "celebrate/pkg/platform/audit"
	auditmemory "celebrate/pkg/platform/audit/store/memory"
)

type failingStore struct{ err error }

func (s *failingStore) Append(context.Context, audit.Event) error { return s.err }

func TestEmit(t *testing.T) {
	ctx := context.Background()

	t.Run("persists the event with its category and timestamp", func(t *testing.T) {
		store := auditmemory.NewInMemoryStore()
		pub := New(store)

		err := pub.Emit(ctx, audit.Event{Action: string(audit.EventDonationValidated)})
		require.NoError(t, err)

		events, err := store.ListAll(ctx)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, audit.CategoryCompliance, events[0].Category)
		assert.False(t, events[0].Timestamp.IsZero())
	})

	t.Run("preserves an explicit timestamp", func(t *testing.T) {
		store := auditmemory.NewInMemoryStore()
		pub := New(store)

		stamped := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
		err := pub.Emit(ctx, audit.Event{
			Action:    string(audit.EventPaymentCaptured),
			Timestamp: stamped,
		})
		require.NoError(t, err)

		events, err := store.ListAll(ctx)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.True(t, events[0].Timestamp.Equal(stamped))
	})

	t.Run("rejects events without an action", func(t *testing.T) {
		pub := New(auditmemory.NewInMemoryStore())
		err := pub.Emit(ctx, audit.Event{})
		assert.Error(t, err)
	})

	t.Run("fails closed when the store fails", func(t *testing.T) {
		storeErr := errors.New("outbox unavailable")
		pub := New(&failingStore{err: storeErr})

		err := pub.Emit(ctx, audit.Event{Action: string(audit.EventDonationRejected)})
		require.Error(t, err)
		assert.ErrorIs(t, err, storeErr)
	})
}
