package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "celebrate/pkg/domain"
	audit "celebrate/pkg/platform/audit"
)

func TestInMemoryStore(t *testing.T) {
	ctx := context.Background()

	donorA, err := id.ParseDonorID("11111111-1111-4111-8111-111111111111")
	require.NoError(t, err)
	donorB, err := id.ParseDonorID("22222222-2222-4222-8222-222222222222")
	require.NoError(t, err)

	t.Run("append and list by donor", func(t *testing.T) {
		store := NewInMemoryStore()

		require.NoError(t, store.Append(ctx, audit.Event{DonorID: donorA, Action: "donation_validated"}))
		require.NoError(t, store.Append(ctx, audit.Event{DonorID: donorA, Action: "celebration_created"}))
		require.NoError(t, store.Append(ctx, audit.Event{DonorID: donorB, Action: "donation_rejected"}))

		events, err := store.ListByDonor(ctx, donorA)
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, "donation_validated", events[0].Action)
		assert.Equal(t, "celebration_created", events[1].Action)

		other, err := store.ListByDonor(ctx, donorB)
		require.NoError(t, err)
		require.Len(t, other, 1)
		assert.Equal(t, "donation_rejected", other[0].Action)
	})

	t.Run("list all spans donors", func(t *testing.T) {
		store := NewInMemoryStore()
		require.NoError(t, store.Append(ctx, audit.Event{DonorID: donorA, Action: "a"}))
		require.NoError(t, store.Append(ctx, audit.Event{DonorID: donorB, Action: "b"}))

		all, err := store.ListAll(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})

	t.Run("clear empties the store", func(t *testing.T) {
		store := NewInMemoryStore()
		require.NoError(t, store.Append(ctx, audit.Event{DonorID: donorA, Action: "a"}))
		store.Clear()

		events, err := store.ListByDonor(ctx, donorA)
		require.NoError(t, err)
		assert.Empty(t, events)
	})

	t.Run("unknown donor returns empty slice", func(t *testing.T) {
		store := NewInMemoryStore()
		events, err := store.ListByDonor(ctx, donorA)
		require.NoError(t, err)
		assert.Empty(t, events)
	})
}
