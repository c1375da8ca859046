package locker

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"celebrate/pkg/domain"
)

// TestMemoryLockerMutualExclusion proves only one holder per key at a time.
func TestMemoryLockerMutualExclusion(t *testing.T) {
	ctx := context.Background()
	locker := NewMemory()
	key := "donor:" + domain.NewDonorID().String()

	const workers = 16
	var (
		inFlight int
		peak     int
		mu       sync.Mutex
		wg       sync.WaitGroup
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := locker.Acquire(ctx, key)
			if !assert.NoError(t, err) {
				return
			}
			defer release()

			mu.Lock()
			inFlight++
			if inFlight > peak {
				peak = inFlight
			}
			mu.Unlock()

			mu.Lock()
			inFlight--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, peak, "two holders overlapped on the same key")
}

// TestMemoryLockerIndependentKeys proves locks are per key, not global.
func TestMemoryLockerIndependentKeys(t *testing.T) {
	ctx := context.Background()
	locker := NewMemory()

	releaseA, err := locker.Acquire(ctx, "donor:"+domain.NewDonorID().String())
	require.NoError(t, err)
	defer releaseA()

	// A second key's lock must not block behind the first.
	done := make(chan struct{})
	go func() {
		releaseB, err := locker.Acquire(ctx, "donor:"+domain.NewDonorID().String())
		assert.NoError(t, err)
		releaseB()
		close(done)
	}()
	<-done
}

func TestMemoryLockerReacquireAfterRelease(t *testing.T) {
	ctx := context.Background()
	locker := NewMemory()
	key := "celebration:" + domain.NewCelebrationID().String()

	release, err := locker.Acquire(ctx, key)
	require.NoError(t, err)
	release()

	release2, err := locker.Acquire(ctx, key)
	require.NoError(t, err)
	release2()
}

// TestAdvisoryKey pins the key hashing the Postgres locker relies on: the
// same key must map to the same advisory lock ID on every replica, and
// distinct keys must not collide on the handful of IDs a deployment uses.
func TestAdvisoryKey(t *testing.T) {
	donor := domain.NewDonorID()

	t.Run("stable across calls", func(t *testing.T) {
		key := "donor:" + donor.String()
		assert.Equal(t, AdvisoryKey(key), AdvisoryKey(key))
	})

	t.Run("known value", func(t *testing.T) {
		// fnv-64a of the literal. A change here means replicas on different
		// builds would lock different IDs and stop excluding each other.
		assert.Equal(t, int64(1663041237563244023), AdvisoryKey("donor:00000000-0000-0000-0000-000000000000"))
	})

	t.Run("distinct keys get distinct ids", func(t *testing.T) {
		seen := make(map[int64]string)
		for i := 0; i < 64; i++ {
			key := "donor:" + domain.NewDonorID().String()
			id := AdvisoryKey(key)
			if prev, ok := seen[id]; ok {
				t.Fatalf("advisory key collision: %q and %q", prev, key)
			}
			seen[id] = key
		}
	})

	t.Run("namespaces do not alias", func(t *testing.T) {
		id := domain.NewCelebrationID().String()
		assert.NotEqual(t, AdvisoryKey("donor:"+id), AdvisoryKey("celebration:"+id))
	})
}
