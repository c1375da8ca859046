package cycle

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"celebrate/pkg/domain"
	dErrors "celebrate/pkg/domain-errors"
)

func TestWindowContains(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, time.November, 3, 0, 0, 0, 0, time.UTC)
	w := Window{Open: true, Start: start, End: end}

	assert.True(t, w.Contains(start), "start is inclusive")
	assert.True(t, w.Contains(end.Add(-time.Second)))
	assert.False(t, w.Contains(end), "end is exclusive")
	assert.False(t, w.Contains(start.Add(-time.Second)))

	closed := Window{Open: false, Start: start, End: end}
	assert.False(t, closed.Contains(start.AddDate(0, 6, 0)), "closed window matches nothing")
}

func TestStaticResolver(t *testing.T) {
	ctx := context.Background()
	candidate := domain.RecipientID("pol-1")
	ts := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)

	resolver := NewStatic(map[domain.RecipientID]Window{
		candidate: {
			Open:  true,
			Start: time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2026, time.November, 3, 0, 0, 0, 0, time.UTC),
		},
	})

	t.Run("timestamp inside window", func(t *testing.T) {
		in, err := resolver.InCurrentCycle(ctx, candidate, "CA", ts)
		require.NoError(t, err)
		assert.True(t, in)
	})

	t.Run("timestamp outside window", func(t *testing.T) {
		in, err := resolver.InCurrentCycle(ctx, candidate, "CA", ts.AddDate(5, 0, 0))
		require.NoError(t, err)
		assert.False(t, in)
	})

	t.Run("unknown candidate is false, not an error", func(t *testing.T) {
		in, err := resolver.InCurrentCycle(ctx, domain.RecipientID("unknown"), "CA", ts)
		require.NoError(t, err)
		assert.False(t, in)
	})
}

func TestHTTPResolver(t *testing.T) {
	ctx := context.Background()
	candidate := domain.RecipientID("pol-1")
	ts := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)

	t.Run("requires base URL", func(t *testing.T) {
		_, err := NewHTTP("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("resolves an open cycle", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/candidates/pol-1/current-cycle", r.URL.Path)
			assert.Equal(t, "CA", r.URL.Query().Get("state"))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"open":true,"cycle_start":"2025-01-01T00:00:00Z","cycle_end":"2026-11-03T00:00:00Z"}`))
		}))
		defer srv.Close()

		resolver, err := NewHTTP(srv.URL)
		require.NoError(t, err)

		in, err := resolver.InCurrentCycle(ctx, candidate, "CA", ts)
		require.NoError(t, err)
		assert.True(t, in)
	})

	t.Run("closed cycle is false, not an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"open":false}`))
		}))
		defer srv.Close()

		resolver, err := NewHTTP(srv.URL)
		require.NoError(t, err)

		in, err := resolver.InCurrentCycle(ctx, candidate, "", ts)
		require.NoError(t, err)
		assert.False(t, in)
	})

	t.Run("non-200 is unavailable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		resolver, err := NewHTTP(srv.URL)
		require.NoError(t, err)

		_, err = resolver.InCurrentCycle(ctx, candidate, "", ts)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable))
	})

	t.Run("unreachable service is unavailable", func(t *testing.T) {
		resolver, err := NewHTTP("http://127.0.0.1:1", WithTimeout(200*time.Millisecond))
		require.NoError(t, err)

		_, err = resolver.InCurrentCycle(ctx, candidate, "", ts)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable))
	})

	t.Run("malformed body is unavailable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`not json`))
		}))
		defer srv.Close()

		resolver, err := NewHTTP(srv.URL)
		require.NoError(t, err)

		_, err = resolver.InCurrentCycle(ctx, candidate, "", ts)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable))
	})
}
