package payments

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "celebrate/pkg/domain-errors"
)

func TestNewHTTPCapturer(t *testing.T) {
	t.Run("requires base URL", func(t *testing.T) {
		_, err := NewHTTPCapturer("", "sk_test")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func TestCapture(t *testing.T) {
	ctx := context.Background()

	t.Run("captures and returns the charge id", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/v1/payment_intents/pi_123/capture", r.URL.Path)
			assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))

			require.NoError(t, r.ParseForm())
			assert.Equal(t, "2800", r.PostForm.Get("amount_to_capture"))

			_, _ = w.Write([]byte(`{"latest_charge":"ch_abc"}`))
		}))
		defer srv.Close()

		capturer, err := NewHTTPCapturer(srv.URL, "sk_test")
		require.NoError(t, err)

		chargeID, err := capturer.Capture(ctx, "pi_123", 2_800)
		require.NoError(t, err)
		assert.Equal(t, "ch_abc", chargeID)
	})

	t.Run("empty payment intent is invalid input", func(t *testing.T) {
		capturer, err := NewHTTPCapturer("http://example.invalid", "sk_test")
		require.NoError(t, err)

		_, err = capturer.Capture(ctx, "", 100)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("processor error is unavailable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusPaymentRequired)
		}))
		defer srv.Close()

		capturer, err := NewHTTPCapturer(srv.URL, "sk_test")
		require.NoError(t, err)

		_, err = capturer.Capture(ctx, "pi_123", 100)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable))
	})

	t.Run("missing charge id is unavailable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{}`))
		}))
		defer srv.Close()

		capturer, err := NewHTTPCapturer(srv.URL, "sk_test")
		require.NoError(t, err)

		_, err = capturer.Capture(ctx, "pi_123", 100)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable))
	})
}
