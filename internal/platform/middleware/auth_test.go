package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"celebrate/pkg/requestcontext"
)

const testSigningKey = "unit-test-signing-key"

func signToken(t *testing.T, subject, role string, method jwt.SigningMethod, key any) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub": subject,
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	if role != "" {
		claims["role"] = role
	}
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func TestHMACValidator(t *testing.T) {
	validator := NewHMACValidator(testSigningKey)

	t.Run("accepts a valid HS256 token", func(t *testing.T) {
		token := signToken(t, "ops-team", "admin", jwt.SigningMethodHS256, []byte(testSigningKey))
		claims, err := validator.ValidateToken(token)
		require.NoError(t, err)
		assert.Equal(t, "ops-team", claims.Subject)
		assert.Equal(t, "admin", claims.Role)
	})

	t.Run("rejects a token signed with the wrong key", func(t *testing.T) {
		token := signToken(t, "ops-team", "admin", jwt.SigningMethodHS256, []byte("other-key"))
		_, err := validator.ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("rejects an expired token", func(t *testing.T) {
		claims := jwt.MapClaims{
			"sub":  "ops-team",
			"role": "admin",
			"exp":  time.Now().Add(-time.Hour).Unix(),
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSigningKey))
		require.NoError(t, err)

		_, err = validator.ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("rejects garbage", func(t *testing.T) {
		_, err := validator.ValidateToken("not-a-token")
		assert.Error(t, err)
	})

	t.Run("token without role yields empty role", func(t *testing.T) {
		token := signToken(t, "ops-team", "", jwt.SigningMethodHS256, []byte(testSigningKey))
		claims, err := validator.ValidateToken(token)
		require.NoError(t, err)
		assert.Empty(t, claims.Role)
	})
}

func TestRequireAdmin(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	validator := NewHMACValidator(testSigningKey)

	var seenActor string
	handler := RequireAdmin(validator, logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenActor = requestcontext.ActorID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	t.Run("missing token is 401", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/bills/hr-100/pause", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.JSONEq(t, `{"error":"unauthorized","error_description":"Missing or invalid Authorization header"}`, rec.Body.String())
	})

	t.Run("invalid token is 401", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/admin/bills/hr-100/pause", nil)
		req.Header.Set("Authorization", "Bearer bogus")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("non-admin role is 403", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/admin/bills/hr-100/pause", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, "donor-1", "user", jwt.SigningMethodHS256, []byte(testSigningKey)))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.JSONEq(t, `{"error":"forbidden","error_description":"Admin role required"}`, rec.Body.String())
	})

	t.Run("admin token passes and sets the actor", func(t *testing.T) {
		seenActor = ""
		req := httptest.NewRequest(http.MethodPost, "/admin/bills/hr-100/pause", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, "ops-team", "admin", jwt.SigningMethodHS256, []byte(testSigningKey)))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "ops-team", seenActor)
	})
}
