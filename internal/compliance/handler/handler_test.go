package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"celebrate/internal/compliance/models"
	id "celebrate/pkg/domain"
	dErrors "celebrate/pkg/domain-errors"
)

// ============================================================================
// Fakes
// ============================================================================

type stubService struct {
	lastCheck   models.CheckRequest
	checkResult *models.ComplianceResult
	checkErr    error
	lastTip     int64
	lastHistory []models.DonationRecord
	pacResult   *models.PACLimitResult
	pacErr      error
}

func (s *stubService) CheckDonation(_ context.Context, req models.CheckRequest) (*models.ComplianceResult, error) {
	s.lastCheck = req
	return s.checkResult, s.checkErr
}

func (s *stubService) CheckPACTip(_ context.Context, history []models.DonationRecord, tip int64) (*models.PACLimitResult, error) {
	s.lastHistory = history
	s.lastTip = tip
	return s.pacResult, s.pacErr
}

type stubHistory struct {
	records []models.DonationRecord
	err     error
	lastID  id.DonorID
}

func (s *stubHistory) History(_ context.Context, donorID id.DonorID) ([]models.DonationRecord, error) {
	s.lastID = donorID
	return s.records, s.err
}

func newRouter(service *stubService, history *stubHistory) chi.Router {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := chi.NewRouter()
	New(service, history, logger).Register(r)
	return r
}

func post(t *testing.T, router http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

const donorID = "11111111-1111-4111-8111-111111111111"

// ============================================================================
// POST /compliance/check
// ============================================================================

func TestHandleCheck(t *testing.T) {
	t.Run("returns the verdict with limits echoed", func(t *testing.T) {
		annual := int64(20_000)
		service := &stubService{checkResult: &models.ComplianceResult{
			IsCompliant:      true,
			ValidationMethod: models.MethodEnhanced,
			PerDonationLimit: 5_000,
			AnnualCap:        &annual,
		}}
		history := &stubHistory{records: []models.DonationRecord{{AmountCents: 4_800}}}
		router := newRouter(service, history)

		rec := post(t, router, "/compliance/check",
			`{"donor_id":"`+donorID+`","compliance_tier":"guest","amount":2000,"pol_id":"pol-1","state":"VT"}`)

		require.Equal(t, http.StatusOK, rec.Code)

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, true, body["is_compliant"])
		assert.Equal(t, "enhanced", body["validation_method"])
		assert.Equal(t, float64(5_000), body["per_donation_limit"])
		assert.Equal(t, float64(20_000), body["annual_cap"])
		assert.NotContains(t, body, "reason")

		// The handler loads history itself and hands it to the service.
		assert.Equal(t, donorID, history.lastID.String())
		require.Len(t, service.lastCheck.History, 1)
		assert.Equal(t, models.TierGuest, service.lastCheck.Tier)
		assert.Equal(t, int64(2_000), service.lastCheck.AmountCents)
	})

	t.Run("invalid donor id is 400", func(t *testing.T) {
		router := newRouter(&stubService{}, &stubHistory{})
		rec := post(t, router, "/compliance/check",
			`{"donor_id":"not-a-uuid","compliance_tier":"guest","amount":100}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown tier is 400", func(t *testing.T) {
		router := newRouter(&stubService{}, &stubHistory{})
		rec := post(t, router, "/compliance/check",
			`{"donor_id":"`+donorID+`","compliance_tier":"platinum","amount":100}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("malformed body is 400", func(t *testing.T) {
		router := newRouter(&stubService{}, &stubHistory{})
		rec := post(t, router, "/compliance/check", `{`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("history failure maps through the error code", func(t *testing.T) {
		history := &stubHistory{err: dErrors.New(dErrors.CodeUnavailable, "store down")}
		router := newRouter(&stubService{}, history)
		rec := post(t, router, "/compliance/check",
			`{"donor_id":"`+donorID+`","compliance_tier":"guest","amount":100}`)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

// ============================================================================
// POST /compliance/pac-check
// ============================================================================

func TestHandlePACCheck(t *testing.T) {
	t.Run("returns the pac verdict", func(t *testing.T) {
		service := &stubService{pacResult: &models.PACLimitResult{
			IsCompliant:     true,
			AttemptedTip:    5_000,
			CurrentTotal:    495_000,
			Remaining:       0,
			HasReachedLimit: true,
			Limit:           500_000,
		}}
		history := &stubHistory{records: []models.DonationRecord{{TipCents: 495_000}}}
		router := newRouter(service, history)

		rec := post(t, router, "/compliance/pac-check",
			`{"donor_id":"`+donorID+`","tip_amount":5000}`)

		require.Equal(t, http.StatusOK, rec.Code)

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, true, body["is_compliant"])
		assert.Equal(t, float64(5_000), body["attempted_tip_amount"])
		assert.Equal(t, float64(495_000), body["current_pac_total"])
		assert.Equal(t, float64(0), body["remaining_pac_limit"])
		assert.Equal(t, true, body["has_reached_limit"])
		assert.Equal(t, float64(500_000), body["pac_limit"])

		assert.Equal(t, int64(5_000), service.lastTip)
		assert.Len(t, service.lastHistory, 1)
	})

	t.Run("negative tip is 400", func(t *testing.T) {
		router := newRouter(&stubService{}, &stubHistory{})
		rec := post(t, router, "/compliance/pac-check",
			`{"donor_id":"`+donorID+`","tip_amount":-1}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("service failure maps through the error code", func(t *testing.T) {
		service := &stubService{pacErr: dErrors.New(dErrors.CodeInvalidInput, "bad tip")}
		router := newRouter(service, &stubHistory{})
		rec := post(t, router, "/compliance/pac-check",
			`{"donor_id":"`+donorID+`","tip_amount":100}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
