package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	compliance "celebrate/internal/compliance/models"
	"celebrate/pkg/domain"
	dErrors "celebrate/pkg/domain-errors"
)

// TestStatusTransitionMatrix pins the full lifecycle state machine. No
// sequence of transitions may leave a terminal state.
func TestStatusTransitionMatrix(t *testing.T) {
	allowed := map[Status][]Status{
		StatusActive:   {StatusPaused, StatusResolved, StatusDefunct},
		StatusPaused:   {StatusActive, StatusDefunct},
		StatusResolved: {},
		StatusDefunct:  {},
	}
	all := []Status{StatusActive, StatusPaused, StatusResolved, StatusDefunct}

	for from, targets := range allowed {
		permitted := make(map[Status]bool, len(targets))
		for _, to := range targets {
			permitted[to] = true
		}
		for _, to := range all {
			got := from.CanTransitionTo(to)
			assert.Equal(t, permitted[to], got, "%s -> %s", from, to)
		}
	}
}

func TestStatusTerminality(t *testing.T) {
	assert.False(t, StatusActive.IsTerminal())
	assert.False(t, StatusPaused.IsTerminal())
	assert.True(t, StatusResolved.IsTerminal())
	assert.True(t, StatusDefunct.IsTerminal())
}

func TestParseStatus(t *testing.T) {
	t.Run("accepts every lifecycle status", func(t *testing.T) {
		for _, raw := range []string{"active", "paused", "resolved", "defunct"} {
			status, err := ParseStatus(raw)
			require.NoError(t, err)
			assert.Equal(t, Status(raw), status)
		}
	})

	t.Run("rejects unknown and empty", func(t *testing.T) {
		for _, raw := range []string{"", "archived", "Active"} {
			_, err := ParseStatus(raw)
			require.Error(t, err, "input %q", raw)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
		}
	})
}

func TestParseActor(t *testing.T) {
	t.Run("accepts every actor", func(t *testing.T) {
		for _, raw := range []string{"system", "admin", "user", "api", "congressional_session"} {
			actor, err := ParseActor(raw)
			require.NoError(t, err)
			assert.Equal(t, Actor(raw), actor)
		}
	})

	t.Run("rejects unknown and empty", func(t *testing.T) {
		for _, raw := range []string{"", "robot"} {
			_, err := ParseActor(raw)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
		}
	})
}

// TestToDonationRecord verifies status flags are derived from the lifecycle
// state, never stored independently.
func TestToDonationRecord(t *testing.T) {
	base := Celebration{
		DonationCents: 2_500,
		TipCents:      300,
		RecipientID:   domain.RecipientID("pol-1"),
		CreatedAt:     time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC),
	}

	cases := []struct {
		status Status
		want   compliance.DonationRecord
	}{
		{StatusActive, compliance.DonationRecord{}},
		{StatusPaused, compliance.DonationRecord{Paused: true}},
		{StatusResolved, compliance.DonationRecord{Resolved: true}},
		{StatusDefunct, compliance.DonationRecord{Defunct: true}},
	}

	for _, tc := range cases {
		t.Run(string(tc.status), func(t *testing.T) {
			c := base
			c.CurrentStatus = tc.status
			rec := c.ToDonationRecord()

			assert.Equal(t, base.DonationCents, rec.AmountCents)
			assert.Equal(t, base.TipCents, rec.TipCents)
			assert.Equal(t, base.RecipientID, rec.RecipientID)
			assert.Equal(t, tc.want.Paused, rec.Paused)
			assert.Equal(t, tc.want.Resolved, rec.Resolved)
			assert.Equal(t, tc.want.Defunct, rec.Defunct)
			assert.Equal(t, tc.status == StatusActive, rec.IsLive())
		})
	}
}

func TestLastLedgerEntry(t *testing.T) {
	t.Run("empty ledger returns nil", func(t *testing.T) {
		c := Celebration{}
		assert.Nil(t, c.LastLedgerEntry())
	})

	t.Run("returns the newest entry", func(t *testing.T) {
		c := Celebration{
			CurrentStatus: StatusPaused,
			StatusLedger: []StatusLedgerEntry{
				{NewStatus: StatusActive},
				{PreviousStatus: StatusActive, NewStatus: StatusPaused},
			},
		}
		last := c.LastLedgerEntry()
		require.NotNil(t, last)
		assert.Equal(t, c.CurrentStatus, last.NewStatus)
	})
}

// TestLedgerEntryWireShape pins the persisted JSON field names; downstream
// reporting reads these directly.
func TestLedgerEntryWireShape(t *testing.T) {
	entry := StatusLedgerEntry{
		ID:                   uuid.MustParse("550e8400-e29b-41d4-a716-446655440000"),
		PreviousStatus:       StatusActive,
		NewStatus:            StatusResolved,
		ChangedAt:            time.Date(2025, time.July, 4, 12, 0, 0, 0, time.UTC),
		Reason:               "bill passed",
		TriggeredBy:          ActorSystem,
		Metadata:             map[string]any{"bill_action": "floor_vote"},
		ComplianceTierAtTime: compliance.TierCompliant,
	}

	raw, err := json.Marshal(entry)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))

	for _, key := range []string{
		"status_change_id", "previous_status", "new_status", "change_datetime",
		"reason", "triggered_by", "metadata", "compliance_tier_at_time",
	} {
		assert.Contains(t, decoded, key)
	}
	assert.NotContains(t, decoded, "triggered_by_id", "empty triggered_by_id is omitted")
}

func TestCelebrationWireShape(t *testing.T) {
	c := Celebration{
		ID:             domain.CelebrationID(uuid.MustParse("550e8400-e29b-41d4-a716-446655440000")),
		IdempotencyKey: "key-1",
		CurrentStatus:  StatusActive,
	}

	raw, err := json.Marshal(c)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))

	for _, key := range []string{
		"id", "idempotency_key", "donation", "tip", "fee", "pol_id", "bill_id",
		"FEC_id", "payment_intent", "charge_id", "current_status", "status_ledger",
		"donor_info", "created_at",
	} {
		assert.Contains(t, decoded, key)
	}
	assert.Nil(t, decoded["charge_id"], "charge_id is null until capture")
}
