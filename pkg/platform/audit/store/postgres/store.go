package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	id "celebrate/pkg/domain"
	audit "celebrate/pkg/platform/audit"
	txcontext "celebrate/pkg/platform/tx"
)

// Store implements audit.Store using the transactional outbox pattern.
// Events are written to the outbox table and published to Kafka by the outbox
// worker. Kafka is the source of truth for audit events.
type Store struct {
	db *sql.DB
}

// New creates a new PostgreSQL audit store that writes to the outbox.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// outboxPayload is the JSON structure published to Kafka.
type outboxPayload struct {
	ID            string `json:"ID"`
	Category      string `json:"Category"`
	Timestamp     string `json:"Timestamp"`
	DonorID       string `json:"DonorID,omitempty"`
	CelebrationID string `json:"CelebrationID,omitempty"`
	Action        string `json:"Action"`
	Decision      string `json:"Decision,omitempty"`
	Reason        string `json:"Reason,omitempty"`
	Method        string `json:"Method,omitempty"`
	RequestID     string `json:"RequestID,omitempty"`
	ActorID       string `json:"ActorID,omitempty"`
}

// Append writes an audit event to the outbox table for Kafka publishing.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	eventID := uuid.New()

	// Always derive category from action - eventCategories map is the source of truth
	category := audit.AuditEvent(event.Action).Category()

	payload := outboxPayload{
		ID:            eventID.String(),
		Category:      string(category),
		Timestamp:     event.Timestamp.Format(time.RFC3339Nano),
		CelebrationID: event.CelebrationID,
		Action:        event.Action,
		Decision:      event.Decision,
		Reason:        event.Reason,
		Method:        event.Method,
		RequestID:     event.RequestID,
		ActorID:       event.ActorID,
	}
	if !event.DonorID.IsNil() {
		payload.DonorID = event.DonorID.String()
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	aggregateType := "audit"
	aggregateID := eventID.String()
	if event.CelebrationID != "" {
		aggregateType = "celebration"
		aggregateID = event.CelebrationID
	} else if !event.DonorID.IsNil() {
		aggregateType = "donor"
		aggregateID = event.DonorID.String()
	}

	query := `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = s.execer(ctx).ExecContext(ctx, query,
		uuid.New(), // outbox entry ID
		aggregateType,
		aggregateID,
		event.Action,
		payloadBytes,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

// ListByDonor returns materialized audit events for a donor, oldest first.
func (s *Store) ListByDonor(ctx context.Context, donorID id.DonorID) ([]audit.Event, error) {
	query := `
		SELECT category, occurred_at, donor_id, celebration_id, action, decision, reason, method, request_id, actor_id
		FROM audit_events
		WHERE donor_id = $1
		ORDER BY occurred_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, donorID.String())
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var (
			event            audit.Event
			donor, celeb     sql.NullString
			decision, reason sql.NullString
			method, reqID    sql.NullString
			actorID          sql.NullString
		)
		if err := rows.Scan(&event.Category, &event.Timestamp, &donor, &celeb,
			&event.Action, &decision, &reason, &method, &reqID, &actorID); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		if donor.Valid {
			if parsed, err := id.ParseDonorID(donor.String); err == nil {
				event.DonorID = parsed
			}
		}
		event.CelebrationID = celeb.String
		event.Decision = decision.String
		event.Reason = reason.String
		event.Method = method.String
		event.RequestID = reqID.String
		event.ActorID = actorID.String
		events = append(events, event)
	}
	return events, rows.Err()
}
