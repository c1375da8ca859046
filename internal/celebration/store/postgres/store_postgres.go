// Package postgres persists celebrations in PostgreSQL via pgx. The unique
// index on idempotency_key enforces the global key invariant; row locks keep
// ledger appends and current_status updates atomic together.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"celebrate/internal/celebration/models"
	compliance "celebrate/internal/compliance/models"
	"celebrate/pkg/domain"
	dErrors "celebrate/pkg/domain-errors"
)

const uniqueViolation = "23505"

type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// donorLockKey maps a donor to a pg advisory lock key. Creation transactions
// take this lock as a write-side backstop so two inserts for one donor never
// interleave. It does not cover the history reads that validated the insert;
// the service holds a session-level lock across that whole span.
func donorLockKey(donorID domain.DonorID) int64 {
	h := fnv.New64a()
	h.Write([]byte(donorID.String()))
	return int64(h.Sum64())
}

func (s *Store) Create(ctx context.Context, c *models.Celebration) error {
	if c == nil {
		return dErrors.New(dErrors.CodeBadRequest, "celebration is required")
	}
	if len(c.StatusLedger) != 1 {
		return dErrors.New(dErrors.CodeInvariantViolation, "new celebration must carry exactly its initial ledger entry")
	}

	donorInfo, err := json.Marshal(c.DonorInfo)
	if err != nil {
		return fmt.Errorf("marshal donor info: %w", err)
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("begin create tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, donorLockKey(c.DonorInfo.DonorID)); err != nil {
		return fmt.Errorf("acquire donor lock: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO celebrations
			(id, idempotency_key, donation, tip, fee, pol_id, bill_id, fec_id,
			 payment_intent, charge_id, current_status, donor_id, donor_info, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`,
		c.ID.String(), c.IdempotencyKey, c.DonationCents, c.TipCents, c.FeeCents,
		string(c.RecipientID), string(c.BillID), c.FECID,
		c.PaymentIntent, c.ChargeID, string(c.CurrentStatus),
		c.DonorInfo.DonorID.String(), donorInfo, c.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return dErrors.Newf(dErrors.CodeConflict, "idempotency key already used: %s", c.IdempotencyKey)
		}
		return fmt.Errorf("insert celebration: %w", err)
	}

	if err := insertLedgerEntry(ctx, tx, c.ID, c.StatusLedger[0]); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit create tx: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id domain.CelebrationID) (*models.Celebration, error) {
	return s.getWhere(ctx, `id = $1`, id.String())
}

func (s *Store) GetByIdempotencyKey(ctx context.Context, key string) (*models.Celebration, error) {
	return s.getWhere(ctx, `idempotency_key = $1`, key)
}

func (s *Store) getWhere(ctx context.Context, where string, arg any) (*models.Celebration, error) {
	query := `
		SELECT id, idempotency_key, donation, tip, fee, pol_id, bill_id, fec_id,
		       payment_intent, charge_id, current_status, donor_info, created_at
		FROM celebrations
		WHERE ` + where
	c, err := scanCelebration(s.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, dErrors.New(dErrors.CodeNotFound, "celebration not found")
		}
		return nil, fmt.Errorf("get celebration: %w", err)
	}
	if err := s.loadLedger(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Store) ListByDonor(ctx context.Context, donorID domain.DonorID) ([]*models.Celebration, error) {
	return s.listWhere(ctx, `donor_id = $1`, donorID.String())
}

func (s *Store) ListByBill(ctx context.Context, billID domain.BillID, statuses ...models.Status) ([]*models.Celebration, error) {
	if len(statuses) == 0 {
		return s.listWhere(ctx, `bill_id = $1`, string(billID))
	}
	return s.listWhere(ctx, `bill_id = $1 AND current_status = ANY($2)`, string(billID), statusStrings(statuses))
}

func (s *Store) ListByStatus(ctx context.Context, statuses ...models.Status) ([]*models.Celebration, error) {
	return s.listWhere(ctx, `current_status = ANY($1)`, statusStrings(statuses))
}

func (s *Store) listWhere(ctx context.Context, where string, args ...any) ([]*models.Celebration, error) {
	query := `
		SELECT id, idempotency_key, donation, tip, fee, pol_id, bill_id, fec_id,
		       payment_intent, charge_id, current_status, donor_info, created_at
		FROM celebrations
		WHERE ` + where + `
		ORDER BY created_at ASC`
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list celebrations: %w", err)
	}
	defer rows.Close()

	var out []*models.Celebration
	for rows.Next() {
		c, err := scanCelebration(rows)
		if err != nil {
			return nil, fmt.Errorf("scan celebration: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, c := range out {
		if err := s.loadLedger(ctx, c); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// AppendTransition locks the celebration row, re-checks the expected previous
// status under the lock, and writes the entry and the status update in one
// transaction. A stale previous status is a conflict, never a silent
// overwrite.
func (s *Store) AppendTransition(ctx context.Context, id domain.CelebrationID, entry models.StatusLedgerEntry) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transition tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var current string
	err = tx.QueryRow(ctx,
		`SELECT current_status FROM celebrations WHERE id = $1 FOR UPDATE`, id.String(),
	).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return dErrors.Newf(dErrors.CodeNotFound, "celebration not found: %s", id)
		}
		return fmt.Errorf("lock celebration: %w", err)
	}
	if models.Status(current) != entry.PreviousStatus {
		return dErrors.Newf(dErrors.CodeConflict,
			"celebration %s status is %s, not %s", id, current, entry.PreviousStatus)
	}

	if err := insertLedgerEntry(ctx, tx, id, entry); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx,
		`UPDATE celebrations SET current_status = $1 WHERE id = $2`,
		string(entry.NewStatus), id.String(),
	); err != nil {
		return fmt.Errorf("update current status: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transition tx: %w", err)
	}
	return nil
}

func (s *Store) SetChargeID(ctx context.Context, id domain.CelebrationID, chargeID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE celebrations SET charge_id = $1 WHERE id = $2`, chargeID, id.String())
	if err != nil {
		return fmt.Errorf("set charge id: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return dErrors.Newf(dErrors.CodeNotFound, "celebration not found: %s", id)
	}
	return nil
}

func insertLedgerEntry(ctx context.Context, tx pgx.Tx, id domain.CelebrationID, entry models.StatusLedgerEntry) error {
	metadata, err := json.Marshal(entry.Metadata)
	if err != nil {
		return fmt.Errorf("marshal ledger metadata: %w", err)
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO status_ledger
			(id, celebration_id, previous_status, new_status, change_datetime,
			 reason, triggered_by, triggered_by_id, metadata, compliance_tier_at_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		entry.ID, id.String(), string(entry.PreviousStatus), string(entry.NewStatus),
		entry.ChangedAt, entry.Reason, string(entry.TriggeredBy), entry.TriggeredByID,
		metadata, string(entry.ComplianceTierAtTime),
	)
	if err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}

func (s *Store) loadLedger(ctx context.Context, c *models.Celebration) error {
	rows, err := s.pool.Query(ctx, `
		SELECT id, previous_status, new_status, change_datetime, reason,
		       triggered_by, triggered_by_id, metadata, compliance_tier_at_time
		FROM status_ledger
		WHERE celebration_id = $1
		ORDER BY change_datetime ASC, seq ASC
	`, c.ID.String())
	if err != nil {
		return fmt.Errorf("load status ledger: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			entry    models.StatusLedgerEntry
			prev     string
			next     string
			actor    string
			tier     string
			metadata []byte
		)
		if err := rows.Scan(&entry.ID, &prev, &next, &entry.ChangedAt, &entry.Reason,
			&actor, &entry.TriggeredByID, &metadata, &tier); err != nil {
			return fmt.Errorf("scan ledger entry: %w", err)
		}
		entry.PreviousStatus = models.Status(prev)
		entry.NewStatus = models.Status(next)
		entry.TriggeredBy = models.Actor(actor)
		entry.ComplianceTierAtTime = compliance.ComplianceTier(tier)
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &entry.Metadata); err != nil {
				return fmt.Errorf("unmarshal ledger metadata: %w", err)
			}
		}
		c.StatusLedger = append(c.StatusLedger, entry)
	}
	return rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCelebration(row rowScanner) (*models.Celebration, error) {
	var (
		c         models.Celebration
		rawID     string
		polID     string
		billID    string
		status    string
		donorInfo []byte
	)
	err := row.Scan(&rawID, &c.IdempotencyKey, &c.DonationCents, &c.TipCents, &c.FeeCents,
		&polID, &billID, &c.FECID, &c.PaymentIntent, &c.ChargeID, &status, &donorInfo, &c.CreatedAt)
	if err != nil {
		return nil, err
	}

	id, err := domain.ParseCelebrationID(rawID)
	if err != nil {
		return nil, err
	}
	c.ID = id
	c.RecipientID = domain.RecipientID(polID)
	c.BillID = domain.BillID(billID)
	c.CurrentStatus = models.Status(status)
	if err := json.Unmarshal(donorInfo, &c.DonorInfo); err != nil {
		return nil, fmt.Errorf("unmarshal donor info: %w", err)
	}
	return &c, nil
}

func statusStrings(statuses []models.Status) []string {
	out := make([]string, len(statuses))
	for i, st := range statuses {
		out[i] = string(st)
	}
	return out
}
