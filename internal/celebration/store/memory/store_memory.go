package memory

import (
	"context"
	"sort"
	"sync"

	"celebrate/internal/celebration/models"
	"celebrate/pkg/domain"
	dErrors "celebrate/pkg/domain-errors"
)

// Store is the in-memory celebration store. The single mutex serializes
// ledger appends with status updates, matching the single-writer-per-document
// guarantee the postgres store gets from row locks.
type Store struct {
	mu           sync.RWMutex
	celebrations map[domain.CelebrationID]*models.Celebration
	byKey        map[string]domain.CelebrationID
}

func New() *Store {
	return &Store{
		celebrations: make(map[domain.CelebrationID]*models.Celebration),
		byKey:        make(map[string]domain.CelebrationID),
	}
}

func (s *Store) Create(_ context.Context, c *models.Celebration) error {
	if c == nil {
		return dErrors.New(dErrors.CodeBadRequest, "celebration is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byKey[c.IdempotencyKey]; exists {
		return dErrors.Newf(dErrors.CodeConflict, "idempotency key already used: %s", c.IdempotencyKey)
	}
	if _, exists := s.celebrations[c.ID]; exists {
		return dErrors.Newf(dErrors.CodeConflict, "celebration already exists: %s", c.ID)
	}

	s.celebrations[c.ID] = clone(c)
	s.byKey[c.IdempotencyKey] = c.ID
	return nil
}

func (s *Store) Get(_ context.Context, id domain.CelebrationID) (*models.Celebration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.celebrations[id]
	if !ok {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "celebration not found: %s", id)
	}
	return clone(c), nil
}

func (s *Store) GetByIdempotencyKey(_ context.Context, key string) (*models.Celebration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byKey[key]
	if !ok {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "no celebration for idempotency key: %s", key)
	}
	return clone(s.celebrations[id]), nil
}

func (s *Store) ListByDonor(_ context.Context, donorID domain.DonorID) ([]*models.Celebration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Celebration
	for _, c := range s.celebrations {
		if c.DonorInfo.DonorID == donorID {
			out = append(out, clone(c))
		}
	}
	sortByCreatedAt(out)
	return out, nil
}

func (s *Store) ListByBill(_ context.Context, billID domain.BillID, statuses ...models.Status) ([]*models.Celebration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Celebration
	for _, c := range s.celebrations {
		if c.BillID == billID && matchesStatus(c, statuses) {
			out = append(out, clone(c))
		}
	}
	sortByCreatedAt(out)
	return out, nil
}

func (s *Store) ListByStatus(_ context.Context, statuses ...models.Status) ([]*models.Celebration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Celebration
	for _, c := range s.celebrations {
		if matchesStatus(c, statuses) {
			out = append(out, clone(c))
		}
	}
	sortByCreatedAt(out)
	return out, nil
}

func (s *Store) AppendTransition(_ context.Context, id domain.CelebrationID, entry models.StatusLedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.celebrations[id]
	if !ok {
		return dErrors.Newf(dErrors.CodeNotFound, "celebration not found: %s", id)
	}
	if c.CurrentStatus != entry.PreviousStatus {
		return dErrors.Newf(dErrors.CodeConflict,
			"celebration %s status is %s, not %s", id, c.CurrentStatus, entry.PreviousStatus)
	}

	c.StatusLedger = append(c.StatusLedger, entry)
	c.CurrentStatus = entry.NewStatus
	return nil
}

func (s *Store) SetChargeID(_ context.Context, id domain.CelebrationID, chargeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.celebrations[id]
	if !ok {
		return dErrors.Newf(dErrors.CodeNotFound, "celebration not found: %s", id)
	}
	c.ChargeID = &chargeID
	return nil
}

func matchesStatus(c *models.Celebration, statuses []models.Status) bool {
	if len(statuses) == 0 {
		return true
	}
	for _, st := range statuses {
		if c.CurrentStatus == st {
			return true
		}
	}
	return false
}

func sortByCreatedAt(cs []*models.Celebration) {
	sort.Slice(cs, func(i, j int) bool { return cs[i].CreatedAt.Before(cs[j].CreatedAt) })
}

// clone deep-copies so callers can never mutate stored state or the ledger.
func clone(c *models.Celebration) *models.Celebration {
	cp := *c
	cp.StatusLedger = make([]models.StatusLedgerEntry, len(c.StatusLedger))
	copy(cp.StatusLedger, c.StatusLedger)
	for i := range cp.StatusLedger {
		if meta := c.StatusLedger[i].Metadata; meta != nil {
			m := make(map[string]any, len(meta))
			for k, v := range meta {
				m[k] = v
			}
			cp.StatusLedger[i].Metadata = m
		}
	}
	if c.ChargeID != nil {
		v := *c.ChargeID
		cp.ChargeID = &v
	}
	return &cp
}
