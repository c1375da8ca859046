// Package cycle resolves whether timestamps fall inside a candidate's
// currently open election cycle. Election dates are externally sourced and
// can be missing or stale, so every implementation is allowed to fail; the
// orchestrator degrades to calendar-year rules when it does.
package cycle

import (
	"context"
	"time"

	"celebrate/pkg/domain"
)

// Resolver answers whether ts falls inside the currently open election cycle
// (primary or general, whichever is nearer and unresolved) for a candidate.
// A candidate with election data but no open cycle is a valid false, not an
// error; errors mean the data source itself was unreachable.
type Resolver interface {
	InCurrentCycle(ctx context.Context, candidateID domain.RecipientID, state string, ts time.Time) (bool, error)
}

// Window is an open election cycle interval. End is exclusive.
type Window struct {
	Open  bool      `json:"open"`
	Start time.Time `json:"cycle_start"`
	End   time.Time `json:"cycle_end"`
}

// Contains reports whether ts falls inside the window.
func (w Window) Contains(ts time.Time) bool {
	return w.Open && !ts.Before(w.Start) && ts.Before(w.End)
}

// StaticResolver serves cycle windows from an in-memory table. Used in tests
// and local development where no election calendar service runs.
type StaticResolver struct {
	windows map[domain.RecipientID]Window
}

// NewStatic builds a resolver over a fixed candidate → window table.
func NewStatic(windows map[domain.RecipientID]Window) *StaticResolver {
	if windows == nil {
		windows = make(map[domain.RecipientID]Window)
	}
	return &StaticResolver{windows: windows}
}

func (r *StaticResolver) InCurrentCycle(_ context.Context, candidateID domain.RecipientID, _ string, ts time.Time) (bool, error) {
	w, ok := r.windows[candidateID]
	if !ok {
		return false, nil
	}
	return w.Contains(ts), nil
}
