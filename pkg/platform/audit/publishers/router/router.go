// Package router dispatches audit events by category. Compliance events go
// to the fail-closed synchronous publisher; operational events go to the
// sampled fire-and-forget one. Services emit through a single Publisher and
// the routing promise in the category definitions holds at one place.
package router

import (
	"context"

	audit "celebrate/pkg/platform/audit"
)

// Publisher routes each event to the publisher matching its category.
type Publisher struct {
	compliance audit.Publisher
	ops        audit.Publisher
}

// New creates a router over the two category publishers. Both are required.
func New(compliance, ops audit.Publisher) *Publisher {
	return &Publisher{compliance: compliance, ops: ops}
}

// Emit forwards the event to the category's publisher. The error contract is
// the delegate's: a compliance event failing to persist fails the caller, an
// operational event never does.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if audit.AuditEvent(event.Action).Category() == audit.CategoryCompliance {
		return p.compliance.Emit(ctx, event)
	}
	return p.ops.Emit(ctx, event)
}
