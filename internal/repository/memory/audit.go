package memory

import (
	"context"
	"sync"

	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/audit"
)

type AuditRepository struct {
	mu     sync.RWMutex
	events []audit.Event
}

func NewAuditRepository() *AuditRepository {
	return &AuditRepository{}
}

func (a *AuditRepository) Append(ctx context.Context, event audit.Event) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, event)
	return nil
}

// List returns matching events in append order.
func (a *AuditRepository) List(ctx context.Context, filter audit.Filter) ([]audit.Event, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]audit.Event, 0)
	for _, e := range a.events {
		if filter.EntityType != nil && e.EntityType != *filter.EntityType {
			continue
		}
		if !ptrEq(filter.EntityID, e.EntityID) {
			continue
		}
		if filter.Start != nil && e.OccurredAt.Before(*filter.Start) {
			continue
		}
		if filter.End != nil && e.OccurredAt.After(*filter.End) {
			continue
		}
		out = append(out, e)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}
