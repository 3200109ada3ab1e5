package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/approval"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/correction"
)

type CorrectionRepository struct {
	mu       sync.RWMutex
	requests map[string]correction.Request
}

func NewCorrectionRepository() *CorrectionRepository {
	return &CorrectionRepository{requests: make(map[string]correction.Request)}
}

var _ correction.Repository = (*CorrectionRepository)(nil)

func (c *CorrectionRepository) GetByID(ctx context.Context, id string) (*correction.Request, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.requests[id]
	if !ok {
		return nil, correction.ErrCorrectionNotFound
	}
	return &r, nil
}

func (c *CorrectionRepository) List(ctx context.Context, filter correction.Filter) ([]correction.Request, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]correction.Request, 0)
	for _, r := range c.requests {
		if !ptrEq(filter.EmployeeID, r.EmployeeID) || !ptrEq(filter.AttendanceRecordID, r.AttendanceRecordID) {
			continue
		}
		if filter.ManagerID != nil && (r.ManagerID == nil || *r.ManagerID != *filter.ManagerID) {
			continue
		}
		if len(filter.Statuses) > 0 && !hasStatus(filter.Statuses, r.Status) {
			continue
		}
		if filter.Escalated != nil && r.Escalated != *filter.Escalated {
			continue
		}
		if filter.WorkDateStart != nil && r.WorkDate.Before(*filter.WorkDateStart) {
			continue
		}
		if filter.WorkDateEnd != nil && r.WorkDate.After(*filter.WorkDateEnd) {
			continue
		}
		if filter.CreatedBefore != nil && !r.CreatedAt.Before(*filter.CreatedBefore) {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (c *CorrectionRepository) Create(ctx context.Context, req *correction.Request) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if req.ID == "" {
		req.ID = newID()
	}
	c.requests[req.ID] = *req
	return nil
}

func (c *CorrectionRepository) UpdateStatus(ctx context.Context, req *correction.Request, expected approval.Status) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	stored, ok := c.requests[req.ID]
	if !ok {
		return correction.ErrCorrectionNotFound
	}
	if stored.Status != expected {
		return approval.ErrConcurrentUpdate
	}
	// Escalation is written independently of decisions; keep it.
	updated := *req
	if stored.Escalated {
		updated.Escalated, updated.EscalatedAt = true, stored.EscalatedAt
		if updated.HRReviewerID == nil {
			updated.HRReviewerID = stored.HRReviewerID
		}
	}
	c.requests[req.ID] = updated
	return nil
}

func (c *CorrectionRepository) MarkEscalated(ctx context.Context, id string, hrReviewerID *string, at time.Time) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.requests[id]
	if !ok {
		return false, correction.ErrCorrectionNotFound
	}
	if r.Escalated || !r.Status.IsPending() {
		return false, nil
	}
	r.Escalated = true
	r.EscalatedAt = &at
	if hrReviewerID != nil {
		r.HRReviewerID = hrReviewerID
	}
	r.UpdatedAt = at
	c.requests[id] = r
	return true, nil
}

func hasStatus(statuses []approval.Status, s approval.Status) bool {
	for _, v := range statuses {
		if v == s {
			return true
		}
	}
	return false
}
