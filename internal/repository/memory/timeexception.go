package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/approval"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/timeexception"
)

type TimeExceptionRepository struct {
	mu         sync.RWMutex
	exceptions map[string]timeexception.Exception
}

func NewTimeExceptionRepository() *TimeExceptionRepository {
	return &TimeExceptionRepository{exceptions: make(map[string]timeexception.Exception)}
}

var _ timeexception.Repository = (*TimeExceptionRepository)(nil)

func (t *TimeExceptionRepository) GetByID(ctx context.Context, id string) (*timeexception.Exception, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.exceptions[id]
	if !ok {
		return nil, timeexception.ErrExceptionNotFound
	}
	return &e, nil
}

func (t *TimeExceptionRepository) List(ctx context.Context, filter timeexception.Filter) ([]timeexception.Exception, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	records := toSet(filter.AttendanceRecords)
	out := make([]timeexception.Exception, 0)
	for _, e := range t.exceptions {
		if !ptrEq(filter.EmployeeID, e.EmployeeID) {
			continue
		}
		if filter.ManagerID != nil && (e.ManagerID == nil || *e.ManagerID != *filter.ManagerID) {
			continue
		}
		if filter.AttendanceRecordID != nil && (e.AttendanceRecordID == nil || *e.AttendanceRecordID != *filter.AttendanceRecordID) {
			continue
		}
		if records != nil && (e.AttendanceRecordID == nil || !records[*e.AttendanceRecordID]) {
			continue
		}
		if len(filter.Types) > 0 && !hasType(filter.Types, e.ExceptionType) {
			continue
		}
		if len(filter.Statuses) > 0 && !hasStatus(filter.Statuses, e.Status) {
			continue
		}
		if filter.Escalated != nil && e.Escalated != *filter.Escalated {
			continue
		}
		if filter.WorkDateStart != nil && e.WorkDate.Before(*filter.WorkDateStart) {
			continue
		}
		if filter.WorkDateEnd != nil && e.WorkDate.After(*filter.WorkDateEnd) {
			continue
		}
		if filter.CreatedBefore != nil && !e.CreatedAt.Before(*filter.CreatedBefore) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (t *TimeExceptionRepository) Create(ctx context.Context, exc *timeexception.Exception) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if exc.ID == "" {
		exc.ID = newID()
	}
	t.exceptions[exc.ID] = *exc
	return nil
}

func (t *TimeExceptionRepository) FindByRecordAndType(ctx context.Context, recordID string, excType timeexception.Type) (*timeexception.Exception, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, e := range t.exceptions {
		if e.ExceptionType == excType && e.AttendanceRecordID != nil && *e.AttendanceRecordID == recordID {
			return &e, nil
		}
	}
	return nil, nil
}

func (t *TimeExceptionRepository) UpdateStatus(ctx context.Context, exc *timeexception.Exception, expected approval.Status) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	stored, ok := t.exceptions[exc.ID]
	if !ok {
		return timeexception.ErrExceptionNotFound
	}
	if stored.Status != expected {
		return approval.ErrConcurrentUpdate
	}
	// Escalation is written independently of decisions; keep it.
	updated := *exc
	if stored.Escalated {
		updated.Escalated, updated.EscalatedAt = true, stored.EscalatedAt
		updated.ForcedEscalation = stored.ForcedEscalation
		if updated.HRReviewerID == nil {
			updated.HRReviewerID = stored.HRReviewerID
		}
	}
	t.exceptions[exc.ID] = updated
	return nil
}

func (t *TimeExceptionRepository) SetPreApproval(ctx context.Context, id, approverID string, at time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.exceptions[id]
	if !ok {
		return timeexception.ErrExceptionNotFound
	}
	e.PreApprovedAt = &at
	e.PreApprovedBy = &approverID
	e.UpdatedAt = at
	t.exceptions[id] = e
	return nil
}

func (t *TimeExceptionRepository) MarkEscalated(ctx context.Context, id string, hrReviewerID *string, forced bool, at time.Time) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.exceptions[id]
	if !ok {
		return false, timeexception.ErrExceptionNotFound
	}
	if e.Escalated || !e.Status.IsPending() {
		return false, nil
	}
	e.Escalated = true
	e.EscalatedAt = &at
	e.ForcedEscalation = forced
	if hrReviewerID != nil {
		e.HRReviewerID = hrReviewerID
	}
	e.UpdatedAt = at
	t.exceptions[id] = e
	return true, nil
}

func hasType(types []timeexception.Type, v timeexception.Type) bool {
	for _, t := range types {
		if t == v {
			return true
		}
	}
	return false
}
