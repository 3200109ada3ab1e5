package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/attendance"
)

type AttendanceRepository struct {
	mu      sync.RWMutex
	records map[string]attendance.Record
	open    map[string]string
}

func NewAttendanceRepository() *AttendanceRepository {
	return &AttendanceRepository{
		records: make(map[string]attendance.Record),
		open:    make(map[string]string),
	}
}

var _ attendance.RecordRepository = (*AttendanceRepository)(nil)

func cloneRecord(r attendance.Record) attendance.Record {
	r.Punches = append([]attendance.Punch(nil), r.Punches...)
	return r
}

func (a *AttendanceRepository) GetByID(ctx context.Context, id string) (*attendance.Record, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	r, ok := a.records[id]
	if !ok {
		return nil, attendance.ErrAttendanceRecordNotFound
	}
	c := cloneRecord(r)
	return &c, nil
}

func (a *AttendanceRepository) List(ctx context.Context, filter attendance.RecordFilter) ([]attendance.Record, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	ids := toSet(filter.IDs)
	employees := toSet(filter.EmployeeIDs)

	out := make([]attendance.Record, 0)
	for _, r := range a.records {
		if ids != nil && !ids[r.ID] {
			continue
		}
		if employees != nil && !employees[r.EmployeeID] {
			continue
		}
		if !ptrEq(filter.EmployeeID, r.EmployeeID) {
			continue
		}
		if filter.StartDate != nil && r.WorkDate.Before(*filter.StartDate) {
			continue
		}
		if filter.EndDate != nil && r.WorkDate.After(*filter.EndDate) {
			continue
		}
		if filter.MissedOnly && !r.HasMissedPunch {
			continue
		}
		if filter.Finalised != nil && r.FinalisedForPayroll != *filter.Finalised {
			continue
		}
		out = append(out, cloneRecord(r))
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].WorkDate.Equal(out[j].WorkDate) {
			return out[i].WorkDate.Before(out[j].WorkDate)
		}
		return out[i].ID < out[j].ID
	})
	return paginate(out, filter.Page, filter.Limit), nil
}

func (a *AttendanceRepository) Create(ctx context.Context, record *attendance.Record) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if record.ID == "" {
		record.ID = newID()
	}
	a.records[record.ID] = cloneRecord(*record)
	return nil
}

func (a *AttendanceRepository) Update(ctx context.Context, record *attendance.Record) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	stored, ok := a.records[record.ID]
	if !ok {
		return attendance.ErrAttendanceRecordNotFound
	}
	if stored.FinalisedForPayroll {
		return attendance.ErrRecordFinalised
	}
	next := cloneRecord(*record)
	next.FinalisedForPayroll = false
	next.FinalisedAt = nil
	a.records[record.ID] = next
	return nil
}

// LockEmployee is a no-op; callers already hold the in-process employee lock.
func (a *AttendanceRepository) LockEmployee(ctx context.Context, employeeID string) error {
	return nil
}

func (a *AttendanceRepository) GetOpenRecordID(ctx context.Context, employeeID string) (string, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.open[employeeID], nil
}

func (a *AttendanceRepository) SetOpenRecordID(ctx context.Context, employeeID, recordID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.open[employeeID] = recordID
	return nil
}

func (a *AttendanceRepository) MarkFinalised(ctx context.Context, id string, at time.Time) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	r, ok := a.records[id]
	if !ok {
		return false, attendance.ErrAttendanceRecordNotFound
	}
	if r.FinalisedForPayroll {
		return false, nil
	}
	r.FinalisedForPayroll = true
	r.FinalisedAt = &at
	r.UpdatedAt = at
	a.records[id] = r
	return true, nil
}

func toSet(values []string) map[string]bool {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}

func paginate[T any](items []T, page, limit int) []T {
	if limit <= 0 {
		return items
	}
	if page < 1 {
		page = 1
	}
	start := (page - 1) * limit
	if start >= len(items) {
		return []T{}
	}
	end := start + limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
