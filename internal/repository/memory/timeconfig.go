package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/timeconfig"
)

type TimeConfigRepository struct {
	mu          sync.RWMutex
	shifts      map[string]timeconfig.ShiftType
	assignments map[string]timeconfig.ShiftAssignment
	rules       map[string]timeconfig.SchedulingRule
	overtime    map[string]timeconfig.OvertimeRule
	permission  map[string]timeconfig.PermissionRule
}

func NewTimeConfigRepository() *TimeConfigRepository {
	return &TimeConfigRepository{
		shifts:      make(map[string]timeconfig.ShiftType),
		assignments: make(map[string]timeconfig.ShiftAssignment),
		rules:       make(map[string]timeconfig.SchedulingRule),
		overtime:    make(map[string]timeconfig.OvertimeRule),
		permission:  make(map[string]timeconfig.PermissionRule),
	}
}

var _ timeconfig.Repository = (*TimeConfigRepository)(nil)

func (r *TimeConfigRepository) CreateShiftType(ctx context.Context, shift *timeconfig.ShiftType) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if shift.ID == "" {
		shift.ID = newID()
	}
	s := *shift
	s.Segments = append([]timeconfig.ShiftSegment(nil), shift.Segments...)
	r.shifts[s.ID] = s
	return nil
}

func (r *TimeConfigRepository) GetShiftType(ctx context.Context, id string) (*timeconfig.ShiftType, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.shifts[id]
	if !ok {
		return nil, timeconfig.ErrShiftTypeNotFound
	}
	return &s, nil
}

func (r *TimeConfigRepository) ListShiftTypes(ctx context.Context) ([]timeconfig.ShiftType, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedValues(r.shifts, func(s timeconfig.ShiftType) string { return s.Name }), nil
}

func (r *TimeConfigRepository) CreateAssignment(ctx context.Context, a *timeconfig.ShiftAssignment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a.ID == "" {
		a.ID = newID()
	}
	r.assignments[a.ID] = *a
	return nil
}

func (r *TimeConfigRepository) GetAssignment(ctx context.Context, id string) (*timeconfig.ShiftAssignment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.assignments[id]
	if !ok {
		return nil, timeconfig.ErrAssignmentNotFound
	}
	return &a, nil
}

func (r *TimeConfigRepository) ListAssignments(ctx context.Context, filter timeconfig.AssignmentFilter) ([]timeconfig.ShiftAssignment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]timeconfig.ShiftAssignment, 0)
	for _, a := range r.assignments {
		if filter.EmployeeID != nil && (a.EmployeeID == nil || *a.EmployeeID != *filter.EmployeeID) {
			continue
		}
		if filter.DepartmentID != nil && (a.DepartmentID == nil || *a.DepartmentID != *filter.DepartmentID) {
			continue
		}
		if filter.PositionID != nil && (a.PositionID == nil || *a.PositionID != *filter.PositionID) {
			continue
		}
		if filter.Status != nil && a.Status != *filter.Status {
			continue
		}
		out = append(out, a)
	}
	sortAssignments(out)
	return out, nil
}

func (r *TimeConfigRepository) UpdateAssignmentStatus(ctx context.Context, a *timeconfig.ShiftAssignment, expected timeconfig.AssignmentStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.assignments[a.ID]
	if !ok {
		return timeconfig.ErrAssignmentNotFound
	}
	if stored.Status != expected {
		return timeconfig.ErrInvalidAssignmentStatus
	}
	r.assignments[a.ID] = *a
	return nil
}

func (r *TimeConfigRepository) FindApprovedAssignments(ctx context.Context, employeeID string, departmentID, positionID *string, day time.Time) ([]timeconfig.ShiftAssignment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]timeconfig.ShiftAssignment, 0)
	for _, a := range r.assignments {
		if a.Status != timeconfig.AssignmentApproved || !a.Covers(day) {
			continue
		}
		switch {
		case a.EmployeeID != nil && *a.EmployeeID == employeeID:
		case a.DepartmentID != nil && departmentID != nil && *a.DepartmentID == *departmentID:
		case a.PositionID != nil && positionID != nil && *a.PositionID == *positionID:
		default:
			continue
		}
		out = append(out, a)
	}
	sortAssignments(out)
	return out, nil
}

func (r *TimeConfigRepository) ExpireAssignments(ctx context.Context, today time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for id, a := range r.assignments {
		if a.Status == timeconfig.AssignmentApproved && a.EndDate != nil && a.EndDate.Before(today) {
			a.Status = timeconfig.AssignmentExpired
			a.UpdatedAt = today
			r.assignments[id] = a
			n++
		}
	}
	return n, nil
}

func (r *TimeConfigRepository) CreateSchedulingRule(ctx context.Context, rule *timeconfig.SchedulingRule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rule.ID == "" {
		rule.ID = newID()
	}
	c := *rule
	c.WeeklyPattern = append([]timeconfig.WeeklyEntry(nil), rule.WeeklyPattern...)
	r.rules[c.ID] = c
	return nil
}

func (r *TimeConfigRepository) GetSchedulingRule(ctx context.Context, id string) (*timeconfig.SchedulingRule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rule, ok := r.rules[id]
	if !ok {
		return nil, timeconfig.ErrSchedulingRuleNotFound
	}
	return &rule, nil
}

func (r *TimeConfigRepository) ListSchedulingRules(ctx context.Context) ([]timeconfig.SchedulingRule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedValues(r.rules, func(s timeconfig.SchedulingRule) string { return s.Name }), nil
}

func (r *TimeConfigRepository) CreateOvertimeRule(ctx context.Context, rule *timeconfig.OvertimeRule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rule.ID == "" {
		rule.ID = newID()
	}
	r.overtime[rule.ID] = *rule
	return nil
}

func (r *TimeConfigRepository) GetOvertimeRule(ctx context.Context, id string) (*timeconfig.OvertimeRule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rule, ok := r.overtime[id]
	if !ok {
		return nil, timeconfig.ErrOvertimeRuleNotFound
	}
	return &rule, nil
}

func (r *TimeConfigRepository) ListOvertimeRules(ctx context.Context) ([]timeconfig.OvertimeRule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedValues(r.overtime, func(s timeconfig.OvertimeRule) string { return s.Name }), nil
}

func (r *TimeConfigRepository) CreatePermissionRule(ctx context.Context, rule *timeconfig.PermissionRule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rule.ID == "" {
		rule.ID = newID()
	}
	r.permission[rule.ID] = *rule
	return nil
}

func (r *TimeConfigRepository) GetPermissionRule(ctx context.Context, id string) (*timeconfig.PermissionRule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rule, ok := r.permission[id]
	if !ok {
		return nil, timeconfig.ErrPermissionRuleNotFound
	}
	return &rule, nil
}

func (r *TimeConfigRepository) ListPermissionRules(ctx context.Context) ([]timeconfig.PermissionRule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedValues(r.permission, func(s timeconfig.PermissionRule) string { return s.Name }), nil
}

func sortAssignments(out []timeconfig.ShiftAssignment) {
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartDate.Equal(out[j].StartDate) {
			return out[i].StartDate.After(out[j].StartDate)
		}
		return out[i].ID > out[j].ID
	})
}

func sortedValues[T any](m map[string]T, key func(T) string) []T {
	out := make([]T, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return key(out[i]) < key(out[j]) })
	return out
}
