package timeconfig

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/approval"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/audit"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/employee"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/timeconfig"
	"github.com/cmlabs-hris/hris-timekeeping/internal/pkg/daterange"
)

// cache is a read-through map safe for concurrent readers.
type cache[T any] struct {
	mu    sync.RWMutex
	items map[string]T
}

func newCache[T any]() *cache[T] {
	return &cache[T]{items: make(map[string]T)}
}

func (c *cache[T]) get(id string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.items[id]
	return v, ok
}

func (c *cache[T]) put(id string, v T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[id] = v
}

func (c *cache[T]) load(id string, fetch func() (*T, error)) (*T, error) {
	if v, ok := c.get(id); ok {
		return &v, nil
	}
	v, err := fetch()
	if err != nil {
		return nil, err
	}
	c.put(id, *v)
	return v, nil
}

type TimeConfigServiceImpl struct {
	repo     timeconfig.Repository
	auditLog audit.Repository

	shifts     *cache[timeconfig.ShiftType]
	rules      *cache[timeconfig.SchedulingRule]
	overtime   *cache[timeconfig.OvertimeRule]
	permission *cache[timeconfig.PermissionRule]

	now func() time.Time
}

func NewTimeConfigService(repo timeconfig.Repository, auditLog audit.Repository) *TimeConfigServiceImpl {
	return &TimeConfigServiceImpl{
		repo:       repo,
		auditLog:   auditLog,
		shifts:     newCache[timeconfig.ShiftType](),
		rules:      newCache[timeconfig.SchedulingRule](),
		overtime:   newCache[timeconfig.OvertimeRule](),
		permission: newCache[timeconfig.PermissionRule](),
		now:        time.Now,
	}
}

var _ timeconfig.Service = (*TimeConfigServiceImpl)(nil)

func (s *TimeConfigServiceImpl) WithClock(now func() time.Time) *TimeConfigServiceImpl {
	s.now = now
	return s
}

// ========================================
// SHIFT TYPES
// ========================================

func (s *TimeConfigServiceImpl) CreateShiftType(ctx context.Context, req timeconfig.CreateShiftTypeRequest) (*timeconfig.ShiftType, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	shift := &timeconfig.ShiftType{
		Name:               req.Name,
		StartTime:          req.StartTime,
		EndTime:            req.EndTime,
		GracePeriodMinutes: req.GracePeriodMinutes,
		BreakMinutes:       req.BreakMinutes,
		PunchMode:          req.PunchMode,
		Segments:           req.Segments,
		IsActive:           true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.repo.CreateShiftType(ctx, shift); err != nil {
		return nil, fmt.Errorf("failed to create shift type: %w", err)
	}
	s.shifts.put(shift.ID, *shift)
	return shift, nil
}

func (s *TimeConfigServiceImpl) GetShiftType(ctx context.Context, id string) (*timeconfig.ShiftType, error) {
	return s.shifts.load(id, func() (*timeconfig.ShiftType, error) {
		return s.repo.GetShiftType(ctx, id)
	})
}

func (s *TimeConfigServiceImpl) ListShiftTypes(ctx context.Context) ([]timeconfig.ShiftType, error) {
	return s.repo.ListShiftTypes(ctx)
}

// ========================================
// SHIFT ASSIGNMENTS
// ========================================

func (s *TimeConfigServiceImpl) CreateAssignment(ctx context.Context, actor approval.Actor, req timeconfig.CreateAssignmentRequest) (*timeconfig.ShiftAssignment, error) {
	if !actor.IsHR() {
		return nil, approval.ErrForbiddenActor
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if req.ShiftTypeID != nil {
		if _, err := s.GetShiftType(ctx, *req.ShiftTypeID); err != nil {
			return nil, err
		}
	}
	if req.SchedulingRuleID != nil {
		if _, err := s.GetSchedulingRule(ctx, *req.SchedulingRuleID); err != nil {
			return nil, err
		}
	}

	start, _ := time.Parse(daterange.Layout, req.StartDate)
	var end *time.Time
	if req.EndDate != nil {
		e, _ := time.Parse(daterange.Layout, *req.EndDate)
		end = &e
	}

	status := timeconfig.AssignmentDraft
	if req.Submit {
		status = timeconfig.AssignmentSubmitted
	}

	now := s.now().UTC()
	a := &timeconfig.ShiftAssignment{
		ShiftTypeID:      req.ShiftTypeID,
		SchedulingRuleID: req.SchedulingRuleID,
		EmployeeID:       nonEmpty(req.EmployeeID),
		DepartmentID:     nonEmpty(req.DepartmentID),
		PositionID:       nonEmpty(req.PositionID),
		StartDate:        start,
		EndDate:          end,
		Status:           status,
		CreatedBy:        actor.ID(),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.repo.CreateAssignment(ctx, a); err != nil {
		return nil, fmt.Errorf("failed to create shift assignment: %w", err)
	}

	s.appendAudit(ctx, actor, a.ID, "created", map[string]interface{}{"status": string(status)}, now)
	return a, nil
}

func (s *TimeConfigServiceImpl) GetAssignment(ctx context.Context, id string) (*timeconfig.ShiftAssignment, error) {
	return s.repo.GetAssignment(ctx, id)
}

func (s *TimeConfigServiceImpl) ListAssignments(ctx context.Context, filter timeconfig.AssignmentFilter) ([]timeconfig.ShiftAssignment, error) {
	return s.repo.ListAssignments(ctx, filter)
}

// TransitionAssignment moves an assignment along
// draft -> submitted -> approved|rejected, with cancellation from any live state.
func (s *TimeConfigServiceImpl) TransitionAssignment(ctx context.Context, actor approval.Actor, id string, target timeconfig.AssignmentStatus) (*timeconfig.ShiftAssignment, error) {
	if !actor.IsHR() {
		return nil, approval.ErrForbiddenActor
	}

	a, err := s.repo.GetAssignment(ctx, id)
	if err != nil {
		return nil, err
	}
	if !a.Status.CanTransitionTo(target) || target == timeconfig.AssignmentExpired {
		return nil, fmt.Errorf("%w: %s -> %s", timeconfig.ErrInvalidAssignmentStatus, a.Status, target)
	}

	now := s.now().UTC()
	expected := a.Status
	a.Status = target
	a.UpdatedAt = now
	if target == timeconfig.AssignmentApproved {
		approver := actor.ID()
		a.ApprovedBy = &approver
		a.ApprovedAt = &now
	}

	if err := s.repo.UpdateAssignmentStatus(ctx, a, expected); err != nil {
		return nil, err
	}

	s.appendAudit(ctx, actor, a.ID, string(target), map[string]interface{}{
		"from": string(expected),
		"to":   string(target),
	}, now)
	return a, nil
}

func (s *TimeConfigServiceImpl) ExpireAssignments(ctx context.Context) (int, error) {
	return s.repo.ExpireAssignments(ctx, daterange.DayStart(s.now()))
}

// ActiveAssignment implements timeconfig.Reader. Employee assignments win over
// department ones, which win over position ones; within a level the most
// recently started assignment wins.
func (s *TimeConfigServiceImpl) ActiveAssignment(ctx context.Context, emp employee.Employee, day time.Time) (*timeconfig.ShiftAssignment, *timeconfig.ShiftType, error) {
	candidates, err := s.repo.FindApprovedAssignments(ctx, emp.ID, emp.DepartmentID, emp.PositionID, day)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find shift assignments: %w", err)
	}

	var chosen *timeconfig.ShiftAssignment
	bestRank := 4
	for i := range candidates {
		if r := rank(candidates[i], emp); r < bestRank {
			chosen, bestRank = &candidates[i], r
		}
	}
	if chosen == nil {
		return nil, nil, timeconfig.ErrNoActiveAssignment
	}

	shiftID := ""
	switch {
	case chosen.ShiftTypeID != nil:
		shiftID = *chosen.ShiftTypeID
	case chosen.SchedulingRuleID != nil:
		rule, err := s.GetSchedulingRule(ctx, *chosen.SchedulingRuleID)
		if err != nil {
			return chosen, nil, err
		}
		id, ok := rule.ShiftFor(day.Weekday())
		if !ok {
			return chosen, nil, timeconfig.ErrRestDay
		}
		shiftID = id
	default:
		return chosen, nil, timeconfig.ErrShiftTypeNotFound
	}

	shift, err := s.GetShiftType(ctx, shiftID)
	if err != nil {
		return chosen, nil, err
	}
	if !shift.IsActive {
		return chosen, nil, fmt.Errorf("%w: shift type %s is inactive", timeconfig.ErrShiftTypeNotFound, shift.ID)
	}
	return chosen, shift, nil
}

func rank(a timeconfig.ShiftAssignment, emp employee.Employee) int {
	switch {
	case a.EmployeeID != nil && *a.EmployeeID == emp.ID:
		return 1
	case a.DepartmentID != nil && emp.DepartmentID != nil && *a.DepartmentID == *emp.DepartmentID:
		return 2
	case a.PositionID != nil && emp.PositionID != nil && *a.PositionID == *emp.PositionID:
		return 3
	}
	return 4
}

// ========================================
// RULES
// ========================================

func (s *TimeConfigServiceImpl) CreateSchedulingRule(ctx context.Context, req timeconfig.CreateSchedulingRuleRequest) (*timeconfig.SchedulingRule, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	for _, e := range req.WeeklyPattern {
		if e.ShiftTypeID == nil {
			continue
		}
		if _, err := s.GetShiftType(ctx, *e.ShiftTypeID); err != nil {
			return nil, err
		}
	}

	now := s.now().UTC()
	rule := &timeconfig.SchedulingRule{
		Name:           req.Name,
		WeeklyPattern:  req.WeeklyPattern,
		MinWeeklyHours: req.MinWeeklyHours,
		MaxWeeklyHours: req.MaxWeeklyHours,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.CreateSchedulingRule(ctx, rule); err != nil {
		return nil, fmt.Errorf("failed to create scheduling rule: %w", err)
	}
	s.rules.put(rule.ID, *rule)
	return rule, nil
}

func (s *TimeConfigServiceImpl) GetSchedulingRule(ctx context.Context, id string) (*timeconfig.SchedulingRule, error) {
	return s.rules.load(id, func() (*timeconfig.SchedulingRule, error) {
		return s.repo.GetSchedulingRule(ctx, id)
	})
}

func (s *TimeConfigServiceImpl) ListSchedulingRules(ctx context.Context) ([]timeconfig.SchedulingRule, error) {
	return s.repo.ListSchedulingRules(ctx)
}

func (s *TimeConfigServiceImpl) CreateOvertimeRule(ctx context.Context, req timeconfig.CreateOvertimeRuleRequest) (*timeconfig.OvertimeRule, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	rule := &timeconfig.OvertimeRule{
		Name:                req.Name,
		Multiplier:          req.Multiplier,
		ContextType:         req.ContextType,
		RequiresPreApproval: req.RequiresPreApproval,
		IsActive:            true,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := s.repo.CreateOvertimeRule(ctx, rule); err != nil {
		return nil, fmt.Errorf("failed to create overtime rule: %w", err)
	}
	s.overtime.put(rule.ID, *rule)
	return rule, nil
}

func (s *TimeConfigServiceImpl) GetOvertimeRule(ctx context.Context, id string) (*timeconfig.OvertimeRule, error) {
	return s.overtime.load(id, func() (*timeconfig.OvertimeRule, error) {
		return s.repo.GetOvertimeRule(ctx, id)
	})
}

func (s *TimeConfigServiceImpl) ListOvertimeRules(ctx context.Context) ([]timeconfig.OvertimeRule, error) {
	return s.repo.ListOvertimeRules(ctx)
}

func (s *TimeConfigServiceImpl) CreatePermissionRule(ctx context.Context, req timeconfig.CreatePermissionRuleRequest) (*timeconfig.PermissionRule, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	rule := &timeconfig.PermissionRule{
		Name:               req.Name,
		MaxDurationMinutes: req.MaxDurationMinutes,
		IsPaidTime:         req.IsPaidTime,
		IsActive:           true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.repo.CreatePermissionRule(ctx, rule); err != nil {
		return nil, fmt.Errorf("failed to create permission rule: %w", err)
	}
	s.permission.put(rule.ID, *rule)
	return rule, nil
}

func (s *TimeConfigServiceImpl) GetPermissionRule(ctx context.Context, id string) (*timeconfig.PermissionRule, error) {
	return s.permission.load(id, func() (*timeconfig.PermissionRule, error) {
		return s.repo.GetPermissionRule(ctx, id)
	})
}

func (s *TimeConfigServiceImpl) ListPermissionRules(ctx context.Context) ([]timeconfig.PermissionRule, error) {
	return s.repo.ListPermissionRules(ctx)
}

// appendAudit records assignment changes. The assignment is already stored
// at this point, so a failed write is only logged.
func (s *TimeConfigServiceImpl) appendAudit(ctx context.Context, actor approval.Actor, id, action string, payload map[string]interface{}, at time.Time) {
	event := audit.NewEvent(audit.EntityShiftAssignment, id, action, actor.ID(), string(actor.Role), at).WithPayload(payload)
	if err := s.auditLog.Append(ctx, event); err != nil {
		slog.Error("Failed to append shift assignment audit entry", "assignment_id", id, "error", err)
	}
}

func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}
