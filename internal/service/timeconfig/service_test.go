package timeconfig

import (
	"context"
	"testing"
	"time"

	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/approval"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/audit"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/employee"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/timeconfig"
	"github.com/cmlabs-hris/hris-timekeeping/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var hrActor = approval.Actor{UserID: "user-hr", EmployeeID: "hr-1", Role: approval.RoleHR}

func strPtr(s string) *string { return &s }

func newService(now time.Time) (*TimeConfigServiceImpl, *memory.TimeConfigRepository, *memory.AuditRepository) {
	repo := memory.NewTimeConfigRepository()
	auditLog := memory.NewAuditRepository()
	svc := NewTimeConfigService(repo, auditLog).WithClock(func() time.Time { return now })
	return svc, repo, auditLog
}

func mustShift(t *testing.T, svc *TimeConfigServiceImpl, name, start, end string) *timeconfig.ShiftType {
	t.Helper()
	shift, err := svc.CreateShiftType(context.Background(), timeconfig.CreateShiftTypeRequest{
		Name:      name,
		StartTime: start,
		EndTime:   end,
	})
	require.NoError(t, err)
	return shift
}

func mustApprove(t *testing.T, svc *TimeConfigServiceImpl, req timeconfig.CreateAssignmentRequest) *timeconfig.ShiftAssignment {
	t.Helper()
	ctx := context.Background()
	req.Submit = true
	a, err := svc.CreateAssignment(ctx, hrActor, req)
	require.NoError(t, err)
	a, err = svc.TransitionAssignment(ctx, hrActor, a.ID, timeconfig.AssignmentApproved)
	require.NoError(t, err)
	return a
}

// ===== SHIFT TYPE TESTS =====

func TestTimeConfigService_CreateShiftType(t *testing.T) {
	svc, _, _ := newService(time.Now())

	shift := mustShift(t, svc, "Day", "09:00", "17:00")
	assert.NotEmpty(t, shift.ID)
	assert.True(t, shift.IsActive)
	assert.Equal(t, timeconfig.PunchModeMultiple, shift.PunchMode)

	got, err := svc.GetShiftType(context.Background(), shift.ID)
	require.NoError(t, err)
	assert.Equal(t, "Day", got.Name)

	_, err = svc.CreateShiftType(context.Background(), timeconfig.CreateShiftTypeRequest{Name: "Bad", StartTime: "9am", EndTime: "17:00"})
	assert.Error(t, err)

	_, err = svc.GetShiftType(context.Background(), "missing")
	assert.ErrorIs(t, err, timeconfig.ErrShiftTypeNotFound)
}

// ===== ASSIGNMENT TESTS =====

func TestTimeConfigService_AssignmentLifecycle(t *testing.T) {
	ctx := context.Background()
	svc, _, auditLog := newService(time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC))
	shift := mustShift(t, svc, "Day", "09:00", "17:00")

	a, err := svc.CreateAssignment(ctx, hrActor, timeconfig.CreateAssignmentRequest{
		ShiftTypeID: &shift.ID,
		EmployeeID:  strPtr("emp-1"),
		StartDate:   "2024-03-01",
	})
	require.NoError(t, err)
	assert.Equal(t, timeconfig.AssignmentDraft, a.Status)

	_, err = svc.TransitionAssignment(ctx, hrActor, a.ID, timeconfig.AssignmentApproved)
	assert.ErrorIs(t, err, timeconfig.ErrInvalidAssignmentStatus)

	a, err = svc.TransitionAssignment(ctx, hrActor, a.ID, timeconfig.AssignmentSubmitted)
	require.NoError(t, err)
	a, err = svc.TransitionAssignment(ctx, hrActor, a.ID, timeconfig.AssignmentApproved)
	require.NoError(t, err)
	require.NotNil(t, a.ApprovedBy)
	assert.Equal(t, "hr-1", *a.ApprovedBy)

	entity := audit.EntityShiftAssignment
	events, err := auditLog.List(ctx, audit.Filter{EntityType: &entity, EntityID: &a.ID})
	require.NoError(t, err)
	assert.Len(t, events, 3)
}

func TestTimeConfigService_AssignmentRequiresHR(t *testing.T) {
	svc, _, _ := newService(time.Now())
	shift := mustShift(t, svc, "Day", "09:00", "17:00")

	employeeActor := approval.Actor{EmployeeID: "emp-1", Role: approval.RoleEmployee}
	_, err := svc.CreateAssignment(context.Background(), employeeActor, timeconfig.CreateAssignmentRequest{
		ShiftTypeID: &shift.ID,
		EmployeeID:  strPtr("emp-1"),
		StartDate:   "2024-03-01",
	})
	assert.ErrorIs(t, err, approval.ErrForbiddenActor)
}

func TestTimeConfigService_ActiveAssignmentPrecedence(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(time.Now())

	deptShift := mustShift(t, svc, "Department", "08:00", "16:00")
	posShift := mustShift(t, svc, "Position", "07:00", "15:00")
	empShift := mustShift(t, svc, "Personal", "10:00", "18:00")

	mustApprove(t, svc, timeconfig.CreateAssignmentRequest{ShiftTypeID: &posShift.ID, PositionID: strPtr("pos-1"), StartDate: "2024-01-01"})
	mustApprove(t, svc, timeconfig.CreateAssignmentRequest{ShiftTypeID: &deptShift.ID, DepartmentID: strPtr("dept-1"), StartDate: "2024-01-01"})

	emp := employee.Employee{ID: "emp-1", DepartmentID: strPtr("dept-1"), PositionID: strPtr("pos-1")}
	day := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

	_, shift, err := svc.ActiveAssignment(ctx, emp, day)
	require.NoError(t, err)
	assert.Equal(t, deptShift.ID, shift.ID)

	mustApprove(t, svc, timeconfig.CreateAssignmentRequest{ShiftTypeID: &empShift.ID, EmployeeID: strPtr("emp-1"), StartDate: "2024-03-01", EndDate: strPtr("2024-03-10")})

	_, shift, err = svc.ActiveAssignment(ctx, emp, day)
	require.NoError(t, err)
	assert.Equal(t, empShift.ID, shift.ID)

	// Outside the personal assignment's window the department one applies again.
	_, shift, err = svc.ActiveAssignment(ctx, emp, time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, deptShift.ID, shift.ID)

	_, _, err = svc.ActiveAssignment(ctx, employee.Employee{ID: "emp-9"}, day)
	assert.ErrorIs(t, err, timeconfig.ErrNoActiveAssignment)
}

func TestTimeConfigService_SchedulingRule(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(time.Now())
	shift := mustShift(t, svc, "Day", "09:00", "17:00")

	rule, err := svc.CreateSchedulingRule(ctx, timeconfig.CreateSchedulingRuleRequest{
		Name: "Mon-Fri",
		WeeklyPattern: []timeconfig.WeeklyEntry{
			{Weekday: time.Monday, ShiftTypeID: &shift.ID},
			{Weekday: time.Tuesday, ShiftTypeID: &shift.ID},
			{Weekday: time.Wednesday, ShiftTypeID: &shift.ID},
			{Weekday: time.Thursday, ShiftTypeID: &shift.ID},
			{Weekday: time.Friday, ShiftTypeID: &shift.ID},
		},
	})
	require.NoError(t, err)

	mustApprove(t, svc, timeconfig.CreateAssignmentRequest{SchedulingRuleID: &rule.ID, EmployeeID: strPtr("emp-1"), StartDate: "2024-01-01"})
	emp := employee.Employee{ID: "emp-1"}

	_, got, err := svc.ActiveAssignment(ctx, emp, time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, shift.ID, got.ID)

	a, _, err := svc.ActiveAssignment(ctx, emp, time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC))
	assert.ErrorIs(t, err, timeconfig.ErrRestDay)
	assert.NotNil(t, a)

	_, err = svc.CreateSchedulingRule(ctx, timeconfig.CreateSchedulingRuleRequest{
		Name:          "Broken",
		WeeklyPattern: []timeconfig.WeeklyEntry{{Weekday: time.Monday, ShiftTypeID: strPtr("missing")}},
	})
	assert.ErrorIs(t, err, timeconfig.ErrShiftTypeNotFound)
}

func TestTimeConfigService_ExpireAssignments(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(time.Date(2024, 4, 1, 1, 0, 0, 0, time.UTC))
	shift := mustShift(t, svc, "Day", "09:00", "17:00")

	ended := mustApprove(t, svc, timeconfig.CreateAssignmentRequest{ShiftTypeID: &shift.ID, EmployeeID: strPtr("emp-1"), StartDate: "2024-01-01", EndDate: strPtr("2024-03-31")})
	open := mustApprove(t, svc, timeconfig.CreateAssignmentRequest{ShiftTypeID: &shift.ID, EmployeeID: strPtr("emp-2"), StartDate: "2024-01-01"})

	n, err := svc.ExpireAssignments(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := svc.GetAssignment(ctx, ended.ID)
	require.NoError(t, err)
	assert.Equal(t, timeconfig.AssignmentExpired, got.Status)

	got, err = svc.GetAssignment(ctx, open.ID)
	require.NoError(t, err)
	assert.Equal(t, timeconfig.AssignmentApproved, got.Status)
}

func TestTimeConfigService_Rules(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(time.Now())

	_, err := svc.CreatePermissionRule(ctx, timeconfig.CreatePermissionRuleRequest{Name: "Errand", MaxDurationMinutes: 0})
	assert.Error(t, err)

	p, err := svc.CreatePermissionRule(ctx, timeconfig.CreatePermissionRuleRequest{Name: "Errand", MaxDurationMinutes: 90})
	require.NoError(t, err)
	got, err := svc.GetPermissionRule(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 90, got.MaxDurationMinutes)

	rules, err := svc.ListPermissionRules(ctx)
	require.NoError(t, err)
	assert.Len(t, rules, 1)
}
