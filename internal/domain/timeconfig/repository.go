package timeconfig

import (
	"context"
	"time"
)

type AssignmentFilter struct {
	EmployeeID   *string
	DepartmentID *string
	PositionID   *string
	Status       *AssignmentStatus
}

type Repository interface {
	CreateShiftType(ctx context.Context, shift *ShiftType) error
	GetShiftType(ctx context.Context, id string) (*ShiftType, error)
	ListShiftTypes(ctx context.Context) ([]ShiftType, error)

	CreateAssignment(ctx context.Context, assignment *ShiftAssignment) error
	GetAssignment(ctx context.Context, id string) (*ShiftAssignment, error)
	ListAssignments(ctx context.Context, filter AssignmentFilter) ([]ShiftAssignment, error)
	UpdateAssignmentStatus(ctx context.Context, assignment *ShiftAssignment, expected AssignmentStatus) error
	// FindApprovedAssignments returns approved assignments covering day for
	// any of the given targets.
	FindApprovedAssignments(ctx context.Context, employeeID string, departmentID, positionID *string, day time.Time) ([]ShiftAssignment, error)
	ExpireAssignments(ctx context.Context, today time.Time) (int, error)

	CreateSchedulingRule(ctx context.Context, rule *SchedulingRule) error
	GetSchedulingRule(ctx context.Context, id string) (*SchedulingRule, error)
	ListSchedulingRules(ctx context.Context) ([]SchedulingRule, error)

	CreateOvertimeRule(ctx context.Context, rule *OvertimeRule) error
	GetOvertimeRule(ctx context.Context, id string) (*OvertimeRule, error)
	ListOvertimeRules(ctx context.Context) ([]OvertimeRule, error)

	CreatePermissionRule(ctx context.Context, rule *PermissionRule) error
	GetPermissionRule(ctx context.Context, id string) (*PermissionRule, error)
	ListPermissionRules(ctx context.Context) ([]PermissionRule, error)
}
