package timeconfig

import (
	"context"
	"time"

	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/approval"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/employee"
)

// Reader is what the rest of the engine consumes from the registry.
type Reader interface {
	// ActiveAssignment resolves the assignment and shift in force for emp on
	// day, preferring employee over department over position assignments.
	ActiveAssignment(ctx context.Context, emp employee.Employee, day time.Time) (*ShiftAssignment, *ShiftType, error)
	GetShiftType(ctx context.Context, id string) (*ShiftType, error)
	GetOvertimeRule(ctx context.Context, id string) (*OvertimeRule, error)
	GetPermissionRule(ctx context.Context, id string) (*PermissionRule, error)
}

type Service interface {
	Reader

	CreateShiftType(ctx context.Context, req CreateShiftTypeRequest) (*ShiftType, error)
	ListShiftTypes(ctx context.Context) ([]ShiftType, error)

	CreateAssignment(ctx context.Context, actor approval.Actor, req CreateAssignmentRequest) (*ShiftAssignment, error)
	GetAssignment(ctx context.Context, id string) (*ShiftAssignment, error)
	ListAssignments(ctx context.Context, filter AssignmentFilter) ([]ShiftAssignment, error)
	TransitionAssignment(ctx context.Context, actor approval.Actor, id string, target AssignmentStatus) (*ShiftAssignment, error)
	ExpireAssignments(ctx context.Context) (int, error)

	CreateSchedulingRule(ctx context.Context, req CreateSchedulingRuleRequest) (*SchedulingRule, error)
	GetSchedulingRule(ctx context.Context, id string) (*SchedulingRule, error)
	ListSchedulingRules(ctx context.Context) ([]SchedulingRule, error)

	CreateOvertimeRule(ctx context.Context, req CreateOvertimeRuleRequest) (*OvertimeRule, error)
	ListOvertimeRules(ctx context.Context) ([]OvertimeRule, error)

	CreatePermissionRule(ctx context.Context, req CreatePermissionRuleRequest) (*PermissionRule, error)
	ListPermissionRules(ctx context.Context) ([]PermissionRule, error)
}
