package postgresql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/timeconfig"
	"github.com/cmlabs-hris/hris-timekeeping/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

type timeConfigRepository struct {
	db *database.DB
}

func NewTimeConfigRepository(db *database.DB) timeconfig.Repository {
	return &timeConfigRepository{db: db}
}

// ===== Shift types =====

const shiftTypeColumns = `
	id, name, start_time, end_time, grace_period_minutes, break_minutes,
	punch_mode, segments, is_active, created_at, updated_at`

func scanShiftType(row pgx.Row) (*timeconfig.ShiftType, error) {
	var (
		s        timeconfig.ShiftType
		mode     string
		segments []byte
	)
	err := row.Scan(
		&s.ID, &s.Name, &s.StartTime, &s.EndTime, &s.GracePeriodMinutes, &s.BreakMinutes,
		&mode, &segments, &s.IsActive, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.PunchMode = timeconfig.PunchMode(mode)
	if len(segments) > 0 {
		if err := json.Unmarshal(segments, &s.Segments); err != nil {
			return nil, fmt.Errorf("failed to decode shift segments: %w", err)
		}
	}
	return &s, nil
}

func (r *timeConfigRepository) CreateShiftType(ctx context.Context, shift *timeconfig.ShiftType) error {
	q := GetQuerier(ctx, r.db)

	if shift.ID == "" {
		shift.ID = newID()
	}
	segments := shift.Segments
	if segments == nil {
		segments = []timeconfig.ShiftSegment{}
	}
	segmentsJSON, err := json.Marshal(segments)
	if err != nil {
		return fmt.Errorf("failed to encode shift segments: %w", err)
	}

	query := `
		INSERT INTO shift_types (
			id, name, start_time, end_time, grace_period_minutes, break_minutes,
			punch_mode, segments, is_active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err = q.Exec(ctx, query,
		shift.ID, shift.Name, shift.StartTime, shift.EndTime, shift.GracePeriodMinutes, shift.BreakMinutes,
		string(shift.PunchMode), segmentsJSON, shift.IsActive, shift.CreatedAt, shift.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create shift type: %w", err)
	}
	return nil
}

func (r *timeConfigRepository) GetShiftType(ctx context.Context, id string) (*timeconfig.ShiftType, error) {
	q := GetQuerier(ctx, r.db)

	s, err := scanShiftType(q.QueryRow(ctx, `SELECT `+shiftTypeColumns+` FROM shift_types WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, timeconfig.ErrShiftTypeNotFound
		}
		return nil, fmt.Errorf("failed to get shift type %s: %w", id, err)
	}
	return s, nil
}

func (r *timeConfigRepository) ListShiftTypes(ctx context.Context) ([]timeconfig.ShiftType, error) {
	q := GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx, `SELECT `+shiftTypeColumns+` FROM shift_types ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list shift types: %w", err)
	}
	defer rows.Close()

	shifts := make([]timeconfig.ShiftType, 0)
	for rows.Next() {
		s, err := scanShiftType(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan shift type: %w", err)
		}
		shifts = append(shifts, *s)
	}
	return shifts, rows.Err()
}

// ===== Shift assignments =====

const assignmentColumns = `
	id, shift_type_id, scheduling_rule_id, employee_id, department_id, position_id,
	start_date, end_date, status, created_by, approved_by, approved_at, created_at, updated_at`

func scanAssignment(row pgx.Row) (*timeconfig.ShiftAssignment, error) {
	var (
		a      timeconfig.ShiftAssignment
		status string
	)
	err := row.Scan(
		&a.ID, &a.ShiftTypeID, &a.SchedulingRuleID, &a.EmployeeID, &a.DepartmentID, &a.PositionID,
		&a.StartDate, &a.EndDate, &status, &a.CreatedBy, &a.ApprovedBy, &a.ApprovedAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.Status = timeconfig.AssignmentStatus(status)
	return &a, nil
}

func (r *timeConfigRepository) queryAssignments(ctx context.Context, c conditions) ([]timeconfig.ShiftAssignment, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + assignmentColumns + ` FROM shift_assignments ` + c.where() + ` ORDER BY start_date DESC, id DESC`
	rows, err := q.Query(ctx, query, c.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list shift assignments: %w", err)
	}
	defer rows.Close()

	assignments := make([]timeconfig.ShiftAssignment, 0)
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan shift assignment: %w", err)
		}
		assignments = append(assignments, *a)
	}
	return assignments, rows.Err()
}

func (r *timeConfigRepository) CreateAssignment(ctx context.Context, assignment *timeconfig.ShiftAssignment) error {
	q := GetQuerier(ctx, r.db)

	if assignment.ID == "" {
		assignment.ID = newID()
	}

	query := `
		INSERT INTO shift_assignments (
			id, shift_type_id, scheduling_rule_id, employee_id, department_id, position_id,
			start_date, end_date, status, created_by, approved_by, approved_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := q.Exec(ctx, query,
		assignment.ID, assignment.ShiftTypeID, assignment.SchedulingRuleID,
		assignment.EmployeeID, assignment.DepartmentID, assignment.PositionID,
		assignment.StartDate, assignment.EndDate, string(assignment.Status), assignment.CreatedBy,
		assignment.ApprovedBy, assignment.ApprovedAt, assignment.CreatedAt, assignment.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create shift assignment: %w", err)
	}
	return nil
}

func (r *timeConfigRepository) GetAssignment(ctx context.Context, id string) (*timeconfig.ShiftAssignment, error) {
	q := GetQuerier(ctx, r.db)

	a, err := scanAssignment(q.QueryRow(ctx, `SELECT `+assignmentColumns+` FROM shift_assignments WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, timeconfig.ErrAssignmentNotFound
		}
		return nil, fmt.Errorf("failed to get shift assignment %s: %w", id, err)
	}
	return a, nil
}

func (r *timeConfigRepository) ListAssignments(ctx context.Context, filter timeconfig.AssignmentFilter) ([]timeconfig.ShiftAssignment, error) {
	var c conditions
	if filter.EmployeeID != nil {
		c.add("employee_id = $%d", *filter.EmployeeID)
	}
	if filter.DepartmentID != nil {
		c.add("department_id = $%d", *filter.DepartmentID)
	}
	if filter.PositionID != nil {
		c.add("position_id = $%d", *filter.PositionID)
	}
	if filter.Status != nil {
		c.add("status = $%d", string(*filter.Status))
	}
	return r.queryAssignments(ctx, c)
}

func (r *timeConfigRepository) UpdateAssignmentStatus(ctx context.Context, assignment *timeconfig.ShiftAssignment, expected timeconfig.AssignmentStatus) error {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE shift_assignments SET
			status = $3, end_date = $4, approved_by = $5, approved_at = $6, updated_at = $7
		WHERE id = $1 AND status = $2
	`
	tag, err := q.Exec(ctx, query,
		assignment.ID, string(expected),
		string(assignment.Status), assignment.EndDate, assignment.ApprovedBy, assignment.ApprovedAt, assignment.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update shift assignment: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	if _, err := r.GetAssignment(ctx, assignment.ID); err != nil {
		return err
	}
	return timeconfig.ErrInvalidAssignmentStatus
}

func (r *timeConfigRepository) FindApprovedAssignments(ctx context.Context, employeeID string, departmentID, positionID *string, day time.Time) ([]timeconfig.ShiftAssignment, error) {
	var c conditions
	c.add("status = $%d", string(timeconfig.AssignmentApproved))
	c.add("start_date <= $%d", day)
	c.add("(end_date IS NULL OR end_date >= $%d)", day)
	employeeArg := c.next()
	c.args = append(c.args, employeeID, departmentID, positionID)
	c.raw(fmt.Sprintf(
		"(employee_id = $%d OR ($%d::uuid IS NOT NULL AND department_id = $%d) OR ($%d::uuid IS NOT NULL AND position_id = $%d))",
		employeeArg, employeeArg+1, employeeArg+1, employeeArg+2, employeeArg+2,
	))
	return r.queryAssignments(ctx, c)
}

func (r *timeConfigRepository) ExpireAssignments(ctx context.Context, today time.Time) (int, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE shift_assignments SET status = $1, updated_at = $3
		WHERE status = $2 AND end_date IS NOT NULL AND end_date < $3
	`
	tag, err := q.Exec(ctx, query, string(timeconfig.AssignmentExpired), string(timeconfig.AssignmentApproved), today)
	if err != nil {
		return 0, fmt.Errorf("failed to expire shift assignments: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// ===== Scheduling rules =====

const schedulingRuleColumns = `id, name, weekly_pattern, min_weekly_hours, max_weekly_hours, created_at, updated_at`

func scanSchedulingRule(row pgx.Row) (*timeconfig.SchedulingRule, error) {
	var (
		rule    timeconfig.SchedulingRule
		pattern []byte
	)
	err := row.Scan(&rule.ID, &rule.Name, &pattern, &rule.MinWeeklyHours, &rule.MaxWeeklyHours, &rule.CreatedAt, &rule.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(pattern) > 0 {
		if err := json.Unmarshal(pattern, &rule.WeeklyPattern); err != nil {
			return nil, fmt.Errorf("failed to decode weekly pattern: %w", err)
		}
	}
	return &rule, nil
}

func (r *timeConfigRepository) CreateSchedulingRule(ctx context.Context, rule *timeconfig.SchedulingRule) error {
	q := GetQuerier(ctx, r.db)

	if rule.ID == "" {
		rule.ID = newID()
	}
	pattern, err := json.Marshal(rule.WeeklyPattern)
	if err != nil {
		return fmt.Errorf("failed to encode weekly pattern: %w", err)
	}

	query := `
		INSERT INTO scheduling_rules (id, name, weekly_pattern, min_weekly_hours, max_weekly_hours, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = q.Exec(ctx, query, rule.ID, rule.Name, pattern, rule.MinWeeklyHours, rule.MaxWeeklyHours, rule.CreatedAt, rule.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create scheduling rule: %w", err)
	}
	return nil
}

func (r *timeConfigRepository) GetSchedulingRule(ctx context.Context, id string) (*timeconfig.SchedulingRule, error) {
	q := GetQuerier(ctx, r.db)

	rule, err := scanSchedulingRule(q.QueryRow(ctx, `SELECT `+schedulingRuleColumns+` FROM scheduling_rules WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, timeconfig.ErrSchedulingRuleNotFound
		}
		return nil, fmt.Errorf("failed to get scheduling rule %s: %w", id, err)
	}
	return rule, nil
}

func (r *timeConfigRepository) ListSchedulingRules(ctx context.Context) ([]timeconfig.SchedulingRule, error) {
	q := GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx, `SELECT `+schedulingRuleColumns+` FROM scheduling_rules ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list scheduling rules: %w", err)
	}
	defer rows.Close()

	rules := make([]timeconfig.SchedulingRule, 0)
	for rows.Next() {
		rule, err := scanSchedulingRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan scheduling rule: %w", err)
		}
		rules = append(rules, *rule)
	}
	return rules, rows.Err()
}

// ===== Overtime rules =====

const overtimeRuleColumns = `id, name, multiplier, context_type, requires_pre_approval, is_active, created_at, updated_at`

func scanOvertimeRule(row pgx.Row) (*timeconfig.OvertimeRule, error) {
	var (
		rule        timeconfig.OvertimeRule
		contextType string
	)
	err := row.Scan(&rule.ID, &rule.Name, &rule.Multiplier, &contextType, &rule.RequiresPreApproval, &rule.IsActive, &rule.CreatedAt, &rule.UpdatedAt)
	if err != nil {
		return nil, err
	}
	rule.ContextType = timeconfig.OvertimeContext(contextType)
	return &rule, nil
}

func (r *timeConfigRepository) CreateOvertimeRule(ctx context.Context, rule *timeconfig.OvertimeRule) error {
	q := GetQuerier(ctx, r.db)

	if rule.ID == "" {
		rule.ID = newID()
	}

	query := `
		INSERT INTO overtime_rules (id, name, multiplier, context_type, requires_pre_approval, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := q.Exec(ctx, query,
		rule.ID, rule.Name, rule.Multiplier, string(rule.ContextType), rule.RequiresPreApproval, rule.IsActive, rule.CreatedAt, rule.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create overtime rule: %w", err)
	}
	return nil
}

func (r *timeConfigRepository) GetOvertimeRule(ctx context.Context, id string) (*timeconfig.OvertimeRule, error) {
	q := GetQuerier(ctx, r.db)

	rule, err := scanOvertimeRule(q.QueryRow(ctx, `SELECT `+overtimeRuleColumns+` FROM overtime_rules WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, timeconfig.ErrOvertimeRuleNotFound
		}
		return nil, fmt.Errorf("failed to get overtime rule %s: %w", id, err)
	}
	return rule, nil
}

func (r *timeConfigRepository) ListOvertimeRules(ctx context.Context) ([]timeconfig.OvertimeRule, error) {
	q := GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx, `SELECT `+overtimeRuleColumns+` FROM overtime_rules ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list overtime rules: %w", err)
	}
	defer rows.Close()

	rules := make([]timeconfig.OvertimeRule, 0)
	for rows.Next() {
		rule, err := scanOvertimeRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan overtime rule: %w", err)
		}
		rules = append(rules, *rule)
	}
	return rules, rows.Err()
}

// ===== Permission rules =====

const permissionRuleColumns = `id, name, max_duration_minutes, is_paid_time, is_active, created_at, updated_at`

func scanPermissionRule(row pgx.Row) (*timeconfig.PermissionRule, error) {
	var rule timeconfig.PermissionRule
	err := row.Scan(&rule.ID, &rule.Name, &rule.MaxDurationMinutes, &rule.IsPaidTime, &rule.IsActive, &rule.CreatedAt, &rule.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

func (r *timeConfigRepository) CreatePermissionRule(ctx context.Context, rule *timeconfig.PermissionRule) error {
	q := GetQuerier(ctx, r.db)

	if rule.ID == "" {
		rule.ID = newID()
	}

	query := `
		INSERT INTO permission_rules (id, name, max_duration_minutes, is_paid_time, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := q.Exec(ctx, query, rule.ID, rule.Name, rule.MaxDurationMinutes, rule.IsPaidTime, rule.IsActive, rule.CreatedAt, rule.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create permission rule: %w", err)
	}
	return nil
}

func (r *timeConfigRepository) GetPermissionRule(ctx context.Context, id string) (*timeconfig.PermissionRule, error) {
	q := GetQuerier(ctx, r.db)

	rule, err := scanPermissionRule(q.QueryRow(ctx, `SELECT `+permissionRuleColumns+` FROM permission_rules WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, timeconfig.ErrPermissionRuleNotFound
		}
		return nil, fmt.Errorf("failed to get permission rule %s: %w", id, err)
	}
	return rule, nil
}

func (r *timeConfigRepository) ListPermissionRules(ctx context.Context) ([]timeconfig.PermissionRule, error) {
	q := GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx, `SELECT `+permissionRuleColumns+` FROM permission_rules ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list permission rules: %w", err)
	}
	defer rows.Close()

	rules := make([]timeconfig.PermissionRule, 0)
	for rows.Next() {
		rule, err := scanPermissionRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan permission rule: %w", err)
		}
		rules = append(rules, *rule)
	}
	return rules, rows.Err()
}
