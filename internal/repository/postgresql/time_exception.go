package postgresql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/approval"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/attendance"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/timeexception"
	"github.com/cmlabs-hris/hris-timekeeping/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

type timeExceptionRepository struct {
	db *database.DB
}

func NewTimeExceptionRepository(db *database.DB) timeexception.Repository {
	return &timeExceptionRepository{db: db}
}

const timeExceptionColumns = `
	id, employee_id, exception_type, attendance_record_id, overtime_rule_id, permission_rule_id,
	work_date, start_date_time, end_date_time, reason, missing_punch,
	status, manager_id, hr_reviewer_id, pre_approved_at, pre_approved_by,
	escalated, escalated_at, forced_escalation,
	manager_note, manager_decided_at, hr_note, hr_decided_at,
	rejection_reason, cancelled_at, created_at, updated_at`

func scanTimeException(row pgx.Row) (*timeexception.Exception, error) {
	var (
		exc          timeexception.Exception
		excType      string
		status       string
		missingPunch *string
	)
	err := row.Scan(
		&exc.ID, &exc.EmployeeID, &excType, &exc.AttendanceRecordID, &exc.OvertimeRuleID, &exc.PermissionRuleID,
		&exc.WorkDate, &exc.StartDateTime, &exc.EndDateTime, &exc.Reason, &missingPunch,
		&status, &exc.ManagerID, &exc.HRReviewerID, &exc.PreApprovedAt, &exc.PreApprovedBy,
		&exc.Escalated, &exc.EscalatedAt, &exc.ForcedEscalation,
		&exc.ManagerNote, &exc.ManagerDecidedAt, &exc.HRNote, &exc.HRDecidedAt,
		&exc.RejectionReason, &exc.CancelledAt, &exc.CreatedAt, &exc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	exc.ExceptionType = timeexception.Type(excType)
	exc.Status = approval.Status(status)
	if missingPunch != nil {
		m := attendance.MissingPunch(*missingPunch)
		exc.MissingPunch = &m
	}
	return &exc, nil
}

func (t *timeExceptionRepository) queryOne(ctx context.Context, where string, args ...interface{}) (*timeexception.Exception, error) {
	q := GetQuerier(ctx, t.db)
	return scanTimeException(q.QueryRow(ctx, `SELECT `+timeExceptionColumns+` FROM time_exceptions `+where, args...))
}

// GetByID implements timeexception.Reader.
func (t *timeExceptionRepository) GetByID(ctx context.Context, id string) (*timeexception.Exception, error) {
	exc, err := t.queryOne(ctx, `WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, timeexception.ErrExceptionNotFound
		}
		return nil, fmt.Errorf("failed to get time exception %s: %w", id, err)
	}
	return exc, nil
}

// List implements timeexception.Reader.
func (t *timeExceptionRepository) List(ctx context.Context, filter timeexception.Filter) ([]timeexception.Exception, error) {
	q := GetQuerier(ctx, t.db)

	var c conditions
	if filter.EmployeeID != nil {
		c.add("employee_id = $%d", *filter.EmployeeID)
	}
	if filter.ManagerID != nil {
		c.add("manager_id = $%d", *filter.ManagerID)
	}
	if filter.AttendanceRecordID != nil {
		c.add("attendance_record_id = $%d", *filter.AttendanceRecordID)
	}
	if len(filter.AttendanceRecords) > 0 {
		c.add("attendance_record_id = ANY($%d)", filter.AttendanceRecords)
	}
	if len(filter.Types) > 0 {
		types := make([]string, len(filter.Types))
		for i, v := range filter.Types {
			types[i] = string(v)
		}
		c.add("exception_type = ANY($%d)", types)
	}
	if len(filter.Statuses) > 0 {
		c.add("status = ANY($%d)", statusStrings(filter.Statuses))
	}
	if filter.Escalated != nil {
		c.add("escalated = $%d", *filter.Escalated)
	}
	if filter.WorkDateStart != nil {
		c.add("work_date >= $%d", *filter.WorkDateStart)
	}
	if filter.WorkDateEnd != nil {
		c.add("work_date <= $%d", *filter.WorkDateEnd)
	}
	if filter.CreatedBefore != nil {
		c.add("created_at < $%d", *filter.CreatedBefore)
	}

	query := `SELECT ` + timeExceptionColumns + ` FROM time_exceptions ` + c.where() + ` ORDER BY created_at`
	rows, err := q.Query(ctx, query, c.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list time exceptions: %w", err)
	}
	defer rows.Close()

	exceptions := make([]timeexception.Exception, 0)
	for rows.Next() {
		exc, err := scanTimeException(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan time exception: %w", err)
		}
		exceptions = append(exceptions, *exc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating time exceptions: %w", err)
	}
	return exceptions, nil
}

// Create implements timeexception.Repository.
func (t *timeExceptionRepository) Create(ctx context.Context, exc *timeexception.Exception) error {
	q := GetQuerier(ctx, t.db)

	if exc.ID == "" {
		exc.ID = newID()
	}
	var missingPunch *string
	if exc.MissingPunch != nil {
		v := string(*exc.MissingPunch)
		missingPunch = &v
	}

	query := `
		INSERT INTO time_exceptions (
			id, employee_id, exception_type, attendance_record_id, overtime_rule_id, permission_rule_id,
			work_date, start_date_time, end_date_time, reason, missing_punch,
			status, manager_id, hr_reviewer_id, escalated, escalated_at, forced_escalation,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`
	_, err := q.Exec(ctx, query,
		exc.ID, exc.EmployeeID, string(exc.ExceptionType), exc.AttendanceRecordID, exc.OvertimeRuleID, exc.PermissionRuleID,
		exc.WorkDate, exc.StartDateTime, exc.EndDateTime, exc.Reason, missingPunch,
		string(exc.Status), exc.ManagerID, exc.HRReviewerID, exc.Escalated, exc.EscalatedAt, exc.ForcedEscalation,
		exc.CreatedAt, exc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create time exception: %w", err)
	}
	return nil
}

// FindByRecordAndType implements timeexception.Repository.
func (t *timeExceptionRepository) FindByRecordAndType(ctx context.Context, recordID string, excType timeexception.Type) (*timeexception.Exception, error) {
	exc, err := t.queryOne(ctx, `WHERE attendance_record_id = $1 AND exception_type = $2 ORDER BY created_at LIMIT 1`, recordID, string(excType))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find time exception for record %s: %w", recordID, err)
	}
	return exc, nil
}

// UpdateStatus writes the decision columns guarded by the expected status.
func (t *timeExceptionRepository) UpdateStatus(ctx context.Context, exc *timeexception.Exception, expected approval.Status) error {
	q := GetQuerier(ctx, t.db)

	query := `
		UPDATE time_exceptions SET
			status = $3, hr_reviewer_id = COALESCE($4, hr_reviewer_id),
			manager_note = $5, manager_decided_at = $6, hr_note = $7, hr_decided_at = $8,
			rejection_reason = $9, cancelled_at = $10, updated_at = $11
		WHERE id = $1 AND status = $2
	`
	tag, err := q.Exec(ctx, query,
		exc.ID, string(expected),
		string(exc.Status), exc.HRReviewerID,
		exc.ManagerNote, exc.ManagerDecidedAt, exc.HRNote, exc.HRDecidedAt,
		exc.RejectionReason, exc.CancelledAt, exc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update time exception: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	if _, err := t.GetByID(ctx, exc.ID); err != nil {
		return err
	}
	return approval.ErrConcurrentUpdate
}

// SetPreApproval implements timeexception.Repository.
func (t *timeExceptionRepository) SetPreApproval(ctx context.Context, id, approverID string, at time.Time) error {
	q := GetQuerier(ctx, t.db)

	tag, err := q.Exec(ctx,
		`UPDATE time_exceptions SET pre_approved_at = $2, pre_approved_by = $3, updated_at = $2 WHERE id = $1`,
		id, at, approverID,
	)
	if err != nil {
		return fmt.Errorf("failed to set pre-approval: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return timeexception.ErrExceptionNotFound
	}
	return nil
}

// MarkEscalated implements timeexception.Repository.
func (t *timeExceptionRepository) MarkEscalated(ctx context.Context, id string, hrReviewerID *string, forced bool, at time.Time) (bool, error) {
	q := GetQuerier(ctx, t.db)

	query := `
		UPDATE time_exceptions SET
			escalated = TRUE, escalated_at = $2, forced_escalation = $3,
			hr_reviewer_id = COALESCE($4, hr_reviewer_id), updated_at = $2
		WHERE id = $1 AND NOT escalated AND status = ANY($5)
	`
	tag, err := q.Exec(ctx, query, id, at, forced, hrReviewerID, statusStrings(approval.PendingStatuses()))
	if err != nil {
		return false, fmt.Errorf("failed to escalate time exception: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}
	if _, err := t.GetByID(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}
