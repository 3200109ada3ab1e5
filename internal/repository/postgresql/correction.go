package postgresql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/approval"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/correction"
	"github.com/cmlabs-hris/hris-timekeeping/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

type correctionRepository struct {
	db *database.DB
}

func NewCorrectionRepository(db *database.DB) correction.Repository {
	return &correctionRepository{db: db}
}

const correctionColumns = `
	id, employee_id, attendance_record_id, work_date,
	original_clock_in, original_clock_out, requested_clock_in, requested_clock_out,
	reason, status, manager_id, hr_reviewer_id, escalated, escalated_at,
	manager_note, manager_decided_at, hr_note, hr_decided_at,
	rejection_reason, cancelled_at, created_at, updated_at`

func scanCorrection(row pgx.Row) (*correction.Request, error) {
	var (
		req    correction.Request
		status string
	)
	err := row.Scan(
		&req.ID, &req.EmployeeID, &req.AttendanceRecordID, &req.WorkDate,
		&req.OriginalClockIn, &req.OriginalClockOut, &req.RequestedClockIn, &req.RequestedClockOut,
		&req.Reason, &status, &req.ManagerID, &req.HRReviewerID, &req.Escalated, &req.EscalatedAt,
		&req.ManagerNote, &req.ManagerDecidedAt, &req.HRNote, &req.HRDecidedAt,
		&req.RejectionReason, &req.CancelledAt, &req.CreatedAt, &req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	req.Status = approval.Status(status)
	return &req, nil
}

func statusStrings(statuses []approval.Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

// GetByID implements correction.Reader.
func (c *correctionRepository) GetByID(ctx context.Context, id string) (*correction.Request, error) {
	q := GetQuerier(ctx, c.db)

	req, err := scanCorrection(q.QueryRow(ctx, `SELECT `+correctionColumns+` FROM correction_requests WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, correction.ErrCorrectionNotFound
		}
		return nil, fmt.Errorf("failed to get correction request %s: %w", id, err)
	}
	return req, nil
}

// List implements correction.Reader.
func (c *correctionRepository) List(ctx context.Context, filter correction.Filter) ([]correction.Request, error) {
	q := GetQuerier(ctx, c.db)

	var cond conditions
	if filter.EmployeeID != nil {
		cond.add("employee_id = $%d", *filter.EmployeeID)
	}
	if filter.ManagerID != nil {
		cond.add("manager_id = $%d", *filter.ManagerID)
	}
	if filter.AttendanceRecordID != nil {
		cond.add("attendance_record_id = $%d", *filter.AttendanceRecordID)
	}
	if len(filter.Statuses) > 0 {
		cond.add("status = ANY($%d)", statusStrings(filter.Statuses))
	}
	if filter.Escalated != nil {
		cond.add("escalated = $%d", *filter.Escalated)
	}
	if filter.WorkDateStart != nil {
		cond.add("work_date >= $%d", *filter.WorkDateStart)
	}
	if filter.WorkDateEnd != nil {
		cond.add("work_date <= $%d", *filter.WorkDateEnd)
	}
	if filter.CreatedBefore != nil {
		cond.add("created_at < $%d", *filter.CreatedBefore)
	}

	query := `SELECT ` + correctionColumns + ` FROM correction_requests ` + cond.where() + ` ORDER BY created_at`
	rows, err := q.Query(ctx, query, cond.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list correction requests: %w", err)
	}
	defer rows.Close()

	requests := make([]correction.Request, 0)
	for rows.Next() {
		req, err := scanCorrection(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan correction request: %w", err)
		}
		requests = append(requests, *req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating correction requests: %w", err)
	}
	return requests, nil
}

// Create implements correction.Repository.
func (c *correctionRepository) Create(ctx context.Context, req *correction.Request) error {
	q := GetQuerier(ctx, c.db)

	if req.ID == "" {
		req.ID = newID()
	}

	query := `
		INSERT INTO correction_requests (
			id, employee_id, attendance_record_id, work_date,
			original_clock_in, original_clock_out, requested_clock_in, requested_clock_out,
			reason, status, manager_id, hr_reviewer_id, escalated, escalated_at,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`
	_, err := q.Exec(ctx, query,
		req.ID, req.EmployeeID, req.AttendanceRecordID, req.WorkDate,
		req.OriginalClockIn, req.OriginalClockOut, req.RequestedClockIn, req.RequestedClockOut,
		req.Reason, string(req.Status), req.ManagerID, req.HRReviewerID, req.Escalated, req.EscalatedAt,
		req.CreatedAt, req.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create correction request: %w", err)
	}
	return nil
}

// UpdateStatus writes the decision columns guarded by the expected status.
// Escalation columns are owned by MarkEscalated and left untouched.
func (c *correctionRepository) UpdateStatus(ctx context.Context, req *correction.Request, expected approval.Status) error {
	q := GetQuerier(ctx, c.db)

	query := `
		UPDATE correction_requests SET
			status = $3, hr_reviewer_id = COALESCE($4, hr_reviewer_id),
			manager_note = $5, manager_decided_at = $6, hr_note = $7, hr_decided_at = $8,
			rejection_reason = $9, cancelled_at = $10, updated_at = $11
		WHERE id = $1 AND status = $2
	`
	tag, err := q.Exec(ctx, query,
		req.ID, string(expected),
		string(req.Status), req.HRReviewerID,
		req.ManagerNote, req.ManagerDecidedAt, req.HRNote, req.HRDecidedAt,
		req.RejectionReason, req.CancelledAt, req.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update correction request: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	if _, err := c.GetByID(ctx, req.ID); err != nil {
		return err
	}
	return approval.ErrConcurrentUpdate
}

// MarkEscalated implements correction.Repository.
func (c *correctionRepository) MarkEscalated(ctx context.Context, id string, hrReviewerID *string, at time.Time) (bool, error) {
	q := GetQuerier(ctx, c.db)

	query := `
		UPDATE correction_requests SET
			escalated = TRUE, escalated_at = $2,
			hr_reviewer_id = COALESCE($3, hr_reviewer_id), updated_at = $2
		WHERE id = $1 AND NOT escalated AND status = ANY($4)
	`
	tag, err := q.Exec(ctx, query, id, at, hrReviewerID, statusStrings(approval.PendingStatuses()))
	if err != nil {
		return false, fmt.Errorf("failed to escalate correction request: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}
	if _, err := c.GetByID(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}
