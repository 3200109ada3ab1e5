package postgresql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/attendance"
	"github.com/cmlabs-hris/hris-timekeeping/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

type attendanceRepository struct {
	db *database.DB
}

func NewAttendanceRepository(db *database.DB) attendance.RecordRepository {
	return &attendanceRepository{db: db}
}

const attendanceColumns = `
	id, employee_id, work_date, punch_mode, punches,
	total_work_minutes, rounded_work_minutes, rounding_strategy, rounding_interval,
	late_minutes, early_leave_minutes, has_missed_punch,
	finalised_for_payroll, finalised_at, created_at, updated_at`

func scanRecord(row pgx.Row) (*attendance.Record, error) {
	var (
		rec      attendance.Record
		punches  []byte
		strategy *string
	)
	err := row.Scan(
		&rec.ID, &rec.EmployeeID, &rec.WorkDate, &rec.PunchMode, &punches,
		&rec.TotalWorkMinutes, &rec.RoundedWorkMinutes, &strategy, &rec.RoundingInterval,
		&rec.LateMinutes, &rec.EarlyLeaveMinutes, &rec.HasMissedPunch,
		&rec.FinalisedForPayroll, &rec.FinalisedAt, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(punches) > 0 {
		if err := json.Unmarshal(punches, &rec.Punches); err != nil {
			return nil, fmt.Errorf("failed to decode punches: %w", err)
		}
	}
	if strategy != nil {
		s := attendance.RoundingStrategy(*strategy)
		rec.RoundingStrategy = &s
	}
	return &rec, nil
}

func roundingStrategyArg(s *attendance.RoundingStrategy) *string {
	if s == nil {
		return nil
	}
	v := string(*s)
	return &v
}

// GetByID implements attendance.RecordReader.
func (a *attendanceRepository) GetByID(ctx context.Context, id string) (*attendance.Record, error) {
	q := GetQuerier(ctx, a.db)

	query := `SELECT ` + attendanceColumns + ` FROM attendance_records WHERE id = $1`

	rec, err := scanRecord(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, attendance.ErrAttendanceRecordNotFound
		}
		return nil, fmt.Errorf("failed to get attendance record %s: %w", id, err)
	}
	return rec, nil
}

// List implements attendance.RecordReader.
func (a *attendanceRepository) List(ctx context.Context, filter attendance.RecordFilter) ([]attendance.Record, error) {
	q := GetQuerier(ctx, a.db)

	var c conditions
	if len(filter.IDs) > 0 {
		c.add("id = ANY($%d)", filter.IDs)
	}
	if len(filter.EmployeeIDs) > 0 {
		c.add("employee_id = ANY($%d)", filter.EmployeeIDs)
	}
	if filter.EmployeeID != nil {
		c.add("employee_id = $%d", *filter.EmployeeID)
	}
	if filter.StartDate != nil {
		c.add("work_date >= $%d", *filter.StartDate)
	}
	if filter.EndDate != nil {
		c.add("work_date <= $%d", *filter.EndDate)
	}
	if filter.MissedOnly {
		c.raw("has_missed_punch")
	}
	if filter.Finalised != nil {
		c.add("finalised_for_payroll = $%d", *filter.Finalised)
	}

	query := `SELECT ` + attendanceColumns + ` FROM attendance_records ` + c.where() + ` ORDER BY work_date, id`
	query, args := paged(query, c, filter.Page, filter.Limit)

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list attendance records: %w", err)
	}
	defer rows.Close()

	records := make([]attendance.Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attendance record: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating attendance records: %w", err)
	}
	return records, nil
}

// Create implements attendance.RecordWriter.
func (a *attendanceRepository) Create(ctx context.Context, record *attendance.Record) error {
	q := GetQuerier(ctx, a.db)

	if record.ID == "" {
		record.ID = newID()
	}
	punches, err := json.Marshal(record.Punches)
	if err != nil {
		return fmt.Errorf("failed to encode punches: %w", err)
	}

	query := `
		INSERT INTO attendance_records (
			id, employee_id, work_date, punch_mode, punches,
			total_work_minutes, rounded_work_minutes, rounding_strategy, rounding_interval,
			late_minutes, early_leave_minutes, has_missed_punch,
			finalised_for_payroll, finalised_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`
	_, err = q.Exec(ctx, query,
		record.ID, record.EmployeeID, record.WorkDate, string(record.PunchMode), punches,
		record.TotalWorkMinutes, record.RoundedWorkMinutes, roundingStrategyArg(record.RoundingStrategy), record.RoundingInterval,
		record.LateMinutes, record.EarlyLeaveMinutes, record.HasMissedPunch,
		record.FinalisedForPayroll, record.FinalisedAt, record.CreatedAt, record.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create attendance record: %w", err)
	}
	return nil
}

// Update implements attendance.RecordWriter. Finalisation columns belong to
// MarkFinalised; a finalised row is never rewritten.
func (a *attendanceRepository) Update(ctx context.Context, record *attendance.Record) error {
	q := GetQuerier(ctx, a.db)

	punches, err := json.Marshal(record.Punches)
	if err != nil {
		return fmt.Errorf("failed to encode punches: %w", err)
	}

	query := `
		UPDATE attendance_records SET
			work_date = $2, punch_mode = $3, punches = $4,
			total_work_minutes = $5, rounded_work_minutes = $6, rounding_strategy = $7, rounding_interval = $8,
			late_minutes = $9, early_leave_minutes = $10, has_missed_punch = $11,
			updated_at = $12
		WHERE id = $1 AND NOT finalised_for_payroll
	`
	tag, err := q.Exec(ctx, query,
		record.ID, record.WorkDate, string(record.PunchMode), punches,
		record.TotalWorkMinutes, record.RoundedWorkMinutes, roundingStrategyArg(record.RoundingStrategy), record.RoundingInterval,
		record.LateMinutes, record.EarlyLeaveMinutes, record.HasMissedPunch,
		record.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update attendance record: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM attendance_records WHERE id = $1)`, record.ID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check attendance record: %w", err)
	}
	if !exists {
		return attendance.ErrAttendanceRecordNotFound
	}
	return attendance.ErrRecordFinalised
}

// LockEmployee takes a transaction-scoped advisory lock keyed by employee.
func (a *attendanceRepository) LockEmployee(ctx context.Context, employeeID string) error {
	q := GetQuerier(ctx, a.db)

	if _, err := q.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, employeeID); err != nil {
		return fmt.Errorf("failed to lock employee %s: %w", employeeID, err)
	}
	return nil
}

func (a *attendanceRepository) GetOpenRecordID(ctx context.Context, employeeID string) (string, error) {
	q := GetQuerier(ctx, a.db)

	var id string
	err := q.QueryRow(ctx, `SELECT record_id FROM attendance_open_records WHERE employee_id = $1`, employeeID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("failed to get open record pointer: %w", err)
	}
	return id, nil
}

// SetOpenRecordID moves the pointer; an empty recordID clears it.
func (a *attendanceRepository) SetOpenRecordID(ctx context.Context, employeeID, recordID string) error {
	q := GetQuerier(ctx, a.db)

	if recordID == "" {
		if _, err := q.Exec(ctx, `DELETE FROM attendance_open_records WHERE employee_id = $1`, employeeID); err != nil {
			return fmt.Errorf("failed to clear open record pointer: %w", err)
		}
		return nil
	}

	query := `
		INSERT INTO attendance_open_records (employee_id, record_id, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (employee_id) DO UPDATE SET record_id = EXCLUDED.record_id, updated_at = NOW()
	`
	if _, err := q.Exec(ctx, query, employeeID, recordID); err != nil {
		return fmt.Errorf("failed to set open record pointer: %w", err)
	}
	return nil
}

// MarkFinalised implements attendance.RecordFinaliser.
func (a *attendanceRepository) MarkFinalised(ctx context.Context, id string, at time.Time) (bool, error) {
	q := GetQuerier(ctx, a.db)

	query := `
		UPDATE attendance_records
		SET finalised_for_payroll = TRUE, finalised_at = $2, updated_at = $2
		WHERE id = $1 AND NOT finalised_for_payroll
	`
	tag, err := q.Exec(ctx, query, id, at)
	if err != nil {
		return false, fmt.Errorf("failed to finalise attendance record: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}

	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM attendance_records WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check attendance record: %w", err)
	}
	if !exists {
		return false, attendance.ErrAttendanceRecordNotFound
	}
	return false, nil
}
