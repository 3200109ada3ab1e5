package postgresql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/payrollsync"
	"github.com/cmlabs-hris/hris-timekeeping/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

type syncLogRepository struct {
	db *database.DB
}

func NewSyncLogRepository(db *database.DB) payrollsync.SyncLogRepository {
	return &syncLogRepository{db: db}
}

const syncLogColumns = `
	id, source_type, source_record_id, target_system, status,
	last_error_message, retry_count, last_attempt_at, created_at, updated_at`

func scanSyncLog(row pgx.Row) (*payrollsync.SyncLog, error) {
	var (
		l                    payrollsync.SyncLog
		source, target, stat string
	)
	err := row.Scan(
		&l.ID, &source, &l.SourceRecordID, &target, &stat,
		&l.LastErrorMessage, &l.RetryCount, &l.LastAttemptAt, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	l.SourceType = payrollsync.SourceType(source)
	l.TargetSystem = payrollsync.TargetSystem(target)
	l.Status = payrollsync.SyncStatus(stat)
	return &l, nil
}

// RecordSuccess settles the active log of the pair, or refreshes the latest
// success, and inserts a fresh success log when the pair has no history.
func (s *syncLogRepository) RecordSuccess(ctx context.Context, source payrollsync.SourceType, sourceRecordID string, target payrollsync.TargetSystem, at time.Time) (*payrollsync.SyncLog, error) {
	q := GetQuerier(ctx, s.db)

	update := `
		UPDATE integration_sync_logs SET
			status = 'success', last_error_message = NULL, last_attempt_at = $3, updated_at = $3
		WHERE id = (
			SELECT id FROM integration_sync_logs
			WHERE source_record_id = $1 AND target_system = $2
			ORDER BY (status IN ('pending', 'failed')) DESC, updated_at DESC
			LIMIT 1
		)
		RETURNING ` + syncLogColumns

	l, err := scanSyncLog(q.QueryRow(ctx, update, sourceRecordID, string(target), at))
	if err == nil {
		return l, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to record sync success: %w", err)
	}

	insert := `
		INSERT INTO integration_sync_logs (
			id, source_type, source_record_id, target_system, status,
			retry_count, last_attempt_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, 'success', 0, $5, $5, $5)
		RETURNING ` + syncLogColumns

	l, err = scanSyncLog(q.QueryRow(ctx, insert, newID(), string(source), sourceRecordID, string(target), at))
	if err != nil {
		return nil, fmt.Errorf("failed to insert sync success: %w", err)
	}
	return l, nil
}

// RecordFailure upserts on the active-log partial index so concurrent
// failures of the same pair collapse into one row.
func (s *syncLogRepository) RecordFailure(ctx context.Context, source payrollsync.SourceType, sourceRecordID string, target payrollsync.TargetSystem, message string, at time.Time) (*payrollsync.SyncLog, error) {
	q := GetQuerier(ctx, s.db)

	query := `
		INSERT INTO integration_sync_logs (
			id, source_type, source_record_id, target_system, status,
			last_error_message, retry_count, last_attempt_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, 'failed', $5, 1, $6, $6, $6)
		ON CONFLICT (source_record_id, target_system) WHERE status IN ('pending', 'failed')
		DO UPDATE SET
			status = 'failed',
			last_error_message = EXCLUDED.last_error_message,
			retry_count = integration_sync_logs.retry_count + 1,
			last_attempt_at = EXCLUDED.last_attempt_at,
			updated_at = EXCLUDED.updated_at
		RETURNING ` + syncLogColumns

	l, err := scanSyncLog(q.QueryRow(ctx, query, newID(), string(source), sourceRecordID, string(target), message, at))
	if err != nil {
		return nil, fmt.Errorf("failed to record sync failure: %w", err)
	}
	return l, nil
}

func (s *syncLogRepository) GetActive(ctx context.Context, sourceRecordID string, target payrollsync.TargetSystem) (*payrollsync.SyncLog, error) {
	q := GetQuerier(ctx, s.db)

	query := `SELECT ` + syncLogColumns + ` FROM integration_sync_logs
		WHERE source_record_id = $1 AND target_system = $2 AND status IN ('pending', 'failed')`

	l, err := scanSyncLog(q.QueryRow(ctx, query, sourceRecordID, string(target)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, payrollsync.ErrSyncLogNotFound
		}
		return nil, fmt.Errorf("failed to get active sync log: %w", err)
	}
	return l, nil
}

func (s *syncLogRepository) List(ctx context.Context, filter payrollsync.LogFilter) ([]payrollsync.SyncLog, error) {
	q := GetQuerier(ctx, s.db)

	var c conditions
	if filter.SourceRecordID != nil {
		c.add("source_record_id = $%d", *filter.SourceRecordID)
	}
	if filter.TargetSystem != nil {
		c.add("target_system = $%d", string(*filter.TargetSystem))
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, v := range filter.Statuses {
			statuses[i] = string(v)
		}
		c.add("status = ANY($%d)", statuses)
	}
	if filter.MaxRetryCount != nil {
		c.add("retry_count < $%d", *filter.MaxRetryCount)
	}

	query := `SELECT ` + syncLogColumns + ` FROM integration_sync_logs ` + c.where() + ` ORDER BY created_at`
	rows, err := q.Query(ctx, query, c.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync logs: %w", err)
	}
	defer rows.Close()

	logs := make([]payrollsync.SyncLog, 0)
	for rows.Next() {
		l, err := scanSyncLog(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync log: %w", err)
		}
		logs = append(logs, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sync logs: %w", err)
	}
	return logs, nil
}
