package payrollsync

import (
	"context"
	"time"
)

type LogFilter struct {
	SourceRecordID *string
	TargetSystem   *TargetSystem
	Statuses       []SyncStatus
	MaxRetryCount  *int
}

type SyncLogRepository interface {
	// RecordSuccess moves the active log of the pair to success, creating it
	// if none exists.
	RecordSuccess(ctx context.Context, source SourceType, sourceRecordID string, target TargetSystem, at time.Time) (*SyncLog, error)
	// RecordFailure marks the active log of the pair failed and increments
	// its retry count, creating it if none exists.
	RecordFailure(ctx context.Context, source SourceType, sourceRecordID string, target TargetSystem, message string, at time.Time) (*SyncLog, error)
	GetActive(ctx context.Context, sourceRecordID string, target TargetSystem) (*SyncLog, error)
	List(ctx context.Context, filter LogFilter) ([]SyncLog, error)
}
