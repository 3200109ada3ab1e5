package payrollsync

import (
	"context"
	"time"

	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/approval"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/audit"
)

type Service interface {
	ValidateDataForPayrollSync(ctx context.Context, req RangeRequest) (ValidationResult, error)
	Aggregate(ctx context.Context, req RangeRequest) ([]EmployeeSummary, error)
	GetAttendanceDataForSync(ctx context.Context, req EmployeeRangeRequest) (AttendanceSyncData, error)
	GetOvertimeDataForSync(ctx context.Context, req EmployeeRangeRequest) (OvertimeSyncData, error)
	GetPendingPayrollSyncData(ctx context.Context, filter PendingFilter) (PendingSyncData, error)
	FinalizeRecordsForPayroll(ctx context.Context, actor approval.Actor, req FinalizeRequest) (FinalizeResult, error)
	RetryFailedSyncs(ctx context.Context) (RetryResult, error)
	RunCutoffSweep(ctx context.Context, now time.Time) (approval.Escalation, error)
	History(ctx context.Context, req RangeRequest) ([]audit.Event, error)
	SyncLogs(ctx context.Context, filter LogFilter) ([]SyncLog, error)
	ExportSnapshot(ctx context.Context, actor approval.Actor, req RangeRequest) (ExportResult, error)
}
