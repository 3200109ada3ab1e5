package cron

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/approval"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/attendance"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/correction"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/payrollsync"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/timeconfig"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/timeexception"
	"github.com/cmlabs-hris/hris-timekeeping/internal/pkg/alert"
	"github.com/cmlabs-hris/hris-timekeeping/internal/pkg/daterange"
)

const (
	JobDetectMissedPunches     = "detect_missed_punches"
	JobEscalateCorrections     = "escalate_overdue_corrections"
	JobEscalateExceptions      = "escalate_overdue_exceptions"
	JobPayrollCutoffSweep      = "payroll_cutoff_sweep"
	JobRetryFailedPayrollSyncs = "retry_failed_payroll_syncs"
	JobExpireShiftAssignments  = "expire_shift_assignments"
)

// AtHour is due on ticks whose UTC hour equals hour.
func AtHour(hour int) func(time.Time) bool {
	return func(now time.Time) bool {
		return now.UTC().Hour() == hour
	}
}

// OnDayAtHour is due on the given day of month at the given UTC hour.
func OnDayAtHour(day, hour int) func(time.Time) bool {
	return func(now time.Time) bool {
		now = now.UTC()
		return now.Day() == day && now.Hour() == hour
	}
}

type TimekeepingJobs struct {
	detector    attendance.MissedPunchDetector
	corrections correction.Service
	exceptions  timeexception.Service
	payroll     payrollsync.Service
	registry    timeconfig.Service
	alerter     alert.Alerter
	location    *time.Location
	cutoffDay   int
	now         func() time.Time
}

func NewTimekeepingJobs(
	detector attendance.MissedPunchDetector,
	corrections correction.Service,
	exceptions timeexception.Service,
	payroll payrollsync.Service,
	registry timeconfig.Service,
	alerter alert.Alerter,
	location *time.Location,
	cutoffDay int,
) *TimekeepingJobs {
	return &TimekeepingJobs{
		detector:    detector,
		corrections: corrections,
		exceptions:  exceptions,
		payroll:     payroll,
		registry:    registry,
		alerter:     alerter,
		location:    location,
		cutoffDay:   cutoffDay,
		now:         time.Now,
	}
}

func (j *TimekeepingJobs) RegisterJobs(scheduler *Scheduler) {
	scheduler.Add(Job{Name: JobDetectMissedPunches, Interval: time.Hour, Due: AtHour(0), Fn: j.DetectMissedPunches})
	scheduler.AddJob(JobEscalateCorrections, time.Hour, j.EscalateCorrections)
	scheduler.AddJob(JobEscalateExceptions, time.Hour, j.EscalateExceptions)
	scheduler.Add(Job{Name: JobPayrollCutoffSweep, Interval: time.Hour, Due: OnDayAtHour(j.cutoffDay, 0), Fn: j.PayrollCutoffSweep})
	scheduler.AddJob(JobRetryFailedPayrollSyncs, 30*time.Minute, j.RetryFailedSyncs)
	scheduler.AddJob(JobExpireShiftAssignments, time.Hour, j.ExpireAssignments)
}

// DetectMissedPunches sweeps the previous work day, and the one before it for
// records that were deferred while an overnight shift was still running.
func (j *TimekeepingJobs) DetectMissedPunches(ctx context.Context) error {
	yesterday := daterange.WorkDate(j.now(), j.location).AddDate(0, 0, -1)

	for _, day := range []time.Time{yesterday.AddDate(0, 0, -1), yesterday} {
		slog.Info("Cron: Starting missed punch detection", "day", day.Format(daterange.Layout))

		result, err := j.detector.DetectMissedPunches(ctx, day)
		if err != nil {
			return fmt.Errorf("failed to detect missed punches: %w", err)
		}

		slog.Info("Cron: Missed punch detection finished",
			"day", result.Day,
			"scanned", result.Scanned,
			"flagged", result.Flagged,
			"exceptions_created", result.ExceptionsCreated,
			"deferred", result.Deferred,
			"failed", result.Failed)
		if result.Failed > 0 {
			j.alertError(ctx, fmt.Sprintf("Missed punch detection for %s failed on %d record(s)", result.Day, result.Failed))
		}
	}
	return nil
}

func (j *TimekeepingJobs) EscalateCorrections(ctx context.Context) error {
	res, err := j.corrections.EscalateOverdue(ctx)
	if err != nil {
		return fmt.Errorf("failed to escalate corrections: %w", err)
	}
	j.reportEscalation(ctx, "correction request", res)
	return nil
}

func (j *TimekeepingJobs) EscalateExceptions(ctx context.Context) error {
	res, err := j.exceptions.EscalateOverdue(ctx)
	if err != nil {
		return fmt.Errorf("failed to escalate time exceptions: %w", err)
	}
	j.reportEscalation(ctx, "time exception", res)
	return nil
}

func (j *TimekeepingJobs) PayrollCutoffSweep(ctx context.Context) error {
	slog.Info("Cron: Starting payroll cutoff sweep")

	res, err := j.payroll.RunCutoffSweep(ctx, j.now())
	if err != nil {
		return fmt.Errorf("failed to run payroll cutoff sweep: %w", err)
	}
	j.reportEscalation(ctx, "unresolved time exception (payroll cutoff)", res)
	return nil
}

func (j *TimekeepingJobs) RetryFailedSyncs(ctx context.Context) error {
	res, err := j.payroll.RetryFailedSyncs(ctx)
	if err != nil {
		return fmt.Errorf("failed to retry payroll syncs: %w", err)
	}
	if res.Attempted == 0 {
		return nil
	}

	slog.Info("Cron: Retried failed payroll syncs",
		"attempted", res.Attempted,
		"succeeded", res.Succeeded,
		"failed", res.Failed)
	if res.Failed > 0 {
		j.alertError(ctx, fmt.Sprintf("%d payroll sync(s) still failing after retry", res.Failed))
	}
	return nil
}

func (j *TimekeepingJobs) ExpireAssignments(ctx context.Context) error {
	n, err := j.registry.ExpireAssignments(ctx)
	if err != nil {
		return fmt.Errorf("failed to expire shift assignments: %w", err)
	}
	if n > 0 {
		slog.Info("Cron: Expired shift assignments", "count", n)
	}
	return nil
}

func (j *TimekeepingJobs) reportEscalation(ctx context.Context, what string, res approval.Escalation) {
	if res.Scanned == 0 {
		return
	}
	slog.Info("Cron: Escalation sweep finished",
		"kind", what,
		"scanned", res.Scanned,
		"escalated", res.Escalated,
		"failed", res.Failed)

	if res.Escalated > 0 {
		j.alertInfo(ctx, fmt.Sprintf("%d %s(s) escalated to HR", res.Escalated, what))
	}
	if res.Failed > 0 {
		j.alertError(ctx, fmt.Sprintf("%d %s(s) could not be escalated", res.Failed, what))
	}
}

func (j *TimekeepingJobs) alertInfo(ctx context.Context, msg string) {
	if err := j.alerter.Info(ctx, msg); err != nil {
		slog.Error("Cron: Failed to send alert", "error", err)
	}
}

func (j *TimekeepingJobs) alertError(ctx context.Context, msg string) {
	if err := j.alerter.Error(ctx, msg); err != nil {
		slog.Error("Cron: Failed to send alert", "error", err)
	}
}
