package payrollsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/cmlabs-hris/hris-timekeeping/internal/config"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/approval"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/attendance"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/audit"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/correction"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/employee"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/payrollsync"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/timeconfig"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/timeexception"
	"github.com/cmlabs-hris/hris-timekeeping/internal/pkg/alert"
	"github.com/cmlabs-hris/hris-timekeeping/internal/pkg/daterange"
	"github.com/cmlabs-hris/hris-timekeeping/internal/pkg/storage"
	"github.com/cmlabs-hris/hris-timekeeping/internal/pkg/validator"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const (
	ActionFinalized       = "finalized"
	ActionFinalizeBlocked = "finalize_blocked"
	ActionRetried         = "retried"
	ActionCutoffSweep     = "cutoff_sweep"
	ActionExported        = "exported"
)

// aggregateWorkers bounds the per-employee fan-out of Aggregate.
const aggregateWorkers = 8

var minutesPerHour = decimal.NewFromInt(60)

type PayrollSyncServiceImpl struct {
	records     attendance.RecordFinaliser
	corrections correction.Reader
	exceptions  timeexception.Reader
	escalator   timeexception.CutoffEscalator
	registry    timeconfig.Reader
	directory   employee.Directory
	syncLogs    payrollsync.SyncLogRepository
	auditLog    audit.Repository
	files       storage.FileStorage
	alerter     alert.Alerter
	policy      config.TimePolicy
	location    *time.Location
	now         func() time.Time
}

func NewPayrollSyncService(
	records attendance.RecordFinaliser,
	corrections correction.Reader,
	exceptions timeexception.Reader,
	escalator timeexception.CutoffEscalator,
	registry timeconfig.Reader,
	directory employee.Directory,
	syncLogs payrollsync.SyncLogRepository,
	auditLog audit.Repository,
	files storage.FileStorage,
	alerter alert.Alerter,
	policy config.TimePolicy,
) *PayrollSyncServiceImpl {
	return &PayrollSyncServiceImpl{
		records:     records,
		corrections: corrections,
		exceptions:  exceptions,
		escalator:   escalator,
		registry:    registry,
		directory:   directory,
		syncLogs:    syncLogs,
		auditLog:    auditLog,
		files:       files,
		alerter:     alerter,
		policy:      policy,
		location:    policy.Location(),
		now:         time.Now,
	}
}

var _ payrollsync.Service = (*PayrollSyncServiceImpl)(nil)

func (s *PayrollSyncServiceImpl) WithClock(now func() time.Time) *PayrollSyncServiceImpl {
	s.now = now
	return s
}

func parseRange(start, end string) (daterange.Range, error) {
	rng, err := daterange.Parse(start, end)
	if err != nil {
		var errs validator.ValidationErrors
		errs.Add("date_range", err.Error())
		return daterange.Range{}, errs.Err()
	}
	return rng, nil
}

// ValidateDataForPayrollSync implements payrollsync.Service.
func (s *PayrollSyncServiceImpl) ValidateDataForPayrollSync(ctx context.Context, req payrollsync.RangeRequest) (payrollsync.ValidationResult, error) {
	if err := req.Validate(); err != nil {
		return payrollsync.ValidationResult{}, err
	}
	rng, err := parseRange(req.StartDate, req.EndDate)
	if err != nil {
		return payrollsync.ValidationResult{}, err
	}
	return s.validate(ctx, rng, nil)
}

// validate collects the issues of [rng]. When employees is non-nil only their
// data is inspected.
func (s *PayrollSyncServiceImpl) validate(ctx context.Context, rng daterange.Range, employees map[string]bool) (payrollsync.ValidationResult, error) {
	result := payrollsync.ValidationResult{
		Issues: make([]payrollsync.Issue, 0),
		Start:  rng.Start,
		End:    rng.End,
	}
	relevant := func(employeeID string) bool {
		return employees == nil || employees[employeeID]
	}

	notFinalised := false
	records, err := s.records.List(ctx, attendance.RecordFilter{
		StartDate: &rng.Start,
		EndDate:   &rng.End,
		Finalised: &notFinalised,
	})
	if err != nil {
		return result, fmt.Errorf("failed to list attendance records: %w", err)
	}
	for _, rec := range records {
		if !relevant(rec.EmployeeID) {
			continue
		}
		if rec.HasMissedPunch {
			result.AddWarning(payrollsync.Issue{
				Code:       payrollsync.IssueMissedPunch,
				Message:    fmt.Sprintf("record of %s has an unmatched punch", rec.WorkDate.Format(daterange.Layout)),
				EntityType: string(audit.EntityAttendanceRecord),
				EntityID:   rec.ID,
				EmployeeID: rec.EmployeeID,
			})
		}
		if rec.TotalWorkMinutes == 0 && !rec.IsOpen() {
			result.AddWarning(payrollsync.Issue{
				Code:       payrollsync.IssueZeroMinutes,
				Message:    fmt.Sprintf("record of %s has no worked minutes", rec.WorkDate.Format(daterange.Layout)),
				EntityType: string(audit.EntityAttendanceRecord),
				EntityID:   rec.ID,
				EmployeeID: rec.EmployeeID,
			})
		}
	}

	excs, err := s.exceptions.List(ctx, timeexception.Filter{
		Statuses:      approval.PendingStatuses(),
		WorkDateStart: &rng.Start,
		WorkDateEnd:   &rng.End,
	})
	if err != nil {
		return result, fmt.Errorf("failed to list pending time exceptions: %w", err)
	}
	for _, exc := range excs {
		if !relevant(exc.EmployeeID) {
			continue
		}
		issue := payrollsync.Issue{
			EntityType: string(audit.EntityTimeException),
			EntityID:   exc.ID,
			EmployeeID: exc.EmployeeID,
		}
		if exc.Escalated {
			issue.Code = payrollsync.IssueEscalatedPending
			issue.Message = fmt.Sprintf("escalated %s request awaits HR (%s)", exc.ExceptionType, exc.Status)
			result.AddWarning(issue)
			continue
		}
		issue.Code = payrollsync.IssuePendingException
		issue.Message = fmt.Sprintf("%s request is %s", exc.ExceptionType, exc.Status)
		result.AddError(issue)
	}

	crs, err := s.corrections.List(ctx, correction.Filter{
		Statuses:      approval.PendingStatuses(),
		WorkDateStart: &rng.Start,
		WorkDateEnd:   &rng.End,
	})
	if err != nil {
		return result, fmt.Errorf("failed to list open correction requests: %w", err)
	}
	for _, cr := range crs {
		if !relevant(cr.EmployeeID) {
			continue
		}
		result.AddError(payrollsync.Issue{
			Code:       payrollsync.IssueOpenCorrection,
			Message:    fmt.Sprintf("correction request is %s", cr.Status),
			EntityType: string(audit.EntityCorrection),
			EntityID:   cr.ID,
			EmployeeID: cr.EmployeeID,
		})
	}

	result.IsValid = result.ErrorCount == 0
	return result, nil
}

// Aggregate implements payrollsync.Service. Summaries are ordered by
// employee id.
func (s *PayrollSyncServiceImpl) Aggregate(ctx context.Context, req payrollsync.RangeRequest) ([]payrollsync.EmployeeSummary, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	rng, err := parseRange(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}
	return s.aggregate(ctx, rng)
}

func (s *PayrollSyncServiceImpl) aggregate(ctx context.Context, rng daterange.Range) ([]payrollsync.EmployeeSummary, error) {
	records, err := s.records.List(ctx, attendance.RecordFilter{StartDate: &rng.Start, EndDate: &rng.End})
	if err != nil {
		return nil, fmt.Errorf("failed to list attendance records: %w", err)
	}
	overtime, err := s.approvedOvertime(ctx, rng, nil, records)
	if err != nil {
		return nil, err
	}

	byEmployee := make(map[string][]attendance.Record)
	for _, rec := range records {
		byEmployee[rec.EmployeeID] = append(byEmployee[rec.EmployeeID], rec)
	}
	// Employees with approved overtime but no attendance still get a summary.
	for id := range overtime {
		if _, ok := byEmployee[id]; !ok {
			byEmployee[id] = nil
		}
	}
	employeeIDs := make([]string, 0, len(byEmployee))
	for id := range byEmployee {
		employeeIDs = append(employeeIDs, id)
	}
	sort.Strings(employeeIDs)

	summaries := make([]payrollsync.EmployeeSummary, len(employeeIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(aggregateWorkers)
	for i, id := range employeeIDs {
		g.Go(func() error {
			ot, err := s.overtimeSummary(gctx, id, overtime[id])
			if err != nil {
				return err
			}
			summary := summarize(id, byEmployee[id])
			summary.ApprovedOvertimeMinutes = ot.summary.ApprovedMinutes
			summary.WeightedOvertimeHours = ot.summary.WeightedOvertimeHours
			summaries[i] = summary
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return summaries, nil
}

// payableMinutes prefers the rounded total when a rounding policy was applied.
func payableMinutes(rec attendance.Record) int {
	if rec.RoundedWorkMinutes != nil {
		return *rec.RoundedWorkMinutes
	}
	return rec.TotalWorkMinutes
}

func toHours(minutes int) decimal.Decimal {
	return decimal.NewFromInt(int64(minutes)).Div(minutesPerHour).Round(2)
}

func summarize(employeeID string, records []attendance.Record) payrollsync.EmployeeSummary {
	summary := payrollsync.EmployeeSummary{
		EmployeeID:            employeeID,
		RecordCount:           len(records),
		WeightedOvertimeHours: decimal.Zero,
	}
	for _, rec := range records {
		summary.TotalWorkMinutes += payableMinutes(rec)
		if rec.HasMissedPunch {
			summary.MissedPunchCount++
		}
		if rec.LateMinutes > 0 {
			summary.LatenessCount++
			summary.LateMinutes += rec.LateMinutes
		}
	}
	summary.TotalWorkHours = toHours(summary.TotalWorkMinutes)
	return summary
}

type overtimeData struct {
	exceptions []timeexception.Exception
	summary    payrollsync.OvertimeSummary
}

// approvedOvertime collects the approved overtime of a period keyed by
// employee. A request linked to an attendance record belongs to the period of
// that record; an unlinked request falls back to its own work date. records
// must be every attendance record of the period in scope.
func (s *PayrollSyncServiceImpl) approvedOvertime(ctx context.Context, rng daterange.Range, employeeID *string, records []attendance.Record) (map[string][]timeexception.Exception, error) {
	types := []timeexception.Type{timeexception.TypeOvertime}
	statuses := []approval.Status{approval.StatusApproved}
	out := make(map[string][]timeexception.Exception)

	byDate, err := s.exceptions.List(ctx, timeexception.Filter{
		EmployeeID:    employeeID,
		Types:         types,
		Statuses:      statuses,
		WorkDateStart: &rng.Start,
		WorkDateEnd:   &rng.End,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list approved overtime: %w", err)
	}
	for _, exc := range byDate {
		if exc.AttendanceRecordID == nil {
			out[exc.EmployeeID] = append(out[exc.EmployeeID], exc)
		}
	}

	if len(records) == 0 {
		return out, nil
	}
	owners := make(map[string]string, len(records))
	ids := make([]string, 0, len(records))
	for _, rec := range records {
		owners[rec.ID] = rec.EmployeeID
		ids = append(ids, rec.ID)
	}
	linked, err := s.exceptions.List(ctx, timeexception.Filter{
		AttendanceRecords: ids,
		Types:             types,
		Statuses:          statuses,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list approved overtime by record: %w", err)
	}
	for _, exc := range linked {
		owner := owners[*exc.AttendanceRecordID]
		out[owner] = append(out[owner], exc)
	}

	for _, excs := range out {
		sort.Slice(excs, func(i, j int) bool {
			if !excs[i].StartDateTime.Equal(excs[j].StartDateTime) {
				return excs[i].StartDateTime.Before(excs[j].StartDateTime)
			}
			return excs[i].ID < excs[j].ID
		})
	}
	return out, nil
}

// employeeOvertime is approvedOvertime narrowed to one employee.
func (s *PayrollSyncServiceImpl) employeeOvertime(ctx context.Context, employeeID string, rng daterange.Range, records []attendance.Record) (overtimeData, error) {
	byEmployee, err := s.approvedOvertime(ctx, rng, &employeeID, records)
	if err != nil {
		return overtimeData{}, err
	}
	return s.overtimeSummary(ctx, employeeID, byEmployee[employeeID])
}

// overtimeSummary weighs every approved overtime request by the multiplier of
// its rule; requests without a rule count at 1x.
func (s *PayrollSyncServiceImpl) overtimeSummary(ctx context.Context, employeeID string, excs []timeexception.Exception) (overtimeData, error) {
	if excs == nil {
		excs = []timeexception.Exception{}
	}
	summary := payrollsync.OvertimeSummary{
		EmployeeID:            employeeID,
		RequestCount:          len(excs),
		WeightedOvertimeHours: decimal.Zero,
	}
	for _, exc := range excs {
		minutes := exc.DurationMinutes()
		summary.ApprovedMinutes += minutes

		multiplier := decimal.NewFromInt(1)
		if exc.OvertimeRuleID != nil {
			rule, err := s.registry.GetOvertimeRule(ctx, *exc.OvertimeRuleID)
			if err != nil {
				return overtimeData{}, fmt.Errorf("failed to get overtime rule: %w", err)
			}
			multiplier = rule.Multiplier
		}
		weighted := decimal.NewFromInt(int64(minutes)).Div(minutesPerHour).Mul(multiplier)
		summary.WeightedOvertimeHours = summary.WeightedOvertimeHours.Add(weighted)
	}
	summary.ApprovedHours = toHours(summary.ApprovedMinutes)
	summary.WeightedOvertimeHours = summary.WeightedOvertimeHours.Round(2)
	return overtimeData{exceptions: excs, summary: summary}, nil
}

func employeeRange(req payrollsync.EmployeeRangeRequest) (daterange.Range, error) {
	if validator.IsEmpty(req.EmployeeID) {
		var errs validator.ValidationErrors
		errs.Add("employee_id", "employee_id is required")
		return daterange.Range{}, errs.Err()
	}
	return parseRange(deref(req.StartDate), deref(req.EndDate))
}

// GetAttendanceDataForSync implements payrollsync.Service.
func (s *PayrollSyncServiceImpl) GetAttendanceDataForSync(ctx context.Context, req payrollsync.EmployeeRangeRequest) (payrollsync.AttendanceSyncData, error) {
	rng, err := employeeRange(req)
	if err != nil {
		return payrollsync.AttendanceSyncData{}, err
	}

	records, err := s.records.List(ctx, attendance.RecordFilter{
		EmployeeID: &req.EmployeeID,
		StartDate:  &rng.Start,
		EndDate:    &rng.End,
	})
	if err != nil {
		return payrollsync.AttendanceSyncData{}, fmt.Errorf("failed to list attendance records: %w", err)
	}
	overtime, err := s.employeeOvertime(ctx, req.EmployeeID, rng, records)
	if err != nil {
		return payrollsync.AttendanceSyncData{}, err
	}

	summary := summarize(req.EmployeeID, records)
	summary.ApprovedOvertimeMinutes = overtime.summary.ApprovedMinutes
	summary.WeightedOvertimeHours = overtime.summary.WeightedOvertimeHours
	return payrollsync.AttendanceSyncData{
		Records: attendance.NewRecordResponses(records),
		Summary: summary,
	}, nil
}

// GetOvertimeDataForSync implements payrollsync.Service.
func (s *PayrollSyncServiceImpl) GetOvertimeDataForSync(ctx context.Context, req payrollsync.EmployeeRangeRequest) (payrollsync.OvertimeSyncData, error) {
	rng, err := employeeRange(req)
	if err != nil {
		return payrollsync.OvertimeSyncData{}, err
	}
	records, err := s.records.List(ctx, attendance.RecordFilter{
		EmployeeID: &req.EmployeeID,
		StartDate:  &rng.Start,
		EndDate:    &rng.End,
	})
	if err != nil {
		return payrollsync.OvertimeSyncData{}, fmt.Errorf("failed to list attendance records: %w", err)
	}
	overtime, err := s.employeeOvertime(ctx, req.EmployeeID, rng, records)
	if err != nil {
		return payrollsync.OvertimeSyncData{}, err
	}
	return payrollsync.OvertimeSyncData{
		Records: timeexception.NewResponses(overtime.exceptions),
		Summary: overtime.summary,
	}, nil
}

// GetPendingPayrollSyncData implements payrollsync.Service. It lists the
// records not yet finalised for payroll.
func (s *PayrollSyncServiceImpl) GetPendingPayrollSyncData(ctx context.Context, filter payrollsync.PendingFilter) (payrollsync.PendingSyncData, error) {
	rng, err := parseRange(deref(filter.StartDate), deref(filter.EndDate))
	if err != nil {
		return payrollsync.PendingSyncData{}, err
	}

	notFinalised := false
	recordFilter := attendance.RecordFilter{
		EmployeeID: filter.EmployeeID,
		StartDate:  &rng.Start,
		EndDate:    &rng.End,
		Finalised:  &notFinalised,
	}
	if filter.DepartmentID != nil {
		members, err := s.directory.ListByDepartment(ctx, *filter.DepartmentID)
		if err != nil {
			return payrollsync.PendingSyncData{}, fmt.Errorf("failed to list department employees: %w", err)
		}
		if len(members) == 0 {
			return payrollsync.PendingSyncData{
				Records: []attendance.RecordResponse{},
				Summary: payrollsync.PendingSummary{TotalWorkHours: decimal.Zero},
			}, nil
		}
		for _, m := range members {
			recordFilter.EmployeeIDs = append(recordFilter.EmployeeIDs, m.ID)
		}
	}

	records, err := s.records.List(ctx, recordFilter)
	if err != nil {
		return payrollsync.PendingSyncData{}, fmt.Errorf("failed to list pending records: %w", err)
	}

	summary := payrollsync.PendingSummary{RecordCount: len(records)}
	seen := make(map[string]bool)
	for _, rec := range records {
		seen[rec.EmployeeID] = true
		summary.TotalWorkMinutes += payableMinutes(rec)
	}
	summary.EmployeeCount = len(seen)
	summary.TotalWorkHours = toHours(summary.TotalWorkMinutes)

	return payrollsync.PendingSyncData{
		Records: attendance.NewRecordResponses(records),
		Summary: summary,
	}, nil
}

// FinalizeRecordsForPayroll implements payrollsync.Service. The records'
// range is validated first; ERROR issues block the call unless Override is
// set. Each record is then finalised on its own so one failure does not stop
// the batch.
func (s *PayrollSyncServiceImpl) FinalizeRecordsForPayroll(ctx context.Context, actor approval.Actor, req payrollsync.FinalizeRequest) (payrollsync.FinalizeResult, error) {
	if !actor.IsHR() && !actor.IsSystem() {
		return payrollsync.FinalizeResult{}, approval.ErrForbiddenActor
	}
	if err := req.Validate(); err != nil {
		return payrollsync.FinalizeResult{}, err
	}
	now := s.now().UTC()
	ids := uniqueIDs(req.RecordIDs)

	found, err := s.records.List(ctx, attendance.RecordFilter{IDs: ids})
	if err != nil {
		return payrollsync.FinalizeResult{}, fmt.Errorf("failed to load records: %w", err)
	}

	rangeKey := ""
	if len(found) > 0 {
		employees := make(map[string]bool)
		rng := daterange.Range{Start: found[0].WorkDate, End: found[0].WorkDate}
		for _, rec := range found {
			employees[rec.EmployeeID] = true
			if rec.WorkDate.Before(rng.Start) {
				rng.Start = rec.WorkDate
			}
			if rec.WorkDate.After(rng.End) {
				rng.End = rec.WorkDate
			}
		}
		rng.End = daterange.DayEnd(rng.End)
		rangeKey = periodKey(rng)

		validation, err := s.validate(ctx, rng, employees)
		if err != nil {
			return payrollsync.FinalizeResult{}, err
		}
		if !validation.IsValid {
			if !req.Override {
				s.appendAudit(ctx, actor, rangeKey, ActionFinalizeBlocked, map[string]interface{}{
					"errors":   validation.ErrorCount,
					"warnings": validation.WarningCount,
				}, now)
				return payrollsync.FinalizeResult{}, &payrollsync.ValidationFailedError{Result: validation}
			}
			slog.Warn("Payroll finalize overrides validation errors",
				"actor", actor.ID(),
				"errors", validation.ErrorCount,
			)
		}
	}

	result := payrollsync.FinalizeResult{RecordIDs: make([]string, 0, len(ids))}
	for _, id := range ids {
		finalised, err := s.finalizeOne(ctx, id, now)
		if err != nil {
			result.Failed = append(result.Failed, payrollsync.FailedRecord{RecordID: id, Error: err.Error()})
			continue
		}
		if finalised {
			result.RecordsFinalized++
			result.RecordIDs = append(result.RecordIDs, id)
		}
	}

	if rangeKey == "" {
		rangeKey = now.Format(daterange.Layout)
	}
	s.appendAudit(ctx, actor, rangeKey, ActionFinalized, map[string]interface{}{
		"requested": len(ids),
		"finalized": result.RecordsFinalized,
		"failed":    len(result.Failed),
		"override":  req.Override,
	}, now)
	if len(result.Failed) > 0 {
		s.alert(ctx, true, fmt.Sprintf("Payroll finalize: %d of %d record(s) failed", len(result.Failed), len(ids)))
	}
	return result, nil
}

// finalizeOne hands one record to payroll and records the outcome in the sync
// log. It reports false when the record was already finalised.
func (s *PayrollSyncServiceImpl) finalizeOne(ctx context.Context, recordID string, now time.Time) (bool, error) {
	finalised, err := s.records.MarkFinalised(ctx, recordID, now)
	if err != nil {
		if _, logErr := s.syncLogs.RecordFailure(ctx, payrollsync.SourceAttendance, recordID, payrollsync.TargetPayroll, err.Error(), now); logErr != nil {
			slog.Error("Failed to record payroll sync failure", "record_id", recordID, "error", logErr)
		}
		return false, fmt.Errorf("failed to finalise record %s: %w", recordID, err)
	}

	if !finalised {
		// Already finalised: only close a log left active by an earlier failure.
		if _, err := s.syncLogs.GetActive(ctx, recordID, payrollsync.TargetPayroll); errors.Is(err, payrollsync.ErrSyncLogNotFound) {
			return false, nil
		}
	}
	if _, err := s.syncLogs.RecordSuccess(ctx, payrollsync.SourceAttendance, recordID, payrollsync.TargetPayroll, now); err != nil {
		slog.Error("Failed to record payroll sync success", "record_id", recordID, "error", err)
	}
	return finalised, nil
}

// RetryFailedSyncs implements payrollsync.Service. Logs that have used up
// SyncMaxRetries attempts are left for manual follow-up.
func (s *PayrollSyncServiceImpl) RetryFailedSyncs(ctx context.Context) (payrollsync.RetryResult, error) {
	target := payrollsync.TargetPayroll
	maxRetries := s.policy.SyncMaxRetries
	logs, err := s.syncLogs.List(ctx, payrollsync.LogFilter{
		TargetSystem:  &target,
		Statuses:      []payrollsync.SyncStatus{payrollsync.SyncFailed},
		MaxRetryCount: &maxRetries,
	})
	if err != nil {
		return payrollsync.RetryResult{}, fmt.Errorf("failed to list failed sync logs: %w", err)
	}

	now := s.now().UTC()
	var (
		result    payrollsync.RetryResult
		exhausted []string
	)
	for _, l := range logs {
		if l.SourceType != payrollsync.SourceAttendance {
			continue
		}
		result.Attempted++
		if _, err := s.finalizeOne(ctx, l.SourceRecordID, now); err != nil {
			result.Failed++
			slog.Error("Payroll sync retry failed",
				"record_id", l.SourceRecordID,
				"retry_count", l.RetryCount+1,
				"error", err,
			)
			if l.RetryCount+1 >= maxRetries {
				exhausted = append(exhausted, l.SourceRecordID)
			}
			continue
		}
		result.Succeeded++
	}

	if result.Attempted > 0 {
		s.appendAudit(ctx, approval.SystemActor, now.Format(daterange.Layout), ActionRetried, map[string]interface{}{
			"attempted": result.Attempted,
			"succeeded": result.Succeeded,
			"failed":    result.Failed,
		}, now)
	}
	if len(exhausted) > 0 {
		s.alert(ctx, true, fmt.Sprintf("Payroll sync gave up on %d record(s) after %d attempts: %v", len(exhausted), maxRetries, exhausted))
	}
	return result, nil
}

// PayrollPeriod returns the period closed by the cutoff on or after day:
// from the day after the previous cutoff through the next cutoff.
func PayrollPeriod(day time.Time, cutoffDay int) daterange.Range {
	y, m, d := day.Date()
	end := time.Date(y, m, cutoffDay, 0, 0, 0, 0, time.UTC)
	if d > cutoffDay {
		end = end.AddDate(0, 1, 0)
	}
	start := end.AddDate(0, -1, 1)
	return daterange.Range{Start: start, End: daterange.DayEnd(end)}
}

// RunCutoffSweep implements payrollsync.Service. It acts only when now falls
// on PayrollCutoffDay in the policy time zone.
func (s *PayrollSyncServiceImpl) RunCutoffSweep(ctx context.Context, now time.Time) (approval.Escalation, error) {
	local := now.In(s.location)
	if local.Day() != s.policy.PayrollCutoffDay {
		return approval.Escalation{RanAt: now.UTC()}, nil
	}

	period := PayrollPeriod(local, s.policy.PayrollCutoffDay)
	result, err := s.escalator.ForceEscalateUnresolved(ctx, period.Start, period.End)
	if err != nil {
		return result, fmt.Errorf("failed to force escalate unresolved exceptions: %w", err)
	}

	s.appendAudit(ctx, approval.SystemActor, periodKey(period), ActionCutoffSweep, map[string]interface{}{
		"scanned":   result.Scanned,
		"escalated": result.Escalated,
		"failed":    result.Failed,
	}, now.UTC())
	if result.Escalated > 0 || result.Failed > 0 {
		s.alert(ctx, result.Failed > 0, fmt.Sprintf("Payroll cutoff %s: %d unresolved time exception(s) escalated, %d failed",
			period.End.Format(daterange.Layout), result.Escalated, result.Failed))
	}
	return result, nil
}

// History implements payrollsync.Service.
func (s *PayrollSyncServiceImpl) History(ctx context.Context, req payrollsync.RangeRequest) ([]audit.Event, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	rng, err := parseRange(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}
	entity := audit.EntityPayrollSync
	return s.auditLog.List(ctx, audit.Filter{EntityType: &entity, Start: &rng.Start, End: &rng.End})
}

// SyncLogs implements payrollsync.Service.
func (s *PayrollSyncServiceImpl) SyncLogs(ctx context.Context, filter payrollsync.LogFilter) ([]payrollsync.SyncLog, error) {
	return s.syncLogs.List(ctx, filter)
}

func (s *PayrollSyncServiceImpl) alert(ctx context.Context, isError bool, message string) {
	if s.alerter == nil {
		return
	}
	var err error
	if isError {
		err = s.alerter.Error(ctx, message)
	} else {
		err = s.alerter.Info(ctx, message)
	}
	if err != nil {
		slog.Warn("Failed to send payroll alert", "error", err)
	}
}

func (s *PayrollSyncServiceImpl) appendAudit(ctx context.Context, actor approval.Actor, entityID, action string, payload map[string]interface{}, at time.Time) {
	event := audit.NewEvent(audit.EntityPayrollSync, entityID, action, actor.ID(), string(actor.Role), at).WithPayload(payload)
	if err := s.auditLog.Append(ctx, event); err != nil {
		slog.Error("Failed to append payroll sync audit event", "action", action, "error", err)
	}
}

func periodKey(rng daterange.Range) string {
	return rng.Start.Format(daterange.Layout) + "_" + rng.End.Format(daterange.Layout)
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
