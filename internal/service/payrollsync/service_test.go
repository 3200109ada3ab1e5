package payrollsync

import (
	"context"
	"testing"
	"time"

	"github.com/cmlabs-hris/hris-timekeeping/internal/config"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/approval"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/attendance"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/correction"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/employee"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/payrollsync"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/timeconfig"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/timeexception"
	"github.com/cmlabs-hris/hris-timekeeping/internal/pkg/storage"
	"github.com/cmlabs-hris/hris-timekeeping/internal/repository/memory"
	timeconfigsvc "github.com/cmlabs-hris/hris-timekeeping/internal/service/timeconfig"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var hr = approval.Actor{UserID: "user-hr", EmployeeID: "hr-1", Role: approval.RoleHR}

type stubEscalator struct {
	calls      int
	start, end time.Time
}

func (s *stubEscalator) ForceEscalateUnresolved(ctx context.Context, start, end time.Time) (approval.Escalation, error) {
	s.calls++
	s.start, s.end = start, end
	return approval.Escalation{Scanned: 1, Escalated: 1}, nil
}

type recordingAlerter struct {
	infos, errors []string
}

func (r *recordingAlerter) Info(ctx context.Context, message string) error {
	r.infos = append(r.infos, message)
	return nil
}

func (r *recordingAlerter) Error(ctx context.Context, message string) error {
	r.errors = append(r.errors, message)
	return nil
}

type fixture struct {
	svc         *PayrollSyncServiceImpl
	records     *memory.AttendanceRepository
	exceptions  *memory.TimeExceptionRepository
	corrections *memory.CorrectionRepository
	rules       *memory.TimeConfigRepository
	syncLogs    *memory.SyncLogRepository
	files       *storage.LocalStorage
	escalator   *stubEscalator
	alerter     *recordingAlerter
	now         time.Time
}

func day(d int) time.Time {
	return time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dept := "dept-ops"
	directory := memory.NewEmployeeDirectory(
		employee.Employee{ID: "emp-1", DepartmentID: &dept, EmploymentStatus: employee.EmploymentStatusActive},
		employee.Employee{ID: "emp-2", EmploymentStatus: employee.EmploymentStatusActive},
		employee.Employee{ID: "hr-1", IsHRReviewer: true, EmploymentStatus: employee.EmploymentStatusActive},
	)
	files, err := storage.NewLocalStorage(t.TempDir(), "http://localhost/files")
	require.NoError(t, err)

	f := &fixture{
		records:     memory.NewAttendanceRepository(),
		exceptions:  memory.NewTimeExceptionRepository(),
		corrections: memory.NewCorrectionRepository(),
		rules:       memory.NewTimeConfigRepository(),
		syncLogs:    memory.NewSyncLogRepository(),
		files:       files,
		escalator:   &stubEscalator{},
		alerter:     &recordingAlerter{},
		now:         time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC),
	}

	auditLog := memory.NewAuditRepository()
	registry := timeconfigsvc.NewTimeConfigService(f.rules, auditLog)

	f.svc = NewPayrollSyncService(
		f.records,
		f.corrections,
		f.exceptions,
		f.escalator,
		registry,
		directory,
		f.syncLogs,
		auditLog,
		f.files,
		f.alerter,
		config.DefaultTimePolicy(),
	).WithClock(func() time.Time { return f.now })
	return f
}

func (f *fixture) seedRecord(t *testing.T, employeeID string, workDate time.Time, minutes int, missed bool) *attendance.Record {
	t.Helper()
	in := workDate.Add(9 * time.Hour)
	punches := []attendance.Punch{{Type: attendance.PunchIn, Time: in, Source: attendance.SourceDevice}}
	if !missed {
		punches = append(punches, attendance.Punch{Type: attendance.PunchOut, Time: in.Add(time.Duration(minutes) * time.Minute), Source: attendance.SourceDevice})
	}
	rec := &attendance.Record{
		EmployeeID:       employeeID,
		WorkDate:         workDate,
		PunchMode:        timeconfig.PunchModeMultiple,
		Punches:          punches,
		TotalWorkMinutes: minutes,
		HasMissedPunch:   missed,
	}
	require.NoError(t, f.records.Create(context.Background(), rec))
	return rec
}

func (f *fixture) seedException(t *testing.T, employeeID string, typ timeexception.Type, status approval.Status, workDate time.Time, minutes int, ruleID *string) *timeexception.Exception {
	t.Helper()
	start := workDate.Add(17 * time.Hour)
	exc := &timeexception.Exception{
		EmployeeID:     employeeID,
		ExceptionType:  typ,
		OvertimeRuleID: ruleID,
		WorkDate:       workDate,
		StartDateTime:  start,
		EndDateTime:    start.Add(time.Duration(minutes) * time.Minute),
		Reason:         "month end close",
		Status:         status,
		CreatedAt:      workDate,
	}
	require.NoError(t, f.exceptions.Create(context.Background(), exc))
	return exc
}

// seedLinkedOvertime files approved overtime against rec with its own work date.
func (f *fixture) seedLinkedOvertime(t *testing.T, rec *attendance.Record, workDate time.Time, minutes int) {
	t.Helper()
	start := rec.WorkDate.Add(17 * time.Hour)
	require.NoError(t, f.exceptions.Create(context.Background(), &timeexception.Exception{
		EmployeeID:         rec.EmployeeID,
		ExceptionType:      timeexception.TypeOvertime,
		AttendanceRecordID: &rec.ID,
		WorkDate:           workDate,
		StartDateTime:      start,
		EndDateTime:        start.Add(time.Duration(minutes) * time.Minute),
		Reason:             "stayed for the release",
		Status:             approval.StatusApproved,
		CreatedAt:          workDate,
	}))
}

func march() payrollsync.RangeRequest {
	return payrollsync.RangeRequest{StartDate: "2024-03-01", EndDate: "2024-03-31"}
}

// ===== VALIDATION TESTS =====

func TestPayrollSyncService_Validate_CleanRange(t *testing.T) {
	f := newFixture(t)
	f.seedRecord(t, "emp-1", day(4), 480, false)

	result, err := f.svc.ValidateDataForPayrollSync(context.Background(), march())

	require.NoError(t, err)
	assert.True(t, result.IsValid)
	assert.Empty(t, result.Issues)
}

func TestPayrollSyncService_Validate_PendingExceptionBlocks(t *testing.T) {
	f := newFixture(t)
	f.seedRecord(t, "emp-1", day(4), 480, false)
	exc := f.seedException(t, "emp-1", timeexception.TypeOvertime, approval.StatusPendingManager, day(4), 60, nil)

	result, err := f.svc.ValidateDataForPayrollSync(context.Background(), march())

	require.NoError(t, err)
	assert.False(t, result.IsValid)
	assert.Equal(t, 1, result.ErrorCount)
	require.Len(t, result.Issues, 1)
	assert.Equal(t, payrollsync.SeverityError, result.Issues[0].Severity)
	assert.Equal(t, payrollsync.IssuePendingException, result.Issues[0].Code)
	assert.Equal(t, exc.ID, result.Issues[0].EntityID)
}

func TestPayrollSyncService_Validate_EscalatedExceptionWarns(t *testing.T) {
	f := newFixture(t)
	exc := f.seedException(t, "emp-1", timeexception.TypePermission, approval.StatusPendingHR, day(4), 60, nil)
	_, err := f.exceptions.MarkEscalated(context.Background(), exc.ID, nil, true, day(25))
	require.NoError(t, err)

	result, err := f.svc.ValidateDataForPayrollSync(context.Background(), march())

	require.NoError(t, err)
	assert.True(t, result.IsValid)
	assert.Equal(t, 1, result.WarningCount)
	assert.Equal(t, payrollsync.IssueEscalatedPending, result.Issues[0].Code)
}

func TestPayrollSyncService_Validate_WarningsAndOpenCorrection(t *testing.T) {
	f := newFixture(t)
	missed := f.seedRecord(t, "emp-1", day(5), 0, true)
	f.seedRecord(t, "emp-2", day(6), 0, false)
	require.NoError(t, f.corrections.Create(context.Background(), &correction.Request{
		EmployeeID:         "emp-2",
		AttendanceRecordID: missed.ID,
		WorkDate:           day(6),
		Status:             approval.StatusPendingHR,
	}))
	// Outside the range.
	f.seedException(t, "emp-1", timeexception.TypeOvertime, approval.StatusPendingManager, time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC), 60, nil)

	result, err := f.svc.ValidateDataForPayrollSync(context.Background(), march())

	require.NoError(t, err)
	assert.False(t, result.IsValid)
	assert.Equal(t, 1, result.ErrorCount)
	assert.Equal(t, 2, result.WarningCount)

	codes := make(map[payrollsync.IssueCode]payrollsync.Severity)
	for _, issue := range result.Issues {
		codes[issue.Code] = issue.Severity
	}
	assert.Equal(t, payrollsync.SeverityWarning, codes[payrollsync.IssueMissedPunch])
	assert.Equal(t, payrollsync.SeverityWarning, codes[payrollsync.IssueZeroMinutes])
	assert.Equal(t, payrollsync.SeverityError, codes[payrollsync.IssueOpenCorrection])
}

func TestPayrollSyncService_Validate_BadRange(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ValidateDataForPayrollSync(context.Background(), payrollsync.RangeRequest{StartDate: "2024-03-31", EndDate: "2024-03-01"})

	assert.Error(t, err)
}

// ===== AGGREGATION TESTS =====

func TestPayrollSyncService_Aggregate(t *testing.T) {
	f := newFixture(t)
	rule := &timeconfig.OvertimeRule{Name: "Weekday", Multiplier: decimal.RequireFromString("1.5"), IsActive: true}
	require.NoError(t, f.rules.CreateOvertimeRule(context.Background(), rule))

	rec := f.seedRecord(t, "emp-1", day(4), 487, false)
	rounded := 480
	rec.RoundedWorkMinutes = &rounded
	rec.LateMinutes = 7
	require.NoError(t, f.records.Update(context.Background(), rec))
	f.seedRecord(t, "emp-1", day(5), 0, true)
	f.seedRecord(t, "emp-2", day(5), 450, false)

	f.seedException(t, "emp-1", timeexception.TypeOvertime, approval.StatusApproved, day(4), 120, &rule.ID)
	f.seedException(t, "emp-1", timeexception.TypeOvertime, approval.StatusApproved, day(5), 30, nil)
	f.seedException(t, "emp-1", timeexception.TypeOvertime, approval.StatusRejected, day(6), 300, nil)

	summaries, err := f.svc.Aggregate(context.Background(), march())

	require.NoError(t, err)
	require.Len(t, summaries, 2)

	emp1 := summaries[0]
	assert.Equal(t, "emp-1", emp1.EmployeeID)
	assert.Equal(t, 2, emp1.RecordCount)
	assert.Equal(t, 480, emp1.TotalWorkMinutes)
	assert.True(t, decimal.NewFromInt(8).Equal(emp1.TotalWorkHours))
	assert.Equal(t, 1, emp1.MissedPunchCount)
	assert.Equal(t, 1, emp1.LatenessCount)
	assert.Equal(t, 7, emp1.LateMinutes)
	assert.Equal(t, 150, emp1.ApprovedOvertimeMinutes)
	// 2h at 1.5x plus 0.5h at 1x.
	assert.True(t, decimal.RequireFromString("3.5").Equal(emp1.WeightedOvertimeHours), emp1.WeightedOvertimeHours.String())

	emp2 := summaries[1]
	assert.Equal(t, "emp-2", emp2.EmployeeID)
	assert.True(t, decimal.RequireFromString("7.5").Equal(emp2.TotalWorkHours))
	assert.True(t, emp2.WeightedOvertimeHours.IsZero())
}

func TestPayrollSyncService_Aggregate_JoinsOvertimeByRecord(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// a night worked on 29 Feb whose overtime request was filed with a March date
	feb := f.seedRecord(t, "emp-1", time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), 480, false)
	mar := f.seedRecord(t, "emp-1", day(4), 480, false)

	f.seedLinkedOvertime(t, feb, day(1), 60)
	f.seedLinkedOvertime(t, mar, day(4), 45)

	// no attendance in March at all
	f.seedException(t, "emp-2", timeexception.TypeOvertime, approval.StatusApproved, day(9), 120, nil)

	summaries, err := f.svc.Aggregate(ctx, march())

	require.NoError(t, err)
	require.Len(t, summaries, 2)

	assert.Equal(t, "emp-1", summaries[0].EmployeeID)
	assert.Equal(t, 1, summaries[0].RecordCount)
	assert.Equal(t, 45, summaries[0].ApprovedOvertimeMinutes)

	assert.Equal(t, "emp-2", summaries[1].EmployeeID)
	assert.Equal(t, 0, summaries[1].RecordCount)
	assert.Equal(t, 0, summaries[1].TotalWorkMinutes)
	assert.Equal(t, 120, summaries[1].ApprovedOvertimeMinutes)
	assert.True(t, decimal.NewFromInt(2).Equal(summaries[1].WeightedOvertimeHours))

	feb29 := "2024-02-29"
	data, err := f.svc.GetOvertimeDataForSync(ctx, payrollsync.EmployeeRangeRequest{EmployeeID: "emp-1", StartDate: &feb29, EndDate: &feb29})
	require.NoError(t, err)
	require.Len(t, data.Records, 1)
	assert.Equal(t, 60, data.Summary.ApprovedMinutes)
}

func TestPayrollSyncService_GetAttendanceDataForSync(t *testing.T) {
	f := newFixture(t)
	f.seedRecord(t, "emp-1", day(4), 480, false)
	f.seedRecord(t, "emp-2", day(4), 480, false)

	start, end := "2024-03-01", "2024-03-31"
	data, err := f.svc.GetAttendanceDataForSync(context.Background(), payrollsync.EmployeeRangeRequest{EmployeeID: "emp-1", StartDate: &start, EndDate: &end})

	require.NoError(t, err)
	require.Len(t, data.Records, 1)
	assert.Equal(t, "emp-1", data.Records[0].EmployeeID)
	assert.Equal(t, 480, data.Summary.TotalWorkMinutes)

	_, err = f.svc.GetAttendanceDataForSync(context.Background(), payrollsync.EmployeeRangeRequest{})
	assert.Error(t, err)
}

func TestPayrollSyncService_GetOvertimeDataForSync(t *testing.T) {
	f := newFixture(t)
	f.seedException(t, "emp-1", timeexception.TypeOvertime, approval.StatusApproved, day(4), 90, nil)
	f.seedException(t, "emp-1", timeexception.TypePermission, approval.StatusApproved, day(4), 60, nil)

	data, err := f.svc.GetOvertimeDataForSync(context.Background(), payrollsync.EmployeeRangeRequest{EmployeeID: "emp-1"})

	require.NoError(t, err)
	require.Len(t, data.Records, 1)
	assert.Equal(t, 90, data.Summary.ApprovedMinutes)
	assert.True(t, decimal.RequireFromString("1.5").Equal(data.Summary.ApprovedHours))
}

func TestPayrollSyncService_GetPendingPayrollSyncData(t *testing.T) {
	f := newFixture(t)
	done := f.seedRecord(t, "emp-1", day(4), 480, false)
	f.seedRecord(t, "emp-1", day(5), 450, false)
	f.seedRecord(t, "emp-2", day(5), 300, false)
	_, err := f.records.MarkFinalised(context.Background(), done.ID, f.now)
	require.NoError(t, err)

	data, err := f.svc.GetPendingPayrollSyncData(context.Background(), payrollsync.PendingFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, data.Summary.RecordCount)
	assert.Equal(t, 2, data.Summary.EmployeeCount)
	assert.Equal(t, 750, data.Summary.TotalWorkMinutes)

	dept := "dept-ops"
	data, err = f.svc.GetPendingPayrollSyncData(context.Background(), payrollsync.PendingFilter{DepartmentID: &dept})
	require.NoError(t, err)
	require.Len(t, data.Records, 1)
	assert.Equal(t, "emp-1", data.Records[0].EmployeeID)

	empty := "dept-none"
	data, err = f.svc.GetPendingPayrollSyncData(context.Background(), payrollsync.PendingFilter{DepartmentID: &empty})
	require.NoError(t, err)
	assert.Empty(t, data.Records)
}

// ===== FINALIZE TESTS =====

func TestPayrollSyncService_Finalize_Idempotent(t *testing.T) {
	f := newFixture(t)
	a := f.seedRecord(t, "emp-1", day(4), 480, false)
	b := f.seedRecord(t, "emp-2", day(4), 480, false)
	req := payrollsync.FinalizeRequest{RecordIDs: []string{a.ID, b.ID, a.ID}}

	first, err := f.svc.FinalizeRecordsForPayroll(context.Background(), hr, req)
	require.NoError(t, err)
	assert.Equal(t, 2, first.RecordsFinalized)
	assert.ElementsMatch(t, []string{a.ID, b.ID}, first.RecordIDs)

	second, err := f.svc.FinalizeRecordsForPayroll(context.Background(), hr, req)
	require.NoError(t, err)
	assert.Equal(t, 0, second.RecordsFinalized)
	assert.Empty(t, second.Failed)

	stored, err := f.records.GetByID(context.Background(), a.ID)
	require.NoError(t, err)
	assert.True(t, stored.FinalisedForPayroll)

	logs, err := f.svc.SyncLogs(context.Background(), payrollsync.LogFilter{})
	require.NoError(t, err)
	require.Len(t, logs, 2)
	for _, l := range logs {
		assert.Equal(t, payrollsync.SyncSuccess, l.Status)
	}
}

func TestPayrollSyncService_History(t *testing.T) {
	f := newFixture(t)
	rec := f.seedRecord(t, "emp-1", day(4), 480, false)

	_, err := f.svc.FinalizeRecordsForPayroll(context.Background(), hr, payrollsync.FinalizeRequest{RecordIDs: []string{rec.ID}})
	require.NoError(t, err)

	events, err := f.svc.History(context.Background(), payrollsync.RangeRequest{StartDate: "2024-04-01", EndDate: "2024-04-01"})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, ActionFinalized, events[0].Action)
	assert.Equal(t, "hr-1", events[0].ActorID)

	events, err = f.svc.History(context.Background(), march())
	require.NoError(t, err)
	assert.Empty(t, events)

	_, err = f.svc.History(context.Background(), payrollsync.RangeRequest{StartDate: "2024-04-02", EndDate: "2024-04-01"})
	assert.Error(t, err)
}

func TestPayrollSyncService_Finalize_BlockedByPendingException(t *testing.T) {
	f := newFixture(t)
	rec := f.seedRecord(t, "emp-1", day(4), 480, false)
	f.seedException(t, "emp-1", timeexception.TypeOvertime, approval.StatusPendingManager, day(4), 60, nil)

	_, err := f.svc.FinalizeRecordsForPayroll(context.Background(), hr, payrollsync.FinalizeRequest{RecordIDs: []string{rec.ID}})

	var failed *payrollsync.ValidationFailedError
	require.ErrorAs(t, err, &failed)
	assert.ErrorIs(t, err, payrollsync.ErrSyncValidationFailed)
	assert.Equal(t, 1, failed.Result.ErrorCount)

	stored, err := f.records.GetByID(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.False(t, stored.FinalisedForPayroll)

	result, err := f.svc.FinalizeRecordsForPayroll(context.Background(), hr, payrollsync.FinalizeRequest{RecordIDs: []string{rec.ID}, Override: true})
	require.NoError(t, err)
	assert.Equal(t, 1, result.RecordsFinalized)
}

func TestPayrollSyncService_Finalize_OtherEmployeesExceptionDoesNotBlock(t *testing.T) {
	f := newFixture(t)
	rec := f.seedRecord(t, "emp-1", day(4), 480, false)
	f.seedException(t, "emp-2", timeexception.TypeOvertime, approval.StatusPendingManager, day(4), 60, nil)

	result, err := f.svc.FinalizeRecordsForPayroll(context.Background(), hr, payrollsync.FinalizeRequest{RecordIDs: []string{rec.ID}})

	require.NoError(t, err)
	assert.Equal(t, 1, result.RecordsFinalized)
}

func TestPayrollSyncService_Finalize_PartialFailure(t *testing.T) {
	f := newFixture(t)
	rec := f.seedRecord(t, "emp-1", day(4), 480, false)

	result, err := f.svc.FinalizeRecordsForPayroll(context.Background(), hr, payrollsync.FinalizeRequest{RecordIDs: []string{rec.ID, "missing-record"}})

	require.NoError(t, err)
	assert.Equal(t, 1, result.RecordsFinalized)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, "missing-record", result.Failed[0].RecordID)
	assert.Len(t, f.alerter.errors, 1)

	failed, err := f.syncLogs.GetActive(context.Background(), "missing-record", payrollsync.TargetPayroll)
	require.NoError(t, err)
	assert.Equal(t, payrollsync.SyncFailed, failed.Status)
	assert.Equal(t, 1, failed.RetryCount)
	require.NotNil(t, failed.LastErrorMessage)

	retry, err := f.svc.RetryFailedSyncs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, payrollsync.RetryResult{Attempted: 1, Failed: 1}, retry)

	failed, err = f.syncLogs.GetActive(context.Background(), "missing-record", payrollsync.TargetPayroll)
	require.NoError(t, err)
	assert.Equal(t, 2, failed.RetryCount)
}

func TestPayrollSyncService_Finalize_RequiresHR(t *testing.T) {
	f := newFixture(t)
	rec := f.seedRecord(t, "emp-1", day(4), 480, false)
	employeeActor := approval.Actor{EmployeeID: "emp-1", Role: approval.RoleEmployee}

	_, err := f.svc.FinalizeRecordsForPayroll(context.Background(), employeeActor, payrollsync.FinalizeRequest{RecordIDs: []string{rec.ID}})

	assert.ErrorIs(t, err, approval.ErrForbiddenActor)
}

// ===== RETRY TESTS =====

func TestPayrollSyncService_RetryFailedSyncs_Recovers(t *testing.T) {
	f := newFixture(t)
	rec := f.seedRecord(t, "emp-1", day(4), 480, false)
	_, err := f.syncLogs.RecordFailure(context.Background(), payrollsync.SourceAttendance, rec.ID, payrollsync.TargetPayroll, "connection reset", f.now)
	require.NoError(t, err)

	result, err := f.svc.RetryFailedSyncs(context.Background())

	require.NoError(t, err)
	assert.Equal(t, payrollsync.RetryResult{Attempted: 1, Succeeded: 1}, result)
	_, err = f.syncLogs.GetActive(context.Background(), rec.ID, payrollsync.TargetPayroll)
	assert.ErrorIs(t, err, payrollsync.ErrSyncLogNotFound)

	stored, err := f.records.GetByID(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.True(t, stored.FinalisedForPayroll)
}

func TestPayrollSyncService_RetryFailedSyncs_StopsAtMaxRetries(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < config.DefaultTimePolicy().SyncMaxRetries; i++ {
		_, err := f.syncLogs.RecordFailure(context.Background(), payrollsync.SourceAttendance, "gone", payrollsync.TargetPayroll, "not found", f.now)
		require.NoError(t, err)
	}

	result, err := f.svc.RetryFailedSyncs(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 0, result.Attempted)
}

// ===== CUTOFF TESTS =====

func TestPayrollPeriod(t *testing.T) {
	tests := []struct {
		name      string
		day       time.Time
		wantStart time.Time
		wantEnd   time.Time
	}{
		{"on cutoff", day(25), time.Date(2024, 2, 26, 0, 0, 0, 0, time.UTC), day(25)},
		{"before cutoff", day(10), time.Date(2024, 2, 26, 0, 0, 0, 0, time.UTC), day(25)},
		{"after cutoff", day(27), day(26), time.Date(2024, 4, 25, 0, 0, 0, 0, time.UTC)},
		{"year boundary", time.Date(2024, 12, 30, 0, 0, 0, 0, time.UTC), time.Date(2024, 12, 26, 0, 0, 0, 0, time.UTC), time.Date(2025, 1, 25, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := PayrollPeriod(tt.day, 25)
			assert.Equal(t, tt.wantStart, p.Start)
			assert.Equal(t, tt.wantEnd, time.Date(p.End.Year(), p.End.Month(), p.End.Day(), 0, 0, 0, 0, time.UTC))
		})
	}
}

func TestPayrollSyncService_RunCutoffSweep(t *testing.T) {
	f := newFixture(t)

	result, err := f.svc.RunCutoffSweep(context.Background(), time.Date(2024, 3, 24, 1, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 0, f.escalator.calls)
	assert.Equal(t, 0, result.Escalated)

	result, err = f.svc.RunCutoffSweep(context.Background(), time.Date(2024, 3, 25, 1, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 1, f.escalator.calls)
	assert.Equal(t, 1, result.Escalated)
	assert.Equal(t, time.Date(2024, 2, 26, 0, 0, 0, 0, time.UTC), f.escalator.start)
	assert.Equal(t, day(25).Add(24*time.Hour-time.Millisecond), f.escalator.end)
	assert.Len(t, f.alerter.infos, 1)

	history, err := f.svc.History(context.Background(), march())
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, ActionCutoffSweep, history[0].Action)
}

// ===== EXPORT TESTS =====

func TestPayrollSyncService_ExportSnapshot(t *testing.T) {
	f := newFixture(t)
	f.seedRecord(t, "emp-1", day(4), 480, false)
	f.seedRecord(t, "emp-2", day(4), 450, false)

	result, err := f.svc.ExportSnapshot(context.Background(), hr, march())

	require.NoError(t, err)
	assert.Equal(t, 2, result.Employees)
	assert.Contains(t, result.URL, "http://localhost/files/payroll-snapshots/")

	rc, err := f.files.Download(context.Background(), result.Path)
	require.NoError(t, err)
	defer rc.Close()

	book, err := excelize.OpenReader(rc)
	require.NoError(t, err)
	defer book.Close()

	rows, err := book.GetRows(snapshotSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Employee ID", rows[0][0])
	assert.Equal(t, "emp-1", rows[1][0])
	assert.Equal(t, "480", rows[1][2])
	assert.Equal(t, "emp-2", rows[2][0])
}

func TestPayrollSyncService_ExportSnapshot_RequiresHR(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ExportSnapshot(context.Background(), approval.Actor{EmployeeID: "emp-1", Role: approval.RoleManager}, march())

	assert.ErrorIs(t, err, approval.ErrForbiddenActor)
}
