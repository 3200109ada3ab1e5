package postgresql_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/approval"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/attendance"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/audit"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/correction"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/employee"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/payrollsync"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/timeconfig"
	"github.com/cmlabs-hris/hris-timekeeping/internal/repository/postgresql"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day = time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

func newRecord(employeeID string) *attendance.Record {
	in := day.Add(9 * time.Hour)
	return &attendance.Record{
		EmployeeID: employeeID,
		WorkDate:   day,
		PunchMode:  timeconfig.PunchModeMultiple,
		Punches: []attendance.Punch{
			{Type: attendance.PunchIn, Time: in, Source: attendance.SourceDevice},
		},
		CreatedAt: in,
		UpdatedAt: in,
	}
}

// ===== ATTENDANCE REPOSITORY TESTS =====

func TestAttendanceRepository_CreateAndGet(t *testing.T) {
	setup := NewTestDatabase(t)
	repo := postgresql.NewAttendanceRepository(setup.DB)
	ctx := context.Background()

	rec := newRecord(uuid.NewString())
	require.NoError(t, repo.Create(ctx, rec))
	require.NotEmpty(t, rec.ID)

	got, err := repo.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.EmployeeID, got.EmployeeID)
	assert.True(t, got.WorkDate.Equal(day))
	require.Len(t, got.Punches, 1)
	assert.Equal(t, attendance.PunchIn, got.Punches[0].Type)
	assert.True(t, got.IsOpen())

	_, err = repo.GetByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, attendance.ErrAttendanceRecordNotFound)
}

func TestAttendanceRepository_UpdateAndList(t *testing.T) {
	setup := NewTestDatabase(t)
	repo := postgresql.NewAttendanceRepository(setup.DB)
	ctx := context.Background()

	employeeID := uuid.NewString()
	rec := newRecord(employeeID)
	require.NoError(t, repo.Create(ctx, rec))

	out := day.Add(17 * time.Hour)
	rec.Punches = append(rec.Punches, attendance.Punch{Type: attendance.PunchOut, Time: out, Source: attendance.SourceDevice})
	rec.TotalWorkMinutes = 480
	rounded := 480
	strategy := attendance.RoundNearest
	rec.RoundedWorkMinutes, rec.RoundingStrategy = &rounded, &strategy
	rec.UpdatedAt = out
	require.NoError(t, repo.Update(ctx, rec))

	other := newRecord(uuid.NewString())
	other.HasMissedPunch = true
	require.NoError(t, repo.Create(ctx, other))

	list, err := repo.List(ctx, attendance.RecordFilter{EmployeeID: &employeeID})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 480, list[0].TotalWorkMinutes)
	require.NotNil(t, list[0].RoundingStrategy)
	assert.Equal(t, attendance.RoundNearest, *list[0].RoundingStrategy)

	missed, err := repo.List(ctx, attendance.RecordFilter{MissedOnly: true, StartDate: &day, EndDate: &day})
	require.NoError(t, err)
	require.Len(t, missed, 1)
	assert.Equal(t, other.ID, missed[0].ID)

	paged, err := repo.List(ctx, attendance.RecordFilter{Page: 2, Limit: 1})
	require.NoError(t, err)
	assert.Len(t, paged, 1)
}

func TestAttendanceRepository_OpenRecordPointer(t *testing.T) {
	setup := NewTestDatabase(t)
	repo := postgresql.NewAttendanceRepository(setup.DB)
	ctx := context.Background()

	employeeID := uuid.NewString()
	id, err := repo.GetOpenRecordID(ctx, employeeID)
	require.NoError(t, err)
	assert.Empty(t, id)

	rec := newRecord(employeeID)
	require.NoError(t, repo.Create(ctx, rec))
	require.NoError(t, repo.SetOpenRecordID(ctx, employeeID, rec.ID))
	require.NoError(t, repo.SetOpenRecordID(ctx, employeeID, rec.ID))

	id, err = repo.GetOpenRecordID(ctx, employeeID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, id)

	require.NoError(t, repo.SetOpenRecordID(ctx, employeeID, ""))
	id, err = repo.GetOpenRecordID(ctx, employeeID)
	require.NoError(t, err)
	assert.Empty(t, id)
}

func TestAttendanceRepository_MarkFinalised(t *testing.T) {
	setup := NewTestDatabase(t)
	repo := postgresql.NewAttendanceRepository(setup.DB)
	ctx := context.Background()

	rec := newRecord(uuid.NewString())
	require.NoError(t, repo.Create(ctx, rec))

	at := day.Add(48 * time.Hour)
	changed, err := repo.MarkFinalised(ctx, rec.ID, at)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = repo.MarkFinalised(ctx, rec.ID, at)
	require.NoError(t, err)
	assert.False(t, changed)

	_, err = repo.MarkFinalised(ctx, uuid.NewString(), at)
	assert.ErrorIs(t, err, attendance.ErrAttendanceRecordNotFound)
}

func TestAttendanceRepository_Update_RefusesFinalised(t *testing.T) {
	setup := NewTestDatabase(t)
	repo := postgresql.NewAttendanceRepository(setup.DB)
	ctx := context.Background()

	rec := newRecord(uuid.NewString())
	require.NoError(t, repo.Create(ctx, rec))

	// rec is a stale copy read before the record was finalised
	_, err := repo.MarkFinalised(ctx, rec.ID, day.Add(48*time.Hour))
	require.NoError(t, err)

	rec.Punches = append(rec.Punches, attendance.Punch{Type: attendance.PunchOut, Time: day.Add(17 * time.Hour), Source: attendance.SourceDevice})
	rec.TotalWorkMinutes = 480
	err = repo.Update(ctx, rec)
	assert.ErrorIs(t, err, attendance.ErrRecordFinalised)

	got, err := repo.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.True(t, got.FinalisedForPayroll)
	require.NotNil(t, got.FinalisedAt)
	assert.Len(t, got.Punches, 1)

	missing := newRecord(uuid.NewString())
	missing.ID = uuid.NewString()
	assert.ErrorIs(t, repo.Update(ctx, missing), attendance.ErrAttendanceRecordNotFound)
}

func TestTxManager_RollsBackOnError(t *testing.T) {
	setup := NewTestDatabase(t)
	repo := postgresql.NewAttendanceRepository(setup.DB)
	tx := postgresql.NewTxManager(setup.DB)
	ctx := context.Background()

	rec := newRecord(uuid.NewString())
	boom := errors.New("boom")
	err := tx.WithinTx(ctx, func(ctx context.Context) error {
		require.NoError(t, repo.LockEmployee(ctx, rec.EmployeeID))
		require.NoError(t, repo.Create(ctx, rec))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = repo.GetByID(ctx, rec.ID)
	assert.ErrorIs(t, err, attendance.ErrAttendanceRecordNotFound)
}

// ===== CORRECTION REPOSITORY TESTS =====

func TestCorrectionRepository_UpdateStatusGuardsExpected(t *testing.T) {
	setup := NewTestDatabase(t)
	records := postgresql.NewAttendanceRepository(setup.DB)
	repo := postgresql.NewCorrectionRepository(setup.DB)
	ctx := context.Background()

	rec := newRecord(uuid.NewString())
	require.NoError(t, records.Create(ctx, rec))

	managerID := uuid.NewString()
	req := &correction.Request{
		EmployeeID:         rec.EmployeeID,
		AttendanceRecordID: rec.ID,
		WorkDate:           day,
		Reason:             "forgot to clock out",
		Status:             approval.StatusPendingManager,
		ManagerID:          &managerID,
		CreatedAt:          day,
		UpdatedAt:          day,
	}
	require.NoError(t, repo.Create(ctx, req))

	escalated, err := repo.MarkEscalated(ctx, req.ID, nil, day.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, escalated)

	escalated, err = repo.MarkEscalated(ctx, req.ID, nil, day.Add(2*time.Hour))
	require.NoError(t, err)
	assert.False(t, escalated)

	req.Status = approval.StatusPendingHR
	require.NoError(t, repo.UpdateStatus(ctx, req, approval.StatusPendingManager))

	req.Status = approval.StatusApproved
	err = repo.UpdateStatus(ctx, req, approval.StatusPendingManager)
	assert.ErrorIs(t, err, approval.ErrConcurrentUpdate)

	got, err := repo.GetByID(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, approval.StatusPendingHR, got.Status)
	assert.True(t, got.Escalated)

	pending, err := repo.List(ctx, correction.Filter{Statuses: approval.PendingStatuses(), ManagerID: &managerID})
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

// ===== SYNC LOG REPOSITORY TESTS =====

func TestSyncLogRepository_FailureThenSuccess(t *testing.T) {
	setup := NewTestDatabase(t)
	repo := postgresql.NewSyncLogRepository(setup.DB)
	ctx := context.Background()

	recordID := uuid.NewString()
	first, err := repo.RecordFailure(ctx, payrollsync.SourceAttendance, recordID, payrollsync.TargetPayroll, "timeout", day)
	require.NoError(t, err)
	assert.Equal(t, 1, first.RetryCount)

	second, err := repo.RecordFailure(ctx, payrollsync.SourceAttendance, recordID, payrollsync.TargetPayroll, "timeout", day.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 2, second.RetryCount)

	maxRetries := 2
	failed, err := repo.List(ctx, payrollsync.LogFilter{Statuses: []payrollsync.SyncStatus{payrollsync.SyncFailed}, MaxRetryCount: &maxRetries})
	require.NoError(t, err)
	assert.Empty(t, failed)

	done, err := repo.RecordSuccess(ctx, payrollsync.SourceAttendance, recordID, payrollsync.TargetPayroll, day.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, first.ID, done.ID)
	assert.Equal(t, payrollsync.SyncSuccess, done.Status)
	assert.Nil(t, done.LastErrorMessage)

	_, err = repo.GetActive(ctx, recordID, payrollsync.TargetPayroll)
	assert.ErrorIs(t, err, payrollsync.ErrSyncLogNotFound)
}

// ===== AUDIT AND DIRECTORY TESTS =====

func TestAuditRepository_AppendAndList(t *testing.T) {
	setup := NewTestDatabase(t)
	repo := postgresql.NewAuditRepository(setup.DB)
	ctx := context.Background()

	entityID := uuid.NewString()
	first := audit.NewEvent(audit.EntityAttendanceRecord, entityID, "punch_in", "emp", "employee", day).WithMinutes(0, 0)
	second := audit.NewEvent(audit.EntityAttendanceRecord, entityID, "punch_out", "emp", "employee", day.Add(time.Hour)).
		WithPayload(map[string]interface{}{"source": "DEVICE"})
	require.NoError(t, repo.Append(ctx, first))
	require.NoError(t, repo.Append(ctx, second))

	events, err := repo.List(ctx, audit.Filter{EntityID: &entityID})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "punch_in", events[0].Action)
	assert.Equal(t, "DEVICE", events[1].Payload["source"])

	limited, err := repo.List(ctx, audit.Filter{EntityID: &entityID, Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestEmployeeDirectory_ListsActiveReviewers(t *testing.T) {
	setup := NewTestDatabase(t)
	dir := postgresql.NewEmployeeDirectory(setup.DB)
	ctx := context.Background()

	active, resigned := uuid.NewString(), uuid.NewString()
	for _, row := range []struct {
		id     string
		status employee.EmploymentStatus
	}{{active, employee.EmploymentStatusActive}, {resigned, employee.EmploymentStatusResigned}} {
		_, err := setup.DB.Exec(ctx, `
			INSERT INTO employees (id, employee_code, full_name, is_hr_reviewer, employment_status, hire_date)
			VALUES ($1, $2, 'Reviewer', TRUE, $3, '2020-01-01')`, row.id, row.id[:8], string(row.status))
		require.NoError(t, err)
	}

	reviewers, err := dir.ListHRReviewers(ctx)
	require.NoError(t, err)
	require.Len(t, reviewers, 1)
	assert.Equal(t, active, reviewers[0].ID)

	_, err = dir.ResolveEmployee(ctx, uuid.NewString())
	assert.ErrorIs(t, err, employee.ErrEmployeeNotFound)
}
