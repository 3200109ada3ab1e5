package attendance

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cmlabs-hris/hris-timekeeping/internal/config"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/approval"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/attendance"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/timeconfig"
	"github.com/cmlabs-hris/hris-timekeeping/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ===== PUNCH TESTS =====

func TestRecorder_RecordPunch_OddPunchCount(t *testing.T) {
	f := newFixture(t, config.DefaultTimePolicy())
	f.addEmployee("emp-1", nil)
	f.assignShift(t, "emp-1", dayShift(timeconfig.PunchModeMultiple))

	f.mustPunch(t, "emp-1", attendance.PunchIn, "09:00")
	f.mustPunch(t, "emp-1", attendance.PunchOut, "13:00")
	res := f.mustPunch(t, "emp-1", attendance.PunchIn, "14:00")

	assert.Equal(t, 240, res.Record.TotalWorkMinutes)
	assert.True(t, res.Record.HasMissedPunch)
	assert.Len(t, res.Record.Punches, 3)
	assert.Equal(t, "2024-03-04", res.Record.WorkDate)

	records, err := f.recorder.ListRecords(context.Background(), attendance.RecordFilter{})
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestRecorder_RecordPunch_ClosedDay(t *testing.T) {
	f := newFixture(t, config.DefaultTimePolicy())
	f.addEmployee("emp-1", nil)
	f.assignShift(t, "emp-1", dayShift(timeconfig.PunchModeMultiple))

	f.mustPunch(t, "emp-1", attendance.PunchIn, "09:00")
	res := f.mustPunch(t, "emp-1", attendance.PunchOut, "17:30")

	assert.Equal(t, 510, res.Record.TotalWorkMinutes)
	assert.False(t, res.Record.HasMissedPunch)
	assert.Equal(t, 0, res.Record.LateMinutes)
	assert.Equal(t, 0, res.Record.EarlyLeaveMinutes)
}

func TestRecorder_RecordPunch_OutWithoutIn(t *testing.T) {
	f := newFixture(t, config.DefaultTimePolicy())
	f.addEmployee("emp-1", nil)
	f.assignShift(t, "emp-1", dayShift(timeconfig.PunchModeMultiple))

	_, err := f.punch(t, "emp-1", attendance.PunchOut, "17:00")
	assert.ErrorIs(t, err, attendance.ErrNoActiveClockIn)
}

func TestRecorder_RecordPunch_DoubleIn(t *testing.T) {
	f := newFixture(t, config.DefaultTimePolicy())
	f.addEmployee("emp-1", nil)
	f.assignShift(t, "emp-1", dayShift(timeconfig.PunchModeMultiple))

	f.mustPunch(t, "emp-1", attendance.PunchIn, "09:00")
	_, err := f.punch(t, "emp-1", attendance.PunchIn, "09:30")
	assert.ErrorIs(t, err, attendance.ErrInvalidPunchSequence)
}

func TestRecorder_RecordPunch_FirstLastRejectsSecondPair(t *testing.T) {
	f := newFixture(t, config.DefaultTimePolicy())
	f.addEmployee("emp-1", nil)
	f.assignShift(t, "emp-1", dayShift(timeconfig.PunchModeFirstLast))

	f.mustPunch(t, "emp-1", attendance.PunchIn, "09:00")
	f.mustPunch(t, "emp-1", attendance.PunchOut, "17:00")

	_, err := f.punch(t, "emp-1", attendance.PunchIn, "18:00")
	assert.ErrorIs(t, err, attendance.ErrInvalidPunchSequence)
}

func TestRecorder_RecordPunch_Lateness(t *testing.T) {
	f := newFixture(t, config.DefaultTimePolicy())
	f.addEmployee("emp-1", nil)
	f.addEmployee("emp-2", nil)
	f.assignShift(t, "emp-1", dayShift(timeconfig.PunchModeMultiple))
	f.assignShift(t, "emp-2", dayShift(timeconfig.PunchModeMultiple))

	withinGrace := f.mustPunch(t, "emp-1", attendance.PunchIn, "09:05")
	assert.False(t, withinGrace.ShiftCheck.IsLate)
	assert.Equal(t, 0, withinGrace.Record.LateMinutes)

	late := f.mustPunch(t, "emp-2", attendance.PunchIn, "09:20")
	assert.True(t, late.ShiftCheck.IsLate)
	assert.Equal(t, 5, late.ShiftCheck.LateByMinutes)
	assert.Equal(t, 5, late.Record.LateMinutes)
}

func TestRecorder_RecordPunch_EarlyLeave(t *testing.T) {
	f := newFixture(t, config.DefaultTimePolicy())
	f.addEmployee("emp-1", nil)
	f.assignShift(t, "emp-1", dayShift(timeconfig.PunchModeMultiple))

	f.mustPunch(t, "emp-1", attendance.PunchIn, "09:00")
	res := f.mustPunch(t, "emp-1", attendance.PunchOut, "16:00")

	assert.True(t, res.ShiftCheck.IsEarlyLeave)
	assert.Equal(t, 45, res.Record.EarlyLeaveMinutes)
}

func TestRecorder_RecordPunch_NoAssignmentWarns(t *testing.T) {
	f := newFixture(t, config.DefaultTimePolicy())
	f.addEmployee("emp-1", nil)

	res := f.mustPunch(t, "emp-1", attendance.PunchIn, "09:00")
	assert.True(t, res.ShiftCheck.WithinWindow)
	assert.NotEmpty(t, res.Warnings)
	assert.Equal(t, timeconfig.PunchModeMultiple, res.Record.PunchMode)
}

func TestRecorder_RecordPunch_UnknownEmployee(t *testing.T) {
	f := newFixture(t, config.DefaultTimePolicy())

	_, err := f.punch(t, "ghost", attendance.PunchIn, "09:00")
	assert.Error(t, err)
}

func TestRecorder_RecordPunch_StrictWindow(t *testing.T) {
	policy := config.DefaultTimePolicy()
	policy.StrictShiftWindow = true

	f := newFixture(t, policy)
	f.addEmployee("emp-1", nil)
	f.assignShift(t, "emp-1", dayShift(timeconfig.PunchModeMultiple))

	_, err := f.punch(t, "emp-1", attendance.PunchIn, "03:00")
	assert.ErrorIs(t, err, attendance.ErrPunchOutsideShiftWindow)

	res, err := f.recorder.ManualPunch(context.Background(), hrActor, attendance.ManualPunchRequest{
		EmployeeID: "emp-1",
		Type:       attendance.PunchIn,
		Time:       at("03:00"),
		Reason:     "badge reader offline",
	})
	require.NoError(t, err)
	assert.Equal(t, attendance.SourceManual, res.Record.Punches[0].Source)
	assert.False(t, res.ShiftCheck.WithinWindow)
}

func TestRecorder_ManualPunch_RequiresHR(t *testing.T) {
	f := newFixture(t, config.DefaultTimePolicy())
	f.addEmployee("emp-1", nil)

	employeeActor := approval.Actor{EmployeeID: "emp-1", Role: approval.RoleEmployee}
	_, err := f.recorder.ManualPunch(context.Background(), employeeActor, attendance.ManualPunchRequest{
		EmployeeID: "emp-1",
		Type:       attendance.PunchIn,
		Time:       at("09:00"),
		Reason:     "forgot",
	})
	assert.ErrorIs(t, err, approval.ErrForbiddenActor)
}

// ===== ROUNDING TESTS =====

func TestRecorder_RoundWorkMinutes_Idempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.DefaultTimePolicy())
	f.addEmployee("emp-1", nil)
	f.assignShift(t, "emp-1", dayShift(timeconfig.PunchModeMultiple))

	f.mustPunch(t, "emp-1", attendance.PunchIn, "09:00")
	res := f.mustPunch(t, "emp-1", attendance.PunchOut, "17:07")
	require.Equal(t, 487, res.Record.TotalWorkMinutes)

	req := attendance.RoundRequest{Strategy: attendance.RoundNearest, IntervalMinutes: 15}
	first, err := f.recorder.RoundWorkMinutes(ctx, hrActor, res.Record.ID, req)
	require.NoError(t, err)
	require.NotNil(t, first.RoundedWorkMinutes)
	assert.Equal(t, 480, *first.RoundedWorkMinutes)
	assert.Equal(t, 487, first.TotalWorkMinutes)

	second, err := f.recorder.RoundWorkMinutes(ctx, hrActor, res.Record.ID, req)
	require.NoError(t, err)
	assert.Equal(t, 480, *second.RoundedWorkMinutes)
}

func TestRecorder_RoundWorkMinutes_FinalisedRecord(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.DefaultTimePolicy())
	f.addEmployee("emp-1", nil)

	f.mustPunch(t, "emp-1", attendance.PunchIn, "09:00")
	res := f.mustPunch(t, "emp-1", attendance.PunchOut, "17:00")

	ok, err := f.records.MarkFinalised(ctx, res.Record.ID, f.now)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = f.recorder.RoundWorkMinutes(ctx, hrActor, res.Record.ID, attendance.RoundRequest{Strategy: attendance.RoundFloor, IntervalMinutes: 30})
	assert.ErrorIs(t, err, attendance.ErrRecordFinalised)
}

// ===== CORRECTION TESTS =====

func TestRecorder_ApplyCorrection_ReplacesFirstIn(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.DefaultTimePolicy())
	f.addEmployee("emp-1", nil)
	f.assignShift(t, "emp-1", dayShift(timeconfig.PunchModeMultiple))

	f.mustPunch(t, "emp-1", attendance.PunchIn, "09:20")
	res := f.mustPunch(t, "emp-1", attendance.PunchOut, "17:00")
	require.Equal(t, 5, res.Record.LateMinutes)

	clockIn := at("09:00")
	rec, err := f.recorder.ApplyCorrection(ctx, hrActor, res.Record.ID, &clockIn, nil)
	require.NoError(t, err)

	assert.Equal(t, 480, rec.TotalWorkMinutes)
	assert.Equal(t, 0, rec.LateMinutes)
	assert.Equal(t, attendance.SourceCorrection, rec.Punches[0].Source)
	assert.Len(t, rec.Punches, 2)
}

func TestRecorder_ApplyCorrection_AddsMissingOut(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.DefaultTimePolicy())
	f.addEmployee("emp-1", nil)

	res := f.mustPunch(t, "emp-1", attendance.PunchIn, "09:00")
	require.True(t, res.Record.HasMissedPunch)

	clockOut := at("17:00")
	rec, err := f.recorder.ApplyCorrection(ctx, hrActor, res.Record.ID, nil, &clockOut)
	require.NoError(t, err)

	assert.Equal(t, 480, rec.TotalWorkMinutes)
	assert.False(t, rec.HasMissedPunch)
	assert.Len(t, rec.Punches, 2)
}

func TestRecorder_ApplyCorrection_RejectsInvertedTimes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.DefaultTimePolicy())
	f.addEmployee("emp-1", nil)

	f.mustPunch(t, "emp-1", attendance.PunchIn, "09:00")
	res := f.mustPunch(t, "emp-1", attendance.PunchOut, "17:00")

	clockIn := at("18:00")
	_, err := f.recorder.ApplyCorrection(ctx, hrActor, res.Record.ID, &clockIn, nil)
	assert.ErrorIs(t, err, attendance.ErrInvalidPunchSequence)

	unchanged, err := f.recorder.GetRecord(ctx, res.Record.ID)
	require.NoError(t, err)
	assert.Equal(t, 480, unchanged.TotalWorkMinutes)
}

// ===== AUDIT TESTS =====

func TestRecorder_AuditTrail(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.DefaultTimePolicy())
	f.addEmployee("emp-1", nil)

	f.mustPunch(t, "emp-1", attendance.PunchIn, "09:00")
	res := f.mustPunch(t, "emp-1", attendance.PunchOut, "12:00")

	events, err := f.recorder.AuditTrail(ctx, res.Record.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, ActionPunchIn, events[0].Action)
	assert.Equal(t, ActionPunchOut, events[1].Action)
	require.NotNil(t, events[1].AfterMinutes)
	assert.Equal(t, 180, *events[1].AfterMinutes)
}

func TestRecorder_OpenInExpires(t *testing.T) {
	f := newFixture(t, config.DefaultTimePolicy())
	f.addEmployee("emp-1", nil)

	f.mustPunch(t, "emp-1", attendance.PunchIn, "09:00")

	later := at("10:00").Add(24 * time.Hour)
	_, err := f.recorder.RecordPunch(context.Background(), attendance.PunchRequest{
		EmployeeID: "emp-1",
		Type:       attendance.PunchOut,
		Time:       &later,
	})
	assert.ErrorIs(t, err, attendance.ErrNoActiveClockIn)
}

// ===== CONCURRENCY TESTS =====

func TestRecorder_RecordPunch_ConcurrentSameEmployee(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.DefaultTimePolicy())
	f.addEmployee("emp-1", nil)

	const workers = 40
	var (
		wg       sync.WaitGroup
		accepted atomic.Int32
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			typ := attendance.PunchIn
			if i%2 == 1 {
				typ = attendance.PunchOut
			}
			when := at("08:00").Add(time.Duration(i) * 10 * time.Minute)
			_, err := f.recorder.RecordPunch(ctx, attendance.PunchRequest{
				EmployeeID: "emp-1",
				Type:       typ,
				Time:       &when,
				Source:     attendance.SourceWeb,
			})
			if err == nil {
				accepted.Add(1)
				return
			}
			assert.True(t,
				errors.Is(err, attendance.ErrInvalidPunchSequence) || errors.Is(err, attendance.ErrNoActiveClockIn),
				"unexpected error: %v", err)
		}(i)
	}
	wg.Wait()

	employeeID := "emp-1"
	records, err := f.recorder.ListRecords(ctx, attendance.RecordFilter{EmployeeID: &employeeID})
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	require.NotEmpty(t, rec.Punches)
	assert.Len(t, rec.Punches, int(accepted.Load()))
	for i, p := range rec.Punches {
		want := attendance.PunchIn
		if i%2 == 1 {
			want = attendance.PunchOut
		}
		assert.Equal(t, want, p.Type, "punch %d", i)
		if i > 0 {
			assert.True(t, p.Time.After(rec.Punches[i-1].Time), "punch %d out of order", i)
		}
	}
	assert.Equal(t, len(rec.Punches)%2 == 1, rec.HasMissedPunch)
	assert.Equal(t, ComputeWorkMinutes(rec.Punches), rec.TotalWorkMinutes)

	events, err := f.recorder.AuditTrail(ctx, rec.ID)
	require.NoError(t, err)
	assert.Len(t, events, len(rec.Punches))
}

// finalisingRecords finalises a record right before the recorder writes it,
// the way a payroll run committing between the read and the write would.
type finalisingRecords struct {
	*memory.AttendanceRepository
	once sync.Once
	at   time.Time
}

func (r *finalisingRecords) Update(ctx context.Context, rec *attendance.Record) error {
	r.once.Do(func() {
		_, _ = r.AttendanceRepository.MarkFinalised(ctx, rec.ID, r.at)
	})
	return r.AttendanceRepository.Update(ctx, rec)
}

func TestRecorder_RecordPunch_FinalisedMidPunch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.DefaultTimePolicy())
	f.addEmployee("emp-1", nil)

	in := f.mustPunch(t, "emp-1", attendance.PunchIn, "09:00")

	records := &finalisingRecords{AttendanceRepository: f.records, at: f.now}
	recorder := NewRecorder(records, f.auditLog, f.directory, f.validator, memory.TxManager{}, config.DefaultTimePolicy()).
		WithClock(func() time.Time { return f.now })

	out := at("17:00")
	_, err := recorder.RecordPunch(ctx, attendance.PunchRequest{
		EmployeeID: "emp-1",
		Type:       attendance.PunchOut,
		Time:       &out,
		Source:     attendance.SourceWeb,
	})
	assert.ErrorIs(t, err, attendance.ErrRecordFinalised)

	stored, err := f.records.GetByID(ctx, in.Record.ID)
	require.NoError(t, err)
	assert.True(t, stored.FinalisedForPayroll)
	require.NotNil(t, stored.FinalisedAt)
	assert.Len(t, stored.Punches, 1)
	assert.Equal(t, 0, stored.TotalWorkMinutes)
}

func TestRecorder_ApplyCorrection_FinalisedMidWrite(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.DefaultTimePolicy())
	f.addEmployee("emp-1", nil)

	f.mustPunch(t, "emp-1", attendance.PunchIn, "09:00")
	res := f.mustPunch(t, "emp-1", attendance.PunchOut, "17:00")

	records := &finalisingRecords{AttendanceRepository: f.records, at: f.now}
	recorder := NewRecorder(records, f.auditLog, f.directory, f.validator, memory.TxManager{}, config.DefaultTimePolicy()).
		WithClock(func() time.Time { return f.now })

	out := at("18:00")
	_, err := recorder.ApplyCorrection(ctx, hrActor, res.Record.ID, nil, &out)
	assert.ErrorIs(t, err, attendance.ErrRecordFinalised)

	stored, err := f.records.GetByID(ctx, res.Record.ID)
	require.NoError(t, err)
	assert.True(t, stored.FinalisedForPayroll)
	assert.Equal(t, 480, stored.TotalWorkMinutes)
}
