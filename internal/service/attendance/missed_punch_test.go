package attendance

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cmlabs-hris/hris-timekeeping/internal/config"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/approval"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/attendance"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/notification"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/timeconfig"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/timeexception"
	"github.com/cmlabs-hris/hris-timekeeping/internal/repository/memory"
	timeexceptionsvc "github.com/cmlabs-hris/hris-timekeeping/internal/service/timeexception"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturingSender struct {
	mu  sync.Mutex
	got []notification.CreateNotificationRequest
}

func (c *capturingSender) QueueNotification(ctx context.Context, req notification.CreateNotificationRequest) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.got = append(c.got, req)
	return nil
}

// detectorFor wires a detector and a time exception service over the
// fixture's stores, and lets the recorder resolve exceptions it completes.
func (f *fixture) detectorFor(t *testing.T, sender *capturingSender) (*MissedPunchDetectorImpl, *memory.TimeExceptionRepository) {
	t.Helper()
	clock := func() time.Time { return f.now }

	exceptions := memory.NewTimeExceptionRepository()
	raiser := timeexceptionsvc.NewTimeExceptionService(exceptions, f.records, f.registry, f.directory, &capturingSender{}, f.auditLog, config.DefaultTimePolicy()).WithClock(clock)
	f.recorder.WithMissedPunchResolver(raiser)

	detector := NewMissedPunchDetector(f.records, f.recorder, raiser, f.validator, f.directory, sender).WithClock(clock)
	return detector, exceptions
}

func nightShift() timeconfig.CreateShiftTypeRequest {
	return timeconfig.CreateShiftTypeRequest{
		Name:               "Night",
		StartTime:          "22:00",
		EndTime:            "06:00",
		GracePeriodMinutes: 10,
		PunchMode:          timeconfig.PunchModeMultiple,
	}
}

func (f *fixture) punchAt(t *testing.T, employeeID string, typ attendance.PunchType, when time.Time) attendance.PunchResult {
	t.Helper()
	res, err := f.recorder.RecordPunch(context.Background(), attendance.PunchRequest{
		EmployeeID: employeeID,
		Type:       typ,
		Time:       &when,
		Source:     attendance.SourceDevice,
		DeviceID:   strPtr("gate-1"),
	})
	require.NoError(t, err)
	return res
}

func strPtr(s string) *string { return &s }

func TestMissingPunchOf(t *testing.T) {
	assert.Equal(t, attendance.MissingClockIn, MissingPunchOf(attendance.Record{}))
	assert.Equal(t, attendance.MissingClockOut, MissingPunchOf(attendance.Record{
		Punches: []attendance.Punch{punch(attendance.PunchIn, "09:00")},
	}))
}

func TestMissedPunchDetector_Idempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.DefaultTimePolicy())
	mgr := f.addEmployee("mgr-1", nil)
	f.addEmployee("emp-1", &mgr.ID)
	f.addEmployee("emp-2", &mgr.ID)

	f.mustPunch(t, "emp-1", attendance.PunchIn, "09:00")
	f.mustPunch(t, "emp-2", attendance.PunchIn, "09:00")
	f.mustPunch(t, "emp-2", attendance.PunchOut, "17:00")

	sender := &capturingSender{}
	detector, exceptions := f.detectorFor(t, sender)

	day := at("00:00")
	first, err := detector.DetectMissedPunches(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Scanned)
	assert.Equal(t, 1, first.Flagged)
	assert.Equal(t, 1, first.ExceptionsCreated)
	assert.Equal(t, 0, first.Failed)

	// employee and manager
	require.Len(t, sender.got, 2)
	assert.Equal(t, notification.TypeMissedPunch, sender.got[0].Type)
	assert.Equal(t, "CLOCK_OUT", sender.got[0].Data["missing_punch"])

	second, err := detector.DetectMissedPunches(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, 1, second.Flagged)
	assert.Equal(t, 0, second.ExceptionsCreated)
	assert.Len(t, sender.got, 2)

	raised, err := exceptions.List(ctx, timeexception.Filter{Types: []timeexception.Type{timeexception.TypeMissedPunch}})
	require.NoError(t, err)
	require.Len(t, raised, 1)
	assert.Equal(t, "emp-1", raised[0].EmployeeID)
	require.NotNil(t, raised[0].ManagerID)
	assert.Equal(t, "mgr-1", *raised[0].ManagerID)
}

func TestMissedPunchDetector_FinalisedRecordIsReadOnly(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.DefaultTimePolicy())
	f.addEmployee("emp-1", nil)

	res := f.mustPunch(t, "emp-1", attendance.PunchIn, "09:00")
	_, err := f.records.MarkFinalised(ctx, res.Record.ID, f.now)
	require.NoError(t, err)

	rec, missed, err := f.recorder.FlagMissedPunch(ctx, res.Record.ID)
	require.NoError(t, err)
	assert.True(t, missed)
	assert.True(t, rec.FinalisedForPayroll)
}

func TestMissedPunchDetector_DefersRunningNightShift(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.DefaultTimePolicy())
	mgr := f.addEmployee("mgr-1", nil)
	f.addEmployee("emp-1", &mgr.ID)
	f.assignShift(t, "emp-1", nightShift())

	f.now = at("22:00")
	f.punchAt(t, "emp-1", attendance.PunchIn, at("22:00"))

	sender := &capturingSender{}
	detector, exceptions := f.detectorFor(t, sender)

	// the nightly sweep runs while the shift is still in progress
	f.now = time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	result, err := detector.DetectMissedPunches(ctx, at("00:00"))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Scanned)
	assert.Equal(t, 1, result.Deferred)
	assert.Equal(t, 0, result.Flagged)
	assert.Equal(t, 0, result.ExceptionsCreated)
	assert.Empty(t, sender.got)

	f.now = time.Date(2024, 3, 5, 6, 0, 0, 0, time.UTC)
	res := f.punchAt(t, "emp-1", attendance.PunchOut, f.now)
	assert.False(t, res.Record.HasMissedPunch)
	assert.Equal(t, 480, res.Record.TotalWorkMinutes)

	raised, err := exceptions.List(ctx, timeexception.Filter{Types: []timeexception.Type{timeexception.TypeMissedPunch}})
	require.NoError(t, err)
	assert.Empty(t, raised)
}

func TestMissedPunchDetector_LateOutResolvesException(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.DefaultTimePolicy())
	mgr := f.addEmployee("mgr-1", nil)
	f.addEmployee("emp-1", &mgr.ID)
	f.assignShift(t, "emp-1", nightShift())

	f.now = at("22:00")
	in := f.punchAt(t, "emp-1", attendance.PunchIn, at("22:00"))

	detector, exceptions := f.detectorFor(t, &capturingSender{})

	// the shift is over and the OUT never came
	f.now = time.Date(2024, 3, 5, 7, 0, 0, 0, time.UTC)
	result, err := detector.DetectMissedPunches(ctx, at("00:00"))
	require.NoError(t, err)
	assert.Equal(t, 0, result.Deferred)
	assert.Equal(t, 1, result.ExceptionsCreated)

	f.now = time.Date(2024, 3, 5, 7, 30, 0, 0, time.UTC)
	res := f.punchAt(t, "emp-1", attendance.PunchOut, f.now)
	assert.Equal(t, in.Record.ID, res.Record.ID)
	assert.False(t, res.Record.HasMissedPunch)

	raised, err := exceptions.List(ctx, timeexception.Filter{Types: []timeexception.Type{timeexception.TypeMissedPunch}})
	require.NoError(t, err)
	require.Len(t, raised, 1)
	assert.Equal(t, approval.StatusCancelled, raised[0].Status)
	assert.NotNil(t, raised[0].CancelledAt)
}

func TestMissedPunchDetector_CorrectionResolvesException(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.DefaultTimePolicy())
	mgr := f.addEmployee("mgr-1", nil)
	f.addEmployee("emp-1", &mgr.ID)

	res := f.mustPunch(t, "emp-1", attendance.PunchIn, "09:00")

	detector, exceptions := f.detectorFor(t, &capturingSender{})
	f.now = time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	result, err := detector.DetectMissedPunches(ctx, at("00:00"))
	require.NoError(t, err)
	require.Equal(t, 1, result.ExceptionsCreated)

	out := at("17:00")
	rec, err := f.recorder.ApplyCorrection(ctx, hrActor, res.Record.ID, nil, &out)
	require.NoError(t, err)
	assert.False(t, rec.HasMissedPunch)

	raised, err := exceptions.List(ctx, timeexception.Filter{
		Types:    []timeexception.Type{timeexception.TypeMissedPunch},
		Statuses: []approval.Status{approval.StatusPendingManager, approval.StatusPendingHR},
	})
	require.NoError(t, err)
	assert.Empty(t, raised)
}
