package attendance

import (
	"context"
	"testing"
	"time"

	"github.com/cmlabs-hris/hris-timekeeping/internal/config"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/approval"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/attendance"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/employee"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/timeconfig"
	"github.com/cmlabs-hris/hris-timekeeping/internal/repository/memory"
	timeconfigsvc "github.com/cmlabs-hris/hris-timekeeping/internal/service/timeconfig"
	"github.com/stretchr/testify/require"
)

var hrActor = approval.Actor{UserID: "user-hr", EmployeeID: "hr-1", Role: approval.RoleHR}

type fixture struct {
	records   *memory.AttendanceRepository
	auditLog  *memory.AuditRepository
	directory *memory.EmployeeDirectory
	registry  *timeconfigsvc.TimeConfigServiceImpl
	validator attendance.ShiftValidator
	recorder  *RecorderImpl
	now       time.Time
}

func newFixture(t *testing.T, policy config.TimePolicy) *fixture {
	t.Helper()

	f := &fixture{
		records:   memory.NewAttendanceRepository(),
		auditLog:  memory.NewAuditRepository(),
		directory: memory.NewEmployeeDirectory(),
		now:       at("18:00"),
	}
	clock := func() time.Time { return f.now }

	f.registry = timeconfigsvc.NewTimeConfigService(memory.NewTimeConfigRepository(), f.auditLog).WithClock(clock)
	f.validator = NewShiftValidator(f.registry, f.directory, policy)
	f.recorder = NewRecorder(f.records, f.auditLog, f.directory, f.validator, memory.TxManager{}, policy).WithClock(clock)
	return f
}

func (f *fixture) addEmployee(id string, managerID *string) employee.Employee {
	emp := employee.Employee{
		ID:               id,
		EmployeeCode:     "EMP-" + id,
		FullName:         "Employee " + id,
		ManagerID:        managerID,
		EmploymentStatus: employee.EmploymentStatusActive,
	}
	f.directory.Put(emp)
	return emp
}

// assignShift creates a shift type and an approved assignment for employeeID
// starting 2024-01-01.
func (f *fixture) assignShift(t *testing.T, employeeID string, req timeconfig.CreateShiftTypeRequest) *timeconfig.ShiftType {
	t.Helper()
	ctx := context.Background()

	shift, err := f.registry.CreateShiftType(ctx, req)
	require.NoError(t, err)

	a, err := f.registry.CreateAssignment(ctx, hrActor, timeconfig.CreateAssignmentRequest{
		ShiftTypeID: &shift.ID,
		EmployeeID:  &employeeID,
		StartDate:   "2024-01-01",
		Submit:      true,
	})
	require.NoError(t, err)

	_, err = f.registry.TransitionAssignment(ctx, hrActor, a.ID, timeconfig.AssignmentApproved)
	require.NoError(t, err)
	return shift
}

func dayShift(mode timeconfig.PunchMode) timeconfig.CreateShiftTypeRequest {
	return timeconfig.CreateShiftTypeRequest{
		Name:               "Day",
		StartTime:          "09:00",
		EndTime:            "17:00",
		GracePeriodMinutes: 15,
		PunchMode:          mode,
	}
}

func (f *fixture) punch(t *testing.T, employeeID string, typ attendance.PunchType, hhmm string) (attendance.PunchResult, error) {
	t.Helper()
	when := at(hhmm)
	return f.recorder.RecordPunch(context.Background(), attendance.PunchRequest{
		EmployeeID: employeeID,
		Type:       typ,
		Time:       &when,
		Source:     attendance.SourceWeb,
	})
}

func (f *fixture) mustPunch(t *testing.T, employeeID string, typ attendance.PunchType, hhmm string) attendance.PunchResult {
	t.Helper()
	res, err := f.punch(t, employeeID, typ, hhmm)
	require.NoError(t, err)
	return res
}
