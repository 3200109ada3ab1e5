package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/cmlabs-hris/hris-timekeeping/internal/app"
	"github.com/cmlabs-hris/hris-timekeeping/internal/config"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/approval"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/attendance"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/correction"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/employee"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/payrollsync"
	"github.com/cmlabs-hris/hris-timekeeping/internal/repository/memory"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	engine *app.App
	build  Builder
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	cfg := &config.Config{
		Database:   config.DatabaseConfig{Driver: "memory"},
		JWT:        config.JWTConfig{Secret: "test-secret", AccessExpiration: "1h"},
		App:        config.AppConfig{Env: "test"},
		Storage:    config.StorageConfig{Driver: "local", BasePath: t.TempDir(), BaseURL: "http://localhost/files"},
		TimePolicy: config.DefaultTimePolicy(),
	}
	engine, err := app.New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	engine.Directory.(*memory.EmployeeDirectory).Put(employee.Employee{
		ID:               "emp-1",
		FullName:         "Employee One",
		EmploymentStatus: employee.EmploymentStatusActive,
	})

	return &harness{
		engine: engine,
		build:  func(cmd *cobra.Command) (*app.App, error) { return engine, nil },
	}
}

// run executes timectl with args; the engine outlives the command.
func (h *harness) run(args ...string) (string, string, error) {
	root := NewRootCommand(h.build)
	root.PersistentPostRun = nil

	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)

	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func (h *harness) recordDay(t *testing.T, day time.Time, out bool) string {
	t.Helper()

	in := time.Date(day.Year(), day.Month(), day.Day(), 9, 0, 0, 0, time.UTC)
	result, err := h.engine.Recorder.RecordPunch(context.Background(), attendance.PunchRequest{
		EmployeeID: "emp-1", Type: attendance.PunchIn, Time: &in, Source: attendance.SourceDevice,
	})
	require.NoError(t, err)

	if out {
		at := in.Add(8 * time.Hour)
		result, err = h.engine.Recorder.RecordPunch(context.Background(), attendance.PunchRequest{
			EmployeeID: "emp-1", Type: attendance.PunchOut, Time: &at, Source: attendance.SourceDevice,
		})
		require.NoError(t, err)
	}
	return result.Record.ID
}

func (h *harness) openCorrection(t *testing.T, recordID string) {
	t.Helper()

	record, err := h.engine.Recorder.GetRecord(context.Background(), recordID)
	require.NoError(t, err)
	at := time.Date(record.WorkDate.Year(), record.WorkDate.Month(), record.WorkDate.Day(), 8, 45, 0, 0, time.UTC)

	_, err = h.engine.Corrections.Create(context.Background(),
		approval.Actor{UserID: "user-1", EmployeeID: "emp-1", Role: approval.RoleEmployee},
		correction.CreateCorrectionRequest{AttendanceRecordID: recordID, RequestedClockIn: &at, Reason: "arrived early"},
	)
	require.NoError(t, err)
}

// ===== ROOT =====

func TestRootCommand_InvalidFormat(t *testing.T) {
	h := newHarness(t)

	_, _, err := h.run("--format", "yaml", "escalate")
	assert.ErrorContains(t, err, "invalid format")
}

func TestRootCommand_HasSubcommands(t *testing.T) {
	root := NewRootCommand(DefaultBuilder)

	for _, name := range []string{"validate", "finalize", "export", "detect-missed", "escalate", "cutoff", "retry-sync", "expire-assignments", "run-job", "token"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}
}

// ===== PAYROLL =====

func TestValidateCommand_ReportsBlockingIssues(t *testing.T) {
	h := newHarness(t)
	recordID := h.recordDay(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), true)
	h.openCorrection(t, recordID)

	stdout, _, err := h.run("validate", "--start", "2026-03-10", "--end", "2026-03-10")

	assert.ErrorContains(t, err, "1 blocking issue(s) found")
	assert.Contains(t, stdout, "OPEN_CORRECTION")
}

func TestValidateCommand_CleanPeriodJSON(t *testing.T) {
	h := newHarness(t)
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	h.recordDay(t, day, true)

	stdout, _, err := h.run("--format", "json", "validate", "--start", "2026-03-10", "--end", "2026-03-10")
	require.NoError(t, err)

	var result payrollsync.ValidationResult
	require.NoError(t, json.Unmarshal([]byte(stdout), &result))
	assert.True(t, result.IsValid)
	assert.Zero(t, result.ErrorCount)
}

func TestValidateCommand_BadDate(t *testing.T) {
	h := newHarness(t)

	_, _, err := h.run("validate", "--start", "10/03/2026", "--end", "2026-03-10")
	assert.Error(t, err)
}

func TestFinalizeCommand_BlockedThenOverride(t *testing.T) {
	h := newHarness(t)
	recordID := h.recordDay(t, time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC), true)
	h.openCorrection(t, recordID)

	_, stderr, err := h.run("finalize", recordID)
	var blocked *payrollsync.ValidationFailedError
	require.ErrorAs(t, err, &blocked)
	assert.Contains(t, stderr, "OPEN_CORRECTION")

	stdout, _, err := h.run("finalize", "--override", recordID)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Finalised 1 record(s)")

	record, err := h.engine.Recorder.GetRecord(context.Background(), recordID)
	require.NoError(t, err)
	assert.True(t, record.FinalisedForPayroll)
}

func TestFinalizeCommand_RequiresArgs(t *testing.T) {
	h := newHarness(t)

	_, _, err := h.run("finalize")
	assert.Error(t, err)
}

func TestExportCommand_WritesWorkbook(t *testing.T) {
	h := newHarness(t)
	h.recordDay(t, time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC), true)

	stdout, _, err := h.run("export", "--start", "2026-03-01", "--end", "2026-03-31")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Exported 1 employee(s)")
}

func TestCutoffCommand_InvalidDay(t *testing.T) {
	h := newHarness(t)

	_, _, err := h.run("cutoff", "--at", "tomorrow")
	assert.ErrorContains(t, err, "invalid --at")
}

func TestRetrySyncCommand_NothingToRetry(t *testing.T) {
	h := newHarness(t)

	stdout, _, err := h.run("retry-sync")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Retried 0")
}

// ===== OPS =====

func TestDetectMissedCommand_FlagsOpenRecord(t *testing.T) {
	h := newHarness(t)
	h.recordDay(t, time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC), false)

	stdout, _, err := h.run("--format", "json", "detect-missed", "--day", "2026-03-09")
	require.NoError(t, err)

	var result attendance.DetectionResult
	require.NoError(t, json.Unmarshal([]byte(stdout), &result))
	assert.Equal(t, 1, result.Flagged)
}

func TestEscalateCommand_Text(t *testing.T) {
	h := newHarness(t)

	stdout, _, err := h.run("escalate")
	require.NoError(t, err)
	assert.Contains(t, stdout, "corrections: scanned 0")
	assert.Contains(t, stdout, "time exceptions: scanned 0")
}

func TestExpireAssignmentsCommand(t *testing.T) {
	h := newHarness(t)

	stdout, _, err := h.run("expire-assignments")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Expired 0 assignment(s)")
}

func TestRunJobCommand(t *testing.T) {
	h := newHarness(t)

	stdout, _, err := h.run("run-job", "escalate_overdue_corrections")
	require.NoError(t, err)
	assert.Contains(t, stdout, "finished")

	_, _, err = h.run("run-job", "does_not_exist")
	assert.ErrorContains(t, err, "unknown job")
}

func TestTokenCommand(t *testing.T) {
	h := newHarness(t)

	stdout, _, err := h.run("token", "--user", "user-1", "--employee", "emp-1", "--role", "hr")
	require.NoError(t, err)
	assert.NotEmpty(t, stdout)

	_, _, err = h.run("token")
	assert.Error(t, err)
}
