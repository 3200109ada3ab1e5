package attendance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/hris-timekeeping/internal/config"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/approval"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/attendance"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/audit"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/employee"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/timeconfig"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/timeexception"
	"github.com/cmlabs-hris/hris-timekeeping/internal/pkg/daterange"
	"github.com/cmlabs-hris/hris-timekeeping/internal/pkg/database"
)

// maxOpenPeriod bounds how long an unmatched IN can still be closed by an OUT.
const maxOpenPeriod = 24 * time.Hour

const (
	ActionPunchIn           = "punch_in"
	ActionPunchOut          = "punch_out"
	ActionManualPunch       = "manual_punch"
	ActionRounded           = "rounded"
	ActionCorrectionApplied = "correction_applied"
	ActionMissedPunchFlag   = "missed_punch_flagged"
)

var _ attendance.Recorder = (*RecorderImpl)(nil)

type RecorderImpl struct {
	records   attendance.RecordWriter
	auditLog  audit.Repository
	directory employee.Directory
	shifts    attendance.ShiftValidator
	tx        database.TxManager
	locks     *keyedMutex
	resolver  timeexception.MissedPunchResolver
	policy    config.TimePolicy
	location  *time.Location
	now       func() time.Time
}

func NewRecorder(
	records attendance.RecordWriter,
	auditLog audit.Repository,
	directory employee.Directory,
	shifts attendance.ShiftValidator,
	tx database.TxManager,
	policy config.TimePolicy,
) *RecorderImpl {
	return &RecorderImpl{
		records:   records,
		auditLog:  auditLog,
		directory: directory,
		shifts:    shifts,
		tx:        tx,
		locks:     newKeyedMutex(),
		policy:    policy,
		location:  policy.Location(),
		now:       time.Now,
	}
}

// WithClock replaces the clock used for punch times and audit stamps.
func (s *RecorderImpl) WithClock(now func() time.Time) *RecorderImpl {
	s.now = now
	return s
}

// WithMissedPunchResolver closes missed_punch exceptions whenever a punch or
// correction completes the record they were raised for.
func (s *RecorderImpl) WithMissedPunchResolver(resolver timeexception.MissedPunchResolver) *RecorderImpl {
	s.resolver = resolver
	return s
}

// RecordPunch implements attendance.Recorder.
func (s *RecorderImpl) RecordPunch(ctx context.Context, req attendance.PunchRequest) (attendance.PunchResult, error) {
	if err := req.Validate(); err != nil {
		return attendance.PunchResult{}, err
	}

	actor, ok := approval.ActorFromContext(ctx)
	if !ok {
		actor = approval.Actor{EmployeeID: req.EmployeeID, Role: approval.RoleEmployee}
	}
	return s.recordPunch(ctx, actor, req, nil)
}

// ManualPunch implements attendance.Recorder. It is reserved for HR and
// bypasses the strict shift window.
func (s *RecorderImpl) ManualPunch(ctx context.Context, actor approval.Actor, req attendance.ManualPunchRequest) (attendance.PunchResult, error) {
	if !actor.IsHR() {
		return attendance.PunchResult{}, approval.ErrForbiddenActor
	}
	if err := req.Validate(); err != nil {
		return attendance.PunchResult{}, err
	}

	at := req.Time
	punch := attendance.PunchRequest{
		EmployeeID:     req.EmployeeID,
		Type:           req.Type,
		Time:           &at,
		Source:         attendance.SourceManual,
		OverrideWindow: true,
	}
	return s.recordPunch(ctx, actor, punch, map[string]interface{}{"reason": req.Reason})
}

func (s *RecorderImpl) recordPunch(ctx context.Context, actor approval.Actor, req attendance.PunchRequest, extra map[string]interface{}) (attendance.PunchResult, error) {
	now := s.now().UTC()
	at := now
	if req.Time != nil {
		at = req.Time.UTC()
	}

	if _, err := s.directory.ResolveEmployee(ctx, req.EmployeeID); err != nil {
		return attendance.PunchResult{}, err
	}

	check, err := s.shifts.ValidatePunch(ctx, req.EmployeeID, at, req.Type)
	if err != nil {
		return attendance.PunchResult{}, fmt.Errorf("failed to validate punch against shift: %w", err)
	}
	if !check.WithinWindow && s.policy.StrictShiftWindow && !req.OverrideWindow {
		return attendance.PunchResult{}, attendance.ErrPunchOutsideShiftWindow
	}

	mode := check.PunchMode
	if !mode.IsValid() {
		mode = timeconfig.PunchMode(s.policy.DefaultPunchMode)
	}

	newPunch := attendance.Punch{
		Type:     req.Type,
		Time:     at,
		Source:   req.Source,
		DeviceID: req.DeviceID,
		Location: req.Location,
	}

	unlock := s.locks.Lock(req.EmployeeID)
	defer unlock()

	var record *attendance.Record
	wasMissed := false
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.records.LockEmployee(ctx, req.EmployeeID); err != nil {
			return fmt.Errorf("failed to lock employee: %w", err)
		}

		current, err := s.openRecord(ctx, req.EmployeeID)
		if err != nil {
			return err
		}

		workDate := daterange.WorkDate(at, s.location)
		isNew := false

		switch req.Type {
		case attendance.PunchIn:
			record, isNew, err = s.recordForIn(current, req.EmployeeID, workDate, mode)
		case attendance.PunchOut:
			record, err = s.recordForOut(current, at)
		}
		if err != nil {
			return err
		}

		before := record.TotalWorkMinutes
		wasMissed = record.HasMissedPunch
		punches := insertSorted(record.Punches, newPunch)
		if err := ValidateSequence(punches, record.PunchMode); err != nil {
			return err
		}
		record.Punches = punches
		recompute(record)

		if req.Type == attendance.PunchIn {
			if first := record.FirstIn(); first != nil && first.Equal(at) {
				record.LateMinutes = check.LateByMinutes
			}
		} else {
			record.EarlyLeaveMinutes = check.EarlyByMinutes
		}
		record.UpdatedAt = now

		if isNew {
			record.CreatedAt = now
			if err := s.records.Create(ctx, record); err != nil {
				return fmt.Errorf("failed to create attendance record: %w", err)
			}
		} else if err := s.records.Update(ctx, record); err != nil {
			return fmt.Errorf("failed to update attendance record: %w", err)
		}

		if err := s.records.SetOpenRecordID(ctx, req.EmployeeID, record.ID); err != nil {
			return fmt.Errorf("failed to move open record pointer: %w", err)
		}

		action := ActionPunchIn
		if req.Type == attendance.PunchOut {
			action = ActionPunchOut
		}
		if req.Source == attendance.SourceManual {
			action = ActionManualPunch
		}
		payload := map[string]interface{}{
			"type":   string(req.Type),
			"time":   at.Format(time.RFC3339Nano),
			"source": string(req.Source),
		}
		for k, v := range extra {
			payload[k] = v
		}
		return s.appendAudit(ctx, actor, record.ID, action, before, record.TotalWorkMinutes, payload, now)
	})
	if err != nil {
		return attendance.PunchResult{}, err
	}
	if wasMissed && !record.HasMissedPunch {
		s.resolveMissedPunch(ctx, record.ID)
	}

	result := attendance.PunchResult{
		Record:     attendance.NewRecordResponse(*record),
		ShiftCheck: check,
	}
	if check.Warning != "" {
		result.Warnings = append(result.Warnings, check.Warning)
	}
	return result, nil
}

// openRecord follows the employee's open-record pointer.
func (s *RecorderImpl) openRecord(ctx context.Context, employeeID string) (*attendance.Record, error) {
	id, err := s.records.GetOpenRecordID(ctx, employeeID)
	if err != nil {
		return nil, fmt.Errorf("failed to read open record pointer: %w", err)
	}
	if id == "" {
		return nil, nil
	}

	rec, err := s.records.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, attendance.ErrAttendanceRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load open record: %w", err)
	}
	return rec, nil
}

// recordForIn decides whether an IN continues the current record or opens a
// new period. A dangling IN from an earlier work date is left for the
// missed-punch detector.
func (s *RecorderImpl) recordForIn(current *attendance.Record, employeeID string, workDate time.Time, mode timeconfig.PunchMode) (*attendance.Record, bool, error) {
	if current != nil && current.WorkDate.Equal(workDate) && !current.FinalisedForPayroll {
		last := current.LastPunch()
		if last != nil && last.Type == attendance.PunchIn {
			return nil, false, fmt.Errorf("%w: an IN is already open", attendance.ErrInvalidPunchSequence)
		}
		if current.PunchMode == timeconfig.PunchModeFirstLast && len(current.Punches) >= 2 {
			return nil, false, fmt.Errorf("%w: FIRST_LAST allows one IN/OUT pair per day", attendance.ErrInvalidPunchSequence)
		}
		return current, false, nil
	}

	return &attendance.Record{
		EmployeeID: employeeID,
		WorkDate:   workDate,
		PunchMode:  mode,
	}, true, nil
}

func (s *RecorderImpl) recordForOut(current *attendance.Record, at time.Time) (*attendance.Record, error) {
	if current == nil || !current.IsOpen() {
		return nil, attendance.ErrNoActiveClockIn
	}
	if current.FinalisedForPayroll {
		return nil, attendance.ErrRecordFinalised
	}
	if at.Sub(current.LastPunch().Time) >= maxOpenPeriod {
		return nil, fmt.Errorf("%w: the open IN is older than %s", attendance.ErrNoActiveClockIn, maxOpenPeriod)
	}
	return current, nil
}

// RoundWorkMinutes implements attendance.Recorder. Rounding starts from the
// previous rounded value when present so repeated calls compose.
func (s *RecorderImpl) RoundWorkMinutes(ctx context.Context, actor approval.Actor, recordID string, req attendance.RoundRequest) (*attendance.Record, error) {
	if !actor.IsHR() && !actor.IsSystem() {
		return nil, approval.ErrForbiddenActor
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var record *attendance.Record
	err := s.mutate(ctx, recordID, func(ctx context.Context, rec *attendance.Record, now time.Time) error {
		base := rec.TotalWorkMinutes
		if rec.RoundedWorkMinutes != nil {
			base = *rec.RoundedWorkMinutes
		}
		rounded, err := RoundMinutes(base, req.IntervalMinutes, req.Strategy)
		if err != nil {
			return err
		}

		strategy, interval := req.Strategy, req.IntervalMinutes
		rec.RoundedWorkMinutes = &rounded
		rec.RoundingStrategy = &strategy
		rec.RoundingInterval = &interval
		rec.UpdatedAt = now
		if err := s.records.Update(ctx, rec); err != nil {
			return fmt.Errorf("failed to update attendance record: %w", err)
		}

		record = rec
		return s.appendAudit(ctx, actor, rec.ID, ActionRounded, base, rounded, map[string]interface{}{
			"strategy": string(strategy),
			"interval": interval,
		}, now)
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// ApplyCorrection implements attendance.CorrectionApplier. The first IN and
// the last OUT are replaced, or added when the record lacks them.
func (s *RecorderImpl) ApplyCorrection(ctx context.Context, actor approval.Actor, recordID string, clockIn, clockOut *time.Time) (*attendance.Record, error) {
	if clockIn == nil && clockOut == nil {
		return s.GetRecord(ctx, recordID)
	}

	var record *attendance.Record
	wasMissed := false
	err := s.mutate(ctx, recordID, func(ctx context.Context, rec *attendance.Record, now time.Time) error {
		before := rec.TotalWorkMinutes
		wasMissed = rec.HasMissedPunch
		punches := append([]attendance.Punch(nil), rec.Punches...)

		if clockIn != nil {
			p := attendance.Punch{Type: attendance.PunchIn, Time: clockIn.UTC(), Source: attendance.SourceCorrection}
			if len(punches) > 0 && punches[0].Type == attendance.PunchIn {
				punches[0] = p
			} else {
				punches = append([]attendance.Punch{p}, punches...)
			}
		}
		if clockOut != nil {
			p := attendance.Punch{Type: attendance.PunchOut, Time: clockOut.UTC(), Source: attendance.SourceCorrection}
			if n := len(punches); n > 0 && punches[n-1].Type == attendance.PunchOut {
				punches[n-1] = p
			} else {
				punches = append(punches, p)
			}
		}

		if err := ValidateSequence(punches, rec.PunchMode); err != nil {
			return err
		}
		rec.Punches = punches
		recompute(rec)

		if clockIn != nil {
			check, err := s.shifts.ValidatePunch(ctx, rec.EmployeeID, clockIn.UTC(), attendance.PunchIn)
			if err != nil {
				return fmt.Errorf("failed to validate corrected clock-in: %w", err)
			}
			rec.LateMinutes = check.LateByMinutes
		}
		if clockOut != nil {
			check, err := s.shifts.ValidatePunch(ctx, rec.EmployeeID, clockOut.UTC(), attendance.PunchOut)
			if err != nil {
				return fmt.Errorf("failed to validate corrected clock-out: %w", err)
			}
			rec.EarlyLeaveMinutes = check.EarlyByMinutes
		}
		rec.UpdatedAt = now

		if err := s.records.Update(ctx, rec); err != nil {
			return fmt.Errorf("failed to update attendance record: %w", err)
		}
		record = rec

		payload := map[string]interface{}{}
		if clockIn != nil {
			payload["clock_in"] = clockIn.UTC().Format(time.RFC3339Nano)
		}
		if clockOut != nil {
			payload["clock_out"] = clockOut.UTC().Format(time.RFC3339Nano)
		}
		return s.appendAudit(ctx, actor, rec.ID, ActionCorrectionApplied, before, rec.TotalWorkMinutes, payload, now)
	})
	if err != nil {
		return nil, err
	}
	if wasMissed && !record.HasMissedPunch {
		s.resolveMissedPunch(ctx, record.ID)
	}
	return record, nil
}

// FlagMissedPunch implements attendance.MissedPunchFlagger.
func (s *RecorderImpl) FlagMissedPunch(ctx context.Context, recordID string) (*attendance.Record, bool, error) {
	var (
		record *attendance.Record
		missed bool
	)
	err := s.mutate(ctx, recordID, func(ctx context.Context, rec *attendance.Record, now time.Time) error {
		record = rec
		missed = HasMissedPunch(rec.Punches)
		if rec.HasMissedPunch == missed {
			return nil
		}

		rec.HasMissedPunch = missed
		rec.UpdatedAt = now
		if err := s.records.Update(ctx, rec); err != nil {
			return fmt.Errorf("failed to update attendance record: %w", err)
		}
		return s.appendAudit(ctx, approval.SystemActor, rec.ID, ActionMissedPunchFlag, rec.TotalWorkMinutes, rec.TotalWorkMinutes,
			map[string]interface{}{"has_missed_punch": missed}, now)
	})
	if errors.Is(err, attendance.ErrRecordFinalised) {
		// Finalised records are frozen; report their state without writing.
		rec, getErr := s.records.GetByID(ctx, recordID)
		if getErr != nil {
			return nil, false, getErr
		}
		return rec, HasMissedPunch(rec.Punches), nil
	}
	if err != nil {
		return nil, false, err
	}
	return record, missed, nil
}

// mutate loads recordID under the employee lock inside a transaction and
// refuses finalised records.
func (s *RecorderImpl) mutate(ctx context.Context, recordID string, fn func(ctx context.Context, rec *attendance.Record, now time.Time) error) error {
	peek, err := s.records.GetByID(ctx, recordID)
	if err != nil {
		return err
	}

	unlock := s.locks.Lock(peek.EmployeeID)
	defer unlock()

	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.records.LockEmployee(ctx, peek.EmployeeID); err != nil {
			return fmt.Errorf("failed to lock employee: %w", err)
		}
		rec, err := s.records.GetByID(ctx, recordID)
		if err != nil {
			return err
		}
		if rec.FinalisedForPayroll {
			return attendance.ErrRecordFinalised
		}
		return fn(ctx, rec, s.now().UTC())
	})
}

// resolveMissedPunch runs after commit; a failure leaves the exception for a
// reviewer and never undoes the punch.
func (s *RecorderImpl) resolveMissedPunch(ctx context.Context, recordID string) {
	if s.resolver == nil {
		return
	}
	n, err := s.resolver.ResolveMissedPunch(ctx, recordID)
	if err != nil {
		slog.Error("Failed to resolve missed punch exceptions", "attendance_record_id", recordID, "error", err)
		return
	}
	if n > 0 {
		slog.Info("Resolved missed punch exceptions", "attendance_record_id", recordID, "count", n)
	}
}

func (s *RecorderImpl) appendAudit(ctx context.Context, actor approval.Actor, recordID, action string, before, after int, payload map[string]interface{}, at time.Time) error {
	event := audit.NewEvent(audit.EntityAttendanceRecord, recordID, action, actor.ID(), string(actor.Role), at).
		WithMinutes(before, after).
		WithPayload(payload)
	if err := s.auditLog.Append(ctx, event); err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

// GetRecord implements attendance.Recorder.
func (s *RecorderImpl) GetRecord(ctx context.Context, id string) (*attendance.Record, error) {
	return s.records.GetByID(ctx, id)
}

// ListRecords implements attendance.Recorder.
func (s *RecorderImpl) ListRecords(ctx context.Context, filter attendance.RecordFilter) ([]attendance.Record, error) {
	return s.records.List(ctx, filter)
}

// AuditTrail implements attendance.Recorder.
func (s *RecorderImpl) AuditTrail(ctx context.Context, recordID string) ([]audit.Event, error) {
	if _, err := s.records.GetByID(ctx, recordID); err != nil {
		return nil, err
	}
	entityType := audit.EntityAttendanceRecord
	return s.auditLog.List(ctx, audit.Filter{EntityType: &entityType, EntityID: &recordID})
}
