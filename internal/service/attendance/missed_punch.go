package attendance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/attendance"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/employee"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/notification"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/timeexception"
	"github.com/cmlabs-hris/hris-timekeeping/internal/pkg/daterange"
)

type MissedPunchDetectorImpl struct {
	records   attendance.RecordReader
	flagger   attendance.MissedPunchFlagger
	raiser    timeexception.MissedPunchRaiser
	shifts    attendance.ShiftValidator
	directory employee.Directory
	notifier  notification.Sender
	now       func() time.Time
}

func NewMissedPunchDetector(
	records attendance.RecordReader,
	flagger attendance.MissedPunchFlagger,
	raiser timeexception.MissedPunchRaiser,
	shifts attendance.ShiftValidator,
	directory employee.Directory,
	notifier notification.Sender,
) *MissedPunchDetectorImpl {
	return &MissedPunchDetectorImpl{
		records:   records,
		flagger:   flagger,
		raiser:    raiser,
		shifts:    shifts,
		directory: directory,
		notifier:  notifier,
		now:       time.Now,
	}
}

var _ attendance.MissedPunchDetector = (*MissedPunchDetectorImpl)(nil)

func (d *MissedPunchDetectorImpl) WithClock(now func() time.Time) *MissedPunchDetectorImpl {
	d.now = now
	return d
}

// MissingPunchOf infers which side of the pair is absent.
func MissingPunchOf(rec attendance.Record) attendance.MissingPunch {
	if last := rec.LastPunch(); last != nil && last.Type == attendance.PunchIn {
		return attendance.MissingClockOut
	}
	return attendance.MissingClockIn
}

// DetectMissedPunches implements attendance.MissedPunchDetector. Per-record
// failures are counted and logged; the sweep always runs to the end.
func (d *MissedPunchDetectorImpl) DetectMissedPunches(ctx context.Context, day time.Time) (attendance.DetectionResult, error) {
	start, end := daterange.DayStart(day), daterange.DayEnd(day)
	result := attendance.DetectionResult{Day: start.Format(daterange.Layout)}

	records, err := d.records.List(ctx, attendance.RecordFilter{StartDate: &start, EndDate: &end})
	if err != nil {
		return result, fmt.Errorf("failed to list attendance records: %w", err)
	}
	result.Scanned = len(records)

	for _, r := range records {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		open, err := d.stillOpen(ctx, r)
		if err != nil {
			result.Failed++
			slog.Error("Missed punch detection failed",
				"attendance_record_id", r.ID,
				"employee_id", r.EmployeeID,
				"error", err)
			continue
		}
		if open {
			result.Deferred++
			continue
		}

		created, flagged, err := d.inspect(ctx, r.ID)
		if err != nil {
			result.Failed++
			slog.Error("Missed punch detection failed",
				"attendance_record_id", r.ID,
				"employee_id", r.EmployeeID,
				"error", err)
			continue
		}
		if flagged {
			result.Flagged++
		}
		if created {
			result.ExceptionsCreated++
		}
	}

	return result, nil
}

// stillOpen reports whether the record ends in an IN that a regular OUT can
// still close: the shift it belongs to has not ended and the open period has
// not lapsed. Unassigned punches are judged by work day alone.
func (d *MissedPunchDetectorImpl) stillOpen(ctx context.Context, rec attendance.Record) (bool, error) {
	last := rec.LastPunch()
	if last == nil || last.Type != attendance.PunchIn {
		return false, nil
	}
	now := d.now().UTC()
	if now.Sub(last.Time) >= maxOpenPeriod {
		return false, nil
	}

	check, err := d.shifts.ValidatePunch(ctx, rec.EmployeeID, last.Time, attendance.PunchIn)
	if err != nil {
		return false, fmt.Errorf("failed to resolve shift of open punch: %w", err)
	}
	return check.ShiftEnd != nil && now.Before(*check.ShiftEnd), nil
}

// inspect re-reads one record through the flagger so a record that changed
// mid-scan is judged on its current punches.
func (d *MissedPunchDetectorImpl) inspect(ctx context.Context, recordID string) (created, flagged bool, err error) {
	rec, missed, err := d.flagger.FlagMissedPunch(ctx, recordID)
	if err != nil {
		return false, false, err
	}
	if !missed {
		return false, false, nil
	}

	emp, err := d.directory.ResolveEmployee(ctx, rec.EmployeeID)
	if err != nil {
		return false, true, fmt.Errorf("failed to resolve employee: %w", err)
	}

	missing := MissingPunchOf(*rec)
	exc, created, err := d.raiser.RaiseMissedPunch(ctx, *rec, missing, emp.ManagerID)
	if err != nil {
		return false, true, fmt.Errorf("failed to raise missed punch exception: %w", err)
	}
	if created {
		d.notify(ctx, emp, rec, exc.ID, missing)
	}
	return created, true, nil
}

func (d *MissedPunchDetectorImpl) notify(ctx context.Context, emp employee.Employee, rec *attendance.Record, exceptionID string, missing attendance.MissingPunch) {
	date := rec.WorkDate.Format(daterange.Layout)
	data := map[string]interface{}{
		"attendance_record_id": rec.ID,
		"time_exception_id":    exceptionID,
		"employee_id":          emp.ID,
		"date":                 date,
		"missing_punch":        string(missing),
	}

	if err := d.notifier.QueueNotification(ctx, notification.CreateNotificationRequest{
		RecipientID: emp.NotificationTarget(),
		Type:        notification.TypeMissedPunch,
		Title:       "Missed Punch",
		Message:     fmt.Sprintf("Your attendance for %s is missing a %s", date, missing),
		Data:        data,
	}); err != nil {
		slog.Error("Failed to queue missed punch notification", "employee_id", emp.ID, "error", err)
	}

	if emp.ManagerID == nil {
		return
	}
	manager, err := d.directory.ResolveEmployee(ctx, *emp.ManagerID)
	if err != nil {
		slog.Error("Failed to resolve manager for missed punch notification", "manager_id", *emp.ManagerID, "error", err)
		return
	}
	sender := emp.NotificationTarget()
	if err := d.notifier.QueueNotification(ctx, notification.CreateNotificationRequest{
		RecipientID: manager.NotificationTarget(),
		SenderID:    &sender,
		Type:        notification.TypeMissedPunch,
		Title:       "Employee Missed Punch",
		Message:     fmt.Sprintf("%s's attendance for %s is missing a %s", emp.FullName, date, missing),
		Data:        data,
	}); err != nil {
		slog.Error("Failed to queue missed punch notification", "manager_id", manager.ID, "error", err)
	}
}
