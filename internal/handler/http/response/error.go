package response

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/approval"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/attendance"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/correction"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/employee"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/notification"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/payrollsync"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/timeconfig"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/timeexception"
	"github.com/cmlabs-hris/hris-timekeeping/internal/pkg/daterange"
	"github.com/cmlabs-hris/hris-timekeeping/internal/pkg/validator"
)

// HandleError maps domain errors to HTTP responses
func HandleError(w http.ResponseWriter, err error) {
	// Check if it's a validation error
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		ValidationError(w, validationErrs.ToMap())
		return
	}

	var blocked *payrollsync.ValidationFailedError
	if errors.As(err, &blocked) {
		PayrollValidationFailed(w, blocked.Error(), blocked.Result)
		return
	}

	switch {
	// Workflow errors
	case errors.Is(err, approval.ErrForbiddenActor):
		Forbidden(w, err.Error())
	case errors.Is(err, approval.ErrInvalidStateTransition),
		errors.Is(err, approval.ErrConcurrentUpdate):
		Conflict(w, err.Error())
	case errors.Is(err, approval.ErrInvalidDecision):
		Unprocessable(w, err.Error())

	// Attendance domain errors
	case errors.Is(err, attendance.ErrAttendanceRecordNotFound):
		NotFound(w, "Attendance record not found")
	case errors.Is(err, attendance.ErrRecordFinalised):
		Conflict(w, err.Error())
	case errors.Is(err, attendance.ErrNoActiveClockIn),
		errors.Is(err, attendance.ErrInvalidPunchSequence),
		errors.Is(err, attendance.ErrPunchOutsideShiftWindow),
		errors.Is(err, attendance.ErrInvalidRounding):
		Unprocessable(w, err.Error())

	// Request domain errors
	case errors.Is(err, correction.ErrCorrectionNotFound):
		NotFound(w, "Correction request not found")
	case errors.Is(err, timeexception.ErrExceptionNotFound):
		NotFound(w, "Time exception request not found")
	case errors.Is(err, timeexception.ErrPreApprovalRequired),
		errors.Is(err, timeexception.ErrPermissionDurationExceeded),
		errors.Is(err, timeexception.ErrPreApprovalNotApplicable):
		Unprocessable(w, err.Error())

	// Time configuration errors
	case errors.Is(err, timeconfig.ErrShiftTypeNotFound),
		errors.Is(err, timeconfig.ErrAssignmentNotFound),
		errors.Is(err, timeconfig.ErrSchedulingRuleNotFound),
		errors.Is(err, timeconfig.ErrOvertimeRuleNotFound),
		errors.Is(err, timeconfig.ErrPermissionRuleNotFound):
		NotFound(w, err.Error())
	case errors.Is(err, timeconfig.ErrInvalidAssignmentStatus):
		Conflict(w, err.Error())
	case errors.Is(err, timeconfig.ErrNoActiveAssignment),
		errors.Is(err, timeconfig.ErrRestDay):
		Unprocessable(w, err.Error())

	// Payroll sync errors
	case errors.Is(err, payrollsync.ErrSyncLogNotFound):
		NotFound(w, "Sync log not found")
	case errors.Is(err, payrollsync.ErrNoRecordIDs),
		errors.Is(err, daterange.ErrInvalidRange):
		BadRequest(w, err.Error(), nil)

	// Directory and notification errors
	case errors.Is(err, employee.ErrEmployeeNotFound):
		NotFound(w, "Employee not found")
	case errors.Is(err, notification.ErrNotificationNotFound):
		NotFound(w, "Notification not found")

	// Default
	default:
		slog.Error("Unhandled error", "error", err)
		InternalServerError(w, "An unexpected error occurred")
	}
}
