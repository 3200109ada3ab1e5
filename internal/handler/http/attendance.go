package http

import (
	"net/http"
	"time"

	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/approval"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/attendance"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/audit"
	"github.com/cmlabs-hris/hris-timekeeping/internal/handler/http/response"
	"github.com/go-chi/chi/v5"
)

type AttendanceHandler interface {
	Punch(w http.ResponseWriter, r *http.Request)
	ManualPunch(w http.ResponseWriter, r *http.Request)
	List(w http.ResponseWriter, r *http.Request)
	Get(w http.ResponseWriter, r *http.Request)
	Round(w http.ResponseWriter, r *http.Request)
	AuditTrail(w http.ResponseWriter, r *http.Request)
	ShiftCheck(w http.ResponseWriter, r *http.Request)
}

type attendanceHandlerImpl struct {
	recorder       attendance.Recorder
	shiftValidator attendance.ShiftValidator
	now            func() time.Time
}

func NewAttendanceHandler(recorder attendance.Recorder, shiftValidator attendance.ShiftValidator) AttendanceHandler {
	return &attendanceHandlerImpl{
		recorder:       recorder,
		shiftValidator: shiftValidator,
		now:            time.Now,
	}
}

// Punch implements AttendanceHandler.
func (h *attendanceHandlerImpl) Punch(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	var req attendance.PunchRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	// Employees punch for themselves; devices and HR may name anyone.
	selfService := !actor.IsHR() && !actor.IsSystem()
	if selfService {
		if actor.EmployeeID == "" {
			response.HandleError(w, approval.ErrForbiddenActor)
			return
		}
		req.EmployeeID = actor.EmployeeID
	}

	// Validate request
	if err := req.Validate(); err != nil {
		response.HandleError(w, err)
		return
	}
	if selfService {
		if err := req.ValidateSelfService(h.now().UTC()); err != nil {
			response.HandleError(w, err)
			return
		}
		req.Time = nil
	}

	result, err := h.recorder.RecordPunch(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Created(w, "Punch recorded", result)
}

// ManualPunch implements AttendanceHandler.
func (h *attendanceHandlerImpl) ManualPunch(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	var req attendance.ManualPunchRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := req.Validate(); err != nil {
		response.HandleError(w, err)
		return
	}

	result, err := h.recorder.ManualPunch(r.Context(), actor, req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Created(w, "Manual punch recorded", result)
}

// List implements AttendanceHandler.
func (h *attendanceHandlerImpl) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	start, end, err := dateRangeQuery(r)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	from, to, err := dayBounds(start, end)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	filter := attendance.RecordFilter{
		EmployeeID: optionalQueryParam(r, "employee_id"),
		StartDate:  from,
		EndDate:    to,
		MissedOnly: getBoolQueryParam(r, "missed_only", false),
		Finalised:  optionalBoolQueryParam(r, "finalised"),
		Page:       getIntQueryParam(r, "page", 1),
		Limit:      getIntQueryParam(r, "limit", 20),
	}
	if !actor.IsHR() && !actor.IsSystem() {
		filter.EmployeeID = &actor.EmployeeID
	}

	records, err := h.recorder.ListRecords(r.Context(), filter)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMeta(w, attendance.NewRecordResponses(records), &response.Meta{
		Page:  filter.Page,
		Limit: filter.Limit,
	})
}

// Get implements AttendanceHandler.
func (h *attendanceHandlerImpl) Get(w http.ResponseWriter, r *http.Request) {
	record, ok := h.visibleRecord(w, r)
	if !ok {
		return
	}

	response.Success(w, attendance.NewRecordResponse(*record))
}

// Round implements AttendanceHandler.
func (h *attendanceHandlerImpl) Round(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	var req attendance.RoundRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		response.HandleError(w, err)
		return
	}

	record, err := h.recorder.RoundWorkMinutes(r.Context(), actor, chi.URLParam(r, "id"), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Work minutes rounded", attendance.NewRecordResponse(*record))
}

// AuditTrail implements AttendanceHandler.
func (h *attendanceHandlerImpl) AuditTrail(w http.ResponseWriter, r *http.Request) {
	record, ok := h.visibleRecord(w, r)
	if !ok {
		return
	}

	events, err := h.recorder.AuditTrail(r.Context(), record.ID)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, audit.NewEventResponses(events))
}

// ShiftCheck implements AttendanceHandler.
func (h *attendanceHandlerImpl) ShiftCheck(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	var req attendance.ShiftCheckRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !actor.IsHR() && !actor.IsSystem() {
		req.EmployeeID = actor.EmployeeID
	}
	if err := req.Validate(); err != nil {
		response.HandleError(w, err)
		return
	}

	check, err := h.shiftValidator.ValidatePunch(r.Context(), req.EmployeeID, req.Time, req.Type)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, check)
}

// visibleRecord loads the {id} record if the actor may see it: HR sees all,
// everyone else only their own.
func (h *attendanceHandlerImpl) visibleRecord(w http.ResponseWriter, r *http.Request) (*attendance.Record, bool) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return nil, false
	}

	record, err := h.recorder.GetRecord(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err)
		return nil, false
	}

	if !actor.IsHR() && !actor.IsSystem() && record.EmployeeID != actor.EmployeeID {
		response.HandleError(w, approval.ErrForbiddenActor)
		return nil, false
	}
	return record, true
}
