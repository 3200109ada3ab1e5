package http

import (
	"net/http"

	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/audit"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/payrollsync"
	"github.com/cmlabs-hris/hris-timekeeping/internal/handler/http/response"
)

// PayrollSyncHandler exposes the payroll integration surface. Every route is
// HR-only; the router enforces that.
type PayrollSyncHandler interface {
	Validate(w http.ResponseWriter, r *http.Request)
	Attendance(w http.ResponseWriter, r *http.Request)
	Overtime(w http.ResponseWriter, r *http.Request)
	Pending(w http.ResponseWriter, r *http.Request)
	Finalize(w http.ResponseWriter, r *http.Request)
	History(w http.ResponseWriter, r *http.Request)
	Export(w http.ResponseWriter, r *http.Request)
	Summaries(w http.ResponseWriter, r *http.Request)
	Logs(w http.ResponseWriter, r *http.Request)
}

type payrollSyncHandlerImpl struct {
	payrollSyncService payrollsync.Service
}

func NewPayrollSyncHandler(payrollSyncService payrollsync.Service) PayrollSyncHandler {
	return &payrollSyncHandlerImpl{
		payrollSyncService: payrollSyncService,
	}
}

func rangeQuery(r *http.Request) payrollsync.RangeRequest {
	return payrollsync.RangeRequest{
		StartDate: r.URL.Query().Get("start_date"),
		EndDate:   r.URL.Query().Get("end_date"),
	}
}

// Validate implements PayrollSyncHandler.
func (h *payrollSyncHandlerImpl) Validate(w http.ResponseWriter, r *http.Request) {
	var req payrollsync.RangeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		response.HandleError(w, err)
		return
	}

	result, err := h.payrollSyncService.ValidateDataForPayrollSync(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

// Attendance implements PayrollSyncHandler.
func (h *payrollSyncHandlerImpl) Attendance(w http.ResponseWriter, r *http.Request) {
	req, ok := employeeRangeQuery(w, r)
	if !ok {
		return
	}

	result, err := h.payrollSyncService.GetAttendanceDataForSync(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

// Overtime implements PayrollSyncHandler.
func (h *payrollSyncHandlerImpl) Overtime(w http.ResponseWriter, r *http.Request) {
	req, ok := employeeRangeQuery(w, r)
	if !ok {
		return
	}

	result, err := h.payrollSyncService.GetOvertimeDataForSync(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

func employeeRangeQuery(w http.ResponseWriter, r *http.Request) (payrollsync.EmployeeRangeRequest, bool) {
	start, end, err := dateRangeQuery(r)
	if err != nil {
		response.HandleError(w, err)
		return payrollsync.EmployeeRangeRequest{}, false
	}
	return payrollsync.EmployeeRangeRequest{
		EmployeeID: r.URL.Query().Get("employee_id"),
		StartDate:  start,
		EndDate:    end,
	}, true
}

// Pending implements PayrollSyncHandler.
func (h *payrollSyncHandlerImpl) Pending(w http.ResponseWriter, r *http.Request) {
	start, end, err := dateRangeQuery(r)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	result, err := h.payrollSyncService.GetPendingPayrollSyncData(r.Context(), payrollsync.PendingFilter{
		EmployeeID:   optionalQueryParam(r, "employee_id"),
		DepartmentID: optionalQueryParam(r, "department_id"),
		StartDate:    start,
		EndDate:      end,
	})
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

// Finalize implements PayrollSyncHandler.
func (h *payrollSyncHandlerImpl) Finalize(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	var req payrollsync.FinalizeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		response.HandleError(w, err)
		return
	}

	result, err := h.payrollSyncService.FinalizeRecordsForPayroll(r.Context(), actor, req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Records finalised for payroll", result)
}

// History implements PayrollSyncHandler.
func (h *payrollSyncHandlerImpl) History(w http.ResponseWriter, r *http.Request) {
	req := rangeQuery(r)
	if err := req.Validate(); err != nil {
		response.HandleError(w, err)
		return
	}

	events, err := h.payrollSyncService.History(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, audit.NewEventResponses(events))
}

// Export implements PayrollSyncHandler.
func (h *payrollSyncHandlerImpl) Export(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	var req payrollsync.RangeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		response.HandleError(w, err)
		return
	}

	result, err := h.payrollSyncService.ExportSnapshot(r.Context(), actor, req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Created(w, "Payroll snapshot exported", result)
}

// Summaries implements PayrollSyncHandler.
func (h *payrollSyncHandlerImpl) Summaries(w http.ResponseWriter, r *http.Request) {
	req := rangeQuery(r)
	if err := req.Validate(); err != nil {
		response.HandleError(w, err)
		return
	}

	summaries, err := h.payrollSyncService.Aggregate(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, summaries)
}

// Logs implements PayrollSyncHandler.
func (h *payrollSyncHandlerImpl) Logs(w http.ResponseWriter, r *http.Request) {
	filter := payrollsync.LogFilter{
		SourceRecordID: optionalQueryParam(r, "source_record_id"),
	}
	if target := r.URL.Query().Get("target_system"); target != "" {
		t := payrollsync.TargetSystem(target)
		filter.TargetSystem = &t
	}
	if status := r.URL.Query().Get("status"); status != "" {
		filter.Statuses = []payrollsync.SyncStatus{payrollsync.SyncStatus(status)}
	}

	logs, err := h.payrollSyncService.SyncLogs(r.Context(), filter)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, payrollsync.NewSyncLogResponses(logs))
}
