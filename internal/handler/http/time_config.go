package http

import (
	"net/http"

	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/timeconfig"
	"github.com/cmlabs-hris/hris-timekeeping/internal/handler/http/response"
	"github.com/go-chi/chi/v5"
)

type TimeConfigHandler interface {
	// Shift types
	CreateShiftType(w http.ResponseWriter, r *http.Request)
	ListShiftTypes(w http.ResponseWriter, r *http.Request)
	GetShiftType(w http.ResponseWriter, r *http.Request)

	// Assignments
	CreateAssignment(w http.ResponseWriter, r *http.Request)
	ListAssignments(w http.ResponseWriter, r *http.Request)
	GetAssignment(w http.ResponseWriter, r *http.Request)
	TransitionAssignment(w http.ResponseWriter, r *http.Request)

	// Rules
	CreateSchedulingRule(w http.ResponseWriter, r *http.Request)
	ListSchedulingRules(w http.ResponseWriter, r *http.Request)
	GetSchedulingRule(w http.ResponseWriter, r *http.Request)
	CreateOvertimeRule(w http.ResponseWriter, r *http.Request)
	ListOvertimeRules(w http.ResponseWriter, r *http.Request)
	GetOvertimeRule(w http.ResponseWriter, r *http.Request)
	CreatePermissionRule(w http.ResponseWriter, r *http.Request)
	ListPermissionRules(w http.ResponseWriter, r *http.Request)
	GetPermissionRule(w http.ResponseWriter, r *http.Request)
}

type timeConfigHandlerImpl struct {
	timeConfigService timeconfig.Service
}

func NewTimeConfigHandler(timeConfigService timeconfig.Service) TimeConfigHandler {
	return &timeConfigHandlerImpl{
		timeConfigService: timeConfigService,
	}
}

// CreateShiftType implements TimeConfigHandler.
func (h *timeConfigHandlerImpl) CreateShiftType(w http.ResponseWriter, r *http.Request) {
	var req timeconfig.CreateShiftTypeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		response.HandleError(w, err)
		return
	}

	shift, err := h.timeConfigService.CreateShiftType(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Created(w, "Shift type created", timeconfig.NewShiftTypeResponse(*shift))
}

// ListShiftTypes implements TimeConfigHandler.
func (h *timeConfigHandlerImpl) ListShiftTypes(w http.ResponseWriter, r *http.Request) {
	shifts, err := h.timeConfigService.ListShiftTypes(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	out := make([]timeconfig.ShiftTypeResponse, len(shifts))
	for i, s := range shifts {
		out[i] = timeconfig.NewShiftTypeResponse(s)
	}
	response.Success(w, out)
}

// GetShiftType implements TimeConfigHandler.
func (h *timeConfigHandlerImpl) GetShiftType(w http.ResponseWriter, r *http.Request) {
	shift, err := h.timeConfigService.GetShiftType(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, timeconfig.NewShiftTypeResponse(*shift))
}

// CreateAssignment implements TimeConfigHandler.
func (h *timeConfigHandlerImpl) CreateAssignment(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	var req timeconfig.CreateAssignmentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		response.HandleError(w, err)
		return
	}

	assignment, err := h.timeConfigService.CreateAssignment(r.Context(), actor, req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Created(w, "Shift assignment created", timeconfig.NewAssignmentResponse(*assignment))
}

// ListAssignments implements TimeConfigHandler.
func (h *timeConfigHandlerImpl) ListAssignments(w http.ResponseWriter, r *http.Request) {
	filter := timeconfig.AssignmentFilter{
		EmployeeID:   optionalQueryParam(r, "employee_id"),
		DepartmentID: optionalQueryParam(r, "department_id"),
		PositionID:   optionalQueryParam(r, "position_id"),
	}
	if status := r.URL.Query().Get("status"); status != "" {
		s := timeconfig.AssignmentStatus(status)
		filter.Status = &s
	}

	assignments, err := h.timeConfigService.ListAssignments(r.Context(), filter)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	out := make([]timeconfig.AssignmentResponse, len(assignments))
	for i, a := range assignments {
		out[i] = timeconfig.NewAssignmentResponse(a)
	}
	response.Success(w, out)
}

// GetAssignment implements TimeConfigHandler.
func (h *timeConfigHandlerImpl) GetAssignment(w http.ResponseWriter, r *http.Request) {
	assignment, err := h.timeConfigService.GetAssignment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, timeconfig.NewAssignmentResponse(*assignment))
}

// TransitionAssignment implements TimeConfigHandler.
func (h *timeConfigHandlerImpl) TransitionAssignment(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	var req timeconfig.AssignmentTransitionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		response.HandleError(w, err)
		return
	}

	assignment, err := h.timeConfigService.TransitionAssignment(r.Context(), actor, chi.URLParam(r, "id"), req.Status)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Shift assignment updated", timeconfig.NewAssignmentResponse(*assignment))
}

// CreateSchedulingRule implements TimeConfigHandler.
func (h *timeConfigHandlerImpl) CreateSchedulingRule(w http.ResponseWriter, r *http.Request) {
	var req timeconfig.CreateSchedulingRuleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		response.HandleError(w, err)
		return
	}

	rule, err := h.timeConfigService.CreateSchedulingRule(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Created(w, "Scheduling rule created", timeconfig.NewSchedulingRuleResponse(*rule))
}

// ListSchedulingRules implements TimeConfigHandler.
func (h *timeConfigHandlerImpl) ListSchedulingRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.timeConfigService.ListSchedulingRules(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	out := make([]timeconfig.SchedulingRuleResponse, len(rules))
	for i, rule := range rules {
		out[i] = timeconfig.NewSchedulingRuleResponse(rule)
	}
	response.Success(w, out)
}

// GetSchedulingRule implements TimeConfigHandler.
func (h *timeConfigHandlerImpl) GetSchedulingRule(w http.ResponseWriter, r *http.Request) {
	rule, err := h.timeConfigService.GetSchedulingRule(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, timeconfig.NewSchedulingRuleResponse(*rule))
}

// CreateOvertimeRule implements TimeConfigHandler.
func (h *timeConfigHandlerImpl) CreateOvertimeRule(w http.ResponseWriter, r *http.Request) {
	var req timeconfig.CreateOvertimeRuleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		response.HandleError(w, err)
		return
	}

	rule, err := h.timeConfigService.CreateOvertimeRule(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Created(w, "Overtime rule created", timeconfig.NewOvertimeRuleResponse(*rule))
}

// ListOvertimeRules implements TimeConfigHandler.
func (h *timeConfigHandlerImpl) ListOvertimeRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.timeConfigService.ListOvertimeRules(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	out := make([]timeconfig.OvertimeRuleResponse, len(rules))
	for i, rule := range rules {
		out[i] = timeconfig.NewOvertimeRuleResponse(rule)
	}
	response.Success(w, out)
}

// GetOvertimeRule implements TimeConfigHandler.
func (h *timeConfigHandlerImpl) GetOvertimeRule(w http.ResponseWriter, r *http.Request) {
	rule, err := h.timeConfigService.GetOvertimeRule(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, timeconfig.NewOvertimeRuleResponse(*rule))
}

// CreatePermissionRule implements TimeConfigHandler.
func (h *timeConfigHandlerImpl) CreatePermissionRule(w http.ResponseWriter, r *http.Request) {
	var req timeconfig.CreatePermissionRuleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		response.HandleError(w, err)
		return
	}

	rule, err := h.timeConfigService.CreatePermissionRule(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Created(w, "Permission rule created", timeconfig.NewPermissionRuleResponse(*rule))
}

// ListPermissionRules implements TimeConfigHandler.
func (h *timeConfigHandlerImpl) ListPermissionRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.timeConfigService.ListPermissionRules(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	out := make([]timeconfig.PermissionRuleResponse, len(rules))
	for i, rule := range rules {
		out[i] = timeconfig.NewPermissionRuleResponse(rule)
	}
	response.Success(w, out)
}

// GetPermissionRule implements TimeConfigHandler.
func (h *timeConfigHandlerImpl) GetPermissionRule(w http.ResponseWriter, r *http.Request) {
	rule, err := h.timeConfigService.GetPermissionRule(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, timeconfig.NewPermissionRuleResponse(*rule))
}
