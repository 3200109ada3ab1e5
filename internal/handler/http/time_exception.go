package http

import (
	"context"
	"net/http"

	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/approval"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/timeexception"
	"github.com/cmlabs-hris/hris-timekeeping/internal/handler/http/response"
	"github.com/go-chi/chi/v5"
)

type TimeExceptionHandler interface {
	Create(w http.ResponseWriter, r *http.Request)
	List(w http.ResponseWriter, r *http.Request)
	Get(w http.ResponseWriter, r *http.Request)
	PreApprove(w http.ResponseWriter, r *http.Request)
	ManagerDecision(w http.ResponseWriter, r *http.Request)
	HRDecision(w http.ResponseWriter, r *http.Request)
	Cancel(w http.ResponseWriter, r *http.Request)
}

type timeExceptionHandlerImpl struct {
	exceptionService timeexception.Service
}

func NewTimeExceptionHandler(exceptionService timeexception.Service) TimeExceptionHandler {
	return &timeExceptionHandlerImpl{
		exceptionService: exceptionService,
	}
}

// Create implements TimeExceptionHandler.
func (h *timeExceptionHandlerImpl) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	var req timeexception.CreateTimeExceptionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		response.HandleError(w, err)
		return
	}

	result, err := h.exceptionService.Create(r.Context(), actor, req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Created(w, "Time exception request submitted", timeexception.NewResponse(*result))
}

// List implements TimeExceptionHandler.
func (h *timeExceptionHandlerImpl) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	start, end, err := dateRangeQuery(r)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	req := timeexception.ListRequest{
		EmployeeID: optionalQueryParam(r, "employee_id"),
		Escalated:  optionalBoolQueryParam(r, "escalated"),
		StartDate:  start,
		EndDate:    end,
	}
	if status := r.URL.Query().Get("status"); status != "" {
		s := approval.Status(status)
		if !s.IsValid() {
			response.BadRequest(w, "Invalid status filter", map[string]string{"status": status})
			return
		}
		req.Status = &s
	}
	if t := r.URL.Query().Get("exception_type"); t != "" {
		excType := timeexception.Type(t)
		req.ExceptionType = &excType
	}

	results, err := h.exceptionService.List(r.Context(), actor, req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, timeexception.NewResponses(results))
}

// Get implements TimeExceptionHandler.
func (h *timeExceptionHandlerImpl) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	result, err := h.exceptionService.Get(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, timeexception.NewResponse(*result))
}

// PreApprove implements TimeExceptionHandler.
func (h *timeExceptionHandlerImpl) PreApprove(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	result, err := h.exceptionService.PreApprove(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Overtime pre-approved", timeexception.NewResponse(*result))
}

// ManagerDecision implements TimeExceptionHandler.
func (h *timeExceptionHandlerImpl) ManagerDecision(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.exceptionService.ManagerDecide)
}

// HRDecision implements TimeExceptionHandler.
func (h *timeExceptionHandlerImpl) HRDecision(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.exceptionService.HRDecide)
}

type exceptionDecider func(ctx context.Context, actor approval.Actor, id string, req timeexception.DecisionRequest) (*timeexception.Exception, error)

func (h *timeExceptionHandlerImpl) decide(w http.ResponseWriter, r *http.Request, decide exceptionDecider) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	var req timeexception.DecisionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		response.HandleError(w, err)
		return
	}

	result, err := decide(r.Context(), actor, chi.URLParam(r, "id"), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Decision recorded", timeexception.NewResponse(*result))
}

// Cancel implements TimeExceptionHandler.
func (h *timeExceptionHandlerImpl) Cancel(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	result, err := h.exceptionService.Cancel(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Time exception request cancelled", timeexception.NewResponse(*result))
}
