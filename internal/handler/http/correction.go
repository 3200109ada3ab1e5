package http

import (
	"context"
	"net/http"

	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/approval"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/correction"
	"github.com/cmlabs-hris/hris-timekeeping/internal/handler/http/response"
	"github.com/go-chi/chi/v5"
)

type CorrectionHandler interface {
	Create(w http.ResponseWriter, r *http.Request)
	List(w http.ResponseWriter, r *http.Request)
	Get(w http.ResponseWriter, r *http.Request)
	ManagerDecision(w http.ResponseWriter, r *http.Request)
	HRDecision(w http.ResponseWriter, r *http.Request)
	Cancel(w http.ResponseWriter, r *http.Request)
}

type correctionHandlerImpl struct {
	correctionService correction.Service
}

func NewCorrectionHandler(correctionService correction.Service) CorrectionHandler {
	return &correctionHandlerImpl{
		correctionService: correctionService,
	}
}

// Create implements CorrectionHandler.
func (h *correctionHandlerImpl) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	var req correction.CreateCorrectionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		response.HandleError(w, err)
		return
	}

	result, err := h.correctionService.Create(r.Context(), actor, req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Created(w, "Correction request submitted", correction.NewResponse(*result))
}

// List implements CorrectionHandler.
func (h *correctionHandlerImpl) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	start, end, err := dateRangeQuery(r)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	req := correction.ListRequest{
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

	results, err := h.correctionService.List(r.Context(), actor, req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, correction.NewResponses(results))
}

// Get implements CorrectionHandler.
func (h *correctionHandlerImpl) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	result, err := h.correctionService.Get(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, correction.NewResponse(*result))
}

// ManagerDecision implements CorrectionHandler.
func (h *correctionHandlerImpl) ManagerDecision(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.correctionService.ManagerDecide)
}

// HRDecision implements CorrectionHandler.
func (h *correctionHandlerImpl) HRDecision(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.correctionService.HRDecide)
}

type correctionDecider func(ctx context.Context, actor approval.Actor, id string, req correction.DecisionRequest) (*correction.Request, error)

func (h *correctionHandlerImpl) decide(w http.ResponseWriter, r *http.Request, decide correctionDecider) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	var req correction.DecisionRequest
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

	response.SuccessWithMessage(w, "Decision recorded", correction.NewResponse(*result))
}

// Cancel implements CorrectionHandler.
func (h *correctionHandlerImpl) Cancel(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	result, err := h.correctionService.Cancel(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Correction request cancelled", correction.NewResponse(*result))
}
