// Package evaluationhandler exposes the narrow remote procedures of the
// durable store. Every mutation is identity-checked: saves and submits only
// touch the caller's own record, reopens only a direct report's.
package evaluationhandler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"evalportal/internal/domain/evaluation"
	"evalportal/internal/store"
	"evalportal/internal/transport/http/api"
	"evalportal/internal/transport/http/middleware"
)

type Handler struct {
	Store    *store.Store
	validate *validator.Validate
}

func NewHandler(st *store.Store) *Handler {
	return &Handler{Store: st, validate: validator.New()}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/evaluations", func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Get("/", h.handleFetch)
		r.Post("/", h.handleSave)
		r.Post("/{evaluationID}/submit", h.handleSubmit)
		r.Post("/{evaluationID}/reopen", h.handleReopen)
	})
}

func (h *Handler) handleFetch(w http.ResponseWriter, r *http.Request) {
	caller, _ := middleware.GetCaller(r.Context())
	reqID := middleware.GetRequestID(r.Context())

	periodYear, err := strconv.Atoi(r.URL.Query().Get("periodYear"))
	if err != nil || periodYear < 2000 {
		api.Fail(w, http.StatusBadRequest, "invalid_period", "periodYear is required", reqID)
		return
	}

	rec, err := h.Store.GetEvaluation(r.Context(), caller.EmployeeID, periodYear)
	if err != nil {
		slog.Warn("evaluation fetch failed", "err", err)
		api.ServerError(w, "fetch_failed", "failed to fetch evaluation", reqID)
		return
	}
	api.Success(w, rec, reqID)
}

type savePayload struct {
	ID           string                   `json:"id"`
	PeriodYear   int                      `json:"periodYear" validate:"required,min=2000"`
	EmployeeInfo *evaluation.EmployeeInfo `json:"employeeInfo"`
	Quantitative *evaluation.Quantitative `json:"quantitative"`
	Qualitative  *evaluation.Qualitative  `json:"qualitative"`
	Summary      *evaluation.Summary      `json:"summary"`
}

func (h *Handler) handleSave(w http.ResponseWriter, r *http.Request) {
	caller, _ := middleware.GetCaller(r.Context())
	reqID := middleware.GetRequestID(r.Context())

	var payload savePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_body", "invalid request body", reqID)
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "validation_failed", "periodYear is required", reqID)
		return
	}

	rec := &evaluation.Record{
		ID:           payload.ID,
		EmployeeID:   caller.EmployeeID,
		PeriodYear:   payload.PeriodYear,
		EmployeeInfo: payload.EmployeeInfo,
		Quantitative: payload.Quantitative,
		Qualitative:  payload.Qualitative,
		Summary:      payload.Summary,
	}

	id, err := h.Store.SaveEvaluation(r.Context(), caller.EmployeeID, rec)
	if errors.Is(err, store.ErrNotAllowed) {
		api.Conflict(w, "save_rejected", "evaluation is not editable", reqID)
		return
	}
	if err != nil {
		slog.Warn("evaluation save failed", "err", err)
		api.ServerError(w, "save_failed", "failed to save evaluation", reqID)
		return
	}
	api.Success(w, map[string]string{"id": id}, reqID)
}

type submitPayload struct {
	savePayload
	SubmitPDFURL string `json:"submitPdfUrl"`
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	caller, _ := middleware.GetCaller(r.Context())
	reqID := middleware.GetRequestID(r.Context())
	evaluationID := chi.URLParam(r, "evaluationID")

	var payload submitPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_body", "invalid request body", reqID)
		return
	}

	rec := &evaluation.Record{
		EmployeeInfo: payload.EmployeeInfo,
		Quantitative: payload.Quantitative,
		Qualitative:  payload.Qualitative,
		Summary:      payload.Summary,
	}

	err := h.Store.SubmitEvaluation(r.Context(), evaluationID, caller.EmployeeID, rec, payload.SubmitPDFURL)
	if errors.Is(err, store.ErrNotAllowed) {
		api.Conflict(w, "submit_rejected", "evaluation is not in a submittable state", reqID)
		return
	}
	if err != nil {
		slog.Warn("evaluation submit failed", "err", err)
		api.ServerError(w, "submit_failed", "failed to submit evaluation", reqID)
		return
	}
	api.Success(w, map[string]string{}, reqID)
}

type reopenPayload struct {
	Reason string `json:"reason" validate:"required"`
}

func (h *Handler) handleReopen(w http.ResponseWriter, r *http.Request) {
	caller, _ := middleware.GetCaller(r.Context())
	reqID := middleware.GetRequestID(r.Context())
	evaluationID := chi.URLParam(r, "evaluationID")

	var payload reopenPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_body", "invalid request body", reqID)
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "reason_required", "a reopen reason is required", reqID)
		return
	}

	rec, err := h.Store.GetEvaluationByID(r.Context(), evaluationID)
	if errors.Is(err, store.ErrNotFound) {
		api.Fail(w, http.StatusNotFound, "not_found", "evaluation not found", reqID)
		return
	}
	if err != nil {
		slog.Warn("evaluation lookup failed", "err", err)
		api.ServerError(w, "reopen_failed", "failed to reopen evaluation", reqID)
		return
	}

	subject, err := h.Store.GetEmployee(r.Context(), rec.EmployeeID)
	if err != nil {
		slog.Warn("subject lookup failed", "err", err)
		api.ServerError(w, "reopen_failed", "failed to reopen evaluation", reqID)
		return
	}

	// One level up only: the subject's direct manager, never the chain and
	// never the subject themselves.
	if !evaluation.IsDirectManager(caller.EmployeeID, subject.ID, subject.ReportsTo) {
		api.Forbidden(w, "not_direct_manager", "only the direct manager may reopen", reqID)
		return
	}

	err = h.Store.ReopenEvaluation(r.Context(), evaluationID, caller.EmployeeID, payload.Reason)
	if errors.Is(err, store.ErrNotAllowed) {
		api.Conflict(w, "reopen_rejected", "evaluation is not in a reopenable state", reqID)
		return
	}
	if err != nil {
		slog.Warn("evaluation reopen failed", "err", err)
		api.ServerError(w, "reopen_failed", "failed to reopen evaluation", reqID)
		return
	}
	api.Success(w, map[string]string{}, reqID)
}
