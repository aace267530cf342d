// Package directoryhandler serves the reporting-line data: single records
// for the authorization predicate, and the team tree with its rollups for
// manager and HR dashboards.
package directoryhandler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"evalportal/internal/domain/hierarchy"
	"evalportal/internal/store"
	"evalportal/internal/transport/http/api"
	"evalportal/internal/transport/http/middleware"
)

type Handler struct {
	Store *store.Store
}

func NewHandler(st *store.Store) *Handler {
	return &Handler{Store: st}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/directory", func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Get("/{employeeID}", h.handleGetRecord)
		r.Get("/tree", h.handleTree)
		r.Get("/reminders", h.handleReminders)
	})
}

func (h *Handler) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	employeeID := chi.URLParam(r, "employeeID")

	emp, err := h.Store.GetEmployee(r.Context(), employeeID)
	if errors.Is(err, store.ErrNotFound) {
		api.Fail(w, http.StatusNotFound, "not_found", "employee not found", reqID)
		return
	}
	if err != nil {
		slog.Warn("directory lookup failed", "err", err)
		api.ServerError(w, "directory_failed", "failed to fetch directory record", reqID)
		return
	}

	api.Success(w, map[string]any{
		"employeeId": emp.ID,
		"name":       emp.Name,
		"jobTitle":   emp.JobTitle,
		"department": emp.Department,
		"email":      emp.Email,
		"reportsTo":  emp.ReportsTo,
	}, reqID)
}

func (h *Handler) loadForest(r *http.Request) ([]*hierarchy.Node, error) {
	periodYear, err := strconv.Atoi(r.URL.Query().Get("periodYear"))
	if err != nil || periodYear < 2000 {
		periodYear = time.Now().Year()
	}

	records, err := h.Store.ListDirectory(r.Context(), periodYear)
	if err != nil {
		return nil, err
	}

	caller, _ := middleware.GetCaller(r.Context())
	rootID := ""
	if !caller.IsHR {
		// Managers see their own subtree; HR sees the whole company.
		rootID = caller.EmployeeID
	}
	return hierarchy.Build(records, rootID), nil
}

func (h *Handler) handleTree(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())

	roots, err := h.loadForest(r)
	if err != nil {
		slog.Warn("directory tree failed", "err", err)
		api.ServerError(w, "tree_failed", "failed to build hierarchy", reqID)
		return
	}

	api.Success(w, map[string]any{
		"roots":  roots,
		"rollup": hierarchy.CountByStatus(roots),
	}, reqID)
}

func (h *Handler) handleReminders(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())

	roots, err := h.loadForest(r)
	if err != nil {
		slog.Warn("reminder listing failed", "err", err)
		api.ServerError(w, "reminders_failed", "failed to collect recipients", reqID)
		return
	}

	api.Success(w, map[string]any{
		"recipients": hierarchy.ReminderRecipients(roots),
	}, reqID)
}
