package payrollhandler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"rawatib/internal/domain/audit"
	"rawatib/internal/domain/auth"
	"rawatib/internal/domain/payroll"
	"rawatib/internal/platform/metrics"
	"rawatib/internal/transport/http/api"
	"rawatib/internal/transport/http/middleware"
	"rawatib/internal/transport/http/shared"
)

type Handler struct {
	Service *payroll.Service
	Perms   middleware.PermissionStore
	Audit   *audit.Service
	Metrics *metrics.Collector
}

func NewHandler(service *payroll.Service, perms middleware.PermissionStore, auditor *audit.Service, collector *metrics.Collector) *Handler {
	return &Handler{Service: service, Perms: perms, Audit: auditor, Metrics: collector}
}

type periodPayload struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

type overridePayload struct {
	Category    string `json:"category"`
	Reason      string `json:"reason"`
	ReferenceID string `json:"referenceId"`
}

type adjustmentPayload struct {
	EmployeeID  string  `json:"employeeId"`
	Kind        string  `json:"kind"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/payroll", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermPayrollRead, h.Perms)).Get("/periods", h.handleListPeriods)
		r.With(middleware.RequirePermission(auth.PermPayrollCalculate, h.Perms)).Post("/periods", h.handleCreatePeriod)
		r.With(middleware.RequirePermission(auth.PermPayrollCalculate, h.Perms)).Post("/periods/{periodID}/calculate", h.handleCalculate)
		r.With(middleware.RequirePermission(auth.PermPayrollRead, h.Perms)).Get("/periods/{periodID}/adjustments", h.handleListAdjustments)
		r.With(middleware.RequirePermission(auth.PermPayrollCalculate, h.Perms)).Post("/periods/{periodID}/adjustments", h.handleCreateAdjustment)
		r.With(middleware.RequirePermission(auth.PermPayrollRead, h.Perms)).Get("/periods/{periodID}/run", h.handleRunForPeriod)
		r.With(middleware.RequirePermission(auth.PermPayrollRead, h.Perms)).Get("/runs/{runID}", h.handleGetRun)
		r.With(middleware.RequirePermission(auth.PermPayrollRead, h.Perms)).Get("/runs/{runID}/findings", h.handleFindings)
		r.With(middleware.RequirePermission(auth.PermPayrollRead, h.Perms)).Get("/runs/{runID}/decisions", h.handleListDecisions)
		r.With(middleware.RequirePermission(auth.PermPayrollApprove, h.Perms)).Post("/runs/{runID}/approve", h.handleApprove)
		r.With(middleware.RequirePermission(auth.PermPayrollApprove, h.Perms)).Post("/runs/{runID}/approve/override", h.handleApproveOverride)
		r.With(middleware.RequirePermission(auth.PermPayrollApprove, h.Perms)).Get("/override-references/next", h.handleNextOverrideReference)
		r.With(middleware.RequirePermission(auth.PermPayrollLock, h.Perms)).Post("/runs/{runID}/lock", h.handleLock)
	})
}

func (h *Handler) handleListPeriods(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	periods, err := h.Service.ListPeriods(r.Context(), user.TenantID)
	if err != nil {
		h.failDomain(w, r, "payroll_periods_failed", err)
		return
	}
	api.Success(w, periods, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreatePeriod(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	var payload periodPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	period, err := h.Service.CreatePeriod(r.Context(), user.TenantID, payload.Year, payload.Month)
	if err != nil {
		h.failDomain(w, r, "payroll_period_create_failed", err)
		return
	}
	h.record(r, user, "payroll.period.create", "payroll_period", period.ID, nil, period)
	api.Created(w, period, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCalculate(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	periodID := chi.URLParam(r, "periodID")
	run, lines, err := h.Service.Calculate(r.Context(), user.TenantID, periodID)
	if err != nil {
		h.failDomain(w, r, "payroll_calculate_failed", err)
		return
	}
	h.Metrics.CalculationDone()
	h.record(r, user, "payroll.run.calculate", "payroll_run", run.ID, nil, map[string]any{"periodId": periodID, "lineCount": len(lines)})
	api.Success(w, map[string]any{"run": run, "lines": lines}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGetRun(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	run, lines, totals, err := h.Service.GetRun(r.Context(), user.TenantID, chi.URLParam(r, "runID"))
	if err != nil {
		h.failDomain(w, r, "payroll_run_failed", err)
		return
	}
	api.Success(w, map[string]any{"run": run, "lines": lines, "totals": totals}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleRunForPeriod(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	run, err := h.Service.RunForPeriod(r.Context(), user.TenantID, chi.URLParam(r, "periodID"))
	if err != nil {
		h.failDomain(w, r, "payroll_run_failed", err)
		return
	}
	api.Success(w, run, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleFindings(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	findings, err := h.Service.Findings(r.Context(), user.TenantID, chi.URLParam(r, "runID"))
	if err != nil {
		h.failDomain(w, r, "payroll_findings_failed", err)
		return
	}
	criticals, warnings := payroll.CountBySeverity(findings)
	api.Success(w, map[string]any{
		"findings":      findings,
		"criticalCount": criticals,
		"warningCount":  warnings,
	}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	runID := chi.URLParam(r, "runID")
	decision, err := h.Service.ApproveStandard(r.Context(), user.TenantID, runID, user.UserID)
	if err != nil {
		h.failDomain(w, r, "payroll_approve_failed", err)
		return
	}
	h.Metrics.ApprovalDone()
	h.record(r, user, "payroll.run.approve", "payroll_run", runID, nil, decision)
	api.Success(w, decision, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleApproveOverride(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	var payload overridePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	runID := chi.URLParam(r, "runID")
	decision, err := h.Service.ApproveOverride(r.Context(), user.TenantID, runID, user.UserID,
		payload.Category, payload.Reason, strings.TrimSpace(payload.ReferenceID))
	if err != nil {
		h.failDomain(w, r, "payroll_override_failed", err)
		return
	}
	h.Metrics.OverrideDone()
	h.record(r, user, "payroll.run.approve_override", "payroll_run", runID, nil, decision)
	api.Success(w, decision, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleNextOverrideReference(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	reference, exhausted, err := h.Service.NextOverrideReferenceID(r.Context(), user.TenantID)
	if err != nil {
		h.failDomain(w, r, "payroll_reference_failed", err)
		return
	}
	api.Success(w, map[string]any{"referenceId": reference, "exhausted": exhausted}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleLock(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	runID := chi.URLParam(r, "runID")
	run, err := h.Service.Lock(r.Context(), user.TenantID, runID, user.UserID)
	if err != nil {
		h.failDomain(w, r, "payroll_lock_failed", err)
		return
	}
	h.Metrics.LockDone()
	h.record(r, user, "payroll.run.lock", "payroll_run", runID, nil, run)
	api.Success(w, run, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListDecisions(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	decisions, err := h.Service.ListDecisions(r.Context(), user.TenantID, chi.URLParam(r, "runID"))
	if err != nil {
		h.failDomain(w, r, "payroll_decisions_failed", err)
		return
	}
	api.Success(w, decisions, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListAdjustments(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	adjustments, err := h.Service.ListAdjustments(r.Context(), user.TenantID, chi.URLParam(r, "periodID"))
	if err != nil {
		h.failDomain(w, r, "payroll_adjustments_failed", err)
		return
	}
	api.Success(w, adjustments, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreateAdjustment(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	var payload adjustmentPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	adjustment, err := h.Service.CreateAdjustment(r.Context(), user.TenantID, payroll.Adjustment{
		PeriodID:    chi.URLParam(r, "periodID"),
		EmployeeID:  payload.EmployeeID,
		Kind:        payload.Kind,
		Description: payload.Description,
		Amount:      payload.Amount,
	})
	if err != nil {
		h.failDomain(w, r, "payroll_adjustment_create_failed", err)
		return
	}
	h.record(r, user, "payroll.adjustment.create", "payroll_adjustment", adjustment.ID, nil, adjustment)
	api.Created(w, adjustment, middleware.GetRequestID(r.Context()))
}

func (h *Handler) record(r *http.Request, user auth.UserContext, action, entityType, entityID string, before, after any) {
	if h.Audit == nil {
		return
	}
	err := h.Audit.Record(r.Context(), user.TenantID, user.UserID, action, entityType, entityID,
		middleware.GetRequestID(r.Context()), shared.ClientIP(r), before, after)
	if err != nil {
		slog.Warn("audit record failed", "action", action, "err", err)
	}
}

func (h *Handler) failDomain(w http.ResponseWriter, r *http.Request, fallbackCode string, err error) {
	requestID := middleware.GetRequestID(r.Context())

	var validation *payroll.ValidationError
	if errors.As(err, &validation) {
		details := map[string]any{"field": validation.Field, "reason": validation.Reason}
		if validation.Suggestion != "" {
			details["suggestedReferenceId"] = validation.Suggestion
		}
		api.FailWithDetails(w, http.StatusBadRequest, "validation_error", validation.Error(), details, requestID)
		return
	}

	switch {
	case errors.Is(err, payroll.ErrPeriodNotFound), errors.Is(err, payroll.ErrRunNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", err.Error(), requestID)
	case errors.Is(err, payroll.ErrBlockedByFindings):
		api.Fail(w, http.StatusConflict, "blocked_by_findings", err.Error(), requestID)
	case errors.Is(err, payroll.ErrAlreadyLocked):
		api.Fail(w, http.StatusConflict, "already_locked", err.Error(), requestID)
	case errors.Is(err, payroll.ErrInvalidState):
		api.Fail(w, http.StatusConflict, "invalid_state", err.Error(), requestID)
	case errors.Is(err, payroll.ErrConflict):
		api.Fail(w, http.StatusConflict, "conflict", "concurrent modification detected, retry the operation", requestID)
	default:
		api.Fail(w, http.StatusInternalServerError, fallbackCode, "operation failed", requestID)
	}
}
