package loanshandler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"rawatib/internal/domain/audit"
	"rawatib/internal/domain/auth"
	"rawatib/internal/domain/loans"
	"rawatib/internal/platform/metrics"
	"rawatib/internal/transport/http/api"
	"rawatib/internal/transport/http/middleware"
	"rawatib/internal/transport/http/shared"
)

type Handler struct {
	Service *loans.Service
	Perms   middleware.PermissionStore
	Audit   *audit.Service
	Metrics *metrics.Collector
}

func NewHandler(service *loans.Service, perms middleware.PermissionStore, auditor *audit.Service, collector *metrics.Collector) *Handler {
	return &Handler{Service: service, Perms: perms, Audit: auditor, Metrics: collector}
}

type createLoanPayload struct {
	EmployeeID        string  `json:"employeeId"`
	Principal         float64 `json:"principal"`
	InstallmentAmount float64 `json:"installmentAmount"`
	StartYear         int     `json:"startYear"`
	StartMonth        int     `json:"startMonth"`
	TotalInstallments int     `json:"totalInstallments"`
}

type reschedulePayload struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

type settlePayload struct {
	Amount float64 `json:"amount"`
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/loans", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermLoansRead, h.Perms)).Get("/", h.handleList)
		r.With(middleware.RequirePermission(auth.PermLoansWrite, h.Perms)).Post("/", h.handleCreate)
		r.With(middleware.RequirePermission(auth.PermLoansRead, h.Perms)).Get("/{loanID}", h.handleGet)
		r.With(middleware.RequirePermission(auth.PermLoansRead, h.Perms)).Get("/{loanID}/installments", h.handleInstallments)
		r.With(middleware.RequirePermission(auth.PermLoansWrite, h.Perms)).Post("/{loanID}/reschedule", h.handleReschedule)
		r.With(middleware.RequirePermission(auth.PermLoansWrite, h.Perms)).Post("/{loanID}/skip", h.handleSkip)
		r.With(middleware.RequirePermission(auth.PermLoansWrite, h.Perms)).Post("/{loanID}/settle", h.handleSettle)
		r.With(middleware.RequirePermission(auth.PermLoansWrite, h.Perms)).Post("/{loanID}/cancel", h.handleCancel)
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	result, err := h.Service.ListLoans(r.Context(), user.TenantID)
	if err != nil {
		h.failDomain(w, r, "loans_list_failed", err)
		return
	}
	api.Success(w, result, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	var payload createLoanPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	validator := shared.NewValidator()
	validator.Required("employeeId", payload.EmployeeID, "employee id is required")
	if payload.Principal <= 0 {
		validator.Add("principal", "must be positive")
	}
	if payload.InstallmentAmount <= 0 {
		validator.Add("installmentAmount", "must be positive")
	}
	if payload.StartMonth < 1 || payload.StartMonth > 12 {
		validator.Add("startMonth", "must be between 1 and 12")
	}
	if payload.TotalInstallments <= 0 {
		validator.Add("totalInstallments", "must be positive")
	}
	if validator.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}
	loan, err := h.Service.CreateLoan(r.Context(), user.TenantID, payload.EmployeeID,
		payload.Principal, payload.InstallmentAmount, payload.StartYear, payload.StartMonth, payload.TotalInstallments)
	if err != nil {
		h.failDomain(w, r, "loan_create_failed", err)
		return
	}
	h.Metrics.LoanMutationDone()
	h.record(r, user, "loans.create", loan.ID, nil, loan)
	api.Created(w, loan, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	loan, err := h.Service.GetLoan(r.Context(), user.TenantID, chi.URLParam(r, "loanID"))
	if err != nil {
		h.failDomain(w, r, "loan_get_failed", err)
		return
	}
	api.Success(w, loan, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleInstallments(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	installments, err := h.Service.ListInstallments(r.Context(), user.TenantID, chi.URLParam(r, "loanID"))
	if err != nil {
		h.failDomain(w, r, "loan_installments_failed", err)
		return
	}
	api.Success(w, installments, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleReschedule(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	var payload reschedulePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	loanID := chi.URLParam(r, "loanID")
	loan, err := h.Service.Reschedule(r.Context(), user.TenantID, loanID, payload.Year, payload.Month)
	if err != nil {
		h.failDomain(w, r, "loan_reschedule_failed", err)
		return
	}
	h.Metrics.LoanMutationDone()
	h.record(r, user, "loans.reschedule", loanID, nil, payload)
	api.Success(w, loan, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleSkip(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	loanID := chi.URLParam(r, "loanID")
	loan, err := h.Service.SkipNext(r.Context(), user.TenantID, loanID)
	if err != nil {
		h.failDomain(w, r, "loan_skip_failed", err)
		return
	}
	h.Metrics.LoanMutationDone()
	h.record(r, user, "loans.skip", loanID, nil, loan)
	api.Success(w, loan, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleSettle(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	var payload settlePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	loanID := chi.URLParam(r, "loanID")
	loan, err := h.Service.SettleEarly(r.Context(), user.TenantID, loanID, payload.Amount)
	if err != nil {
		h.failDomain(w, r, "loan_settle_failed", err)
		return
	}
	h.Metrics.LoanMutationDone()
	h.record(r, user, "loans.settle", loanID, nil, loan)
	api.Success(w, loan, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	loanID := chi.URLParam(r, "loanID")
	loan, err := h.Service.Cancel(r.Context(), user.TenantID, loanID)
	if err != nil {
		h.failDomain(w, r, "loan_cancel_failed", err)
		return
	}
	h.Metrics.LoanMutationDone()
	h.record(r, user, "loans.cancel", loanID, nil, loan)
	api.Success(w, loan, middleware.GetRequestID(r.Context()))
}

func (h *Handler) record(r *http.Request, user auth.UserContext, action, loanID string, before, after any) {
	if h.Audit == nil {
		return
	}
	err := h.Audit.Record(r.Context(), user.TenantID, user.UserID, action, "employee_loan", loanID,
		middleware.GetRequestID(r.Context()), shared.ClientIP(r), before, after)
	if err != nil {
		slog.Warn("audit record failed", "action", action, "err", err)
	}
}

func (h *Handler) failDomain(w http.ResponseWriter, r *http.Request, fallbackCode string, err error) {
	requestID := middleware.GetRequestID(r.Context())

	var validation *loans.ValidationError
	if errors.As(err, &validation) {
		api.FailWithDetails(w, http.StatusBadRequest, "validation_error", validation.Error(),
			map[string]any{"field": validation.Field, "reason": validation.Reason}, requestID)
		return
	}

	switch {
	case errors.Is(err, loans.ErrLoanNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", err.Error(), requestID)
	case errors.Is(err, loans.ErrBlockedByLockedPeriod):
		api.Fail(w, http.StatusConflict, "blocked_by_locked_period", err.Error(), requestID)
	case errors.Is(err, loans.ErrInvalidState):
		api.Fail(w, http.StatusConflict, "invalid_state", err.Error(), requestID)
	case errors.Is(err, loans.ErrConflict):
		api.Fail(w, http.StatusConflict, "conflict", "concurrent modification detected, retry the operation", requestID)
	default:
		api.Fail(w, http.StatusInternalServerError, fallbackCode, "operation failed", requestID)
	}
}
