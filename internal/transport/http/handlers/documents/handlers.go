package documentshandler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"rawatib/internal/domain/audit"
	"rawatib/internal/domain/auth"
	"rawatib/internal/domain/documents"
	"rawatib/internal/platform/metrics"
	"rawatib/internal/transport/http/api"
	"rawatib/internal/transport/http/middleware"
	"rawatib/internal/transport/http/shared"
)

type Handler struct {
	Service *documents.Service
	Perms   middleware.PermissionStore
	Audit   *audit.Service
	Metrics *metrics.Collector
}

func NewHandler(service *documents.Service, perms middleware.PermissionStore, auditor *audit.Service, collector *metrics.Collector) *Handler {
	return &Handler{Service: service, Perms: perms, Audit: auditor, Metrics: collector}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/documents", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermDocumentsWrite, h.Perms)).Post("/runs/{runID}/payslips", h.handleEnqueuePayslips)
		r.With(middleware.RequirePermission(auth.PermDocumentsRead, h.Perms)).Get("/runs/{runID}/jobs", h.handleListJobs)
		r.With(middleware.RequirePermission(auth.PermDocumentsRead, h.Perms)).Get("/jobs/{jobID}", h.handleGetJob)
	})
}

func (h *Handler) handleEnqueuePayslips(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	runID := chi.URLParam(r, "runID")
	job, err := h.Service.EnqueuePayslips(r.Context(), user.TenantID, runID)
	if err != nil {
		h.failDomain(w, r, "document_enqueue_failed", err)
		return
	}
	h.Metrics.DocumentJobQueued()
	if h.Audit != nil {
		auditErr := h.Audit.Record(r.Context(), user.TenantID, user.UserID, "documents.payslips.enqueue",
			"document_job", job.ID, middleware.GetRequestID(r.Context()), shared.ClientIP(r), nil, job)
		if auditErr != nil {
			slog.Warn("audit record failed", "action", "documents.payslips.enqueue", "err", auditErr)
		}
	}
	api.Created(w, job, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListJobs(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	jobs, err := h.Service.ListForRun(r.Context(), user.TenantID, chi.URLParam(r, "runID"))
	if err != nil {
		h.failDomain(w, r, "document_jobs_failed", err)
		return
	}
	api.Success(w, jobs, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGetJob(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	job, err := h.Service.Get(r.Context(), user.TenantID, chi.URLParam(r, "jobID"))
	if err != nil {
		h.failDomain(w, r, "document_job_failed", err)
		return
	}
	api.Success(w, job, middleware.GetRequestID(r.Context()))
}

func (h *Handler) failDomain(w http.ResponseWriter, r *http.Request, fallbackCode string, err error) {
	requestID := middleware.GetRequestID(r.Context())
	switch {
	case errors.Is(err, documents.ErrJobNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", err.Error(), requestID)
	case errors.Is(err, documents.ErrRunNotLocked):
		api.Fail(w, http.StatusConflict, "invalid_state", err.Error(), requestID)
	default:
		api.Fail(w, http.StatusInternalServerError, fallbackCode, "operation failed", requestID)
	}
}
