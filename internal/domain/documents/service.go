package documents

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrJobNotFound  = errors.New("document job not found")
	ErrRunNotLocked = errors.New("payroll run is not locked")
)

type Service struct {
	DB *pgxpool.Pool
}

func New(db *pgxpool.Pool) *Service {
	return &Service{DB: db}
}

// EnqueuePayslips queues a payslip batch render for a locked run. Rendering
// itself happens out of process; see cmd/worker/documents.
func (s *Service) EnqueuePayslips(ctx context.Context, tenantID, runID string) (Job, error) {
	var status string
	err := s.DB.QueryRow(ctx, `
    SELECT status FROM payroll_runs WHERE tenant_id = $1 AND id = $2
  `, tenantID, runID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return Job{}, ErrJobNotFound
	}
	if err != nil {
		return Job{}, err
	}
	if status != "locked" {
		return Job{}, ErrRunNotLocked
	}

	var job Job
	err = s.DB.QueryRow(ctx, `
    INSERT INTO document_jobs (tenant_id, job_type, run_id, status)
    VALUES ($1,$2,$3,$4)
    RETURNING id, tenant_id, job_type, run_id, status, COALESCE(file_path, ''), encrypted, COALESCE(error, ''), created_at, started_at, completed_at
  `, tenantID, JobTypePayslips, runID, JobQueued).Scan(
		&job.ID, &job.TenantID, &job.JobType, &job.RunID, &job.Status,
		&job.FilePath, &job.Encrypted, &job.Error, &job.CreatedAt, &job.StartedAt, &job.CompletedAt)
	return job, err
}

func (s *Service) Get(ctx context.Context, tenantID, jobID string) (Job, error) {
	var job Job
	err := s.DB.QueryRow(ctx, `
    SELECT id, tenant_id, job_type, run_id, status, COALESCE(file_path, ''), encrypted, COALESCE(error, ''), created_at, started_at, completed_at
    FROM document_jobs
    WHERE tenant_id = $1 AND id = $2
  `, tenantID, jobID).Scan(
		&job.ID, &job.TenantID, &job.JobType, &job.RunID, &job.Status,
		&job.FilePath, &job.Encrypted, &job.Error, &job.CreatedAt, &job.StartedAt, &job.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Job{}, ErrJobNotFound
	}
	return job, err
}

func (s *Service) ListForRun(ctx context.Context, tenantID, runID string) ([]Job, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, tenant_id, job_type, run_id, status, COALESCE(file_path, ''), encrypted, COALESCE(error, ''), created_at, started_at, completed_at
    FROM document_jobs
    WHERE tenant_id = $1 AND run_id = $2
    ORDER BY created_at DESC
  `, tenantID, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		var job Job
		if err := rows.Scan(&job.ID, &job.TenantID, &job.JobType, &job.RunID, &job.Status,
			&job.FilePath, &job.Encrypted, &job.Error, &job.CreatedAt, &job.StartedAt, &job.CompletedAt); err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Claim moves the oldest queued job to running and returns it. SKIP LOCKED
// keeps concurrent workers from claiming the same job. Returns nil when the
// queue is empty.
func (s *Service) Claim(ctx context.Context) (*Job, error) {
	var job Job
	err := s.DB.QueryRow(ctx, `
    UPDATE document_jobs
    SET status = $1, started_at = now()
    WHERE id = (
      SELECT id FROM document_jobs
      WHERE status = $2
      ORDER BY created_at
      LIMIT 1
      FOR UPDATE SKIP LOCKED
    )
    RETURNING id, tenant_id, job_type, run_id, status, COALESCE(file_path, ''), encrypted, COALESCE(error, ''), created_at, started_at, completed_at
  `, JobRunning, JobQueued).Scan(
		&job.ID, &job.TenantID, &job.JobType, &job.RunID, &job.Status,
		&job.FilePath, &job.Encrypted, &job.Error, &job.CreatedAt, &job.StartedAt, &job.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (s *Service) Complete(ctx context.Context, jobID, filePath string, encrypted bool) error {
	_, err := s.DB.Exec(ctx, `
    UPDATE document_jobs
    SET status = $1, file_path = $2, encrypted = $3, completed_at = now()
    WHERE id = $4
  `, JobCompleted, filePath, encrypted, jobID)
	return err
}

func (s *Service) Fail(ctx context.Context, jobID, message string) error {
	_, err := s.DB.Exec(ctx, `
    UPDATE document_jobs
    SET status = $1, error = $2, completed_at = now()
    WHERE id = $3
  `, JobFailed, message, jobID)
	return err
}
