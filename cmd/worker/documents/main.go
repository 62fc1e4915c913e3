package main

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/jung-kurt/gofpdf"

	"rawatib/internal/db"
	"rawatib/internal/domain/documents"
	"rawatib/internal/platform/config"
	cryptoutil "rawatib/internal/platform/crypto"
)

type worker struct {
	pool       *pgxpool.Pool
	jobs       *documents.Service
	crypto     *cryptoutil.Service
	storageDir string
}

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := config.Load()
	if cfg.DatabaseURL == "" {
		slog.Error("DATABASE_URL is required")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		slog.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	cryptoService, err := cryptoutil.New(cfg.DataEncryptionKey)
	if err != nil {
		slog.Error("invalid encryption key", "err", err)
		os.Exit(1)
	}

	w := &worker{
		pool:       pool,
		jobs:       documents.New(pool),
		crypto:     cryptoService,
		storageDir: cfg.DocumentStorageDir,
	}

	slog.Info("document worker started", "pollInterval", cfg.DocumentPollInterval.String())
	w.run(ctx, cfg.DocumentPollInterval)
	slog.Info("document worker stopped")
}

func (w *worker) run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for {
				job, err := w.jobs.Claim(ctx)
				if err != nil {
					slog.Warn("job claim failed", "err", err)
					break
				}
				if job == nil {
					break
				}
				w.process(ctx, job)
			}
		}
	}
}

func (w *worker) process(ctx context.Context, job *documents.Job) {
	filePath, encrypted, err := w.renderPayslipBatch(ctx, job)
	if err != nil {
		slog.Warn("job failed", "jobId", job.ID, "err", err)
		if failErr := w.jobs.Fail(ctx, job.ID, err.Error()); failErr != nil {
			slog.Warn("job fail update failed", "jobId", job.ID, "err", failErr)
		}
		return
	}
	if err := w.jobs.Complete(ctx, job.ID, filePath, encrypted); err != nil {
		slog.Warn("job complete update failed", "jobId", job.ID, "err", err)
		return
	}
	slog.Info("job completed", "jobId", job.ID, "file", filePath, "encrypted", encrypted)
}

type payslipLine struct {
	firstName string
	lastName  string
	jobTitle  string
	base      float64
	allow     float64
	overtime  float64
	deduct    float64
	net       float64
}

func (w *worker) renderPayslipBatch(ctx context.Context, job *documents.Job) (string, bool, error) {
	var year, month int
	err := w.pool.QueryRow(ctx, `
    SELECT year, month FROM payroll_runs WHERE tenant_id = $1 AND id = $2
  `, job.TenantID, job.RunID).Scan(&year, &month)
	if err != nil {
		return "", false, err
	}

	rows, err := w.pool.Query(ctx, `
    SELECT e.first_name, e.last_name, COALESCE(e.job_title, ''),
           l.base_salary, l.allowances, l.overtime_amount, l.total_deductions, l.net
    FROM payroll_lines l
    JOIN employees e ON l.employee_id = e.id
    WHERE l.tenant_id = $1 AND l.run_id = $2
    ORDER BY e.last_name, e.first_name
  `, job.TenantID, job.RunID)
	if err != nil {
		return "", false, err
	}
	defer rows.Close()

	var lines []payslipLine
	for rows.Next() {
		var line payslipLine
		if err := rows.Scan(&line.firstName, &line.lastName, &line.jobTitle,
			&line.base, &line.allow, &line.overtime, &line.deduct, &line.net); err != nil {
			return "", false, err
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return "", false, err
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	for _, line := range lines {
		pdf.AddPage()
		pdf.SetFont("Helvetica", "B", 16)
		pdf.Cell(40, 10, "Payslip")
		pdf.Ln(12)
		pdf.SetFont("Helvetica", "", 12)
		pdf.Cell(0, 8, fmt.Sprintf("Employee: %s %s", line.firstName, line.lastName))
		pdf.Ln(7)
		pdf.Cell(0, 8, fmt.Sprintf("Job Title: %s", line.jobTitle))
		pdf.Ln(7)
		pdf.Cell(0, 8, fmt.Sprintf("Period: %04d-%02d", year, month))
		pdf.Ln(10)
		pdf.Cell(0, 8, fmt.Sprintf("Base Salary: %.2f SAR", line.base))
		pdf.Ln(7)
		pdf.Cell(0, 8, fmt.Sprintf("Allowances: %.2f SAR", line.allow))
		pdf.Ln(7)
		pdf.Cell(0, 8, fmt.Sprintf("Overtime: %.2f SAR", line.overtime))
		pdf.Ln(7)
		pdf.Cell(0, 8, fmt.Sprintf("Deductions: %.2f SAR", line.deduct))
		pdf.Ln(7)
		pdf.Cell(0, 8, fmt.Sprintf("Net: %.2f SAR", line.net))
	}

	if err := os.MkdirAll(w.storageDir, 0o755); err != nil {
		return "", false, err
	}

	if w.crypto.Configured() {
		var buf bytes.Buffer
		if err := pdf.Output(&buf); err != nil {
			return "", false, err
		}
		sealed, err := w.crypto.Encrypt(buf.Bytes())
		if err != nil {
			return "", false, err
		}
		filePath := filepath.Join(w.storageDir, job.ID+".pdf.enc")
		if err := os.WriteFile(filePath, sealed, 0o600); err != nil {
			return "", false, err
		}
		return filePath, true, nil
	}

	filePath := filepath.Join(w.storageDir, job.ID+".pdf")
	if err := pdf.OutputFileAndClose(filePath); err != nil {
		return "", false, err
	}
	return filePath, false, nil
}
