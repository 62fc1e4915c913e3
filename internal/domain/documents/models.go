package documents

import "time"

const (
	JobQueued    = "queued"
	JobRunning   = "running"
	JobCompleted = "completed"
	JobFailed    = "failed"
)

const JobTypePayslips = "payslip_batch"

// Job is one queued render request. The core only enqueues and reads jobs;
// a separate worker process claims and executes them.
type Job struct {
	ID          string     `json:"id"`
	TenantID    string     `json:"tenantId"`
	JobType     string     `json:"jobType"`
	RunID       string     `json:"runId"`
	Status      string     `json:"status"`
	FilePath    string     `json:"filePath,omitempty"`
	Encrypted   bool       `json:"encrypted"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}
