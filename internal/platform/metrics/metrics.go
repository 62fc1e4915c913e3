package metrics

import (
	"sync/atomic"
	"time"
)

type Collector struct {
	totalRequests   uint64
	errorRequests   uint64
	totalDurationMs uint64

	calculations  uint64
	approvals     uint64
	overrides     uint64
	locks         uint64
	loanMutations uint64
	documentJobs  uint64
}

func New() *Collector {
	return &Collector{}
}

func (c *Collector) Record(status int, duration time.Duration) {
	atomic.AddUint64(&c.totalRequests, 1)
	if status >= 500 {
		atomic.AddUint64(&c.errorRequests, 1)
	}
	atomic.AddUint64(&c.totalDurationMs, uint64(duration.Milliseconds()))
}

func (c *Collector) CalculationDone()   { atomic.AddUint64(&c.calculations, 1) }
func (c *Collector) ApprovalDone()      { atomic.AddUint64(&c.approvals, 1) }
func (c *Collector) OverrideDone()      { atomic.AddUint64(&c.overrides, 1) }
func (c *Collector) LockDone()          { atomic.AddUint64(&c.locks, 1) }
func (c *Collector) LoanMutationDone()  { atomic.AddUint64(&c.loanMutations, 1) }
func (c *Collector) DocumentJobQueued() { atomic.AddUint64(&c.documentJobs, 1) }

func (c *Collector) Snapshot() map[string]any {
	total := atomic.LoadUint64(&c.totalRequests)
	totalMs := atomic.LoadUint64(&c.totalDurationMs)
	avg := float64(0)
	if total > 0 {
		avg = float64(totalMs) / float64(total)
	}
	return map[string]any{
		"requestsTotal":      total,
		"errorsTotal":        atomic.LoadUint64(&c.errorRequests),
		"avgDurationMs":      avg,
		"calculationsTotal":  atomic.LoadUint64(&c.calculations),
		"approvalsTotal":     atomic.LoadUint64(&c.approvals),
		"overridesTotal":     atomic.LoadUint64(&c.overrides),
		"locksTotal":         atomic.LoadUint64(&c.locks),
		"loanMutationsTotal": atomic.LoadUint64(&c.loanMutations),
		"documentJobsTotal":  atomic.LoadUint64(&c.documentJobs),
	}
}
