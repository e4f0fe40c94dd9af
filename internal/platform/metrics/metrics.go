package metrics

import (
	"sync/atomic"
	"time"
)

type Collector struct {
	totalRequests   uint64
	errorRequests   uint64
	clientErrors    uint64
	totalDurationMs uint64

	slipsGenerated uint64
	slipsFailed    uint64
	runsTotal      uint64
	warningsTotal  uint64
}

func New() *Collector {
	return &Collector{}
}

func (c *Collector) Record(status int, duration time.Duration) {
	atomic.AddUint64(&c.totalRequests, 1)
	switch {
	case status >= 500:
		atomic.AddUint64(&c.errorRequests, 1)
	case status >= 400:
		atomic.AddUint64(&c.clientErrors, 1)
	}
	atomic.AddUint64(&c.totalDurationMs, uint64(duration.Milliseconds()))
}

// RecordRun counts one batch with its per-employee outcomes.
func (c *Collector) RecordRun(succeeded, failed, warnings int) {
	atomic.AddUint64(&c.runsTotal, 1)
	c.RecordSlips(succeeded, failed, warnings)
}

func (c *Collector) RecordSlips(succeeded, failed, warnings int) {
	if succeeded > 0 {
		atomic.AddUint64(&c.slipsGenerated, uint64(succeeded))
	}
	if failed > 0 {
		atomic.AddUint64(&c.slipsFailed, uint64(failed))
	}
	if warnings > 0 {
		atomic.AddUint64(&c.warningsTotal, uint64(warnings))
	}
}

func (c *Collector) Snapshot() map[string]any {
	total := atomic.LoadUint64(&c.totalRequests)
	totalMs := atomic.LoadUint64(&c.totalDurationMs)
	avg := float64(0)
	if total > 0 {
		avg = float64(totalMs) / float64(total)
	}
	return map[string]any{
		"requestsTotal":       total,
		"errorsTotal":         atomic.LoadUint64(&c.errorRequests),
		"clientErrorsTotal":   atomic.LoadUint64(&c.clientErrors),
		"avgDurationMs":       avg,
		"totalDurationMs":     totalMs,
		"payrollRunsTotal":    atomic.LoadUint64(&c.runsTotal),
		"slipsGeneratedTotal": atomic.LoadUint64(&c.slipsGenerated),
		"slipsFailedTotal":    atomic.LoadUint64(&c.slipsFailed),
		"slipWarningsTotal":   atomic.LoadUint64(&c.warningsTotal),
	}
}
