package monitoring

import "sync/atomic"

// Progress tracks completion of a known amount of work across concurrent
// workers and logs at coarse percentage steps. It is safe for use from
// multiple goroutines; logging happens at most once per step boundary.
type Progress struct {
	label    string
	total    int64
	done     int64
	lastStep int64
	stepPct  int64
}

// NewProgress returns a reporter that logs label at every stepPct percent of
// total units. A stepPct outside (0,100] disables logging.
func NewProgress(label string, total int, stepPct int) *Progress {
	if stepPct <= 0 || stepPct > 100 {
		stepPct = 0
	}
	return &Progress{label: label, total: int64(total), stepPct: int64(stepPct)}
}

// Add records n completed units and logs if a step boundary was crossed.
func (p *Progress) Add(n int) {
	if p == nil || p.total <= 0 {
		return
	}
	done := atomic.AddInt64(&p.done, int64(n))
	if p.stepPct == 0 {
		return
	}
	pct := done * 100 / p.total
	step := pct / p.stepPct
	if step > 0 && atomic.SwapInt64(&p.lastStep, step) != step {
		Logf("%s: %d%% (%d/%d)", p.label, step*p.stepPct, done, p.total)
	}
}
