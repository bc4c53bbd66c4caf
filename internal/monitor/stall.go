package monitor

import (
	"context"
	"time"
)

// StallProbe flags abnormal execution stalls. A tick that arrives far
// later than scheduled means something froze the process — a debugger
// attached, the machine suspended, heavy tampering. This is a
// heuristic, not proof; deployments that find it too noisy disable it
// in config without touching the session.
type StallProbe struct {
	interval  time.Duration
	threshold time.Duration
}

// NewStallProbe creates a probe that checks every interval and reports
// KindDevtools when a tick is delayed by more than threshold.
func NewStallProbe(interval, threshold time.Duration) *StallProbe {
	return &StallProbe{interval: interval, threshold: threshold}
}

func (p *StallProbe) Name() string { return "stall_probe" }

func (p *StallProbe) Run(ctx context.Context, emit func(Kind)) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			if drift := now.Sub(last) - p.interval; drift > p.threshold {
				emit(KindDevtools)
			}
			last = now
		}
	}
}
