package monitor

import (
	"context"
	"time"
)

// Pinger is the reachability check the probe runs. Satisfied by the
// api.Client.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ConnectivityProbe emits KindDisconnect when the backend stops being
// reachable. One violation per transition online→offline, not one per
// failed check — a dead link would otherwise burn through the warning
// budget by itself.
type ConnectivityProbe struct {
	pinger   Pinger
	interval time.Duration
}

// NewConnectivityProbe creates a probe checking every interval.
func NewConnectivityProbe(pinger Pinger, interval time.Duration) *ConnectivityProbe {
	return &ConnectivityProbe{pinger: pinger, interval: interval}
}

func (p *ConnectivityProbe) Name() string { return "connectivity_probe" }

func (p *ConnectivityProbe) Run(ctx context.Context, emit func(Kind)) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	online := true
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			checkCtx, cancel := context.WithTimeout(ctx, p.interval)
			err := p.pinger.Ping(checkCtx)
			cancel()

			if err != nil {
				if online {
					emit(KindDisconnect)
				}
				online = false
			} else {
				online = true
			}
		}
	}
}
