package network

import (
	"context"
	"time"

	"github.com/jmeckel/ski-race-timer-sub004/internal/logging"
)

// Pinger checks that the coordination service answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Prober periodically pings the service and feeds the result to a Monitor
// as the platform online/offline signal.
type Prober struct {
	pinger   Pinger
	monitor  *Monitor
	interval time.Duration
	timeout  time.Duration
	logger   logging.Logger
}

func NewProber(p Pinger, m *Monitor, interval, timeout time.Duration, logger logging.Logger) *Prober {
	return &Prober{pinger: p, monitor: m, interval: interval, timeout: timeout, logger: logger}
}

// Probe pings once and updates the monitor.
func (p *Prober) Probe(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	err := p.pinger.Ping(ctx)
	cancel()

	online := err == nil
	if online != p.monitor.IsOnline() {
		if online {
			p.logger.Info(ctx, "service reachable")
		} else {
			p.logger.Warn(ctx, "service unreachable", "error", err)
		}
	}
	p.monitor.SetOnline(online)
	return online
}

// Run probes immediately and then on every tick until ctx is done.
func (p *Prober) Run(ctx context.Context) {
	p.Probe(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.Probe(ctx)
		case <-ctx.Done():
			return
		}
	}
}
