package services

import (
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// SchedulerConfig tunes the poll interval.
type SchedulerConfig struct {
	// Base is the interval while polls keep bringing changes.
	Base time.Duration
	// Idle is used once IdleAfter consecutive polls changed nothing.
	Idle      time.Duration
	IdleAfter int
	// MaxBackoff caps the delay after consecutive failures.
	MaxBackoff time.Duration
	// Jitter is the backoff randomization factor (0 disables it).
	Jitter float64
}

// DefaultSchedulerConfig is used by the station unless configured otherwise.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Base:       5 * time.Second,
		Idle:       30 * time.Second,
		IdleAfter:  6,
		MaxBackoff: 2 * time.Minute,
		Jitter:     0.2,
	}
}

// Scheduler decides how long to wait before the next poll cycle.
// Failures back off exponentially; a success resets the backoff. Only a
// success that changed something resets the idle count, so quiet polls
// settle at the idle interval.
type Scheduler struct {
	cfg SchedulerConfig

	mu        sync.Mutex
	bo        *backoff.ExponentialBackOff
	idleCount int
	failDelay time.Duration
}

func NewScheduler(cfg SchedulerConfig) *Scheduler {
	if cfg.Base <= 0 {
		cfg.Base = DefaultSchedulerConfig().Base
	}
	if cfg.Idle < cfg.Base {
		cfg.Idle = cfg.Base
	}
	if cfg.MaxBackoff < cfg.Base {
		cfg.MaxBackoff = cfg.Base
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = cfg.Base
	bo.MaxInterval = cfg.MaxBackoff
	bo.RandomizationFactor = cfg.Jitter
	bo.Multiplier = 2
	bo.MaxElapsedTime = 0
	bo.Reset()

	return &Scheduler{cfg: cfg, bo: bo}
}

// Success records a successful cycle.
func (s *Scheduler) Success(changed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bo.Reset()
	s.failDelay = 0
	if changed {
		s.idleCount = 0
	} else {
		s.idleCount++
	}
}

// Failure records a failed cycle and grows the delay.
func (s *Scheduler) Failure() {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.bo.NextBackOff()
	if d == backoff.Stop || d > s.cfg.MaxBackoff {
		d = s.cfg.MaxBackoff
	}
	s.failDelay = d
}

// Next returns the delay before the next cycle.
func (s *Scheduler) Next() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failDelay > 0 {
		return s.failDelay
	}
	if s.cfg.IdleAfter > 0 && s.idleCount >= s.cfg.IdleAfter {
		return s.cfg.Idle
	}
	return s.cfg.Base
}

// Reset returns to the base interval.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bo.Reset()
	s.failDelay = 0
	s.idleCount = 0
}
