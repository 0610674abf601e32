package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jmeckel/ski-race-timer-sub004/internal/client/client"
	"github.com/jmeckel/ski-race-timer-sub004/internal/client/models"
	"github.com/jmeckel/ski-race-timer-sub004/internal/client/network"
	"github.com/jmeckel/ski-race-timer-sub004/internal/logging"
)

// Engine runs the poll loop for one race.
type Engine struct {
	store   StateStore
	conn    *Connection
	entries *EntrySync
	faults  *FaultSync
	sched   *Scheduler
	logger  logging.Logger

	kick chan struct{}

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewEngine(store StateStore, conn *Connection, entries *EntrySync, faults *FaultSync, sched *Scheduler, logger logging.Logger) *Engine {
	e := &Engine{
		store:   store,
		conn:    conn,
		entries: entries,
		faults:  faults,
		sched:   sched,
		logger:  logger.With("component", "sync"),
		kick:    make(chan struct{}, 1),
	}
	conn.OnStop(e.Cleanup)
	return e
}

// Initialize starts syncing the Store's race: status connecting, an
// immediate full poll, then polls on the scheduler's intervals. A running
// loop is stopped first.
func (e *Engine) Initialize(ctx context.Context) error {
	if err := ready(e.store); err != nil {
		return err
	}
	e.Cleanup()
	e.wait()

	e.mu.Lock()
	defer e.mu.Unlock()

	e.entries.ResetDelta()
	if e.faults != nil {
		e.faults.ResetDelta()
	}
	e.sched.Reset()
	e.store.SetSyncStatus(models.SyncConnecting)

	loopCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.done = make(chan struct{})
	e.running = true
	go e.loop(loopCtx, e.done)

	e.logger.Info(ctx, "sync started", "race", e.store.RaceID())
	return nil
}

func (e *Engine) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	for {
		_ = e.Cycle(ctx)

		wait := time.NewTimer(e.sched.Next())
		select {
		case <-ctx.Done():
			wait.Stop()
			return
		case <-wait.C:
		case <-e.kick:
			wait.Stop()
		}
	}
}

// Cycle polls and pushes entries, then faults. It is what the loop runs on
// every tick; callers may also run it directly ("sync now").
func (e *Engine) Cycle(ctx context.Context) error {
	res, err := e.entries.Poll(ctx)
	if res.Stopped || ctx.Err() != nil {
		return err
	}
	if err != nil {
		e.sched.Failure()
		return err
	}

	if err := e.entries.PushLocalEntries(ctx); client.IsAuthExpired(err) || ctx.Err() != nil {
		return err
	}

	changed := res.Changed()
	if e.faults != nil {
		fres, err := e.faults.Poll(ctx)
		if fres.Stopped || ctx.Err() != nil {
			return err
		}
		if err != nil {
			e.sched.Failure()
			return err
		}
		changed = changed || fres.Changed()

		if err := e.faults.PushLocalFaults(ctx); client.IsAuthExpired(err) || ctx.Err() != nil {
			return err
		}
	}

	e.sched.Success(changed)
	return nil
}

// Kick asks the loop to run a cycle now instead of waiting for the timer.
func (e *Engine) Kick() {
	select {
	case e.kick <- struct{}{}:
	default:
	}
}

// WatchNetwork kicks the loop whenever the link comes back.
func (e *Engine) WatchNetwork(m *network.Monitor) (unsubscribe func()) {
	return m.OnQualityChange(func(q network.Quality) {
		if q == network.QualityGood {
			e.Kick()
		}
	})
}

// Running reports whether the poll loop is active.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Cleanup stops the poll loop. It is idempotent and safe to call from inside
// the loop; it does not wait for the loop to exit.
func (e *Engine) Cleanup() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	e.cancel()
	e.mu.Unlock()

	if e.store.SyncStatus() != models.SyncDisconnected {
		e.store.SetSyncStatus(models.SyncDisconnected)
	}
	e.logger.Info(context.Background(), "sync stopped", "race", e.store.RaceID())
	e.conn.Publish(Event{Kind: EventSyncStopped, RaceID: e.store.RaceID()})
}

func (e *Engine) wait() {
	e.mu.Lock()
	done := e.done
	e.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Stop cleans up and waits for the loop goroutine to exit.
func (e *Engine) Stop(ctx context.Context) error {
	e.Cleanup()
	e.mu.Lock()
	done := e.done
	e.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.Join(errors.New("sync loop did not stop"), ctx.Err())
	}
}
