package services

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/jmeckel/ski-race-timer-sub004/internal/client/client"
	"github.com/jmeckel/ski-race-timer-sub004/internal/client/models"
	"github.com/jmeckel/ski-race-timer-sub004/internal/logging"
)

func fastScheduler() *Scheduler {
	return NewScheduler(SchedulerConfig{Base: 5 * time.Millisecond, Idle: 10 * time.Millisecond, IdleAfter: 2, MaxBackoff: 20 * time.Millisecond})
}

func newEngine(h *harness) *Engine {
	return NewEngine(h.store, h.conn, h.entries, h.faults, fastScheduler(), logging.Nop())
}

func TestEngine_AuthExpiredStopsOnce(t *testing.T) {
	defer goleak.VerifyNone(t)

	h := newHarness(t)
	h.store.status = models.SyncConnected
	h.api.pollFn = func(client.PollRequest) (*client.EntryPollResponse, error) {
		return nil, &client.HTTPError{StatusCode: http.StatusUnauthorized, Message: "token expired", Expired: true}
	}
	e := newEngine(h)

	require.NoError(t, e.Initialize(context.Background()))
	require.Eventually(t, func() bool { return !e.Running() }, time.Second, time.Millisecond)
	require.NoError(t, e.Stop(context.Background()))

	assert.Empty(t, h.store.AuthToken())
	assert.Equal(t, models.SyncDisconnected, h.store.SyncStatus())
	assert.Equal(t, 1, h.events.count(EventAuthExpired))
	assert.Equal(t, 1, h.events.count(EventSyncStopped), "cleanup runs exactly once")
	assert.Equal(t, 1, h.api.pollCount(), "no polls after the credential expired")

	e.Cleanup()
	assert.Equal(t, 1, h.events.count(EventSyncStopped))
}

func TestEngine_RequiresConfiguration(t *testing.T) {
	h := newHarness(t)
	h.store.token = ""
	e := newEngine(h)
	require.ErrorIs(t, e.Initialize(context.Background()), ErrNoCredential)
	assert.False(t, e.Running())
}

func TestEngine_CyclePollsEntriesThenFaults(t *testing.T) {
	defer goleak.VerifyNone(t)

	h := newHarness(t)
	e := newEngine(h)

	require.NoError(t, e.Initialize(context.Background()))
	assert.Contains(t, []models.SyncStatus{models.SyncConnecting, models.SyncConnected, models.SyncSyncing}, h.store.SyncStatus())

	require.Eventually(t, func() bool { return h.api.pollCount() >= 3 }, time.Second, time.Millisecond)
	require.NoError(t, e.Stop(context.Background()))

	h.api.mu.Lock()
	defer h.api.mu.Unlock()
	assert.GreaterOrEqual(t, len(h.api.faultPolls), 2)
	assert.Zero(t, h.api.polls[0].Since)
	assert.Equal(t, int64(1), h.api.polls[1].Since)
	assert.Equal(t, 1, h.events.count(EventSyncStopped))
}

func TestEngine_OfflineCycleBacksOff(t *testing.T) {
	h := newHarness(t)
	h.monitor.SetOnline(false)
	sched := NewScheduler(SchedulerConfig{Base: time.Second, MaxBackoff: time.Minute})
	e := NewEngine(h.store, h.conn, h.entries, h.faults, sched, logging.Nop())

	require.ErrorIs(t, e.Cycle(context.Background()), ErrOffline)
	assert.Equal(t, time.Second, sched.Next())
	require.Error(t, e.Cycle(context.Background()))
	assert.Equal(t, 2*time.Second, sched.Next())
	assert.Zero(t, h.api.pollCount())
}

func TestEngine_ReconnectKicksLoop(t *testing.T) {
	defer goleak.VerifyNone(t)

	h := newHarness(t)
	sched := NewScheduler(SchedulerConfig{Base: time.Hour, MaxBackoff: time.Hour})
	e := NewEngine(h.store, h.conn, h.entries, h.faults, sched, logging.Nop())
	unsub := e.WatchNetwork(h.monitor)
	defer unsub()

	require.NoError(t, e.Initialize(context.Background()))
	require.Eventually(t, func() bool { return h.api.pollCount() == 1 }, time.Second, time.Millisecond)

	h.monitor.SetOnline(false)
	h.monitor.SetOnline(true)
	require.Eventually(t, func() bool { return h.api.pollCount() == 2 }, time.Second, time.Millisecond)

	require.NoError(t, e.Stop(context.Background()))
}

func TestEngine_ReinitializeRestartsFullSync(t *testing.T) {
	defer goleak.VerifyNone(t)

	h := newHarness(t)
	sched := NewScheduler(SchedulerConfig{Base: time.Hour, MaxBackoff: time.Hour})
	e := NewEngine(h.store, h.conn, h.entries, h.faults, sched, logging.Nop())

	require.NoError(t, e.Initialize(context.Background()))
	require.Eventually(t, func() bool { return h.api.pollCount() == 1 }, time.Second, time.Millisecond)

	h.store.mu.Lock()
	h.store.raceID = "race-2"
	h.store.mu.Unlock()
	require.NoError(t, e.Initialize(context.Background()))
	require.Eventually(t, func() bool { return h.api.pollCount() == 2 }, time.Second, time.Millisecond)
	require.NoError(t, e.Stop(context.Background()))

	h.api.mu.Lock()
	defer h.api.mu.Unlock()
	assert.Equal(t, "race-2", h.api.polls[1].RaceID)
	assert.Zero(t, h.api.polls[1].Since)
}
