package services

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/jmeckel/ski-race-timer-sub004/internal/client/client"
	"github.com/jmeckel/ski-race-timer-sub004/internal/client/models"
	"github.com/jmeckel/ski-race-timer-sub004/internal/client/notify"
	"github.com/jmeckel/ski-race-timer-sub004/internal/logging"
)

// Classify maps a failed round trip to the status it should leave behind.
// Requests that never reached the service are offline; everything else,
// including 5xx, timeouts and a 401 without the expired flag, is an error.
func Classify(err error) models.SyncStatus {
	switch {
	case err == nil:
		return models.SyncConnected
	case errors.Is(err, ErrOffline), errors.Is(err, client.ErrNetwork):
		return models.SyncOffline
	case errors.Is(err, client.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return models.SyncError
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "failed to fetch") || strings.Contains(msg, "networkerror") {
		return models.SyncOffline
	}
	return models.SyncError
}

// Connection owns the sync status shared by the entry and fault services.
type Connection struct {
	store   StateStore
	events  *notify.Bus[Event]
	metrics *Metrics
	logger  logging.Logger

	mu     sync.Mutex
	onStop func()
}

func NewConnection(store StateStore, events *notify.Bus[Event], metrics *Metrics, logger logging.Logger) *Connection {
	return &Connection{store: store, events: events, metrics: metrics, logger: logger}
}

// OnStop sets the function called when a failure must stop syncing.
func (c *Connection) OnStop(fn func()) {
	c.mu.Lock()
	c.onStop = fn
	c.mu.Unlock()
}

func (c *Connection) stop() {
	c.mu.Lock()
	fn := c.onStop
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Status returns the current indicator.
func (c *Connection) Status() models.SyncStatus {
	return c.store.SyncStatus()
}

// BeginPoll shows syncing, but only over a connected indicator so a failing
// station never displays false progress.
func (c *Connection) BeginPoll() {
	if c.store.SyncStatus() == models.SyncConnected {
		c.store.SetSyncStatus(models.SyncSyncing)
	}
}

// Succeed marks the connection healthy.
func (c *Connection) Succeed() {
	c.store.SetSyncStatus(models.SyncConnected)
}

// Offline records a skipped round trip.
func (c *Connection) Offline() {
	if c.store.SyncStatus() != models.SyncOffline {
		c.store.SetSyncStatus(models.SyncOffline)
	}
}

// Fail applies a failed round trip. It reports true when the failure was an
// expired credential, in which case syncing has been stopped.
func (c *Connection) Fail(ctx context.Context, op string, err error) bool {
	if client.IsAuthExpired(err) {
		c.logger.Warn(ctx, "credential expired, stopping sync", "op", op)
		c.store.ClearAuthToken()
		c.store.SetSyncStatus(models.SyncDisconnected)
		c.Publish(Event{Kind: EventAuthExpired, RaceID: c.store.RaceID(), Err: err})
		c.stop()
		return true
	}

	status := Classify(err)
	c.logger.Warn(ctx, "sync request failed", "op", op, "status", status, "error", err)
	c.store.SetSyncStatus(status)
	return false
}

// RaceDeleted reports that the service dropped the race and stops syncing.
func (c *Connection) RaceDeleted(ctx context.Context, raceID, message string) {
	c.logger.Info(ctx, "race deleted on the service", "race", raceID, "message", message)
	c.Publish(Event{Kind: EventRaceDeleted, RaceID: raceID, Message: message})
	c.stop()
}

// UpdateAdvisory copies device count and highest bib into the Store.
func (c *Connection) UpdateAdvisory(a client.Advisory) {
	if a.DeviceCount == nil && a.HighestBib == nil {
		return
	}
	c.store.SetCloudInfo(a.DeviceCount, a.HighestBib)
}

// Publish sends e to the events bus.
func (c *Connection) Publish(e Event) {
	if c.events != nil {
		c.events.Notify(e)
	}
}
