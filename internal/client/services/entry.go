package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jmeckel/ski-race-timer-sub004/internal/client/client"
	"github.com/jmeckel/ski-race-timer-sub004/internal/client/entries"
	"github.com/jmeckel/ski-race-timer-sub004/internal/client/models"
	"github.com/jmeckel/ski-race-timer-sub004/internal/client/network"
	"github.com/jmeckel/ski-race-timer-sub004/internal/client/repositories/photos"
	"github.com/jmeckel/ski-race-timer-sub004/internal/logging"
)

const kindEntries = "entries"

// PollResult summarizes one poll.
type PollResult struct {
	Added   int
	Updated int
	Removed int
	// Stopped is set when the poll ended syncing (race deleted, credential expired).
	Stopped bool
}

// Changed reports whether the poll altered local state.
func (r PollResult) Changed() bool {
	return r.Added+r.Updated+r.Removed > 0
}

// EntrySync polls and pushes timing entries.
type EntrySync struct {
	api     client.Client
	store   StateStore
	conn    *Connection
	monitor *network.Monitor
	photos  photoSync
	logger  logging.Logger

	group singleflight.Group

	mu       sync.Mutex
	lastSync int64
	inflight map[string]bool // entry id -> push again once the current one ends
}

func NewEntrySync(api client.Client, store StateStore, conn *Connection, monitor *network.Monitor, blobs photos.Store, logger logging.Logger) *EntrySync {
	logger = logger.With("service", kindEntries)
	return &EntrySync{
		api:      api,
		store:    store,
		conn:     conn,
		monitor:  monitor,
		photos:   photoSync{store: blobs, logger: logger},
		logger:   logger,
		inflight: make(map[string]bool),
	}
}

// ResetDelta makes the next poll a full sync.
func (s *EntrySync) ResetDelta() {
	s.mu.Lock()
	s.lastSync = 0
	s.mu.Unlock()
}

// LastSync returns the lastUpdated of the last successful poll.
func (s *EntrySync) LastSync() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSync
}

func (s *EntrySync) online() bool {
	return s.monitor == nil || s.monitor.IsOnline()
}

// ready reports whether a round trip may be attempted at all.
func ready(store StateStore) error {
	switch {
	case !store.Settings().Sync:
		return ErrSyncDisabled
	case store.RaceID() == "":
		return ErrNoRace
	case store.AuthToken() == "":
		return ErrNoCredential
	}
	return nil
}

// Poll fetches entries newer than the last confirmed sync and merges them.
// Concurrent calls share one request.
func (s *EntrySync) Poll(ctx context.Context) (PollResult, error) {
	v, err, _ := s.group.Do("poll", func() (any, error) {
		return s.poll(ctx)
	})
	res, _ := v.(PollResult)
	return res, err
}

func (s *EntrySync) poll(ctx context.Context) (PollResult, error) {
	if err := ready(s.store); err != nil {
		return PollResult{}, err
	}
	if !s.online() {
		s.conn.Offline()
		return PollResult{}, ErrOffline
	}

	s.conn.BeginPoll()

	raceID := s.store.RaceID()
	device := s.store.Device()
	since := s.LastSync()

	started := time.Now()
	resp, err := s.api.PollEntries(ctx, client.PollRequest{
		RaceID:     raceID,
		DeviceID:   device.ID,
		DeviceName: device.Name,
		Since:      since,
	})
	elapsed := time.Since(started).Seconds()
	if err != nil {
		s.conn.metrics.RecordPoll(kindEntries, "error", elapsed)
		stopped := s.conn.Fail(ctx, "poll entries", err)
		return PollResult{Stopped: stopped}, fmt.Errorf("poll entries: %w", err)
	}
	if resp.Deleted {
		s.conn.metrics.RecordPoll(kindEntries, "race_deleted", elapsed)
		s.conn.RaceDeleted(ctx, raceID, resp.Message)
		return PollResult{Stopped: true}, nil
	}
	s.conn.metrics.RecordPoll(kindEntries, "ok", elapsed)

	incoming := s.photos.incoming(ctx, resp.Entries, s.store.Settings().SyncPhotos)
	res := PollResult{
		Added:   s.store.MergeCloudEntries(incoming, resp.DeletedIDs, device.ID),
		Removed: s.store.RemoveDeletedCloudEntries(resp.DeletedIDs),
	}
	s.conn.UpdateAdvisory(resp.Advisory)

	if resp.LastUpdated > 0 {
		s.mu.Lock()
		s.lastSync = resp.LastUpdated
		s.mu.Unlock()
	}
	s.conn.Succeed()

	s.conn.metrics.RecordMerged(kindEntries, res.Added)
	if res.Added > 0 {
		s.conn.Publish(Event{Kind: EventEntriesSynced, RaceID: raceID, Count: res.Added})
	}
	s.logger.Debug(ctx, "entries polled", "since", since, "added", res.Added, "removed", res.Removed)
	return res, nil
}

// PushLocalEntries sends, one at a time, every entry this device recorded
// that the service has not confirmed. It stops early on an expired credential.
func (s *EntrySync) PushLocalEntries(ctx context.Context) error {
	if err := ready(s.store); err != nil {
		return err
	}
	if !s.online() {
		return ErrOffline
	}
	pending := entries.Unsynced(s.store.Entries(), s.store.Device().ID)
	var firstErr error
	for _, e := range pending {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := s.push(ctx, e)
		if err == nil {
			continue
		}
		if client.IsAuthExpired(err) {
			return err
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// SendEntry pushes a freshly recorded entry. When sync is not possible the
// entry simply stays unsynced for a later push.
func (s *EntrySync) SendEntry(ctx context.Context, e models.Entry) {
	if ready(s.store) != nil || !s.online() {
		return
	}
	_ = s.push(ctx, e)
}

// push sends e unless a push for the same id is already running. In that
// case the running push sends the Store's current copy once more when it
// ends, so an edit made mid-flight still reaches the service.
func (s *EntrySync) push(ctx context.Context, e models.Entry) error {
	for {
		if !s.claim(e.ID) {
			return nil
		}
		err := s.send(ctx, e)
		if again := s.release(e.ID); !again || err != nil {
			return err
		}
		cur, ok := entries.Find(s.store.Entries(), e.ID)
		if !ok {
			return nil
		}
		e = cur
	}
}

func (s *EntrySync) claim(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[id]; busy {
		s.inflight[id] = true
		return false
	}
	s.inflight[id] = false
	return true
}

func (s *EntrySync) release(id string) (again bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	again = s.inflight[id]
	delete(s.inflight, id)
	return again
}

func (s *EntrySync) send(ctx context.Context, e models.Entry) error {
	raceID := s.store.RaceID()
	device := s.store.Device()
	wire := s.photos.outgoing(ctx, e, s.store.Settings().SyncPhotos)

	resp, err := s.api.SendEntry(ctx, raceID, wire, device)
	if err != nil {
		s.conn.metrics.RecordPush(kindEntries, "error")
		if client.IsAuthExpired(err) {
			s.conn.Fail(ctx, "push entry", err)
			return err
		}
		s.logger.Warn(ctx, "failed to push entry", "entry", e.ID, "error", err)
		s.store.RecordSyncFailure(e.ID, err)
		s.conn.Publish(Event{Kind: EventPushFailed, RaceID: raceID, EntryID: e.ID, Err: err})
		return err
	}
	s.conn.UpdateAdvisory(resp.Advisory)

	if resp.Deleted {
		// The race is gone; keep the entry unsynced and queued so it can be
		// re-associated if the race reappears.
		s.conn.metrics.RecordPush(kindEntries, "race_deleted")
		s.logger.Info(ctx, "push rejected, race deleted", "entry", e.ID, "race", raceID)
		return nil
	}
	if !resp.Success {
		s.conn.metrics.RecordPush(kindEntries, "rejected")
		err := fmt.Errorf("push entry %s rejected: %s", e.ID, resp.Message)
		s.store.RecordSyncFailure(e.ID, err)
		s.conn.Publish(Event{Kind: EventPushFailed, RaceID: raceID, EntryID: e.ID, Err: err})
		return err
	}

	s.conn.metrics.RecordPush(kindEntries, "ok")
	s.store.MarkEntriesSynced([]string{e.ID})
	s.store.DequeueEntry(e.ID)

	if resp.PhotoSkipped {
		s.conn.Publish(Event{Kind: EventPhotoTooLarge, RaceID: raceID, EntryID: e.ID})
	}
	if resp.CrossDeviceDuplicate != nil {
		s.conn.Publish(Event{Kind: EventCrossDeviceDuplicate, RaceID: raceID, EntryID: e.ID, Duplicate: resp.CrossDeviceDuplicate})
	}
	return nil
}

// DeleteEntryFromCloud asks the service to drop an entry. Failures are
// reported on the events bus; the local deletion stands either way.
func (s *EntrySync) DeleteEntryFromCloud(ctx context.Context, entryID string) {
	if ready(s.store) != nil || !s.online() {
		return
	}
	raceID := s.store.RaceID()
	err := s.api.DeleteEntry(ctx, raceID, entryID, s.store.Device())
	if err == nil {
		s.conn.metrics.RecordDelete(kindEntries, "ok")
		return
	}
	s.conn.metrics.RecordDelete(kindEntries, "error")
	if client.IsAuthExpired(err) {
		s.conn.Fail(ctx, "delete entry", err)
		return
	}
	s.logger.Warn(ctx, "failed to delete entry from cloud", "entry", entryID, "error", err)
	s.conn.Publish(Event{Kind: EventDeleteFailed, RaceID: raceID, EntryID: entryID, Err: err})
}
