package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jmeckel/ski-race-timer-sub004/internal/client/client"
	"github.com/jmeckel/ski-race-timer-sub004/internal/client/faults"
	"github.com/jmeckel/ski-race-timer-sub004/internal/client/models"
	"github.com/jmeckel/ski-race-timer-sub004/internal/client/network"
	"github.com/jmeckel/ski-race-timer-sub004/internal/logging"
)

const kindFaults = "faults"

// FaultSync polls and pushes fault reports. It shares the Connection with
// EntrySync and runs in the same cycle.
type FaultSync struct {
	api     client.Client
	store   StateStore
	conn    *Connection
	monitor *network.Monitor
	logger  logging.Logger

	group singleflight.Group

	mu       sync.Mutex
	lastSync int64
}

func NewFaultSync(api client.Client, store StateStore, conn *Connection, monitor *network.Monitor, logger logging.Logger) *FaultSync {
	return &FaultSync{
		api:     api,
		store:   store,
		conn:    conn,
		monitor: monitor,
		logger:  logger.With("service", kindFaults),
	}
}

func (s *FaultSync) ResetDelta() {
	s.mu.Lock()
	s.lastSync = 0
	s.mu.Unlock()
}

func (s *FaultSync) online() bool {
	return s.monitor == nil || s.monitor.IsOnline()
}

// Poll fetches fault changes and merges them by id and version.
func (s *FaultSync) Poll(ctx context.Context) (PollResult, error) {
	v, err, _ := s.group.Do("poll", func() (any, error) {
		return s.poll(ctx)
	})
	res, _ := v.(PollResult)
	return res, err
}

func (s *FaultSync) poll(ctx context.Context) (PollResult, error) {
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
	s.mu.Lock()
	since := s.lastSync
	s.mu.Unlock()

	started := time.Now()
	resp, err := s.api.PollFaults(ctx, client.PollRequest{
		RaceID:     raceID,
		DeviceID:   device.ID,
		DeviceName: device.Name,
		Since:      since,
	})
	elapsed := time.Since(started).Seconds()
	if err != nil {
		s.conn.metrics.RecordPoll(kindFaults, "error", elapsed)
		stopped := s.conn.Fail(ctx, "poll faults", err)
		return PollResult{Stopped: stopped}, fmt.Errorf("poll faults: %w", err)
	}
	if resp.Deleted {
		s.conn.metrics.RecordPoll(kindFaults, "race_deleted", elapsed)
		s.conn.RaceDeleted(ctx, raceID, resp.Message)
		return PollResult{Stopped: true}, nil
	}
	s.conn.metrics.RecordPoll(kindFaults, "ok", elapsed)

	var res PollResult
	res.Added, res.Updated = s.store.MergeFaultsFromCloud(resp.Faults, resp.DeletedIDs)
	res.Removed = s.store.RemoveDeletedCloudFaults(resp.DeletedIDs)
	s.conn.UpdateAdvisory(resp.Advisory)

	if resp.LastUpdated > 0 {
		s.mu.Lock()
		s.lastSync = resp.LastUpdated
		s.mu.Unlock()
	}
	s.conn.Succeed()

	s.conn.metrics.RecordMerged(kindFaults, res.Added+res.Updated)
	if res.Added+res.Updated > 0 {
		s.conn.Publish(Event{Kind: EventFaultsSynced, RaceID: raceID, Count: res.Added + res.Updated})
	}
	s.logger.Debug(ctx, "faults polled", "since", since, "added", res.Added, "updated", res.Updated, "removed", res.Removed)
	return res, nil
}

// PushFault sends the current snapshot of f. The Store calls it after every
// local transition; a failure never rolls the transition back.
func (s *FaultSync) PushFault(ctx context.Context, f models.FaultEntry) {
	if ready(s.store) != nil || !s.online() {
		return
	}
	_ = s.push(ctx, f)
}

// PushLocalFaults re-sends every fault the service has not confirmed.
func (s *FaultSync) PushLocalFaults(ctx context.Context) error {
	if err := ready(s.store); err != nil {
		return err
	}
	if !s.online() {
		return ErrOffline
	}
	var firstErr error
	for _, f := range faults.Unsynced(s.store.Faults()) {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := s.push(ctx, f)
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

func (s *FaultSync) push(ctx context.Context, f models.FaultEntry) error {
	raceID := s.store.RaceID()
	resp, err := s.api.SendFault(ctx, raceID, f, s.store.Device())
	if err != nil {
		s.conn.metrics.RecordPush(kindFaults, "error")
		if client.IsAuthExpired(err) {
			s.conn.Fail(ctx, "push fault", err)
			return err
		}
		s.logger.Warn(ctx, "failed to push fault", "fault", f.ID, "error", err)
		s.conn.Publish(Event{Kind: EventPushFailed, RaceID: raceID, FaultID: f.ID, Err: err})
		return err
	}
	s.conn.UpdateAdvisory(resp.Advisory)

	switch {
	case resp.Deleted:
		s.conn.metrics.RecordPush(kindFaults, "race_deleted")
		s.logger.Info(ctx, "push rejected, race deleted", "fault", f.ID, "race", raceID)
		return nil
	case !resp.Success:
		s.conn.metrics.RecordPush(kindFaults, "rejected")
		err := fmt.Errorf("push fault %s rejected: %s", f.ID, resp.Message)
		s.conn.Publish(Event{Kind: EventPushFailed, RaceID: raceID, FaultID: f.ID, Err: err})
		return err
	}

	s.conn.metrics.RecordPush(kindFaults, "ok")
	s.store.MarkFaultSynced(f.ID, f.CurrentVersion)
	return nil
}

// DeleteFault asks the service to drop an approved or deleted fault.
func (s *FaultSync) DeleteFault(ctx context.Context, f models.FaultEntry) {
	if ready(s.store) != nil || !s.online() {
		return
	}
	raceID := s.store.RaceID()
	err := s.api.DeleteFault(ctx, raceID, f.ID, s.store.Device())
	if err == nil {
		s.conn.metrics.RecordDelete(kindFaults, "ok")
		return
	}
	s.conn.metrics.RecordDelete(kindFaults, "error")
	if client.IsAuthExpired(err) {
		s.conn.Fail(ctx, "delete fault", err)
		return
	}
	s.logger.Warn(ctx, "failed to delete fault from cloud", "fault", f.ID, "error", err)
	s.conn.Publish(Event{Kind: EventDeleteFailed, RaceID: raceID, FaultID: f.ID, Err: err})
}
