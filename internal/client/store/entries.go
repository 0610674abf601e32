package store

import (
	"context"

	"github.com/jmeckel/ski-race-timer-sub004/internal/client/entries"
	"github.com/jmeckel/ski-race-timer-sub004/internal/client/models"
	"github.com/jmeckel/ski-race-timer-sub004/internal/client/syncqueue"
)

// EntryUpdate is a partial entry edit. Nil fields are left unchanged.
type EntryUpdate struct {
	Bib    *string
	Point  *models.Point
	Run    *int
	Status *models.EntryStatus
}

// NewEntry stamps a crossing recorded on this device.
func (s *Store) NewEntry(bib string, point models.Point, run int) models.Entry {
	at := s.now()
	d := s.Device()
	return models.Entry{
		ID:         models.NewEntryID(d.ID, at),
		Bib:        bib,
		Point:      point,
		Run:        run,
		Timestamp:  models.FormatTimestamp(at),
		Status:     models.StatusOK,
		DeviceID:   d.ID,
		DeviceName: d.Name,
	}
}

// AddEntry appends e. With sync enabled for a race the entry is queued and
// handed to the pusher; other tabs always get a copy. Invalid entries are
// rejected.
func (s *Store) AddEntry(e models.Entry) bool {
	if err := e.Validate(); err != nil {
		s.logger.Warn(context.Background(), "rejected invalid entry", "error", err)
		return false
	}
	s.update(func(c Collaborators) ([]StateKey, func()) {
		s.entries.Set(entries.Add(s.entries.Peek(), e))
		keys := []StateKey{KeyEntries}
		push := s.syncTarget()
		if push {
			s.queue.Set(syncqueue.Enqueue(s.queue.Peek(), e))
			keys = append(keys, KeySyncQueue)
		}
		return keys, func() {
			if c.Broadcaster != nil {
				c.Broadcaster.BroadcastEntry(e)
			}
			if push && c.EntryPusher != nil {
				c.EntryPusher.SendEntry(context.Background(), e)
			}
		}
	})
	return true
}

// DeleteEntry removes the entry locally at once; the remote delete is not awaited.
func (s *Store) DeleteEntry(id string) bool {
	return s.DeleteMultiple([]string{id}) == 1
}

// DeleteMultiple removes every listed entry and returns how many were removed.
func (s *Store) DeleteMultiple(ids []string) int {
	var removed int
	s.update(func(c Collaborators) ([]StateKey, func()) {
		before := s.entries.Peek()
		var list []models.Entry
		list, removed = entries.RemoveMany(before, ids)
		if removed == 0 {
			return nil, nil
		}
		gone := make([]string, 0, removed)
		for _, id := range ids {
			if _, ok := entries.Find(before, id); ok {
				gone = append(gone, id)
			}
		}
		s.entries.Set(list)
		keys := []StateKey{KeyEntries}
		q, dropped := syncqueue.Prune(s.queue.Peek(), func(id string) bool {
			_, ok := entries.Find(list, id)
			return ok
		})
		if dropped > 0 {
			s.queue.Set(q)
			keys = append(keys, KeySyncQueue)
		}
		if ed := s.editing.Peek(); ed != "" {
			if _, ok := entries.Find(list, ed); !ok {
				s.editing.Set("")
				keys = append(keys, KeyEditingEntry)
			}
		}
		remote := s.syncTarget() && c.EntryDeleter != nil
		return keys, func() {
			if c.Photos != nil {
				c.Photos.DeletePhotos(context.Background(), gone)
			}
			if !remote {
				return
			}
			for _, id := range gone {
				c.EntryDeleter.DeleteEntryFromCloud(context.Background(), id)
			}
		}
	})
	return removed
}

// prunePhotos returns the side effect dropping the photos of ids, or nil.
func prunePhotos(c Collaborators, ids []string) func() {
	if c.Photos == nil || len(ids) == 0 {
		return nil
	}
	return func() { c.Photos.DeletePhotos(context.Background(), ids) }
}

func entryIDs(list []models.Entry) []string {
	ids := make([]string, len(list))
	for i, e := range list {
		ids[i] = e.ID
	}
	return ids
}

// UpdateEntry applies u. An edited entry counts as unsynced and is pushed again.
func (s *Store) UpdateEntry(id string, u EntryUpdate) bool {
	ok := false
	s.update(func(c Collaborators) ([]StateKey, func()) {
		var updated models.Entry
		list, found := entries.Update(s.entries.Peek(), id, func(e models.Entry) models.Entry {
			if u.Bib != nil {
				e.Bib = *u.Bib
			}
			if u.Point != nil {
				e.Point = *u.Point
			}
			if u.Run != nil {
				e.Run = *u.Run
			}
			if u.Status != nil {
				e.Status = *u.Status
			}
			e.SyncedAt = nil
			updated = e
			return e
		})
		if !found || updated.Validate() != nil {
			return nil, nil
		}
		ok = true
		s.entries.Set(list)
		keys := []StateKey{KeyEntries}
		push := s.syncTarget() && updated.DeviceID == s.deviceID.Peek()
		if push {
			s.queue.Set(syncqueue.Enqueue(s.queue.Peek(), updated))
			keys = append(keys, KeySyncQueue)
		}
		if !push || c.EntryPusher == nil {
			return keys, nil
		}
		return keys, func() { c.EntryPusher.SendEntry(context.Background(), updated) }
	})
	return ok
}

// ClearAll drops every local entry and the sync queue. Nothing is deleted remotely.
func (s *Store) ClearAll() {
	s.update(func(c Collaborators) ([]StateKey, func()) {
		gone := entryIDs(s.entries.Peek())
		s.entries.Set([]models.Entry{})
		s.queue.Set([]models.SyncQueueItem{})
		keys := []StateKey{KeyEntries, KeySyncQueue}
		if s.editing.Peek() != "" {
			s.editing.Set("")
			keys = append(keys, KeyEditingEntry)
		}
		return keys, prunePhotos(c, gone)
	})
}

// MergeCloudEntries folds entries from the service or another tab into the
// ledger and returns how many were added.
func (s *Store) MergeCloudEntries(incoming []models.Entry, deletedIDs []string, ownDeviceID string) int {
	var added int
	s.update(func(Collaborators) ([]StateKey, func()) {
		res := entries.MergeCloud(s.entries.Peek(), incoming, deletedIDs, ownDeviceID)
		for _, e := range res.Rejected {
			s.logger.Warn(context.Background(), "dropped invalid incoming entry", "entry", e.ID)
		}
		added = res.AddedCount
		if added == 0 {
			return nil, nil
		}
		s.entries.Set(res.Entries)
		return []StateKey{KeyEntries}, nil
	})
	return added
}

func (s *Store) RemoveDeletedCloudEntries(ids []string) int {
	var removed int
	s.update(func(c Collaborators) ([]StateKey, func()) {
		before := s.entries.Peek()
		var list []models.Entry
		list, removed = entries.RemoveDeletedCloud(before, ids)
		if removed == 0 {
			return nil, nil
		}
		gone := make([]string, 0, removed)
		for _, id := range ids {
			if _, ok := entries.Find(before, id); ok {
				gone = append(gone, id)
			}
		}
		s.entries.Set(list)
		return []StateKey{KeyEntries}, prunePhotos(c, gone)
	})
	return removed
}

func (s *Store) MarkEntriesSynced(ids []string) int {
	var n int
	s.update(func(Collaborators) ([]StateKey, func()) {
		var list []models.Entry
		list, n = entries.MarkSynced(s.entries.Peek(), ids, s.nowMillis())
		if n == 0 {
			return nil, nil
		}
		s.entries.Set(list)
		return []StateKey{KeyEntries}, nil
	})
	return n
}

func (s *Store) DequeueEntry(id string) bool {
	var ok bool
	s.update(func(Collaborators) ([]StateKey, func()) {
		var q []models.SyncQueueItem
		q, ok = syncqueue.Dequeue(s.queue.Peek(), id)
		if !ok {
			return nil, nil
		}
		s.queue.Set(q)
		return []StateKey{KeySyncQueue}, nil
	})
	return ok
}

// RecordSyncFailure bumps the retry bookkeeping of a queued entry.
func (s *Store) RecordSyncFailure(id string, cause error) bool {
	var ok bool
	s.update(func(Collaborators) ([]StateKey, func()) {
		var q []models.SyncQueueItem
		q, ok = syncqueue.RecordFailure(s.queue.Peek(), id, cause, s.nowMillis())
		if !ok {
			return nil, nil
		}
		s.queue.Set(q)
		return []StateKey{KeySyncQueue}, nil
	})
	return ok
}

// SetEditingEntry selects the entry being edited; "" clears it.
func (s *Store) SetEditingEntry(id string) bool {
	ok := false
	s.update(func(Collaborators) ([]StateKey, func()) {
		if id != "" {
			if _, found := entries.Find(s.entries.Peek(), id); !found {
				return nil, nil
			}
		}
		ok = true
		if s.editing.Peek() == id {
			return nil, nil
		}
		s.editing.Set(id)
		return []StateKey{KeyEditingEntry}, nil
	})
	return ok
}
