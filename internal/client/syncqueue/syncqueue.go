// Package syncqueue holds the pure functions behind the pending-push queue.
// Retry bookkeeping (RecordAttempt, RecordFailure) belongs to the sync service.
package syncqueue

import "github.com/jmeckel/ski-race-timer-sub004/internal/client/models"

// Enqueue adds e to the queue. An item already queued for the same entry id
// is replaced and its retry state reset.
func Enqueue(q []models.SyncQueueItem, e models.Entry) []models.SyncQueueItem {
	out, _ := Dequeue(q, e.ID)
	return append(out, models.SyncQueueItem{Entry: e})
}

// Dequeue removes the item for entryID.
func Dequeue(q []models.SyncQueueItem, entryID string) ([]models.SyncQueueItem, bool) {
	out := make([]models.SyncQueueItem, 0, len(q)+1)
	found := false
	for _, item := range q {
		if item.Entry.ID == entryID {
			found = true
			continue
		}
		out = append(out, item)
	}
	return out, found
}

// Find returns the item for entryID.
func Find(q []models.SyncQueueItem, entryID string) (models.SyncQueueItem, bool) {
	for _, item := range q {
		if item.Entry.ID == entryID {
			return item, true
		}
	}
	return models.SyncQueueItem{}, false
}

// RecordAttempt stamps LastAttempt without counting a failure.
func RecordAttempt(q []models.SyncQueueItem, entryID string, at int64) ([]models.SyncQueueItem, bool) {
	return update(q, entryID, func(item *models.SyncQueueItem) {
		item.LastAttempt = at
	})
}

// RecordFailure increments RetryCount and keeps the last error message.
func RecordFailure(q []models.SyncQueueItem, entryID string, cause error, at int64) ([]models.SyncQueueItem, bool) {
	return update(q, entryID, func(item *models.SyncQueueItem) {
		item.RetryCount++
		item.LastAttempt = at
		if cause != nil {
			item.Error = cause.Error()
		}
	})
}

// Prune drops items whose entry no longer exists in the ledger.
func Prune(q []models.SyncQueueItem, keep func(entryID string) bool) ([]models.SyncQueueItem, int) {
	out := make([]models.SyncQueueItem, 0, len(q))
	for _, item := range q {
		if keep(item.Entry.ID) {
			out = append(out, item)
		}
	}
	return out, len(q) - len(out)
}

func update(q []models.SyncQueueItem, entryID string, fn func(*models.SyncQueueItem)) ([]models.SyncQueueItem, bool) {
	for i := range q {
		if q[i].Entry.ID != entryID {
			continue
		}
		out := make([]models.SyncQueueItem, len(q))
		copy(out, q)
		fn(&out[i])
		return out, true
	}
	return q, false
}
