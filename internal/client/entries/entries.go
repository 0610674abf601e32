// Package entries holds the pure functions behind the entries slice: append,
// delete and the cloud merge-and-dedup protocol. Functions never modify their
// input slices; they return new ones for the Store to install.
package entries

import (
	"sort"
	"time"

	"github.com/jmeckel/ski-race-timer-sub004/internal/client/models"
)

// Add appends e.
func Add(list []models.Entry, e models.Entry) []models.Entry {
	out := make([]models.Entry, 0, len(list)+1)
	out = append(out, list...)
	return append(out, e)
}

// Remove drops the entry with id. The bool reports whether anything was removed.
func Remove(list []models.Entry, id string) ([]models.Entry, bool) {
	out, n := RemoveMany(list, []string{id})
	return out, n > 0
}

// RemoveMany drops every entry whose id is in ids and returns how many went.
func RemoveMany(list []models.Entry, ids []string) ([]models.Entry, int) {
	drop := toSet(ids)
	out := make([]models.Entry, 0, len(list))
	for _, e := range list {
		if _, gone := drop[e.ID]; gone {
			continue
		}
		out = append(out, e)
	}
	return out, len(list) - len(out)
}

// Update applies fn to the entry with id. The ID cannot be changed.
func Update(list []models.Entry, id string, fn func(models.Entry) models.Entry) ([]models.Entry, bool) {
	out := make([]models.Entry, len(list))
	copy(out, list)
	for i := range out {
		if out[i].ID == id {
			updated := fn(out[i])
			updated.ID = id
			out[i] = updated
			return out, true
		}
	}
	return list, false
}

// Find returns the entry with id.
func Find(list []models.Entry, id string) (models.Entry, bool) {
	for _, e := range list {
		if e.ID == id {
			return e, true
		}
	}
	return models.Entry{}, false
}

// MergeResult is the outcome of MergeCloud.
type MergeResult struct {
	Entries    []models.Entry
	AddedCount int
	// Rejected lists incoming entries that failed validation.
	Rejected []models.Entry
}

// MergeCloud folds incoming entries into local.
//
// An incoming entry is skipped when its id is listed in deletedIDs (for this
// call only, deletedIDs is not a persistent tombstone), when an entry with the
// same id already exists locally or earlier in the batch, when it was recorded
// by ownDeviceID (a device never re-absorbs its own round-tripped copy), or
// when it is invalid. An empty ownDeviceID disables the device check, which
// same-device tab mirroring relies on. The result is sorted by timestamp.
func MergeCloud(local, incoming []models.Entry, deletedIDs []string, ownDeviceID string) MergeResult {
	deleted := toSet(deletedIDs)
	seen := make(map[string]struct{}, len(local)+len(incoming))
	for _, e := range local {
		seen[e.ID] = struct{}{}
	}

	out := make([]models.Entry, 0, len(local)+len(incoming))
	out = append(out, local...)

	res := MergeResult{}
	for _, e := range incoming {
		if _, gone := deleted[e.ID]; gone {
			continue
		}
		if _, dup := seen[e.ID]; dup {
			continue
		}
		if ownDeviceID != "" && e.DeviceID == ownDeviceID {
			continue
		}
		if err := e.Validate(); err != nil {
			res.Rejected = append(res.Rejected, e)
			continue
		}
		seen[e.ID] = struct{}{}
		out = append(out, e)
		res.AddedCount++
	}

	SortByTimestamp(out)
	res.Entries = out
	return res
}

// RemoveDeletedCloud drops local entries listed in deletedIDs.
func RemoveDeletedCloud(list []models.Entry, deletedIDs []string) ([]models.Entry, int) {
	if len(deletedIDs) == 0 {
		return list, 0
	}
	return RemoveMany(list, deletedIDs)
}

// MarkSynced stamps SyncedAt on the listed entries.
func MarkSynced(list []models.Entry, ids []string, at int64) ([]models.Entry, int) {
	want := toSet(ids)
	out := make([]models.Entry, len(list))
	copy(out, list)
	n := 0
	for i := range out {
		if _, ok := want[out[i].ID]; ok {
			stamp := at
			out[i].SyncedAt = &stamp
			n++
		}
	}
	return out, n
}

// Unsynced returns the entries recorded by deviceID that the service has not confirmed.
func Unsynced(list []models.Entry, deviceID string) []models.Entry {
	var out []models.Entry
	for _, e := range list {
		if e.DeviceID == deviceID && e.SyncedAt == nil {
			out = append(out, e)
		}
	}
	return out
}

// SortByTimestamp orders entries by timestamp ascending; ties keep their order.
// Unparseable timestamps sort first.
func SortByTimestamp(list []models.Entry) {
	keys := make(map[string]time.Time, len(list))
	for _, e := range list {
		t, _ := models.ParseTimestamp(e.Timestamp)
		keys[e.ID] = t
	}
	sort.SliceStable(list, func(i, j int) bool {
		return keys[list[i].ID].Before(keys[list[j].ID])
	})
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
