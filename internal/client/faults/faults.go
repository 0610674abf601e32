// Package faults holds the pure functions behind the faults slice: the
// versioned edit/restore/soft-delete state machine and the cloud merge.
//
// A fault is live while MarkedForDeletion is false and pending-deletion
// otherwise. Version history is append-only: restoring an old version appends
// a new "restore" step carrying that version's data.
package faults

import (
	"sort"
	"time"

	"github.com/jmeckel/ski-race-timer-sub004/internal/client/models"
)

// NewID builds "fault-<deviceId>-<unixMillis>-<random>".
func NewID(deviceID string, at time.Time) string {
	return "fault-" + models.NewEntryID(deviceID, at)
}

// New builds version 1 of a fault.
func New(id string, s models.FaultSnapshot, by models.DeviceIdentity, at time.Time) models.FaultEntry {
	ts := models.FormatTimestamp(at)
	f := models.FaultEntry{
		ID:             id,
		Timestamp:      ts,
		DeviceID:       by.ID,
		DeviceName:     by.Name,
		CurrentVersion: 1,
		VersionHistory: []models.FaultVersion{{
			Version:          1,
			Timestamp:        ts,
			EditedBy:         by.Name,
			EditedByDeviceID: by.ID,
			ChangeType:       models.ChangeCreate,
			Data:             s,
		}},
	}
	f.Apply(s)
	return f
}

// Edit applies u to a live fault and records it as a new version.
// A pending-deletion fault is returned unchanged with false.
func Edit(f models.FaultEntry, u models.FaultUpdate, description string, by models.DeviceIdentity, at time.Time) (models.FaultEntry, bool) {
	if f.MarkedForDeletion {
		return f, false
	}
	merged := f.Snapshot().Merge(u)
	return appendVersion(f, models.ChangeEdit, merged, description, by, at), true
}

// Restore makes version n's data live again by appending a "restore" step.
// It is a no-op when n is unknown, already current, or the fault is pending deletion.
func Restore(f models.FaultEntry, n int, by models.DeviceIdentity, at time.Time) (models.FaultEntry, bool) {
	if f.MarkedForDeletion || n == f.CurrentVersion {
		return f, false
	}
	v, ok := f.Version(n)
	if !ok {
		return f, false
	}
	return appendVersion(f, models.ChangeRestore, v.Data, "", by, at), true
}

func appendVersion(f models.FaultEntry, ct models.ChangeType, s models.FaultSnapshot, description string, by models.DeviceIdentity, at time.Time) models.FaultEntry {
	out := f.Clone()
	out.CurrentVersion++
	out.VersionHistory = append(out.VersionHistory, models.FaultVersion{
		Version:           out.CurrentVersion,
		Timestamp:         models.FormatTimestamp(at),
		EditedBy:          by.Name,
		EditedByDeviceID:  by.ID,
		ChangeType:        ct,
		Data:              s,
		ChangeDescription: description,
	})
	out.Apply(s)
	out.SyncedAt = nil
	return out
}

// MarkForDeletion moves a live fault to pending-deletion.
func MarkForDeletion(f models.FaultEntry, by models.DeviceIdentity, at time.Time) (models.FaultEntry, bool) {
	if f.MarkedForDeletion {
		return f, false
	}
	out := f.Clone()
	out.MarkedForDeletion = true
	out.MarkedForDeletionBy = by.Name
	out.MarkedForDeletionByDeviceID = by.ID
	out.MarkedForDeletionAt = models.FormatTimestamp(at)
	out.SyncedAt = nil
	return out, true
}

// RejectDeletion returns a pending-deletion fault to live.
func RejectDeletion(f models.FaultEntry) (models.FaultEntry, bool) {
	if !f.MarkedForDeletion {
		return f, false
	}
	out := f.Clone()
	out.MarkedForDeletion = false
	out.MarkedForDeletionBy = ""
	out.MarkedForDeletionByDeviceID = ""
	out.MarkedForDeletionAt = ""
	out.SyncedAt = nil
	return out, true
}

// ApproveDeletion stamps the approval on a pending-deletion fault and drops
// it from list. The approved fault is returned for the cloud delete.
func ApproveDeletion(list []models.FaultEntry, id, approver string, at time.Time) ([]models.FaultEntry, models.FaultEntry, bool) {
	f, ok := Find(list, id)
	if !ok || !f.MarkedForDeletion {
		return list, models.FaultEntry{}, false
	}
	f = f.Clone()
	f.DeletionApprovedBy = approver
	f.DeletionApprovedAt = models.FormatTimestamp(at)
	out, _ := Remove(list, id)
	return out, f, true
}

// Add appends f.
func Add(list []models.FaultEntry, f models.FaultEntry) []models.FaultEntry {
	out := make([]models.FaultEntry, 0, len(list)+1)
	out = append(out, list...)
	return append(out, f)
}

// Find returns the fault with id.
func Find(list []models.FaultEntry, id string) (models.FaultEntry, bool) {
	for _, f := range list {
		if f.ID == id {
			return f, true
		}
	}
	return models.FaultEntry{}, false
}

// Replace swaps in f for the fault with the same id.
func Replace(list []models.FaultEntry, f models.FaultEntry) ([]models.FaultEntry, bool) {
	for i := range list {
		if list[i].ID == f.ID {
			out := make([]models.FaultEntry, len(list))
			copy(out, list)
			out[i] = f
			return out, true
		}
	}
	return list, false
}

// Remove drops the fault with id.
func Remove(list []models.FaultEntry, id string) ([]models.FaultEntry, bool) {
	out, n := RemoveDeletedCloud(list, []string{id})
	return out, n > 0
}

// MergeResult is the outcome of MergeCloud.
type MergeResult struct {
	Faults       []models.FaultEntry
	AddedCount   int
	UpdatedCount int
	Rejected     []models.FaultEntry
}

// MergeCloud folds incoming faults into local. Faults are matched by id only,
// never by content: two devices reporting the same gate keep both reports.
// An existing fault is replaced when the incoming copy has a higher version,
// or the same version with a different deletion marking. Ids in deletedIDs are
// skipped for this call only.
func MergeCloud(local, incoming []models.FaultEntry, deletedIDs []string) MergeResult {
	deleted := toSet(deletedIDs)
	out := make([]models.FaultEntry, len(local), len(local)+len(incoming))
	copy(out, local)
	index := make(map[string]int, len(out))
	for i, f := range out {
		index[f.ID] = i
	}

	res := MergeResult{}
	for _, f := range incoming {
		if _, gone := deleted[f.ID]; gone {
			continue
		}
		if err := f.Validate(); err != nil {
			res.Rejected = append(res.Rejected, f)
			continue
		}
		i, exists := index[f.ID]
		if !exists {
			index[f.ID] = len(out)
			out = append(out, f.Clone())
			res.AddedCount++
			continue
		}
		cur := out[i]
		if f.CurrentVersion > cur.CurrentVersion ||
			(f.CurrentVersion == cur.CurrentVersion && f.MarkedForDeletion != cur.MarkedForDeletion) {
			out[i] = f.Clone()
			res.UpdatedCount++
		}
	}

	SortByTimestamp(out)
	res.Faults = out
	return res
}

// RemoveDeletedCloud drops local faults listed in deletedIDs.
func RemoveDeletedCloud(list []models.FaultEntry, deletedIDs []string) ([]models.FaultEntry, int) {
	if len(deletedIDs) == 0 {
		return list, 0
	}
	drop := toSet(deletedIDs)
	out := make([]models.FaultEntry, 0, len(list))
	for _, f := range list {
		if _, gone := drop[f.ID]; gone {
			continue
		}
		out = append(out, f)
	}
	return out, len(list) - len(out)
}

// MarkSynced stamps SyncedAt on the fault with id if it is still at version.
// A fault edited again while the push was in flight stays unsynced.
func MarkSynced(list []models.FaultEntry, id string, version int, at int64) ([]models.FaultEntry, bool) {
	for i := range list {
		if list[i].ID != id || list[i].CurrentVersion != version {
			continue
		}
		out := make([]models.FaultEntry, len(list))
		copy(out, list)
		stamp := at
		out[i].SyncedAt = &stamp
		return out, true
	}
	return list, false
}

// Unsynced returns faults the service has not confirmed.
func Unsynced(list []models.FaultEntry) []models.FaultEntry {
	var out []models.FaultEntry
	for _, f := range list {
		if f.SyncedAt == nil {
			out = append(out, f)
		}
	}
	return out
}

// SortByTimestamp orders faults by creation timestamp; ties keep their order.
func SortByTimestamp(list []models.FaultEntry) {
	keys := make(map[string]time.Time, len(list))
	for _, f := range list {
		t, _ := models.ParseTimestamp(f.Timestamp)
		keys[f.ID] = t
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
