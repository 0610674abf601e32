package store

import (
	"context"

	"github.com/jmeckel/ski-race-timer-sub004/internal/client/faults"
	"github.com/jmeckel/ski-race-timer-sub004/internal/client/models"
)

// faultTransition replaces the fault with id by the result of fn and pushes
// the new snapshot to the syncer and other tabs.
func (s *Store) faultTransition(id string, fn func(models.FaultEntry) (models.FaultEntry, bool)) bool {
	ok := false
	s.update(func(c Collaborators) ([]StateKey, func()) {
		list := s.faults.Peek()
		f, found := faults.Find(list, id)
		if !found {
			return nil, nil
		}
		next, changed := fn(f)
		if !changed {
			return nil, nil
		}
		if err := next.Validate(); err != nil {
			s.logger.Warn(context.Background(), "rejected invalid fault transition", "error", err)
			return nil, nil
		}
		list, _ = faults.Replace(list, next)
		s.faults.Set(list)
		ok = true
		return []StateKey{KeyFaults}, s.pushFault(c, next)
	})
	return ok
}

func (s *Store) pushFault(c Collaborators, f models.FaultEntry) func() {
	push := s.syncTarget()
	return func() {
		if c.Broadcaster != nil {
			c.Broadcaster.BroadcastFault(f)
		}
		if push && c.FaultSyncer != nil {
			c.FaultSyncer.PushFault(context.Background(), f)
		}
	}
}

func (s *Store) dropFault(c Collaborators, f models.FaultEntry) func() {
	push := s.syncTarget()
	return func() {
		if c.Broadcaster != nil {
			c.Broadcaster.BroadcastFaultDeleted(f.ID)
		}
		if push && c.FaultSyncer != nil {
			c.FaultSyncer.DeleteFault(context.Background(), f)
		}
	}
}

// AddFaultEntry records a new fault as version 1 and returns it. An invalid
// snapshot (unknown type, negative gate, bad run) is rejected with false.
func (s *Store) AddFaultEntry(snap models.FaultSnapshot) (models.FaultEntry, bool) {
	at := s.now()
	by := s.Device()
	f := faults.New(faults.NewID(by.ID, at), snap, by, at)
	if err := f.Validate(); err != nil {
		s.logger.Warn(context.Background(), "rejected invalid fault", "error", err)
		return models.FaultEntry{}, false
	}
	s.update(func(c Collaborators) ([]StateKey, func()) {
		s.faults.Set(faults.Add(s.faults.Peek(), f))
		return []StateKey{KeyFaults}, s.pushFault(c, f)
	})
	return f, true
}

// UpdateFaultEntryWithHistory edits a live fault as a new version. It returns
// false when the fault is missing, pending deletion, or the edit would leave
// it invalid.
func (s *Store) UpdateFaultEntryWithHistory(id string, u models.FaultUpdate, description string) bool {
	by, at := s.Device(), s.now()
	return s.faultTransition(id, func(f models.FaultEntry) (models.FaultEntry, bool) {
		return faults.Edit(f, u, description, by, at)
	})
}

// RestoreFaultVersion makes version's data live again as a new version.
func (s *Store) RestoreFaultVersion(id string, version int) bool {
	by, at := s.Device(), s.now()
	return s.faultTransition(id, func(f models.FaultEntry) (models.FaultEntry, bool) {
		return faults.Restore(f, version, by, at)
	})
}

func (s *Store) MarkFaultForDeletion(id string) bool {
	by, at := s.Device(), s.now()
	return s.faultTransition(id, func(f models.FaultEntry) (models.FaultEntry, bool) {
		return faults.MarkForDeletion(f, by, at)
	})
}

func (s *Store) RejectFaultDeletion(id string) bool {
	return s.faultTransition(id, faults.RejectDeletion)
}

// ApproveFaultDeletion removes a pending-deletion fault on behalf of approver.
func (s *Store) ApproveFaultDeletion(id, approver string) bool {
	ok := false
	at := s.now()
	s.update(func(c Collaborators) ([]StateKey, func()) {
		list, approved, found := faults.ApproveDeletion(s.faults.Peek(), id, approver, at)
		if !found {
			return nil, nil
		}
		ok = true
		s.faults.Set(list)
		return []StateKey{KeyFaults}, s.dropFault(c, approved)
	})
	return ok
}

// DeleteFaultEntry removes a fault outright, whatever its state.
func (s *Store) DeleteFaultEntry(id string) bool {
	ok := false
	s.update(func(c Collaborators) ([]StateKey, func()) {
		f, found := faults.Find(s.faults.Peek(), id)
		if !found {
			return nil, nil
		}
		list, _ := faults.Remove(s.faults.Peek(), id)
		ok = true
		s.faults.Set(list)
		return []StateKey{KeyFaults}, s.dropFault(c, f)
	})
	return ok
}

// MergeFaultsFromCloud folds faults from the service or another tab in by id
// and version.
func (s *Store) MergeFaultsFromCloud(incoming []models.FaultEntry, deletedIDs []string) (added, updated int) {
	s.update(func(Collaborators) ([]StateKey, func()) {
		res := faults.MergeCloud(s.faults.Peek(), incoming, deletedIDs)
		for _, f := range res.Rejected {
			s.logger.Warn(context.Background(), "dropped invalid incoming fault", "fault", f.ID)
		}
		added, updated = res.AddedCount, res.UpdatedCount
		if added+updated == 0 {
			return nil, nil
		}
		s.faults.Set(res.Faults)
		return []StateKey{KeyFaults}, nil
	})
	return added, updated
}

func (s *Store) RemoveDeletedCloudFaults(ids []string) int {
	var removed int
	s.update(func(Collaborators) ([]StateKey, func()) {
		var list []models.FaultEntry
		list, removed = faults.RemoveDeletedCloud(s.faults.Peek(), ids)
		if removed == 0 {
			return nil, nil
		}
		s.faults.Set(list)
		return []StateKey{KeyFaults}, nil
	})
	return removed
}

// MarkFaultSynced stamps the fault if version is still its current version.
func (s *Store) MarkFaultSynced(id string, version int) bool {
	var ok bool
	s.update(func(Collaborators) ([]StateKey, func()) {
		var list []models.FaultEntry
		list, ok = faults.MarkSynced(s.faults.Peek(), id, version, s.nowMillis())
		if !ok {
			return nil, nil
		}
		s.faults.Set(list)
		return []StateKey{KeyFaults}, nil
	})
	return ok
}
