// Package models holds the coordination service's per-race records.
package models

import (
	cm "github.com/jmeckel/ski-race-timer-sub004/internal/client/models"
)

// EntryRecord is a stored entry with the revision it was last written at.
type EntryRecord struct {
	Entry     cm.Entry
	UpdatedAt int64
}

// FaultRecord is a stored fault with the revision it was last written at.
type FaultRecord struct {
	Fault     cm.FaultEntry
	UpdatedAt int64
}

// Tombstone records a deletion so later polls can report it in deletedIds.
type Tombstone struct {
	ID        string
	DeletedAt int64
}

// Race is everything the service keeps for one race id.
type Race struct {
	ID             string
	Entries        map[string]*EntryRecord
	Faults         map[string]*FaultRecord
	DeletedEntries []Tombstone
	DeletedFaults  []Tombstone
	Revision       int64
	CreatedAt      int64
}

// NewRace returns an empty race.
func NewRace(id string, now int64) *Race {
	return &Race{
		ID:        id,
		Entries:   make(map[string]*EntryRecord),
		Faults:    make(map[string]*FaultRecord),
		CreatedAt: now,
	}
}

// Stamp returns the next write revision: now, or one past the previous
// revision if the clock has not moved.
func (r *Race) Stamp(now int64) int64 {
	if now <= r.Revision {
		now = r.Revision + 1
	}
	r.Revision = now
	return now
}
