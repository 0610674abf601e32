package models

import (
	"fmt"

	"github.com/jmeckel/ski-race-timer-sub004/internal/common"
)

// FaultType classifies a gate fault.
type FaultType string

const (
	FaultMissedGate FaultType = "MG"
	FaultStraddle   FaultType = "STR"
	FaultBinding    FaultType = "BR"
)

// ChangeType labels a FaultVersion.
type ChangeType string

const (
	ChangeCreate  ChangeType = "create"
	ChangeEdit    ChangeType = "edit"
	ChangeRestore ChangeType = "restore"
)

// FaultSnapshot is the editable part of a fault, stored in full in every version.
type FaultSnapshot struct {
	Bib        string    `json:"bib"`
	Run        int       `json:"run"`
	GateNumber int       `json:"gateNumber"`
	FaultType  FaultType `json:"faultType"`
	GateRange  [2]int    `json:"gateRange"`
}

// FaultVersion is one append-only step of a fault's history.
type FaultVersion struct {
	Version           int           `json:"version"`
	Timestamp         string        `json:"timestamp"`
	EditedBy          string        `json:"editedBy"`
	EditedByDeviceID  string        `json:"editedByDeviceId"`
	ChangeType        ChangeType    `json:"changeType"`
	Data              FaultSnapshot `json:"data"`
	ChangeDescription string        `json:"changeDescription,omitempty"`
}

// FaultEntry is a rule-violation report with its full edit history.
type FaultEntry struct {
	ID                          string         `json:"id"`
	Bib                         string         `json:"bib"`
	Run                         int            `json:"run"`
	GateNumber                  int            `json:"gateNumber"`
	FaultType                   FaultType      `json:"faultType"`
	Timestamp                   string         `json:"timestamp"`
	DeviceID                    string         `json:"deviceId"`
	DeviceName                  string         `json:"deviceName"`
	GateRange                   [2]int         `json:"gateRange"`
	CurrentVersion              int            `json:"currentVersion"`
	VersionHistory              []FaultVersion `json:"versionHistory"`
	MarkedForDeletion           bool           `json:"markedForDeletion"`
	MarkedForDeletionBy         string         `json:"markedForDeletionBy,omitempty"`
	MarkedForDeletionAt         string         `json:"markedForDeletionAt,omitempty"`
	MarkedForDeletionByDeviceID string         `json:"markedForDeletionByDeviceId,omitempty"`
	DeletionApprovedBy          string         `json:"deletionApprovedBy,omitempty"`
	DeletionApprovedAt          string         `json:"deletionApprovedAt,omitempty"`
	SyncedAt                    *int64         `json:"syncedAt,omitempty"`
}

// FaultUpdate is a partial edit; nil fields are left untouched.
type FaultUpdate struct {
	Bib        *string
	Run        *int
	GateNumber *int
	FaultType  *FaultType
	GateRange  *[2]int
}

// Snapshot captures the live editable fields of f.
func (f FaultEntry) Snapshot() FaultSnapshot {
	return FaultSnapshot{
		Bib:        f.Bib,
		Run:        f.Run,
		GateNumber: f.GateNumber,
		FaultType:  f.FaultType,
		GateRange:  f.GateRange,
	}
}

// Apply overwrites the live editable fields of f with s.
func (f *FaultEntry) Apply(s FaultSnapshot) {
	f.Bib = s.Bib
	f.Run = s.Run
	f.GateNumber = s.GateNumber
	f.FaultType = s.FaultType
	f.GateRange = s.GateRange
}

// Merge returns s with every non-nil field of u applied.
func (s FaultSnapshot) Merge(u FaultUpdate) FaultSnapshot {
	if u.Bib != nil {
		s.Bib = *u.Bib
	}
	if u.Run != nil {
		s.Run = *u.Run
	}
	if u.GateNumber != nil {
		s.GateNumber = *u.GateNumber
	}
	if u.FaultType != nil {
		s.FaultType = *u.FaultType
	}
	if u.GateRange != nil {
		s.GateRange = *u.GateRange
	}
	return s
}

// Version looks up a history step by number.
func (f FaultEntry) Version(n int) (FaultVersion, bool) {
	for _, v := range f.VersionHistory {
		if v.Version == n {
			return v, true
		}
	}
	return FaultVersion{}, false
}

// Clone deep-copies the history so callers can append without aliasing.
func (f FaultEntry) Clone() FaultEntry {
	f.VersionHistory = append([]FaultVersion(nil), f.VersionHistory...)
	if f.SyncedAt != nil {
		at := *f.SyncedAt
		f.SyncedAt = &at
	}
	return f
}

// Validate reports whether f is well-formed enough to be merged or persisted.
func (f FaultEntry) Validate() error {
	if f.ID == "" {
		return fmt.Errorf("%w: fault without id", common.ErrInvalidPayload)
	}
	if f.GateNumber < 0 {
		return fmt.Errorf("%w: fault %s has gate %d", common.ErrInvalidPayload, f.ID, f.GateNumber)
	}
	switch f.FaultType {
	case FaultMissedGate, FaultStraddle, FaultBinding:
	default:
		return fmt.Errorf("%w: fault %s has type %q", common.ErrInvalidPayload, f.ID, f.FaultType)
	}
	if f.Run != 1 && f.Run != 2 {
		return fmt.Errorf("%w: fault %s has run %d", common.ErrInvalidPayload, f.ID, f.Run)
	}
	if f.CurrentVersion < 1 || len(f.VersionHistory) == 0 {
		return fmt.Errorf("%w: fault %s has no history", common.ErrInvalidPayload, f.ID)
	}
	if f.VersionHistory[0].Version != 1 || f.VersionHistory[0].ChangeType != ChangeCreate {
		return fmt.Errorf("%w: fault %s history does not start with create", common.ErrInvalidPayload, f.ID)
	}
	if _, err := ParseTimestamp(f.Timestamp); err != nil {
		return fmt.Errorf("%w: fault %s timestamp: %v", common.ErrInvalidPayload, f.ID, err)
	}
	return nil
}
