package services

import "github.com/jmeckel/ski-race-timer-sub004/internal/client/client"

// EventKind names a user-visible sync outcome.
type EventKind string

const (
	EventAuthExpired          EventKind = "auth-expired"
	EventRaceDeleted          EventKind = "race-deleted"
	EventEntriesSynced        EventKind = "entries-synced"
	EventFaultsSynced         EventKind = "faults-synced"
	EventPushFailed           EventKind = "push-failed"
	EventPhotoTooLarge        EventKind = "photo-too-large"
	EventCrossDeviceDuplicate EventKind = "cross-device-duplicate"
	EventDeleteFailed         EventKind = "delete-failed"
	EventSyncStopped          EventKind = "sync-stopped"
)

// Event is published on the events bus for UI and auth collaborators.
type Event struct {
	Kind      EventKind
	RaceID    string
	Count     int
	EntryID   string
	FaultID   string
	Duplicate *client.Duplicate
	Message   string
	Err       error
}
