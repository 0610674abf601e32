package store

import "github.com/jmeckel/ski-race-timer-sub004/internal/client/models"

// StateKey names a part of State in change notifications.
type StateKey string

const (
	KeyEntries      StateKey = "entries"
	KeyFaults       StateKey = "faultEntries"
	KeySettings     StateKey = "settings"
	KeyLanguage     StateKey = "currentLang"
	KeyDeviceID     StateKey = "deviceId"
	KeyDeviceName   StateKey = "deviceName"
	KeyRaceID       StateKey = "raceId"
	KeySyncQueue    StateKey = "syncQueue"
	KeyAuthToken    StateKey = "authToken"
	KeySyncStatus   StateKey = "syncStatus"
	KeyCloudInfo    StateKey = "cloudInfo"
	KeyEditingEntry StateKey = "editingEntryId"
)

// State is a read-only snapshot of everything the Store owns. The slices
// are shared with the Store and must not be modified.
type State struct {
	Entries        []models.Entry
	Faults         []models.FaultEntry
	Settings       models.Settings
	Language       string
	Device         models.DeviceIdentity
	RaceID         string
	SyncQueue      []models.SyncQueueItem
	HasAuthToken   bool
	SyncStatus     models.SyncStatus
	Cloud          models.CloudInfo
	EditingEntryID string
}

// Notification is delivered to subscribers after every state change.
type Notification struct {
	State       State
	ChangedKeys []StateKey
}

// Changed reports whether key is among the changed keys.
func (n Notification) Changed(key StateKey) bool {
	for _, k := range n.ChangedKeys {
		if k == key {
			return true
		}
	}
	return false
}
