package persist

import "github.com/jmeckel/ski-race-timer-sub004/internal/client/models"

// Key is the storage key of one persisted slice.
type Key string

const (
	KeyEntries    Key = "skiTimerEntries"
	KeyFaults     Key = "skiTimerFaultEntries"
	KeySettings   Key = "skiTimerSettings"
	KeyLanguage   Key = "skiTimerLang"
	KeyDeviceID   Key = "skiTimerDeviceId"
	KeyDeviceName Key = "skiTimerDeviceName"
	KeyRaceID     Key = "skiTimerRaceId"
	KeySyncQueue  Key = "skiTimerSyncQueue"
	KeyAuthToken  Key = "skiTimerAuthToken"
)

// AllKeys lists every persisted slice.
var AllKeys = []Key{
	KeyEntries, KeyFaults, KeySettings, KeyLanguage, KeyDeviceID,
	KeyDeviceName, KeyRaceID, KeySyncQueue, KeyAuthToken,
}

// DefaultLanguage is used when no language was stored.
const DefaultLanguage = "en"

// Snapshot is the decoded content of every persisted slice.
type Snapshot struct {
	Entries    []models.Entry
	Faults     []models.FaultEntry
	Settings   models.Settings
	Language   string
	DeviceID   string
	DeviceName string
	RaceID     string
	SyncQueue  []models.SyncQueueItem
	AuthToken  string
}

// DefaultSnapshot is what a station starts with when nothing is stored.
func DefaultSnapshot() Snapshot {
	return Snapshot{
		Entries:   []models.Entry{},
		Faults:    []models.FaultEntry{},
		Settings:  models.DefaultSettings(),
		Language:  DefaultLanguage,
		SyncQueue: []models.SyncQueueItem{},
	}
}
