package services

import (
	"github.com/jmeckel/ski-race-timer-sub004/internal/client/models"
)

// StateStore is the part of the Store the sync services use. The services
// read through getters and write only through these methods.
type StateStore interface {
	Settings() models.Settings
	RaceID() string
	Device() models.DeviceIdentity
	AuthToken() string
	SyncStatus() models.SyncStatus
	Entries() []models.Entry
	Faults() []models.FaultEntry

	SetSyncStatus(s models.SyncStatus)
	SetCloudInfo(deviceCount, highestBib *int)
	SetAuthToken(token string)
	ClearAuthToken()

	MergeCloudEntries(incoming []models.Entry, deletedIDs []string, ownDeviceID string) int
	RemoveDeletedCloudEntries(deletedIDs []string) int
	MarkEntriesSynced(ids []string) int
	DequeueEntry(entryID string) bool
	RecordSyncFailure(entryID string, cause error) bool

	MergeFaultsFromCloud(incoming []models.FaultEntry, deletedIDs []string) (added, updated int)
	RemoveDeletedCloudFaults(deletedIDs []string) int
	MarkFaultSynced(id string, version int) bool
}
