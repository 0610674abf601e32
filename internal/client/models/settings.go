package models

// Settings are the station toggles persisted under their own key.
type Settings struct {
	Auto       bool `json:"auto"`
	Haptic     bool `json:"haptic"`
	Sound      bool `json:"sound"`
	Sync       bool `json:"sync"`
	SyncPhotos bool `json:"syncPhotos"`
	GPS        bool `json:"gps"`
	Photo      bool `json:"photoCapture"`
}

// DefaultSettings is what a fresh station starts with.
func DefaultSettings() Settings {
	return Settings{Auto: true, Haptic: true}
}

// DeviceIdentity names the station to other devices.
type DeviceIdentity struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CloudInfo holds the advisory fields the coordination service reports back.
type CloudInfo struct {
	DeviceCount int `json:"deviceCount"`
	HighestBib  int `json:"highestBib"`
}

// SyncStatus is the connection indicator driven by the sync services.
type SyncStatus string

const (
	SyncDisconnected SyncStatus = "disconnected"
	SyncConnecting   SyncStatus = "connecting"
	SyncSyncing      SyncStatus = "syncing"
	SyncConnected    SyncStatus = "connected"
	SyncError        SyncStatus = "error"
	SyncOffline      SyncStatus = "offline"
)
