package models

// SyncQueueItem tracks an entry that still has to reach the coordination
// service. RetryCount, LastAttempt and Error are written by the sync service only.
type SyncQueueItem struct {
	Entry       Entry  `json:"entry"`
	RetryCount  int    `json:"retryCount"`
	LastAttempt int64  `json:"lastAttempt"`
	Error       string `json:"error,omitempty"`
}
