// Package models defines the station's data model: timing entries, fault
// reports with their version history, the sync queue and device/race settings.
// JSON field names match the coordination service wire format.
package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jmeckel/ski-race-timer-sub004/internal/common"
)

// Point is the timing point an entry was recorded at.
type Point string

const (
	PointStart  Point = "S"
	PointFinish Point = "F"
)

// EntryStatus is the competitor status attached to a crossing.
type EntryStatus string

const (
	StatusOK  EntryStatus = "ok"
	StatusDNS EntryStatus = "dns"
	StatusDNF EntryStatus = "dnf"
	StatusDSQ EntryStatus = "dsq"
)

// PhotoStoredMarker replaces an inline photo once the binary lives in the
// local blob cache, keyed by entry id.
const PhotoStoredMarker = "blobcache"

// GPSCoords is the optional position captured with an entry.
type GPSCoords struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy"`
}

// Entry is a timestamped start/finish crossing. ID is globally unique and
// immutable; (Bib, Point, Run) is deliberately not unique because re-recording
// a crossing is legitimate.
type Entry struct {
	ID         string      `json:"id"`
	Bib        string      `json:"bib,omitempty"`
	Point      Point       `json:"point"`
	Run        int         `json:"run"`
	Timestamp  string      `json:"timestamp"`
	Status     EntryStatus `json:"status"`
	DeviceID   string      `json:"deviceId"`
	DeviceName string      `json:"deviceName"`
	SyncedAt   *int64      `json:"syncedAt,omitempty"`
	Photo      string      `json:"photo,omitempty"`
	GPSCoords  *GPSCoords  `json:"gpsCoords,omitempty"`
}

// NewEntryID builds "<deviceId>-<unixMillis>-<random>".
func NewEntryID(deviceID string, at time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return fmt.Sprintf("%s-%d-%s", deviceID, at.UnixMilli(), suffix)
}

// FormatTimestamp renders t the way entries and faults store it.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

// ParseTimestamp accepts any RFC 3339 timestamp, with or without fractional seconds.
func ParseTimestamp(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// Validate reports whether e is well-formed enough to be merged or persisted.
func (e Entry) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("%w: entry without id", common.ErrInvalidPayload)
	}
	if e.Point != PointStart && e.Point != PointFinish {
		return fmt.Errorf("%w: entry %s has point %q", common.ErrInvalidPayload, e.ID, e.Point)
	}
	if e.Run != 1 && e.Run != 2 {
		return fmt.Errorf("%w: entry %s has run %d", common.ErrInvalidPayload, e.ID, e.Run)
	}
	if _, err := ParseTimestamp(e.Timestamp); err != nil {
		return fmt.Errorf("%w: entry %s timestamp: %v", common.ErrInvalidPayload, e.ID, err)
	}
	switch e.Status {
	case StatusOK, StatusDNS, StatusDNF, StatusDSQ:
	default:
		return fmt.Errorf("%w: entry %s has status %q", common.ErrInvalidPayload, e.ID, e.Status)
	}
	return nil
}

// IsSynced reports whether the coordination service has confirmed the entry.
func (e Entry) IsSynced() bool {
	return e.SyncedAt != nil
}

// WithoutPhoto returns a copy of e whose inline photo is replaced by the
// stored marker. Entries without a photo are returned unchanged.
func (e Entry) WithoutPhoto() Entry {
	if e.Photo != "" {
		e.Photo = PhotoStoredMarker
	}
	return e
}

// HasInlinePhoto reports whether e carries photo bytes rather than the marker.
func (e Entry) HasInlinePhoto() bool {
	return e.Photo != "" && e.Photo != PhotoStoredMarker
}
