package client

import (
	"context"

	"github.com/jmeckel/ski-race-timer-sub004/internal/client/models"
)

// Client is the coordination service contract the sync services consume.
type Client interface {
	Ping(ctx context.Context) error
	IssueToken(ctx context.Context, pin string, device models.DeviceIdentity) (string, error)

	PollEntries(ctx context.Context, req PollRequest) (*EntryPollResponse, error)
	SendEntry(ctx context.Context, raceID string, e models.Entry, device models.DeviceIdentity) (*SendResponse, error)
	DeleteEntry(ctx context.Context, raceID, entryID string, device models.DeviceIdentity) error

	PollFaults(ctx context.Context, req PollRequest) (*FaultPollResponse, error)
	SendFault(ctx context.Context, raceID string, f models.FaultEntry, device models.DeviceIdentity) (*SendResponse, error)
	DeleteFault(ctx context.Context, raceID, faultID string, device models.DeviceIdentity) error
}

// PollRequest scopes a poll. Since is the last confirmed lastUpdated; zero
// requests a full sync.
type PollRequest struct {
	RaceID     string
	DeviceID   string
	DeviceName string
	Since      int64
}

// RaceStatus is the race-deleted signal carried in a 200 poll response.
type RaceStatus struct {
	Deleted   bool   `json:"deleted,omitempty"`
	DeletedAt int64  `json:"deletedAt,omitempty"`
	Message   string `json:"message,omitempty"`
}

// Advisory carries the optional fields every response may attach.
type Advisory struct {
	DeviceCount *int `json:"deviceCount,omitempty"`
	HighestBib  *int `json:"highestBib,omitempty"`
}

type EntryPollResponse struct {
	RaceStatus
	Advisory
	Entries     []models.Entry `json:"entries"`
	LastUpdated int64          `json:"lastUpdated"`
	DeletedIDs  []string       `json:"deletedIds"`
}

type FaultPollResponse struct {
	RaceStatus
	Advisory
	Faults      []models.FaultEntry `json:"faults"`
	LastUpdated int64               `json:"lastUpdated"`
	DeletedIDs  []string            `json:"deletedIds"`
}

// Duplicate describes an entry another device already recorded.
type Duplicate struct {
	Bib        string       `json:"bib"`
	Point      models.Point `json:"point"`
	Run        int          `json:"run"`
	DeviceName string       `json:"deviceName"`
}

// SendResponse is the reply to a push.
type SendResponse struct {
	Advisory
	Success              bool       `json:"success"`
	Deleted              bool       `json:"deleted,omitempty"`
	PhotoSkipped         bool       `json:"photoSkipped,omitempty"`
	CrossDeviceDuplicate *Duplicate `json:"crossDeviceDuplicate,omitempty"`
	Message              string     `json:"message,omitempty"`
}

// Wire bodies shared with the reference server.

type SendEntryBody struct {
	RaceID     string       `json:"raceId"`
	Entry      models.Entry `json:"entry"`
	DeviceID   string       `json:"deviceId"`
	DeviceName string       `json:"deviceName"`
}

type SendFaultBody struct {
	RaceID     string            `json:"raceId"`
	Fault      models.FaultEntry `json:"fault"`
	DeviceID   string            `json:"deviceId"`
	DeviceName string            `json:"deviceName"`
}

type DeleteEntryBody struct {
	EntryID    string `json:"entryId"`
	DeviceID   string `json:"deviceId"`
	DeviceName string `json:"deviceName"`
}

type DeleteFaultBody struct {
	FaultID    string `json:"faultId"`
	DeviceID   string `json:"deviceId"`
	DeviceName string `json:"deviceName"`
}

type TokenRequest struct {
	PIN        string `json:"pin"`
	DeviceID   string `json:"deviceId"`
	DeviceName string `json:"deviceName"`
}

type TokenResponse struct {
	Token string `json:"token"`
}

// ErrorBody is the JSON body of non-2xx responses.
type ErrorBody struct {
	Error   string `json:"error"`
	Expired bool   `json:"expired,omitempty"`
}
