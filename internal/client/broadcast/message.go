package broadcast

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmeckel/ski-race-timer-sub004/internal/client/models"
	"github.com/jmeckel/ski-race-timer-sub004/internal/common"
)

// Kind is the message type.
type Kind string

const (
	KindEntry        Kind = "entry"
	KindPresence     Kind = "presence"
	KindFault        Kind = "fault"
	KindFaultDeleted Kind = "fault-deleted"
)

// Message is the envelope posted on a channel.
type Message struct {
	Type      Kind            `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	SenderID  string          `json:"senderId"`
	Timestamp int64           `json:"timestamp"`
}

// Presence is the heartbeat payload.
type Presence struct {
	DeviceID   string `json:"deviceId"`
	DeviceName string `json:"deviceName"`
}

// FaultDeleted names a fault removed by another tab.
type FaultDeleted struct {
	FaultID string `json:"faultId"`
}

var errEmptyData = errors.New("missing data")

// decodeMessage parses and validates an incoming envelope. Only the payload
// of the declared kind is decoded; anything malformed is an error.
func decodeMessage(raw []byte) (Message, any, error) {
	var m Message
	if err := json.Unmarshal(raw, &m); err != nil {
		return m, nil, fmt.Errorf("%w: %v", common.ErrInvalidPayload, err)
	}
	if m.SenderID == "" {
		return m, nil, fmt.Errorf("%w: message without sender", common.ErrInvalidPayload)
	}
	if m.Type != KindPresence && len(m.Data) == 0 {
		return m, nil, fmt.Errorf("%w: %s: %v", common.ErrInvalidPayload, m.Type, errEmptyData)
	}

	switch m.Type {
	case KindEntry:
		var e models.Entry
		if err := json.Unmarshal(m.Data, &e); err != nil {
			return m, nil, fmt.Errorf("%w: entry: %v", common.ErrInvalidPayload, err)
		}
		if err := e.Validate(); err != nil {
			return m, nil, err
		}
		return m, e, nil
	case KindFault:
		var f models.FaultEntry
		if err := json.Unmarshal(m.Data, &f); err != nil {
			return m, nil, fmt.Errorf("%w: fault: %v", common.ErrInvalidPayload, err)
		}
		if err := f.Validate(); err != nil {
			return m, nil, err
		}
		return m, f, nil
	case KindFaultDeleted:
		var d FaultDeleted
		if err := json.Unmarshal(m.Data, &d); err != nil {
			return m, nil, fmt.Errorf("%w: fault-deleted: %v", common.ErrInvalidPayload, err)
		}
		if d.FaultID == "" {
			return m, nil, fmt.Errorf("%w: fault-deleted without id", common.ErrInvalidPayload)
		}
		return m, d, nil
	case KindPresence:
		var p Presence
		if len(m.Data) > 0 {
			if err := json.Unmarshal(m.Data, &p); err != nil {
				return m, nil, fmt.Errorf("%w: presence: %v", common.ErrInvalidPayload, err)
			}
		}
		return m, p, nil
	default:
		return m, nil, fmt.Errorf("%w: unknown message type %q", common.ErrInvalidPayload, m.Type)
	}
}
