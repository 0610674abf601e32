// Package broadcast mirrors local changes between tabs of the same station.
//
// Each active race has one named Channel. A Broadcaster posts entries, faults
// and presence heartbeats to it and applies what other tabs post through the
// Store's idempotent merge functions, so a change that arrives both here and
// through the coordination service is merged once.
package broadcast

import (
	"errors"
	"strings"
)

// ChannelPrefix starts every channel name.
const ChannelPrefix = "ski-race-timer-"

// ErrClosed is returned by Post on a closed channel.
var ErrClosed = errors.New("broadcast channel closed")

// Channel is a named publish/subscribe pipe between tabs.
type Channel interface {
	// Post delivers data to every other subscriber of the channel.
	Post(data []byte) error
	// Subscribe registers fn for incoming messages.
	Subscribe(fn func(data []byte)) (unsubscribe func())
	Close() error
}

// Opener opens the channel with the given name.
type Opener func(name string) (Channel, error)

// ChannelName derives the channel name for a race.
func ChannelName(raceID string) string {
	return ChannelPrefix + strings.ToLower(strings.TrimSpace(raceID))
}
