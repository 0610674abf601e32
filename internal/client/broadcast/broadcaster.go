package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jmeckel/ski-race-timer-sub004/internal/client/models"
	"github.com/jmeckel/ski-race-timer-sub004/internal/logging"
)

// DefaultHeartbeat is the presence interval.
const DefaultHeartbeat = 5 * time.Second

// Applier receives what other tabs post. The Store implements it.
type Applier interface {
	MergeCloudEntries(incoming []models.Entry, deletedIDs []string, ownDeviceID string) int
	MergeFaultsFromCloud(incoming []models.FaultEntry, deletedIDs []string) (added, updated int)
	RemoveDeletedCloudFaults(ids []string) int
}

// Stats counts incoming traffic.
type Stats struct {
	Received uint64
	Applied  uint64
	Dropped  uint64
}

// Option configures a Broadcaster.
type Option func(*Broadcaster)

// WithHeartbeat sets the presence interval. Zero disables heartbeats.
func WithHeartbeat(d time.Duration) Option {
	return func(b *Broadcaster) { b.heartbeat = d }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(b *Broadcaster) { b.now = now }
}

// Broadcaster mirrors local changes to other tabs of the same station.
// Every send is best effort: failures are logged and never returned.
type Broadcaster struct {
	open      Opener
	apply     Applier
	device    func() models.DeviceIdentity
	logger    logging.Logger
	heartbeat time.Duration
	now       func() time.Time
	tabID     string

	mu     sync.Mutex
	raceID string
	ch     Channel
	unsub  func()
	stop   context.CancelFunc
	done   chan struct{}
	peers  map[string]time.Time
	stats  Stats
}

// New creates a Broadcaster. A nil open makes every call a no-op.
func New(open Opener, apply Applier, device func() models.DeviceIdentity, logger logging.Logger, opts ...Option) *Broadcaster {
	b := &Broadcaster{
		open:      open,
		apply:     apply,
		device:    device,
		logger:    logger.With("component", "broadcast"),
		heartbeat: DefaultHeartbeat,
		now:       time.Now,
		tabID:     uuid.NewString(),
		peers:     make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// TabID identifies this tab as a sender.
func (b *Broadcaster) TabID() string { return b.tabID }

// Init opens the channel for raceID, closing the previous one. An empty
// raceID only closes. When the channel cannot be opened the broadcaster
// stays inactive; nothing else is affected.
func (b *Broadcaster) Init(raceID string) {
	b.Close()
	if raceID == "" {
		return
	}
	ctx := context.Background()
	if b.open == nil {
		b.logger.Info(ctx, "no broadcast channel available, cross-tab sync disabled")
		return
	}

	name := ChannelName(raceID)
	ch, err := b.open(name)
	if err != nil {
		b.logger.Warn(ctx, "failed to open broadcast channel, cross-tab sync disabled", "channel", name, "error", err)
		return
	}

	b.mu.Lock()
	b.raceID = raceID
	b.ch = ch
	b.unsub = ch.Subscribe(b.receive)
	b.peers = make(map[string]time.Time)
	if b.heartbeat > 0 {
		hbCtx, cancel := context.WithCancel(ctx)
		b.stop = cancel
		b.done = make(chan struct{})
		go b.beat(hbCtx, b.done)
	}
	b.mu.Unlock()

	b.logger.Debug(ctx, "broadcast channel open", "channel", name, "tab", b.tabID)
	b.SendPresence()
}

// Active reports whether a channel is open.
func (b *Broadcaster) Active() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ch != nil
}

func (b *Broadcaster) beat(ctx context.Context, done chan struct{}) {
	defer close(done)
	t := time.NewTicker(b.heartbeat)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			b.SendPresence()
		}
	}
}

// Close stops the heartbeat and closes the channel.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	ch, unsub, stop, done := b.ch, b.unsub, b.stop, b.done
	b.ch, b.unsub, b.stop, b.done = nil, nil, nil, nil
	b.raceID = ""
	b.mu.Unlock()

	if stop != nil {
		stop()
		<-done
	}
	if unsub != nil {
		unsub()
	}
	if ch != nil {
		if err := ch.Close(); err != nil {
			b.logger.Warn(context.Background(), "failed to close broadcast channel", "error", err)
		}
	}
}

// BroadcastEntry posts e. The photo travels as the stored marker; tabs share
// the local blob cache.
func (b *Broadcaster) BroadcastEntry(e models.Entry) {
	b.send(KindEntry, e.WithoutPhoto())
}

func (b *Broadcaster) BroadcastFault(f models.FaultEntry) {
	b.send(KindFault, f)
}

func (b *Broadcaster) BroadcastFaultDeleted(id string) {
	b.send(KindFaultDeleted, FaultDeleted{FaultID: id})
}

func (b *Broadcaster) SendPresence() {
	var p Presence
	if b.device != nil {
		d := b.device()
		p = Presence{DeviceID: d.ID, DeviceName: d.Name}
	}
	b.send(KindPresence, p)
}

func (b *Broadcaster) send(kind Kind, payload any) {
	b.mu.Lock()
	ch := b.ch
	b.mu.Unlock()
	if ch == nil {
		return
	}

	ctx := context.Background()
	raw, err := b.encode(kind, payload)
	if err != nil {
		b.logger.Error(ctx, "failed to encode broadcast message", "type", kind, "error", err)
		return
	}
	if err := ch.Post(raw); err != nil {
		b.logger.Warn(ctx, "failed to post broadcast message", "type", kind, "error", err)
	}
}

func (b *Broadcaster) encode(kind Kind, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", kind, err)
	}
	return json.Marshal(Message{Type: kind, Data: data, SenderID: b.tabID, Timestamp: b.now().UnixMilli()})
}

func (b *Broadcaster) receive(raw []byte) {
	ctx := context.Background()

	msg, payload, err := decodeMessage(raw)
	if err == nil && msg.SenderID == b.tabID {
		return
	}

	b.mu.Lock()
	b.stats.Received++
	if err != nil {
		b.stats.Dropped++
	}
	b.mu.Unlock()

	if err != nil {
		b.logger.Warn(ctx, "dropped malformed broadcast message", "error", err)
		return
	}

	switch p := payload.(type) {
	case models.Entry:
		// Tabs share the device id, so the own-device check is disabled.
		b.apply.MergeCloudEntries([]models.Entry{p}, nil, "")
	case models.FaultEntry:
		b.apply.MergeFaultsFromCloud([]models.FaultEntry{p}, nil)
	case FaultDeleted:
		b.apply.RemoveDeletedCloudFaults([]string{p.FaultID})
	case Presence:
		b.mu.Lock()
		b.peers[msg.SenderID] = b.now()
		b.mu.Unlock()
	}

	b.mu.Lock()
	b.stats.Applied++
	b.mu.Unlock()
}

// ActiveTabs counts other tabs heard from within three heartbeats.
func (b *Broadcaster) ActiveTabs() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	window := 3 * b.heartbeat
	if window <= 0 {
		window = 3 * DefaultHeartbeat
	}
	cutoff := b.now().Add(-window)
	n := 0
	for id, seen := range b.peers {
		if seen.Before(cutoff) {
			delete(b.peers, id)
			continue
		}
		n++
	}
	return n
}

func (b *Broadcaster) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}
