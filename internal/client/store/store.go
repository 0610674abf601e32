// Package store owns the station state.
//
// Every slice lives in a reactive.Signal and changes only through Store
// methods, which apply the slice's pure functions under the Store lock. A
// persistence effect per persisted slice marks it dirty on every write;
// subscribers are notified with the changed keys after the lock is released.
// Sync and broadcast side effects of a mutation are dispatched
// fire-and-forget to the attached collaborators.
package store

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jmeckel/ski-race-timer-sub004/internal/client/models"
	"github.com/jmeckel/ski-race-timer-sub004/internal/client/notify"
	"github.com/jmeckel/ski-race-timer-sub004/internal/client/persist"
	"github.com/jmeckel/ski-race-timer-sub004/internal/client/reactive"
	"github.com/jmeckel/ski-race-timer-sub004/internal/logging"
)

// Persister receives dirty marks. *persist.Store implements it.
type Persister interface {
	Register(key persist.Key, value func() any)
	MarkDirty(key persist.Key)
}

type EntryPusher interface {
	SendEntry(ctx context.Context, e models.Entry)
}

type EntryDeleter interface {
	DeleteEntryFromCloud(ctx context.Context, entryID string)
}

type FaultSyncer interface {
	PushFault(ctx context.Context, f models.FaultEntry)
	DeleteFault(ctx context.Context, f models.FaultEntry)
}

type Broadcaster interface {
	BroadcastEntry(e models.Entry)
	BroadcastFault(f models.FaultEntry)
	BroadcastFaultDeleted(id string)
}

// PhotoPruner drops cached photos of entries removed from the ledger.
type PhotoPruner interface {
	DeletePhotos(ctx context.Context, entryIDs []string)
}

// Collaborators receive the side effects of mutations. Nil members are skipped.
type Collaborators struct {
	EntryPusher  EntryPusher
	EntryDeleter EntryDeleter
	FaultSyncer  FaultSyncer
	Broadcaster  Broadcaster
	Photos       PhotoPruner
}

// Option configures a Store.
type Option func(*Store)

// WithPersister wires slice persistence.
func WithPersister(p Persister) Option {
	return func(s *Store) { s.persister = p }
}

// WithDispatcher replaces the goroutine-per-effect dispatcher.
func WithDispatcher(d func(fn func())) Option {
	return func(s *Store) { s.dispatch = d }
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithBusCapacity caps pending notifications.
func WithBusCapacity(n int) Option {
	return func(s *Store) { s.busOpts = append(s.busOpts, notify.WithCapacity(n)) }
}

// Store is the single owner of station state.
type Store struct {
	logger    logging.Logger
	persister Persister
	dispatch  func(fn func())
	now       func() time.Time
	busOpts   []notify.Option

	rt  *reactive.Runtime
	bus *notify.Bus[Notification]

	mu         sync.Mutex
	collab     Collaborators
	entries    *reactive.Signal[[]models.Entry]
	faults     *reactive.Signal[[]models.FaultEntry]
	settings   *reactive.Signal[models.Settings]
	language   *reactive.Signal[string]
	deviceID   *reactive.Signal[string]
	deviceName *reactive.Signal[string]
	raceID     *reactive.Signal[string]
	queue      *reactive.Signal[[]models.SyncQueueItem]
	authToken  *reactive.Signal[string]
	syncStatus *reactive.Signal[models.SyncStatus]
	cloud      *reactive.Signal[models.CloudInfo]
	editing    *reactive.Signal[string]
	disposers  []func()
}

// New builds a Store from loaded slices. A missing device id or name is
// generated and persisted.
func New(snap persist.Snapshot, logger logging.Logger, opts ...Option) *Store {
	s := &Store{
		logger:   logger.With("component", "store"),
		dispatch: func(fn func()) { go fn() },
		now:      time.Now,
		rt:       reactive.NewRuntime(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.bus = notify.NewBus[Notification]("store", s.logger, s.busOpts...)

	generated := false
	if snap.DeviceID == "" {
		snap.DeviceID = NewDeviceID()
		generated = true
	}
	if snap.DeviceName == "" {
		snap.DeviceName = DefaultDeviceName(snap.DeviceID)
		generated = true
	}
	if snap.Language == "" {
		snap.Language = persist.DefaultLanguage
	}

	rt := s.rt
	same := func(a, b string) bool { return a == b }
	s.entries = reactive.NewSignal(rt, snap.Entries)
	s.faults = reactive.NewSignal(rt, snap.Faults)
	s.settings = reactive.NewSignalFunc(rt, snap.Settings, func(a, b models.Settings) bool { return a == b })
	s.language = reactive.NewSignalFunc(rt, snap.Language, same)
	s.deviceID = reactive.NewSignalFunc(rt, snap.DeviceID, same)
	s.deviceName = reactive.NewSignalFunc(rt, snap.DeviceName, same)
	s.raceID = reactive.NewSignalFunc(rt, snap.RaceID, same)
	s.queue = reactive.NewSignal(rt, snap.SyncQueue)
	s.authToken = reactive.NewSignalFunc(rt, snap.AuthToken, same)
	s.syncStatus = reactive.NewSignalFunc(rt, models.SyncDisconnected, func(a, b models.SyncStatus) bool { return a == b })
	s.cloud = reactive.NewSignalFunc(rt, models.CloudInfo{}, func(a, b models.CloudInfo) bool { return a == b })
	s.editing = reactive.NewSignalFunc(rt, "", same)

	if s.persister != nil {
		persistOn(s, s.entries, persist.KeyEntries)
		persistOn(s, s.faults, persist.KeyFaults)
		persistOn(s, s.settings, persist.KeySettings)
		persistOn(s, s.language, persist.KeyLanguage)
		persistOn(s, s.deviceID, persist.KeyDeviceID)
		persistOn(s, s.deviceName, persist.KeyDeviceName)
		persistOn(s, s.raceID, persist.KeyRaceID)
		persistOn(s, s.queue, persist.KeySyncQueue)
		persistOn(s, s.authToken, persist.KeyAuthToken)
		if generated {
			s.persister.MarkDirty(persist.KeyDeviceID)
			s.persister.MarkDirty(persist.KeyDeviceName)
		}
	}
	return s
}

// persistOn registers sig as the source of key and marks key dirty whenever
// sig is written. The effect's first run only collects the dependency.
func persistOn[T any](s *Store, sig *reactive.Signal[T], key persist.Key) {
	s.persister.Register(key, func() any { return sig.Peek() })
	first := true
	s.disposers = append(s.disposers, s.rt.Effect(func() {
		sig.Get()
		if first {
			first = false
			return
		}
		s.persister.MarkDirty(key)
	}))
}

// NewDeviceID returns a fresh "dev_<random>" identifier.
func NewDeviceID() string {
	return "dev_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// DefaultDeviceName derives a readable name from the device id.
func DefaultDeviceName(deviceID string) string {
	suffix := strings.TrimPrefix(deviceID, "dev_")
	if len(suffix) > 4 {
		suffix = suffix[:4]
	}
	return fmt.Sprintf("Timer %s", strings.ToUpper(suffix))
}

// Close detaches the persistence effects.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, dispose := range s.disposers {
		dispose()
	}
	s.disposers = nil
}

// Attach sets the collaborators that receive mutation side effects.
func (s *Store) Attach(c Collaborators) {
	s.mu.Lock()
	s.collab = c
	s.mu.Unlock()
}

// Subscribe registers fn for change notifications.
func (s *Store) Subscribe(fn func(Notification)) (unsubscribe func()) {
	return s.bus.Subscribe(fn)
}

// BusStats exposes the notification queue counters.
func (s *Store) BusStats() notify.Stats {
	return s.bus.Stats()
}

// update runs fn under the lock. fn returns the changed keys and an optional
// side effect. The notification is enqueued before the lock is released so
// listeners observe states in mutation order; delivery and the side effect
// happen after.
func (s *Store) update(fn func(c Collaborators) ([]StateKey, func())) {
	s.mu.Lock()
	keys, effect := fn(s.collab)
	if len(keys) > 0 {
		s.bus.Enqueue(Notification{State: s.stateLocked(), ChangedKeys: keys})
	}
	s.mu.Unlock()

	if len(keys) > 0 {
		s.bus.Drain()
	}
	if effect != nil {
		s.dispatch(effect)
	}
}

// State returns a snapshot.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Store) stateLocked() State {
	return State{
		Entries:        s.entries.Peek(),
		Faults:         s.faults.Peek(),
		Settings:       s.settings.Peek(),
		Language:       s.language.Peek(),
		Device:         models.DeviceIdentity{ID: s.deviceID.Peek(), Name: s.deviceName.Peek()},
		RaceID:         s.raceID.Peek(),
		SyncQueue:      s.queue.Peek(),
		HasAuthToken:   s.authToken.Peek() != "",
		SyncStatus:     s.syncStatus.Peek(),
		Cloud:          s.cloud.Peek(),
		EditingEntryID: s.editing.Peek(),
	}
}

func (s *Store) Entries() []models.Entry           { return s.entries.Peek() }
func (s *Store) Faults() []models.FaultEntry       { return s.faults.Peek() }
func (s *Store) SyncQueue() []models.SyncQueueItem { return s.queue.Peek() }
func (s *Store) Settings() models.Settings         { return s.settings.Peek() }
func (s *Store) Language() string                  { return s.language.Peek() }
func (s *Store) RaceID() string                    { return s.raceID.Peek() }
func (s *Store) AuthToken() string                 { return s.authToken.Peek() }
func (s *Store) SyncStatus() models.SyncStatus     { return s.syncStatus.Peek() }
func (s *Store) CloudInfo() models.CloudInfo       { return s.cloud.Peek() }
func (s *Store) EditingEntryID() string            { return s.editing.Peek() }

func (s *Store) Device() models.DeviceIdentity {
	return models.DeviceIdentity{ID: s.deviceID.Peek(), Name: s.deviceName.Peek()}
}

// syncTarget reports whether local changes should reach the service.
func (s *Store) syncTarget() bool {
	return s.settings.Peek().Sync && s.raceID.Peek() != ""
}

func (s *Store) nowMillis() int64 {
	return s.now().UnixMilli()
}
