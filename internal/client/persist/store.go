// Package persist writes Store slices to a key/value backend.
//
// Callers mark slices dirty; a single debounced timer later serializes only
// the dirty slices and writes them in one batch. Slices that were not marked
// are never re-written. A failed write keeps the dirty flags and schedules a
// retry; in-memory state stays authoritative in the meantime.
package persist

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jmeckel/ski-race-timer-sub004/internal/client/repositories/photos"
	"github.com/jmeckel/ski-race-timer-sub004/internal/logging"
)

const (
	DefaultDebounce   = 100 * time.Millisecond
	DefaultRetryDelay = 2 * time.Second
)

// Backend is the storage the slices are flushed to.
// slices.SQLiteRepository satisfies it.
type Backend interface {
	SetMany(ctx context.Context, docs map[string][]byte) error
	List(ctx context.Context) (map[string][]byte, error)
}

// Store tracks dirty slices and flushes them.
type Store struct {
	backend    Backend
	logger     logging.Logger
	photos     photos.Store
	debounce   time.Duration
	retryDelay time.Duration

	flushMu sync.Mutex

	mu      sync.Mutex
	sources map[Key]func() any
	dirty   map[Key]struct{}
	timer   *time.Timer
	closed  bool
}

// Option configures a Store.
type Option func(*Store)

// WithDebounce sets the quiet period before a flush.
func WithDebounce(d time.Duration) Option {
	return func(s *Store) { s.debounce = d }
}

// WithRetryDelay sets how long to wait after a failed flush.
func WithRetryDelay(d time.Duration) Option {
	return func(s *Store) { s.retryDelay = d }
}

// WithPhotos makes flushes move inline photos into the blob cache.
func WithPhotos(p photos.Store) Option {
	return func(s *Store) { s.photos = p }
}

func New(backend Backend, logger logging.Logger, opts ...Option) *Store {
	s := &Store{
		backend:    backend,
		logger:     logger.With("component", "persist"),
		debounce:   DefaultDebounce,
		retryDelay: DefaultRetryDelay,
		sources:    make(map[Key]func() any),
		dirty:      make(map[Key]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register sets the function that yields the current value of key at flush time.
func (s *Store) Register(key Key, value func() any) {
	s.mu.Lock()
	s.sources[key] = value
	s.mu.Unlock()
}

// Load reads every slice. Each slice decodes on its own: a malformed slice
// falls back to its default without affecting the others.
func (s *Store) Load(ctx context.Context) (Snapshot, error) {
	docs, err := s.backend.List(ctx)
	if err != nil {
		return DefaultSnapshot(), fmt.Errorf("failed to load slices: %w", err)
	}
	return decode(ctx, s.logger, docs), nil
}

// MarkDirty schedules key for the next flush and restarts the quiet period.
func (s *Store) MarkDirty(key Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.dirty[key] = struct{}{}
	s.scheduleLocked(s.debounce)
}

func (s *Store) scheduleLocked(d time.Duration) {
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(d, func() {
		_ = s.Flush(context.Background())
	})
}

// Dirty returns the keys waiting for a flush.
func (s *Store) Dirty() []Key {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]Key, 0, len(s.dirty))
	for k := range s.dirty {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Flush writes every dirty slice now. On failure the error is logged, the
// flags are kept and a retry is scheduled.
func (s *Store) Flush(ctx context.Context) error {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	pending := make(map[Key]func() any, len(s.dirty))
	for k := range s.dirty {
		pending[k] = s.sources[k]
	}
	// Marks arriving during the write must survive it.
	s.dirty = make(map[Key]struct{})
	s.mu.Unlock()

	if len(pending) == 0 {
		return nil
	}

	err := s.write(ctx, pending)
	if err == nil {
		s.logger.Debug(ctx, "slices flushed", "count", len(pending))
		return nil
	}

	s.logger.Error(ctx, "failed to flush slices, will retry", "error", err, "count", len(pending))
	s.mu.Lock()
	for k := range pending {
		s.dirty[k] = struct{}{}
	}
	if !s.closed {
		s.scheduleLocked(s.retryDelay)
	}
	s.mu.Unlock()
	return err
}

func (s *Store) write(ctx context.Context, pending map[Key]func() any) error {
	docs := make(map[string][]byte, len(pending))
	for k, source := range pending {
		if source == nil {
			s.logger.Warn(ctx, "dirty slice has no source", "key", k)
			continue
		}
		data, err := s.encode(ctx, source())
		if err != nil {
			return fmt.Errorf("failed to encode slice[%s]: %w", k, err)
		}
		docs[string(k)] = data
	}
	if len(docs) == 0 {
		return nil
	}
	return s.backend.SetMany(ctx, docs)
}

// Close flushes pending slices and stops scheduling new flushes.
func (s *Store) Close(ctx context.Context) error {
	err := s.Flush(ctx)
	s.mu.Lock()
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()
	return err
}
