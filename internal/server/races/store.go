// Package races is the coordination service's in-memory race storage: entries
// and faults per race, the deletion log polls report as deletedIds, device
// presence and race deletion.
package races

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/jmeckel/ski-race-timer-sub004/internal/client/client"
	cm "github.com/jmeckel/ski-race-timer-sub004/internal/client/models"
	"github.com/jmeckel/ski-race-timer-sub004/internal/common"
	"github.com/jmeckel/ski-race-timer-sub004/internal/server/models"
)

const (
	DefaultMaxPhotoBytes = 500 << 10
	DefaultPresenceTTL   = 30 * time.Second

	raceDeletedMessage = "race deleted"
)

var ErrMissingRaceID = errors.New("missing race id")

// Store keeps every race in memory behind one mutex.
type Store struct {
	mu       sync.Mutex
	races    map[string]*models.Race
	deleted  map[string]int64
	presence *cache.Cache

	now           func() time.Time
	maxPhotoBytes int
}

type Option func(*Store)

// WithClock overrides the revision clock.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithMaxPhotoBytes sets the inline photo limit; larger photos are dropped.
func WithMaxPhotoBytes(n int) Option {
	return func(s *Store) { s.maxPhotoBytes = n }
}

// WithPresenceTTL sets how long a device counts as present after its last request.
func WithPresenceTTL(d time.Duration) Option {
	return func(s *Store) { s.presence = cache.New(d, 2*d) }
}

func NewStore(opts ...Option) *Store {
	s := &Store{
		races:         make(map[string]*models.Race),
		deleted:       make(map[string]int64),
		presence:      cache.New(DefaultPresenceTTL, 2*DefaultPresenceTTL),
		now:           time.Now,
		maxPhotoBytes: DefaultMaxPhotoBytes,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func normalizeRaceID(raceID string) (string, error) {
	id := strings.ToLower(strings.TrimSpace(raceID))
	if id == "" {
		return "", ErrMissingRaceID
	}
	return id, nil
}

// Touch records that device talked to the service about raceID.
func (s *Store) Touch(raceID string, device cm.DeviceIdentity) {
	id, err := normalizeRaceID(raceID)
	if err != nil || device.ID == "" {
		return
	}
	s.presence.SetDefault(id+"|"+device.ID, device.Name)
}

// DeviceCount counts the devices seen for raceID within the presence window.
func (s *Store) DeviceCount(raceID string) int {
	id, err := normalizeRaceID(raceID)
	if err != nil {
		return 0
	}
	prefix := id + "|"
	n := 0
	for key := range s.presence.Items() {
		if strings.HasPrefix(key, prefix) {
			n++
		}
	}
	return n
}

func (s *Store) millis() int64 {
	return s.now().UnixMilli()
}

// lookup returns the live race, or the time it was deleted.
func (s *Store) lookup(id string, create bool) (*models.Race, int64) {
	if at, gone := s.deleted[id]; gone {
		return nil, at
	}
	r, ok := s.races[id]
	if !ok && create {
		r = models.NewRace(id, s.millis())
		s.races[id] = r
	}
	return r, 0
}

func (s *Store) advisory(raceID string, r *models.Race) client.Advisory {
	count := s.DeviceCount(raceID)
	highest := 0
	if r != nil {
		highest = highestBib(r)
	}
	return client.Advisory{DeviceCount: &count, HighestBib: &highest}
}

func highestBib(r *models.Race) int {
	highest := 0
	for _, rec := range r.Entries {
		if n, err := strconv.Atoi(rec.Entry.Bib); err == nil && n > highest {
			highest = n
		}
	}
	return highest
}

func deletedSince(log []models.Tombstone, since int64) []string {
	ids := []string{}
	for _, t := range log {
		if t.DeletedAt > since {
			ids = append(ids, t.ID)
		}
	}
	return ids
}

func raceStatus(deletedAt int64) client.RaceStatus {
	return client.RaceStatus{Deleted: true, DeletedAt: deletedAt, Message: raceDeletedMessage}
}

// PollEntries returns the entries written after since, the entry ids deleted
// after since and the revision to use as the next since.
func (s *Store) PollEntries(ctx context.Context, raceID string, since int64) (*client.EntryPollResponse, error) {
	id, err := normalizeRaceID(raceID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, deletedAt := s.lookup(id, false)
	if deletedAt != 0 {
		return &client.EntryPollResponse{RaceStatus: raceStatus(deletedAt)}, nil
	}
	resp := &client.EntryPollResponse{
		Advisory:   s.advisory(id, r),
		Entries:    []cm.Entry{},
		DeletedIDs: []string{},
	}
	if r == nil {
		return resp, nil
	}
	for _, rec := range r.Entries {
		if rec.UpdatedAt > since {
			resp.Entries = append(resp.Entries, rec.Entry)
		}
	}
	sort.Slice(resp.Entries, func(i, j int) bool {
		return resp.Entries[i].Timestamp < resp.Entries[j].Timestamp
	})
	resp.DeletedIDs = deletedSince(r.DeletedEntries, since)
	resp.LastUpdated = r.Revision
	return resp, nil
}

// PutEntry stores e, replacing any entry with the same id. Oversized inline
// photos are dropped and reported; a different device's entry for the same
// bib, point and run is reported as a cross-device duplicate.
func (s *Store) PutEntry(ctx context.Context, raceID string, e cm.Entry, device cm.DeviceIdentity) (*client.SendResponse, error) {
	id, err := normalizeRaceID(raceID)
	if err != nil {
		return nil, err
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, deletedAt := s.lookup(id, true)
	if deletedAt != 0 {
		return &client.SendResponse{Deleted: true, Message: raceDeletedMessage}, nil
	}

	s.Touch(id, device)
	resp := &client.SendResponse{Success: true}
	if e.HasInlinePhoto() && len(e.Photo) > s.maxPhotoBytes {
		e.Photo = ""
		resp.PhotoSkipped = true
	}
	if _, exists := r.Entries[e.ID]; !exists {
		resp.CrossDeviceDuplicate = findDuplicate(r, e)
	}

	stamp := r.Stamp(s.millis())
	e.SyncedAt = &stamp
	r.Entries[e.ID] = &models.EntryRecord{Entry: e, UpdatedAt: stamp}
	r.DeletedEntries = dropTombstone(r.DeletedEntries, e.ID)

	resp.Advisory = s.advisory(id, r)
	return resp, nil
}

func findDuplicate(r *models.Race, e cm.Entry) *client.Duplicate {
	if e.Bib == "" {
		return nil
	}
	for _, rec := range r.Entries {
		o := rec.Entry
		if o.DeviceID != e.DeviceID && o.Bib == e.Bib && o.Point == e.Point && o.Run == e.Run {
			return &client.Duplicate{Bib: o.Bib, Point: o.Point, Run: o.Run, DeviceName: o.DeviceName}
		}
	}
	return nil
}

func dropTombstone(log []models.Tombstone, id string) []models.Tombstone {
	out := log[:0]
	for _, t := range log {
		if t.ID != id {
			out = append(out, t)
		}
	}
	return out
}

// DeleteEntry removes entryID and logs the deletion. Unknown ids are logged
// too so a deletion that reaches the service first still propagates.
func (s *Store) DeleteEntry(ctx context.Context, raceID, entryID string) error {
	id, err := normalizeRaceID(raceID)
	if err != nil {
		return err
	}
	if entryID == "" {
		return fmt.Errorf("%w: missing entry id", common.ErrInvalidPayload)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, deletedAt := s.lookup(id, true)
	if deletedAt != 0 {
		return common.ErrRaceDeleted
	}
	delete(r.Entries, entryID)
	r.DeletedEntries = append(dropTombstone(r.DeletedEntries, entryID), models.Tombstone{ID: entryID, DeletedAt: r.Stamp(s.millis())})
	return nil
}

// PollFaults mirrors PollEntries for faults.
func (s *Store) PollFaults(ctx context.Context, raceID string, since int64) (*client.FaultPollResponse, error) {
	id, err := normalizeRaceID(raceID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, deletedAt := s.lookup(id, false)
	if deletedAt != 0 {
		return &client.FaultPollResponse{RaceStatus: raceStatus(deletedAt)}, nil
	}
	resp := &client.FaultPollResponse{
		Advisory:   s.advisory(id, r),
		Faults:     []cm.FaultEntry{},
		DeletedIDs: []string{},
	}
	if r == nil {
		return resp, nil
	}
	for _, rec := range r.Faults {
		if rec.UpdatedAt > since {
			resp.Faults = append(resp.Faults, rec.Fault.Clone())
		}
	}
	sort.Slice(resp.Faults, func(i, j int) bool {
		return resp.Faults[i].Timestamp < resp.Faults[j].Timestamp
	})
	resp.DeletedIDs = deletedSince(r.DeletedFaults, since)
	resp.LastUpdated = r.Revision
	return resp, nil
}

// PutFault stores f unless the service already holds a newer version of it.
// Faults are keyed by id only; two devices reporting the same gate keep two faults.
func (s *Store) PutFault(ctx context.Context, raceID string, f cm.FaultEntry, device cm.DeviceIdentity) (*client.SendResponse, error) {
	id, err := normalizeRaceID(raceID)
	if err != nil {
		return nil, err
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, deletedAt := s.lookup(id, true)
	if deletedAt != 0 {
		return &client.SendResponse{Deleted: true, Message: raceDeletedMessage}, nil
	}

	s.Touch(id, device)
	if cur, ok := r.Faults[f.ID]; !ok || f.CurrentVersion >= cur.Fault.CurrentVersion {
		stamp := r.Stamp(s.millis())
		f = f.Clone()
		f.SyncedAt = &stamp
		r.Faults[f.ID] = &models.FaultRecord{Fault: f, UpdatedAt: stamp}
		r.DeletedFaults = dropTombstone(r.DeletedFaults, f.ID)
	}

	return &client.SendResponse{Success: true, Advisory: s.advisory(id, r)}, nil
}

// DeleteFault removes faultID and logs the deletion.
func (s *Store) DeleteFault(ctx context.Context, raceID, faultID string) error {
	id, err := normalizeRaceID(raceID)
	if err != nil {
		return err
	}
	if faultID == "" {
		return fmt.Errorf("%w: missing fault id", common.ErrInvalidPayload)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, deletedAt := s.lookup(id, true)
	if deletedAt != 0 {
		return common.ErrRaceDeleted
	}
	delete(r.Faults, faultID)
	r.DeletedFaults = append(dropTombstone(r.DeletedFaults, faultID), models.Tombstone{ID: faultID, DeletedAt: r.Stamp(s.millis())})
	return nil
}

// DeleteRace drops raceID. Later polls and pushes for it report the race as deleted.
func (s *Store) DeleteRace(ctx context.Context, raceID string) error {
	id, err := normalizeRaceID(raceID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, gone := s.deleted[id]; gone {
		return common.ErrRaceDeleted
	}
	if _, ok := s.races[id]; !ok {
		return common.ErrNotFound
	}
	delete(s.races, id)
	s.deleted[id] = s.millis()
	return nil
}
