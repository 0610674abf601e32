package persist

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmeckel/ski-race-timer-sub004/internal/client/localdb"
	"github.com/jmeckel/ski-race-timer-sub004/internal/client/models"
	"github.com/jmeckel/ski-race-timer-sub004/internal/client/repositories/photos"
	"github.com/jmeckel/ski-race-timer-sub004/internal/client/repositories/slices"
	"github.com/jmeckel/ski-race-timer-sub004/internal/logging"
)

type fakeBackend struct {
	mu     sync.Mutex
	writes []map[string][]byte
	docs   map[string][]byte
	fail   error
}

func (f *fakeBackend) SetMany(_ context.Context, docs map[string][]byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.writes = append(f.writes, docs)
	if f.docs == nil {
		f.docs = make(map[string][]byte)
	}
	for k, v := range docs {
		f.docs[k] = v
	}
	return nil
}

func (f *fakeBackend) List(context.Context) (map[string][]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.docs, nil
}

func (f *fakeBackend) setFail(err error) {
	f.mu.Lock()
	f.fail = err
	f.mu.Unlock()
}

func (f *fakeBackend) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.writes)
}

func (f *fakeBackend) lastWrite() map[string][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes[len(f.writes)-1]
}

func entry(id string) models.Entry {
	return models.Entry{
		ID: id, Bib: "007", Point: models.PointFinish, Run: 1,
		Timestamp: "2026-01-10T10:00:00.000Z", Status: models.StatusOK, DeviceID: "dev_a",
	}
}

func TestStore_OnlyDirtySlicesAreWritten(t *testing.T) {
	b := &fakeBackend{}
	s := New(b, logging.Nop(), WithDebounce(10*time.Millisecond))

	entries := []models.Entry{entry("a")}
	s.Register(KeyEntries, func() any { return entries })
	s.Register(KeySettings, func() any { return models.DefaultSettings() })
	s.Register(KeyRaceID, func() any { return "race-1" })

	s.MarkDirty(KeyEntries)

	require.Eventually(t, func() bool { return b.writeCount() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	require.Equal(t, 1, b.writeCount())

	w := b.lastWrite()
	assert.Len(t, w, 1)
	assert.Contains(t, w, string(KeyEntries))
	assert.Empty(t, s.Dirty())
}

func TestStore_DebounceCoalescesMarks(t *testing.T) {
	b := &fakeBackend{}
	s := New(b, logging.Nop(), WithDebounce(20*time.Millisecond))
	s.Register(KeyEntries, func() any { return []models.Entry{} })
	s.Register(KeyRaceID, func() any { return "r" })

	for i := 0; i < 5; i++ {
		s.MarkDirty(KeyEntries)
	}
	s.MarkDirty(KeyRaceID)

	require.Eventually(t, func() bool { return b.writeCount() == 1 }, time.Second, 5*time.Millisecond)
	assert.Len(t, b.lastWrite(), 2)
}

func TestStore_FailureKeepsFlagsAndRetries(t *testing.T) {
	b := &fakeBackend{fail: errors.New("quota exceeded")}
	s := New(b, logging.Nop(), WithDebounce(time.Hour), WithRetryDelay(10*time.Millisecond))
	s.Register(KeyEntries, func() any { return []models.Entry{entry("a")} })

	s.MarkDirty(KeyEntries)
	err := s.Flush(context.Background())
	require.Error(t, err)
	assert.Equal(t, []Key{KeyEntries}, s.Dirty())

	b.setFail(nil)
	require.Eventually(t, func() bool { return b.writeCount() == 1 }, time.Second, 5*time.Millisecond)
	assert.Empty(t, s.Dirty())
}

func TestStore_PhotosReplacedWithMarker(t *testing.T) {
	b := &fakeBackend{}
	db, err := localdb.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	blobs := photos.NewSQLiteRepository(db)

	s := New(b, logging.Nop(), WithDebounce(time.Hour), WithPhotos(blobs))
	withPhoto := entry("a")
	withPhoto.Photo = "data:image/jpeg;base64,AAAA"
	s.Register(KeyEntries, func() any { return []models.Entry{withPhoto} })
	s.Register(KeySyncQueue, func() any { return []models.SyncQueueItem{{Entry: withPhoto}} })

	s.MarkDirty(KeyEntries)
	s.MarkDirty(KeySyncQueue)
	require.NoError(t, s.Flush(context.Background()))

	var stored []models.Entry
	require.NoError(t, json.Unmarshal(b.lastWrite()[string(KeyEntries)], &stored))
	require.Len(t, stored, 1)
	assert.Equal(t, models.PhotoStoredMarker, stored[0].Photo)

	var queue []models.SyncQueueItem
	require.NoError(t, json.Unmarshal(b.lastWrite()[string(KeySyncQueue)], &queue))
	assert.Equal(t, models.PhotoStoredMarker, queue[0].Entry.Photo)

	data, err := blobs.Get(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, "data:image/jpeg;base64,AAAA", string(data))
}

func TestStore_LoadResetsMalformedSlices(t *testing.T) {
	bad := entry("bad")
	bad.Point = "Q"
	good, _ := json.Marshal([]models.Entry{entry("a"), bad})

	b := &fakeBackend{docs: map[string][]byte{
		string(KeyEntries):   good,
		string(KeyFaults):    []byte(`{not json`),
		string(KeySettings):  []byte(`{"sound":true}`),
		string(KeyRaceID):    []byte(`"race-1"`),
		string(KeyDeviceID):  []byte(`42`),
		string(KeySyncQueue): []byte(`[{"entry":{"id":"x"},"retryCount":1}]`),
	}}
	s := New(b, logging.Nop())

	snap, err := s.Load(context.Background())
	require.NoError(t, err)

	require.Len(t, snap.Entries, 1)
	assert.Equal(t, "a", snap.Entries[0].ID)
	assert.Empty(t, snap.Faults)
	assert.NotNil(t, snap.Faults)
	assert.True(t, snap.Settings.Sound)
	assert.True(t, snap.Settings.Auto, "missing settings keep their defaults")
	assert.Equal(t, "race-1", snap.RaceID)
	assert.Empty(t, snap.DeviceID)
	assert.Empty(t, snap.SyncQueue)
	assert.Equal(t, DefaultLanguage, snap.Language)
}

func TestStore_SQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	db, err := localdb.Open(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	s := New(slices.NewSQLiteRepository(db), logging.Nop(), WithDebounce(time.Hour))
	s.Register(KeyEntries, func() any { return []models.Entry{entry("a")} })
	s.Register(KeyLanguage, func() any { return "de" })
	s.MarkDirty(KeyEntries)
	s.MarkDirty(KeyLanguage)
	require.NoError(t, s.Close(ctx))

	snap, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Entries, 1)
	assert.Equal(t, "de", snap.Language)

	s.MarkDirty(KeyEntries)
	assert.Empty(t, s.Dirty(), "closed store ignores marks")
}
