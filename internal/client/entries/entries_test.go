package entries

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmeckel/ski-race-timer-sub004/internal/client/models"
)

var base = time.Date(2026, 1, 10, 10, 0, 0, 0, time.UTC)

func entry(id, device string, offset time.Duration) models.Entry {
	return models.Entry{
		ID:         id,
		Bib:        "007",
		Point:      models.PointFinish,
		Run:        1,
		Timestamp:  models.FormatTimestamp(base.Add(offset)),
		Status:     models.StatusOK,
		DeviceID:   device,
		DeviceName: device,
	}
}

func ids(list []models.Entry) []string {
	out := make([]string, len(list))
	for i, e := range list {
		out[i] = e.ID
	}
	return out
}

func TestMergeCloud_IdempotentByID(t *testing.T) {
	incoming := []models.Entry{entry("B-1", "dev_b", time.Second)}

	first := MergeCloud(nil, incoming, nil, "dev_a")
	require.Equal(t, 1, first.AddedCount)

	second := MergeCloud(first.Entries, incoming, nil, "dev_a")
	assert.Equal(t, 0, second.AddedCount)
	assert.Len(t, second.Entries, 1)
}

func TestMergeCloud_DuplicateWithinBatch(t *testing.T) {
	e := entry("B-1", "dev_b", time.Second)
	res := MergeCloud(nil, []models.Entry{e, e}, nil, "dev_a")
	assert.Equal(t, 1, res.AddedCount)
}

func TestMergeCloud_ExcludesOwnDevice(t *testing.T) {
	res := MergeCloud(nil, []models.Entry{
		entry("A-1", "dev_a", time.Second),
		entry("B-1", "dev_b", 2*time.Second),
	}, nil, "dev_a")

	assert.Equal(t, 1, res.AddedCount)
	assert.Equal(t, []string{"B-1"}, ids(res.Entries))
}

func TestMergeCloud_EmptyOwnDeviceDisablesExclusion(t *testing.T) {
	res := MergeCloud(nil, []models.Entry{entry("A-1", "dev_a", time.Second)}, nil, "")
	assert.Equal(t, 1, res.AddedCount)
}

func TestMergeCloud_SkipsDeletedIDsForThisCallOnly(t *testing.T) {
	e := entry("B-1", "dev_b", time.Second)

	res := MergeCloud(nil, []models.Entry{e}, []string{"B-1"}, "dev_a")
	assert.Equal(t, 0, res.AddedCount)

	// deletedIds is not a persistent tombstone: a later stale response that
	// still carries the entry brings it back.
	res = MergeCloud(res.Entries, []models.Entry{e}, nil, "dev_a")
	assert.Equal(t, 1, res.AddedCount)
}

func TestMergeCloud_RejectsInvalid(t *testing.T) {
	bad := entry("B-1", "dev_b", time.Second)
	bad.Point = "X"

	res := MergeCloud(nil, []models.Entry{bad}, nil, "dev_a")
	assert.Equal(t, 0, res.AddedCount)
	require.Len(t, res.Rejected, 1)
}

func TestMergeCloud_SortedRegardlessOfArrivalOrder(t *testing.T) {
	var all []models.Entry
	for i := 0; i < 30; i++ {
		all = append(all, entry(fmt.Sprintf("B-%d", i), "dev_b", time.Duration(i)*time.Second))
	}

	rng := rand.New(rand.NewSource(7))
	for round := 0; round < 20; round++ {
		shuffled := append([]models.Entry(nil), all...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		var local []models.Entry
		for len(shuffled) > 0 {
			n := 1 + rng.Intn(5)
			if n > len(shuffled) {
				n = len(shuffled)
			}
			local = MergeCloud(local, shuffled[:n], nil, "dev_a").Entries
			shuffled = shuffled[n:]
		}

		require.Len(t, local, len(all))
		for i := 1; i < len(local); i++ {
			prev, _ := models.ParseTimestamp(local[i-1].Timestamp)
			cur, _ := models.ParseTimestamp(local[i].Timestamp)
			require.False(t, cur.Before(prev), "ledger must be sorted by timestamp")
		}
	}
}

func TestMergeCloud_DoesNotModifyInput(t *testing.T) {
	local := []models.Entry{entry("L-2", "dev_a", 2*time.Second)}
	_ = MergeCloud(local, []models.Entry{entry("B-1", "dev_b", time.Second)}, nil, "dev_a")
	assert.Equal(t, []string{"L-2"}, ids(local))
}

func TestRemoveDeletedCloud(t *testing.T) {
	local := []models.Entry{entry("a", "dev_a", 0), entry("b", "dev_b", time.Second)}

	out, n := RemoveDeletedCloud(local, []string{"b", "zzz"})
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"a"}, ids(out))

	out, n = RemoveDeletedCloud(local, nil)
	assert.Equal(t, 0, n)
	assert.Len(t, out, 2)
}

func TestAddRemoveUpdate(t *testing.T) {
	list := Add(nil, entry("a", "dev_a", 0))
	list = Add(list, entry("b", "dev_a", time.Second))

	list, ok := Update(list, "a", func(e models.Entry) models.Entry {
		e.Bib = "042"
		e.ID = "hijack"
		return e
	})
	require.True(t, ok)
	got, found := Find(list, "a")
	require.True(t, found)
	assert.Equal(t, "042", got.Bib)

	_, ok = Update(list, "missing", func(e models.Entry) models.Entry { return e })
	assert.False(t, ok)

	list, ok = Remove(list, "a")
	require.True(t, ok)
	assert.Equal(t, []string{"b"}, ids(list))

	_, ok = Remove(list, "a")
	assert.False(t, ok)
}

func TestMarkSyncedAndUnsynced(t *testing.T) {
	list := []models.Entry{entry("a", "dev_a", 0), entry("b", "dev_a", time.Second), entry("c", "dev_b", 0)}

	assert.Equal(t, []string{"a", "b"}, ids(Unsynced(list, "dev_a")))

	list, n := MarkSynced(list, []string{"a"}, 99)
	require.Equal(t, 1, n)
	assert.Equal(t, int64(99), *list[0].SyncedAt)
	assert.Equal(t, []string{"b"}, ids(Unsynced(list, "dev_a")))
}
