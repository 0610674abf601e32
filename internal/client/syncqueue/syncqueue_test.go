package syncqueue

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmeckel/ski-race-timer-sub004/internal/client/models"
)

func TestEnqueueDequeue(t *testing.T) {
	q := Enqueue(nil, models.Entry{ID: "a", Bib: "1"})
	q = Enqueue(q, models.Entry{ID: "b"})
	q, _ = RecordFailure(q, "a", errors.New("boom"), 10)

	q = Enqueue(q, models.Entry{ID: "a", Bib: "2"})
	require.Len(t, q, 2)
	item, ok := Find(q, "a")
	require.True(t, ok)
	assert.Equal(t, "2", item.Entry.Bib)
	assert.Zero(t, item.RetryCount)

	q, ok = Dequeue(q, "a")
	assert.True(t, ok)
	q, ok = Dequeue(q, "a")
	assert.False(t, ok)
	assert.Len(t, q, 1)
}

func TestRecordFailure(t *testing.T) {
	orig := Enqueue(nil, models.Entry{ID: "a"})

	q, ok := RecordFailure(orig, "a", errors.New("HTTP 503"), 100)
	require.True(t, ok)
	q, _ = RecordFailure(q, "a", errors.New("timeout"), 200)

	item, _ := Find(q, "a")
	assert.Equal(t, 2, item.RetryCount)
	assert.Equal(t, int64(200), item.LastAttempt)
	assert.Equal(t, "timeout", item.Error)

	first, _ := Find(orig, "a")
	assert.Zero(t, first.RetryCount, "input must not be modified")

	_, ok = RecordFailure(q, "missing", nil, 0)
	assert.False(t, ok)
}

func TestRecordAttempt(t *testing.T) {
	q := Enqueue(nil, models.Entry{ID: "a"})
	q, ok := RecordAttempt(q, "a", 42)
	require.True(t, ok)
	item, _ := Find(q, "a")
	assert.Equal(t, int64(42), item.LastAttempt)
	assert.Zero(t, item.RetryCount)
}

func TestPrune(t *testing.T) {
	q := Enqueue(Enqueue(nil, models.Entry{ID: "a"}), models.Entry{ID: "b"})
	q, n := Prune(q, func(id string) bool { return id == "b" })
	assert.Equal(t, 1, n)
	require.Len(t, q, 1)
	assert.Equal(t, "b", q[0].Entry.ID)
}
