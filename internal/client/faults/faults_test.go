package faults

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmeckel/ski-race-timer-sub004/internal/client/models"
)

var (
	t0     = time.Date(2026, 1, 10, 10, 0, 0, 0, time.UTC)
	judgeA = models.DeviceIdentity{ID: "dev_a", Name: "Gate Judge A"}
	judgeB = models.DeviceIdentity{ID: "dev_b", Name: "Gate Judge B"}
)

func snapshot(gate int) models.FaultSnapshot {
	return models.FaultSnapshot{
		Bib:        "007",
		Run:        1,
		GateNumber: gate,
		FaultType:  models.FaultMissedGate,
		GateRange:  [2]int{1, 20},
	}
}

func intPtr(v int) *int { return &v }

func TestNew(t *testing.T) {
	f := New("f1", snapshot(4), judgeA, t0)

	require.NoError(t, f.Validate())
	assert.Equal(t, 1, f.CurrentVersion)
	require.Len(t, f.VersionHistory, 1)
	assert.Equal(t, models.ChangeCreate, f.VersionHistory[0].ChangeType)
	assert.Equal(t, snapshot(4), f.VersionHistory[0].Data)
	assert.Equal(t, 4, f.GateNumber)
	assert.Equal(t, "dev_a", f.DeviceID)
}

func TestEditThenRestore(t *testing.T) {
	for _, tc := range []struct {
		name  string
		edits int
		to    int
	}{
		{"restore create after one edit", 1, 1},
		{"restore create after five edits", 5, 1},
		{"restore middle edit", 5, 3},
		{"restore previous", 3, 3},
	} {
		t.Run(tc.name, func(t *testing.T) {
			f := New("f1", snapshot(1), judgeA, t0)
			var ok bool
			for i := 0; i < tc.edits; i++ {
				f, ok = Edit(f, models.FaultUpdate{GateNumber: intPtr(10 + i)}, "moved", judgeA, t0.Add(time.Minute))
				require.True(t, ok)
			}
			want, found := f.Version(tc.to)
			require.True(t, found)

			f, ok = Restore(f, tc.to, judgeB, t0.Add(time.Hour))
			require.True(t, ok)

			assert.Len(t, f.VersionHistory, tc.edits+2)
			assert.Equal(t, tc.edits+2, f.CurrentVersion)
			assert.Equal(t, want.Data, f.Snapshot())
			last := f.VersionHistory[len(f.VersionHistory)-1]
			assert.Equal(t, models.ChangeRestore, last.ChangeType)
			assert.Equal(t, "dev_b", last.EditedByDeviceID)
			for i, v := range f.VersionHistory {
				assert.Equal(t, i+1, v.Version, "history must never be renumbered")
			}
		})
	}
}

func TestRestore_NoOp(t *testing.T) {
	f := New("f1", snapshot(1), judgeA, t0)
	f, _ = Edit(f, models.FaultUpdate{GateNumber: intPtr(2)}, "", judgeA, t0)

	_, ok := Restore(f, f.CurrentVersion, judgeA, t0)
	assert.False(t, ok, "restoring the current version")

	_, ok = Restore(f, 9, judgeA, t0)
	assert.False(t, ok, "restoring an unknown version")
}

func TestEditAfterMarkForDeletion(t *testing.T) {
	f := New("f1", snapshot(1), judgeA, t0)
	f, ok := MarkForDeletion(f, judgeB, t0.Add(time.Minute))
	require.True(t, ok)
	assert.Equal(t, "Gate Judge B", f.MarkedForDeletionBy)
	assert.Equal(t, "dev_b", f.MarkedForDeletionByDeviceID)

	before := f.Clone()
	got, ok := Edit(f, models.FaultUpdate{GateNumber: intPtr(9)}, "late edit", judgeA, t0.Add(time.Hour))
	assert.False(t, ok)
	assert.Equal(t, before.VersionHistory, got.VersionHistory)
	assert.Equal(t, 1, got.CurrentVersion)

	_, ok = Restore(f, 1, judgeA, t0)
	assert.False(t, ok)

	_, ok = MarkForDeletion(f, judgeA, t0)
	assert.False(t, ok, "already pending")
}

func TestRejectDeletion(t *testing.T) {
	f := New("f1", snapshot(1), judgeA, t0)
	_, ok := RejectDeletion(f)
	assert.False(t, ok)

	f, _ = MarkForDeletion(f, judgeA, t0)
	f, ok = RejectDeletion(f)
	require.True(t, ok)
	assert.False(t, f.MarkedForDeletion)
	assert.Empty(t, f.MarkedForDeletionBy)

	_, ok = Edit(f, models.FaultUpdate{GateNumber: intPtr(3)}, "", judgeA, t0)
	assert.True(t, ok)
}

func TestApproveDeletion(t *testing.T) {
	live := New("live", snapshot(1), judgeA, t0)
	pending, _ := MarkForDeletion(New("pending", snapshot(2), judgeA, t0.Add(time.Second)), judgeA, t0)
	list := []models.FaultEntry{live, pending}

	_, _, ok := ApproveDeletion(list, "live", "Chief", t0)
	assert.False(t, ok, "only pending faults can be approved")

	out, approved, ok := ApproveDeletion(list, "pending", "Chief", t0.Add(time.Hour))
	require.True(t, ok)
	assert.Equal(t, "Chief", approved.DeletionApprovedBy)
	assert.NotEmpty(t, approved.DeletionApprovedAt)
	require.Len(t, out, 1)
	assert.Equal(t, "live", out[0].ID)
	assert.Len(t, list, 2)
}

func TestMergeCloud_NeverContentDeduplicates(t *testing.T) {
	a := New(NewID("dev_a", t0), snapshot(4), judgeA, t0)
	b := New(NewID("dev_b", t0), snapshot(4), judgeB, t0.Add(time.Second))

	local := []models.FaultEntry{a}
	res := MergeCloud(local, []models.FaultEntry{b}, nil)
	assert.Equal(t, 1, res.AddedCount)
	assert.Len(t, res.Faults, 2)

	res = MergeCloud(res.Faults, []models.FaultEntry{a, b}, nil)
	assert.Equal(t, 0, res.AddedCount)
	assert.Equal(t, 0, res.UpdatedCount)
	assert.Len(t, res.Faults, 2)
}

func TestMergeCloud_VersionRules(t *testing.T) {
	base := New("f1", snapshot(1), judgeA, t0)
	newer, _ := Edit(base, models.FaultUpdate{GateNumber: intPtr(8)}, "", judgeB, t0)
	marked, _ := MarkForDeletion(base, judgeB, t0)

	res := MergeCloud([]models.FaultEntry{base}, []models.FaultEntry{newer}, nil)
	assert.Equal(t, 1, res.UpdatedCount)
	assert.Equal(t, 8, res.Faults[0].GateNumber)

	res = MergeCloud([]models.FaultEntry{newer}, []models.FaultEntry{base}, nil)
	assert.Equal(t, 0, res.UpdatedCount, "older versions never win")
	assert.Equal(t, 8, res.Faults[0].GateNumber)

	res = MergeCloud([]models.FaultEntry{base}, []models.FaultEntry{marked}, nil)
	assert.Equal(t, 1, res.UpdatedCount)
	assert.True(t, res.Faults[0].MarkedForDeletion)
}

func TestMergeCloud_DeletedAndInvalid(t *testing.T) {
	ok := New("f1", snapshot(1), judgeA, t0)
	bad := New("f2", snapshot(1), judgeA, t0)
	bad.FaultType = "XX"

	res := MergeCloud(nil, []models.FaultEntry{ok, bad}, []string{"f1"})
	assert.Equal(t, 0, res.AddedCount)
	assert.Len(t, res.Rejected, 1)
}

func TestRemoveDeletedCloudAndSync(t *testing.T) {
	f1 := New("f1", snapshot(1), judgeA, t0)
	f2 := New("f2", snapshot(2), judgeA, t0.Add(time.Second))
	list := []models.FaultEntry{f1, f2}

	out, n := RemoveDeletedCloud(list, []string{"f2"})
	assert.Equal(t, 1, n)
	assert.Len(t, out, 1)

	assert.Len(t, Unsynced(list), 2)
	list, ok := MarkSynced(list, "f1", 2, 5)
	assert.False(t, ok, "stale version")
	list, ok = MarkSynced(list, "f1", 1, 5)
	require.True(t, ok)
	assert.Len(t, Unsynced(list), 1)

	edited, _ := Edit(list[0], models.FaultUpdate{GateNumber: intPtr(3)}, "", judgeA, t0)
	assert.Nil(t, edited.SyncedAt, "an edit needs a new push")
}
