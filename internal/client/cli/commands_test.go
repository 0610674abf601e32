package cli

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmeckel/ski-race-timer-sub004/internal/client/models"
	"github.com/jmeckel/ski-race-timer-sub004/internal/client/persist"
	"github.com/jmeckel/ski-race-timer-sub004/internal/client/services"
	"github.com/jmeckel/ski-race-timer-sub004/internal/client/store"
	"github.com/jmeckel/ski-race-timer-sub004/internal/logging"
)

type fakeStation struct {
	pins    []string
	loginFn func(pin string) error
	syncErr error
	syncs   int
}

func (f *fakeStation) Login(_ context.Context, pin string) error {
	f.pins = append(f.pins, pin)
	if f.loginFn != nil {
		return f.loginFn(pin)
	}
	return nil
}

func (f *fakeStation) SyncNow() error {
	f.syncs++
	return f.syncErr
}

func newTestApp(t *testing.T) (*App, *fakeStation, *bytes.Buffer) {
	t.Helper()
	snap := persist.DefaultSnapshot()
	snap.DeviceID = "dev_a"
	snap.DeviceName = "Gate Judge"
	snap.RaceID = "race-1"
	s := store.New(snap, logging.Nop(),
		store.WithDispatcher(func(fn func()) { fn() }),
		store.WithClock(func() time.Time { return time.Date(2026, 1, 10, 10, 0, 0, 0, time.UTC) }),
	)
	t.Cleanup(s.Close)

	st := &fakeStation{}
	out := &bytes.Buffer{}
	return &App{store: s, station: st, online: func() bool { return true }, out: out}, st, out
}

func TestApp_AddListDelete(t *testing.T) {
	ctx := context.Background()
	a, _, out := newTestApp(t)

	require.NoError(t, a.Add(ctx, []string{"7", "f", "2"}))
	require.NoError(t, a.Add(ctx, []string{"8", "start"}))
	entries := a.store.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, models.PointFinish, entries[0].Point)
	assert.Equal(t, 2, entries[0].Run)
	assert.Equal(t, 1, entries[1].Run)

	assert.ErrorIs(t, a.Add(ctx, []string{"7"}), errUsage)
	assert.ErrorIs(t, a.Add(ctx, []string{"7", "X"}), errUsage)
	assert.Error(t, a.Add(ctx, []string{"7", "F", "3"}))

	out.Reset()
	require.NoError(t, a.List(ctx, nil))
	assert.Contains(t, out.String(), entries[0].ID)
	assert.Contains(t, out.String(), entries[1].ID)

	assert.ErrorIs(t, a.Delete(ctx, []string{"dev_a-"}), errAmbigous)
	assert.ErrorIs(t, a.Delete(ctx, []string{"nope"}), errNotFound)
	require.NoError(t, a.Delete(ctx, []string{entries[0].ID}))
	assert.Len(t, a.store.Entries(), 1)

	out.Reset()
	a.store.ClearAll()
	require.NoError(t, a.List(ctx, nil))
	assert.Equal(t, "No entries\n", out.String())
}

func TestApp_FaultLifecycle(t *testing.T) {
	ctx := context.Background()
	a, _, out := newTestApp(t)

	require.NoError(t, a.Fault(ctx, []string{"7", "4", "mg"}))
	faults := a.store.Faults()
	require.Len(t, faults, 1)
	id := faults[0].ID
	assert.Equal(t, models.FaultMissedGate, faults[0].FaultType)

	assert.ErrorIs(t, a.Fault(ctx, []string{"7", "-1", "MG"}), errUsage)
	assert.ErrorIs(t, a.Fault(ctx, []string{"7", "4", "XX"}), errUsage)

	require.NoError(t, a.Edit(ctx, []string{id, "gate=5", "type=STR", "--", "wrong", "gate"}))
	f := a.store.Faults()[0]
	assert.Equal(t, 2, f.CurrentVersion)
	assert.Equal(t, 5, f.GateNumber)
	assert.Equal(t, "wrong gate", f.VersionHistory[1].ChangeDescription)

	assert.Error(t, a.Edit(ctx, []string{id, "colour=red"}))
	assert.Error(t, a.Edit(ctx, []string{id, "gate"}))

	require.NoError(t, a.Restore(ctx, []string{id, "1"}))
	f = a.store.Faults()[0]
	assert.Equal(t, 3, f.CurrentVersion)
	assert.Equal(t, 4, f.GateNumber)
	assert.Error(t, a.Restore(ctx, []string{id, "3"}), "current version cannot be restored")

	out.Reset()
	require.NoError(t, a.History(ctx, []string{id}))
	assert.Contains(t, out.String(), "v2 edit")
	assert.Contains(t, out.String(), "(wrong gate)")
	assert.Contains(t, out.String(), "* v3 restore")

	assert.Error(t, a.Approve(ctx, []string{id}), "not pending deletion")
	require.NoError(t, a.Mark(ctx, []string{id}))
	assert.Error(t, a.Mark(ctx, []string{id}))
	assert.Error(t, a.Edit(ctx, []string{id, "gate=6"}), "pending deletion faults are frozen")
	require.NoError(t, a.Reject(ctx, []string{id}))
	require.NoError(t, a.Mark(ctx, []string{id}))
	require.NoError(t, a.Approve(ctx, []string{id}))
	assert.Empty(t, a.store.Faults())
}

func TestApp_RaceLoginStatusSync(t *testing.T) {
	ctx := context.Background()
	a, st, out := newTestApp(t)

	require.NoError(t, a.Race(ctx, []string{" WC-2026 "}))
	assert.Equal(t, "WC-2026", a.store.RaceID())
	out.Reset()
	require.NoError(t, a.Race(ctx, nil))
	assert.Equal(t, "Race: WC-2026\n", out.String())

	origPIN := getPIN
	t.Cleanup(func() { getPIN = origPIN })
	getPIN = func(io.Writer) (string, error) { return "1234", nil }
	require.NoError(t, a.Login(ctx, nil))
	assert.Equal(t, []string{"1234"}, st.pins)

	require.NoError(t, a.Sync(ctx, []string{"off"}))
	assert.False(t, a.store.Settings().Sync)
	require.NoError(t, a.Sync(ctx, []string{"on"}))
	assert.True(t, a.store.Settings().Sync)
	assert.ErrorIs(t, a.Sync(ctx, []string{"maybe"}), errUsage)

	require.NoError(t, a.Sync(ctx, nil))
	st.syncErr = services.ErrSyncDisabled
	assert.ErrorIs(t, a.Sync(ctx, nil), services.ErrSyncDisabled)
	assert.Equal(t, 2, st.syncs)

	out.Reset()
	require.NoError(t, a.Status(ctx, nil))
	assert.Contains(t, out.String(), "Gate Judge (dev_a)")
	assert.Contains(t, out.String(), "online")
	assert.Equal(t, "(WC-2026 disconnected)", a.getStatus())
}
