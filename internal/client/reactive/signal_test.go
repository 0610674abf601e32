package reactive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEffect_RunsImmediatelyAndOnWrite(t *testing.T) {
	rt := NewRuntime()
	count := NewSignal(rt, 1)

	var seen []int
	dispose := rt.Effect(func() { seen = append(seen, count.Get()) })
	defer dispose()

	count.Set(2)
	count.Set(3)

	assert.Equal(t, []int{1, 2, 3}, seen)
}

func TestEffect_DisposeStopsUpdates(t *testing.T) {
	rt := NewRuntime()
	s := NewSignal(rt, "a")

	runs := 0
	dispose := rt.Effect(func() { _ = s.Get(); runs++ })
	dispose()
	dispose()

	s.Set("b")
	assert.Equal(t, 1, runs)
}

func TestEffect_RegistrationOrder(t *testing.T) {
	rt := NewRuntime()
	s := NewSignal(rt, 0)

	var order []string
	for _, name := range []string{"first", "second", "third"} {
		name := name
		rt.Effect(func() {
			if s.Get() > 0 {
				order = append(order, name)
			}
		})
	}

	s.Set(1)
	s.Set(2)
	assert.Equal(t, []string{"first", "second", "third", "first", "second", "third"}, order)
}

func TestEffect_DependenciesRecollectedEachRun(t *testing.T) {
	rt := NewRuntime()
	useA := NewSignal(rt, true)
	a := NewSignal(rt, "a1")
	b := NewSignal(rt, "b1")

	var seen []string
	rt.Effect(func() {
		if useA.Get() {
			seen = append(seen, a.Get())
		} else {
			seen = append(seen, b.Get())
		}
	})

	useA.Set(false)
	a.Set("a2") // no longer a dependency
	b.Set("b2")

	assert.Equal(t, []string{"a1", "b1", "b2"}, seen)
}

func TestPeekAndUntracked_DoNotTrack(t *testing.T) {
	rt := NewRuntime()
	s := NewSignal(rt, 1)
	other := NewSignal(rt, 1)

	runs := 0
	rt.Effect(func() {
		_ = s.Peek()
		rt.Untracked(func() { _ = other.Get() })
		runs++
	})

	s.Set(2)
	other.Set(2)
	assert.Equal(t, 1, runs)
}

func TestSignalFunc_EqualValueSkipsNotification(t *testing.T) {
	rt := NewRuntime()
	s := NewSignalFunc(rt, "en", func(a, b string) bool { return a == b })

	runs := 0
	rt.Effect(func() { _ = s.Get(); runs++ })

	s.Set("en")
	s.Set("de")
	assert.Equal(t, 2, runs)
}

func TestEffect_ReentrantWriteReevaluatesDependents(t *testing.T) {
	rt := NewRuntime()
	raw := NewSignal(rt, 5)
	clamped := NewSignal(rt, 0)

	rt.Effect(func() {
		v := raw.Get()
		if v > 10 {
			raw.Set(10)
			return
		}
		clamped.Set(v)
	})

	raw.Set(42)
	require.Equal(t, 10, raw.Peek())
	assert.Equal(t, 10, clamped.Peek())
}

func TestSignal_Update(t *testing.T) {
	rt := NewRuntime()
	s := NewSignal(rt, []string{"a"})
	s.Update(func(v []string) []string { return append(v, "b") })
	assert.Equal(t, []string{"a", "b"}, s.Peek())
}
