// Package reactive implements fine-grained reactivity: Signals hold values,
// Effects re-run whenever a Signal they read is written.
//
// Dependencies are tracked explicitly. While an effect runs, every Signal.Get
// records the effect in the signal's dependent set; the set is rebuilt on each
// run so conditional reads stay accurate. Writes re-invoke dependents
// synchronously, in the order the effects were created, after the new value
// is stored.
//
// A Runtime owns the tracking context. Effects must run on one goroutine at a
// time per Runtime; the Store guarantees this by serializing its writes.
package reactive

import (
	"sort"
	"sync"
)

// Runtime holds the stack of effects currently executing.
type Runtime struct {
	mu     sync.Mutex
	stack  []*effect
	nextID uint64
}

// NewRuntime returns an empty tracking context.
func NewRuntime() *Runtime {
	return &Runtime{}
}

func (rt *Runtime) push(e *effect) {
	rt.mu.Lock()
	rt.stack = append(rt.stack, e)
	rt.mu.Unlock()
}

func (rt *Runtime) pop() {
	rt.mu.Lock()
	rt.stack = rt.stack[:len(rt.stack)-1]
	rt.mu.Unlock()
}

func (rt *Runtime) current() *effect {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if len(rt.stack) == 0 {
		return nil
	}
	return rt.stack[len(rt.stack)-1]
}

func (rt *Runtime) newID() uint64 {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.nextID++
	return rt.nextID
}

// Untracked runs fn without recording any reads against the running effect.
func (rt *Runtime) Untracked(fn func()) {
	rt.push(nil)
	defer rt.pop()
	fn()
}

// subject is the dependency side of a signal as seen by an effect.
type subject interface {
	unsubscribe(e *effect)
}

// Signal is a reactive cell.
type Signal[T any] struct {
	rt    *Runtime
	mu    sync.Mutex
	value T
	equal func(a, b T) bool
	deps  map[*effect]struct{}
}

// NewSignal creates a signal that notifies on every Set.
func NewSignal[T any](rt *Runtime, initial T) *Signal[T] {
	return NewSignalFunc(rt, initial, nil)
}

// NewSignalFunc creates a signal that skips notification when equal reports
// the new value unchanged. A nil equal notifies on every Set.
func NewSignalFunc[T any](rt *Runtime, initial T, equal func(a, b T) bool) *Signal[T] {
	return &Signal[T]{rt: rt, value: initial, equal: equal, deps: make(map[*effect]struct{})}
}

// Get returns the value and registers the running effect, if any, as dependent.
func (s *Signal[T]) Get() T {
	e := s.rt.current()

	s.mu.Lock()
	v := s.value
	if e != nil {
		s.deps[e] = struct{}{}
	}
	s.mu.Unlock()

	if e != nil {
		e.track(s)
	}
	return v
}

// Peek returns the value without tracking.
func (s *Signal[T]) Peek() T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// Set stores v and re-runs dependents in creation order.
func (s *Signal[T]) Set(v T) {
	s.mu.Lock()
	if s.equal != nil && s.equal(s.value, v) {
		s.mu.Unlock()
		return
	}
	s.value = v
	dependents := make([]*effect, 0, len(s.deps))
	for e := range s.deps {
		dependents = append(dependents, e)
	}
	s.mu.Unlock()

	sort.Slice(dependents, func(i, j int) bool { return dependents[i].id < dependents[j].id })
	for _, e := range dependents {
		e.run()
	}
}

// Update applies fn to the current value and stores the result.
func (s *Signal[T]) Update(fn func(T) T) {
	s.Set(fn(s.Peek()))
}

func (s *Signal[T]) unsubscribe(e *effect) {
	s.mu.Lock()
	delete(s.deps, e)
	s.mu.Unlock()
}
