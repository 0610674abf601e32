package reactive

import "sync"

type effect struct {
	id uint64
	rt *Runtime
	fn func()

	mu       sync.Mutex
	sources  map[subject]struct{}
	running  bool
	dirty    bool
	disposed bool
}

// Effect runs fn immediately and again whenever a signal read during its
// previous run changes. The returned function disposes the effect; it is safe
// to call more than once.
func (rt *Runtime) Effect(fn func()) (dispose func()) {
	e := &effect{id: rt.newID(), rt: rt, fn: fn, sources: make(map[subject]struct{})}
	e.run()
	return e.dispose
}

func (e *effect) track(s subject) {
	e.mu.Lock()
	e.sources[s] = struct{}{}
	e.mu.Unlock()
}

func (e *effect) untrackAll() {
	e.mu.Lock()
	sources := e.sources
	e.sources = make(map[subject]struct{})
	e.mu.Unlock()

	for s := range sources {
		s.unsubscribe(e)
	}
}

// run executes the effect. A write that reaches the effect while it is already
// running marks it dirty and the outer run loops once more.
func (e *effect) run() {
	e.mu.Lock()
	if e.disposed {
		e.mu.Unlock()
		return
	}
	if e.running {
		e.dirty = true
		e.mu.Unlock()
		return
	}
	e.running = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()

	for {
		e.mu.Lock()
		e.dirty = false
		e.mu.Unlock()

		e.untrackAll()
		e.execute()

		e.mu.Lock()
		again := e.dirty && !e.disposed
		e.mu.Unlock()
		if !again {
			return
		}
	}
}

func (e *effect) execute() {
	e.rt.push(e)
	defer e.rt.pop()
	e.fn()
}

func (e *effect) dispose() {
	e.mu.Lock()
	if e.disposed {
		e.mu.Unlock()
		return
	}
	e.disposed = true
	e.mu.Unlock()

	e.untrackAll()
}
