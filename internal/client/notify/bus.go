// Package notify provides a bounded, reentrancy-safe fan-out bus.
//
// Notify enqueues a value for every current listener. Exactly one caller drains
// the queue at a time: a Notify issued from inside a listener (or from another
// goroutine while a drain is in progress) only enqueues, and the active
// drainer delivers it after the current item. The queue is capped; when it is
// full the oldest pending value is dropped so the newest state always arrives.
// A listener that panics is recovered and logged, and delivery continues.
package notify

import (
	"context"
	"fmt"
	"sync"

	"github.com/jmeckel/ski-race-timer-sub004/internal/logging"
)

// DefaultCapacity is the maximum number of pending notifications.
const DefaultCapacity = 100

type listener[T any] struct {
	id uint64
	fn func(T)
}

// Stats is a point-in-time view of the queue counters.
type Stats struct {
	Pending    int
	MaxPending int
	Dropped    uint64
	Panics     uint64
}

// Bus fans values out to subscribers in subscription order.
type Bus[T any] struct {
	name     string
	logger   logging.Logger
	capacity int

	mu        sync.Mutex
	listeners []listener[T]
	nextID    uint64
	queue     []T
	draining  bool
	stats     Stats
}

// Option configures a Bus.
type Option func(*options)

type options struct {
	capacity int
}

// WithCapacity overrides DefaultCapacity. Values below 1 are ignored.
func WithCapacity(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.capacity = n
		}
	}
}

// NewBus creates a bus; name only labels log lines.
func NewBus[T any](name string, logger logging.Logger, opts ...Option) *Bus[T] {
	o := options{capacity: DefaultCapacity}
	for _, opt := range opts {
		opt(&o)
	}
	return &Bus[T]{
		name:     name,
		logger:   logger.With("bus", name),
		capacity: o.capacity,
		queue:    make([]T, 0, o.capacity),
	}
}

// Subscribe registers fn and returns a function that removes it.
func (b *Bus[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.listeners = append(b.listeners, listener[T]{id: id, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for i, l := range b.listeners {
				if l.id == id {
					b.listeners = append(b.listeners[:i:i], b.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// Notify enqueues v and, unless a drain is already running, delivers the queue.
func (b *Bus[T]) Notify(v T) {
	b.Enqueue(v)
	b.Drain()
}

// Enqueue adds v to the pending queue without delivering it. Callers that
// must order notifications with their own state changes enqueue under their
// lock and call Drain after releasing it.
func (b *Bus[T]) Enqueue(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.queue) >= b.capacity {
		b.queue = b.queue[1:]
		b.stats.Dropped++
		if b.stats.Dropped == 1 || b.stats.Dropped%b.dropLogEvery() == 0 {
			b.logger.Warn(context.Background(), "notification queue full, dropped oldest",
				"capacity", b.capacity, "dropped_total", b.stats.Dropped)
		}
	}
	b.queue = append(b.queue, v)
	if len(b.queue) > b.stats.MaxPending {
		b.stats.MaxPending = len(b.queue)
	}
}

// Drain delivers pending values. It returns at once when another caller is
// already draining; that caller delivers whatever was enqueued.
func (b *Bus[T]) Drain() {
	b.mu.Lock()
	if b.draining {
		b.mu.Unlock()
		return
	}
	b.draining = true
	b.mu.Unlock()

	b.drain()
}

func (b *Bus[T]) dropLogEvery() uint64 {
	return uint64(b.capacity)
}

func (b *Bus[T]) drain() {
	for {
		b.mu.Lock()
		if len(b.queue) == 0 {
			b.draining = false
			b.mu.Unlock()
			return
		}
		v := b.queue[0]
		var zero T
		b.queue[0] = zero
		b.queue = b.queue[1:]
		targets := append([]listener[T](nil), b.listeners...)
		b.mu.Unlock()

		for _, l := range targets {
			b.deliver(l, v)
		}
	}
}

func (b *Bus[T]) deliver(l listener[T], v T) {
	defer func() {
		if r := recover(); r != nil {
			b.mu.Lock()
			b.stats.Panics++
			b.mu.Unlock()
			b.logger.Error(context.Background(), "listener failed", "listener", l.id, "error", fmt.Sprint(r))
		}
	}()
	l.fn(v)
}

// Stats returns the queue counters.
func (b *Bus[T]) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.stats
	s.Pending = len(b.queue)
	return s
}

// Len returns the number of subscribed listeners.
func (b *Bus[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listeners)
}
