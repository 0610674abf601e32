// Package network tracks whether the station can reach the coordination
// service and whether the link is metered.
package network

import (
	"sort"
	"sync"
)

// Quality is the two-valued link quality the sync services act on.
type Quality string

const (
	QualityGood    Quality = "good"
	QualityOffline Quality = "offline"
)

// Info is optional connection metadata reported by the platform.
type Info struct {
	Type          string // "wifi", "cellular", "ethernet", ...
	EffectiveType string // "4g", "3g", "2g", "slow-2g"
	SaveData      bool
}

// Monitor holds the current link state and fans changes out to subscribers.
// Callbacks run outside the lock, in subscription order.
type Monitor struct {
	mu      sync.Mutex
	online  bool
	info    Info
	quality Quality
	metered bool

	nextID      uint64
	qualitySubs map[uint64]func(Quality)
	meteredSubs map[uint64]func(bool)
	onlineSubs  map[uint64]func(bool)
}

// NewMonitor starts in the given online state with no connection metadata.
func NewMonitor(online bool) *Monitor {
	m := &Monitor{
		online:      online,
		qualitySubs: make(map[uint64]func(Quality)),
		meteredSubs: make(map[uint64]func(bool)),
		onlineSubs:  make(map[uint64]func(bool)),
	}
	m.quality = m.deriveQuality()
	return m
}

// Quality returns good or offline. Slow links still count as good.
func (m *Monitor) Quality() Quality {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.quality
}

// IsOnline reports whether the last platform signal was online.
func (m *Monitor) IsOnline() bool {
	return m.Quality() != QualityOffline
}

// IsMetered reports whether the link is cellular or in data-saver mode.
func (m *Monitor) IsMetered() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.metered
}

// Info returns the last reported connection metadata.
func (m *Monitor) Info() Info {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.info
}

func (m *Monitor) deriveQuality() Quality {
	if !m.online {
		return QualityOffline
	}
	return QualityGood
}

// SetOnline applies the platform online/offline signal.
func (m *Monitor) SetOnline(online bool) {
	m.mu.Lock()
	changed := m.online != online
	m.online = online
	var onlineFns []func(bool)
	if changed {
		onlineFns = ordered(m.onlineSubs)
	}
	qualityFns, q := m.refreshQualityLocked()
	m.mu.Unlock()

	for _, fn := range onlineFns {
		fn(online)
	}
	for _, fn := range qualityFns {
		fn(q)
	}
}

// SetConnectionInfo applies connection metadata.
func (m *Monitor) SetConnectionInfo(info Info) {
	m.mu.Lock()
	m.info = info
	metered := info.SaveData || info.Type == "cellular"
	var meteredFns []func(bool)
	if metered != m.metered {
		m.metered = metered
		meteredFns = ordered(m.meteredSubs)
	}
	qualityFns, q := m.refreshQualityLocked()
	m.mu.Unlock()

	for _, fn := range meteredFns {
		fn(metered)
	}
	for _, fn := range qualityFns {
		fn(q)
	}
}

func (m *Monitor) refreshQualityLocked() ([]func(Quality), Quality) {
	q := m.deriveQuality()
	if q == m.quality {
		return nil, q
	}
	m.quality = q
	return ordered(m.qualitySubs), q
}

// OnQualityChange calls fn whenever the quality changes.
func (m *Monitor) OnQualityChange(fn func(Quality)) (unsubscribe func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return subscribe(m, m.qualitySubs, fn)
}

// OnMeteredChange calls fn whenever the metered flag flips.
func (m *Monitor) OnMeteredChange(fn func(bool)) (unsubscribe func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return subscribe(m, m.meteredSubs, fn)
}

// WatchOnlineOffline wires handlers to the platform signal. The monitor's
// quality is updated before the handlers run.
func (m *Monitor) WatchOnlineOffline(onOnline, onOffline func()) (unsubscribe func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return subscribe(m, m.onlineSubs, func(online bool) {
		if online {
			if onOnline != nil {
				onOnline()
			}
			return
		}
		if onOffline != nil {
			onOffline()
		}
	})
}

func subscribe[T any](m *Monitor, subs map[uint64]func(T), fn func(T)) func() {
	m.nextID++
	id := m.nextID
	subs[id] = fn
	return func() {
		m.mu.Lock()
		delete(subs, id)
		m.mu.Unlock()
	}
}

func ordered[T any](subs map[uint64]func(T)) []func(T) {
	ids := make([]uint64, 0, len(subs))
	for id := range subs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	fns := make([]func(T), len(ids))
	for i, id := range ids {
		fns[i] = subs[id]
	}
	return fns
}
