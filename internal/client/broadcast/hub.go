package broadcast

import (
	"sync"
)

// Hub connects tabs running in one process. Every Open returns a new
// endpoint; a Post reaches all other endpoints open on the same name.
type Hub struct {
	mu     sync.Mutex
	nextID uint64
	named  map[string]map[uint64]*hubEndpoint
}

func NewHub() *Hub {
	return &Hub{named: make(map[string]map[uint64]*hubEndpoint)}
}

// Open implements Opener.
func (h *Hub) Open(name string) (Channel, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	ep := &hubEndpoint{hub: h, name: name, id: h.nextID, subs: make(map[uint64]func([]byte))}
	if h.named[name] == nil {
		h.named[name] = make(map[uint64]*hubEndpoint)
	}
	h.named[name][ep.id] = ep
	return ep, nil
}

// Endpoints reports how many endpoints are open on name.
func (h *Hub) Endpoints(name string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.named[name])
}

func (h *Hub) peers(name string, except uint64) []*hubEndpoint {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*hubEndpoint, 0, len(h.named[name]))
	for id, ep := range h.named[name] {
		if id != except {
			out = append(out, ep)
		}
	}
	return out
}

func (h *Hub) remove(ep *hubEndpoint) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.named[ep.name], ep.id)
	if len(h.named[ep.name]) == 0 {
		delete(h.named, ep.name)
	}
}

type hubEndpoint struct {
	hub  *Hub
	name string
	id   uint64

	mu     sync.Mutex
	closed bool
	nextID uint64
	subs   map[uint64]func([]byte)
}

func (ep *hubEndpoint) Post(data []byte) error {
	ep.mu.Lock()
	closed := ep.closed
	ep.mu.Unlock()
	if closed {
		return ErrClosed
	}
	for _, peer := range ep.hub.peers(ep.name, ep.id) {
		peer.deliver(append([]byte(nil), data...))
	}
	return nil
}

func (ep *hubEndpoint) deliver(data []byte) {
	ep.mu.Lock()
	if ep.closed {
		ep.mu.Unlock()
		return
	}
	fns := make([]func([]byte), 0, len(ep.subs))
	for _, fn := range ep.subs {
		fns = append(fns, fn)
	}
	ep.mu.Unlock()

	for _, fn := range fns {
		fn(data)
	}
}

func (ep *hubEndpoint) Subscribe(fn func([]byte)) func() {
	ep.mu.Lock()
	defer ep.mu.Unlock()
	ep.nextID++
	id := ep.nextID
	ep.subs[id] = fn
	return func() {
		ep.mu.Lock()
		delete(ep.subs, id)
		ep.mu.Unlock()
	}
}

func (ep *hubEndpoint) Close() error {
	ep.mu.Lock()
	if ep.closed {
		ep.mu.Unlock()
		return nil
	}
	ep.closed = true
	ep.subs = nil
	ep.mu.Unlock()
	ep.hub.remove(ep)
	return nil
}
