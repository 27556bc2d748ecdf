package relay

import "sync"

// registry - ordered set of live peers guarded by single mutex.
type registry struct {
	mu     sync.Mutex
	closed bool
	list   []Peer
	index  map[Peer]struct{}
}

func newRegistry() *registry {
	return &registry{
		list:  []Peer{},
		index: make(map[Peer]struct{}),
	}
}

func (r *registry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.list)
}

func (r *registry) contains(p Peer) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.index[p]
	return ok
}

func (r *registry) add(p Peer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrServerClosed
	}
	if _, ok := r.index[p]; ok {
		return ErrPeerKept
	}
	r.index[p] = struct{}{}
	r.list = append(r.list, p)
	return nil
}

// remove - deletes peer and reports whether it was registered.
func (r *registry) remove(p Peer) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.index[p]; !ok {
		return false
	}
	delete(r.index, p)
	for i, kept := range r.list {
		if kept == p {
			copy(r.list[i:], r.list[i+1:])
			r.list[len(r.list)-1] = nil
			r.list = r.list[:len(r.list)-1]
			break
		}
	}
	return true
}

// snapshot - copies current membership in registration order.
func (r *registry) snapshot() []Peer {
	r.mu.Lock()
	defer r.mu.Unlock()
	peers := make([]Peer, len(r.list))
	copy(peers, r.list)
	return peers
}

// broadcast - writes b to every registered peer and returns number of successful deliveries.
// Writes happen outside the lock. Failure of one peer does not abort delivery to others.
func (r *registry) broadcast(b []byte) int {
	delivered := 0
	for _, p := range r.snapshot() {
		if _, err := p.Write(b); err == nil {
			delivered++
		}
	}
	return delivered
}

// drain - closes registry for new peers, clears it and returns peers which were kept.
func (r *registry) drain() []Peer {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	peers := r.list
	r.list = []Peer{}
	r.index = make(map[Peer]struct{})
	return peers
}
