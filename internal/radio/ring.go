package radio

import "sync"

// Ring is a fixed-capacity packet queue between the receive goroutine (single
// producer) and the mission loop (single consumer). When the ring is full the
// incoming packet is dropped and counted; the mission loop never blocks on
// reception and the producer never blocks on a slow consumer.
type Ring struct {
	mu      sync.Mutex
	packets []string
	head    int
	tail    int
	size    int
	dropped uint64
}

// NewRing allocates a ring holding up to capacity packets.
func NewRing(capacity int) *Ring {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring{packets: make([]string, capacity)}
}

// Push enqueues pkt, reporting false when the ring was full and the packet
// was dropped.
func (r *Ring) Push(pkt string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.size == len(r.packets) {
		r.dropped++
		return false
	}
	r.packets[r.head] = pkt
	r.head = (r.head + 1) % len(r.packets)
	r.size++
	return true
}

// Pop dequeues the oldest packet.
func (r *Ring) Pop() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.size == 0 {
		return "", false
	}
	pkt := r.packets[r.tail]
	r.packets[r.tail] = ""
	r.tail = (r.tail + 1) % len(r.packets)
	r.size--
	return pkt, true
}

// Len returns the number of queued packets.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}

// Dropped returns the cumulative count of packets lost to overflow.
func (r *Ring) Dropped() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}
