package eventlog

// Ring is a fixed-capacity circular buffer of events with O(1) append.
// Once full, each append evicts the oldest entry.
type Ring struct {
	buf  []Event
	head int // index of the oldest entry
	size int
}

// NewRing creates a ring with the given capacity.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = 1
	}
	return &Ring{buf: make([]Event, capacity)}
}

// Append adds an event, evicting the oldest when full.
func (r *Ring) Append(ev Event) {
	if r.size < len(r.buf) {
		r.buf[(r.head+r.size)%len(r.buf)] = ev
		r.size++
		return
	}
	r.buf[r.head] = ev
	r.head = (r.head + 1) % len(r.buf)
}

// Len returns the number of buffered events.
func (r *Ring) Len() int {
	return r.size
}

// Tail returns the most recent limit events in chronological order.
// Fewer are returned if fewer exist; limit <= 0 returns nil.
func (r *Ring) Tail(limit int) []Event {
	if limit <= 0 || r.size == 0 {
		return nil
	}
	if limit > r.size {
		limit = r.size
	}

	out := make([]Event, limit)
	start := r.head + r.size - limit
	for i := 0; i < limit; i++ {
		out[i] = r.buf[(start+i)%len(r.buf)]
	}
	return out
}
