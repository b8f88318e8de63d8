package diag

import (
	"sync"
	"time"
)

// Record is one captured error.
type Record struct {
	At        time.Time `json:"at"`
	Component string    `json:"component"`
	Message   string    `json:"message"`
}

// Ring is a bounded circular buffer of recent errors. It is constructed once
// at startup and passed by reference to whatever needs to report or read
// diagnostics; there is no package-level instance.
type Ring struct {
	mu       sync.Mutex
	records  []Record
	next     int
	size     int
	capacity int
}

func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = 64
	}
	return &Ring{
		records:  make([]Record, capacity),
		capacity: capacity,
	}
}

// Push records an error, evicting the oldest entry when full.
func (r *Ring) Push(component string, err error) {
	if err == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.records[r.next] = Record{
		At:        time.Now(),
		Component: component,
		Message:   err.Error(),
	}
	r.next = (r.next + 1) % r.capacity
	if r.size < r.capacity {
		r.size++
	}
}

// Snapshot returns the captured records, oldest first.
func (r *Ring) Snapshot() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Record, 0, r.size)
	start := r.next - r.size
	if start < 0 {
		start += r.capacity
	}
	for i := 0; i < r.size; i++ {
		out = append(out, r.records[(start+i)%r.capacity])
	}
	return out
}

// Len returns the number of captured records.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}
