package collector

import (
	"sync"
	"time"

	"event-logger/eventlogger"
)

// Batch is one accepted POST /events request.
type Batch struct {
	ID         string
	Tenant     string
	ReceivedAt time.Time
	Events     []eventlogger.Event
}

// Recorder keeps accepted batches in memory.
type Recorder struct {
	mu      sync.Mutex
	batches []Batch
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Add(b Batch) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, b)
}

// Batches returns a copy of every accepted batch in arrival order.
func (r *Recorder) Batches() []Batch {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Batch, len(r.batches))
	copy(out, r.batches)
	return out
}

// EventCount returns the number of events across all batches.
func (r *Recorder) EventCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, b := range r.batches {
		n += len(b.Events)
	}
	return n
}
