package events

import "sync"

// maxRecorded bounds the in-memory history
const maxRecorded = 10000

// Recorder keeps a bounded in-memory history of events. It is both an
// Emitter and a Sink.
type Recorder struct {
	mu     sync.RWMutex
	events []Event
}

// NewRecorder creates an empty recorder
func NewRecorder() *Recorder {
	return &Recorder{events: make([]Event, 0, 64)}
}

func (r *Recorder) Emit(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, e)
	if len(r.events) > maxRecorded {
		r.events = r.events[len(r.events)-maxRecorded:]
	}
}

func (r *Recorder) Handle(e Event) error {
	r.Emit(e)
	return nil
}

// Events returns a copy of the recorded history
func (r *Recorder) Events() []Event {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// OfKind returns the recorded events of one kind
func (r *Recorder) OfKind(kind Kind) []Event {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Event
	for _, e := range r.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// Counts tallies the recorded events by kind
func (r *Recorder) Counts() map[Kind]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[Kind]int)
	for _, e := range r.events {
		counts[e.Kind]++
	}
	return counts
}

// Reset clears the history
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = r.events[:0]
}
