package telemetry

import (
	"encoding/json"
	"net/http"
	"sync"

	"go.uber.org/atomic"

	"go.viam.com/flightcontrol/flight"
)

// recentEvents is how many events Latest keeps.
const recentEvents = 32

// Latest keeps the newest snapshot and the most recent events for status queries. It is safe to
// read from other goroutines while the control loop publishes.
type Latest struct {
	snapshot atomic.Pointer[flight.Snapshot]

	mu     sync.Mutex
	events []flight.Event
}

// NewLatest returns an empty Latest.
func NewLatest() *Latest {
	return &Latest{}
}

// Publish stores s.
func (l *Latest) Publish(s flight.Snapshot) {
	l.snapshot.Store(&s)
}

// Event records ev, dropping the oldest event once full.
func (l *Latest) Event(ev flight.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.events) == recentEvents {
		l.events = append(l.events[:0], l.events[1:]...)
	}
	l.events = append(l.events, ev)
}

// Snapshot returns the newest snapshot, if any.
func (l *Latest) Snapshot() (flight.Snapshot, bool) {
	s := l.snapshot.Load()
	if s == nil {
		return flight.Snapshot{}, false
	}
	return *s, true
}

// Events returns a copy of the recent events, oldest first.
func (l *Latest) Events() []flight.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]flight.Event(nil), l.events...)
}

// Status is the JSON document served by Latest.
type Status struct {
	Snapshot *flight.Snapshot `json:"snapshot"`
	Events   []flight.Event   `json:"events"`
}

// ServeHTTP writes the current Status as JSON.
func (l *Latest) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	st := Status{Snapshot: l.snapshot.Load(), Events: l.Events()}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(st); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
