package serverstate

import "sync/atomic"

// Status values reported by /healthz.
const (
	NotReady = "not_ready"
	Ready    = "ready"
	Draining = "draining"
)

// State holds the server status and draining flag. Both are swapped together
// so readers always observe a consistent snapshot.
type State struct {
	Status   string `json:"status"`
	Draining bool   `json:"draining"`
}

// Tracker tracks the lifecycle of the server. It is safe for concurrent use.
type Tracker struct {
	v atomic.Value
}

// NewTracker returns a Tracker initialized to "not_ready".
func NewTracker() *Tracker {
	t := &Tracker{}
	t.v.Store(State{Status: NotReady})
	return t
}

// Load returns the current snapshot.
func (t *Tracker) Load() State {
	if st, ok := t.v.Load().(State); ok {
		return st
	}
	return State{Status: "unknown"}
}

// SetStatus updates the status string. A draining server stays draining.
func (t *Tracker) SetStatus(status string) {
	st := t.Load()
	if st.Draining {
		return
	}
	st.Status = status
	t.v.Store(st)
}

// Status returns the current status string.
func (t *Tracker) Status() string { return t.Load().Status }

// StartDrain marks the server as draining.
func (t *Tracker) StartDrain() {
	t.v.Store(State{Status: Draining, Draining: true})
}

// IsDraining reports whether the server is draining.
func (t *Tracker) IsDraining() bool { return t.Load().Draining }
