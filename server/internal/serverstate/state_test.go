package serverstate

import "testing"

func TestTrackerLifecycle(t *testing.T) {
	tr := NewTracker()
	if got := tr.Status(); got != NotReady {
		t.Fatalf("initial state = %q; want %q", got, NotReady)
	}

	tr.SetStatus(Ready)
	if got := tr.Status(); got != Ready {
		t.Fatalf("state after SetStatus = %q; want %q", got, Ready)
	}

	tr.StartDrain()
	if got := tr.Status(); got != Draining {
		t.Fatalf("state after StartDrain = %q; want %q", got, Draining)
	}
	if !tr.IsDraining() {
		t.Fatalf("IsDraining = false; want true")
	}

	tr.SetStatus(Ready)
	if st := tr.Load(); st.Status != Draining || !st.Draining {
		t.Fatalf("draining server left drain: %#v", st)
	}
}

func TestZeroTracker(t *testing.T) {
	var tr Tracker
	if got := tr.Status(); got != "unknown" {
		t.Fatalf("zero tracker status = %q", got)
	}
}
