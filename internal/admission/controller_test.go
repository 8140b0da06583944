package admission

import "testing"

func TestQueueIsFIFO(t *testing.T) {
	c := NewController()
	c.Enqueue("g1", "Ana")
	c.Enqueue("g2", "Ben")
	c.Enqueue("g3", "Caro")

	pending := c.Pending()
	if len(pending) != 3 {
		t.Fatalf("len(Pending()) = %d, want 3", len(pending))
	}
	for i, want := range []string{"g1", "g2", "g3"} {
		if pending[i].ParticipantID != want {
			t.Errorf("Pending()[%d] = %s, want %s", i, pending[i].ParticipantID, want)
		}
	}
}

func TestApproveTransitionsAndDequeues(t *testing.T) {
	c := NewController()
	c.Enqueue("g1", "Ana")
	c.Enqueue("g2", "Ben")

	if !c.Approve("g1") {
		t.Fatal("Approve(g1) = false, want true")
	}
	if got := c.StateOf("g1"); got != Approved {
		t.Errorf("StateOf(g1) = %s, want approved", got)
	}
	if !c.Admitted("g1") {
		t.Error("Admitted(g1) = false")
	}
	if pending := c.Pending(); len(pending) != 1 || pending[0].ParticipantID != "g2" {
		t.Errorf("Pending() = %v, want [g2]", pending)
	}
}

func TestRejectIsTerminal(t *testing.T) {
	c := NewController()
	c.Enqueue("g1", "Ana")

	if !c.Reject("g1") {
		t.Fatal("Reject(g1) = false, want true")
	}
	if c.Admitted("g1") {
		t.Error("rejected guest reported as admitted")
	}
	// Decisions on a decided guest are no-ops.
	if c.Approve("g1") {
		t.Error("Approve after Reject = true, want false")
	}
	// A re-request after rejection is ignored.
	if c.Enqueue("g1", "Ana") {
		t.Error("Enqueue after Reject = true, want false")
	}
}

func TestDuplicateRequestIgnored(t *testing.T) {
	c := NewController()
	if !c.Enqueue("g1", "Ana") {
		t.Fatal("first Enqueue = false")
	}
	if c.Enqueue("g1", "Ana") {
		t.Error("duplicate Enqueue = true, want false")
	}
	if got := len(c.Pending()); got != 1 {
		t.Errorf("len(Pending()) = %d, want 1", got)
	}
}

func TestDecisionOnUnknownGuest(t *testing.T) {
	c := NewController()
	if c.Approve("ghost") {
		t.Error("Approve(ghost) = true, want false")
	}
	if c.Reject("ghost") {
		t.Error("Reject(ghost) = true, want false")
	}
}

func TestHostImplicitlyApproved(t *testing.T) {
	c := NewController()
	c.MarkApproved("host")
	if !c.Admitted("host") {
		t.Error("Admitted(host) = false after MarkApproved")
	}
}

func TestForgetClearsPending(t *testing.T) {
	c := NewController()
	c.Enqueue("g1", "Ana")
	c.Forget("g1")
	if len(c.Pending()) != 0 {
		t.Error("Pending() not empty after Forget")
	}
	if got := c.StateOf("g1"); got != NotRequested {
		t.Errorf("StateOf after Forget = %s, want not-requested", got)
	}
	// The guest may request again after leaving.
	if !c.Enqueue("g1", "Ana") {
		t.Error("Enqueue after Forget = false, want true")
	}
}
