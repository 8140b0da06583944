// Package admission implements the host-gated waiting room. Guests
// request to join and sit in a FIFO queue until the host approves or
// rejects them; only approved participants proceed to peer creation.
package admission

// State is the per-guest admission state machine:
// NotRequested -> PendingApproval -> {Approved, Rejected}.
type State int

const (
	NotRequested State = iota
	PendingApproval
	Approved
	Rejected
)

func (s State) String() string {
	switch s {
	case NotRequested:
		return "not-requested"
	case PendingApproval:
		return "pending-approval"
	case Approved:
		return "approved"
	case Rejected:
		return "rejected"
	}
	return "unknown"
}

// Request is one queued join request.
type Request struct {
	ParticipantID string
	Name          string
}

// Controller is the host-side admission queue plus per-guest states.
// Not safe for concurrent use; the orchestrator serializes access on
// its event loop.
type Controller struct {
	states map[string]State
	queue  []Request
}

// NewController creates an empty admission controller.
func NewController() *Controller {
	return &Controller{states: make(map[string]State)}
}

// Enqueue records an incoming request-to-join. Duplicate requests from
// a guest already pending or decided are ignored (at-least-once relay
// delivery).
func (c *Controller) Enqueue(participantID, name string) bool {
	if state := c.states[participantID]; state != NotRequested {
		return false
	}
	c.states[participantID] = PendingApproval
	c.queue = append(c.queue, Request{ParticipantID: participantID, Name: name})
	return true
}

// Approve transitions the guest to Approved and removes it from the
// queue. Returns false when the guest is not pending.
func (c *Controller) Approve(participantID string) bool {
	return c.decide(participantID, Approved)
}

// Reject transitions the guest to Rejected and removes it from the
// queue. Returns false when the guest is not pending.
func (c *Controller) Reject(participantID string) bool {
	return c.decide(participantID, Rejected)
}

func (c *Controller) decide(participantID string, verdict State) bool {
	if c.states[participantID] != PendingApproval {
		return false
	}
	c.states[participantID] = verdict
	for i, req := range c.queue {
		if req.ParticipantID == participantID {
			c.queue = append(c.queue[:i], c.queue[i+1:]...)
			break
		}
	}
	return true
}

// MarkApproved records an externally decided admission: the host
// itself (implicitly self-admitted) and the local guest once
// accept-join arrives.
func (c *Controller) MarkApproved(participantID string) {
	c.states[participantID] = Approved
}

// StateOf reports a participant's admission state.
func (c *Controller) StateOf(participantID string) State {
	return c.states[participantID]
}

// Admitted reports whether the participant may hold peer links.
func (c *Controller) Admitted(participantID string) bool {
	return c.states[participantID] == Approved
}

// Pending returns the queue in arrival order. The returned slice is a
// copy.
func (c *Controller) Pending() []Request {
	out := make([]Request, len(c.queue))
	copy(out, c.queue)
	return out
}

// Forget drops all state for a participant (left the room before a
// decision).
func (c *Controller) Forget(participantID string) {
	delete(c.states, participantID)
	for i, req := range c.queue {
		if req.ParticipantID == participantID {
			c.queue = append(c.queue[:i], c.queue[i+1:]...)
			break
		}
	}
}
