package trigger

import "buildflow/internal/engine"

// State is the outcome of one trigger-and-poll cycle. Exactly one state
// holds at resolution.
type State string

const (
	// StateQueued means the request is in the queue and no executor has
	// picked it up yet. Returned by TriggerBuild; never the result of a
	// completed poll.
	StateQueued State = "QUEUED"

	// StateStarted means the queue item resolved to an assigned build
	// number. Terminal.
	StateStarted State = "STARTED"

	// StateCancelledInQueue means the request was cancelled on the server
	// before execution. Terminal.
	StateCancelledInQueue State = "CANCELLED_IN_QUEUE"

	// StateStuckInQueue means the server reports the request as stuck,
	// e.g. no executor is capable of running it. Terminal.
	StateStuckInQueue State = "STUCK_IN_QUEUE"

	// StateTimedOut means the caller's timeout elapsed before the queue
	// item resolved. Terminal for the call, but the request is still in
	// the queue; callers may poll again with the retained queue reference.
	StateTimedOut State = "TIMED_OUT"
)

// Terminal returns true for states after which no further transition occurs
// for the call that produced them.
func (s State) Terminal() bool {
	return s != StateQueued
}

// Status is the result of a trigger or poll call. It is a value: re-polling
// produces a new Status rather than mutating an old one.
//
// QueueRef is set for every state so callers can keep polling after a
// timeout. BuildNumber is set if and only if State is StateStarted.
type Status struct {
	State       State                 `json:"state"`
	QueueRef    engine.QueueReference `json:"queue_reference"`
	BuildNumber int                   `json:"build_number,omitempty"`
}
