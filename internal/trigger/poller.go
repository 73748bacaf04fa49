package trigger

import (
	"context"
	"fmt"
	"time"

	"buildflow/internal/engine"
	"buildflow/internal/logger"
)

// Defaults for the poll cadence. A build takes nonzero wall-clock time to be
// picked up, so the first check waits longer than the steady poll period.
const (
	DefaultFirstCheckDelay = 5 * time.Second
	DefaultPollPeriod      = time.Second
)

// Poller turns a one-shot enqueue request plus a caller-supplied timeout
// into a resolved Status, hiding the server's eventual consistency between
// "enqueued" and "running". It holds no state between calls; each call owns
// its queue reference exclusively.
type Poller struct {
	srv             engine.Server
	firstCheckDelay time.Duration
	pollPeriod      time.Duration
	clock           Clock
}

// NewPoller creates a Poller over srv. Non-positive delays fall back to the
// defaults.
func NewPoller(srv engine.Server, firstCheckDelay, pollPeriod time.Duration) *Poller {
	if firstCheckDelay <= 0 {
		firstCheckDelay = DefaultFirstCheckDelay
	}
	if pollPeriod <= 0 {
		pollPeriod = DefaultPollPeriod
	}
	return &Poller{
		srv:             srv,
		firstCheckDelay: firstCheckDelay,
		pollPeriod:      pollPeriod,
		clock:           realClock{},
	}
}

// WithClock replaces the wall clock, for tests.
func (p *Poller) WithClock(clock Clock) *Poller {
	p.clock = clock
	return p
}

// TriggerBuild submits a build request for jobName and returns immediately
// with a QUEUED status carrying the new queue reference. It does not wait
// for execution to start.
func (p *Poller) TriggerBuild(ctx context.Context, jobName string, params map[string]string) (Status, error) {
	ref, err := p.srv.EnqueueBuild(ctx, jobName, params)
	if err != nil {
		return Status{}, err
	}

	logger.Debug("Build enqueued", "job", jobName, "queue_id", ref.ID)
	return Status{State: StateQueued, QueueRef: ref}, nil
}

// PollBuild polls the queue item behind ref until it resolves or timeout
// elapses, and returns a terminal Status.
//
// The loop sleeps the first-check delay before the first query and the poll
// period between queries, never past the timeout; the elapsed time is
// checked against the timeout after each pending classification, so the
// timeout has no finer precision than one poll period. A timeout shorter
// than the first-check delay still gets exactly one query, at the timeout
// boundary, so a build that already started or was cancelled is reported
// rather than masked by TIMED_OUT.
//
// A failed round trip aborts the whole call; the queue item is untouched and
// the caller may poll again with the same reference. Cancellation of ctx
// surfaces as an error, never as a status.
//
// params has no effect on polling; it is accepted for symmetry with
// TriggerBuild and recorded with the poll's logging.
func (p *Poller) PollBuild(ctx context.Context, jobName string, ref engine.QueueReference, timeout time.Duration, params map[string]string) (Status, error) {
	if ref.ID <= 0 {
		return Status{}, fmt.Errorf("invalid queue reference: %d", ref.ID)
	}
	if timeout <= 0 {
		return Status{}, fmt.Errorf("invalid timeout: %v", timeout)
	}

	start := p.clock.Now()
	logger.Debug("Polling build", "job", jobName, "queue_id", ref.ID, "timeout", timeout.String(), "params", len(params))

	firstDelay := p.firstCheckDelay
	if firstDelay > timeout {
		firstDelay = timeout
	}
	if err := p.clock.Sleep(ctx, firstDelay); err != nil {
		return Status{}, err
	}

	for {
		item, err := p.srv.QueueItem(ctx, ref)
		if err != nil {
			return Status{}, err
		}

		// Every response is fully classified before the loop continues,
		// so a cancelled or stuck item can never be polled forever.
		switch item.State {
		case engine.QueueCancelled:
			logger.Info("Build cancelled in queue", "job", jobName, "queue_id", ref.ID)
			return Status{State: StateCancelledInQueue, QueueRef: ref}, nil

		case engine.QueueStuck:
			logger.Info("Build stuck in queue", "job", jobName, "queue_id", ref.ID, "why", item.Why)
			return Status{State: StateStuckInQueue, QueueRef: ref}, nil

		case engine.QueueStarted:
			// Confirm the build exists before reporting it started.
			info, err := p.srv.BuildDetails(ctx, jobName, item.BuildNumber)
			if err != nil {
				return Status{}, err
			}
			logger.Info("Build started", "job", jobName, "queue_id", ref.ID, "build", info.Number)
			return Status{State: StateStarted, QueueRef: ref, BuildNumber: info.Number}, nil

		case engine.QueuePending:
			elapsed := p.clock.Now().Sub(start)
			if elapsed >= timeout {
				logger.Debug("Poll timed out", "job", jobName, "queue_id", ref.ID)
				return Status{State: StateTimedOut, QueueRef: ref}, nil
			}
			delay := p.pollPeriod
			if remaining := timeout - elapsed; delay > remaining {
				delay = remaining
			}
			if err := p.clock.Sleep(ctx, delay); err != nil {
				return Status{}, err
			}

		default:
			return Status{}, fmt.Errorf("unknown queue state %q for item %d", item.State, ref.ID)
		}
	}
}

// Build is the convenience composition of TriggerBuild followed by PollBuild
// on the same queue reference, with the same failure and timeout semantics
// as the two-call sequence.
func (p *Poller) Build(ctx context.Context, jobName string, timeout time.Duration, params map[string]string) (Status, error) {
	status, err := p.TriggerBuild(ctx, jobName, params)
	if err != nil {
		return Status{}, err
	}
	return p.PollBuild(ctx, jobName, status.QueueRef, timeout, params)
}
