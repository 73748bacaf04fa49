package engine

import (
	"context"
	"time"
)

// QueueReference identifies a build request sitting in the server's queue,
// before an executor has been assigned and a build number exists. It is
// issued on enqueue and is only meaningful for queue-item lookups.
type QueueReference struct {
	ID  int64  `json:"id"`
	URL string `json:"url,omitempty"`
}

// QueueState is the classification of a queue item at one point in time.
type QueueState string

const (
	// QueuePending means the item is still waiting for an executor.
	QueuePending QueueState = "pending"

	// QueueCancelled means the item was cancelled before execution.
	QueueCancelled QueueState = "cancelled"

	// QueueStuck means the server reports the item as stuck, e.g. no
	// executor is capable of running it.
	QueueStuck QueueState = "stuck"

	// QueueStarted means an executor picked the item up and a build
	// number has been assigned.
	QueueStarted QueueState = "started"
)

// QueueItem is the classified state of a queue item. BuildNumber is only
// valid when State is QueueStarted. Why carries the server's human-readable
// reason for pending/stuck items when available.
type QueueItem struct {
	State       QueueState
	BuildNumber int
	Why         string
}

// BuildInfo describes a single build of a job.
type BuildInfo struct {
	Number    int        `json:"number"`
	URL       string     `json:"url"`
	Result    string     `json:"result,omitempty"`
	Building  bool       `json:"building"`
	Timestamp time.Time  `json:"timestamp"`
	Duration  int64      `json:"duration"`
	Artifacts []Artifact `json:"artifacts,omitempty"`
}

// Artifact is an archived file produced by a build.
type Artifact struct {
	FileName     string `json:"file_name"`
	RelativePath string `json:"relative_path"`
}

// Job describes a job as reported by the server.
type Job struct {
	Name            string `json:"name"`
	URL             string `json:"url"`
	Buildable       bool   `json:"buildable"`
	InQueue         bool   `json:"in_queue"`
	LastBuild       int    `json:"last_build,omitempty"`
	NextBuildNumber int    `json:"next_build_number"`
}

// Server is the remote CI server handle the trigger poller runs against.
// Implementations must tolerate concurrent use from independent
// trigger-and-poll sequences.
type Server interface {
	// EnqueueBuild submits a build request for the named job and returns
	// the queue reference issued by the server. params may be empty for
	// an unparameterized trigger.
	EnqueueBuild(ctx context.Context, jobName string, params map[string]string) (QueueReference, error)

	// QueueItem fetches and classifies the queue item behind ref.
	QueueItem(ctx context.Context, ref QueueReference) (QueueItem, error)

	// BuildDetails fetches the details of a build by job name and number.
	BuildDetails(ctx context.Context, jobName string, number int) (BuildInfo, error)

	// CancelQueueItem cancels a request that is still in the queue.
	CancelQueueItem(ctx context.Context, ref QueueReference) error

	// CancelBuild stops a build that is already running.
	CancelBuild(ctx context.Context, jobName string, number int) error
}
