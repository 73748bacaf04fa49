// Package client is the public entry point of buildflow. It composes the
// trigger poller with the job, build-log and artifact services behind one
// object and translates every lower-level failure into one uniform error
// type, so callers never need to know which subsystem failed.
package client

import (
	"context"
	"io"
	"net/url"
	"time"

	"buildflow/internal/config"
	"buildflow/internal/engine"
	"buildflow/internal/engine/jenkins"
	"buildflow/internal/trigger"
)

// Re-exported result types, so importers never reach into internal packages.
type (
	Status         = trigger.Status
	State          = trigger.State
	QueueReference = engine.QueueReference
	BuildInfo      = engine.BuildInfo
	Job            = engine.Job
	Artifact       = engine.Artifact
	JobSpec        = jenkins.JobSpec
	JobParameter   = jenkins.JobParameter
)

const (
	StateQueued           = trigger.StateQueued
	StateStarted          = trigger.StateStarted
	StateCancelledInQueue = trigger.StateCancelledInQueue
	StateStuckInQueue     = trigger.StateStuckInQueue
	StateTimedOut         = trigger.StateTimedOut
)

// DefaultBuildTimeout is how long Build waits for a build to leave the queue
// when the caller passes no timeout.
const DefaultBuildTimeout = 60 * time.Second

// Config holds everything needed to construct a Client. URL, Username and
// Token are required; the rest defaults sensibly.
type Config struct {
	URL      string
	Username string
	Token    string

	// CrumbEnabled turns on the CSRF crumb handshake for POST requests.
	// Leave it off unless the server has CSRF protection enabled.
	CrumbEnabled bool

	// FirstCheckDelay is the grace period before the first queue check
	// (default 5s). PollPeriod is the cadence of subsequent checks
	// (default 1s).
	FirstCheckDelay time.Duration
	PollPeriod      time.Duration

	// BuildTimeout is the default wait used by Build when the caller
	// passes a zero timeout (default DefaultBuildTimeout).
	BuildTimeout time.Duration

	// HTTPTimeout bounds each individual request round trip, in seconds
	// granularity (default 30s).
	HTTPTimeout time.Duration
}

// Client is the facade over the trigger poller and the CRUD-shaped services.
// It is safe for concurrent use; independent trigger-and-poll sequences
// share only the underlying HTTP client.
type Client struct {
	srv          *jenkins.Client
	poller       *trigger.Poller
	buildTimeout time.Duration
}

// New validates cfg and constructs a Client. Validation happens before any
// network use; a malformed URL or missing credentials fail fast with a
// configuration-kind error.
func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, configError("server url is required")
	}
	u, err := url.Parse(cfg.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, configError("invalid server url format")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, configError("server url must be http or https")
	}
	if cfg.Token == "" {
		return nil, configError("api token is required")
	}

	httpTimeout := cfg.HTTPTimeout
	if httpTimeout <= 0 {
		httpTimeout = 30 * time.Second
	}

	srv := jenkins.NewClient(config.JenkinsConfig{
		URL:          cfg.URL,
		Username:     cfg.Username,
		Token:        cfg.Token,
		CrumbEnabled: cfg.CrumbEnabled,
		Timeout:      int(httpTimeout / time.Second),
	})

	buildTimeout := cfg.BuildTimeout
	if buildTimeout <= 0 {
		buildTimeout = DefaultBuildTimeout
	}

	return &Client{
		srv:          srv,
		poller:       trigger.NewPoller(srv, cfg.FirstCheckDelay, cfg.PollPeriod),
		buildTimeout: buildTimeout,
	}, nil
}

// TriggerBuild submits a build request for jobName and returns immediately
// with a QUEUED status carrying the queue reference. params may be nil.
func (c *Client) TriggerBuild(ctx context.Context, jobName string, params map[string]string) (Status, error) {
	status, err := c.poller.TriggerBuild(ctx, jobName, params)
	if err != nil {
		return Status{}, wrap("triggering a build", err)
	}
	return status, nil
}

// PollBuild polls the queue item behind ref until it resolves or timeout
// elapses. TIMED_OUT, CANCELLED_IN_QUEUE and STUCK_IN_QUEUE are successful
// results, not errors; the error return is reserved for failures of the poll
// itself. A zero timeout uses the configured build timeout.
func (c *Client) PollBuild(ctx context.Context, jobName string, ref QueueReference, timeout time.Duration, params map[string]string) (Status, error) {
	if timeout <= 0 {
		timeout = c.buildTimeout
	}
	status, err := c.poller.PollBuild(ctx, jobName, ref, timeout, params)
	if err != nil {
		return Status{}, wrap("polling a build", err)
	}
	return status, nil
}

// Build triggers a build and blocks until it leaves the queue, resolves
// adversely, or timeout elapses. A zero timeout uses the configured build
// timeout. Timeout precision is no finer than one poll period.
func (c *Client) Build(ctx context.Context, jobName string, timeout time.Duration, params map[string]string) (Status, error) {
	if timeout <= 0 {
		timeout = c.buildTimeout
	}
	status, err := c.poller.Build(ctx, jobName, timeout, params)
	if err != nil {
		return Status{}, wrap("triggering a build", err)
	}
	return status, nil
}

// CreateJob creates a new job from spec.
func (c *Client) CreateJob(ctx context.Context, jobName string, spec JobSpec) error {
	return wrap("creating a job", c.srv.CreateJob(ctx, jobName, spec))
}

// UpdateJob replaces the configuration of an existing job.
func (c *Client) UpdateJob(ctx context.Context, jobName string, spec JobSpec) error {
	return wrap("updating a job", c.srv.UpdateJob(ctx, jobName, spec))
}

// GetJob fetches job details by name.
func (c *Client) GetJob(ctx context.Context, jobName string) (Job, error) {
	job, err := c.srv.Job(ctx, jobName)
	if err != nil {
		return Job{}, wrap("fetching a job", err)
	}
	return job, nil
}

// DeleteJob removes a job from the server.
func (c *Client) DeleteJob(ctx context.Context, jobName string) error {
	return wrap("deleting a job", c.srv.DeleteJob(ctx, jobName))
}

// GetBuildDetails fetches the details of one build.
func (c *Client) GetBuildDetails(ctx context.Context, jobName string, number int) (BuildInfo, error) {
	info, err := c.srv.BuildDetails(ctx, jobName, number)
	if err != nil {
		return BuildInfo{}, wrap("fetching build details", err)
	}
	return info, nil
}

// GetBuildLogs returns the full console log of a build.
func (c *Client) GetBuildLogs(ctx context.Context, jobName string, number int) (string, error) {
	logs, err := c.srv.BuildLogs(ctx, jobName, number)
	if err != nil {
		return "", wrap("retrieving build logs", err)
	}
	return logs, nil
}

// StreamLogs follows the console log of a running build, writing chunks to w
// until the build stops producing output or ctx is cancelled. interval is
// the poll cadence between chunks; zero uses one second.
func (c *Client) StreamLogs(ctx context.Context, jobName string, number int, interval time.Duration, w io.Writer) error {
	return wrap("streaming build logs", c.srv.StreamLogs(ctx, jobName, number, interval, w))
}

// GetBuildHistory lists recent builds of a job, most recent first. The
// server reports at most the 100 most recent builds; each costs one extra
// round trip for details.
func (c *Client) GetBuildHistory(ctx context.Context, jobName string) ([]BuildInfo, error) {
	history, err := c.srv.BuildHistory(ctx, jobName)
	if err != nil {
		return nil, wrap("listing build history", err)
	}
	return history, nil
}

// FetchArtifact returns the bytes of one artifact of a build. namePattern
// matches an exact file name first, then as a regular expression.
func (c *Client) FetchArtifact(ctx context.Context, jobName string, number int, namePattern string) ([]byte, error) {
	data, err := c.srv.FetchArtifact(ctx, jobName, number, namePattern)
	if err != nil {
		return nil, wrap("fetching an artifact", err)
	}
	return data, nil
}

// SaveArtifact fetches one artifact and writes it to outputPath.
func (c *Client) SaveArtifact(ctx context.Context, jobName string, number int, namePattern, outputPath string) error {
	return wrap("saving an artifact", c.srv.SaveArtifact(ctx, jobName, number, namePattern, outputPath))
}

// CancelBuild stops a build that is already running.
func (c *Client) CancelBuild(ctx context.Context, jobName string, number int) error {
	return wrap("cancelling a build", c.srv.CancelBuild(ctx, jobName, number))
}

// CancelQueueItem cancels a build request that is still in the queue.
func (c *Client) CancelQueueItem(ctx context.Context, ref QueueReference) error {
	return wrap("cancelling a queued build", c.srv.CancelQueueItem(ctx, ref))
}
