package jenkins

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"buildflow/internal/engine"
	"buildflow/internal/logger"
)

// buildResponse is the wire shape of /job/<name>/<number>/api/json.
type buildResponse struct {
	Number    int    `json:"number"`
	URL       string `json:"url"`
	Result    string `json:"result"`
	Building  bool   `json:"building"`
	Timestamp int64  `json:"timestamp"`
	Duration  int64  `json:"duration"`
	Artifacts []struct {
		FileName     string `json:"fileName"`
		RelativePath string `json:"relativePath"`
	} `json:"artifacts"`
}

func (b buildResponse) toInfo() engine.BuildInfo {
	info := engine.BuildInfo{
		Number:    b.Number,
		URL:       b.URL,
		Result:    b.Result,
		Building:  b.Building,
		Timestamp: time.UnixMilli(b.Timestamp),
		Duration:  b.Duration,
	}
	for _, a := range b.Artifacts {
		info.Artifacts = append(info.Artifacts, engine.Artifact{
			FileName:     a.FileName,
			RelativePath: a.RelativePath,
		})
	}
	return info
}

// BuildDetails fetches the details of a build by job name and number.
func (c *Client) BuildDetails(ctx context.Context, jobName string, number int) (engine.BuildInfo, error) {
	if err := validateJobName(jobName); err != nil {
		return engine.BuildInfo{}, err
	}
	if number <= 0 {
		return engine.BuildInfo{}, fmt.Errorf("invalid build number: %d", number)
	}

	var build buildResponse
	path := fmt.Sprintf("%s/%d/api/json", jobPath(jobName), number)
	if err := c.getJSON(ctx, path, &build); err != nil {
		return engine.BuildInfo{}, err
	}
	return build.toInfo(), nil
}

// CancelBuild stops a build that is already running.
func (c *Client) CancelBuild(ctx context.Context, jobName string, number int) error {
	if err := validateJobName(jobName); err != nil {
		return err
	}
	if number <= 0 {
		return fmt.Errorf("invalid build number: %d", number)
	}

	_, _, err := c.postForm(ctx, fmt.Sprintf("%s/%d/stop", jobPath(jobName), number), nil, "")
	return err
}

// BuildLogs returns the full console log of a build.
func (c *Client) BuildLogs(ctx context.Context, jobName string, number int) (string, error) {
	if err := validateJobName(jobName); err != nil {
		return "", err
	}
	if number <= 0 {
		return "", fmt.Errorf("invalid build number: %d", number)
	}

	body, err := c.get(ctx, fmt.Sprintf("%s/%d/consoleText", jobPath(jobName), number))
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// maxHistoryDetails caps the per-build detail fetches for a history listing.
// The job detail endpoint itself reports at most 100 recent builds.
const maxHistoryDetails = 100

// BuildHistory lists recent builds of a job, most recent first. The job
// detail gives build numbers in one call; details are fetched one call per
// build, so this is proportional to the history length.
func (c *Client) BuildHistory(ctx context.Context, jobName string) ([]engine.BuildInfo, error) {
	if err := validateJobName(jobName); err != nil {
		return nil, err
	}

	var detail struct {
		Builds []struct {
			Number int `json:"number"`
		} `json:"builds"`
	}
	if err := c.getJSON(ctx, jobPath(jobName)+"/api/json", &detail); err != nil {
		return nil, err
	}

	builds := detail.Builds
	if len(builds) > maxHistoryDetails {
		builds = builds[:maxHistoryDetails]
	}

	history := make([]engine.BuildInfo, 0, len(builds))
	for _, b := range builds {
		info, err := c.BuildDetails(ctx, jobName, b.Number)
		if err != nil {
			return nil, err
		}
		history = append(history, info)
	}
	return history, nil
}

// StreamLogs follows the progressive console log of a running build,
// writing chunks to w as they arrive and polling every interval until the
// server stops reporting more data. It returns when the log is complete or
// ctx is cancelled.
func (c *Client) StreamLogs(ctx context.Context, jobName string, number int, interval time.Duration, w io.Writer) error {
	if err := validateJobName(jobName); err != nil {
		return err
	}
	if number <= 0 {
		return fmt.Errorf("invalid build number: %d", number)
	}
	if interval <= 0 {
		interval = time.Second
	}

	offset := int64(0)
	for {
		chunk, next, more, err := c.progressiveLog(ctx, jobName, number, offset)
		if err != nil {
			return err
		}
		if len(chunk) > 0 {
			if _, err := w.Write(chunk); err != nil {
				return err
			}
		}
		offset = next
		if !more {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

// progressiveLog fetches one chunk of the progressive text log starting at
// offset. Jenkins reports the next offset in X-Text-Size and whether the
// build is still producing output in X-More-Data.
func (c *Client) progressiveLog(ctx context.Context, jobName string, number int, offset int64) ([]byte, int64, bool, error) {
	path := fmt.Sprintf("%s/%d/logText/progressiveText?start=%d", jobPath(jobName), number, offset)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url+path, nil)
	if err != nil {
		return nil, 0, false, err
	}
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, false, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, false, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logger.Error("Jenkins API request failed", "status", resp.Status, "path", path)
		return nil, 0, false, statusError(resp.StatusCode, string(body))
	}

	next := offset
	if size := resp.Header.Get("X-Text-Size"); size != "" {
		if n, err := strconv.ParseInt(size, 10, 64); err == nil {
			next = n
		}
	}
	more := resp.Header.Get("X-More-Data") == "true"

	return body, next, more, nil
}
