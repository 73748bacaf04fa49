package jenkins

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"buildflow/internal/engine"
)

// queueItemResponse is the wire shape of /queue/item/<id>/api/json.
type queueItemResponse struct {
	Cancelled  bool   `json:"cancelled"`
	Stuck      bool   `json:"stuck"`
	Why        string `json:"why"`
	Executable *struct {
		Number int    `json:"number"`
		URL    string `json:"url"`
	} `json:"executable"`
}

// EnqueueBuild submits a build request for the named job. Parameterized
// requests go to the buildWithParameters endpoint with form-encoded values,
// unparameterized ones to the plain build endpoint with the empty json form
// field the Stapler servlet expects. The queue reference comes back in the
// Location header.
func (c *Client) EnqueueBuild(ctx context.Context, jobName string, params map[string]string) (engine.QueueReference, error) {
	if err := validateJobName(jobName); err != nil {
		return engine.QueueReference{}, err
	}

	form := url.Values{}
	path := jobPath(jobName) + "/build"
	if len(params) > 0 {
		path = jobPath(jobName) + "/buildWithParameters"
		for k, v := range params {
			form.Set(k, v)
		}
	} else {
		form.Set("json", "{}")
	}

	resp, _, err := c.postForm(ctx, path, form, "")
	if err != nil {
		return engine.QueueReference{}, err
	}

	location := resp.Header.Get("Location")
	ref, err := parseQueueReference(location)
	if err != nil {
		return engine.QueueReference{}, err
	}
	return ref, nil
}

// QueueItem fetches the queue item behind ref and classifies it. The order
// matters: a cancelled item wins over a concurrently assigned executor, and
// the stuck flag is only meaningful while the item has no build number.
func (c *Client) QueueItem(ctx context.Context, ref engine.QueueReference) (engine.QueueItem, error) {
	if ref.ID <= 0 {
		return engine.QueueItem{}, fmt.Errorf("invalid queue reference: %d", ref.ID)
	}

	var item queueItemResponse
	path := fmt.Sprintf("/queue/item/%d/api/json", ref.ID)
	if err := c.getJSON(ctx, path, &item); err != nil {
		return engine.QueueItem{}, err
	}

	switch {
	case item.Cancelled:
		return engine.QueueItem{State: engine.QueueCancelled}, nil
	case item.Executable != nil && item.Executable.Number > 0:
		return engine.QueueItem{State: engine.QueueStarted, BuildNumber: item.Executable.Number}, nil
	case item.Stuck:
		return engine.QueueItem{State: engine.QueueStuck, Why: item.Why}, nil
	default:
		return engine.QueueItem{State: engine.QueuePending, Why: item.Why}, nil
	}
}

// CancelQueueItem cancels a request that is still waiting in the queue.
func (c *Client) CancelQueueItem(ctx context.Context, ref engine.QueueReference) error {
	if ref.ID <= 0 {
		return fmt.Errorf("invalid queue reference: %d", ref.ID)
	}

	form := url.Values{}
	form.Set("id", strconv.FormatInt(ref.ID, 10))
	_, _, err := c.postForm(ctx, "/queue/cancelItem?id="+strconv.FormatInt(ref.ID, 10), form, "")
	return err
}

// parseQueueReference extracts the queue item id from the Location header
// returned by an enqueue request. Location format: .../queue/item/<id>/,
// relative or absolute.
func parseQueueReference(location string) (engine.QueueReference, error) {
	if location == "" {
		return engine.QueueReference{}, fmt.Errorf("malformed response: missing Location header")
	}

	pathPart := location
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		u, err := url.Parse(location)
		if err != nil {
			return engine.QueueReference{}, fmt.Errorf("malformed response: bad Location header %q", location)
		}
		pathPart = u.Path
	}

	parts := strings.Split(strings.Trim(pathPart, "/"), "/")
	for i, part := range parts {
		if part == "item" && i > 0 && parts[i-1] == "queue" && i+1 < len(parts) {
			id, err := strconv.ParseInt(parts[i+1], 10, 64)
			if err != nil || id <= 0 {
				return engine.QueueReference{}, fmt.Errorf("malformed response: bad queue item id in %q", location)
			}
			return engine.QueueReference{ID: id, URL: location}, nil
		}
	}

	return engine.QueueReference{}, fmt.Errorf("malformed response: no queue item in Location header %q", location)
}
