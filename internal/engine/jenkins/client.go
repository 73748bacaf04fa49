package jenkins

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"buildflow/internal/config"
	"buildflow/internal/logger"
)

// Client talks to a Jenkins server over its JSON remote API. It implements
// engine.Server plus the CRUD-shaped glue the facade exposes (jobs, logs,
// artifacts, history).
type Client struct {
	url          string
	username     string
	token        string
	crumbEnabled bool
	client       *http.Client
}

// NewClient creates a new Jenkins client instance.
func NewClient(cfg config.JenkinsConfig) *Client {
	timeout := time.Duration(cfg.Timeout) * time.Second
	client := &http.Client{
		Timeout: timeout,
	}

	// Normalize URL: remove trailing slash to avoid double slashes in paths
	url := strings.TrimSuffix(cfg.URL, "/")

	return &Client{
		url:          url,
		username:     cfg.Username,
		token:        cfg.Token,
		crumbEnabled: cfg.CrumbEnabled,
		client:       client,
	}
}

// authorize sets the Basic auth header. Jenkins API tokens ride on basic
// authentication as username:token.
func (c *Client) authorize(req *http.Request) {
	auth := base64.StdEncoding.EncodeToString([]byte(fmt.Sprintf("%s:%s", c.username, c.token)))
	req.Header.Set("Authorization", "Basic "+auth)
}

// getJSON sends a GET request and decodes the JSON response into out.
func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	body, err := c.get(ctx, path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("malformed response from %s: %w", path, err)
	}
	return nil
}

// get sends a GET request and returns the raw response body.
func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url+path, nil)
	if err != nil {
		return nil, err
	}
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logger.Error("Jenkins API request failed", "status", resp.Status, "path", path)
		return nil, statusError(resp.StatusCode, string(body))
	}

	return body, nil
}

// postForm sends a POST request with form-encoded data, attaching the CSRF
// crumb when crumb protection is enabled. It returns the response so callers
// can read headers (the enqueue endpoint answers with a Location header).
func (c *Client) postForm(ctx context.Context, path string, form url.Values, contentType string) (*http.Response, []byte, error) {
	if form == nil {
		form = url.Values{}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, nil, err
	}
	if contentType == "" {
		contentType = "application/x-www-form-urlencoded"
	}
	req.Header.Set("Content-Type", contentType)
	c.authorize(req)

	if c.crumbEnabled {
		field, value, err := c.crumb(ctx)
		if err != nil {
			logger.Warn("Failed to get CSRF crumb, proceeding without it", "error", err)
		} else if field != "" && value != "" {
			req.Header.Set(field, value)
		}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logger.Error("Jenkins API request failed", "status", resp.Status, "path", path)
		return nil, nil, statusError(resp.StatusCode, string(body))
	}

	return resp, body, nil
}

// postBody sends a POST request with an arbitrary body, used for config.xml
// uploads. The crumb handshake applies the same way as for form posts.
func (c *Client) postBody(ctx context.Context, path, contentType string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	c.authorize(req)

	if c.crumbEnabled {
		field, value, err := c.crumb(ctx)
		if err != nil {
			logger.Warn("Failed to get CSRF crumb, proceeding without it", "error", err)
		} else if field != "" && value != "" {
			req.Header.Set(field, value)
		}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logger.Error("Jenkins API request failed", "status", resp.Status, "path", path)
		return nil, statusError(resp.StatusCode, string(respBody))
	}

	return respBody, nil
}

// crumb retrieves the CSRF crumb for POST requests. Returns the header field
// name and value separately.
func (c *Client) crumb(ctx context.Context) (string, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url+"/crumbIssuer/api/json", nil)
	if err != nil {
		return "", "", err
	}
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("failed to get crumb: %s", resp.Status)
	}

	var crumbData struct {
		Crumb             string `json:"crumb"`
		CrumbRequestField string `json:"crumbRequestField"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&crumbData); err != nil {
		return "", "", err
	}

	field := crumbData.CrumbRequestField
	if field == "" {
		field = "Jenkins-Crumb"
	}

	return field, crumbData.Crumb, nil
}

// jobPath returns the API path prefix for a job, with the name escaped.
func jobPath(jobName string) string {
	return "/job/" + url.PathEscape(jobName)
}

// validateJobName rejects names that would escape the job path.
func validateJobName(jobName string) error {
	if jobName == "" {
		return fmt.Errorf("job name cannot be empty")
	}
	if strings.Contains(jobName, "..") || strings.Contains(jobName, "/") {
		return fmt.Errorf("invalid job name format: %s", jobName)
	}
	return nil
}

// statusError maps Jenkins API errors to stable messages without exposing
// response internals.
func statusError(statusCode int, responseBody string) error {
	switch statusCode {
	case http.StatusUnauthorized:
		return fmt.Errorf("authentication failed: invalid credentials")
	case http.StatusForbidden:
		return fmt.Errorf("access denied: insufficient permissions")
	case http.StatusNotFound:
		return fmt.Errorf("resource not found")
	case http.StatusBadRequest:
		return fmt.Errorf("invalid request")
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
		return fmt.Errorf("jenkins server error: please try again later")
	default:
		return fmt.Errorf("jenkins api request failed with status %d", statusCode)
	}
}
