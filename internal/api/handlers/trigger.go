package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"buildflow/client"
	"buildflow/internal/api/middleware"
	"buildflow/internal/logger"
	"buildflow/internal/storage"
)

// BuildClient is the slice of the facade the trigger handlers need.
type BuildClient interface {
	TriggerBuild(ctx context.Context, jobName string, params map[string]string) (client.Status, error)
	PollBuild(ctx context.Context, jobName string, ref client.QueueReference, timeout time.Duration, params map[string]string) (client.Status, error)
	Build(ctx context.Context, jobName string, timeout time.Duration, params map[string]string) (client.Status, error)
	GetBuildHistory(ctx context.Context, jobName string) ([]client.BuildInfo, error)
}

// TriggerHandler handles build trigger and poll API requests
type TriggerHandler struct {
	client BuildClient
}

// NewTriggerHandler creates a new TriggerHandler instance
func NewTriggerHandler(c BuildClient) *TriggerHandler {
	return &TriggerHandler{
		client: c,
	}
}

// TriggerBuildRequest represents the request body for triggering a build.
// With Wait set the call blocks until the build leaves the queue, resolves
// adversely, or TimeoutSeconds elapses; without it the call returns QUEUED
// immediately and the queue id can be fed to the poll endpoint later.
type TriggerBuildRequest struct {
	Job            string            `json:"job"`
	Parameters     map[string]string `json:"parameters"`
	Wait           bool              `json:"wait"`
	TimeoutSeconds int               `json:"timeout_seconds"`
}

// PollBuildRequest represents the request body for re-polling a queued build
type PollBuildRequest struct {
	Job            string            `json:"job"`
	QueueID        int64             `json:"queue_id"`
	TimeoutSeconds int               `json:"timeout_seconds"`
	Parameters     map[string]string `json:"parameters"`
}

// TriggerBuild handles the POST /api/v1/trigger request
func (h *TriggerHandler) TriggerBuild(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorWithRequestID(w, r, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req TriggerBuildRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Error("Failed to parse request body", "error", err)
		writeErrorWithRequestID(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}

	if msg := validateTriggerRequest(req.Job, req.Parameters); msg != "" {
		writeErrorWithRequestID(w, r, http.StatusBadRequest, msg)
		return
	}

	started := time.Now()

	var status client.Status
	var err error
	if req.Wait {
		status, err = h.client.Build(r.Context(), req.Job, time.Duration(req.TimeoutSeconds)*time.Second, req.Parameters)
	} else {
		status, err = h.client.TriggerBuild(r.Context(), req.Job, req.Parameters)
	}

	h.record(r, req.Job, req.Parameters, status, started, err)

	if err != nil {
		logger.Error("Failed to trigger build", "error", err, "job", req.Job)
		writeErrorWithRequestID(w, r, http.StatusBadGateway, "Failed to trigger build")
		return
	}

	writeJSON(w, http.StatusOK, status)
}

// PollBuild handles the POST /api/v1/poll request, resuming a wait on a
// queue reference obtained from an earlier trigger.
func (h *TriggerHandler) PollBuild(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorWithRequestID(w, r, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req PollBuildRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Error("Failed to parse request body", "error", err)
		writeErrorWithRequestID(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}

	if msg := validateTriggerRequest(req.Job, req.Parameters); msg != "" {
		writeErrorWithRequestID(w, r, http.StatusBadRequest, msg)
		return
	}
	if req.QueueID <= 0 {
		writeErrorWithRequestID(w, r, http.StatusBadRequest, "queue_id is required")
		return
	}

	started := time.Now()
	ref := client.QueueReference{ID: req.QueueID}
	status, err := h.client.PollBuild(r.Context(), req.Job, ref, time.Duration(req.TimeoutSeconds)*time.Second, req.Parameters)

	h.record(r, req.Job, req.Parameters, status, started, err)

	if err != nil {
		logger.Error("Failed to poll build", "error", err, "job", req.Job, "queue_id", req.QueueID)
		writeErrorWithRequestID(w, r, http.StatusBadGateway, "Failed to poll build")
		return
	}

	writeJSON(w, http.StatusOK, status)
}

// BuildHistory handles the GET /api/v1/builds?job= request
func (h *TriggerHandler) BuildHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorWithRequestID(w, r, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	jobName := r.URL.Query().Get("job")
	if jobName == "" {
		writeErrorWithRequestID(w, r, http.StatusBadRequest, "job query parameter is required")
		return
	}

	history, err := h.client.GetBuildHistory(r.Context(), jobName)
	if err != nil {
		logger.Error("Failed to list build history", "error", err, "job", jobName)
		writeErrorWithRequestID(w, r, http.StatusBadGateway, "Failed to list build history")
		return
	}

	writeJSON(w, http.StatusOK, history)
}

// record persists one trigger/poll outcome. Storage failures are logged and
// never fail the request.
func (h *TriggerHandler) record(r *http.Request, jobName string, params map[string]string, status client.Status, started time.Time, opErr error) {
	rec := storage.TriggerRecord{
		Timestamp:   started,
		APIKey:      middleware.APIKeyFromContext(r.Context()),
		JobName:     jobName,
		QueueID:     status.QueueRef.ID,
		State:       string(status.State),
		BuildNumber: status.BuildNumber,
		DurationMS:  time.Since(started).Milliseconds(),
		Params:      marshalParams(params),
	}
	if opErr != nil {
		rec.State = "FAILED"
		rec.Error = opErr.Error()
	}
	if err := storage.InsertTriggerRecord(rec); err != nil {
		logger.Error("Failed to record trigger outcome", "error", err, "job", jobName)
	}
}

// validateTriggerRequest checks the job name and parameters, returning an
// error message or "".
func validateTriggerRequest(jobName string, params map[string]string) string {
	if jobName == "" {
		return "Job name is required"
	}
	if len(jobName) > 255 {
		return "Job name exceeds maximum length of 255 characters"
	}

	if len(params) > 100 {
		return "Maximum 100 parameters allowed"
	}
	for key, value := range params {
		if len(key) > 255 {
			return fmt.Sprintf("Parameter key '%s' exceeds maximum length of 255 characters", key)
		}
		// Limit to 10KB per parameter value
		if len(value) > 10240 {
			return fmt.Sprintf("Parameter value for '%s' exceeds maximum length of 10KB", key)
		}
	}

	return ""
}

// marshalParams marshals parameters to a JSON string
func marshalParams(params map[string]string) string {
	jsonParams, err := json.Marshal(params)
	if err != nil {
		return "{}"
	}
	return string(jsonParams)
}
