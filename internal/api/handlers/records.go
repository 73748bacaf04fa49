package handlers

import (
	"net/http"
	"strconv"

	"buildflow/internal/storage"
)

// RecordsHandler handles trigger-record API requests
type RecordsHandler struct{}

// NewRecordsHandler creates a new RecordsHandler instance
func NewRecordsHandler() *RecordsHandler {
	return &RecordsHandler{}
}

// GetTriggerRecords handles the GET /api/v1/records request
func (h *RecordsHandler) GetTriggerRecords(w http.ResponseWriter, r *http.Request) {
	limitStr := r.URL.Query().Get("limit")
	offsetStr := r.URL.Query().Get("offset")

	limit := 100
	offset := 0

	if limitStr != "" {
		parsedLimit, err := strconv.Atoi(limitStr)
		if err == nil && parsedLimit > 0 {
			limit = parsedLimit
		}
	}

	if offsetStr != "" {
		parsedOffset, err := strconv.Atoi(offsetStr)
		if err == nil && parsedOffset >= 0 {
			offset = parsedOffset
		}
	}

	records, err := storage.GetTriggerRecords(limit, offset)
	if err != nil {
		writeErrorWithRequestID(w, r, http.StatusInternalServerError, "Failed to get trigger records")
		return
	}

	writeJSON(w, http.StatusOK, records)
}
