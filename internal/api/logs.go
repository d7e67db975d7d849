package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/camfleet/camfleet/internal/logging"
)

// LogsHandler exposes the in-memory log buffer.
type LogsHandler struct {
	buffer *logging.Buffer
}

// NewLogsHandler creates a new logs handler
func NewLogsHandler(buffer *logging.Buffer) *LogsHandler {
	return &LogsHandler{buffer: buffer}
}

// Recent returns the most recent log entries (?limit=, default 100).
func (h *LogsHandler) Recent(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	entries := h.buffer.Recent(limit)
	OK(w, map[string]interface{}{
		"entries": entries,
		"total":   len(entries),
	})
}

// Stream streams new log entries as Server-Sent Events.
func (h *LogsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		InternalError(w, "Streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := h.buffer.Subscribe()
	defer h.buffer.Unsubscribe(ch)

	for {
		select {
		case <-r.Context().Done():
			return
		case entry := <-ch:
			data, err := json.Marshal(entry)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}
