package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// eventWriter writes Server-Sent Events:
//
//	event: result
//	data: {...}
type eventWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	rc      *http.ResponseController
	logger  *slog.Logger
	sent    int
}

func newEventWriter(w http.ResponseWriter, logger *slog.Logger) (*eventWriter, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, false
	}
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &eventWriter{
		w:       w,
		flusher: flusher,
		rc:      http.NewResponseController(w),
		logger:  logger,
	}, true
}

// send marshals v and writes it as one event.
func (e *eventWriter) send(event string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}

	// The server WriteTimeout would otherwise cut long batches short.
	if err := e.rc.SetWriteDeadline(time.Now().Add(30 * time.Second)); err != nil {
		e.logger.Debug("could not set write deadline", "error", err)
	}

	if _, err := fmt.Fprintf(e.w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	e.flusher.Flush()
	e.sent++
	return nil
}
