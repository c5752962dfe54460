package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/seantiz/procgate/internal/lifecycle"
	"github.com/seantiz/procgate/internal/model"
)

func (s *Server) handleStreamEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	// Subscribe before loading: a transition committed after the load is
	// then either in the snapshot or waiting on ch.
	ch, unsub := s.svc.Broker().Subscribe(id)
	defer unsub()

	rec, err := s.svc.Load(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, "get process for events", err)
		return
	}

	// Set SSE headers.
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// Disable write timeout for long-lived SSE connections.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		s.logger.Error("set write deadline for SSE", "error", err)
	}

	w.WriteHeader(http.StatusOK)
	flusher, canFlush := w.(http.Flusher)

	snapshot := lifecycle.Event{ProcessID: rec.ProcessID, Status: rec.Status, Error: rec.Error, At: time.Now().UTC()}
	if err := writeSSEEvent(w, "status", snapshot); err != nil {
		return
	}
	if rec.Status == model.StatusDeleted {
		_ = writeSSEEvent(w, "done", nil)
		return
	}
	if canFlush {
		flusher.Flush()
	}

	for {
		select {
		case evt, ok := <-ch:
			if !ok {
				// Process deleted; send explicit done event before closing.
				_ = writeSSEEvent(w, "done", nil)
				if canFlush {
					flusher.Flush()
				}
				return
			}
			if err := writeSSEEvent(w, "status", evt); err != nil {
				return // Write failed (e.g. client gone).
			}
			if canFlush {
				flusher.Flush()
			}
		case <-r.Context().Done():
			return // Client disconnected.
		}
	}
}

// writeSSEEvent writes a named SSE event with a JSON data line.
func writeSSEEvent(w http.ResponseWriter, eventType string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventType, data)
	return err
}
