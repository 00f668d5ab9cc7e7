package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// DefaultKeepAlive is how often an idle event stream sends a comment line.
const DefaultKeepAlive = 15 * time.Second

// NewEventsHandler returns an http.HandlerFunc for GET /api/v1/sessions/{sessionID}/events.
// Events are streamed as Server-Sent Events until the client goes away or the session ends.
func NewEventsHandler(svc Sessions, keepAlive time.Duration) http.HandlerFunc {
	if keepAlive <= 0 {
		keepAlive = DefaultKeepAlive
	}
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "sessionID")
		if !ok {
			return
		}

		stream, unsubscribe, err := svc.Subscribe(id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		defer unsubscribe()

		rc := http.NewResponseController(w)
		// The stream outlives the server's write timeout.
		_ = rc.SetWriteDeadline(time.Time{})

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")
		w.WriteHeader(http.StatusOK)
		if err := rc.Flush(); err != nil {
			slog.WarnContext(r.Context(), "event stream not flushable", "session_id", id, "error", err)
			return
		}

		ticker := time.NewTicker(keepAlive)
		defer ticker.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case <-ticker.C:
				if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
					return
				}
			case ev, open := <-stream:
				if !open {
					fmt.Fprint(w, "event: end\ndata: {}\n\n")
					_ = rc.Flush()
					return
				}
				data, err := json.Marshal(ev)
				if err != nil {
					slog.ErrorContext(r.Context(), "encode event", "session_id", id, "error", err)
					continue
				}
				if _, err := fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", ev.Seq, ev.Type, data); err != nil {
					return
				}
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}
