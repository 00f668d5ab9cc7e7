package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/kiranshivaraju/rightsdesk/internal/api/response"
	"github.com/kiranshivaraju/rightsdesk/internal/session"
)

// NewSubmitMessageHandler returns an http.HandlerFunc for
// POST /api/v1/sessions/{sessionID}/messages. The user turn is returned with 202; the
// assistant's replies arrive later on the event stream.
func NewSubmitMessageHandler(svc Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "sessionID")
		if !ok {
			return
		}

		var req struct {
			Text string `json:"text"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}

		turn, err := svc.SubmitMessage(r.Context(), id, req.Text)
		if err != nil {
			writeError(w, r, err)
			return
		}
		response.Accepted(w, turn)
	}
}

// NewTranscriptHandler returns an http.HandlerFunc for GET /api/v1/sessions/{sessionID}/messages.
// Once the session is gone the recorded turns and notifications are served from the
// archive, which may be nil.
func NewTranscriptHandler(svc Sessions, a SessionArchive) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "sessionID")
		if !ok {
			return
		}
		t, err := svc.Transcript(r.Context(), id)
		if err == nil {
			response.JSON(w, t)
			return
		}
		if !errors.Is(err, session.ErrNotFound) {
			writeError(w, r, err)
			return
		}

		sess, found := archivedSession(r.Context(), a, id)
		if !found {
			writeError(w, r, err)
			return
		}
		archived, err := archivedTranscript(r.Context(), a, sess)
		if err != nil {
			writeError(w, r, fmt.Errorf("read archived transcript: %w", err))
			return
		}
		response.JSON(w, archived)
	}
}
