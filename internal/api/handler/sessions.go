package handler

import (
	"net/http"

	"github.com/kiranshivaraju/rightsdesk/internal/api/response"
)

// NewCreateSessionHandler returns an http.HandlerFunc for POST /api/v1/sessions.
func NewCreateSessionHandler(svc Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := svc.Create(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		sum, err := svc.Summary(r.Context(), s.ID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		response.Created(w, sum)
	}
}

// NewGetSessionHandler returns an http.HandlerFunc for GET /api/v1/sessions/{sessionID}.
func NewGetSessionHandler(svc Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "sessionID")
		if !ok {
			return
		}
		sum, err := svc.Summary(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		response.JSON(w, sum)
	}
}

// NewCloseSessionHandler returns an http.HandlerFunc for DELETE /api/v1/sessions/{sessionID}.
func NewCloseSessionHandler(svc Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "sessionID")
		if !ok {
			return
		}
		if err := svc.Close(r.Context(), id); err != nil {
			writeError(w, r, err)
			return
		}
		response.NoContent(w)
	}
}
