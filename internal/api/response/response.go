// Package response writes the JSON envelopes shared by every rightsdesk endpoint:
// {"data": ...} for results and {"error": {...}} for failures.
package response

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// Error codes carried in the error envelope.
const (
	CodeInvalidRequest   = "INVALID_REQUEST"
	CodeValidation       = "VALIDATION_ERROR"
	CodeConflict         = "CONFLICT"
	CodeRateLimited      = "RATE_LIMIT_EXCEEDED"
	CodeScheduling       = "SCHEDULING_ERROR"
	CodeSessionNotFound  = "SESSION_NOT_FOUND"
	CodeRunNotFound      = "RUN_NOT_FOUND"
	CodeRequestCancelled = "REQUEST_CANCELLED"
	CodeNotFound         = "NOT_FOUND"
	CodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	CodeNotImplemented   = "NOT_IMPLEMENTED"
	CodeDegraded         = "DEGRADED"
	CodeInternal         = "INTERNAL_ERROR"
)

type envelope struct {
	Data any `json:"data"`
}

type collectionEnvelope struct {
	Data any            `json:"data"`
	Meta PaginationMeta `json:"meta"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// PaginationMeta describes one page of a collection.
type PaginationMeta struct {
	Page    int  `json:"page"`
	Limit   int  `json:"limit"`
	Total   int  `json:"total"`
	HasNext bool `json:"has_next"`
}

// Window returns the [start, end) bounds of page within total items of size limit,
// together with its metadata. Pages past the end yield an empty window.
// page and limit must be positive.
func Window(page, limit, total int) (start, end int, meta PaginationMeta) {
	start = total
	if page-1 <= total/limit {
		start = min((page-1)*limit, total)
	}
	end = start + min(limit, total-start)
	return start, end, PaginationMeta{
		Page:    page,
		Limit:   limit,
		Total:   total,
		HasNext: end < total,
	}
}

// Page writes items[start:end] for the requested page as a collection. A nil slice is
// written as an empty array.
func Page[T any](w http.ResponseWriter, items []T, page, limit int) {
	if items == nil {
		items = []T{}
	}
	start, end, meta := Window(page, limit, len(items))
	Collection(w, items[start:end], meta)
}

func JSON(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, envelope{Data: data})
}

func Created(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusCreated, envelope{Data: data})
}

// Accepted acknowledges work that completes asynchronously (a queued turn or a started run).
func Accepted(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusAccepted, envelope{Data: data})
}

func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

func Collection(w http.ResponseWriter, data any, meta PaginationMeta) {
	writeJSON(w, http.StatusOK, collectionEnvelope{Data: data, Meta: meta})
}

func Error(w http.ResponseWriter, status int, code, message string, details any) {
	writeJSON(w, status, errorEnvelope{Error: errorBody{
		Code:    code,
		Message: message,
		Details: details,
	}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("write response body", "status", status, "error", err)
	}
}
