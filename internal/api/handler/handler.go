// Package handler implements the HTTP handlers of the RightsDesk API.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kiranshivaraju/rightsdesk/internal/api/response"
	"github.com/kiranshivaraju/rightsdesk/internal/pipeline"
	"github.com/kiranshivaraju/rightsdesk/internal/session"
	"github.com/kiranshivaraju/rightsdesk/pkg/models"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 64 << 10

// Sessions is the session-manager contract the handlers depend on.
type Sessions interface {
	Create(ctx context.Context) (*session.Session, error)
	Close(ctx context.Context, id uuid.UUID) error
	Summary(ctx context.Context, id uuid.UUID) (session.Summary, error)
	SubmitMessage(ctx context.Context, id uuid.UUID, text string) (models.Turn, error)
	Transcript(ctx context.Context, id uuid.UUID) (session.Transcript, error)
	SubmitAsset(ctx context.Context, id uuid.UUID, in models.AssetIntake) (models.Run, error)
	Assets(id uuid.UUID) ([]models.Asset, error)
	Run(ctx context.Context, id, runID uuid.UUID) (models.Run, error)
	CancelRun(ctx context.Context, id, runID uuid.UUID) (models.Run, error)
	Subscribe(id uuid.UUID) (<-chan models.Event, func(), error)
}

var _ Sessions = (*session.Manager)(nil)

// uuidParam parses a chi URL parameter as a UUID, writing a 400 on failure.
func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		response.Error(w, http.StatusBadRequest, response.CodeInvalidRequest,
			fmt.Sprintf("%s must be a valid UUID", name), nil)
		return uuid.Nil, false
	}
	return id, true
}

// decodeJSON reads a bounded JSON body into v, writing a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		response.Error(w, http.StatusBadRequest, response.CodeInvalidRequest, "Invalid JSON body", nil)
		return false
	}
	return true
}

// positiveQueryInt reads an optional positive integer query parameter.
func positiveQueryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%s must be a positive integer", name)
	}
	return n, nil
}

// writeError maps domain errors onto the API error codes.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, models.ErrValidation):
		response.Error(w, http.StatusBadRequest, response.CodeValidation, err.Error(), nil)
	case errors.Is(err, models.ErrConflict):
		response.Error(w, http.StatusConflict, response.CodeConflict,
			"An analysis is already running for this asset", nil)
	case errors.Is(err, session.ErrRateLimited):
		w.Header().Set("Retry-After", "1")
		response.Error(w, http.StatusTooManyRequests, response.CodeRateLimited, "Too many messages", nil)
	case errors.Is(err, models.ErrScheduling):
		response.Error(w, http.StatusServiceUnavailable, response.CodeScheduling,
			"The request could not be scheduled", nil)
	case errors.Is(err, session.ErrNotFound), errors.Is(err, pipeline.ErrClosed):
		response.Error(w, http.StatusNotFound, response.CodeSessionNotFound, "Session not found", nil)
	case errors.Is(err, pipeline.ErrRunNotFound):
		response.Error(w, http.StatusNotFound, response.CodeRunNotFound, "Run not found", nil)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		response.Error(w, http.StatusServiceUnavailable, response.CodeRequestCancelled,
			"The request was cancelled", nil)
	default:
		slog.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		response.Error(w, http.StatusInternalServerError, response.CodeInternal,
			"An unexpected error occurred", nil)
	}
}
