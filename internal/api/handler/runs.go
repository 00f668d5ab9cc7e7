package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/rightsdesk/internal/api/response"
	"github.com/kiranshivaraju/rightsdesk/internal/session"
	"github.com/kiranshivaraju/rightsdesk/internal/store"
	"github.com/kiranshivaraju/rightsdesk/pkg/models"
)

// RunCache serves the last mirrored snapshot of a run.
type RunCache interface {
	GetRunProgress(ctx context.Context, runID uuid.UUID) (*models.Run, bool, error)
}

// RunArchive serves archived runs.
type RunArchive interface {
	GetRun(ctx context.Context, id uuid.UUID) (*models.Run, error)
}

// NewGetRunHandler returns an http.HandlerFunc for
// GET /api/v1/sessions/{sessionID}/runs/{runID}.
//
// Runs of a live session come from the session itself. Once the session is gone the run
// is looked up in the cache, then in the archive. Either fallback may be nil.
func NewGetRunHandler(svc Sessions, c RunCache, a RunArchive) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, ok := uuidParam(w, r, "sessionID")
		if !ok {
			return
		}
		runID, ok := uuidParam(w, r, "runID")
		if !ok {
			return
		}

		run, err := svc.Run(r.Context(), sessionID, runID)
		if err == nil {
			response.JSON(w, run)
			return
		}
		if !errors.Is(err, session.ErrNotFound) {
			writeError(w, r, err)
			return
		}

		if archived, found := lookupArchivedRun(r.Context(), c, a, sessionID, runID); found {
			response.JSON(w, archived)
			return
		}
		writeError(w, r, err)
	}
}

func lookupArchivedRun(ctx context.Context, c RunCache, a RunArchive, sessionID, runID uuid.UUID) (*models.Run, bool) {
	if c != nil {
		run, found, err := c.GetRunProgress(ctx, runID)
		if err != nil {
			slog.WarnContext(ctx, "run cache lookup failed", "run_id", runID, "error", err)
		} else if found && run.SessionID == sessionID {
			return run, true
		}
	}
	if a != nil {
		run, err := a.GetRun(ctx, runID)
		if err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				slog.WarnContext(ctx, "run archive lookup failed", "run_id", runID, "error", err)
			}
			return nil, false
		}
		if run.SessionID == sessionID {
			return run, true
		}
	}
	return nil, false
}

// NewCancelRunHandler returns an http.HandlerFunc for
// DELETE /api/v1/sessions/{sessionID}/runs/{runID}. Cancelling a finished run returns
// it unchanged.
func NewCancelRunHandler(svc Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, ok := uuidParam(w, r, "sessionID")
		if !ok {
			return
		}
		runID, ok := uuidParam(w, r, "runID")
		if !ok {
			return
		}

		run, err := svc.CancelRun(r.Context(), sessionID, runID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		response.JSON(w, run)
	}
}
