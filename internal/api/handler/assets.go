package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/kiranshivaraju/rightsdesk/internal/api/response"
	"github.com/kiranshivaraju/rightsdesk/internal/session"
	"github.com/kiranshivaraju/rightsdesk/pkg/models"
)

const (
	defaultAssetPageSize = 50
	maxAssetPageSize     = 200
)

// NewSubmitAssetHandler returns an http.HandlerFunc for POST /api/v1/sessions/{sessionID}/assets.
func NewSubmitAssetHandler(svc Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "sessionID")
		if !ok {
			return
		}

		var in models.AssetIntake
		if !decodeJSON(w, r, &in) {
			return
		}

		run, err := svc.SubmitAsset(r.Context(), id, in)
		if err != nil {
			writeError(w, r, err)
			return
		}
		response.Accepted(w, run)
	}
}

// NewListAssetsHandler returns an http.HandlerFunc for GET /api/v1/sessions/{sessionID}/assets.
// Supports ?page= and ?limit=. Once the session is gone the archived library is served
// from a, which may be nil.
func NewListAssetsHandler(svc Sessions, a SessionArchive) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "sessionID")
		if !ok {
			return
		}
		page, err := positiveQueryInt(r, "page", 1)
		if err != nil {
			response.Error(w, http.StatusBadRequest, response.CodeInvalidRequest, err.Error(), nil)
			return
		}
		limit, err := positiveQueryInt(r, "limit", defaultAssetPageSize)
		if err != nil {
			response.Error(w, http.StatusBadRequest, response.CodeInvalidRequest, err.Error(), nil)
			return
		}
		if limit > maxAssetPageSize {
			limit = maxAssetPageSize
		}

		assets, err := svc.Assets(id)
		if err == nil {
			response.Page(w, assets, page, limit)
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
		archived, err := a.ListAssets(r.Context(), sess.ID)
		if err != nil {
			writeError(w, r, fmt.Errorf("read archived assets: %w", err))
			return
		}
		response.Page(w, values(archived), page, limit)
	}
}
