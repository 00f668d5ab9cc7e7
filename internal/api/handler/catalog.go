package handler

import (
	"net/http"

	"github.com/kiranshivaraju/rightsdesk/internal/api/response"
	"github.com/kiranshivaraju/rightsdesk/internal/catalog"
)

// NewListAppsHandler returns an http.HandlerFunc for GET /api/v1/catalog/apps.
// ?pinned=n limits the list to the first n apps.
func NewListAppsHandler(cat *catalog.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Has("pinned") {
			n, err := positiveQueryInt(r, "pinned", 0)
			if err != nil {
				response.Error(w, http.StatusBadRequest, response.CodeInvalidRequest, err.Error(), nil)
				return
			}
			response.JSON(w, cat.Pinned(n))
			return
		}
		response.JSON(w, cat.Apps())
	}
}

// NewListPromptsHandler returns an http.HandlerFunc for GET /api/v1/catalog/prompts.
func NewListPromptsHandler(cat *catalog.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, cat.Prompts())
	}
}
