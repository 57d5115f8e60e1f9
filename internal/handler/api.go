package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/msomdec/realty/internal/domain"
	"github.com/msomdec/realty/internal/service"
)

// HandleAPIList returns one page of listings as JSON.
// GET /api/listings?type=rent|sale&offer=true&user=ID&limit=N&after=CURSOR
// Response: {"listings": [...], "next": "..."}
func (h *ListingHandler) HandleAPIList(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	q := domain.ListingQuery{
		Type:      domain.ListingType(params.Get("type")),
		OfferOnly: params.Get("offer") == "true",
		Limit:     service.CategoryPageSize,
	}
	if v := params.Get("user"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid user.")
			return
		}
		q.UserID = id
	}
	if v := params.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit.")
			return
		}
		q.Limit = n
	}
	if v := params.Get("after"); v != "" {
		after, err := domain.DecodeCursor(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid cursor.")
			return
		}
		q.After = after
	}

	page, err := h.listings.Query(r.Context(), q)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, "Invalid listing type.")
			return
		}
		slog.Error("api list listings", "error", err)
		writeError(w, http.StatusInternalServerError, unexpectedError)
		return
	}
	writeJSON(w, http.StatusOK, toListingPageDTO(page))
}

// HandleAPIGet returns a single listing as JSON.
// GET /api/listings/{id}
// Response: {"listing": {...}}
func (h *ListingHandler) HandleAPIGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusNotFound, "Listing not found.")
		return
	}
	listing, err := h.listings.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Listing not found.")
			return
		}
		slog.Error("api get listing", "error", err)
		writeError(w, http.StatusInternalServerError, unexpectedError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"listing": toListingDTO(listing)})
}
