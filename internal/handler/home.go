package handler

import (
	"log/slog"
	"net/http"

	"github.com/msomdec/realty/internal/service"
	"github.com/msomdec/realty/internal/view"
	"github.com/starfederation/datastar-go/datastar"
)

// HomeHandler serves the home page and its live sections.
type HomeHandler struct {
	listings *service.ListingService
	cookies  Cookies
}

// NewHomeHandler creates a new HomeHandler.
func NewHomeHandler(listings *service.ListingService, cookies Cookies) *HomeHandler {
	return &HomeHandler{listings: listings, cookies: cookies}
}

// HandleHome renders the home page shell. Each section then opens its own
// stream.
// GET /{$}
func (h *HomeHandler) HandleHome(w http.ResponseWriter, r *http.Request) {
	render(w, r, http.StatusOK, view.HomePage(h.cookies.chrome(w, r)))
}

// HandleSection streams one home page section. The section is rendered once
// and again after every listing change until the client disconnects.
// GET /home/sections/{section}
func (h *HomeHandler) HandleSection(w http.ResponseWriter, r *http.Request) {
	section := service.HomeSection(r.PathValue("section"))
	if !section.Valid() {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}

	var viewerID int64
	if user := UserFromContext(r.Context()); user != nil {
		viewerID = user.ID
	}

	// Subscribe before the first query so no change is missed in between.
	events, unsubscribe := h.listings.Subscribe()
	defer unsubscribe()

	sse := datastar.NewSSE(w, r)
	send := func() bool {
		listings, err := h.listings.Section(r.Context(), section)
		if err != nil {
			if r.Context().Err() == nil {
				slog.Error("query home section", "section", section, "error", err)
			}
			return false
		}
		if err := sse.PatchElementTempl(view.HomeSectionFragment(section, listings, viewerID)); err != nil {
			return false
		}
		return true
	}

	if !send() {
		return
	}
	for {
		select {
		case <-r.Context().Done():
			return
		case _, ok := <-events:
			if !ok || !send() {
				return
			}
		}
	}
}
