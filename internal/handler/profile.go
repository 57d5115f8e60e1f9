package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/msomdec/realty/internal/domain"
	"github.com/msomdec/realty/internal/service"
	"github.com/msomdec/realty/internal/validation"
	"github.com/msomdec/realty/internal/view"
)

const profileMoreURL = "/profile/more"

// ProfileHandler serves the signed-in user's profile.
type ProfileHandler struct {
	auth     *service.AuthService
	listings *service.ListingService
	cookies  Cookies
}

// NewProfileHandler creates a new ProfileHandler.
func NewProfileHandler(auth *service.AuthService, listings *service.ListingService, cookies Cookies) *ProfileHandler {
	return &ProfileHandler{auth: auth, listings: listings, cookies: cookies}
}

// HandleProfile renders the profile page.
// GET /profile
func (h *ProfileHandler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	state := view.ProfileState{Form: validation.ProfileForm{Name: user.DisplayName}}
	h.render(w, r, http.StatusOK, user, state)
}

// HandleUpdate changes the user's display name.
// POST /profile
func (h *ProfileHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	form := validation.ProfileForm{Name: strings.TrimSpace(r.FormValue("name"))}

	updated, err := h.auth.UpdateProfile(r.Context(), user.ID, form)
	if err != nil {
		state := view.ProfileState{Form: form}
		status := http.StatusUnprocessableEntity
		var fe validation.FieldErrors
		if errors.As(err, &fe) {
			state.Errors = fe
		} else {
			slog.Error("update profile", "error", err)
			state.Alert = "Could not update profile details"
			status = http.StatusInternalServerError
		}
		h.render(w, r, status, user, state)
		return
	}

	slog.Info("profile updated", "user", updated.ID)
	h.cookies.setFlash(w, "Profile details updated")
	http.Redirect(w, r, "/profile", http.StatusSeeOther)
}

// HandleMore appends the next page of the user's listings via SSE.
// GET /profile/more?after=
func (h *ProfileHandler) HandleMore(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	q := domain.ListingQuery{UserID: user.ID, Limit: service.LoadMorePageSize}
	if token := r.URL.Query().Get("after"); token != "" {
		after, err := domain.DecodeCursor(token)
		if err != nil {
			http.Error(w, "Bad Request", http.StatusBadRequest)
			return
		}
		q.After = after
	}

	page, err := h.listings.Query(r.Context(), q)
	if err != nil {
		slog.Error("load more own listings", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	streamPage(w, r, page, profileMoreURL)
}

func (h *ProfileHandler) render(w http.ResponseWriter, r *http.Request, status int, user *domain.User, state view.ProfileState) {
	page, err := h.listings.Query(r.Context(), domain.ListingQuery{UserID: user.ID, Limit: service.CategoryPageSize})
	if err != nil {
		slog.Error("query own listings", "error", err)
		state.Alert = "Could not fetch your listings"
	} else {
		state.Listings = page.Listings
		state.NextURL = nextURL(profileMoreURL, page.Next)
	}
	render(w, r, status, view.ProfilePage(h.cookies.chrome(w, r), state))
}
