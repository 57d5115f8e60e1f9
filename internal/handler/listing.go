package handler

import (
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/msomdec/realty/internal/domain"
	"github.com/msomdec/realty/internal/service"
	"github.com/msomdec/realty/internal/validation"
	"github.com/msomdec/realty/internal/view"
	"github.com/starfederation/datastar-go/datastar"
)

// Upper bound on a listing form: every image at its size limit plus fields.
const maxListingBody = validation.MaxImages*validation.MaxImageSize + 1<<20

// ListingHandler handles listing pages and mutations.
type ListingHandler struct {
	listings *service.ListingService
	cookies  Cookies
}

// NewListingHandler creates a new ListingHandler.
func NewListingHandler(listings *service.ListingService, cookies Cookies) *ListingHandler {
	return &ListingHandler{listings: listings, cookies: cookies}
}

type listingScope struct {
	title   string
	query   domain.ListingQuery
	moreURL string
}

func categoryScope(r *http.Request) (listingScope, bool) {
	typ := domain.ListingType(r.PathValue("type"))
	if !typ.Valid() {
		return listingScope{}, false
	}
	title := "Places for rent"
	if typ == domain.ListingTypeSale {
		title = "Places for sale"
	}
	return listingScope{
		title:   title,
		query:   domain.ListingQuery{Type: typ},
		moreURL: "/category/" + string(typ) + "/more",
	}, true
}

var offersScope = listingScope{
	title:   "Offers",
	query:   domain.ListingQuery{OfferOnly: true},
	moreURL: "/offers/more",
}

func nextURL(base string, next *domain.Cursor) string {
	if next == nil {
		return ""
	}
	return base + "?after=" + next.Encode()
}

// HandleCategory renders the first page of a category.
// GET /category/{type}
func (h *ListingHandler) HandleCategory(w http.ResponseWriter, r *http.Request) {
	scope, ok := categoryScope(r)
	if !ok {
		h.cookies.notFound(w, r)
		return
	}
	h.renderFirstPage(w, r, scope)
}

// HandleOffers renders the first page of listings on offer.
// GET /offers
func (h *ListingHandler) HandleOffers(w http.ResponseWriter, r *http.Request) {
	h.renderFirstPage(w, r, offersScope)
}

func (h *ListingHandler) renderFirstPage(w http.ResponseWriter, r *http.Request, scope listingScope) {
	q := scope.query
	q.Limit = service.CategoryPageSize
	page, err := h.listings.Query(r.Context(), q)
	if err != nil {
		slog.Error("query listings", "error", err)
		h.cookies.serverError(w, r, "Could not fetch listings")
		return
	}
	render(w, r, http.StatusOK, view.CategoryPage(h.cookies.chrome(w, r), scope.title, page.Listings, nextURL(scope.moreURL, page.Next)))
}

// HandleCategoryMore appends the next page of a category via SSE.
// GET /category/{type}/more?after=
func (h *ListingHandler) HandleCategoryMore(w http.ResponseWriter, r *http.Request) {
	scope, ok := categoryScope(r)
	if !ok {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}
	h.loadMore(w, r, scope)
}

// HandleOffersMore appends the next page of offers via SSE.
// GET /offers/more?after=
func (h *ListingHandler) HandleOffersMore(w http.ResponseWriter, r *http.Request) {
	h.loadMore(w, r, offersScope)
}

func (h *ListingHandler) loadMore(w http.ResponseWriter, r *http.Request, scope listingScope) {
	q := scope.query
	q.Limit = service.LoadMorePageSize
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
		slog.Error("load more listings", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	streamPage(w, r, page, scope.moreURL)
}

// streamPage appends a page of cards to the listings grid and replaces the
// load-more control.
func streamPage(w http.ResponseWriter, r *http.Request, page *domain.ListingPage, moreURL string) {
	var viewerID int64
	if user := UserFromContext(r.Context()); user != nil {
		viewerID = user.ID
	}

	sse := datastar.NewSSE(w, r)
	sse.PatchElementTempl(
		view.ListingItems(page.Listings, viewerID),
		datastar.WithSelectorID(view.ListingsGridID),
		datastar.WithModeAppend(),
	)
	sse.PatchElementTempl(view.LoadMore(nextURL(moreURL, page.Next)))
}

// HandleShow renders a single listing.
// GET /category/{type}/{id}
func (h *ListingHandler) HandleShow(w http.ResponseWriter, r *http.Request) {
	listing, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if string(listing.Type) != r.PathValue("type") {
		http.Redirect(w, r, "/category/"+string(listing.Type)+"/"+strconv.FormatInt(listing.ID, 10), http.StatusMovedPermanently)
		return
	}

	detail := view.ListingDetail{Listing: listing, ShowForm: r.URL.Query().Get("contact") == "1"}
	h.fillDetail(r, &detail)
	render(w, r, http.StatusOK, view.ListingPage(h.cookies.chrome(w, r), detail))
}

func (h *ListingHandler) fillDetail(r *http.Request, d *view.ListingDetail) {
	owner, err := h.listings.Owner(r.Context(), d.Listing)
	if err != nil {
		slog.Warn("get listing owner", "listing", d.Listing.ID, "error", err)
	} else {
		d.Owner = owner
	}

	nearby, err := h.listings.Nearby(r.Context(), d.Listing)
	if err != nil {
		slog.Warn("get nearby listings", "listing", d.Listing.ID, "error", err)
	}
	d.Nearby = nearby
}

// HandleContact emails the listing owner.
// POST /listings/{id}/contact
func (h *ListingHandler) HandleContact(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	listing, ok := h.lookup(w, r)
	if !ok {
		return
	}

	form := validation.ContactForm{Message: r.FormValue("message")}
	err := h.listings.ContactOwner(r.Context(), user, listing.ID, form)
	if err == nil {
		h.cookies.setFlash(w, "Your message has been sent")
		http.Redirect(w, r, "/category/"+string(listing.Type)+"/"+strconv.FormatInt(listing.ID, 10), http.StatusSeeOther)
		return
	}

	detail := view.ListingDetail{Listing: listing, Contact: form, ShowForm: true}
	status := http.StatusUnprocessableEntity
	var fe validation.FieldErrors
	switch {
	case errors.As(err, &fe):
		detail.Errors = fe
	case errors.Is(err, domain.ErrInvalidInput):
		detail.Alert = fieldErrors(err).Get("")
	default:
		slog.Error("contact owner", "error", err)
		detail.Alert = "Could not send your message"
		status = http.StatusInternalServerError
	}
	h.fillDetail(r, &detail)
	render(w, r, status, view.ListingPage(h.cookies.chrome(w, r), detail))
}

// HandleNew renders the create listing form.
// GET /create-listing
func (h *ListingHandler) HandleNew(w http.ResponseWriter, r *http.Request) {
	state := view.ListingFormState{
		Action: "/create-listing",
		Form:   validation.ListingForm{Type: string(domain.ListingTypeRent), Bedrooms: 1, Bathrooms: 1},
	}
	render(w, r, http.StatusOK, view.ListingFormPage(h.cookies.chrome(w, r), "Create a Listing", state))
}

// HandleCreate stores a new listing.
// POST /create-listing
func (h *ListingHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	state := view.ListingFormState{Action: "/create-listing"}
	h.save(w, r, "Create a Listing", state, func(form validation.ListingForm, files []service.UploadFile, progress service.ProgressFunc) (*domain.Listing, error) {
		return h.listings.Create(r.Context(), user.ID, form, files, progress)
	})
}

// HandleEdit renders the edit form for a listing the user owns.
// GET /edit-listing/{id}
func (h *ListingHandler) HandleEdit(w http.ResponseWriter, r *http.Request) {
	listing, ok := h.lookupOwned(w, r)
	if !ok {
		return
	}
	state := view.ListingFormState{
		Action:  "/edit-listing/" + strconv.FormatInt(listing.ID, 10),
		Form:    formFromListing(listing),
		Current: listing.Images,
	}
	render(w, r, http.StatusOK, view.ListingFormPage(h.cookies.chrome(w, r), "Edit Listing", state))
}

// HandleUpdate saves changes to a listing the user owns.
// POST /edit-listing/{id}
func (h *ListingHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	listing, ok := h.lookupOwned(w, r)
	if !ok {
		return
	}
	state := view.ListingFormState{
		Action:  "/edit-listing/" + strconv.FormatInt(listing.ID, 10),
		Current: listing.Images,
	}
	h.save(w, r, "Edit Listing", state, func(form validation.ListingForm, files []service.UploadFile, progress service.ProgressFunc) (*domain.Listing, error) {
		return h.listings.Update(r.Context(), user.ID, listing.ID, form, files, progress)
	})
}

type saveFunc func(form validation.ListingForm, files []service.UploadFile, progress service.ProgressFunc) (*domain.Listing, error)

// save parses the listing form and runs fn. Datastar submissions get upload
// progress and the outcome over SSE; plain form posts get a redirect or the
// re-rendered form.
func (h *ListingHandler) save(w http.ResponseWriter, r *http.Request, title string, state view.ListingFormState, fn saveFunc) {
	r.Body = http.MaxBytesReader(w, r.Body, maxListingBody)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		state.Alert = "The upload is too large or malformed"
		if isDatastar(r) {
			sse := datastar.NewSSE(w, r)
			sse.PatchElementTempl(view.ListingFormFragment(state))
			return
		}
		render(w, r, http.StatusBadRequest, view.ListingFormPage(h.cookies.chrome(w, r), title, state))
		return
	}
	state.Form = parseListingForm(r)
	files := uploadFiles(r)

	if isDatastar(r) {
		h.saveStreaming(w, r, state, files, fn)
		return
	}

	listing, err := fn(state.Form, files, logProgress)
	if err != nil {
		status := h.describeSaveError(err, &state)
		render(w, r, status, view.ListingFormPage(h.cookies.chrome(w, r), title, state))
		return
	}

	h.cookies.setFlash(w, "Listing saved")
	http.Redirect(w, r, "/category/"+string(listing.Type)+"/"+strconv.FormatInt(listing.ID, 10), http.StatusSeeOther)
}

func (h *ListingHandler) saveStreaming(w http.ResponseWriter, r *http.Request, state view.ListingFormState, files []service.UploadFile, fn saveFunc) {
	sse := datastar.NewSSE(w, r)

	var mu sync.Mutex
	patch := func(p service.UploadProgress) {
		mu.Lock()
		defer mu.Unlock()
		sse.PatchElementTempl(view.UploadProgressItem(p))
	}

	// Replace any rows left by an earlier submit with one queued row per
	// file, so progress patches have a target.
	queued := make([]service.UploadProgress, len(files))
	for i, f := range files {
		queued[i] = service.UploadProgress{Index: i, Filename: f.Filename, TotalBytes: f.Size, State: service.UploadQueued}
	}
	sse.PatchElementTempl(view.UploadProgressList(queued))

	listing, err := fn(state.Form, files, throttleProgress(patch))
	if err != nil {
		h.describeSaveError(err, &state)
		sse.PatchElementTempl(view.ListingFormFragment(state))
		return
	}
	sse.Redirect("/category/" + string(listing.Type) + "/" + strconv.FormatInt(listing.ID, 10))
}

// describeSaveError records err on the form state and returns the status to
// respond with.
func (h *ListingHandler) describeSaveError(err error, state *view.ListingFormState) int {
	var fe validation.FieldErrors
	switch {
	case errors.As(err, &fe):
		state.Errors = fe
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrUploadFailed):
		slog.Error("upload listing images", "error", err)
		state.Alert = "Images not uploaded"
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrUnauthorized):
		state.Alert = "Listing not found"
		return http.StatusNotFound
	default:
		slog.Error("save listing", "error", err)
		state.Alert = unexpectedError
		return http.StatusInternalServerError
	}
}

// HandleDeletePage asks the owner to confirm deletion.
// GET /listings/{id}/delete
func (h *ListingHandler) HandleDeletePage(w http.ResponseWriter, r *http.Request) {
	listing, ok := h.lookupOwned(w, r)
	if !ok {
		return
	}
	render(w, r, http.StatusOK, view.DeleteListingPage(h.cookies.chrome(w, r), listing))
}

// HandleDelete removes a listing the user owns.
// POST /listings/{id}/delete
func (h *ListingHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		h.cookies.notFound(w, r)
		return
	}

	if err := h.listings.Delete(r.Context(), user.ID, id); err != nil {
		if service.IsNotFound(err) {
			h.cookies.notFound(w, r)
			return
		}
		slog.Error("delete listing", "error", err)
		h.cookies.serverError(w, r, "Could not delete the listing")
		return
	}

	h.cookies.setFlash(w, "Successfully deleted the listing")
	http.Redirect(w, r, "/profile", http.StatusSeeOther)
}

// lookup loads the listing named by the {id} path value, rendering the not
// found page when it does not exist.
func (h *ListingHandler) lookup(w http.ResponseWriter, r *http.Request) (*domain.Listing, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		h.cookies.notFound(w, r)
		return nil, false
	}
	listing, err := h.listings.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.cookies.notFound(w, r)
			return nil, false
		}
		slog.Error("get listing", "error", err)
		h.cookies.serverError(w, r, "Could not fetch the listing")
		return nil, false
	}
	return listing, true
}

// lookupOwned is lookup restricted to the signed-in user's listings. Other
// users' listings are reported as not found.
func (h *ListingHandler) lookupOwned(w http.ResponseWriter, r *http.Request) (*domain.Listing, bool) {
	user := UserFromContext(r.Context())
	listing, ok := h.lookup(w, r)
	if !ok {
		return nil, false
	}
	if user == nil || !listing.OwnedBy(user.ID) {
		h.cookies.notFound(w, r)
		return nil, false
	}
	return listing, true
}

func parseListingForm(r *http.Request) validation.ListingForm {
	return validation.ListingForm{
		Type:            r.FormValue("type"),
		Name:            strings.TrimSpace(r.FormValue("name")),
		Bedrooms:        formInt(r, "bedrooms"),
		Bathrooms:       formInt(r, "bathrooms"),
		Parking:         formBool(r, "parking"),
		Furnished:       formBool(r, "furnished"),
		Address:         strings.TrimSpace(r.FormValue("address")),
		Description:     strings.TrimSpace(r.FormValue("description")),
		Offer:           formBool(r, "offer"),
		RegularPrice:    formInt(r, "regularPrice"),
		DiscountedPrice: formInt(r, "discountedPrice"),
		Latitude:        formFloat(r, "latitude"),
		Longitude:       formFloat(r, "longitude"),
	}
}

func formFromListing(l *domain.Listing) validation.ListingForm {
	return validation.ListingForm{
		Type:            string(l.Type),
		Name:            l.Name,
		Bedrooms:        l.Bedrooms,
		Bathrooms:       l.Bathrooms,
		Parking:         l.Parking,
		Furnished:       l.Furnished,
		Address:         l.Address,
		Description:     l.Description,
		Offer:           l.Offer,
		RegularPrice:    l.RegularPrice,
		DiscountedPrice: l.DiscountedPrice,
		Latitude:        l.Latitude,
		Longitude:       l.Longitude,
	}
}

// uploadFiles lists the chosen images in selection order. Browsers submit an
// empty part when no file is chosen; it is skipped.
func uploadFiles(r *http.Request) []service.UploadFile {
	if r.MultipartForm == nil {
		return nil
	}
	var files []service.UploadFile
	for _, fh := range r.MultipartForm.File["images"] {
		if fh.Filename == "" && fh.Size == 0 {
			continue
		}
		files = append(files, service.UploadFile{
			Filename:    fh.Filename,
			ContentType: mediaType(fh.Header.Get("Content-Type")),
			Size:        fh.Size,
			Open: func() (io.ReadCloser, error) {
				return fh.Open()
			},
		})
	}
	return files
}

// mediaType normalizes a part's Content-Type to its lowercase media type,
// so "image/PNG" and "image/png; q=1" validate like "image/png".
func mediaType(v string) string {
	mt, _, err := mime.ParseMediaType(v)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(v))
	}
	return mt
}

func formInt(r *http.Request, name string) int {
	n, err := strconv.Atoi(strings.TrimSpace(r.FormValue(name)))
	if err != nil {
		return 0
	}
	return n
}

func formFloat(r *http.Request, name string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(r.FormValue(name)), 64)
	if err != nil {
		return 0
	}
	return f
}

func logProgress(p service.UploadProgress) {
	if p.State != service.UploadRunning {
		slog.Debug("upload progress", "file", p.Filename, "state", p.State, "bytes", p.BytesTransferred)
	}
}

// throttleProgress forwards state changes and every 5% of progress per file.
func throttleProgress(next service.ProgressFunc) service.ProgressFunc {
	var mu sync.Mutex
	last := map[int]int64{}
	return func(p service.UploadProgress) {
		if p.State == service.UploadRunning && p.TotalBytes > 0 {
			pct := p.BytesTransferred * 100 / p.TotalBytes
			mu.Lock()
			prev, seen := last[p.Index]
			if seen && pct-prev < 5 {
				mu.Unlock()
				return
			}
			last[p.Index] = pct
			mu.Unlock()
		}
		next(p)
	}
}
