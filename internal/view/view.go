package view

import (
	"github.com/msomdec/realty/internal/domain"
	"github.com/msomdec/realty/internal/service"
	"github.com/msomdec/realty/internal/validation"
)

//go:generate templ generate

const (
	// EmptyStateText is shown when a query returns no listings.
	EmptyStateText = "No listings found"

	// ListingsGridID is the id of the grid "load more" appends to.
	ListingsGridID = "listings"

	// UploadProgressID is the id of the per-file upload progress list.
	UploadProgressID = "upload-progress"
)

// Chrome carries what every page needs to render its header.
type Chrome struct {
	User   *domain.User
	Flash  string // One-off notice shown above the content
	Active string // Path of the current section, for nav highlighting
}

// ListingDetail is everything the single listing page shows.
type ListingDetail struct {
	Listing  *domain.Listing
	Owner    *domain.User
	Nearby   []service.NearbyListing
	Contact  validation.ContactForm
	Errors   validation.FieldErrors
	Alert    string
	ShowForm bool
}

// ListingFormState is the state of the create or edit listing form.
type ListingFormState struct {
	Action  string // Form target
	Form    validation.ListingForm
	Errors  validation.FieldErrors
	Alert   string
	Current []domain.ListingImage // Images kept when none are chosen
}

// AuthFormState is the state shared by the sign-in style forms.
type AuthFormState struct {
	Errors validation.FieldErrors
	Alert  string
	Google bool   // Offer Google sign-in
	Next   string // Where to go after signing in
}

// ProfileState is the state of the profile page.
type ProfileState struct {
	Form     validation.ProfileForm
	Errors   validation.FieldErrors
	Alert    string
	Listings []domain.Listing
	NextURL  string
}

type homeSection struct {
	section service.HomeSection
	title   string
	more    string // "Show more" link text
	moreURL string
}

var homeSections = []homeSection{
	{service.SectionOffers, "Recent Offers", "Show more offers", "/offers"},
	{service.SectionSale, "Places for sale", "Show more places for sale", "/category/sale"},
	{service.SectionRent, "Places for rent", "Show more places for rent", "/category/rent"},
}

func sectionMeta(s service.HomeSection) (homeSection, bool) {
	for _, meta := range homeSections {
		if meta.section == s {
			return meta, true
		}
	}
	return homeSection{}, false
}

// sectionID is the element id a home section is patched into.
func sectionID(s service.HomeSection) string {
	return "section-" + string(s)
}

func sectionStream(s service.HomeSection) string {
	return "@get('/home/sections/" + string(s) + "')"
}

type option struct {
	Value string
	Label string
}

var (
	yesNoOptions = []option{{"true", "Yes"}, {"false", "No"}}
	typeOptions  = []option{{"sale", "Sell"}, {"rent", "Rent"}}
)

func userID(c Chrome) int64 {
	if c.User == nil {
		return 0
	}
	return c.User.ID
}
