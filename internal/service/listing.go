package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/msomdec/realty/internal/domain"
	"github.com/msomdec/realty/internal/validation"
	"github.com/umahmood/haversine"
)

// Page sizes for listing queries.
const (
	HomeSectionLimit = 10
	SliderLimit      = 5
	CategoryPageSize = 15
	LoadMorePageSize = 4
	MaxPageSize      = 50

	NearbyRadiusKm = 10.0
	nearbyScan     = 200
	nearbyLimit    = 4
)

// HomeSection names one of the live sections on the home page.
type HomeSection string

const (
	SectionLatest HomeSection = "latest"
	SectionOffers HomeSection = "offers"
	SectionRent   HomeSection = "rent"
	SectionSale   HomeSection = "sale"
)

// Valid reports whether s is a known section.
func (s HomeSection) Valid() bool {
	switch s {
	case SectionLatest, SectionOffers, SectionRent, SectionSale:
		return true
	}
	return false
}

// Query returns the listing query backing the section.
func (s HomeSection) Query() domain.ListingQuery {
	switch s {
	case SectionLatest:
		return domain.ListingQuery{Limit: SliderLimit}
	case SectionOffers:
		return domain.ListingQuery{OfferOnly: true, Limit: HomeSectionLimit}
	case SectionRent:
		return domain.ListingQuery{Type: domain.ListingTypeRent, Limit: HomeSectionLimit}
	default:
		return domain.ListingQuery{Type: domain.ListingTypeSale, Limit: HomeSectionLimit}
	}
}

// NearbyListing is a listing with its distance from a reference point.
type NearbyListing struct {
	Listing    domain.Listing
	DistanceKm float64
}

// ListingService handles listing CRUD, queries and owner contact.
type ListingService struct {
	listings domain.ListingRepository
	users    domain.UserRepository
	uploads  *UploadService
	geocoder Geocoder // Nil uses the default coordinates
	mailer   Mailer
	broker   *Broker
}

// NewListingService creates a new ListingService.
func NewListingService(listings domain.ListingRepository, users domain.UserRepository, uploads *UploadService, geocoder Geocoder, mailer Mailer, broker *Broker) *ListingService {
	return &ListingService{
		listings: listings,
		users:    users,
		uploads:  uploads,
		geocoder: geocoder,
		mailer:   mailer,
		broker:   broker,
	}
}

// Create validates the form, uploads the images and stores the listing.
func (s *ListingService) Create(ctx context.Context, userID int64, form validation.ListingForm, files []UploadFile, progress ProgressFunc) (*domain.Listing, error) {
	form.Images = imageFiles(files)
	form.KeepImages = false
	if err := validation.Validate(form); err != nil {
		return nil, err
	}

	listing := listingFromForm(form)
	listing.UserID = userID
	if err := s.locate(ctx, listing); err != nil {
		return nil, err
	}

	images, err := s.uploads.UploadAll(ctx, userID, files, progress)
	if err != nil {
		return nil, err
	}
	listing.Images = images

	if err := s.listings.Create(ctx, listing); err != nil {
		s.uploads.DeleteAll(context.WithoutCancel(ctx), images)
		return nil, fmt.Errorf("create listing: %w", err)
	}

	s.publish("created", listing)
	return listing, nil
}

// GetByID retrieves a listing.
func (s *ListingService) GetByID(ctx context.Context, id int64) (*domain.Listing, error) {
	return s.listings.GetByID(ctx, id)
}

// GetOwned retrieves a listing, returning ErrUnauthorized when it does not
// belong to userID.
func (s *ListingService) GetOwned(ctx context.Context, userID, id int64) (*domain.Listing, error) {
	listing, err := s.listings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !listing.OwnedBy(userID) {
		return nil, domain.ErrUnauthorized
	}
	return listing, nil
}

// Update replaces the listing's fields. When no files are given the current
// images are kept.
func (s *ListingService) Update(ctx context.Context, userID, id int64, form validation.ListingForm, files []UploadFile, progress ProgressFunc) (*domain.Listing, error) {
	existing, err := s.GetOwned(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	form.Images = imageFiles(files)
	form.KeepImages = len(files) == 0 && len(existing.Images) > 0
	if err := validation.Validate(form); err != nil {
		return nil, err
	}

	listing := listingFromForm(form)
	listing.ID = existing.ID
	listing.UserID = existing.UserID
	listing.CreatedAt = existing.CreatedAt
	if listing.Latitude == 0 && listing.Longitude == 0 && listing.Address == existing.Address {
		listing.Latitude, listing.Longitude = existing.Latitude, existing.Longitude
	}
	if err := s.locate(ctx, listing); err != nil {
		return nil, err
	}

	listing.Images = existing.Images
	if len(files) > 0 {
		images, err := s.uploads.UploadAll(ctx, userID, files, progress)
		if err != nil {
			return nil, err
		}
		listing.Images = images
	}

	if err := s.listings.Update(ctx, listing); err != nil {
		if len(files) > 0 {
			s.uploads.DeleteAll(context.WithoutCancel(ctx), listing.Images)
		}
		return nil, fmt.Errorf("update listing: %w", err)
	}
	if len(files) > 0 {
		s.uploads.DeleteAll(ctx, existing.Images)
	}

	s.publish("updated", listing)
	return listing, nil
}

// Delete removes a listing owned by userID.
func (s *ListingService) Delete(ctx context.Context, userID, id int64) error {
	listing, err := s.GetOwned(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := s.listings.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete listing: %w", err)
	}
	s.uploads.DeleteAll(ctx, listing.Images)
	s.publish("deleted", listing)
	return nil
}

// Query returns one page of listings. The limit is clamped to MaxPageSize.
func (s *ListingService) Query(ctx context.Context, q domain.ListingQuery) (*domain.ListingPage, error) {
	if q.Type != "" && !q.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown listing type %q", domain.ErrInvalidInput, q.Type)
	}
	if q.Limit <= 0 {
		q.Limit = CategoryPageSize
	}
	q.Limit = min(q.Limit, MaxPageSize)
	return s.listings.Query(ctx, q)
}

// Section returns the current contents of a home page section.
func (s *ListingService) Section(ctx context.Context, section HomeSection) ([]domain.Listing, error) {
	if !section.Valid() {
		return nil, fmt.Errorf("%w: unknown section %q", domain.ErrInvalidInput, section)
	}
	page, err := s.listings.Query(ctx, section.Query())
	if err != nil {
		return nil, fmt.Errorf("query section %s: %w", section, err)
	}
	return page.Listings, nil
}

// Subscribe returns a channel of listing changes and a function that ends
// the subscription.
func (s *ListingService) Subscribe() (<-chan ListingEvent, func()) {
	return s.broker.Subscribe()
}

// Nearby returns up to a few other listings within NearbyRadiusKm of the
// given listing, closest first.
func (s *ListingService) Nearby(ctx context.Context, listing *domain.Listing) ([]NearbyListing, error) {
	page, err := s.listings.Query(ctx, domain.ListingQuery{Limit: nearbyScan})
	if err != nil {
		return nil, fmt.Errorf("query listings: %w", err)
	}

	origin := haversine.Coord{Lat: listing.Latitude, Lon: listing.Longitude}
	var nearby []NearbyListing
	for _, l := range page.Listings {
		if l.ID == listing.ID {
			continue
		}
		_, km := haversine.Distance(origin, haversine.Coord{Lat: l.Latitude, Lon: l.Longitude})
		if km <= NearbyRadiusKm {
			nearby = append(nearby, NearbyListing{Listing: l, DistanceKm: km})
		}
	}
	sort.SliceStable(nearby, func(i, j int) bool { return nearby[i].DistanceKm < nearby[j].DistanceKm })
	if len(nearby) > nearbyLimit {
		nearby = nearby[:nearbyLimit]
	}
	return nearby, nil
}

// Owner returns the user who posted the listing.
func (s *ListingService) Owner(ctx context.Context, listing *domain.Listing) (*domain.User, error) {
	return s.users.GetByID(ctx, listing.UserID)
}

// ContactOwner emails a message from sender to the owner of the listing.
// Owners cannot contact themselves.
func (s *ListingService) ContactOwner(ctx context.Context, sender *domain.User, listingID int64, form validation.ContactForm) error {
	if err := validation.Validate(form); err != nil {
		return err
	}
	listing, err := s.listings.GetByID(ctx, listingID)
	if err != nil {
		return err
	}
	if listing.OwnedBy(sender.ID) {
		return fmt.Errorf("%w: you cannot contact yourself", domain.ErrInvalidInput)
	}
	owner, err := s.users.GetByID(ctx, listing.UserID)
	if err != nil {
		return fmt.Errorf("get owner: %w", err)
	}

	msg := Message{
		ToName:  owner.DisplayName,
		ToEmail: owner.Email,
		ReplyTo: sender.Email,
		Subject: "Enquiry about " + listing.Name,
		PlainText: fmt.Sprintf("%s (%s) wrote about %s:\n\n%s",
			sender.DisplayName, sender.Email, listing.Name, strings.TrimSpace(form.Message)),
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("send contact email: %w", err)
	}
	return nil
}

// locate fills in coordinates from the address when none were entered.
func (s *ListingService) locate(ctx context.Context, listing *domain.Listing) error {
	if listing.Latitude != 0 || listing.Longitude != 0 {
		return nil
	}
	if s.geocoder == nil {
		listing.Latitude, listing.Longitude = DefaultLatitude, DefaultLongitude
		return nil
	}
	lat, lng, err := s.geocoder.Geocode(ctx, listing.Address)
	if err != nil {
		slog.Warn("geocode address", "address", listing.Address, "error", err)
		return validation.FieldErrors{"address": "Please enter a correct address"}
	}
	listing.Latitude, listing.Longitude = lat, lng
	return nil
}

func (s *ListingService) publish(kind string, listing *domain.Listing) {
	if s.broker == nil {
		return
	}
	s.broker.Publish(ListingEvent{Kind: kind, Listing: *listing})
}

func listingFromForm(f validation.ListingForm) *domain.Listing {
	l := &domain.Listing{
		Name:         strings.TrimSpace(f.Name),
		Type:         domain.ListingType(f.Type),
		Address:      strings.TrimSpace(f.Address),
		Description:  strings.TrimSpace(f.Description),
		Bedrooms:     f.Bedrooms,
		Bathrooms:    f.Bathrooms,
		RegularPrice: f.RegularPrice,
		Offer:        f.Offer,
		Parking:      f.Parking,
		Furnished:    f.Furnished,
		Latitude:     f.Latitude,
		Longitude:    f.Longitude,
	}
	if f.Offer {
		l.DiscountedPrice = f.DiscountedPrice
	}
	return l
}

func imageFiles(files []UploadFile) []validation.ImageFile {
	if len(files) == 0 {
		return nil
	}
	out := make([]validation.ImageFile, len(files))
	for i, f := range files {
		out[i] = validation.ImageFile{Filename: f.Filename, ContentType: f.ContentType, Size: f.Size}
	}
	return out
}

// IsNotFound reports whether err means the resource is missing or not
// visible to the caller.
func IsNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrUnauthorized)
}
