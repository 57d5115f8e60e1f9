package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/msomdec/realty/internal/domain"
	"github.com/msomdec/realty/internal/service"
	"github.com/msomdec/realty/internal/validation"
)

type listingFixture struct {
	svc    *service.ListingService
	auth   *service.AuthService
	broker *service.Broker
	mailer *recordingMailer
	files  domain.FileStore
}

func newListingFixture(t *testing.T, geocoder service.Geocoder) *listingFixture {
	t.Helper()
	db := newTestDB(t)
	mailer := &recordingMailer{}
	broker := service.NewBroker()
	uploads := service.NewUploadService(db.FileStore())
	return &listingFixture{
		svc:    service.NewListingService(db.Listings(), db.Users(), uploads, geocoder, mailer, broker),
		auth:   service.NewAuthService(db.Users(), db.PasswordResets(), mailer, testJWTSecret, 4, ""),
		broker: broker,
		mailer: mailer,
		files:  db.FileStore(),
	}
}

func (f *listingFixture) assertStored(t *testing.T, img domain.ListingImage, want bool) {
	t.Helper()
	_, _, err := f.files.Get(context.Background(), img.StorageKey)
	switch {
	case want && err != nil:
		t.Fatalf("expected %s to be stored: %v", img.StorageKey, err)
	case !want && !errors.Is(err, domain.ErrNotFound):
		t.Fatalf("expected %s to be removed, got %v", img.StorageKey, err)
	}
}

func (f *listingFixture) user(t *testing.T, email string) *domain.User {
	t.Helper()
	u, err := f.auth.Register(context.Background(), signUp(email))
	if err != nil {
		t.Fatalf("Register %s: %v", email, err)
	}
	return u
}

func listingForm(typ string) validation.ListingForm {
	return validation.ListingForm{
		Type:         typ,
		Name:         "Sunny Cottage",
		Bedrooms:     3,
		Bathrooms:    2,
		Address:      "1 Beach Road",
		RegularPrice: 250000,
	}
}

func onePhoto() []service.UploadFile {
	return []service.UploadFile{memFile("photo.jpg", "image/jpeg", []byte("jpegdata"))}
}

func TestListingService_Create(t *testing.T) {
	f := newListingFixture(t, nil)
	ctx := context.Background()
	owner := f.user(t, "owner@example.com")

	events, cancel := f.broker.Subscribe()
	defer cancel()

	form := listingForm("sale")
	form.DiscountedPrice = 1000 // Ignored without an offer.
	listing, err := f.svc.Create(ctx, owner.ID, form, onePhoto(), nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if listing.ID == 0 || listing.UserID != owner.ID {
		t.Fatalf("unexpected listing %+v", listing)
	}
	if listing.DiscountedPrice != 0 {
		t.Fatalf("expected discounted price to be dropped, got %d", listing.DiscountedPrice)
	}
	if listing.Latitude != service.DefaultLatitude || listing.Longitude != service.DefaultLongitude {
		t.Fatalf("expected default coordinates, got %v,%v", listing.Latitude, listing.Longitude)
	}
	if len(listing.Images) != 1 {
		t.Fatalf("expected 1 image, got %d", len(listing.Images))
	}

	select {
	case ev := <-events:
		if ev.Kind != "created" || ev.Listing.ID != listing.ID {
			t.Fatalf("unexpected event %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("expected a created event")
	}
}

func TestListingService_Create_Invalid(t *testing.T) {
	f := newListingFixture(t, nil)
	owner := f.user(t, "owner@example.com")

	form := listingForm("rent")
	form.Name = "Hut"
	_, err := f.svc.Create(context.Background(), owner.ID, form, onePhoto(), nil)
	var fe validation.FieldErrors
	if !errors.As(err, &fe) || fe.Get("name") == "" {
		t.Fatalf("expected name field error, got %v", err)
	}

	_, err = f.svc.Create(context.Background(), owner.ID, listingForm("rent"), nil, nil)
	if !errors.As(err, &fe) || fe.Get("images") == "" {
		t.Fatalf("expected images field error, got %v", err)
	}
}

func TestListingService_Create_Geocodes(t *testing.T) {
	f := newListingFixture(t, service.FixedGeocoder{Lat: 51.5, Lng: -0.12})
	owner := f.user(t, "owner@example.com")

	listing, err := f.svc.Create(context.Background(), owner.ID, listingForm("rent"), onePhoto(), nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if listing.Latitude != 51.5 || listing.Longitude != -0.12 {
		t.Fatalf("expected geocoded coordinates, got %v,%v", listing.Latitude, listing.Longitude)
	}

	// Entered coordinates take precedence.
	form := listingForm("rent")
	form.Latitude, form.Longitude = 10, 20
	listing, err = f.svc.Create(context.Background(), owner.ID, form, onePhoto(), nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if listing.Latitude != 10 || listing.Longitude != 20 {
		t.Fatalf("expected entered coordinates, got %v,%v", listing.Latitude, listing.Longitude)
	}
}

type failingGeocoder struct{}

func (failingGeocoder) Geocode(context.Context, string) (float64, float64, error) {
	return 0, 0, errors.New("ZERO_RESULTS")
}

func TestListingService_Create_BadAddress(t *testing.T) {
	f := newListingFixture(t, failingGeocoder{})
	owner := f.user(t, "owner@example.com")

	_, err := f.svc.Create(context.Background(), owner.ID, listingForm("rent"), onePhoto(), nil)
	var fe validation.FieldErrors
	if !errors.As(err, &fe) || fe.Get("address") == "" {
		t.Fatalf("expected address error, got %v", err)
	}
}

func TestListingService_Update_OwnerOnly(t *testing.T) {
	f := newListingFixture(t, nil)
	ctx := context.Background()
	owner := f.user(t, "owner@example.com")
	other := f.user(t, "other@example.com")

	listing, err := f.svc.Create(ctx, owner.ID, listingForm("rent"), onePhoto(), nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	form := listingForm("sale")
	form.Offer = true
	form.DiscountedPrice = 200000
	if _, err := f.svc.Update(ctx, other.ID, listing.ID, form, nil, nil); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for non-owner, got %v", err)
	}

	updated, err := f.svc.Update(ctx, owner.ID, listing.ID, form, nil, nil)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Type != domain.ListingTypeSale || updated.Discount() != 50000 {
		t.Fatalf("unexpected update result %+v", updated)
	}
	if len(updated.Images) != 1 || updated.Images[0].StorageKey != listing.Images[0].StorageKey {
		t.Fatal("expected existing images to be kept")
	}
	if updated.Latitude != listing.Latitude {
		t.Fatal("expected coordinates to be kept")
	}
}

func TestListingService_Delete(t *testing.T) {
	f := newListingFixture(t, nil)
	ctx := context.Background()
	owner := f.user(t, "owner@example.com")
	other := f.user(t, "other@example.com")

	mine, err := f.svc.Create(ctx, owner.ID, listingForm("rent"), onePhoto(), nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	theirs, err := f.svc.Create(ctx, other.ID, listingForm("rent"), onePhoto(), nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := f.svc.Delete(ctx, other.ID, mine.ID); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := f.svc.Delete(ctx, owner.ID, mine.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	page, err := f.svc.Query(ctx, domain.ListingQuery{UserID: owner.ID})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(page.Listings) != 0 {
		t.Fatalf("expected owner to have no listings, got %d", len(page.Listings))
	}
	if _, err := f.svc.GetByID(ctx, theirs.ID); err != nil {
		t.Fatalf("other owner's listing should remain: %v", err)
	}
	f.assertStored(t, mine.Images[0], false)
	f.assertStored(t, theirs.Images[0], true)
}

func TestListingService_Update_ReplacedImagesRemoved(t *testing.T) {
	f := newListingFixture(t, nil)
	ctx := context.Background()
	owner := f.user(t, "owner@example.com")

	listing, err := f.svc.Create(ctx, owner.ID, listingForm("rent"), onePhoto(), nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	replacement := []service.UploadFile{memFile("new.png", "image/png", []byte("pngdata"))}
	updated, err := f.svc.Update(ctx, owner.ID, listing.ID, listingForm("rent"), replacement, nil)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if len(updated.Images) != 1 || updated.Images[0].Filename != "new.png" {
		t.Fatalf("expected the new image, got %+v", updated.Images)
	}
	f.assertStored(t, listing.Images[0], false)
	f.assertStored(t, updated.Images[0], true)
}

func TestListingService_Query(t *testing.T) {
	f := newListingFixture(t, nil)
	ctx := context.Background()
	owner := f.user(t, "owner@example.com")

	for _, typ := range []string{"rent", "sale", "rent"} {
		if _, err := f.svc.Create(ctx, owner.ID, listingForm(typ), onePhoto(), nil); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	page, err := f.svc.Query(ctx, domain.ListingQuery{Type: domain.ListingTypeRent})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(page.Listings) != 2 {
		t.Fatalf("expected 2 rentals, got %d", len(page.Listings))
	}
	for _, l := range page.Listings {
		if l.Type != domain.ListingTypeRent {
			t.Fatalf("rent query returned %s listing", l.Type)
		}
	}

	if _, err := f.svc.Query(ctx, domain.ListingQuery{Type: "lease"}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for unknown type, got %v", err)
	}
}

func TestListingService_Section(t *testing.T) {
	f := newListingFixture(t, nil)
	ctx := context.Background()
	owner := f.user(t, "owner@example.com")

	offer := listingForm("sale")
	offer.Offer = true
	offer.DiscountedPrice = 100
	if _, err := f.svc.Create(ctx, owner.ID, offer, onePhoto(), nil); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := f.svc.Create(ctx, owner.ID, listingForm("rent"), onePhoto(), nil); err != nil {
		t.Fatalf("Create: %v", err)
	}

	tests := []struct {
		section service.HomeSection
		want    int
	}{
		{service.SectionLatest, 2},
		{service.SectionOffers, 1},
		{service.SectionRent, 1},
		{service.SectionSale, 1},
	}
	for _, tt := range tests {
		got, err := f.svc.Section(ctx, tt.section)
		if err != nil {
			t.Fatalf("Section %s: %v", tt.section, err)
		}
		if len(got) != tt.want {
			t.Errorf("section %s: expected %d listings, got %d", tt.section, tt.want, len(got))
		}
	}

	if _, err := f.svc.Section(ctx, "popular"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestListingService_Nearby(t *testing.T) {
	f := newListingFixture(t, nil)
	ctx := context.Background()
	owner := f.user(t, "owner@example.com")

	at := func(lat, lng float64) *domain.Listing {
		form := listingForm("rent")
		form.Latitude, form.Longitude = lat, lng
		l, err := f.svc.Create(ctx, owner.ID, form, onePhoto(), nil)
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		return l
	}

	home := at(-8.65, 115.21)
	close1 := at(-8.66, 115.22) // ~1.5km
	at(-8.00, 115.00)           // ~70km

	nearby, err := f.svc.Nearby(ctx, home)
	if err != nil {
		t.Fatalf("Nearby: %v", err)
	}
	if len(nearby) != 1 || nearby[0].Listing.ID != close1.ID {
		t.Fatalf("expected only the close listing, got %+v", nearby)
	}
	if nearby[0].DistanceKm <= 0 || nearby[0].DistanceKm > service.NearbyRadiusKm {
		t.Fatalf("unexpected distance %v", nearby[0].DistanceKm)
	}
}

func TestListingService_ContactOwner(t *testing.T) {
	f := newListingFixture(t, nil)
	ctx := context.Background()
	owner := f.user(t, "owner@example.com")
	visitor := f.user(t, "visitor@example.com")

	listing, err := f.svc.Create(ctx, owner.ID, listingForm("rent"), onePhoto(), nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := f.svc.ContactOwner(ctx, visitor, listing.ID, validation.ContactForm{Message: "Is it available?"}); err != nil {
		t.Fatalf("ContactOwner: %v", err)
	}
	msgs := f.mailer.messages()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 email, got %d", len(msgs))
	}
	if msgs[0].ToEmail != "owner@example.com" || msgs[0].ReplyTo != "visitor@example.com" {
		t.Fatalf("unexpected message %+v", msgs[0])
	}

	if err := f.svc.ContactOwner(ctx, owner, listing.ID, validation.ContactForm{Message: "hi"}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("owner contacting self: expected ErrInvalidInput, got %v", err)
	}
	if err := f.svc.ContactOwner(ctx, visitor, listing.ID, validation.ContactForm{}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("empty message: expected ErrInvalidInput, got %v", err)
	}
}
