package sqlite_test

import (
	"context"
	"errors"
	"testing"

	"github.com/msomdec/realty/internal/domain"
	"github.com/msomdec/realty/internal/repository/sqlite"
)

func createTestUser(t *testing.T, db *sqlite.DB, email string) *domain.User {
	t.Helper()
	user := &domain.User{Email: email, DisplayName: "Owner", PasswordHash: "hash"}
	if err := db.Users().Create(context.Background(), user); err != nil {
		t.Fatalf("Create user: %v", err)
	}
	return user
}

func createTestListing(t *testing.T, repo domain.ListingRepository, userID int64, name string, typ domain.ListingType, offer bool) *domain.Listing {
	t.Helper()
	l := &domain.Listing{
		UserID:       userID,
		Name:         name,
		Type:         typ,
		Address:      "1 Test Street",
		Bedrooms:     2,
		Bathrooms:    1,
		RegularPrice: 1000,
		Offer:        offer,
	}
	if offer {
		l.DiscountedPrice = 900
	}
	if err := repo.Create(context.Background(), l); err != nil {
		t.Fatalf("Create listing: %v", err)
	}
	return l
}

func TestListingRepository_CreateAndGet(t *testing.T) {
	db := newTestDB(t)
	repo := db.Listings()
	ctx := context.Background()
	user := createTestUser(t, db, "owner@example.com")

	l := &domain.Listing{
		UserID:          user.ID,
		Name:            "Sunny Villa",
		Type:            domain.ListingTypeSale,
		Address:         "42 Beach Road",
		Description:     "Close to the sea",
		Bedrooms:        3,
		Bathrooms:       2,
		RegularPrice:    250000,
		DiscountedPrice: 240000,
		Offer:           true,
		Parking:         true,
		Furnished:       false,
		Latitude:        -8.34,
		Longitude:       115.09,
		Images: []domain.ListingImage{
			{StorageKey: "k1", URL: "/files/k1", Filename: "a.png", ContentType: "image/png", Size: 10},
			{StorageKey: "k2", URL: "/files/k2", Filename: "b.png", ContentType: "image/png", Size: 20},
		},
	}
	if err := repo.Create(ctx, l); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if l.ID == 0 {
		t.Fatal("expected listing ID to be set after create")
	}
	if l.CreatedAt.IsZero() {
		t.Fatal("expected CreatedAt to be set")
	}

	got, err := repo.GetByID(ctx, l.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Name != "Sunny Villa" || got.Type != domain.ListingTypeSale {
		t.Fatalf("unexpected listing: %+v", got)
	}
	if !got.Offer || !got.Parking || got.Furnished {
		t.Fatalf("unexpected flags: offer=%v parking=%v furnished=%v", got.Offer, got.Parking, got.Furnished)
	}
	if got.Latitude != -8.34 || got.Longitude != 115.09 {
		t.Fatalf("unexpected geolocation: %v,%v", got.Latitude, got.Longitude)
	}
	urls := got.ImageURLs()
	if len(urls) != 2 || urls[0] != "/files/k1" || urls[1] != "/files/k2" {
		t.Fatalf("expected ordered image URLs, got %v", urls)
	}
	if !got.CreatedAt.Equal(l.CreatedAt) {
		t.Fatalf("expected CreatedAt %v, got %v", l.CreatedAt, got.CreatedAt)
	}
}

func TestListingRepository_GetByID_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.Listings().GetByID(context.Background(), 99999)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListingRepository_Update_ReplacesImages(t *testing.T) {
	db := newTestDB(t)
	repo := db.Listings()
	ctx := context.Background()
	user := createTestUser(t, db, "owner@example.com")

	l := createTestListing(t, repo, user.ID, "Old Name Here", domain.ListingTypeRent, false)
	l.Name = "New Name Here"
	l.Images = []domain.ListingImage{{StorageKey: "n1", URL: "/files/n1"}}
	if err := repo.Update(ctx, l); err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, err := repo.GetByID(ctx, l.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Name != "New Name Here" {
		t.Fatalf("expected updated name, got %q", got.Name)
	}
	if len(got.Images) != 1 || got.Images[0].StorageKey != "n1" {
		t.Fatalf("expected replaced images, got %+v", got.Images)
	}
	if got.UserID != user.ID {
		t.Fatal("owner must not change on update")
	}
}

func TestListingRepository_Query_ByTypeNeverMixes(t *testing.T) {
	db := newTestDB(t)
	repo := db.Listings()
	ctx := context.Background()
	user := createTestUser(t, db, "owner@example.com")

	for i := 0; i < 3; i++ {
		createTestListing(t, repo, user.ID, "Rental Home", domain.ListingTypeRent, false)
		createTestListing(t, repo, user.ID, "Sale Home", domain.ListingTypeSale, false)
	}

	page, err := repo.Query(ctx, domain.ListingQuery{Type: domain.ListingTypeRent, Limit: 10})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(page.Listings) != 3 {
		t.Fatalf("expected 3 rent listings, got %d", len(page.Listings))
	}
	for _, l := range page.Listings {
		if l.Type != domain.ListingTypeRent {
			t.Fatalf("rent query returned %s listing %d", l.Type, l.ID)
		}
	}
	if page.Next != nil {
		t.Fatal("expected no next cursor when all results fit")
	}
}

func TestListingRepository_Query_OfferOnly(t *testing.T) {
	db := newTestDB(t)
	repo := db.Listings()
	ctx := context.Background()
	user := createTestUser(t, db, "owner@example.com")

	createTestListing(t, repo, user.ID, "Plain Home", domain.ListingTypeRent, false)
	offer := createTestListing(t, repo, user.ID, "Offer Home", domain.ListingTypeSale, true)

	page, err := repo.Query(ctx, domain.ListingQuery{OfferOnly: true, Limit: 10})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(page.Listings) != 1 || page.Listings[0].ID != offer.ID {
		t.Fatalf("expected only the offer listing, got %+v", page.Listings)
	}
}

func TestListingRepository_Query_NewestFirstWithCursor(t *testing.T) {
	db := newTestDB(t)
	repo := db.Listings()
	ctx := context.Background()
	user := createTestUser(t, db, "owner@example.com")

	var created []*domain.Listing
	for i := 0; i < 5; i++ {
		created = append(created, createTestListing(t, repo, user.ID, "Paged Home", domain.ListingTypeRent, false))
	}

	first, err := repo.Query(ctx, domain.ListingQuery{Type: domain.ListingTypeRent, Limit: 2})
	if err != nil {
		t.Fatalf("Query page 1: %v", err)
	}
	if len(first.Listings) != 2 || first.Next == nil {
		t.Fatalf("expected 2 listings and a cursor, got %d and %v", len(first.Listings), first.Next)
	}
	if first.Listings[0].ID != created[4].ID || first.Listings[1].ID != created[3].ID {
		t.Fatalf("expected newest first, got ids %d,%d", first.Listings[0].ID, first.Listings[1].ID)
	}

	seen := map[int64]bool{}
	for _, l := range first.Listings {
		seen[l.ID] = true
	}

	cursor := first.Next
	for cursor != nil {
		page, err := repo.Query(ctx, domain.ListingQuery{Type: domain.ListingTypeRent, Limit: 2, After: cursor})
		if err != nil {
			t.Fatalf("Query next page: %v", err)
		}
		for _, l := range page.Listings {
			if seen[l.ID] {
				t.Fatalf("listing %d returned twice across pages", l.ID)
			}
			seen[l.ID] = true
		}
		cursor = page.Next
	}
	if len(seen) != 5 {
		t.Fatalf("expected to page through 5 listings, saw %d", len(seen))
	}
}

func TestListingRepository_Delete_LeavesOtherOwners(t *testing.T) {
	db := newTestDB(t)
	repo := db.Listings()
	ctx := context.Background()
	alice := createTestUser(t, db, "alice@example.com")
	bob := createTestUser(t, db, "bob@example.com")

	aliceListing := createTestListing(t, repo, alice.ID, "Alice's Home", domain.ListingTypeRent, false)
	bobListing := createTestListing(t, repo, bob.ID, "Bob's Home X", domain.ListingTypeRent, false)

	if err := repo.Delete(ctx, aliceListing.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	page, err := repo.Query(ctx, domain.ListingQuery{UserID: alice.ID})
	if err != nil {
		t.Fatalf("Query alice: %v", err)
	}
	if len(page.Listings) != 0 {
		t.Fatalf("expected alice to have no listings, got %d", len(page.Listings))
	}

	page, err = repo.Query(ctx, domain.ListingQuery{UserID: bob.ID})
	if err != nil {
		t.Fatalf("Query bob: %v", err)
	}
	if len(page.Listings) != 1 || page.Listings[0].ID != bobListing.ID {
		t.Fatalf("expected bob's listing untouched, got %+v", page.Listings)
	}

	if err := repo.Delete(ctx, aliceListing.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound deleting twice, got %v", err)
	}
}
