package handler_test

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"testing"

	"github.com/msomdec/realty/internal/domain"
	"github.com/msomdec/realty/internal/service"
)

func listingFields(name, typ string) map[string]string {
	return map[string]string{
		"type":         typ,
		"name":         name,
		"bedrooms":     "3",
		"bathrooms":    "2",
		"parking":      "true",
		"furnished":    "false",
		"address":      "Jl. Raya Ubud 1",
		"description":  "Near the rice fields",
		"offer":        "false",
		"regularPrice": "2500",
	}
}

func postListing(t *testing.T, c *http.Client, target string, fields map[string]string, datastar bool, files ...string) *http.Response {
	t.Helper()
	body, contentType := multipartListing(t, fields, files...)
	req, err := http.NewRequest(http.MethodPost, target, body)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("Content-Type", contentType)
	if datastar {
		req.Header.Set("Datastar-Request", "true")
	}
	resp, err := c.Do(req)
	if err != nil {
		t.Fatalf("POST %s: %v", target, err)
	}
	return resp
}

func get(t *testing.T, c *http.Client, target string) (*http.Response, string) {
	t.Helper()
	resp, err := c.Get(target)
	if err != nil {
		t.Fatalf("GET %s: %v", target, err)
	}
	return resp, readBody(t, resp)
}

func TestListing_CreateViewDelete(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)
	owner := env.signUp(t, c, "Owner", "owner@example.com")

	resp, _ := get(t, c, env.srv.URL+"/create-listing")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create form: expected 200, got %d", resp.StatusCode)
	}

	resp = postListing(t, c, env.srv.URL+"/create-listing", listingFields("Villa Kenanga", "rent"), false, "front.png", "pool.png")
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("create: expected 303, got %d", resp.StatusCode)
	}
	loc := resp.Header.Get("Location")
	if !strings.HasPrefix(loc, "/category/rent/") {
		t.Fatalf("create: expected redirect to the listing, got %s", loc)
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(loc, "/category/rent/"), 10, 64)
	if err != nil {
		t.Fatalf("parse listing id from %s: %v", loc, err)
	}

	listing, err := env.listings.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if listing.UserID != owner.ID {
		t.Fatalf("expected owner %d, got %d", owner.ID, listing.UserID)
	}
	if len(listing.Images) != 2 || listing.Images[0].Filename != "front.png" || listing.Images[1].Filename != "pool.png" {
		t.Fatalf("expected images in selection order, got %+v", listing.Images)
	}

	resp, body := get(t, c, env.srv.URL+loc)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("show: expected 200, got %d", resp.StatusCode)
	}
	if !strings.Contains(body, "Villa Kenanga") || !strings.Contains(body, "/edit-listing/"+strconv.FormatInt(id, 10)) {
		t.Fatal("expected the owner to see the listing with its edit control")
	}

	resp, body = get(t, c, env.srv.URL+"/category/rent")
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, "Villa Kenanga") {
		t.Fatalf("rent category: expected the listing, got %d", resp.StatusCode)
	}
	_, body = get(t, c, env.srv.URL+"/category/sale")
	if strings.Contains(body, "Villa Kenanga") || !strings.Contains(body, "No listings found") {
		t.Fatal("sale category should be empty")
	}

	resp, img := get(t, c, env.srv.URL+listing.Images[0].URL)
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "image/png" || img == "" {
		t.Fatalf("file: expected png bytes, got %d %s", resp.StatusCode, resp.Header.Get("Content-Type"))
	}

	resp, body = get(t, c, env.srv.URL+"/listings/"+strconv.FormatInt(id, 10)+"/delete")
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, "Are you sure") {
		t.Fatalf("delete confirmation: expected 200, got %d", resp.StatusCode)
	}

	resp = postForm(t, c, env.srv.URL+"/listings/"+strconv.FormatInt(id, 10)+"/delete", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/profile" {
		t.Fatalf("delete: expected 303 to /profile, got %d %s", resp.StatusCode, resp.Header.Get("Location"))
	}

	_, body = get(t, c, env.srv.URL+"/profile")
	if strings.Contains(body, "Villa Kenanga") {
		t.Fatal("deleted listing still on the profile")
	}
	if !strings.Contains(body, "Successfully deleted the listing") {
		t.Fatal("expected the delete flash on the profile")
	}

	resp, _ = get(t, c, env.srv.URL+loc)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("deleted listing: expected 404, got %d", resp.StatusCode)
	}
	for _, img := range listing.Images {
		resp, _ = get(t, c, env.srv.URL+img.URL)
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("image of a deleted listing: expected 404, got %d", resp.StatusCode)
		}
	}
}

func TestListing_CreateAcceptsUppercaseContentType(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)
	env.signUp(t, c, "Owner", "owner@example.com")

	body, contentType := multipartListingAs(t, "image/PNG", listingFields("Upper Case Villa", "rent"), "front.png")
	req, err := http.NewRequest(http.MethodPost, env.srv.URL+"/create-listing", body)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("Content-Type", contentType)
	resp, err := c.Do(req)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", resp.StatusCode)
	}
}

func TestListing_CreateValidation(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)
	env.signUp(t, c, "Owner", "owner@example.com")

	fields := listingFields("Villa", "rent")
	fields["offer"] = "true"
	fields["discountedPrice"] = "3000"
	resp := postListing(t, c, env.srv.URL+"/create-listing", fields, false)
	body := readBody(t, resp)

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
	for _, want := range []string{
		"Name must be at least 10 characters",
		"Discounted Price must be less than the regular price",
		"Images are required",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in the re-rendered form", want)
		}
	}
	if !strings.Contains(body, "Jl. Raya Ubud 1") {
		t.Error("expected submitted values to be kept")
	}
}

func TestListing_CreateStreamsProgress(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)
	env.signUp(t, c, "Owner", "owner@example.com")

	resp := postListing(t, c, env.srv.URL+"/create-listing", listingFields("Sale Bungalow", "sale"), true, "a.png", "b.png")
	body := readBody(t, resp)

	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("expected an event stream, got %q", ct)
	}
	for _, want := range []string{`id="upload-0"`, `id="upload-1"`, "done", "/category/sale/"} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in the stream", want)
		}
	}
	// Queued rows arrive as one list that replaces any earlier rows.
	if n := strings.Count(body, `<ul id="upload-progress">`); n != 1 {
		t.Errorf("expected the progress list once, got %d", n)
	}
	if strings.Contains(body, "selector #upload-progress") {
		t.Error("progress rows must not be appended to earlier ones")
	}

	page, err := env.listings.Query(context.Background(), domain.ListingQuery{Type: domain.ListingTypeSale, Limit: 10})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(page.Listings) != 1 {
		t.Fatalf("expected 1 sale listing, got %d", len(page.Listings))
	}
}

func TestListing_CreateStreamsValidationErrors(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)
	env.signUp(t, c, "Owner", "owner@example.com")

	resp := postListing(t, c, env.srv.URL+"/create-listing", listingFields("Too short", "sale"), true, "a.png")
	body := readBody(t, resp)

	if !strings.Contains(body, `id="listing-form"`) || !strings.Contains(body, "Name must be at least 10 characters") {
		t.Fatal("expected the form to be patched with the field error")
	}
}

func TestListing_EditKeepsImages(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)
	owner := env.signUp(t, c, "Owner", "owner@example.com")
	l := env.createListing(t, owner.ID, "Ocean View 01", domain.ListingTypeRent)
	editURL := env.srv.URL + "/edit-listing/" + strconv.FormatInt(l.ID, 10)

	resp, body := get(t, c, editURL)
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, "Ocean View 01") {
		t.Fatalf("edit form: expected 200 with current values, got %d", resp.StatusCode)
	}

	fields := listingFields("Ocean View 02", "sale")
	fields["latitude"] = "-8.5"
	fields["longitude"] = "115.2"
	resp = postListing(t, c, editURL, fields, false)
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("update: expected 303, got %d", resp.StatusCode)
	}

	updated, err := env.listings.GetByID(context.Background(), l.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if updated.Name != "Ocean View 02" || updated.Type != domain.ListingTypeSale {
		t.Fatalf("expected updated fields, got %q %q", updated.Name, updated.Type)
	}
	if len(updated.Images) != 1 || updated.Images[0].StorageKey != l.Images[0].StorageKey {
		t.Fatalf("expected the existing image to be kept, got %+v", updated.Images)
	}
	if updated.Latitude != -8.5 || updated.Longitude != 115.2 {
		t.Fatalf("expected entered coordinates, got %f,%f", updated.Latitude, updated.Longitude)
	}
}

func TestListing_OtherUsersCannotMutate(t *testing.T) {
	env := newTestEnv(t)
	owner := env.signUp(t, nil, "Owner", "owner@example.com")
	l := env.createListing(t, owner.ID, "Private Villa", domain.ListingTypeRent)
	id := strconv.FormatInt(l.ID, 10)

	c := env.client(t)
	env.signUp(t, c, "Intruder", "intruder@example.com")

	_, body := get(t, c, env.srv.URL+"/category/rent/"+id)
	if strings.Contains(body, "/edit-listing/"+id) {
		t.Fatal("non-owner should not see the edit control")
	}

	resp, _ := get(t, c, env.srv.URL+"/edit-listing/"+id)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("edit form: expected 404, got %d", resp.StatusCode)
	}

	resp = postListing(t, c, env.srv.URL+"/edit-listing/"+id, listingFields("Hijacked Villa", "rent"), false)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("update: expected 404, got %d", resp.StatusCode)
	}

	resp = postForm(t, c, env.srv.URL+"/listings/"+id+"/delete", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("delete: expected 404, got %d", resp.StatusCode)
	}

	if _, err := env.listings.GetByID(context.Background(), l.ID); err != nil {
		t.Fatalf("listing should survive: %v", err)
	}
}

func TestListing_AnonymousMutationsRedirect(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)

	resp, _ := get(t, c, env.srv.URL+"/create-listing")
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != "/sign-in?next=%2Fcreate-listing" {
		t.Fatalf("expected redirect to sign in, got %s", loc)
	}
}

func TestListing_UnknownCategoryAndID(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)

	for _, path := range []string{"/category/lease", "/category/rent/999", "/category/rent/abc"} {
		resp, _ := get(t, c, env.srv.URL+path)
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("%s: expected 404, got %d", path, resp.StatusCode)
		}
	}
}

var afterParam = regexp.MustCompile(`/category/rent/more\?after=([A-Za-z0-9_-]+)`)

func TestListing_CategoryLoadMore(t *testing.T) {
	env := newTestEnv(t)
	owner := env.signUp(t, nil, "Owner", "owner@example.com")
	for i := range 16 {
		env.createListing(t, owner.ID, fmt.Sprintf("Rent Home %02d", i), domain.ListingTypeRent)
	}
	c := env.client(t)

	_, body := get(t, c, env.srv.URL+"/category/rent")
	if strings.Contains(body, "Rent Home 00") {
		t.Fatal("the oldest listing belongs on the second page")
	}
	if !strings.Contains(body, "Rent Home 15") {
		t.Fatal("expected the newest listing on the first page")
	}
	m := afterParam.FindStringSubmatch(body)
	if m == nil {
		t.Fatal("expected a load more control")
	}

	resp, body := get(t, c, env.srv.URL+"/category/rent/more?after="+m[1])
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("expected an event stream, got %q", ct)
	}
	if !strings.Contains(body, "Rent Home 00") {
		t.Fatal("expected the oldest listing in the next page")
	}
	if strings.Contains(body, "Rent Home 15") {
		t.Fatal("pages must not overlap")
	}
	if afterParam.MatchString(body) {
		t.Fatal("expected the load more control to be removed on the last page")
	}

	resp, _ = get(t, c, env.srv.URL+"/category/rent/more?after=%25%25")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("malformed cursor: expected 400, got %d", resp.StatusCode)
	}
}

func TestListing_Offers(t *testing.T) {
	env := newTestEnv(t)
	owner := env.signUp(t, nil, "Owner", "owner@example.com")
	env.createListing(t, owner.ID, "Full Price 001", domain.ListingTypeRent)

	form := validListingForm("Discounted 001", domain.ListingTypeSale)
	form.Offer = true
	form.DiscountedPrice = 1000
	if _, err := env.listings.Create(context.Background(), owner.ID, form, []service.UploadFile{pngFile("x.png")}, nil); err != nil {
		t.Fatalf("Create offer: %v", err)
	}

	_, body := get(t, env.client(t), env.srv.URL+"/offers")
	if !strings.Contains(body, "Discounted 001") || strings.Contains(body, "Full Price 001") {
		t.Fatal("offers page should only list discounted listings")
	}
}

func TestListing_ContactOwner(t *testing.T) {
	env := newTestEnv(t)
	owner := env.signUp(t, nil, "Owner", "owner@example.com")
	l := env.createListing(t, owner.ID, "Garden Villa 1", domain.ListingTypeRent)
	id := strconv.FormatInt(l.ID, 10)

	anon := env.client(t)
	_, body := get(t, anon, env.srv.URL+"/category/rent/"+id)
	if !strings.Contains(body, "to contact the owner") {
		t.Fatal("anonymous visitors should be asked to sign in")
	}

	c := env.client(t)
	env.signUp(t, c, "Renter", "renter@example.com")

	_, body = get(t, c, env.srv.URL+"/category/rent/"+id+"?contact=1")
	if !strings.Contains(body, "Contact Owner for Garden Villa 1") {
		t.Fatal("expected the contact form")
	}

	resp := postForm(t, c, env.srv.URL+"/listings/"+id+"/contact", map[string]string{"message": ""})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("empty message: expected 422, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = postForm(t, c, env.srv.URL+"/listings/"+id+"/contact", map[string]string{"message": "Is it still available?"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("contact: expected 303, got %d", resp.StatusCode)
	}

	sent := env.mailer.messages()
	if len(sent) != 1 {
		t.Fatalf("expected 1 email, got %d", len(sent))
	}
	if sent[0].ToEmail != "owner@example.com" || sent[0].ReplyTo != "renter@example.com" {
		t.Fatalf("unexpected email routing: %+v", sent[0])
	}
}
