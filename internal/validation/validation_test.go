package validation_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/msomdec/realty/internal/domain"
	"github.com/msomdec/realty/internal/validation"
)

func fieldErrors(t *testing.T, err error) validation.FieldErrors {
	t.Helper()
	if err == nil {
		return nil
	}
	var fe validation.FieldErrors
	if !errors.As(err, &fe) {
		t.Fatalf("expected FieldErrors, got %T: %v", err, err)
	}
	return fe
}

func validListing() validation.ListingForm {
	return validation.ListingForm{
		Type:         "rent",
		Name:         "Cozy Apartment",
		Bedrooms:     2,
		Bathrooms:    1,
		Address:      "10 Main Street",
		Description:  "Near the park",
		RegularPrice: 1200,
		Images: []validation.ImageFile{
			{Filename: "front.jpg", ContentType: "image/jpeg", Size: 2048},
		},
	}
}

func TestListingForm_Valid(t *testing.T) {
	form := validListing()
	if err := validation.Validate(form); err != nil {
		t.Fatalf("expected valid listing, got %v", err)
	}
}

func TestListingForm_NameLength(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{"too short", "Flat", "Name must be at least 10 characters"},
		{"lower bound", "Tiny House", ""},
		{"upper bound", "Beautiful Villa", ""},
		{"too long", "An Enormous Beach Villa", "Name must not exceed 15 characters"},
		{"empty", "", "Name is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := validListing()
			form.Name = tt.input
			fe := fieldErrors(t, validation.Validate(form))
			if got := fe.Get("name"); got != tt.wantErr {
				t.Fatalf("expected name error %q, got %q", tt.wantErr, got)
			}
		})
	}
}

func TestListingForm_DiscountedPriceOnlyForOffers(t *testing.T) {
	form := validListing()
	form.Offer = false
	form.DiscountedPrice = 0
	if err := validation.Validate(form); err != nil {
		t.Fatalf("discounted price must not be required without an offer: %v", err)
	}

	form.Offer = true
	fe := fieldErrors(t, validation.Validate(form))
	if fe.Get("discountedPrice") != "Discounted Price must be a positive number" {
		t.Fatalf("expected discounted price to be required for offers, got %q", fe.Get("discountedPrice"))
	}

	form.DiscountedPrice = 1500
	fe = fieldErrors(t, validation.Validate(form))
	if fe.Get("discountedPrice") != "Discounted Price must be less than the regular price" {
		t.Fatalf("expected discounted price below regular price, got %q", fe.Get("discountedPrice"))
	}

	form.DiscountedPrice = 1000
	if err := validation.Validate(form); err != nil {
		t.Fatalf("expected valid offer, got %v", err)
	}
}

func TestListingForm_Type(t *testing.T) {
	form := validListing()
	form.Type = "lease"
	fe := fieldErrors(t, validation.Validate(form))
	if fe.Get("type") != "Type must be one of: rent, sale" {
		t.Fatalf("unexpected type error %q", fe.Get("type"))
	}
}

func TestListingForm_Numbers(t *testing.T) {
	form := validListing()
	form.Bedrooms = 0
	form.RegularPrice = -5
	fe := fieldErrors(t, validation.Validate(form))
	if fe.Get("bedrooms") != "Bed Rooms must be a positive number" {
		t.Fatalf("unexpected bedrooms error %q", fe.Get("bedrooms"))
	}
	if fe.Get("regularPrice") != "Regular Price must be a positive number" {
		t.Fatalf("unexpected price error %q", fe.Get("regularPrice"))
	}
	if fe.Get("bathrooms") != "" {
		t.Fatalf("bathrooms should be valid, got %q", fe.Get("bathrooms"))
	}
}

func TestListingForm_Images(t *testing.T) {
	form := validListing()
	form.Images = nil
	fe := fieldErrors(t, validation.Validate(form))
	if fe.Get("images") != "Images are required" {
		t.Fatalf("unexpected images error %q", fe.Get("images"))
	}

	form.KeepImages = true
	if err := validation.Validate(form); err != nil {
		t.Fatalf("editing without new images should be valid: %v", err)
	}

	form.Images = []validation.ImageFile{{Filename: "doc.pdf", ContentType: "application/pdf", Size: 10}}
	fe = fieldErrors(t, validation.Validate(form))
	if fe.Get("images") != "We only support jpeg, jpg, png and webp images" {
		t.Fatalf("unexpected images error %q", fe.Get("images"))
	}

	form.Images = []validation.ImageFile{{Filename: "big.png", ContentType: "image/png", Size: validation.MaxImageSize + 1}}
	fe = fieldErrors(t, validation.Validate(form))
	if fe.Get("images") != "File size is too large" {
		t.Fatalf("unexpected images error %q", fe.Get("images"))
	}

	form.Images = make([]validation.ImageFile, validation.MaxImages+1)
	for i := range form.Images {
		form.Images[i] = validation.ImageFile{Filename: "x.png", ContentType: "image/png", Size: 1}
	}
	fe = fieldErrors(t, validation.Validate(form))
	if !strings.HasPrefix(fe.Get("images"), "No more than 6") {
		t.Fatalf("unexpected images error %q", fe.Get("images"))
	}
}

func TestSignUpForm_PasswordConfirmation(t *testing.T) {
	base := validation.SignUpForm{
		Name:     "Jane",
		Email:    "jane@example.com",
		Password: "secret123",
		Terms:    true,
	}

	mismatch := base
	mismatch.ConfirmPassword = "secret456"
	fe := fieldErrors(t, validation.Validate(mismatch))
	if fe.Get("confirmPassword") != "Confirm Password does not match" {
		t.Fatalf("expected mismatch error, got %q", fe.Get("confirmPassword"))
	}

	match := base
	match.ConfirmPassword = "secret123"
	if err := validation.Validate(match); err != nil {
		t.Fatalf("expected matching passwords to pass, got %v", err)
	}

	if err := validation.Validate(base); err != nil {
		t.Fatalf("confirmation is only checked when present, got %v", err)
	}
}

func TestSignUpForm_Fields(t *testing.T) {
	form := validation.SignUpForm{Name: "Jo", Email: "not-an-email", Password: "123"}
	err := validation.Validate(form)
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	fe := fieldErrors(t, err)
	want := map[string]string{
		"name":     "Name must be at least 3 characters",
		"email":    "Email is invalid",
		"password": "Password must be at least 6 characters",
		"terms":    "You must accept Terms and Conditions",
	}
	for field, msg := range want {
		if fe.Get(field) != msg {
			t.Errorf("%s: expected %q, got %q", field, msg, fe.Get(field))
		}
	}
}

func TestSignInForm(t *testing.T) {
	if err := validation.Validate(validation.SignInForm{Email: "a@b.co", Password: "secret1"}); err != nil {
		t.Fatalf("expected valid sign-in, got %v", err)
	}
	fe := fieldErrors(t, validation.Validate(validation.SignInForm{}))
	if fe.Get("email") != "Email is required" || fe.Get("password") != "Password is required" {
		t.Fatalf("unexpected errors %v", fe)
	}
}

func TestForgotPasswordForm(t *testing.T) {
	fe := fieldErrors(t, validation.Validate(validation.ForgotPasswordForm{Email: strings.Repeat("a", 50) + "@example.com"}))
	if fe.Get("email") != "Email must not exceed 50 characters" {
		t.Fatalf("unexpected email error %q", fe.Get("email"))
	}
}

func TestResetPasswordForm(t *testing.T) {
	fe := fieldErrors(t, validation.Validate(validation.ResetPasswordForm{Password: "secret123", ConfirmPassword: "nope"}))
	if fe.Get("confirmPassword") != "Confirm Password does not match" {
		t.Fatalf("unexpected confirm error %q", fe.Get("confirmPassword"))
	}
	if err := validation.Validate(validation.ResetPasswordForm{Password: "secret123", ConfirmPassword: "secret123"}); err != nil {
		t.Fatalf("expected valid reset, got %v", err)
	}
}

func TestProfileForm(t *testing.T) {
	fe := fieldErrors(t, validation.Validate(validation.ProfileForm{Name: strings.Repeat("n", 16)}))
	if fe.Get("name") != "Name must not exceed 15 characters" {
		t.Fatalf("unexpected name error %q", fe.Get("name"))
	}
}

func TestFieldErrors_Error(t *testing.T) {
	fe := validation.FieldErrors{"b": "second", "a": "first"}
	if fe.Error() != "first; second" {
		t.Fatalf("unexpected error string %q", fe.Error())
	}
}
