package validation

import (
	"github.com/go-playground/validator/v10"
)

// Listing schema limits.
const (
	MaxImages    = 6
	MaxImageSize = 10 << 20 // 10MB
)

// SignUpForm creates an email/password account.
type SignUpForm struct {
	Name            string `form:"name" label:"Name" validate:"required,min=3,max=15"`
	Email           string `form:"email" label:"Email" validate:"required,max=50,email"`
	Password        string `form:"password" label:"Password" validate:"required,min=6,max=20"`
	ConfirmPassword string `form:"confirmPassword" label:"Confirm Password" validate:"omitempty,min=6,max=20"`
	Terms           bool   `form:"terms" label:"Terms and Conditions" validate:"required"`
}

// The confirmation is optional; it only has to match when it is given.
func signUpStructLevel(sl validator.StructLevel) {
	f := sl.Current().Interface().(SignUpForm)
	if f.Password != "" && f.ConfirmPassword != "" && f.Password != f.ConfirmPassword {
		sl.ReportError(f.ConfirmPassword, "confirmPassword", "ConfirmPassword", "eqfield", "Password")
	}
}

type SignInForm struct {
	Email    string `form:"email" label:"Email" validate:"required,max=50,email"`
	Password string `form:"password" label:"Password" validate:"required,min=6,max=20"`
}

type ForgotPasswordForm struct {
	Email string `form:"email" label:"Email" validate:"required,max=50,email"`
}

type ResetPasswordForm struct {
	Password        string `form:"password" label:"Password" validate:"required,min=6,max=20"`
	ConfirmPassword string `form:"confirmPassword" label:"Confirm Password" validate:"required"`
}

func resetPasswordStructLevel(sl validator.StructLevel) {
	f := sl.Current().Interface().(ResetPasswordForm)
	if f.ConfirmPassword != "" && f.Password != f.ConfirmPassword {
		sl.ReportError(f.ConfirmPassword, "confirmPassword", "ConfirmPassword", "eqfield", "Password")
	}
}

// ProfileForm edits the signed-in user's display name.
type ProfileForm struct {
	Name string `form:"name" label:"Name" validate:"required,min=3,max=15"`
}

// ContactForm is a message from a visitor to a listing's owner.
type ContactForm struct {
	Message string `form:"message" label:"Message" validate:"required,max=1000"`
}

// ImageFile describes one selected image before it is uploaded.
type ImageFile struct {
	Filename    string `form:"filename" label:"Image name" validate:"required"`
	ContentType string `form:"contentType" label:"Image type" validate:"oneof=image/jpeg image/jpg image/png image/webp" message:"We only support jpeg, jpg, png and webp images"`
	Size        int64  `form:"size" label:"Image size" validate:"gt=0,max=10485760" message:"File size is too large"`
}

// ListingForm is the create/edit listing schema.
type ListingForm struct {
	Type            string      `form:"type" label:"Type" validate:"required,oneof=rent sale"`
	Name            string      `form:"name" label:"Name" validate:"required,min=10,max=15"`
	Bedrooms        int         `form:"bedrooms" label:"Bed Rooms" validate:"gt=0"`
	Bathrooms       int         `form:"bathrooms" label:"Bath Rooms" validate:"gt=0"`
	Parking         bool        `form:"parking"`
	Furnished       bool        `form:"furnished"`
	Address         string      `form:"address" label:"Address" validate:"required,max=100"`
	Description     string      `form:"description" label:"Description" validate:"max=100"`
	Offer           bool        `form:"offer"`
	RegularPrice    int         `form:"regularPrice" label:"Regular Price" validate:"gt=0"`
	DiscountedPrice int         `form:"discountedPrice" label:"Discounted Price"`
	Latitude        float64     `form:"latitude" label:"Latitude" validate:"gte=-90,lte=90"`
	Longitude       float64     `form:"longitude" label:"Longitude" validate:"gte=-180,lte=180"`
	Images          []ImageFile `form:"images" label:"Images" validate:"max=6,dive"`

	// KeepImages allows an empty Images selection; editing keeps the
	// listing's current images when no new ones are chosen.
	KeepImages bool `form:"-"`
}

// The discounted price only exists for offers, where it must be positive
// and below the regular price.
func listingStructLevel(sl validator.StructLevel) {
	f := sl.Current().Interface().(ListingForm)
	if f.Offer {
		switch {
		case f.DiscountedPrice <= 0:
			sl.ReportError(f.DiscountedPrice, "discountedPrice", "DiscountedPrice", "gt", "0")
		case f.DiscountedPrice >= f.RegularPrice:
			sl.ReportError(f.DiscountedPrice, "discountedPrice", "DiscountedPrice", "ltfield", "RegularPrice")
		}
	}
	if !f.KeepImages && len(f.Images) == 0 {
		sl.ReportError(f.Images, "images", "Images", "required", "")
	}
}
