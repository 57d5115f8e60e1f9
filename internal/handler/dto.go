package handler

import (
	"time"

	"github.com/msomdec/realty/internal/domain"
)

// UserDTO is the JSON representation of a user.
type UserDTO struct {
	ID          int64  `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	Provider    string `json:"provider,omitempty"`
	CreatedAt   string `json:"createdAt"`
}

func toUserDTO(u *domain.User) UserDTO {
	return UserDTO{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Provider:    u.Provider,
		CreatedAt:   u.CreatedAt.Format(time.RFC3339),
	}
}

// ListingDTO is the JSON representation of a listing. The discounted price is
// only present for offers.
type ListingDTO struct {
	ID              int64    `json:"id"`
	UserRef         int64    `json:"userRef"`
	Name            string   `json:"name"`
	Type            string   `json:"type"`
	Address         string   `json:"address"`
	Description     string   `json:"description"`
	Bedrooms        int      `json:"bedrooms"`
	Bathrooms       int      `json:"bathrooms"`
	Parking         bool     `json:"parking"`
	Furnished       bool     `json:"furnished"`
	Offer           bool     `json:"offer"`
	RegularPrice    int      `json:"regularPrice"`
	DiscountedPrice *int     `json:"discountedPrice,omitempty"`
	ImgURLs         []string `json:"imgUrls"`
	Geolocation     struct {
		Lat float64 `json:"lat"`
		Lng float64 `json:"lng"`
	} `json:"geolocation"`
	Timestamp string `json:"timestamp"`
}

func toListingDTO(l *domain.Listing) ListingDTO {
	dto := ListingDTO{
		ID:           l.ID,
		UserRef:      l.UserID,
		Name:         l.Name,
		Type:         string(l.Type),
		Address:      l.Address,
		Description:  l.Description,
		Bedrooms:     l.Bedrooms,
		Bathrooms:    l.Bathrooms,
		Parking:      l.Parking,
		Furnished:    l.Furnished,
		Offer:        l.Offer,
		RegularPrice: l.RegularPrice,
		ImgURLs:      l.ImageURLs(),
		Timestamp:    l.CreatedAt.Format(time.RFC3339Nano),
	}
	if l.Offer {
		discounted := l.DiscountedPrice
		dto.DiscountedPrice = &discounted
	}
	dto.Geolocation.Lat, dto.Geolocation.Lng = l.Latitude, l.Longitude
	return dto
}

// ListingPageDTO is one page of listings. Next is the cursor for the
// following page, empty on the last one.
type ListingPageDTO struct {
	Listings []ListingDTO `json:"listings"`
	Next     string       `json:"next,omitempty"`
}

func toListingPageDTO(p *domain.ListingPage) ListingPageDTO {
	dto := ListingPageDTO{Listings: make([]ListingDTO, len(p.Listings))}
	for i := range p.Listings {
		dto.Listings[i] = toListingDTO(&p.Listings[i])
	}
	if p.Next != nil {
		dto.Next = p.Next.Encode()
	}
	return dto
}
