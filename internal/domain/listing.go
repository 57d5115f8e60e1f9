package domain

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"
)

type ListingType string

const (
	ListingTypeRent ListingType = "rent"
	ListingTypeSale ListingType = "sale"
)

// Valid reports whether t is one of the known listing types.
func (t ListingType) Valid() bool {
	return t == ListingTypeRent || t == ListingTypeSale
}

// Listing is a property offered for rent or sale.
type Listing struct {
	ID              int64
	UserID          int64 // Owner reference
	Name            string
	Type            ListingType
	Address         string
	Description     string
	Bedrooms        int
	Bathrooms       int
	RegularPrice    int
	DiscountedPrice int // Only meaningful when Offer is set
	Offer           bool
	Parking         bool
	Furnished       bool
	Images          []ListingImage // Selection order
	Latitude        float64
	Longitude       float64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ImageURLs returns the download URLs of the listing's images in order.
func (l *Listing) ImageURLs() []string {
	urls := make([]string, len(l.Images))
	for i, img := range l.Images {
		urls[i] = img.URL
	}
	return urls
}

// Discount returns the amount taken off the regular price, or 0 when the
// listing is not an offer.
func (l *Listing) Discount() int {
	if !l.Offer {
		return 0
	}
	return l.RegularPrice - l.DiscountedPrice
}

// Price is the price a visitor pays: the discounted price for offers.
func (l *Listing) Price() int {
	if l.Offer {
		return l.DiscountedPrice
	}
	return l.RegularPrice
}

// OwnedBy reports whether the listing belongs to the given user.
func (l *Listing) OwnedBy(userID int64) bool {
	return userID != 0 && l.UserID == userID
}

// Cursor marks the last listing seen by a paginated query.
type Cursor struct {
	CreatedAt time.Time
	ID        int64
}

// Encode returns an opaque URL-safe form of the cursor.
func (c Cursor) Encode() string {
	raw := strconv.FormatInt(c.CreatedAt.UnixNano(), 10) + ":" + strconv.FormatInt(c.ID, 10)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses a token produced by Cursor.Encode.
func DecodeCursor(token string) (*Cursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed cursor", ErrInvalidInput)
	}
	nanos, id, ok := strings.Cut(string(raw), ":")
	if !ok {
		return nil, fmt.Errorf("%w: malformed cursor", ErrInvalidInput)
	}
	n, err := strconv.ParseInt(nanos, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed cursor", ErrInvalidInput)
	}
	i, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed cursor", ErrInvalidInput)
	}
	return &Cursor{CreatedAt: time.Unix(0, n).UTC(), ID: i}, nil
}

// ListingQuery filters, orders (newest first) and limits listings.
// Zero-valued filters are not applied.
type ListingQuery struct {
	Type      ListingType
	OfferOnly bool
	UserID    int64
	Limit     int
	After     *Cursor
}

// ListingPage is one page of query results. Next is nil when there are no
// further results.
type ListingPage struct {
	Listings []Listing
	Next     *Cursor
}

// ListingRepository handles listing persistence.
type ListingRepository interface {
	Create(ctx context.Context, listing *Listing) error
	GetByID(ctx context.Context, id int64) (*Listing, error)
	Update(ctx context.Context, listing *Listing) error
	Delete(ctx context.Context, id int64) error
	// Query returns one page of listings matching q, newest first.
	Query(ctx context.Context, q ListingQuery) (*ListingPage, error)
}
