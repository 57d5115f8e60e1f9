package view

import (
	"net/url"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/msomdec/realty/internal/domain"
	"github.com/msomdec/realty/internal/service"
)

func price(n int) string {
	return "$" + humanize.Comma(int64(n))
}

// listingPrice is the price a visitor pays, per month for rentals.
func listingPrice(l *domain.Listing) string {
	p := price(l.Price())
	if l.Type == domain.ListingTypeRent {
		p += " / Month"
	}
	return p
}

func discountLabel(l *domain.Listing) string {
	if !l.Offer {
		return "No discount"
	}
	return price(l.Discount()) + " discount"
}

func plural(n int, one, many string) string {
	if n == 1 {
		return "1 " + one
	}
	return strconv.Itoa(n) + " " + many
}

func idString(id int64) string {
	return strconv.FormatInt(id, 10)
}

func listingURL(l *domain.Listing) string {
	return "/category/" + string(l.Type) + "/" + idString(l.ID)
}

func editURL(l *domain.Listing) string {
	return "/edit-listing/" + idString(l.ID)
}

func deleteURL(l *domain.Listing) string {
	return "/listings/" + idString(l.ID) + "/delete"
}

func contactURL(l *domain.Listing) string {
	return "/listings/" + idString(l.ID) + "/contact"
}

func signInURL(next string) string {
	if next == "" {
		return "/sign-in"
	}
	return "/sign-in?next=" + url.QueryEscape(next)
}

func googleURL(next string) string {
	if next == "" {
		return "/auth/google"
	}
	return "/auth/google?next=" + url.QueryEscape(next)
}

func coord(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

func mapURL(lat, lng float64) string {
	return "https://www.openstreetmap.org/?mlat=" + coord(lat) + "&mlon=" + coord(lng) + "#map=14/" + coord(lat) + "/" + coord(lng)
}

func distance(km float64) string {
	return strconv.FormatFloat(km, 'f', 1, 64) + " km away"
}

func intValue(n int) string {
	if n == 0 {
		return ""
	}
	return strconv.Itoa(n)
}

func floatValue(v float64) string {
	if v == 0 {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func yesNo(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func progressID(index int) string {
	return "upload-" + strconv.Itoa(index)
}

func progressPercent(p service.UploadProgress) string {
	if p.TotalBytes <= 0 {
		return "0"
	}
	return strconv.FormatInt(p.BytesTransferred*100/p.TotalBytes, 10)
}

func photoAlt(name string, i int) string {
	return name + " photo " + strconv.Itoa(i+1)
}

// datastarGet is a datastar expression fetching url over SSE.
func datastarGet(url string) string {
	return "@get('" + url + "')"
}

func datastarPost(url string) string {
	return "@post('" + url + "', {contentType: 'form'})"
}
