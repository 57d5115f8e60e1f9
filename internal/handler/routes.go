package handler

import (
	"net/http"

	"github.com/msomdec/realty/internal/domain"
	"github.com/msomdec/realty/internal/service"
	"github.com/rs/cors"
)

// Deps are the services the routes are served from. Google and Limiter are
// optional.
type Deps struct {
	Auth           *service.AuthService
	Listings       *service.ListingService
	Files          domain.FileStore
	DB             Pinger
	Google         *service.OAuthProvider
	Limiter        *service.RateLimiter
	Cookies        Cookies
	AllowedOrigins []string
}

// RegisterRoutes sets up all HTTP routes on the given mux.
func RegisterRoutes(mux *http.ServeMux, d Deps) {
	home := NewHomeHandler(d.Listings, d.Cookies)
	listings := NewListingHandler(d.Listings, d.Cookies)
	profile := NewProfileHandler(d.Auth, d.Listings, d.Cookies)
	auth := NewAuthHandler(d.Auth, d.Cookies, d.Google != nil)

	optional := func(h http.HandlerFunc) http.Handler { return OptionalAuth(d.Auth, h) }
	required := func(h http.HandlerFunc) http.Handler { return RequireAuth(d.Auth, h) }
	limited := func(scope string, h http.Handler) http.Handler {
		if d.Limiter == nil {
			return h
		}
		return RateLimit(d.Limiter, scope, h)
	}

	mux.HandleFunc("GET /healthz", HandleHealthz(d.DB))
	mux.HandleFunc("GET /files/{key}", HandleFile(d.Files))

	// Browsing
	mux.Handle("GET /{$}", optional(home.HandleHome))
	mux.Handle("GET /home/sections/{section}", optional(home.HandleSection))
	mux.Handle("GET /category/{type}", optional(listings.HandleCategory))
	mux.Handle("GET /category/{type}/more", optional(listings.HandleCategoryMore))
	mux.Handle("GET /category/{type}/{id}", optional(listings.HandleShow))
	mux.Handle("GET /offers", optional(listings.HandleOffers))
	mux.Handle("GET /offers/more", optional(listings.HandleOffersMore))
	mux.Handle("POST /listings/{id}/contact", limited("contact", required(listings.HandleContact)))

	// Listing management
	mux.Handle("GET /create-listing", required(listings.HandleNew))
	mux.Handle("POST /create-listing", required(listings.HandleCreate))
	mux.Handle("GET /edit-listing/{id}", required(listings.HandleEdit))
	mux.Handle("POST /edit-listing/{id}", required(listings.HandleUpdate))
	mux.Handle("GET /listings/{id}/delete", required(listings.HandleDeletePage))
	mux.Handle("POST /listings/{id}/delete", required(listings.HandleDelete))

	// Profile
	mux.Handle("GET /profile", required(profile.HandleProfile))
	mux.Handle("POST /profile", required(profile.HandleUpdate))
	mux.Handle("GET /profile/more", required(profile.HandleMore))

	// Identity
	mux.Handle("GET /sign-in", optional(auth.HandleSignInPage))
	mux.Handle("POST /sign-in", limited("sign-in", optional(auth.HandleSignIn)))
	mux.Handle("GET /sign-up", optional(auth.HandleSignUpPage))
	mux.Handle("POST /sign-up", limited("sign-up", optional(auth.HandleSignUp)))
	mux.HandleFunc("POST /sign-out", auth.HandleSignOut)
	mux.Handle("GET /forgot-password", optional(auth.HandleForgotPasswordPage))
	mux.Handle("POST /forgot-password", limited("forgot-password", optional(auth.HandleForgotPassword)))
	mux.Handle("GET /reset-password/{token}", optional(auth.HandleResetPasswordPage))
	mux.Handle("POST /reset-password/{token}", limited("reset-password", optional(auth.HandleResetPassword)))
	if d.Google != nil {
		oauth := NewOAuthHandler(d.Google, d.Auth, d.Cookies)
		mux.HandleFunc("GET /auth/google", oauth.HandleStart)
		mux.HandleFunc("GET /auth/google/callback", oauth.HandleCallback)
	}

	// JSON API
	api := http.NewServeMux()
	api.Handle("POST /api/auth/login", limited("api-login", http.HandlerFunc(auth.HandleLogin)))
	api.Handle("POST /api/auth/register", limited("api-register", http.HandlerFunc(auth.HandleRegister)))
	api.HandleFunc("POST /api/auth/logout", auth.HandleLogout)
	api.Handle("GET /api/auth/me", required(auth.HandleMe))
	api.HandleFunc("GET /api/listings", listings.HandleAPIList)
	api.HandleFunc("GET /api/listings/{id}", listings.HandleAPIGet)
	api.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not found.")
	})
	mux.Handle("/api/", cors.New(cors.Options{
		AllowedOrigins:   d.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: true,
	}).Handler(api))

	mux.Handle("/", optional(func(w http.ResponseWriter, r *http.Request) {
		d.Cookies.notFound(w, r)
	}))
}
