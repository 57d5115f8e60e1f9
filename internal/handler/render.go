package handler

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/a-h/templ"
	"github.com/msomdec/realty/internal/view"
)

const (
	authCookie  = "auth_token"
	flashCookie = "flash"
)

// Cookies holds cookie settings shared by handlers.
type Cookies struct {
	Secure bool
}

func (c Cookies) setAuth(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     authCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   86400, // 24 hours
	})
}

func (c Cookies) clearAuth(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     authCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

// setFlash stores a notice for the next page render.
func (c Cookies) setFlash(w http.ResponseWriter, msg string) {
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    url.QueryEscape(msg),
		Path:     "/",
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   60,
	})
}

// chrome builds the page chrome for r and consumes any pending flash.
func (c Cookies) chrome(w http.ResponseWriter, r *http.Request) view.Chrome {
	ch := view.Chrome{User: UserFromContext(r.Context()), Active: r.URL.Path}
	if ck, err := r.Cookie(flashCookie); err == nil {
		if msg, err := url.QueryUnescape(ck.Value); err == nil {
			ch.Flash = msg
		}
		http.SetCookie(w, &http.Cookie{Name: flashCookie, Path: "/", MaxAge: -1})
	}
	return ch
}

// render writes a full page with the given status.
func render(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := c.Render(r.Context(), w); err != nil {
		slog.Error("render page", "path", r.URL.Path, "error", err)
	}
}

func (c Cookies) notFound(w http.ResponseWriter, r *http.Request) {
	render(w, r, http.StatusNotFound, view.NotFoundPage(c.chrome(w, r)))
}

func (c Cookies) serverError(w http.ResponseWriter, r *http.Request, msg string) {
	render(w, r, http.StatusInternalServerError, view.ErrorPage(c.chrome(w, r), msg))
}

// isDatastar reports whether r was issued by the datastar client.
func isDatastar(r *http.Request) bool {
	return r.Header.Get("Datastar-Request") == "true"
}

// safeNext returns next when it is a local path, otherwise fallback.
func safeNext(next, fallback string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, `/\`) {
		return fallback
	}
	return next
}
