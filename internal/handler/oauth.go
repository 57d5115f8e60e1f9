package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/msomdec/realty/internal/domain"
	"github.com/msomdec/realty/internal/service"
)

const oauthStateCookie = "oauth_state"

// OAuthHandler runs the third-party sign-in flow.
type OAuthHandler struct {
	provider *service.OAuthProvider
	auth     *service.AuthService
	cookies  Cookies
}

// NewOAuthHandler creates a new OAuthHandler.
func NewOAuthHandler(provider *service.OAuthProvider, auth *service.AuthService, cookies Cookies) *OAuthHandler {
	return &OAuthHandler{provider: provider, auth: auth, cookies: cookies}
}

// HandleStart redirects to the provider's consent screen. The state cookie
// carries the anti-forgery value and the page to return to.
// GET /auth/google
func (h *OAuthHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	state := uuid.NewString()
	next := safeNext(r.URL.Query().Get("next"), "/")

	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state + "|" + next,
		Path:     "/auth/",
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   600,
	})
	http.Redirect(w, r, h.provider.AuthCodeURL(state), http.StatusFound)
}

// HandleCallback completes sign-in after the provider redirects back.
// GET /auth/google/callback
func (h *OAuthHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	ck, err := r.Cookie(oauthStateCookie)
	http.SetCookie(w, &http.Cookie{Name: oauthStateCookie, Path: "/auth/", MaxAge: -1})
	if err != nil {
		h.fail(w, r, "Sign-in session expired, please try again")
		return
	}
	state, next, _ := strings.Cut(ck.Value, "|")
	if state == "" || r.URL.Query().Get("state") != state {
		h.fail(w, r, "Could not authorize with Google")
		return
	}
	if r.URL.Query().Get("error") != "" {
		h.fail(w, r, "Google sign-in was cancelled")
		return
	}

	identity, err := h.provider.Exchange(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		slog.Warn("oauth exchange", "error", err)
		h.fail(w, r, "Could not authorize with Google")
		return
	}

	user, err := h.auth.SignInWithProvider(r.Context(), identity)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			h.fail(w, r, "Your Google account has no verified email")
			return
		}
		slog.Error("provider sign in", "error", err)
		h.fail(w, r, "Could not authorize with Google")
		return
	}

	token, err := h.auth.IssueToken(user)
	if err != nil {
		slog.Error("issue token", "error", err)
		h.fail(w, r, "Could not authorize with Google")
		return
	}
	h.cookies.setAuth(w, token)
	h.cookies.setFlash(w, "Welcome, "+user.DisplayName)
	http.Redirect(w, r, safeNext(next, "/"), http.StatusSeeOther)
}

func (h *OAuthHandler) fail(w http.ResponseWriter, r *http.Request, msg string) {
	h.cookies.setFlash(w, msg)
	http.Redirect(w, r, "/sign-in", http.StatusSeeOther)
}
