package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/msomdec/realty/internal/domain"
	"github.com/msomdec/realty/internal/service"
	"golang.org/x/oauth2"
)

func newFakeProvider(t *testing.T, info map[string]any) *service.OAuthProvider {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		if r.FormValue("code") != "good-code" {
			http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"access_token": "at-1", "token_type": "Bearer", "expires_in": 3600})
	})
	mux.HandleFunc("GET /userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer at-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(info)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return service.NewOAuthProvider(domain.ProviderGoogle, &oauth2.Config{
		ClientID:     "client",
		ClientSecret: "secret",
		RedirectURL:  "http://localhost/auth/google/callback",
		Endpoint: oauth2.Endpoint{
			AuthURL:   srv.URL + "/auth",
			TokenURL:  srv.URL + "/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}, srv.URL+"/userinfo")
}

func TestOAuthProvider_Exchange(t *testing.T) {
	p := newFakeProvider(t, map[string]any{
		"sub": "g-1", "email": "gina@example.com", "email_verified": true, "name": "Gina",
	})

	id, err := p.Exchange(context.Background(), "good-code")
	if err != nil {
		t.Fatalf("Exchange: %v", err)
	}
	if id.Provider != domain.ProviderGoogle || id.Subject != "g-1" || id.Email != "gina@example.com" || id.Name != "Gina" {
		t.Fatalf("unexpected identity %+v", id)
	}
}

func TestOAuthProvider_Exchange_BadCode(t *testing.T) {
	p := newFakeProvider(t, map[string]any{"sub": "g-1", "email": "gina@example.com", "email_verified": true})

	if _, err := p.Exchange(context.Background(), "bad-code"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestOAuthProvider_Exchange_UnverifiedEmail(t *testing.T) {
	p := newFakeProvider(t, map[string]any{"sub": "g-1", "email": "gina@example.com", "email_verified": "false"})

	if _, err := p.Exchange(context.Background(), "good-code"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestOAuthProvider_AuthCodeURL(t *testing.T) {
	p := newFakeProvider(t, nil)

	u, err := url.Parse(p.AuthCodeURL("state-123"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	q := u.Query()
	if q.Get("state") != "state-123" || q.Get("client_id") != "client" || q.Get("response_type") != "code" {
		t.Fatalf("unexpected auth url %s", u)
	}
}
