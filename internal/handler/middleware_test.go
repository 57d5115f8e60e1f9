package handler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/msomdec/realty/internal/handler"
	"github.com/msomdec/realty/internal/service"
)

func tokenFor(t *testing.T, env *testEnv, name, email string) string {
	t.Helper()
	env.signUp(t, nil, name, email)
	token, err := env.auth.Login(context.Background(), email, "password123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	return token
}

func TestRequireAuth_ValidJWT(t *testing.T) {
	env := newTestEnv(t)
	token := tokenFor(t, env, "Valid User", "valid@example.com")

	var gotUser string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user := handler.UserFromContext(r.Context()); user != nil {
			gotUser = user.DisplayName
		}
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/profile", nil)
	req.AddCookie(&http.Cookie{Name: "auth_token", Value: token})
	w := httptest.NewRecorder()

	handler.RequireAuth(env.auth, inner).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if gotUser != "Valid User" {
		t.Fatalf("expected user 'Valid User', got %q", gotUser)
	}
}

func TestRequireAuth_MissingCookieRedirectsToSignIn(t *testing.T) {
	env := newTestEnv(t)

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("inner handler should not be called")
	})

	req := httptest.NewRequest(http.MethodGet, "/edit-listing/3?x=1", nil)
	w := httptest.NewRecorder()

	handler.RequireAuth(env.auth, inner).ServeHTTP(w, req)

	if w.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", w.Code)
	}
	want := "/sign-in?next=%2Fedit-listing%2F3%3Fx%3D1"
	if loc := w.Header().Get("Location"); loc != want {
		t.Fatalf("expected redirect to %s, got %s", want, loc)
	}
}

func TestRequireAuth_PostDropsNext(t *testing.T) {
	env := newTestEnv(t)

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("inner handler should not be called")
	})

	req := httptest.NewRequest(http.MethodPost, "/create-listing", nil)
	w := httptest.NewRecorder()

	handler.RequireAuth(env.auth, inner).ServeHTTP(w, req)

	if loc := w.Header().Get("Location"); loc != "/sign-in" {
		t.Fatalf("expected redirect to /sign-in, got %s", loc)
	}
}

func TestRequireAuth_APIReturns401(t *testing.T) {
	env := newTestEnv(t)

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("inner handler should not be called")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: "auth_token", Value: "invalid.jwt.token"})
	w := httptest.NewRecorder()

	handler.RequireAuth(env.auth, inner).ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected JSON error, got %s", ct)
	}
}

func TestRequireAuth_TamperedToken(t *testing.T) {
	env := newTestEnv(t)
	token := tokenFor(t, env, "Tamper", "tamper@example.com")
	tampered := token[:len(token)-1] + "X"

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("inner handler should not be called")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: "auth_token", Value: tampered})
	w := httptest.NewRecorder()

	handler.RequireAuth(env.auth, inner).ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestOptionalAuth_WithToken(t *testing.T) {
	env := newTestEnv(t)
	token := tokenFor(t, env, "Optional", "opt@example.com")

	var gotUser string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user := handler.UserFromContext(r.Context()); user != nil {
			gotUser = user.DisplayName
		}
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "auth_token", Value: token})
	w := httptest.NewRecorder()

	handler.OptionalAuth(env.auth, inner).ServeHTTP(w, req)

	if gotUser != "Optional" {
		t.Fatalf("expected user 'Optional', got %q", gotUser)
	}
}

func TestOptionalAuth_WithoutToken(t *testing.T) {
	env := newTestEnv(t)

	called := false
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		if handler.UserFromContext(r.Context()) != nil {
			t.Error("expected nil user in context for unauthenticated request")
		}
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()

	handler.OptionalAuth(env.auth, inner).ServeHTTP(w, req)

	if !called || w.Code != http.StatusOK {
		t.Fatalf("expected inner handler to serve 200, called=%v code=%d", called, w.Code)
	}
}

func TestRateLimit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rl := service.NewRateLimiter(ctx, 0.001, 2)

	h := handler.RateLimit(rl, "sign-in", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := range 3 {
		req := httptest.NewRequest(http.MethodPost, "/sign-in", nil)
		req.RemoteAddr = "192.0.2.1:1234"
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		if i < 2 && w.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, w.Code)
		}
		if i == 2 {
			if w.Code != http.StatusTooManyRequests {
				t.Fatalf("expected 429, got %d", w.Code)
			}
			if w.Header().Get("Retry-After") == "" {
				t.Fatal("expected Retry-After header")
			}
		}
	}

	// Another client has its own bucket.
	req := httptest.NewRequest(http.MethodPost, "/sign-in", nil)
	req.RemoteAddr = "192.0.2.2:1234"
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("other client: expected 200, got %d", w.Code)
	}
}

func TestSecurityHeaders(t *testing.T) {
	h := handler.SecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("expected nosniff, got %q", got)
	}
	if csp := w.Header().Get("Content-Security-Policy"); !strings.Contains(csp, "cdn.jsdelivr.net") {
		t.Fatalf("expected CSP to allow the datastar CDN, got %q", csp)
	}
}

func TestLogRequests_PassesThroughStatus(t *testing.T) {
	h := handler.LogRequests(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		if _, ok := w.(http.Flusher); !ok {
			t.Error("expected the wrapped writer to support flushing")
		}
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusTeapot {
		t.Fatalf("expected 418, got %d", w.Code)
	}
}
