package handler_test

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"path/filepath"
	"sync"
	"testing"

	"github.com/msomdec/realty/internal/domain"
	"github.com/msomdec/realty/internal/handler"
	"github.com/msomdec/realty/internal/repository/sqlite"
	"github.com/msomdec/realty/internal/service"
	"github.com/msomdec/realty/internal/validation"
)

const testJWTSecret = "test-secret-for-handler-tests-0123456789"

type recordingMailer struct {
	mu   sync.Mutex
	sent []service.Message
}

func (m *recordingMailer) Send(_ context.Context, msg service.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

func (m *recordingMailer) messages() []service.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]service.Message(nil), m.sent...)
}

type testEnv struct {
	srv      *httptest.Server
	db       *sqlite.DB
	auth     *service.AuthService
	listings *service.ListingService
	mailer   *recordingMailer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("New DB: %v", err)
	}
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	mailer := &recordingMailer{}
	auth := service.NewAuthService(db.Users(), db.PasswordResets(), mailer, testJWTSecret, 4, "http://localhost")
	listings := service.NewListingService(
		db.Listings(), db.Users(),
		service.NewUploadService(db.FileStore()),
		service.FixedGeocoder{Lat: service.DefaultLatitude, Lng: service.DefaultLongitude},
		mailer,
		service.NewBroker(),
	)

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux, handler.Deps{
		Auth:     auth,
		Listings: listings,
		Files:    db.FileStore(),
		DB:       db,
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return &testEnv{srv: srv, db: db, auth: auth, listings: listings, mailer: mailer}
}

// client returns a cookie-keeping client that does not follow redirects.
func (e *testEnv) client(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("create cookie jar: %v", err)
	}
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// signUp registers a user through the service and signs client in as them.
func (e *testEnv) signUp(t *testing.T, c *http.Client, name, email string) *domain.User {
	t.Helper()
	user, err := e.auth.Register(context.Background(), validation.SignUpForm{
		Name: name, Email: email, Password: "password123", Terms: true,
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if c != nil {
		resp := postForm(t, c, e.srv.URL+"/sign-in", map[string]string{"email": email, "password": "password123"})
		resp.Body.Close()
		if resp.StatusCode != http.StatusSeeOther {
			t.Fatalf("sign in: expected 303, got %d", resp.StatusCode)
		}
	}
	return user
}

func validListingForm(name string, typ domain.ListingType) validation.ListingForm {
	return validation.ListingForm{
		Type:         string(typ),
		Name:         name,
		Bedrooms:     2,
		Bathrooms:    1,
		Address:      "Jl. Raya Ubud 1",
		Description:  "Quiet place",
		RegularPrice: 1500,
	}
}

func pngFile(name string) service.UploadFile {
	data := []byte("\x89PNG fake image bytes")
	return service.UploadFile{
		Filename:    name,
		ContentType: "image/png",
		Size:        int64(len(data)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

func (e *testEnv) createListing(t *testing.T, userID int64, name string, typ domain.ListingType) *domain.Listing {
	t.Helper()
	l, err := e.listings.Create(context.Background(), userID, validListingForm(name, typ), []service.UploadFile{pngFile("front.png")}, nil)
	if err != nil {
		t.Fatalf("Create listing: %v", err)
	}
	return l
}

func postForm(t *testing.T, c *http.Client, target string, fields map[string]string) *http.Response {
	t.Helper()
	form := url.Values{}
	for k, v := range fields {
		form.Set(k, v)
	}
	resp, err := c.PostForm(target, form)
	if err != nil {
		t.Fatalf("POST %s: %v", target, err)
	}
	return resp
}

// multipartListing encodes a listing form with one png image per filename.
func multipartListing(t *testing.T, fields map[string]string, filenames ...string) (*bytes.Buffer, string) {
	t.Helper()
	return multipartListingAs(t, "image/png", fields, filenames...)
}

// multipartListingAs is multipartListing with each image part sent as
// contentType.
func multipartListingAs(t *testing.T, contentType string, fields map[string]string, filenames ...string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("WriteField: %v", err)
		}
	}
	for _, name := range filenames {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="images"; filename="`+name+`"`)
		h.Set("Content-Type", contentType)
		part, err := mw.CreatePart(h)
		if err != nil {
			t.Fatalf("CreatePart: %v", err)
		}
		part.Write([]byte("\x89PNG fake image bytes"))
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	return &body, mw.FormDataContentType()
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(b)
}
