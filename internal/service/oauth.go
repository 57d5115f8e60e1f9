package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/msomdec/realty/internal/domain"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const googleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

// OAuthProvider runs the OAuth2 authorization-code flow against an OpenID
// Connect provider.
type OAuthProvider struct {
	name        string
	config      *oauth2.Config
	userInfoURL string
}

// NewOAuthProvider creates a provider from an OAuth2 config and the URL of
// its userinfo endpoint.
func NewOAuthProvider(name string, config *oauth2.Config, userInfoURL string) *OAuthProvider {
	return &OAuthProvider{name: name, config: config, userInfoURL: userInfoURL}
}

// NewGoogleOAuth creates the Google sign-in provider.
func NewGoogleOAuth(clientID, clientSecret, redirectURL string) *OAuthProvider {
	return NewOAuthProvider(domain.ProviderGoogle, &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       []string{"openid", "email", "profile"},
		Endpoint:     google.Endpoint,
	}, googleUserInfoURL)
}

// AuthCodeURL returns the provider's consent page URL.
func (p *OAuthProvider) AuthCodeURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.SetAuthURLParam("prompt", "select_account"))
}

type userInfo struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified any    `json:"email_verified"`
	Name          string `json:"name"`
}

// Exchange trades an authorization code for the user's verified identity.
func (p *OAuthProvider) Exchange(ctx context.Context, code string) (ProviderIdentity, error) {
	tok, err := p.config.Exchange(ctx, code)
	if err != nil {
		return ProviderIdentity{}, fmt.Errorf("%w: exchange code: %v", domain.ErrUnauthorized, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return ProviderIdentity{}, fmt.Errorf("build userinfo request: %w", err)
	}
	resp, err := p.config.Client(ctx, tok).Do(req)
	if err != nil {
		return ProviderIdentity{}, fmt.Errorf("fetch userinfo: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return ProviderIdentity{}, fmt.Errorf("%w: userinfo status %d", domain.ErrUnauthorized, resp.StatusCode)
	}

	var info userInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return ProviderIdentity{}, fmt.Errorf("decode userinfo: %w", err)
	}
	if info.Subject == "" || info.Email == "" || !verified(info.EmailVerified) {
		return ProviderIdentity{}, fmt.Errorf("%w: email not verified", domain.ErrUnauthorized)
	}

	return ProviderIdentity{
		Provider: p.name,
		Subject:  info.Subject,
		Email:    info.Email,
		Name:     info.Name,
	}, nil
}

// Some providers send email_verified as a string.
func verified(v any) bool {
	switch v := v.(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	}
	return false
}
