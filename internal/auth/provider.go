package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kobovault/kobovault/internal/identity"
)

// Provider exchanges an authorization artifact from the external login
// provider for the caller's identity profile.
type Provider interface {
	AuthURL() string
	Exchange(ctx context.Context, code string) (identity.Profile, error)
}

// GoogleConfig carries the OAuth client settings for the Google provider.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

const (
	googleAuthEndpoint     = "https://accounts.google.com/o/oauth2/v2/auth"
	googleTokenEndpoint    = "https://oauth2.googleapis.com/token"
	googleUserinfoEndpoint = "https://www.googleapis.com/oauth2/v2/userinfo"
)

// GoogleProvider implements Provider against Google's OAuth2 endpoints.
type GoogleProvider struct {
	cfg    GoogleConfig
	client *http.Client
}

// NewGoogleProvider builds a Google OAuth provider client.
func NewGoogleProvider(cfg GoogleConfig) *GoogleProvider {
	return &GoogleProvider{cfg: cfg, client: &http.Client{Timeout: 10 * time.Second}}
}

// AuthURL returns the consent-screen URL the login flow redirects to.
func (p *GoogleProvider) AuthURL() string {
	q := url.Values{}
	q.Set("client_id", p.cfg.ClientID)
	q.Set("redirect_uri", p.cfg.RedirectURI)
	q.Set("response_type", "code")
	q.Set("scope", "email profile")
	return googleAuthEndpoint + "?" + q.Encode()
}

// Exchange trades an authorization code for the user's profile.
func (p *GoogleProvider) Exchange(ctx context.Context, code string) (identity.Profile, error) {
	form := url.Values{}
	form.Set("code", code)
	form.Set("client_id", p.cfg.ClientID)
	form.Set("client_secret", p.cfg.ClientSecret)
	form.Set("redirect_uri", p.cfg.RedirectURI)
	form.Set("grant_type", "authorization_code")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, googleTokenEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return identity.Profile{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return identity.Profile{}, fmt.Errorf("token exchange: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return identity.Profile{}, fmt.Errorf("token exchange: unexpected status %d", resp.StatusCode)
	}

	var token struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return identity.Profile{}, fmt.Errorf("token exchange: decode: %w", err)
	}

	infoReq, err := http.NewRequestWithContext(ctx, http.MethodGet, googleUserinfoEndpoint, nil)
	if err != nil {
		return identity.Profile{}, err
	}
	infoReq.Header.Set("Authorization", "Bearer "+token.AccessToken)

	infoResp, err := p.client.Do(infoReq)
	if err != nil {
		return identity.Profile{}, fmt.Errorf("userinfo: %w", err)
	}
	defer infoResp.Body.Close()
	if infoResp.StatusCode != http.StatusOK {
		return identity.Profile{}, fmt.Errorf("userinfo: unexpected status %d", infoResp.StatusCode)
	}

	var info struct {
		Email string `json:"email"`
		Name  string `json:"name"`
		ID    string `json:"id"`
	}
	if err := json.NewDecoder(infoResp.Body).Decode(&info); err != nil {
		return identity.Profile{}, fmt.Errorf("userinfo: decode: %w", err)
	}

	return identity.Profile{Email: info.Email, Name: info.Name, ExternalID: info.ID}, nil
}
