package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	defaultGoogleUserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"
	defaultGoogleRevokeURL   = "https://oauth2.googleapis.com/revoke"
)

// ProviderUser is the part of the provider's userinfo response we care about.
// Email is the key identity resolution maps onto a user row.
type ProviderUser struct {
	Subject string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
}

// Provider is the external identity provider as the rest of the app sees it.
// The Google implementation is below; tests substitute an httptest server via
// the URL overrides in GoogleConfig, or a fake implementing this interface.
type Provider interface {
	// AuthURL is where the browser is sent to sign in.
	AuthURL(state string) string
	// Exchange trades an authorization code for a token.
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	// UserInfo fetches the signed-in user's identity with a token.
	UserInfo(ctx context.Context, token *oauth2.Token) (*ProviderUser, error)
	// Revoke invalidates an access token at the provider.
	Revoke(ctx context.Context, accessToken string) error
}

// GoogleConfig configures GoogleProvider. The URL fields default to Google's
// production endpoints and exist so tests can point them at a local server.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	AuthURL     string
	TokenURL    string
	UserInfoURL string
	RevokeURL   string

	// HTTPClient is used for every call to the provider. Defaults to a client
	// with a 10 second timeout.
	HTTPClient *http.Client
}

// GoogleProvider wraps golang.org/x/oauth2 for Google sign-in.
//
// OAUTH 2.0 AUTHORIZATION CODE FLOW:
//  1. Redirect the user to Google with our ClientID, scopes, and state
//  2. Google redirects back to RedirectURL with a short-lived code
//  3. Exchange the code for an access token (server-to-server, uses ClientSecret)
//  4. Call the userinfo endpoint with the token
//
// Clients that complete sign-in in the browser can skip steps 2-3 and post the
// access token straight to the callback; UserInfo works the same either way.
type GoogleProvider struct {
	config      *oauth2.Config
	userInfoURL string
	revokeURL   string
	client      *http.Client
}

var _ Provider = (*GoogleProvider)(nil)

// NewGoogleProvider creates a GoogleProvider.
//
// Scopes: "openid email profile" (the email is all identity resolution needs;
// the profile name is used as the display name on first sign-in).
func NewGoogleProvider(cfg GoogleConfig) *GoogleProvider {
	endpoint := google.Endpoint
	if cfg.AuthURL != "" {
		endpoint.AuthURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}

	p := &GoogleProvider{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     endpoint,
		},
		userInfoURL: cfg.UserInfoURL,
		revokeURL:   cfg.RevokeURL,
		client:      cfg.HTTPClient,
	}
	if p.userInfoURL == "" {
		p.userInfoURL = defaultGoogleUserInfoURL
	}
	if p.revokeURL == "" {
		p.revokeURL = defaultGoogleRevokeURL
	}
	if p.client == nil {
		p.client = &http.Client{Timeout: 10 * time.Second}
	}
	return p
}

// AuthURL returns the URL to redirect the user to for authorization.
func (p *GoogleProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades an authorization code for an OAuth token.
func (p *GoogleProvider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	// oauth2 picks up its HTTP client from the context.
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.client)

	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging OAuth code: %w", err)
	}
	return token, nil
}

// UserInfo calls the userinfo endpoint with token and decodes the identity.
func (p *GoogleProvider) UserInfo(ctx context.Context, token *oauth2.Token) (*ProviderUser, error) {
	if token == nil || token.AccessToken == "" {
		return nil, fmt.Errorf("auth: missing access token")
	}

	// oauth2.Config.Client returns an *http.Client that adds the
	// "Authorization: Bearer <token>" header to every request.
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.client)
	client := p.config.Client(ctx, token)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("auth: building userinfo request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth: calling userinfo endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth: userinfo endpoint returned status %d", resp.StatusCode)
	}

	var user ProviderUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("auth: decoding userinfo response: %w", err)
	}

	if strings.TrimSpace(user.Email) == "" {
		return nil, fmt.Errorf("auth: provider returned no email")
	}

	return &user, nil
}

// Revoke invalidates an access token at the provider.
// Google answers 200 on success and 400 for tokens that are already invalid.
func (p *GoogleProvider) Revoke(ctx context.Context, accessToken string) error {
	if accessToken == "" {
		return fmt.Errorf("auth: no access token to revoke")
	}

	form := url.Values{"token": {accessToken}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.revokeURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("auth: building revoke request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("auth: calling revoke endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("auth: revoke endpoint returned status %d", resp.StatusCode)
	}
	return nil
}
