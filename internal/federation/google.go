// Package federation delegates user authentication to Google using the
// OAuth 2.0 authorization code flow and returns the verified profile.
package federation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

// DefaultTimeout bounds the code exchange and profile fetch together.
const DefaultTimeout = 10 * time.Second

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

var (
	ErrFederation      = errors.New("federation failed")
	ErrEmailUnverified = fmt.Errorf("%w: email not verified", ErrFederation)
)

var scopes = []string{"openid", "email", "profile"}

// Profile is the subset of the Google userinfo response the session core
// consumes.
type Profile struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// Endpoint overrides, empty for Google's production endpoints.
	AuthURL     string
	TokenURL    string
	UserInfoURL string

	Timeout    time.Duration
	HTTPClient *http.Client
}

// Google is an authorization-code client for Google accounts.
type Google struct {
	oauth       *oauth2.Config
	userInfoURL string
	timeout     time.Duration
	httpClient  *http.Client
}

func NewGoogle(cfg Config) (*Google, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("google client id and secret are required")
	}
	if cfg.RedirectURL == "" {
		return nil, fmt.Errorf("google redirect url is required")
	}

	endpoint := endpoints.Google
	if cfg.AuthURL != "" {
		endpoint.AuthURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}
	endpoint.AuthStyle = oauth2.AuthStyleInParams

	userInfoURL := cfg.UserInfoURL
	if userInfoURL == "" {
		userInfoURL = googleUserInfoURL
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Google{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     endpoint,
			Scopes:       scopes,
		},
		userInfoURL: userInfoURL,
		timeout:     timeout,
		httpClient:  cfg.HTTPClient,
	}, nil
}

// AuthCodeURL builds the consent screen URL carrying state. Offline access
// and a forced consent prompt mirror what the browser client expects.
func (g *Google) AuthCodeURL(state string) string {
	return g.oauth.AuthCodeURL(
		state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
}

// Exchange trades an authorization code for the caller's profile. Every
// failure wraps ErrFederation. An unverified email yields ErrEmailUnverified.
func (g *Google) Exchange(
	ctx context.Context,
	code string,
) (
	*Profile,
	error,
) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	if g.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, g.httpClient)
	}

	token, err := g.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: code exchange: %v", ErrFederation, err)
	}

	profile, err := g.fetchProfile(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFederation, err)
	}

	if profile.ID == "" || profile.Email == "" {
		return nil, fmt.Errorf("%w: profile missing id or email", ErrFederation)
	}
	if !profile.VerifiedEmail {
		return nil, ErrEmailUnverified
	}

	return profile, nil
}

func (g *Google) fetchProfile(
	ctx context.Context,
	token *oauth2.Token,
) (
	*Profile,
	error,
) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build userinfo request: %v", err)
	}

	resp, err := g.oauth.Client(ctx, token).Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch userinfo: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("userinfo status %d: %s", resp.StatusCode, body)
	}

	var profile Profile
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&profile); err != nil {
		return nil, fmt.Errorf("decode userinfo: %v", err)
	}
	return &profile, nil
}
