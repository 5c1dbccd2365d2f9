// Package sessiontest mints signed-in sessions for tests of services that sit
// behind quizauth. Handlers guarded by the auth middleware can be exercised
// without running the login flow.
package sessiontest

import (
	"crypto/rand"
	"net/http"
	"time"

	"git.sr.ht/~jakintosh/quizauth/pkg/identity"
	"git.sr.ht/~jakintosh/quizauth/pkg/tokens"
)

// Keys holds the signing material for test tokens.
type Keys struct {
	Secret       []byte
	SigningKey   []byte
	IssuerDomain string
}

// Session holds token strings and metadata for a test session.
type Session struct {
	Identity        identity.Identity
	AccessToken     string
	CSRF            string
	AccessExpiresAt time.Time
}

// CookieOptions configures cookie attributes for test cookies.
type CookieOptions struct {
	Secure bool
	Path   string
	MaxAge int // if 0, derived from token expiration
}

// NewKeys generates a random secret and derives its signing key.
func NewKeys(issuerDomain string) (*Keys, error) {
	secret := make([]byte, tokens.MinSecretLength)
	if _, err := rand.Read(secret); err != nil {
		return nil, err
	}
	return KeysFromSecret(secret, issuerDomain)
}

// KeysFromSecret derives keys from a known secret, for tests that need to
// share keys with a server configured with the same JWT secret.
func KeysFromSecret(secret []byte, issuerDomain string) (*Keys, error) {
	key, err := tokens.DeriveSigningKey(secret)
	if err != nil {
		return nil, err
	}
	return &Keys{
		Secret:       secret,
		SigningKey:   key,
		IssuerDomain: issuerDomain,
	}, nil
}

// NewSession creates a session for id with a minted access token and a
// fresh CSRF token.
func NewSession(
	keys *Keys,
	id identity.Identity,
	accessLifetime time.Duration,
) (*Session, error) {
	issuer, _ := tokens.InitServer(keys.SigningKey, keys.IssuerDomain)

	accessToken, err := issuer.IssueAccessToken(id, accessLifetime)
	if err != nil {
		return nil, err
	}
	csrf, err := tokens.IssueCSRFToken()
	if err != nil {
		return nil, err
	}

	return &Session{
		Identity:        id,
		AccessToken:     accessToken.Encoded(),
		CSRF:            csrf,
		AccessExpiresAt: accessToken.Expiration(),
	}, nil
}

// Cookies creates the access and csrf cookies a browser would hold.
func Cookies(sess *Session, opts CookieOptions) (access, csrf *http.Cookie) {
	maxAge := opts.MaxAge
	if maxAge == 0 {
		maxAge = int(time.Until(sess.AccessExpiresAt).Seconds())
	}

	path := opts.Path
	if path == "" {
		path = "/"
	}

	access = &http.Cookie{
		Name:     tokens.AccessTokenCookie,
		Value:    sess.AccessToken,
		Path:     path,
		MaxAge:   maxAge,
		Secure:   opts.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	csrf = &http.Cookie{
		Name:     tokens.CSRFTokenCookie,
		Value:    sess.CSRF,
		Path:     path,
		MaxAge:   maxAge,
		Secure:   opts.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	return access, csrf
}

// AddToRequest attaches the session cookies and echoes the CSRF token in
// its header, as the browser app does on state-changing requests.
func AddToRequest(r *http.Request, sess *Session) {
	access, csrf := Cookies(sess, CookieOptions{})
	r.AddCookie(access)
	r.AddCookie(csrf)
	r.Header.Set(tokens.CSRFHeader, sess.CSRF)
}

// Validator creates a token validator for the given keys.
func Validator(keys *Keys) tokens.Validator {
	_, validator := tokens.InitServer(keys.SigningKey, keys.IssuerDomain)
	return validator
}
