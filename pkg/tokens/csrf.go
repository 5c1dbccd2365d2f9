package tokens

import (
	"crypto/subtle"
	"errors"
)

// Cookie and header names shared by the session server and the browser.
const (
	AccessTokenCookie  = "access_token"
	RefreshTokenCookie = "refresh_token"
	CSRFTokenCookie    = "csrf_token"
	CSRFHeader         = "X-CSRF-Token"
)

var (
	errCSRFMissing  = errors.New("csrf token missing")
	errCSRFMismatch = errors.New("csrf token mismatch")
)

func ErrCSRFMissing() error  { return errCSRFMissing }
func ErrCSRFMismatch() error { return errCSRFMismatch }

// IssueCSRFToken returns a fresh double-submit token. It is independent of
// any refresh or access token.
func IssueCSRFToken() (string, error) {
	return generateHexCode("CSRF")
}

// ValidateCSRF checks a double-submit pair: the value of the csrf cookie and
// the value echoed in the request header. Both must be present and equal.
func ValidateCSRF(cookieValue, headerValue string) error {
	if cookieValue == "" || headerValue == "" {
		return ErrCSRFMissing()
	}
	if subtle.ConstantTimeCompare([]byte(cookieValue), []byte(headerValue)) != 1 {
		return ErrCSRFMismatch()
	}
	return nil
}
