package service

import (
	"math"
	"net/http"
	"time"

	"git.sr.ht/~jakintosh/quizauth/pkg/identity"
	"git.sr.ht/~jakintosh/quizauth/pkg/tokens"
)

// Session is the outcome of a login or refresh. A login session carries all
// three values; a refreshed session has no CSRF token, and the browser keeps
// the one it already holds.
type Session struct {
	Identity         identity.Identity
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
	CSRFToken        string
}

// CookiePolicy holds the attributes shared by every session cookie.
type CookiePolicy struct {
	Domain string
	Secure bool
}

// Cookies renders the session as Set-Cookie values. Only the refresh cookie
// is HttpOnly: the browser app reads the csrf cookie to echo it, and the
// access cookie to learn its identity.
func (s *Session) Cookies(
	policy CookiePolicy,
	now time.Time,
) []*http.Cookie {
	cookies := []*http.Cookie{
		policy.cookie(tokens.AccessTokenCookie, s.AccessToken, s.AccessExpiresAt, now, false),
		policy.cookie(tokens.RefreshTokenCookie, s.RefreshToken, s.RefreshExpiresAt, now, true),
	}
	if s.CSRFToken != "" {
		// csrf cookie lives as long as the refresh token that can renew it
		cookies = append(cookies,
			policy.cookie(tokens.CSRFTokenCookie, s.CSRFToken, s.RefreshExpiresAt, now, false),
		)
	}
	return cookies
}

// ClearCookies returns deletions for all three session cookies. They are
// always cleared together.
func (policy CookiePolicy) ClearCookies() []*http.Cookie {
	names := []struct {
		name     string
		httpOnly bool
	}{
		{tokens.AccessTokenCookie, false},
		{tokens.RefreshTokenCookie, true},
		{tokens.CSRFTokenCookie, false},
	}

	cookies := make([]*http.Cookie, 0, len(names))
	for _, n := range names {
		cookies = append(cookies, &http.Cookie{
			Name:     n.name,
			Value:    "",
			Path:     "/",
			Domain:   policy.Domain,
			Expires:  time.Unix(0, 0),
			MaxAge:   -1,
			Secure:   policy.Secure,
			HttpOnly: n.httpOnly,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return cookies
}

func (policy CookiePolicy) cookie(
	name string,
	value string,
	expiresAt time.Time,
	now time.Time,
	httpOnly bool,
) *http.Cookie {
	maxAge := int(math.Ceil(expiresAt.Sub(now).Seconds()))
	if maxAge < 1 {
		maxAge = 1
	}
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   policy.Domain,
		Expires:  expiresAt,
		MaxAge:   maxAge,
		Secure:   policy.Secure,
		HttpOnly: httpOnly,
		SameSite: http.SameSiteLaxMode,
	}
}
