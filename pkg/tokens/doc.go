// Package tokens provides the session token primitives for the quizauth
// server: HS256 access tokens, opaque refresh token values, and the
// double-submit CSRF guard.
//
// Access tokens carry an identity (subject, email, role) and are verified
// without touching storage:
//
//	key, err := tokens.DeriveSigningKey([]byte(os.Getenv("JWT_SECRET")))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	issuer, validator := tokens.InitServer(key, "quizauth")
//
//	// Issue an access token valid for 15 minutes
//	accessToken, err := issuer.IssueAccessToken(identity.Identity{
//	    Subject: "8a3f...",
//	    Email:   "alice@example.com",
//	    Role:    identity.RoleUser,
//	}, 15*time.Minute)
//
//	// Validate an access token from a cookie
//	token := &tokens.AccessToken{}
//	if err := token.Decode(cookie.Value, validator); err != nil {
//	    return fmt.Errorf("invalid token: %w", err)
//	}
//	caller := token.Identity()
//
// # Error Handling
//
// Token validation can fail for several reasons:
//
//	err := token.Decode(tokenString, validator)
//	switch {
//	case errors.Is(err, tokens.ErrTokenExpired()):
//	    // Token has expired; the client should refresh
//	case errors.Is(err, tokens.ErrTokenBadSignature()):
//	    // Token signature verification failed
//	case errors.Is(err, tokens.ErrTokenMalformed()):
//	    // Token structure is invalid
//	}
//
// # CSRF Protection
//
// State-changing requests echo the csrf_token cookie in the X-CSRF-Token
// header:
//
//	err := tokens.ValidateCSRF(cookie.Value, r.Header.Get(tokens.CSRFHeader))
//	switch {
//	case errors.Is(err, tokens.ErrCSRFMissing()):
//	    // cookie or header absent
//	case errors.Is(err, tokens.ErrCSRFMismatch()):
//	    // both present but different
//	}
package tokens
