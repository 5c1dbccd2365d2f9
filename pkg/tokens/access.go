package tokens

import (
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"git.sr.ht/~jakintosh/quizauth/pkg/identity"
)

// ==============================================

// AccessTokenClaims represents the JWT claims for an access token.
// It carries the standard registered claims (exp, iat, iss, sub) plus the
// identity's email and role, and sits between the JSON representation in
// the token and the AccessToken Go struct.
type AccessTokenClaims struct {
	Email string        `json:"email"`
	Role  identity.Role `json:"role"`
	jwt.RegisteredClaims
}

func (claims *AccessTokenClaims) validate(validator Validator) error {
	if !validator.ValidateDomain(claims.Issuer) {
		return ErrTokenInvalidIssuer()
	}

	if claims.Subject == "" || claims.Email == "" {
		return ErrTokenMalformed()
	}

	if !claims.Role.Valid() {
		return ErrTokenInvalidRole()
	}

	return nil
}

// ==============================================

// AccessToken represents a short-lived HS256 JWT proving an identity.
// Access tokens are stateless: they are never stored and cannot be revoked
// before they expire.
type AccessToken struct {
	issuer     string
	issuedAt   time.Time
	expiration time.Time
	identity   identity.Identity
	encoded    string
}

func (t *AccessToken) Issuer() string              { return t.issuer }
func (t *AccessToken) IssuedAt() time.Time         { return t.issuedAt }
func (t *AccessToken) Expiration() time.Time       { return t.expiration }
func (t *AccessToken) Subject() string             { return t.identity.Subject }
func (t *AccessToken) Identity() identity.Identity { return t.identity }
func (t *AccessToken) Encoded() string             { return t.encoded }

func (token *AccessToken) Decode(encToken string, validator Validator) error {
	claims, err := decodeToken(encToken, validator)
	if err != nil {
		slog.Debug("access token rejected", "reason", err.Context())
		return err
	}
	token.fromClaims(claims, encToken)
	return nil
}

func (token *AccessToken) intoClaims() *AccessTokenClaims {
	return &AccessTokenClaims{
		Email: token.identity.Email,
		Role:  token.identity.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    token.issuer,
			Subject:   token.identity.Subject,
			IssuedAt:  jwt.NewNumericDate(token.issuedAt),
			ExpiresAt: jwt.NewNumericDate(token.expiration),
		},
	}
}

func (token *AccessToken) fromClaims(claims *AccessTokenClaims, encToken string) {
	token.issuer = claims.Issuer
	if claims.IssuedAt != nil {
		token.issuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		token.expiration = claims.ExpiresAt.Time
	}
	token.identity = identity.Identity{
		Subject: claims.Subject,
		Email:   claims.Email,
		Role:    claims.Role,
	}
	token.encoded = encToken
}
