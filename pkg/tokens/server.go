package tokens

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"git.sr.ht/~jakintosh/quizauth/pkg/identity"
)

// Server implements both Issuer and Validator. It holds the symmetric HMAC
// key used to sign and verify access tokens. Create a Server instance using
// InitServer.
type Server struct {
	signingKey   []byte
	issuerDomain string
}

//
// Issuer interface

func (server *Server) IssueAccessToken(
	id identity.Identity,
	lifetime time.Duration,
) (*AccessToken, error) {

	if !id.Role.Valid() {
		return nil, fmt.Errorf("cannot issue access token: %w", ErrTokenInvalidRole())
	}

	now := time.Now()
	exp := now.Add(lifetime)
	token := &AccessToken{
		issuer:     server.issuerDomain,
		issuedAt:   now,
		expiration: exp,
		identity:   id,
	}

	claims := token.intoClaims()
	encodedToken, err := encodeToken(claims, server.signingKey)
	if err != nil {
		return nil, fmt.Errorf("failed to encode access token: %v", err)
	}
	token.encoded = encodedToken

	return token, nil
}

//
// Validator interface

func (server *Server) VerificationKey(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return server.signingKey, nil
}

func (server *Server) ValidateDomain(issuerDomain string) bool {
	return issuerDomain == server.issuerDomain
}
