package tokens

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/hkdf"

	"git.sr.ht/~jakintosh/quizauth/pkg/identity"
)

// MinSecretLength is the shortest JWT secret InitServer callers should accept.
const MinSecretLength = 32

const signingKeyInfo = "quizauth access token signing key v1"

type validateError struct {
	context string
	err     error
}

func (t *validateError) Context() string {
	return t.context
}
func (t *validateError) Error() string {
	return fmt.Sprintf("%v", t.err)
}
func (t *validateError) Unwrap() error {
	return t.err
}

var (
	errTokenMalformed     = errors.New("token malformed")
	errTokenBadSignature  = errors.New("token bad signature")
	errTokenInvalidIssuer = errors.New("token invalid issuer")
	errTokenInvalidRole   = errors.New("token invalid role")
	errTokenExpired       = errors.New("token expired")
	errTokenNotIssued     = errors.New("token not issued yet")
)

func ErrTokenMalformed() error     { return errTokenMalformed }
func ErrTokenBadSignature() error  { return errTokenBadSignature }
func ErrTokenInvalidIssuer() error { return errTokenInvalidIssuer }
func ErrTokenInvalidRole() error   { return errTokenInvalidRole }
func ErrTokenExpired() error       { return errTokenExpired }
func ErrTokenNotIssued() error     { return errTokenNotIssued }

type Issuer interface {
	IssueAccessToken(identity.Identity, time.Duration) (*AccessToken, error)
}

type Validator interface {
	ValidateDomain(string) bool
	VerificationKey(*jwt.Token) (any, error)
}

func InitServer(
	signingKey []byte,
	issuerDomain string,
) (
	Issuer,
	Validator,
) {
	server := &Server{
		signingKey:   signingKey,
		issuerDomain: issuerDomain,
	}
	return server, server
}

// DeriveSigningKey stretches the configured secret into the HMAC key used for
// access tokens, so the raw secret never signs anything directly.
func DeriveSigningKey(secret []byte) ([]byte, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("secret must be at least %d bytes, got %d", MinSecretLength, len(secret))
	}
	key := make([]byte, 32)
	reader := hkdf.New(sha256.New, secret, nil, []byte(signingKeyInfo))
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("failed to derive signing key: %v", err)
	}
	return key, nil
}

// GenerateRefreshToken returns an opaque 256-bit token, hex encoded. Refresh
// tokens carry no claims; their meaning lives entirely in the store.
func GenerateRefreshToken() (string, error) {
	return generateHexCode("refresh token")
}

// GenerateState returns a random value for the OAuth state parameter.
func GenerateState() (string, error) {
	return generateHexCode("state")
}

func generateHexCode(purpose string) (string, error) {
	randomBytes := make([]byte, 32)
	_, err := rand.Read(randomBytes)
	if err != nil {
		return "", fmt.Errorf("failed to generate random %s bytes: %v", purpose, err)
	}
	return hex.EncodeToString(randomBytes), nil
}

func encodeToken(claims *AccessTokenClaims, signingKey []byte) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	encoded, err := token.SignedString(signingKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %v", err)
	}
	return encoded, nil
}

func decodeToken(tokenStr string, validator Validator) (*AccessTokenClaims, *validateError) {
	claims := &AccessTokenClaims{}
	_, err := jwt.ParseWithClaims(
		tokenStr,
		claims,
		validator.VerificationKey,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, classifyParseError(err)
	}

	if err := claims.validate(validator); err != nil {
		return nil, &validateError{
			context: fmt.Sprintf("token claims invalid: %v", err),
			err:     err,
		}
	}

	return claims, nil
}

func classifyParseError(err error) *validateError {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return &validateError{
			context: fmt.Sprintf("token malformed: %v", err),
			err:     errTokenMalformed,
		}
	case errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable):
		return &validateError{
			context: fmt.Sprintf("token signature illegal: %v", err),
			err:     errTokenBadSignature,
		}
	case errors.Is(err, jwt.ErrTokenExpired):
		return &validateError{
			context: fmt.Sprintf("token expired: %v", err),
			err:     errTokenExpired,
		}
	case errors.Is(err, jwt.ErrTokenUsedBeforeIssued),
		errors.Is(err, jwt.ErrTokenNotValidYet):
		return &validateError{
			context: fmt.Sprintf("token not issued: %v", err),
			err:     errTokenNotIssued,
		}
	default:
		return &validateError{
			context: fmt.Sprintf("token claims malformed: %v", err),
			err:     errTokenMalformed,
		}
	}
}
