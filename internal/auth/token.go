package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingToken = errors.New("missing access token")
	ErrInvalidToken = errors.New("invalid access token")
	ErrExpiredToken = errors.New("access token expired")
)

// Identity is the authenticated principal attached to a connection or request.
type Identity struct {
	UserID string
	Email  string
	Name   string
}

// Label returns the display label used in presence and typing events.
func (i Identity) Label() string {
	if i.Name != "" {
		return i.Name
	}
	return i.Email
}

// TokenVerifier validates access tokens minted by the auth service.
// Tokens are HMAC-SHA256 JWTs signed with the shared access-token secret.
type TokenVerifier struct {
	secret []byte
}

// NewTokenVerifier creates a verifier for the given shared secret.
func NewTokenVerifier(secret string) *TokenVerifier {
	return &TokenVerifier{secret: []byte(secret)}
}

// Verify checks the token's signature and expiry and returns the identity
// it carries. It never returns a partial identity: any failure rejects the
// token as a whole.
func (v *TokenVerifier) Verify(raw string) (*Identity, error) {
	if raw == "" {
		return nil, ErrMissingToken
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("%w: unexpected signing method %q", ErrInvalidToken, t.Method.Alg())
		}
		return v.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	email, _ := claims["email"].(string)
	name, _ := claims["name"].(string)

	return &Identity{UserID: sub, Email: email, Name: name}, nil
}

// Sign mints a token for the given identity. The server never mints tokens
// for clients (that is the auth service's job); this exists for the mktoken
// dev tool and for tests.
func Sign(secret string, identity Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   identity.UserID,
		"email": identity.Email,
		"name":  identity.Name,
		"iat":   now.Unix(),
		"exp":   now.Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
