package middleware

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Strob0t/GovForge/internal/domain/actor"
)

// Claims are the bearer token claims understood by GovForge.
type Claims struct {
	jwt.RegisteredClaims
	Roles []string `json:"roles,omitempty"`
}

// TokenVerifier validates HS256 bearer tokens.
type TokenVerifier struct {
	secret func() string
	issuer string
}

// NewTokenVerifier returns a verifier for tokens signed with secret by issuer.
func NewTokenVerifier(secret, issuer string) *TokenVerifier {
	return NewRotatingTokenVerifier(func() string { return secret }, issuer)
}

// NewRotatingTokenVerifier reads the signing secret on every call. Tokens
// signed with a previous secret stop verifying once it is rotated.
func NewRotatingTokenVerifier(secret func() string, issuer string) *TokenVerifier {
	return &TokenVerifier{secret: secret, issuer: issuer}
}

// Issue signs a token for a. Used by the admin CLI and tests.
func (v *TokenVerifier) Issue(a actor.Actor, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   a.ID,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Roles: a.Roles,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(v.secret()))
}

// Verify parses and validates a token and returns the actor it names.
func (v *TokenVerifier) Verify(raw string) (actor.Actor, error) {
	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(*jwt.Token) (any, error) {
		return []byte(v.secret()), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(v.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return actor.Actor{}, fmt.Errorf("verify token: %w", err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return actor.Actor{}, errors.New("verify token: missing subject")
	}
	return actor.Actor{ID: claims.Subject, Roles: claims.Roles}, nil
}
