// Package auth implements the identity verifier: an opaque bearer token in,
// a trusted identity out. Account issuance lives in the surrounding
// service; this backend only checks signatures.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mafia-live/backend/internal/apperr"
)

type Identity struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

type Verifier interface {
	Verify(token string) (Identity, error)
}

type JWTVerifier struct {
	secret []byte
}

func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

type claims struct {
	Name string `json:"name"`
	jwt.RegisteredClaims
}

func (v *JWTVerifier) Verify(token string) (Identity, error) {
	if token == "" {
		return Identity{}, apperr.E(apperr.CodeAuth, "authentication required")
	}
	var c claims
	parsed, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, apperr.E(apperr.CodeAuth, "unexpected signing method %q", t.Method.Alg())
		}
		return v.secret, nil
	})
	if err != nil || !parsed.Valid || c.Subject == "" {
		return Identity{}, apperr.E(apperr.CodeAuth, "invalid token")
	}
	return Identity{ID: c.Subject, DisplayName: c.Name}, nil
}

// Sign issues a token for the given identity. The game backend never calls
// this in production; it exists for tests and local tooling.
func (v *JWTVerifier) Sign(id Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Name: id.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	return t.SignedString(v.secret)
}
