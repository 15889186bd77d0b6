// Package token issues and validates signed session tokens.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionTTL is the lifetime of an issued session token.
const SessionTTL = 7 * 24 * time.Hour

// ErrNoSecret is returned by Issue when no signing secret is configured.
var ErrNoSecret = errors.New("token: signing secret is not configured")

// Claims holds the JWT claims carried by a session token.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"userId"`
}

// Service issues and validates HS256-signed session tokens.
type Service struct {
	secret []byte
	ttl    time.Duration
}

// NewService returns a Service signing with the given secret.
func NewService(secret string) *Service {
	return &Service{secret: []byte(secret), ttl: SessionTTL}
}

// Issue creates a signed session token for the given user identifier,
// expiring SessionTTL from now.
func (s *Service) Issue(userID string) (string, error) {
	if len(s.secret) == 0 {
		return "", ErrNoSecret
	}

	now := time.Now().UTC()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		UserID: userID,
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Validate parses and verifies a session token and returns the user
// identifier it was issued for. It fails closed: any verification
// failure (bad signature, expired, malformed, wrong algorithm, missing
// user id) yields ok == false, never an error or panic.
func (s *Service) Validate(tokenString string) (userID string, ok bool) {
	if len(s.secret) == 0 || tokenString == "" {
		return "", false
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, isHMAC := t.Method.(*jwt.SigningMethodHMAC); !isHMAC {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.secret, nil
	})
	if err != nil {
		return "", false
	}

	claims, isClaims := parsed.Claims.(*Claims)
	if !isClaims || !parsed.Valid {
		return "", false
	}

	id := claims.UserID
	if id == "" {
		id = claims.Subject
	}
	if id == "" {
		return "", false
	}
	return id, true
}
