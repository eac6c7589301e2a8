package session

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the fields the backend puts in its tokens. Subject is the username.
type Claims struct {
	Role   string `json:"role"`
	UserID int64  `json:"id"`
	jwt.RegisteredClaims
}

// Claims decodes the current token without verifying its signature; the console
// never holds the signing key.
func (s *Session) Claims() (*Claims, error) {
	token := s.Token()
	if token == "" {
		return nil, ErrNotAuthenticated
	}
	return ParseClaims(token)
}

func ParseClaims(token string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("decode token: %w", err)
	}
	return claims, nil
}

// Expired reports whether the token carries an exp claim that is before now.
// Tokens without exp never expire.
func (c *Claims) Expired(now time.Time) bool {
	if c == nil || c.ExpiresAt == nil {
		return false
	}
	return now.After(c.ExpiresAt.Time)
}
