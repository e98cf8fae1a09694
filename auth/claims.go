package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the subset of access token claims shown to the user.
type Claims struct {
	Subject   string
	Email     string
	Role      string
	SessionID string
	ExpiresAt time.Time
}

// Expired reports whether the token had expired at now. A token without an
// exp claim never expires locally.
func (c *Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

type accessClaims struct {
	jwt.RegisteredClaims
	Email     string `json:"email"`
	Role      string `json:"role"`
	SessionID string `json:"session_id"`
}

// ParseClaims decodes an access token without verifying its signature. The
// result is for display only; the backend stays the authority on validity.
func ParseClaims(accessToken string) (*Claims, error) {
	var ac accessClaims
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, &ac); err != nil {
		return nil, fmt.Errorf("failed to parse access token: %w", err)
	}

	c := &Claims{
		Subject:   ac.Subject,
		Email:     ac.Email,
		Role:      ac.Role,
		SessionID: ac.SessionID,
	}
	if ac.ExpiresAt != nil {
		c.ExpiresAt = ac.ExpiresAt.Time
	}
	return c, nil
}
