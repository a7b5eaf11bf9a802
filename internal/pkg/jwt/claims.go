package jwt

import (
	"github.com/golang-jwt/jwt/v5"
)

// Claims represents the JWT claims carried by gateway-issued tokens.
type Claims struct {
	Email          string `json:"email,omitempty"`
	Role           string `json:"role,omitempty"`
	SessionPurpose string `json:"session_purpose"` // access or refresh
	jwt.RegisteredClaims
}

// IsAccess reports whether the token was minted as an access token.
func (c *Claims) IsAccess() bool {
	return c.SessionPurpose == PurposeAccess
}

// IsRefresh reports whether the token was minted as a refresh token.
func (c *Claims) IsRefresh() bool {
	return c.SessionPurpose == PurposeRefresh
}

// VerifyAudience checks if the expected audience is listed in the claims.
func (c *Claims) VerifyAudience(audience string, required bool) bool {
	if len(c.Audience) == 0 {
		return !required
	}
	for _, aud := range c.Audience {
		if aud == audience {
			return true
		}
	}
	return false
}

const (
	PurposeAccess  = "access"
	PurposeRefresh = "refresh"
)
