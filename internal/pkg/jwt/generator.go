package jwt

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
)

type Generator struct {
	secret   []byte
	issuer   string
	audience string
}

func NewGenerator(secret []byte, issuer, audience string) *Generator {
	return &Generator{
		secret:   secret,
		issuer:   issuer,
		audience: audience,
	}
}

// Generate creates a new signed token and returns it together with its JTI.
func (g *Generator) Generate(subject, email, role, purpose string, ttl time.Duration) (string, string, error) {
	if len(g.secret) == 0 {
		return "", "", fmt.Errorf("jwt generator has empty secret")
	}

	now := time.Now()
	jti := ulid.Make().String()

	claims := &Claims{
		Email:          email,
		Role:           role,
		SessionPurpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    g.issuer,
			Subject:   subject,
			Audience:  []string{g.audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        jti,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(g.secret)
	if err != nil {
		return "", "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, jti, nil
}
