// Package auth verifies access tokens minted by the identity provider. The
// API never issues tokens itself.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/starfeed/backend/pkg/config"
)

// clockSkew tolerated on exp/nbf/iat between us and the identity provider.
const clockSkew = 30 * time.Second

// Claims is the part of the provider's JWT the API reads. Subject is the
// account id.
type Claims struct {
	Email    string `json:"email,omitempty"`
	Username string `json:"preferred_username,omitempty"`
	Role     string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

func (c *Claims) AccountID() (uuid.UUID, error) {
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("subject %q is not an account id: %w", c.Subject, err)
	}
	return id, nil
}

// IsAdmin never matches an empty role name.
func (c *Claims) IsAdmin(adminRole string) bool {
	return adminRole != "" && c.Role == adminRole
}

// ParseAccessToken checks signature (HS256 only), expiry, and the configured
// issuer and audience, then that the subject is an account id.
func ParseAccessToken(cfg config.AuthConfig, raw string) (*Claims, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("jwt secret is required")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(clockSkew),
	}
	if cfg.JWTIssuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.JWTIssuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	var claims Claims
	secret := []byte(cfg.JWTSecret)
	if _, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) { return secret, nil }, opts...); err != nil {
		return nil, err
	}
	if _, err := claims.AccountID(); err != nil {
		return nil, err
	}
	return &claims, nil
}
