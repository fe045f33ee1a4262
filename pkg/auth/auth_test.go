package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/starfeed/backend/pkg/config"
)

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret:  "secret",
		JWTIssuer:  "https://auth.starfeed.test",
		Audience:   "authenticated",
		AdminClaim: "admin",
	}
}

func signToken(t *testing.T, secret string, claims Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func validClaims(cfg config.AuthConfig, subject string, now time.Time) Claims {
	return Claims{
		Email:    "ada@example.com",
		Username: "ada",
		Role:     "authenticated",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    cfg.JWTIssuer,
			Audience:  jwt.ClaimStrings{cfg.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(30 * time.Minute)),
		},
	}
}

func TestParseAccessToken(t *testing.T) {
	cfg := testAuthConfig()
	accountID := uuid.New()
	token := signToken(t, cfg.JWTSecret, validClaims(cfg, accountID.String(), time.Now()))

	claims, err := ParseAccessToken(cfg, token)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	got, err := claims.AccountID()
	if err != nil {
		t.Fatalf("account id: %v", err)
	}
	if got != accountID {
		t.Fatalf("expected account %s, got %s", accountID, got)
	}
	if claims.Username != "ada" {
		t.Fatalf("unexpected username %q", claims.Username)
	}
	if claims.IsAdmin(cfg.AdminClaim) {
		t.Fatalf("authenticated role should not be admin")
	}
}

func TestParseAccessTokenAdminRole(t *testing.T) {
	cfg := testAuthConfig()
	c := validClaims(cfg, uuid.NewString(), time.Now())
	c.Role = "admin"

	claims, err := ParseAccessToken(cfg, signToken(t, cfg.JWTSecret, c))
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if !claims.IsAdmin(cfg.AdminClaim) {
		t.Fatalf("expected admin role")
	}
	if claims.IsAdmin("") {
		t.Fatalf("empty admin role must never match")
	}
}

func TestParseAccessTokenInvalidSignature(t *testing.T) {
	cfg := testAuthConfig()
	token := signToken(t, "other-secret", validClaims(cfg, uuid.NewString(), time.Now()))

	if _, err := ParseAccessToken(cfg, token); err == nil {
		t.Fatal("expected invalid signature error")
	}
}

func TestParseAccessTokenExpired(t *testing.T) {
	cfg := testAuthConfig()
	token := signToken(t, cfg.JWTSecret, validClaims(cfg, uuid.NewString(), time.Now().Add(-time.Hour)))

	_, err := ParseAccessToken(cfg, token)
	if err == nil {
		t.Fatal("expected expiration error")
	}
	if !strings.Contains(err.Error(), "expired") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestParseAccessTokenWrongIssuer(t *testing.T) {
	cfg := testAuthConfig()
	c := validClaims(cfg, uuid.NewString(), time.Now())
	c.Issuer = "https://elsewhere.test"

	if _, err := ParseAccessToken(cfg, signToken(t, cfg.JWTSecret, c)); err == nil {
		t.Fatal("expected issuer mismatch error")
	}
}

func TestParseAccessTokenRejectsNonUUIDSubject(t *testing.T) {
	cfg := testAuthConfig()
	token := signToken(t, cfg.JWTSecret, validClaims(cfg, "not-a-uuid", time.Now()))

	if _, err := ParseAccessToken(cfg, token); err == nil {
		t.Fatal("expected subject error")
	}
}

func TestParseAccessTokenRequiresSecret(t *testing.T) {
	if _, err := ParseAccessToken(config.AuthConfig{}, "x.y.z"); err == nil {
		t.Fatal("expected missing secret error")
	}
}

func TestParseAccessTokenToleratesSmallClockSkew(t *testing.T) {
	cfg := testAuthConfig()
	c := validClaims(cfg, uuid.NewString(), time.Now())
	c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-10 * time.Second))

	if _, err := ParseAccessToken(cfg, signToken(t, cfg.JWTSecret, c)); err != nil {
		t.Fatalf("expected token inside skew window to pass: %v", err)
	}
}

func TestParseAccessTokenRejectsOtherAlgorithms(t *testing.T) {
	cfg := testAuthConfig()
	token := jwt.NewWithClaims(jwt.SigningMethodHS512, validClaims(cfg, uuid.NewString(), time.Now()))
	signed, err := token.SignedString([]byte(cfg.JWTSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := ParseAccessToken(cfg, signed); err == nil {
		t.Fatal("expected HS512 token to be rejected")
	}
}
