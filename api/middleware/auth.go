package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/starfeed/backend/api/responses"
	pkgauth "github.com/starfeed/backend/pkg/auth"
	"github.com/starfeed/backend/pkg/config"
	pkgerrors "github.com/starfeed/backend/pkg/errors"
	"github.com/starfeed/backend/pkg/logger"
)

// identity is the caller as established by Auth.
type identity struct {
	accountID uuid.UUID
	username  string
	admin     bool
}

type identityKey struct{}

func identityFrom(ctx context.Context) identity {
	if ctx == nil {
		return identity{}
	}
	id, _ := ctx.Value(identityKey{}).(identity)
	return id
}

// AccountIDFromContext returns the authenticated account, or uuid.Nil.
func AccountIDFromContext(ctx context.Context) uuid.UUID { return identityFrom(ctx).accountID }

func UsernameFromContext(ctx context.Context) string { return identityFrom(ctx).username }

func IsAdminFromContext(ctx context.Context) bool { return identityFrom(ctx).admin }

// WithAccount stores an authenticated caller on ctx. Auth uses it; so do
// handler tests.
func WithAccount(ctx context.Context, accountID uuid.UUID, username string, isAdmin bool) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, identityKey{}, identity{accountID: accountID, username: username, admin: isAdmin})
}

// Auth verifies the identity provider's bearer token.
func Auth(cfg config.AuthConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			accountID, claims, err := authenticate(cfg, r.Header.Get("Authorization"))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}

			admin := claims.IsAdmin(cfg.AdminClaim)
			ctx := WithAccount(r.Context(), accountID, claims.Username, admin)
			if logg != nil {
				ctx = logg.WithAccountID(ctx, accountID.String())
				if admin {
					ctx = logg.WithActorRole(ctx, "admin")
				}
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func authenticate(cfg config.AuthConfig, header string) (uuid.UUID, *pkgauth.Claims, error) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	token = strings.TrimSpace(token)
	if !ok || !strings.EqualFold(scheme, "bearer") || token == "" {
		return uuid.Nil, nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	claims, err := pkgauth.ParseAccessToken(cfg, token)
	if err != nil {
		return uuid.Nil, nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token")
	}
	accountID, err := claims.AccountID()
	if err != nil {
		return uuid.Nil, nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid subject")
	}
	return accountID, claims, nil
}

// RequireAdmin must run after Auth.
func RequireAdmin(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !IsAdminFromContext(r.Context()) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
