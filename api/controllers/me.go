package controllers

import (
	"net/http"
	"strings"

	"github.com/starfeed/backend/api/middleware"
	"github.com/starfeed/backend/api/responses"
	"github.com/starfeed/backend/api/validators"
	"github.com/starfeed/backend/internal/accounts"
	"github.com/starfeed/backend/internal/ledger"
	pkgerrors "github.com/starfeed/backend/pkg/errors"
	"github.com/starfeed/backend/pkg/logger"
)

// GetMe provisions the caller's account on first sign-in and returns balances.
func GetMe(svc accounts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "accounts service unavailable"))
			return
		}

		accountID, err := requireAccount(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		balance, err := svc.Ensure(r.Context(), accounts.EnsureInput{
			AccountID: accountID,
			Username:  middleware.UsernameFromContext(r.Context()),
			IsAdmin:   middleware.IsAdminFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, balance)
	}
}

// ListMyTransactions pages through star transactions the caller earned from or spent on.
func ListMyTransactions(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}

		accountID, err := requireAccount(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", defaultPageSize, 1, maxPageSize)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp, err := svc.ListTransactions(r.Context(), ledger.ListTransactionsParams{
			AccountID: accountID,
			Limit:     limit,
			Cursor:    strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, resp)
	}
}
