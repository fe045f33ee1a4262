package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/starfeed/backend/api/responses"
	"github.com/starfeed/backend/api/validators"
	"github.com/starfeed/backend/internal/accounts"
	"github.com/starfeed/backend/internal/content"
	"github.com/starfeed/backend/internal/ledger"
	"github.com/starfeed/backend/pkg/db/models"
	pkgerrors "github.com/starfeed/backend/pkg/errors"
	"github.com/starfeed/backend/pkg/logger"
)

const defaultRevenueWindow = 30 * 24 * time.Hour

type suspendContentRequest struct {
	Reason string `json:"reason" validate:"required,min=3,max=500"`
}

type grantStarsRequest struct {
	Stars int `json:"stars" validate:"required,min=1,max=10000"`
}

// DLQLister reads terminal outbox publish failures.
type DLQLister interface {
	DeadLetters(ctx context.Context, limit int) ([]models.OutboxDLQ, error)
}

func AdminSuspendContent(svc content.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "content service unavailable"))
			return
		}
		adminID, err := requireAccount(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		contentID, err := uuidParam(r, "contentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body suspendContentRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		item, err := svc.Suspend(r.Context(), adminID, contentID, validators.SanitizeString(body.Reason, 500))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, item)
	}
}

func AdminRestoreContent(svc content.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "content service unavailable"))
			return
		}
		adminID, err := requireAccount(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		contentID, err := uuidParam(r, "contentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		item, err := svc.Restore(r.Context(), adminID, contentID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, item)
	}
}

// AdminPlatformRevenue sums the platform share since the given RFC3339
// timestamp, defaulting to the last 30 days.
func AdminPlatformRevenue(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}

		since, err := validators.ParseQueryTime(r, "since", time.Now().UTC().Add(-defaultRevenueWindow))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		revenue, err := svc.PlatformRevenue(r.Context(), since)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, revenue)
	}
}

func AdminGrantStars(svc accounts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "accounts service unavailable"))
			return
		}
		accountID, err := uuidParam(r, "accountId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body grantStarsRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := logg.WithAccountID(r.Context(), accountID.String())
		balance, err := svc.GrantStars(ctx, accountID, body.Stars)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		logg.Info(logg.WithField(ctx, "stars", body.Stars), "admin.stars_granted")
		responses.WriteSuccess(w, balance)
	}
}

func AdminListOutboxDLQ(repo DLQLister, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "outbox dlq unavailable"))
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 200)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rows, err := repo.DeadLetters(r.Context(), limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list outbox dlq"))
			return
		}
		responses.WriteSuccess(w, map[string]any{"items": rows})
	}
}
