package controllers

import (
	"net/http"

	"github.com/starfeed/backend/api/middleware"
	"github.com/starfeed/backend/api/responses"
	"github.com/starfeed/backend/internal/accounts"
	"github.com/starfeed/backend/internal/ledger"
	pkgerrors "github.com/starfeed/backend/pkg/errors"
	"github.com/starfeed/backend/pkg/logger"
)

// RecordView unlocks a content item for the caller, charging stars when the
// item is priced and not yet viewed.
func RecordView(svc ledger.Service, accountsSvc accounts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil || accountsSvc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}

		viewerID, err := requireAccount(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		contentID, err := uuidParam(r, "contentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if _, err := accountsSvc.Ensure(r.Context(), accounts.EnsureInput{
			AccountID: viewerID,
			Username:  middleware.UsernameFromContext(r.Context()),
			IsAdmin:   middleware.IsAdminFromContext(r.Context()),
		}); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := logg.WithContentID(r.Context(), contentID.String())
		outcome, err := svc.RecordView(ctx, contentID, viewerID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if rejection := outcomeError(outcome); rejection != nil {
			responses.WriteError(ctx, logg, w, rejection)
			return
		}
		responses.WriteSuccess(w, outcome)
	}
}

// ViewStatus reports whether the caller has unlocked a content item.
func ViewStatus(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}

		viewerID, err := requireAccount(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		contentID, err := uuidParam(r, "contentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		viewed, err := svc.HasViewed(r.Context(), contentID, viewerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"content_id": contentID,
			"viewed":     viewed,
		})
	}
}

func outcomeError(outcome *ledger.ViewOutcome) error {
	if outcome == nil || outcome.Success {
		return nil
	}
	switch outcome.Error {
	case ledger.RejectContentUnavailable:
		return pkgerrors.New(pkgerrors.CodeContentUnavailable, "content unavailable").
			WithDetails(map[string]any{"error": outcome.Error})
	case ledger.RejectInsufficientStars:
		return pkgerrors.New(pkgerrors.CodeInsufficientStars, "insufficient stars").
			WithDetails(map[string]any{"error": outcome.Error})
	}
	return pkgerrors.New(pkgerrors.CodeInternal, "view not recorded")
}
