package controllers

import (
	"net/http"
	"strings"

	"github.com/starfeed/backend/api/middleware"
	"github.com/starfeed/backend/api/responses"
	"github.com/starfeed/backend/api/validators"
	"github.com/starfeed/backend/internal/accounts"
	"github.com/starfeed/backend/internal/content"
	"github.com/starfeed/backend/pkg/enums"
	pkgerrors "github.com/starfeed/backend/pkg/errors"
	"github.com/starfeed/backend/pkg/logger"
)

const maxCaptionInput = 2200

type createContentRequest struct {
	Kind      string `json:"kind" validate:"required,oneof=story post"`
	Caption   string `json:"caption" validate:"max=2200"`
	MediaURL  string `json:"media_url" validate:"required,url"`
	StarPrice *int   `json:"star_price" validate:"required,min=0,max=5"`
}

// CreateContent publishes a story or post owned by the caller. The price is
// fixed at creation.
func CreateContent(svc content.Service, accountsSvc accounts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil || accountsSvc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "content service unavailable"))
			return
		}

		ownerID, err := requireAccount(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body createContentRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		kind, err := enums.ParseContentKind(body.Kind)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid kind"))
			return
		}

		if _, err := accountsSvc.Ensure(r.Context(), accounts.EnsureInput{
			AccountID: ownerID,
			Username:  middleware.UsernameFromContext(r.Context()),
			IsAdmin:   middleware.IsAdminFromContext(r.Context()),
		}); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		item, err := svc.Create(r.Context(), ownerID, content.CreateInput{
			Kind:      kind,
			Caption:   validators.SanitizeString(body.Caption, maxCaptionInput),
			MediaURL:  validators.SanitizeString(body.MediaURL, 0),
			StarPrice: *body.StarPrice,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, item)
	}
}

// GetContent returns one content item. Media stays hidden until the caller
// has unlocked priced content.
func GetContent(svc content.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "content service unavailable"))
			return
		}

		viewer, err := viewerFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		contentID, err := uuidParam(r, "contentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		item, err := svc.Get(r.Context(), viewer, contentID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, item)
	}
}

// ListFeed returns active content newest first.
func ListFeed(svc content.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "content service unavailable"))
			return
		}

		viewer, err := viewerFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", defaultPageSize, 1, maxPageSize)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params := content.FeedParams{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		}

		if raw := strings.TrimSpace(r.URL.Query().Get("kind")); raw != "" {
			kind, err := enums.ParseContentKind(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid kind"))
				return
			}
			params.Kind = &kind
		}
		owner, err := validators.ParseQueryUUID(r, "owner")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params.Owner = owner

		resp, err := svc.ListFeed(r.Context(), viewer, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, resp)
	}
}

func viewerFromRequest(r *http.Request) (content.Viewer, error) {
	accountID, err := requireAccount(r)
	if err != nil {
		return content.Viewer{}, err
	}
	return content.Viewer{
		AccountID: accountID,
		IsAdmin:   middleware.IsAdminFromContext(r.Context()),
	}, nil
}
