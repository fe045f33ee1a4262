package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/starfeed/backend/api/responses"
	"github.com/starfeed/backend/api/validators"
	"github.com/starfeed/backend/internal/notifications"
	pkgerrors "github.com/starfeed/backend/pkg/errors"
	"github.com/starfeed/backend/pkg/logger"
)

// inbox adapts an account-scoped notifications call into a handler that
// writes its result as the success payload.
func inbox(svc notifications.Service, logg *logger.Logger, call func(r *http.Request, accountID uuid.UUID) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var (
			out any
			err error
		)
		if svc == nil {
			err = pkgerrors.New(pkgerrors.CodeInternal, "notifications service unavailable")
		} else if accountID, authErr := requireAccount(r); authErr != nil {
			err = authErr
		} else {
			out, err = call(r, accountID)
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, out)
	}
}

// ListNotifications pages the caller's inbox, newest first.
// Query: limit, cursor, unreadOnly.
func ListNotifications(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return inbox(svc, logg, func(r *http.Request, accountID uuid.UUID) (any, error) {
		limit, err := validators.ParseQueryInt(r, "limit", defaultPageSize, 1, maxPageSize)
		if err != nil {
			return nil, err
		}
		unreadOnly, err := validators.ParseQueryBool(r, "unreadOnly")
		if err != nil {
			return nil, err
		}
		return svc.List(r.Context(), notifications.ListParams{
			AccountID:  accountID,
			Limit:      limit,
			Cursor:     strings.TrimSpace(r.URL.Query().Get("cursor")),
			UnreadOnly: unreadOnly,
		})
	})
}

func MarkNotificationRead(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return inbox(svc, logg, func(r *http.Request, accountID uuid.UUID) (any, error) {
		id, err := uuidParam(r, "notificationId")
		if err != nil {
			return nil, err
		}
		if err := svc.MarkRead(r.Context(), accountID, id); err != nil {
			return nil, err
		}
		return map[string]bool{"read": true}, nil
	})
}

func MarkAllNotificationsRead(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return inbox(svc, logg, func(r *http.Request, accountID uuid.UUID) (any, error) {
		updated, err := svc.MarkAllRead(r.Context(), accountID)
		if err != nil {
			return nil, err
		}
		return map[string]int64{"updated": updated}, nil
	})
}
