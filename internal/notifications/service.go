package notifications

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/starfeed/backend/pkg/db/models"
	"github.com/starfeed/backend/pkg/enums"
	pkgerrors "github.com/starfeed/backend/pkg/errors"
	"github.com/starfeed/backend/pkg/pagination"
)

// Message is what producers hand to Notify.
type Message struct {
	Type  enums.NotificationType
	Title string
	Body  string
	Link  string
}

func (m Message) record(accountID uuid.UUID) (*models.Notification, error) {
	if !m.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid notification type")
	}
	n := &models.Notification{
		AccountID: accountID,
		Type:      m.Type,
		Title:     strings.TrimSpace(m.Title),
		Message:   strings.TrimSpace(m.Body),
	}
	if n.Title == "" || n.Message == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "notification title and body required")
	}
	if link := strings.TrimSpace(m.Link); link != "" {
		n.Link = &link
	}
	return n, nil
}

// Service delivers notifications and serves the inbox endpoints.
type Service interface {
	Notify(ctx context.Context, accountID uuid.UUID, message Message) error
	List(ctx context.Context, params ListParams) (*ListResult, error)
	MarkRead(ctx context.Context, accountID, notificationID uuid.UUID) error
	MarkAllRead(ctx context.Context, accountID uuid.UUID) (int64, error)
}

type ListParams struct {
	AccountID  uuid.UUID
	Limit      int
	Cursor     string
	UnreadOnly bool
}

// ListResult carries one page; Cursor is empty on the last page.
type ListResult struct {
	Items  []models.Notification `json:"items"`
	Cursor string                `json:"cursor"`
}

type service struct {
	store Store
	now   func() time.Time
}

func NewService(store Store) (Service, error) {
	if store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications store required")
	}
	return &service{store: store, now: func() time.Time { return time.Now().UTC() }}, nil
}

var errNoAccount = pkgerrors.New(pkgerrors.CodeValidation, "account id required")

func (s *service) Notify(ctx context.Context, accountID uuid.UUID, message Message) error {
	if accountID == uuid.Nil {
		return errNoAccount
	}
	n, err := message.record(accountID)
	if err != nil {
		return err
	}
	if err := s.store.Create(ctx, n); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create notification")
	}
	return nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.AccountID == uuid.Nil {
		return nil, errNoAccount
	}
	after, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	rows, next, err := s.store.Page(ctx, Query{
		AccountID:  params.AccountID,
		Limit:      params.Limit,
		After:      after,
		UnreadOnly: params.UnreadOnly,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list notifications")
	}

	out := &ListResult{Items: rows}
	if out.Items == nil {
		out.Items = []models.Notification{}
	}
	if next != nil {
		out.Cursor = pagination.EncodeCursor(*next)
	}
	return out, nil
}

func (s *service) MarkRead(ctx context.Context, accountID, notificationID uuid.UUID) error {
	if accountID == uuid.Nil {
		return errNoAccount
	}
	if notificationID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "notification id required")
	}
	found, err := s.store.MarkRead(ctx, accountID, notificationID, s.now())
	switch {
	case err != nil:
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notification read")
	case !found:
		return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
	}
	return nil
}

func (s *service) MarkAllRead(ctx context.Context, accountID uuid.UUID) (int64, error) {
	if accountID == uuid.Nil {
		return 0, errNoAccount
	}
	count, err := s.store.MarkAllRead(ctx, accountID, s.now())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notifications read")
	}
	return count, nil
}
