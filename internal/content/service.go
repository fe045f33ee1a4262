package content

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/starfeed/backend/pkg/db/models"
	"github.com/starfeed/backend/pkg/enums"
	pkgerrors "github.com/starfeed/backend/pkg/errors"
	"github.com/starfeed/backend/pkg/logger"
	"github.com/starfeed/backend/pkg/outbox"
	"github.com/starfeed/backend/pkg/outbox/payloads"
	"github.com/starfeed/backend/pkg/pagination"
	"github.com/starfeed/backend/pkg/visibility"
)

const maxCaptionLength = 2200

// Item is the client-facing content representation. MediaURL is withheld
// while priced content is still locked for the caller.
type Item struct {
	ID              uuid.UUID           `json:"id"`
	OwnerAccountID  uuid.UUID           `json:"owner_account_id"`
	Kind            enums.ContentKind   `json:"kind"`
	Caption         string              `json:"caption"`
	MediaURL        string              `json:"media_url,omitempty"`
	StarPrice       int                 `json:"star_price"`
	Status          enums.ContentStatus `json:"status"`
	ViewCount       int                 `json:"view_count"`
	Locked          bool                `json:"locked"`
	SuspendedReason *string             `json:"suspended_reason,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
}

// CreateInput describes a new story or post.
type CreateInput struct {
	Kind      enums.ContentKind
	Caption   string
	MediaURL  string
	StarPrice int
}

// FeedParams configures feed pagination.
type FeedParams struct {
	Limit  int
	Cursor string
	Kind   *enums.ContentKind
	Owner  *uuid.UUID
}

// FeedResult wraps feed items and the cursor for the next page.
type FeedResult struct {
	Items  []Item `json:"items"`
	Cursor string `json:"cursor"`
}

// Viewer identifies who is asking, so locked state and visibility can be derived.
type Viewer struct {
	AccountID uuid.UUID
	IsAdmin   bool
}

// UnlockLookup reports which of the given items the viewer has already unlocked.
type UnlockLookup interface {
	UnlockedAmong(ctx context.Context, viewerID uuid.UUID, contentIDs []uuid.UUID) (map[uuid.UUID]bool, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.Event) error
}

// Service exposes content creation, feed reads and moderation.
type Service interface {
	Create(ctx context.Context, ownerID uuid.UUID, input CreateInput) (*Item, error)
	Get(ctx context.Context, viewer Viewer, contentID uuid.UUID) (*Item, error)
	ListFeed(ctx context.Context, viewer Viewer, params FeedParams) (*FeedResult, error)
	Suspend(ctx context.Context, adminID, contentID uuid.UUID, reason string) (*Item, error)
	Restore(ctx context.Context, adminID, contentID uuid.UUID) (*Item, error)
}

type service struct {
	repo         *Repository
	tx           txRunner
	outbox       outboxEmitter
	unlocks      UnlockLookup
	maxStarPrice int
	logg         *logger.Logger
}

// NewService wires the content service.
func NewService(repo *Repository, tx txRunner, emitter outboxEmitter, unlocks UnlockLookup, maxStarPrice int, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "content repository required")
	}
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	if emitter == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "outbox emitter required")
	}
	if unlocks == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "unlock lookup required")
	}
	if maxStarPrice <= 0 {
		maxStarPrice = 5
	}
	return &service{
		repo:         repo,
		tx:           tx,
		outbox:       emitter,
		unlocks:      unlocks,
		maxStarPrice: maxStarPrice,
		logg:         logg,
	}, nil
}

func (s *service) Create(ctx context.Context, ownerID uuid.UUID, input CreateInput) (*Item, error) {
	if ownerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner id required")
	}
	if !input.Kind.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "kind must be story or post")
	}
	mediaURL := strings.TrimSpace(input.MediaURL)
	if mediaURL == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "media_url required")
	}
	caption := strings.TrimSpace(input.Caption)
	if len(caption) > maxCaptionLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "caption too long")
	}
	if input.StarPrice < 0 || input.StarPrice > s.maxStarPrice {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "star_price out of range").
			WithDetails(map[string]any{"min": 0, "max": s.maxStarPrice})
	}

	item := &models.ContentItem{
		OwnerAccountID: ownerID,
		Kind:           input.Kind,
		Caption:        caption,
		MediaURL:       mediaURL,
		StarPrice:      input.StarPrice,
		Status:         enums.ContentStatusActive,
	}
	if err := s.repo.Create(ctx, item); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create content")
	}
	out := toItem(item, false)
	return &out, nil
}

func (s *service) Get(ctx context.Context, viewer Viewer, contentID uuid.UUID) (*Item, error) {
	item, err := s.load(ctx, contentID)
	if err != nil {
		return nil, err
	}
	gate := gateFor(item, viewer)
	if err := visibility.EnsureContentVisible(gate); err != nil {
		return nil, err
	}

	locked := false
	if visibility.NeedsUnlock(gate) {
		unlocked, err := s.unlocks.UnlockedAmong(ctx, viewer.AccountID, []uuid.UUID{item.ID})
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check unlock state")
		}
		locked = !unlocked[item.ID]
	}
	out := toItem(item, locked)
	return &out, nil
}

func (s *service) ListFeed(ctx context.Context, viewer Viewer, params FeedParams) (*FeedResult, error) {
	query := feedQuery{
		Limit: params.Limit,
		Kind:  params.Kind,
		Owner: params.Owner,
	}
	if params.Kind != nil && !params.Kind.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid kind filter")
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.ListFeed(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list feed")
	}

	priced := make([]uuid.UUID, 0, len(rows))
	for i := range rows {
		if visibility.NeedsUnlock(gateFor(&rows[i], viewer)) {
			priced = append(priced, rows[i].ID)
		}
	}
	unlocked := map[uuid.UUID]bool{}
	if len(priced) > 0 {
		unlocked, err = s.unlocks.UnlockedAmong(ctx, viewer.AccountID, priced)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check unlock state")
		}
	}

	items := make([]Item, 0, len(rows))
	for i := range rows {
		row := &rows[i]
		locked := visibility.NeedsUnlock(gateFor(row, viewer)) && !unlocked[row.ID]
		items = append(items, toItem(row, locked))
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return &FeedResult{Items: items, Cursor: cursor}, nil
}

func (s *service) Suspend(ctx context.Context, adminID, contentID uuid.UUID, reason string) (*Item, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "suspension reason required")
	}
	return s.moderate(ctx, adminID, contentID, enums.ContentStatusSuspended, &reason)
}

func (s *service) Restore(ctx context.Context, adminID, contentID uuid.UUID) (*Item, error) {
	return s.moderate(ctx, adminID, contentID, enums.ContentStatusActive, nil)
}

func (s *service) moderate(ctx context.Context, adminID, contentID uuid.UUID, status enums.ContentStatus, reason *string) (*Item, error) {
	if adminID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "admin id required")
	}

	var updated *models.ContentItem
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		item, err := repo.FindByID(ctx, contentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "content not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load content")
		}
		if item.Status == status {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "content already "+string(status))
		}

		changed, err := repo.UpdateStatus(ctx, contentID, status, reason)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update content status")
		}
		if !changed {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "content already "+string(status))
		}
		item.Status = status
		item.SuspendedReason = reason

		data := payloads.ContentModeratedEvent{
			ContentID:      item.ID,
			OwnerAccountID: item.OwnerAccountID,
			Kind:           item.Kind,
			Status:         status,
		}
		if reason != nil {
			data.Reason = *reason
		}
		if err := s.outbox.Emit(ctx, tx, outbox.Event{
			Type:        enums.EventContentModerated,
			Aggregate:   enums.AggregateContentItem,
			AggregateID: item.ID,
			Actor:       &outbox.Actor{AccountID: adminID, Role: "admin"},
			Data:        data,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit moderation event")
		}
		updated = item
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		logCtx := s.logg.WithContentID(ctx, contentID.String())
		logCtx = s.logg.WithField(logCtx, "status", string(status))
		s.logg.Info(logCtx, "content moderated")
	}
	out := toItem(updated, false)
	return &out, nil
}

func (s *service) load(ctx context.Context, contentID uuid.UUID) (*models.ContentItem, error) {
	if contentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "content id required")
	}
	item, err := s.repo.FindByID(ctx, contentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeContentUnavailable, "content unavailable")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load content")
	}
	return item, nil
}

func gateFor(item *models.ContentItem, viewer Viewer) visibility.ContentVisibilityInput {
	return visibility.ContentVisibilityInput{Item: item, ViewerID: viewer.AccountID, IsAdmin: viewer.IsAdmin}
}

func toItem(item *models.ContentItem, locked bool) Item {
	out := Item{
		ID:              item.ID,
		OwnerAccountID:  item.OwnerAccountID,
		Kind:            item.Kind,
		Caption:         item.Caption,
		MediaURL:        item.MediaURL,
		StarPrice:       item.StarPrice,
		Status:          item.Status,
		ViewCount:       item.ViewCount,
		Locked:          locked,
		SuspendedReason: item.SuspendedReason,
		CreatedAt:       item.CreatedAt,
	}
	if locked {
		out.MediaURL = ""
	}
	return out
}
