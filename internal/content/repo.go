package content

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/starfeed/backend/pkg/db/models"
	"github.com/starfeed/backend/pkg/enums"
	"github.com/starfeed/backend/pkg/pagination"
)

// Pricing is the slice of a content item the star ledger needs to charge a view.
type Pricing struct {
	OwnerAccountID uuid.UUID
	StarPrice      int
	Status         enums.ContentStatus
}

// Repository exposes content persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository returns a content repository bound to the provided database.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) Create(ctx context.Context, item *models.ContentItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.ContentItem, error) {
	var item models.ContentItem
	if err := r.db.WithContext(ctx).First(&item, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// GetPricing returns nil without error when the item does not exist.
func (r *Repository) GetPricing(ctx context.Context, id uuid.UUID) (*Pricing, error) {
	var item models.ContentItem
	err := r.db.WithContext(ctx).
		Select("owner_account_id", "star_price", "status").
		First(&item, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &Pricing{
		OwnerAccountID: item.OwnerAccountID,
		StarPrice:      item.StarPrice,
		Status:         item.Status,
	}, nil
}

func (r *Repository) IncrementViewCount(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.ContentItem{}).
		Where("id = ?", id).
		UpdateColumn("view_count", gorm.Expr("view_count + 1")).Error
}

type feedQuery struct {
	Limit  int
	Cursor *pagination.Cursor
	Kind   *enums.ContentKind
	Owner  *uuid.UUID
}

// ListFeed returns active items newest first. The returned cursor points at
// the last row of the page when more rows remain.
func (r *Repository) ListFeed(ctx context.Context, params feedQuery) ([]models.ContentItem, *pagination.Cursor, error) {
	query := r.db.WithContext(ctx).
		Model(&models.ContentItem{}).
		Where("status = ?", enums.ContentStatusActive)
	if params.Kind != nil {
		query = query.Where("kind = ?", *params.Kind)
	}
	if params.Owner != nil {
		query = query.Where("owner_account_id = ?", *params.Owner)
	}

	var items []models.ContentItem
	if err := pagination.Keyset(query, params.Cursor, params.Limit).Find(&items).Error; err != nil {
		return nil, nil, err
	}
	items, next := pagination.Trim(items, params.Limit, func(c *models.ContentItem) pagination.Cursor {
		return pagination.Cursor{CreatedAt: c.CreatedAt, ID: c.ID}
	})
	return items, next, nil
}

// UpdateStatus moves an item between moderation states. The boolean is false
// when the item was missing or already in the requested status.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.ContentStatus, reason *string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.ContentItem{}).
		Where("id = ? AND status <> ?", id, status).
		Updates(map[string]any{
			"status":           status,
			"suspended_reason": reason,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

const viewerCountSubquery = `(
    SELECT COUNT(*) FROM content_views
    WHERE content_views.content_id = content_items.id
      AND content_views.viewer_account_id <> content_items.owner_account_id
)`

// ReconcileViewCounts rewrites view_count from content_views wherever the two
// drifted apart, returning the number of corrected items. Owners viewing
// their own items are not counted.
func (r *Repository) ReconcileViewCounts(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).Exec(
		"UPDATE content_items SET view_count = " + viewerCountSubquery +
			" WHERE view_count <> " + viewerCountSubquery,
	)
	return result.RowsAffected, result.Error
}
