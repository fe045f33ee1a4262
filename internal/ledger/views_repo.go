package ledger

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/starfeed/backend/pkg/db/models"
)

// ViewRepository stores view records. The unique (content_id,
// viewer_account_id) index is what makes a view count at most once.
type ViewRepository struct {
	db *gorm.DB
}

func NewViewRepository(db *gorm.DB) *ViewRepository {
	return &ViewRepository{db: db}
}

func (r *ViewRepository) WithTx(tx *gorm.DB) *ViewRepository {
	if tx == nil {
		return r
	}
	return &ViewRepository{db: tx}
}

func (r *ViewRepository) Exists(ctx context.Context, contentID, viewerID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ContentView{}).
		Where("content_id = ? AND viewer_account_id = ?", contentID, viewerID).
		Limit(1).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Insert claims the (content, viewer) pair. It returns false, without error,
// when another transaction already holds the pair.
func (r *ViewRepository) Insert(ctx context.Context, view *models.ContentView) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "content_id"}, {Name: "viewer_account_id"}},
			DoNothing: true,
		}).
		Create(view)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// UnlockedAmong returns the subset of contentIDs the viewer holds a view record for.
func (r *ViewRepository) UnlockedAmong(ctx context.Context, viewerID uuid.UUID, contentIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	out := make(map[uuid.UUID]bool, len(contentIDs))
	if viewerID == uuid.Nil || len(contentIDs) == 0 {
		return out, nil
	}
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.ContentView{}).
		Where("viewer_account_id = ? AND content_id IN ?", viewerID, contentIDs).
		Pluck("content_id", &ids).Error
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}
