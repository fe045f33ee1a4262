package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/starfeed/backend/pkg/db/models"
	"github.com/starfeed/backend/pkg/pagination"
)

// Query selects one keyset page of an account's notifications.
type Query struct {
	AccountID  uuid.UUID
	Limit      int
	After      *pagination.Cursor
	UnreadOnly bool
}

// Store is the persistence NewService needs. *Repository satisfies it.
type Store interface {
	Create(ctx context.Context, n *models.Notification) error
	Page(ctx context.Context, q Query) ([]models.Notification, *pagination.Cursor, error)
	MarkRead(ctx context.Context, accountID, id uuid.UUID, at time.Time) (bool, error)
	MarkAllRead(ctx context.Context, accountID uuid.UUID, at time.Time) (int64, error)
}

// Repository reads and writes the notifications table.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) owned(ctx context.Context, accountID uuid.UUID) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Notification{}).Where("account_id = ?", accountID)
}

func (r *Repository) Create(ctx context.Context, n *models.Notification) error {
	return r.db.WithContext(ctx).Create(n).Error
}

func (r *Repository) Page(ctx context.Context, q Query) ([]models.Notification, *pagination.Cursor, error) {
	tx := r.owned(ctx, q.AccountID)
	if q.UnreadOnly {
		tx = tx.Where("read_at IS NULL")
	}
	var rows []models.Notification
	if err := pagination.Keyset(tx, q.After, q.Limit).Find(&rows).Error; err != nil {
		return nil, nil, err
	}
	rows, next := pagination.Trim(rows, q.Limit, func(n *models.Notification) pagination.Cursor {
		return pagination.Cursor{CreatedAt: n.CreatedAt, ID: n.ID}
	})
	return rows, next, nil
}

// MarkRead stamps read_at once and reports whether the account owns the row.
// COALESCE keeps the first read time while still matching already-read rows,
// so one statement answers both questions.
func (r *Repository) MarkRead(ctx context.Context, accountID, id uuid.UUID, at time.Time) (bool, error) {
	res := r.owned(ctx, accountID).
		Where("id = ?", id).
		UpdateColumn("read_at", gorm.Expr("COALESCE(read_at, ?)", at))
	return res.RowsAffected > 0, res.Error
}

func (r *Repository) MarkAllRead(ctx context.Context, accountID uuid.UUID, at time.Time) (int64, error) {
	res := r.owned(ctx, accountID).Where("read_at IS NULL").UpdateColumn("read_at", at)
	return res.RowsAffected, res.Error
}

// DeleteOlderThan purges read notifications created before cutoff. Unread
// rows are kept regardless of age.
func (r *Repository) DeleteOlderThan(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	if tx == nil {
		tx = r.db
	}
	res := tx.WithContext(ctx).
		Where("read_at IS NOT NULL AND created_at < ?", cutoff).
		Delete(&models.Notification{})
	return res.RowsAffected, res.Error
}
