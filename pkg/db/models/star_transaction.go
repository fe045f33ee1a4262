package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// StarTransaction is the append-only audit row of one charged view and its
// 60/20/20 split in NGN.
type StarTransaction struct {
	ID              uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	ContentID       uuid.UUID       `gorm:"column:content_id;type:uuid;not null;uniqueIndex:ux_star_transactions_content_viewer,priority:1"`
	OwnerAccountID  uuid.UUID       `gorm:"column:owner_account_id;type:uuid;not null;index"`
	ViewerAccountID uuid.UUID       `gorm:"column:viewer_account_id;type:uuid;not null;index;uniqueIndex:ux_star_transactions_content_viewer,priority:2"`
	StarsSpent      int             `gorm:"column:stars_spent;not null;check:chk_star_transactions_stars_spent,stars_spent > 0"`
	OwnerEarnNGN    decimal.Decimal `gorm:"column:owner_earn_ngn;type:numeric(14,2);not null"`
	ViewerEarnNGN   decimal.Decimal `gorm:"column:viewer_earn_ngn;type:numeric(14,2);not null"`
	PlatformEarnNGN decimal.Decimal `gorm:"column:platform_earn_ngn;type:numeric(14,2);not null"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (t *StarTransaction) BeforeCreate(_ *gorm.DB) error {
	ensureID(&t.ID)
	return nil
}
