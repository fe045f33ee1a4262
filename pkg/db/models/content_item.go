package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/starfeed/backend/pkg/enums"
)

// ContentItem is a story or post, optionally gated behind a star price.
type ContentItem struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OwnerAccountID  uuid.UUID           `gorm:"column:owner_account_id;type:uuid;not null;index"`
	Kind            enums.ContentKind   `gorm:"column:kind;type:content_kind;not null"`
	Caption         string              `gorm:"column:caption;type:text;not null;default:''"`
	MediaURL        string              `gorm:"column:media_url;type:text;not null"`
	StarPrice       int                 `gorm:"column:star_price;not null;default:0;check:chk_content_items_star_price,star_price BETWEEN 0 AND 5"`
	Status          enums.ContentStatus `gorm:"column:status;type:content_status;not null;default:'active'"`
	ViewCount       int                 `gorm:"column:view_count;not null;default:0"`
	SuspendedReason *string             `gorm:"column:suspended_reason;type:text"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *ContentItem) BeforeCreate(_ *gorm.DB) error {
	ensureID(&c.ID)
	return nil
}
