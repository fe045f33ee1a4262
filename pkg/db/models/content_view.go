package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ContentView proves a viewer unlocked a content item. At most one row exists
// per (content, viewer) pair; the unique index is the ledger's idempotency key.
type ContentView struct {
	ID              uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ContentID       uuid.UUID `gorm:"column:content_id;type:uuid;not null;uniqueIndex:ux_content_views_content_viewer,priority:1"`
	ViewerAccountID uuid.UUID `gorm:"column:viewer_account_id;type:uuid;not null;uniqueIndex:ux_content_views_content_viewer,priority:2"`
	StarsSpent      int       `gorm:"column:stars_spent;not null;default:0;check:chk_content_views_stars_spent,stars_spent >= 0"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (v *ContentView) BeforeCreate(_ *gorm.DB) error {
	ensureID(&v.ID)
	return nil
}
