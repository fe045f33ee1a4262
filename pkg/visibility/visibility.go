package visibility

import (
	"github.com/google/uuid"

	"github.com/starfeed/backend/pkg/db/models"
	pkgerrors "github.com/starfeed/backend/pkg/errors"
)

// ContentVisibilityInput drives the shared checks for viewer-facing content reads.
type ContentVisibilityInput struct {
	Item     *models.ContentItem
	ViewerID uuid.UUID
	IsAdmin  bool
}

// Privileged reports whether the viewer bypasses moderation and pricing gates.
func (in ContentVisibilityInput) Privileged() bool {
	if in.IsAdmin {
		return true
	}
	return in.Item != nil && in.ViewerID != uuid.Nil && in.Item.OwnerAccountID == in.ViewerID
}

// EnsureContentVisible keeps suspended or deleted items away from everyone but their owner and admins.
func EnsureContentVisible(input ContentVisibilityInput) error {
	if input.Item == nil {
		return pkgerrors.New(pkgerrors.CodeContentUnavailable, "content unavailable")
	}
	if input.Item.Status.Viewable() || input.Privileged() {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeContentUnavailable, "content unavailable")
}

// NeedsUnlock reports whether the viewer must have paid for the item before its media is shown.
func NeedsUnlock(input ContentVisibilityInput) bool {
	if input.Item == nil || input.Item.StarPrice <= 0 {
		return false
	}
	return !input.Privileged()
}
