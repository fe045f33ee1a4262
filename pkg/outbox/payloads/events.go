package payloads

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/starfeed/backend/pkg/enums"
)

// StarViewChargedEvent is emitted once per charged view, in the same
// transaction as the balance transfer.
type StarViewChargedEvent struct {
	TransactionID   uuid.UUID       `json:"transactionId"`
	ContentID       uuid.UUID       `json:"contentId"`
	OwnerAccountID  uuid.UUID       `json:"ownerAccountId"`
	ViewerAccountID uuid.UUID       `json:"viewerAccountId"`
	StarsSpent      int             `json:"starsSpent"`
	OwnerEarnNGN    decimal.Decimal `json:"ownerEarnNgn"`
	ViewerEarnNGN   decimal.Decimal `json:"viewerEarnNgn"`
	PlatformEarnNGN decimal.Decimal `json:"platformEarnNgn"`
}

// ContentModeratedEvent is emitted when an admin suspends or restores content.
type ContentModeratedEvent struct {
	ContentID      uuid.UUID           `json:"contentId"`
	OwnerAccountID uuid.UUID           `json:"ownerAccountId"`
	Kind           enums.ContentKind   `json:"kind"`
	Status         enums.ContentStatus `json:"status"`
	Reason         string              `json:"reason,omitempty"`
}
