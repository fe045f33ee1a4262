package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Account holds the spendable star balance and the NGN wallet of a user. The
// id is the identity provider's user id.
type Account struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Username      string          `gorm:"column:username;type:text;not null;index"`
	StarBalance   int             `gorm:"column:star_balance;not null;default:0;check:chk_accounts_star_balance,star_balance >= 0"`
	WalletBalance decimal.Decimal `gorm:"column:wallet_balance;type:numeric(14,2);not null;default:0;check:chk_accounts_wallet_balance,wallet_balance >= 0"`
	IsAdmin       bool            `gorm:"column:is_admin;not null;default:false"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
