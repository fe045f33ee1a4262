package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/starfeed/backend/pkg/db/models"
	"github.com/starfeed/backend/pkg/pagination"
)

// TransactionRepository persists the append-only star transaction audit rows.
type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) WithTx(tx *gorm.DB) *TransactionRepository {
	if tx == nil {
		return r
	}
	return &TransactionRepository{db: tx}
}

func (r *TransactionRepository) Create(ctx context.Context, txn *models.StarTransaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

type listTransactionsParams struct {
	AccountID uuid.UUID
	Limit     int
	Cursor    *pagination.Cursor
}

// ListForAccount returns transactions where the account earned or spent,
// newest first.
func (r *TransactionRepository) ListForAccount(ctx context.Context, params listTransactionsParams) ([]models.StarTransaction, *pagination.Cursor, error) {
	query := r.db.WithContext(ctx).
		Model(&models.StarTransaction{}).
		Where("owner_account_id = ? OR viewer_account_id = ?", params.AccountID, params.AccountID)

	var rows []models.StarTransaction
	if err := pagination.Keyset(query, params.Cursor, params.Limit).Find(&rows).Error; err != nil {
		return nil, nil, err
	}
	rows, next := pagination.Trim(rows, params.Limit, func(t *models.StarTransaction) pagination.Cursor {
		return pagination.Cursor{CreatedAt: t.CreatedAt, ID: t.ID}
	})
	return rows, next, nil
}

type revenueRow struct {
	Total decimal.Decimal
	Count int64
	Stars int64
}

// SumPlatformEarn totals the platform share of transactions created at or after since.
func (r *TransactionRepository) SumPlatformEarn(ctx context.Context, since time.Time) (revenueRow, error) {
	var row revenueRow
	err := r.db.WithContext(ctx).
		Model(&models.StarTransaction{}).
		Select("COALESCE(SUM(platform_earn_ngn), 0) AS total, COUNT(*) AS count, COALESCE(SUM(stars_spent), 0) AS stars").
		Where("created_at >= ?", since).
		Scan(&row).Error
	return row, err
}
