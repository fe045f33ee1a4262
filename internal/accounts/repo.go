package accounts

import (
	"bytes"
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/starfeed/backend/pkg/db/models"
)

// Repository exposes account persistence, including the balance mutations the
// star ledger performs inside its transaction.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs an accounts repo bound to the provided GORM DB.
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

// Ensure inserts the account when missing and returns the stored row.
func (r *Repository) Ensure(ctx context.Context, id uuid.UUID, username string) (*models.Account, error) {
	account := &models.Account{
		ID:            id,
		Username:      username,
		WalletBalance: decimal.Zero,
	}
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(account).Error; err != nil {
		return nil, err
	}
	return r.FindByID(ctx, id)
}

// FindByID loads an account by id.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	var account models.Account
	if err := r.db.WithContext(ctx).First(&account, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

// GetStarBalance returns the spendable stars of an account.
func (r *Repository) GetStarBalance(ctx context.Context, id uuid.UUID) (int, error) {
	var account models.Account
	if err := r.db.WithContext(ctx).
		Select("star_balance").
		First(&account, "id = ?", id).Error; err != nil {
		return 0, err
	}
	return account.StarBalance, nil
}

// LockForUpdate row-locks the given accounts in ascending id order so two
// transactions touching the same pair never wait on each other in a cycle.
// Missing ids are skipped.
func (r *Repository) LockForUpdate(ctx context.Context, ids ...uuid.UUID) ([]models.Account, error) {
	ordered := uniqueSorted(ids)
	locked := make([]models.Account, 0, len(ordered))
	for _, id := range ordered {
		var account models.Account
		err := r.db.WithContext(ctx).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).
			Limit(1).
			Find(&account).Error
		if err != nil {
			return nil, err
		}
		if account.ID == uuid.Nil {
			continue
		}
		locked = append(locked, account)
	}
	return locked, nil
}

// AdjustStarBalance adds delta to the star balance unless the result would be
// negative. The boolean is false when the guard rejected the update.
func (r *Repository) AdjustStarBalance(ctx context.Context, id uuid.UUID, delta int) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("id = ? AND star_balance + ? >= 0", id, delta).
		UpdateColumn("star_balance", gorm.Expr("star_balance + ?", delta))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// AdjustWalletBalance adds delta NGN to the wallet balance, with the same
// non-negative guard as stars.
func (r *Repository) AdjustWalletBalance(ctx context.Context, id uuid.UUID, delta decimal.Decimal) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("id = ? AND wallet_balance + ? >= 0", id, delta).
		UpdateColumn("wallet_balance", gorm.Expr("wallet_balance + ?", delta))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// SetAdmin toggles the admin flag mirrored from the identity provider.
func (r *Repository) SetAdmin(ctx context.Context, id uuid.UUID, isAdmin bool) error {
	return r.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("id = ? AND is_admin <> ?", id, isAdmin).
		UpdateColumn("is_admin", isAdmin).Error
}

func uniqueSorted(ids []uuid.UUID) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(ids))
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i][:], out[j][:]) < 0
	})
	return out
}
