package accounts

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/starfeed/backend/pkg/db/dbtest"
)

func TestRepositoryEnsureIsIdempotent(t *testing.T) {
	client := dbtest.Open(t)
	repo := NewRepository(client.DB())
	ctx := context.Background()
	id := uuid.New()

	first, err := repo.Ensure(ctx, id, "ada")
	require.NoError(t, err)
	assert.Equal(t, "ada", first.Username)
	assert.Equal(t, 0, first.StarBalance)
	assert.True(t, first.WalletBalance.IsZero())

	_, err = repo.AdjustStarBalance(ctx, id, 7)
	require.NoError(t, err)

	second, err := repo.Ensure(ctx, id, "renamed")
	require.NoError(t, err)
	assert.Equal(t, "ada", second.Username, "existing row must be left untouched")
	assert.Equal(t, 7, second.StarBalance)
}

func TestRepositoryAdjustStarBalanceNeverGoesNegative(t *testing.T) {
	client := dbtest.Open(t)
	repo := NewRepository(client.DB())
	ctx := context.Background()
	id := uuid.New()
	_, err := repo.Ensure(ctx, id, "viewer")
	require.NoError(t, err)

	applied, err := repo.AdjustStarBalance(ctx, id, 3)
	require.NoError(t, err)
	require.True(t, applied)

	applied, err = repo.AdjustStarBalance(ctx, id, -4)
	require.NoError(t, err)
	assert.False(t, applied)

	applied, err = repo.AdjustStarBalance(ctx, id, -3)
	require.NoError(t, err)
	assert.True(t, applied)

	balance, err := repo.GetStarBalance(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 0, balance)
}

func TestRepositoryAdjustWalletBalance(t *testing.T) {
	client := dbtest.Open(t)
	repo := NewRepository(client.DB())
	ctx := context.Background()
	id := uuid.New()
	_, err := repo.Ensure(ctx, id, "owner")
	require.NoError(t, err)

	applied, err := repo.AdjustWalletBalance(ctx, id, decimal.NewFromInt(900))
	require.NoError(t, err)
	require.True(t, applied)

	applied, err = repo.AdjustWalletBalance(ctx, id, decimal.NewFromInt(-1000))
	require.NoError(t, err)
	assert.False(t, applied)

	account, err := repo.FindByID(ctx, id)
	require.NoError(t, err)
	assert.True(t, account.WalletBalance.Equal(decimal.NewFromInt(900)), "got %s", account.WalletBalance)
}

func TestRepositoryLockForUpdateOrdersAndSkipsMissing(t *testing.T) {
	client := dbtest.Open(t)
	repo := NewRepository(client.DB())
	ctx := context.Background()

	a, b := uuid.New(), uuid.New()
	_, err := repo.Ensure(ctx, a, "a")
	require.NoError(t, err)
	_, err = repo.Ensure(ctx, b, "b")
	require.NoError(t, err)

	err = client.WithTx(ctx, func(tx *gorm.DB) error {
		locked, err := repo.WithTx(tx).LockForUpdate(ctx, b, a, b, uuid.New())
		if err != nil {
			return err
		}
		require.Len(t, locked, 2)
		want := uniqueSorted([]uuid.UUID{a, b})
		assert.Equal(t, want[0], locked[0].ID)
		assert.Equal(t, want[1], locked[1].ID)
		return nil
	})
	require.NoError(t, err)
}

func TestUniqueSortedDropsNilAndDuplicates(t *testing.T) {
	id := uuid.New()
	out := uniqueSorted([]uuid.UUID{uuid.Nil, id, id})
	assert.Equal(t, []uuid.UUID{id}, out)
}
