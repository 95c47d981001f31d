package repository_test

import (
	"context"
	"testing"

	"bank-reconciliation-engine/internal/repository"
	"bank-reconciliation-engine/internal/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettlementApply(t *testing.T) {
	db := testutil.NewDB(t)
	repo := repository.NewSettlementRepository(db)
	ctx := context.Background()

	empty, err := repo.Settled(ctx, "tenant-1", []string{"inv-1"})
	require.NoError(t, err)
	assert.Empty(t, empty)

	zero := 0
	require.NoError(t, repo.Apply(ctx, "tenant-1", "inv-1", decimal.NewFromInt(6000), &zero))

	// A second automatic clearing scored against version 0 loses.
	err = repo.Apply(ctx, "tenant-1", "inv-1", decimal.NewFromInt(6000), &zero)
	assert.ErrorIs(t, err, repository.ErrTargetSettled)

	require.NoError(t, repo.Apply(ctx, "tenant-1", "inv-1", decimal.NewFromInt(4000), nil))

	got, err := repo.Settled(ctx, "tenant-1", []string{"inv-1", "inv-2"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got["inv-1"].Cleared.Equal(decimal.NewFromInt(10000)), got["inv-1"].Cleared.String())
	assert.Equal(t, 2, got["inv-1"].Version)

	require.NoError(t, repo.Apply(ctx, "tenant-1", "inv-1", decimal.NewFromInt(-6000), nil))
	row, err := repo.Get(ctx, "tenant-1", "inv-1")
	require.NoError(t, err)
	assert.True(t, row.ClearedAmount.Equal(decimal.NewFromInt(4000)), row.ClearedAmount.String())
	assert.Equal(t, 1, row.MatchCount)
	assert.Equal(t, 3, row.Version)

	other, err := repo.Settled(ctx, "tenant-2", []string{"inv-1"})
	require.NoError(t, err)
	assert.Empty(t, other)
}
