package repository_test

import (
	"context"
	"testing"
	"time"

	"bank-reconciliation-engine/internal/models"
	"bank-reconciliation-engine/internal/repository"
	"bank-reconciliation-engine/internal/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSuspenseCloseOnce(t *testing.T) {
	db := testutil.NewDB(t)
	l := testutil.SeedLedger(t, db, "tenant-1")
	txn := l.Transaction(t, db, "100.00", "", "Payer", testutil.Day(2026, time.March, 1))
	repo := repository.NewSuspenseRepository(db)
	ctx := context.Background()

	entry := &models.SuspenseEntry{
		TenantID:          l.TenantID,
		BankTransactionID: txn.ID,
		SuspenseAccountID: l.SuspenseAccount.ID,
		Reason:            "no candidate",
		OpeningEntryID:    uuid.New(),
		OpenedAt:          time.Now().UTC(),
	}
	require.NoError(t, repo.CreateEntry(ctx, entry))

	open, err := repo.OpenEntryForTransaction(ctx, txn.ID)
	require.NoError(t, err)
	require.NotNil(t, open)
	assert.Equal(t, entry.ID, open.ID)

	resolution := uuid.New()
	require.NoError(t, repo.Close(ctx, open, repository.Resolution{
		Kind:     models.ResolutionWrittenOff,
		EntryID:  &resolution,
		ClosedBy: "controller",
		ClosedAt: time.Now().UTC(),
	}))

	// A stale copy still believes the entry is open.
	err = repo.Close(ctx, entry, repository.Resolution{Kind: models.ResolutionRematched, ClosedBy: "reviewer", ClosedAt: time.Now().UTC()})
	assert.ErrorIs(t, err, repository.ErrAlreadyClosed)

	stored, err := repo.GetEntry(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SuspenseClosed, stored.Status)
	assert.Equal(t, models.ResolutionWrittenOff, stored.Resolution)
	assert.Equal(t, "controller", stored.ClosedBy)

	none, err := repo.OpenEntryForTransaction(ctx, txn.ID)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestSuspenseListOpenPages(t *testing.T) {
	db := testutil.NewDB(t)
	l := testutil.SeedLedger(t, db, "tenant-1")
	repo := repository.NewSuspenseRepository(db)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		txn := l.Transaction(t, db, "10.00", "", "Payer", testutil.Day(2026, time.March, 1))
		require.NoError(t, repo.CreateEntry(ctx, &models.SuspenseEntry{
			TenantID:          l.TenantID,
			BankTransactionID: txn.ID,
			SuspenseAccountID: l.SuspenseAccount.ID,
			OpeningEntryID:    uuid.New(),
			OpenedAt:          time.Now().UTC(),
		}))
	}

	page, next, more, err := repo.ListOpen(ctx, l.TenantID, "", 2)
	require.NoError(t, err)
	assert.Len(t, page, 2)
	assert.True(t, more)

	rest, _, more, err := repo.ListOpen(ctx, l.TenantID, next, 2)
	require.NoError(t, err)
	assert.Len(t, rest, 1)
	assert.False(t, more)

	_, err = repo.GetEntry(ctx, uuid.New())
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestPostingAccounts(t *testing.T) {
	db := testutil.NewDB(t)
	l := testutil.SeedLedger(t, db, "tenant-1")
	txn := l.Transaction(t, db, "10.00", "", "Payer", testutil.Day(2026, time.March, 1))

	accts, err := repository.NewSettingsRepository(db).PostingAccounts(context.Background(), &txn)
	require.NoError(t, err)
	assert.Equal(t, l.BankGL.ID, accts.BankGL)
	assert.Equal(t, l.Receivables.ID, accts.Receivables)
	assert.Equal(t, l.SuspenseAccount.ID, accts.SuspenseAccountID)
	assert.Equal(t, l.SuspenseGL.ID, accts.SuspenseGL)
	assert.Equal(t, l.WriteOff.ID, accts.WriteOff)

	tenants, err := repository.NewSettingsRepository(db).Tenants(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"tenant-1"}, tenants)
}
