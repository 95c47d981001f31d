package ledger

import (
	"context"
	"testing"
	"time"

	"bank-reconciliation-engine/internal/models"
	"bank-reconciliation-engine/internal/testutil"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setup(t *testing.T) (*Service, *gorm.DB, *testutil.Ledger) {
	db := testutil.NewDB(t)
	return NewService(db), db, testutil.SeedLedger(t, db, "tenant-1")
}

func receipt(l *testutil.Ledger, amount string) *models.JournalEntry {
	amt := decimal.RequireFromString(amount)
	return &models.JournalEntry{
		TenantID:      l.TenantID,
		EntryDate:     testutil.Day(2026, time.March, 10),
		Description:   "Customer receipt",
		Currency:      l.Currency,
		ReferenceType: models.RefManual,
		Lines: []models.GlLine{
			Line(l.BankGL.ID, models.Debit, amt, ""),
			Line(l.Receivables.ID, models.Credit, amt, ""),
		},
	}
}

func TestPostEntry(t *testing.T) {
	svc, _, l := setup(t)
	ctx := context.Background()

	id, err := svc.PostEntry(ctx, receipt(l, "1500.00"))
	require.NoError(t, err)

	got, err := svc.GetEntry(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.EntryPosted, got.Status)
	assert.Regexp(t, `^JE-20260310-[0-9A-F]{8}$`, got.EntryNumber)
	require.Len(t, got.Lines, 2)
	assert.Equal(t, 1, got.Lines[0].LineNo)
	debits, credits := got.Totals()
	assert.True(t, debits.Equal(credits))
}

func TestPostEntryRejects(t *testing.T) {
	svc, db, l := setup(t)
	ctx := context.Background()

	other := models.GlAccount{ID: uuid.New(), TenantID: "tenant-2", Code: "1010", Type: models.AccountAsset, Currency: "INR", Active: true}
	require.NoError(t, db.Create(&other).Error)
	usd := models.GlAccount{ID: uuid.New(), TenantID: l.TenantID, Code: "1020", Type: models.AccountAsset, Currency: "USD", Active: true}
	require.NoError(t, db.Create(&usd).Error)
	inactive := models.GlAccount{ID: uuid.New(), TenantID: l.TenantID, Code: "1030", Type: models.AccountAsset, Currency: "INR"}
	require.NoError(t, db.Create(&inactive).Error)
	require.NoError(t, db.Model(&inactive).Update("active", false).Error)

	tests := []struct {
		name   string
		mutate func(e *models.JournalEntry)
		want   error
	}{
		{
			name:   "unbalanced",
			mutate: func(e *models.JournalEntry) { e.Lines[1].Amount = decimal.RequireFromString("1499.99") },
			want:   ErrUnbalancedEntry,
		},
		{
			name:   "single line",
			mutate: func(e *models.JournalEntry) { e.Lines = e.Lines[:1] },
			want:   ErrValidation,
		},
		{
			name: "negative amount",
			mutate: func(e *models.JournalEntry) {
				e.Lines[0].Amount = decimal.RequireFromString("-10")
				e.Lines[1].Amount = decimal.RequireFromString("-10")
			},
			want: ErrValidation,
		},
		{
			name:   "unknown account",
			mutate: func(e *models.JournalEntry) { e.Lines[0].AccountID = uuid.New() },
			want:   ErrInvalidAccount,
		},
		{
			name:   "foreign tenant account",
			mutate: func(e *models.JournalEntry) { e.Lines[0].AccountID = other.ID },
			want:   ErrInvalidAccount,
		},
		{
			name:   "currency mismatch",
			mutate: func(e *models.JournalEntry) { e.Lines[0].AccountID = usd.ID },
			want:   ErrInvalidAccount,
		},
		{
			name:   "inactive account",
			mutate: func(e *models.JournalEntry) { e.Lines[0].AccountID = inactive.ID },
			want:   ErrInvalidAccount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := receipt(l, "1500.00")
			tt.mutate(e)
			_, err := svc.PostEntry(ctx, e)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	var count int64
	require.NoError(t, db.Model(&models.JournalEntry{}).Count(&count).Error)
	assert.Zero(t, count, "rejected entries must not leave rows behind")
}

func TestPostEntryIdempotencyKey(t *testing.T) {
	svc, db, l := setup(t)
	ctx := context.Background()
	key := "clear:abc"

	first := receipt(l, "200")
	first.IdempotencyKey = &key
	id1, err := svc.PostEntry(ctx, first)
	require.NoError(t, err)

	second := receipt(l, "200")
	second.IdempotencyKey = &key
	id2, err := svc.PostEntry(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	var count int64
	require.NoError(t, db.Model(&models.JournalEntry{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestReverseEntry(t *testing.T) {
	svc, _, l := setup(t)
	ctx := context.Background()

	id, err := svc.PostEntry(ctx, receipt(l, "750.25"))
	require.NoError(t, err)

	revID, err := svc.ReverseEntry(ctx, id, "ops@acme")
	require.NoError(t, err)

	rev, err := svc.GetEntry(ctx, revID)
	require.NoError(t, err)
	require.NotNil(t, rev.ReversesEntryID)
	assert.Equal(t, id, *rev.ReversesEntryID)
	assert.Equal(t, models.Credit, rev.Lines[0].Direction)
	assert.Equal(t, models.Debit, rev.Lines[1].Direction)

	original, err := svc.GetEntry(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.EntryPosted, original.Status)

	bal, err := svc.GetAccountBalance(ctx, l.BankGL.ID, time.Now().UTC())
	require.NoError(t, err)
	assert.True(t, bal.Net.IsZero(), "net after reversal: %s", bal.Net)

	_, err = svc.ReverseEntry(ctx, id, "ops@acme")
	assert.ErrorIs(t, err, ErrAlreadyReversed)

	_, err = svc.ReverseEntry(ctx, uuid.New(), "ops@acme")
	assert.ErrorIs(t, err, ErrEntryNotFound)
}

func TestGetAccountBalance(t *testing.T) {
	svc, _, l := setup(t)
	ctx := context.Background()

	_, err := svc.PostEntry(ctx, receipt(l, "1000"))
	require.NoError(t, err)
	late := receipt(l, "250")
	late.EntryDate = testutil.Day(2026, time.April, 2)
	_, err = svc.PostEntry(ctx, late)
	require.NoError(t, err)

	bank, err := svc.GetAccountBalance(ctx, l.BankGL.ID, testutil.Day(2026, time.March, 31))
	require.NoError(t, err)
	assert.Equal(t, "1000", bank.Debits.String())
	assert.True(t, bank.Credits.IsZero())
	assert.Equal(t, "1000", bank.Normal.String())

	ar, err := svc.GetAccountBalance(ctx, l.Receivables.ID, testutil.Day(2026, time.April, 30))
	require.NoError(t, err)
	assert.Equal(t, "-1250", ar.Net.String())
	assert.Equal(t, "-1250", ar.Normal.String())

	_, err = svc.GetAccountBalance(ctx, uuid.New(), time.Now())
	assert.ErrorIs(t, err, ErrInvalidAccount)
}

func TestTrialBalanceIsBalanced(t *testing.T) {
	svc, _, l := setup(t)
	ctx := context.Background()

	for _, amt := range []string{"100", "2500.50", "0.01"} {
		_, err := svc.PostEntry(ctx, receipt(l, amt))
		require.NoError(t, err)
	}

	rows, err := svc.TrialBalance(ctx, l.TenantID, time.Now().UTC())
	require.NoError(t, err)
	require.Len(t, rows, 5)

	var debits, credits decimal.Decimal
	for _, r := range rows {
		debits = debits.Add(r.Debits)
		credits = credits.Add(r.Credits)
	}
	assert.True(t, debits.Equal(credits))
	assert.Equal(t, "1010", rows[0].Code)
}

func TestDraftLifecycle(t *testing.T) {
	svc, _, l := setup(t)
	ctx := context.Background()

	draft := receipt(l, "300")
	draft.Lines[1].Amount = decimal.RequireFromString("299")
	id, err := svc.SaveDraft(ctx, draft)
	require.NoError(t, err)

	_, err = svc.PostDraft(ctx, id, "ops")
	assert.ErrorIs(t, err, ErrUnbalancedEntry)

	balanced := receipt(l, "300")
	id2, err := svc.SaveDraft(ctx, balanced)
	require.NoError(t, err)
	posted, err := svc.PostDraft(ctx, id2, "ops")
	require.NoError(t, err)
	assert.Equal(t, models.EntryPosted, posted.Status)
	assert.Equal(t, "ops", posted.PostedBy)

	_, err = svc.PostDraft(ctx, id2, "ops")
	assert.ErrorIs(t, err, ErrNotDraft)

	require.NoError(t, svc.CancelDraft(ctx, id))
	assert.ErrorIs(t, svc.CancelDraft(ctx, id), ErrNotDraft)
	assert.ErrorIs(t, svc.CancelDraft(ctx, uuid.New()), ErrEntryNotFound)
}

func TestUpdateAccountImmutableOnceUsed(t *testing.T) {
	svc, _, l := setup(t)
	ctx := context.Background()

	code := "1011"
	_, err := svc.UpdateAccount(ctx, l.BankGL.ID, AccountPatch{Code: &code})
	require.NoError(t, err)

	_, err = svc.PostEntry(ctx, receipt(l, "10"))
	require.NoError(t, err)

	code = "1012"
	_, err = svc.UpdateAccount(ctx, l.BankGL.ID, AccountPatch{Code: &code})
	assert.ErrorIs(t, err, ErrAccountImmutable)

	name := "Bank - HDFC"
	acct, err := svc.UpdateAccount(ctx, l.BankGL.ID, AccountPatch{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, name, acct.Name)
}

func TestCreateAccountValidation(t *testing.T) {
	svc, _, _ := setup(t)
	err := svc.CreateAccount(context.Background(), &models.GlAccount{TenantID: "t", Code: "9", Type: "equity", Currency: "INR"})
	assert.ErrorIs(t, err, ErrValidation)

	acct := &models.GlAccount{TenantID: "t", Code: " 9000 ", Name: "Misc", Type: models.AccountRevenue, Currency: "inr"}
	require.NoError(t, svc.CreateAccount(context.Background(), acct))
	assert.Equal(t, "9000", acct.Code)
	assert.Equal(t, "INR", acct.Currency)
	assert.True(t, acct.Active)
}
