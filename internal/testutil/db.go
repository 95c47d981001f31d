// Package testutil opens throwaway databases and seeds tenant ledgers for tests.
package testutil

import (
	"fmt"
	"testing"
	"time"

	"bank-reconciliation-engine/internal/config"
	"bank-reconciliation-engine/internal/models"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB returns a migrated in-memory sqlite database private to t.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, config.Migrate(db))
	return db
}

// Ledger is a seeded tenant: chart of accounts, one bank account, one
// suspense account and the ledger settings tying them together.
type Ledger struct {
	TenantID        string
	Currency        string
	BankGL          models.GlAccount
	Receivables     models.GlAccount
	SuspenseGL      models.GlAccount
	WriteOff        models.GlAccount
	Revenue         models.GlAccount
	BankAccount     models.BankAccount
	SuspenseAccount models.SuspenseAccount
}

func SeedLedger(t *testing.T, db *gorm.DB, tenantID string) *Ledger {
	t.Helper()
	l := &Ledger{TenantID: tenantID, Currency: "INR"}

	mk := func(code, name string, typ models.AccountType) models.GlAccount {
		a := models.GlAccount{
			ID:       uuid.New(),
			TenantID: tenantID,
			Code:     code,
			Name:     name,
			Type:     typ,
			Currency: l.Currency,
			Active:   true,
		}
		require.NoError(t, db.Create(&a).Error)
		return a
	}
	l.BankGL = mk("1010", "Bank - Current Account", models.AccountAsset)
	l.Receivables = mk("1200", "Accounts Receivable", models.AccountAsset)
	l.SuspenseGL = mk("2999", "Bank Suspense", models.AccountSuspense)
	l.WriteOff = mk("6900", "Unreconciled Write-offs", models.AccountExpense)
	l.Revenue = mk("4000", "Sales", models.AccountRevenue)

	l.BankAccount = models.BankAccount{
		ID:            uuid.New(),
		TenantID:      tenantID,
		Name:          "HDFC Current",
		AccountNumber: "50200011112222",
		Currency:      l.Currency,
		GlAccountID:   l.BankGL.ID,
	}
	require.NoError(t, db.Create(&l.BankAccount).Error)

	l.SuspenseAccount = models.SuspenseAccount{
		ID:          uuid.New(),
		TenantID:    tenantID,
		Code:        "SUSP-DEFAULT",
		Description: "Unidentified receipts",
		GlAccountID: l.SuspenseGL.ID,
		Active:      true,
	}
	require.NoError(t, db.Create(&l.SuspenseAccount).Error)

	require.NoError(t, db.Create(&models.TenantLedgerSettings{
		TenantID:                 tenantID,
		ReceivablesAccountID:     l.Receivables.ID,
		DefaultSuspenseAccountID: l.SuspenseAccount.ID,
		WriteOffAccountID:        l.WriteOff.ID,
	}).Error)
	return l
}

// Invoice inserts an open receivable.
func (l *Ledger) Invoice(t *testing.T, db *gorm.DB, number, customer string, amount string, due time.Time) models.Invoice {
	t.Helper()
	amt := decimal.RequireFromString(amount)
	inv := models.Invoice{
		ID:                uuid.New(),
		TenantID:          l.TenantID,
		InvoiceNumber:     number,
		CustomerName:      customer,
		Currency:          l.Currency,
		Amount:            amt,
		OutstandingAmount: amt,
		Status:            "sent",
		DueDate:           due,
	}
	require.NoError(t, db.Create(&inv).Error)
	return inv
}

// Transaction inserts a pending credit bank transaction.
func (l *Ledger) Transaction(t *testing.T, db *gorm.DB, amount, reference, payer string, date time.Time) models.BankTransaction {
	t.Helper()
	txn := models.BankTransaction{
		ID:               uuid.New(),
		TenantID:         l.TenantID,
		BankAccountID:    l.BankAccount.ID,
		Currency:         l.Currency,
		TransactionDate:  date,
		Amount:           decimal.RequireFromString(amount),
		Direction:        models.Credit,
		Description:      "NEFT CR " + reference + " " + payer,
		ReferenceNumber:  reference,
		CounterpartyName: payer,
		PayerKey:         models.NormalizeParty(payer),
		DedupeKey:        uuid.NewString(),
		Status:           models.TxnPending,
	}
	require.NoError(t, db.Create(&txn).Error)
	return txn
}

// Day returns midnight UTC of the given date.
func Day(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
