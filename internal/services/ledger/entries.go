package ledger

import (
	"fmt"
	"time"

	"bank-reconciliation-engine/internal/models"

	"github.com/google/uuid"
)

// BankSide returns the direction the bank GL account moves for txn: money
// in debits the bank, money out credits it.
func BankSide(txn *models.BankTransaction) models.Direction {
	if txn.Direction == models.Debit {
		return models.Credit
	}
	return models.Debit
}

// ClearingEntry builds the entry that settles txn against counterAccount:
// Dr bank / Cr receivables for a receipt, flipped for a payment.
func ClearingEntry(txn *models.BankTransaction, bankGL, counterAccount, matchID uuid.UUID, actor string) *models.JournalEntry {
	key := "clear:" + matchID.String()
	side := BankSide(txn)
	return &models.JournalEntry{
		TenantID:       txn.TenantID,
		EntryDate:      txn.TransactionDate,
		Description:    fmt.Sprintf("Bank clearing %s %s", txn.ReferenceNumber, txn.CounterpartyName),
		Currency:       txn.Currency,
		ReferenceType:  models.RefBankClearing,
		ReferenceID:    txn.ID.String(),
		MatchID:        &matchID,
		IdempotencyKey: &key,
		PostedBy:       actor,
		Lines: []models.GlLine{
			Line(bankGL, side, txn.Amount, txn.Description),
			Line(counterAccount, side.Opposite(), txn.Amount, txn.Description),
		},
	}
}

// SuspenseEntry parks txn in the suspense GL account.
func SuspenseEntry(txn *models.BankTransaction, bankGL, suspenseGL uuid.UUID, reason, actor string) *models.JournalEntry {
	key := "suspense:" + txn.ID.String()
	side := BankSide(txn)
	return &models.JournalEntry{
		TenantID:       txn.TenantID,
		EntryDate:      txn.TransactionDate,
		Description:    "Unmatched bank transaction: " + reason,
		Currency:       txn.Currency,
		ReferenceType:  models.RefSuspense,
		ReferenceID:    txn.ID.String(),
		IdempotencyKey: &key,
		PostedBy:       actor,
		Lines: []models.GlLine{
			Line(bankGL, side, txn.Amount, txn.Description),
			Line(suspenseGL, side.Opposite(), txn.Amount, reason),
		},
	}
}

// WriteOffEntry clears a suspense balance into the write-off account.
func WriteOffEntry(txn *models.BankTransaction, suspenseGL, writeOffGL uuid.UUID, suspenseEntryID uuid.UUID, reason, actor string, on time.Time) *models.JournalEntry {
	key := "write-off:" + suspenseEntryID.String()
	// Suspense was credited for a receipt; debit it back out.
	side := BankSide(txn)
	return &models.JournalEntry{
		TenantID:       txn.TenantID,
		EntryDate:      on,
		Description:    "Suspense write-off: " + reason,
		Currency:       txn.Currency,
		ReferenceType:  models.RefWriteOff,
		ReferenceID:    suspenseEntryID.String(),
		IdempotencyKey: &key,
		PostedBy:       actor,
		Lines: []models.GlLine{
			Line(suspenseGL, side, txn.Amount, reason),
			Line(writeOffGL, side.Opposite(), txn.Amount, reason),
		},
	}
}
