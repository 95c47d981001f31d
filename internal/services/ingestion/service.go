package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"bank-reconciliation-engine/internal/models"
	"bank-reconciliation-engine/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrValidation          = errors.New("invalid feed")
	ErrBankAccountNotFound = errors.New("bank account not found")
)

// Rejection reasons reported per row.
const (
	ReasonMissingAmount    = "missing amount"
	ReasonInvalidAmount    = "invalid amount"
	ReasonInvalidDate      = "invalid date"
	ReasonCurrencyMismatch = "currency mismatch"
	ReasonDuplicate        = "duplicate"
)

type Rejection struct {
	Row    RawRow `json:"row"`
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

type Result struct {
	Accepted []models.BankTransaction `json:"accepted"`
	Rejected []Rejection              `json:"rejected"`
}

// Service turns raw statement rows into canonical bank transactions.
type Service struct {
	db       *gorm.DB
	settings *repository.SettingsRepository
	txns     *repository.BankTransactionRepository
}

func NewService(db *gorm.DB) *Service {
	return &Service{
		db:       db,
		settings: repository.NewSettingsRepository(db),
		txns:     repository.NewBankTransactionRepository(db),
	}
}

// Ingest normalises rows for one bank account and stores the new ones.
// Bad rows are rejected individually; a re-sent row is rejected as a
// duplicate and never fails the batch.
func (s *Service) Ingest(ctx context.Context, bankAccountID uuid.UUID, rows []RawRow) (*Result, error) {
	acct, err := s.settings.GetBankAccount(ctx, bankAccountID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", bankAccountID, ErrBankAccountNotFound)
	}
	if err != nil {
		return nil, err
	}

	result := &Result{Accepted: []models.BankTransaction{}, Rejected: []Rejection{}}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txns := s.txns.WithTx(tx)
		for _, row := range rows {
			txn, reason := normalize(acct, row)
			if reason != "" {
				result.Rejected = append(result.Rejected, Rejection{Row: row, Line: row.Line, Reason: reason})
				continue
			}
			inserted, err := txns.Insert(ctx, txn)
			if err != nil {
				return fmt.Errorf("line %d: %w", row.Line, err)
			}
			if !inserted {
				result.Rejected = append(result.Rejected, Rejection{Row: row, Line: row.Line, Reason: ReasonDuplicate})
				continue
			}
			result.Accepted = append(result.Accepted, *txn)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[ingestion] bank account %s: %d rows, %d accepted, %d rejected",
		bankAccountID, len(rows), len(result.Accepted), len(result.Rejected))
	return result, nil
}

// normalize builds a pending transaction from row or returns the rejection
// reason.
func normalize(acct *models.BankAccount, row RawRow) (*models.BankTransaction, string) {
	amount, dir, reason := rowAmount(row)
	if reason != "" {
		return nil, reason
	}

	dateStr := row.Date
	if dateStr == "" {
		dateStr = row.ValueDate
	}
	date, err := parseDate(dateStr)
	if err != nil {
		return nil, ReasonInvalidDate
	}

	currency := acct.Currency
	if row.Currency != "" && !strings.EqualFold(row.Currency, acct.Currency) {
		return nil, ReasonCurrencyMismatch
	}

	description := strings.Join(strings.Fields(row.Description), " ")
	reference := strings.TrimSpace(row.Reference)
	if reference == "" {
		reference = extractReference(description)
	}
	counterparty := strings.TrimSpace(row.Counterparty)
	if counterparty == "" {
		counterparty = extractCounterparty(description)
	}

	txn := &models.BankTransaction{
		ID:               uuid.New(),
		TenantID:         acct.TenantID,
		BankAccountID:    acct.ID,
		Currency:         currency,
		TransactionDate:  date,
		Amount:           amount,
		Direction:        dir,
		Description:      description,
		ReferenceNumber:  reference,
		InstrumentNumber: strings.TrimSpace(row.Instrument),
		CounterpartyName: counterparty,
		PayerKey:         models.NormalizeParty(counterparty),
		Status:           models.TxnPending,
	}
	if row.Balance != "" {
		if bal, _, err := parseAmount(row.Balance); err == nil {
			txn.RunningBalance = &bal
		}
	}
	txn.DedupeKey = dedupeKey(acct.ID, txn)
	return txn, ""
}

// rowAmount resolves the absolute amount and direction from whichever of
// the amount, credit/debit and type columns the bank filled in.
func rowAmount(row RawRow) (decimal.Decimal, models.Direction, string) {
	for _, col := range []struct {
		value string
		dir   models.Direction
	}{{row.Credit, models.Credit}, {row.Debit, models.Debit}} {
		if strings.TrimSpace(col.value) == "" {
			continue
		}
		amt, _, err := parseAmount(col.value)
		if err != nil {
			return decimal.Zero, "", ReasonInvalidAmount
		}
		if amt.IsZero() {
			continue
		}
		return amt.Abs(), col.dir, ""
	}

	if strings.TrimSpace(row.Amount) == "" {
		return decimal.Zero, "", ReasonMissingAmount
	}
	amt, suffixDir, err := parseAmount(row.Amount)
	if err != nil {
		return decimal.Zero, "", ReasonInvalidAmount
	}
	if amt.IsZero() {
		return decimal.Zero, "", ReasonInvalidAmount
	}

	dir := directionFromType(row.Type)
	if dir == "" {
		dir = suffixDir
	}
	if dir == "" {
		dir = models.Credit
		if amt.IsNegative() {
			dir = models.Debit
		}
	}
	return amt.Abs(), dir, ""
}
