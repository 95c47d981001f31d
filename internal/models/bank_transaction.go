package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TxnStatus string

const (
	TxnPending          TxnStatus = "pending"
	TxnProcessing       TxnStatus = "processing"
	TxnMatched          TxnStatus = "matched"
	TxnPartiallyMatched TxnStatus = "partially_matched"
	TxnUnmatched        TxnStatus = "unmatched"
	TxnSuspense         TxnStatus = "suspense"
	TxnWrittenOff       TxnStatus = "written_off"
)

type BankAccount struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID      string    `gorm:"index" json:"tenant_id"`
	Name          string    `json:"name"`
	AccountNumber string    `json:"account_number"`
	Currency      string    `json:"currency"`
	GlAccountID   uuid.UUID `gorm:"type:uuid" json:"gl_account_id"`
	CreatedAt     time.Time `json:"created_at"`
}

type BankTransaction struct {
	ID                uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID          string           `gorm:"index:idx_bank_txn_tenant_status" json:"tenant_id"`
	BankAccountID     uuid.UUID        `gorm:"type:uuid;index" json:"bank_account_id"`
	Currency          string           `json:"currency"`
	TransactionDate   time.Time        `gorm:"column:transaction_date" json:"transaction_date"`
	Amount            decimal.Decimal  `gorm:"type:decimal(20,2)" json:"amount"`
	Direction         Direction        `json:"direction"`
	Description       string           `json:"description"`
	ReferenceNumber   string           `gorm:"index" json:"reference_number,omitempty"`
	InstrumentNumber  string           `json:"instrument_number,omitempty"`
	CounterpartyName  string           `json:"counterparty_name,omitempty"`
	PayerKey          string           `gorm:"index" json:"-"`
	RunningBalance    *decimal.Decimal `gorm:"type:decimal(20,2)" json:"running_balance,omitempty"`
	DedupeKey         string           `gorm:"uniqueIndex" json:"-"`
	Status            TxnStatus        `gorm:"index:idx_bank_txn_tenant_status" json:"status"`
	MatchedTargetID   *string          `json:"matched_target_id,omitempty"`
	ConfidenceScore   int              `json:"confidence_score"`
	Attempts          int              `json:"attempts"`
	ClaimedFromStatus TxnStatus        `json:"-"`
	ClaimedAt         *time.Time       `json:"-"`
	TriageReason      string           `json:"triage_reason,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}
