package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Direction string

const (
	Debit  Direction = "debit"
	Credit Direction = "credit"
)

func (d Direction) Opposite() Direction {
	if d == Debit {
		return Credit
	}
	return Debit
}

type EntryStatus string

const (
	EntryDraft     EntryStatus = "draft"
	EntryPosted    EntryStatus = "posted"
	EntryCancelled EntryStatus = "cancelled"
)

// Reference types recorded on journal entries posted by the engine.
const (
	RefBankClearing = "bank_transaction"
	RefSuspense     = "suspense"
	RefWriteOff     = "suspense_write_off"
	RefReversal     = "reversal"
	RefManual       = "manual"
)

type JournalEntry struct {
	ID              uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID        string      `gorm:"index" json:"tenant_id"`
	EntryNumber     string      `gorm:"uniqueIndex" json:"entry_number"`
	EntryDate       time.Time   `gorm:"index" json:"entry_date"`
	Description     string      `json:"description"`
	Currency        string      `json:"currency"`
	Status          EntryStatus `gorm:"index" json:"status"`
	ReferenceType   string      `gorm:"index:idx_journal_entries_reference" json:"reference_type,omitempty"`
	ReferenceID     string      `gorm:"index:idx_journal_entries_reference" json:"reference_id,omitempty"`
	MatchID         *uuid.UUID  `gorm:"type:uuid;index" json:"match_id,omitempty"`
	ReversesEntryID *uuid.UUID  `gorm:"type:uuid;uniqueIndex" json:"reverses_entry_id,omitempty"`
	IdempotencyKey  *string     `gorm:"uniqueIndex" json:"idempotency_key,omitempty"`
	PostedBy        string      `json:"posted_by,omitempty"`
	PostedAt        *time.Time  `json:"posted_at,omitempty"`
	Lines           []GlLine    `gorm:"foreignKey:EntryID" json:"lines"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

type GlLine struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	EntryID     uuid.UUID       `gorm:"type:uuid;index" json:"entry_id"`
	LineNo      int             `json:"line_no"`
	AccountID   uuid.UUID       `gorm:"type:uuid;index" json:"account_id"`
	Direction   Direction       `json:"direction"`
	Amount      decimal.Decimal `gorm:"type:decimal(20,2)" json:"amount"`
	Description string          `json:"description,omitempty"`
	CostCenter  string          `json:"cost_center,omitempty"`
	Project     string          `json:"project,omitempty"`
}

// Totals returns the debit and credit sums of the entry's lines.
func (e *JournalEntry) Totals() (debits, credits decimal.Decimal) {
	for _, l := range e.Lines {
		if l.Direction == Debit {
			debits = debits.Add(l.Amount)
		} else {
			credits = credits.Add(l.Amount)
		}
	}
	return debits, credits
}
