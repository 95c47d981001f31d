package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type MatchType string

const (
	MatchExact      MatchType = "exact"
	MatchFuzzy      MatchType = "fuzzy"
	MatchPredictive MatchType = "predictive"
	MatchManual     MatchType = "manual"
)

type MatchStatus string

const (
	MatchPending    MatchStatus = "pending"
	MatchConfirmed  MatchStatus = "confirmed"
	MatchRejected   MatchStatus = "rejected"
	MatchOverridden MatchStatus = "overridden"
)

type TargetType string

const (
	TargetInvoice TargetType = "invoice"
	TargetGlEntry TargetType = "gl_entry"
)

type ReconciliationMatch struct {
	ID                uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID          string         `gorm:"index" json:"tenant_id"`
	BankTransactionID uuid.UUID      `gorm:"type:uuid;index" json:"bank_transaction_id"`
	TargetType        TargetType     `json:"target_type"`
	TargetID          string         `gorm:"index" json:"target_id"`
	CounterpartyKey   string         `json:"counterparty_key,omitempty"`
	PayerKey          string         `gorm:"index" json:"-"`
	MatchType         MatchType      `gorm:"index" json:"match_type"`
	ConfidenceScore   int            `json:"confidence_score"`
	MatchingCriteria  datatypes.JSON `json:"matching_criteria"`
	Status            MatchStatus    `gorm:"index" json:"status"`
	AutoConfirmed     bool           `json:"auto_confirmed"`
	ClearingEntryID   *uuid.UUID     `gorm:"type:uuid" json:"clearing_entry_id,omitempty"`
	SupersededByID    *uuid.UUID     `gorm:"type:uuid" json:"superseded_by_id,omitempty"`
	Actor             string         `json:"actor"`
	Reason            string         `json:"reason,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	ResolvedAt        *time.Time     `json:"resolved_at,omitempty"`
}
