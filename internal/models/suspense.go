package models

import (
	"time"

	"github.com/google/uuid"
)

type SuspenseAccount struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID    string    `gorm:"index" json:"tenant_id"`
	Code        string    `json:"code"`
	Description string    `json:"description"`
	GlAccountID uuid.UUID `gorm:"type:uuid" json:"gl_account_id"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}

type SuspenseStatus string

const (
	SuspenseOpen   SuspenseStatus = "open"
	SuspenseClosed SuspenseStatus = "closed"
)

const (
	ResolutionRematched  = "rematched"
	ResolutionWrittenOff = "written_off"
)

type SuspenseEntry struct {
	ID                uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID          string         `gorm:"index" json:"tenant_id"`
	BankTransactionID uuid.UUID      `gorm:"type:uuid;index" json:"bank_transaction_id"`
	SuspenseAccountID uuid.UUID      `gorm:"type:uuid;index" json:"suspense_account_id"`
	Reason            string         `json:"reason"`
	Status            SuspenseStatus `gorm:"index" json:"status"`
	OpeningEntryID    uuid.UUID      `gorm:"type:uuid" json:"opening_entry_id"`
	Resolution        string         `json:"resolution,omitempty"`
	ResolutionEntryID *uuid.UUID     `gorm:"type:uuid" json:"resolution_entry_id,omitempty"`
	ResolutionMatchID *uuid.UUID     `gorm:"type:uuid" json:"resolution_match_id,omitempty"`
	ClosedBy          string         `json:"closed_by,omitempty"`
	OpenedAt          time.Time      `json:"opened_at"`
	ClosedAt          *time.Time     `json:"closed_at,omitempty"`
}

// TenantLedgerSettings names the accounts the engine posts against for a tenant.
type TenantLedgerSettings struct {
	TenantID                 string    `gorm:"primaryKey" json:"tenant_id"`
	ReceivablesAccountID     uuid.UUID `gorm:"type:uuid" json:"receivables_account_id"`
	DefaultSuspenseAccountID uuid.UUID `gorm:"type:uuid" json:"default_suspense_account_id"`
	WriteOffAccountID        uuid.UUID `gorm:"type:uuid" json:"write_off_account_id"`
	UpdatedAt                time.Time `json:"updated_at"`
}
