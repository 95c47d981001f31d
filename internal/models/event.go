package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	EventMatchAutoConfirmed = "match.auto_confirmed"
	EventSuspenseRouted     = "suspense.routed"
	EventSuspenseClosed     = "suspense.closed"
)

// ReconciliationEvent is an outbox row read by the notification pipeline.
// Sequence gives consumers a stable cursor.
type ReconciliationEvent struct {
	Sequence          uint64         `gorm:"primaryKey;autoIncrement" json:"sequence"`
	EventID           uuid.UUID      `gorm:"type:uuid;uniqueIndex" json:"event_id"`
	TenantID          string         `gorm:"index" json:"tenant_id"`
	Type              string         `gorm:"index" json:"type"`
	BankTransactionID uuid.UUID      `gorm:"type:uuid" json:"bank_transaction_id"`
	MatchID           *uuid.UUID     `gorm:"type:uuid" json:"match_id,omitempty"`
	SuspenseEntryID   *uuid.UUID     `gorm:"type:uuid" json:"suspense_entry_id,omitempty"`
	Payload           datatypes.JSON `json:"payload"`
	CreatedAt         time.Time      `json:"created_at"`
}
