package models

import (
	"time"

	"github.com/google/uuid"
)

// MatchAuditLog is append-only: one row per match or transaction state change.
type MatchAuditLog struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	TransactionID  uuid.UUID  `gorm:"type:uuid;index" json:"transaction_id"`
	MatchID        *uuid.UUID `gorm:"type:uuid;index" json:"match_id,omitempty"`
	Action         string     `json:"action"`
	FromStatus     string     `json:"from_status,omitempty"`
	ToStatus       string     `json:"to_status"`
	PreviousTarget *string    `json:"previous_target,omitempty"`
	NewTarget      *string    `json:"new_target,omitempty"`
	PerformedBy    string     `json:"performed_by"`
	Reason         string     `json:"reason,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}
