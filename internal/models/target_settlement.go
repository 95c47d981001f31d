package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TargetSettlement is how much the engine has cleared against one match
// target through confirmed matches. Version grows on every change so an
// automatic confirmation can detect that someone cleared the target first.
type TargetSettlement struct {
	TenantID      string          `gorm:"primaryKey" json:"tenant_id"`
	TargetID      string          `gorm:"primaryKey" json:"target_id"`
	ClearedAmount decimal.Decimal `gorm:"type:decimal(20,2)" json:"cleared_amount"`
	MatchCount    int             `json:"match_count"`
	Version       int             `json:"version"`
	UpdatedAt     time.Time       `json:"updated_at"`
}
