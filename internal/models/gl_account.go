package models

import (
	"time"

	"github.com/google/uuid"
)

type AccountType string

const (
	AccountAsset     AccountType = "asset"
	AccountLiability AccountType = "liability"
	AccountRevenue   AccountType = "revenue"
	AccountExpense   AccountType = "expense"
	AccountSuspense  AccountType = "suspense"
)

func (t AccountType) Valid() bool {
	switch t {
	case AccountAsset, AccountLiability, AccountRevenue, AccountExpense, AccountSuspense:
		return true
	}
	return false
}

// NormalSide is the side on which the account balance increases.
// Suspense holds unattributed receipts and behaves like a liability.
func (t AccountType) NormalSide() Direction {
	switch t {
	case AccountAsset, AccountExpense:
		return Debit
	default:
		return Credit
	}
}

type GlAccount struct {
	ID        uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID  string      `gorm:"index;uniqueIndex:idx_gl_accounts_tenant_code" json:"tenant_id"`
	Code      string      `gorm:"uniqueIndex:idx_gl_accounts_tenant_code" json:"code"`
	Name      string      `json:"name"`
	Type      AccountType `gorm:"index" json:"type"`
	Currency  string      `json:"currency"`
	Active    bool        `json:"active"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}
