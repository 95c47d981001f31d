package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Invoice is the invoicing service's view of an outstanding receivable.
// The engine only reads it.
type Invoice struct {
	ID                uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID          string          `gorm:"index" json:"tenant_id"`
	InvoiceNumber     string          `gorm:"index" json:"invoice_number"`
	PaymentReference  string          `gorm:"index" json:"payment_reference,omitempty"`
	CustomerName      string          `gorm:"index" json:"customer_name"`
	Description       string          `json:"description,omitempty"`
	Currency          string          `json:"currency"`
	Amount            decimal.Decimal `gorm:"type:decimal(20,2)" json:"amount"`
	OutstandingAmount decimal.Decimal `gorm:"type:decimal(20,2);index" json:"outstanding_amount"`
	Status            string          `gorm:"index" json:"status"`
	DueDate           time.Time       `json:"due_date"`
	PaidAt            *time.Time      `json:"paid_at,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
}
