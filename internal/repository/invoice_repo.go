package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"bank-reconciliation-engine/internal/models"
	"bank-reconciliation-engine/internal/services/matching"

	"gorm.io/gorm"
)

// openInvoiceStatuses are the invoice states that can still receive money.
var openInvoiceStatuses = []string{"sent", "overdue", "partially_paid"}

// maxCandidates caps one lookup; the amount band keeps real sets far smaller.
const maxCandidates = 200

// InvoiceRepository reads the invoicing service's receivables table.
type InvoiceRepository struct {
	db *gorm.DB
}

func NewInvoiceRepository(db *gorm.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

var _ matching.ReceivableFinder = (*InvoiceRepository)(nil)

func (r *InvoiceRepository) FindOpenReceivables(ctx context.Context, q matching.Query) ([]matching.Candidate, error) {
	var invoices []models.Invoice
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND currency = ?", q.TenantID, q.Currency).
		Where("status IN ?", openInvoiceStatuses).
		Where("outstanding_amount BETWEEN ? AND ?", q.MinAmount, q.MaxAmount).
		Where("due_date BETWEEN ? AND ?", q.From, q.To).
		Order("id ASC").
		Limit(maxCandidates).
		Find(&invoices).Error
	if err != nil {
		return nil, err
	}

	out := make([]matching.Candidate, len(invoices))
	for i, inv := range invoices {
		out[i] = matching.FromInvoice(inv)
	}
	return out, nil
}

func (r *InvoiceRepository) GetByID(ctx context.Context, id string) (*models.Invoice, error) {
	var invoice models.Invoice
	err := r.db.WithContext(ctx).First(&invoice, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("invoice %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

// Candidate loads a single receivable of the tenant for a manual match.
func (r *InvoiceRepository) Candidate(ctx context.Context, tenantID, id string) (matching.Candidate, error) {
	inv, err := r.GetByID(ctx, id)
	if err != nil {
		return matching.Candidate{}, err
	}
	if inv.TenantID != tenantID {
		return matching.Candidate{}, fmt.Errorf("invoice %s: %w", id, ErrNotFound)
	}
	return matching.FromInvoice(*inv), nil
}

// Search backs the reviewer's manual lookup: customer name or invoice number
// substring, optionally narrowed by status.
func (r *InvoiceRepository) Search(ctx context.Context, tenantID, query string, statuses []string, limit int) ([]models.Invoice, error) {
	var invoices []models.Invoice

	dbQuery := r.db.WithContext(ctx).Model(&models.Invoice{}).Where("tenant_id = ?", tenantID)
	if query != "" {
		like := "%" + strings.ToLower(query) + "%"
		dbQuery = dbQuery.Where("LOWER(customer_name) LIKE ? OR LOWER(invoice_number) LIKE ?", like, like)
	}
	if len(statuses) > 0 {
		dbQuery = dbQuery.Where("status IN ?", statuses)
	}

	err := dbQuery.Order("due_date ASC").Limit(limit).Find(&invoices).Error
	return invoices, err
}
