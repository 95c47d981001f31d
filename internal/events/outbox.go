// Package events writes reconciliation events to an outbox table. Rows are
// inserted in the same database transaction as the state change they
// describe; delivery is someone else's job.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"bank-reconciliation-engine/internal/models"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Outbox struct {
	db *gorm.DB
}

func NewOutbox(db *gorm.DB) *Outbox {
	return &Outbox{db: db}
}

func (o *Outbox) WithTx(tx *gorm.DB) *Outbox {
	return &Outbox{db: tx}
}

// Event is what callers hand to Publish.
type Event struct {
	Type              string
	TenantID          string
	BankTransactionID uuid.UUID
	MatchID           *uuid.UUID
	SuspenseEntryID   *uuid.UUID
	Payload           interface{}
}

func (o *Outbox) Publish(ctx context.Context, e Event) (*models.ReconciliationEvent, error) {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", e.Type, err)
	}
	row := &models.ReconciliationEvent{
		EventID:           uuid.New(),
		TenantID:          e.TenantID,
		Type:              e.Type,
		BankTransactionID: e.BankTransactionID,
		MatchID:           e.MatchID,
		SuspenseEntryID:   e.SuspenseEntryID,
		Payload:           datatypes.JSON(payload),
	}
	if err := o.db.WithContext(ctx).Create(row).Error; err != nil {
		return nil, fmt.Errorf("insert %s event: %w", e.Type, err)
	}
	return row, nil
}

// ListAfter returns a tenant's events with a sequence greater than after.
func (o *Outbox) ListAfter(ctx context.Context, tenantID string, after uint64, limit int) ([]models.ReconciliationEvent, error) {
	var rows []models.ReconciliationEvent
	err := o.db.WithContext(ctx).
		Where("tenant_id = ? AND sequence > ?", tenantID, after).
		Order("sequence ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
