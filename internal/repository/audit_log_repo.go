package repository

import (
	"context"

	"bank-reconciliation-engine/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

func appendAudit(db *gorm.DB, entry *models.MatchAuditLog) error {
	entry.ID = uuid.New()
	return db.Create(entry).Error
}

// AuditTrail returns every recorded state change of a transaction, oldest first.
func AuditTrail(ctx context.Context, db *gorm.DB, txnID uuid.UUID) ([]models.MatchAuditLog, error) {
	var logs []models.MatchAuditLog
	err := db.WithContext(ctx).
		Where("transaction_id = ?", txnID).
		Order("created_at ASC, id ASC").
		Find(&logs).Error
	return logs, err
}
