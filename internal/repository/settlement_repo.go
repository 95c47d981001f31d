package repository

import (
	"context"
	"fmt"
	"time"

	"bank-reconciliation-engine/internal/models"
	"bank-reconciliation-engine/internal/services/matching"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SettlementRepository keeps the running total the engine has cleared
// against each match target.
type SettlementRepository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewSettlementRepository(db *gorm.DB) *SettlementRepository {
	return &SettlementRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

var _ matching.SettlementProvider = (*SettlementRepository)(nil)

// Settled returns the settlement of every listed target that has one.
func (r *SettlementRepository) Settled(ctx context.Context, tenantID string, targetIDs []string) (map[string]matching.Settlement, error) {
	out := make(map[string]matching.Settlement, len(targetIDs))
	if len(targetIDs) == 0 {
		return out, nil
	}
	var rows []models.TargetSettlement
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND target_id IN ?", tenantID, targetIDs).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.TargetID] = matching.Settlement{Cleared: row.ClearedAmount, Version: row.Version}
	}
	return out, nil
}

func (r *SettlementRepository) Get(ctx context.Context, tenantID, targetID string) (models.TargetSettlement, error) {
	row := models.TargetSettlement{TenantID: tenantID, TargetID: targetID}
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND target_id = ?", tenantID, targetID).
		Limit(1).
		Find(&row).Error
	return row, err
}

// Apply adds amount to the target's cleared total; a negative amount undoes
// a clearing. With expectVersion set the change only lands if nobody touched
// the target since that version was read, else ErrTargetSettled. The update
// takes the row lock, so concurrent clearings of one target serialise.
func (r *SettlementRepository) Apply(ctx context.Context, tenantID, targetID string, amount decimal.Decimal, expectVersion *int) error {
	db := r.db.WithContext(ctx)
	now := r.now()

	seed := models.TargetSettlement{TenantID: tenantID, TargetID: targetID, ClearedAmount: decimal.Zero, UpdatedAt: now}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
		return fmt.Errorf("seed settlement %s: %w", targetID, err)
	}

	count := 1
	if amount.IsNegative() {
		count = -1
	}
	q := db.Model(&models.TargetSettlement{}).Where("tenant_id = ? AND target_id = ?", tenantID, targetID)
	if expectVersion != nil {
		q = q.Where("version = ?", *expectVersion)
	}
	res := q.Updates(map[string]interface{}{
		"cleared_amount": gorm.Expr("cleared_amount + ?", amount),
		"match_count":    gorm.Expr("match_count + ?", count),
		"version":        gorm.Expr("version + 1"),
		"updated_at":     now,
	})
	if res.Error != nil {
		return fmt.Errorf("update settlement %s: %w", targetID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("target %s: %w", targetID, ErrTargetSettled)
	}
	return nil
}
