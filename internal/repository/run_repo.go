package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bank-reconciliation-engine/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RunRepository struct {
	db *gorm.DB
}

func NewRunRepository(db *gorm.DB) *RunRepository {
	return &RunRepository{db: db}
}

func (r *RunRepository) Create(ctx context.Context, tenantID, trigger string, claimed int) (*models.ReconciliationRun, error) {
	now := time.Now().UTC()
	run := &models.ReconciliationRun{
		ID:           uuid.New(),
		TenantID:     tenantID,
		Trigger:      trigger,
		TotalClaimed: claimed,
		Status:       models.RunProcessing,
		StartedAt:    now,
	}
	if err := r.db.WithContext(ctx).Create(run).Error; err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}
	return run, nil
}

func (r *RunRepository) Get(ctx context.Context, id uuid.UUID) (*models.ReconciliationRun, error) {
	var run models.ReconciliationRun
	err := r.db.WithContext(ctx).First(&run, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// UpdateProgress records how far the run has got so far.
func (r *RunRepository) UpdateProgress(ctx context.Context, run *models.ReconciliationRun) error {
	return r.db.WithContext(ctx).Model(&models.ReconciliationRun{}).
		Where("id = ?", run.ID).
		Updates(map[string]interface{}{
			"processed_count": run.ProcessedCount,
			"match_rate":      run.MatchRate,
		}).Error
}

// Finish persists the final counters and status.
func (r *RunRepository) Finish(ctx context.Context, run *models.ReconciliationRun, status models.RunStatus) error {
	now := time.Now().UTC()
	run.Status = status
	run.CompletedAt = &now
	return r.db.WithContext(ctx).Model(&models.ReconciliationRun{}).
		Where("id = ?", run.ID).
		Updates(map[string]interface{}{
			"processed_count":    run.ProcessedCount,
			"auto_matched_count": run.AutoMatchedCount,
			"needs_review_count": run.NeedsReviewCount,
			"suspense_count":     run.SuspenseCount,
			"deferred_count":     run.DeferredCount,
			"skipped_count":      run.SkippedCount,
			"failed_count":       run.FailedCount,
			"match_rate":         run.MatchRate,
			"status":             status,
			"completed_at":       now,
		}).Error
}
