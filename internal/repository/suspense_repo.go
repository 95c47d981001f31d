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

type SuspenseRepository struct {
	db *gorm.DB
}

func NewSuspenseRepository(db *gorm.DB) *SuspenseRepository {
	return &SuspenseRepository{db: db}
}

func (r *SuspenseRepository) WithTx(tx *gorm.DB) *SuspenseRepository {
	return &SuspenseRepository{db: tx}
}

func (r *SuspenseRepository) CreateAccount(ctx context.Context, acct *models.SuspenseAccount) error {
	if acct.ID == uuid.Nil {
		acct.ID = uuid.New()
	}
	acct.Active = true
	return r.db.WithContext(ctx).Create(acct).Error
}

func (r *SuspenseRepository) GetAccount(ctx context.Context, id uuid.UUID) (*models.SuspenseAccount, error) {
	var acct models.SuspenseAccount
	err := r.db.WithContext(ctx).First(&acct, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("suspense account %s: %w", id, ErrNotFound)
	}
	return &acct, err
}

func (r *SuspenseRepository) ListAccounts(ctx context.Context, tenantID string) ([]models.SuspenseAccount, error) {
	var accounts []models.SuspenseAccount
	err := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID).Order("code ASC").Find(&accounts).Error
	return accounts, err
}

func (r *SuspenseRepository) CreateEntry(ctx context.Context, e *models.SuspenseEntry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	e.Status = models.SuspenseOpen
	return r.db.WithContext(ctx).Create(e).Error
}

func (r *SuspenseRepository) GetEntry(ctx context.Context, id uuid.UUID) (*models.SuspenseEntry, error) {
	var e models.SuspenseEntry
	err := r.db.WithContext(ctx).First(&e, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("suspense entry %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// OpenEntryForTransaction returns the open entry holding txnID's funds, or nil.
func (r *SuspenseRepository) OpenEntryForTransaction(ctx context.Context, txnID uuid.UUID) (*models.SuspenseEntry, error) {
	var e models.SuspenseEntry
	err := r.db.WithContext(ctx).
		Where("bank_transaction_id = ? AND status = ?", txnID, models.SuspenseOpen).
		First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Resolution describes how an entry was closed.
type Resolution struct {
	Kind     string
	EntryID  *uuid.UUID
	MatchID  *uuid.UUID
	ClosedBy string
	ClosedAt time.Time
}

// Close marks an open entry closed. Only the first caller wins; everyone else
// gets ErrAlreadyClosed and the row is left as the winner wrote it.
func (r *SuspenseRepository) Close(ctx context.Context, e *models.SuspenseEntry, res Resolution) error {
	if err := models.CheckSuspenseTransition(e.Status, models.SuspenseClosed); err != nil {
		return fmt.Errorf("suspense entry %s: %w", e.ID, ErrAlreadyClosed)
	}
	out := r.db.WithContext(ctx).Model(&models.SuspenseEntry{}).
		Where("id = ? AND status = ?", e.ID, models.SuspenseOpen).
		Updates(map[string]interface{}{
			"status":              models.SuspenseClosed,
			"resolution":          res.Kind,
			"resolution_entry_id": res.EntryID,
			"resolution_match_id": res.MatchID,
			"closed_by":           res.ClosedBy,
			"closed_at":           res.ClosedAt,
		})
	if out.Error != nil {
		return out.Error
	}
	if out.RowsAffected == 0 {
		return fmt.Errorf("suspense entry %s: %w", e.ID, ErrAlreadyClosed)
	}
	e.Status = models.SuspenseClosed
	e.Resolution = res.Kind
	e.ResolutionEntryID = res.EntryID
	e.ResolutionMatchID = res.MatchID
	e.ClosedBy = res.ClosedBy
	e.ClosedAt = &res.ClosedAt
	return nil
}

// ListOpen pages open entries of a tenant by id.
func (r *SuspenseRepository) ListOpen(ctx context.Context, tenantID, cursor string, limit int) ([]models.SuspenseEntry, string, bool, error) {
	var entries []models.SuspenseEntry
	q := r.db.WithContext(ctx).
		Where("tenant_id = ? AND status = ?", tenantID, models.SuspenseOpen).
		Order("id ASC").
		Limit(limit + 1)
	if cursor != "" {
		q = q.Where("id > ?", cursor)
	}
	if err := q.Find(&entries).Error; err != nil {
		return nil, "", false, err
	}

	hasMore := false
	var next string
	if len(entries) > limit {
		hasMore = true
		next = entries[limit-1].ID.String()
		entries = entries[:limit]
	}
	return entries, next, hasMore, nil
}
