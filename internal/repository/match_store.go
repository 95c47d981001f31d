package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bank-reconciliation-engine/internal/models"
	"bank-reconciliation-engine/internal/services/matching"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MatchStore persists match attempts and their transitions. Every change
// writes an audit row in the same transaction.
type MatchStore struct {
	db  *gorm.DB
	now func() time.Time
}

func NewMatchStore(db *gorm.DB) *MatchStore {
	return &MatchStore{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (s *MatchStore) WithTx(tx *gorm.DB) *MatchStore {
	return &MatchStore{db: tx, now: s.now}
}

var _ matching.HistoryProvider = (*MatchStore)(nil)

// RecordAttempt inserts m. A match recorded directly as confirmed must be the
// only confirmed match of its transaction.
func (s *MatchStore) RecordAttempt(ctx context.Context, m *models.ReconciliationMatch) error {
	if m.Status == "" {
		m.Status = models.MatchPending
	}
	if m.Status != models.MatchPending && m.Status != models.MatchConfirmed {
		return fmt.Errorf("new match cannot start as %s: %w", m.Status, models.ErrIllegalTransition)
	}
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if m.Status == models.MatchConfirmed {
			if err := ensureNoConfirmed(tx, m.BankTransactionID, uuid.Nil); err != nil {
				return err
			}
			now := s.now()
			m.ResolvedAt = &now
		}
		if err := tx.Create(m).Error; err != nil {
			return fmt.Errorf("insert match: %w", err)
		}
		target := m.TargetID
		return appendAudit(tx, &models.MatchAuditLog{
			TransactionID: m.BankTransactionID,
			MatchID:       &m.ID,
			Action:        "attempt",
			ToStatus:      string(m.Status),
			NewTarget:     &target,
			PerformedBy:   m.Actor,
			Reason:        m.Reason,
		})
	})
}

func (s *MatchStore) Get(ctx context.Context, id uuid.UUID) (*models.ReconciliationMatch, error) {
	return getMatch(s.db.WithContext(ctx), id)
}

func (s *MatchStore) Confirm(ctx context.Context, id uuid.UUID, actor string) (*models.ReconciliationMatch, error) {
	var out *models.ReconciliationMatch
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		m, err := getMatch(tx, id)
		if err != nil {
			return err
		}
		if err := ensureNoConfirmed(tx, m.BankTransactionID, m.ID); err != nil {
			return err
		}
		if err := s.transition(tx, m, models.MatchConfirmed, actor, "", nil); err != nil {
			return err
		}
		out = m
		return nil
	})
	return out, err
}

func (s *MatchStore) Reject(ctx context.Context, id uuid.UUID, actor, reason string) (*models.ReconciliationMatch, error) {
	var out *models.ReconciliationMatch
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		m, err := getMatch(tx, id)
		if err != nil {
			return err
		}
		if err := s.transition(tx, m, models.MatchRejected, actor, reason, nil); err != nil {
			return err
		}
		out = m
		return nil
	})
	return out, err
}

// Override supersedes a confirmed match with replacement, which is stored
// confirmed. Both rows are audited.
func (s *MatchStore) Override(ctx context.Context, id uuid.UUID, replacement *models.ReconciliationMatch, actor, reason string) (*models.ReconciliationMatch, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		old, err := getMatch(tx, id)
		if err != nil {
			return err
		}
		if replacement.ID == uuid.Nil {
			replacement.ID = uuid.New()
		}
		if err := s.transition(tx, old, models.MatchOverridden, actor, reason, map[string]interface{}{
			"superseded_by_id": replacement.ID,
		}); err != nil {
			return err
		}
		old.SupersededByID = &replacement.ID

		now := s.now()
		replacement.TenantID = old.TenantID
		replacement.BankTransactionID = old.BankTransactionID
		replacement.PayerKey = old.PayerKey
		replacement.Status = models.MatchConfirmed
		replacement.Actor = actor
		replacement.Reason = reason
		replacement.ResolvedAt = &now
		if err := tx.Create(replacement).Error; err != nil {
			return fmt.Errorf("insert replacement match: %w", err)
		}

		prev, next := old.TargetID, replacement.TargetID
		return appendAudit(tx, &models.MatchAuditLog{
			TransactionID:  old.BankTransactionID,
			MatchID:        &replacement.ID,
			Action:         "override",
			ToStatus:       string(models.MatchConfirmed),
			PreviousTarget: &prev,
			NewTarget:      &next,
			PerformedBy:    actor,
			Reason:         reason,
		})
	})
	if err != nil {
		return nil, err
	}
	return replacement, nil
}

// SetClearingEntry links the journal entry that cleared a confirmed match.
func (s *MatchStore) SetClearingEntry(ctx context.Context, id, entryID uuid.UUID) error {
	return s.db.WithContext(ctx).Model(&models.ReconciliationMatch{}).
		Where("id = ?", id).
		Update("clearing_entry_id", entryID).Error
}

func (s *MatchStore) ListForTransaction(ctx context.Context, txnID uuid.UUID) ([]models.ReconciliationMatch, error) {
	var matches []models.ReconciliationMatch
	err := s.db.WithContext(ctx).
		Where("bank_transaction_id = ?", txnID).
		Order("created_at ASC, id ASC").
		Find(&matches).Error
	return matches, err
}

// Confirmed returns the transaction's confirmed match, or nil.
func (s *MatchStore) Confirmed(ctx context.Context, txnID uuid.UUID) (*models.ReconciliationMatch, error) {
	var m models.ReconciliationMatch
	err := s.db.WithContext(ctx).
		Where("bank_transaction_id = ? AND status = ?", txnID, models.MatchConfirmed).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Pending returns the transaction's open suggestion, or nil.
func (s *MatchStore) Pending(ctx context.Context, txnID uuid.UUID) (*models.ReconciliationMatch, error) {
	var m models.ReconciliationMatch
	err := s.db.WithContext(ctx).
		Where("bank_transaction_id = ? AND status = ?", txnID, models.MatchPending).
		Order("created_at DESC").
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// RejectedTargets lists targets a reviewer already turned down for txnID.
func (s *MatchStore) RejectedTargets(ctx context.Context, txnID uuid.UUID) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&models.ReconciliationMatch{}).
		Where("bank_transaction_id = ? AND status = ?", txnID, models.MatchRejected).
		Distinct().
		Pluck("target_id", &ids).Error
	return ids, err
}

// PayerHistory returns the counterparties of the payer's latest confirmed
// matches, so every confirmation feeds later predictions.
func (s *MatchStore) PayerHistory(ctx context.Context, tenantID, payerKey string, limit int) ([]string, error) {
	var keys []string
	err := s.db.WithContext(ctx).Model(&models.ReconciliationMatch{}).
		Where("tenant_id = ? AND payer_key = ? AND status = ?", tenantID, payerKey, models.MatchConfirmed).
		Order("resolved_at DESC, id ASC").
		Limit(limit).
		Pluck("counterparty_key", &keys).Error
	return keys, err
}

type MatchAnalytics struct {
	TotalMatches      int64            `json:"total_matches"`
	ByType            map[string]int64 `json:"by_type"`
	AverageConfidence float64          `json:"average_confidence"`
	AutoMatched       int64            `json:"auto_matched"`
	AutoMatchRate     float64          `json:"auto_match_rate"`
}

type typeRow struct {
	MatchType     string
	Count         int64
	ConfidenceSum int64
	AutoCount     int64
}

// Analytics summarises confirmed matches created within [from, to]. Zero
// bounds are open.
func (s *MatchStore) Analytics(ctx context.Context, tenantID string, from, to time.Time) (MatchAnalytics, error) {
	out := MatchAnalytics{ByType: make(map[string]int64)}
	q := s.db.WithContext(ctx).Model(&models.ReconciliationMatch{}).
		Where("tenant_id = ? AND status = ?", tenantID, models.MatchConfirmed)
	if !from.IsZero() {
		q = q.Where("created_at >= ?", from)
	}
	if !to.IsZero() {
		q = q.Where("created_at <= ?", to)
	}

	var rows []typeRow
	err := q.Select("match_type, COUNT(*) as count, COALESCE(SUM(confidence_score),0) as confidence_sum, " +
		"SUM(CASE WHEN auto_confirmed THEN 1 ELSE 0 END) as auto_count").
		Group("match_type").
		Scan(&rows).Error
	if err != nil {
		return out, err
	}

	var confidence int64
	for _, r := range rows {
		out.TotalMatches += r.Count
		out.ByType[r.MatchType] = r.Count
		out.AutoMatched += r.AutoCount
		confidence += r.ConfidenceSum
	}
	if out.TotalMatches > 0 {
		out.AverageConfidence = float64(confidence) / float64(out.TotalMatches)
		out.AutoMatchRate = float64(out.AutoMatched) / float64(out.TotalMatches)
	}
	return out, nil
}

func (s *MatchStore) transition(tx *gorm.DB, m *models.ReconciliationMatch, to models.MatchStatus, actor, reason string, extra map[string]interface{}) error {
	from := m.Status
	if err := models.CheckMatchTransition(from, to); err != nil {
		return err
	}
	now := s.now()
	updates := map[string]interface{}{"status": to, "resolved_at": now}
	if reason != "" {
		updates["reason"] = reason
	}
	if actor != "" {
		updates["actor"] = actor
	}
	for k, v := range extra {
		updates[k] = v
	}

	res := tx.Model(&models.ReconciliationMatch{}).Where("id = ? AND status = ?", m.ID, from).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("match %s left %s: %w", m.ID, from, ErrConcurrencyClaimFailed)
	}
	m.Status = to
	m.ResolvedAt = &now
	if reason != "" {
		m.Reason = reason
	}
	if actor != "" {
		m.Actor = actor
	}

	target := m.TargetID
	return appendAudit(tx, &models.MatchAuditLog{
		TransactionID: m.BankTransactionID,
		MatchID:       &m.ID,
		Action:        string(to),
		FromStatus:    string(from),
		ToStatus:      string(to),
		NewTarget:     &target,
		PerformedBy:   actor,
		Reason:        reason,
	})
}

func getMatch(db *gorm.DB, id uuid.UUID) (*models.ReconciliationMatch, error) {
	var m models.ReconciliationMatch
	err := db.First(&m, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("match %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func ensureNoConfirmed(tx *gorm.DB, txnID, except uuid.UUID) error {
	var count int64
	q := tx.Model(&models.ReconciliationMatch{}).
		Where("bank_transaction_id = ? AND status = ?", txnID, models.MatchConfirmed)
	if except != uuid.Nil {
		q = q.Where("id <> ?", except)
	}
	if err := q.Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("transaction %s already has a confirmed match: %w", txnID, models.ErrIllegalTransition)
	}
	return nil
}
