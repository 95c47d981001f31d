package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bank-reconciliation-engine/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type BankTransactionRepository struct {
	db *gorm.DB
}

func NewBankTransactionRepository(db *gorm.DB) *BankTransactionRepository {
	return &BankTransactionRepository{db: db}
}

func (r *BankTransactionRepository) WithTx(tx *gorm.DB) *BankTransactionRepository {
	return &BankTransactionRepository{db: tx}
}

// Insert stores txn unless a row with the same dedupe key exists. It reports
// whether a row was written.
func (r *BankTransactionRepository) Insert(ctx context.Context, txn *models.BankTransaction) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "dedupe_key"}}, DoNothing: true}).
		Create(txn)
	if res.Error != nil {
		return false, fmt.Errorf("insert bank transaction: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *BankTransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.BankTransaction, error) {
	var txn models.BankTransaction
	err := r.db.WithContext(ctx).First(&txn, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("bank transaction %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

// Claim moves the transaction to processing if nobody else did first. A
// processing row whose claim is older than lease is treated as abandoned.
func (r *BankTransactionRepository) Claim(ctx context.Context, id uuid.UUID, lease time.Duration, now time.Time) (*models.BankTransaction, error) {
	txn, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	q := r.db.WithContext(ctx).Model(&models.BankTransaction{}).Where("id = ?", id)
	updates := map[string]interface{}{
		"status":     models.TxnProcessing,
		"claimed_at": now,
		"attempts":   gorm.Expr("attempts + 1"),
	}
	switch {
	case txn.Status == models.TxnProcessing:
		if txn.ClaimedAt == nil || now.Sub(*txn.ClaimedAt) < lease {
			return nil, fmt.Errorf("transaction %s is being processed: %w", id, ErrConcurrencyClaimFailed)
		}
		q = q.Where("status = ? AND claimed_at < ?", models.TxnProcessing, now.Add(-lease))
	case models.CheckTxnTransition(txn.Status, models.TxnProcessing) == nil:
		q = q.Where("status = ?", txn.Status)
		updates["claimed_from_status"] = txn.Status
	default:
		return nil, fmt.Errorf("transaction %s is %s: %w", id, txn.Status, models.ErrIllegalTransition)
	}

	res := q.Updates(updates)
	if res.Error != nil {
		return nil, fmt.Errorf("claim transaction %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("transaction %s: %w", id, ErrConcurrencyClaimFailed)
	}

	if txn.Status != models.TxnProcessing {
		txn.ClaimedFromStatus = txn.Status
	}
	txn.Status = models.TxnProcessing
	txn.ClaimedAt = &now
	txn.Attempts++
	return txn, nil
}

// Transition moves a transaction from one status to another with a
// conditional update and writes the audit row. extra carries column updates
// that travel with the status change.
func (r *BankTransactionRepository) Transition(ctx context.Context, txn *models.BankTransaction, to models.TxnStatus, actor, reason string, extra map[string]interface{}) error {
	from := txn.Status
	if err := models.CheckTxnTransition(from, to); err != nil {
		return err
	}

	updates := map[string]interface{}{"status": to}
	if from == models.TxnProcessing {
		updates["claimed_at"] = nil
	}
	for k, v := range extra {
		updates[k] = v
	}

	res := r.db.WithContext(ctx).Model(&models.BankTransaction{}).
		Where("id = ? AND status = ?", txn.ID, from).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("update transaction %s: %w", txn.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("transaction %s left %s: %w", txn.ID, from, ErrConcurrencyClaimFailed)
	}

	txn.Status = to
	if from == models.TxnProcessing {
		txn.ClaimedAt = nil
	}
	return appendAudit(r.db.WithContext(ctx), &models.MatchAuditLog{
		TransactionID: txn.ID,
		Action:        "status_change",
		FromStatus:    string(from),
		ToStatus:      string(to),
		PerformedBy:   actor,
		Reason:        reason,
	})
}

// ClaimableIDs lists transactions of a tenant in the given statuses plus any
// processing rows whose claim expired, oldest first.
func (r *BankTransactionRepository) ClaimableIDs(ctx context.Context, tenantID string, statuses []models.TxnStatus, staleBefore time.Time, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).Model(&models.BankTransaction{}).
		Where("tenant_id = ?", tenantID).
		Where("status IN ? OR (status = ? AND claimed_at < ?)", statuses, models.TxnProcessing, staleBefore).
		Order("transaction_date ASC, id ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	return ids, err
}

// List pages a tenant's transactions by id. search matches the narration or
// reference.
func (r *BankTransactionRepository) List(ctx context.Context, tenantID, status, cursor, search string, limit int) ([]models.BankTransaction, string, bool, error) {
	var txns []models.BankTransaction
	query := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("id ASC").
		Limit(limit + 1)

	if status != "" && status != "all" {
		query = query.Where("status = ?", status)
	}
	if cursor != "" {
		query = query.Where("id > ?", cursor)
	}
	if search != "" {
		like := "%" + search + "%"
		query = query.Where("LOWER(description) LIKE LOWER(?) OR reference_number LIKE ?", like, like)
	}

	if err := query.Find(&txns).Error; err != nil {
		return nil, "", false, err
	}

	hasMore := false
	var nextCursor string
	if len(txns) > limit {
		hasMore = true
		nextCursor = txns[limit-1].ID.String()
		txns = txns[:limit]
	}
	return txns, nextCursor, hasMore, nil
}

type StatusStat struct {
	Count  int64           `json:"count"`
	Amount decimal.Decimal `json:"amount"`
}

type TenantStats struct {
	Total       int64                 `json:"total"`
	TotalAmount decimal.Decimal       `json:"total_amount"`
	ByStatus    map[string]StatusStat `json:"by_status"`
}

type statRow struct {
	Status string
	Count  int64
	Sum    decimal.Decimal
}

func (r *BankTransactionRepository) Stats(ctx context.Context, tenantID string) (TenantStats, error) {
	stats := TenantStats{ByStatus: make(map[string]StatusStat)}
	var rows []statRow

	err := r.db.WithContext(ctx).Model(&models.BankTransaction{}).
		Where("tenant_id = ?", tenantID).
		Select("status, COUNT(*) as count, COALESCE(SUM(amount),0) as sum").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return stats, err
	}

	for _, row := range rows {
		stats.Total += row.Count
		stats.TotalAmount = stats.TotalAmount.Add(row.Sum)
		stats.ByStatus[row.Status] = StatusStat{Count: row.Count, Amount: row.Sum}
	}
	return stats, nil
}

// SetMatchedTarget repoints a matched transaction after an override. The
// status is left alone.
func (r *BankTransactionRepository) SetMatchedTarget(ctx context.Context, txn *models.BankTransaction, targetID string, confidence int, actor, reason string) error {
	res := r.db.WithContext(ctx).Model(&models.BankTransaction{}).
		Where("id = ? AND status = ?", txn.ID, models.TxnMatched).
		Updates(map[string]interface{}{
			"matched_target_id": targetID,
			"confidence_score":  confidence,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("transaction %s is %s: %w", txn.ID, txn.Status, models.ErrIllegalTransition)
	}

	var prev *string
	if txn.MatchedTargetID != nil {
		p := *txn.MatchedTargetID
		prev = &p
	}
	txn.MatchedTargetID = &targetID
	txn.ConfidenceScore = confidence
	return appendAudit(r.db.WithContext(ctx), &models.MatchAuditLog{
		TransactionID:  txn.ID,
		Action:         "retarget",
		FromStatus:     string(txn.Status),
		ToStatus:       string(txn.Status),
		PreviousTarget: prev,
		NewTarget:      &targetID,
		PerformedBy:    actor,
		Reason:         reason,
	})
}
