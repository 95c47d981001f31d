package reconciliation

import (
	"context"
	"time"

	"bank-reconciliation-engine/internal/events"
	"bank-reconciliation-engine/internal/models"
	"bank-reconciliation-engine/internal/repository"
	"bank-reconciliation-engine/internal/services/matching"

	"github.com/google/uuid"
)

func (s *ReconciliationService) GetTransaction(ctx context.Context, id uuid.UUID) (*models.BankTransaction, error) {
	return repository.NewBankTransactionRepository(s.db).GetByID(ctx, id)
}

func (s *ReconciliationService) ListTransactions(ctx context.Context, tenantID, status, cursor, search string, limit int) ([]models.BankTransaction, string, bool, error) {
	return repository.NewBankTransactionRepository(s.db).List(ctx, tenantID, status, cursor, search, limit)
}

func (s *ReconciliationService) GetTenantStats(ctx context.Context, tenantID string) (repository.TenantStats, error) {
	return repository.NewBankTransactionRepository(s.db).Stats(ctx, tenantID)
}

func (s *ReconciliationService) Analytics(ctx context.Context, tenantID string, from, to time.Time) (repository.MatchAnalytics, error) {
	return repository.NewMatchStore(s.db).Analytics(ctx, tenantID, from, to)
}

func (s *ReconciliationService) ListMatches(ctx context.Context, txnID uuid.UUID) ([]models.ReconciliationMatch, error) {
	return repository.NewMatchStore(s.db).ListForTransaction(ctx, txnID)
}

func (s *ReconciliationService) AuditTrail(ctx context.Context, txnID uuid.UUID) ([]models.MatchAuditLog, error) {
	return repository.AuditTrail(ctx, s.db, txnID)
}

// Suggestions ranks candidates for a transaction without changing anything.
// Targets a reviewer already rejected are left out.
func (s *ReconciliationService) Suggestions(ctx context.Context, txnID uuid.UUID, limit int) ([]matching.Suggestion, error) {
	txn, err := s.GetTransaction(ctx, txnID)
	if err != nil {
		return nil, err
	}
	exclude, err := repository.NewMatchStore(s.db).RejectedTargets(ctx, txnID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = s.cfg.SuggestionLimit
	}
	return s.pipeline.Rank(ctx, txn, exclude, limit)
}

func (s *ReconciliationService) GetRun(ctx context.Context, id uuid.UUID) (*models.ReconciliationRun, error) {
	return repository.NewRunRepository(s.db).Get(ctx, id)
}

func (s *ReconciliationService) ListEvents(ctx context.Context, tenantID string, after uint64, limit int) ([]models.ReconciliationEvent, error) {
	return events.NewOutbox(s.db).ListAfter(ctx, tenantID, after, limit)
}
