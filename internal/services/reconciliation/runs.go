package reconciliation

import (
	"context"
	"errors"
	"log"
	"sync"

	"bank-reconciliation-engine/internal/models"
	"bank-reconciliation-engine/internal/repository"
	"bank-reconciliation-engine/internal/services/matching"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	TriggerManual    = "manual"
	TriggerScheduled = "scheduled"
)

const (
	// queueBatchSize caps how many transactions one run picks up.
	queueBatchSize = 500
	progressEvery  = 25
)

// RunTenantQueue processes a tenant's pending transactions, abandoned claims
// and suspense with a bounded worker pool and returns the finished run.
func (s *ReconciliationService) RunTenantQueue(ctx context.Context, tenantID, trigger string) (*models.ReconciliationRun, error) {
	run, ids, err := s.prepareRun(ctx, tenantID, trigger)
	if err != nil {
		return nil, err
	}
	if err := s.execute(ctx, run, ids); err != nil {
		return run, err
	}
	return run, nil
}

// StartRun records a run and processes it in the background. Poll GetRun
// for progress.
func (s *ReconciliationService) StartRun(ctx context.Context, tenantID, trigger string) (*models.ReconciliationRun, error) {
	run, ids, err := s.prepareRun(ctx, tenantID, trigger)
	if err != nil {
		return nil, err
	}
	snapshot := *run
	go func() {
		if err := s.execute(context.Background(), run, ids); err != nil {
			log.Printf("[reconciliation] run %s failed: %v", run.ID, err)
		}
	}()
	return &snapshot, nil
}

func (s *ReconciliationService) prepareRun(ctx context.Context, tenantID, trigger string) (*models.ReconciliationRun, []uuid.UUID, error) {
	ids, err := s.queue(ctx, tenantID)
	if err != nil {
		return nil, nil, err
	}
	run, err := repository.NewRunRepository(s.db).Create(ctx, tenantID, trigger, len(ids))
	if err != nil {
		return nil, nil, err
	}
	log.Printf("[reconciliation] run %s for tenant %s: %d transactions queued", run.ID, tenantID, len(ids))
	return run, ids, nil
}

// queue lists what a run picks up: pending transactions and abandoned
// claims first, then money parked in suspense with whatever capacity is
// left, so receivables that arrived since can clear it.
func (s *ReconciliationService) queue(ctx context.Context, tenantID string) ([]uuid.UUID, error) {
	txns := repository.NewBankTransactionRepository(s.db)
	staleBefore := s.now().Add(-s.cfg.ClaimLease)

	ids, err := txns.ClaimableIDs(ctx, tenantID, []models.TxnStatus{models.TxnPending}, staleBefore, queueBatchSize)
	if err != nil {
		return nil, err
	}
	if len(ids) >= queueBatchSize {
		return ids, nil
	}

	parked, err := txns.ClaimableIDs(ctx, tenantID, []models.TxnStatus{models.TxnSuspense}, staleBefore, queueBatchSize-len(ids))
	if err != nil {
		return nil, err
	}
	seen := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		seen[id] = true
	}
	for _, id := range parked {
		if !seen[id] {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *ReconciliationService) execute(ctx context.Context, run *models.ReconciliationRun, ids []uuid.UUID) error {
	runs := repository.NewRunRepository(s.db)
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := s.ProcessTransaction(gctx, id)
			if err != nil && !skippable(err) {
				log.Printf("[reconciliation] run %s: txn %s: %v", run.ID, id, err)
			}

			mu.Lock()
			defer mu.Unlock()
			tally(run, res, err)
			if run.ProcessedCount%progressEvery == 0 {
				if err := runs.UpdateProgress(gctx, run); err != nil {
					log.Printf("[reconciliation] run %s: progress update: %v", run.ID, err)
				}
			}
			// One bad transaction never stops the run.
			return nil
		})
	}
	err := g.Wait()

	status := models.RunCompleted
	if err != nil {
		status = models.RunFailed
	}
	if ferr := runs.Finish(context.WithoutCancel(ctx), run, status); ferr != nil {
		return errors.Join(err, ferr)
	}
	log.Printf("[reconciliation] run %s %s: processed=%d auto=%d review=%d suspense=%d deferred=%d skipped=%d failed=%d",
		run.ID, status, run.ProcessedCount, run.AutoMatchedCount, run.NeedsReviewCount,
		run.SuspenseCount, run.DeferredCount, run.SkippedCount, run.FailedCount)
	return err
}

// skippable errors mean another actor got to the transaction first.
func skippable(err error) bool {
	return errors.Is(err, repository.ErrConcurrencyClaimFailed) || errors.Is(err, models.ErrIllegalTransition)
}

func tally(run *models.ReconciliationRun, res *ProcessResult, err error) {
	run.ProcessedCount++
	switch {
	case err != nil && skippable(err):
		run.SkippedCount++
	case err != nil:
		run.FailedCount++
	case res.Decision == matching.DecisionAutoConfirm:
		run.AutoMatchedCount++
	case res.Decision == matching.DecisionReview:
		run.NeedsReviewCount++
	case res.Decision == matching.DecisionSuspense:
		run.SuspenseCount++
	default:
		run.DeferredCount++
	}
	run.UpdateMatchRate()
}
