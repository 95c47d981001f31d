// Package suspense parks unmatched bank money in suspense accounts and
// clears it again by rematching or writing it off.
package suspense

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"bank-reconciliation-engine/internal/events"
	"bank-reconciliation-engine/internal/models"
	"bank-reconciliation-engine/internal/repository"
	"bank-reconciliation-engine/internal/services/ledger"
	"bank-reconciliation-engine/internal/services/matching"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrAlreadyClosed = repository.ErrAlreadyClosed
	ErrValidation    = errors.New("invalid suspense request")
)

type Router struct {
	db  *gorm.DB
	now func() time.Time
}

func NewRouter(db *gorm.DB) *Router {
	return &Router{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// WithTx returns a Router whose writes join the caller's transaction.
func (r *Router) WithTx(tx *gorm.DB) *Router {
	return &Router{db: tx, now: r.now}
}

// Route opens a suspense entry for txn, which must be processing. Posting,
// entry, status change and event commit together. Routing a transaction that
// already has an open entry returns that entry.
func (r *Router) Route(ctx context.Context, txn *models.BankTransaction, reason, actor string) (*models.SuspenseEntry, error) {
	var out *models.SuspenseEntry
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		entries := repository.NewSuspenseRepository(tx)
		txns := repository.NewBankTransactionRepository(tx)

		existing, err := entries.OpenEntryForTransaction(ctx, txn.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			if txn.Status != models.TxnSuspense {
				if err := txns.Transition(ctx, txn, models.TxnSuspense, actor, reason, nil); err != nil {
					return err
				}
			}
			out = existing
			return nil
		}

		accts, err := repository.NewSettingsRepository(tx).PostingAccounts(ctx, txn)
		if err != nil {
			return err
		}
		openingID, err := ledger.NewService(tx).PostEntry(ctx, ledger.SuspenseEntry(txn, accts.BankGL, accts.SuspenseGL, reason, actor))
		if err != nil {
			return fmt.Errorf("post suspense entry: %w", err)
		}

		entry := &models.SuspenseEntry{
			TenantID:          txn.TenantID,
			BankTransactionID: txn.ID,
			SuspenseAccountID: accts.SuspenseAccountID,
			Reason:            reason,
			OpeningEntryID:    openingID,
			OpenedAt:          r.now(),
		}
		if err := entries.CreateEntry(ctx, entry); err != nil {
			return err
		}
		if err := txns.Transition(ctx, txn, models.TxnSuspense, actor, reason, map[string]interface{}{
			"triage_reason": reason,
		}); err != nil {
			return err
		}
		txn.TriageReason = reason

		_, err = events.NewOutbox(tx).Publish(ctx, events.Event{
			Type:              models.EventSuspenseRouted,
			TenantID:          txn.TenantID,
			BankTransactionID: txn.ID,
			SuspenseEntryID:   &entry.ID,
			Payload: map[string]interface{}{
				"reason":           reason,
				"amount":           txn.Amount.String(),
				"direction":        txn.Direction,
				"opening_entry_id": openingID,
			},
		})
		if err != nil {
			return err
		}
		out = entry
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[suspense] txn %s routed to suspense entry %s: %s", txn.ID, out.ID, reason)
	return out, nil
}

// MatchDetails describes the confirmed match a rematch records.
type MatchDetails struct {
	Type          models.MatchType
	Confidence    int
	Criteria      datatypes.JSON
	AutoConfirmed bool
	Actor         string
	// SettledVersion, when set, is the target settlement version the match
	// was scored against.
	SettledVersion *int
}

// Rematch clears an open entry against target as a manual match. A zero
// confidence means 100.
func (r *Router) Rematch(ctx context.Context, entryID uuid.UUID, target matching.Candidate, confidence int, actor string) (*models.ReconciliationMatch, error) {
	if confidence == 0 {
		confidence = 100
	}
	return r.RematchAs(ctx, entryID, target, MatchDetails{
		Type:       models.MatchManual,
		Confidence: confidence,
		Actor:      actor,
	})
}

// RematchAs clears an open entry against target: the opening posting is
// reversed, the match is confirmed and the clearing entry posted. A pending
// suggestion for the same target is confirmed rather than duplicated; any
// other pending suggestion is rejected.
func (r *Router) RematchAs(ctx context.Context, entryID uuid.UUID, target matching.Candidate, d MatchDetails) (*models.ReconciliationMatch, error) {
	if d.Confidence <= 0 || d.Confidence > 100 {
		return nil, fmt.Errorf("confidence %d out of range: %w", d.Confidence, ErrValidation)
	}

	var out *models.ReconciliationMatch
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		entries := repository.NewSuspenseRepository(tx)
		txns := repository.NewBankTransactionRepository(tx)
		matches := repository.NewMatchStore(tx)
		gl := ledger.NewService(tx)

		entry, err := entries.GetEntry(ctx, entryID)
		if err != nil {
			return err
		}
		txn, err := txns.GetByID(ctx, entry.BankTransactionID)
		if err != nil {
			return err
		}
		if target.Currency != "" && target.Currency != txn.Currency {
			return fmt.Errorf("target %s is in %s, transaction in %s: %w", target.ID, target.Currency, txn.Currency, ErrValidation)
		}

		pending, err := matches.Pending(ctx, txn.ID)
		if err != nil {
			return err
		}
		reuse := pending != nil && pending.TargetID == target.ID
		matchID := uuid.New()
		if reuse {
			matchID = pending.ID
		}
		clearingID := uuid.New()

		// Close first so a concurrent closer fails before anything is posted.
		if err := entries.Close(ctx, entry, repository.Resolution{
			Kind:     models.ResolutionRematched,
			EntryID:  &clearingID,
			MatchID:  &matchID,
			ClosedBy: d.Actor,
			ClosedAt: r.now(),
		}); err != nil {
			return err
		}

		reverseKey := "suspense-reverse:" + entry.ID.String()
		if _, err := gl.Reverse(ctx, entry.OpeningEntryID, ledger.ReverseOptions{
			Actor:          d.Actor,
			Description:    "Suspense cleared by rematch",
			ReferenceType:  models.RefSuspense,
			ReferenceID:    entry.ID.String(),
			IdempotencyKey: &reverseKey,
		}); err != nil {
			return fmt.Errorf("reverse suspense posting: %w", err)
		}

		var m *models.ReconciliationMatch
		if reuse {
			if m, err = matches.Confirm(ctx, pending.ID, d.Actor); err != nil {
				return err
			}
		} else {
			if pending != nil {
				if _, err := matches.Reject(ctx, pending.ID, d.Actor, "superseded by suspense rematch"); err != nil {
					return err
				}
			}
			criteria := d.Criteria
			if criteria == nil {
				criteria, _ = json.Marshal(map[string]interface{}{
					"source":            "suspense_rematch",
					"suspense_entry_id": entry.ID,
				})
			}
			m = &models.ReconciliationMatch{
				ID:                matchID,
				TenantID:          txn.TenantID,
				BankTransactionID: txn.ID,
				TargetType:        targetType(target),
				TargetID:          target.ID,
				CounterpartyKey:   target.CounterpartyKey,
				PayerKey:          txn.PayerKey,
				MatchType:         d.Type,
				ConfidenceScore:   d.Confidence,
				MatchingCriteria:  criteria,
				Status:            models.MatchConfirmed,
				AutoConfirmed:     d.AutoConfirmed,
				Actor:             d.Actor,
			}
			if err := matches.RecordAttempt(ctx, m); err != nil {
				return err
			}
		}

		if err := repository.NewSettlementRepository(tx).Apply(ctx, txn.TenantID, target.ID, txn.Amount.Abs(), d.SettledVersion); err != nil {
			return err
		}
		accts, err := repository.NewSettingsRepository(tx).PostingAccounts(ctx, txn)
		if err != nil {
			return err
		}
		clearing := ledger.ClearingEntry(txn, accts.BankGL, accts.Receivables, m.ID, d.Actor)
		clearing.ID = clearingID
		postedID, err := gl.PostEntry(ctx, clearing)
		if err != nil {
			return fmt.Errorf("post clearing entry: %w", err)
		}
		if err := matches.SetClearingEntry(ctx, m.ID, postedID); err != nil {
			return err
		}
		m.ClearingEntryID = &postedID

		if err := txns.Transition(ctx, txn, models.TxnMatched, d.Actor, "suspense rematched", map[string]interface{}{
			"matched_target_id": target.ID,
			"confidence_score":  m.ConfidenceScore,
			"triage_reason":     "",
		}); err != nil {
			return err
		}

		if _, err := events.NewOutbox(tx).Publish(ctx, events.Event{
			Type:              models.EventSuspenseClosed,
			TenantID:          txn.TenantID,
			BankTransactionID: txn.ID,
			MatchID:           &m.ID,
			SuspenseEntryID:   &entry.ID,
			Payload: map[string]interface{}{
				"resolution": models.ResolutionRematched,
				"target_id":  target.ID,
				"match_type": m.MatchType,
				"confidence": m.ConfidenceScore,
			},
		}); err != nil {
			return err
		}
		out = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[suspense] entry %s rematched to %s by %s", entryID, target.ID, d.Actor)
	return out, nil
}

// WriteOff clears an open entry into the tenant's write-off account.
func (r *Router) WriteOff(ctx context.Context, entryID uuid.UUID, actor, reason string) (*models.SuspenseEntry, error) {
	var out *models.SuspenseEntry
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		entries := repository.NewSuspenseRepository(tx)
		txns := repository.NewBankTransactionRepository(tx)

		entry, err := entries.GetEntry(ctx, entryID)
		if err != nil {
			return err
		}
		txn, err := txns.GetByID(ctx, entry.BankTransactionID)
		if err != nil {
			return err
		}
		suspenseAcct, err := entries.GetAccount(ctx, entry.SuspenseAccountID)
		if err != nil {
			return err
		}
		settings, err := repository.NewSettingsRepository(tx).Get(ctx, txn.TenantID)
		if err != nil {
			return err
		}

		now := r.now()
		writeOffID := uuid.New()
		if err := entries.Close(ctx, entry, repository.Resolution{
			Kind:     models.ResolutionWrittenOff,
			EntryID:  &writeOffID,
			ClosedBy: actor,
			ClosedAt: now,
		}); err != nil {
			return err
		}

		posting := ledger.WriteOffEntry(txn, suspenseAcct.GlAccountID, settings.WriteOffAccountID, entry.ID, reason, actor, now.Truncate(24*time.Hour))
		posting.ID = writeOffID
		if _, err := ledger.NewService(tx).PostEntry(ctx, posting); err != nil {
			return fmt.Errorf("post write-off: %w", err)
		}

		if err := txns.Transition(ctx, txn, models.TxnWrittenOff, actor, reason, nil); err != nil {
			return err
		}
		if _, err := events.NewOutbox(tx).Publish(ctx, events.Event{
			Type:              models.EventSuspenseClosed,
			TenantID:          txn.TenantID,
			BankTransactionID: txn.ID,
			SuspenseEntryID:   &entry.ID,
			Payload: map[string]interface{}{
				"resolution": models.ResolutionWrittenOff,
				"reason":     reason,
				"amount":     txn.Amount.String(),
			},
		}); err != nil {
			return err
		}
		out = entry
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[suspense] entry %s written off by %s: %s", entryID, actor, reason)
	return out, nil
}

// OutstandingTotal is the combined balance of a tenant's suspense GL
// accounts, on their normal side.
func (r *Router) OutstandingTotal(ctx context.Context, tenantID string, asOf time.Time) (decimal.Decimal, error) {
	accounts, err := repository.NewSuspenseRepository(r.db).ListAccounts(ctx, tenantID)
	if err != nil {
		return decimal.Zero, err
	}
	gl := ledger.NewService(r.db)
	seen := make(map[uuid.UUID]bool, len(accounts))
	total := decimal.Zero
	for _, a := range accounts {
		if seen[a.GlAccountID] {
			continue
		}
		seen[a.GlAccountID] = true
		b, err := gl.GetAccountBalance(ctx, a.GlAccountID, asOf)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(b.Normal)
	}
	return total, nil
}

func (r *Router) ListOpen(ctx context.Context, tenantID, cursor string, limit int) ([]models.SuspenseEntry, string, bool, error) {
	return repository.NewSuspenseRepository(r.db).ListOpen(ctx, tenantID, cursor, limit)
}

func (r *Router) GetEntry(ctx context.Context, id uuid.UUID) (*models.SuspenseEntry, error) {
	return repository.NewSuspenseRepository(r.db).GetEntry(ctx, id)
}

func targetType(c matching.Candidate) models.TargetType {
	if c.Type == "" {
		return models.TargetInvoice
	}
	return c.Type
}
