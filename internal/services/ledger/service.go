package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bank-reconciliation-engine/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrValidation       = errors.New("invalid journal entry")
	ErrUnbalancedEntry  = errors.New("unbalanced journal entry")
	ErrInvalidAccount   = errors.New("invalid gl account")
	ErrEntryNotFound    = errors.New("journal entry not found")
	ErrAlreadyReversed  = errors.New("journal entry already reversed")
	ErrNotDraft         = errors.New("journal entry is not a draft")
	ErrAccountImmutable = errors.New("gl account is referenced by posted entries")
)

// Service owns GL accounts and journal entries. Balances are never stored;
// they are derived from posted lines on every read.
type Service struct {
	db  *gorm.DB
	now func() time.Time
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// WithTx returns a Service whose writes join the caller's transaction.
func (s *Service) WithTx(tx *gorm.DB) *Service {
	return &Service{db: tx, now: s.now}
}

// PostEntry validates and persists entry as posted, all lines or none.
// An entry carrying an idempotency key that was already posted returns the
// existing id.
func (s *Service) PostEntry(ctx context.Context, entry *models.JournalEntry) (uuid.UUID, error) {
	if err := validateShape(entry); err != nil {
		return uuid.Nil, err
	}
	if err := checkBalanced(entry); err != nil {
		return uuid.Nil, err
	}

	if entry.IdempotencyKey != nil {
		existing, err := s.findByKey(ctx, *entry.IdempotencyKey)
		if err != nil {
			return uuid.Nil, err
		}
		if existing != nil {
			return existing.ID, nil
		}
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkAccounts(tx, entry); err != nil {
			return err
		}

		now := s.now()
		if entry.ID == uuid.Nil {
			entry.ID = uuid.New()
		}
		entry.EntryNumber = entryNumber(entry)
		entry.Status = models.EntryPosted
		entry.PostedAt = &now
		for i := range entry.Lines {
			entry.Lines[i].ID = uuid.New()
			entry.Lines[i].EntryID = entry.ID
			entry.Lines[i].LineNo = i + 1
		}

		if err := tx.Create(entry).Error; err != nil {
			return fmt.Errorf("insert journal entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return uuid.Nil, err
	}
	return entry.ID, nil
}

// ReverseOptions describes the reversing entry posted by Reverse.
type ReverseOptions struct {
	Actor          string
	Description    string
	ReferenceType  string
	ReferenceID    string
	IdempotencyKey *string
}

func (s *Service) ReverseEntry(ctx context.Context, entryID uuid.UUID, actor string) (uuid.UUID, error) {
	return s.Reverse(ctx, entryID, ReverseOptions{Actor: actor})
}

// Reverse posts a new entry with every line's direction flipped. The
// original stays untouched; the link lives on the reversal.
func (s *Service) Reverse(ctx context.Context, entryID uuid.UUID, opts ReverseOptions) (uuid.UUID, error) {
	var reversalID uuid.UUID
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		original, err := loadEntry(tx, entryID)
		if err != nil {
			return err
		}
		if original.Status != models.EntryPosted {
			return fmt.Errorf("entry %s is %s: %w", entryID, original.Status, ErrValidation)
		}

		var count int64
		if err := tx.Model(&models.JournalEntry{}).Where("reverses_entry_id = ?", entryID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("entry %s: %w", entryID, ErrAlreadyReversed)
		}

		reversal := &models.JournalEntry{
			TenantID:        original.TenantID,
			EntryDate:       s.now(),
			Description:     opts.Description,
			Currency:        original.Currency,
			ReferenceType:   opts.ReferenceType,
			ReferenceID:     opts.ReferenceID,
			MatchID:         original.MatchID,
			ReversesEntryID: &original.ID,
			IdempotencyKey:  opts.IdempotencyKey,
			PostedBy:        opts.Actor,
		}
		if reversal.Description == "" {
			reversal.Description = "Reversal of " + original.EntryNumber
		}
		if reversal.ReferenceType == "" {
			reversal.ReferenceType = models.RefReversal
			reversal.ReferenceID = original.ID.String()
		}
		for _, l := range original.Lines {
			reversal.Lines = append(reversal.Lines, models.GlLine{
				AccountID:   l.AccountID,
				Direction:   l.Direction.Opposite(),
				Amount:      l.Amount,
				Description: l.Description,
				CostCenter:  l.CostCenter,
				Project:     l.Project,
			})
		}

		id, err := s.WithTx(tx).PostEntry(ctx, reversal)
		if err != nil {
			return err
		}
		reversalID = id
		return nil
	})
	if err != nil {
		return uuid.Nil, err
	}
	return reversalID, nil
}

// SaveDraft stores an entry without balance checks.
func (s *Service) SaveDraft(ctx context.Context, entry *models.JournalEntry) (uuid.UUID, error) {
	if err := validateShape(entry); err != nil {
		return uuid.Nil, err
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	entry.EntryNumber = entryNumber(entry)
	entry.Status = models.EntryDraft
	for i := range entry.Lines {
		entry.Lines[i].ID = uuid.New()
		entry.Lines[i].EntryID = entry.ID
		entry.Lines[i].LineNo = i + 1
	}
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return uuid.Nil, fmt.Errorf("insert draft: %w", err)
	}
	return entry.ID, nil
}

// PostDraft moves a draft to posted after the same checks as PostEntry.
func (s *Service) PostDraft(ctx context.Context, entryID uuid.UUID, actor string) (*models.JournalEntry, error) {
	var posted *models.JournalEntry
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		entry, err := loadEntry(tx, entryID)
		if err != nil {
			return err
		}
		if entry.Status != models.EntryDraft {
			return fmt.Errorf("entry %s is %s: %w", entryID, entry.Status, ErrNotDraft)
		}
		if err := checkBalanced(entry); err != nil {
			return err
		}
		if err := checkAccounts(tx, entry); err != nil {
			return err
		}

		now := s.now()
		res := tx.Model(&models.JournalEntry{}).
			Where("id = ? AND status = ?", entryID, models.EntryDraft).
			Updates(map[string]interface{}{
				"status":    models.EntryPosted,
				"posted_at": now,
				"posted_by": actor,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("entry %s: %w", entryID, ErrNotDraft)
		}
		entry.Status = models.EntryPosted
		entry.PostedAt = &now
		entry.PostedBy = actor
		posted = entry
		return nil
	})
	return posted, err
}

func (s *Service) CancelDraft(ctx context.Context, entryID uuid.UUID) error {
	res := s.db.WithContext(ctx).Model(&models.JournalEntry{}).
		Where("id = ? AND status = ?", entryID, models.EntryDraft).
		Update("status", models.EntryCancelled)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := loadEntry(s.db.WithContext(ctx), entryID); err != nil {
			return err
		}
		return fmt.Errorf("entry %s: %w", entryID, ErrNotDraft)
	}
	return nil
}

func (s *Service) GetEntry(ctx context.Context, entryID uuid.UUID) (*models.JournalEntry, error) {
	return loadEntry(s.db.WithContext(ctx), entryID)
}

// ListEntriesByReference returns posted entries carrying the given reference.
func (s *Service) ListEntriesByReference(ctx context.Context, refType, refID string) ([]models.JournalEntry, error) {
	var entries []models.JournalEntry
	err := s.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("line_no ASC") }).
		Where("reference_type = ? AND reference_id = ? AND status = ?", refType, refID, models.EntryPosted).
		Order("created_at ASC").
		Find(&entries).Error
	return entries, err
}

// IsReversed reports whether a reversal has been posted for entryID.
func (s *Service) IsReversed(ctx context.Context, entryID uuid.UUID) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.JournalEntry{}).
		Where("reverses_entry_id = ?", entryID).
		Count(&count).Error
	return count > 0, err
}

func (s *Service) findByKey(ctx context.Context, key string) (*models.JournalEntry, error) {
	var entry models.JournalEntry
	err := s.db.WithContext(ctx).Where("idempotency_key = ?", key).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func loadEntry(db *gorm.DB, id uuid.UUID) (*models.JournalEntry, error) {
	var entry models.JournalEntry
	err := db.Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("line_no ASC") }).
		First(&entry, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("entry %s: %w", id, ErrEntryNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func validateShape(entry *models.JournalEntry) error {
	if entry == nil {
		return fmt.Errorf("nil entry: %w", ErrValidation)
	}
	if entry.TenantID == "" {
		return fmt.Errorf("tenant id required: %w", ErrValidation)
	}
	if entry.Currency == "" {
		return fmt.Errorf("currency required: %w", ErrValidation)
	}
	if entry.EntryDate.IsZero() {
		return fmt.Errorf("entry date required: %w", ErrValidation)
	}
	if len(entry.Lines) < 2 {
		return fmt.Errorf("at least two lines required, got %d: %w", len(entry.Lines), ErrValidation)
	}
	for i, l := range entry.Lines {
		if l.Direction != models.Debit && l.Direction != models.Credit {
			return fmt.Errorf("line %d: direction %q: %w", i+1, l.Direction, ErrValidation)
		}
		if !l.Amount.IsPositive() {
			return fmt.Errorf("line %d: amount must be positive: %w", i+1, ErrValidation)
		}
		if l.AccountID == uuid.Nil {
			return fmt.Errorf("line %d: account required: %w", i+1, ErrValidation)
		}
	}
	return nil
}

func checkBalanced(entry *models.JournalEntry) error {
	debits, credits := entry.Totals()
	if !debits.Equal(credits) {
		return fmt.Errorf("debits %s != credits %s %s: %w",
			debits.StringFixed(2), credits.StringFixed(2), entry.Currency, ErrUnbalancedEntry)
	}
	return nil
}

func checkAccounts(tx *gorm.DB, entry *models.JournalEntry) error {
	ids := make([]uuid.UUID, 0, len(entry.Lines))
	seen := make(map[uuid.UUID]bool)
	for _, l := range entry.Lines {
		if !seen[l.AccountID] {
			seen[l.AccountID] = true
			ids = append(ids, l.AccountID)
		}
	}

	var accounts []models.GlAccount
	if err := tx.Where("id IN ?", ids).Find(&accounts).Error; err != nil {
		return fmt.Errorf("load accounts: %w", err)
	}
	byID := make(map[uuid.UUID]models.GlAccount, len(accounts))
	for _, a := range accounts {
		byID[a.ID] = a
	}

	for _, id := range ids {
		a, ok := byID[id]
		switch {
		case !ok:
			return fmt.Errorf("account %s not found: %w", id, ErrInvalidAccount)
		case !a.Active:
			return fmt.Errorf("account %s (%s) is inactive: %w", a.Code, id, ErrInvalidAccount)
		case a.TenantID != entry.TenantID:
			return fmt.Errorf("account %s belongs to another tenant: %w", a.Code, ErrInvalidAccount)
		case a.Currency != entry.Currency:
			return fmt.Errorf("account %s is in %s, entry in %s: %w", a.Code, a.Currency, entry.Currency, ErrInvalidAccount)
		}
	}
	return nil
}

func entryNumber(entry *models.JournalEntry) string {
	return fmt.Sprintf("JE-%s-%s", entry.EntryDate.Format("20060102"), strings.ToUpper(entry.ID.String()[:8]))
}

// Line is a convenience constructor for a journal line.
func Line(account uuid.UUID, dir models.Direction, amount decimal.Decimal, description string) models.GlLine {
	return models.GlLine{AccountID: account, Direction: dir, Amount: amount, Description: description}
}
