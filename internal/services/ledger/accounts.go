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

// Balance is derived from posted lines dated on or before AsOf.
type Balance struct {
	AccountID uuid.UUID          `json:"account_id"`
	Code      string             `json:"code"`
	Type      models.AccountType `json:"type"`
	AsOf      time.Time          `json:"as_of"`
	Debits    decimal.Decimal    `json:"debits"`
	Credits   decimal.Decimal    `json:"credits"`
	// Net is debits minus credits.
	Net decimal.Decimal `json:"net"`
	// Normal is the balance expressed on the account's normal side.
	Normal decimal.Decimal `json:"normal"`
}

type postedLine struct {
	AccountID uuid.UUID
	Direction models.Direction
	Amount    decimal.Decimal
}

func (s *Service) CreateAccount(ctx context.Context, acct *models.GlAccount) error {
	acct.Code = strings.TrimSpace(acct.Code)
	acct.Currency = strings.ToUpper(strings.TrimSpace(acct.Currency))
	switch {
	case acct.TenantID == "":
		return fmt.Errorf("tenant id required: %w", ErrValidation)
	case acct.Code == "":
		return fmt.Errorf("account code required: %w", ErrValidation)
	case !acct.Type.Valid():
		return fmt.Errorf("account type %q: %w", acct.Type, ErrValidation)
	case acct.Currency == "":
		return fmt.Errorf("currency required: %w", ErrValidation)
	}
	if acct.ID == uuid.Nil {
		acct.ID = uuid.New()
	}
	acct.Active = true
	if err := s.db.WithContext(ctx).Create(acct).Error; err != nil {
		return fmt.Errorf("insert gl account %s: %w", acct.Code, err)
	}
	return nil
}

// AccountPatch lists updatable fields; nil means unchanged.
type AccountPatch struct {
	Name     *string             `json:"name"`
	Active   *bool               `json:"active"`
	Code     *string             `json:"code"`
	Type     *models.AccountType `json:"type"`
	Currency *string             `json:"currency"`
}

// UpdateAccount applies patch. Code, type and currency are frozen once a
// posted entry references the account.
func (s *Service) UpdateAccount(ctx context.Context, id uuid.UUID, patch AccountPatch) (*models.GlAccount, error) {
	var acct models.GlAccount
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&acct, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("account %s not found: %w", id, ErrInvalidAccount)
			}
			return err
		}

		structural := (patch.Code != nil && *patch.Code != acct.Code) ||
			(patch.Type != nil && *patch.Type != acct.Type) ||
			(patch.Currency != nil && !strings.EqualFold(*patch.Currency, acct.Currency))
		if structural {
			var used int64
			err := tx.Table("gl_lines").
				Joins("JOIN journal_entries ON journal_entries.id = gl_lines.entry_id").
				Where("gl_lines.account_id = ? AND journal_entries.status = ?", id, models.EntryPosted).
				Count(&used).Error
			if err != nil {
				return err
			}
			if used > 0 {
				return fmt.Errorf("account %s: %w", acct.Code, ErrAccountImmutable)
			}
		}

		if patch.Name != nil {
			acct.Name = *patch.Name
		}
		if patch.Active != nil {
			acct.Active = *patch.Active
		}
		if patch.Code != nil {
			acct.Code = strings.TrimSpace(*patch.Code)
		}
		if patch.Type != nil {
			if !patch.Type.Valid() {
				return fmt.Errorf("account type %q: %w", *patch.Type, ErrValidation)
			}
			acct.Type = *patch.Type
		}
		if patch.Currency != nil {
			acct.Currency = strings.ToUpper(*patch.Currency)
		}
		return tx.Save(&acct).Error
	})
	if err != nil {
		return nil, err
	}
	return &acct, nil
}

func (s *Service) GetAccount(ctx context.Context, id uuid.UUID) (*models.GlAccount, error) {
	var acct models.GlAccount
	err := s.db.WithContext(ctx).First(&acct, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("account %s not found: %w", id, ErrInvalidAccount)
	}
	return &acct, err
}

func (s *Service) ListAccounts(ctx context.Context, tenantID string) ([]models.GlAccount, error) {
	var accounts []models.GlAccount
	err := s.db.WithContext(ctx).Where("tenant_id = ?", tenantID).Order("code ASC").Find(&accounts).Error
	return accounts, err
}

// GetAccountBalance is a pure read over posted lines.
func (s *Service) GetAccountBalance(ctx context.Context, accountID uuid.UUID, asOf time.Time) (Balance, error) {
	acct, err := s.GetAccount(ctx, accountID)
	if err != nil {
		return Balance{}, err
	}

	lines, err := s.postedLines(ctx, asOf, "gl_lines.account_id = ?", accountID)
	if err != nil {
		return Balance{}, err
	}
	b := Balance{AccountID: acct.ID, Code: acct.Code, Type: acct.Type, AsOf: asOf}
	for _, l := range lines {
		accumulate(&b, l)
	}
	finish(&b)
	return b, nil
}

// TrialBalance returns one balance per tenant account, ordered by code.
// Debit and credit totals across the result are equal.
func (s *Service) TrialBalance(ctx context.Context, tenantID string, asOf time.Time) ([]Balance, error) {
	accounts, err := s.ListAccounts(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	lines, err := s.postedLines(ctx, asOf, "journal_entries.tenant_id = ?", tenantID)
	if err != nil {
		return nil, err
	}

	byID := make(map[uuid.UUID]*Balance, len(accounts))
	out := make([]Balance, len(accounts))
	for i, a := range accounts {
		out[i] = Balance{AccountID: a.ID, Code: a.Code, Type: a.Type, AsOf: asOf}
		byID[a.ID] = &out[i]
	}
	for _, l := range lines {
		if b, ok := byID[l.AccountID]; ok {
			accumulate(b, l)
		}
	}
	for i := range out {
		finish(&out[i])
	}
	return out, nil
}

func (s *Service) postedLines(ctx context.Context, asOf time.Time, where string, arg interface{}) ([]postedLine, error) {
	var lines []postedLine
	err := s.db.WithContext(ctx).Table("gl_lines").
		Select("gl_lines.account_id, gl_lines.direction, gl_lines.amount").
		Joins("JOIN journal_entries ON journal_entries.id = gl_lines.entry_id").
		Where("journal_entries.status = ? AND journal_entries.entry_date <= ?", models.EntryPosted, asOf).
		Where(where, arg).
		Scan(&lines).Error
	if err != nil {
		return nil, fmt.Errorf("load posted lines: %w", err)
	}
	return lines, nil
}

func accumulate(b *Balance, l postedLine) {
	if l.Direction == models.Debit {
		b.Debits = b.Debits.Add(l.Amount)
	} else {
		b.Credits = b.Credits.Add(l.Amount)
	}
}

func finish(b *Balance) {
	b.Net = b.Debits.Sub(b.Credits)
	if b.Type.NormalSide() == models.Debit {
		b.Normal = b.Net
	} else {
		b.Normal = b.Net.Neg()
	}
}
