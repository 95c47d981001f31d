package repository

import (
	"context"
	"errors"
	"fmt"

	"bank-reconciliation-engine/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SettingsRepository holds per-tenant setup: ledger settings and bank accounts.
type SettingsRepository struct {
	db *gorm.DB
}

func NewSettingsRepository(db *gorm.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

func (r *SettingsRepository) WithTx(tx *gorm.DB) *SettingsRepository {
	return &SettingsRepository{db: tx}
}

func (r *SettingsRepository) Get(ctx context.Context, tenantID string) (*models.TenantLedgerSettings, error) {
	var s models.TenantLedgerSettings
	err := r.db.WithContext(ctx).First(&s, "tenant_id = ?", tenantID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("ledger settings for tenant %s: %w", tenantID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SettingsRepository) Upsert(ctx context.Context, s *models.TenantLedgerSettings) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(s).Error
}

// Tenants lists every tenant with ledger settings, i.e. every tenant the
// worker can reconcile.
func (r *SettingsRepository) Tenants(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&models.TenantLedgerSettings{}).
		Order("tenant_id ASC").
		Pluck("tenant_id", &ids).Error
	return ids, err
}

func (r *SettingsRepository) CreateBankAccount(ctx context.Context, acct *models.BankAccount) error {
	if acct.ID == uuid.Nil {
		acct.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(acct).Error
}

func (r *SettingsRepository) GetBankAccount(ctx context.Context, id uuid.UUID) (*models.BankAccount, error) {
	var acct models.BankAccount
	err := r.db.WithContext(ctx).First(&acct, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("bank account %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &acct, nil
}

func (r *SettingsRepository) ListBankAccounts(ctx context.Context, tenantID string) ([]models.BankAccount, error) {
	var accounts []models.BankAccount
	err := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID).Order("name ASC").Find(&accounts).Error
	return accounts, err
}

// PostingAccounts are the GL accounts the engine posts against for one
// bank transaction.
type PostingAccounts struct {
	BankGL            uuid.UUID
	Receivables       uuid.UUID
	SuspenseAccountID uuid.UUID
	SuspenseGL        uuid.UUID
	WriteOff          uuid.UUID
}

func (r *SettingsRepository) PostingAccounts(ctx context.Context, txn *models.BankTransaction) (PostingAccounts, error) {
	settings, err := r.Get(ctx, txn.TenantID)
	if err != nil {
		return PostingAccounts{}, err
	}
	bank, err := r.GetBankAccount(ctx, txn.BankAccountID)
	if err != nil {
		return PostingAccounts{}, err
	}
	var suspense models.SuspenseAccount
	err = r.db.WithContext(ctx).First(&suspense, "id = ?", settings.DefaultSuspenseAccountID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return PostingAccounts{}, fmt.Errorf("default suspense account of tenant %s: %w", txn.TenantID, ErrNotFound)
	}
	if err != nil {
		return PostingAccounts{}, err
	}
	return PostingAccounts{
		BankGL:            bank.GlAccountID,
		Receivables:       settings.ReceivablesAccountID,
		SuspenseAccountID: suspense.ID,
		SuspenseGL:        suspense.GlAccountID,
		WriteOff:          settings.WriteOffAccountID,
	}, nil
}
