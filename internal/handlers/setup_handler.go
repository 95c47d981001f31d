package handler

import (
	"net/http"
	"strings"

	"bank-reconciliation-engine/internal/models"
	"bank-reconciliation-engine/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SetupHandler manages the per-tenant configuration the engine posts with:
// bank accounts, suspense accounts and ledger settings. It also exposes the
// receivables lookup reviewers use before a manual match.
type SetupHandler struct {
	settings *repository.SettingsRepository
	suspense *repository.SuspenseRepository
	invoices *repository.InvoiceRepository
}

func NewSetupHandler(settings *repository.SettingsRepository, suspense *repository.SuspenseRepository, invoices *repository.InvoiceRepository) *SetupHandler {
	return &SetupHandler{settings: settings, suspense: suspense, invoices: invoices}
}

func (h *SetupHandler) CreateBankAccount(c *gin.Context) {
	var payload struct {
		Name          string    `json:"name" binding:"required"`
		AccountNumber string    `json:"account_number" binding:"required"`
		Currency      string    `json:"currency" binding:"required"`
		GlAccountID   uuid.UUID `json:"gl_account_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		badRequest(c, "name, account_number, currency and gl_account_id are required")
		return
	}
	acct := &models.BankAccount{
		TenantID:      c.Param("tenantId"),
		Name:          payload.Name,
		AccountNumber: payload.AccountNumber,
		Currency:      strings.ToUpper(payload.Currency),
		GlAccountID:   payload.GlAccountID,
	}
	if err := h.settings.CreateBankAccount(c.Request.Context(), acct); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, acct)
}

func (h *SetupHandler) ListBankAccounts(c *gin.Context) {
	accounts, err := h.settings.ListBankAccounts(c.Request.Context(), c.Param("tenantId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": accounts})
}

func (h *SetupHandler) CreateSuspenseAccount(c *gin.Context) {
	var payload struct {
		Code        string    `json:"code" binding:"required"`
		Description string    `json:"description"`
		GlAccountID uuid.UUID `json:"gl_account_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		badRequest(c, "code and gl_account_id are required")
		return
	}
	acct := &models.SuspenseAccount{
		TenantID:    c.Param("tenantId"),
		Code:        payload.Code,
		Description: payload.Description,
		GlAccountID: payload.GlAccountID,
	}
	if err := h.suspense.CreateAccount(c.Request.Context(), acct); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, acct)
}

func (h *SetupHandler) ListSuspenseAccounts(c *gin.Context) {
	accounts, err := h.suspense.ListAccounts(c.Request.Context(), c.Param("tenantId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": accounts})
}

func (h *SetupHandler) GetSettings(c *gin.Context) {
	s, err := h.settings.Get(c.Request.Context(), c.Param("tenantId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *SetupHandler) PutSettings(c *gin.Context) {
	var payload struct {
		ReceivablesAccountID     uuid.UUID `json:"receivables_account_id" binding:"required"`
		DefaultSuspenseAccountID uuid.UUID `json:"default_suspense_account_id" binding:"required"`
		WriteOffAccountID        uuid.UUID `json:"write_off_account_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		badRequest(c, "receivables_account_id, default_suspense_account_id and write_off_account_id are required")
		return
	}
	s := &models.TenantLedgerSettings{
		TenantID:                 c.Param("tenantId"),
		ReceivablesAccountID:     payload.ReceivablesAccountID,
		DefaultSuspenseAccountID: payload.DefaultSuspenseAccountID,
		WriteOffAccountID:        payload.WriteOffAccountID,
	}
	if err := h.settings.Upsert(c.Request.Context(), s); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

// SearchReceivables looks invoices up by customer name or number.
func (h *SetupHandler) SearchReceivables(c *gin.Context) {
	var statuses []string
	if raw := c.Query("status"); raw != "" {
		statuses = strings.Split(raw, ",")
	}
	invoices, err := h.invoices.Search(c.Request.Context(), c.Param("tenantId"), c.Query("q"), statuses, pageSize(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": invoices})
}
