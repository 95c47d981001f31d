package handler

import (
	"net/http"
	"time"

	"bank-reconciliation-engine/internal/models"
	"bank-reconciliation-engine/internal/services/ledger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type LedgerHandler struct {
	ledger *ledger.Service
}

func NewLedgerHandler(l *ledger.Service) *LedgerHandler {
	return &LedgerHandler{ledger: l}
}

func (h *LedgerHandler) CreateAccount(c *gin.Context) {
	var payload struct {
		Code     string             `json:"code"`
		Name     string             `json:"name"`
		Type     models.AccountType `json:"type"`
		Currency string             `json:"currency"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		badRequest(c, "invalid payload")
		return
	}
	acct := &models.GlAccount{
		TenantID: c.Param("tenantId"),
		Code:     payload.Code,
		Name:     payload.Name,
		Type:     payload.Type,
		Currency: payload.Currency,
	}
	if err := h.ledger.CreateAccount(c.Request.Context(), acct); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, acct)
}

func (h *LedgerHandler) ListAccounts(c *gin.Context) {
	accounts, err := h.ledger.ListAccounts(c.Request.Context(), c.Param("tenantId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": accounts})
}

func (h *LedgerHandler) UpdateAccount(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var patch ledger.AccountPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, "invalid payload")
		return
	}
	acct, err := h.ledger.UpdateAccount(c.Request.Context(), id, patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, acct)
}

func (h *LedgerHandler) Balance(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	asOf, ok := dayQuery(c, "as_of", time.Now().UTC())
	if !ok {
		return
	}
	b, err := h.ledger.GetAccountBalance(c.Request.Context(), id, endOfDay(asOf))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *LedgerHandler) TrialBalance(c *gin.Context) {
	asOf, ok := dayQuery(c, "as_of", time.Now().UTC())
	if !ok {
		return
	}
	rows, err := h.ledger.TrialBalance(c.Request.Context(), c.Param("tenantId"), endOfDay(asOf))
	if err != nil {
		respondError(c, err)
		return
	}
	debits, credits := decimal.Zero, decimal.Zero
	for _, r := range rows {
		debits = debits.Add(r.Debits)
		credits = credits.Add(r.Credits)
	}
	c.JSON(http.StatusOK, gin.H{
		"items":         rows,
		"total_debits":  debits,
		"total_credits": credits,
	})
}

type linePayload struct {
	AccountID   uuid.UUID        `json:"account_id"`
	Direction   models.Direction `json:"direction"`
	Amount      decimal.Decimal  `json:"amount"`
	Description string           `json:"description"`
	CostCenter  string           `json:"cost_center"`
	Project     string           `json:"project"`
}

type entryPayload struct {
	EntryDate      string        `json:"entry_date"`
	Description    string        `json:"description"`
	Currency       string        `json:"currency"`
	ReferenceType  string        `json:"reference_type"`
	ReferenceID    string        `json:"reference_id"`
	IdempotencyKey string        `json:"idempotency_key"`
	Draft          bool          `json:"draft"`
	Actor          string        `json:"actor"`
	Lines          []linePayload `json:"lines"`
}

// CreateEntry posts a manual journal entry, or stores it as a draft.
func (h *LedgerHandler) CreateEntry(c *gin.Context) {
	var payload entryPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		badRequest(c, "invalid payload")
		return
	}
	date := time.Now().UTC().Truncate(24 * time.Hour)
	if payload.EntryDate != "" {
		var err error
		if date, err = parseDay(payload.EntryDate); err != nil {
			badRequest(c, "invalid entry_date, expected yyyy-mm-dd")
			return
		}
	}

	entry := &models.JournalEntry{
		TenantID:      c.Param("tenantId"),
		EntryDate:     date,
		Description:   payload.Description,
		Currency:      payload.Currency,
		ReferenceType: payload.ReferenceType,
		ReferenceID:   payload.ReferenceID,
		PostedBy:      actor(c, payload.Actor),
	}
	if entry.ReferenceType == "" {
		entry.ReferenceType = models.RefManual
	}
	if payload.IdempotencyKey != "" {
		entry.IdempotencyKey = &payload.IdempotencyKey
	}
	for _, l := range payload.Lines {
		line := ledger.Line(l.AccountID, l.Direction, l.Amount, l.Description)
		line.CostCenter = l.CostCenter
		line.Project = l.Project
		entry.Lines = append(entry.Lines, line)
	}

	save := h.ledger.PostEntry
	if payload.Draft {
		save = h.ledger.SaveDraft
	}
	id, err := save(c.Request.Context(), entry)
	if err != nil {
		respondError(c, err)
		return
	}
	stored, err := h.ledger.GetEntry(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, stored)
}

func (h *LedgerHandler) GetEntry(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	entry, err := h.ledger.GetEntry(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (h *LedgerHandler) PostDraft(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var payload actorPayload
	if !bindOptional(c, &payload) {
		return
	}
	entry, err := h.ledger.PostDraft(c.Request.Context(), id, actor(c, payload.Actor))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (h *LedgerHandler) CancelDraft(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if err := h.ledger.CancelDraft(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "draft cancelled"})
}

func (h *LedgerHandler) Reverse(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var payload actorPayload
	if !bindOptional(c, &payload) {
		return
	}
	reversalID, err := h.ledger.Reverse(c.Request.Context(), id, ledger.ReverseOptions{
		Actor:       actor(c, payload.Actor),
		Description: payload.Reason,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"reversal_entry_id": reversalID})
}

func parseDay(s string) (time.Time, error) {
	var err error
	for _, layout := range dayLayouts {
		var t time.Time
		if t, err = time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, err
}
