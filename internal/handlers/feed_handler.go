package handler

import (
	"io"
	"log"
	"net/http"
	"path/filepath"
	"strings"

	"bank-reconciliation-engine/internal/models"
	"bank-reconciliation-engine/internal/services/ingestion"
	"bank-reconciliation-engine/internal/services/reconciliation"

	"github.com/gin-gonic/gin"
)

// maxFeedBytes bounds a single statement upload.
const maxFeedBytes = 32 << 20

type FeedHandler struct {
	ingest *ingestion.Service
	recon  *reconciliation.ReconciliationService
}

func NewFeedHandler(ingest *ingestion.Service, recon *reconciliation.ReconciliationService) *FeedHandler {
	return &FeedHandler{ingest: ingest, recon: recon}
}

// Upload ingests a statement for one bank account: a multipart "file" field
// (CSV, or JSON by extension) or a raw CSV/JSON body. With ?reconcile=true a
// background run is started for the tenant once the rows are stored.
func (h *FeedHandler) Upload(c *gin.Context) {
	bankAccountID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxFeedBytes)

	var (
		body   io.Reader
		format string
		name   string
	)
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		file, header, err := c.Request.FormFile("file")
		if err != nil {
			badRequest(c, "file required")
			return
		}
		defer file.Close()
		log.Printf("[feed] received %s (%d bytes) for bank account %s", header.Filename, header.Size, bankAccountID)

		body, name = file, header.Filename
		format = c.PostForm("format")
		if format == "" {
			format = "csv"
			if strings.EqualFold(filepath.Ext(header.Filename), ".json") {
				format = "json"
			}
		}
	} else {
		body = c.Request.Body
		format = c.Query("format")
		if format == "" {
			format = c.ContentType()
		}
	}

	rows, err := ingestion.Parse(format, body)
	if err != nil {
		respondError(c, err)
		return
	}
	result, err := h.ingest.Ingest(c.Request.Context(), bankAccountID, rows)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := gin.H{
		"file":           name,
		"accepted_count": len(result.Accepted),
		"rejected_count": len(result.Rejected),
		"accepted":       result.Accepted,
		"rejected":       result.Rejected,
	}
	status := http.StatusOK
	if c.Query("reconcile") == "true" && len(result.Accepted) > 0 {
		run, err := h.recon.StartRun(c.Request.Context(), tenantOf(result.Accepted), reconciliation.TriggerManual)
		if err != nil {
			respondError(c, err)
			return
		}
		resp["run_id"] = run.ID.String()
		status = http.StatusAccepted
	}
	c.JSON(status, resp)
}

func tenantOf(txns []models.BankTransaction) string {
	return txns[0].TenantID
}
