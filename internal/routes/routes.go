package routes

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"bank-reconciliation-engine/internal/config"
	handler "bank-reconciliation-engine/internal/handlers"
	"bank-reconciliation-engine/internal/repository"
	"bank-reconciliation-engine/internal/services/ingestion"
	"bank-reconciliation-engine/internal/services/ledger"
	service "bank-reconciliation-engine/internal/services/reconciliation"
	"bank-reconciliation-engine/internal/services/suspense"
)

func RegisterRoutes(r *gin.Engine, db *gorm.DB, cfg config.Matching) {
	reconService := service.NewReconciliationService(db, service.NewDefaultPipeline(db, cfg))

	reconHandler := handler.NewReconciliationHandler(reconService)
	suspenseHandler := handler.NewSuspenseHandler(suspense.NewRouter(db), reconService)
	feedHandler := handler.NewFeedHandler(ingestion.NewService(db), reconService)
	ledgerHandler := handler.NewLedgerHandler(ledger.NewService(db))
	setupHandler := handler.NewSetupHandler(
		repository.NewSettingsRepository(db),
		repository.NewSuspenseRepository(db),
		repository.NewInvoiceRepository(db),
	)

	api := r.Group("/api")

	// Health check
	api.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Tenant-scoped reads, setup and runs
	tenant := api.Group("/tenants/:tenantId")
	tenant.GET("/transactions", reconHandler.ListTransactions)
	tenant.GET("/stats", reconHandler.Stats)
	tenant.GET("/analytics", reconHandler.Analytics)
	tenant.GET("/events", reconHandler.ListEvents)
	tenant.POST("/reconciliation/run", reconHandler.StartRun)
	tenant.GET("/suspense", suspenseHandler.ListOpen)
	tenant.GET("/receivables", setupHandler.SearchReceivables)

	tenant.POST("/bank-accounts", setupHandler.CreateBankAccount)
	tenant.GET("/bank-accounts", setupHandler.ListBankAccounts)
	tenant.POST("/suspense-accounts", setupHandler.CreateSuspenseAccount)
	tenant.GET("/suspense-accounts", setupHandler.ListSuspenseAccounts)
	tenant.GET("/settings", setupHandler.GetSettings)
	tenant.PUT("/settings", setupHandler.PutSettings)

	tenant.POST("/gl-accounts", ledgerHandler.CreateAccount)
	tenant.GET("/gl-accounts", ledgerHandler.ListAccounts)
	tenant.GET("/trial-balance", ledgerHandler.TrialBalance)
	tenant.POST("/journal-entries", ledgerHandler.CreateEntry)

	api.GET("/runs/:runId", reconHandler.GetRun)

	// Bank feeds
	api.POST("/bank-accounts/:id/feed", feedHandler.Upload)

	// Transaction-level routes
	tx := api.Group("/transactions")
	tx.GET("/:id", reconHandler.GetTransaction)
	tx.GET("/:id/matches", reconHandler.ListMatches)
	tx.GET("/:id/suggestions", reconHandler.Suggestions)
	tx.GET("/:id/audit", reconHandler.AuditTrail)
	tx.POST("/:id/manual-match", reconHandler.ManualMatch)
	tx.POST("/:id/rerun", reconHandler.Rerun)

	// Match review
	matches := api.Group("/matches")
	matches.POST("/:id/confirm", reconHandler.ConfirmMatch)
	matches.POST("/:id/reject", reconHandler.RejectMatch)
	matches.POST("/:id/override", reconHandler.OverrideMatch)

	// Suspense
	susp := api.Group("/suspense")
	susp.GET("/:id", suspenseHandler.GetEntry)
	susp.POST("/:id/rematch", suspenseHandler.Rematch)
	susp.POST("/:id/write-off", suspenseHandler.WriteOff)

	// Ledger
	gl := api.Group("/gl-accounts")
	gl.PATCH("/:id", ledgerHandler.UpdateAccount)
	gl.GET("/:id/balance", ledgerHandler.Balance)

	entries := api.Group("/journal-entries")
	entries.GET("/:id", ledgerHandler.GetEntry)
	entries.POST("/:id/post", ledgerHandler.PostDraft)
	entries.POST("/:id/reverse", ledgerHandler.Reverse)
	entries.DELETE("/:id", ledgerHandler.CancelDraft)
}
