// Command worker reconciles every tenant's queue on a fixed interval.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bank-reconciliation-engine/internal/config"
	"bank-reconciliation-engine/internal/repository"
	"bank-reconciliation-engine/internal/services/reconciliation"

	"github.com/joho/godotenv"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on system env")
	}

	cfg := config.Load()
	if err := cfg.Matching.Validate(); err != nil {
		log.Fatalf("[config] %v", err)
	}
	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatalf("[config] %v", err)
	}
	if err := config.Migrate(db); err != nil {
		log.Fatalf("[config] %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc := reconciliation.NewReconciliationService(db, reconciliation.NewDefaultPipeline(db, cfg.Matching))
	ticker := time.NewTicker(cfg.RunInterval)
	defer ticker.Stop()

	log.Printf("[worker] reconciling every %s", cfg.RunInterval)
	for {
		tick(ctx, db, svc)
		select {
		case <-ctx.Done():
			log.Println("[worker] shutting down")
			return
		case <-ticker.C:
		}
	}
}

func tick(ctx context.Context, db *gorm.DB, svc *reconciliation.ReconciliationService) {
	tenants, err := repository.NewSettingsRepository(db).Tenants(ctx)
	if err != nil {
		log.Printf("[worker] list tenants: %v", err)
		return
	}
	for _, tenantID := range tenants {
		if ctx.Err() != nil {
			return
		}
		run, err := svc.RunTenantQueue(ctx, tenantID, reconciliation.TriggerScheduled)
		if err != nil {
			log.Printf("[worker] tenant %s: %v", tenantID, err)
			continue
		}
		if run.TotalClaimed > 0 {
			log.Printf("[worker] tenant %s: run %s %s", tenantID, run.ID, run.Status)
		}
	}
}
