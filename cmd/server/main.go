package main

import (
	"log"
	"time"

	"bank-reconciliation-engine/internal/config"
	"bank-reconciliation-engine/internal/routes"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env
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

	r := gin.Default()
	// CORS config
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Type", "X-Actor"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	routes.RegisterRoutes(r, db, cfg.Matching)

	log.Printf("[server] listening on %s", cfg.HTTPAddr)
	if err := r.Run(cfg.HTTPAddr); err != nil {
		log.Fatalf("[server] %v", err)
	}
}
