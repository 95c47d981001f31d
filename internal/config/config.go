package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"bank-reconciliation-engine/internal/models"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Config struct {
	HTTPAddr    string
	DBDriver    string
	DatabaseURL string
	CORSOrigins []string
	LogSQL      bool
	RunInterval time.Duration
	Matching    Matching
}

// Matching holds the tunables of the matching pipeline and batch runs.
type Matching struct {
	DateWindowDays      int
	AmountTolerancePct  float64
	AutoConfirmCeiling  int
	ExactThreshold      int
	FuzzyThreshold      int
	PredictiveThreshold int
	PredictiveCap       int
	PredictiveLookback  int
	PredictiveBoost     float64
	PredictiveMinHits   int
	CandidateTimeout    time.Duration
	MaxAttempts         int
	ClaimLease          time.Duration
	Workers             int
	SuggestionLimit     int
}

func DefaultMatching() Matching {
	return Matching{
		DateWindowDays:      45,
		AmountTolerancePct:  2,
		AutoConfirmCeiling:  95,
		ExactThreshold:      100,
		FuzzyThreshold:      70,
		PredictiveThreshold: 60,
		PredictiveCap:       99,
		PredictiveLookback:  20,
		PredictiveBoost:     20,
		PredictiveMinHits:   2,
		CandidateTimeout:    300 * time.Millisecond,
		MaxAttempts:         5,
		ClaimLease:          5 * time.Minute,
		Workers:             4,
		SuggestionLimit:     5,
	}
}

// Load reads configuration from the environment. Call godotenv.Load first
// when a .env file should be honoured.
func Load() *Config {
	m := DefaultMatching()
	m.DateWindowDays = envInt("MATCH_DATE_WINDOW_DAYS", m.DateWindowDays)
	m.AmountTolerancePct = envFloat("MATCH_AMOUNT_TOLERANCE_PCT", m.AmountTolerancePct)
	m.AutoConfirmCeiling = envInt("MATCH_AUTO_CONFIRM_CEILING", m.AutoConfirmCeiling)
	m.ExactThreshold = envInt("MATCH_EXACT_THRESHOLD", m.ExactThreshold)
	m.FuzzyThreshold = envInt("MATCH_FUZZY_THRESHOLD", m.FuzzyThreshold)
	m.PredictiveThreshold = envInt("MATCH_PREDICTIVE_THRESHOLD", m.PredictiveThreshold)
	m.PredictiveLookback = envInt("MATCH_PREDICTIVE_LOOKBACK", m.PredictiveLookback)
	m.PredictiveBoost = envFloat("MATCH_PREDICTIVE_BOOST", m.PredictiveBoost)
	m.PredictiveMinHits = envInt("MATCH_PREDICTIVE_MIN_HITS", m.PredictiveMinHits)
	m.CandidateTimeout = envDuration("MATCH_CANDIDATE_TIMEOUT", m.CandidateTimeout)
	m.MaxAttempts = envInt("MATCH_MAX_ATTEMPTS", m.MaxAttempts)
	m.ClaimLease = envDuration("MATCH_CLAIM_LEASE", m.ClaimLease)
	m.Workers = envInt("MATCH_WORKERS", m.Workers)

	return &Config{
		HTTPAddr:    envString("HTTP_ADDR", ":8080"),
		DBDriver:    envString("DB_DRIVER", "postgres"),
		DatabaseURL: envString("DATABASE_URL", "host=localhost user=postgres password=postgres dbname=reconciliation port=5432 sslmode=disable"),
		CORSOrigins: strings.Split(envString("CORS_ORIGINS", "http://localhost:3000"), ","),
		LogSQL:      envString("LOG_SQL", "") == "true",
		RunInterval: envDuration("RUN_INTERVAL", time.Minute),
		Matching:    m,
	}
}

// Validate rejects settings the pipeline cannot work with.
func (m Matching) Validate() error {
	if m.DateWindowDays <= 0 {
		return fmt.Errorf("date window must be positive: %d", m.DateWindowDays)
	}
	if m.AmountTolerancePct < 0 || m.AmountTolerancePct > 100 {
		return fmt.Errorf("amount tolerance must be between 0 and 100: %f", m.AmountTolerancePct)
	}
	if m.AutoConfirmCeiling <= 0 || m.AutoConfirmCeiling > 100 {
		return fmt.Errorf("auto-confirm ceiling must be between 1 and 100: %d", m.AutoConfirmCeiling)
	}
	if m.PredictiveCap >= 100 {
		return fmt.Errorf("predictive cap must stay below 100: %d", m.PredictiveCap)
	}
	if m.MaxAttempts <= 0 {
		return fmt.Errorf("max attempts must be positive: %d", m.MaxAttempts)
	}
	if m.Workers <= 0 {
		return fmt.Errorf("workers must be positive: %d", m.Workers)
	}
	return nil
}

// InitDB opens the configured database.
func InitDB(cfg *Config) (*gorm.DB, error) {
	gormCfg := &gorm.Config{}
	if !cfg.LogSQL {
		gormCfg.Logger = logger.Default.LogMode(logger.Warn)
	}

	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case "postgres":
		dialector = postgres.Open(cfg.DatabaseURL)
	case "sqlite":
		dialector = sqlite.Open(cfg.DatabaseURL)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}

	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.DBDriver, err)
	}
	if cfg.DBDriver == "sqlite" {
		// sqlite serialises writers; one connection avoids "database is locked".
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	log.Printf("[config] connected to %s", cfg.DBDriver)
	return db, nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		log.Printf("[config] ignoring invalid %s=%q", key, v)
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
		log.Printf("[config] ignoring invalid %s=%q", key, v)
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		log.Printf("[config] ignoring invalid %s=%q", key, v)
	}
	return def
}
