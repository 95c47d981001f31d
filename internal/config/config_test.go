package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, DefaultMatching(), cfg.Matching)
	require.NoError(t, cfg.Matching.Validate())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("CORS_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("MATCH_FUZZY_THRESHOLD", "80")
	t.Setenv("MATCH_CANDIDATE_TIMEOUT", "1s")
	t.Setenv("MATCH_WORKERS", "not-a-number")

	cfg := Load()
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, 80, cfg.Matching.FuzzyThreshold)
	assert.Equal(t, time.Second, cfg.Matching.CandidateTimeout)
	assert.Equal(t, 4, cfg.Matching.Workers)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(m *Matching)
	}{
		{"zero window", func(m *Matching) { m.DateWindowDays = 0 }},
		{"tolerance above 100", func(m *Matching) { m.AmountTolerancePct = 150 }},
		{"ceiling zero", func(m *Matching) { m.AutoConfirmCeiling = 0 }},
		{"predictive cap 100", func(m *Matching) { m.PredictiveCap = 100 }},
		{"no workers", func(m *Matching) { m.Workers = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := DefaultMatching()
			tt.mutate(&m)
			assert.Error(t, m.Validate())
		})
	}
}

func TestInitDBUnsupportedDriver(t *testing.T) {
	_, err := InitDB(&Config{DBDriver: "oracle"})
	assert.Error(t, err)
}
