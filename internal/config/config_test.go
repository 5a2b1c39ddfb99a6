package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFromEnv_Defaults(t *testing.T) {
	t.Setenv("ACTIVECAMPAIGN_API_KEY", "token-123")

	cfg, err := NewFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "token-123", cfg.API.Key)
	assert.Equal(t, "https://account.api-us1.com/api/3", cfg.API.BaseURL)
	assert.Equal(t, "112", cfg.API.TargetUserID)
	assert.Equal(t, 10, cfg.API.RateLimit)
	assert.Equal(t, 20, cfg.Run.MaxWorkers)
	assert.Equal(t, 0, cfg.Run.NotesPerRun)
	assert.Equal(t, 0, cfg.Run.BatchNumber)
	assert.Equal(t, StrategyDeals, cfg.Run.Strategy)
	assert.Equal(t, "progress_state.json", cfg.State.StateFile)
	assert.Equal(t, "deletion_log.txt", cfg.State.LogFile)
}

func TestNewFromEnv_MissingAPIKey(t *testing.T) {
	t.Setenv("ACTIVECAMPAIGN_API_KEY", "")

	_, err := NewFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ACTIVECAMPAIGN_API_KEY")
}

func TestNewFromEnv_Overrides(t *testing.T) {
	t.Setenv("ACTIVECAMPAIGN_API_KEY", "token-123")
	t.Setenv("BASE_URL", "https://other.api-us1.com/api/3")
	t.Setenv("TARGET_USER_ID", "7")
	t.Setenv("RATE_LIMIT", "5")
	t.Setenv("MAX_WORKERS", "4")
	t.Setenv("NOTES_PER_RUN", "1000")
	t.Setenv("BATCH_NUMBER", "3")
	t.Setenv("DISCOVERY_STRATEGY", "notes")
	t.Setenv("STATE_FILE", "state.db")

	cfg, err := NewFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "https://other.api-us1.com/api/3", cfg.API.BaseURL)
	assert.Equal(t, "7", cfg.API.TargetUserID)
	assert.Equal(t, 5, cfg.API.RateLimit)
	assert.Equal(t, 4, cfg.Run.MaxWorkers)
	assert.Equal(t, 1000, cfg.Run.NotesPerRun)
	assert.Equal(t, 3, cfg.Run.BatchNumber)
	assert.Equal(t, StrategyNotes, cfg.Run.Strategy)
	assert.Equal(t, "state.db", cfg.State.StateFile)
}

func TestNewFromEnv_InvalidStrategy(t *testing.T) {
	t.Setenv("ACTIVECAMPAIGN_API_KEY", "token-123")
	t.Setenv("DISCOVERY_STRATEGY", "contacts")

	_, err := NewFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DISCOVERY_STRATEGY")
}

func TestNewFromEnv_InvalidNumericFallsBackToDefault(t *testing.T) {
	t.Setenv("ACTIVECAMPAIGN_API_KEY", "token-123")
	t.Setenv("RATE_LIMIT", "ten")

	cfg, err := NewFromEnv()
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.API.RateLimit)
}

func TestNewFromEnv_RejectsZeroWorkers(t *testing.T) {
	t.Setenv("ACTIVECAMPAIGN_API_KEY", "token-123")
	t.Setenv("MAX_WORKERS", "0")

	_, err := NewFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MAX_WORKERS")
}
