package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	e := cfg.Engine
	assert.Equal(t, 7, e.DedupWindowDays)
	assert.Equal(t, 0.5, e.InsightConfidenceFloor)
	assert.Equal(t, 0.5, e.RecommendationConfidenceFloor)
	assert.Equal(t, 30, e.RecommendationTTLDays)
	assert.Equal(t, 14, e.IgnoreThresholdDays)
	assert.Equal(t, 30, e.CleanupThresholdDays)
	assert.Equal(t, 10, e.Similarity.MaxDistance)
	assert.Len(t, e.Similarity.Dimensions, 6)
	assert.Equal(t, 20, e.DefaultLimit)
	assert.Equal(t, 100, e.MaxLimit)
	assert.Equal(t, "rules-v1", e.AlgorithmVersion)
	assert.Equal(t, WeightsConfig{Compatibility: 0.5, Interaction: 0.3, Recency: 0.2}, e.Weights)
	assert.Equal(t, 14, e.RecencyHalfLifeDays)
	assert.Equal(t, 200, e.CleanupBatchSize)

	assert.Equal(t, "@every 1h", cfg.Scheduler.CleanupSchedule)
	assert.Equal(t, 30*time.Second, cfg.Redis.LockLease)
	assert.Equal(t, time.UTC, cfg.App.Location)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("ADAPTIVE_ENGINE_DEDUP_WINDOW_DAYS", "3")
	t.Setenv("ADAPTIVE_ENGINE_SIMILARITY_DIMENSIONS", "sensory_processing,executive_function")
	t.Setenv("ADAPTIVE_REDIS_LOCK_LEASE", "45s")
	t.Setenv("ADAPTIVE_APP_STORAGE", "memory")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Engine.DedupWindowDays)
	assert.Equal(t, []string{"sensory_processing", "executive_function"}, cfg.Engine.Similarity.Dimensions)
	assert.Equal(t, 45*time.Second, cfg.Redis.LockLease)
	assert.Equal(t, StorageMemory, cfg.App.Storage)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
app:
  timezone: Asia/Almaty
engine:
  algorithm_version: rules-v2
  weights:
    compatibility: 0.6
    interaction: 0.2
    recency: 0.2
scheduler:
  cleanup_schedule: "0 3 * * *"
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "rules-v2", cfg.Engine.AlgorithmVersion)
	assert.Equal(t, 0.6, cfg.Engine.Weights.Compatibility)
	assert.Equal(t, "0 3 * * *", cfg.Scheduler.CleanupSchedule)
	assert.Equal(t, "Asia/Almaty", cfg.App.Location.String())
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	cfg.Engine.Weights.Recency = 0.5
	cfg.Engine.InsightConfidenceFloor = 1.5
	cfg.Engine.DedupWindowDays = 0
	cfg.App.Storage = "sqlite"

	err = cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{
		"engine.weights must sum to 1",
		"engine.insight_confidence_floor must be within [0,1]",
		"engine.dedup_window_days must be positive",
		"app.storage must be postgres or memory",
	} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestValidateRejectsMemoryInProduction(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	cfg.App.Environment = EnvProduction
	cfg.App.Storage = StorageMemory
	assert.ErrorContains(t, cfg.Validate(), "not allowed in production")
}
