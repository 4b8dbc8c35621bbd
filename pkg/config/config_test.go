package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("pipeline")
	require.NoError(t, err)

	assert.Equal(t, "pipeline", cfg.App.ServiceName)
	assert.Equal(t, 4, cfg.App.PartitionWorkers)
	assert.Equal(t, 8, cfg.App.ScopeWorkers)

	assert.Equal(t, 5, cfg.Cleaning.MinDurationSeconds)
	assert.Equal(t, 7200, cfg.Cleaning.MaxDurationSeconds)
	assert.Equal(t, 1.5, cfg.Cleaning.IQRMultiplier)

	assert.Equal(t, 15, cfg.Forecast.Horizon)
	assert.Equal(t, 60, cfg.Forecast.GranularityMin)
	assert.Equal(t, 336, cfg.Forecast.MinSamples)
	assert.Equal(t, 0.90, cfg.Forecast.IntervalLevel)

	assert.Equal(t, 28, cfg.Anomaly.MinSamples)
	assert.Equal(t, 0.99, cfg.Anomaly.ThresholdPercentile)

	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.Equal(t, 2.0, cfg.Retry.BackoffMultiplier)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PARTITION_WORKERS", "2")
	t.Setenv("FORECAST_HORIZON", "24")
	t.Setenv("IQR_MULTIPLIER", "3.0")
	t.Setenv("ANOMALY_THRESHOLD_PERCENTILE", "0.95")

	cfg, err := Load("pipeline")
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.App.PartitionWorkers)
	assert.Equal(t, 24, cfg.Forecast.Horizon)
	assert.Equal(t, 3.0, cfg.Cleaning.IQRMultiplier)
	assert.Equal(t, 0.95, cfg.Anomaly.ThresholdPercentile)
}

func TestDatabaseConfig_DSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "warehouse.internal",
		Port:     "5433",
		User:     "pipeline",
		Password: "secret",
		DBName:   "tripdemand",
		SSLMode:  "require",
	}
	assert.Equal(t,
		"host=warehouse.internal port=5433 user=pipeline password=secret dbname=tripdemand sslmode=require",
		cfg.DSN())
}

func TestRedisConfig_RedisAddr(t *testing.T) {
	tests := []struct {
		name     string
		cfg      RedisConfig
		expected string
	}{
		{name: "localhost", cfg: RedisConfig{Host: "localhost", Port: "6379"}, expected: "localhost:6379"},
		{name: "custom host", cfg: RedisConfig{Host: "cache.internal", Port: "6380"}, expected: "cache.internal:6380"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.cfg.RedisAddr())
		})
	}
}

func TestGetEnvAsInt_IgnoresGarbage(t *testing.T) {
	t.Setenv("FORECAST_TREES", "not-a-number")

	cfg, err := Load("pipeline")
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.Forecast.Trees)
}
