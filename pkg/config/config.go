package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Ingestion IngestionConfig
	Cleaning  CleaningConfig
	Forecast  ForecastConfig
	Anomaly   AnomalyConfig
	Retry     RetryConfig
}

// AppConfig holds run-wide configuration
type AppConfig struct {
	Environment      string
	ServiceName      string
	MetricsPort      string
	PartitionWorkers int // concurrent (vehicle-type, period) partitions
	ScopeWorkers     int // concurrent forecast/anomaly scopes
}

// DatabaseConfig holds warehouse configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
	MinConns int
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// IngestionConfig locates the raw monthly batch files and reference data.
// File layout belongs to the storage collaborator; only the roots are ours.
type IngestionConfig struct {
	RawDataDir     string // one parquet file per (vehicle-type, month)
	ZoneLookupPath string // static zone enumeration CSV
}

// CleaningConfig holds validation tuning knobs
type CleaningConfig struct {
	MinDurationSeconds int
	MaxDurationSeconds int
	IQRMultiplier      float64
}

// ForecastConfig holds forecasting engine knobs
type ForecastConfig struct {
	Horizon        int     // steps ahead
	GranularityMin int     // minutes per step
	MinSamples     int     // observations required per scope
	IntervalLevel  float64 // two-sided confidence level, e.g. 0.90
	Trees          int
	MaxDepth       int
	LearningRate   float64
	KNeighbors     int
	HoldoutHours   int // tail reserved for accuracy metrics
}

// AnomalyConfig holds anomaly detector knobs
type AnomalyConfig struct {
	MinSamples          int // training day-vectors required per scope
	ThresholdPercentile float64
	Epochs              int
	BatchSize           int
	LearningRate        float64
	Seed                int64
}

// RetryConfig holds transient-failure retry policy
type RetryConfig struct {
	MaxAttempts       int
	InitialBackoffMS  int
	MaxBackoffMS      int
	BackoffMultiplier float64
}

// Load loads configuration from environment variables
func Load(serviceName string) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		App: AppConfig{
			Environment:      getEnv("ENVIRONMENT", "development"),
			ServiceName:      serviceName,
			MetricsPort:      getEnv("METRICS_PORT", "9091"),
			PartitionWorkers: getEnvAsInt("PARTITION_WORKERS", 4),
			ScopeWorkers:     getEnvAsInt("SCOPE_WORKERS", 8),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "tripdemand"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns: getEnvAsInt("DB_MIN_CONNS", 5),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Ingestion: IngestionConfig{
			RawDataDir:     getEnv("RAW_DATA_DIR", "./data/raw"),
			ZoneLookupPath: getEnv("ZONE_LOOKUP_PATH", "./data/zone_lookup.csv"),
		},
		Cleaning: CleaningConfig{
			MinDurationSeconds: getEnvAsInt("MIN_TRIP_DURATION_SECONDS", 5),
			MaxDurationSeconds: getEnvAsInt("MAX_TRIP_DURATION_SECONDS", 7200),
			IQRMultiplier:      getEnvAsFloat("IQR_MULTIPLIER", 1.5),
		},
		Forecast: ForecastConfig{
			Horizon:        getEnvAsInt("FORECAST_HORIZON", 15),
			GranularityMin: getEnvAsInt("FORECAST_GRANULARITY_MINUTES", 60),
			MinSamples:     getEnvAsInt("FORECAST_MIN_SAMPLES", 336),
			IntervalLevel:  getEnvAsFloat("FORECAST_INTERVAL_LEVEL", 0.90),
			Trees:          getEnvAsInt("FORECAST_TREES", 100),
			MaxDepth:       getEnvAsInt("FORECAST_MAX_DEPTH", 3),
			LearningRate:   getEnvAsFloat("FORECAST_LEARNING_RATE", 0.1),
			KNeighbors:     getEnvAsInt("FORECAST_K_NEIGHBORS", 10),
			HoldoutHours:   getEnvAsInt("FORECAST_HOLDOUT_HOURS", 72),
		},
		Anomaly: AnomalyConfig{
			MinSamples:          getEnvAsInt("ANOMALY_MIN_SAMPLES", 28),
			ThresholdPercentile: getEnvAsFloat("ANOMALY_THRESHOLD_PERCENTILE", 0.99),
			Epochs:              getEnvAsInt("ANOMALY_EPOCHS", 200),
			BatchSize:           getEnvAsInt("ANOMALY_BATCH_SIZE", 16),
			LearningRate:        getEnvAsFloat("ANOMALY_LEARNING_RATE", 0.01),
			Seed:                int64(getEnvAsInt("ANOMALY_SEED", 42)),
		},
		Retry: RetryConfig{
			MaxAttempts:       getEnvAsInt("RETRY_MAX_ATTEMPTS", 5),
			InitialBackoffMS:  getEnvAsInt("RETRY_INITIAL_BACKOFF_MS", 200),
			MaxBackoffMS:      getEnvAsInt("RETRY_MAX_BACKOFF_MS", 10000),
			BackoffMultiplier: getEnvAsFloat("RETRY_BACKOFF_MULTIPLIER", 2.0),
		},
	}

	return cfg, nil
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsFloat gets an environment variable as a float or returns a default value
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool gets an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}
