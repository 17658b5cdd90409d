package config

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Fraud      FraudConfig      `mapstructure:"fraud"`
	ML         MLConfig         `mapstructure:"ml"`
	Projection ProjectionConfig `mapstructure:"projection"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Log        LogConfig        `mapstructure:"log"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr returns the listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig holds event store and read model database configuration.
// Driver selects between PostgreSQL and an embedded SQLite file.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	PageSize        int           `mapstructure:"page_size"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// RedisConfig holds Redis configuration. Redis backs the projection lock
// when more than one process may drive the same projection.
type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	LockTTL      time.Duration `mapstructure:"lock_ttl"`
	LockPrefix   string        `mapstructure:"lock_prefix"`
}

// Addr returns the host:port pair.
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// KafkaConfig holds Kafka configuration
type KafkaConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	Brokers          []string      `mapstructure:"brokers"`
	FraudAlertsTopic string        `mapstructure:"fraud_alerts_topic"`
	WriteTimeout     time.Duration `mapstructure:"write_timeout"`
}

// FraudConfig holds rule overlay and transaction handling configuration
type FraudConfig struct {
	// Rule thresholds
	UnusualAmountMultiplier float64       `mapstructure:"unusual_amount_multiplier"`
	VelocityWindow          time.Duration `mapstructure:"velocity_window"`
	VelocityMaxTransactions int           `mapstructure:"velocity_max_transactions"`
	ImpossibleTravelKmh     float64       `mapstructure:"impossible_travel_kmh"`
	SuspiciousHours         []int         `mapstructure:"suspicious_hours"`
	UnusualLocationKm       float64       `mapstructure:"unusual_location_km"`
	AmountStdDevFloor       float64       `mapstructure:"amount_std_dev_floor"`
	Timezone                string        `mapstructure:"timezone"`

	// Score weights used when only the rule overlay decides
	AmountWeight     float64 `mapstructure:"amount_weight"`
	VelocityWeight   float64 `mapstructure:"velocity_weight"`
	GeographicWeight float64 `mapstructure:"geographic_weight"`
	TimingWeight     float64 `mapstructure:"timing_weight"`
	DeviceWeight     float64 `mapstructure:"device_weight"`
	LocationWeight   float64 `mapstructure:"location_weight"`

	MaxTransactionAmount string `mapstructure:"max_transaction_amount"` // String for YAML compatibility
	RescoreConcurrency   int    `mapstructure:"rescore_concurrency"`
}

// GetMaxTransactionAmount returns the single transaction limit as decimal
func (c *FraudConfig) GetMaxTransactionAmount() decimal.Decimal {
	d, err := decimal.NewFromString(c.MaxTransactionAmount)
	if err != nil {
		return decimal.NewFromInt(50000)
	}
	return d
}

// Location returns the timezone rule hours are evaluated in.
func (c *FraudConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Timezone)
}

// MLConfig holds anomaly model training configuration
type MLConfig struct {
	Enabled            bool    `mapstructure:"enabled"`
	Contamination      float64 `mapstructure:"contamination"`
	Trees              int     `mapstructure:"trees"`
	SampleSize         int     `mapstructure:"sample_size"`
	Seed               uint64  `mapstructure:"seed"`
	MinTrainingSamples int     `mapstructure:"min_training_samples"`
}

// ProjectionConfig holds projection engine configuration
type ProjectionConfig struct {
	BatchSize    int           `mapstructure:"batch_size"`
	LockTimeout  time.Duration `mapstructure:"lock_timeout"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	GapTimeout   time.Duration `mapstructure:"gap_timeout"`
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DefaultConfig returns configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:          "sqlite",
			Host:            "localhost",
			Port:            5432,
			User:            "fraud_user",
			Password:        "",
			Name:            "fraud_detection",
			SSLMode:         "disable",
			Path:            "./data/fraud_ledger.db",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			PageSize:        500,
			AutoMigrate:     true,
		},
		Redis: RedisConfig{
			Enabled:      false,
			Host:         "localhost",
			Port:         6379,
			Password:     "",
			DB:           0,
			PoolSize:     10,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			LockTTL:      time.Minute,
			LockPrefix:   "fraud-ledger:lock:",
		},
		Kafka: KafkaConfig{
			Enabled:          false,
			Brokers:          []string{"localhost:9092"},
			FraudAlertsTopic: "fraud-alerts",
			WriteTimeout:     10 * time.Second,
		},
		Fraud: FraudConfig{
			UnusualAmountMultiplier: 3,
			VelocityWindow:          time.Hour,
			VelocityMaxTransactions: 3,
			ImpossibleTravelKmh:     500,
			SuspiciousHours:         []int{3, 4, 5},
			UnusualLocationKm:       1000,
			AmountStdDevFloor:       1,
			Timezone:                "UTC",
			AmountWeight:            0.35,
			VelocityWeight:          0.30,
			GeographicWeight:        0.60,
			TimingWeight:            0.15,
			DeviceWeight:            0.20,
			LocationWeight:          0.30,
			MaxTransactionAmount:    "50000",
			RescoreConcurrency:      4,
		},
		ML: MLConfig{
			Enabled:            true,
			Contamination:      0.05,
			Trees:              100,
			SampleSize:         256,
			Seed:               42,
			MinTrainingSamples: 10,
		},
		Projection: ProjectionConfig{
			BatchSize:    0,
			LockTimeout:  30 * time.Second,
			PollInterval: 5 * time.Second,
			GapTimeout:   10 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}
