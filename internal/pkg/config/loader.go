package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()

	// Every key needs a default so AutomaticEnv can override it on Unmarshal
	setDefaults(v, cfg)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	v.SetEnvPrefix("FRAUD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, cfg *Config) {
	// Server defaults
	v.SetDefault("server.host", cfg.Server.Host)
	v.SetDefault("server.port", cfg.Server.Port)
	v.SetDefault("server.read_timeout", cfg.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", cfg.Server.WriteTimeout)
	v.SetDefault("server.shutdown_timeout", cfg.Server.ShutdownTimeout)

	// Database defaults
	v.SetDefault("database.driver", cfg.Database.Driver)
	v.SetDefault("database.host", cfg.Database.Host)
	v.SetDefault("database.port", cfg.Database.Port)
	v.SetDefault("database.user", cfg.Database.User)
	v.SetDefault("database.password", cfg.Database.Password)
	v.SetDefault("database.name", cfg.Database.Name)
	v.SetDefault("database.ssl_mode", cfg.Database.SSLMode)
	v.SetDefault("database.path", cfg.Database.Path)
	v.SetDefault("database.max_open_conns", cfg.Database.MaxOpenConns)
	v.SetDefault("database.max_idle_conns", cfg.Database.MaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", cfg.Database.ConnMaxLifetime)
	v.SetDefault("database.page_size", cfg.Database.PageSize)
	v.SetDefault("database.auto_migrate", cfg.Database.AutoMigrate)

	// Redis defaults
	v.SetDefault("redis.enabled", cfg.Redis.Enabled)
	v.SetDefault("redis.host", cfg.Redis.Host)
	v.SetDefault("redis.port", cfg.Redis.Port)
	v.SetDefault("redis.password", cfg.Redis.Password)
	v.SetDefault("redis.db", cfg.Redis.DB)
	v.SetDefault("redis.pool_size", cfg.Redis.PoolSize)
	v.SetDefault("redis.read_timeout", cfg.Redis.ReadTimeout)
	v.SetDefault("redis.write_timeout", cfg.Redis.WriteTimeout)
	v.SetDefault("redis.lock_ttl", cfg.Redis.LockTTL)
	v.SetDefault("redis.lock_prefix", cfg.Redis.LockPrefix)

	// Kafka defaults
	v.SetDefault("kafka.enabled", cfg.Kafka.Enabled)
	v.SetDefault("kafka.brokers", cfg.Kafka.Brokers)
	v.SetDefault("kafka.fraud_alerts_topic", cfg.Kafka.FraudAlertsTopic)
	v.SetDefault("kafka.write_timeout", cfg.Kafka.WriteTimeout)

	// Fraud defaults
	v.SetDefault("fraud.unusual_amount_multiplier", cfg.Fraud.UnusualAmountMultiplier)
	v.SetDefault("fraud.velocity_window", cfg.Fraud.VelocityWindow)
	v.SetDefault("fraud.velocity_max_transactions", cfg.Fraud.VelocityMaxTransactions)
	v.SetDefault("fraud.impossible_travel_kmh", cfg.Fraud.ImpossibleTravelKmh)
	v.SetDefault("fraud.suspicious_hours", cfg.Fraud.SuspiciousHours)
	v.SetDefault("fraud.unusual_location_km", cfg.Fraud.UnusualLocationKm)
	v.SetDefault("fraud.amount_std_dev_floor", cfg.Fraud.AmountStdDevFloor)
	v.SetDefault("fraud.timezone", cfg.Fraud.Timezone)
	v.SetDefault("fraud.amount_weight", cfg.Fraud.AmountWeight)
	v.SetDefault("fraud.velocity_weight", cfg.Fraud.VelocityWeight)
	v.SetDefault("fraud.geographic_weight", cfg.Fraud.GeographicWeight)
	v.SetDefault("fraud.timing_weight", cfg.Fraud.TimingWeight)
	v.SetDefault("fraud.device_weight", cfg.Fraud.DeviceWeight)
	v.SetDefault("fraud.location_weight", cfg.Fraud.LocationWeight)
	v.SetDefault("fraud.max_transaction_amount", cfg.Fraud.MaxTransactionAmount)
	v.SetDefault("fraud.rescore_concurrency", cfg.Fraud.RescoreConcurrency)

	// ML defaults
	v.SetDefault("ml.enabled", cfg.ML.Enabled)
	v.SetDefault("ml.contamination", cfg.ML.Contamination)
	v.SetDefault("ml.trees", cfg.ML.Trees)
	v.SetDefault("ml.sample_size", cfg.ML.SampleSize)
	v.SetDefault("ml.seed", cfg.ML.Seed)
	v.SetDefault("ml.min_training_samples", cfg.ML.MinTrainingSamples)

	// Projection defaults
	v.SetDefault("projection.batch_size", cfg.Projection.BatchSize)
	v.SetDefault("projection.lock_timeout", cfg.Projection.LockTimeout)
	v.SetDefault("projection.poll_interval", cfg.Projection.PollInterval)
	v.SetDefault("projection.gap_timeout", cfg.Projection.GapTimeout)

	// Metrics and log defaults
	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.path", cfg.Metrics.Path)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
}
