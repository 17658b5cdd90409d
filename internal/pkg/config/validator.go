package config

import (
	"errors"
	"fmt"
)

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.New("invalid server port")
	}

	switch c.Database.Driver {
	case "postgres":
		if c.Database.Host == "" || c.Database.Name == "" {
			return errors.New("postgres driver requires database.host and database.name")
		}
	case "sqlite":
		if c.Database.Path == "" {
			return errors.New("sqlite driver requires database.path")
		}
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return errors.New("kafka.brokers must not be empty when kafka is enabled")
	}

	if c.Fraud.UnusualAmountMultiplier <= 0 {
		return errors.New("unusual_amount_multiplier must be positive")
	}

	if c.Fraud.VelocityWindow <= 0 {
		return errors.New("velocity_window must be positive")
	}

	for _, h := range c.Fraud.SuspiciousHours {
		if h < 0 || h > 23 {
			return fmt.Errorf("suspicious hour %d out of range", h)
		}
	}

	if _, err := c.Fraud.Location(); err != nil {
		return fmt.Errorf("invalid fraud timezone: %w", err)
	}

	for name, w := range map[string]float64{
		"amount_weight":     c.Fraud.AmountWeight,
		"velocity_weight":   c.Fraud.VelocityWeight,
		"geographic_weight": c.Fraud.GeographicWeight,
		"timing_weight":     c.Fraud.TimingWeight,
		"device_weight":     c.Fraud.DeviceWeight,
		"location_weight":   c.Fraud.LocationWeight,
	} {
		if w < 0 || w > 1 {
			return fmt.Errorf("%s must be between 0 and 1", name)
		}
	}

	if c.ML.Contamination <= 0 || c.ML.Contamination >= 0.5 {
		return errors.New("contamination must be in (0, 0.5)")
	}

	if c.ML.Trees <= 0 || c.ML.SampleSize <= 1 {
		return errors.New("trees and sample_size must be positive")
	}

	if c.Projection.LockTimeout <= 0 {
		return errors.New("projection lock_timeout must be positive")
	}
	if c.Projection.GapTimeout < 0 {
		return errors.New("projection gap_timeout must not be negative")
	}

	return nil
}
