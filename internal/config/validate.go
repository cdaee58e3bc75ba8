package config

import (
	"errors"
	"fmt"
	"math"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateFingerprint(); err != nil {
		return err
	}
	if err := c.validateMatching(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateFingerprint() error {
	if c.Fingerprint.SignatureLength <= 0 {
		return errors.New("fingerprint.signature_length must be positive")
	}
	if c.Fingerprint.LengthSeconds <= 0 {
		return errors.New("fingerprint.length_seconds must be positive")
	}
	if c.Fingerprint.TimeoutSeconds < 0 {
		return errors.New("fingerprint.timeout_seconds must be zero or positive")
	}
	if c.Fingerprint.Workers < 0 {
		return errors.New("fingerprint.workers must be zero or positive")
	}
	return nil
}

func (c *Config) validateMatching() error {
	return ValidateMatching(c.Matching)
}

// ValidateMatching checks matcher knobs. Commands call it again after flag
// overrides are applied.
func ValidateMatching(m Matching) error {
	if math.IsNaN(m.Threshold) || m.Threshold < 0 || m.Threshold > 100 {
		return fmt.Errorf("matching.threshold must be between 0 and 100, got %v", m.Threshold)
	}
	if math.IsNaN(m.DurationTolerance) || m.DurationTolerance < 0 {
		return fmt.Errorf("matching.duration_tolerance must be zero or positive, got %v", m.DurationTolerance)
	}
	if m.Workers < 0 {
		return errors.New("matching.workers must be zero or positive")
	}
	if m.BatchSize <= 0 {
		return errors.New("matching.batch_size must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	return nil
}
