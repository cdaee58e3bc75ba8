package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeBinaries()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	if strings.TrimSpace(c.Paths.Store) == "" {
		c.Paths.Store = defaultStorePath
	}
	if strings.TrimSpace(c.Paths.Candidates) == "" {
		c.Paths.Candidates = defaultCandidatesPath
	}
	if strings.TrimSpace(c.Paths.ReviewDir) == "" {
		c.Paths.ReviewDir = defaultReviewDir
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}

	var err error
	if c.Paths.Store, err = expandPath(c.Paths.Store); err != nil {
		return fmt.Errorf("paths.store: %w", err)
	}
	if c.Paths.Candidates, err = expandPath(c.Paths.Candidates); err != nil {
		return fmt.Errorf("paths.candidates: %w", err)
	}
	if c.Paths.ReviewDir, err = expandPath(c.Paths.ReviewDir); err != nil {
		return fmt.Errorf("paths.review_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.MediaRoot = strings.TrimSpace(c.Paths.MediaRoot); c.Paths.MediaRoot != "" {
		if c.Paths.MediaRoot, err = expandPath(c.Paths.MediaRoot); err != nil {
			return fmt.Errorf("paths.media_root: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeBinaries() {
	c.Fingerprint.FpcalcBinary = strings.TrimSpace(c.Fingerprint.FpcalcBinary)
	if c.Fingerprint.FpcalcBinary == "" {
		c.Fingerprint.FpcalcBinary = defaultFpcalcBinary
	}
	c.Review.FFprobeBinary = strings.TrimSpace(c.Review.FFprobeBinary)
	if c.Review.FFprobeBinary == "" {
		c.Review.FFprobeBinary = defaultFFprobeBinary
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
