package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains file and directory locations.
type Paths struct {
	Store      string `toml:"store"`
	Candidates string `toml:"candidates"`
	ReviewDir  string `toml:"review_dir"`
	LogDir     string `toml:"log_dir"`
	// MediaRoot is joined to relative catalogue paths for metadata lookups
	// and audio links in the review page. Empty means paths are used as-is.
	MediaRoot string `toml:"media_root"`
}

// Fingerprint contains configuration for the fpcalc collaborator and
// signature canonicalization.
type Fingerprint struct {
	FpcalcBinary   string `toml:"fpcalc_binary"`
	Algorithm      int    `toml:"algorithm"`
	LengthSeconds  int    `toml:"length_seconds"`
	Overlap        bool   `toml:"overlap"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	// SignatureLength is the canonical signature length L. The historical
	// value 3059 was tuned against chromaprint algorithm 4 output; revalidate
	// it when the fingerprinting tool changes.
	SignatureLength int `toml:"signature_length"`
	// Workers controls concurrent fpcalc invocations during ingestion.
	Workers int `toml:"workers"`
	// ReuseIdentity copies the signature of an already-catalogued file that
	// carries the same identity token instead of invoking fpcalc again.
	ReuseIdentity bool `toml:"reuse_identity"`
}

// Matching contains the pairwise comparison knobs.
type Matching struct {
	Threshold         float64 `toml:"threshold"`
	DurationTolerance float64 `toml:"duration_tolerance"`
	// Workers of 0 selects the number of logical CPUs.
	Workers   int `toml:"workers"`
	BatchSize int `toml:"batch_size"`
}

// Review contains configuration for the review export.
type Review struct {
	FFprobeBinary string `toml:"ffprobe_binary"`
	Metadata      bool   `toml:"metadata"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for sieve.
//
// Configuration sections by subsystem:
//   - Paths: signature store, candidate list, review output and logs
//   - Fingerprint: fpcalc invocation and canonical signature length
//   - Matching: score threshold, duration tolerance, worker pool sizing
//   - Review: metadata enrichment for the review export
//   - Logging: log format and level
type Config struct {
	Paths       Paths       `toml:"paths"`
	Fingerprint Fingerprint `toml:"fingerprint"`
	Matching    Matching    `toml:"matching"`
	Review      Review      `toml:"review"`
	Logging     Logging     `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("sieve.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories holding the store, the candidate
// list, the review output and the logs.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		filepath.Dir(c.Paths.Store),
		filepath.Dir(c.Paths.Candidates),
		c.Paths.ReviewDir,
		c.Paths.LogDir,
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// MatchWorkers returns the effective matcher pool size.
func (c *Config) MatchWorkers() int {
	if c.Matching.Workers > 0 {
		return c.Matching.Workers
	}
	return runtime.NumCPU()
}

// DecisionsPath returns the location of the review decision database.
func (c *Config) DecisionsPath() string {
	return filepath.Join(c.Paths.ReviewDir, "decisions.db")
}

// ResolveMediaPath joins MediaRoot to relative catalogue paths.
func (c *Config) ResolveMediaPath(path string) string {
	root := strings.TrimSpace(c.Paths.MediaRoot)
	if root == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}

// Encode renders the configuration as TOML.
func (c *Config) Encode() (string, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("encode config: %w", err)
	}
	return string(data), nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
