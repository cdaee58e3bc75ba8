package preflight

import (
	"context"
	"path/filepath"

	"sieve/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the filesystem and store checks for cfg.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	results := []Result{
		CheckDirectoryAccess("Store directory", filepath.Dir(cfg.Paths.Store)),
		CheckDirectoryAccess("Review directory", cfg.Paths.ReviewDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
	}
	if cfg.Paths.MediaRoot != "" {
		results = append(results, CheckReadable("Media root", cfg.Paths.MediaRoot))
	}
	results = append(results, CheckStore(ctx, cfg))
	return results
}
