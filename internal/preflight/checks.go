package preflight

import (
	"context"
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"sieve/internal/config"
	"sieve/internal/deps"
	"sieve/internal/logging"
	"sieve/internal/signature"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	return checkDirectory(name, path, unix.R_OK|unix.W_OK|unix.X_OK, "read/write ok")
}

// CheckReadable verifies that the directory exists and can be listed.
func CheckReadable(name, path string) Result {
	return checkDirectory(name, path, unix.R_OK|unix.X_OK, "read ok")
}

func checkDirectory(name, path string, mode uint32, okDetail string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, mode); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%s)", path, okDetail)}
}

// CheckStore opens the signature store read-only to confirm it loads and is
// not held by a running ingest.
func CheckStore(_ context.Context, cfg *config.Config) Result {
	const name = "Signature store"
	path := cfg.Paths.Store
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (not created yet)", path)}
	}
	store, err := signature.OpenReadOnly(path, cfg.Fingerprint.SignatureLength, logging.NewNop())
	if err != nil {
		if errors.Is(err, signature.ErrStoreLocked) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (locked by a running ingest)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	defer store.Close()
	stats := store.Stats()
	detail := fmt.Sprintf("%s (%d records", path, stats.Records)
	if stats.Malformed > 0 {
		detail += fmt.Sprintf(", %d malformed lines", stats.Malformed)
	}
	return Result{Name: name, Passed: true, Detail: detail + ")"}
}

// CheckSystemDeps evaluates the external binaries for cfg. ffprobe is only
// optional because native tag readers cover MP3, FLAC, and WAV.
func CheckSystemDeps(ctx context.Context, cfg *config.Config) []deps.Status {
	requirements := []deps.Requirement{
		{
			Name:        "fpcalc",
			Command:     cfg.Fingerprint.FpcalcBinary,
			Description: "Required for fingerprinting (chromaprint)",
			VersionArgs: []string{"-version"},
		},
	}
	if cfg.Review.Metadata {
		requirements = append(requirements, deps.Requirement{
			Name:        "FFprobe",
			Command:     cfg.Review.FFprobeBinary,
			Description: "Review page metadata for every container format",
			Optional:    true,
			VersionArgs: []string{"-version"},
		})
	}
	return deps.CheckBinaries(ctx, requirements)
}
