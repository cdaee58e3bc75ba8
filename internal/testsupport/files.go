package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteMedia writes a stand-in audio file for the fake fpcalc: its content
// is the comma-separated raw fingerprint the stub reports. Parent
// directories are created.
func WriteMedia(t testing.TB, path, fingerprint string) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(fingerprint), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}
