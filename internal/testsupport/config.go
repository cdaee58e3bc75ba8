package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"sieve/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.Store = filepath.Join(base, "data", "chromaprints.csv")
	cfgVal.Paths.Candidates = filepath.Join(base, "data", "candidates.csv")
	cfgVal.Paths.ReviewDir = filepath.Join(base, "review")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Review.Metadata = false

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithSignatureLength shortens signatures so tests can write them by hand.
func WithSignatureLength(length int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Fingerprint.SignatureLength = length
	}
}

// WithMediaRoot points paths.media_root at a directory under the test base.
func WithMediaRoot(name string) ConfigOption {
	return func(b *configBuilder) {
		root := filepath.Join(b.baseDir, name)
		if err := os.MkdirAll(root, 0o755); err != nil {
			b.t.Fatalf("mkdir media root: %v", err)
		}
		b.cfg.Paths.MediaRoot = root
	}
}

// fakeFpcalc prints the file's own contents as the raw fingerprint. A file
// containing "fail" makes it exit non-zero. A "#duration=N" first line
// overrides the reported duration.
const fakeFpcalc = `#!/bin/sh
for arg; do file=$arg; done
content=$(cat "$file") || exit 2
duration=120
case "$content" in
fail*) echo "ERROR: Error decoding audio frame" >&2; exit 1 ;;
"#duration="*) duration=$(printf '%s\n' "$content" | head -n1 | cut -d= -f2); content=$(printf '%s\n' "$content" | tail -n +2) ;;
esac
printf 'DURATION=%s\nFINGERPRINT=%s\n' "$duration" "$content"
`

// WithFakeFpcalc installs a shell fpcalc stand-in and points the config at it.
func WithFakeFpcalc() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Fingerprint.FpcalcBinary = writeStub(b.t, b.baseDir, "fpcalc", fakeFpcalc)
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, fpcalc and ffprobe are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"fpcalc", "ffprobe"}
		}
		var binDir string
		for _, name := range names {
			binDir = filepath.Dir(writeStub(b.t, b.baseDir, name, "#!/bin/sh\nexit 0\n"))
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

func writeStub(t testing.TB, baseDir, name, script string) string {
	t.Helper()
	binDir := filepath.Join(baseDir, "bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		t.Fatalf("mkdir bin dir: %v", err)
	}
	target := filepath.Join(binDir, name)
	if err := os.WriteFile(target, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub %s: %v", name, err)
	}
	return target
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.ReviewDir)
}
