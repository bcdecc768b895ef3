package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"sheetmill/internal/config"
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
	cfgVal.Paths.RepoRoot = base
	cfgVal.Paths.DataDir = filepath.Join(base, "storage")
	cfgVal.Paths.DBPath = filepath.Join(base, "storage", "db", "test.sqlite3")
	cfgVal.Paths.IngestsDir = filepath.Join(base, "storage", "ingests")
	cfgVal.Paths.UploadDir = filepath.Join(base, "storage", "uploads")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")

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

// WithLegacyRoots overrides the resolver legacy roots on the test config.
func WithLegacyRoots(roots ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Resolver.LegacyRoots = roots
	}
}

// WithConverterBin points the workers at a specific converter executable.
func WithConverterBin(path string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Workers.ConverterBin = path
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, the default converter binary
// name is stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"sheetmill-convert"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
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

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return cfg.Paths.RepoRoot
}
