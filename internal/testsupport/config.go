package testsupport

import (
	"path/filepath"
	"testing"

	"helix/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.StagingDir = filepath.Join(base, "staging")
	cfg.Paths.ArchiveDir = filepath.Join(base, "archive")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Worker.Name = "test-worker"
	cfg.Worker.Host = "testhost"
	cfg.Agent.PollIntervalSeconds = 1
	cfg.Agent.ErrorRetryIntervalSeconds = 1

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// WithWorker overrides the worker identity on the test config.
func WithWorker(name, host string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Worker.Name = name
		cfg.Worker.Host = host
	}
}

// WithLeaseTimeout sets the lease window in seconds.
func WithLeaseTimeout(seconds int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Lease.TimeoutSeconds = seconds
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
