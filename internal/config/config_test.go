package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"helix/internal/config"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config failed validation: %v", err)
	}
	if cfg.Worker.Enabled {
		t.Fatal("expected worker disabled by default")
	}
	if cfg.Lease.RenewIntervalSeconds*2 > cfg.Lease.TimeoutSeconds {
		t.Fatal("default renew interval must fit twice into the lease timeout")
	}
}

func TestLoadAppliesFileOverrides(t *testing.T) {
	base := t.TempDir()
	path := filepath.Join(base, "config.toml")
	content := `
[paths]
state_dir = "` + filepath.Join(base, "state") + `"
log_dir = "` + filepath.Join(base, "logs") + `"
api_bind = "127.0.0.1:9999"

[worker]
name = "lab-worker"

[lease]
timeout_seconds = 120
renew_interval_seconds = 30

[logging]
format = "JSON"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected existing config at %s, got %s exists=%t", path, resolved, exists)
	}
	if cfg.Paths.APIBind != "127.0.0.1:9999" {
		t.Fatalf("unexpected api bind: %s", cfg.Paths.APIBind)
	}
	if cfg.Worker.Name != "lab-worker" {
		t.Fatalf("unexpected worker name: %s", cfg.Worker.Name)
	}
	if cfg.Lease.TimeoutSeconds != 120 {
		t.Fatalf("unexpected lease timeout: %d", cfg.Lease.TimeoutSeconds)
	}
	// Format is lowercased during normalization.
	if cfg.Logging.Format != "json" {
		t.Fatalf("unexpected logging format: %s", cfg.Logging.Format)
	}
	// Untouched sections keep their defaults.
	if cfg.Agent.PollIntervalSeconds != config.Default().Agent.PollIntervalSeconds {
		t.Fatalf("unexpected poll interval: %d", cfg.Agent.PollIntervalSeconds)
	}
	if cfg.Worker.Host == "" {
		t.Fatal("expected hostname to be filled in")
	}
}

func TestLoadMissingExplicitPathUsesDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	path := filepath.Join(t.TempDir(), "absent.toml")
	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if exists {
		t.Fatalf("expected exists=false for %s", resolved)
	}
	if cfg.Paths.APIBind != config.Default().Paths.APIBind {
		t.Fatalf("expected default api bind, got %s", cfg.Paths.APIBind)
	}
	if !strings.HasPrefix(cfg.Paths.StateDir, os.Getenv("HOME")) {
		t.Fatalf("expected state dir under home, got %s", cfg.Paths.StateDir)
	}
}

func TestValidateRejectsBadTimings(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"renew exceeds half timeout", func(c *config.Config) {
			c.Lease.TimeoutSeconds = 60
			c.Lease.RenewIntervalSeconds = 45
		}},
		{"zero lease timeout", func(c *config.Config) {
			c.Lease.TimeoutSeconds = 0
		}},
		{"staleness below heartbeat", func(c *config.Config) {
			c.Registry.HeartbeatIntervalSeconds = 60
			c.Registry.StalenessWindowSeconds = 60
		}},
		{"zero poll interval", func(c *config.Config) {
			c.Agent.PollIntervalSeconds = 0
		}},
		{"worker enabled without name", func(c *config.Config) {
			c.Worker.Enabled = true
			c.Worker.Name = ""
		}},
		{"unsupported log format", func(c *config.Config) {
			c.Logging.Format = "xml"
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation to fail")
			}
		})
	}
}

func TestWriteDefaultRefusesOverwrite(t *testing.T) {
	target := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.WriteDefault(target); err != nil {
		t.Fatalf("WriteDefault failed: %v", err)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "[paths]") {
		t.Fatalf("sample config missing paths section:\n%s", data)
	}

	if err := config.WriteDefault(target); err == nil {
		t.Fatal("expected second WriteDefault to refuse overwrite")
	}

	// The sample must itself be loadable.
	if _, _, _, err := config.Load(target); err != nil {
		t.Fatalf("sample config failed to load: %v", err)
	}
}

func TestDurationAccessors(t *testing.T) {
	cfg := config.Default()
	if cfg.LeaseTimeout().Seconds() != float64(cfg.Lease.TimeoutSeconds) {
		t.Fatalf("lease timeout mismatch: %v", cfg.LeaseTimeout())
	}
	if cfg.PollInterval().Seconds() != float64(cfg.Agent.PollIntervalSeconds) {
		t.Fatalf("poll interval mismatch: %v", cfg.PollInterval())
	}
	if cfg.StalenessWindow() <= cfg.HeartbeatInterval() {
		t.Fatal("staleness window must exceed heartbeat interval")
	}
}
