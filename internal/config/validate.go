package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateWorker(); err != nil {
		return err
	}
	if err := c.validateTimings(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.StateDir == "" {
		return errors.New("paths.state_dir must be set")
	}
	if c.Paths.LogDir == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validateWorker() error {
	if !c.Worker.Enabled {
		return nil
	}
	if c.Worker.Name == "" {
		return errors.New("worker.name must be set when the worker is enabled")
	}
	for _, kind := range c.Worker.Kinds {
		if strings.TrimSpace(kind) == "" {
			return errors.New("worker.kinds entries must be non-empty")
		}
	}
	return nil
}

func (c *Config) validateTimings() error {
	if c.Lease.TimeoutSeconds <= 0 {
		return errors.New("lease.timeout_seconds must be positive")
	}
	if c.Lease.RenewIntervalSeconds <= 0 {
		return errors.New("lease.renew_interval_seconds must be positive")
	}
	if c.Lease.RenewIntervalSeconds*2 > c.Lease.TimeoutSeconds {
		return fmt.Errorf(
			"lease.renew_interval_seconds (%d) must be at most half of lease.timeout_seconds (%d)",
			c.Lease.RenewIntervalSeconds, c.Lease.TimeoutSeconds,
		)
	}
	if c.Registry.HeartbeatIntervalSeconds <= 0 {
		return errors.New("registry.heartbeat_interval_seconds must be positive")
	}
	if c.Registry.StalenessWindowSeconds <= c.Registry.HeartbeatIntervalSeconds {
		return errors.New("registry.staleness_window_seconds must exceed the heartbeat interval")
	}
	if c.Agent.PollIntervalSeconds <= 0 {
		return errors.New("agent.poll_interval_seconds must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	return nil
}
