package config

import "time"

// Duration accessors: the TOML surface stores integral seconds, callers
// work in time.Duration.

func (c *Config) LeaseTimeout() time.Duration {
	return time.Duration(c.Lease.TimeoutSeconds) * time.Second
}

func (c *Config) LeaseRenewInterval() time.Duration {
	return time.Duration(c.Lease.RenewIntervalSeconds) * time.Second
}

func (c *Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.Registry.HeartbeatIntervalSeconds) * time.Second
}

func (c *Config) StalenessWindow() time.Duration {
	return time.Duration(c.Registry.StalenessWindowSeconds) * time.Second
}

func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.Registry.SweepIntervalSeconds) * time.Second
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Agent.PollIntervalSeconds) * time.Second
}

func (c *Config) ErrorRetryInterval() time.Duration {
	return time.Duration(c.Agent.ErrorRetryIntervalSeconds) * time.Second
}

func (c *Config) CommandTimeout() time.Duration {
	return time.Duration(c.Agent.CommandTimeoutSeconds) * time.Second
}

func (c *Config) NotifyPollInterval() time.Duration {
	return time.Duration(c.Notifications.PollIntervalSeconds) * time.Second
}
