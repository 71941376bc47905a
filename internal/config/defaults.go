package config

const (
	defaultStateDir   = "~/.local/share/helix/state"
	defaultLogDir     = "~/.local/share/helix/logs"
	defaultStagingDir = "~/.local/share/helix/staging"
	defaultArchiveDir = "~/.local/share/helix/archive"
	defaultAPIBind    = "127.0.0.1:7718"

	defaultLogFormat = "console"
	defaultLogLevel  = "info"

	// Lease windows are minutes, not seconds: a worker mid-transfer must
	// survive a transient partition without losing its claim.
	defaultLeaseTimeoutSeconds   = 600
	defaultLeaseRenewSeconds     = 60
	defaultHeartbeatSeconds      = 30
	defaultStalenessSeconds      = 300
	defaultSweepSeconds          = 60
	defaultPollSeconds           = 5
	defaultErrorRetrySeconds     = 10
	defaultCommandTimeoutSeconds = 3600
	defaultNotifyTimeoutSeconds  = 10
	defaultNotifyPollSeconds     = 15
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir:   defaultStateDir,
			LogDir:     defaultLogDir,
			StagingDir: defaultStagingDir,
			ArchiveDir: defaultArchiveDir,
			APIBind:    defaultAPIBind,
		},
		Worker: Worker{
			Name:    "helix-worker",
			Service: "pipeline",
			Enabled: false,
		},
		Lease: Lease{
			TimeoutSeconds:       defaultLeaseTimeoutSeconds,
			RenewIntervalSeconds: defaultLeaseRenewSeconds,
		},
		Registry: Registry{
			HeartbeatIntervalSeconds: defaultHeartbeatSeconds,
			StalenessWindowSeconds:   defaultStalenessSeconds,
			SweepIntervalSeconds:     defaultSweepSeconds,
		},
		Agent: Agent{
			PollIntervalSeconds:       defaultPollSeconds,
			ErrorRetryIntervalSeconds: defaultErrorRetrySeconds,
			CommandTimeoutSeconds:     defaultCommandTimeoutSeconds,
		},
		Notifications: Notifications{
			RequestTimeout:      defaultNotifyTimeoutSeconds,
			Staging:             true,
			Archive:             true,
			Errors:              true,
			PollIntervalSeconds: defaultNotifyPollSeconds,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
