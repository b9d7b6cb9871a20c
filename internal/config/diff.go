package config

import "slices"

// ConfigDiff describes what changed between two configs. LogLevel and
// CommandTimeout can be applied to a running process; the other fields only
// report changes that take effect after a restart.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	CommandTimeoutChanged bool

	// RestartRequired lists config sections that changed but are only read
	// at startup.
	RestartRequired []string
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if old.Session.CommandTimeout != new.Session.CommandTimeout {
		d.CommandTimeoutChanged = true
	}

	if old.Server.ListenAddr != new.Server.ListenAddr {
		d.RestartRequired = append(d.RestartRequired, "server.listen_addr")
	}
	if old.Discord != new.Discord {
		d.RestartRequired = append(d.RestartRequired, "discord")
	}
	if !resolverEqual(old.Resolver, new.Resolver) {
		d.RestartRequired = append(d.RestartRequired, "resolver")
	}
	return d
}

func resolverEqual(a, b ResolverConfig) bool {
	if !slices.Equal(a.Providers, b.Providers) {
		return false
	}
	a.Providers, b.Providers = nil, nil
	return a == b
}
