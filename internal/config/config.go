// Package config provides the configuration schema, loader, and resolver
// registry for songbot.
package config

import "time"

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for songbot. It is typically
// loaded with [Load], which reads an optional YAML file and then applies
// environment overrides.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Discord  DiscordConfig  `yaml:"discord"`
	Resolver ResolverConfig `yaml:"resolver"`
	Session  SessionConfig  `yaml:"session"`
}

// ServerConfig holds the health/metrics listener and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address of the health and metrics endpoints
	// (e.g., ":8080"). Empty disables the HTTP server.
	ListenAddr string `yaml:"listen_addr" env:"LISTEN_ADDR"`

	// LogLevel controls verbosity. Default: info.
	LogLevel LogLevel `yaml:"log_level" env:"LOG_LEVEL"`
}

// DiscordConfig holds the bot credentials. Token and ApplicationID are
// required.
type DiscordConfig struct {
	// Token is the bot token, without the "Bot " prefix.
	Token string `yaml:"token" env:"DISCORD_TOKEN"`

	// ApplicationID is the numeric application the slash commands are
	// registered under.
	ApplicationID string `yaml:"application_id" env:"APPLICATION_ID"`

	// GuildID, when set, registers commands for that guild only. Guild
	// commands update instantly, which is convenient during development.
	GuildID string `yaml:"guild_id" env:"DISCORD_GUILD_ID"`
}

// ResolverConfig selects and tunes the resolver chain that turns play
// queries into audio sources.
type ResolverConfig struct {
	// Providers lists registered resolver names in the order they are tried.
	// The first is the primary. Default: ["ytdlp", "youtube"].
	Providers []string `yaml:"providers"`

	// YTDLPPath is the yt-dlp executable. Default: "yt-dlp" from PATH.
	YTDLPPath string `yaml:"ytdlp_path" env:"YTDLP_PATH"`

	// FFmpegPath is the ffmpeg executable. Default: "ffmpeg" from PATH.
	FFmpegPath string `yaml:"ffmpeg_path" env:"FFMPEG_PATH"`

	// SearchPrefix is prepended to free-text queries. Default: "ytsearch:".
	SearchPrefix string `yaml:"search_prefix"`

	// RatePerSecond limits lookups across all guilds. Zero uses the
	// resolver default; a negative value disables limiting.
	RatePerSecond float64 `yaml:"rate_per_second"`

	// Burst is the token bucket size of the rate limit.
	Burst int `yaml:"burst"`

	// LookupTimeout bounds a single shared lookup. Zero uses the default.
	LookupTimeout time.Duration `yaml:"lookup_timeout"`

	// Breaker tunes the per-provider circuit breakers.
	Breaker BreakerConfig `yaml:"breaker"`
}

// BreakerConfig tunes the circuit breaker in front of each resolver.
// Zero values use the breaker defaults.
type BreakerConfig struct {
	MaxFailures  int           `yaml:"max_failures"`
	ResetTimeout time.Duration `yaml:"reset_timeout"`
}

// SessionConfig tunes command execution.
type SessionConfig struct {
	// CommandTimeout bounds a single command, including voice join and source
	// lookup. Zero means no bound.
	CommandTimeout time.Duration `yaml:"command_timeout"`
}

// DefaultResolvers is the resolver chain used when none is configured.
var DefaultResolvers = []string{"ytdlp", "youtube"}

// ResolverNames returns the configured resolver chain, or [DefaultResolvers].
func (c *Config) ResolverNames() []string {
	if len(c.Resolver.Providers) == 0 {
		return DefaultResolvers
	}
	return c.Resolver.Providers
}
