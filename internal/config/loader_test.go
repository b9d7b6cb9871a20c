package config

import (
	"strings"
	"testing"
	"time"

	"github.com/caarlos0/env/v11"
)

func TestLoadFromReader_Full(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  listen_addr: ":8080"
  log_level: debug
discord:
  token: abc
  application_id: "1234"
  guild_id: "42"
resolver:
  providers: [youtube, ytdlp]
  ytdlp_path: /opt/yt-dlp
  ffmpeg_path: /opt/ffmpeg
  search_prefix: "scsearch:"
  rate_per_second: 0.5
  burst: 2
  lookup_timeout: 10s
  breaker:
    max_failures: 3
    reset_timeout: 1m
session:
  command_timeout: 90s
`
	cfg, err := LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.ListenAddr != ":8080" || cfg.Server.LogLevel != LogDebug {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Discord != (DiscordConfig{Token: "abc", ApplicationID: "1234", GuildID: "42"}) {
		t.Errorf("discord = %+v", cfg.Discord)
	}
	if got := cfg.ResolverNames(); len(got) != 2 || got[0] != "youtube" || got[1] != "ytdlp" {
		t.Errorf("ResolverNames() = %v", got)
	}
	r := cfg.Resolver
	if r.YTDLPPath != "/opt/yt-dlp" || r.FFmpegPath != "/opt/ffmpeg" || r.SearchPrefix != "scsearch:" {
		t.Errorf("resolver paths = %+v", r)
	}
	if r.RatePerSecond != 0.5 || r.Burst != 2 || r.LookupTimeout != 10*time.Second {
		t.Errorf("resolver limits = %+v", r)
	}
	if r.Breaker.MaxFailures != 3 || r.Breaker.ResetTimeout != time.Minute {
		t.Errorf("breaker = %+v", r.Breaker)
	}
	if cfg.Session.CommandTimeout != 90*time.Second {
		t.Errorf("command_timeout = %s", cfg.Session.CommandTimeout)
	}
}

func TestLoadFromReader_UnknownField(t *testing.T) {
	t.Parallel()
	yaml := `
discord:
  token: abc
  application_id: "1"
  tokne: typo
`
	if _, err := LoadFromReader(strings.NewReader(yaml)); err == nil {
		t.Fatal("expected error for unknown field, got nil")
	}
}

func TestResolverNames_Default(t *testing.T) {
	t.Parallel()
	cfg := &Config{}
	got := cfg.ResolverNames()
	if len(got) != 2 || got[0] != "ytdlp" || got[1] != "youtube" {
		t.Errorf("ResolverNames() = %v, want [ytdlp youtube]", got)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	valid := func() *Config {
		return &Config{Discord: DiscordConfig{Token: "abc", ApplicationID: "123"}}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing token", mutate: func(c *Config) { c.Discord.Token = "" }, wantErr: "discord.token is required"},
		{name: "missing application id", mutate: func(c *Config) { c.Discord.ApplicationID = "" }, wantErr: "discord.application_id is required"},
		{name: "non-numeric application id", mutate: func(c *Config) { c.Discord.ApplicationID = "abc" }, wantErr: "must be a positive integer"},
		{name: "zero application id", mutate: func(c *Config) { c.Discord.ApplicationID = "0" }, wantErr: "must be a positive integer"},
		{name: "bad log level", mutate: func(c *Config) { c.Server.LogLevel = "loud" }, wantErr: "server.log_level"},
		{name: "duplicate resolver", mutate: func(c *Config) { c.Resolver.Providers = []string{"ytdlp", "ytdlp"} }, wantErr: "duplicate"},
		{name: "empty resolver", mutate: func(c *Config) { c.Resolver.Providers = []string{""} }, wantErr: "must not be empty"},
		{name: "negative burst", mutate: func(c *Config) { c.Resolver.Burst = -1 }, wantErr: "resolver.burst"},
		{name: "negative timeout", mutate: func(c *Config) { c.Session.CommandTimeout = -time.Second }, wantErr: "session.command_timeout"},
		{name: "unknown resolver only warns", mutate: func(c *Config) { c.Resolver.Providers = []string{"soundcloud"} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := valid()
			tt.mutate(cfg)
			err := Validate(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_ReportsAllErrors(t *testing.T) {
	t.Parallel()
	err := Validate(&Config{})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	for _, want := range []string{"DISCORD_TOKEN", "APPLICATION_ID"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestApplyEnv_OverridesYAML(t *testing.T) {
	t.Parallel()
	cfg, err := LoadFromReader(strings.NewReader(`
server:
  log_level: info
  listen_addr: ":8080"
discord:
  token: from-yaml
  application_id: "1"
`))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	err = applyEnv(cfg, env.Options{Environment: map[string]string{
		"DISCORD_TOKEN":    "from-env",
		"APPLICATION_ID":   "987",
		"DISCORD_GUILD_ID": "55",
		"LOG_LEVEL":        "warn",
	}})
	if err != nil {
		t.Fatalf("applyEnv: %v", err)
	}

	want := DiscordConfig{Token: "from-env", ApplicationID: "987", GuildID: "55"}
	if cfg.Discord != want {
		t.Errorf("discord = %+v, want %+v", cfg.Discord, want)
	}
	if cfg.Server.LogLevel != LogWarn {
		t.Errorf("log_level = %q, want warn", cfg.Server.LogLevel)
	}
	// Unset variables keep the YAML value.
	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("listen_addr = %q, want :8080", cfg.Server.ListenAddr)
	}
}

func TestLoad_MissingFileUsesEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DISCORD_TOKEN", "env-token")
	t.Setenv("APPLICATION_ID", "321")

	cfg, err := Load("does-not-exist.yaml")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Discord.Token != "env-token" || cfg.Discord.ApplicationID != "321" {
		t.Errorf("discord = %+v", cfg.Discord)
	}
}

func TestLoad_MissingCredentialsIsFatal(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DISCORD_TOKEN", "")
	t.Setenv("APPLICATION_ID", "")

	if _, err := Load(""); err == nil {
		t.Fatal("expected error without credentials, got nil")
	}
}
