package config_test

import (
	"slices"
	"testing"
	"time"

	"github.com/MrWong99/songbot/internal/config"
)

func TestDiff(t *testing.T) {
	t.Parallel()

	base := func() *config.Config {
		return &config.Config{
			Server:   config.ServerConfig{ListenAddr: ":8080", LogLevel: config.LogInfo},
			Discord:  config.DiscordConfig{Token: "a", ApplicationID: "1"},
			Resolver: config.ResolverConfig{Providers: []string{"ytdlp"}},
		}
	}

	tests := []struct {
		name        string
		mutate      func(*config.Config)
		wantLog     bool
		wantTimeout bool
		wantRestart []string
	}{
		{name: "identical", mutate: func(*config.Config) {}},
		{name: "log level", mutate: func(c *config.Config) { c.Server.LogLevel = config.LogDebug }, wantLog: true},
		{name: "command timeout", mutate: func(c *config.Config) { c.Session.CommandTimeout = time.Minute }, wantTimeout: true},
		{name: "listen addr", mutate: func(c *config.Config) { c.Server.ListenAddr = ":9090" }, wantRestart: []string{"server.listen_addr"}},
		{name: "token", mutate: func(c *config.Config) { c.Discord.Token = "b" }, wantRestart: []string{"discord"}},
		{name: "resolver chain", mutate: func(c *config.Config) { c.Resolver.Providers = []string{"youtube"} }, wantRestart: []string{"resolver"}},
		{name: "resolver breaker", mutate: func(c *config.Config) { c.Resolver.Breaker.MaxFailures = 9 }, wantRestart: []string{"resolver"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			next := base()
			tt.mutate(next)
			d := config.Diff(base(), next)

			if d.LogLevelChanged != tt.wantLog {
				t.Errorf("LogLevelChanged = %v, want %v", d.LogLevelChanged, tt.wantLog)
			}
			if tt.wantLog && d.NewLogLevel != next.Server.LogLevel {
				t.Errorf("NewLogLevel = %q, want %q", d.NewLogLevel, next.Server.LogLevel)
			}
			if d.CommandTimeoutChanged != tt.wantTimeout {
				t.Errorf("CommandTimeoutChanged = %v, want %v", d.CommandTimeoutChanged, tt.wantTimeout)
			}
			if !slices.Equal(d.RestartRequired, tt.wantRestart) {
				t.Errorf("RestartRequired = %v, want %v", d.RestartRequired, tt.wantRestart)
			}
		})
	}
}
