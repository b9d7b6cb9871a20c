package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"slices"
	"strconv"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ValidResolverNames lists the built-in resolver names. Used by [Validate]
// to warn about unrecognised names.
var ValidResolverNames = []string{"ytdlp", "youtube"}

// Load builds the process configuration. It decodes the YAML file at path
// when it exists, loads a .env file from the working directory when present,
// then overlays environment variables and validates the result. A missing
// config file is not an error: the bot can run from the environment alone.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		f, err := os.Open(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			slog.Debug("config: no config file, using environment only", "path", path)
		case err != nil:
			return nil, fmt.Errorf("config: open %q: %w", path, err)
		default:
			defer f.Close()
			if err := decode(f, cfg); err != nil {
				return nil, fmt.Errorf("config: parse %q: %w", path, err)
			}
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result. The
// environment is not consulted. Useful in tests where configs are
// constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	if err := decode(r, cfg); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("config: decode yaml: %w", err)
	}
	return nil
}

// ApplyEnv overlays environment variables onto cfg. Only variables that are
// set replace values; everything else keeps what the YAML file provided.
func ApplyEnv(cfg *Config) error {
	return applyEnv(cfg, env.Options{})
}

func applyEnv(cfg *Config, opts env.Options) error {
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return fmt.Errorf("config: parse env: %w", err)
	}
	return nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if cfg.Discord.Token == "" {
		errs = append(errs, errors.New("discord.token is required (DISCORD_TOKEN)"))
	}
	if cfg.Discord.ApplicationID == "" {
		errs = append(errs, errors.New("discord.application_id is required (APPLICATION_ID)"))
	} else if id, err := strconv.ParseUint(cfg.Discord.ApplicationID, 10, 64); err != nil || id == 0 {
		errs = append(errs, fmt.Errorf("discord.application_id %q must be a positive integer", cfg.Discord.ApplicationID))
	}

	seen := make(map[string]int, len(cfg.Resolver.Providers))
	for i, name := range cfg.Resolver.Providers {
		prefix := fmt.Sprintf("resolver.providers[%d]", i)
		if name == "" {
			errs = append(errs, fmt.Errorf("%s must not be empty", prefix))
			continue
		}
		if prev, ok := seen[name]; ok {
			errs = append(errs, fmt.Errorf("%s %q is a duplicate of resolver.providers[%d]", prefix, name, prev))
		}
		seen[name] = i
		validateResolverName(name)
	}

	if cfg.Resolver.Burst < 0 {
		errs = append(errs, fmt.Errorf("resolver.burst %d must not be negative", cfg.Resolver.Burst))
	}
	if cfg.Resolver.LookupTimeout < 0 {
		errs = append(errs, fmt.Errorf("resolver.lookup_timeout %s must not be negative", cfg.Resolver.LookupTimeout))
	}
	if cfg.Resolver.Breaker.MaxFailures < 0 {
		errs = append(errs, fmt.Errorf("resolver.breaker.max_failures %d must not be negative", cfg.Resolver.Breaker.MaxFailures))
	}
	if cfg.Session.CommandTimeout < 0 {
		errs = append(errs, fmt.Errorf("session.command_timeout %s must not be negative", cfg.Session.CommandTimeout))
	}

	return errors.Join(errs...)
}

// validateResolverName logs a warning if name is not a built-in resolver.
func validateResolverName(name string) {
	if slices.Contains(ValidResolverNames, name) {
		return
	}
	slog.Warn("unknown resolver name, may be a typo or third-party resolver",
		"name", name,
		"known", ValidResolverNames,
	)
}
