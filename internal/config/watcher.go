package config

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Watcher keeps the config file and the running process in sync. It reloads
// on a timer and whenever its trigger fires (SIGHUP in production). A reload
// that fails to parse or validate is logged and the previous config stays in
// effect.
type Watcher struct {
	path     string
	interval time.Duration
	trigger  <-chan os.Signal
	onChange func(old, new *Config)

	mu      sync.Mutex
	current *Config
	stamp   fileStamp
}

// fileStamp identifies one version of the config file.
type fileStamp struct {
	mtime time.Time
	hash  [sha256.Size]byte
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithInterval sets the polling interval. Default: 5s. Zero or less turns
// polling off, leaving only the trigger.
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.interval = d }
}

// WithTrigger forces a reload whenever ch receives, regardless of mtime.
func WithTrigger(ch <-chan os.Signal) WatcherOption {
	return func(w *Watcher) { w.trigger = ch }
}

// NewWatcher loads path and returns a Watcher for it. Nothing is watched
// until [Watcher.Run] is called.
func NewWatcher(path string, onChange func(old, new *Config), opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		path:     path,
		interval: 5 * time.Second,
		onChange: onChange,
	}
	for _, opt := range opts {
		opt(w)
	}

	cfg, stamp, err := w.load()
	if err != nil {
		return nil, fmt.Errorf("config: watcher initial load: %w", err)
	}
	w.current, w.stamp = cfg, stamp
	return w, nil
}

// Current returns the most recently applied config.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Run reloads on every tick and trigger until ctx is done. It always returns
// ctx.Err().
func (w *Watcher) Run(ctx context.Context) error {
	var tick <-chan time.Time
	if w.interval > 0 {
		t := time.NewTicker(w.interval)
		defer t.Stop()
		tick = t.C
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick:
			w.reload(false)
		case <-w.trigger:
			slog.Info("config: reload requested", "path", w.path)
			w.reload(true)
		}
	}
}

// Reload rereads the file now and reports whether a changed config was
// applied.
func (w *Watcher) Reload() (bool, error) {
	return w.apply(true)
}

func (w *Watcher) reload(force bool) {
	if _, err := w.apply(force); err != nil {
		slog.Warn("config: reload failed, keeping previous config", "path", w.path, "err", err)
	}
}

// apply loads the file unless its mtime is unchanged and force is false, and
// hands a config with new content to onChange.
func (w *Watcher) apply(force bool) (bool, error) {
	if !force {
		info, err := os.Stat(w.path)
		if err != nil {
			return false, err
		}
		w.mu.Lock()
		same := info.ModTime().Equal(w.stamp.mtime)
		w.mu.Unlock()
		if same {
			return false, nil
		}
	}

	cfg, stamp, err := w.load()
	if err != nil {
		return false, err
	}

	w.mu.Lock()
	if stamp.hash == w.stamp.hash {
		w.stamp = stamp
		w.mu.Unlock()
		return false, nil
	}
	old := w.current
	w.current, w.stamp = cfg, stamp
	w.mu.Unlock()

	slog.Info("config: reloaded", "path", w.path)
	if w.onChange != nil {
		w.onChange(old, cfg)
	}
	return true, nil
}

// load reads, decodes, overlays and validates the file.
func (w *Watcher) load() (*Config, fileStamp, error) {
	info, err := os.Stat(w.path)
	if err != nil {
		return nil, fileStamp{}, err
	}
	data, err := os.ReadFile(w.path)
	if err != nil {
		return nil, fileStamp{}, err
	}

	cfg := &Config{}
	if err := decode(bytes.NewReader(data), cfg); err != nil {
		return nil, fileStamp{}, err
	}
	if err := ApplyEnv(cfg); err != nil {
		return nil, fileStamp{}, err
	}
	if err := Validate(cfg); err != nil {
		return nil, fileStamp{}, err
	}
	return cfg, fileStamp{mtime: info.ModTime(), hash: sha256.Sum256(data)}, nil
}
