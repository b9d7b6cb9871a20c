// Package ytdlp implements [resolver.Provider] on top of the yt-dlp command
// line tool. yt-dlp understands both direct URLs and "ytsearch:" queries, which
// makes it the primary resolver.
//
// Resolve runs yt-dlp once to extract metadata and the direct audio stream URL.
// The returned source decodes that URL with ffmpeg when it is opened.
package ytdlp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/MrWong99/songbot/pkg/audio"
	"github.com/MrWong99/songbot/pkg/audio/ffmpeg"
	"github.com/MrWong99/songbot/pkg/provider/resolver"
)

// DefaultPath is the yt-dlp binary looked up on $PATH when none is configured.
const DefaultPath = "yt-dlp"

// Compile-time interface assertion.
var _ resolver.Provider = (*Provider)(nil)

// runFunc executes a command and returns its stdout.
type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

// Option is a functional option for configuring a yt-dlp Provider.
type Option func(*Provider)

// WithPath sets the yt-dlp executable.
func WithPath(path string) Option {
	return func(p *Provider) {
		if path != "" {
			p.path = path
		}
	}
}

// WithDecoder sets the decoder used to open resolved streams.
func WithDecoder(dec resolver.Decoder) Option {
	return func(p *Provider) {
		p.decoder = dec
	}
}

// Provider resolves queries by shelling out to yt-dlp.
type Provider struct {
	path    string
	decoder resolver.Decoder
	run     runFunc
}

// New creates a yt-dlp Provider. By default it runs [DefaultPath] and decodes
// with an ffmpeg transcoder found on $PATH.
func New(opts ...Option) *Provider {
	p := &Provider{
		path:    DefaultPath,
		decoder: ffmpeg.New(""),
		run:     runCommand,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Args returns the yt-dlp arguments used to resolve query.
func (p *Provider) Args(query string) []string {
	return []string{
		"--dump-json",
		"--no-playlist",
		"--no-warnings",
		"--format", "bestaudio/best",
		"--",
		query,
	}
}

// info is the subset of yt-dlp's JSON output songbot uses.
type info struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	WebpageURL string `json:"webpage_url"`
	URL        string `json:"url"`
	Formats    []struct {
		URL    string `json:"url"`
		ACodec string `json:"acodec"`
	} `json:"formats"`
}

// Resolve implements [resolver.Provider].
func (p *Provider) Resolve(ctx context.Context, query string) (audio.Source, error) {
	out, err := p.run(ctx, p.path, p.Args(query)...)
	if err != nil {
		return nil, fmt.Errorf("ytdlp: resolve %q: %w", query, err)
	}

	// Searches print one JSON document per result; only the first is used.
	line, _, _ := bytes.Cut(bytes.TrimSpace(out), []byte("\n"))
	if len(line) == 0 {
		return nil, fmt.Errorf("ytdlp: resolve %q: %w", query, resolver.ErrNoResults)
	}

	var meta info
	if err := json.Unmarshal(line, &meta); err != nil {
		return nil, fmt.Errorf("ytdlp: decode metadata: %w", err)
	}

	streamURL := strings.TrimSpace(meta.URL)
	if streamURL == "" {
		for _, f := range meta.Formats {
			if f.URL != "" && f.ACodec != "none" {
				streamURL = f.URL
				break
			}
		}
	}
	if streamURL == "" {
		return nil, fmt.Errorf("ytdlp: resolve %q: no playable audio stream", query)
	}

	track := audio.Track{
		Title:     strings.TrimSpace(meta.Title),
		SourceURL: strings.TrimSpace(meta.WebpageURL),
	}
	return resolver.NewStreamSource(track, streamURL, p.decoder), nil
}

// runCommand runs name with args and returns stdout. A non-zero exit is
// reported together with the tool's stderr.
func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
		}
		return nil, err
	}
	return out, nil
}
