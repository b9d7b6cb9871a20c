// Package youtube implements [resolver.Provider] with the kkdai/youtube
// client library. It resolves YouTube URLs and video IDs without any external
// tool and serves as a fallback when yt-dlp is unavailable. It cannot search:
// search queries yield [resolver.ErrUnsupported].
package youtube

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/MrWong99/songbot/pkg/audio"
	"github.com/MrWong99/songbot/pkg/audio/ffmpeg"
	"github.com/MrWong99/songbot/pkg/provider/resolver"
	kkdai "github.com/kkdai/youtube/v2"
)

// watchURL is the canonical page URL of a video ID.
const watchURL = "https://www.youtube.com/watch?v="

// Compile-time interface assertion.
var _ resolver.Provider = (*Provider)(nil)

// videoClient is the subset of *kkdai.Client used by Provider.
type videoClient interface {
	GetVideoContext(ctx context.Context, url string) (*kkdai.Video, error)
	GetStreamURLContext(ctx context.Context, video *kkdai.Video, format *kkdai.Format) (string, error)
}

// Option is a functional option for configuring a youtube Provider.
type Option func(*Provider)

// WithHTTPClient sets the HTTP client used to talk to YouTube.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.client = &kkdai.Client{HTTPClient: c}
	}
}

// WithDecoder sets the decoder used to open resolved streams.
func WithDecoder(dec resolver.Decoder) Option {
	return func(p *Provider) {
		p.decoder = dec
	}
}

// Provider resolves YouTube links through the kkdai/youtube client.
type Provider struct {
	client  videoClient
	decoder resolver.Decoder
}

// New creates a youtube Provider with a 15 s HTTP timeout and an ffmpeg
// decoder found on $PATH unless overridden by opts.
func New(opts ...Option) *Provider {
	p := &Provider{
		client:  &kkdai.Client{HTTPClient: &http.Client{Timeout: 15 * time.Second}},
		decoder: ffmpeg.New(""),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Resolve implements [resolver.Provider].
func (p *Provider) Resolve(ctx context.Context, query string) (audio.Source, error) {
	if strings.HasPrefix(query, resolver.SearchPrefix) {
		return nil, fmt.Errorf("youtube: search %q: %w", query, resolver.ErrUnsupported)
	}
	id, err := kkdai.ExtractVideoID(query)
	if err != nil {
		return nil, fmt.Errorf("youtube: %q is not a video link: %w", query, resolver.ErrUnsupported)
	}

	video, err := p.client.GetVideoContext(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("youtube: get video %q: %w", id, err)
	}

	format, ok := bestAudio(video.Formats)
	if !ok {
		return nil, fmt.Errorf("youtube: video %q: no audio formats: %w", id, resolver.ErrNoResults)
	}

	streamURL, err := p.client.GetStreamURLContext(ctx, video, format)
	if err != nil {
		return nil, fmt.Errorf("youtube: stream url for %q: %w", id, err)
	}

	track := audio.Track{Title: video.Title}
	if video.ID != "" {
		track.SourceURL = watchURL + video.ID
	}
	return resolver.NewStreamSource(track, streamURL, p.decoder), nil
}

// bestAudio picks the highest-bitrate format carrying audio, preferring
// audio-only formats.
func bestAudio(formats kkdai.FormatList) (*kkdai.Format, bool) {
	var best *kkdai.Format
	bestAudioOnly := false
	for i := range formats {
		f := &formats[i]
		if f.AudioChannels == 0 {
			continue
		}
		audioOnly := strings.HasPrefix(f.MimeType, "audio/")
		switch {
		case best == nil,
			audioOnly && !bestAudioOnly,
			audioOnly == bestAudioOnly && f.Bitrate > best.Bitrate:
			best = f
			bestAudioOnly = audioOnly
		}
	}
	return best, best != nil
}
