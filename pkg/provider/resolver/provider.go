// Package resolver defines the Provider interface for turning a user query into
// a playable [audio.Source].
//
// A query is either a URL or a search query carrying the [SearchPrefix]. A
// resolver looks the query up, captures the track metadata (title and canonical
// URL) and returns a Source whose PCM stream is opened lazily when the track
// reaches the head of a queue.
//
// Implementors must be safe for concurrent use.
package resolver

import (
	"context"
	"errors"
	"io"

	"github.com/MrWong99/songbot/pkg/audio"
)

// SearchPrefix marks a query as a search rather than a locator. Resolvers that
// cannot search return [ErrUnsupported] for such queries.
const SearchPrefix = "ytsearch:"

var (
	// ErrNoResults is returned when a query matched nothing.
	ErrNoResults = errors.New("resolver: no results")

	// ErrUnsupported is returned when a resolver cannot handle a kind of query.
	// It is not a backend failure.
	ErrUnsupported = errors.New("resolver: unsupported query")
)

// Provider resolves queries into playable sources.
type Provider interface {
	// Resolve looks query up and returns a playable source. The returned
	// source's metadata is fixed at resolution time.
	Resolve(ctx context.Context, query string) (audio.Source, error)
}

// Decoder opens a PCM stream for a media locator. *ffmpeg.Transcoder
// satisfies it.
type Decoder interface {
	Open(ctx context.Context, input string) (io.ReadCloser, error)
}

// StreamSource is an [audio.Source] backed by a direct media URL that is
// decoded on demand.
type StreamSource struct {
	track     audio.Track
	streamURL string
	decoder   Decoder
}

// Compile-time interface assertion.
var _ audio.Source = (*StreamSource)(nil)

// NewStreamSource returns a source for track whose audio is fetched from
// streamURL and decoded with dec.
func NewStreamSource(track audio.Track, streamURL string, dec Decoder) *StreamSource {
	return &StreamSource{track: track, streamURL: streamURL, decoder: dec}
}

// Track implements [audio.Source].
func (s *StreamSource) Track() audio.Track { return s.track }

// StreamURL returns the direct media URL the source decodes.
func (s *StreamSource) StreamURL() string { return s.streamURL }

// Open implements [audio.Source].
func (s *StreamSource) Open(ctx context.Context) (io.ReadCloser, error) {
	return s.decoder.Open(ctx, s.streamURL)
}
