package audio

import (
	"context"
	"io"
	"time"
)

// Discord voice expects 48 kHz stereo audio in 20 ms frames. Every [Source]
// yields PCM in this format so frames can be handed to a [Connection] as-is.
const (
	SampleRate  = 48000
	Channels    = 2
	FrameMillis = 20

	// FrameSamples is the number of samples per channel in one frame (960).
	FrameSamples = SampleRate * FrameMillis / 1000

	// FrameBytes is the size of one interleaved s16le frame:
	// 960 samples/channel × 2 channels × 2 bytes/sample = 3840 bytes.
	FrameBytes = FrameSamples * Channels * 2
)

// Fallback display values used when a resolver supplies no metadata.
const (
	UnknownTitle   = "Unknown Song"
	PlaceholderURL = "https://youtu.be/"
)

// AudioFrame is a single frame of PCM audio on its way to a voice connection.
type AudioFrame struct {
	// Data is interleaved signed 16-bit little-endian PCM.
	Data []byte

	// SampleRate in Hz (48000 for Discord).
	SampleRate int

	// Channels: 2 for Discord output.
	Channels int

	// Timestamp is the position of this frame relative to the start of its track.
	Timestamp time.Duration
}

// Track describes one playable item. The zero value of a field means the
// resolver did not provide it. A Track is immutable once enqueued.
type Track struct {
	// Title is the display name of the track.
	Title string

	// SourceURL is the canonical locator of the track.
	SourceURL string
}

// DisplayTitle returns the title, or [UnknownTitle] when absent.
func (t Track) DisplayTitle() string {
	if t.Title == "" {
		return UnknownTitle
	}
	return t.Title
}

// DisplayURL returns the source URL, or [PlaceholderURL] when absent.
func (t Track) DisplayURL() string {
	if t.SourceURL == "" {
		return PlaceholderURL
	}
	return t.SourceURL
}

// Source is a resolved, playable item.
//
// Implementations must be safe for concurrent use: the same Source may be
// handed to several queues when identical queries are resolved concurrently.
type Source interface {
	// Track returns the metadata of this source.
	Track() Track

	// Open starts a new PCM stream ([SampleRate], [Channels], s16le). The
	// stream is released by closing the returned reader; cancelling ctx also
	// terminates it.
	Open(ctx context.Context) (io.ReadCloser, error)
}
