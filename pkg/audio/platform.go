// Package audio defines the interfaces and types for the voice engine that
// songbot drives.
//
// The primary abstractions are:
//
//   - [Platform]: joins a voice channel of a guild and returns a [Connection].
//   - [Connection]: an active voice presence that accepts PCM frames for playback.
//   - [Source]: a resolved, playable item: [Track] metadata plus an opener for
//     its PCM stream.
//
// Implementations of these interfaces are provided by platform-specific adapter
// packages (e.g., audio/discord). The interfaces are intentionally narrow to
// keep the session orchestrator decoupled from transport details.
//
// This package lives under pkg/ because external code (third-party platform
// adapters and resolvers) is expected to implement [Platform] and [Source].
package audio

import (
	"context"
)

// Connection represents an active presence in a voice channel.
//
// A Connection is obtained by calling [Platform.Connect] and remains valid
// until [Connection.Disconnect] is called.
//
// Implementations must be safe for concurrent use.
type Connection interface {
	// ChannelID returns the voice channel this connection is joined to.
	ChannelID() string

	// OutputStream returns the write-only channel for playback frames.
	// Frames written here are encoded and sent to all channel participants.
	// The channel is buffered; a full buffer applies backpressure to the
	// writer, which is what paces playback at real time.
	//
	// Ownership: The returned channel is owned by the platform. Writing to the
	// channel after Disconnect results in dropped frames (not a panic).
	OutputStream() chan<- AudioFrame

	// Disconnect leaves the voice channel and stops all background goroutines.
	// It is safe to call Disconnect more than once; subsequent calls are no-ops
	// and return nil.
	Disconnect() error
}

// Platform is the entry point for a voice-channel provider.
// Implementations wrap provider-specific SDKs and expose a uniform
// [Connection] abstraction.
//
// Implementations must be safe for concurrent use.
type Platform interface {
	// Connect joins the voice channel channelID of guild guildID and returns an
	// active [Connection]. The supplied ctx governs the connection attempt only;
	// once connected, the Connection remains alive until
	// [Connection.Disconnect] is called explicitly.
	Connect(ctx context.Context, guildID, channelID string) (Connection, error)
}
