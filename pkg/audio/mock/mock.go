// Package mock provides in-memory mock implementations of the [audio.Platform],
// [audio.Connection] and [audio.Source] interfaces for use in unit tests.
//
// All mocks are safe for concurrent use. They record every method call so that
// tests can assert on call counts and arguments, and they expose exported fields
// that the test can set to control return values.
//
// Typical usage:
//
//	conn := mock.NewConnection("voice-1")
//	platform := &mock.Platform{ConnectResult: conn}
//	got, err := platform.Connect(ctx, "guild-1", "voice-1")
package mock

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/MrWong99/songbot/pkg/audio"
)

// ─── Connection ───────────────────────────────────────────────────────────────

// Connection is a mock implementation of [audio.Connection].
// Set the exported Result fields before use; inspect the Call* fields after.
type Connection struct {
	mu sync.Mutex

	// ChannelIDResult is returned by [Connection.ChannelID].
	ChannelIDResult string

	// OutputStreamResult is returned by [Connection.OutputStream].
	OutputStreamResult chan audio.AudioFrame

	// DisconnectError is returned by [Connection.Disconnect].
	DisconnectError error

	// CallCountDisconnect records how many times Disconnect was called.
	CallCountDisconnect int
}

// NewConnection returns a Connection joined to channelID whose output stream
// is a generously buffered channel, so queues never block in tests.
func NewConnection(channelID string) *Connection {
	return &Connection{
		ChannelIDResult:    channelID,
		OutputStreamResult: make(chan audio.AudioFrame, 1024),
	}
}

// ChannelID implements [audio.Connection].
func (c *Connection) ChannelID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ChannelIDResult
}

// OutputStream implements [audio.Connection]. Returns OutputStreamResult.
func (c *Connection) OutputStream() chan<- audio.AudioFrame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.OutputStreamResult
}

// Disconnect implements [audio.Connection]. Returns DisconnectError.
func (c *Connection) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CallCountDisconnect++
	return c.DisconnectError
}

// Disconnects returns the number of Disconnect calls.
func (c *Connection) Disconnects() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.CallCountDisconnect
}

// ─── Platform ─────────────────────────────────────────────────────────────────

// ConnectCall records the arguments of a single [Platform.Connect] invocation.
type ConnectCall struct {
	GuildID   string
	ChannelID string
}

// Platform is a mock implementation of [audio.Platform].
type Platform struct {
	mu sync.Mutex

	// ConnectResult is the [audio.Connection] returned by Connect. When nil,
	// a fresh [Connection] is created per call so every session owns a
	// distinct handle.
	ConnectResult audio.Connection

	// ConnectError is the error returned by Connect.
	ConnectError error

	// Gate, when non-nil, makes Connect block until a value is received or
	// ctx is done. Use it to hold a join in flight.
	Gate chan struct{}

	// ConnectCalls records all Connect invocations.
	ConnectCalls []ConnectCall

	// Connections records every connection handed out, in order.
	Connections []*Connection
}

// Connect implements [audio.Platform]. Records the call and returns ConnectResult / ConnectError.
func (p *Platform) Connect(ctx context.Context, guildID, channelID string) (audio.Connection, error) {
	p.mu.Lock()
	p.ConnectCalls = append(p.ConnectCalls, ConnectCall{GuildID: guildID, ChannelID: channelID})
	gate := p.Gate
	p.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ConnectError != nil {
		return nil, p.ConnectError
	}
	if p.ConnectResult != nil {
		return p.ConnectResult, nil
	}
	conn := NewConnection(channelID)
	p.Connections = append(p.Connections, conn)
	return conn, nil
}

// Calls returns a copy of the recorded Connect invocations.
func (p *Platform) Calls() []ConnectCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]ConnectCall, len(p.ConnectCalls))
	copy(out, p.ConnectCalls)
	return out
}

// ─── Source ───────────────────────────────────────────────────────────────────

// Source is a mock implementation of [audio.Source] that streams Data.
type Source struct {
	mu sync.Mutex

	// TrackResult is returned by [Source.Track].
	TrackResult audio.Track

	// Data is the PCM stream returned by Open.
	Data []byte

	// OpenError is returned by Open when non-nil.
	OpenError error

	// Block, when non-nil, makes the stream returned by Open block on every
	// Read until ctx is done or Block is closed.
	Block chan struct{}

	// CallCountOpen records how many times Open was called.
	CallCountOpen int
}

// NewSource returns a Source for track that streams frames full frames of
// the byte value fill.
func NewSource(track audio.Track, frames int, fill byte) *Source {
	return &Source{
		TrackResult: track,
		Data:        bytes.Repeat([]byte{fill}, frames*audio.FrameBytes),
	}
}

// Track implements [audio.Source].
func (s *Source) Track() audio.Track {
	return s.TrackResult
}

// Open implements [audio.Source].
func (s *Source) Open(ctx context.Context) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountOpen++
	if s.OpenError != nil {
		return nil, s.OpenError
	}
	r := io.Reader(bytes.NewReader(s.Data))
	if s.Block != nil {
		r = &blockingReader{ctx: ctx, block: s.Block, r: r}
	}
	return io.NopCloser(r), nil
}

// Opens returns the number of Open calls.
func (s *Source) Opens() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.CallCountOpen
}

type blockingReader struct {
	ctx   context.Context
	block chan struct{}
	r     io.Reader
}

func (b *blockingReader) Read(p []byte) (int, error) {
	select {
	case <-b.ctx.Done():
		return 0, b.ctx.Err()
	case <-b.block:
	}
	return b.r.Read(p)
}
