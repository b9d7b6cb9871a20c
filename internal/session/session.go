package session

import (
	"sync"
	"time"

	"github.com/MrWong99/songbot/pkg/audio"
	"github.com/MrWong99/songbot/pkg/audio/queue"
)

// Status is the playback status of a [Session].
type Status int

const (
	// StatusPlaying means the queue head plays as soon as it is available.
	StatusPlaying Status = iota

	// StatusPaused means playback is suspended until resumed.
	StatusPaused
)

// String returns the human-readable name of the status.
func (s Status) String() string {
	switch s {
	case StatusPlaying:
		return "playing"
	case StatusPaused:
		return "paused"
	default:
		return "unknown"
	}
}

// Session is the live voice presence of one guild: the connection it owns and
// the playback queue that feeds it. Mutating methods are meant to be called
// while holding the guild's [Guard], but every method is safe for concurrent
// use.
type Session struct {
	// GuildID is the guild this session belongs to.
	GuildID string

	// ChannelID is the voice channel the connection joined.
	ChannelID string

	// CreatedAt is when the session joined its channel.
	CreatedAt time.Time

	conn  audio.Connection
	queue *queue.TrackQueue

	closeOnce sync.Once
	closeErr  error
}

// NewSession wraps conn in a session for guildID and starts its playback
// queue. The session owns conn from here on.
func NewSession(guildID string, conn audio.Connection, opts ...queue.Option) *Session {
	return &Session{
		GuildID:   guildID,
		ChannelID: conn.ChannelID(),
		CreatedAt: time.Now(),
		conn:      conn,
		queue:     queue.New(conn.OutputStream(), opts...),
	}
}

// Enqueue appends src to the tail of the queue and returns the queue length.
func (s *Session) Enqueue(src audio.Source) int {
	return s.queue.Enqueue(src)
}

// Skip discards the head of the queue. It reports whether a track was removed.
func (s *Session) Skip() bool {
	return s.queue.Skip()
}

// Pause suspends playback.
func (s *Session) Pause() {
	s.queue.Pause()
}

// Resume continues playback.
func (s *Session) Resume() {
	s.queue.Resume()
}

// Status returns the current playback status.
func (s *Session) Status() Status {
	if s.queue.Paused() {
		return StatusPaused
	}
	return StatusPlaying
}

// Tracks returns the queued tracks, head first.
func (s *Session) Tracks() []audio.Track {
	return s.queue.Tracks()
}

// Close stops the queue and leaves the voice channel. The connection is not
// used again afterwards. Close is idempotent and returns the first result.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.queue.Stop()
		_ = s.queue.Close()
		s.closeErr = s.conn.Disconnect()
	})
	return s.closeErr
}
