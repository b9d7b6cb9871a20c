package discord

import (
	"log/slog"
	"sync"
	"time"

	"github.com/MrWong99/songbot/pkg/audio"
	"github.com/bwmarrin/discordgo"
)

// Compile-time interface assertion.
var _ audio.Connection = (*Connection)(nil)

const (
	// outputChannelBuffer holds a few frames of look-ahead; a full buffer
	// blocks the queue and paces playback at real time.
	outputChannelBuffer = 16

	// speakingIdle is how long the output may stay silent before the bot stops
	// flagging itself as speaking.
	speakingIdle = 250 * time.Millisecond
)

// Connection wraps a discordgo.VoiceConnection and adapts it to the
// [audio.Connection] interface. It encodes outgoing PCM frames to Opus and
// hands them to discordgo for transmission.
//
// Connection is safe for concurrent use.
type Connection struct {
	vc        *discordgo.VoiceConnection
	guildID   string
	channelID string

	output chan audio.AudioFrame

	done      chan struct{}
	closeOnce sync.Once

	// disconnectVC is called during Disconnect to tear down the voice connection.
	// Defaults to vc.Disconnect; overridden in tests.
	disconnectVC func() error

	// speaking reports speaking state changes to Discord. Defaults to
	// vc.Speaking; overridden in tests.
	speaking func(bool) error
}

// newConnection initialises a Connection for an already-joined voice channel
// and starts its send loop.
func newConnection(vc *discordgo.VoiceConnection, guildID, channelID string) *Connection {
	c := &Connection{
		vc:           vc,
		guildID:      guildID,
		channelID:    channelID,
		output:       make(chan audio.AudioFrame, outputChannelBuffer),
		done:         make(chan struct{}),
		disconnectVC: vc.Disconnect,
		speaking:     vc.Speaking,
	}
	go c.sendLoop()
	return c
}

// ChannelID returns the voice channel this connection is joined to.
func (c *Connection) ChannelID() string {
	return c.channelID
}

// OutputStream returns the write-only channel for playback audio.
// Frames written here are encoded to Opus and sent to Discord.
func (c *Connection) OutputStream() chan<- audio.AudioFrame {
	return c.output
}

// Disconnect cleanly tears down the voice connection and stops the send loop.
// It is safe to call more than once; subsequent calls return nil.
func (c *Connection) Disconnect() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		if c.disconnectVC != nil {
			err = c.disconnectVC()
		}
		slog.Debug("discord: voice connection closed", "guild_id", c.guildID, "channel_id", c.channelID)
	})
	return err
}

// sendLoop reads PCM AudioFrames from the output channel, re-slices them into
// exact Opus frame-sized chunks, encodes them and sends the packets via the
// Discord voice connection. The speaking flag is raised on the first frame and
// lowered again once output has been idle for [speakingIdle].
func (c *Connection) sendLoop() {
	enc, err := newOpusEncoder()
	if err != nil {
		slog.Error("discord: failed to create opus encoder", "guild_id", c.guildID, "error", err)
		return
	}

	speakingSet := false
	idle := time.NewTimer(speakingIdle)
	defer idle.Stop()

	var buf []byte

	for {
		select {
		case <-c.done:
			if speakingSet {
				c.setSpeaking(false)
			}
			return

		case <-idle.C:
			if speakingSet {
				c.setSpeaking(false)
				speakingSet = false
			}

		case frame, ok := <-c.output:
			if !ok {
				return
			}
			idle.Reset(speakingIdle)

			if !speakingSet {
				c.setSpeaking(true)
				speakingSet = true
			}

			buf = append(buf, frame.Data...)

			for len(buf) >= audio.FrameBytes {
				opus, eErr := enc.encode(buf[:audio.FrameBytes])
				buf = buf[audio.FrameBytes:]
				if eErr != nil {
					slog.Warn("discord: opus encode error", "guild_id", c.guildID, "error", eErr)
					continue
				}

				select {
				case c.vc.OpusSend <- opus:
				case <-c.done:
					return
				}
			}
		}
	}
}

// setSpeaking sends a speaking notification to Discord, logging any errors.
func (c *Connection) setSpeaking(b bool) {
	if c.speaking == nil {
		return
	}
	if err := c.speaking(b); err != nil {
		slog.Warn("discord: speaking notification error", "guild_id", c.guildID, "speaking", b, "error", err)
	}
}
