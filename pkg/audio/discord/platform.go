// Package discord provides an [audio.Platform] implementation backed by
// Discord voice channels via the bwmarrin/discordgo library. It bridges
// songbot's PCM [audio.AudioFrame] playback pipeline with Discord's Opus-based
// voice transport.
//
// The platform requires an active *discordgo.Session (owned by the bot layer).
// Each call to [Platform.Connect] joins the given voice channel of the given
// guild and returns a [Connection] that encodes queued PCM to Opus and sends it
// to the channel. The bot joins deafened: it never consumes incoming audio.
package discord

import (
	"context"
	"fmt"
	"sync"

	"github.com/MrWong99/songbot/pkg/audio"
	"github.com/bwmarrin/discordgo"
)

// Compile-time interface assertion.
var _ audio.Platform = (*Platform)(nil)

// voiceJoiner is the subset of *discordgo.Session used by Platform.
type voiceJoiner interface {
	ChannelVoiceJoin(gID, cID string, mute, deaf bool) (*discordgo.VoiceConnection, error)
}

// Platform implements [audio.Platform] using discordgo voice connections.
// A single Platform serves every guild the bot is in.
//
// Platform is safe for concurrent use.
type Platform struct {
	session voiceJoiner

	// leave tears down a join whose caller gave up. Nil means
	// (*discordgo.VoiceConnection).Disconnect.
	leave func(*discordgo.VoiceConnection) error

	mu    sync.Mutex
	joins map[string]*guildJoins
}

// guildJoins numbers the Connect calls of one guild. discordgo hands every
// join of a guild the same *VoiceConnection, so an abandoned join may only
// be torn down while no later join of that guild exists.
type guildJoins struct {
	mu  sync.Mutex
	gen uint64
}

// New creates a new Discord Platform for the given session.
func New(session *discordgo.Session) *Platform {
	return &Platform{session: session}
}

// joinsFor returns the join counter of guildID.
func (p *Platform) joinsFor(guildID string) *guildJoins {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.joins == nil {
		p.joins = make(map[string]*guildJoins)
	}
	gj, ok := p.joins[guildID]
	if !ok {
		gj = &guildJoins{}
		p.joins[guildID] = gj
	}
	return gj
}

// abandon disconnects vc unless a Connect for the same guild started after
// the one numbered gen. It holds the guild's counter so that no new join can
// pick up vc while it is being torn down.
func (p *Platform) abandon(gj *guildJoins, gen uint64, vc *discordgo.VoiceConnection) {
	gj.mu.Lock()
	defer gj.mu.Unlock()
	if gj.gen != gen {
		return
	}
	leave := p.leave
	if leave == nil {
		leave = (*discordgo.VoiceConnection).Disconnect
	}
	_ = leave(vc)
}

// Connect joins the voice channel channelID of guild guildID and returns an
// active [audio.Connection]. The supplied ctx governs the connection-setup
// phase only; once the Connection is returned it lives until
// [Connection.Disconnect] is called.
func (p *Platform) Connect(ctx context.Context, guildID, channelID string) (audio.Connection, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("discord: join voice channel %q: %w", channelID, err)
	}

	gj := p.joinsFor(guildID)
	gj.mu.Lock()
	gj.gen++
	gen := gj.gen
	gj.mu.Unlock()

	type joinResult struct {
		vc  *discordgo.VoiceConnection
		err error
	}
	ch := make(chan joinResult, 1)
	go func() {
		// mute=false (we send audio), deaf=true (we never listen).
		vc, err := p.session.ChannelVoiceJoin(guildID, channelID, false, true)
		ch <- joinResult{vc: vc, err: err}
	}()

	select {
	case res := <-ch:
		if res.err != nil {
			return nil, fmt.Errorf("discord: join voice channel %q: %w", channelID, res.err)
		}
		return newConnection(res.vc, guildID, channelID), nil
	case <-ctx.Done():
		// The join may still complete; make sure it does not linger.
		go func() {
			if res := <-ch; res.err == nil && res.vc != nil {
				p.abandon(gj, gen, res.vc)
			}
		}()
		return nil, fmt.Errorf("discord: join voice channel %q: %w", channelID, ctx.Err())
	}
}
