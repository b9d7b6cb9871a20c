// Package commands defines songbot's slash commands and binds them to the
// session orchestrator.
package commands

import (
	"context"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/songbot/internal/command"
	"github.com/MrWong99/songbot/internal/discord"
)

// Handler executes one chat command and returns the reply text. It is
// satisfied by *session.Orchestrator.
type Handler interface {
	Handle(ctx context.Context, name string, opts []command.Option, guildID, callerChannelID string) string
}

// defaultTimeout bounds a single interaction. Discord discards edits to a
// deferred response after fifteen minutes.
const defaultTimeout = 14 * time.Minute

// MusicCommands registers the music slash commands and forwards them to a
// [Handler].
type MusicCommands struct {
	handler Handler
	timeout time.Duration
}

// MusicOption configures [MusicCommands].
type MusicOption func(*MusicCommands)

// WithTimeout overrides the per-interaction deadline. Zero disables it.
func WithTimeout(d time.Duration) MusicOption {
	return func(mc *MusicCommands) { mc.timeout = d }
}

// NewMusicCommands creates the music command set backed by h.
func NewMusicCommands(h Handler, opts ...MusicOption) *MusicCommands {
	mc := &MusicCommands{handler: h, timeout: defaultTimeout}
	for _, o := range opts {
		o(mc)
	}
	return mc
}

// Register adds every music command to router.
func (mc *MusicCommands) Register(router *discord.CommandRouter) {
	for _, def := range Definitions() {
		router.RegisterCommand(def.Name, def, mc.handle)
	}
}

// Definitions returns the slash command definitions in registration order.
func Definitions() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        command.NamePlay,
			Description: "Play a song",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        command.OptionQuery,
					Description: "the name or a URL of the song",
					Required:    true,
				},
			},
		},
		{Name: command.NameLeave, Description: "Leave the VC"},
		{Name: command.NameSkip, Description: "Skip the current song"},
		{Name: command.NamePause, Description: "Pause current song"},
		{Name: command.NameResume, Description: "Resume current song"},
		{Name: command.NameListQueue, Description: "See queue"},
	}
}

// handle acknowledges the interaction, runs the command and edits the
// deferred reply with the outcome.
func (mc *MusicCommands) handle(s discord.Session, i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()
	log := slog.With("command", data.Name, "guild_id", i.GuildID, "user_id", discord.InteractionUserID(i))

	if !discord.DeferReply(s, i) {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error("commands: panic while handling interaction", "panic", r)
			discord.EditReply(s, i, command.MsgInternal)
		}
	}()

	ctx := context.Background()
	if mc.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, mc.timeout)
		defer cancel()
	}

	reply := mc.handler.Handle(ctx, data.Name, options(data.Options), i.GuildID, discord.CallerChannelID(s, i))
	log.Debug("commands: interaction handled")
	discord.EditReply(s, i, reply)
}

// options flattens the top-level interaction options into command options.
func options(in []*discordgo.ApplicationCommandInteractionDataOption) []command.Option {
	out := make([]command.Option, 0, len(in))
	for _, o := range in {
		if o == nil {
			continue
		}
		out = append(out, command.Option{Name: o.Name, Value: o.Value})
	}
	return out
}
