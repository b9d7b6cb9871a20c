package discord

import "github.com/bwmarrin/discordgo"

// Session is the part of the Discord API that command handlers use. It is
// satisfied by [Gateway] in production and by mock.Session in tests.
type Session interface {
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	InteractionResponseEdit(interaction *discordgo.Interaction, newresp *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)

	// VoiceState returns the cached voice state of userID in guildID.
	VoiceState(guildID, userID string) (*discordgo.VoiceState, error)
}

// Gateway adapts a live *discordgo.Session to [Session], answering voice
// state lookups from the session's state cache.
type Gateway struct {
	*discordgo.Session
}

var _ Session = Gateway{}

// VoiceState implements [Session].
func (g Gateway) VoiceState(guildID, userID string) (*discordgo.VoiceState, error) {
	return g.State.VoiceState(guildID, userID)
}

// InteractionUserID returns the ID of the user who triggered i, or "".
func InteractionUserID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

// CallerChannelID returns the voice channel the interaction's user is in,
// or "" when they are not in one or the lookup fails.
func CallerChannelID(s Session, i *discordgo.InteractionCreate) string {
	userID := InteractionUserID(i)
	if i.GuildID == "" || userID == "" {
		return ""
	}
	vs, err := s.VoiceState(i.GuildID, userID)
	if err != nil || vs == nil {
		return ""
	}
	return vs.ChannelID
}
