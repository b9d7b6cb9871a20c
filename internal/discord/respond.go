package discord

import (
	"log/slog"

	"github.com/bwmarrin/discordgo"
)

// noMentions suppresses every implicit mention in a message. Replies echo
// user-supplied text such as track titles, which must never ping anyone.
var noMentions = &discordgo.MessageAllowedMentions{Parse: []discordgo.AllowedMentionType{}}

// RespondEphemeral sends an ephemeral text response to an interaction.
func RespondEphemeral(s Session, i *discordgo.InteractionCreate, content string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content:         content,
			Flags:           discordgo.MessageFlagsEphemeral,
			AllowedMentions: noMentions,
		},
	})
	if err != nil {
		slog.Warn("discord: failed to send ephemeral response", "err", err)
	}
}

// DeferReply acknowledges an interaction with a deferred channel message, so
// the handler can take longer than the three second response window. It
// reports whether the acknowledgement was sent.
func DeferReply(s Session, i *discordgo.InteractionCreate) bool {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	})
	if err != nil {
		slog.Warn("discord: failed to defer reply", "err", err)
		return false
	}
	return true
}

// EditReply replaces the deferred response of i with content. Mentions in
// content are not resolved.
func EditReply(s Session, i *discordgo.InteractionCreate, content string) {
	_, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
		Content:         &content,
		AllowedMentions: noMentions,
	})
	if err != nil {
		slog.Warn("discord: failed to edit reply", "err", err)
	}
}
