// Package mock provides test doubles for Discord interaction testing.
package mock

import (
	"sync"

	"github.com/bwmarrin/discordgo"
)

// Session is a mock implementation of discord.Session. It records interaction
// responses and edits for test assertions and answers voice state lookups
// from VoiceStates.
type Session struct {
	mu sync.Mutex

	// VoiceStates maps "guildID/userID" to the user's voice channel ID.
	VoiceStates map[string]string

	// VoiceStateErr is returned by VoiceState when non-nil.
	VoiceStateErr error

	// RespondErr is returned by InteractionRespond when non-nil.
	RespondErr error

	// EditErr is returned by InteractionResponseEdit when non-nil.
	EditErr error

	// Responses records all InteractionRespond calls.
	Responses []*discordgo.InteractionResponse

	// Edits records all InteractionResponseEdit calls.
	Edits []*discordgo.WebhookEdit
}

// InteractionRespond records the response and returns RespondErr.
func (m *Session) InteractionRespond(_ *discordgo.Interaction, resp *discordgo.InteractionResponse, _ ...discordgo.RequestOption) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Responses = append(m.Responses, resp)
	return m.RespondErr
}

// InteractionResponseEdit records the edit and returns a stub message.
func (m *Session) InteractionResponseEdit(_ *discordgo.Interaction, edit *discordgo.WebhookEdit, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Edits = append(m.Edits, edit)
	if m.EditErr != nil {
		return nil, m.EditErr
	}
	return &discordgo.Message{ID: "mock-edit"}, nil
}

// VoiceState returns the configured voice state, or
// discordgo.ErrStateNotFound when the user is not in a channel.
func (m *Session) VoiceState(guildID, userID string) (*discordgo.VoiceState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.VoiceStateErr != nil {
		return nil, m.VoiceStateErr
	}
	ch, ok := m.VoiceStates[guildID+"/"+userID]
	if !ok {
		return nil, discordgo.ErrStateNotFound
	}
	return &discordgo.VoiceState{GuildID: guildID, UserID: userID, ChannelID: ch}, nil
}

// LastResponse returns the most recently recorded response, or nil.
func (m *Session) LastResponse() *discordgo.InteractionResponse {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Responses) == 0 {
		return nil
	}
	return m.Responses[len(m.Responses)-1]
}

// LastEdit returns the most recently recorded edit, or nil.
func (m *Session) LastEdit() *discordgo.WebhookEdit {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Edits) == 0 {
		return nil
	}
	return m.Edits[len(m.Edits)-1]
}
