package commands

import (
	"context"
	"sync"
	"testing"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/songbot/internal/command"
	"github.com/MrWong99/songbot/internal/discord"
	"github.com/MrWong99/songbot/internal/discord/mock"
)

type handleCall struct {
	Name            string
	Opts            []command.Option
	GuildID         string
	CallerChannelID string
	HasDeadline     bool
}

// fakeHandler records Handle calls and answers Reply.
type fakeHandler struct {
	mu    sync.Mutex
	Reply string
	Panic any
	Calls []handleCall
}

func (f *fakeHandler) Handle(ctx context.Context, name string, opts []command.Option, guildID, callerChannelID string) string {
	_, ok := ctx.Deadline()
	f.mu.Lock()
	f.Calls = append(f.Calls, handleCall{name, opts, guildID, callerChannelID, ok})
	f.mu.Unlock()
	if f.Panic != nil {
		panic(f.Panic)
	}
	return f.Reply
}

func interaction(name string, opts ...*discordgo.ApplicationCommandInteractionDataOption) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			Type:    discordgo.InteractionApplicationCommand,
			GuildID: "g1",
			Member:  &discordgo.Member{User: &discordgo.User{ID: "u1"}},
			Data: discordgo.ApplicationCommandInteractionData{
				Name:    name,
				Options: opts,
			},
		},
	}
}

func TestDefinitions(t *testing.T) {
	t.Parallel()

	defs := Definitions()
	want := map[string]string{
		"play":   "Play a song",
		"leave":  "Leave the VC",
		"skip":   "Skip the current song",
		"pause":  "Pause current song",
		"resume": "Resume current song",
		"queue":  "See queue",
	}
	if len(defs) != len(want) {
		t.Fatalf("got %d definitions, want %d", len(defs), len(want))
	}
	for i, name := range command.Names() {
		if defs[i].Name != name {
			t.Errorf("defs[%d].Name = %q, want %q", i, defs[i].Name, name)
		}
		if defs[i].Description != want[name] {
			t.Errorf("%s description = %q, want %q", name, defs[i].Description, want[name])
		}
	}

	play := defs[0]
	if len(play.Options) != 1 {
		t.Fatalf("play options = %d, want 1", len(play.Options))
	}
	opt := play.Options[0]
	if opt.Name != "name" || !opt.Required || opt.Type != discordgo.ApplicationCommandOptionString {
		t.Errorf("play option = %+v", opt)
	}
	if opt.Description != "the name or a URL of the song" {
		t.Errorf("play option description = %q", opt.Description)
	}
}

func TestMusicCommands_PlayForwardsCallerChannel(t *testing.T) {
	t.Parallel()

	h := &fakeHandler{Reply: command.MsgQueued}
	router := discord.NewCommandRouter()
	NewMusicCommands(h).Register(router)

	s := &mock.Session{VoiceStates: map[string]string{"g1/u1": "vc9"}}
	router.Dispatch(s, interaction("play", &discordgo.ApplicationCommandInteractionDataOption{
		Name:  "name",
		Type:  discordgo.ApplicationCommandOptionString,
		Value: "never gonna give you up",
	}))

	if len(h.Calls) != 1 {
		t.Fatalf("Handle calls = %d, want 1", len(h.Calls))
	}
	call := h.Calls[0]
	if call.Name != "play" || call.GuildID != "g1" || call.CallerChannelID != "vc9" {
		t.Errorf("call = %+v", call)
	}
	if len(call.Opts) != 1 || call.Opts[0].Name != "name" || call.Opts[0].Value != "never gonna give you up" {
		t.Errorf("opts = %+v", call.Opts)
	}
	if !call.HasDeadline {
		t.Error("handler context has no deadline")
	}

	if len(s.Responses) != 1 || s.Responses[0].Type != discordgo.InteractionResponseDeferredChannelMessageWithSource {
		t.Errorf("expected one deferred response, got %+v", s.Responses)
	}
	edit := s.LastEdit()
	if edit == nil || *edit.Content != command.MsgQueued {
		t.Errorf("edit = %+v, want %q", edit, command.MsgQueued)
	}
}

func TestMusicCommands_CallerNotInVoice(t *testing.T) {
	t.Parallel()

	h := &fakeHandler{Reply: command.MsgNotInChannel}
	router := discord.NewCommandRouter()
	NewMusicCommands(h).Register(router)

	s := &mock.Session{}
	router.Dispatch(s, interaction("skip"))

	if len(h.Calls) != 1 || h.Calls[0].CallerChannelID != "" {
		t.Fatalf("calls = %+v", h.Calls)
	}
	if got := *s.LastEdit().Content; got != command.MsgNotInChannel {
		t.Errorf("reply = %q", got)
	}
}

func TestMusicCommands_DeferFailureSkipsHandler(t *testing.T) {
	t.Parallel()

	h := &fakeHandler{Reply: command.MsgSkipped}
	router := discord.NewCommandRouter()
	NewMusicCommands(h).Register(router)

	s := &mock.Session{RespondErr: context.DeadlineExceeded}
	router.Dispatch(s, interaction("skip"))

	if len(h.Calls) != 0 {
		t.Errorf("Handle called %d times after failed defer", len(h.Calls))
	}
	if len(s.Edits) != 0 {
		t.Errorf("edits = %d, want 0", len(s.Edits))
	}
}

func TestMusicCommands_RecoversPanic(t *testing.T) {
	t.Parallel()

	h := &fakeHandler{Panic: "boom"}
	router := discord.NewCommandRouter()
	NewMusicCommands(h, WithTimeout(0)).Register(router)

	s := &mock.Session{}
	router.Dispatch(s, interaction("pause"))

	edit := s.LastEdit()
	if edit == nil || *edit.Content != command.MsgInternal {
		t.Errorf("edit = %+v, want %q", edit, command.MsgInternal)
	}
}

func TestOptions_SkipsNil(t *testing.T) {
	t.Parallel()

	got := options([]*discordgo.ApplicationCommandInteractionDataOption{
		nil,
		{Name: "name", Value: "x"},
	})
	if len(got) != 1 || got[0].Name != "name" || got[0].Value != "x" {
		t.Errorf("options = %+v", got)
	}
}
