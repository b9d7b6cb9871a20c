// Package command turns a raw chat command (a name plus named options) into a
// typed [Command] and renders command outcomes as user-facing text.
//
// Parsing is pure: it never looks at guild or voice state. The only rule it
// applies is query normalisation for [Play], which turns free text into a
// search query the resolver understands.
package command

// Command names as registered with the chat platform.
const (
	NamePlay      = "play"
	NameLeave     = "leave"
	NameSkip      = "skip"
	NamePause     = "pause"
	NameResume    = "resume"
	NameListQueue = "queue"
)

// OptionQuery is the name of the play command's only option.
const OptionQuery = "name"

// Command is one parsed chat command. The concrete type identifies the
// variant: [Play], [Leave], [Skip], [Pause], [Resume] or [ListQueue].
type Command interface {
	// Name returns the chat command name of the variant.
	Name() string
}

// Play queues a track, joining the caller's voice channel first if needed.
type Play struct {
	// Query is a direct locator or a normalised search query.
	Query string
}

// Leave stops playback and disconnects from voice.
type Leave struct{}

// Skip drops the track at the head of the queue.
type Skip struct{}

// Pause suspends playback.
type Pause struct{}

// Resume continues paused playback.
type Resume struct{}

// ListQueue shows the queued tracks in order.
type ListQueue struct{}

func (Play) Name() string      { return NamePlay }
func (Leave) Name() string     { return NameLeave }
func (Skip) Name() string      { return NameSkip }
func (Pause) Name() string     { return NamePause }
func (Resume) Name() string    { return NameResume }
func (ListQueue) Name() string { return NameListQueue }

// Names lists every supported command name in registration order.
func Names() []string {
	return []string{NamePlay, NameLeave, NameSkip, NamePause, NameResume, NameListQueue}
}
