package command

import (
	"errors"
	"fmt"
	"strings"

	"github.com/MrWong99/songbot/pkg/audio"
)

// User-facing texts.
const (
	MsgQueued  = "Successfully queued song"
	MsgLeft    = "Successfully left call"
	MsgSkipped = "Successfully skipped song"
	MsgPaused  = "Successfully paused song"
	MsgResumed = "Successfully resumed song"

	// MsgQueueHeader precedes the lines rendered by [FormatQueue].
	MsgQueueHeader = "Current queue:\n"

	MsgNotInChannel     = "Not in VC"
	MsgArgument         = "Couldn't get argument"
	MsgInfra            = "Couldn't get "
	MsgSourceResolution = "Couldn't stream source"
	MsgUnknownCommand   = "Unknown command"
	MsgInternal         = "Something went wrong"
)

// FormatQueue renders tracks in order, one "{title} / <{url}>" line each,
// under [MsgQueueHeader]. The angle brackets keep chat clients from
// unfurling the links.
func FormatQueue(tracks []audio.Track) string {
	var b strings.Builder
	b.WriteString(MsgQueueHeader)
	for i, t := range tracks {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s / <%s>", t.DisplayTitle(), t.DisplayURL())
	}
	return b.String()
}

// Message renders err as the text shown to the user. A nil err yields "".
func Message(err error) string {
	var (
		argErr     *ArgumentError
		unknownErr *UnknownCommandError
		infraErr   *InfraError
		sourceErr  *SourceResolutionError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotInChannel):
		return MsgNotInChannel
	case errors.As(err, &argErr):
		return fmt.Sprintf("%s: %s", MsgArgument, argErr.Argument)
	case errors.As(err, &unknownErr):
		return MsgUnknownCommand
	case errors.As(err, &infraErr):
		return MsgInfra + infraErr.Subsystem
	case errors.As(err, &sourceErr):
		return MsgSourceResolution
	default:
		return MsgInternal
	}
}

// Kind returns a short, stable label for the class of err, suitable for logs
// and metric attributes.
func Kind(err error) string {
	var (
		argErr     *ArgumentError
		unknownErr *UnknownCommandError
		infraErr   *InfraError
		sourceErr  *SourceResolutionError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotInChannel):
		return "not_in_channel"
	case errors.As(err, &argErr):
		return "argument"
	case errors.As(err, &unknownErr):
		return "unknown_command"
	case errors.As(err, &infraErr):
		return "infra"
	case errors.As(err, &sourceErr):
		return "source_resolution"
	default:
		return "internal"
	}
}
