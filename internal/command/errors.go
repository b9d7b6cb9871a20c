package command

import (
	"errors"
	"fmt"
)

// ErrNotInChannel reports that a command needs a voice presence that does not
// exist: the caller is not in a voice channel, or the guild has no session.
// It is a normal outcome, not a fault.
var ErrNotInChannel = errors.New("not in voice channel")

// ArgumentError reports a missing or mistyped command argument.
type ArgumentError struct {
	Command  string
	Argument string
	Reason   string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("command %s: argument %q: %s", e.Command, e.Argument, e.Reason)
}

// UnknownCommandError reports a command name the interpreter does not know.
type UnknownCommandError struct {
	Name string
}

func (e *UnknownCommandError) Error() string {
	return fmt.Sprintf("unknown command %q", e.Name)
}

// InfraError reports that a subsystem the command depends on is unavailable,
// e.g. the voice manager or the voice connection.
type InfraError struct {
	Subsystem string
	Err       error
}

func (e *InfraError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s unavailable", e.Subsystem)
	}
	return fmt.Sprintf("%s unavailable: %v", e.Subsystem, e.Err)
}

func (e *InfraError) Unwrap() error { return e.Err }

// SourceResolutionError reports that a query could not be turned into a
// playable source.
type SourceResolutionError struct {
	Query string
	Err   error
}

func (e *SourceResolutionError) Error() string {
	return fmt.Sprintf("resolve %q: %v", e.Query, e.Err)
}

func (e *SourceResolutionError) Unwrap() error { return e.Err }
