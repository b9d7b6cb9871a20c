package command

import (
	"strings"

	"github.com/MrWong99/songbot/pkg/provider/resolver"
)

// Option is a named command argument as delivered by the chat platform.
// A nil Value means the option was declared but carries no value.
type Option struct {
	Name  string
	Value any
}

// Interpreter parses raw commands. The zero value uses
// [resolver.SearchPrefix] for search queries.
type Interpreter struct {
	// SearchPrefix is prepended to free-text play queries.
	SearchPrefix string
}

// Parse parses a command with the zero-value [Interpreter].
func Parse(name string, opts []Option) (Command, error) {
	return Interpreter{}.Parse(name, opts)
}

// Parse turns name and opts into a [Command]. It fails with
// [*UnknownCommandError] for unsupported names and with [*ArgumentError] when
// play lacks a string query.
func (in Interpreter) Parse(name string, opts []Option) (Command, error) {
	switch name {
	case NamePlay:
		query, err := stringOption(name, OptionQuery, opts)
		if err != nil {
			return nil, err
		}
		return Play{Query: in.Normalize(query)}, nil
	case NameLeave:
		return Leave{}, nil
	case NameSkip:
		return Skip{}, nil
	case NamePause:
		return Pause{}, nil
	case NameResume:
		return Resume{}, nil
	case NameListQueue:
		return ListQueue{}, nil
	default:
		return nil, &UnknownCommandError{Name: name}
	}
}

// Normalize returns query unchanged when it already is a direct locator,
// i.e. it starts with "http". Anything else becomes a search query.
func (in Interpreter) Normalize(query string) string {
	if strings.HasPrefix(query, "http") {
		return query
	}
	prefix := in.SearchPrefix
	if prefix == "" {
		prefix = resolver.SearchPrefix
	}
	return prefix + query
}

// stringOption returns the first option called optName as a non-blank string.
func stringOption(cmd, optName string, opts []Option) (string, error) {
	for _, o := range opts {
		if o.Name != optName {
			continue
		}
		if o.Value == nil {
			break
		}
		s, ok := o.Value.(string)
		if !ok {
			return "", &ArgumentError{Command: cmd, Argument: optName, Reason: "must be a string"}
		}
		if strings.TrimSpace(s) == "" {
			return "", &ArgumentError{Command: cmd, Argument: optName, Reason: "must not be empty"}
		}
		return s, nil
	}
	return "", &ArgumentError{Command: cmd, Argument: optName, Reason: "missing"}
}
