package tally

import (
	"errors"
	"strings"
	"time"
)

// ParseMessage parses a raw line from the server and returns an event of kind
// `packet`. The line must already have its CR/LF stripped.
//
// The grammar is the usual space-delimited one: an optional `:prefix` (either
// a bare server name or `nick!user@host`), a verb, arguments, and an optional
// ` :trailing` part that is kept whole so free text keeps its spaces.
func ParseMessage(line string) (Event, error) {
	event := NewEvent("packet", "")
	event.Time = time.Now()

	if len(line) == 0 {
		return event, errors.New("tally: empty line")
	}

	// Parse prefix
	if line[0] == ':' {
		split := strings.SplitN(line, " ", 2)
		if len(split) < 2 {
			return event, errors.New("tally: incomplete message")
		}

		prefixTokens := strings.Split(split[0][1:], "!")

		event.Nick = prefixTokens[0]
		if len(prefixTokens) > 1 {
			userhost := strings.Split(prefixTokens[1], "@")

			if len(userhost) < 2 {
				return event, errors.New("tally: invalid user@host format")
			}

			event.User = userhost[0]
			event.Host = userhost[1]
		}

		line = split[1]
	}

	// Parse body
	split := strings.SplitN(line, " :", 2)
	tokens := strings.Split(split[0], " ")

	if len(split) == 2 {
		event.Text = split[1]
	}

	event.verb = tokens[0]
	event.Args = tokens[1:]

	event.name = event.kind + "." + strings.ToLower(event.verb)
	return event, nil
}
