package tally_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gissleh/tally"
)

type messageTestRow struct {
	Data string
	Name string
	Nick string
	User string
	Host string
	Args []string
	Text string
}

var messageTestTable = []messageTestRow{
	{"PING :server.example.com", "packet.ping", "", "", "", []string{}, "server.example.com"},
	{"PING token", "packet.ping", "", "", "", []string{"token"}, ""},
	{"PONG", "packet.pong", "", "", "", []string{}, ""},
	{":irc.example.net 001 tally :Welcome to the Example Network", "packet.001", "irc.example.net", "", "", []string{"tally"}, "Welcome to the Example Network"},
	{":alice!ally@host.example.com PRIVMSG #tally :hello there", "packet.privmsg", "alice", "ally", "host.example.com", []string{"#tally"}, "hello there"},
	{":alice!ally@host.example.com PRIVMSG tally :ping", "packet.privmsg", "alice", "ally", "host.example.com", []string{"tally"}, "ping"},
	{":irc.example.net NOTICE * :*** Looking up your hostname...", "packet.notice", "irc.example.net", "", "", []string{"*"}, "*** Looking up your hostname..."},
}

func TestParseMessage(t *testing.T) {
	for _, row := range messageTestTable {
		t.Run(row.Data, func(t *testing.T) {
			event, err := tally.ParseMessage(row.Data)
			if err != nil {
				t.Error("Parse failed", err)
				return
			}

			assert.Equal(t, row.Name, event.Name(), "name")
			assert.Equal(t, row.Nick, event.Nick, "nick")
			assert.Equal(t, row.User, event.User, "user")
			assert.Equal(t, row.Host, event.Host, "host")
			assert.Equal(t, row.Args, event.Args, "args")
			assert.Equal(t, row.Text, event.Text, "text")
		})
	}
}

func TestParseMessageErrors(t *testing.T) {
	for _, line := range []string{"", ":lonely.prefix", ":odd!format PRIVMSG #tally :hi"} {
		t.Run(line, func(t *testing.T) {
			_, err := tally.ParseMessage(line)
			assert.Error(t, err)
		})
	}
}

func TestEventArg(t *testing.T) {
	event, err := tally.ParseMessage("PING one two")
	assert.NoError(t, err)

	assert.Equal(t, "one", event.Arg(0))
	assert.Equal(t, "two", event.Arg(1))
	assert.Equal(t, "", event.Arg(2), "a short line should read as absent fields")
	assert.Equal(t, "", event.Arg(-1))
}
