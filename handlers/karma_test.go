package handlers_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gissleh/tally/handlers"
)

type scanKarmaRow struct {
	Text    string
	Updates []handlers.Update
}

var scanKarmaTable = []scanKarmaRow{
	{"cake++", []handlers.Update{{Word: "cake", Delta: 1}}},
	{"cake--", []handlers.Update{{Word: "cake", Delta: -1}}},
	{"foo++ bar--", []handlers.Update{{Word: "foo", Delta: 1}, {Word: "bar", Delta: -1}}},
	{"thanks alice++ that worked", []handlers.Update{{Word: "alice", Delta: 1}}},
	{"C++ is a language", []handlers.Update{{Word: "C", Delta: 1}}},
	{"MixedCase++", []handlers.Update{{Word: "MixedCase", Delta: 1}}},
	{"++", []handlers.Update{{Word: "", Delta: 1}}},
	{"nothing to see here", nil},
	{"almost+ but+not quite-", nil},
	{"", nil},
	{"  spaced\t out++  ", []handlers.Update{{Word: "out", Delta: 1}}},
}

func TestScanKarma(t *testing.T) {
	for _, row := range scanKarmaTable {
		t.Run(row.Text, func(t *testing.T) {
			assert.Equal(t, row.Updates, handlers.ScanKarma(row.Text))
		})
	}
}
