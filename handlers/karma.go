// Package handlers contains opt-in event handlers for the bot. They're all
// constructors returning a tally.Handler so that their collaborators can be
// injected where they're wired up.
package handlers

import (
	"errors"
	"strings"

	"github.com/gissleh/tally"
	"github.com/gissleh/tally/karma"
	"github.com/gissleh/tally/metric"
)

// An Update is one karma mutation found in a message text.
type Update struct {
	Word  string
	Delta int
}

// ScanKarma finds `word++` and `word--` tokens in a message text, in order.
// Tokens are whitespace-separated; only the suffix is inspected. The word
// keeps its case here, the store normalizes on its own.
func ScanKarma(text string) []Update {
	var updates []Update

	for _, token := range strings.Fields(text) {
		var delta int

		switch {
		case strings.HasSuffix(token, "++"):
			delta = 1
		case strings.HasSuffix(token, "--"):
			delta = -1
		default:
			continue
		}

		updates = append(updates, Update{
			Word:  token[:len(token)-2],
			Delta: delta,
		})
	}

	return updates
}

// Karma returns the handler that routes chat messages: karma tokens become
// store updates with a reply per token, and a leading "ping" becomes a pong.
// Both can trigger on the same message. The metrics may be nil.
func Karma(store *karma.Store, metrics *metric.Metrics) tally.Handler {
	return func(event *tally.Event, client *tally.Client) {
		if event.Name() != "packet.privmsg" {
			return
		}

		target := event.Arg(0)
		if target == "" || event.Nick == "" {
			return
		}

		// A message to our own nick is private; replies go back to the
		// sender. Anything else is a channel; replies go to the channel.
		direct := target == client.Nick()
		replyTarget := target
		if direct {
			replyTarget = event.Nick
		}

		for _, update := range ScanKarma(event.Text) {
			var score int64
			var err error

			if update.Delta > 0 {
				score, err = store.Increment(update.Word)
			} else {
				score, err = store.Decrement(update.Word)
			}

			if err != nil {
				if errors.Is(err, karma.ErrEmptyKey) {
					client.Sayf(replyTarget, "%s: I need a word in front of that", event.Nick)
				} else {
					client.Sayf(replyTarget, "%s: I could not count that one", event.Nick)
				}
				continue
			}

			if metrics != nil {
				metrics.KarmaUpdates.Inc()
			}

			client.Sayf(replyTarget, "%s is now at %d", karma.Normalize(update.Word), score)
		}

		if fields := strings.Fields(event.Text); len(fields) > 0 && strings.EqualFold(fields[0], "ping") {
			if direct {
				client.Say(replyTarget, "pong")
			} else {
				client.Sayf(replyTarget, "%s: pong", event.Nick)
			}
		}
	}
}
