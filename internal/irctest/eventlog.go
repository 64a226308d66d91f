package irctest

import (
	"sync"

	"github.com/gissleh/tally"
)

// An EventLog records every event its Handler sees, for assertions after an
// interaction has played out. The Handler runs on the client's event loop, so
// the log locks around every access.
type EventLog struct {
	mutex  sync.Mutex
	events []*tally.Event
}

func (l *EventLog) First(kind, verb string) *tally.Event {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	for _, e := range l.events {
		if e.Verb() == verb && e.Kind() == kind {
			return e
		}
	}

	return nil
}

func (l *EventLog) Last(kind, verb string) *tally.Event {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	for i := len(l.events) - 1; i >= 0; i-- {
		e := l.events[i]
		if e.Verb() == verb && e.Kind() == kind {
			return e
		}
	}

	return nil
}

func (l *EventLog) Count(kind, verb string) int {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	count := 0
	for _, e := range l.events {
		if e.Verb() == verb && e.Kind() == kind {
			count++
		}
	}

	return count
}

func (l *EventLog) Handler(event *tally.Event, _ *tally.Client) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	l.events = append(l.events, event)
}
