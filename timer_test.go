package tally

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebouncedTimerDebounces(t *testing.T) {
	fired := make(chan Event, 8)
	timer := newDebouncedTimer("test", func(event Event) { fired <- event })

	timer.Reschedule(time.Millisecond * 40)
	timer.Reschedule(time.Millisecond * 40)
	timer.Reschedule(time.Millisecond * 40)

	select {
	case event := <-fired:
		assert.Equal(t, "timer.test", event.Name())
		assert.True(t, timer.Matches(&event))
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}

	select {
	case <-fired:
		t.Fatal("rescheduling should have cancelled the earlier firings")
	case <-time.After(time.Millisecond * 120):
	}
}

func TestDebouncedTimerStop(t *testing.T) {
	fired := make(chan Event, 8)
	timer := newDebouncedTimer("test", func(event Event) { fired <- event })

	timer.Reschedule(time.Millisecond * 30)
	timer.Stop()

	select {
	case <-fired:
		t.Fatal("stopped timer fired")
	case <-time.After(time.Millisecond * 120):
	}
}

func TestDebouncedTimerStaleFiring(t *testing.T) {
	fired := make(chan Event, 8)
	timer := newDebouncedTimer("test", func(event Event) { fired <- event })

	timer.Reschedule(time.Millisecond * 10)

	var first Event
	select {
	case first = <-fired:
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}
	require.True(t, timer.Matches(&first))

	// Once rearmed, the old firing must no longer be acted upon.
	timer.Reschedule(time.Millisecond * 10)
	assert.False(t, timer.Matches(&first))

	select {
	case second := <-fired:
		assert.True(t, timer.Matches(&second))
	case <-time.After(time.Second):
		t.Fatal("rearmed timer did not fire")
	}
}
