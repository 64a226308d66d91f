package tally

import (
	"strconv"
	"sync"
	"time"
)

// A debouncedTimer is a single-slot timer that posts a `timer.<name>` event
// into the owning client's loop when it fires. Rescheduling always cancels the
// previous pending firing first, so at most one firing is ever outstanding.
//
// A firing that was already queued as an event when the timer got rescheduled
// or stopped cannot be withdrawn from the mailbox, so every firing carries a
// generation number and the loop must check Matches before acting on it.
type debouncedTimer struct {
	name string
	emit func(event Event)

	mutex sync.Mutex
	timer *time.Timer
	gen   int
}

func newDebouncedTimer(name string, emit func(event Event)) *debouncedTimer {
	return &debouncedTimer{name: name, emit: emit}
}

// Reschedule cancels any pending firing and arms the timer to fire after d.
func (t *debouncedTimer) Reschedule(d time.Duration) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.timer != nil {
		t.timer.Stop()
	}

	t.gen++
	gen := t.gen

	t.timer = time.AfterFunc(d, func() {
		event := NewEvent("timer", t.name)
		event.Args = append(event.Args, strconv.Itoa(gen))

		t.emit(event)
	})
}

// Stop cancels any pending firing. Firings already in flight will no longer
// match.
func (t *debouncedTimer) Stop() {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}

	t.gen++
}

// Matches returns true if the event comes from the currently armed firing and
// not from one that was cancelled too late to be withdrawn.
func (t *debouncedTimer) Matches(event *Event) bool {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	return event.Arg(0) == strconv.Itoa(t.gen)
}
