// Package timers implements the timer wheel driven by the idle loop. Entries
// are keyed by stable ids; installing an id that already exists replaces the
// old entry. The wheel never uses OS timers: the loop calls Tick on every
// wake-up.
package timers

import (
	"sort"
	"time"
)

// Handler runs on the idle-loop goroutine and must not block.
type Handler func(userdata any)

// Well-known timer ids.
const (
	IDCacheRebuild    = 1
	IDSmartplsUpdate  = 2
	IDCoverCachePrune = 3
	IDWebradioDBSync  = 4
)

type entry struct {
	id       int
	fireAt   time.Time
	period   time.Duration // 0 = one-shot
	handler  Handler
	userdata any
}

// Wheel is a replace-by-id timer table. Not safe for concurrent use; it is
// owned by the idle loop.
type Wheel struct {
	entries map[int]*entry
}

// New returns an empty wheel.
func New() *Wheel {
	return &Wheel{entries: make(map[int]*entry)}
}

// Replace installs or overwrites the timer with the given id. A zero period
// makes it one-shot.
func (w *Wheel) Replace(id int, timeout, period time.Duration, h Handler, userdata any) {
	w.entries[id] = &entry{
		id:       id,
		fireAt:   time.Now().Add(timeout),
		period:   period,
		handler:  h,
		userdata: userdata,
	}
}

// Remove clears the timer with the given id.
func (w *Wheel) Remove(id int) {
	delete(w.entries, id)
}

// RemoveAll clears every timer. Used at shutdown.
func (w *Wheel) RemoveAll() {
	w.entries = make(map[int]*entry)
}

// Len returns the number of installed timers.
func (w *Wheel) Len() int { return len(w.entries) }

// Tick fires every entry whose deadline is at or before now, in ascending id
// order. One-shot entries are removed, interval entries rescheduled to
// now + period.
func (w *Wheel) Tick(now time.Time) int {
	var due []*entry
	for _, e := range w.entries {
		if !e.fireAt.After(now) {
			due = append(due, e)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].id < due[j].id })

	for _, e := range due {
		if e.period == 0 {
			delete(w.entries, e.id)
		} else {
			e.fireAt = now.Add(e.period)
		}
		e.handler(e.userdata)
	}
	return len(due)
}
