// Package trigger keeps named subscriptions to MPD idle event classes and
// internal lifecycle events, scoped to a partition.
package trigger

import (
	"github.com/rs/zerolog/log"
)

// Event classes. MPD idle subsystems map 1:1; internal events cover the
// daemon lifecycle.
type Event string

const (
	EventDatabase       Event = "database"
	EventUpdate         Event = "update"
	EventStoredPlaylist Event = "stored_playlist"
	EventQueue          Event = "playlist"
	EventPlayer         Event = "player"
	EventMixer          Event = "mixer"
	EventOutput         Event = "output"
	EventOptions        Event = "options"
	EventPartition      Event = "partition"
	EventSticker        Event = "sticker"

	EventStart        Event = "mympd-start"
	EventStop         Event = "mympd-stop"
	EventConnected    Event = "mympd-connected"
	EventDisconnected Event = "mympd-disconnected"
	EventScrobble     Event = "mympd-scrobble"
)

// Handler runs on the idle-loop goroutine.
type Handler func(ev Event, partition string)

type entry struct {
	name      string
	event     Event
	partition string // empty = all partitions
	handler   Handler
}

// Registry holds the trigger list. Owned by the idle loop; no locking.
type Registry struct {
	entries []entry
}

// New returns an empty registry.
func New() *Registry { return &Registry{} }

// Subscribe registers handler for the event class, optionally scoped to one
// partition.
func (r *Registry) Subscribe(name string, ev Event, partition string, h Handler) {
	r.entries = append(r.entries, entry{name: name, event: ev, partition: partition, handler: h})
}

// Unsubscribe removes all triggers with the given name.
func (r *Registry) Unsubscribe(name string) {
	kept := r.entries[:0]
	for _, e := range r.entries {
		if e.name != name {
			kept = append(kept, e)
		}
	}
	r.entries = kept
}

// Fire invokes every handler whose event class matches, in subscription
// order.
func (r *Registry) Fire(ev Event, partition string) {
	for _, e := range r.entries {
		if e.event != ev {
			continue
		}
		if e.partition != "" && e.partition != partition {
			continue
		}
		log.Debug().Str("trigger", e.name).Str("event", string(ev)).Msg("Firing trigger")
		e.handler(ev, partition)
	}
}

// Len returns the number of registered triggers.
func (r *Registry) Len() int { return len(r.entries) }
