package trigger_test

import (
	"testing"

	"github.com/cadenza-audio/cadenza/internal/mympd/trigger"
)

func TestFireMatchesEvent(t *testing.T) {
	r := trigger.New()
	var fired []string
	r.Subscribe("on-player", trigger.EventPlayer, "", func(ev trigger.Event, p string) {
		fired = append(fired, "player:"+p)
	})
	r.Subscribe("on-mixer", trigger.EventMixer, "", func(ev trigger.Event, p string) {
		fired = append(fired, "mixer:"+p)
	})

	r.Fire(trigger.EventPlayer, "default")
	if len(fired) != 1 || fired[0] != "player:default" {
		t.Errorf("fired = %v", fired)
	}
}

func TestPartitionScope(t *testing.T) {
	r := trigger.New()
	count := 0
	r.Subscribe("scoped", trigger.EventQueue, "default", func(trigger.Event, string) { count++ })

	r.Fire(trigger.EventQueue, "other")
	if count != 0 {
		t.Error("partition-scoped trigger fired for other partition")
	}
	r.Fire(trigger.EventQueue, "default")
	if count != 1 {
		t.Errorf("count = %d", count)
	}
}

func TestSubscriptionOrder(t *testing.T) {
	r := trigger.New()
	var order []int
	r.Subscribe("first", trigger.EventScrobble, "", func(trigger.Event, string) { order = append(order, 1) })
	r.Subscribe("second", trigger.EventScrobble, "", func(trigger.Event, string) { order = append(order, 2) })

	r.Fire(trigger.EventScrobble, "default")
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Errorf("order = %v", order)
	}
}

func TestUnsubscribe(t *testing.T) {
	r := trigger.New()
	count := 0
	r.Subscribe("gone", trigger.EventConnected, "", func(trigger.Event, string) { count++ })
	r.Subscribe("gone", trigger.EventDisconnected, "", func(trigger.Event, string) { count++ })
	r.Subscribe("kept", trigger.EventConnected, "", func(trigger.Event, string) { count += 10 })

	r.Unsubscribe("gone")
	if r.Len() != 1 {
		t.Fatalf("Len = %d after Unsubscribe", r.Len())
	}
	r.Fire(trigger.EventConnected, "default")
	if count != 10 {
		t.Errorf("count = %d", count)
	}
}
