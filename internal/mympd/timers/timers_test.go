package timers_test

import (
	"testing"
	"time"

	"github.com/cadenza-audio/cadenza/internal/mympd/timers"
)

func TestTickFiresDueInIDOrder(t *testing.T) {
	w := timers.New()
	var fired []int
	handler := func(id int) timers.Handler {
		return func(any) { fired = append(fired, id) }
	}

	// Install out of id order; all already due.
	w.Replace(3, -time.Second, 0, handler(3), nil)
	w.Replace(1, -time.Second, 0, handler(1), nil)
	w.Replace(2, -time.Second, 0, handler(2), nil)

	if n := w.Tick(time.Now()); n != 3 {
		t.Fatalf("Tick fired %d, want 3", n)
	}
	for i, want := range []int{1, 2, 3} {
		if fired[i] != want {
			t.Errorf("fired[%d] = %d, want %d", i, fired[i], want)
		}
	}
}

func TestOneShotRemoved(t *testing.T) {
	w := timers.New()
	count := 0
	w.Replace(1, -time.Second, 0, func(any) { count++ }, nil)

	w.Tick(time.Now())
	w.Tick(time.Now())
	if count != 1 {
		t.Errorf("one-shot fired %d times", count)
	}
	if w.Len() != 0 {
		t.Errorf("one-shot entry still installed")
	}
}

func TestIntervalReschedules(t *testing.T) {
	w := timers.New()
	count := 0
	w.Replace(1, -time.Second, time.Hour, func(any) { count++ }, nil)

	now := time.Now()
	w.Tick(now)
	if count != 1 || w.Len() != 1 {
		t.Fatalf("after first tick: count=%d len=%d", count, w.Len())
	}

	// Not due again until now + period.
	w.Tick(now.Add(time.Minute))
	if count != 1 {
		t.Errorf("interval fired early")
	}
	w.Tick(now.Add(2 * time.Hour))
	if count != 2 {
		t.Errorf("interval did not fire after period, count=%d", count)
	}
}

func TestReplaceOverwrites(t *testing.T) {
	w := timers.New()
	var got string
	w.Replace(1, -time.Second, 0, func(any) { got = "old" }, nil)
	w.Replace(1, -time.Second, 0, func(any) { got = "new" }, nil)

	w.Tick(time.Now())
	if got != "new" {
		t.Errorf("handler = %q, want new", got)
	}
	if w.Len() != 0 {
		t.Errorf("Len = %d", w.Len())
	}
}

func TestNotDueNotFired(t *testing.T) {
	w := timers.New()
	fired := false
	w.Replace(1, time.Hour, 0, func(any) { fired = true }, nil)
	if n := w.Tick(time.Now()); n != 0 || fired {
		t.Errorf("future timer fired")
	}
}

func TestUserdata(t *testing.T) {
	w := timers.New()
	var got any
	w.Replace(1, -time.Second, 0, func(u any) { got = u }, "payload")
	w.Tick(time.Now())
	if got != "payload" {
		t.Errorf("userdata = %v", got)
	}
}

func TestRemoveAll(t *testing.T) {
	w := timers.New()
	w.Replace(1, time.Hour, 0, func(any) {}, nil)
	w.Replace(2, time.Hour, 0, func(any) {}, nil)
	w.RemoveAll()
	if w.Len() != 0 {
		t.Errorf("Len = %d after RemoveAll", w.Len())
	}
}
