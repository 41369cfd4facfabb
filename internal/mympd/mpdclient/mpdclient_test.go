package mpdclient_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/fhs/gompd/v2/mpd"

	"github.com/cadenza-audio/cadenza/internal/mympd/mpdclient"
)

func TestFailureBackoff(t *testing.T) {
	c := mpdclient.New("localhost", 6600, "")

	t.Run("grows by two seconds per failure", func(t *testing.T) {
		c.FailureBackoff()
		if c.ReconnectInterval != 2*time.Second {
			t.Errorf("interval = %v", c.ReconnectInterval)
		}
		c.FailureBackoff()
		if c.ReconnectInterval != 4*time.Second {
			t.Errorf("interval = %v", c.ReconnectInterval)
		}
		if c.State != mpdclient.StateWait {
			t.Errorf("state = %v", c.State)
		}
	})

	t.Run("caps at twenty seconds", func(t *testing.T) {
		for i := 0; i < 20; i++ {
			c.FailureBackoff()
		}
		if c.ReconnectInterval != 20*time.Second {
			t.Errorf("interval = %v, want cap", c.ReconnectInterval)
		}
	})

	t.Run("deadline is armed", func(t *testing.T) {
		if !c.ReconnectAt.After(time.Now()) {
			t.Error("ReconnectAt not in the future")
		}
	})

	t.Run("reset clears counters", func(t *testing.T) {
		c.ResetBackoff()
		if c.ReconnectInterval != 0 || !c.ReconnectAt.IsZero() {
			t.Errorf("after reset: %v %v", c.ReconnectInterval, c.ReconnectAt)
		}
	})
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want mpdclient.ErrKind
	}{
		{"nil", nil, mpdclient.ErrKindNone},
		{"server ack", mpd.Error{Code: mpd.ErrorNoExist, Message: "No such song"}, mpdclient.ErrKindACK},
		{"wrapped ack", fmt.Errorf("add: %w", mpd.Error{Code: 2}), mpdclient.ErrKindACK},
		{"transport", errors.New("broken pipe"), mpdclient.ErrKindFatal},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := mpdclient.Classify(c.err); got != c.want {
				t.Errorf("Classify = %v, want %v", got, c.want)
			}
		})
	}
}

func TestConnectedInvariant(t *testing.T) {
	c := mpdclient.New("localhost", 6600, "")
	if c.Connected() {
		t.Error("fresh Conn must not report connected")
	}
	// State alone is not enough; a live client handle is required too.
	c.State = mpdclient.StateConnected
	if c.Connected() {
		t.Error("Connected state without client handle must not report connected")
	}
}

func TestAddr(t *testing.T) {
	c := mpdclient.New("music.local", 6601, "")
	if got := c.Addr(); got != "music.local:6601" {
		t.Errorf("Addr = %q", got)
	}
	c.SetAddress("other.local", 6600, "pw")
	if got := c.Addr(); got != "other.local:6600" {
		t.Errorf("Addr after SetAddress = %q", got)
	}
}

func TestEscapeFilter(t *testing.T) {
	cases := []struct{ in, want string }{
		{"plain", "plain"},
		{"It's", `It\'s`},
		{`back\slash`, `back\\slash`},
		{`both\'s`, `both\\\'s`},
	}
	for _, c := range cases {
		if got := mpdclient.EscapeFilter(c.in); got != c.want {
			t.Errorf("EscapeFilter(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestStateString(t *testing.T) {
	if mpdclient.StateConnected.String() != "connected" {
		t.Error("StateConnected.String()")
	}
	if mpdclient.StateDisconnectInstant.String() != "disconnect_instant" {
		t.Error("StateDisconnectInstant.String()")
	}
}
