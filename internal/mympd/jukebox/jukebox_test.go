package jukebox_test

import (
	"testing"

	"github.com/cadenza-audio/cadenza/internal/mympd/jukebox"
)

func TestParseMode(t *testing.T) {
	cases := []struct {
		in   string
		want jukebox.Mode
	}{
		{"song", jukebox.ModeSong},
		{"album", jukebox.ModeAlbum},
		{"off", jukebox.ModeOff},
		{"", jukebox.ModeOff},
		{"garbage", jukebox.ModeOff},
	}
	for _, c := range cases {
		if got := jukebox.ParseMode(c.in); got != c.want {
			t.Errorf("ParseMode(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestRefillNothingMissing(t *testing.T) {
	// A full queue needs no MPD round trip at all, so a nil client is safe.
	added, err := jukebox.Refill(nil, nil, nil, jukebox.ModeSong, 5, 5)
	if err != nil || added != 0 {
		t.Errorf("Refill = %d, %v", added, err)
	}
	added, err = jukebox.Refill(nil, nil, nil, jukebox.ModeOff, 10, 0)
	if err != nil || added != 0 {
		t.Errorf("Refill(off) = %d, %v", added, err)
	}
}
