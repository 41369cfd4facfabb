package idle_test

import (
	"testing"

	"github.com/cadenza-audio/cadenza/internal/mympd/idle"
	"github.com/cadenza-audio/cadenza/internal/mympd/jukebox"
)

func TestLoadPartitionDefaults(t *testing.T) {
	p := idle.LoadPartition(t.TempDir(), "default")
	if p.JukeboxMode != jukebox.ModeOff {
		t.Errorf("JukeboxMode = %q", p.JukeboxMode)
	}
	if p.JukeboxTarget != 1 {
		t.Errorf("JukeboxTarget = %d", p.JukeboxTarget)
	}
	if p.AutoPlay {
		t.Error("AutoPlay default must be false")
	}
}

func TestPartitionPersistence(t *testing.T) {
	workdir := t.TempDir()

	p := idle.LoadPartition(workdir, "default")
	p.SetJukebox(jukebox.ModeAlbum, 5)
	p.SetAutoPlay(true)

	got := idle.LoadPartition(workdir, "default")
	if got.JukeboxMode != jukebox.ModeAlbum || got.JukeboxTarget != 5 {
		t.Errorf("jukebox = %q/%d", got.JukeboxMode, got.JukeboxTarget)
	}
	if !got.AutoPlay {
		t.Error("AutoPlay not persisted")
	}
}

func TestSetJukeboxTargetFloor(t *testing.T) {
	p := idle.LoadPartition(t.TempDir(), "default")
	p.SetJukebox(jukebox.ModeSong, 0)
	if p.JukeboxTarget != 1 {
		t.Errorf("JukeboxTarget = %d, want floor of 1", p.JukeboxTarget)
	}
}

func TestPartitionIsolation(t *testing.T) {
	workdir := t.TempDir()

	idle.LoadPartition(workdir, "default").SetAutoPlay(true)

	other := idle.LoadPartition(workdir, "kitchen")
	if other.AutoPlay {
		t.Error("partition state leaked across partitions")
	}
}
