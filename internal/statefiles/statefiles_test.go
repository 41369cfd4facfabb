package statefiles_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cadenza-audio/cadenza/internal/statefiles"
)

func TestStringRoundtrip(t *testing.T) {
	workdir := t.TempDir()
	if err := statefiles.Write(workdir, "default", "jukebox_mode", "album"); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if got := statefiles.ReadString(workdir, "default", "jukebox_mode", "off"); got != "album" {
		t.Errorf("ReadString = %q", got)
	}
}

func TestDefaults(t *testing.T) {
	workdir := t.TempDir()
	if got := statefiles.ReadString(workdir, "default", "missing", "fallback"); got != "fallback" {
		t.Errorf("ReadString default = %q", got)
	}
	if got := statefiles.ReadInt(workdir, "default", "missing", 42); got != 42 {
		t.Errorf("ReadInt default = %d", got)
	}
	if got := statefiles.ReadBool(workdir, "default", "missing", true); !got {
		t.Error("ReadBool default = false")
	}
}

func TestIntRoundtrip(t *testing.T) {
	workdir := t.TempDir()
	if err := statefiles.WriteInt(workdir, "default", "jukebox_target", 7); err != nil {
		t.Fatalf("WriteInt: %v", err)
	}
	if got := statefiles.ReadInt(workdir, "default", "jukebox_target", 1); got != 7 {
		t.Errorf("ReadInt = %d", got)
	}
}

func TestCorruptIntFallsBack(t *testing.T) {
	workdir := t.TempDir()
	dir := statefiles.Dir(workdir, "default")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "broken"), []byte("not a number\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := statefiles.ReadInt(workdir, "default", "broken", 9); got != 9 {
		t.Errorf("ReadInt on corrupt file = %d, want default 9", got)
	}
}

func TestBoolRoundtrip(t *testing.T) {
	workdir := t.TempDir()
	for _, v := range []bool{true, false} {
		if err := statefiles.WriteBool(workdir, "default", "auto_play", v); err != nil {
			t.Fatalf("WriteBool: %v", err)
		}
		if got := statefiles.ReadBool(workdir, "default", "auto_play", !v); got != v {
			t.Errorf("ReadBool = %v, want %v", got, v)
		}
	}
}

func TestPartitionsIsolated(t *testing.T) {
	workdir := t.TempDir()
	statefiles.Write(workdir, "default", "value", "a")
	statefiles.Write(workdir, "second", "value", "b")
	if got := statefiles.ReadString(workdir, "default", "value", ""); got != "a" {
		t.Errorf("default partition = %q", got)
	}
	if got := statefiles.ReadString(workdir, "second", "value", ""); got != "b" {
		t.Errorf("second partition = %q", got)
	}
}
