package lastplayed_test

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cadenza-audio/cadenza/internal/mympd/lastplayed"
)

func logPath(workdir string) string {
	return filepath.Join(workdir, "state", "last_played")
}

func newStore(t *testing.T, keep int) (*lastplayed.Store, string) {
	t.Helper()
	workdir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(workdir, "state"), 0o755); err != nil {
		t.Fatal(err)
	}
	return lastplayed.New(workdir, keep), workdir
}

func TestAddAndList(t *testing.T) {
	s, _ := newStore(t, 100)
	base := time.Unix(1700000000, 0)
	s.Add("a.flac", base)
	s.Add("b.flac", base.Add(time.Minute))
	s.Add("c.flac", base.Add(2*time.Minute))

	t.Run("newest first", func(t *testing.T) {
		entries := s.List(0, 0)
		if len(entries) != 3 {
			t.Fatalf("len = %d", len(entries))
		}
		if entries[0].URI != "c.flac" || entries[2].URI != "a.flac" {
			t.Errorf("order wrong: %v", entries)
		}
	})

	t.Run("offset and limit", func(t *testing.T) {
		entries := s.List(1, 1)
		if len(entries) != 1 || entries[0].URI != "b.flac" {
			t.Errorf("page = %v", entries)
		}
	})
}

func TestFlushWritesLogFormat(t *testing.T) {
	s, workdir := newStore(t, 100)
	at := time.Unix(1700000000, 0)
	s.Add("some dir/song.flac", at)
	s.Flush()

	data, err := os.ReadFile(logPath(workdir))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	want := fmt.Sprintf("%d::some dir/song.flac\n", at.Unix())
	if string(data) != want {
		t.Errorf("log = %q, want %q", data, want)
	}
}

func TestAutoFlushThreshold(t *testing.T) {
	s, workdir := newStore(t, 100)
	base := time.Unix(1700000000, 0)
	for i := 0; i < 10; i++ {
		s.Add(fmt.Sprintf("song-%d.flac", i), base.Add(time.Duration(i)*time.Minute))
	}
	// Ten pending entries cross the threshold and hit the disk without an
	// explicit Flush.
	data, err := os.ReadFile(logPath(workdir))
	if err != nil {
		t.Fatalf("log not flushed: %v", err)
	}
	if lines := strings.Count(string(data), "\n"); lines != 10 {
		t.Errorf("flushed %d lines, want 10", lines)
	}
}

func TestCorruptLinesSkipped(t *testing.T) {
	s, workdir := newStore(t, 100)
	content := "1700000000::good.flac\n" +
		"garbage line\n" +
		"notanumber::bad-ts.flac\n" +
		"1700000060::also-good.flac\n"
	if err := os.WriteFile(logPath(workdir), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	entries := s.List(0, 0)
	if len(entries) != 2 {
		t.Fatalf("len = %d, want 2 (corrupt lines skipped)", len(entries))
	}
	if entries[0].URI != "also-good.flac" {
		t.Errorf("entries = %v", entries)
	}
}

func TestCompaction(t *testing.T) {
	keep := 5
	s, workdir := newStore(t, keep)
	base := time.Unix(1700000000, 0)

	// Push enough entries through Flush to force a compaction.
	for i := 0; i < 3; i++ {
		for j := 0; j < 10; j++ {
			s.Add(fmt.Sprintf("song-%d-%d.flac", i, j), base.Add(time.Duration(i*10+j)*time.Minute))
		}
		s.Flush()
	}

	data, err := os.ReadFile(logPath(workdir))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Count(string(data), "\n")
	if lines > keep {
		t.Errorf("log holds %d lines after compaction, keep count is %d", lines, keep)
	}
	if !strings.Contains(string(data), "song-2-9.flac") {
		t.Error("compaction dropped the newest entry")
	}
}

func TestRecentURIs(t *testing.T) {
	s, _ := newStore(t, 100)
	base := time.Unix(1700000000, 0)
	s.Add("a.flac", base)
	s.Add("b.flac", base.Add(time.Minute))

	set := s.RecentURIs(1)
	if _, ok := set["b.flac"]; !ok || len(set) != 1 {
		t.Errorf("RecentURIs = %v", set)
	}
}
