package version_test

import (
	"strings"
	"testing"

	"github.com/cadenza-audio/cadenza/internal/version"
)

func TestBanner(t *testing.T) {
	t.Run("starts with name and version", func(t *testing.T) {
		want := "cadenza v" + version.Version
		if got := version.Banner(); !strings.HasPrefix(got, want) {
			t.Errorf("Banner() = %q, want prefix %q", got, want)
		}
	})

	t.Run("ldflags commit is shortened", func(t *testing.T) {
		old := version.Commit
		version.Commit = "0123456789abcdef"
		defer func() { version.Commit = old }()

		got := version.Banner()
		if !strings.HasSuffix(got, "(0123456)") {
			t.Errorf("Banner() = %q, want 7-char commit suffix", got)
		}
	})
}
