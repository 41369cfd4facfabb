// Package version identifies the running daemon build.
package version

import (
	"fmt"
	"runtime/debug"
)

const Name = "cadenza"

// Set via -ldflags "-X .../internal/version.Version=... -X .../internal/version.Commit=...".
// When Commit is left empty it falls back to the VCS revision the Go
// toolchain stamps into the binary.
var (
	Version = "0.1.0"
	Commit  = ""
)

// Banner returns the one-line build identifier logged at startup and
// printed by --version.
func Banner() string {
	c := commit()
	if c == "" {
		return fmt.Sprintf("%s v%s", Name, Version)
	}
	if len(c) > 7 {
		c = c[:7]
	}
	return fmt.Sprintf("%s v%s (%s)", Name, Version, c)
}

func commit() string {
	if Commit != "" {
		return Commit
	}
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range bi.Settings {
		if s.Key == "vcs.revision" {
			return s.Value
		}
	}
	return ""
}
