// Package webradio resolves stream metadata from the per-stream m3u files
// under workdir/webradios/ and mirrors the remote webradio catalog.
package webradio

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/renameio/v2"
	"github.com/rs/zerolog/log"
)

// refreshAfter is the mirror max age.
const refreshAfter = 24 * time.Hour

// SanitizeName maps a stream uri to a safe filename stem.
func SanitizeName(uri string) string {
	var b strings.Builder
	for _, r := range uri {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// ExtImg reads the stream's m3u file and returns the #EXTIMG value, or "".
func ExtImg(workdir, safeName string) string {
	path := filepath.Join(workdir, "webradios", safeName+".m3u")
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if v, ok := strings.CutPrefix(line, "#EXTIMG:"); ok {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// DBPath returns the mirror file location.
func DBPath(workdir string) string {
	return filepath.Join(workdir, "cache", "webradiodb", "webradiodb-combined.min.json")
}

// SyncDB refreshes the catalog mirror when it is missing or older than 24
// hours. The download goes through an atomic rename so readers never see a
// partial file.
func SyncDB(ctx context.Context, workdir, url string) error {
	if url == "" {
		return nil
	}
	path := DBPath(workdir)
	if fi, err := os.Stat(path); err == nil && time.Since(fi.ModTime()) < refreshAfter {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build webradiodb request: %w", err)
	}
	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch webradiodb: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch webradiodb: unexpected status %s", resp.Status)
	}

	pending, err := renameio.NewPendingFile(path)
	if err != nil {
		return fmt.Errorf("create pending webradiodb file: %w", err)
	}
	defer pending.Cleanup()

	n, err := io.Copy(pending, resp.Body)
	if err != nil {
		return fmt.Errorf("download webradiodb: %w", err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("replace webradiodb mirror: %w", err)
	}
	log.Info().Int64("bytes", n).Msg("Refreshed webradiodb mirror")
	return nil
}
