package artwork

import (
	"crypto/md5"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/renameio/v2"
	"github.com/rs/zerolog/log"
)

// coverCacheDir resolves the on-disk cover cache.
func coverCacheDir(workdir string) string {
	return filepath.Join(workdir, "cache", "covercache")
}

// cacheKey hashes a song uri for use as a cache filename stem.
func cacheKey(uri string) string {
	return fmt.Sprintf("%x", md5.Sum([]byte(uri)))
}

// cacheLookup returns the cached image for (uri, offset) if a file exists
// and is younger than keepDays.
func cacheLookup(workdir, uri string, offset, keepDays int) (string, string) {
	stem := filepath.Join(coverCacheDir(workdir), fmt.Sprintf("%s-%d", cacheKey(uri), offset))
	for _, ext := range imageExtensions {
		path := stem + ext
		fi, err := os.Stat(path)
		if err != nil {
			continue
		}
		if keepDays > 0 && time.Since(fi.ModTime()) > time.Duration(keepDays)*24*time.Hour {
			continue
		}
		return path, MimeForExtension(ext)
	}
	return "", ""
}

// cacheStore writes extracted image bytes to the cover cache. Failures are
// logged and swallowed: the cache is an optimization.
func cacheStore(workdir, uri string, offset int, data []byte) string {
	mime := DetectMimeType(data)
	path := filepath.Join(coverCacheDir(workdir),
		fmt.Sprintf("%s-%d%s", cacheKey(uri), offset, ExtensionForMime(mime)))
	if err := os.MkdirAll(coverCacheDir(workdir), 0o755); err != nil {
		log.Warn().Err(err).Msg("Cannot create cover cache directory")
		return ""
	}
	if err := renameio.WriteFile(path, data, 0o644); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("Cannot write cover cache file")
		return ""
	}
	return path
}

// StoreCover caches image bytes fetched for (uri, offset) and returns the
// cache path, or "" on failure.
func StoreCover(workdir, uri string, offset int, data []byte) string {
	return cacheStore(workdir, uri, offset, data)
}

// CachedCover returns the cached image path and mime type for (uri, offset),
// or empty strings on a miss. Entries older than keepDays are ignored.
func CachedCover(workdir, uri string, offset, keepDays int) (string, string) {
	return cacheLookup(workdir, uri, offset, keepDays)
}

// PruneCoverCache unlinks cache files older than keepDays and returns the
// number removed. Driven by a timer, never by request handling.
func PruneCoverCache(workdir string, keepDays int) int {
	if keepDays <= 0 {
		return 0
	}
	dir := coverCacheDir(workdir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Msg("Cannot read cover cache directory")
		}
		return 0
	}
	cutoff := time.Now().Add(-time.Duration(keepDays) * 24 * time.Hour)
	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		if fi.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(dir, e.Name())); err == nil {
				removed++
			}
		}
	}
	if removed > 0 {
		log.Info().Int("removed", removed).Msg("Pruned cover cache")
	}
	return removed
}
