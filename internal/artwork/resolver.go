// Package artwork resolves cover images through a cascading lookup:
// cover cache, filesystem beside the media file, embedded tag extraction,
// MPD albumart, placeholder. Stream uris resolve through the webradio
// metadata files instead.
package artwork

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/cadenza-audio/cadenza/internal/webradio"
)

// imageExtensions are probed for extension-less cover names and cache files.
var imageExtensions = []string{".jpg", ".jpeg", ".png", ".webp", ".avif"}

// placeholderSVG is served when every lookup step fails.
const placeholderSVG = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 64 64"><rect width="64" height="64" fill="#343a40"/><circle cx="32" cy="32" r="15" fill="#6c757d"/><circle cx="32" cy="32" r="4" fill="#343a40"/></svg>`

// streamPlaceholderSVG is the placeholder for radio streams.
const streamPlaceholderSVG = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 64 64"><rect width="64" height="64" fill="#343a40"/><path d="M16 44a16 16 0 0 1 32 0" stroke="#6c757d" stroke-width="4" fill="none"/><circle cx="32" cy="44" r="4" fill="#6c757d"/></svg>`

// Result is the outcome of a resolution attempt.
type Result struct {
	// Data holds the image bytes when served from memory.
	Data []byte
	// FilePath serves an on-disk image instead.
	FilePath string
	MimeType string
	// RedirectURL sends the client to the cover proxy for remote images.
	RedirectURL string
	// Async means the answer will come from MPD through the idle loop.
	Async bool
	// Placeholder marks a fallback image.
	Placeholder bool
}

// Resolver performs the cascade. All fields are immutable after creation.
type Resolver struct {
	Workdir    string
	MusicDir   string
	CoverNames []string
	ThumbNames []string
	KeepDays   int
}

// Resolve runs the lookup cascade for a music uri. mpdAlbumArt signals that
// the connected server supports the albumart command; when the cascade
// reaches that step the result is flagged Async and the caller forwards the
// request to the idle loop.
func (r *Resolver) Resolve(uri string, offset int, thumbnail, mpdAlbumArt bool) Result {
	if isStreamURI(uri) {
		return r.resolveStream(uri)
	}

	// 1. Cover cache.
	if path, mime := cacheLookup(r.Workdir, uri, offset, r.KeepDays); path != "" {
		return Result{FilePath: path, MimeType: mime}
	}

	// 2. Filesystem beside the media file.
	if r.MusicDir != "" {
		if path := r.findBesideFile(uri, thumbnail); path != "" {
			return Result{FilePath: path, MimeType: MimeForExtension(strings.ToLower(filepath.Ext(path)))}
		}
	}

	// 3. Embedded tag extraction.
	if r.MusicDir != "" && offset >= 0 {
		full := filepath.Join(r.MusicDir, uri)
		if data, err := ExtractEmbedded(full, offset); err == nil {
			cacheStore(r.Workdir, uri, offset, data)
			return Result{Data: data, MimeType: DetectMimeType(data)}
		} else {
			log.Debug().Str("uri", uri).Err(err).Msg("No embedded picture")
		}
	}

	// 4. MPD albumart, first image only.
	if offset == 0 && mpdAlbumArt {
		return Result{Async: true}
	}

	// 5. Placeholder.
	return Result{Data: []byte(placeholderSVG), MimeType: "image/svg+xml", Placeholder: true}
}

// resolveStream looks up imagery for a radio stream: a user-supplied thumb,
// then the #EXTIMG of the stream's webradio file.
func (r *Resolver) resolveStream(uri string) Result {
	safe := webradio.SanitizeName(uri)

	thumbDir := filepath.Join(r.Workdir, "pics", "thumbs")
	for _, ext := range imageExtensions {
		path := filepath.Join(thumbDir, safe+ext)
		if _, err := os.Stat(path); err == nil {
			return Result{FilePath: path, MimeType: MimeForExtension(ext)}
		}
	}

	if img := webradio.ExtImg(r.Workdir, safe); img != "" {
		if isStreamURI(img) {
			return Result{RedirectURL: img}
		}
		path := filepath.Join(thumbDir, img)
		if _, err := os.Stat(path); err == nil {
			return Result{FilePath: path, MimeType: MimeForExtension(strings.ToLower(filepath.Ext(path)))}
		}
	}

	return Result{Data: []byte(streamPlaceholderSVG), MimeType: "image/svg+xml", Placeholder: true}
}

// findBesideFile probes the configured cover names in the song's directory.
// Thumbnail requests try the thumbnail name list first. For "virtual cue"
// directories the cue element is stripped so siblings of the cue file are
// probed.
func (r *Resolver) findBesideFile(uri string, thumbnail bool) string {
	dir := filepath.Dir(uri)
	if strings.HasSuffix(strings.ToLower(filepath.Base(dir)), ".cue") {
		dir = filepath.Dir(dir)
	}
	absDir := filepath.Join(r.MusicDir, dir)

	names := r.CoverNames
	if thumbnail {
		names = append(append([]string{}, r.ThumbNames...), r.CoverNames...)
	}
	for _, name := range names {
		if filepath.Ext(name) != "" {
			path := filepath.Join(absDir, name)
			if _, err := os.Stat(path); err == nil {
				return path
			}
			continue
		}
		for _, ext := range imageExtensions {
			path := filepath.Join(absDir, name+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// LookupPic probes dir for stem plus any known image extension and returns
// the path and mime type, or empty strings.
func LookupPic(dir, stem string) (string, string) {
	for _, ext := range imageExtensions {
		path := filepath.Join(dir, stem+ext)
		if _, err := os.Stat(path); err == nil {
			return path, MimeForExtension(ext)
		}
	}
	return "", ""
}

// Placeholder returns the generic fallback image.
func Placeholder() Result {
	return Result{Data: []byte(placeholderSVG), MimeType: "image/svg+xml", Placeholder: true}
}

func isStreamURI(uri string) bool {
	return strings.Contains(uri, "://")
}
