// Package stickers queues sticker mutations recorded during idle handling
// and drains them between idle reentries over the live MPD connection.
package stickers

import (
	"strconv"
	"time"

	"github.com/fhs/gompd/v2/mpd"
	"github.com/rs/zerolog/log"
)

// Kind selects the sticker mutation.
type Kind int

const (
	PlayCountInc Kind = iota
	SkipCountInc
	LastPlayedStamp
	LastSkippedStamp
)

// Job is one pending sticker mutation.
type Job struct {
	URI  string
	Kind Kind
	At   time.Time
}

// Backlog is the pending job list. Owned by the idle loop; no locking.
type Backlog struct {
	jobs []Job
}

// New returns an empty backlog.
func New() *Backlog { return &Backlog{} }

// Enqueue appends a job.
func (b *Backlog) Enqueue(j Job) {
	b.jobs = append(b.jobs, j)
}

// Len returns the pending count.
func (b *Backlog) Len() int { return len(b.jobs) }

// Drain applies all pending jobs over client. Jobs that fail with a server
// refusal are dropped; a transport error stops the drain and keeps the rest
// queued for the next reentry.
func (b *Backlog) Drain(client *mpd.Client) error {
	for len(b.jobs) > 0 {
		j := b.jobs[0]
		if err := apply(client, j); err != nil {
			if _, ok := err.(mpd.Error); ok {
				log.Warn().Str("uri", j.URI).Err(err).Msg("Sticker command refused, dropping job")
				b.jobs = b.jobs[1:]
				continue
			}
			return err
		}
		b.jobs = b.jobs[1:]
	}
	return nil
}

func apply(client *mpd.Client, j Job) error {
	switch j.Kind {
	case PlayCountInc:
		return increment(client, j.URI, "playCount")
	case SkipCountInc:
		return increment(client, j.URI, "skipCount")
	case LastPlayedStamp:
		return client.StickerSet(j.URI, "lastPlayed", strconv.FormatInt(j.At.Unix(), 10))
	case LastSkippedStamp:
		return client.StickerSet(j.URI, "lastSkipped", strconv.FormatInt(j.At.Unix(), 10))
	}
	return nil
}

// increment reads the current numeric sticker value and writes value+1.
// A missing sticker counts as zero.
func increment(client *mpd.Client, uri, name string) error {
	count := 0
	if st, err := client.StickerGet(uri, name); err == nil && st != nil {
		if n, perr := strconv.Atoi(st.Value); perr == nil {
			count = n
		}
	} else if err != nil {
		if _, ok := err.(mpd.Error); !ok {
			return err
		}
	}
	return client.StickerSet(uri, name, strconv.Itoa(count+1))
}
