package idle

import (
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/cadenza-audio/cadenza/internal/jsonrpc"
	"github.com/cadenza-audio/cadenza/internal/mympd/jukebox"
	"github.com/cadenza-audio/cadenza/internal/mympd/mpdclient"
	"github.com/cadenza-audio/cadenza/internal/mympd/stickers"
	"github.com/cadenza-audio/cadenza/internal/mympd/timers"
	"github.com/cadenza-audio/cadenza/internal/mympd/trigger"
)

// Idle subsystem bits, processed in ascending order per iteration.
const (
	bitDatabase uint32 = 1 << iota
	bitUpdate
	bitStoredPlaylist
	bitQueue
	bitPlayer
	bitMixer
	bitOutput
	bitOptions
	bitPartition
	bitSticker
)

// eventBit maps a watcher subsystem name to its bit. Unknown subsystems are
// ignored.
func eventBit(subsystem string) uint32 {
	switch subsystem {
	case "database":
		return bitDatabase
	case "update":
		return bitUpdate
	case "stored_playlist":
		return bitStoredPlaylist
	case "playlist":
		return bitQueue
	case "player":
		return bitPlayer
	case "mixer":
		return bitMixer
	case "output":
		return bitOutput
	case "options":
		return bitOptions
	case "partition":
		return bitPartition
	case "sticker":
		return bitSticker
	}
	log.Debug().Str("subsystem", subsystem).Msg("Ignoring unknown idle subsystem")
	return 0
}

var bitTriggers = []struct {
	bit uint32
	ev  trigger.Event
}{
	{bitDatabase, trigger.EventDatabase},
	{bitUpdate, trigger.EventUpdate},
	{bitStoredPlaylist, trigger.EventStoredPlaylist},
	{bitQueue, trigger.EventQueue},
	{bitPlayer, trigger.EventPlayer},
	{bitMixer, trigger.EventMixer},
	{bitOutput, trigger.EventOutput},
	{bitOptions, trigger.EventOptions},
	{bitPartition, trigger.EventPartition},
	{bitSticker, trigger.EventSticker},
}

// handleIdleEvents services one accumulated event bitmask. Each bit is
// handled at most once no matter how often the subsystem fired while the
// loop was busy.
func (l *Loop) handleIdleEvents(events uint32) {
	if events&bitDatabase != 0 {
		// The music database changed; rebuild the album cache shortly, giving
		// a burst of changes time to settle.
		l.wheel.Replace(timers.IDCacheRebuild, 10*time.Second, 0, l.timerCacheRebuild, nil)
		l.notifier.Notify(l.part.Name, jsonrpc.Notification("update_database", nil))
	}
	if events&bitUpdate != 0 {
		l.notifyUpdateJob()
	}
	if events&bitStoredPlaylist != 0 {
		l.notifier.Notify(l.part.Name, jsonrpc.Notification("update_stored_playlist", nil))
	}
	if events&bitQueue != 0 {
		l.handleQueueEvent()
	}
	if events&bitPlayer != 0 {
		l.handlePlayerEvent()
	}
	if events&bitMixer != 0 {
		l.notifyVolume()
	}
	if events&bitOutput != 0 {
		l.notifier.Notify(l.part.Name, jsonrpc.Notification("update_outputs", nil))
	}
	if events&bitOptions != 0 {
		if err := l.refreshStatus(); err != nil {
			l.fail(err)
			return
		}
		l.notifier.Notify(l.part.Name, jsonrpc.Notification("update_options", nil))
	}

	for _, bt := range bitTriggers {
		if events&bt.bit != 0 {
			l.triggers.Fire(bt.ev, l.part.Name)
		}
	}
}

// notifyUpdateJob reports database update progress: a running job carries its
// id, a finished one does not.
func (l *Loop) notifyUpdateJob() {
	status, err := l.conn.Client.Status()
	if err != nil {
		l.fail(err)
		return
	}
	l.notifier.Notify(l.part.Name, updateJobNotification(status["updating_db"]))
}

// updateJobNotification builds the updatedb notification for the given
// updating_db status value ("" when no job is running).
func updateJobNotification(job string) []byte {
	params := map[string]any{"state": "finished"}
	if job != "" {
		params["state"] = "started"
		params["jobId"], _ = strconv.Atoi(job)
	}
	return jsonrpc.Notification("updatedb", params)
}

// handleQueueEvent refreshes queue bookkeeping, discarding events from other
// partitions (same version), and triggers jukebox refill and autoplay.
func (l *Loop) handleQueueEvent() {
	oldVersion := l.conn.QueueVersion
	if err := l.refreshStatus(); err != nil {
		l.fail(err)
		return
	}
	if l.conn.QueueVersion == oldVersion {
		// Change happened in another partition's queue.
		return
	}
	l.notifier.Notify(l.part.Name, jsonrpc.Notification("update_queue", map[string]any{
		"version": l.conn.QueueVersion,
		"length":  l.conn.QueueLength,
	}))

	if l.part.JukeboxMode != jukebox.ModeOff && l.conn.QueueLength <= l.part.JukeboxTarget {
		l.jukeboxRefill()
	}
	if l.part.AutoPlay && l.conn.QueueLength > 0 && l.conn.PlayState != "play" {
		if err := l.conn.Client.Play(-1); err != nil {
			if mpdclient.Classify(err) == mpdclient.ErrKindFatal {
				l.fail(err)
			}
		}
	}
}

// handlePlayerEvent refreshes playback bookkeeping, records skips and
// notifies clients of the new player state.
func (l *Loop) handlePlayerEvent() {
	if err := l.refreshStatus(); err != nil {
		l.fail(err)
		return
	}
	l.notifier.Notify(l.part.Name, jsonrpc.Notification("update_state", map[string]any{
		"state":  l.conn.PlayState,
		"songId": l.conn.SongID,
	}))
}

func (l *Loop) notifyVolume() {
	status, err := l.conn.Client.Status()
	if err != nil {
		l.fail(err)
		return
	}
	vol, _ := strconv.Atoi(status["volume"])
	l.notifier.Notify(l.part.Name, jsonrpc.Notification("update_volume", map[string]any{
		"volume": vol,
	}))
}

// refreshStatus reads the MPD status and maintains the playback bookkeeping:
// queue version and length, play state, and the scoring window of the
// current song.
func (l *Loop) refreshStatus() error {
	status, err := l.conn.Client.Status()
	if err != nil {
		return err
	}
	c := l.conn
	now := time.Now()

	c.QueueVersion, _ = strconv.Atoi(status["playlist"])
	c.QueueLength, _ = strconv.Atoi(status["playlistlength"])
	c.PlayState = status["state"]
	if xfade, err := strconv.Atoi(status["xfade"]); err == nil {
		c.Crossfade = time.Duration(xfade) * time.Second
	} else {
		c.Crossfade = 0
	}

	songID := -1
	if v := status["songid"]; v != "" {
		songID, _ = strconv.Atoi(v)
	}
	if songID == c.SongID {
		return nil
	}

	// Song changed: an unscored song that ran past the noise guard but never
	// reached its played-at mark counts as skipped.
	if c.SongID >= 0 && !c.Scored && c.SongURI != "" &&
		now.Before(c.SetSongPlayedAt) && now.Sub(c.SongStart) > skipGuard {
		l.recordSkip(c.SongURI, now)
	}

	c.LastSongID = c.SongID
	c.LastSongURI = c.SongURI
	c.SongID = songID
	c.SongURI = ""
	c.SongStart = time.Time{}
	c.SongDuration = 0
	c.SetSongPlayedAt = time.Time{}
	c.Scored = false
	if songID < 0 {
		return nil
	}

	song, err := c.Client.CurrentSong()
	if err != nil {
		return err
	}
	c.SongURI = song["file"]

	elapsed, _ := strconv.ParseFloat(status["elapsed"], 64)
	duration, _ := strconv.ParseFloat(status["duration"], 64)
	c.SongStart = now.Add(-time.Duration(elapsed * float64(time.Second)))
	c.SongDuration = time.Duration(duration * float64(time.Second))
	if c.SongDuration > 0 {
		mark := c.SongDuration / 2
		if mark > scoreCap {
			mark = scoreCap
		}
		c.SetSongPlayedAt = c.SongStart.Add(mark)
	}
	return nil
}

// recordSkip queues the skip stickers for uri.
func (l *Loop) recordSkip(uri string, at time.Time) {
	if !l.conn.Feat.Stickers {
		return
	}
	log.Debug().Str("uri", uri).Msg("Song skipped")
	l.backlog.Enqueue(stickers.Job{URI: uri, Kind: stickers.SkipCountInc, At: at})
	l.backlog.Enqueue(stickers.Job{URI: uri, Kind: stickers.LastSkippedStamp, At: at})
}

// checkScoring marks the current song as played once playback crosses the
// played-at mark: stickers, the last-played list and the scrobble trigger.
func (l *Loop) checkScoring(now time.Time) {
	c := l.conn
	if c.Scored || c.PlayState != "play" || c.SongID < 0 || c.SongURI == "" {
		return
	}
	if c.SetSongPlayedAt.IsZero() || now.Before(c.SetSongPlayedAt) {
		return
	}
	c.Scored = true

	if c.Feat.Stickers {
		l.backlog.Enqueue(stickers.Job{URI: c.SongURI, Kind: stickers.PlayCountInc, At: now})
		l.backlog.Enqueue(stickers.Job{URI: c.SongURI, Kind: stickers.LastPlayedStamp, At: now})
	}
	l.lastPlayed.Add(c.SongURI, now)
	l.notifier.Notify(l.part.Name, jsonrpc.Notification("update_last_played", nil))
	l.triggers.Fire(trigger.EventScrobble, l.part.Name)
	log.Debug().Str("uri", c.SongURI).Msg("Song scored as played")
}

// checkJukebox refills the queue shortly before the current song ends so the
// added songs are ready across the crossfade window.
func (l *Loop) checkJukebox(now time.Time) {
	c := l.conn
	if l.part.JukeboxMode == jukebox.ModeOff ||
		c.PlayState != "play" || c.SongDuration <= 0 || c.SongStart.IsZero() {
		return
	}
	addAt := c.SongStart.Add(c.SongDuration - c.Crossfade - jukeboxLead)
	if now.Before(addAt) {
		return
	}
	if c.QueueLength > l.part.JukeboxTarget {
		return
	}
	l.jukeboxRefill()
}

// jukeboxRefill adds songs or an album, excluding recently played uris.
func (l *Loop) jukeboxRefill() {
	exclude := l.lastPlayed.RecentURIs(20)
	added, err := jukebox.Refill(l.conn.Client, l.holder.Load(), exclude,
		l.part.JukeboxMode, l.part.JukeboxTarget, l.conn.QueueLength)
	if err != nil {
		if mpdclient.Classify(err) == mpdclient.ErrKindFatal {
			l.fail(err)
			return
		}
		log.Warn().Err(err).Msg("Jukebox refill failed")
		return
	}
	if added > 0 {
		l.conn.QueueLength += added
	}
}
