// Package idle runs the central event loop: a single goroutine that owns the
// MPD connection, the album cache holder, the timer wheel, the trigger
// registry and the playback bookkeeping. Web clients talk to it through the
// API queue; it answers through the response queue and pushes notifications
// over the WebSocket hub.
package idle

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/cadenza-audio/cadenza/internal/artwork"
	"github.com/cadenza-audio/cadenza/internal/config"
	"github.com/cadenza-audio/cadenza/internal/jsonrpc"
	"github.com/cadenza-audio/cadenza/internal/mympd/albumcache"
	"github.com/cadenza-audio/cadenza/internal/mympd/lastplayed"
	"github.com/cadenza-audio/cadenza/internal/mympd/mpdclient"
	"github.com/cadenza-audio/cadenza/internal/mympd/stickers"
	"github.com/cadenza-audio/cadenza/internal/mympd/tags"
	"github.com/cadenza-audio/cadenza/internal/mympd/timers"
	"github.com/cadenza-audio/cadenza/internal/mympd/trigger"
	"github.com/cadenza-audio/cadenza/internal/mympd/worker"
	"github.com/cadenza-audio/cadenza/internal/queue"
	"github.com/cadenza-audio/cadenza/internal/webradio"
)

// loopPoll bounds the API queue wait per iteration; it is the loop's only
// suspension point.
const loopPoll = 50 * time.Millisecond

// respMaxAge expires response-queue entries whose HTTP connection gave up.
const respMaxAge = time.Minute

// skipGuard: a song change within this long after start is noise, not a skip.
const skipGuard = 10 * time.Second

// scoreCap bounds the played-at mark offset.
const scoreCap = 4 * time.Minute

// jukeboxLead: songs are added this long before the current song ends, on top
// of the crossfade window.
const jukeboxLead = 10 * time.Second

// defaultTags is the tag set negotiated on every connect.
var defaultTags = tags.Set{
	"Artist", "ArtistSort", "Album", "AlbumSort", "AlbumArtist",
	"AlbumArtistSort", "Title", "Track", "Disc", "Genre", "Name", "Date",
	"Composer", "ComposerSort", "Performer", "Conductor", "Ensemble",
	"MusicBrainzArtistId", "MusicBrainzAlbumArtistId",
}

// Notifier pushes WebSocket notifications to all clients of a partition.
type Notifier interface {
	Notify(partition string, payload []byte)
}

// AlbumArtReply answers an internal album-art request over the channel
// carried in the request's Extra field.
type AlbumArtReply struct {
	Data []byte
	Err  error
}

// Loop is the idle loop state. All fields are owned by the Run goroutine.
type Loop struct {
	cfg  *config.Config
	conn *mpdclient.Conn

	api  *queue.Queue[*jsonrpc.Request]
	resp *queue.Queue[*jsonrpc.Response]

	notifier   Notifier
	wheel      *timers.Wheel
	triggers   *trigger.Registry
	holder     *albumcache.Holder
	lastPlayed *lastplayed.Store
	backlog    *stickers.Backlog
	part       *Partition

	// fatal requests daemon shutdown, e.g. on a too-old MPD server.
	fatal context.CancelFunc

	started time.Time
}

// New wires a loop. fatal is invoked for unrecoverable conditions.
func New(cfg *config.Config, api *queue.Queue[*jsonrpc.Request],
	resp *queue.Queue[*jsonrpc.Response], notifier Notifier,
	holder *albumcache.Holder, fatal context.CancelFunc) *Loop {
	return &Loop{
		cfg:        cfg,
		conn:       mpdclient.New(cfg.MPD.Host, cfg.MPD.Port, cfg.MPD.Password),
		api:        api,
		resp:       resp,
		notifier:   notifier,
		wheel:      timers.New(),
		triggers:   trigger.New(),
		holder:     holder,
		lastPlayed: lastplayed.New(cfg.Workdir, cfg.LastPlayed.KeepCount),
		backlog:    stickers.New(),
		part:       LoadPartition(cfg.Workdir, "default"),
		fatal:      fatal,
	}
}

// Triggers exposes the registry for startup-time subscriptions.
func (l *Loop) Triggers() *trigger.Registry { return l.triggers }

// Run drives the connection state machine until ctx is cancelled. It never
// returns early on MPD failures; those feed the reconnect backoff.
func (l *Loop) Run(ctx context.Context) {
	l.started = time.Now()
	l.triggers.Fire(trigger.EventStart, l.part.Name)

	for {
		select {
		case <-ctx.Done():
			l.shutdown()
			return
		default:
		}

		switch l.conn.State {
		case mpdclient.StateDisconnected:
			l.connect(ctx)
		case mpdclient.StateWait:
			l.waitReconnect()
		case mpdclient.StateConnected:
			l.serve(ctx)
		case mpdclient.StateFailure, mpdclient.StateDisconnect, mpdclient.StateReconnect:
			l.dropConnection()
			l.conn.FailureBackoff()
		case mpdclient.StateDisconnectInstant:
			l.dropConnection()
		case mpdclient.StateTooOld:
			log.Error().Str("version", l.conn.Version).Msg("MPD server too old, shutting down")
			l.fatal()
			l.shutdown()
			return
		}
	}
}

// connect establishes both connections, negotiates tags and arms the
// maintenance timers. Failures land in the backoff path.
func (l *Loop) connect(ctx context.Context) {
	if err := l.conn.Connect(); err != nil {
		if l.conn.State != mpdclient.StateTooOld {
			log.Error().Err(err).Msg("MPD connect failed")
			l.conn.FailureBackoff()
		}
		return
	}
	if err := l.conn.StartWatcher(); err != nil {
		log.Error().Err(err).Msg("MPD watcher failed")
		l.conn.Disconnect()
		l.conn.FailureBackoff()
		return
	}

	l.conn.SetBinaryLimit(l.cfg.MPD.BinaryLimit)
	if err := l.conn.EnableTags(defaultTags); err != nil {
		log.Warn().Err(err).Msg("Tag negotiation failed")
	}
	if err := l.refreshStatus(); err != nil {
		l.fail(err)
		return
	}

	// First cache build shortly after connect; recurring maintenance after.
	l.wheel.Replace(timers.IDCacheRebuild, 2*time.Second, 0, l.timerCacheRebuild, nil)
	l.wheel.Replace(timers.IDSmartplsUpdate, 30*time.Second, 30*time.Minute, l.timerSmartplsUpdate, nil)
	l.wheel.Replace(timers.IDCoverCachePrune, time.Hour, 24*time.Hour, l.timerCoverCachePrune, nil)
	l.wheel.Replace(timers.IDWebradioDBSync, time.Minute, 24*time.Hour, l.timerWebradioDBSync, ctx)

	l.notifier.Notify(l.part.Name, jsonrpc.Notification("mpd_connected", nil))
	l.triggers.Fire(trigger.EventConnected, l.part.Name)
}

// waitReconnect sits out the backoff interval. Only MPD-independent requests
// are serviced; a connection-save forces an instant reconnect attempt.
func (l *Loop) waitReconnect() {
	if req, ok := l.api.Shift(loopPoll, 0); ok {
		switch {
		case req.Cmd == jsonrpc.CmdConnectionSave:
			l.handleConnectionSave(req)
			l.conn.ResetBackoff()
			l.conn.State = mpdclient.StateDisconnected
			return
		case jsonrpc.IsMPDIndependent(req.Cmd):
			l.handleRequest(req)
		default:
			l.respondErr(req, jsonrpc.FacilityMPD, jsonrpc.SeverityError, "MPD disconnected")
		}
	}
	if !time.Now().Before(l.conn.ReconnectAt) {
		l.conn.State = mpdclient.StateDisconnected
	}
}

// serve runs one connected iteration: watcher events, one API request,
// timers, playback scoring, jukebox, sticker drain, queue maintenance.
func (l *Loop) serve(ctx context.Context) {
	events, ok := l.drainWatcher()
	if !ok {
		return
	}
	if events != 0 {
		l.handleIdleEvents(events)
	}
	if l.conn.State != mpdclient.StateConnected {
		return
	}

	if req, ok := l.api.Shift(loopPoll, 0); ok {
		l.handleRequest(req)
	}
	if l.conn.State != mpdclient.StateConnected {
		return
	}

	select {
	case <-ctx.Done():
		return
	default:
	}

	l.wheel.Tick(time.Now())
	l.checkScoring(time.Now())
	l.checkJukebox(time.Now())

	if l.backlog.Len() > 0 && l.conn.Feat.Stickers {
		if err := l.backlog.Drain(l.conn.Client); err != nil {
			l.fail(err)
			return
		}
	}

	l.resp.Expire(respMaxAge)
}

// drainWatcher collects all pending subsystem events into a bitmask without
// blocking. A closed event channel or a watcher error fails the connection.
func (l *Loop) drainWatcher() (uint32, bool) {
	var events uint32
	for {
		select {
		case subsystem, ok := <-l.conn.Watcher.Event:
			if !ok {
				l.fail(nil)
				return 0, false
			}
			events |= eventBit(subsystem)
		case err := <-l.conn.Watcher.Error:
			l.fail(err)
			return 0, false
		default:
			return events, true
		}
	}
}

// handleRequest dispatches one API request: internal album-art fetches and
// long-running worker commands first, everything else synchronously.
func (l *Loop) handleRequest(req *jsonrpc.Request) {
	switch {
	case req.Cmd == jsonrpc.CmdInternalAlbumArt:
		l.handleAlbumArt(req)
	case jsonrpc.IsLongRunning(req.Cmd):
		worker.Launch(req, worker.Deps{
			Host:        l.cfg.MPD.Host,
			Port:        l.cfg.MPD.Port,
			Password:    l.cfg.MPD.Password,
			Workdir:     l.cfg.Workdir,
			EnabledTags: l.conn.EnabledTags,
			Holder:      l.holder,
			Responses:   l.resp,
			Notifier:    l.notifier,
		})
	default:
		l.handleSync(req)
	}
}

// handleAlbumArt serves an internal cover request over the loop's connection
// and answers on the channel in Extra.
func (l *Loop) handleAlbumArt(req *jsonrpc.Request) {
	reply, ok := req.Extra.(chan AlbumArtReply)
	if !ok {
		log.Error().Msg("Album-art request without reply channel")
		return
	}
	defer close(reply)

	var params struct {
		URI string `json:"uri"`
	}
	if err := req.BindParams(&params); err != nil || params.URI == "" {
		reply <- AlbumArtReply{Err: errInvalidParams}
		return
	}
	if !l.conn.Connected() || !l.conn.Feat.AlbumArt {
		reply <- AlbumArtReply{Err: errNoAlbumArt}
		return
	}
	data, err := l.conn.Client.AlbumArt(params.URI)
	if err != nil {
		if mpdclient.Classify(err) == mpdclient.ErrKindFatal {
			l.fail(err)
		}
		reply <- AlbumArtReply{Err: err}
		return
	}
	reply <- AlbumArtReply{Data: data}
}

// fail records a broken connection and routes it into the backoff path.
func (l *Loop) fail(err error) {
	if err != nil {
		log.Error().Err(err).Msg("MPD connection lost")
	}
	l.conn.State = mpdclient.StateFailure
	l.notifier.Notify(l.part.Name, jsonrpc.Notification("mpd_disconnected", nil))
	l.triggers.Fire(trigger.EventDisconnected, l.part.Name)
}

// dropConnection tears down the sockets and clears connect-scoped timers.
func (l *Loop) dropConnection() {
	l.lastPlayed.Flush()
	l.wheel.Remove(timers.IDCacheRebuild)
	l.wheel.Remove(timers.IDSmartplsUpdate)
	l.conn.Disconnect()
}

// shutdown drains the API queue with disconnect errors, flushes state and
// fires the stop trigger.
func (l *Loop) shutdown() {
	for {
		req, ok := l.api.TryShift(0)
		if !ok {
			break
		}
		l.respondErr(req, jsonrpc.FacilityMPD, jsonrpc.SeverityError, "MPD disconnected")
	}
	if l.conn.Connected() && l.backlog.Len() > 0 && l.conn.Feat.Stickers {
		if err := l.backlog.Drain(l.conn.Client); err != nil {
			log.Warn().Err(err).Msg("Sticker drain failed at shutdown")
		}
	}
	l.lastPlayed.Flush()
	l.wheel.RemoveAll()
	l.triggers.Fire(trigger.EventStop, l.part.Name)
	l.conn.Disconnect()
	log.Info().Msg("Idle loop stopped")
}

// Timer handlers. All run on the loop goroutine.

// timerCacheRebuild detaches a cache-rebuild worker.
func (l *Loop) timerCacheRebuild(any) {
	worker.Launch(&jsonrpc.Request{
		ConnID:    jsonrpc.ConnInternal,
		Method:    "MYMPD_API_CACHES_CREATE",
		Cmd:       jsonrpc.CmdCachesCreate,
		Partition: l.part.Name,
	}, worker.Deps{
		Host:        l.cfg.MPD.Host,
		Port:        l.cfg.MPD.Port,
		Password:    l.cfg.MPD.Password,
		Workdir:     l.cfg.Workdir,
		EnabledTags: l.conn.EnabledTags,
		Holder:      l.holder,
		Responses:   l.resp,
		Notifier:    l.notifier,
	})
}

// timerSmartplsUpdate detaches a worker regenerating all smart playlists.
func (l *Loop) timerSmartplsUpdate(any) {
	worker.Launch(&jsonrpc.Request{
		ConnID:    jsonrpc.ConnInternal,
		Method:    "MYMPD_API_SMARTPLS_UPDATE_ALL",
		Cmd:       jsonrpc.CmdSmartplsUpdateAll,
		Partition: l.part.Name,
	}, worker.Deps{
		Host:        l.cfg.MPD.Host,
		Port:        l.cfg.MPD.Port,
		Password:    l.cfg.MPD.Password,
		Workdir:     l.cfg.Workdir,
		EnabledTags: l.conn.EnabledTags,
		Holder:      l.holder,
		Responses:   l.resp,
		Notifier:    l.notifier,
	})
}

// timerCoverCachePrune removes cached covers past the keep-days limit. Disk
// IO runs detached to keep the loop responsive.
func (l *Loop) timerCoverCachePrune(any) {
	workdir, keepDays := l.cfg.Workdir, l.cfg.Covers.KeepDays
	go artwork.PruneCoverCache(workdir, keepDays)
}

// timerWebradioDBSync refreshes the webradio catalog mirror.
func (l *Loop) timerWebradioDBSync(userdata any) {
	ctx, ok := userdata.(context.Context)
	if !ok {
		ctx = context.Background()
	}
	workdir, url := l.cfg.Workdir, l.cfg.WebradioDB.URL
	go func() {
		if err := webradio.SyncDB(ctx, workdir, url); err != nil {
			log.Warn().Err(err).Msg("Webradio catalog sync failed")
		}
	}()
}
