// Package worker runs long API commands on detached tasks. Every worker
// opens its own MPD connection and never touches the idle loop's state; it
// reports back through the response queue or as a WebSocket notification.
package worker

import (
	"encoding/json"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"

	"github.com/cadenza-audio/cadenza/internal/jsonrpc"
	"github.com/cadenza-audio/cadenza/internal/mympd/albumcache"
	"github.com/cadenza-audio/cadenza/internal/mympd/mpdclient"
	"github.com/cadenza-audio/cadenza/internal/mympd/smartpls"
	"github.com/cadenza-audio/cadenza/internal/mympd/tags"
	"github.com/cadenza-audio/cadenza/internal/queue"
)

// Notifier pushes WebSocket notifications to all clients of a partition.
type Notifier interface {
	Notify(partition string, payload []byte)
}

// Deps is the copied context a worker owns for its lifetime.
type Deps struct {
	Host        string
	Port        int
	Password    string
	Workdir     string
	EnabledTags tags.Set
	Holder      *albumcache.Holder
	Responses   *queue.Queue[*jsonrpc.Response]
	Notifier    Notifier
}

// active counts running workers process-wide.
var active atomic.Int32

var launches = promauto.NewCounter(prometheus.CounterOpts{
	Name: "cadenza_worker_launches_total",
	Help: "Detached workers started for long-running commands.",
})

// Active returns the running worker count.
func Active() int32 { return active.Load() }

// Launch starts a detached worker for a long-running request.
func Launch(req *jsonrpc.Request, deps Deps) {
	launches.Inc()
	active.Add(1)
	go func() {
		defer active.Add(-1)
		run(req, deps)
	}()
}

func run(req *jsonrpc.Request, deps Deps) {
	// Each worker gets a job id so its log lines can be correlated: several
	// workers for the same method may run at once.
	logger := log.With().Str("job", uuid.NewString()).Str("method", req.Method).Logger()

	conn := mpdclient.New(deps.Host, deps.Port, deps.Password)
	if err := conn.Connect(); err != nil {
		logger.Error().Err(err).Msg("Worker cannot connect to MPD")
		respondErr(req, deps, jsonrpc.FacilityMPD, "MPD connection failed")
		return
	}
	defer conn.Disconnect()
	if err := conn.EnableTags(deps.EnabledTags); err != nil {
		logger.Warn().Err(err).Msg("Worker tag negotiation failed")
	}
	logger.Debug().Msg("Worker started")

	switch req.Cmd {
	case jsonrpc.CmdCachesCreate:
		runCachesCreate(req, deps, conn)
	case jsonrpc.CmdSmartplsUpdate:
		runSmartplsUpdate(req, deps, conn)
	case jsonrpc.CmdSmartplsUpdateAll:
		runSmartplsUpdateAll(req, deps, conn)
	default:
		logger.Error().Msg("No worker job for command")
		respondErr(req, deps, jsonrpc.FacilityGeneral, "Unknown worker command")
	}
}

// runCachesCreate rebuilds the album cache from a full database walk and
// swaps it in atomically. A failed walk keeps the previous cache live.
func runCachesCreate(req *jsonrpc.Request, deps Deps, conn *mpdclient.Conn) {
	songs, err := conn.Client.ListAllInfo("/")
	if err != nil {
		log.Error().Err(err).Msg("Album cache rebuild aborted")
		respondErr(req, deps, jsonrpc.FacilityDatabase, "Database walk failed")
		return
	}

	builder := albumcache.NewBuilder(deps.EnabledTags)
	indexed := 0
	for _, song := range songs {
		if song["file"] == "" {
			continue
		}
		builder.Add(song)
		indexed++
	}
	cache := builder.Finish()
	deps.Holder.Swap(cache)

	log.Info().Int("songs", indexed).Int("albums", cache.Len()).Msg("Album cache rebuilt")
	if req.ConnID > 0 {
		deps.Responses.Push(jsonrpc.NewResult(req.ConnID, req.ID, req.Method, map[string]any{
			"songs":  indexed,
			"albums": cache.Len(),
		}), uint64(req.ConnID))
	}
	deps.Notifier.Notify(req.Partition,
		jsonrpc.Notification("update_cache_finished", map[string]any{"albums": cache.Len()}))
}

func runSmartplsUpdate(req *jsonrpc.Request, deps Deps, conn *mpdclient.Conn) {
	var params struct {
		Playlist string `json:"plist"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil || params.Playlist == "" {
		respondErr(req, deps, jsonrpc.FacilityPlaylist, "Invalid playlist name")
		return
	}
	if err := smartpls.Update(conn.Client, deps.Workdir, params.Playlist); err != nil {
		log.Error().Err(err).Str("playlist", params.Playlist).Msg("Smart playlist update failed")
		respondErr(req, deps, jsonrpc.FacilityPlaylist, "Smart playlist update failed")
		return
	}
	respondOK(req, deps, map[string]any{"plist": params.Playlist})
	deps.Notifier.Notify(req.Partition, jsonrpc.Notification("update_stored_playlist", nil))
}

func runSmartplsUpdateAll(req *jsonrpc.Request, deps Deps, conn *mpdclient.Conn) {
	updated, err := smartpls.UpdateAll(conn.Client, deps.Workdir)
	if err != nil {
		log.Error().Err(err).Msg("Smart playlist update-all failed")
		respondErr(req, deps, jsonrpc.FacilityPlaylist, "Smart playlist update failed")
		return
	}
	respondOK(req, deps, map[string]any{"updated": updated})
	if updated > 0 {
		deps.Notifier.Notify(req.Partition, jsonrpc.Notification("update_stored_playlist", nil))
	}
}

func respondOK(req *jsonrpc.Request, deps Deps, result any) {
	if req.ConnID <= 0 {
		return
	}
	deps.Responses.Push(jsonrpc.NewResult(req.ConnID, req.ID, req.Method, result), uint64(req.ConnID))
}

func respondErr(req *jsonrpc.Request, deps Deps, fac jsonrpc.Facility, msg string) {
	if req.ConnID <= 0 {
		return
	}
	deps.Responses.Push(jsonrpc.NewError(req.ConnID, req.ID, req.Method, fac,
		jsonrpc.SeverityError, msg, nil), uint64(req.ConnID))
}
