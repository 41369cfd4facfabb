package idle

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fhs/gompd/v2/mpd"
	"github.com/rs/zerolog/log"

	"github.com/cadenza-audio/cadenza/internal/jsonrpc"
	"github.com/cadenza-audio/cadenza/internal/mympd/albumcache"
	"github.com/cadenza-audio/cadenza/internal/mympd/jukebox"
	"github.com/cadenza-audio/cadenza/internal/mympd/mpdclient"
	"github.com/cadenza-audio/cadenza/internal/mympd/smartpls"
	"github.com/cadenza-audio/cadenza/internal/mympd/tags"
	"github.com/cadenza-audio/cadenza/internal/mympd/worker"
	"github.com/cadenza-audio/cadenza/internal/webradio"
)

var (
	errInvalidParams = errors.New("invalid parameters")
	errNoAlbumArt    = errors.New("album art not available")
)

// handleSync services one request on the loop goroutine.
func (l *Loop) handleSync(req *jsonrpc.Request) {
	switch req.Cmd {
	case jsonrpc.CmdPlayerState:
		l.apiPlayerState(req)
	case jsonrpc.CmdPlayerPlay:
		l.apiPlayerPlay(req)
	case jsonrpc.CmdPlayerPause:
		l.apiPlayerPause(req)
	case jsonrpc.CmdPlayerStop:
		l.apiSimple(req, func() error { return l.conn.Client.Stop() })
	case jsonrpc.CmdPlayerNext:
		l.apiSimple(req, func() error { return l.conn.Client.Next() })
	case jsonrpc.CmdPlayerPrev:
		l.apiSimple(req, func() error { return l.conn.Client.Previous() })
	case jsonrpc.CmdPlayerSeek:
		l.apiPlayerSeek(req)
	case jsonrpc.CmdPlayerVolumeSet:
		l.apiVolumeSet(req)
	case jsonrpc.CmdPlayerOptionsSet:
		l.apiOptionsSet(req)
	case jsonrpc.CmdPlayerOutputList:
		l.apiOutputList(req)
	case jsonrpc.CmdPlayerOutputToggle:
		l.apiOutputToggle(req)
	case jsonrpc.CmdQueueList:
		l.apiQueueList(req)
	case jsonrpc.CmdQueueClear:
		l.apiSimple(req, func() error { return l.conn.Client.Clear() })
	case jsonrpc.CmdQueueAppend:
		l.apiQueueAppend(req)
	case jsonrpc.CmdQueueRemove:
		l.apiQueueRemove(req)
	case jsonrpc.CmdPlaylistList:
		l.apiPlaylistList(req)
	case jsonrpc.CmdPlaylistContent:
		l.apiPlaylistContent(req)
	case jsonrpc.CmdPlaylistRename:
		l.apiPlaylistRename(req)
	case jsonrpc.CmdPlaylistRm:
		l.apiPlaylistRm(req)
	case jsonrpc.CmdDatabaseSearch:
		l.apiDatabaseSearch(req)
	case jsonrpc.CmdDatabaseUpdate:
		l.apiDatabaseUpdate(req, false)
	case jsonrpc.CmdDatabaseRescan:
		l.apiDatabaseUpdate(req, true)
	case jsonrpc.CmdDatabaseAlbumList:
		l.apiAlbumList(req)
	case jsonrpc.CmdDatabaseAlbumDetail:
		l.apiAlbumDetail(req)
	case jsonrpc.CmdStats:
		l.apiStats(req)
	case jsonrpc.CmdLastPlayedList:
		l.apiLastPlayedList(req)
	case jsonrpc.CmdConnectionSave:
		l.handleConnectionSave(req)
	case jsonrpc.CmdWebradioDBUpdate:
		l.apiWebradioDBUpdate(req)
	default:
		l.respondErr(req, jsonrpc.FacilityGeneral, jsonrpc.SeverityError, "Unhandled method")
	}
}

// respond pushes a success response for requests that expect one.
func (l *Loop) respond(req *jsonrpc.Request, result any) {
	if req.ConnID <= 0 {
		return
	}
	l.resp.Push(jsonrpc.NewResult(req.ConnID, req.ID, req.Method, result), uint64(req.ConnID))
}

func (l *Loop) respondErr(req *jsonrpc.Request, fac jsonrpc.Facility, sev jsonrpc.Severity, msg string) {
	if req.ConnID <= 0 {
		log.Warn().Str("method", req.Method).Str("error", msg).Msg("Internal request failed")
		return
	}
	l.resp.Push(jsonrpc.NewError(req.ConnID, req.ID, req.Method, fac, sev, msg, nil), uint64(req.ConnID))
}

// mpdErr reports a failed MPD command. Transport errors additionally fail
// the connection.
func (l *Loop) mpdErr(req *jsonrpc.Request, fac jsonrpc.Facility, err error, msg string) {
	if mpdclient.Classify(err) == mpdclient.ErrKindFatal {
		l.fail(err)
	} else {
		log.Warn().Str("method", req.Method).Err(err).Msg("MPD refused command")
	}
	l.respondErr(req, fac, jsonrpc.SeverityError, msg)
}

// apiSimple runs a no-result MPD command and acknowledges it.
func (l *Loop) apiSimple(req *jsonrpc.Request, fn func() error) {
	if err := fn(); err != nil {
		l.mpdErr(req, jsonrpc.FacilityMPD, err, "MPD command failed")
		return
	}
	l.respond(req, "ok")
}

func (l *Loop) apiPlayerState(req *jsonrpc.Request) {
	if err := l.refreshStatus(); err != nil {
		l.mpdErr(req, jsonrpc.FacilityMPD, err, "Cannot read player state")
		return
	}
	status, err := l.conn.Client.Status()
	if err != nil {
		l.mpdErr(req, jsonrpc.FacilityMPD, err, "Cannot read player state")
		return
	}
	result := map[string]any{
		"state":        status["state"],
		"queueVersion": l.conn.QueueVersion,
		"queueLength":  l.conn.QueueLength,
		"songId":       l.conn.SongID,
	}
	if v, err := strconv.Atoi(status["volume"]); err == nil {
		result["volume"] = v
	}
	if v, err := strconv.ParseFloat(status["elapsed"], 64); err == nil {
		result["elapsed"] = v
	}
	if v, err := strconv.ParseFloat(status["duration"], 64); err == nil {
		result["duration"] = v
	}
	if l.conn.SongID >= 0 {
		if song, err := l.conn.Client.CurrentSong(); err == nil {
			result["song"] = songJSON(song, l.conn.EnabledTags)
		}
	}
	result["options"] = map[string]any{
		"random":        status["random"] == "1",
		"repeat":        status["repeat"] == "1",
		"single":        status["single"] != "0",
		"consume":       status["consume"] != "0",
		"crossfade":     int(l.conn.Crossfade / time.Second),
		"jukeboxMode":   string(l.part.JukeboxMode),
		"jukeboxTarget": l.part.JukeboxTarget,
		"autoPlay":      l.part.AutoPlay,
	}
	l.respond(req, result)
}

func (l *Loop) apiPlayerPlay(req *jsonrpc.Request) {
	params := struct {
		Pos int `json:"pos"`
	}{Pos: -1}
	if err := req.BindParams(&params); err != nil {
		l.respondErr(req, jsonrpc.FacilityGeneral, jsonrpc.SeverityError, err.Error())
		return
	}
	l.apiSimple(req, func() error { return l.conn.Client.Play(params.Pos) })
}

// apiPlayerPause toggles: a paused player resumes, anything else pauses.
func (l *Loop) apiPlayerPause(req *jsonrpc.Request) {
	l.apiSimple(req, func() error {
		return l.conn.Client.Pause(l.conn.PlayState != "pause")
	})
}

func (l *Loop) apiPlayerSeek(req *jsonrpc.Request) {
	var params struct {
		Seconds  float64 `json:"seconds"`
		Relative bool    `json:"relative"`
	}
	if err := req.BindParams(&params); err != nil {
		l.respondErr(req, jsonrpc.FacilityGeneral, jsonrpc.SeverityError, err.Error())
		return
	}
	d := time.Duration(params.Seconds * float64(time.Second))
	l.apiSimple(req, func() error { return l.conn.Client.SeekCur(d, params.Relative) })
}

func (l *Loop) apiVolumeSet(req *jsonrpc.Request) {
	params := struct {
		Volume int `json:"volume"`
	}{Volume: -1}
	if err := req.BindParams(&params); err != nil || params.Volume < 0 || params.Volume > 100 {
		l.respondErr(req, jsonrpc.FacilityGeneral, jsonrpc.SeverityError, "Invalid volume")
		return
	}
	l.apiSimple(req, func() error { return l.conn.Client.SetVolume(params.Volume) })
}

// apiOptionsSet applies any subset of playback options. Jukebox and autoplay
// settings persist as partition state.
func (l *Loop) apiOptionsSet(req *jsonrpc.Request) {
	var params struct {
		Random        *bool   `json:"random"`
		Repeat        *bool   `json:"repeat"`
		Single        *bool   `json:"single"`
		Consume       *bool   `json:"consume"`
		Crossfade     *int    `json:"crossfade"`
		JukeboxMode   *string `json:"jukeboxMode"`
		JukeboxTarget *int    `json:"jukeboxTarget"`
		AutoPlay      *bool   `json:"autoPlay"`
	}
	if err := req.BindParams(&params); err != nil {
		l.respondErr(req, jsonrpc.FacilityGeneral, jsonrpc.SeverityError, err.Error())
		return
	}

	type opt struct {
		set  bool
		call func() error
	}
	opts := []opt{
		{params.Random != nil, func() error { return l.conn.Client.Random(*params.Random) }},
		{params.Repeat != nil, func() error { return l.conn.Client.Repeat(*params.Repeat) }},
		{params.Single != nil, func() error { return l.conn.Client.Single(*params.Single) }},
		{params.Consume != nil, func() error { return l.conn.Client.Consume(*params.Consume) }},
		{params.Crossfade != nil, func() error {
			return l.conn.Client.Command("crossfade %d", *params.Crossfade).OK()
		}},
	}
	for _, o := range opts {
		if !o.set {
			continue
		}
		if err := o.call(); err != nil {
			l.mpdErr(req, jsonrpc.FacilityMPD, err, "Cannot set playback option")
			return
		}
	}

	if params.JukeboxMode != nil || params.JukeboxTarget != nil {
		mode := l.part.JukeboxMode
		if params.JukeboxMode != nil {
			mode = jukebox.ParseMode(*params.JukeboxMode)
		}
		target := l.part.JukeboxTarget
		if params.JukeboxTarget != nil {
			target = *params.JukeboxTarget
		}
		l.part.SetJukebox(mode, target)
	}
	if params.AutoPlay != nil {
		l.part.SetAutoPlay(*params.AutoPlay)
	}
	l.respond(req, "ok")
}

func (l *Loop) apiOutputList(req *jsonrpc.Request) {
	outputs, err := l.conn.Client.ListOutputs()
	if err != nil {
		l.mpdErr(req, jsonrpc.FacilityMPD, err, "Cannot list outputs")
		return
	}
	list := make([]map[string]any, 0, len(outputs))
	for _, o := range outputs {
		id, _ := strconv.Atoi(o["outputid"])
		list = append(list, map[string]any{
			"id":      id,
			"name":    o["outputname"],
			"plugin":  o["plugin"],
			"enabled": o["outputenabled"] == "1",
		})
	}
	l.respond(req, map[string]any{"outputs": list})
}

func (l *Loop) apiOutputToggle(req *jsonrpc.Request) {
	params := struct {
		OutputID int  `json:"outputId"`
		Enabled  bool `json:"enabled"`
	}{OutputID: -1}
	if err := req.BindParams(&params); err != nil || params.OutputID < 0 {
		l.respondErr(req, jsonrpc.FacilityGeneral, jsonrpc.SeverityError, "Invalid output id")
		return
	}
	l.apiSimple(req, func() error {
		if params.Enabled {
			return l.conn.Client.EnableOutput(params.OutputID)
		}
		return l.conn.Client.DisableOutput(params.OutputID)
	})
}

func (l *Loop) apiQueueList(req *jsonrpc.Request) {
	params := struct {
		Offset int `json:"offset"`
		Limit  int `json:"limit"`
	}{Limit: 100}
	if err := req.BindParams(&params); err != nil {
		l.respondErr(req, jsonrpc.FacilityQueue, jsonrpc.SeverityError, err.Error())
		return
	}
	songs, err := l.conn.Client.PlaylistInfo(params.Offset, params.Offset+params.Limit)
	if err != nil {
		l.mpdErr(req, jsonrpc.FacilityQueue, err, "Cannot read queue")
		return
	}
	list := make([]map[string]any, 0, len(songs))
	for _, song := range songs {
		list = append(list, songJSON(song, l.conn.EnabledTags))
	}
	l.respond(req, map[string]any{
		"queue":   list,
		"version": l.conn.QueueVersion,
		"length":  l.conn.QueueLength,
		"offset":  params.Offset,
	})
}

func (l *Loop) apiQueueAppend(req *jsonrpc.Request) {
	var params struct {
		URI string `json:"uri"`
	}
	if err := req.BindParams(&params); err != nil || params.URI == "" {
		l.respondErr(req, jsonrpc.FacilityQueue, jsonrpc.SeverityError, "Invalid uri")
		return
	}
	l.apiSimple(req, func() error { return l.conn.Client.Add(params.URI) })
}

func (l *Loop) apiQueueRemove(req *jsonrpc.Request) {
	params := struct {
		Start int `json:"start"`
		End   int `json:"end"`
	}{Start: -1, End: -1}
	if err := req.BindParams(&params); err != nil || params.Start < 0 {
		l.respondErr(req, jsonrpc.FacilityQueue, jsonrpc.SeverityError, "Invalid range")
		return
	}
	l.apiSimple(req, func() error { return l.conn.Client.Delete(params.Start, params.End) })
}

func (l *Loop) apiPlaylistList(req *jsonrpc.Request) {
	if !l.conn.Feat.Playlists {
		l.respondErr(req, jsonrpc.FacilityPlaylist, jsonrpc.SeverityWarn, "Stored playlists not supported")
		return
	}
	playlists, err := l.conn.Client.ListPlaylists()
	if err != nil {
		l.mpdErr(req, jsonrpc.FacilityPlaylist, err, "Cannot list playlists")
		return
	}
	smart := make(map[string]bool)
	if names, err := smartpls.List(l.cfg.Workdir); err == nil {
		for _, n := range names {
			smart[n] = true
		}
	}
	list := make([]map[string]any, 0, len(playlists))
	for _, p := range playlists {
		list = append(list, map[string]any{
			"name":         p["playlist"],
			"lastModified": p["Last-Modified"],
			"smart":        smart[p["playlist"]],
		})
	}
	l.respond(req, map[string]any{"playlists": list})
}

func (l *Loop) apiPlaylistContent(req *jsonrpc.Request) {
	params := struct {
		Playlist string `json:"plist"`
		Offset   int    `json:"offset"`
		Limit    int    `json:"limit"`
	}{Limit: 100}
	if err := req.BindParams(&params); err != nil || params.Playlist == "" {
		l.respondErr(req, jsonrpc.FacilityPlaylist, jsonrpc.SeverityError, "Invalid playlist name")
		return
	}
	songs, err := l.conn.Client.PlaylistContents(params.Playlist)
	if err != nil {
		l.mpdErr(req, jsonrpc.FacilityPlaylist, err, "Cannot read playlist")
		return
	}
	total := len(songs)
	if params.Offset < len(songs) {
		songs = songs[params.Offset:]
	} else {
		songs = nil
	}
	if params.Limit > 0 && len(songs) > params.Limit {
		songs = songs[:params.Limit]
	}
	list := make([]map[string]any, 0, len(songs))
	for _, song := range songs {
		list = append(list, songJSON(song, l.conn.EnabledTags))
	}
	l.respond(req, map[string]any{
		"plist":  params.Playlist,
		"songs":  list,
		"total":  total,
		"offset": params.Offset,
	})
}

func (l *Loop) apiPlaylistRename(req *jsonrpc.Request) {
	var params struct {
		From string `json:"from"`
		To   string `json:"to"`
	}
	if err := req.BindParams(&params); err != nil || params.From == "" || params.To == "" {
		l.respondErr(req, jsonrpc.FacilityPlaylist, jsonrpc.SeverityError, "Invalid playlist name")
		return
	}
	if err := l.conn.Client.PlaylistRename(params.From, params.To); err != nil {
		l.mpdErr(req, jsonrpc.FacilityPlaylist, err, "Cannot rename playlist")
		return
	}
	// A smart playlist keeps its rule under the new name.
	oldRule := filepath.Join(smartpls.Dir(l.cfg.Workdir), params.From)
	if _, err := os.Stat(oldRule); err == nil {
		if err := os.Rename(oldRule, filepath.Join(smartpls.Dir(l.cfg.Workdir), params.To)); err != nil {
			log.Warn().Err(err).Msg("Cannot rename smart playlist rule")
		}
	}
	l.respond(req, "ok")
	l.notifier.Notify(l.part.Name, jsonrpc.Notification("update_stored_playlist", nil))
}

func (l *Loop) apiPlaylistRm(req *jsonrpc.Request) {
	var params struct {
		Playlist string `json:"plist"`
	}
	if err := req.BindParams(&params); err != nil || params.Playlist == "" {
		l.respondErr(req, jsonrpc.FacilityPlaylist, jsonrpc.SeverityError, "Invalid playlist name")
		return
	}
	if err := l.conn.Client.PlaylistRemove(params.Playlist); err != nil {
		l.mpdErr(req, jsonrpc.FacilityPlaylist, err, "Cannot remove playlist")
		return
	}
	rule := filepath.Join(smartpls.Dir(l.cfg.Workdir), params.Playlist)
	if err := os.Remove(rule); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("Cannot remove smart playlist rule")
	}
	l.respond(req, "ok")
	l.notifier.Notify(l.part.Name, jsonrpc.Notification("update_stored_playlist", nil))
}

// apiDatabaseSearch runs a filter-expression search with server-side sorting
// and windowing. Sort tags fall back to their *Sort variant when enabled.
func (l *Loop) apiDatabaseSearch(req *jsonrpc.Request) {
	params := struct {
		Expression string `json:"expression"`
		Sort       string `json:"sort"`
		SortDesc   bool   `json:"sortdesc"`
		Offset     int    `json:"offset"`
		Limit      int    `json:"limit"`
	}{Sort: "Title", Limit: 100}
	if err := req.BindParams(&params); err != nil || params.Expression == "" {
		l.respondErr(req, jsonrpc.FacilityDatabase, jsonrpc.SeverityError, "Invalid search expression")
		return
	}
	sortTag := tags.SortTag(params.Sort, l.conn.EnabledTags)
	if params.SortDesc {
		sortTag = "-" + sortTag
	}
	window := fmt.Sprintf("%d:%d", params.Offset, params.Offset+params.Limit)
	songs, err := l.conn.Client.Command("search %s sort %s window %s",
		params.Expression, sortTag, window).AttrsList("file")
	if err != nil {
		l.mpdErr(req, jsonrpc.FacilityDatabase, err, "Search failed")
		return
	}
	// Equal sort values keep a stable uri order.
	base := tags.SortTag(params.Sort, l.conn.EnabledTags)
	sort.SliceStable(songs, func(i, j int) bool {
		if songs[i][base] == songs[j][base] {
			return songs[i]["file"] < songs[j]["file"]
		}
		return false
	})
	list := make([]map[string]any, 0, len(songs))
	for _, song := range songs {
		list = append(list, songJSON(song, l.conn.EnabledTags))
	}
	l.respond(req, map[string]any{
		"songs":  list,
		"offset": params.Offset,
	})
}

func (l *Loop) apiDatabaseUpdate(req *jsonrpc.Request, rescan bool) {
	var params struct {
		URI string `json:"uri"`
	}
	if err := req.BindParams(&params); err != nil {
		l.respondErr(req, jsonrpc.FacilityDatabase, jsonrpc.SeverityError, err.Error())
		return
	}
	var jobID int
	var err error
	if rescan {
		jobID, err = l.conn.Client.Rescan(params.URI)
	} else {
		jobID, err = l.conn.Client.Update(params.URI)
	}
	if err != nil {
		l.mpdErr(req, jsonrpc.FacilityDatabase, err, "Cannot start database update")
		return
	}
	l.respond(req, map[string]any{"jobId": jobID})
}

func (l *Loop) apiAlbumList(req *jsonrpc.Request) {
	params := struct {
		Offset    int    `json:"offset"`
		Limit     int    `json:"limit"`
		SearchStr string `json:"searchstr"`
	}{Limit: 100}
	if err := req.BindParams(&params); err != nil {
		l.respondErr(req, jsonrpc.FacilityDatabase, jsonrpc.SeverityError, err.Error())
		return
	}
	cache := l.holder.Load()
	if cache == nil {
		l.respondErr(req, jsonrpc.FacilityDatabase, jsonrpc.SeverityWarn, "Album cache not built yet")
		return
	}

	albums := make([]map[string]any, 0, params.Limit)
	total := cache.Len()
	if params.SearchStr == "" {
		seen := 0
		cache.Each(func(key string, a *albumcache.Album) bool {
			seen++
			if seen <= params.Offset {
				return true
			}
			albums = append(albums, albumJSON(key, a))
			return params.Limit <= 0 || len(albums) < params.Limit
		})
	} else {
		needle := strings.ToLower(params.SearchStr)
		matched := 0
		cache.Each(func(key string, a *albumcache.Album) bool {
			if !strings.Contains(strings.ToLower(a.Name), needle) &&
				!strings.Contains(strings.ToLower(a.Artist), needle) {
				return true
			}
			matched++
			if matched <= params.Offset {
				return true
			}
			albums = append(albums, albumJSON(key, a))
			return params.Limit <= 0 || len(albums) < params.Limit
		})
		total = matched
	}
	l.respond(req, map[string]any{
		"albums": albums,
		"total":  total,
		"offset": params.Offset,
	})
}

func (l *Loop) apiAlbumDetail(req *jsonrpc.Request) {
	var params struct {
		AlbumID string `json:"albumId"`
	}
	if err := req.BindParams(&params); err != nil || params.AlbumID == "" {
		l.respondErr(req, jsonrpc.FacilityDatabase, jsonrpc.SeverityError, "Invalid album id")
		return
	}
	cache := l.holder.Load()
	album := cache.Lookup(params.AlbumID)
	if album == nil {
		l.respondErr(req, jsonrpc.FacilityDatabase, jsonrpc.SeverityWarn, "Album not found")
		return
	}
	expr := fmt.Sprintf("((Album == '%s') AND (AlbumArtist == '%s'))",
		mpdclient.EscapeFilter(album.Name), mpdclient.EscapeFilter(album.Artist))
	songs, err := l.conn.Client.Find(expr)
	if err != nil {
		l.mpdErr(req, jsonrpc.FacilityDatabase, err, "Cannot read album songs")
		return
	}
	list := make([]map[string]any, 0, len(songs))
	for _, song := range songs {
		list = append(list, songJSON(song, l.conn.EnabledTags))
	}
	result := albumJSON(params.AlbumID, album)
	result["songs"] = list
	l.respond(req, result)
}

func (l *Loop) apiStats(req *jsonrpc.Request) {
	stats, err := l.conn.Client.Stats()
	if err != nil {
		l.mpdErr(req, jsonrpc.FacilityMPD, err, "Cannot read MPD stats")
		return
	}
	result := map[string]any{
		"mpdVersion":  l.conn.Version,
		"uptime":      int(time.Since(l.started) / time.Second),
		"workers":     worker.Active(),
		"cacheAlbums": l.holder.Load().Len(),
	}
	for _, key := range []string{"artists", "albums", "songs", "db_playtime", "playtime"} {
		if v, err := strconv.ParseInt(stats[key], 10, 64); err == nil {
			result[key] = v
		}
	}
	l.respond(req, result)
}

func (l *Loop) apiLastPlayedList(req *jsonrpc.Request) {
	params := struct {
		Offset int `json:"offset"`
		Limit  int `json:"limit"`
	}{Limit: 100}
	if err := req.BindParams(&params); err != nil {
		l.respondErr(req, jsonrpc.FacilityGeneral, jsonrpc.SeverityError, err.Error())
		return
	}
	l.respond(req, map[string]any{
		"entries": l.lastPlayed.List(params.Offset, params.Limit),
	})
}

// handleConnectionSave updates the MPD connection settings and forces an
// immediate reconnect.
func (l *Loop) handleConnectionSave(req *jsonrpc.Request) {
	params := struct {
		Host     string `json:"mpdHost"`
		Port     int    `json:"mpdPort"`
		Password string `json:"mpdPassword"`
	}{Host: l.cfg.MPD.Host, Port: l.cfg.MPD.Port, Password: l.cfg.MPD.Password}
	if err := req.BindParams(&params); err != nil || params.Host == "" || params.Port <= 0 {
		l.respondErr(req, jsonrpc.FacilityGeneral, jsonrpc.SeverityError, "Invalid connection settings")
		return
	}
	l.cfg.MPD.Host = params.Host
	l.cfg.MPD.Port = params.Port
	l.cfg.MPD.Password = params.Password
	l.conn.SetAddress(params.Host, params.Port, params.Password)
	l.respond(req, "ok")
	log.Info().Str("host", params.Host).Int("port", params.Port).Msg("MPD connection settings changed")
	if l.conn.Connected() {
		l.conn.State = mpdclient.StateDisconnectInstant
	}
}

// apiWebradioDBUpdate refreshes the catalog mirror off the loop goroutine.
func (l *Loop) apiWebradioDBUpdate(req *jsonrpc.Request) {
	workdir, url := l.cfg.Workdir, l.cfg.WebradioDB.URL
	connID, id, method := req.ConnID, req.ID, req.Method
	resp := l.resp
	go func() {
		if err := webradio.SyncDB(context.Background(), workdir, url); err != nil {
			log.Warn().Err(err).Msg("Webradio catalog sync failed")
			if connID > 0 {
				resp.Push(jsonrpc.NewError(connID, id, method, jsonrpc.FacilityGeneral,
					jsonrpc.SeverityError, "Webradio catalog sync failed", nil), uint64(connID))
			}
			return
		}
		if connID > 0 {
			resp.Push(jsonrpc.NewResult(connID, id, method, "ok"), uint64(connID))
		}
	}()
}

// albumJSON renders an album-cache record for a response document.
func albumJSON(key string, a *albumcache.Album) map[string]any {
	out := map[string]any{
		"albumId":      key,
		"uri":          a.URI,
		"Album":        a.Name,
		"AlbumArtist":  a.Artist,
		"songCount":    a.SongCount,
		"discs":        a.Discs,
		"duration":     a.DurationSec,
		"durationMs":   a.DurationMS,
		"lastModified": a.LastModified,
	}
	for name, values := range a.Tags {
		out[name] = tags.JSONValue(name, values)
	}
	return out
}

// songJSON renders a song for a response document.
func songJSON(song mpd.Attrs, enabled tags.Set) map[string]any {
	out := map[string]any{
		"uri":   song["file"],
		"Title": tags.DisplayTitle(song),
	}
	if d, err := strconv.ParseFloat(song["duration"], 64); err == nil {
		out["Duration"] = d
	}
	if pos, err := strconv.Atoi(song["Pos"]); err == nil {
		out["Pos"] = pos
	}
	if id, err := strconv.Atoi(song["Id"]); err == nil {
		out["Id"] = id
	}
	for _, name := range enabled {
		if name == "Title" {
			continue
		}
		out[name] = tags.JSONValue(name, tags.Values(name, song[name]))
	}
	return out
}
