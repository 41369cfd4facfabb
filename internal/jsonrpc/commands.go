package jsonrpc

// CmdID enumerates the API methods.
type CmdID int

const (
	CmdUnknown CmdID = iota

	CmdPlayerState
	CmdPlayerPlay
	CmdPlayerPause
	CmdPlayerStop
	CmdPlayerNext
	CmdPlayerPrev
	CmdPlayerSeek
	CmdPlayerVolumeSet
	CmdPlayerOptionsSet
	CmdPlayerOutputList
	CmdPlayerOutputToggle

	CmdQueueList
	CmdQueueClear
	CmdQueueAppend
	CmdQueueRemove

	CmdPlaylistList
	CmdPlaylistContent
	CmdPlaylistRename
	CmdPlaylistRm

	CmdDatabaseSearch
	CmdDatabaseUpdate
	CmdDatabaseRescan
	CmdDatabaseAlbumList
	CmdDatabaseAlbumDetail

	CmdStats
	CmdLastPlayedList
	CmdConnectionSave

	CmdSessionLogin
	CmdSessionLogout
	CmdSessionValidate

	CmdSmartplsUpdate
	CmdSmartplsUpdateAll
	CmdCachesCreate

	CmdWebradioDBUpdate

	// CmdInternalAlbumArt is never exposed on the wire: the cover-art route
	// uses it to fetch image bytes over the idle loop's connection.
	CmdInternalAlbumArt
)

type cmdSpec struct {
	id CmdID
	// longRunning commands detach a worker with a private MPD connection.
	longRunning bool
	// mpdIndependent commands are serviced even while the MPD connection is
	// down or waiting out its reconnect backoff.
	mpdIndependent bool
	// public methods never require a session token.
	public bool
}

var methodTable = map[string]cmdSpec{
	"MYMPD_API_PLAYER_STATE":          {id: CmdPlayerState},
	"MYMPD_API_PLAYER_PLAY":           {id: CmdPlayerPlay},
	"MYMPD_API_PLAYER_PAUSE":          {id: CmdPlayerPause},
	"MYMPD_API_PLAYER_STOP":           {id: CmdPlayerStop},
	"MYMPD_API_PLAYER_NEXT":           {id: CmdPlayerNext},
	"MYMPD_API_PLAYER_PREV":           {id: CmdPlayerPrev},
	"MYMPD_API_PLAYER_SEEK":           {id: CmdPlayerSeek},
	"MYMPD_API_PLAYER_VOLUME_SET":     {id: CmdPlayerVolumeSet},
	"MYMPD_API_PLAYER_OPTIONS_SET":    {id: CmdPlayerOptionsSet},
	"MYMPD_API_PLAYER_OUTPUT_LIST":    {id: CmdPlayerOutputList},
	"MYMPD_API_PLAYER_OUTPUT_TOGGLE":  {id: CmdPlayerOutputToggle},
	"MYMPD_API_QUEUE_LIST":            {id: CmdQueueList},
	"MYMPD_API_QUEUE_CLEAR":           {id: CmdQueueClear},
	"MYMPD_API_QUEUE_APPEND":          {id: CmdQueueAppend},
	"MYMPD_API_QUEUE_REMOVE":          {id: CmdQueueRemove},
	"MYMPD_API_PLAYLIST_LIST":         {id: CmdPlaylistList},
	"MYMPD_API_PLAYLIST_CONTENT":      {id: CmdPlaylistContent},
	"MYMPD_API_PLAYLIST_RENAME":       {id: CmdPlaylistRename},
	"MYMPD_API_PLAYLIST_RM":           {id: CmdPlaylistRm},
	"MYMPD_API_DATABASE_SEARCH":       {id: CmdDatabaseSearch},
	"MYMPD_API_DATABASE_UPDATE":       {id: CmdDatabaseUpdate},
	"MYMPD_API_DATABASE_RESCAN":       {id: CmdDatabaseRescan},
	"MYMPD_API_DATABASE_ALBUM_LIST":   {id: CmdDatabaseAlbumList},
	"MYMPD_API_DATABASE_ALBUM_DETAIL": {id: CmdDatabaseAlbumDetail},
	"MYMPD_API_STATS":                 {id: CmdStats},
	"MYMPD_API_LAST_PLAYED_LIST":      {id: CmdLastPlayedList, mpdIndependent: true},
	"MYMPD_API_CONNECTION_SAVE":       {id: CmdConnectionSave, mpdIndependent: true},
	"MYMPD_API_SESSION_LOGIN":         {id: CmdSessionLogin, mpdIndependent: true, public: true},
	"MYMPD_API_SESSION_LOGOUT":        {id: CmdSessionLogout, mpdIndependent: true},
	"MYMPD_API_SESSION_VALIDATE":      {id: CmdSessionValidate, mpdIndependent: true},
	"MYMPD_API_SMARTPLS_UPDATE":       {id: CmdSmartplsUpdate, longRunning: true},
	"MYMPD_API_SMARTPLS_UPDATE_ALL":   {id: CmdSmartplsUpdateAll, longRunning: true},
	"MYMPD_API_CACHES_CREATE":         {id: CmdCachesCreate, longRunning: true},
	"MYMPD_API_WEBRADIODB_UPDATE":     {id: CmdWebradioDBUpdate, mpdIndependent: true},
}

var specByID = func() map[CmdID]cmdSpec {
	m := make(map[CmdID]cmdSpec, len(methodTable))
	for _, s := range methodTable {
		m[s.id] = s
	}
	return m
}()

// LookupMethod maps a wire method name to its command id.
func LookupMethod(method string) (CmdID, bool) {
	s, ok := methodTable[method]
	return s.id, ok
}

// IsLongRunning reports whether the command must run on a detached worker.
func IsLongRunning(cmd CmdID) bool { return specByID[cmd].longRunning }

// IsMPDIndependent reports whether the command can be served without a live
// MPD connection.
func IsMPDIndependent(cmd CmdID) bool { return specByID[cmd].mpdIndependent }

// IsPublic reports whether the method is exempt from session validation.
func IsPublic(cmd CmdID) bool { return specByID[cmd].public }

// IsSessionCmd reports whether the command is handled entirely by the HTTP
// frontend against the session store.
func IsSessionCmd(cmd CmdID) bool {
	return cmd == CmdSessionLogin || cmd == CmdSessionLogout || cmd == CmdSessionValidate
}
