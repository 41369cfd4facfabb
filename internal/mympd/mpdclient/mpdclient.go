// Package mpdclient wraps the gompd client with connection-state tracking,
// feature probing and error classification. The idle loop owns a Conn;
// workers open their own.
package mpdclient

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/fhs/gompd/v2/mpd"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"

	"github.com/cadenza-audio/cadenza/internal/mympd/tags"
)

var reconnectWaits = promauto.NewCounter(prometheus.CounterOpts{
	Name: "cadenza_mpd_reconnects_total",
	Help: "MPD connection failures that armed the reconnect backoff.",
})

// ConnState is the connection state machine driven by the idle loop.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateWait
	StateConnected
	StateFailure
	StateDisconnect
	StateDisconnectInstant
	StateReconnect
	StateTooOld
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateWait:
		return "wait"
	case StateConnected:
		return "connected"
	case StateFailure:
		return "failure"
	case StateDisconnect:
		return "disconnect"
	case StateDisconnectInstant:
		return "disconnect_instant"
	case StateReconnect:
		return "reconnect"
	case StateTooOld:
		return "too_old"
	}
	return "unknown"
}

// Reconnect backoff grows by 2 seconds per failure, capped at 20.
const (
	backoffStep = 2 * time.Second
	backoffMax  = 20 * time.Second
)

// minVersion is the protocol floor; older servers are rejected.
var minVersion = [3]int{0, 21, 0}

// ErrTooOld marks a server below the protocol floor. It is fatal: the caller
// signals shutdown.
var ErrTooOld = errors.New("MPD server is too old, 0.21.0 or newer required")

// Features are the probed server capabilities.
type Features struct {
	Stickers   bool
	Tags       bool
	Playlists  bool
	Smartpls   bool
	AdvSearch  bool
	Whence     bool
	AlbumArt   bool
	Partitions bool
}

// Conn is one MPD connection plus its protocol state. Only its owning
// goroutine touches it; there is no lock by design.
type Conn struct {
	host     string
	port     int
	password string

	Client  *mpd.Client
	Watcher *mpd.Watcher

	State             ConnState
	ReconnectInterval time.Duration
	ReconnectAt       time.Time

	Version     string
	Feat        Features
	EnabledTags tags.Set

	// Playback bookkeeping used by the idle loop for scoring and jukebox.
	QueueVersion    int
	QueueLength     int
	PlayState       string
	SongID          int
	SongURI         string
	LastSongID      int
	LastSongURI     string
	SongStart       time.Time
	SongDuration    time.Duration
	SetSongPlayedAt time.Time
	Crossfade       time.Duration
	Scored          bool
}

// New returns an unconnected Conn.
func New(host string, port int, password string) *Conn {
	return &Conn{
		host:       host,
		port:       port,
		password:   password,
		State:      StateDisconnected,
		SongID:     -1,
		LastSongID: -1,
	}
}

// Addr returns the dial string.
func (c *Conn) Addr() string { return net.JoinHostPort(c.host, strconv.Itoa(c.port)) }

// SetAddress changes the connection settings for the next connect. The caller
// is responsible for disconnecting first.
func (c *Conn) SetAddress(host string, port int, password string) {
	c.host = host
	c.port = port
	c.password = password
}

// Connect dials MPD, authenticates, enforces the protocol floor and probes
// features. On success the state is Connected.
func (c *Conn) Connect() error {
	log.Info().Str("addr", c.Addr()).Msg("Connecting to MPD")
	client, err := mpd.DialAuthenticated("tcp", c.Addr(), c.password)
	if err != nil {
		c.State = StateFailure
		return fmt.Errorf("connect to MPD: %w", err)
	}
	c.Client = client
	c.Version = client.Version()

	if !versionAtLeast(c.Version, minVersion) {
		c.State = StateTooOld
		c.Client.Close()
		c.Client = nil
		return fmt.Errorf("%w (server reports %s)", ErrTooOld, c.Version)
	}

	if err := c.probeFeatures(); err != nil {
		c.Client.Close()
		c.Client = nil
		c.State = StateFailure
		return fmt.Errorf("probe MPD features: %w", err)
	}

	c.State = StateConnected
	c.ResetBackoff()
	log.Info().Str("version", c.Version).Msg("Connected to MPD")
	return nil
}

// StartWatcher opens the idle connection delivering subsystem change events.
func (c *Conn) StartWatcher() error {
	w, err := mpd.NewWatcher("tcp", c.Addr(), c.password)
	if err != nil {
		return fmt.Errorf("start MPD watcher: %w", err)
	}
	c.Watcher = w
	return nil
}

// Disconnect closes both connections and moves to Disconnected.
func (c *Conn) Disconnect() {
	if c.Watcher != nil {
		c.Watcher.Close()
		c.Watcher = nil
	}
	if c.Client != nil {
		c.Client.Close()
		c.Client = nil
	}
	c.State = StateDisconnected
}

// Connected reports the invariant: state Connected iff a live handle exists.
func (c *Conn) Connected() bool {
	return c.State == StateConnected && c.Client != nil
}

// FailureBackoff grows the reconnect interval by one step (capped) and arms
// the reconnect deadline.
func (c *Conn) FailureBackoff() {
	c.ReconnectInterval += backoffStep
	if c.ReconnectInterval > backoffMax {
		c.ReconnectInterval = backoffMax
	}
	c.ReconnectAt = time.Now().Add(c.ReconnectInterval)
	c.State = StateWait
	reconnectWaits.Inc()
	log.Warn().Dur("wait", c.ReconnectInterval).Msg("MPD connection failed, waiting before reconnect")
}

// ResetBackoff clears the reconnect counters after a successful connect.
func (c *Conn) ResetBackoff() {
	c.ReconnectInterval = 0
	c.ReconnectAt = time.Time{}
}

// SetBinaryLimit raises the chunk size for albumart/readpicture responses.
// Not all servers support it; failure is non-fatal.
func (c *Conn) SetBinaryLimit(limit int) {
	if limit <= 0 {
		return
	}
	if err := c.Client.Command("binarylimit %d", limit).OK(); err != nil {
		log.Debug().Err(err).Msg("binarylimit not accepted")
	}
}

// EnableTags negotiates the visible tag set: everything off, then exactly
// the wanted tags on. MPD applies each tagtypes command atomically.
func (c *Conn) EnableTags(wanted tags.Set) error {
	if !c.Feat.Tags {
		c.EnabledTags = nil
		return nil
	}
	if err := c.Client.Command("tagtypes clear").OK(); err != nil {
		return fmt.Errorf("tagtypes clear: %w", err)
	}
	enabled := make(tags.Set, 0, len(wanted))
	for _, t := range wanted {
		if err := c.Client.Command("tagtypes enable %s", t).OK(); err != nil {
			log.Warn().Str("tag", t).Err(err).Msg("Tag type not supported by server")
			continue
		}
		enabled = append(enabled, t)
	}
	c.EnabledTags = enabled
	return nil
}

// probeFeatures inspects the command list and tag types the server offers.
func (c *Conn) probeFeatures() error {
	cmds, err := c.Client.Command("commands").Strings("command")
	if err != nil {
		return fmt.Errorf("list commands: %w", err)
	}
	have := make(map[string]bool, len(cmds))
	for _, cmd := range cmds {
		have[cmd] = true
	}

	tagTypes, err := c.Client.Command("tagtypes").Strings("tagtype")
	if err != nil {
		return fmt.Errorf("list tagtypes: %w", err)
	}

	c.Feat = Features{
		Stickers:   have["sticker"],
		Tags:       len(tagTypes) > 0,
		Playlists:  have["listplaylists"],
		Smartpls:   have["listplaylists"] && have["playlistadd"],
		AlbumArt:   have["albumart"],
		Partitions: have["listpartitions"],
		// Filter expressions landed in 0.21, position args ("whence") in 0.23.3.
		AdvSearch: versionAtLeast(c.Version, [3]int{0, 21, 0}),
		Whence:    versionAtLeast(c.Version, [3]int{0, 23, 3}),
	}
	log.Debug().
		Bool("stickers", c.Feat.Stickers).
		Bool("playlists", c.Feat.Playlists).
		Bool("albumart", c.Feat.AlbumArt).
		Bool("whence", c.Feat.Whence).
		Msg("Probed MPD features")
	return nil
}

// ErrKind classifies an MPD command failure.
type ErrKind int

const (
	// ErrKindNone: nil error.
	ErrKindNone ErrKind = iota
	// ErrKindACK: the server refused the command; the connection stays
	// usable.
	ErrKindACK
	// ErrKindFatal: the connection is dead and must be recovered.
	ErrKindFatal
)

// Classify decides whether the connection survives err. gompd surfaces
// server refusals as mpd.Error; anything else means the transport broke.
func Classify(err error) ErrKind {
	if err == nil {
		return ErrKindNone
	}
	var ackErr mpd.Error
	if errors.As(err, &ackErr) {
		return ErrKindACK
	}
	var ackPtr *mpd.Error
	if errors.As(err, &ackPtr) {
		return ErrKindACK
	}
	return ErrKindFatal
}

// EscapeFilter escapes a value for use inside a single-quoted MPD filter
// expression.
func EscapeFilter(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return v
}

// versionAtLeast parses "maj.min.patch" and compares against want.
func versionAtLeast(version string, want [3]int) bool {
	parts := strings.SplitN(strings.TrimSpace(version), ".", 3)
	var v [3]int
	for i := 0; i < len(parts) && i < 3; i++ {
		n, err := strconv.Atoi(parts[i])
		if err != nil {
			return false
		}
		v[i] = n
	}
	for i := 0; i < 3; i++ {
		if v[i] != want[i] {
			return v[i] > want[i]
		}
	}
	return true
}
