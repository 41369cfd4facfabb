package idle

import (
	"github.com/rs/zerolog/log"

	"github.com/cadenza-audio/cadenza/internal/mympd/jukebox"
	"github.com/cadenza-audio/cadenza/internal/statefiles"
)

// Partition holds the per-partition settings persisted as scalar state
// files. Owned by the idle loop.
type Partition struct {
	Name string

	JukeboxMode   jukebox.Mode
	JukeboxTarget int
	AutoPlay      bool

	workdir string
}

// LoadPartition reads the partition state, applying defaults for missing
// files.
func LoadPartition(workdir, name string) *Partition {
	return &Partition{
		Name:          name,
		JukeboxMode:   jukebox.ParseMode(statefiles.ReadString(workdir, name, "jukebox_mode", "off")),
		JukeboxTarget: statefiles.ReadInt(workdir, name, "jukebox_target", 1),
		AutoPlay:      statefiles.ReadBool(workdir, name, "auto_play", false),
		workdir:       workdir,
	}
}

// SetJukebox updates and persists the jukebox settings.
func (p *Partition) SetJukebox(mode jukebox.Mode, target int) {
	if target < 1 {
		target = 1
	}
	p.JukeboxMode = mode
	p.JukeboxTarget = target
	if err := statefiles.Write(p.workdir, p.Name, "jukebox_mode", string(mode)); err != nil {
		log.Error().Err(err).Msg("Cannot persist jukebox mode")
	}
	if err := statefiles.WriteInt(p.workdir, p.Name, "jukebox_target", target); err != nil {
		log.Error().Err(err).Msg("Cannot persist jukebox target")
	}
}

// SetAutoPlay updates and persists the autoplay flag.
func (p *Partition) SetAutoPlay(v bool) {
	p.AutoPlay = v
	if err := statefiles.WriteBool(p.workdir, p.Name, "auto_play", v); err != nil {
		log.Error().Err(err).Msg("Cannot persist autoplay flag")
	}
}
