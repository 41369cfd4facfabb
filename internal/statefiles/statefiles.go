// Package statefiles reads and writes per-partition scalar state files:
// one value per file under workdir/state/<partition>/. Writes go through an
// atomic rename so readers never see a half-written value.
package statefiles

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/renameio/v2"
	"github.com/rs/zerolog/log"
)

// Dir resolves the state directory for a partition.
func Dir(workdir, partition string) string {
	return filepath.Join(workdir, "state", partition)
}

// ReadString returns the file's value or def when absent.
func ReadString(workdir, partition, name, def string) string {
	data, err := os.ReadFile(filepath.Join(Dir(workdir, partition), name))
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("state", name).Msg("Cannot read state file")
		}
		return def
	}
	return strings.TrimSpace(string(data))
}

// ReadInt returns the file's value parsed as int, or def.
func ReadInt(workdir, partition, name string, def int) int {
	v := ReadString(workdir, partition, name, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Warn().Str("state", name).Str("value", v).Msg("Corrupt numeric state file")
		return def
	}
	return n
}

// ReadBool returns the file's value parsed as bool, or def.
func ReadBool(workdir, partition, name string, def bool) bool {
	v := ReadString(workdir, partition, name, "")
	if v == "" {
		return def
	}
	return v == "true" || v == "1"
}

// Write stores value atomically, creating the partition directory on first
// use.
func Write(workdir, partition, name, value string) error {
	dir := Dir(workdir, partition)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return renameio.WriteFile(filepath.Join(dir, name), []byte(value+"\n"), 0o644)
}

// WriteInt stores a numeric value atomically.
func WriteInt(workdir, partition, name string, value int) error {
	return Write(workdir, partition, name, strconv.Itoa(value))
}

// WriteBool stores a boolean value atomically.
func WriteBool(workdir, partition, name string, value bool) error {
	return Write(workdir, partition, name, strconv.FormatBool(value))
}
