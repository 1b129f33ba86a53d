// Package config loads the optional ccil.toml that tunes the VM, REPL,
// and assembler. Grounded on the arm emulator's TOML-backed Config with
// a DefaultConfig constructor, flattened to CCIL's much smaller surface.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Error marks malformed configuration, as distinct from a simply-absent
// file (which is not an error — Load falls back to defaults).
type Error struct {
	Path    string
	Message string
}

func (e Error) Error() string {
	return fmt.Sprintf("config %s: %s", e.Path, e.Message)
}

// Config is CCIL's full runtime configuration surface.
type Config struct {
	VM struct {
		Debug         bool `toml:"debug"`
		MaxStackDepth int  `toml:"max_stack_depth"`
	} `toml:"vm"`

	REPL struct {
		HistoryFile string `toml:"history_file"`
		HistorySize int    `toml:"history_size"`
	} `toml:"repl"`

	Assembler struct {
		DefaultFlagsAssemblerBit bool `toml:"default_flags_assembler_bit"`
	} `toml:"assembler"`
}

// DefaultConfig returns the configuration CCIL runs with when no
// ccil.toml is present or a field is left unset.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.VM.Debug = false
	cfg.VM.MaxStackDepth = 4096
	cfg.REPL.HistoryFile = ".ccil_history"
	cfg.REPL.HistorySize = 1000
	cfg.Assembler.DefaultFlagsAssemblerBit = true
	return cfg
}

// Load reads path, returning DefaultConfig unchanged if the file does not
// exist. A malformed file is a typed Error, not a default fallback — a
// present-but-broken config should never fail silently.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, Error{Path: path, Message: err.Error()}
	}
	return cfg, nil
}
