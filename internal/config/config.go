// Package config loads the optional mediamirror configuration file,
// which supplies persistent defaults for command-line flags.
package config

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the optional mediamirror configuration file.
type Config struct {
	Defaults DefaultsConfig `toml:"defaults"`
}

// DefaultsConfig holds persistent flag defaults. Pointer fields
// distinguish "unset" from a zero value.
type DefaultsConfig struct {
	MaxDimension *int     `toml:"max-dimension"`
	AcceptRatio  *float64 `toml:"accept-ratio"`
	Quality      *int     `toml:"quality"`
	FFmpeg       *string  `toml:"ffmpeg"`
	Magick       *string  `toml:"magick"`
	NoHWAccel    *bool    `toml:"no-hwaccel"`
	Verify       *bool    `toml:"verify"`
	Exclude      []string `toml:"exclude"`
}

// Path returns the resolved path to the config file.
func Path() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "mediamirror", "config.toml")
}

// Load reads the config file from the XDG path. Returns a zero Config
// (no error) if the file does not exist. Config is always optional.
func Load() (Config, error) {
	path := Path()
	if path == "" {
		return Config{}, nil
	}

	var cfg Config
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Config{}, nil
		}
		return Config{}, err
	}
	return cfg, nil
}
