package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"railcode-go/platform"
)

// Config is the railctl configuration file.
type Config struct {
	Interface   string        `yaml:"interface"`
	Bitrate     uint32        `yaml:"bitrate"`
	LocoSlots   int           `yaml:"loco_slots"`
	ReadTimeout time.Duration `yaml:"read_timeout"`
	Script      []string      `yaml:"script"` // sim console lines run at start
}

// DefaultConfig is used when no file is given.
func DefaultConfig() Config {
	return Config{
		Interface:   "can0",
		Bitrate:     100000,
		LocoSlots:   6,
		ReadTimeout: 500 * time.Millisecond,
	}
}

// LoadConfig reads path over the defaults. An empty path returns the
// defaults. Unknown fields are rejected.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	return parseConfig(data)
}

func parseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}
	if _, err := platform.TimingFor(cfg.Bitrate); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	if cfg.LocoSlots < 1 || cfg.LocoSlots > 7 {
		return cfg, fmt.Errorf("invalid config: loco_slots %d out of range 1..7", cfg.LocoSlots)
	}
	if cfg.ReadTimeout < 0 {
		return cfg, fmt.Errorf("invalid config: negative read_timeout")
	}
	return cfg, nil
}
