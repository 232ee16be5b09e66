// Package config resolves the board configuration compiled into the image
// and publishes it as retained messages under "config/".
package config

import (
	"context"
	"encoding/json"
	"errors"

	"railcode-go/bus"
	"railcode-go/types"
)

// -----------------------------------------------------------------------------
// String constants (live in flash, not RAM)
// -----------------------------------------------------------------------------

const (
	serviceName  = "config"
	configPrefix = "config"
	CtxDeviceKey = "device" // context key used for device ID
)

var (
	TopicStation   = bus.T(configPrefix, "station")
	TopicGateway   = bus.T(configPrefix, "gateway")
	TopicHeartbeat = bus.T(configPrefix, "heartbeat")
)

// EmbeddedConfigLookup allows overriding how configs are resolved.
var EmbeddedConfigLookup = func(device string) ([]byte, bool) {
	b, ok := embeddedConfigs[device]
	return b, ok
}

// Load decodes and checks the embedded configuration for device.
func Load(device string) (types.StationConfig, error) {
	var cfg types.StationConfig
	raw, ok := EmbeddedConfigLookup(device)
	if !ok || len(raw) == 0 {
		return cfg, errors.New("no embedded config for device: " + device)
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return cfg, err
	}
	if cfg.Board == "" {
		cfg.Board = device
	}
	return cfg, Validate(cfg)
}

// Validate rejects settings the drivers cannot honour.
func Validate(c types.StationConfig) error {
	switch c.CAN.Bitrate {
	case 0, 100000, 125000, 250000:
	default:
		return errors.New("can.bitrate must be 100000, 125000 or 250000")
	}
	if c.LocoSlots < 0 || c.LocoSlots > 7 {
		return errors.New("loco_slots must be within 0..7")
	}
	if c.StatusIntervalMs < 0 || c.PollIntervalMs < 0 || c.Heartbeat.IntervalMs < 0 {
		return errors.New("intervals must not be negative")
	}
	if f := c.CAN.Filter; f != nil {
		limit := uint32(0x7FF)
		if f.Extended {
			limit = 0x1FFFFFFF
		}
		if f.ID > limit || f.Mask > limit {
			return errors.New("can.filter id or mask out of range")
		}
	}
	if c.Gateway.Enabled && c.Gateway.Bus == "" {
		return errors.New("gateway.bus must be set when enabled")
	}
	return nil
}

// -----------------------------------------------------------------------------
// Config Service
// -----------------------------------------------------------------------------

type ConfigService struct {
	Name string
}

func NewConfigService() *ConfigService {
	return &ConfigService{Name: serviceName}
}

// publishConfig loads the device config and publishes its sections as
// retained messages.
func (s *ConfigService) publishConfig(ctx context.Context, conn *bus.Connection) error {
	device, _ := ctx.Value(CtxDeviceKey).(string)
	if device == "" {
		return errors.New("missing device ID in context")
	}
	cfg, err := Load(device)
	if err != nil {
		return err
	}
	conn.Publish(conn.NewMessage(TopicStation, cfg, true))
	conn.Publish(conn.NewMessage(TopicGateway, cfg.Gateway, true))
	conn.Publish(conn.NewMessage(TopicHeartbeat, cfg.Heartbeat, true))
	return nil
}

// Start publishes the configuration in a goroutine.
func (s *ConfigService) Start(ctx context.Context, conn *bus.Connection) {
	go func() {
		if err := s.publishConfig(ctx, conn); err != nil {
			println("[config] " + err.Error())
		}
	}()
}
