// Package platform binds the drivers to a board: the PWM timer and rail
// lines for the track signal, and the SPI bus and lines of the CAN
// controller.
package platform

import (
	"errors"

	"tinygo.org/x/drivers"

	"railcode-go/drivers/mcp2515"
	"railcode-go/drivers/motorola"
	"railcode-go/hal"
	"railcode-go/types"
	"railcode-go/x/irq"
)

// Board is the hardware one station runs on.
type Board struct {
	Name string

	Timer hal.Timer  // track data line
	Go    hal.Pin    // booster enable, active low
	Fault hal.IRQPin // booster fault

	SPI drivers.SPI // MCP2515
	CS  hal.Pin
	INT hal.IRQPin

	IRQ irq.Mask
}

// EngineConfig wires a timing engine to the board.
func (b *Board) EngineConfig() motorola.Config {
	return motorola.Config{Timer: b.Timer, Go: b.Go, Fault: b.Fault, IRQ: b.IRQ}
}

// CANConfig wires a controller to the board at the configured bit rate.
func (b *Board) CANConfig(c types.CANConfig) (mcp2515.Config, error) {
	cfg := mcp2515.DefaultConfig()
	t, err := TimingFor(c.Bitrate)
	if err != nil {
		return cfg, err
	}
	cfg.Timing = t
	cfg.SPI, cfg.CS, cfg.INT, cfg.IRQ = b.SPI, b.CS, b.INT, b.IRQ
	return cfg, cfg.Validate()
}

// TimingFor maps a bit rate to MCP2515 timing for the 16 MHz crystal. Zero
// selects 100 kbit/s.
func TimingFor(bitrate uint32) (mcp2515.Timing, error) {
	switch bitrate {
	case 0, 100000:
		return mcp2515.Timing100k16MHz, nil
	case 125000:
		return mcp2515.Timing125k16MHz, nil
	case 250000:
		return mcp2515.Timing250k16MHz, nil
	}
	return mcp2515.Timing{}, errors.New("unsupported CAN bit rate")
}

// ApplyFilter programs the acceptance filter from the board configuration.
func ApplyFilter(d *mcp2515.Device, f *types.CANFilter) error {
	switch {
	case f == nil:
		return nil
	case f.Extended:
		return d.SetExtFilter(f.ID, f.Mask)
	default:
		return d.SetStdFilter(uint16(f.ID), uint16(f.Mask))
	}
}
