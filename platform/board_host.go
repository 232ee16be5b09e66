//go:build !rp2040

package platform

import (
	"railcode-go/drivers/mcp2515/mcpsim"
	"railcode-go/hal"
	"railcode-go/x/irq"
)

// Sim is a board made of fakes: a recording timer, fake pins and a
// register-level MCP2515. Everything runs on the caller's goroutine.
type Sim struct {
	Board
	Timer *hal.FakeTimer
	GoPin *hal.FakePin
	Fault *hal.FakePin
	CS    *hal.FakePin
	Chip  *mcpsim.Chip
	Mask  *irq.Sim
}

// NewSim builds a simulated board with the Pico pin numbering.
func NewSim() *Sim {
	s := &Sim{
		Timer: &hal.FakeTimer{},
		GoPin: hal.NewFakePin(PinGo, true),
		Fault: hal.NewFakePin(PinFault, false),
		CS:    hal.NewFakePin(PinCS, true),
		Chip:  mcpsim.New(),
		Mask:  irq.NewSim(),
	}
	s.Board = Board{
		Name:  "sim",
		Timer: s.Timer,
		Go:    s.GoPin,
		Fault: s.Fault,
		SPI:   s.Chip,
		CS:    s.CS,
		INT:   s.Chip.INT,
		IRQ:   s.Mask,
	}
	return s
}

// Open returns a simulated board on host builds.
func Open() (*Board, error) {
	return &NewSim().Board, nil
}
