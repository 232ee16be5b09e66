// Package hal holds the hardware seams the drivers are written against:
// GPIO lines with edge interrupts and a PWM timer with an overflow interrupt.
// Concrete implementations live in platform (MCU) and in this package's fakes
// (host).
package hal

type Pull uint8

const (
	PullNone Pull = iota
	PullUp
	PullDown
)

// Pin is a GPIO line.
type Pin interface {
	ConfigureInput(pull Pull) error
	ConfigureOutput(initial bool) error
	Set(level bool)
	Get() bool
}

// Edge selection for IRQ.
type Edge uint8

const (
	EdgeNone Edge = iota
	EdgeRising
	EdgeFalling
	EdgeBoth
)

func (e Edge) String() string {
	switch e {
	case EdgeRising:
		return "rising"
	case EdgeFalling:
		return "falling"
	case EdgeBoth:
		return "both"
	default:
		return "none"
	}
}

// IRQPin extends Pin with interrupts. The handler runs in interrupt context.
type IRQPin interface {
	Pin
	SetIRQ(edge Edge, handler func()) error
	ClearIRQ() error
}

// Timer is a PWM generator whose counter runs from zero to Top. The output is
// high while the counter is below Compare. Values are in ticks of 0.5 µs.
//
// Top and Compare written from the overflow handler take effect for the period
// that starts at that overflow.
type Timer interface {
	// Configure starts the counter with the given period and compare value and
	// arms onOverflow, which runs in interrupt context at every wrap.
	Configure(top, compare uint32, onOverflow func()) error
	SetTop(top uint32)
	SetCompare(compare uint32)
}

// TickNs is the duration of one Timer tick.
const TickNs = 500
