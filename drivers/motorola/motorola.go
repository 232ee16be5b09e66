// Package motorola generates the Märklin-Motorola track signal.
//
// An Engine owns a table of SlotCount packed packets and plays the enabled
// ones round-robin from the timer overflow interrupt, programming one bit per
// PWM period. Each packet is sent twice: the 18 bits, a short gap, the 18 bits
// again and a longer wait before the next slot is loaded. With no slot enabled
// the idle packet is repeated.
package motorola

// Message is a packed 18-bit packet: nine trits, bit 0 transmitted first.
type Message uint32

// Speed selects the bit period of a slot.
type Speed bool

const (
	Slow Speed = false // 208 µs per bit, locomotive decoders
	Fast Speed = true  // 104 µs per bit, turnout decoders
)

const (
	SlotCount = 8

	IdleAddress         = 81
	IdleMessage Message = 0x00055
	IdleSpeed           = Slow

	MaxSpeed = 15

	BitCountMsg  = 18
	BitCountGap  = 6
	BitCountWait = 22

	// Timer ticks (0.5 µs) per fast bit, and the mark lengths of a 1 and a 0.
	unitTicks  = 208
	markLong   = 182
	markShort  = 26
	startTicks = 2 * unitTicks

	speedShift    = 10
	functionShift = 8
)

func (s Speed) String() string {
	if s == Fast {
		return "fast"
	}
	return "slow"
}

// MaxPeriodTicks is the longest period the engine programs: the wait after a
// repeated slow packet.
const MaxPeriodTicks = (BitCountWait + 1) * 2 * unitTicks

// periodTicks is the length of one bit.
func periodTicks(s Speed) uint32 {
	if s == Fast {
		return unitTicks
	}
	return 2 * unitTicks
}

// markTicks is the high time encoding bit.
func markTicks(bit bool, s Speed) uint32 {
	m := uint32(markShort)
	if bit {
		m = markLong
	}
	if s == Slow {
		m *= 2
	}
	return m
}
