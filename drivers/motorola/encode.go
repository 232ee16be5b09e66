package motorola

import (
	"railcode-go/errcode"
	"railcode-go/x/mathx"
)

// Trit symbols. Each ternary digit occupies two line bits; pair 10 never
// appears on the wire.
const (
	tritZero  = 0b00
	tritOne   = 0b11
	tritOpen  = 0b01
	tritWrong = 0b10
)

var trits = [3]uint8{tritZero, tritOne, tritOpen}

// AddressToLineBits encodes a decoder address as four trits, least
// significant digit first. Address 80 is sent as 0 and anything outside
// 0..80 becomes IdleAddress.
func AddressToLineBits(address int) uint8 {
	if address == 80 {
		address = 0
	}
	if address < 0 || address > 80 {
		address = IdleAddress
	}
	var enc uint8
	d := address
	for i := 0; i < 4; i++ {
		enc |= trits[d%3] << (2 * i)
		d /= 3
	}
	return enc
}

// LineBitsToAddress decodes four trits back into an address in 0..80.
func LineBitsToAddress(bits uint8) (int, error) {
	addr := 0
	mul := 1
	for i := 0; i < 4; i++ {
		var digit int
		switch (bits >> (2 * i)) & 0b11 {
		case tritZero:
			digit = 0
		case tritOne:
			digit = 1
		case tritOpen:
			digit = 2
		default:
			return 0, errcode.InvalidPayload
		}
		addr += digit * mul
		mul *= 3
	}
	return addr, nil
}

// doubled spreads the low n bits of v so that each becomes 11 or 00.
func doubled(v uint8, n int) uint8 {
	var enc uint8
	for i := 0; i < n; i++ {
		if v&(1<<i) != 0 {
			enc |= tritOne << (2 * i)
		}
	}
	return enc
}

// SpeedToLineBits encodes a speed step 0..15; higher values clamp to 15.
func SpeedToLineBits(speed uint8) uint8 {
	return doubled(mathx.Min(speed, MaxSpeed), 4)
}

// SwitchStateToLineBits encodes a turnout sub-address (0..7) and its coil
// state in the speed field position.
func SwitchStateToLineBits(sub uint8, on bool) uint8 {
	enc := doubled(sub, 3)
	if on {
		enc |= tritOne << 6
	}
	return enc
}

// TrainMessage builds a locomotive packet in the original Motorola format.
func TrainMessage(address int, function bool, speed uint8) Message {
	var m Message
	m |= Message(SpeedToLineBits(speed)) << speedShift
	if function {
		m |= tritOne << functionShift
	}
	m |= Message(AddressToLineBits(address))
	return m
}

// SwitchMessage builds a turnout decoder packet.
func SwitchMessage(decoder int, sub uint8, on bool) Message {
	var m Message
	m |= Message(SwitchStateToLineBits(sub, on)) << speedShift
	m |= Message(AddressToLineBits(decoder))
	return m
}

// Valid reports whether every bit pair of m is a legal trit symbol.
func (m Message) Valid() bool {
	for i := 0; i < BitCountMsg; i += 2 {
		if (m>>i)&0b11 == tritWrong {
			return false
		}
	}
	return m>>BitCountMsg == 0
}

// Address returns the decoder address carried by m.
func (m Message) Address() (int, error) {
	return LineBitsToAddress(uint8(m))
}
