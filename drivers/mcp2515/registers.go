// Package mcp2515 drives a Microchip MCP2515 CAN controller over SPI.
//
// The driver keeps three bounded queues: outbound frames, inbound frames and
// controller error events. A single falling-edge interrupt from the chip moves
// frames between the queues and the chip and dispatches inbound frames and
// errors to the handlers given to Start.
package mcp2515

// SPI instructions.
const (
	instrReset  = 0xC0
	instrRead   = 0x03
	instrWrite  = 0x02
	instrLoadTX = 0x40 // TXB0, starting at TXB0SIDH
	instrRTS0   = 0x81 // request to send TXB0
	instrReadRX = 0x90 // RXB0, starting at RXB0SIDH
)

// Register addresses.
const (
	regRXF0SIDH = 0x00
	regCANSTAT  = 0x0E
	regCANCTRL  = 0x0F
	regRXM0SIDH = 0x20
	regCNF3     = 0x28
	regCNF2     = 0x29
	regCNF1     = 0x2A
	regCANINTE  = 0x2B
	regCANINTF  = 0x2C
	regEFLG     = 0x2D
	regRXB0CTRL = 0x60
)

// CANINTF bits.
const (
	intRX0IF = 0x01
	intTX0IF = 0x04
	intERRIF = 0x20
)

// EFLG bits, as reported in ErrorEvent.Flags.
const (
	EflgEWARN  = 0x01
	EflgRXWAR  = 0x02
	EflgTXWAR  = 0x04
	EflgRXEP   = 0x08
	EflgTXEP   = 0x10
	EflgTXBO   = 0x20
	EflgRX0OVR = 0x40
	EflgRX1OVR = 0x80
)

// Bits in the SIDL/DLC bytes of the transmit and receive buffers.
const (
	sidlEXIDE = 0x08
	sidlSRR   = 0x10 // standard remote request on receive
	dlcRTR    = 0x40
)

// RXB0CTRL receive modes.
const (
	rxbFiltered = 0x00
	rxbStdOnly  = 0x20
)

// Mode is a controller operating mode (CANCTRL.REQOP / CANSTAT.OPMOD).
type Mode uint8

const (
	ModeNormal   Mode = 0
	ModeSleep    Mode = 1
	ModeLoopback Mode = 2
	ModeListen   Mode = 3
	ModeConfig   Mode = 4
)

func (m Mode) String() string {
	switch m {
	case ModeNormal:
		return "normal"
	case ModeSleep:
		return "sleep"
	case ModeLoopback:
		return "loopback"
	case ModeListen:
		return "listen"
	case ModeConfig:
		return "config"
	default:
		return "unknown"
	}
}

func (m Mode) bits() byte { return byte(m&0x07) << 5 }

// Timing holds the bit timing registers.
type Timing struct {
	CNF1, CNF2, CNF3 byte
}

// Bit timings for a 16 MHz crystal: 16 time quanta per bit, sample point at
// 62.5 %, triple sampling.
var (
	Timing100k16MHz = Timing{CNF1: 0x04, CNF2: 0xF1, CNF3: 0x85}
	Timing125k16MHz = Timing{CNF1: 0x03, CNF2: 0xF1, CNF3: 0x85}
	Timing250k16MHz = Timing{CNF1: 0x01, CNF2: 0xF1, CNF3: 0x85}
)

// initImage is written to addresses 0x00..0x7F after reset, one row per
// write. Every filter expects extended frames (EXIDE set), both receive
// buffers accept standard frames only, RX0, TX0 and error interrupts are
// enabled. CANCTRL (the last byte of each row) requests configuration mode
// until the final row, which requests normal mode.
var initImage = [8][16]byte{
	// RXF0, RXF1, RXF2, BFPCTRL, TXRTSCTRL, CANSTAT, CANCTRL
	{0x00, 0x08, 0x00, 0x00, 0x00, 0x08, 0x00, 0x00, 0x00, 0x08, 0x00, 0x00, 0x00, 0x00, 0x00, 0x80},
	// RXF3, RXF4, RXF5, TEC, REC, CANSTAT, CANCTRL
	{0x00, 0x08, 0x00, 0x00, 0x00, 0x08, 0x00, 0x00, 0x00, 0x08, 0x00, 0x00, 0x00, 0x00, 0x00, 0x80},
	// RXM0, RXM1, CNF3, CNF2, CNF1, CANINTE, CANINTF, EFLG, CANSTAT, CANCTRL
	{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x85, 0xF1, 0x04, 0x25, 0x00, 0x00, 0x00, 0x80},
	// TXB0
	{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x80},
	// TXB1
	{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x80},
	// TXB2
	{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x80},
	// RXB0
	{0x20, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x80},
	// RXB1
	{0x20, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00},
}

// Offsets of the timing registers within initImage row 2.
const (
	rowCNF  = 2
	colCNF3 = regCNF3 - 0x20
	colCNF2 = regCNF2 - 0x20
	colCNF1 = regCNF1 - 0x20
)

var eflgNames = [8]string{"ewarn", "rxwar", "txwar", "rxep", "txep", "txbo", "rx0ovr", "rx1ovr"}

// FlagNames lists the EFLG bits set in flags, lowest bit first.
func FlagNames(flags byte) []string {
	var out []string
	for i, name := range eflgNames {
		if flags&(1<<uint(i)) != 0 {
			out = append(out, name)
		}
	}
	return out
}
