// Package mcpsim models an MCP2515 at register level behind the
// tinygo.org/x/drivers SPI interface, for host tests and the railctl
// simulator.
//
// The model is driven from one goroutine. Bus-side events (a transmission
// completing, a frame arriving, an error) are raised by calling CompleteTx,
// Inject or RaiseError; the chip never asserts INT from inside Tx.
package mcpsim

import (
	"railcode-go/can"
	"railcode-go/hal"
)

// Register addresses the model gives behaviour to.
const (
	regCANSTAT  = 0x0E
	regCANCTRL  = 0x0F
	regCANINTE  = 0x2B
	regCANINTF  = 0x2C
	regEFLG     = 0x2D
	regTXB0CTRL = 0x30
	regTXB0SIDH = 0x31
	regRXB0CTRL = 0x60
	regRXB0SIDH = 0x61

	intRX0IF = 0x01
	intTX0IF = 0x04
	intERRIF = 0x20

	txreq = 0x08
)

// Mode values as in CANSTAT.OPMOD.
const (
	ModeNormal   = 0
	ModeLoopback = 2
	ModeConfig   = 4
)

// Chip is the simulated controller.
type Chip struct {
	regs [128]byte
	mode byte
	req  byte

	// INT is the active-low interrupt output. Wire it as the driver's INT pin.
	INT *hal.FakePin

	// ModeDelay is the number of CANSTAT reads before a requested mode takes
	// effect. Stuck keeps the chip in its current mode forever.
	ModeDelay int
	Stuck     bool
	countdown int

	// Sent holds every frame whose transmission was requested, in order.
	Sent []can.Frame
	// Overruns counts frames lost to a full RXB0, Rejected those the
	// acceptance filters turned away.
	Overruns, Rejected int

	txPending bool
	txFrame   can.Frame

	Transactions int
	Resets       int
	CANSTATReads int
}

// New returns a chip in its power-on state.
func New() *Chip {
	c := &Chip{INT: hal.NewFakePin(-1, true)}
	c.reset()
	return c
}

func (c *Chip) reset() {
	for i := range c.regs {
		c.regs[i] = 0
	}
	c.mode, c.req = ModeConfig, ModeConfig
	c.regs[regCANCTRL] = 0x87
	c.txPending = false
	c.Resets++
	c.updateINT()
}

// Tx implements drivers.SPI. Each call is one chip-select framed transaction.
func (c *Chip) Tx(w, r []byte) error {
	c.Transactions++
	if len(w) == 0 {
		return nil
	}
	out := func(i int, v byte) {
		if i < len(r) {
			r[i] = v
		}
	}
	switch op := w[0]; {
	case op == 0xC0:
		c.reset()
	case op == 0x03 && len(w) >= 2:
		addr := int(w[1])
		for i := 2; i < len(w); i++ {
			out(i, c.read(addr+i-2))
		}
	case op == 0x02 && len(w) >= 2:
		addr := int(w[1])
		for i := 2; i < len(w); i++ {
			c.write(addr+i-2, w[i])
		}
	case op == 0x40:
		for i := 1; i < len(w); i++ {
			c.regs[(regTXB0SIDH+i-1)&0x7F] = w[i]
		}
	case op&0xF8 == 0x80:
		if op&0x01 != 0 {
			c.requestTx()
		}
	case op == 0x90:
		for i := 1; i < len(w); i++ {
			out(i, c.regs[(regRXB0SIDH+i-1)&0x7F])
		}
		// Raising CS after a READ RX BUFFER clears the receive flag.
		c.regs[regCANINTF] &^= intRX0IF
	}
	c.updateINT()
	return nil
}

// Transfer implements drivers.SPI for single-byte instructions.
func (c *Chip) Transfer(b byte) (byte, error) {
	return 0, c.Tx([]byte{b}, nil)
}

func (c *Chip) read(addr int) byte {
	addr &= 0x7F
	switch addr & 0x0F {
	case 0x0E:
		c.CANSTATReads++
		c.stepMode()
		return c.mode << 5
	case 0x0F:
		return c.regs[regCANCTRL]
	}
	return c.regs[addr]
}

func (c *Chip) write(addr int, v byte) {
	addr &= 0x7F
	switch {
	case addr&0x0F == 0x0E:
		return
	case addr&0x0F == 0x0F:
		c.regs[regCANCTRL] = v
		c.req = v >> 5
		c.countdown = c.ModeDelay
		if c.countdown == 0 {
			c.stepMode()
		}
		return
	case addr == regEFLG:
		// Only the overflow bits are writable.
		c.regs[regEFLG] = c.regs[regEFLG]&0x3F | v&0xC0
		return
	case addr >= 0x28 && addr <= 0x2A && c.mode != ModeConfig:
		// Bit timing is locked outside configuration mode.
		return
	}
	c.regs[addr] = v
}

func (c *Chip) stepMode() {
	if c.Stuck || c.mode == c.req {
		return
	}
	if c.countdown > 0 {
		c.countdown--
		return
	}
	c.mode = c.req
}

// Mode reports the current operating mode.
func (c *Chip) Mode() byte { return c.mode }

// Reg returns a raw register value.
func (c *Chip) Reg(addr byte) byte { return c.regs[addr&0x7F] }

func (c *Chip) requestTx() {
	c.regs[regTXB0CTRL] |= txreq
	f := decodeBuffer(c.regs[regTXB0SIDH:regTXB0SIDH+13], false)
	c.Sent = append(c.Sent, f)
	c.txFrame = f
	c.txPending = true
}

// TxPending reports whether TXB0 holds a frame awaiting CompleteTx.
func (c *Chip) TxPending() bool { return c.txPending }

// CompleteTx finishes the pending transmission and raises TX0IF. In loopback
// mode the frame is also received. It reports false if nothing was pending.
func (c *Chip) CompleteTx() bool {
	if !c.txPending {
		return false
	}
	c.txPending = false
	c.regs[regTXB0CTRL] &^= txreq
	c.regs[regCANINTF] |= intTX0IF
	if c.mode == ModeLoopback {
		c.receive(c.txFrame)
	}
	c.updateINT()
	return true
}

// Inject delivers a frame from the bus into RXB0, subject to the receive
// mode and acceptance filters. It reports whether the frame was stored.
func (c *Chip) Inject(f can.Frame) bool {
	if c.mode == ModeConfig || c.mode == ModeLoopback {
		return false
	}
	ok := c.receive(f)
	c.updateINT()
	return ok
}

// RaiseError sets error flags in EFLG and raises ERRIF.
func (c *Chip) RaiseError(eflg byte) {
	c.regs[regEFLG] |= eflg
	c.regs[regCANINTF] |= intERRIF
	c.updateINT()
}

func (c *Chip) receive(f can.Frame) bool {
	if !c.accepts(f) {
		c.Rejected++
		return false
	}
	if c.regs[regCANINTF]&intRX0IF != 0 {
		c.Overruns++
		c.regs[regEFLG] |= 0x40
		c.regs[regCANINTF] |= intERRIF
		return false
	}
	encodeBuffer(c.regs[regRXB0SIDH:regRXB0SIDH+13], f, true)
	c.regs[regCANINTF] |= intRX0IF
	return true
}

// accepts applies RXB0CTRL.RXM and filters RXF0/RXF1 under mask RXM0.
func (c *Chip) accepts(f can.Frame) bool {
	switch (c.regs[regRXB0CTRL] >> 5) & 0x03 {
	case 3:
		return true
	case 1:
		return !f.Extended
	case 2:
		return f.Extended
	}
	mask, _ := decodeID(c.regs[0x20:0x24])
	for _, base := range []int{0x00, 0x04} {
		id, ext := decodeID(c.regs[base : base+4])
		if ext == f.Extended && (id^f.ID)&mask == 0 {
			return true
		}
	}
	return false
}

func (c *Chip) updateINT() {
	pending := c.regs[regCANINTF]&c.regs[regCANINTE] != 0
	if c.INT.Get() == !pending {
		return
	}
	c.INT.Set(!pending)
}

// decodeID reads SIDH, SIDL, EID8, EID0 as a filter or mask value.
func decodeID(b []byte) (uint32, bool) {
	if b[1]&0x08 != 0 {
		return uint32(b[0])<<21 | uint32(b[1]&0xE0)<<13 | uint32(b[1]&0x03)<<16 |
			uint32(b[2])<<8 | uint32(b[3]), true
	}
	return uint32(b[0])<<3 | uint32(b[1])>>5, false
}

// decodeBuffer reads a 13-byte buffer image (SIDH..D7).
func decodeBuffer(b []byte, rx bool) can.Frame {
	id, ext := decodeID(b)
	f := can.Frame{ID: id, Extended: ext}
	if ext || !rx {
		f.RTR = b[4]&0x40 != 0
	} else {
		f.RTR = b[1]&0x10 != 0
	}
	n := b[4] & 0x0F
	if n > can.MaxDataLen {
		n = can.MaxDataLen
	}
	f.Len = n
	if !f.RTR {
		copy(f.Data[:n], b[5:5+int(n)])
	}
	return f
}

// encodeBuffer writes f as a 13-byte receive buffer image.
func encodeBuffer(b []byte, f can.Frame, rx bool) {
	for i := range b {
		b[i] = 0
	}
	if f.Extended {
		id := f.ID & can.ExtIDMask
		b[0] = byte(id >> 21)
		b[1] = byte((id>>13)&0xE0) | 0x08 | byte((id>>16)&0x03)
		b[2] = byte(id >> 8)
		b[3] = byte(id)
	} else {
		id := f.ID & can.StdIDMask
		b[0] = byte(id >> 3)
		b[1] = byte(id << 5)
		if f.RTR && rx {
			b[1] |= 0x10
		}
	}
	n := f.Len & 0x0F
	b[4] = n
	if f.RTR && (f.Extended || !rx) {
		b[4] |= 0x40
	}
	if !f.RTR {
		copy(b[5:], f.Data[:min(int(n), can.MaxDataLen)])
	}
}
