package mcp2515

import (
	"errors"
	"time"

	"tinygo.org/x/drivers"

	"railcode-go/can"
	"railcode-go/errcode"
	"railcode-go/hal"
	"railcode-go/x/irq"
	"railcode-go/x/ring"
	"railcode-go/x/timex"
)

// Queue sizes in slots. Each ring keeps one slot free.
const (
	TxQueueSize  = 16
	RxQueueSize  = 16
	ErrQueueSize = 4
)

// MessageHandler receives an inbound frame. The pointer refers to the queue
// slot and is only valid for the duration of the call.
type MessageHandler func(f *can.Frame)

// ErrorHandler receives a controller error event. The pointer is only valid
// for the duration of the call.
type ErrorHandler func(e *ErrorEvent)

// ErrorEvent is an error interrupt with the EFLG snapshot taken when it fired.
type ErrorEvent struct {
	TsMs  int64
	Flags byte
}

// Config wires a Device to its bus and lines.
type Config struct {
	SPI drivers.SPI
	CS  hal.Pin    // chip select, active low
	INT hal.IRQPin // interrupt output of the chip, active low
	IRQ irq.Mask

	Timing Timing

	// Clock stamps received frames and error events in Unix ms.
	Clock func() int64
	// Sleep is used once, after the reset instruction.
	Sleep      func(time.Duration)
	ResetDelay time.Duration
	// ModePollLimit bounds the CANSTAT reads made while waiting for a mode
	// change.
	ModePollLimit int
}

// DefaultConfig returns 100 kbit/s timing for a 16 MHz crystal and the host
// clock. Bus and pins are left for the caller.
func DefaultConfig() Config {
	return Config{
		Timing:        Timing100k16MHz,
		Clock:         timex.NowMs,
		Sleep:         time.Sleep,
		ResetDelay:    100 * time.Millisecond,
		ModePollLimit: 1000,
	}
}

func (c Config) Validate() error {
	if c.SPI == nil {
		return errors.New("SPI must be set")
	}
	if c.CS == nil {
		return errors.New("CS pin must be set")
	}
	if c.INT == nil {
		return errors.New("INT pin must be set")
	}
	if c.ModePollLimit < 0 {
		return errors.New("ModePollLimit must be >= 0")
	}
	return nil
}

// Stats is a snapshot of the queues and counters.
type Stats struct {
	TxQueued  int
	RxQueued  int
	ErrQueued int
	InFlight  bool
	RxDrops   uint32
	ErrDrops  uint32
	SPIErrors uint32
	Sent      uint32
	Received  uint32
}

// Device is one MCP2515 controller.
type Device struct {
	spi    drivers.SPI
	cs     hal.Pin
	intr   hal.IRQPin
	irq    irq.Mask
	timing Timing
	clock  func() int64
	sleep  func(time.Duration)
	delay  time.Duration
	polls  int

	tx   *ring.Ring[can.Frame]
	rx   *ring.Ring[can.Frame]
	errs *ring.Ring[ErrorEvent]

	onMsg MessageHandler
	onErr ErrorHandler

	sending      bool // a frame is in TXB0
	reserving    bool // a PrepareMessage slot is open
	resState     irq.State
	drainingRx   bool
	drainingErrs bool

	sent, received, spiErrors uint32

	// Scratch buffers, one set per context so an interrupt never overwrites a
	// transfer the foreground is assembling.
	fgW, fgR   [18]byte
	isrW, isrR [14]byte
	txW        [14]byte
}

// New allocates the queues. Nothing touches the bus until Start.
func New(cfg Config) *Device {
	def := DefaultConfig()
	if cfg.Timing == (Timing{}) {
		cfg.Timing = def.Timing
	}
	if cfg.Clock == nil {
		cfg.Clock = def.Clock
	}
	if cfg.Sleep == nil {
		cfg.Sleep = def.Sleep
	}
	if cfg.ModePollLimit == 0 {
		cfg.ModePollLimit = def.ModePollLimit
	}
	if cfg.IRQ == nil {
		cfg.IRQ = irq.Default()
	}
	return &Device{
		spi:    cfg.SPI,
		cs:     cfg.CS,
		intr:   cfg.INT,
		irq:    cfg.IRQ,
		timing: cfg.Timing,
		clock:  cfg.Clock,
		sleep:  cfg.Sleep,
		delay:  cfg.ResetDelay,
		polls:  cfg.ModePollLimit,
		tx:     ring.New[can.Frame](TxQueueSize, ring.DropNewest),
		rx:     ring.New[can.Frame](RxQueueSize, ring.DropNewest),
		errs:   ring.New[ErrorEvent](ErrQueueSize, ring.DropNewest),
	}
}

// Start empties the queues, installs the handlers, resets the chip, loads the
// register image and waits for normal mode. Either handler may be nil.
func (d *Device) Start(onMsg MessageHandler, onErr ErrorHandler) error {
	st := d.irq.Disable()
	d.tx.Reset()
	d.rx.Reset()
	d.errs.Reset()
	d.sending, d.reserving = false, false
	d.drainingRx, d.drainingErrs = false, false
	d.onMsg, d.onErr = onMsg, onErr
	d.irq.Restore(st)

	if err := d.cs.ConfigureOutput(true); err != nil {
		return errcode.Wrap("mcp2515.start", err)
	}
	if err := d.intr.ConfigureInput(hal.PullUp); err != nil {
		return errcode.Wrap("mcp2515.start", err)
	}
	if err := d.intr.SetIRQ(hal.EdgeFalling, d.onInterrupt); err != nil {
		return errcode.Wrap("mcp2515.start", err)
	}

	d.fgW[0] = instrReset
	if err := d.xfer(d.fgW[:1], nil); err != nil {
		return errcode.Wrap("mcp2515.reset", err)
	}
	if d.delay > 0 {
		d.sleep(d.delay)
	}

	for row := range initImage {
		w := d.fgW[:2+len(initImage[row])]
		w[0], w[1] = instrWrite, byte(row*16)
		copy(w[2:], initImage[row][:])
		if row == rowCNF {
			w[2+colCNF3] = d.timing.CNF3
			w[2+colCNF2] = d.timing.CNF2
			w[2+colCNF1] = d.timing.CNF1
		}
		if err := d.xfer(w, nil); err != nil {
			return errcode.Wrap("mcp2515.init", err)
		}
	}
	return d.SetMode(ModeNormal)
}

// SetMode requests an operating mode and polls CANSTAT until the chip reports
// it, giving up after ModePollLimit reads.
func (d *Device) SetMode(m Mode) error {
	want := m.bits()
	w := d.fgW[:3]
	w[0], w[1], w[2] = instrWrite, regCANCTRL, want
	if err := d.xfer(w, nil); err != nil {
		return errcode.Wrap("mcp2515.mode", err)
	}
	for i := 0; i < d.polls; i++ {
		w[0], w[1], w[2] = instrRead, regCANSTAT, 0
		if err := d.xfer(w, d.fgR[:3]); err != nil {
			return errcode.Wrap("mcp2515.mode", err)
		}
		if d.fgR[2]&0xE0 == want {
			return nil
		}
	}
	return &errcode.E{C: errcode.Timeout, Op: "mcp2515.mode", Msg: m.String()}
}

// SetStdFilter accepts only standard frames whose identifier matches id under
// mask. The chip is taken through configuration mode and back to normal.
func (d *Device) SetStdFilter(id, mask uint16) error {
	if err := d.SetMode(ModeConfig); err != nil {
		return err
	}
	fh, fl := stdIDBytes(uint32(id))
	mh, ml := stdIDBytes(uint32(mask))
	if err := d.writeRegs(regRXF0SIDH, fh, fl); err != nil {
		return err
	}
	if err := d.writeRegs(regRXM0SIDH, mh, ml); err != nil {
		return err
	}
	if err := d.writeRegs(regRXB0CTRL, rxbFiltered); err != nil {
		return err
	}
	return d.SetMode(ModeNormal)
}

// SetExtFilter accepts only extended frames whose identifier matches id
// under mask.
func (d *Device) SetExtFilter(id, mask uint32) error {
	if err := d.SetMode(ModeConfig); err != nil {
		return err
	}
	f := extIDBytes(id)
	m := extIDBytes(mask)
	if err := d.writeRegs(regRXF0SIDH, f[0], f[1], f[2], f[3]); err != nil {
		return err
	}
	if err := d.writeRegs(regRXM0SIDH, m[0], m[1], m[2], m[3]); err != nil {
		return err
	}
	if err := d.writeRegs(regRXB0CTRL, rxbFiltered); err != nil {
		return err
	}
	return d.SetMode(ModeNormal)
}

// ClearReceiveFilter restores the default: RXF0 expects extended frames and
// RXB0 accepts any standard frame.
func (d *Device) ClearReceiveFilter() error {
	if err := d.SetMode(ModeConfig); err != nil {
		return err
	}
	if err := d.writeRegs(regRXF0SIDH, 0x00, sidlEXIDE); err != nil {
		return err
	}
	if err := d.writeRegs(regRXB0CTRL, rxbStdOnly); err != nil {
		return err
	}
	return d.SetMode(ModeNormal)
}

func (d *Device) writeRegs(addr byte, vals ...byte) error {
	w := d.fgW[:2+len(vals)]
	w[0], w[1] = instrWrite, addr
	copy(w[2:], vals)
	return errcode.Wrap("mcp2515.write", d.xfer(w, nil))
}

// PrepareMessage reserves the next outbound slot and returns it for the
// caller to fill, or nil when the queue is full. Interrupts stay disabled
// until CommitMessage or CancelMessage. A second call before either returns
// the same slot.
func (d *Device) PrepareMessage() *can.Frame {
	st := d.irq.Disable()
	f := d.tx.Reserve()
	if f == nil {
		d.irq.Restore(st)
		return nil
	}
	if d.reserving {
		// The first reservation already holds the section.
		d.irq.Restore(st)
		return f
	}
	d.reserving = true
	d.resState = st
	return f
}

// CommitMessage queues the frame returned by PrepareMessage and starts
// transmission if the chip is idle. It returns false, and changes nothing,
// when f is not the reserved slot; the reservation then stays open.
func (d *Device) CommitMessage(f *can.Frame) bool {
	st := d.irq.Disable()
	if !d.reserving || !d.tx.Reserved(f) {
		d.irq.Restore(st)
		return false
	}
	d.tx.Commit()
	if !d.sending {
		d.startNext()
	}
	d.reserving = false
	d.irq.Restore(st)
	d.irq.Restore(d.resState)
	return true
}

// CancelMessage drops an open reservation and re-enables interrupts.
func (d *Device) CancelMessage() {
	st := d.irq.Disable()
	if !d.reserving {
		d.irq.Restore(st)
		return
	}
	d.reserving = false
	d.irq.Restore(st)
	d.irq.Restore(d.resState)
}

// Send copies f into the queue. It reports errcode.QueueFull when there is no
// room.
func (d *Device) Send(f can.Frame) error {
	slot := d.PrepareMessage()
	if slot == nil {
		return errcode.QueueFull
	}
	*slot = f
	if !d.CommitMessage(slot) {
		d.CancelMessage()
		return errcode.StaleReservation
	}
	return nil
}

// InFlight reports whether a frame is loaded in the transmit buffer.
func (d *Device) InFlight() bool {
	st := d.irq.Disable()
	b := d.sending
	d.irq.Restore(st)
	return b
}

func (d *Device) Stats() Stats {
	st := d.irq.Disable()
	s := Stats{
		TxQueued:  d.tx.Len(),
		RxQueued:  d.rx.Len(),
		ErrQueued: d.errs.Len(),
		InFlight:  d.sending,
		RxDrops:   d.rx.Drops(),
		ErrDrops:  d.errs.Drops(),
		SPIErrors: d.spiErrors,
		Sent:      d.sent,
		Received:  d.received,
	}
	d.irq.Restore(st)
	return s
}

// xfer runs one SPI transaction framed by chip select inside a critical
// section.
func (d *Device) xfer(w, r []byte) error {
	st := d.irq.Disable()
	d.cs.Set(false)
	err := d.spi.Tx(w, r)
	d.cs.Set(true)
	if err != nil {
		d.spiErrors++
	}
	d.irq.Restore(st)
	return err
}
