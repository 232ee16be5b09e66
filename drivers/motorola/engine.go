package motorola

import (
	"errors"

	"railcode-go/errcode"
	"railcode-go/hal"
	"railcode-go/x/irq"
)

// Config wires an Engine to its hardware.
type Config struct {
	Timer hal.Timer  // PWM generator driving the data line
	Go    hal.Pin    // rail power enable, active low
	Fault hal.IRQPin // booster fault input, rising edge stops output
	IRQ   irq.Mask   // critical sections shared with the timer interrupt
}

// Validate checks that every seam is present.
func (c Config) Validate() error {
	if c.Timer == nil {
		return errors.New("Timer must be set")
	}
	if c.Go == nil {
		return errors.New("Go pin must be set")
	}
	if c.Fault == nil {
		return errors.New("Fault pin must be set")
	}
	if c.IRQ == nil {
		return errors.New("IRQ mask must be set")
	}
	return nil
}

// Cursor is the playback position. The timer interrupt owns it.
type Cursor struct {
	Slot    int     // slot of the packet being sent
	Bit     int     // 0..BitCountMsg-1
	Gap     bool    // second repetition (followed by the wait)
	Message Message // snapshot taken when the slot was loaded
	Speed   Speed
	Idle    bool // no slot was enabled at load time
}

// Engine is the track signal generator.
type Engine struct {
	timer hal.Timer
	goPin hal.Pin
	fault hal.IRQPin
	irq   irq.Mask

	msgs    [SlotCount]Message
	enabled uint8
	fast    uint8
	oneShot uint8

	running bool
	cur     Cursor

	faults uint32
	loads  [SlotCount]uint32
}

// New constructs an Engine with an empty table.
func New(cfg Config) *Engine {
	e := &Engine{
		timer: cfg.Timer,
		goPin: cfg.Go,
		fault: cfg.Fault,
		irq:   cfg.IRQ,
	}
	if e.irq == nil {
		e.irq = irq.Default()
	}
	for i := range e.msgs {
		e.msgs[i] = IdleMessage
	}
	return e
}

// Start arms the timer and switches the rails on. It may be called again
// after a fault to resume output; the message table is kept.
func (e *Engine) Start() error {
	// Rails stay off until the generator runs.
	if err := e.goPin.ConfigureOutput(true); err != nil {
		return errcode.Wrap("motorola.start", err)
	}
	if err := e.fault.ConfigureInput(hal.PullNone); err != nil {
		return errcode.Wrap("motorola.start", err)
	}
	if err := e.fault.SetIRQ(hal.EdgeRising, e.onFault); err != nil {
		return errcode.Wrap("motorola.start", err)
	}

	st := e.irq.Disable()
	e.cur = Cursor{Slot: SlotCount - 1}
	e.loadNext()
	if err := e.timer.Configure(startTicks, 0, e.onOverflow); err != nil {
		e.irq.Restore(st)
		return errcode.Wrap("motorola.start", err)
	}
	e.running = true
	e.irq.Restore(st)

	e.goPin.Set(false)
	return nil
}

// Running reports whether the generator is producing output.
func (e *Engine) Running() bool {
	st := e.irq.Disable()
	r := e.running
	e.irq.Restore(st)
	return r
}

// Faults counts fault edges that stopped the generator.
func (e *Engine) Faults() uint32 {
	st := e.irq.Disable()
	n := e.faults
	e.irq.Restore(st)
	return n
}

// Playback returns a snapshot of the cursor.
func (e *Engine) Playback() Cursor {
	st := e.irq.Disable()
	c := e.cur
	e.irq.Restore(st)
	return c
}

// Loads returns how many times slot n was loaded for transmission.
func (e *Engine) Loads(n int) uint32 {
	if !inRange(n) {
		return 0
	}
	st := e.irq.Disable()
	v := e.loads[n]
	e.irq.Restore(st)
	return v
}

func inRange(n int) bool { return n >= 0 && n < SlotCount }

func bit(n int) uint8 { return 1 << uint(n) }

// SetMessage stores m in slot n. A packet already being sent is not changed;
// the new one goes out at the slot's next load.
func (e *Engine) SetMessage(n int, m Message) {
	if !inRange(n) {
		return
	}
	st := e.irq.Disable()
	e.msgs[n] = m
	e.irq.Restore(st)
}

// Message returns slot n, or IdleMessage for an invalid slot.
func (e *Engine) Message(n int) Message {
	if !inRange(n) {
		return IdleMessage
	}
	st := e.irq.Disable()
	m := e.msgs[n]
	e.irq.Restore(st)
	return m
}

func (e *Engine) Enable(n int) {
	if !inRange(n) {
		return
	}
	st := e.irq.Disable()
	e.enabled |= bit(n)
	e.irq.Restore(st)
}

func (e *Engine) Disable(n int) {
	if !inRange(n) {
		return
	}
	st := e.irq.Disable()
	e.enabled &^= bit(n)
	e.irq.Restore(st)
}

// DisableAll empties the rotation; the idle packet follows the current one.
func (e *Engine) DisableAll() {
	st := e.irq.Disable()
	e.enabled = 0
	e.irq.Restore(st)
}

func (e *Engine) Enabled(n int) bool {
	if !inRange(n) {
		return false
	}
	st := e.irq.Disable()
	on := e.enabled&bit(n) != 0
	e.irq.Restore(st)
	return on
}

// EnabledMask returns the enabled bit of every slot.
func (e *Engine) EnabledMask() uint8 {
	st := e.irq.Disable()
	m := e.enabled
	e.irq.Restore(st)
	return m
}

func (e *Engine) SetSpeed(n int, s Speed) {
	if !inRange(n) {
		return
	}
	st := e.irq.Disable()
	if s == Fast {
		e.fast |= bit(n)
	} else {
		e.fast &^= bit(n)
	}
	e.irq.Restore(st)
}

// SetOneShot marks slot n to disable itself once loaded.
func (e *Engine) SetOneShot(n int, oneShot bool) {
	if !inRange(n) {
		return
	}
	st := e.irq.Disable()
	if oneShot {
		e.oneShot |= bit(n)
	} else {
		e.oneShot &^= bit(n)
	}
	e.irq.Restore(st)
}

// onOverflow runs at the start of every period. It programs the length of
// the period just started and the mark of the bit it carries.
func (e *Engine) onOverflow() {
	if !e.running {
		return
	}
	top := periodTicks(e.cur.Speed)
	if e.cur.Bit >= BitCountMsg-1 {
		if e.cur.Gap {
			top *= BitCountWait + 1
			e.loadNext()
		} else {
			top *= BitCountGap + 1
		}
		e.cur.Gap = !e.cur.Gap
		e.cur.Bit = 0
	} else {
		e.cur.Bit++
	}
	one := (e.cur.Message>>uint(e.cur.Bit))&1 != 0
	e.timer.SetTop(top)
	e.timer.SetCompare(markTicks(one, e.cur.Speed))
}

// loadNext picks the next enabled slot after the current one. Caller holds
// the critical section or runs in the timer interrupt.
func (e *Engine) loadNext() {
	if e.enabled == 0 {
		e.cur.Message = IdleMessage
		e.cur.Speed = IdleSpeed
		e.cur.Idle = true
		return
	}
	var mask uint8
	for {
		e.cur.Slot = (e.cur.Slot + 1) % SlotCount
		mask = bit(e.cur.Slot)
		if e.enabled&mask != 0 {
			break
		}
	}
	if e.oneShot&mask != 0 {
		e.enabled &^= mask
	}
	e.cur.Message = e.msgs[e.cur.Slot]
	e.cur.Speed = Speed(e.fast&mask != 0)
	e.cur.Idle = false
	e.loads[e.cur.Slot]++
}

// onFault switches the rails off. Output stays off until Start.
func (e *Engine) onFault() {
	if !e.running {
		return
	}
	e.running = false
	e.faults++
	e.goPin.Set(true)
}
