//go:build rp2040

package platform

import (
	"context"
	"device/rp"
	"errors"
	"io"
	"machine"
	"runtime/interrupt"

	uartx "github.com/jangala-dev/tinygo-uartx/uartx"

	"railcode-go/drivers/motorola"
	"railcode-go/hal"
	"railcode-go/services/gateway"
	"railcode-go/types"
	"railcode-go/x/irq"
)

// Open configures the Pico: the track timer on PWM slice 1, the rail lines,
// SPI0 for the CAN controller and the gateway UART dial.
func Open() (*Board, error) {
	spi := machine.SPI0
	if err := spi.Configure(machine.SPIConfig{
		Frequency: SPIFrequency,
		SCK:       machine.Pin(PinSPI0SCK),
		SDO:       machine.Pin(PinSPI0SDO),
		SDI:       machine.Pin(PinSPI0SDI),
		Mode:      0,
	}); err != nil {
		return nil, err
	}
	gateway.UARTDial = dialUART
	return &Board{
		Name:  "pico",
		Timer: newPWMTimer(machine.Pin(PinData)),
		Go:    newPin(PinGo),
		Fault: newPin(PinFault),
		SPI:   spi,
		CS:    newPin(PinCS),
		INT:   newPin(PinINT),
		IRQ:   irq.CPU{},
	}, nil
}

// -----------------------------------------------------------------------------
// Pins
// -----------------------------------------------------------------------------

type rp2Pin struct {
	p machine.Pin
	n int
}

func newPin(n int) *rp2Pin { return &rp2Pin{p: machine.Pin(n), n: n} }

func (p *rp2Pin) ConfigureInput(pull hal.Pull) error {
	mode := machine.PinInput
	switch pull {
	case hal.PullUp:
		mode = machine.PinInputPullup
	case hal.PullDown:
		mode = machine.PinInputPulldown
	}
	p.p.Configure(machine.PinConfig{Mode: mode})
	return nil
}

func (p *rp2Pin) ConfigureOutput(initial bool) error {
	p.p.Configure(machine.PinConfig{Mode: machine.PinOutput})
	p.p.Set(initial)
	return nil
}

func (p *rp2Pin) Set(level bool) { p.p.Set(level) }
func (p *rp2Pin) Get() bool      { return p.p.Get() }
func (p *rp2Pin) Number() int    { return p.n }

func (p *rp2Pin) SetIRQ(edge hal.Edge, handler func()) error {
	if handler == nil {
		return errors.New("nil handler")
	}
	return p.p.SetInterrupt(toPinChange(edge), func(machine.Pin) { handler() })
}

func (p *rp2Pin) ClearIRQ() error {
	return p.p.SetInterrupt(0, nil)
}

func toPinChange(e hal.Edge) machine.PinChange {
	switch e {
	case hal.EdgeRising:
		return machine.PinRising
	case hal.EdgeFalling:
		return machine.PinFalling
	case hal.EdgeBoth:
		return machine.PinToggle
	}
	return 0
}

// -----------------------------------------------------------------------------
// Track timer
// -----------------------------------------------------------------------------

// pwmTimer drives one PWM slice. The slice is configured once for the longest
// period the engine programs and tick values are scaled to its counter range. TOP and CC are
// double-buffered by the hardware, so values written in the wrap handler
// apply from the following wrap and the waveform trails the engine by one
// period.
type pwmTimer struct {
	pwm   pwmCtrl
	pin   machine.Pin
	slice uint8
	ch    uint8
	hwTop uint32
	fn    func()
}

// wrapTimer is the timer served by the shared wrap interrupt.
var wrapTimer *pwmTimer

func newPWMTimer(pin machine.Pin) *pwmTimer {
	slice, _ := machine.PWMPeripheral(pin)
	return &pwmTimer{pwm: pwmGroupBySlice(slice), pin: pin, slice: slice}
}

func (t *pwmTimer) Configure(top, compare uint32, onOverflow func()) error {
	if t.pwm == nil {
		return errors.New("pin has no PWM slice")
	}
	if err := t.pwm.Configure(machine.PWMConfig{Period: motorola.MaxPeriodTicks * hal.TickNs}); err != nil {
		return err
	}
	ch, err := t.pwm.Channel(t.pin)
	if err != nil {
		return err
	}
	t.ch = ch
	t.hwTop = t.pwm.Top()
	t.fn = onOverflow
	t.SetTop(top)
	t.SetCompare(compare)

	wrapTimer = t
	rp.PWM.INTR.Set(1 << t.slice)
	rp.PWM.INTE.SetBits(1 << t.slice)
	intr := interrupt.New(rp.IRQ_PWM_IRQ_WRAP, onWrap)
	intr.Enable()
	return nil
}

func (t *pwmTimer) SetTop(top uint32)         { t.pwm.SetTop(t.scale(top)) }
func (t *pwmTimer) SetCompare(compare uint32) { t.pwm.Set(t.ch, t.scale(compare)) }

func (t *pwmTimer) scale(ticks uint32) uint32 { return scaleTicks(ticks, t.hwTop) }

func onWrap(interrupt.Interrupt) {
	t := wrapTimer
	if t == nil || rp.PWM.INTS.Get()&(1<<t.slice) == 0 {
		return
	}
	rp.PWM.INTR.Set(1 << t.slice)
	if t.fn != nil {
		t.fn()
	}
}

type pwmCtrl interface {
	Configure(cfg machine.PWMConfig) error
	Channel(pin machine.Pin) (uint8, error)
	Top() uint32
	SetTop(top uint32)
	Set(channel uint8, value uint32)
}

// Select controller handle for a given slice number (0..7).
func pwmGroupBySlice(slice uint8) pwmCtrl {
	switch slice {
	case 0:
		return machine.PWM0
	case 1:
		return machine.PWM1
	case 2:
		return machine.PWM2
	case 3:
		return machine.PWM3
	case 4:
		return machine.PWM4
	case 5:
		return machine.PWM5
	case 6:
		return machine.PWM6
	case 7:
		return machine.PWM7
	}
	return nil
}

// -----------------------------------------------------------------------------
// Gateway UART
// -----------------------------------------------------------------------------

func dialUART(ctx context.Context, cfg types.SerialConfig) (io.ReadWriteCloser, error) {
	var hw *uartx.UART
	var tx, rx machine.Pin
	switch cfg.Bus {
	case "uart0":
		hw, tx, rx = uartx.UART0, machine.Pin(PinUART0TX), machine.Pin(PinUART0RX)
	case "uart1":
		hw, tx, rx = uartx.UART1, machine.UART1_TX_PIN, machine.UART1_RX_PIN
	default:
		return nil, errors.New("unknown uart " + cfg.Bus)
	}
	if err := hw.Configure(uartx.UARTConfig{BaudRate: cfg.Baud, TX: tx, RX: rx}); err != nil {
		return nil, err
	}
	if cfg.DataBits != 0 || cfg.StopBits != 0 || cfg.Parity != types.ParityNone {
		db, sb := cfg.DataBits, cfg.StopBits
		if db == 0 {
			db = 8
		}
		if sb == 0 {
			sb = 1
		}
		par := uartx.ParityNone
		switch cfg.Parity {
		case types.ParityEven:
			par = uartx.ParityEven
		case types.ParityOdd:
			par = uartx.ParityOdd
		}
		if err := hw.SetFormat(db, sb, par); err != nil {
			return nil, err
		}
	}
	ctx, cancel := context.WithCancel(ctx)
	return &uartConn{u: hw, ctx: ctx, cancel: cancel}, nil
}

// uartConn adapts uartx to io.ReadWriteCloser. Reads block until data
// arrives or the link is closed.
type uartConn struct {
	u      *uartx.UART
	ctx    context.Context
	cancel context.CancelFunc
}

func (c *uartConn) Read(b []byte) (int, error) {
	n, err := c.u.RecvSomeContext(c.ctx, b)
	if err != nil && c.ctx.Err() != nil {
		return n, io.EOF
	}
	return n, err
}

func (c *uartConn) Write(b []byte) (int, error) { return c.u.Write(b) }

func (c *uartConn) Close() error {
	c.cancel()
	return nil
}
