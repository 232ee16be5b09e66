package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/shlex"

	"railcode-go/can"
	"railcode-go/drivers/motorola"
	"railcode-go/hal"
	"railcode-go/services/gateway"
	"railcode-go/services/station"
	"railcode-go/types"
	"railcode-go/x/conv"
)

const consoleHelp = `commands:
  loco <addr> <speed> [on|off]   set a locomotive (function on/off)
  turnout <decoder> <sub> <on|off>
  stop | resume                  power frames
  fault                          pulse the booster fault input
  restart                        restart the track generator
  run <periods>                  advance the PWM timer
  trace [n]                      print the last n bit periods and clear
  slots                          show the message table
  status                         print state and send a status frame
  sent                           frames transmitted by the controller (SLCAN)
  error <eflg-hex>               raise a controller error
  frame <slcan>                  inject a raw frame, e.g. t0803010700
  advance <ms>                   move the clock
  quit`

var errUsage = errors.New("usage, see help")

func canConfig(cfg Config) types.CANConfig {
	return types.CANConfig{Bitrate: cfg.Bitrate}
}

// exec runs one console command.
func (s *sim) exec(line string) error {
	args, err := shlex.Split(line)
	if err != nil {
		return err
	}
	if len(args) == 0 {
		return nil
	}
	switch args[0] {
	case "help", "?":
		fmt.Fprintln(s.out, consoleHelp)
	case "quit", "exit":
		s.quit = true
	case "loco":
		if len(args) < 3 {
			return errUsage
		}
		c := station.Command{Kind: station.KindLoco}
		if c.Addr, err = strconv.Atoi(args[1]); err != nil {
			return err
		}
		if c.Speed, err = strconv.Atoi(args[2]); err != nil {
			return err
		}
		if len(args) > 3 {
			if c.Function, err = onOff(args[3]); err != nil {
				return err
			}
		}
		return s.inject(c.Frame())
	case "turnout":
		if len(args) < 4 {
			return errUsage
		}
		c := station.Command{Kind: station.KindTurnout}
		if c.Addr, err = strconv.Atoi(args[1]); err != nil {
			return err
		}
		if c.Sub, err = strconv.Atoi(args[2]); err != nil {
			return err
		}
		if c.On, err = onOff(args[3]); err != nil {
			return err
		}
		return s.inject(c.Frame())
	case "stop":
		return s.inject(station.Command{Kind: station.KindStop}.Frame())
	case "resume":
		return s.inject(station.Command{Kind: station.KindResume}.Frame())
	case "fault":
		s.board.Fault.Set(true)
		s.board.Fault.Set(false)
		fmt.Fprintln(s.out, "rails", railState(s.board.GoPin))
	case "restart":
		if err := s.eng.Start(); err != nil {
			return err
		}
		fmt.Fprintln(s.out, "rails", railState(s.board.GoPin))
	case "run":
		n, err := intArg(args, 1, 1)
		if err != nil {
			return err
		}
		s.board.Timer.Fire(n)
	case "trace":
		tr := s.board.Timer.Trace()
		n, err := intArg(args, 1, len(tr))
		if err != nil {
			return err
		}
		if n < len(tr) {
			tr = tr[len(tr)-n:]
		}
		fmt.Fprintln(s.out, renderTrace(tr))
		s.board.Timer.ResetTrace()
	case "slots":
		s.printSlots()
	case "status":
		st := s.st.State()
		fmt.Fprintf(s.out, "running=%v enabled=%08b faults=%d dropped=%d rejected=%d\n",
			st.Running, st.Enabled, st.Faults, st.Dropped, st.Rejected)
		s.st.SendStatus()
	case "sent":
		for i := range s.board.Chip.Sent {
			line := gateway.Encode(nil, &s.board.Chip.Sent[i], false)
			fmt.Fprintln(s.out, strings.TrimSuffix(string(line), "\r"))
		}
	case "error":
		if len(args) < 2 {
			return errUsage
		}
		v, ok := conv.ParseHex([]byte(args[1]))
		if !ok || v > 0xFF {
			return errors.New("eflg must be one hex byte")
		}
		s.board.Chip.RaiseError(byte(v))
	case "frame":
		if len(args) < 2 {
			return errUsage
		}
		f, err := gateway.Decode([]byte(args[1]))
		if err != nil {
			return err
		}
		return s.inject(f)
	case "advance":
		n, err := intArg(args, 1, 0)
		if err != nil {
			return err
		}
		s.nowMs += int64(n)
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
	return nil
}

func (s *sim) inject(f can.Frame) error {
	if !s.board.Chip.Inject(f) {
		return errors.New("frame not accepted by the controller")
	}
	return nil
}

func (s *sim) printSlots() {
	for n := 0; n < motorola.SlotCount; n++ {
		m := s.eng.Message(n)
		addr, err := m.Address()
		a := strconv.Itoa(addr)
		if err != nil {
			a = "?"
		}
		mark := " "
		if s.eng.Enabled(n) {
			mark = "*"
		}
		fmt.Fprintf(s.out, "%s %d addr=%s msg=%05x loads=%d\n", mark, n, a, uint32(m), s.eng.Loads(n))
	}
	cur := s.eng.Playback()
	fmt.Fprintf(s.out, "playing slot %d bit %d idle=%v\n", cur.Slot, cur.Bit, cur.Idle)
}

// renderTrace prints one character per period: the bit it carried, with a
// space after each stretched period that ends a packet. The mark of a one
// is 182 ticks fast and 364 ticks slow.
func renderTrace(tr []hal.Period) string {
	var b strings.Builder
	for _, p := range tr {
		if p.Compare == 182 || p.Compare == 364 {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
		if p.Top > 416 {
			b.WriteByte(' ')
		}
	}
	return strings.TrimSpace(b.String())
}

func railState(goPin *hal.FakePin) string {
	if goPin.Get() {
		return "off"
	}
	return "on"
}

func onOff(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "1", "true":
		return true, nil
	case "off", "0", "false":
		return false, nil
	}
	return false, fmt.Errorf("want on or off, got %q", s)
}

func intArg(args []string, i, def int) (int, error) {
	if len(args) <= i {
		return def, nil
	}
	return strconv.Atoi(args[i])
}

// describe renders a bus payload for the console.
func describe(p any) string {
	switch v := p.(type) {
	case nil:
		return "(cleared)"
	case types.StationState:
		return fmt.Sprintf("running=%v enabled=%08b faults=%d", v.Running, v.Enabled, v.Faults)
	case types.LocoState:
		return fmt.Sprintf("addr=%d speed=%d f=%v slot=%d", v.Addr, v.Speed, v.Function, v.Slot)
	case types.TurnoutState:
		return fmt.Sprintf("decoder=%d sub=%d on=%v slot=%d", v.Decoder, v.Sub, v.On, v.Slot)
	case types.CANError:
		return fmt.Sprintf("eflg=%02x %s", v.Flags, strings.Join(v.Names, ","))
	case can.Frame:
		return strings.TrimSuffix(string(gateway.Encode(nil, &v, false)), "\r")
	default:
		return fmt.Sprintf("%v", v)
	}
}
