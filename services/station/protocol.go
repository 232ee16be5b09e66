package station

import (
	"railcode-go/can"
	"railcode-go/drivers/motorola"
	"railcode-go/errcode"
)

// Standard identifiers of the station protocol.
const (
	IDLoco    uint16 = 0x080 // [addr, speed 0..15, flags]
	IDTurnout uint16 = 0x081 // [decoder, sub 0..7, state]
	IDPower   uint16 = 0x082 // [] or [0] stop, [1] resume after a fault
	IDStatus  uint16 = 0x090 // [running, enabled mask, faults lo, dropped lo]
)

const (
	flagFunction = 0x01

	MaxAddress = 80
	MaxSub     = 7
)

type Kind uint8

const (
	KindLoco Kind = iota + 1
	KindTurnout
	KindStop
	KindResume
)

func (k Kind) String() string {
	switch k {
	case KindLoco:
		return "loco"
	case KindTurnout:
		return "turnout"
	case KindStop:
		return "stop"
	case KindResume:
		return "resume"
	default:
		return "unknown"
	}
}

// Command is a decoded station request.
type Command struct {
	Kind     Kind
	Addr     int // loco address or turnout decoder
	Speed    int
	Function bool
	Sub      int
	On       bool
}

// Decode parses a protocol frame. Frames with other identifiers return
// errcode.Unsupported; malformed ones errcode.InvalidPayload or
// errcode.InvalidParams.
func Decode(f *can.Frame) (Command, error) {
	if f.Extended || f.RTR {
		return Command{}, errcode.Unsupported
	}
	d := f.Payload()
	switch f.StdID() {
	case IDLoco:
		if len(d) < 3 {
			return Command{}, errcode.InvalidPayload
		}
		c := Command{Kind: KindLoco, Addr: int(d[0]), Speed: int(d[1]), Function: d[2]&flagFunction != 0}
		if c.Addr < 1 || c.Addr > MaxAddress || c.Speed > motorola.MaxSpeed {
			return Command{}, errcode.InvalidParams
		}
		return c, nil
	case IDTurnout:
		if len(d) < 3 {
			return Command{}, errcode.InvalidPayload
		}
		c := Command{Kind: KindTurnout, Addr: int(d[0]), Sub: int(d[1]), On: d[2] != 0}
		if c.Addr < 1 || c.Addr > MaxAddress || c.Sub > MaxSub {
			return Command{}, errcode.InvalidParams
		}
		return c, nil
	case IDPower:
		if len(d) > 0 && d[0] == 1 {
			return Command{Kind: KindResume}, nil
		}
		return Command{Kind: KindStop}, nil
	}
	return Command{}, errcode.Unsupported
}

// Frame encodes c for the bus.
func (c Command) Frame() can.Frame {
	switch c.Kind {
	case KindLoco:
		var flags byte
		if c.Function {
			flags |= flagFunction
		}
		return can.Std(IDLoco, byte(c.Addr), byte(c.Speed), flags)
	case KindTurnout:
		return can.Std(IDTurnout, byte(c.Addr), byte(c.Sub), boolByte(c.On))
	case KindResume:
		return can.Std(IDPower, 1)
	default:
		return can.Std(IDPower, 0)
	}
}

// Message returns the track packet for a loco or turnout command.
func (c Command) Message() motorola.Message {
	if c.Kind == KindTurnout {
		return motorola.SwitchMessage(c.Addr, uint8(c.Sub), c.On)
	}
	return motorola.TrainMessage(c.Addr, c.Function, uint8(c.Speed))
}

// Status is the periodic station report.
type Status struct {
	Running bool
	Enabled uint8
	Faults  uint8
	Dropped uint8
}

func (s Status) Frame() can.Frame {
	return can.Std(IDStatus, boolByte(s.Running), s.Enabled, s.Faults, s.Dropped)
}

// DecodeStatus parses a status frame.
func DecodeStatus(f *can.Frame) (Status, error) {
	if f.Extended || f.StdID() != IDStatus {
		return Status{}, errcode.Unsupported
	}
	d := f.Payload()
	if len(d) < 4 {
		return Status{}, errcode.InvalidPayload
	}
	return Status{Running: d[0] != 0, Enabled: d[1], Faults: d[2], Dropped: d[3]}, nil
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
