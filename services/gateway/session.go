package gateway

import (
	"sync/atomic"

	"railcode-go/can"
	"railcode-go/errcode"
	"railcode-go/types"
)

// Sender queues a frame on the CAN bus; *mcp2515.Device implements it.
type Sender interface {
	Send(f can.Frame) error
}

var bitrates = [...]uint32{10000, 20000, 50000, 100000, 125000, 250000, 500000, 800000, 1000000}

const (
	version = "V1013"
	serial  = "NRC01"
)

// counters are updated from the link goroutines and read by Stats.
type counters struct {
	linesIn, linesOut, badLines, txRefused atomic.Uint32
}

func (c *counters) snapshot() types.SerialStats {
	return types.SerialStats{
		LinesIn:   c.linesIn.Load(),
		LinesOut:  c.linesOut.Load(),
		BadLines:  c.badLines.Load(),
		TxRefused: c.txRefused.Load(),
	}
}

// Session is the state of one SLCAN link: whether the channel is open, in
// listen-only mode, and whether received frames carry timestamps. The bit
// rate is fixed by the board; S is accepted only when it matches.
type Session struct {
	tx      Sender
	local   func(*can.Frame)
	bitrate uint32
	stats   *counters

	open   atomic.Bool
	listen bool
	stamps atomic.Bool
}

func newSession(tx Sender, local func(*can.Frame), bitrate uint32, stats *counters) *Session {
	return &Session{tx: tx, local: local, bitrate: bitrate, stats: stats}
}

// Open reports whether received frames should be forwarded.
func (s *Session) Open() bool { return s.open.Load() }

func (s *Session) Stamps() bool { return s.stamps.Load() }

// Handle executes one line (without CR) and appends the reply to out.
func (s *Session) Handle(line []byte, out []byte) []byte {
	s.stats.linesIn.Add(1)
	if len(line) == 0 {
		return append(out, cr)
	}
	switch line[0] {
	case 'O', 'L':
		if s.open.Load() {
			return s.fail(out)
		}
		s.listen = line[0] == 'L'
		s.open.Store(true)
	case 'C':
		s.open.Store(false)
		s.listen = false
	case 'S':
		if s.open.Load() || len(line) != 2 || line[1] < '0' || line[1] > '8' {
			return s.fail(out)
		}
		if s.bitrate != 0 && bitrates[line[1]-'0'] != s.bitrate {
			return s.fail(out)
		}
	case 'Z':
		if len(line) != 2 || (line[1] != '0' && line[1] != '1') {
			return s.fail(out)
		}
		s.stamps.Store(line[1] == '1')
	case 'V':
		out = append(out, version...)
	case 'N':
		out = append(out, serial...)
	case 'F':
		out = append(out, 'F', '0', '0')
	case 't', 'T', 'r', 'R':
		return s.transmit(line, out)
	default:
		return s.fail(out)
	}
	return append(out, cr)
}

func (s *Session) transmit(line []byte, out []byte) []byte {
	if !s.open.Load() || s.listen {
		return s.fail(out)
	}
	f, err := Decode(line)
	if err != nil {
		return s.fail(out)
	}
	if err := s.tx.Send(f); err != nil {
		s.stats.txRefused.Add(1)
		if errcode.Of(err) != errcode.QueueFull {
			println("[gateway] send:", err.Error())
		}
		return append(out, bel)
	}
	if s.local != nil {
		s.local(&f)
	}
	if f.Extended {
		out = append(out, 'Z')
	} else {
		out = append(out, 'z')
	}
	return append(out, cr)
}

func (s *Session) fail(out []byte) []byte {
	s.stats.badLines.Add(1)
	return append(out, bel)
}
