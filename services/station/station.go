// Package station turns CAN commands into track packets. Frames arrive from
// the controller's interrupt handler into a small ring; Run drains it in the
// foreground, programs the timing engine, publishes state on the bus and
// reports status on CAN.
package station

import (
	"context"
	"time"

	"railcode-go/bus"
	"railcode-go/can"
	"railcode-go/drivers/mcp2515"
	"railcode-go/drivers/motorola"
	"railcode-go/errcode"
	"railcode-go/types"
	"railcode-go/x/conv"
	"railcode-go/x/irq"
	"railcode-go/x/ring"
	"railcode-go/x/timex"
)

// Engine is the part of *motorola.Engine the station drives.
type Engine interface {
	Start() error
	Running() bool
	Faults() uint32
	SetMessage(n int, m motorola.Message)
	SetSpeed(n int, s motorola.Speed)
	SetOneShot(n int, oneShot bool)
	Enable(n int)
	DisableAll()
	EnabledMask() uint8
}

// Sender queues an outbound frame; *mcp2515.Device implements it.
type Sender interface {
	Send(f can.Frame) error
}

var (
	TopicState      = bus.T("station", "state")
	TopicStatusGet  = bus.T("station", "status", "get")
	TopicCommand    = bus.T("station", "cmd")
	TopicCANError   = bus.T("can", "error")
	TopicCANRx      = bus.T("can", "rx")
	topicLocoPrefix = "loco"
	topicTurnout    = "turnout"
)

func TopicLoco(addr int) bus.Topic       { return bus.T("station", topicLocoPrefix, addr) }
func TopicTurnout(decoder int) bus.Topic { return bus.T("station", topicTurnout, decoder) }

type Config struct {
	StatusInterval time.Duration
	PollInterval   time.Duration
	LocoSlots      int
	InboxSize      int
	Clock          func() int64
	IRQ            irq.Mask
}

func DefaultConfig() Config {
	return Config{
		StatusInterval: time.Second,
		PollInterval:   5 * time.Millisecond,
		LocoSlots:      6,
		InboxSize:      16,
		Clock:          timex.NowMs,
	}
}

// FromTypes overlays the non-zero fields of a board configuration.
func FromTypes(c types.StationConfig) Config {
	cfg := DefaultConfig()
	if c.StatusIntervalMs > 0 {
		cfg.StatusInterval = time.Duration(c.StatusIntervalMs) * time.Millisecond
	}
	if c.PollIntervalMs > 0 {
		cfg.PollInterval = time.Duration(c.PollIntervalMs) * time.Millisecond
	}
	if c.LocoSlots > 0 {
		cfg.LocoSlots = c.LocoSlots
	}
	return cfg
}

// Service is the command station.
type Service struct {
	cfg   Config
	eng   Engine
	tx    Sender
	conn  *bus.Connection
	irq   irq.Mask
	slots *Slots

	// Shared with interrupt context.
	inbox *ring.Ring[can.Frame]
	errs  *ring.Ring[mcp2515.ErrorEvent]

	rejected   uint32
	wasRunning bool
}

func New(cfg Config, eng Engine, tx Sender, conn *bus.Connection) *Service {
	def := DefaultConfig()
	if cfg.StatusInterval <= 0 {
		cfg.StatusInterval = def.StatusInterval
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.InboxSize < 2 {
		cfg.InboxSize = def.InboxSize
	}
	if cfg.Clock == nil {
		cfg.Clock = def.Clock
	}
	if cfg.IRQ == nil {
		cfg.IRQ = irq.Default()
	}
	return &Service{
		cfg:   cfg,
		eng:   eng,
		tx:    tx,
		conn:  conn,
		irq:   cfg.IRQ,
		slots: NewSlots(cfg.LocoSlots),
		inbox: ring.New[can.Frame](cfg.InboxSize, ring.DropOldest),
		errs:  ring.New[mcp2515.ErrorEvent](4, ring.DropOldest),

		wasRunning: eng.Running(),
	}
}

// HandleFrame is an mcp2515.MessageHandler. It copies the frame and returns.
func (s *Service) HandleFrame(f *can.Frame) {
	st := s.irq.Disable()
	s.inbox.Push(*f)
	s.irq.Restore(st)
}

// HandleError is an mcp2515.ErrorHandler.
func (s *Service) HandleError(e *mcp2515.ErrorEvent) {
	st := s.irq.Disable()
	s.errs.Push(*e)
	s.irq.Restore(st)
}

// Run processes commands until ctx is done. Commands published on
// TopicCommand are applied as if they had arrived on CAN.
func (s *Service) Run(ctx context.Context) error {
	var reqs, cmds <-chan *bus.Message
	if s.conn != nil {
		sub := s.conn.Subscribe(TopicStatusGet)
		defer s.conn.Unsubscribe(sub)
		reqs = sub.Channel()
		csub := s.conn.Subscribe(TopicCommand)
		defer s.conn.Unsubscribe(csub)
		cmds = csub.Channel()
	}

	poll := time.NewTicker(s.cfg.PollInterval)
	defer poll.Stop()
	status := time.NewTicker(s.cfg.StatusInterval)
	defer status.Stop()

	s.wasRunning = s.eng.Running()
	s.publishState()
	println("[station] running, loco slots", s.slots.LocoSlots())

	for {
		select {
		case <-ctx.Done():
			println("[station] stopping")
			return ctx.Err()
		case <-poll.C:
			s.Poll()
		case <-status.C:
			s.SendStatus()
		case m, ok := <-reqs:
			if !ok {
				reqs = nil
				continue
			}
			s.conn.Reply(m, s.State(), false)
		case m, ok := <-cmds:
			if !ok {
				cmds = nil
				continue
			}
			if c, ok := m.Payload.(Command); ok {
				if err := s.Apply(c); err != nil {
					println("[station]", c.Kind.String(), "failed:", err.Error())
				}
			}
		}
	}
}

// Poll drains pending errors and commands and reports whether anything was
// handled.
func (s *Service) Poll() bool {
	did := false
	for {
		st := s.irq.Disable()
		e := s.errs.Peek()
		if e == nil {
			s.irq.Restore(st)
			break
		}
		ev := *e
		s.errs.Pop()
		s.irq.Restore(st)
		s.publishError(ev)
		did = true
	}
	for {
		st := s.irq.Disable()
		p := s.inbox.Peek()
		if p == nil {
			s.irq.Restore(st)
			break
		}
		f := *p
		s.inbox.Pop()
		s.irq.Restore(st)
		s.handle(&f)
		did = true
	}
	if running := s.eng.Running(); running != s.wasRunning {
		if !running {
			println("[station] booster fault, output halted")
		}
		s.wasRunning = running
		s.publishState()
		did = true
	}
	return did
}

func (s *Service) handle(f *can.Frame) {
	s.publish(TopicCANRx, *f, false)
	c, err := Decode(f)
	if err != nil {
		if errcode.Of(err) != errcode.Unsupported {
			s.rejected++
			var hex [8]byte
			println("[station] bad frame id", string(conv.U32Hex(hex[:], f.ID)), string(errcode.Of(err)))
		}
		return
	}
	if err := s.Apply(c); err != nil {
		println("[station]", c.Kind.String(), "failed:", err.Error())
	}
}

// Apply executes one command.
func (s *Service) Apply(c Command) error {
	now := s.cfg.Clock()
	switch c.Kind {
	case KindLoco:
		slot, evicted := s.slots.Loco(c.Addr)
		s.eng.SetMessage(slot, c.Message())
		s.eng.SetSpeed(slot, motorola.Slow)
		s.eng.SetOneShot(slot, false)
		s.eng.Enable(slot)
		if evicted != 0 {
			s.publish(TopicLoco(evicted), nil, true)
		}
		s.publish(TopicLoco(c.Addr), types.LocoState{
			Addr: c.Addr, Speed: c.Speed, Function: c.Function, Slot: slot, TS: now,
		}, true)
	case KindTurnout:
		slot := s.slots.Turnout()
		s.eng.SetMessage(slot, c.Message())
		s.eng.SetSpeed(slot, motorola.Fast)
		s.eng.SetOneShot(slot, true)
		s.eng.Enable(slot)
		s.publish(TopicTurnout(c.Addr), types.TurnoutState{
			Decoder: c.Addr, Sub: c.Sub, On: c.On, Slot: slot, TS: now,
		}, true)
	case KindStop:
		s.eng.DisableAll()
		s.slots.Reset()
	case KindResume:
		if !s.eng.Running() {
			if err := s.eng.Start(); err != nil {
				return errcode.Wrap("station.resume", err)
			}
			println("[station] output resumed")
		}
	default:
		return errcode.InvalidParams
	}
	s.wasRunning = s.eng.Running()
	s.publishState()
	return nil
}

// State snapshots the station.
func (s *Service) State() types.StationState {
	st := s.irq.Disable()
	dropped := s.inbox.Drops()
	s.irq.Restore(st)
	return types.StationState{
		Running:  s.eng.Running(),
		Enabled:  s.eng.EnabledMask(),
		Faults:   s.eng.Faults(),
		Dropped:  dropped,
		Rejected: s.rejected,
		TS:       s.cfg.Clock(),
	}
}

// SendStatus queues a status frame.
func (s *Service) SendStatus() {
	if s.tx == nil {
		return
	}
	st := s.State()
	f := Status{
		Running: st.Running,
		Enabled: st.Enabled,
		Faults:  uint8(st.Faults),
		Dropped: uint8(st.Dropped),
	}.Frame()
	_ = s.tx.Send(f)
}

func (s *Service) publishState() {
	if s.conn == nil {
		return
	}
	s.publish(TopicState, s.State(), true)
}

func (s *Service) publishError(e mcp2515.ErrorEvent) {
	println("[station] can error eflg", e.Flags)
	s.publish(TopicCANError, types.CANError{
		Flags: e.Flags,
		Names: mcp2515.FlagNames(e.Flags),
		TS:    e.TsMs,
	}, false)
}

func (s *Service) publish(t bus.Topic, payload any, retained bool) {
	if s.conn == nil {
		return
	}
	s.conn.Publish(s.conn.NewMessage(t, payload, retained))
}
