// Package heartbeat reports uptime and heap usage on the bus.
package heartbeat

import (
	"context"
	"runtime"
	"time"

	"railcode-go/bus"
	"railcode-go/types"
	"railcode-go/x/timex"
)

var (
	topicConfigHeartbeat = bus.T("config", "heartbeat")
	TopicHeartbeat       = bus.T("system", "heartbeat")
)

const defaultInterval = 10 * time.Second

type Service struct {
	Interval time.Duration
	Clock    func() int64

	start int64
}

func (s *Service) serviceLoop(ctx context.Context, conn *bus.Connection) {
	cfgSub := conn.Subscribe(topicConfigHeartbeat)
	defer conn.Unsubscribe(cfgSub)

	tick := time.NewTicker(s.Interval)
	defer tick.Stop()

	// loop until context is cancelled, respond to tick and config changes
	for {
		select {
		case <-ctx.Done():
			println("[heartbeat] stopping")
			return
		case <-tick.C:
			hb := s.Beat()
			println("[heartbeat] up", hb.UptimeMs/1000, "s alloc", hb.HeapAlloc, "inuse", hb.HeapInuse)
			conn.Publish(conn.NewMessage(TopicHeartbeat, hb, false))
		case msg := <-cfgSub.Channel():
			if c, ok := msg.Payload.(types.HeartbeatConfig); ok && c.IntervalMs > 0 {
				tick.Reset(time.Duration(c.IntervalMs) * time.Millisecond)
				println("[heartbeat] interval set to", c.IntervalMs, "ms")
			}
		}
	}
}

// Beat snapshots uptime and the runtime memory counters.
func (s *Service) Beat() types.Heartbeat {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	now := s.Clock()
	return types.Heartbeat{
		UptimeMs:  now - s.start,
		HeapAlloc: uint32(ms.Alloc),
		HeapInuse: uint32(ms.HeapInuse),
		Mallocs:   uint32(ms.Mallocs),
		Frees:     uint32(ms.Frees),
		TS:        now,
	}
}

// Start the heartbeat service.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) error {
	if s.Interval <= 0 {
		s.Interval = defaultInterval
	}
	if s.Clock == nil {
		s.Clock = timex.NowMs
	}
	s.start = s.Clock()
	go s.serviceLoop(ctx, conn)
	return nil
}
