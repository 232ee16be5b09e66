package heartbeat

import (
	"context"
	"testing"
	"time"

	"railcode-go/bus"
	"railcode-go/types"
)

func TestBeatReportsUptime(t *testing.T) {
	now := int64(1000)
	s := &Service{Clock: func() int64 { return now }}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Start(ctx, bus.NewBus(4).NewConnection("hb")); err != nil {
		t.Fatal(err)
	}
	now = 4500
	hb := s.Beat()
	if hb.UptimeMs != 3500 || hb.TS != 4500 {
		t.Fatalf("beat = %#v", hb)
	}
	if hb.HeapAlloc == 0 {
		t.Fatal("heap alloc not reported")
	}
}

func TestConfigChangesInterval(t *testing.T) {
	b := bus.NewBus(4)
	conn := b.NewConnection("test")
	sub := conn.Subscribe(TopicHeartbeat)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := &Service{Interval: time.Hour}
	if err := s.Start(ctx, b.NewConnection("hb")); err != nil {
		t.Fatal(err)
	}
	conn.Publish(conn.NewMessage(topicConfigHeartbeat, types.HeartbeatConfig{IntervalMs: 10}, true))

	select {
	case m := <-sub.Channel():
		if _, ok := m.Payload.(types.Heartbeat); !ok {
			t.Fatalf("payload = %#v", m.Payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no heartbeat after interval change")
	}
}
