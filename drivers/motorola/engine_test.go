package motorola

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"

	"railcode-go/hal"
	"railcode-go/x/irq"
)

type rig struct {
	e     *Engine
	timer *hal.FakeTimer
	goPin *hal.FakePin
	fault *hal.FakePin
	irq   *irq.Sim
}

func newRig(t *testing.T) *rig {
	t.Helper()
	r := &rig{
		timer: &hal.FakeTimer{},
		goPin: hal.NewFakePin(4, true),
		fault: hal.NewFakePin(3, false),
		irq:   irq.NewSim(),
	}
	cfg := Config{Timer: r.timer, Go: r.goPin, Fault: r.fault, IRQ: r.irq}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	r.e = New(cfg)
	return r
}

func (r *rig) start(t *testing.T) {
	t.Helper()
	if err := r.e.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
}

// cycle is the number of overflows between two loads at one speed.
const cycle = 2 * BitCountMsg

func render(trace []hal.Period) []byte {
	var b bytes.Buffer
	for i, p := range trace {
		fmt.Fprintf(&b, "%02d top=%d compare=%d\n", i+1, p.Top, p.Compare)
	}
	return b.Bytes()
}

func TestStartReleasesRailsAndRestoresInterrupts(t *testing.T) {
	r := newRig(t)
	r.start(t)
	if !r.e.Running() {
		t.Fatal("engine not running")
	}
	if r.goPin.Get() {
		t.Fatal("go line still high (rails off) after start")
	}
	if !r.irq.Enabled() || r.irq.Depth() != 0 {
		t.Fatalf("enabled=%v depth=%d", r.irq.Enabled(), r.irq.Depth())
	}
	if got := r.timer.Current(); got.Top != startTicks || got.Compare != 0 {
		t.Fatalf("initial period %+v", got)
	}
}

func TestIdleCycleGolden(t *testing.T) {
	r := newRig(t)
	r.start(t)
	r.timer.Fire(cycle)

	g := goldie.New(t)
	g.Assert(t, "idle_cycle", render(r.timer.Trace()))
}

func TestTurnoutOneShotGolden(t *testing.T) {
	r := newRig(t)
	r.e.SetMessage(3, SwitchMessage(5, 2, true))
	r.e.SetSpeed(3, Fast)
	r.e.SetOneShot(3, true)
	r.e.Enable(3)
	r.start(t)
	r.timer.Fire(2 * cycle)

	g := goldie.New(t)
	g.Assert(t, "turnout_one_shot", render(r.timer.Trace()))
}

func TestIdleWithoutEnabledSlots(t *testing.T) {
	r := newRig(t)
	r.start(t)
	for i := 0; i < 10*cycle; i++ {
		r.timer.Fire(1)
		c := r.e.Playback()
		if !c.Idle || c.Message != IdleMessage || c.Speed != IdleSpeed {
			t.Fatalf("tick %d: cursor %+v", i, c)
		}
		one := (IdleMessage>>uint(c.Bit))&1 != 0
		if got := r.timer.Current().Compare; got != markTicks(one, IdleSpeed) {
			t.Fatalf("tick %d bit %d: compare %d", i, c.Bit, got)
		}
	}
}

func TestSingleSlotReloadedEveryCycle(t *testing.T) {
	r := newRig(t)
	msg := TrainMessage(12, false, 7)
	r.e.SetMessage(5, msg)
	r.e.Enable(5)
	r.start(t)

	for n := 1; n <= 5; n++ {
		r.timer.Fire(cycle)
		c := r.e.Playback()
		if c.Slot != 5 || c.Message != msg || c.Idle {
			t.Fatalf("cycle %d: cursor %+v", n, c)
		}
		if got := r.e.Loads(5); got != uint32(n+1) {
			t.Fatalf("cycle %d: loads=%d", n, got)
		}
	}
}

func TestOneShotDisablesAfterOneLoad(t *testing.T) {
	r := newRig(t)
	r.e.SetMessage(2, SwitchMessage(3, 1, true))
	r.e.SetOneShot(2, true)
	r.e.Enable(2)
	r.start(t)

	if r.e.Enabled(2) {
		t.Fatal("one-shot slot still enabled after load")
	}
	r.timer.Fire(3 * cycle)
	if got := r.e.Loads(2); got != 1 {
		t.Fatalf("loads=%d want 1", got)
	}
	if c := r.e.Playback(); !c.Idle {
		t.Fatalf("cursor %+v, want idle", c)
	}
}

func TestRoundRobinOrder(t *testing.T) {
	r := newRig(t)
	for _, n := range []int{1, 4, 6} {
		r.e.SetMessage(n, TrainMessage(n+10, false, 3))
		r.e.Enable(n)
	}
	r.start(t)

	var order []int
	order = append(order, r.e.Playback().Slot)
	for i := 0; i < 5; i++ {
		r.timer.Fire(cycle)
		order = append(order, r.e.Playback().Slot)
	}
	want := []int{1, 4, 6, 1, 4, 6}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order=%v want %v", order, want)
		}
	}
}

func TestEnableTakesEffectAtMessageBoundary(t *testing.T) {
	r := newRig(t)
	r.start(t)
	r.timer.Fire(5)

	r.e.SetMessage(0, TrainMessage(1, true, 1))
	r.e.Enable(0)
	if c := r.e.Playback(); !c.Idle || c.Bit != 5 {
		t.Fatalf("cursor changed mid-packet: %+v", c)
	}
	r.timer.Fire(cycle - 5)
	if c := r.e.Playback(); c.Idle || c.Slot != 0 {
		t.Fatalf("slot 0 not loaded at boundary: %+v", c)
	}
}

func TestOutOfRangeSlotsIgnored(t *testing.T) {
	r := newRig(t)
	for _, n := range []int{-1, SlotCount, 100} {
		r.e.SetMessage(n, 0x1234)
		r.e.Enable(n)
		r.e.SetSpeed(n, Fast)
		r.e.SetOneShot(n, true)
		if r.e.Enabled(n) {
			t.Fatalf("slot %d reported enabled", n)
		}
		if r.e.Message(n) != IdleMessage {
			t.Fatalf("slot %d returned %#x", n, r.e.Message(n))
		}
	}
	if r.e.EnabledMask() != 0 {
		t.Fatalf("mask=%08b", r.e.EnabledMask())
	}
}

func TestMutatorsRestoreInterruptState(t *testing.T) {
	r := newRig(t)
	outer := r.irq.Disable()
	r.e.Enable(1)
	r.e.SetSpeed(1, Fast)
	if r.irq.Enabled() {
		t.Fatal("mutator re-enabled interrupts inside an outer section")
	}
	r.irq.Restore(outer)
	if !r.irq.Enabled() || r.irq.Depth() != 0 {
		t.Fatalf("enabled=%v depth=%d", r.irq.Enabled(), r.irq.Depth())
	}
}

func TestFaultStopsOutput(t *testing.T) {
	r := newRig(t)
	r.e.SetMessage(0, TrainMessage(3, false, 9))
	r.e.Enable(0)
	r.start(t)
	r.timer.Fire(7)

	r.fault.Set(true)

	if r.e.Running() {
		t.Fatal("engine still running after fault")
	}
	if !r.goPin.Get() {
		t.Fatal("go line not driven to its disabled level")
	}
	writes := r.timer.Writes()
	r.timer.Fire(3 * cycle)
	if r.timer.Writes() != writes {
		t.Fatalf("timer written after fault: %d -> %d", writes, r.timer.Writes())
	}
	if r.e.Faults() != 1 {
		t.Fatalf("faults=%d", r.e.Faults())
	}

	// A second edge while stopped is ignored.
	r.fault.Set(false)
	r.fault.Set(true)
	if r.e.Faults() != 1 {
		t.Fatalf("faults=%d after edge while stopped", r.e.Faults())
	}
}

func TestRestartAfterFault(t *testing.T) {
	r := newRig(t)
	r.e.SetMessage(0, TrainMessage(3, false, 9))
	r.e.Enable(0)
	r.start(t)
	r.fault.Set(true)
	r.fault.Set(false)

	r.start(t)
	if !r.e.Running() || r.goPin.Get() {
		t.Fatal("restart did not resume output")
	}
	writes := r.timer.Writes()
	r.timer.Fire(1)
	if r.timer.Writes() == writes {
		t.Fatal("no timer writes after restart")
	}
	if c := r.e.Playback(); c.Slot != 0 || c.Idle {
		t.Fatalf("table lost across restart: %+v", c)
	}
}
