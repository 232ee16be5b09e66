package hal

import "sync"

// FakePin implements IRQPin for host-side tests and simulation. Set delivers
// the registered handler synchronously when the configured edge is seen.
type FakePin struct {
	mu      sync.Mutex
	number  int
	level   bool
	modeOut bool
	irqEdge Edge
	irqFunc func()
	sets    int
}

// NewFakePin returns a pin at the given idle level.
func NewFakePin(number int, level bool) *FakePin {
	return &FakePin{number: number, level: level}
}

func (p *FakePin) ConfigureInput(_ Pull) error {
	p.mu.Lock()
	p.modeOut = false
	p.mu.Unlock()
	return nil
}

func (p *FakePin) ConfigureOutput(initial bool) error {
	p.mu.Lock()
	p.modeOut = true
	p.level = initial
	p.mu.Unlock()
	return nil
}

func (p *FakePin) Set(level bool) {
	p.mu.Lock()
	old := p.level
	p.level = level
	p.sets++
	irq := p.irqFunc
	want := irqWanted(p.irqEdge, edgeFrom(old, level))
	p.mu.Unlock()
	if want && irq != nil {
		irq()
	}
}

func (p *FakePin) Get() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.level
}

func (p *FakePin) Number() int { return p.number }

// IsOutput reports whether the pin was last configured as an output.
func (p *FakePin) IsOutput() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.modeOut
}

// Writes counts calls to Set.
func (p *FakePin) Writes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sets
}

func (p *FakePin) SetIRQ(edge Edge, handler func()) error {
	p.mu.Lock()
	p.irqEdge = edge
	p.irqFunc = handler
	p.mu.Unlock()
	return nil
}

func (p *FakePin) ClearIRQ() error {
	p.mu.Lock()
	p.irqEdge = EdgeNone
	p.irqFunc = nil
	p.mu.Unlock()
	return nil
}

func edgeFrom(old, new bool) Edge {
	switch {
	case !old && new:
		return EdgeRising
	case old && !new:
		return EdgeFalling
	default:
		return EdgeNone
	}
}

func irqWanted(cfg, seen Edge) bool {
	if seen == EdgeNone {
		return false
	}
	if cfg == EdgeBoth {
		return true
	}
	return cfg == seen
}

// Period is one programmed timer period.
type Period struct {
	Top     uint32
	Compare uint32
}

// FakeTimer implements Timer. Fire stands in for the counter wrapping: it
// records the period just completed and runs the overflow handler.
type FakeTimer struct {
	top, compare uint32
	onOverflow   func()
	configured   bool
	writes       int
	trace        []Period
}

func (t *FakeTimer) Configure(top, compare uint32, onOverflow func()) error {
	t.top, t.compare = top, compare
	t.onOverflow = onOverflow
	t.configured = true
	return nil
}

func (t *FakeTimer) SetTop(top uint32) { t.top = top; t.writes++ }

func (t *FakeTimer) SetCompare(compare uint32) { t.compare = compare; t.writes++ }

// Fire simulates n counter wraps.
func (t *FakeTimer) Fire(n int) {
	for i := 0; i < n; i++ {
		if !t.configured || t.onOverflow == nil {
			return
		}
		t.onOverflow()
		t.trace = append(t.trace, Period{Top: t.top, Compare: t.compare})
	}
}

// Current returns the programmed Top and Compare.
func (t *FakeTimer) Current() Period { return Period{Top: t.top, Compare: t.compare} }

// Writes counts register writes made through SetTop and SetCompare.
func (t *FakeTimer) Writes() int { return t.writes }

// Trace returns the periods programmed by each Fire, oldest first.
func (t *FakeTimer) Trace() []Period { return t.trace }

// ResetTrace drops the recorded periods.
func (t *FakeTimer) ResetTrace() { t.trace = t.trace[:0] }
