package irq

// Sim models the interrupt-enable flag of a single core. Interrupt handlers
// are plain function calls on host builds, so Sim does not defer delivery; it
// records the state so tests can assert that every section is closed.
//
// Sim is not safe for concurrent use. Drive foreground code and simulated
// interrupts from one goroutine, as a single core would.
type Sim struct {
	enabled  bool
	depth    int
	sections uint64
}

// NewSim returns a Sim with interrupts enabled.
func NewSim() *Sim { return &Sim{enabled: true} }

func (s *Sim) Disable() State {
	prev := State(0)
	if s.enabled {
		prev = 1
	}
	s.enabled = false
	s.depth++
	s.sections++
	return prev
}

func (s *Sim) Restore(st State) {
	if s.depth > 0 {
		s.depth--
	}
	s.enabled = st != 0
}

// Enabled reports whether interrupts are currently enabled.
func (s *Sim) Enabled() bool { return s.enabled }

// Depth is the number of open critical sections.
func (s *Sim) Depth() int { return s.depth }

// Sections counts every Disable call since construction.
func (s *Sim) Sections() uint64 { return s.sections }
