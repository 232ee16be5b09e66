package station

import (
	"railcode-go/drivers/motorola"
	"railcode-go/x/mathx"
)

// Slots assigns engine slots. The first locos slots hold locomotives, keyed
// by address with the least recently updated one evicted when all are taken.
// The remaining slots take turnout packets in turn.
type Slots struct {
	locos int
	addr  [motorola.SlotCount]int // 0 when free
	used  [motorola.SlotCount]uint64
	clock uint64
	next  int // next turnout slot
}

// NewSlots clamps locos so that at least one slot is left for turnouts.
func NewSlots(locos int) *Slots {
	locos = mathx.Clamp(locos, 1, motorola.SlotCount-1)
	return &Slots{locos: locos, next: locos}
}

func (s *Slots) LocoSlots() int { return s.locos }

// Loco returns the slot for addr and the address it displaced, or 0.
func (s *Slots) Loco(addr int) (slot, evicted int) {
	s.clock++
	victim := 0
	for i := 0; i < s.locos; i++ {
		switch {
		case s.addr[i] == addr:
			s.used[i] = s.clock
			return i, 0
		case s.addr[i] == 0:
			if s.addr[victim] != 0 {
				victim = i
			}
		case s.addr[victim] != 0 && s.used[i] < s.used[victim]:
			victim = i
		}
	}
	evicted = s.addr[victim]
	s.addr[victim] = addr
	s.used[victim] = s.clock
	return victim, evicted
}

// Lookup returns the slot holding addr.
func (s *Slots) Lookup(addr int) (int, bool) {
	for i := 0; i < s.locos; i++ {
		if s.addr[i] == addr && addr != 0 {
			return i, true
		}
	}
	return 0, false
}

// Turnout returns the next turnout slot.
func (s *Slots) Turnout() int {
	n := s.next
	s.next++
	if s.next >= motorola.SlotCount {
		s.next = s.locos
	}
	return n
}

// Reset forgets every assignment.
func (s *Slots) Reset() {
	for i := range s.addr {
		s.addr[i] = 0
		s.used[i] = 0
	}
	s.next = s.locos
}
