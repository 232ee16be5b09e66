// Package irq provides interrupt critical sections that capture and restore
// the prior interrupt-enable state, so sections nest safely.
package irq

// State is the interrupt-enable state captured by Disable.
type State uintptr

// Mask disables interrupts for the duration of a read-modify-write on state
// shared with interrupt handlers.
//
// Typical use:
//
//	st := m.Disable()
//	... mutate shared state ...
//	m.Restore(st)
type Mask interface {
	Disable() State
	Restore(State)
}

// Do runs fn inside a critical section on m.
func Do(m Mask, fn func()) {
	st := m.Disable()
	fn()
	m.Restore(st)
}
