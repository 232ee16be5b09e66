//go:build tinygo

package irq

import "runtime/interrupt"

// CPU masks interrupts on the running core.
type CPU struct{}

func (CPU) Disable() State { return State(interrupt.Disable()) }

func (CPU) Restore(s State) { interrupt.Restore(interrupt.State(s)) }

// Default returns the hardware mask.
func Default() Mask { return CPU{} }
