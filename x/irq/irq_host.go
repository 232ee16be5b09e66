//go:build !tinygo

package irq

// Default returns a fresh single-core simulation on host builds.
func Default() Mask { return NewSim() }
