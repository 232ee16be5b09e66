package platform

import (
	"railcode-go/drivers/motorola"
	"railcode-go/x/mathx"
)

// scaleTicks converts engine ticks to counts of a PWM slice whose counter
// range hwTop spans motorola.MaxPeriodTicks.
func scaleTicks(ticks, hwTop uint32) uint32 {
	hw := mathx.RoundDiv(uint64(ticks)*uint64(hwTop), motorola.MaxPeriodTicks)
	return uint32(mathx.Min(hw, uint64(hwTop)))
}
