package platform

// Pico pin plan (GP numbers).
const (
	PinUART0TX = 0
	PinUART0RX = 1
	PinData    = 2 // PWM slice 1 channel A
	PinGo      = 3
	PinFault   = 4

	PinSPI0SDI = 16
	PinCS      = 17
	PinSPI0SCK = 18
	PinSPI0SDO = 19
	PinINT     = 20

	SPIFrequency = 4000000
)
