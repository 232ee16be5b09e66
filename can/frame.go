// Package can defines the CAN frame shared by the controller driver, the
// station protocol and the host transports.
package can

const (
	MaxDataLen = 8

	StdIDMask uint32 = 0x000007FF
	ExtIDMask uint32 = 0x1FFFFFFF
)

// Frame is one CAN data or remote frame. Extended selects whether ID holds an
// 11-bit or a 29-bit identifier. Data is meaningless when RTR is set; Len then
// carries the requested length.
type Frame struct {
	TsMs     int64 // receive time, Unix ms; zero for outbound frames
	ID       uint32
	Extended bool
	RTR      bool
	Len      uint8
	Data     [MaxDataLen]byte
}

// Std builds a standard data frame.
func Std(id uint16, data ...byte) Frame {
	f := Frame{ID: uint32(id) & StdIDMask}
	f.SetData(data)
	return f
}

// Ext builds an extended data frame.
func Ext(id uint32, data ...byte) Frame {
	f := Frame{ID: id & ExtIDMask, Extended: true}
	f.SetData(data)
	return f
}

// SetData copies up to MaxDataLen bytes and sets Len.
func (f *Frame) SetData(data []byte) {
	n := copy(f.Data[:], data)
	f.Len = uint8(n)
	for i := n; i < MaxDataLen; i++ {
		f.Data[i] = 0
	}
}

// Payload returns the valid data bytes.
func (f *Frame) Payload() []byte {
	if f.RTR {
		return nil
	}
	n := f.Len
	if n > MaxDataLen {
		n = MaxDataLen
	}
	return f.Data[:n]
}

// StdID returns the 11-bit identifier of a standard frame.
func (f *Frame) StdID() uint16 { return uint16(f.ID & StdIDMask) }

// ExtID returns the 29-bit identifier of an extended frame.
func (f *Frame) ExtID() uint32 { return f.ID & ExtIDMask }

// Valid reports whether the identifier fits its width and Len is legal.
func (f *Frame) Valid() bool {
	if f.Len > MaxDataLen {
		return false
	}
	if f.Extended {
		return f.ID&^ExtIDMask == 0
	}
	return f.ID&^StdIDMask == 0
}
