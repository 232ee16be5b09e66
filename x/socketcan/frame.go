// Package socketcan reads and writes CAN frames on Linux SocketCAN raw
// sockets, for host tools talking to the station over a USB CAN adapter.
package socketcan

import (
	"encoding/binary"

	"railcode-go/can"
	"railcode-go/errcode"
)

// FrameSize is sizeof(struct can_frame).
const FrameSize = 16

// can_id flag bits.
const (
	effFlag uint32 = 0x80000000
	rtrFlag uint32 = 0x40000000
	errFlag uint32 = 0x20000000
)

// Marshal writes f as a struct can_frame in host byte order.
func Marshal(dst *[FrameSize]byte, f *can.Frame) {
	id := f.ID & can.StdIDMask
	if f.Extended {
		id = f.ID&can.ExtIDMask | effFlag
	}
	if f.RTR {
		id |= rtrFlag
	}
	*dst = [FrameSize]byte{}
	binary.NativeEndian.PutUint32(dst[0:4], id)
	n := f.Len
	if n > can.MaxDataLen {
		n = can.MaxDataLen
	}
	dst[4] = n
	if !f.RTR {
		copy(dst[8:], f.Data[:n])
	}
}

// Unmarshal parses a struct can_frame. Error frames report
// errcode.Unsupported.
func Unmarshal(b []byte, tsMs int64) (can.Frame, error) {
	if len(b) < FrameSize {
		return can.Frame{}, errcode.InvalidPayload
	}
	id := binary.NativeEndian.Uint32(b[0:4])
	if id&errFlag != 0 {
		return can.Frame{}, errcode.Unsupported
	}
	f := can.Frame{TsMs: tsMs, RTR: id&rtrFlag != 0}
	if id&effFlag != 0 {
		f.Extended = true
		f.ID = id & can.ExtIDMask
	} else {
		f.ID = id & can.StdIDMask
	}
	n := b[4]
	if n > can.MaxDataLen {
		n = can.MaxDataLen
	}
	f.Len = n
	if !f.RTR {
		copy(f.Data[:n], b[8:8+int(n)])
	}
	return f, nil
}
