//go:build linux

package socketcan

import (
	"net"
	"time"

	"golang.org/x/sys/unix"

	"railcode-go/can"
	"railcode-go/errcode"
	"railcode-go/x/timex"
)

// Conn is a bound CAN_RAW socket.
type Conn struct {
	fd    int
	iface string
	rbuf  [FrameSize]byte
	wbuf  [FrameSize]byte
}

// Dial opens a raw socket on the named interface (e.g. "can0", "vcan0").
func Dial(iface string) (*Conn, error) {
	ifi, err := net.InterfaceByName(iface)
	if err != nil {
		return nil, errcode.Wrap("socketcan.dial", err)
	}
	fd, err := unix.Socket(unix.AF_CAN, unix.SOCK_RAW, unix.CAN_RAW)
	if err != nil {
		return nil, errcode.Wrap("socketcan.socket", err)
	}
	if err := unix.Bind(fd, &unix.SockaddrCAN{Ifindex: ifi.Index}); err != nil {
		unix.Close(fd)
		return nil, errcode.Wrap("socketcan.bind", err)
	}
	return &Conn{fd: fd, iface: iface}, nil
}

func (c *Conn) Interface() string { return c.iface }

// Filter is one kernel acceptance filter: a frame passes when
// received_id & Mask == ID & Mask.
type Filter struct {
	ID, Mask uint32
	Extended bool
}

// SetFilters replaces the kernel filters. An empty list receives nothing.
func (c *Conn) SetFilters(fs []Filter) error {
	kf := make([]unix.CanFilter, len(fs))
	for i, f := range fs {
		id, mask := f.ID&can.StdIDMask, f.Mask&can.StdIDMask
		if f.Extended {
			id, mask = f.ID&can.ExtIDMask|effFlag, f.Mask&can.ExtIDMask
		}
		// Match on frame format as well as the identifier bits.
		kf[i] = unix.CanFilter{Id: id, Mask: mask | effFlag | rtrFlag}
	}
	return errcode.Wrap("socketcan.filter",
		unix.SetsockoptCanRawFilter(c.fd, unix.SOL_CAN_RAW, unix.CAN_RAW_FILTER, kf))
}

// SetReadTimeout bounds Read; zero blocks indefinitely.
func (c *Conn) SetReadTimeout(d time.Duration) error {
	tv := unix.NsecToTimeval(d.Nanoseconds())
	return errcode.Wrap("socketcan.timeout",
		unix.SetsockoptTimeval(c.fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv))
}

// Read blocks for the next data or remote frame. A read timeout reports
// errcode.Timeout.
func (c *Conn) Read() (can.Frame, error) {
	for {
		n, err := unix.Read(c.fd, c.rbuf[:])
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				return can.Frame{}, errcode.Timeout
			}
			if err == unix.EINTR {
				continue
			}
			return can.Frame{}, errcode.Wrap("socketcan.read", err)
		}
		if n < FrameSize {
			return can.Frame{}, errcode.InvalidPayload
		}
		f, err := Unmarshal(c.rbuf[:n], timex.NowMs())
		if errcode.Of(err) == errcode.Unsupported {
			continue
		}
		return f, err
	}
}

// Write sends one frame.
func (c *Conn) Write(f can.Frame) error {
	Marshal(&c.wbuf, &f)
	_, err := unix.Write(c.fd, c.wbuf[:])
	return errcode.Wrap("socketcan.write", err)
}

// Send implements the station and gateway Sender interface.
func (c *Conn) Send(f can.Frame) error { return c.Write(f) }

func (c *Conn) Close() error { return unix.Close(c.fd) }
