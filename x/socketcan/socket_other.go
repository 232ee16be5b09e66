//go:build !linux

package socketcan

import (
	"time"

	"railcode-go/can"
	"railcode-go/errcode"
)

// Conn is unavailable off Linux; Dial always fails.
type Conn struct{}

type Filter struct {
	ID, Mask uint32
	Extended bool
}

func Dial(string) (*Conn, error) { return nil, errcode.Unsupported }

func (c *Conn) Interface() string                  { return "" }
func (c *Conn) SetFilters([]Filter) error          { return errcode.Unsupported }
func (c *Conn) SetReadTimeout(time.Duration) error { return errcode.Unsupported }
func (c *Conn) Read() (can.Frame, error)           { return can.Frame{}, errcode.Unsupported }
func (c *Conn) Write(can.Frame) error              { return errcode.Unsupported }
func (c *Conn) Send(can.Frame) error               { return errcode.Unsupported }
func (c *Conn) Close() error                       { return nil }
