package main

import (
	"fmt"
	"strconv"

	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"railcode-go/can"
	"railcode-go/services/gateway"
	"railcode-go/services/station"
	"railcode-go/x/socketcan"
)

// NewSendCommand creates the send command.
func NewSendCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send <loco|turnout|stop|resume|raw> [args]",
		Short: "Send a station command on a SocketCAN interface",
		Long: `Send one station command on the configured SocketCAN interface.

Example:
  railctl send loco 12 7 on
  railctl send turnout 5 2 off
  railctl send stop
  railctl send raw T123456782AABB`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := buildFrame(args)
			if err != nil {
				return err
			}
			conn, err := socketcan.Dial(rootOpts.cfg.Interface)
			if err != nil {
				return fmt.Errorf("open %s: %w", rootOpts.cfg.Interface, err)
			}
			defer conn.Close()
			if err := conn.Send(f); err != nil {
				return err
			}
			glog.V(1).Infof("sent %s on %s", describe(f), conn.Interface())
			return nil
		},
	}
	return cmd
}

// buildFrame turns command-line words into a frame.
func buildFrame(args []string) (can.Frame, error) {
	var c station.Command
	var err error
	switch args[0] {
	case "loco":
		if len(args) < 3 {
			return can.Frame{}, errUsage
		}
		c.Kind = station.KindLoco
		if c.Addr, err = strconv.Atoi(args[1]); err != nil {
			return can.Frame{}, err
		}
		if c.Speed, err = strconv.Atoi(args[2]); err != nil {
			return can.Frame{}, err
		}
		if len(args) > 3 {
			if c.Function, err = onOff(args[3]); err != nil {
				return can.Frame{}, err
			}
		}
	case "turnout":
		if len(args) < 4 {
			return can.Frame{}, errUsage
		}
		c.Kind = station.KindTurnout
		if c.Addr, err = strconv.Atoi(args[1]); err != nil {
			return can.Frame{}, err
		}
		if c.Sub, err = strconv.Atoi(args[2]); err != nil {
			return can.Frame{}, err
		}
		if c.On, err = onOff(args[3]); err != nil {
			return can.Frame{}, err
		}
	case "stop":
		c.Kind = station.KindStop
	case "resume":
		c.Kind = station.KindResume
	case "raw":
		if len(args) < 2 {
			return can.Frame{}, errUsage
		}
		return gateway.Decode([]byte(args[1]))
	default:
		return can.Frame{}, fmt.Errorf("unknown command %q", args[0])
	}
	f := c.Frame()
	// Reject what the station would reject.
	if _, err := station.Decode(&f); err != nil {
		return can.Frame{}, fmt.Errorf("%s: %w", c.Kind, err)
	}
	return f, nil
}
