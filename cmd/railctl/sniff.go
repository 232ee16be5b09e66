package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"railcode-go/can"
	"railcode-go/errcode"
	"railcode-go/services/gateway"
	"railcode-go/services/station"
	"railcode-go/x/socketcan"
)

// NewSniffCommand creates the sniff command.
func NewSniffCommand(rootOpts *RootOptions) *cobra.Command {
	var count int
	var all bool
	cmd := &cobra.Command{
		Use:   "sniff",
		Short: "Decode station traffic on a SocketCAN interface",
		Long: `Print station frames seen on the configured SocketCAN interface until
interrupted. Other frames are shown as SLCAN lines with --all.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := socketcan.Dial(rootOpts.cfg.Interface)
			if err != nil {
				return fmt.Errorf("open %s: %w", rootOpts.cfg.Interface, err)
			}
			defer conn.Close()
			if !all {
				if err := conn.SetFilters([]socketcan.Filter{{ID: 0x080, Mask: 0x7E0}}); err != nil {
					return err
				}
			}
			if err := conn.SetReadTimeout(rootOpts.cfg.ReadTimeout); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return sniff(ctx, conn, cmd.OutOrStdout(), count)
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 0, "stop after n frames (0 = forever)")
	cmd.Flags().BoolVarP(&all, "all", "a", false, "show frames outside the station range")
	return cmd
}

type frameReader interface {
	Read() (can.Frame, error)
}

func sniff(ctx context.Context, r frameReader, out io.Writer, count int) error {
	seen := 0
	for ctx.Err() == nil {
		f, err := r.Read()
		switch {
		case errcode.Of(err) == errcode.Timeout:
			continue
		case errcode.Of(err) == errcode.Unsupported:
			glog.V(2).Info("skipping error frame")
			continue
		case err != nil:
			return err
		}
		fmt.Fprintln(out, formatFrame(&f))
		seen++
		if count > 0 && seen >= count {
			return nil
		}
	}
	return nil
}

// formatFrame renders a frame as its SLCAN line followed by the decoded
// station command or status, when it is one.
func formatFrame(f *can.Frame) string {
	line := strings.TrimSuffix(string(gateway.Encode(nil, f, false)), "\r")
	if st, err := station.DecodeStatus(f); err == nil {
		return fmt.Sprintf("%-24s status running=%v enabled=%08b faults=%d dropped=%d",
			line, st.Running, st.Enabled, st.Faults, st.Dropped)
	}
	c, err := station.Decode(f)
	switch {
	case err == nil:
		return fmt.Sprintf("%-24s %s", line, describeCommand(c))
	case errcode.Of(err) != errcode.Unsupported:
		return fmt.Sprintf("%-24s bad %03x: %s", line, f.StdID(), err)
	}
	return line
}

func describeCommand(c station.Command) string {
	switch c.Kind {
	case station.KindLoco:
		return fmt.Sprintf("loco addr=%d speed=%d f=%v", c.Addr, c.Speed, c.Function)
	case station.KindTurnout:
		return fmt.Sprintf("turnout decoder=%d sub=%d on=%v", c.Addr, c.Sub, c.On)
	}
	return c.Kind.String()
}
