package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"railcode-go/bus"
	"railcode-go/drivers/mcp2515"
	"railcode-go/drivers/motorola"
	"railcode-go/platform"
	"railcode-go/services/station"
)

// NewSimCommand creates the sim command.
func NewSimCommand(rootOpts *RootOptions) *cobra.Command {
	var script string
	cmd := &cobra.Command{
		Use:   "sim",
		Short: "Run the station against simulated hardware",
		Long: `Run the command station on a simulated board: a recording PWM timer,
fake rail lines and a register-level MCP2515. Commands are read from stdin,
or from --script, one per line. Type "help" for the list.

Example:
  railctl sim
  echo "loco 12 7 on; run 80; trace" | railctl sim`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSim(rootOpts.cfg, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			for _, line := range rootOpts.cfg.Script {
				s.execLine(line)
			}
			in := cmd.InOrStdin()
			if script != "" {
				f, err := os.Open(script)
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			return s.repl(in)
		},
	}
	cmd.Flags().StringVar(&script, "script", "", "read console commands from a file")
	return cmd
}

// sim is a station on a simulated board. Everything, interrupts included,
// runs on the console goroutine.
type sim struct {
	board *platform.Sim
	eng   *motorola.Engine
	dev   *mcp2515.Device
	st    *station.Service
	mon   *bus.Subscription
	out   io.Writer

	nowMs int64
	quit  bool
}

func newSim(cfg Config, out io.Writer) (*sim, error) {
	s := &sim{board: platform.NewSim(), out: out, nowMs: time.Now().UnixMilli()}

	b := bus.NewBus(32)
	mon := b.NewConnection("railctl")
	s.mon = mon.Subscribe(bus.T("#"))

	s.eng = motorola.New(s.board.EngineConfig())

	canCfg, err := s.board.CANConfig(canConfig(cfg))
	if err != nil {
		return nil, err
	}
	canCfg.Clock = s.clock
	canCfg.Sleep = func(time.Duration) {}
	s.dev = mcp2515.New(canCfg)

	sc := station.DefaultConfig()
	sc.LocoSlots = cfg.LocoSlots
	sc.Clock = s.clock
	sc.IRQ = s.board.IRQ
	s.st = station.New(sc, s.eng, s.dev, b.NewConnection("station"))

	if err := s.dev.Start(s.st.HandleFrame, s.st.HandleError); err != nil {
		return nil, err
	}
	if err := s.eng.Start(); err != nil {
		return nil, err
	}
	glog.V(1).Infof("sim board up, %d loco slots", cfg.LocoSlots)
	return s, nil
}

func (s *sim) clock() int64 { return s.nowMs }

func (s *sim) repl(in io.Reader) error {
	sc := bufio.NewScanner(in)
	fmt.Fprint(s.out, "> ")
	for !s.quit && sc.Scan() {
		for _, line := range strings.Split(sc.Text(), ";") {
			s.execLine(line)
			if s.quit {
				break
			}
		}
		if !s.quit {
			fmt.Fprint(s.out, "> ")
		}
	}
	return sc.Err()
}

func (s *sim) execLine(line string) {
	if err := s.exec(line); err != nil {
		fmt.Fprintln(s.out, "error:", err)
	}
	s.settle()
}

// settle lets the station and controller catch up: commands are applied,
// pending transmissions complete and bus events are printed.
func (s *sim) settle() {
	for i := 0; i < 64; i++ {
		progressed := s.st.Poll()
		if s.board.Chip.CompleteTx() {
			progressed = true
		}
		if !progressed {
			break
		}
	}
	for {
		select {
		case m := <-s.mon.Channel():
			fmt.Fprintf(s.out, "  %s %s\n", m.Topic, describe(m.Payload))
		default:
			return
		}
	}
}
