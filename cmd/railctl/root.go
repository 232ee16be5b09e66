package main

import (
	"flag"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Iface      string

	cfg Config
}

// NewRootCommand creates the railctl command tree.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "railctl",
		Short:         "Station simulator and CAN tools",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(opts.ConfigPath)
			if err != nil {
				return err
			}
			if opts.Iface != "" {
				cfg.Interface = opts.Iface
			}
			opts.cfg = cfg
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "YAML config file")
	cmd.PersistentFlags().StringVarP(&opts.Iface, "iface", "i", "", "SocketCAN interface (overrides config)")
	cmd.PersistentFlags().AddGoFlagSet(flag.CommandLine)

	cmd.AddCommand(NewSimCommand(opts))
	cmd.AddCommand(NewSendCommand(opts))
	cmd.AddCommand(NewSniffCommand(opts))

	return cmd
}
