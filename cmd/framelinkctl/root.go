package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type endpointFlags struct {
	configPath  string
	sessionPath string
}

func (f *endpointFlags) register(fs *pflag.FlagSet, defaultConfig string) {
	fs.StringVarP(&f.configPath, "config", "c", defaultConfig, "endpoint config file (toml or yaml)")
	fs.StringVar(&f.sessionPath, "session", "", "optional session tuning file (toml)")
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:              "framelinkctl",
		Short:            "cross-window channel relay, controller and node",
		SilenceUsage:     true,
		TraverseChildren: true,
	}
	root.AddCommand(
		newRelayCmd(),
		newControllerCmd(),
		newNodeCmd(),
		newConfigCmd(),
	)
	return root
}

// signalContext ends on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
