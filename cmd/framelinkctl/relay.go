package main

import (
	"context"
	"time"

	"github.com/danmuck/framelink/internal/transport/wamp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newRelayCmd() *cobra.Command {
	var addr, realm string
	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Run the WAMP relay that carries window traffic",
		RunE: func(cmd *cobra.Command, _ []string) error {
			relay, err := wamp.NewRelay(addr, realm)
			if err != nil {
				return err
			}
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			errCh := make(chan error, 1)
			go func() { errCh <- relay.Run() }()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}
			log.Info().Msgf("framelinkctl.relay shutting down addr=%s", addr)
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return relay.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8000", "websocket listen address")
	cmd.Flags().StringVar(&realm, "realm", wamp.DefaultRealm, "WAMP realm")
	return cmd
}
