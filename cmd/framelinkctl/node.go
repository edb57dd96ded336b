package main

import (
	"github.com/danmuck/framelink/internal/channel"
	"github.com/danmuck/framelink/internal/config"
	"github.com/danmuck/framelink/internal/protocol"
	"github.com/danmuck/framelink/internal/transport/wamp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newNodeCmd() *cobra.Command {
	var flags endpointFlags
	cmd := &cobra.Command{
		Use:   "node",
		Short: "Join the relay as a node that answers echo requests",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, sess, err := loadEndpoint(flags, config.RoleNode)
			if err != nil {
				return err
			}
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			ep, err := wamp.Dial(ctx, cfg.Relay.URL, cfg.WampConfig())
			if err != nil {
				return err
			}
			defer ep.Close()

			ncfg, err := cfg.NodeConfig(sess)
			if err != nil {
				return err
			}
			node, err := channel.Connect(ep, ncfg)
			if err != nil {
				return err
			}
			defer node.Destroy()

			if err := registerNodeHandlers(node); err != nil {
				return err
			}
			node.OnStatus(func(s channel.Status) {
				log.Info().Msgf("framelinkctl.node status=%s connection=%s", s, node.ConnectionID())
			})

			select {
			case <-ep.Done():
				log.Warn().Msgf("framelinkctl.node relay session closed id=%s", cfg.ID)
			case <-ctx.Done():
				log.Info().Msgf("framelinkctl.node shutting down id=%s", cfg.ID)
			}
			return nil
		},
	}
	flags.register(cmd.Flags(), "cmd/framelinkctl/node.toml")
	return cmd
}

func registerNodeHandlers(node *channel.Link) error {
	if _, err := node.On("echo", func(data protocol.Data) (protocol.Data, error) {
		return data, nil
	}); err != nil {
		return err
	}
	_, err := node.On("log", channel.Notify(func(data protocol.Data) {
		log.Info().Interface("data", data).Msg("framelinkctl.node log")
	}))
	return err
}
