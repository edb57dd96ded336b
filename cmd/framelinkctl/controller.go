package main

import (
	"github.com/danmuck/framelink/internal/admin"
	"github.com/danmuck/framelink/internal/auth"
	"github.com/danmuck/framelink/internal/channel"
	"github.com/danmuck/framelink/internal/config"
	"github.com/danmuck/framelink/internal/transport/wamp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newControllerCmd() *cobra.Command {
	var flags endpointFlags
	cmd := &cobra.Command{
		Use:   "controller",
		Short: "Link to the configured nodes and serve the admin API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, sess, err := loadEndpoint(flags, config.RoleController)
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

			ccfg, err := cfg.ControllerConfig(sess)
			if err != nil {
				return err
			}
			ctrl, err := channel.NewController(ep, ccfg)
			if err != nil {
				return err
			}
			defer ctrl.Destroy()

			for _, node := range cfg.Nodes {
				target, origin := node.Target()
				l, err := ctrl.Link(node.ID, target, origin)
				if err != nil {
					return err
				}
				nodeID := node.ID
				l.OnStatus(func(s channel.Status) {
					log.Info().Str("node", nodeID).Msgf("framelinkctl.controller link status=%s", s)
				})
			}

			srv := admin.New(cfg.ID, cfg.Admin.Addr, ctrl, cfg.Admin.CorsOrigins)
			if cfg.Admin.Token != "" {
				srv.RequireToken(auth.StaticToken{Token: cfg.Admin.Token})
			}
			srv.RegisterRoutes()
			errCh := make(chan error, 1)
			go func() { errCh <- srv.Run() }()

			select {
			case err := <-errCh:
				return err
			case <-ep.Done():
				log.Warn().Msgf("framelinkctl.controller relay session closed id=%s", cfg.ID)
			case <-ctx.Done():
				log.Info().Msgf("framelinkctl.controller shutting down id=%s", cfg.ID)
			}
			return nil
		},
	}
	flags.register(cmd.Flags(), "cmd/framelinkctl/controller.toml")
	return cmd
}
