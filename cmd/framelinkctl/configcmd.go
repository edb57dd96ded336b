package main

import (
	"fmt"

	"github.com/danmuck/framelink/internal/config"
	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Write or validate endpoint config files",
	}

	var kind, output string
	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write an endpoint config template",
		RunE: func(cmd *cobra.Command, _ []string) error {
			target := output
			if target == "" {
				target = defaultConfigPath(kind)
			}
			if err := config.WriteTemplate(target, kind, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s config template to %s\n", kind, target)
			return nil
		},
	}
	initCmd.Flags().StringVar(&kind, "kind", config.RoleController, "config kind: controller|node")
	initCmd.Flags().StringVarP(&output, "output", "o", "", "output path (defaults to per-kind cmd path)")
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite existing config file")

	var sessionPath string
	validateCmd := &cobra.Command{
		Use:   "validate <path>",
		Short: "Validate an endpoint config and optional session file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadEndpointConfig(args[0])
			if err != nil {
				return err
			}
			if _, err := loadSessionConfig(sessionPath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Validated %s config %s at %s\n", cfg.Role, cfg.ID, args[0])
			return nil
		},
	}
	validateCmd.Flags().StringVar(&sessionPath, "session", "", "optional session tuning file (toml)")

	cmd.AddCommand(initCmd, validateCmd)
	return cmd
}

func defaultConfigPath(kind string) string {
	return fmt.Sprintf("cmd/framelinkctl/%s.toml", kind)
}
