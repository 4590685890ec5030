package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/swarmtree/internal/config"
)

func (a *app) newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "View swarmtree configuration",
		Long: `View swarmtree configuration.

Settings come from the config file, then SWARMTREE_* environment variables
(e.g. SWARMTREE_BRANCH_PREFIX for branch.prefix), then built-in defaults.`,
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := a.printer(cmd)
			if err != nil {
				return err
			}
			if done, err := p.structured(a.cfg); done {
				return err
			}

			out := cmd.OutOrStdout()
			if used := viper.ConfigFileUsed(); used != "" {
				_, _ = fmt.Fprintf(out, "Config file: %s\n\n", used)
			} else {
				_, _ = fmt.Fprintf(out, "Config file: (none - using defaults)\n\n")
			}
			data, err := yaml.Marshal(a.cfg)
			if err != nil {
				return err
			}
			_, err = out.Write(data)
			return err
		},
	}

	pathCmd := &cobra.Command{
		Use:   "path",
		Short: "Show the config file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := viper.ConfigFileUsed()
			if path == "" {
				path = config.ConfigFile()
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), path)
			return err
		},
	}

	configCmd.AddCommand(showCmd, pathCmd)
	return configCmd
}
