// Package app wires the authgate command line: configuration loading, the
// HTTP server and a demo user directory guarded by the gateway.
package app

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// NewRootCmd returns the authgate command tree.
func NewRootCmd() *cobra.Command {
	v := newViper()

	root := &cobra.Command{
		Use:   "authgate",
		Short: "OAuth2 login gateway with role-based access control",
		Long: `authgate sends browsers through an OAuth2 authorization-code login at an
external identity provider, keeps a server-side session per login and admits
requests to protected routes by role:

- admin may use every method
- user may only read (GET)
- everyone else is sent to log in`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return readConfigFile(v)
		},
	}

	root.PersistentFlags().StringP("config", "c", "", "Path to a YAML configuration file")
	root.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().String("log-format", "json", "Log format (json or console)")
	mustBind("config", v.BindPFlag("config", root.PersistentFlags().Lookup("config")))
	mustBind("log.level", v.BindPFlag("log.level", root.PersistentFlags().Lookup("log-level")))
	mustBind("log.format", v.BindPFlag("log.format", root.PersistentFlags().Lookup("log-format")))

	root.AddCommand(newServeCmd(v))
	root.AddCommand(newCheckConfigCmd(v))
	return root
}

func newCheckConfigCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "check-config",
		Short: "Validate the configuration and exit",
		Long: `Load the configuration from --config, AUTHGATE_* environment variables and
.env, then run the same validation the server runs at startup.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadSettings(v)
			if err != nil {
				return err
			}
			if err := cfg.Gateway.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "configuration OK")
			return nil
		},
	}
}
