package cmd

import (
	"fmt"

	"github.com/niels/nixie/pkg/config"
	"github.com/niels/nixie/pkg/logging"
	"github.com/niels/nixie/pkg/version"
	"github.com/spf13/cobra"
)

// rootOptions holds the persistent flags and the configuration they produce
type rootOptions struct {
	configPath  string
	debug       bool
	showVersion bool
	port        int
	bind        string
	mode        string
	cfg         *config.Config
}

// NewRootCmd creates the root command for nixie
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   version.AppName,
		Short: version.Description,
		Long: fmt.Sprintf(`%s - %s

Each subcommand binds port 4224 on all interfaces and answers every HTTP
request with one number followed by a newline.
`, version.AppName, version.Description),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.showVersion {
				fmt.Fprintln(cmd.OutOrStdout(), version.GetVersionInfo())
				return nil
			}
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to a YAML or TOML configuration file")
	rootCmd.PersistentFlags().BoolVarP(&opts.debug, "debug", "d", false, "Enable debug logging")
	rootCmd.PersistentFlags().IntVarP(&opts.port, "port", "p", 0, "Port to listen on (overrides config)")
	rootCmd.PersistentFlags().StringVarP(&opts.bind, "bind", "b", "", "Address to bind, empty for all interfaces (overrides config)")
	rootCmd.PersistentFlags().StringVarP(&opts.mode, "mode", "m", "", "Concurrency mode: single or threaded (overrides config)")
	rootCmd.Flags().BoolVarP(&opts.showVersion, "version", "v", false, "Show version information")

	rootCmd.AddCommand(
		newAICCmd(opts),
		newCatCmd(opts),
		newFileCountCmd(opts),
		newRandCmd(opts),
		newWordCountCmd(opts),
		newConfigCmd(opts),
	)

	return rootCmd
}

// load builds the effective configuration: defaults, then the config file,
// then command-line flags
func (o *rootOptions) load(cmd *cobra.Command) error {
	cfg := config.Default()
	if o.configPath != "" {
		var err error
		if cfg, err = config.Load(o.configPath); err != nil {
			return fmt.Errorf("failed to load config from %s: %w", o.configPath, err)
		}
	}

	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Server.Port = o.port
	}
	if flags.Changed("bind") {
		cfg.Server.Bind = o.bind
	}
	if flags.Changed("mode") {
		cfg.Server.Mode = o.mode
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logging.InitGlobalLogger(o.debug, cfg)
	if o.configPath != "" {
		logging.InfoWith("Loaded configuration", map[string]interface{}{
			"path": o.configPath,
		})
	}
	logging.Debug("Debug logging enabled")

	o.cfg = cfg
	return nil
}
