package cmd

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/niels/nixie/pkg/config"
	"github.com/niels/nixie/pkg/logging"
	"github.com/niels/nixie/pkg/retry"
	"github.com/niels/nixie/pkg/server"
	"github.com/niels/nixie/pkg/source"
	"github.com/spf13/cobra"
)

// sourceBuilder creates the value source of a subcommand from the
// configuration and its positional arguments
type sourceBuilder func(cfg *config.Config, args []string) (source.ValueSource, error)

func newServeCmd(opts *rootOptions, cmd *cobra.Command, build sourceBuilder) *cobra.Command {
	cmd.RunE = func(c *cobra.Command, args []string) error {
		src, err := build(opts.cfg, args)
		if err != nil {
			logging.ErrorWith("Failed to create value source", map[string]interface{}{
				"source": c.Name(),
				"error":  err,
			})
			return fmt.Errorf("failed to create %s source: %w", c.Name(), err)
		}

		srv, err := server.New(server.OptionsFromConfig(opts.cfg), src, logging.GetLogger())
		if err != nil {
			return err
		}

		listener, err := srv.Listen()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(c.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		printBanner(c.OutOrStdout(), c.Name(), opts.cfg)
		return srv.Serve(ctx, listener)
	}
	return cmd
}

func newAICCmd(opts *rootOptions) *cobra.Command {
	return newServeCmd(opts, &cobra.Command{
		Use:   "aic",
		Short: "Serve the number of artworks updated since 9:00 AM in Chicago",
		Args:  cobra.NoArgs,
	}, func(cfg *config.Config, args []string) (source.ValueSource, error) {
		return source.NewRemoteTotal(cfg.Upstream, retry.FromConfig(cfg), logging.WithComponent("source"))
	})
}

func newCatCmd(opts *rootOptions) *cobra.Command {
	return newServeCmd(opts, &cobra.Command{
		Use:   "cat [path...]",
		Short: "Serve the integer stored in a counter file",
		Long: `Serve the integer stored in a counter file. The file is read again on
every request. Arguments are joined with spaces, so a path containing
spaces may be given unquoted.`,
		Args: cobra.ArbitraryArgs,
	}, func(cfg *config.Config, args []string) (source.ValueSource, error) {
		path := cfg.Sources.CounterPath
		if len(args) > 0 {
			path = strings.Join(args, " ")
		}
		return source.NewCounterFile(path)
	})
}

func newFileCountCmd(opts *rootOptions) *cobra.Command {
	return newServeCmd(opts, &cobra.Command{
		Use:   "fc [directory]",
		Short: "Serve the number of entries in a directory",
		Long: `Serve the number of entries in a directory, counting files and
subdirectories alike without recursing. Defaults to the working directory.`,
		Args: cobra.MaximumNArgs(1),
	}, func(cfg *config.Config, args []string) (source.ValueSource, error) {
		dir := cfg.Sources.Directory
		if len(args) > 0 {
			dir = args[0]
		}
		return source.NewDirectoryCount(dir)
	})
}

func newRandCmd(opts *rootOptions) *cobra.Command {
	return newServeCmd(opts, &cobra.Command{
		Use:   "rand",
		Short: fmt.Sprintf("Serve a random number between 0 and %d", source.RandomMax),
		Args:  cobra.NoArgs,
	}, func(cfg *config.Config, args []string) (source.ValueSource, error) {
		return source.NewRandom(), nil
	})
}

func newWordCountCmd(opts *rootOptions) *cobra.Command {
	return newServeCmd(opts, &cobra.Command{
		Use:   "wc [file]",
		Short: "Serve the number of words in a Markdown file",
		Args:  cobra.MaximumNArgs(1),
	}, func(cfg *config.Config, args []string) (source.ValueSource, error) {
		path := cfg.Sources.MarkdownPath
		if len(args) > 0 {
			path = args[0]
		}
		return source.NewWordCount(path)
	})
}

func printBanner(w io.Writer, name string, cfg *config.Config) {
	address := cfg.Address()
	if cfg.Server.Bind == "" {
		address = fmt.Sprintf("*:%d", cfg.Server.Port)
	}

	fmt.Fprintf(w, "%s %s on %s (%s)\n",
		color.New(color.FgGreen, color.Bold).Sprint("Serving"),
		color.CyanString(name),
		address,
		cfg.Server.Mode,
	)
}
