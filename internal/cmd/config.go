package cmd

import (
	"fmt"

	"github.com/alecthomas/chroma/quick"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newConfigCmd(opts *rootOptions) *cobra.Command {
	var plain bool

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := opts.cfg.Marshal()
			if err != nil {
				return fmt.Errorf("failed to render configuration: %w", err)
			}

			out := cmd.OutOrStdout()
			if plain || color.NoColor {
				_, err = out.Write(data)
				return err
			}
			return quick.Highlight(out, string(data), "yaml", "terminal256", "monokai")
		},
	}

	cmd.Flags().BoolVar(&plain, "plain", false, "Disable syntax highlighting")
	return cmd
}
