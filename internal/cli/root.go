// Package cli implements the nftdump command tree.
package cli

import (
	"encoding/json"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jtang613/nativefiletests/internal/logging"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	logLevel string
	pretty   bool
}

func (g *globalFlags) logger(cmd *cobra.Command) zerolog.Logger {
	return logging.NewWithComponent(logging.Config{
		Level:  g.logLevel,
		Pretty: g.pretty,
		Output: cmd.ErrOrStderr(),
	}, "nftdump")
}

// NewRootCmd builds the nftdump command tree.
func NewRootCmd() *cobra.Command {
	g := &globalFlags{}

	cmd := &cobra.Command{
		Use:   "nftdump",
		Short: "Inspect native file test fixtures",
		Long: `nftdump reads the native file test (NFT) fixtures a debugger test suite
runs against: it finds the fixture executables through their JSON sidecars and
reads the addresses of the functions the tests break on.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := logging.ParseLevel(g.logLevel)
			return err
		},
	}
	cmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "warn", "Log level (trace, debug, info, warn, error)")
	cmd.PersistentFlags().BoolVar(&g.pretty, "log-pretty", true, "Human-readable log output on stderr")

	cmd.AddCommand(newMetadataCmd(g))
	cmd.AddCommand(newSymbolsCmd(g))
	cmd.AddCommand(newPDBCmd(g))
	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

func writeJSON(w io.Writer, v any, pretty bool) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}
