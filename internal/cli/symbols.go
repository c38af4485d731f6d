package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/jtang613/nativefiletests/pkg/nft"
)

func newSymbolsCmd(g *globalFlags) *cobra.Command {
	var platform string

	cmd := &cobra.Command{
		Use:   "symbols BINARY [DEBUG]",
		Short: "Print every symbol sample of one binary",
		Long: `Walk the symbol table of BINARY the way the metadata loader does and print
one line per sample: address, size and name. On Windows DEBUG names the PDB;
elsewhere it defaults to BINARY.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := nft.ParsePlatform(platform)
			if err != nil {
				return err
			}

			binary, debug := args[0], args[0]
			if len(args) == 2 {
				debug = args[1]
			}

			out := cmd.OutOrStdout()
			var werr error
			err = nft.ForEachSymbol(p, binary, debug, func(name string, addr, size uint64) {
				if werr == nil {
					_, werr = fmt.Fprintf(out, "%#016x %8d %s\n", addr, size, name)
				}
			}, nft.WithLogger(g.logger(cmd)))
			if err != nil {
				return err
			}
			return werr
		},
	}

	cmd.Flags().StringVarP(&platform, "platform", "p", defaultPlatform(), "Object format to read (linux, darwin, windows)")
	return cmd
}

func defaultPlatform() string {
	p, err := nft.PlatformFromHostOS(runtime.GOOS)
	if err != nil {
		return ""
	}
	return p.String()
}
