package cli

import (
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/jtang613/nativefiletests/pkg/nft"
)

// envFixtureDir names the fixture directory when --dir is not given.
const envFixtureDir = "NFT_DIR"

func newMetadataCmd(g *globalFlags) *cobra.Command {
	var (
		dir    string
		hostOS string
		format string
		pkg    string
	)

	cmd := &cobra.Command{
		Use:   "metadata",
		Short: "Print the test metadata for a fixture directory",
		Long: `Locate the simple and workerthreads fixtures built for the host OS and
print their paths and the six function addresses the debugger tests use.

The fixture directory defaults to $NFT_DIR. With --format go the result is
written as a Go source file declaring one constant per value.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dir == "" {
				dir = os.Getenv(envFixtureDir)
			}
			if dir == "" {
				return errors.New("no fixture directory: pass --dir or set " + envFixtureDir)
			}

			md, err := nft.CreateTestMetadata(dir, hostOS, nft.WithLogger(g.logger(cmd)))
			if err != nil {
				return err
			}

			switch format {
			case "json":
				return writeJSON(cmd.OutOrStdout(), md, true)
			case "go":
				return md.WriteGoSource(cmd.OutOrStdout(), pkg)
			default:
				return fmt.Errorf("unknown format %q (want json or go)", format)
			}
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "Fixture directory (default $"+envFixtureDir+")")
	cmd.Flags().StringVar(&hostOS, "os", runtime.GOOS, "Host OS the fixtures were built for (linux, macos, windows)")
	cmd.Flags().StringVarP(&format, "format", "f", "json", "Output format (json, go)")
	cmd.Flags().StringVar(&pkg, "package", "nftfixtures", "Package name for --format go")
	return cmd
}
