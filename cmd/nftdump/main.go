// nftdump inspects native file test fixtures and the PDB files built with them.
package main

import (
	"fmt"
	"os"

	"github.com/jtang613/nativefiletests/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
