package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jtang613/nativefiletests/pkg/pdb"
)

// functionEntry is a procedure record plus its image-relative address.
// RVA is omitted when the record's section cannot be translated.
type functionEntry struct {
	pdb.Function
	RVA uint32 `json:"rva,omitempty"`
}

func functionEntries(fns []pdb.Function, amap *pdb.AddressMap) []functionEntry {
	out := make([]functionEntry, len(fns))
	for i, fn := range fns {
		out[i].Function = fn
		if rva, ok := amap.RVA(fn.Segment, fn.Offset); ok {
			out[i].RVA = rva
		}
	}
	return out
}

func newPDBCmd(g *globalFlags) *cobra.Command {
	var (
		showInfo      bool
		showModules   bool
		showFunctions bool
		showSections  bool
		showAll       bool
		pretty        bool
	)

	cmd := &cobra.Command{
		Use:   "pdb FILE",
		Short: "Dump PDB information as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := g.logger(cmd)

			p, err := pdb.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open PDB: %w", err)
			}
			defer p.Close()

			p.OnSkip(func(module string, err error) {
				log.Debug().Str("module", module).Err(err).Msg("skipped symbol record")
			})

			if !showInfo && !showModules && !showFunctions && !showSections && !showAll {
				showInfo = true
			}

			result := make(map[string]any)
			if showInfo || showAll {
				info := p.Info()
				if info.NameTableError != "" {
					log.Warn().Str("pdb", args[0]).Str("error", info.NameTableError).Msg("named stream table is incomplete")
				}
				result["info"] = info
			}
			if showModules || showAll {
				result["modules"] = p.Modules()
			}
			var amap *pdb.AddressMap
			if showFunctions || showSections || showAll {
				if amap, err = p.AddressMap(); err != nil {
					return err
				}
			}
			if showFunctions || showAll {
				fns, err := p.Functions()
				if err != nil {
					return err
				}
				result["functions"] = functionEntries(fns, amap)
			}
			if showSections || showAll {
				result["sections"] = amap.Sections()
			}

			return writeJSON(cmd.OutOrStdout(), result, pretty)
		},
	}

	cmd.Flags().BoolVar(&showInfo, "info", false, "Show PDB file information")
	cmd.Flags().BoolVar(&showModules, "modules", false, "List all modules")
	cmd.Flags().BoolVar(&showFunctions, "functions", false, "List all module procedures")
	cmd.Flags().BoolVar(&showSections, "sections", false, "List the image sections recorded in the PDB")
	cmd.Flags().BoolVar(&showAll, "all", false, "Show all information")
	cmd.Flags().BoolVar(&pretty, "pretty", false, "Pretty-print JSON output")
	return cmd
}
