package nft

import (
	"fmt"

	"golang.org/x/exp/mmap"
)

// SymbolFunc receives one symbol sample: a name, its virtual address, and a
// size whose meaning depends on the backend. ELF and PDB report the
// procedure length. Mach-O reports the N_ENSYM value unchanged.
type SymbolFunc func(name string, addr, size uint64)

// ForEachSymbol walks the symbols of one fixture binary in the natural order
// of its symbol table and calls fn for each sample. binaryPath is the
// executable; debugPath is the separate debug file, used on Windows only.
// Names are not deduplicated.
func ForEachSymbol(platform Platform, binaryPath, debugPath string, fn SymbolFunc, opts ...Option) error {
	log := newConfig(opts).logger.With().Str("platform", platform.String()).Str("binary", binaryPath).Logger()

	var (
		n   int
		err error
	)
	count := func(name string, addr, size uint64) {
		n++
		fn(name, addr, size)
	}

	switch platform {
	case Linux:
		err = forEachELFSymbol(binaryPath, count)
	case Darwin:
		err = forEachMachOSymbol(binaryPath, count)
	case Windows:
		err = forEachPDBSymbol(binaryPath, debugPath, count, log)
	default:
		return &InvalidInputError{Reason: fmt.Sprintf("no symbol backend for platform %q", platform)}
	}
	if err != nil {
		return err
	}

	log.Debug().Int("symbols", n).Msg("walked symbol table")
	return nil
}

// mapFile maps path read-only. The caller closes the mapping.
func mapFile(path string) (*mmap.ReaderAt, error) {
	r, err := mmap.Open(path)
	if err != nil {
		return nil, &IOError{Op: "open", Path: path, Err: err}
	}
	return r, nil
}
