package nft

import (
	"debug/pe"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/jtang613/nativefiletests/pkg/pdb"
)

// peImage holds what the PDB walk needs from the executable.
type peImage struct {
	imageBase uint64
	sectionVA []uint64 // indexed by 0-based section number
}

func readPEImage(path string) (*peImage, error) {
	r, err := mapFile(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	f, err := pe.NewFile(r)
	if err != nil {
		return nil, &MalformedObjectError{Path: path, Err: err}
	}
	defer f.Close()

	img := &peImage{}
	switch oh := f.OptionalHeader.(type) {
	case *pe.OptionalHeader32:
		img.imageBase = uint64(oh.ImageBase)
	case *pe.OptionalHeader64:
		img.imageBase = oh.ImageBase
	default:
		return nil, invalidObject(path, "missing PE optional header")
	}

	img.sectionVA = make([]uint64, len(f.Sections))
	for i, s := range f.Sections {
		img.sectionVA[i] = uint64(s.VirtualAddress)
	}
	return img, nil
}

// forEachPDBSymbol emits every module procedure in the PDB at its loaded
// address: image base, plus the RVA of its section in the executable, plus
// its offset after address map translation.
func forEachPDBSymbol(exePath, pdbPath string, fn SymbolFunc, log zerolog.Logger) error {
	img, err := readPEImage(exePath)
	if err != nil {
		return err
	}

	r, err := mapFile(pdbPath)
	if err != nil {
		return err
	}
	defer r.Close()

	p, err := pdb.NewReader(r)
	if err != nil {
		return &MalformedObjectError{Path: pdbPath, Err: err}
	}
	defer p.Close()

	amap, err := p.AddressMap()
	if err != nil {
		return &MalformedObjectError{Path: pdbPath, Err: err}
	}

	info := p.Info()
	log.Debug().
		Str("pdb", pdbPath).
		Str("guid", info.GUID).
		Uint32("age", info.Age).
		Str("machine", info.Machine).
		Bool("omap", info.HasOMAP).
		Str("image_base", fmt.Sprintf("%#x", img.imageBase)).
		Int("sections", len(img.sectionVA)).
		Msg("loaded PE and PDB")

	p.OnSkip(func(module string, err error) {
		log.Trace().Str("module", module).Err(err).Msg("skipped symbol record")
	})
	err = p.ForEachFunction(func(proc pdb.Function) error {
		so, ok := amap.SectionOffset(proc.Segment, proc.Offset)
		if !ok {
			return invalidObject(pdbPath, "cannot translate %s at %04x:%08x through the address map", proc.Name, proc.Segment, proc.Offset)
		}
		if so.Section == 0 || int(so.Section) > len(img.sectionVA) {
			return invalidObject(exePath, "%s lies in section %d, image has %d sections", proc.Name, so.Section, len(img.sectionVA))
		}
		fn(proc.Name, img.imageBase+img.sectionVA[so.Section-1]+uint64(so.Offset), uint64(proc.Length))
		return nil
	})
	if err != nil {
		var invalid *InvalidObjectError
		if errors.As(err, &invalid) {
			return err
		}
		return &MalformedObjectError{Path: pdbPath, Err: err}
	}
	return nil
}
