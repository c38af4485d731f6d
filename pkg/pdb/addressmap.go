package pdb

import (
	"bytes"
	"debug/pe"
	"encoding/binary"
	"fmt"

	"golang.org/x/exp/slices"
)

// omapEntry maps one source RVA range start to its target RVA. A zero To
// means the range was discarded.
type omapEntry struct {
	From uint32
	To   uint32
}

type omap []omapEntry

// lookup translates rva through the table. Entries are sorted by From; the
// entry covering rva is the last one whose From is not above it.
func (m omap) lookup(rva uint32) (uint32, bool) {
	i, found := slices.BinarySearchFunc(m, rva, func(e omapEntry, target uint32) int {
		switch {
		case e.From < target:
			return -1
		case e.From > target:
			return 1
		}
		return 0
	})
	if !found {
		if i == 0 {
			return 0, false
		}
		i--
	}
	e := m[i]
	if e.To == 0 {
		return 0, false
	}
	return e.To + (rva - e.From), true
}

// AddressMap translates the (segment, offset) pairs stored in symbol records
// into section offsets of the final image. Symbol records use the section
// layout the compiler saw; when a post-link optimizer rewrote the image the
// PDB carries OMAP tables and the original section headers to undo that.
type AddressMap struct {
	sections    []SectionInfo // final image sections
	original    []SectionInfo // pre-OMAP sections, nil without OMAP
	omapFromSrc omap
}

// Sections returns the final image section headers recorded in the PDB.
func (m *AddressMap) Sections() []SectionInfo {
	return m.sections
}

// HasOMAP reports whether translation goes through OMAP tables.
func (m *AddressMap) HasOMAP() bool {
	return m.omapFromSrc != nil
}

// SectionOffset converts a symbol record's segment and offset to a location
// in the final image. It reports false when the segment is zero or the
// address was discarded or falls outside every section.
func (m *AddressMap) SectionOffset(segment uint16, offset uint32) (SectionOffset, bool) {
	if segment == 0 {
		return SectionOffset{}, false
	}
	if !m.HasOMAP() {
		return SectionOffset{Section: segment, Offset: offset}, true
	}

	if int(segment) > len(m.original) {
		return SectionOffset{}, false
	}
	rva, ok := m.omapFromSrc.lookup(m.original[segment-1].Offset + offset)
	if !ok {
		return SectionOffset{}, false
	}
	for _, s := range m.sections {
		if s.Contains(rva) {
			return SectionOffset{Section: s.Index, Offset: rva - s.Offset}, true
		}
	}
	return SectionOffset{}, false
}

// RVA converts a symbol record's segment and offset to an image-relative
// address using the section headers recorded in the PDB.
func (m *AddressMap) RVA(segment uint16, offset uint32) (uint32, bool) {
	so, ok := m.SectionOffset(segment, offset)
	if !ok || int(so.Section) > len(m.sections) {
		return 0, false
	}
	return m.sections[so.Section-1].Offset + so.Offset, true
}

// AddressMap builds the translator from the DBI optional debug header streams.
func (p *PDB) AddressMap() (*AddressMap, error) {
	hdr := p.dbi.DebugHeader
	m := &AddressMap{}

	var err error
	if m.sections, err = p.readSections(hdr.SectionHdr); err != nil {
		return nil, fmt.Errorf("failed to read section headers: %w", err)
	}

	if hdr.OmapFromSrc == noStream {
		return m, nil
	}
	if m.omapFromSrc, err = p.readOMAP(hdr.OmapFromSrc); err != nil {
		return nil, fmt.Errorf("failed to read OMAP from source: %w", err)
	}
	if m.original, err = p.readSections(hdr.SectionHdrOrig); err != nil {
		return nil, fmt.Errorf("failed to read original section headers: %w", err)
	}
	if len(m.original) == 0 {
		return nil, fmt.Errorf("OMAP present without original section headers")
	}
	return m, nil
}

// readSections decodes a stream of IMAGE_SECTION_HEADER records.
func (p *PDB) readSections(index uint16) ([]SectionInfo, error) {
	if index == noStream {
		return nil, nil
	}
	data, err := p.msf.ReadStream(int(index))
	if err != nil {
		return nil, err
	}
	const headerSize = 40
	if len(data)%headerSize != 0 {
		return nil, fmt.Errorf("section header stream size %d is not a multiple of %d", len(data), headerSize)
	}

	raw := make([]pe.SectionHeader32, len(data)/headerSize)
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, raw); err != nil {
		return nil, err
	}

	sections := make([]SectionInfo, len(raw))
	for i, sh := range raw {
		name := sh.Name[:]
		if end := bytes.IndexByte(name, 0); end >= 0 {
			name = name[:end]
		}
		sections[i] = SectionInfo{
			Index:  uint16(i + 1),
			Name:   string(name),
			Offset: sh.VirtualAddress,
			Length: sh.VirtualSize,
		}
	}
	return sections, nil
}

func (p *PDB) readOMAP(index uint16) (omap, error) {
	data, err := p.msf.ReadStream(int(index))
	if err != nil {
		return nil, err
	}
	if len(data)%8 != 0 {
		return nil, fmt.Errorf("OMAP stream size %d is not a multiple of 8", len(data))
	}
	m := make(omap, len(data)/8)
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, []omapEntry(m)); err != nil {
		return nil, err
	}
	slices.SortStableFunc(m, func(a, b omapEntry) int {
		switch {
		case a.From < b.From:
			return -1
		case a.From > b.From:
			return 1
		}
		return 0
	})
	return m, nil
}
