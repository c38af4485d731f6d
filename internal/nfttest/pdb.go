package nfttest

import (
	"bytes"
	"encoding/binary"
)

// CodeView record kinds written by the PDB builder.
const (
	SGPROC32 = 0x1110
	SLPROC32 = 0x110f
	SEND     = 0x0006
	SOBJNAME = 0x1101
)

// PDBProc is one procedure record in the module symbol stream. Truncated
// writes a record too short to decode.
type PDBProc struct {
	Name      string
	Segment   uint16
	Offset    uint32
	Length    uint32
	Local     bool
	Truncated bool
}

// OMAPEntry maps a source RVA to a target RVA.
type OMAPEntry struct {
	From uint32
	To   uint32
}

// PDB describes a program database with one module. Sections are the final
// image sections. When OMAP is set the procedures are placed relative to
// OriginalSections and translated through OMAP.
type PDB struct {
	Age              uint32
	GUID             [16]byte
	Procs            []PDBProc
	Sections         []PESection
	OMAP             []OMAPEntry
	OriginalSections []PESection
	// NoDBI leaves stream 3 empty.
	NoDBI bool
}

// Stream indices the builder assigns.
const (
	PDBModuleStream         = 5
	PDBSectionHdrStream     = 6
	PDBOmapFromSrcStream    = 7
	PDBSectionHdrOrigStream = 8
)

// Bytes serializes the PDB with 512-byte blocks.
func (p *PDB) Bytes() []byte {
	modSyms := p.moduleSymbols()

	var sections bytes.Buffer
	binary.Write(&sections, binary.LittleEndian, SectionHeaders(p.Sections))

	streams := [][]byte{
		{},             // old directory
		p.info(),       // PDB info
		{},             // TPI
		p.dbi(modSyms), // DBI
		{},             // IPI
		modSyms,
		sections.Bytes(),
	}
	if p.NoDBI {
		streams[3] = []byte{}
	}
	if p.OMAP != nil {
		var omap, orig bytes.Buffer
		binary.Write(&omap, binary.LittleEndian, p.OMAP)
		binary.Write(&orig, binary.LittleEndian, SectionHeaders(p.OriginalSections))
		streams = append(streams, omap.Bytes(), orig.Bytes())
	}
	return BuildMSF(512, streams)
}

func (p *PDB) info() []byte {
	var b bytes.Buffer
	le := binary.LittleEndian
	binary.Write(&b, le, uint32(20000404)) // VC70
	binary.Write(&b, le, uint32(0x5f3759df))
	binary.Write(&b, le, p.Age)
	b.Write(p.GUID[:])
	// Empty named stream table: string buffer size, hash size, capacity,
	// present and deleted bit vectors.
	binary.Write(&b, le, [5]uint32{})
	return b.Bytes()
}

func (p *PDB) moduleSymbols() []byte {
	var b bytes.Buffer
	le := binary.LittleEndian
	binary.Write(&b, le, uint32(4)) // C13 signature

	record := func(kind uint16, body []byte) {
		for (len(body)+4)%4 != 0 {
			body = append(body, 0)
		}
		binary.Write(&b, le, uint16(len(body)+2))
		binary.Write(&b, le, kind)
		b.Write(body)
	}

	record(SOBJNAME, append([]byte{0, 0, 0, 0}, "simple.obj\x00"...))
	for _, proc := range p.Procs {
		kind := uint16(SGPROC32)
		if proc.Local {
			kind = SLPROC32
		}
		if proc.Truncated {
			record(kind, make([]byte, 12))
			continue
		}
		var body bytes.Buffer
		binary.Write(&body, le, [7]uint32{0, 0, 0, proc.Length, 0, proc.Length, 0x1001})
		binary.Write(&body, le, proc.Offset)
		binary.Write(&body, le, proc.Segment)
		body.WriteByte(0) // flags
		body.WriteString(proc.Name)
		body.WriteByte(0)
		record(kind, body.Bytes())
		record(SEND, nil)
	}
	return b.Bytes()
}

func (p *PDB) dbi(modSyms []byte) []byte {
	le := binary.LittleEndian

	var mod bytes.Buffer
	entry := make([]byte, 64)
	le.PutUint16(entry[4:], 1)                     // section contribution
	le.PutUint16(entry[34:], PDBModuleStream)      // symbol stream
	le.PutUint32(entry[36:], uint32(len(modSyms))) // symbol bytes
	le.PutUint16(entry[48:], 1)                    // source files
	mod.Write(entry)
	mod.WriteString("C:\\nft\\simple.obj\x00")
	mod.WriteString("C:\\nft\\simple.obj\x00")
	pad(&mod, 4)

	debug := [11]uint16{}
	for i := range debug {
		debug[i] = 0xFFFF
	}
	debug[5] = PDBSectionHdrStream
	if p.OMAP != nil {
		debug[4] = PDBOmapFromSrcStream
		debug[10] = PDBSectionHdrOrigStream
	}

	var b bytes.Buffer
	binary.Write(&b, le, struct {
		VersionSignature        int32
		VersionHeader           uint32
		Age                     uint32
		GlobalStreamIndex       uint16
		BuildNumber             uint16
		PublicStreamIndex       uint16
		PdbDllVersion           uint16
		SymRecordStream         uint16
		PdbDllRbld              uint16
		ModInfoSize             int32
		SectionContributionSize int32
		SectionMapSize          int32
		SourceInfoSize          int32
		TypeServerMapSize       int32
		MFCTypeServerIndex      uint32
		OptionalDbgHeaderSize   int32
		ECSubstreamSize         int32
		Flags                   uint16
		Machine                 uint16
		Padding                 uint32
	}{
		VersionSignature:      -1,
		VersionHeader:         19990903,
		Age:                   p.Age,
		GlobalStreamIndex:     0xFFFF,
		PublicStreamIndex:     0xFFFF,
		SymRecordStream:       0xFFFF,
		ModInfoSize:           int32(mod.Len()),
		OptionalDbgHeaderSize: int32(len(debug) * 2),
		Machine:               0x8664,
	})
	b.Write(mod.Bytes())
	binary.Write(&b, le, debug)
	return b.Bytes()
}
