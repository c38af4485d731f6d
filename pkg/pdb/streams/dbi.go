package streams

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Machine types
const (
	MachineUnknown = 0x0000
	MachineI386    = 0x014c
	MachineIA64    = 0x0200
	MachineAMD64   = 0x8664
	MachineARM     = 0x01c0
	MachineARM64   = 0xAA64
)

// NoStream is the stream index meaning "absent".
const NoStream = 0xFFFF

// dbiHeaderSize is the size of DBIHeader on disk.
const dbiHeaderSize = 64

// moduleInfoFixedSize is the size of a module info entry before its two names.
const moduleInfoFixedSize = 64

// DBIHeader is the fixed header of the DBI stream.
type DBIHeader struct {
	VersionSignature        int32 // always -1
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
}

// DebugHeader lists the streams named by the DBI optional debug header.
// Entries past the end of a short header are NoStream.
type DebugHeader struct {
	FPO            uint16
	Exception      uint16
	Fixup          uint16
	OmapToSrc      uint16
	OmapFromSrc    uint16
	SectionHdr     uint16
	TokenRIDMap    uint16
	Xdata          uint16
	Pdata          uint16
	NewFPO         uint16
	SectionHdrOrig uint16
}

// DBIStream represents the parsed DBI stream.
type DBIStream struct {
	Header      DBIHeader
	Modules     []ModuleInfo
	DebugHeader DebugHeader
}

// ModuleInfo describes one compiled module (object file) and its symbol stream.
type ModuleInfo struct {
	Section         uint16 // first section contribution
	Flags           uint16
	ModuleSymStream uint16 // NoStream if none
	SymByteSize     uint32
	C11ByteSize     uint32
	C13ByteSize     uint32
	SourceFileCount uint16
	ModuleName      string
	ObjFileName     string
}

// ReadDBIStream parses the DBI stream header, module list and optional debug header.
func ReadDBIStream(data []byte) (*DBIStream, error) {
	if len(data) < dbiHeaderSize {
		return nil, fmt.Errorf("DBI stream too small: %d bytes", len(data))
	}

	var header DBIHeader
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("failed to read DBI header: %w", err)
	}
	if header.VersionSignature != -1 {
		return nil, fmt.Errorf("invalid DBI version signature: %d", header.VersionSignature)
	}

	dbi := &DBIStream{Header: header}

	// Substreams follow the header in this order.
	sizes := []int32{
		header.ModInfoSize,
		header.SectionContributionSize,
		header.SectionMapSize,
		header.SourceInfoSize,
		header.TypeServerMapSize,
		header.ECSubstreamSize,
		header.OptionalDbgHeaderSize,
	}
	var sub [7][]byte
	offset := dbiHeaderSize
	for i, size := range sizes {
		if size < 0 || offset+int(size) > len(data) {
			return nil, fmt.Errorf("DBI substream %d (size %d at %d) exceeds stream size %d", i, size, offset, len(data))
		}
		sub[i] = data[offset : offset+int(size)]
		offset += int(size)
	}

	modules, err := parseModuleInfo(sub[0])
	if err != nil {
		return nil, fmt.Errorf("failed to parse module info: %w", err)
	}
	dbi.Modules = modules
	dbi.DebugHeader = parseDebugHeader(sub[6])

	return dbi, nil
}

// parseModuleInfo parses the module info substream.
func parseModuleInfo(data []byte) ([]ModuleInfo, error) {
	var modules []ModuleInfo
	le := binary.LittleEndian

	for offset := 0; offset < len(data); {
		if offset+moduleInfoFixedSize > len(data) {
			return modules, fmt.Errorf("truncated module info entry at %d", offset)
		}
		e := data[offset:]

		// Layout: Unused1(4) SectionContrib(28) Flags(2) ModuleSymStream(2)
		// SymByteSize(4) C11ByteSize(4) C13ByteSize(4) SourceFileCount(2)
		// Padding(2) Unused2(4) SourceFileNameIndex(4) PdbFilePathNameIndex(4).
		mod := ModuleInfo{
			Section:         le.Uint16(e[4:]),
			Flags:           le.Uint16(e[32:]),
			ModuleSymStream: le.Uint16(e[34:]),
			SymByteSize:     le.Uint32(e[36:]),
			C11ByteSize:     le.Uint32(e[40:]),
			C13ByteSize:     le.Uint32(e[44:]),
			SourceFileCount: le.Uint16(e[48:]),
		}
		offset += moduleInfoFixedSize

		var n int
		var ok bool
		if mod.ModuleName, n, ok = cstring(data[offset:]); !ok {
			return modules, fmt.Errorf("unterminated module name at %d", offset)
		}
		offset += n
		if mod.ObjFileName, n, ok = cstring(data[offset:]); !ok {
			return modules, fmt.Errorf("unterminated object file name at %d", offset)
		}
		offset += n

		offset = (offset + 3) &^ 3
		modules = append(modules, mod)
	}

	return modules, nil
}

func parseDebugHeader(data []byte) DebugHeader {
	idx := [11]uint16{}
	for i := range idx {
		idx[i] = NoStream
		if 2*i+2 <= len(data) {
			idx[i] = binary.LittleEndian.Uint16(data[2*i:])
		}
	}
	return DebugHeader{
		FPO:            idx[0],
		Exception:      idx[1],
		Fixup:          idx[2],
		OmapToSrc:      idx[3],
		OmapFromSrc:    idx[4],
		SectionHdr:     idx[5],
		TokenRIDMap:    idx[6],
		Xdata:          idx[7],
		Pdata:          idx[8],
		NewFPO:         idx[9],
		SectionHdrOrig: idx[10],
	}
}

// cstring returns the NUL-terminated string at the start of data and the
// number of bytes consumed including the terminator.
func cstring(data []byte) (string, int, bool) {
	idx := bytes.IndexByte(data, 0)
	if idx < 0 {
		return "", 0, false
	}
	return string(data[:idx]), idx + 1, true
}

// MachineTypeName returns the human-readable name for a machine type.
func MachineTypeName(machine uint16) string {
	switch machine {
	case MachineI386:
		return "x86"
	case MachineAMD64:
		return "x64"
	case MachineARM:
		return "ARM"
	case MachineARM64:
		return "ARM64"
	case MachineIA64:
		return "IA64"
	default:
		return fmt.Sprintf("0x%04x", machine)
	}
}

// HasSymbols returns true if the module has symbol information.
func (m *ModuleInfo) HasSymbols() bool {
	return m.ModuleSymStream != NoStream && m.SymByteSize > 0
}
