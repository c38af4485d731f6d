package streams

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jtang613/nativefiletests/internal/nfttest"
	"github.com/jtang613/nativefiletests/pkg/pdb/msf"
)

func readStream(t *testing.T, p *nfttest.PDB, index int) []byte {
	t.Helper()
	m, err := msf.NewReader(bytes.NewReader(p.Bytes()))
	require.NoError(t, err)
	data, err := m.ReadStream(index)
	require.NoError(t, err)
	return data
}

// vc70 is the info stream version current toolchains still write.
const vc70 = 20000404

func TestReadPDBInfo(t *testing.T) {
	p := &nfttest.PDB{
		Age:  3,
		GUID: [16]byte{0x78, 0x56, 0x34, 0x12, 0xbc, 0x9a, 0xf0, 0xde, 1, 2, 3, 4, 5, 6, 7, 8},
	}
	info, err := ReadPDBInfo(bytes.NewReader(readStream(t, p, 1)))
	require.NoError(t, err)

	assert.Equal(t, uint32(vc70), info.Version)
	assert.Equal(t, uint32(3), info.Age)
	assert.Equal(t, "123456789ABCDEF00102030405060708", info.GUIDString())
	assert.Empty(t, info.NamedStreams)
	assert.NoError(t, info.NamedStreamsErr)
}

func TestReadPDBInfo_NamedStreams(t *testing.T) {
	var b bytes.Buffer
	le := binary.LittleEndian
	binary.Write(&b, le, PDBInfoHeader{Version: vc70, Age: 1})

	names := "/names\x00/LinkInfo\x00"
	binary.Write(&b, le, uint32(len(names)))
	b.WriteString(names)
	binary.Write(&b, le, []uint32{
		2,      // size
		4,      // capacity
		1, 0x5, // present: buckets 0 and 2
		0,      // deleted
		0, 12,  // "/names" -> stream 12
		7, 5,   // "/LinkInfo" -> stream 5
	})

	info, err := ReadPDBInfo(&b)
	require.NoError(t, err)
	assert.Equal(t, map[string]uint32{"/names": 12, "/LinkInfo": 5}, info.NamedStreams)
	assert.NoError(t, info.NamedStreamsErr)
}

func TestReadPDBInfo_TruncatedNameTable(t *testing.T) {
	var b bytes.Buffer
	binary.Write(&b, binary.LittleEndian, PDBInfoHeader{Version: vc70, Age: 9})
	binary.Write(&b, binary.LittleEndian, uint32(100))

	info, err := ReadPDBInfo(&b)
	require.NoError(t, err)
	assert.Equal(t, uint32(9), info.Age)
	assert.Empty(t, info.NamedStreams)
	assert.ErrorContains(t, info.NamedStreamsErr, "named stream table")
}

func TestReadPDBInfo_TooShort(t *testing.T) {
	_, err := ReadPDBInfo(bytes.NewReader(make([]byte, 10)))
	assert.Error(t, err)
}

func TestReadDBIStream(t *testing.T) {
	p := &nfttest.PDB{
		Age:   1,
		Procs: []nfttest.PDBProc{{Name: "function1", Segment: 1, Offset: 0x10, Length: 0x20}},
	}
	dbi, err := ReadDBIStream(readStream(t, p, 3))
	require.NoError(t, err)

	assert.Equal(t, uint16(MachineAMD64), dbi.Header.Machine)
	assert.Equal(t, "x64", MachineTypeName(dbi.Header.Machine))
	require.Len(t, dbi.Modules, 1)

	mod := dbi.Modules[0]
	assert.Equal(t, `C:\nft\simple.obj`, mod.ModuleName)
	assert.Equal(t, `C:\nft\simple.obj`, mod.ObjFileName)
	assert.Equal(t, uint16(nfttest.PDBModuleStream), mod.ModuleSymStream)
	assert.Equal(t, uint16(1), mod.SourceFileCount)
	assert.True(t, mod.HasSymbols())

	assert.Equal(t, uint16(nfttest.PDBSectionHdrStream), dbi.DebugHeader.SectionHdr)
	assert.Equal(t, uint16(NoStream), dbi.DebugHeader.OmapFromSrc)
	assert.Equal(t, uint16(NoStream), dbi.DebugHeader.SectionHdrOrig)
}

func TestReadDBIStream_OMAP(t *testing.T) {
	p := &nfttest.PDB{
		Sections:         []nfttest.PESection{{Name: ".text", VirtualAddress: 0x1000, VirtualSize: 0x100}},
		OriginalSections: []nfttest.PESection{{Name: ".text", VirtualAddress: 0x1000, VirtualSize: 0x100}},
		OMAP:             []nfttest.OMAPEntry{{From: 0x1000, To: 0x1000}},
	}
	dbi, err := ReadDBIStream(readStream(t, p, 3))
	require.NoError(t, err)
	assert.Equal(t, uint16(nfttest.PDBOmapFromSrcStream), dbi.DebugHeader.OmapFromSrc)
	assert.Equal(t, uint16(nfttest.PDBSectionHdrOrigStream), dbi.DebugHeader.SectionHdrOrig)
}

func TestReadDBIStream_Invalid(t *testing.T) {
	valid := readStream(t, &nfttest.PDB{}, 3)

	t.Run("too small", func(t *testing.T) {
		_, err := ReadDBIStream(valid[:dbiHeaderSize-1])
		assert.ErrorContains(t, err, "too small")
	})

	t.Run("bad signature", func(t *testing.T) {
		data := bytes.Clone(valid)
		data[0] = 0
		_, err := ReadDBIStream(data)
		assert.ErrorContains(t, err, "version signature")
	})

	t.Run("substream overrun", func(t *testing.T) {
		data := bytes.Clone(valid)
		binary.LittleEndian.PutUint32(data[24:], 0x7fff0000) // ModInfoSize
		_, err := ReadDBIStream(data)
		assert.ErrorContains(t, err, "exceeds stream size")
	})
}

func TestParseModuleInfo_Truncated(t *testing.T) {
	_, err := parseModuleInfo(make([]byte, 40))
	assert.ErrorContains(t, err, "truncated")

	entry := make([]byte, moduleInfoFixedSize+3)
	copy(entry[moduleInfoFixedSize:], "abc")
	_, err = parseModuleInfo(entry)
	assert.ErrorContains(t, err, "unterminated module name")
}

func TestParseDebugHeader_Short(t *testing.T) {
	h := parseDebugHeader([]byte{1, 0, 2, 0})
	assert.Equal(t, uint16(1), h.FPO)
	assert.Equal(t, uint16(2), h.Exception)
	assert.Equal(t, uint16(NoStream), h.SectionHdr)
	assert.Equal(t, uint16(NoStream), h.SectionHdrOrig)
}
