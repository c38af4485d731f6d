// Package streams provides parsers for the PDB streams the symbol walk needs.
package streams

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// PDBInfoHeader is the fixed header at the start of the PDB info stream.
type PDBInfoHeader struct {
	Version   uint32
	Signature uint32 // creation timestamp
	Age       uint32
	GUID      [16]byte
}

// PDBInfo represents the PDB Info Stream (stream 1).
type PDBInfo struct {
	PDBInfoHeader
	NamedStreams map[string]uint32

	// NamedStreamsErr is set when the name table could not be read in
	// full. NamedStreams then holds the entries decoded before it.
	NamedStreamsErr error
}

// ReadPDBInfo parses the PDB info stream. The named stream table is optional;
// a truncated table yields the header with whatever names were read and
// records the failure in NamedStreamsErr.
func ReadPDBInfo(r io.Reader) (*PDBInfo, error) {
	info := &PDBInfo{NamedStreams: make(map[string]uint32)}
	if err := binary.Read(r, binary.LittleEndian, &info.PDBInfoHeader); err != nil {
		return nil, fmt.Errorf("failed to read PDB info header: %w", err)
	}

	if err := readNamedStreams(r, info.NamedStreams); err != nil {
		info.NamedStreamsErr = fmt.Errorf("named stream table: %w", err)
	}
	return info, nil
}

// readNamedStreams decodes the serialized hash table that maps stream names
// to stream indices: string buffer, size, capacity, present and deleted bit
// vectors, then one (key offset, stream index) pair per present bucket.
func readNamedStreams(r io.Reader, out map[string]uint32) error {
	var strBufSize uint32
	if err := binary.Read(r, binary.LittleEndian, &strBufSize); err != nil {
		return err
	}
	strBuf := make([]byte, strBufSize)
	if _, err := io.ReadFull(r, strBuf); err != nil {
		return err
	}

	var table struct {
		Size     uint32
		Capacity uint32
	}
	if err := binary.Read(r, binary.LittleEndian, &table); err != nil {
		return err
	}

	present, err := readBitVector(r)
	if err != nil {
		return err
	}
	if _, err := readBitVector(r); err != nil { // deleted
		return err
	}

	for i := uint32(0); i < table.Capacity; i++ {
		if !isBitSet(present, i) {
			continue
		}
		var entry struct {
			KeyOffset   uint32
			StreamIndex uint32
		}
		if err := binary.Read(r, binary.LittleEndian, &entry); err != nil {
			return err
		}
		if entry.KeyOffset < strBufSize {
			out[extractCString(strBuf[entry.KeyOffset:])] = entry.StreamIndex
		}
	}
	return nil
}

func readBitVector(r io.Reader) ([]uint32, error) {
	var words uint32
	if err := binary.Read(r, binary.LittleEndian, &words); err != nil {
		return nil, err
	}
	v := make([]uint32, words)
	if err := binary.Read(r, binary.LittleEndian, v); err != nil {
		return nil, err
	}
	return v, nil
}

// GUIDString returns the GUID in the upper-case form symbol servers use.
func (p *PDBInfo) GUIDString() string {
	return fmt.Sprintf("%08X%04X%04X%X",
		binary.LittleEndian.Uint32(p.GUID[0:4]),
		binary.LittleEndian.Uint16(p.GUID[4:6]),
		binary.LittleEndian.Uint16(p.GUID[6:8]),
		p.GUID[8:16])
}

func isBitSet(words []uint32, n uint32) bool {
	if n/32 >= uint32(len(words)) {
		return false
	}
	return words[n/32]&(1<<(n%32)) != 0
}

func extractCString(data []byte) string {
	if idx := bytes.IndexByte(data, 0); idx >= 0 {
		return string(data[:idx])
	}
	return string(data)
}
