// Package codeview provides parsing for CodeView debug symbol records.
package codeview

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// CVSignatureC13 prefixes every module symbol stream written by VC 7.0 and later.
const CVSignatureC13 = 4

// Symbol record kinds (S_* values) the procedure walk cares about.
const (
	S_END            = 0x0006
	S_LPROC32_ST     = 0x100a
	S_GPROC32_ST     = 0x100b
	S_FRAMEPROC      = 0x1012
	S_OBJNAME        = 0x1101
	S_LDATA32        = 0x110c
	S_GDATA32        = 0x110d
	S_PUB32          = 0x110e
	S_LPROC32        = 0x110f
	S_GPROC32        = 0x1110
	S_REGREL32       = 0x1111
	S_GPROCMIPS      = 0x1115
	S_COMPILE2       = 0x1116
	S_GPROCIA64      = 0x1119
	S_GMANPROC       = 0x112a
	S_LMANPROC       = 0x112b
	S_COMPILE3       = 0x113c
	S_LOCAL          = 0x113e
	S_LPROC32_ID     = 0x1146
	S_GPROC32_ID     = 0x1147
	S_BUILDINFO      = 0x114c
	S_PROC_ID_END    = 0x114f
	S_LPROC32_DPC    = 0x1155
	S_LPROC32_DPC_ID = 0x1156
)

// procSymFixedSize is the size of a procedure record body before its name.
const procSymFixedSize = 35

// SymbolRecord is one framed CodeView symbol record.
type SymbolRecord struct {
	Offset uint32 // offset of the record within its stream
	Kind   uint16
	Data   []byte // record body after the kind field
}

// ProcSym represents a procedure/function symbol (S_GPROC32, S_LPROC32, etc.)
type ProcSym struct {
	Parent    uint32
	End       uint32
	Next      uint32
	Length    uint32 // procedure length in bytes
	DbgStart  uint32
	DbgEnd    uint32
	TypeIndex uint32
	Offset    uint32 // section-relative code offset
	Segment   uint16 // 1-based section index
	Flags     uint8
	Name      string
}

// ParseSymbols frames all symbol records in data. A leading C13 signature is
// skipped. Framing stops at the first record whose length runs past the end
// of data; the records read so far are returned with the error.
func ParseSymbols(data []byte) ([]SymbolRecord, error) {
	var symbols []SymbolRecord
	offset := 0

	if len(data) >= 4 && binary.LittleEndian.Uint32(data) == CVSignatureC13 {
		offset = 4
	}

	for offset+4 <= len(data) {
		recLen := int(binary.LittleEndian.Uint16(data[offset:]))
		if recLen < 2 || offset+2+recLen > len(data) {
			return symbols, fmt.Errorf("symbol record at %d has bad length %d", offset, recLen)
		}

		symbols = append(symbols, SymbolRecord{
			Offset: uint32(offset),
			Kind:   binary.LittleEndian.Uint16(data[offset+2:]),
			Data:   data[offset+4 : offset+2+recLen],
		})
		offset += 2 + recLen
	}

	return symbols, nil
}

// ParseProcSym decodes the body of a procedure record of the given kind.
// The _ST kinds carry a length-prefixed name, the rest a NUL-terminated one.
func ParseProcSym(kind uint16, data []byte) (*ProcSym, error) {
	if !IsProcSymbol(kind) {
		return nil, fmt.Errorf("%s is not a procedure record", SymbolKindName(kind))
	}
	if len(data) < procSymFixedSize {
		return nil, fmt.Errorf("proc symbol data too small: %d bytes", len(data))
	}

	le := binary.LittleEndian
	proc := &ProcSym{
		Parent:    le.Uint32(data[0:]),
		End:       le.Uint32(data[4:]),
		Next:      le.Uint32(data[8:]),
		Length:    le.Uint32(data[12:]),
		DbgStart:  le.Uint32(data[16:]),
		DbgEnd:    le.Uint32(data[20:]),
		TypeIndex: le.Uint32(data[24:]),
		Offset:    le.Uint32(data[28:]),
		Segment:   le.Uint16(data[32:]),
		Flags:     data[34],
	}

	name := data[procSymFixedSize:]
	switch kind {
	case S_GPROC32_ST, S_LPROC32_ST:
		if len(name) == 0 || int(name[0]) > len(name)-1 {
			return nil, fmt.Errorf("bad length-prefixed name in %s", SymbolKindName(kind))
		}
		proc.Name = string(name[1 : 1+int(name[0])])
	default:
		if end := bytes.IndexByte(name, 0); end >= 0 {
			name = name[:end]
		}
		proc.Name = string(name)
	}

	return proc, nil
}

// SymbolKindName returns the name for a symbol kind constant.
func SymbolKindName(kind uint16) string {
	switch kind {
	case S_END:
		return "S_END"
	case S_GPROC32:
		return "S_GPROC32"
	case S_LPROC32:
		return "S_LPROC32"
	case S_GPROC32_ST:
		return "S_GPROC32_ST"
	case S_LPROC32_ST:
		return "S_LPROC32_ST"
	case S_GPROC32_ID:
		return "S_GPROC32_ID"
	case S_LPROC32_ID:
		return "S_LPROC32_ID"
	case S_LPROC32_DPC:
		return "S_LPROC32_DPC"
	case S_LPROC32_DPC_ID:
		return "S_LPROC32_DPC_ID"
	case S_GDATA32:
		return "S_GDATA32"
	case S_LDATA32:
		return "S_LDATA32"
	case S_PUB32:
		return "S_PUB32"
	case S_COMPILE2:
		return "S_COMPILE2"
	case S_COMPILE3:
		return "S_COMPILE3"
	case S_FRAMEPROC:
		return "S_FRAMEPROC"
	case S_OBJNAME:
		return "S_OBJNAME"
	case S_REGREL32:
		return "S_REGREL32"
	case S_LOCAL:
		return "S_LOCAL"
	case S_BUILDINFO:
		return "S_BUILDINFO"
	case S_PROC_ID_END:
		return "S_PROC_ID_END"
	default:
		return fmt.Sprintf("S_0x%04x", kind)
	}
}

// IsProcSymbol reports whether kind is a native procedure record with the
// common PROCSYM32 layout.
func IsProcSymbol(kind uint16) bool {
	switch kind {
	case S_GPROC32, S_LPROC32, S_GPROC32_ID, S_LPROC32_ID,
		S_GPROC32_ST, S_LPROC32_ST,
		S_LPROC32_DPC, S_LPROC32_DPC_ID:
		return true
	}
	return false
}

// IsGlobalSymbol returns true if the symbol has global linkage.
func IsGlobalSymbol(kind uint16) bool {
	switch kind {
	case S_GPROC32, S_GPROC32_ID, S_GPROC32_ST, S_GPROCIA64,
		S_GPROCMIPS, S_GMANPROC, S_GDATA32, S_PUB32:
		return true
	}
	return false
}
