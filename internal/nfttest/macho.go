package nfttest

import (
	"bytes"
	"debug/macho"
	"encoding/binary"
)

// Stab types used to describe one procedure.
const (
	NBNSYM = 0x2e
	NFUN   = 0x24
	NENSYM = 0x4e
	NSECT  = 0x0e // plain defined symbol, not a stab
)

// MachOEntry is one nlist entry. An empty Name gets n_strx 1, the NUL at the
// start of the string table; NameIndex, when set, overrides n_strx.
type MachOEntry struct {
	Type      uint8
	Name      string
	Value     uint64
	NameIndex uint32
}

// MachO describes a thin 64-bit little-endian executable holding one
// LC_SYMTAB command.
type MachO struct {
	Entries  []MachOEntry
	NoSymtab bool
}

// Procedure returns the stabs a linker writes for one function: BNSYM with
// the start address, FUN with the mangled name, FUN with the size, ENSYM
// with the size.
func Procedure(name string, addr, size uint64) []MachOEntry {
	return []MachOEntry{
		{Type: NBNSYM, Value: addr},
		{Type: NFUN, Name: name, Value: addr},
		{Type: NFUN, Value: size},
		{Type: NENSYM, Value: size},
	}
}

// Bytes lays the file out as header, LC_SYMTAB, nlist array, string table.
func (m *MachO) Bytes() []byte {
	const (
		headerSize = 32
		symtabSize = 24
		nlistSize  = 16
	)

	// Index 0 holds a space and index 1 a NUL, as ld64 writes it.
	strs := &strtab{off: map[string]uint32{"": 1}}
	strs.buf.WriteString(" \x00")

	nlists := make([]macho.Nlist64, len(m.Entries))
	for i, e := range m.Entries {
		nlists[i] = macho.Nlist64{
			Name:  strs.add(e.Name),
			Type:  e.Type,
			Value: e.Value,
		}
		if e.NameIndex != 0 {
			nlists[i].Name = e.NameIndex
		}
	}

	ncmd, cmdsz := uint32(1), uint32(symtabSize)
	if m.NoSymtab {
		ncmd, cmdsz = 0, 0
	}
	symoff := uint32(headerSize) + cmdsz
	stroff := symoff + uint32(len(nlists))*nlistSize

	var out bytes.Buffer
	le := binary.LittleEndian
	binary.Write(&out, le, macho.FileHeader{
		Magic:  macho.Magic64,
		Cpu:    macho.CpuAmd64,
		SubCpu: 3,
		Type:   macho.TypeExec,
		Ncmd:   ncmd,
		Cmdsz:  cmdsz,
	})
	binary.Write(&out, le, uint32(0)) // reserved

	if !m.NoSymtab {
		binary.Write(&out, le, macho.SymtabCmd{
			Cmd:     macho.LoadCmdSymtab,
			Len:     symtabSize,
			Symoff:  symoff,
			Nsyms:   uint32(len(nlists)),
			Stroff:  stroff,
			Strsize: uint32(strs.len()),
		})
		binary.Write(&out, le, nlists)
		out.Write(strs.bytes())
	}
	return out.Bytes()
}

// FatMachO returns the start of a universal binary header.
func FatMachO() []byte {
	b := make([]byte, 64)
	binary.BigEndian.PutUint32(b, macho.MagicFat)
	return b
}
