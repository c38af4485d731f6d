// Package nfttest builds small synthetic object files and NFT fixture
// directories for tests.
package nfttest

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
)

// ELFSymbol is one .symtab entry. BadName points the name past the end of
// the string table.
type ELFSymbol struct {
	Name    string
	Value   uint64
	Size    uint64
	BadName bool
}

// ELF describes a 64-bit little-endian executable with no program headers.
type ELF struct {
	Symbols  []ELFSymbol
	NoSymtab bool
}

// Bytes lays the file out as header, .strtab, .symtab, .shstrtab and the
// section header table. The null symbol is written first.
func (e *ELF) Bytes() []byte {
	const (
		ehsize = 64
		shsize = 64
	)

	shstrtab := newStrtab()
	strtab := newStrtab()

	syms := []elf.Sym64{{}}
	for _, s := range e.Symbols {
		sym := elf.Sym64{
			Name:  strtab.add(s.Name),
			Info:  elf.ST_INFO(elf.STB_GLOBAL, elf.STT_FUNC),
			Shndx: uint16(elf.SHN_ABS),
			Value: s.Value,
			Size:  s.Size,
		}
		syms = append(syms, sym)
	}
	for i, s := range e.Symbols {
		if s.BadName {
			syms[i+1].Name = uint32(strtab.len()) + 0x100
		}
	}

	var symtab bytes.Buffer
	binary.Write(&symtab, binary.LittleEndian, syms)

	type section struct {
		name string
		typ  elf.SectionType
		data []byte
		link uint32
		info uint32
		ent  uint64
	}
	var sections []section
	if e.NoSymtab {
		sections = []section{
			{name: ".strtab", typ: elf.SHT_STRTAB, data: strtab.bytes()},
			{name: ".shstrtab", typ: elf.SHT_STRTAB},
		}
	} else {
		sections = []section{
			{name: ".strtab", typ: elf.SHT_STRTAB, data: strtab.bytes()},
			{name: ".symtab", typ: elf.SHT_SYMTAB, data: symtab.Bytes(), link: 1, info: 1, ent: elf.Sym64Size},
			{name: ".shstrtab", typ: elf.SHT_STRTAB},
		}
	}
	names := make([]uint32, len(sections))
	for i, s := range sections {
		names[i] = shstrtab.add(s.name)
	}
	sections[len(sections)-1].data = shstrtab.bytes()

	var out bytes.Buffer
	out.Write(make([]byte, ehsize))

	headers := []elf.Section64{{}}
	for i, s := range sections {
		pad(&out, 8)
		headers = append(headers, elf.Section64{
			Name:      names[i],
			Type:      uint32(s.typ),
			Off:       uint64(out.Len()),
			Size:      uint64(len(s.data)),
			Link:      s.link,
			Info:      s.info,
			Addralign: 1,
			Entsize:   s.ent,
		})
		out.Write(s.data)
	}
	pad(&out, 8)
	shoff := out.Len()
	binary.Write(&out, binary.LittleEndian, headers)

	hdr := elf.Header64{
		Type:      uint16(elf.ET_EXEC),
		Machine:   uint16(elf.EM_X86_64),
		Version:   uint32(elf.EV_CURRENT),
		Shoff:     uint64(shoff),
		Ehsize:    ehsize,
		Shentsize: shsize,
		Shnum:     uint16(len(headers)),
		Shstrndx:  uint16(len(headers) - 1),
	}
	copy(hdr.Ident[:], elf.ELFMAG)
	hdr.Ident[elf.EI_CLASS] = byte(elf.ELFCLASS64)
	hdr.Ident[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	hdr.Ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)

	var head bytes.Buffer
	binary.Write(&head, binary.LittleEndian, hdr)

	b := out.Bytes()
	copy(b, head.Bytes())
	return b
}

// strtab accumulates NUL-terminated strings behind a leading NUL, so that
// offset 0 is the empty string.
type strtab struct {
	buf bytes.Buffer
	off map[string]uint32
}

func newStrtab() *strtab {
	t := &strtab{off: map[string]uint32{"": 0}}
	t.buf.WriteByte(0)
	return t
}

func (t *strtab) add(s string) uint32 {
	if off, ok := t.off[s]; ok {
		return off
	}
	off := uint32(t.buf.Len())
	t.buf.WriteString(s)
	t.buf.WriteByte(0)
	t.off[s] = off
	return off
}

func (t *strtab) len() int      { return t.buf.Len() }
func (t *strtab) bytes() []byte { return t.buf.Bytes() }

func pad(b *bytes.Buffer, align int) {
	for b.Len()%align != 0 {
		b.WriteByte(0)
	}
}
