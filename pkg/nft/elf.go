package nft

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"fmt"
)

// forEachELFSymbol emits every entry of the static symbol table, including
// the null entry at index 0. debug/elf's Symbols drops that entry and
// silently blanks names it cannot resolve, so the table is decoded here.
func forEachELFSymbol(path string, fn SymbolFunc) error {
	r, err := mapFile(path)
	if err != nil {
		return err
	}
	defer r.Close()

	f, err := elf.NewFile(r)
	if err != nil {
		return &MalformedObjectError{Path: path, Err: err}
	}
	defer f.Close()

	symtab := f.SectionByType(elf.SHT_SYMTAB)
	if symtab == nil {
		return nil
	}
	if int(symtab.Link) >= len(f.Sections) || symtab.Link == 0 {
		return invalidObject(path, "symbol table links to missing string table section %d", symtab.Link)
	}

	strtab, err := f.Sections[symtab.Link].Data()
	if err != nil {
		return &MalformedObjectError{Path: path, Err: fmt.Errorf("read string table: %w", err)}
	}
	data, err := symtab.Data()
	if err != nil {
		return &MalformedObjectError{Path: path, Err: fmt.Errorf("read symbol table: %w", err)}
	}

	syms, err := decodeELFSymbols(f.Class, f.ByteOrder, data)
	if err != nil {
		return &MalformedObjectError{Path: path, Err: err}
	}

	for i, sym := range syms {
		name, ok := elfString(strtab, sym.name)
		if !ok {
			return &MalformedObjectError{
				Path: path,
				Err:  fmt.Errorf("symbol %d: name offset %d outside string table of %d bytes", i, sym.name, len(strtab)),
			}
		}
		fn(name, sym.value, sym.size)
	}
	return nil
}

type elfSymbol struct {
	name  uint32
	value uint64
	size  uint64
}

func decodeELFSymbols(class elf.Class, order binary.ByteOrder, data []byte) ([]elfSymbol, error) {
	switch class {
	case elf.ELFCLASS64:
		if len(data)%elf.Sym64Size != 0 {
			return nil, fmt.Errorf("symbol table size %d is not a multiple of %d", len(data), elf.Sym64Size)
		}
		raw := make([]elf.Sym64, len(data)/elf.Sym64Size)
		if err := binary.Read(bytes.NewReader(data), order, raw); err != nil {
			return nil, err
		}
		syms := make([]elfSymbol, len(raw))
		for i, s := range raw {
			syms[i] = elfSymbol{name: s.Name, value: s.Value, size: s.Size}
		}
		return syms, nil

	case elf.ELFCLASS32:
		if len(data)%elf.Sym32Size != 0 {
			return nil, fmt.Errorf("symbol table size %d is not a multiple of %d", len(data), elf.Sym32Size)
		}
		raw := make([]elf.Sym32, len(data)/elf.Sym32Size)
		if err := binary.Read(bytes.NewReader(data), order, raw); err != nil {
			return nil, err
		}
		syms := make([]elfSymbol, len(raw))
		for i, s := range raw {
			syms[i] = elfSymbol{name: s.Name, value: uint64(s.Value), size: uint64(s.Size)}
		}
		return syms, nil

	default:
		return nil, fmt.Errorf("unsupported ELF class %v", class)
	}
}

func elfString(strtab []byte, off uint32) (string, bool) {
	if int64(off) >= int64(len(strtab)) {
		return "", false
	}
	s := strtab[off:]
	if end := bytes.IndexByte(s, 0); end >= 0 {
		s = s[:end]
	}
	return string(s), true
}
