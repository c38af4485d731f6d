package nft

import (
	"bytes"
	"debug/macho"
	"encoding/binary"
	"fmt"
	"io"
)

// Stab types delimiting one procedure in a Mach-O symbol table.
const (
	nBNSYM  = 0x2e // begin: n_value is the start address
	nFUN    = 0x24 // name: n_strx names the procedure
	nENSYM  = 0x4e // end: n_value is reported as the size
	nlist32 = 12
	nlist64 = 16
)

// stabWalker tracks the procedure currently being described by
// BNSYM/FUN/ENSYM stabs. Entries of any other type leave it untouched.
type stabWalker struct {
	addr uint64
	name string
	emit SymbolFunc
}

func (w *stabWalker) step(typ uint8, strx uint32, name string, value uint64) {
	switch typ {
	case nBNSYM:
		w.addr = value
	case nFUN:
		if strx > 1 && len(name) > 0 {
			// Drop the leading '_' the C compiler adds.
			w.name = name[1:]
		}
	case nENSYM:
		w.emit(w.name, w.addr, value)
	}
}

type nlist struct {
	strx  uint32
	typ   uint8
	value uint64
}

// forEachMachOSymbol walks the stabs in a thin Mach-O file.
func forEachMachOSymbol(path string, fn SymbolFunc) error {
	r, err := mapFile(path)
	if err != nil {
		return err
	}
	defer r.Close()

	var magic [4]byte
	if _, err := r.ReadAt(magic[:], 0); err != nil {
		return &MalformedObjectError{Path: path, Err: fmt.Errorf("read magic: %w", err)}
	}
	if binary.BigEndian.Uint32(magic[:]) == macho.MagicFat {
		return &InvalidInputError{Reason: fmt.Sprintf("%s is a fat Mach-O file; only thin binaries are supported", path)}
	}

	f, err := macho.NewFile(r)
	if err != nil {
		return &MalformedObjectError{Path: path, Err: err}
	}
	defer f.Close()

	if f.Symtab == nil {
		return invalidObject(path, "no LC_SYMTAB load command")
	}

	entries, strtab, err := readNlists(r, f)
	if err != nil {
		return &MalformedObjectError{Path: path, Err: err}
	}

	w := &stabWalker{emit: fn}
	for i, e := range entries {
		if e.strx >= uint32(len(strtab)) {
			return &MalformedObjectError{
				Path: path,
				Err:  fmt.Errorf("symbol %d: name offset %d outside string table of %d bytes", i, e.strx, len(strtab)),
			}
		}
		w.step(e.typ, e.strx, machoString(strtab[e.strx:]), e.value)
	}
	return nil
}

// readNlists decodes the raw nlist entries so that n_strx stays visible;
// debug/macho resolves it to a name and drops the index.
func readNlists(r io.ReaderAt, f *macho.File) ([]nlist, []byte, error) {
	// debug/macho keeps only the raw bytes of LC_SYMTAB, so the
	// offsets and counts are decoded here.
	var st macho.SymtabCmd
	if err := binary.Read(bytes.NewReader(f.Symtab.Raw()), f.ByteOrder, &st); err != nil {
		return nil, nil, fmt.Errorf("decode LC_SYMTAB: %w", err)
	}
	strtab := make([]byte, st.Strsize)
	if _, err := r.ReadAt(strtab, int64(st.Stroff)); err != nil {
		return nil, nil, fmt.Errorf("read string table: %w", err)
	}

	size := nlist32
	if f.Magic == macho.Magic64 {
		size = nlist64
	}
	sr := io.NewSectionReader(r, int64(st.Symoff), int64(st.Nsyms)*int64(size))

	entries := make([]nlist, st.Nsyms)
	if f.Magic == macho.Magic64 {
		raw := make([]macho.Nlist64, st.Nsyms)
		if err := binary.Read(sr, f.ByteOrder, raw); err != nil {
			return nil, nil, fmt.Errorf("read symbol table: %w", err)
		}
		for i, n := range raw {
			entries[i] = nlist{strx: n.Name, typ: n.Type, value: n.Value}
		}
	} else {
		raw := make([]macho.Nlist32, st.Nsyms)
		if err := binary.Read(sr, f.ByteOrder, raw); err != nil {
			return nil, nil, fmt.Errorf("read symbol table: %w", err)
		}
		for i, n := range raw {
			entries[i] = nlist{strx: n.Name, typ: n.Type, value: uint64(n.Value)}
		}
	}
	return entries, strtab, nil
}

func machoString(b []byte) string {
	if end := bytes.IndexByte(b, 0); end >= 0 {
		b = b[:end]
	}
	return string(b)
}
