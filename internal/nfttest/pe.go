package nfttest

import (
	"bytes"
	"debug/pe"
	"encoding/binary"
)

// PESection is one section header. Only the placement fields matter to the
// symbol walk; sections carry no raw data.
type PESection struct {
	Name           string
	VirtualAddress uint32
	VirtualSize    uint32
}

// PE describes an AMD64 PE32+ image. NoOptionalHeader writes a COFF header
// with SizeOfOptionalHeader 0.
type PE struct {
	ImageBase        uint64
	Sections         []PESection
	NoOptionalHeader bool
}

// Bytes lays the file out as DOS stub, PE signature, COFF header, optional
// header and section table.
func (p *PE) Bytes() []byte {
	const (
		peOffset       = 0x40
		optionalHdrLen = 240
	)

	var out bytes.Buffer
	le := binary.LittleEndian

	dos := make([]byte, peOffset)
	copy(dos, "MZ")
	le.PutUint32(dos[0x3c:], peOffset)
	out.Write(dos)
	out.WriteString("PE\x00\x00")

	fh := pe.FileHeader{
		Machine:              pe.IMAGE_FILE_MACHINE_AMD64,
		NumberOfSections:     uint16(len(p.Sections)),
		SizeOfOptionalHeader: optionalHdrLen,
		Characteristics:      pe.IMAGE_FILE_EXECUTABLE_IMAGE | pe.IMAGE_FILE_LARGE_ADDRESS_AWARE,
	}
	if p.NoOptionalHeader {
		fh.SizeOfOptionalHeader = 0
	}
	binary.Write(&out, le, fh)

	if !p.NoOptionalHeader {
		binary.Write(&out, le, pe.OptionalHeader64{
			Magic:                 0x20b,
			ImageBase:             p.ImageBase,
			SectionAlignment:      0x1000,
			FileAlignment:         0x200,
			MajorSubsystemVersion: 6,
			Subsystem:             pe.IMAGE_SUBSYSTEM_WINDOWS_CUI,
			NumberOfRvaAndSizes:   16,
		})
	}

	binary.Write(&out, le, SectionHeaders(p.Sections))
	return out.Bytes()
}

// SectionHeaders converts sections to IMAGE_SECTION_HEADER records, the
// form both the image and the PDB section header streams use.
func SectionHeaders(sections []PESection) []pe.SectionHeader32 {
	headers := make([]pe.SectionHeader32, len(sections))
	for i, s := range sections {
		copy(headers[i].Name[:], s.Name)
		headers[i].VirtualAddress = s.VirtualAddress
		headers[i].VirtualSize = s.VirtualSize
		headers[i].Characteristics = pe.IMAGE_SCN_CNT_CODE | pe.IMAGE_SCN_MEM_EXECUTE | pe.IMAGE_SCN_MEM_READ
	}
	return headers
}
