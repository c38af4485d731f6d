// Package pdb provides read access to the parts of Microsoft PDB files a
// debugger needs to place breakpoints: module procedures and the address map.
package pdb

// Function represents a procedure symbol from a module symbol stream.
type Function struct {
	Name      string `json:"name"`
	Offset    uint32 `json:"offset"`
	Segment   uint16 `json:"segment"`
	Length    uint32 `json:"length"`
	TypeIndex uint32 `json:"type_index"`
	IsGlobal  bool   `json:"is_global"`
	Module    string `json:"module,omitempty"`
}

// SectionOffset is a location inside a PE section: a 1-based section index
// and a byte offset from the start of that section.
type SectionOffset struct {
	Section uint16 `json:"section"`
	Offset  uint32 `json:"offset"`
}

// SectionInfo represents a PE section header recorded in the PDB.
type SectionInfo struct {
	Index  uint16 `json:"index"`          // 1-based section index
	Name   string `json:"name,omitempty"` // e.g. ".text"
	Offset uint32 `json:"offset"`         // virtual address (RVA base)
	Length uint32 `json:"length"`         // virtual size in bytes
}

// Contains reports whether rva falls inside the section.
func (s SectionInfo) Contains(rva uint32) bool {
	return rva >= s.Offset && rva-s.Offset < s.Length
}

// ModuleInfo represents information about a compiled module.
type ModuleInfo struct {
	Name         string `json:"name"`
	ObjectFile   string `json:"object_file"`
	SymbolStream uint16 `json:"symbol_stream"`
	SymbolSize   uint32 `json:"symbol_size"`
	SourceFiles  uint16 `json:"source_files"`
}

// PDBInfo contains basic PDB file information.
type PDBInfo struct {
	GUID         string            `json:"guid"`
	Age          uint32            `json:"age"`
	Version      uint32            `json:"version"`
	Machine      string            `json:"machine"`
	Streams      int               `json:"streams"`
	HasOMAP      bool              `json:"has_omap"`
	NamedStreams map[string]uint32 `json:"named_streams,omitempty"`

	NameTableError string `json:"name_table_error,omitempty"`
}
