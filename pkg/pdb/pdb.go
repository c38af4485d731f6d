package pdb

import (
	"errors"
	"fmt"
	"io"

	"github.com/jtang613/nativefiletests/pkg/pdb/codeview"
	"github.com/jtang613/nativefiletests/pkg/pdb/msf"
	"github.com/jtang613/nativefiletests/pkg/pdb/streams"
)

// Stream indices
const (
	StreamPDB = 1 // PDB info stream
	StreamDBI = 3 // Debug info stream
)

const noStream = streams.NoStream

// ErrNoDBI is returned for PDB files without a debug info stream.
var ErrNoDBI = errors.New("PDB has no DBI stream")

// SkipFunc hears about symbol data the function walk could not decode.
type SkipFunc func(module string, err error)

// PDB represents an opened PDB file.
type PDB struct {
	msf     *msf.MSF
	pdbInfo *streams.PDBInfo
	dbi     *streams.DBIStream
	onSkip  SkipFunc
}

// Open maps a PDB file and parses its core structures.
func Open(path string) (*PDB, error) {
	m, err := msf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open MSF: %w", err)
	}
	p, err := newPDB(m)
	if err != nil {
		m.Close()
		return nil, err
	}
	return p, nil
}

// NewReader parses a PDB held by r. The caller keeps ownership of r.
func NewReader(r io.ReaderAt) (*PDB, error) {
	m, err := msf.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open MSF: %w", err)
	}
	return newPDB(m)
}

func newPDB(m *msf.MSF) (*PDB, error) {
	p := &PDB{msf: m}

	// The info stream is informational only; older writers leave it short.
	if m.NumStreams() > StreamPDB {
		if reader, err := m.StreamReader(StreamPDB); err == nil {
			p.pdbInfo, _ = streams.ReadPDBInfo(reader)
		}
	}

	if m.NumStreams() <= StreamDBI {
		return nil, ErrNoDBI
	}
	data, err := m.ReadStream(StreamDBI)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, ErrNoDBI
	}
	if p.dbi, err = streams.ReadDBIStream(data); err != nil {
		return nil, fmt.Errorf("failed to parse DBI stream: %w", err)
	}

	return p, nil
}

// Close releases the file mapping.
func (p *PDB) Close() error {
	if p.msf != nil {
		return p.msf.Close()
	}
	return nil
}

// Info returns basic PDB file information.
func (p *PDB) Info() *PDBInfo {
	info := &PDBInfo{
		Streams: p.msf.NumStreams(),
		Machine: streams.MachineTypeName(p.dbi.Header.Machine),
		HasOMAP: p.dbi.DebugHeader.OmapFromSrc != noStream,
	}

	if p.pdbInfo != nil {
		info.GUID = p.pdbInfo.GUIDString()
		info.Age = p.pdbInfo.Age
		info.Version = p.pdbInfo.Version
		info.NamedStreams = p.pdbInfo.NamedStreams
		if err := p.pdbInfo.NamedStreamsErr; err != nil {
			info.NameTableError = err.Error()
		}
	}

	return info
}

// Modules returns information about compiled modules.
func (p *PDB) Modules() []ModuleInfo {
	modules := make([]ModuleInfo, len(p.dbi.Modules))
	for i, mod := range p.dbi.Modules {
		modules[i] = ModuleInfo{
			Name:         mod.ModuleName,
			ObjectFile:   mod.ObjFileName,
			SymbolStream: mod.ModuleSymStream,
			SymbolSize:   mod.SymByteSize,
			SourceFiles:  mod.SourceFileCount,
		}
	}
	return modules
}

// OnSkip registers fn to be called for every record ForEachFunction skips.
func (p *PDB) OnSkip(fn SkipFunc) {
	p.onSkip = fn
}

func (p *PDB) skip(module string, err error) {
	if p.onSkip != nil {
		p.onSkip(module, err)
	}
}

// ForEachFunction calls fn for every procedure record in every module
// symbol stream, in module order and then stream order. Records that fail
// to decode are skipped. A non-nil error from fn stops the walk and is
// returned.
func (p *PDB) ForEachFunction(fn func(Function) error) error {
	for _, mod := range p.dbi.Modules {
		if !mod.HasSymbols() {
			continue
		}

		data, err := p.msf.ReadStream(int(mod.ModuleSymStream))
		if err != nil {
			return fmt.Errorf("module %q: %w", mod.ModuleName, err)
		}
		if uint32(len(data)) > mod.SymByteSize {
			data = data[:mod.SymByteSize]
		}

		// A framing error leaves the records before it usable.
		symbols, err := codeview.ParseSymbols(data)
		if err != nil {
			p.skip(mod.ModuleName, err)
		}
		for _, sym := range symbols {
			if !codeview.IsProcSymbol(sym.Kind) {
				continue
			}
			proc, err := codeview.ParseProcSym(sym.Kind, sym.Data)
			if err != nil {
				p.skip(mod.ModuleName, fmt.Errorf("record at %d: %w", sym.Offset, err))
				continue
			}
			err = fn(Function{
				Name:      proc.Name,
				Offset:    proc.Offset,
				Segment:   proc.Segment,
				Length:    proc.Length,
				TypeIndex: proc.TypeIndex,
				IsGlobal:  codeview.IsGlobalSymbol(sym.Kind),
				Module:    mod.ModuleName,
			})
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// Functions returns all module procedures.
func (p *PDB) Functions() ([]Function, error) {
	functions := make([]Function, 0)
	err := p.ForEachFunction(func(fn Function) error {
		functions = append(functions, fn)
		return nil
	})
	return functions, err
}
