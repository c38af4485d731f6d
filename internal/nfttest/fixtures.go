package nfttest

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

// Windows fixture layout.
const (
	ImageBase = 0x140000000
	TextRVA   = 0x1000
)

// Offsets of the fixture functions from the start of their text section.
const (
	Function1Offset         = 0x10
	Function2Offset         = 0x40
	Function2Size           = 0x2a
	ThreadBreakOffset       = 0x10
	StartNotificationOffset = 0x80
	TermNotificationOffset  = 0xc0
)

// Expected holds the values the loader should read from a fixture set.
type Expected struct {
	SimpleFunction1       uint64
	SimpleFunction2       uint64
	SimpleFunction2Length uint64
	ThreadBreak           uint64
	StartNotification     uint64
	TermNotification      uint64
}

// TextBase returns where the fixtures for platform place their code.
func TextBase(platform string) uint64 {
	switch platform {
	case "darwin":
		return 0x100003e00
	case "windows":
		return ImageBase + TextRVA
	default:
		return 0x401000
	}
}

// ExpectedFor returns the values written by WriteFixtures for platform.
func ExpectedFor(platform string) Expected {
	base := TextBase(platform)
	return Expected{
		SimpleFunction1:       base + Function1Offset,
		SimpleFunction2:       base + Function2Offset,
		SimpleFunction2Length: Function2Size,
		ThreadBreak:           base + ThreadBreakOffset,
		StartNotification:     base + StartNotificationOffset,
		TermNotification:      base + TermNotificationOffset,
	}
}

type fixtureFunc struct {
	name   string
	offset uint64
	size   uint64
}

var (
	simpleFuncs = []fixtureFunc{
		{"function1", Function1Offset, 0x1a},
		{"function2", Function2Offset, Function2Size},
		{"main", 0x100, 0x30},
	}
	workerThreadsFuncs = []fixtureFunc{
		{"breakpoint_thr_func", ThreadBreakOffset, 0x20},
		{"start_notification", StartNotificationOffset, 0x18},
		{"term_notification", TermNotificationOffset, 0x18},
		{"main", 0x200, 0x80},
	}
)

// WriteFixtures creates dir if needed and fills it with sidecars and
// binaries for both fixture programs built for platform.
func WriteFixtures(t *testing.T, dir, platform string) Expected {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))

	write := func(base, hash string, funcs []fixtureFunc) {
		s := NewSidecar(base, platform, hash)
		exe, debug := program(platform, funcs)
		WriteArtifact(t, dir, s, exe, debug)
	}
	write(SimpleBase, "5e1f0c2a", simpleFuncs)
	write(WorkerThreadsBase, "9b7d33e4", workerThreadsFuncs)
	return ExpectedFor(platform)
}

// SimpleProgram returns the executable and debug file of the simple
// fixture for platform. debug is nil except on Windows.
func SimpleProgram(platform string) (exe, debug []byte) {
	return program(platform, simpleFuncs)
}

// WorkerThreadsProgram is SimpleProgram for the workerthreads fixture.
func WorkerThreadsProgram(platform string) (exe, debug []byte) {
	return program(platform, workerThreadsFuncs)
}

// program builds an executable exporting funcs for platform.
func program(platform string, funcs []fixtureFunc) (exe, debug []byte) {
	base := TextBase(platform)
	switch platform {
	case "darwin":
		m := &MachO{}
		for _, f := range funcs {
			m.Entries = append(m.Entries, Procedure("_"+f.name, base+f.offset, f.size)...)
			m.Entries = append(m.Entries, MachOEntry{Type: NSECT, Name: "_" + f.name, Value: base + f.offset})
		}
		return m.Bytes(), nil

	case "windows":
		text := PESection{Name: ".text", VirtualAddress: TextRVA, VirtualSize: 0x1000}
		data := PESection{Name: ".data", VirtualAddress: 0x3000, VirtualSize: 0x200}
		img := &PE{ImageBase: ImageBase, Sections: []PESection{text, data}}
		p := &PDB{Age: 1, Sections: img.Sections}
		for _, f := range funcs {
			p.Procs = append(p.Procs, PDBProc{
				Name:    f.name,
				Segment: 1,
				Offset:  uint32(f.offset),
				Length:  uint32(f.size),
			})
		}
		return img.Bytes(), p.Bytes()

	default:
		e := &ELF{}
		for _, f := range funcs {
			e.Symbols = append(e.Symbols, ELFSymbol{Name: f.name, Value: base + f.offset, Size: f.size})
		}
		return e.Bytes(), nil
	}
}
