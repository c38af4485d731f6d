package nft

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Base names of the two fixture programs the debugger tests run.
const (
	SimpleBaseName        = "simple-debug-noopt-dynamic"
	WorkerThreadsBaseName = "workerthreads-debug-noopt-dynamic"
)

// Metadata is one NFT JSON sidecar describing a built artifact.
type Metadata struct {
	ConfigName       string            `json:"configName"`
	BaseName         string            `json:"baseName"`
	Objects          map[string]string `json:"objectSha256s"`
	ExecutableSuffix string            `json:"executableSuffix"`
	ExecutableHash   string            `json:"executableSha256"`
	DebugHash        *string           `json:"debugSha256,omitempty"`
	Machine          string            `json:"machine"`
	Platform         string            `json:"platform"`
	Flags            map[string]string `json:"flags"`
	Compiler         string            `json:"compiler"`
}

// ExecutableName returns the on-disk file name of the executable.
func (m *Metadata) ExecutableName() string {
	return m.BaseName + m.ExecutableSuffix + "." + m.ExecutableHash
}

// DebugName returns the on-disk file name of the separate debug file, or
// the executable name when debug information is embedded.
func (m *Metadata) DebugName() string {
	if m.DebugHash == nil {
		return m.ExecutableName()
	}
	return m.BaseName + m.ExecutableSuffix + ".debug." + *m.DebugHash
}

// BinaryPaths locates one fixture program. Debug equals Executable when the
// debug information is embedded.
type BinaryPaths struct {
	Executable string
	Debug      string
}

// Binaries holds the two fixture programs for one platform.
type Binaries struct {
	Simple        BinaryPaths
	WorkerThreads BinaryPaths
}

// errMissingExecutableHash rejects sidecars that cannot name their executable.
var errMissingExecutableHash = errors.New("missing executableSha256")

// ReadMetadata decodes the sidecar at path.
func ReadMetadata(path string) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &IOError{Op: "read", Path: path, Err: err}
	}
	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, &DeserializationError{Path: path, Err: err}
	}
	if m.ExecutableHash == "" {
		return nil, &DeserializationError{Path: path, Err: errMissingExecutableHash}
	}
	return &m, nil
}

// Discover scans dir for sidecars describing the simple and workerthreads
// programs built for platform. When several sidecars describe the same
// program, the first in directory order wins.
func Discover(dir string, platform Platform, opts ...Option) (*Binaries, error) {
	log := newConfig(opts).logger

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &IOError{Op: "read directory", Path: dir, Err: err}
	}

	var simple, workerThreads *BinaryPaths
	for _, entry := range entries {
		if !strings.Contains(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		regular, err := isRegularFile(path, entry)
		if err != nil {
			return nil, err
		}
		if !regular {
			continue
		}

		m, err := ReadMetadata(path)
		if err != nil {
			return nil, err
		}
		if m.Platform != string(platform) {
			continue
		}

		var slot **BinaryPaths
		switch m.BaseName {
		case SimpleBaseName:
			slot = &simple
		case WorkerThreadsBaseName:
			slot = &workerThreads
		default:
			continue
		}
		if *slot != nil {
			log.Debug().Str("sidecar", path).Str("base", m.BaseName).Msg("ignoring duplicate sidecar")
			continue
		}
		*slot = &BinaryPaths{
			Executable: filepath.Join(dir, m.ExecutableName()),
			Debug:      filepath.Join(dir, m.DebugName()),
		}
		log.Debug().
			Str("sidecar", path).
			Str("base", m.BaseName).
			Str("executable", (*slot).Executable).
			Str("debug", (*slot).Debug).
			Msg("discovered fixture")
	}

	if simple == nil {
		return nil, &NotFoundError{Platform: string(platform), BaseName: SimpleBaseName}
	}
	if workerThreads == nil {
		return nil, &NotFoundError{Platform: string(platform), BaseName: WorkerThreadsBaseName}
	}
	return &Binaries{Simple: *simple, WorkerThreads: *workerThreads}, nil
}

// isRegularFile follows symlinks the way a plain stat would.
func isRegularFile(path string, entry fs.DirEntry) (bool, error) {
	if entry.Type().IsRegular() {
		return true, nil
	}
	if entry.Type()&fs.ModeSymlink == 0 {
		return false, nil
	}
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil // dangling link
	}
	if err != nil {
		return false, &IOError{Op: "stat", Path: path, Err: err}
	}
	return info.Mode().IsRegular(), nil
}
