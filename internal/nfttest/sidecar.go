package nfttest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// Fixture program base names.
const (
	SimpleBase        = "simple-debug-noopt-dynamic"
	WorkerThreadsBase = "workerthreads-debug-noopt-dynamic"
)

// Sidecar is the on-disk JSON form of an NFT sidecar.
type Sidecar struct {
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

// NewSidecar fills in a sidecar for baseName built for platform. Windows
// sidecars get an .exe suffix and a separate debug file.
func NewSidecar(baseName, platform, hash string) Sidecar {
	s := Sidecar{
		ConfigName:     baseName,
		BaseName:       baseName,
		Objects:        map[string]string{baseName + ".o": hash},
		ExecutableHash: hash,
		Machine:        "x86_64",
		Platform:       platform,
		Flags:          map[string]string{"debug": "true", "opt": "false", "link": "dynamic"},
		Compiler:       "cc",
	}
	if platform == "windows" {
		debug := hash + "d"
		s.ExecutableSuffix = ".exe"
		s.DebugHash = &debug
	}
	return s
}

// ExecutableName is the file name the loader derives for the executable.
func (s Sidecar) ExecutableName() string {
	return s.BaseName + s.ExecutableSuffix + "." + s.ExecutableHash
}

// DebugName is the file name the loader derives for the debug file.
func (s Sidecar) DebugName() string {
	if s.DebugHash == nil {
		return s.ExecutableName()
	}
	return s.BaseName + s.ExecutableSuffix + ".debug." + *s.DebugHash
}

// WriteSidecar writes s to dir under name and returns its path.
func WriteSidecar(t *testing.T, dir, name string, s Sidecar) string {
	t.Helper()
	data, err := json.MarshalIndent(s, "", "  ")
	require.NoError(t, err)
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

// WriteArtifact writes s, its executable and, when s names a separate debug
// file, the debug file. The sidecar is named after the executable.
func WriteArtifact(t *testing.T, dir string, s Sidecar, executable, debug []byte) {
	t.Helper()
	WriteSidecar(t, dir, s.ExecutableName()+".json", s)
	require.NoError(t, os.WriteFile(filepath.Join(dir, s.ExecutableName()), executable, 0o755))
	if s.DebugHash != nil {
		require.NoError(t, os.WriteFile(filepath.Join(dir, s.DebugName()), debug, 0o644))
	}
}
