package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jtang613/nativefiletests/internal/nfttest"
)

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--log-pretty=false"}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestMetadataCmd_JSON(t *testing.T) {
	dir := t.TempDir()
	want := nfttest.WriteFixtures(t, dir, "linux")

	out, _, err := run(t, "metadata", "--dir", dir, "--os", "linux")
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, float64(want.SimpleFunction1), got["simple_function1_addr"])
	assert.Equal(t, float64(want.SimpleFunction2Length), got["simple_function2_length"])
	assert.Equal(t, float64(want.TermNotification), got["term_notification_addr"])
	assert.True(t, strings.HasPrefix(got["simple_path"].(string), dir))
}

func TestMetadataCmd_GoSourceFromEnv(t *testing.T) {
	dir := t.TempDir()
	nfttest.WriteFixtures(t, dir, "darwin")
	t.Setenv(envFixtureDir, dir)

	out, _, err := run(t, "metadata", "--os", "macos", "--format", "go", "--package", "fixtures")
	require.NoError(t, err)
	assert.Contains(t, out, "package fixtures")
	assert.Contains(t, out, "SimpleFunction2Length uint64 = 42")
}

func TestMetadataCmd_Errors(t *testing.T) {
	t.Setenv(envFixtureDir, "")
	_, _, err := run(t, "metadata", "--os", "linux")
	assert.ErrorContains(t, err, "NFT_DIR")

	dir := t.TempDir()
	nfttest.WriteFixtures(t, dir, "linux")
	_, _, err = run(t, "metadata", "--dir", dir, "--os", "linux", "--format", "yaml")
	assert.ErrorContains(t, err, "unknown format")

	_, _, err = run(t, "metadata", "--dir", dir, "--os", "windows")
	assert.ErrorContains(t, err, "no simple-debug-noopt-dynamic artifact found for platform windows")
}

func TestMetadataCmd_DebugLogging(t *testing.T) {
	dir := t.TempDir()
	nfttest.WriteFixtures(t, dir, "linux")

	_, logs, err := run(t, "--log-level", "debug", "metadata", "--dir", dir, "--os", "linux")
	require.NoError(t, err)
	assert.Contains(t, logs, `"component":"nftdump"`)
	assert.Contains(t, logs, "discovered fixture")
}

func TestSymbolsCmd(t *testing.T) {
	exe, debug := nfttest.SimpleProgram("windows")
	dir := t.TempDir()
	exePath := filepath.Join(dir, "simple.exe")
	pdbPath := filepath.Join(dir, "simple.pdb")
	require.NoError(t, os.WriteFile(exePath, exe, 0o644))
	require.NoError(t, os.WriteFile(pdbPath, debug, 0o644))

	out, _, err := run(t, "symbols", "--platform", "windows", exePath, pdbPath)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasSuffix(lines[0], " function1"), lines[0])
	assert.Contains(t, lines[1], "0x0000000140001040")
	assert.True(t, strings.HasSuffix(lines[1], "      42 function2"), lines[1])
}

func TestSymbolsCmd_ELF(t *testing.T) {
	exe, _ := nfttest.WorkerThreadsProgram("linux")
	path := filepath.Join(t.TempDir(), "workerthreads")
	require.NoError(t, os.WriteFile(path, exe, 0o644))

	out, _, err := run(t, "symbols", "-p", "linux", path)
	require.NoError(t, err)
	assert.Contains(t, out, " breakpoint_thr_func\n")
	assert.Contains(t, out, " term_notification\n")
}

func TestSymbolsCmd_BadPlatform(t *testing.T) {
	_, _, err := run(t, "symbols", "--platform", "amiga", "/dev/null")
	assert.ErrorContains(t, err, "unknown platform")
}

func TestPDBCmd(t *testing.T) {
	_, debug := nfttest.SimpleProgram("windows")
	path := filepath.Join(t.TempDir(), "simple.pdb")
	require.NoError(t, os.WriteFile(path, debug, 0o644))

	out, _, err := run(t, "pdb", path)
	require.NoError(t, err)
	var info map[string]map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Contains(t, info, "info")
	assert.Equal(t, "x64", info["info"]["machine"])

	out, _, err = run(t, "pdb", "--all", "--pretty", path)
	require.NoError(t, err)
	var all struct {
		Functions []struct {
			Name string `json:"name"`
			RVA  uint64 `json:"rva"`
		} `json:"functions"`
		Modules  []any `json:"modules"`
		Sections []struct {
			Name string `json:"name"`
		} `json:"sections"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &all))
	require.Len(t, all.Functions, 3)
	assert.Equal(t, "function1", all.Functions[0].Name)
	want := nfttest.ExpectedFor("windows")
	assert.Equal(t, want.SimpleFunction1-nfttest.ImageBase, all.Functions[0].RVA)
	assert.Len(t, all.Modules, 1)
	require.Len(t, all.Sections, 2)
	assert.Equal(t, ".text", all.Sections[0].Name)
}

func TestRootCmd_InvalidLogLevel(t *testing.T) {
	dir := t.TempDir()
	nfttest.WriteFixtures(t, dir, "linux")

	out, _, err := run(t, "--log-level", "verbose", "metadata", "--dir", dir, "--os", "linux")
	assert.ErrorContains(t, err, `invalid log level "verbose"`)
	assert.Empty(t, out)
}

func TestPDBCmd_NotAPDB(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bogus.pdb")
	require.NoError(t, os.WriteFile(path, make([]byte, 1024), 0o644))

	_, _, err := run(t, "pdb", path)
	assert.ErrorContains(t, err, "failed to open PDB")
}
