// Package nft locates the native file test fixtures built for the host
// platform and extracts the function addresses the debugger tests break on.
package nft

import (
	"encoding/json"
)

// TestMetadata is what the debugger tests need from the fixtures: the two
// executables and six values read from their symbol tables. A zero value
// means the symbol was not present.
type TestMetadata struct {
	simplePath        string
	workerThreadsPath string

	simpleFunction1Addr   uint64
	simpleFunction2Addr   uint64
	simpleFunction2Length uint64

	threadBreakAddr       uint64
	startNotificationAddr uint64
	termNotificationAddr  uint64
}

// SimplePath is the simple program's executable.
func (m *TestMetadata) SimplePath() string { return m.simplePath }

// WorkerThreadsPath is the workerthreads program's executable.
func (m *TestMetadata) WorkerThreadsPath() string { return m.workerThreadsPath }

func (m *TestMetadata) SimpleFunction1Addr() uint64   { return m.simpleFunction1Addr }
func (m *TestMetadata) SimpleFunction2Addr() uint64   { return m.simpleFunction2Addr }
func (m *TestMetadata) SimpleFunction2Length() uint64 { return m.simpleFunction2Length }
func (m *TestMetadata) ThreadBreakAddr() uint64       { return m.threadBreakAddr }
func (m *TestMetadata) StartNotificationAddr() uint64 { return m.startNotificationAddr }
func (m *TestMetadata) TermNotificationAddr() uint64  { return m.termNotificationAddr }

type testMetadataJSON struct {
	SimplePath            string `json:"simple_path"`
	WorkerThreadsPath     string `json:"workerthreads_path"`
	SimpleFunction1Addr   uint64 `json:"simple_function1_addr"`
	SimpleFunction2Addr   uint64 `json:"simple_function2_addr"`
	SimpleFunction2Length uint64 `json:"simple_function2_length"`
	ThreadBreakAddr       uint64 `json:"thread_break_addr"`
	StartNotificationAddr uint64 `json:"start_notification_addr"`
	TermNotificationAddr  uint64 `json:"term_notification_addr"`
}

// MarshalJSON implements json.Marshaler.
func (m *TestMetadata) MarshalJSON() ([]byte, error) {
	return json.Marshal(testMetadataJSON{
		SimplePath:            m.simplePath,
		WorkerThreadsPath:     m.workerThreadsPath,
		SimpleFunction1Addr:   m.simpleFunction1Addr,
		SimpleFunction2Addr:   m.simpleFunction2Addr,
		SimpleFunction2Length: m.simpleFunction2Length,
		ThreadBreakAddr:       m.threadBreakAddr,
		StartNotificationAddr: m.startNotificationAddr,
		TermNotificationAddr:  m.termNotificationAddr,
	})
}

// CreateTestMetadata finds the fixtures for hostOS in dir and reads the
// function addresses out of them. hostOS is "linux", "macos" (or "darwin")
// or "windows".
func CreateTestMetadata(dir, hostOS string, opts ...Option) (*TestMetadata, error) {
	log := newConfig(opts).logger

	platform, err := PlatformFromHostOS(hostOS)
	if err != nil {
		return nil, err
	}

	bins, err := Discover(dir, platform, opts...)
	if err != nil {
		return nil, err
	}

	md := &TestMetadata{
		simplePath:        bins.Simple.Executable,
		workerThreadsPath: bins.WorkerThreads.Executable,
	}

	if err := ForEachSymbol(platform, bins.Simple.Executable, bins.Simple.Debug, simpleCollector(md).Collect, opts...); err != nil {
		return nil, err
	}
	if err := ForEachSymbol(platform, bins.WorkerThreads.Executable, bins.WorkerThreads.Debug, workerThreadsCollector(md).Collect, opts...); err != nil {
		return nil, err
	}

	log.Info().
		Str("platform", platform.String()).
		Str("simple", md.simplePath).
		Str("workerthreads", md.workerThreadsPath).
		Msg("created test metadata")
	return md, nil
}
