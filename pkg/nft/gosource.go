package nft

import (
	"bytes"
	"fmt"
	"go/format"
	"io"
	"text/template"
)

var goSourceTemplate = template.Must(template.New("nft").Parse(`// Code generated by nftdump; DO NOT EDIT.

package {{.Package}}

const (
	SimpleExecPath        = {{printf "%q" .SimplePath}}
	WorkerThreadsExecPath = {{printf "%q" .WorkerThreadsPath}}
)

const (
	SimpleFunction1       uint64 = {{printf "%#x" .SimpleFunction1Addr}}
	SimpleFunction2       uint64 = {{printf "%#x" .SimpleFunction2Addr}}
	SimpleFunction2Length uint64 = {{.SimpleFunction2Length}}
	ThreadBreakFunc       uint64 = {{printf "%#x" .ThreadBreakAddr}}
	StartNotificationFunc uint64 = {{printf "%#x" .StartNotificationAddr}}
	TermNotificationFunc  uint64 = {{printf "%#x" .TermNotificationAddr}}
)
`))

// WriteGoSource renders m as a Go file declaring one constant per field, for
// test packages that embed the fixture addresses at build time.
func (m *TestMetadata) WriteGoSource(w io.Writer, pkg string) error {
	var buf bytes.Buffer
	err := goSourceTemplate.Execute(&buf, map[string]any{
		"Package":               pkg,
		"SimplePath":            m.simplePath,
		"WorkerThreadsPath":     m.workerThreadsPath,
		"SimpleFunction1Addr":   m.simpleFunction1Addr,
		"SimpleFunction2Addr":   m.simpleFunction2Addr,
		"SimpleFunction2Length": m.simpleFunction2Length,
		"ThreadBreakAddr":       m.threadBreakAddr,
		"StartNotificationAddr": m.startNotificationAddr,
		"TermNotificationAddr":  m.termNotificationAddr,
	})
	if err != nil {
		return fmt.Errorf("render source: %w", err)
	}

	src, err := format.Source(buf.Bytes())
	if err != nil {
		return fmt.Errorf("format source: %w", err)
	}
	_, err = w.Write(src)
	return err
}
