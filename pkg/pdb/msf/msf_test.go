package msf

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jtang613/nativefiletests/internal/nfttest"
)

func pattern(n int, seed byte) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = seed + byte(i*7)
	}
	return b
}

func TestNewReader_Streams(t *testing.T) {
	small := []byte("hello")
	large := pattern(1300, 3) // three 512-byte blocks
	data := nfttest.BuildMSF(512, [][]byte{{}, small, nil, large})

	m, err := NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer m.Close()

	assert.Equal(t, uint32(512), m.SuperBlock().BlockSize)
	assert.Equal(t, 4, m.NumStreams())
	assert.Equal(t, int64(len(data)), m.SuperBlock().FileSize())

	got, err := m.ReadStream(1)
	require.NoError(t, err)
	assert.Equal(t, small, got)

	unused, err := m.Stream(2)
	require.NoError(t, err)
	assert.Zero(t, unused.Size())

	s, err := m.Stream(3)
	require.NoError(t, err)
	assert.Equal(t, uint32(len(large)), s.Size())
	got, err = s.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, large, got)
}

func TestStream_OutOfRange(t *testing.T) {
	m, err := NewReader(bytes.NewReader(nfttest.BuildMSF(512, [][]byte{{}})))
	require.NoError(t, err)

	_, err = m.Stream(1)
	assert.Error(t, err)
	_, err = m.Stream(-1)
	assert.Error(t, err)
}

func TestStreamReader_ReadAcrossBlocks(t *testing.T) {
	large := pattern(2000, 11)
	m, err := NewReader(bytes.NewReader(nfttest.BuildMSF(512, [][]byte{{}, large})))
	require.NoError(t, err)

	r, err := m.StreamReader(1)
	require.NoError(t, err)

	// Straddle the first block boundary.
	head := make([]byte, 540)
	_, err = io.ReadFull(r, head)
	require.NoError(t, err)
	assert.Equal(t, large[:540], head)

	rest, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, large[540:], rest)

	n, err := r.Read(make([]byte, 1))
	assert.Zero(t, n)
	assert.ErrorIs(t, err, io.EOF)
}

func TestReadSuperBlock_Invalid(t *testing.T) {
	good := nfttest.BuildMSF(512, [][]byte{{}})

	t.Run("bad magic", func(t *testing.T) {
		data := bytes.Clone(good)
		data[0] = 'X'
		_, err := NewReader(bytes.NewReader(data))
		assert.ErrorIs(t, err, ErrBadMagic)
	})

	t.Run("bad block size", func(t *testing.T) {
		data := bytes.Clone(good)
		data[32] = 0x10 // 0x210
		_, err := NewReader(bytes.NewReader(data))
		assert.ErrorContains(t, err, "invalid block size")
	})

	t.Run("bad free block map", func(t *testing.T) {
		data := bytes.Clone(good)
		data[36] = 3
		_, err := NewReader(bytes.NewReader(data))
		assert.ErrorContains(t, err, "FreeBlockMapBlock")
	})

	t.Run("truncated", func(t *testing.T) {
		_, err := NewReader(bytes.NewReader(good[:20]))
		assert.Error(t, err)
	})

	t.Run("shorter than declared block count", func(t *testing.T) {
		_, err := NewReader(bytes.NewReader(good[:len(good)-1]))
		assert.ErrorContains(t, err, "file truncated")
	})
}

func TestNewReader_DirectoryOverrun(t *testing.T) {
	data := nfttest.BuildMSF(512, [][]byte{{}, []byte("abc")})
	// Claim far more streams than the directory holds.
	dirBytes := int(data[44]) | int(data[45])<<8
	blockMapAddr := int(data[52]) | int(data[53])<<8
	dirBlock := int(data[blockMapAddr*512]) | int(data[blockMapAddr*512+1])<<8
	data[dirBlock*512] = 0xff
	data[dirBlock*512+1] = 0xff
	require.Positive(t, dirBytes)

	_, err := NewReader(bytes.NewReader(data))
	assert.ErrorContains(t, err, "exceeds directory size")
}

func TestOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.pdb")
	require.NoError(t, os.WriteFile(path, nfttest.BuildMSF(1024, [][]byte{{}, []byte("stream one")}), 0o644))

	m, err := Open(path)
	require.NoError(t, err)
	defer m.Close()

	got, err := m.ReadStream(1)
	require.NoError(t, err)
	assert.Equal(t, "stream one", string(got))
}

func TestOpen_Missing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.pdb"))
	assert.Error(t, err)
}
