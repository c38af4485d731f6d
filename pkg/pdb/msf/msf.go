package msf

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/exp/mmap"
)

// unusedStreamSize marks a deleted or never-written stream in the directory.
const unusedStreamSize = 0xFFFFFFFF

// MSF represents an opened MSF (Multi-Stream Format) file.
type MSF struct {
	r          io.ReaderAt
	closer     io.Closer
	superBlock *SuperBlock
	directory  *StreamDirectory
	streams    []*Stream
}

// Open maps an MSF file into memory and parses its structure.
func Open(path string) (*MSF, error) {
	ra, err := mmap.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	m, err := NewReader(ra)
	if err != nil {
		ra.Close()
		return nil, err
	}
	m.closer = ra
	return m, nil
}

// NewReader parses an MSF container held by r. The caller keeps ownership of r.
func NewReader(r io.ReaderAt) (*MSF, error) {
	m := &MSF{r: r}

	var err error
	m.superBlock, err = ReadSuperBlock(io.NewSectionReader(r, 0, SuperBlockSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read superblock: %w", err)
	}

	// mmap.ReaderAt and a fresh bytes.Reader both report their full length.
	if l, ok := r.(interface{ Len() int }); ok {
		if want := m.superBlock.FileSize(); int64(l.Len()) < want {
			return nil, fmt.Errorf("file truncated: %d bytes, superblock declares %d", l.Len(), want)
		}
	}

	if err := m.readStreamDirectory(); err != nil {
		return nil, fmt.Errorf("failed to read stream directory: %w", err)
	}

	m.buildStreams()

	return m, nil
}

// Close releases the underlying mapping, if Open created one.
func (m *MSF) Close() error {
	if m.closer != nil {
		return m.closer.Close()
	}
	return nil
}

// SuperBlock returns the MSF SuperBlock.
func (m *MSF) SuperBlock() *SuperBlock {
	return m.superBlock
}

// NumStreams returns the number of streams in the file.
func (m *MSF) NumStreams() int {
	return int(m.directory.NumStreams)
}

// Stream returns the stream at the given index.
func (m *MSF) Stream(index int) (*Stream, error) {
	if index < 0 || index >= len(m.streams) {
		return nil, fmt.Errorf("stream index %d out of range [0, %d)", index, len(m.streams))
	}
	return m.streams[index], nil
}

// StreamReader returns a reader for the stream at the given index.
func (m *MSF) StreamReader(index int) (*StreamReader, error) {
	s, err := m.Stream(index)
	if err != nil {
		return nil, err
	}
	return NewStreamReader(s), nil
}

// ReadStream returns the full contents of the stream at the given index.
func (m *MSF) ReadStream(index int) ([]byte, error) {
	s, err := m.Stream(index)
	if err != nil {
		return nil, err
	}
	data, err := s.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read stream %d: %w", index, err)
	}
	return data, nil
}

func (m *MSF) readAt(p []byte, off int64) (int, error) {
	return m.r.ReadAt(p, off)
}

// readStreamDirectory reads and parses the stream directory.
func (m *MSF) readStreamDirectory() error {
	blockSize := m.superBlock.BlockSize

	// The block map lists the blocks holding the stream directory.
	blockMapOffset := int64(m.superBlock.BlockMapAddr) * int64(blockSize)
	numDirBlocks := m.superBlock.NumDirectoryBlocks()
	if numDirBlocks > blockSize/4 {
		return fmt.Errorf("stream directory needs %d blocks, block map holds %d", numDirBlocks, blockSize/4)
	}

	blockMap := make([]uint32, numDirBlocks)
	br := io.NewSectionReader(m.r, blockMapOffset, int64(numDirBlocks)*4)
	if err := binary.Read(br, binary.LittleEndian, blockMap); err != nil {
		return fmt.Errorf("failed to read block map: %w", err)
	}

	dirData := make([]byte, m.superBlock.NumDirectoryBytes)
	bytesRead := 0
	for _, blockIdx := range blockMap {
		offset := int64(blockIdx) * int64(blockSize)
		toRead := int(blockSize)
		if bytesRead+toRead > len(dirData) {
			toRead = len(dirData) - bytesRead
		}
		if _, err := m.r.ReadAt(dirData[bytesRead:bytesRead+toRead], offset); err != nil {
			return fmt.Errorf("failed to read directory block %d: %w", blockIdx, err)
		}
		bytesRead += toRead
	}

	return m.parseStreamDirectory(dirData)
}

// parseStreamDirectory parses the stream directory from raw bytes.
func (m *MSF) parseStreamDirectory(data []byte) error {
	r := bytes.NewReader(data)

	var numStreams uint32
	if err := binary.Read(r, binary.LittleEndian, &numStreams); err != nil {
		return fmt.Errorf("failed to read NumStreams: %w", err)
	}
	if uint64(numStreams)*4 > uint64(r.Len()) {
		return fmt.Errorf("stream count %d exceeds directory size %d", numStreams, len(data))
	}

	streamSizes := make([]uint32, numStreams)
	if err := binary.Read(r, binary.LittleEndian, streamSizes); err != nil {
		return fmt.Errorf("failed to read stream sizes: %w", err)
	}

	blockSize := m.superBlock.BlockSize
	streamBlocks := make([][]uint32, numStreams)
	for i, size := range streamSizes {
		if size == unusedStreamSize {
			continue
		}
		numBlocks := (size + blockSize - 1) / blockSize
		if uint64(numBlocks)*4 > uint64(r.Len()) {
			return fmt.Errorf("block list for stream %d exceeds directory size", i)
		}
		blocks := make([]uint32, numBlocks)
		if err := binary.Read(r, binary.LittleEndian, blocks); err != nil {
			return fmt.Errorf("failed to read block indices for stream %d: %w", i, err)
		}
		streamBlocks[i] = blocks
	}

	m.directory = &StreamDirectory{
		NumStreams:   numStreams,
		StreamSizes:  streamSizes,
		StreamBlocks: streamBlocks,
	}

	return nil
}

// buildStreams creates Stream objects for all streams in the directory.
func (m *MSF) buildStreams() {
	m.streams = make([]*Stream, m.directory.NumStreams)
	for i := uint32(0); i < m.directory.NumStreams; i++ {
		size := m.directory.StreamSizes[i]
		if size == unusedStreamSize {
			m.streams[i] = &Stream{msf: m}
			continue
		}
		m.streams[i] = &Stream{
			msf:    m,
			size:   size,
			blocks: m.directory.StreamBlocks[i],
		}
	}
}
