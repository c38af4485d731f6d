package msf

import (
	"fmt"
	"io"
)

// Stream is a single stream within an MSF file.
// Its bytes live in a list of possibly non-contiguous blocks.
type Stream struct {
	msf    *MSF
	size   uint32
	blocks []uint32
}

// Size returns the size of the stream in bytes.
func (s *Stream) Size() uint32 {
	return s.size
}

// ReadAll reads the entire stream contents into a byte slice.
func (s *Stream) ReadAll() ([]byte, error) {
	data := make([]byte, s.size)
	if _, err := io.ReadFull(NewStreamReader(s), data); err != nil {
		return nil, err
	}
	return data, nil
}

// StreamReader provides sequential read access to a stream's data,
// hiding the block layout.
type StreamReader struct {
	stream *Stream
	offset int64
}

// NewStreamReader creates a new reader for the given stream.
func NewStreamReader(s *Stream) *StreamReader {
	return &StreamReader{stream: s}
}

// Read implements io.Reader.
func (sr *StreamReader) Read(p []byte) (int, error) {
	size := int64(sr.stream.size)
	if sr.offset >= size {
		return 0, io.EOF
	}

	blockSize := int64(sr.stream.msf.superBlock.BlockSize)
	total := 0
	for len(p) > 0 && sr.offset < size {
		blockIdx := int(sr.offset / blockSize)
		if blockIdx >= len(sr.stream.blocks) {
			return total, fmt.Errorf("stream offset %d past block list (%d blocks)", sr.offset, len(sr.stream.blocks))
		}
		posInBlock := sr.offset % blockSize

		toRead := int64(len(p))
		toRead = min(toRead, blockSize-posInBlock, size-sr.offset)

		fileOffset := int64(sr.stream.blocks[blockIdx])*blockSize + posInBlock
		n, err := sr.stream.msf.readAt(p[:toRead], fileOffset)
		total += n
		sr.offset += int64(n)
		p = p[n:]
		if err != nil && err != io.EOF {
			return total, err
		}
		if int64(n) < toRead {
			return total, io.ErrUnexpectedEOF
		}
	}

	return total, nil
}

// StreamDirectory represents the directory of all streams in the MSF file.
type StreamDirectory struct {
	NumStreams   uint32
	StreamSizes  []uint32
	StreamBlocks [][]uint32
}
