package nfttest

import (
	"bytes"
	"encoding/binary"
)

// MSFMagic is the MSF 7.00 file signature.
const MSFMagic = "Microsoft C/C++ MSF 7.00\r\n\x1aDS\x00\x00\x00"

// BuildMSF writes streams into an MSF container. A nil stream is recorded
// as unused; an empty one has size zero. Blocks 1 and 2 are the free block
// maps. Each stream's blocks are listed highest first so that readers must
// follow the block list rather than assume a contiguous layout.
func BuildMSF(blockSize uint32, streams [][]byte) []byte {
	const firstDataBlock = 3

	bs := int(blockSize)
	var blocks [][]byte
	alloc := func(data []byte) uint32 {
		b := make([]byte, bs)
		copy(b, data)
		blocks = append(blocks, b)
		return uint32(firstDataBlock + len(blocks) - 1)
	}

	var dir bytes.Buffer
	le := binary.LittleEndian
	binary.Write(&dir, le, uint32(len(streams)))
	for _, s := range streams {
		size := uint32(len(s))
		if s == nil {
			size = 0xFFFFFFFF
		}
		binary.Write(&dir, le, size)
	}
	for _, s := range streams {
		n := (len(s) + bs - 1) / bs
		list := make([]uint32, n)
		for i := n - 1; i >= 0; i-- {
			end := min((i+1)*bs, len(s))
			list[i] = alloc(s[i*bs : end])
		}
		binary.Write(&dir, le, list)
	}

	var dirBlocks []uint32
	for d := dir.Bytes(); len(d) > 0; {
		chunk := d[:min(bs, len(d))]
		dirBlocks = append(dirBlocks, alloc(chunk))
		d = d[len(chunk):]
	}
	var blockMap bytes.Buffer
	binary.Write(&blockMap, le, dirBlocks)
	blockMapAddr := alloc(blockMap.Bytes())

	numBlocks := firstDataBlock + len(blocks)
	out := make([]byte, numBlocks*bs)

	var sb bytes.Buffer
	sb.WriteString(MSFMagic)
	binary.Write(&sb, le, struct {
		BlockSize         uint32
		FreeBlockMapBlock uint32
		NumBlocks         uint32
		NumDirectoryBytes uint32
		Unknown           uint32
		BlockMapAddr      uint32
	}{
		BlockSize:         blockSize,
		FreeBlockMapBlock: 1,
		NumBlocks:         uint32(numBlocks),
		NumDirectoryBytes: uint32(dir.Len()),
		BlockMapAddr:      blockMapAddr,
	})
	copy(out, sb.Bytes())

	for i, b := range blocks {
		copy(out[(firstDataBlock+i)*bs:], b)
	}
	return out
}
