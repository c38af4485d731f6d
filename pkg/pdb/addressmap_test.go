package pdb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jtang613/nativefiletests/internal/nfttest"
)

func TestOMAPLookup(t *testing.T) {
	m := omap{
		{From: 0x1000, To: 0x5000},
		{From: 0x1100, To: 0},
		{From: 0x1200, To: 0x2000},
	}

	tests := []struct {
		rva  uint32
		want uint32
		ok   bool
	}{
		{0x0fff, 0, false},
		{0x1000, 0x5000, true},
		{0x1010, 0x5010, true},
		{0x1100, 0, false},
		{0x11ff, 0, false},
		{0x1200, 0x2000, true},
		{0x1234, 0x2034, true},
	}
	for _, tt := range tests {
		got, ok := m.lookup(tt.rva)
		assert.Equal(t, tt.ok, ok, "rva %#x", tt.rva)
		assert.Equal(t, tt.want, got, "rva %#x", tt.rva)
	}
}

func TestAddressMap_Identity(t *testing.T) {
	p := openPDB(t, &nfttest.PDB{Sections: textSections})

	amap, err := p.AddressMap()
	require.NoError(t, err)
	assert.False(t, amap.HasOMAP())

	secs := amap.Sections()
	require.Len(t, secs, 2)
	assert.Equal(t, SectionInfo{Index: 1, Name: ".text", Offset: 0x1000, Length: 0x2000}, secs[0])
	assert.Equal(t, ".rdata", secs[1].Name)

	so, ok := amap.SectionOffset(1, 0x40)
	require.True(t, ok)
	assert.Equal(t, SectionOffset{Section: 1, Offset: 0x40}, so)

	rva, ok := amap.RVA(2, 0x10)
	require.True(t, ok)
	assert.Equal(t, uint32(0x3010), rva)

	_, ok = amap.SectionOffset(0, 0x40)
	assert.False(t, ok, "segment zero never translates")

	_, ok = amap.RVA(9, 0)
	assert.False(t, ok)
}

func TestAddressMap_OMAP(t *testing.T) {
	// The optimizer moved the original .text at 0x1000 to 0x2000 and
	// discarded everything from 0x1800 on.
	p := openPDB(t, &nfttest.PDB{
		Sections: []nfttest.PESection{
			{Name: ".rdata", VirtualAddress: 0x1000, VirtualSize: 0x1000},
			{Name: ".text", VirtualAddress: 0x2000, VirtualSize: 0x1000},
		},
		OriginalSections: []nfttest.PESection{
			{Name: ".text", VirtualAddress: 0x1000, VirtualSize: 0x1000},
			{Name: ".rdata", VirtualAddress: 0x2000, VirtualSize: 0x1000},
		},
		OMAP: []nfttest.OMAPEntry{
			{From: 0x2000, To: 0x1000},
			{From: 0x1000, To: 0x2000},
			{From: 0x1800, To: 0},
		},
	})

	amap, err := p.AddressMap()
	require.NoError(t, err)
	assert.True(t, amap.HasOMAP())
	assert.True(t, p.Info().HasOMAP)

	so, ok := amap.SectionOffset(1, 0x40)
	require.True(t, ok)
	assert.Equal(t, SectionOffset{Section: 2, Offset: 0x40}, so)

	so, ok = amap.SectionOffset(2, 0x8)
	require.True(t, ok)
	assert.Equal(t, SectionOffset{Section: 1, Offset: 0x8}, so)

	_, ok = amap.SectionOffset(1, 0x900)
	assert.False(t, ok, "discarded range")

	_, ok = amap.SectionOffset(3, 0)
	assert.False(t, ok, "no such original section")
}

func TestAddressMap_OMAPWithoutOriginalSections(t *testing.T) {
	p := openPDB(t, &nfttest.PDB{
		Sections: textSections,
		OMAP:     []nfttest.OMAPEntry{{From: 0x1000, To: 0x1000}},
	})

	_, err := p.AddressMap()
	assert.ErrorContains(t, err, "original section headers")
}
