package root

import (
	"testing"

	"github.com/ngdp-go/casc/casckey"
	"github.com/stretchr/testify/require"
)

func ckey(b byte) casckey.ContentKey {
	var k casckey.ContentKey
	for i := range k {
		k[i] = b
	}
	return k
}

func TestBuildParseRoundTrip(t *testing.T) {
	block := Block{
		ContentFlags: 0,
		LocaleFlags:  1,
		FileDataIDs:  []uint32{10, 11, 15},
		CKeys:        []casckey.ContentKey{ckey(1), ckey(2), ckey(3)},
		NameHashes:   []uint64{100, 200, 300},
	}

	data := BuildFile([]Block{block})
	m, err := ParseFile(data, nil)
	require.NoError(t, err)

	got, ok := m.Resolve(11)
	require.True(t, ok)
	require.Equal(t, ckey(2), got)

	got2, ok := m.ResolveByNameHash(300)
	require.True(t, ok)
	require.Equal(t, ckey(3), got2)

	_, ok = m.Resolve(999)
	require.False(t, ok)
}

func TestFDIDDeltaMonotonicityRejectsNegative(t *testing.T) {
	// Hand-construct a block whose second delta would make the
	// decoded fdid sequence go backwards.
	block := Block{
		FileDataIDs:  []uint32{10, 11},
		ContentFlags: ContentFlagNoNameHash,
		CKeys:        []casckey.ContentKey{ckey(1), ckey(2)},
	}
	data := BuildFile([]Block{block})

	// Corrupt the second delta (right after the 12-byte block header
	// and the first 4-byte delta) to a large negative value.
	deltaOff := len(Magic) + blockHeaderSize + 4
	data[deltaOff] = 0x00
	data[deltaOff+1] = 0x00
	data[deltaOff+2] = 0x00
	data[deltaOff+3] = 0x80 // -2^31 as little-endian i32

	_, err := ParseFile(data, nil)
	require.Error(t, err)
}

func TestPreferenceBreaksTies(t *testing.T) {
	blockEnUS := Block{
		LocaleFlags:  1,
		ContentFlags: ContentFlagNoNameHash,
		FileDataIDs:  []uint32{5},
		CKeys:        []casckey.ContentKey{ckey(0xAA)},
	}
	blockFrFR := Block{
		LocaleFlags:  2,
		ContentFlags: ContentFlagNoNameHash,
		FileDataIDs:  []uint32{5},
		CKeys:        []casckey.ContentKey{ckey(0xBB)},
	}
	data := BuildFile([]Block{blockEnUS, blockFrFR})

	preferFrFR := func(cands []Entry) int {
		for i, c := range cands {
			if c.LocaleFlags == 2 {
				return i
			}
		}
		return 0
	}

	m, err := ParseFile(data, preferFrFR)
	require.NoError(t, err)
	got, ok := m.Resolve(5)
	require.True(t, ok)
	require.Equal(t, ckey(0xBB), got)
}

func TestParseFileWideContentFlags(t *testing.T) {
	// ParseFileWide reads its own wire form (64-bit content flags);
	// build directly rather than via BuildBlock (legacy 32-bit form).
	var data []byte
	data = append(data, Magic[:]...)

	var hdr [blockHeaderSizeWide]byte
	count := uint32(1)
	putU32 := func(b []byte, v uint32) {
		b[0] = byte(v)
		b[1] = byte(v >> 8)
		b[2] = byte(v >> 16)
		b[3] = byte(v >> 24)
	}
	putU32(hdr[0:4], count)
	// content flags = ContentFlagNoNameHash, as a 64-bit LE value
	cf := ContentFlagNoNameHash
	for i := 0; i < 8; i++ {
		hdr[4+i] = byte(cf >> (8 * i))
	}
	putU32(hdr[12:16], 0)
	data = append(data, hdr[:]...)

	var delta [4]byte
	putU32(delta[:], 0) // fdid[0] = 0
	data = append(data, delta[:]...)
	data = append(data, ckey(7)[:]...)

	m, err := ParseFileWide(data, nil)
	require.NoError(t, err)
	got, ok := m.Resolve(0)
	require.True(t, ok)
	require.Equal(t, ckey(7), got)
}
