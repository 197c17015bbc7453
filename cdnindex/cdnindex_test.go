package cdnindex

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func key(b byte) []byte {
	k := make([]byte, 16)
	for i := range k {
		k[i] = b
	}
	return k
}

func TestBuildParseLookupRoundTrip(t *testing.T) {
	entries := []Entry{
		{EKey: key(0x10), Offset: 0, Size: 100},
		{EKey: key(0x20), Offset: 100, Size: 200},
		{EKey: key(0x05), Offset: 300, Size: 50},
	}

	data := Build(entries, BuildOptions{})
	idx, err := Parse(data)
	require.NoError(t, err)
	require.EqualValues(t, 3, idx.Footer.NumElements)

	for _, e := range entries {
		got, ok, err := idx.Lookup(e.EKey)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, e.Offset, got.Offset)
		require.Equal(t, e.Size, got.Size)
	}

	_, ok, err := idx.Lookup(key(0xFF))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestParseTruncatedFooter(t *testing.T) {
	_, err := Parse(make([]byte, 10))
	require.Error(t, err)
}

func TestLookupDetectsCorruptedBlock(t *testing.T) {
	entries := []Entry{
		{EKey: key(0x10), Offset: 0, Size: 100},
		{EKey: key(0x20), Offset: 100, Size: 200},
	}
	data := Build(entries, BuildOptions{})
	corrupted := append([]byte{}, data...)
	corrupted[0] ^= 0xFF // flip a byte inside block 0

	idx, err := Parse(corrupted)
	require.NoError(t, err)

	_, _, err = idx.Lookup(key(0x10))
	require.Error(t, err)
}
