package encoding

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

func ekey(b byte) casckey.EncodingKey {
	var k casckey.EncodingKey
	for i := range k {
		k[i] = b
	}
	return k
}

func TestBuildParseLookupRoundTrip(t *testing.T) {
	entries := []CKeyEntry{
		{CKey: ckey(0x01), FileSize: 1024, EKeys: []casckey.EncodingKey{ekey(0x11)}},
		{CKey: ckey(0x02), FileSize: 2048, EKeys: []casckey.EncodingKey{ekey(0x12), ekey(0x13)}},
	}

	data := Build(entries, BuildOptions{})
	m, err := Parse(data)
	require.NoError(t, err)

	got, ok := m.Lookup(ckey(0x01))
	require.True(t, ok)
	require.EqualValues(t, 1024, got.FileSize)
	require.Equal(t, []casckey.EncodingKey{ekey(0x11)}, got.EKeys)

	got2, ok := m.Lookup(ckey(0x02))
	require.True(t, ok)
	require.Len(t, got2.EKeys, 2)

	_, ok = m.Lookup(ckey(0xFF))
	require.False(t, ok)
}

func TestParseRejectsBadMagic(t *testing.T) {
	data := Build([]CKeyEntry{{CKey: ckey(1), FileSize: 1, EKeys: []casckey.EncodingKey{ekey(1)}}}, BuildOptions{})
	data[0] = 'X'
	_, err := Parse(data)
	require.Error(t, err)
}

func TestParseDetectsPageChecksumMismatch(t *testing.T) {
	data := Build([]CKeyEntry{{CKey: ckey(1), FileSize: 1, EKeys: []casckey.EncodingKey{ekey(1)}}}, BuildOptions{})
	data[headerSize+pageIndexEntrySize(casckey.Size)] ^= 0xFF // flip a byte inside the page body
	_, err := Parse(data)
	require.Error(t, err)
}

func TestParseTruncated(t *testing.T) {
	_, err := Parse(make([]byte, 5))
	require.Error(t, err)
}
