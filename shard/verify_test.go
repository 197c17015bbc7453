package shard

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVerifyPassesOnCleanIndex(t *testing.T) {
	var entries []Entry
	for i := 0; i < 40; i++ {
		entries = append(entries, makeEntry(byte(i*3), 0, uint64(i*10), uint32(i)))
	}
	data, err := Build(entries, BuildOptions{EntriesPerBlock: 5})
	require.NoError(t, err)

	idx, err := Parse(data, false)
	require.NoError(t, err)

	require.NoError(t, Verify(context.Background(), idx))
}

func TestVerifyDetectsCorruption(t *testing.T) {
	var entries []Entry
	for i := 0; i < 20; i++ {
		entries = append(entries, makeEntry(byte(i*5), 0, uint64(i*10), uint32(i)))
	}
	data, err := Build(entries, BuildOptions{EntriesPerBlock: 5})
	require.NoError(t, err)

	corrupted := append([]byte{}, data...)
	corrupted[headerLen+4] ^= 0xFF

	idx, err := Parse(corrupted, false)
	require.NoError(t, err)

	require.Error(t, Verify(context.Background(), idx))
}
