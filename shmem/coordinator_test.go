package shmem

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCoordinatorAcquireRelease(t *testing.T) {
	dir := t.TempDir()
	c := NewCoordinator(dir, 42)
	require.NoError(t, c.Acquire())
	require.NoError(t, c.Release())
}

func TestValidateOrInitFreshRegion(t *testing.T) {
	buf := make([]byte, MinControlBlockSize)
	cb, out, err := ValidateOrInit(buf, ProtocolVersion5, 10)
	require.NoError(t, err)
	require.EqualValues(t, ProtocolVersion5, cb.Version)
	require.NotEmpty(t, out)

	reparsed, err := Parse(out)
	require.NoError(t, err)
	require.EqualValues(t, ProtocolVersion5, reparsed.Version)
}

func TestValidateOrInitAcceptsValidRegion(t *testing.T) {
	cb := &ControlBlock{Version: ProtocolVersion4, DataSize: 5}
	buf := Marshal(cb)

	got, out, err := ValidateOrInit(buf, ProtocolVersion4, 5)
	require.NoError(t, err)
	require.EqualValues(t, 5, got.DataSize)
	require.Equal(t, buf, out)
}
