package shmem

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseMarshalRoundTripV4(t *testing.T) {
	cb := &ControlBlock{Version: ProtocolVersion4, DataSize: 10}
	buf := Marshal(cb)

	got, err := Parse(buf)
	require.NoError(t, err)
	require.Equal(t, ProtocolVersion4, int(got.Version))
	require.EqualValues(t, 10, got.DataSize)
}

func TestParseMarshalRoundTripV5WithSlots(t *testing.T) {
	cb := &ControlBlock{
		Version:         ProtocolVersion5,
		DataSize:        20,
		ExclusiveAccess: true,
		Slots:           make([]PIDSlot, 4),
	}
	require.True(t, cb.ClaimSlot(1234, 1))
	require.True(t, cb.ClaimSlot(5678, 2))

	buf := Marshal(cb)
	got, err := Parse(buf)
	require.NoError(t, err)
	require.True(t, got.ExclusiveAccess)
	require.Len(t, got.Slots, 4)

	foundSlot := false
	for _, s := range got.Slots {
		if s.PID == 1234 {
			foundSlot = true
			require.EqualValues(t, 1, s.Mode)
		}
	}
	require.True(t, foundSlot)
}

func TestParseRejectsBadVersion(t *testing.T) {
	cb := &ControlBlock{Version: 3, DataSize: 1}
	buf := Marshal(cb)
	buf[offsetVersion] = 3
	_, err := Parse(buf)
	require.Error(t, err)
}

func TestParseRejectsZeroInitByte(t *testing.T) {
	cb := &ControlBlock{Version: ProtocolVersion4, DataSize: 1}
	buf := Marshal(cb)
	buf[offsetInit] = 0
	_, err := Parse(buf)
	require.Error(t, err)
}

func TestParseRejectsBadFreeSpaceTag(t *testing.T) {
	cb := &ControlBlock{Version: ProtocolVersion4, DataSize: 1}
	buf := Marshal(cb)
	buf[offsetFreeSpaceTag] = 0x00
	buf[offsetFreeSpaceTag+1] = 0x00
	_, err := Parse(buf)
	require.Error(t, err)
}

func TestClaimAndReleaseSlot(t *testing.T) {
	cb := &ControlBlock{Version: ProtocolVersion5, Slots: make([]PIDSlot, 2)}
	require.True(t, cb.ClaimSlot(100, 1))
	require.True(t, cb.ClaimSlot(200, 1))
	require.False(t, cb.ClaimSlot(300, 1)) // no free slots

	cb.ReleaseSlot(100)
	require.True(t, cb.ClaimSlot(300, 1))
}

func TestLockAcquireRelease(t *testing.T) {
	dir := t.TempDir()
	l := NewLock(dir)
	require.NoError(t, l.Acquire())
	require.NoError(t, l.Release())
}

func TestLockPathIsUnderDataPath(t *testing.T) {
	path := LockPath("/tmp/wow-data")
	require.Equal(t, filepath.Join("/tmp/wow-data", ".casc.shmem.lock"), path)
}
