package archive

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ngdp-go/casc/casckey"
	"github.com/stretchr/testify/require"
)

func TestLocalHeaderRoundTrip(t *testing.T) {
	ekey := casckey.HashEncoded([]byte("hello world"))
	h := LocalHeader{EKey: ekey, Size: 1234, Flags: 0, Checksum: 0xdeadbeef}
	buf := MarshalLocalHeader(h)
	require.Len(t, buf, LocalHeaderSize)

	got, err := UnmarshalLocalHeader(buf[:])
	require.NoError(t, err)
	require.Equal(t, h, got)
}

func TestUnmarshalLocalHeaderTruncated(t *testing.T) {
	_, err := UnmarshalLocalHeader(make([]byte, 10))
	require.Error(t, err)
}

func TestAppendThenRead(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, Filename(0))
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, EnsureSegmentHeader(f))

	ekey := casckey.HashEncoded([]byte("payload-one"))
	payload := []byte("this is the BLTE-encoded payload bytes")

	offset, err := Append(f, ekey, payload)
	require.NoError(t, err)
	require.EqualValues(t, SegmentHeaderSize+LocalHeaderSize, offset)

	got, err := Read(f, Location{Offset: offset, Size: uint32(len(payload))}, ekey)
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestReadDetectsEKeyMismatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, Filename(1))
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, EnsureSegmentHeader(f))
	ekey := casckey.HashEncoded([]byte("payload-two"))
	payload := []byte("another payload")
	offset, err := Append(f, ekey, payload)
	require.NoError(t, err)

	wrongKey := casckey.HashEncoded([]byte("not the right content"))
	_, err = Read(f, Location{Offset: offset, Size: uint32(len(payload))}, wrongKey)
	require.Error(t, err)
}

func TestReadDetectsSizeMismatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, Filename(2))
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, EnsureSegmentHeader(f))
	ekey := casckey.HashEncoded([]byte("payload-three"))
	payload := []byte("yet another payload")
	offset, err := Append(f, ekey, payload)
	require.NoError(t, err)

	_, err = Read(f, Location{Offset: offset, Size: uint32(len(payload)) + 5}, ekey)
	require.Error(t, err)
}

func TestArchiveStateAndFreeTail(t *testing.T) {
	dir := t.TempDir()
	a, err := Open(dir, 0)
	require.NoError(t, err)
	require.Equal(t, Thawed, a.State(1000))

	a.Size = 1000
	require.Equal(t, Frozen, a.State(1000))
	require.EqualValues(t, 0, a.FreeTail(1000))
}

func TestPoolGetReusesHandle(t *testing.T) {
	dir := t.TempDir()
	p, err := NewPool(dir, 2)
	require.NoError(t, err)
	defer p.Close()

	f1, err := p.Get(0)
	require.NoError(t, err)
	f2, err := p.Get(0)
	require.NoError(t, err)
	require.Same(t, f1, f2)

	stats := p.Stats()
	require.EqualValues(t, 1, stats.Misses)
	require.EqualValues(t, 1, stats.Hits)
}

func TestPoolEvictsLRU(t *testing.T) {
	dir := t.TempDir()
	p, err := NewPool(dir, 1)
	require.NoError(t, err)
	defer p.Close()

	_, err = p.Get(0)
	require.NoError(t, err)
	_, err = p.Get(1)
	require.NoError(t, err)

	stats := p.Stats()
	require.EqualValues(t, 1, stats.Evictions)
}
