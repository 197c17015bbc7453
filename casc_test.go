package casc

import (
	"testing"

	"github.com/ngdp-go/casc/casckey"
	"github.com/ngdp-go/casc/encoding"
	"github.com/ngdp-go/casc/jenkins"
	"github.com/ngdp-go/casc/root"
	"github.com/stretchr/testify/require"
)

func TestWriteThenReadByEKey(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(DefaultConfig(dir))
	require.NoError(t, err)
	defer s.Close()

	plaintext := []byte("hello, azeroth")
	ckey, ekey, err := s.Write(plaintext)
	require.NoError(t, err)
	require.False(t, ckey.IsZero())
	require.False(t, ekey.IsZero())

	got, err := s.ReadByEKey(ekey)
	require.NoError(t, err)
	require.Equal(t, plaintext, got)
}

func TestReadByEKeyNotFound(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(DefaultConfig(dir))
	require.NoError(t, err)
	defer s.Close()

	var missing casckey.EncodingKey
	for i := range missing {
		missing[i] = 0xAB
	}
	_, err = s.ReadByEKey(missing)
	require.Error(t, err)
}

func TestReadByCKeyAndFDIDAndPath(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(DefaultConfig(dir))
	require.NoError(t, err)
	defer s.Close()

	plaintext := []byte("interface/cinematics/logo_1024.avi contents")
	ckey, ekey, err := s.Write(plaintext)
	require.NoError(t, err)

	encEntries := []encoding.CKeyEntry{
		{CKey: ckey, FileSize: uint64(len(plaintext)), EKeys: []casckey.EncodingKey{ekey}},
	}
	encData := encoding.Build(encEntries, encoding.BuildOptions{})
	encManifest, err := encoding.Parse(encData)
	require.NoError(t, err)
	s.SetEncodingManifest(encManifest)

	got, err := s.ReadByCKey(ckey)
	require.NoError(t, err)
	require.Equal(t, plaintext, got)

	nameHash := jenkins.NameHash64("interface/cinematics/logo_1024.avi")
	block := root.Block{
		ContentFlags: 0, // carries name hashes
		LocaleFlags:  0,
		FileDataIDs:  []uint32{42},
		CKeys:        []casckey.ContentKey{ckey},
		NameHashes:   []uint64{nameHash},
	}
	rootData := root.BuildFile([]root.Block{block})
	rootManifest, err := root.ParseFile(rootData, nil)
	require.NoError(t, err)
	s.SetRootManifest(rootManifest, nil)

	gotByFDID, err := s.ReadByFDID(42)
	require.NoError(t, err)
	require.Equal(t, plaintext, gotByFDID)

	gotByPath, err := s.ReadByPath("interface/cinematics/logo_1024.avi")
	require.NoError(t, err)
	require.Equal(t, plaintext, gotByPath)
}

func TestWriteReadOnlyRejected(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig(dir)
	cfg.ReadOnly = true
	s, err := Open(cfg)
	require.NoError(t, err)
	defer s.Close()

	_, _, err = s.Write([]byte("nope"))
	require.Error(t, err)
}

func TestMultipleWritesRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(DefaultConfig(dir))
	require.NoError(t, err)
	defer s.Close()

	var ekeys []casckey.EncodingKey
	var payloads [][]byte
	for i := 0; i < 20; i++ {
		p := []byte{byte(i), byte(i + 1), byte(i + 2), byte(i * 7)}
		_, ek, err := s.Write(p)
		require.NoError(t, err)
		ekeys = append(ekeys, ek)
		payloads = append(payloads, p)
	}

	for i, ek := range ekeys {
		got, err := s.ReadByEKey(ek)
		require.NoError(t, err)
		require.Equal(t, payloads[i], got)
	}
}
