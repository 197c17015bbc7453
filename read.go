package casc

import (
	"fmt"

	"github.com/ngdp-go/casc/archive"
	"github.com/ngdp-go/casc/blte"
	"github.com/ngdp-go/casc/casckey"
	"github.com/ngdp-go/casc/internal/errdefs"
	"github.com/ngdp-go/casc/jenkins"
)

// ReadByEKey looks up ekey in the shard index, reads the matching
// archive range, and decodes the BLTE payload.
// Each read path returns errdefs.ErrNotFound when any stage misses;
// corrupt-header and checksum-mismatch conditions are distinct errors.
func (s *Store) ReadByEKey(ekey casckey.EncodingKey) ([]byte, error) {
	loc, ok, err := s.lookupShard(ekey)
	if err != nil {
		return nil, fmt.Errorf("casc: shard lookup: %w", err)
	}
	if !ok {
		return nil, errdefs.ErrNotFound
	}

	f, err := s.pool.Get(loc.ArchiveID)
	if err != nil {
		return nil, fmt.Errorf("casc: open archive %d: %w", loc.ArchiveID, err)
	}

	encoded, err := archive.Read(f, archive.Location{Offset: loc.Offset, Size: loc.Size}, ekey)
	if err != nil {
		return nil, fmt.Errorf("casc: archive read: %w", err)
	}

	ekeyBytes := [16]byte(ekey)
	plaintext, err := blte.Decode(encoded, blte.DecodeOptions{
		EKey:            &ekeyBytes,
		Keys:            s.keys,
		VerifyChecksums: s.cfg.VerifyChecksums,
	})
	if err != nil {
		return nil, fmt.Errorf("casc: blte decode: %w", err)
	}
	return plaintext, nil
}

// ReadByCKey resolves ckey through the encoding manifest to its
// preferred EKey, then calls ReadByEKey.
func (s *Store) ReadByCKey(ckey casckey.ContentKey) ([]byte, error) {
	if s.enc == nil {
		return nil, errdefs.ErrNotFound
	}
	entry, ok := s.enc.Lookup(ckey)
	if !ok || len(entry.EKeys) == 0 {
		return nil, errdefs.ErrNotFound
	}
	return s.ReadByEKey(entry.EKeys[0])
}

// ReadByFDID resolves a file-data ID through the root manifest to its
// preferred CKey, then calls ReadByCKey.
func (s *Store) ReadByFDID(fdid uint32) ([]byte, error) {
	if s.rt == nil {
		return nil, errdefs.ErrNotFound
	}
	ckey, ok := s.rt.Resolve(fdid)
	if !ok {
		return nil, errdefs.ErrNotFound
	}
	return s.ReadByCKey(ckey)
}

// ReadByPath hashes path with normalized Jenkins64 and resolves it
// through the root manifest's name-hash map to a file-data ID and that
// ID's preferred CKey, then calls ReadByCKey.
func (s *Store) ReadByPath(path string) ([]byte, error) {
	if s.rt == nil {
		return nil, errdefs.ErrNotFound
	}
	nameHash := jenkins.NameHash64(path)
	ckey, ok := s.rt.ResolveByNameHash(nameHash)
	if !ok {
		return nil, errdefs.ErrNotFound
	}
	return s.ReadByCKey(ckey)
}
