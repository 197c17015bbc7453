package casc

import (
	"fmt"

	"github.com/ngdp-go/casc/archive"
	"github.com/ngdp-go/casc/blte"
	"github.com/ngdp-go/casc/casckey"
	"github.com/ngdp-go/casc/internal/errdefs"
	"github.com/ngdp-go/casc/shard"
	"github.com/ngdp-go/casc/writer"
	"k8s.io/klog/v2"
)

// Write hashes plaintext to its CKey, BLTE-encodes it, hashes the
// encoded bytes to an EKey, appends it to an archive chosen by the
// placement algorithm, and updates the owning shard, returning the
// resulting (CKey, EKey) pair.
func (s *Store) Write(plaintext []byte) (casckey.ContentKey, casckey.EncodingKey, error) {
	if s.cfg.ReadOnly {
		return casckey.ContentKey{}, casckey.EncodingKey{}, errdefs.ErrReadOnly
	}

	ckey := casckey.HashContent(plaintext)

	encoded, err := blte.Encode(plaintext, blte.EncodeOptions{ChunkSize: 256 * 1024, Mode: blte.ModeZlib})
	if err != nil {
		return casckey.ContentKey{}, casckey.EncodingKey{}, fmt.Errorf("casc: blte encode: %w", err)
	}
	ekey := casckey.HashEncoded(encoded)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.append(ekey, encoded); err != nil {
		return casckey.ContentKey{}, casckey.EncodingKey{}, err
	}

	klog.V(2).InfoS("casc: wrote entry", "ckey", ckey.String(), "ekey", ekey.String(), "size", len(encoded))
	return ckey, ekey, nil
}

// append places encoded under ekey: it plans a spot via the writer
// package, opens (or creates) the target archive, writes the segment
// header on first use, appends the local header + payload, and folds
// the new entry into the owning shard's in-memory entry set, flushing
// the shard to disk.
func (s *Store) append(ekey casckey.EncodingKey, encoded []byte) error {
	if s.coord != nil {
		if err := s.coord.Acquire(); err != nil {
			return fmt.Errorf("casc: acquire shmem coordinator: %w", err)
		}
		defer s.coord.Release()
	}

	plan, err := writer.Place(s.table.Snapshot(), uint32(len(encoded)), s.cfg.MaxArchiveSize)
	if err != nil {
		return fmt.Errorf("casc: placement: %w", err)
	}

	f, err := s.pool.Get(plan.ArchiveID)
	if err != nil {
		return fmt.Errorf("casc: open archive %d: %w", plan.ArchiveID, err)
	}
	if plan.CreateNew {
		if err := archive.EnsureSegmentHeader(f); err != nil {
			return fmt.Errorf("casc: init archive %d: %w", plan.ArchiveID, err)
		}
	}

	offset, err := archive.Append(f, ekey, encoded)
	if err != nil {
		return fmt.Errorf("casc: archive append: %w", err)
	}

	grown := uint64(archive.LocalHeaderSize) + uint64(len(encoded))
	if plan.CreateNew {
		grown += archive.SegmentHeaderSize
	}
	s.table.Grow(plan.ArchiveID, grown)

	bucket := ekey.Bucket()
	entry := shard.Entry{
		Prefix: ekey.Prefix(),
		Loc:    shard.Location{ArchiveID: plan.ArchiveID, Offset: offset, Size: uint32(len(encoded))},
	}

	s.shardsMu.Lock()
	s.entries[bucket] = append(s.entries[bucket], entry)
	entriesCopy := append([]shard.Entry(nil), s.entries[bucket]...)
	s.shardsMu.Unlock()

	s.bloom.Add(entry.Prefix)

	data, err := shard.Build(entriesCopy, shard.BuildOptions{OffsetBits: s.cfg.OffsetFieldBits})
	if err != nil {
		return fmt.Errorf("casc: build shard %d: %w", bucket, err)
	}
	if err := shard.Flush(s.shardPath(bucket), data); err != nil {
		return fmt.Errorf("casc: flush shard %d: %w", bucket, err)
	}

	idx, err := shard.Parse(data, false)
	if err != nil {
		return fmt.Errorf("casc: reparse shard %d: %w", bucket, err)
	}
	s.shardsMu.Lock()
	s.shards[bucket] = idx
	s.shardsMu.Unlock()

	return nil
}
