package shard

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/ngdp-go/casc/jenkins"
)

// ErrLegacyWriteUnsupported is returned by BuildLegacy when asked to
// emit a version-1 shard. The writer may refuse to do so;
// this implementation always refuses and only ever writes version 2.
const ErrLegacyWriteUnsupported = shardError("shard: writing legacy version-1 shards is not supported")

type shardError string

func (e shardError) Error() string { return string(e) }

// BuildLegacy always fails: this writer refuses to emit version-1
// shards, exercising the Open Question decision recorded in
// SPEC_FULL.md (readers tolerate v1, the writer need not produce it).
func BuildLegacy(_ []Entry, _ BuildOptions) ([]byte, error) {
	return nil, ErrLegacyWriteUnsupported
}

// BuildOptions configures Build.
type BuildOptions struct {
	OffsetBits      uint8
	EntriesPerBlock uint32
}

// Build serializes a full set of entries into a version-2 shard image.
// Entries need not be pre-sorted; Build sorts (and de-duplicates,
// last-write-wins) by EKey prefix before laying out blocks, satisfying
// the shard-sort invariant.
func Build(entries []Entry, opts BuildOptions) ([]byte, error) {
	if opts.EntriesPerBlock == 0 {
		opts.EntriesPerBlock = DefaultEntriesPerBlock
	}
	if opts.OffsetBits == 0 {
		opts.OffsetBits = DefaultOffsetBits
	}

	sorted := coalesce(entries)

	blockCount := (len(sorted) + int(opts.EntriesPerBlock) - 1) / int(opts.EntriesPerBlock)
	if blockCount == 0 {
		blockCount = 1
	}
	if blockCount > 1<<16-1 {
		return nil, fmt.Errorf("shard: too many blocks (%d) for a uint16 block count", blockCount)
	}

	var buf bytes.Buffer
	var hdr [headerLen - 4]byte
	hdr[0] = Version2
	hdr[1] = opts.OffsetBits
	hdr[2] = entrySizeBytes
	hdr[3] = entryKeyBytes
	hdr[4] = 4 // hashBytes: Jenkins pc word
	binary.BigEndian.PutUint16(hdr[5:7], uint16(blockCount))
	binary.BigEndian.PutUint32(hdr[7:11], opts.EntriesPerBlock)
	buf.Write(hdr[:])

	checksum, _ := jenkins.HashLittle2(hdr[:], 0, 0)
	var checksumBuf [4]byte
	binary.BigEndian.PutUint32(checksumBuf[:], checksum)
	buf.Write(checksumBuf[:])

	for b := 0; b < blockCount; b++ {
		start := b * int(opts.EntriesPerBlock)
		end := start + int(opts.EntriesPerBlock)
		if end > len(sorted) {
			end = len(sorted)
		}
		blockEntries := sorted[start:end]

		region := make([]byte, len(blockEntries)*entrySize)
		for i, e := range blockEntries {
			packed, err := PackLocation(e.Loc.ArchiveID, e.Loc.Offset, uint(opts.OffsetBits))
			if err != nil {
				return nil, err
			}
			row := region[i*entrySize : (i+1)*entrySize]
			copy(row[:entryKeyBytes], e.Prefix[:])
			var packedBuf [8]byte
			binary.BigEndian.PutUint64(packedBuf[:], packed)
			copy(row[entryKeyBytes:entryKeyBytes+entryLocBytes], packedBuf[8-entryLocBytes:])
			binary.BigEndian.PutUint32(row[entryKeyBytes+entryLocBytes:], e.Loc.Size)
		}

		var usedBuf [4]byte
		binary.BigEndian.PutUint32(usedBuf[:], uint32(len(blockEntries)))
		buf.Write(usedBuf[:])

		padded := make([]byte, int(opts.EntriesPerBlock)*entrySize)
		copy(padded, region)
		buf.Write(padded)

		blockSum, _ := jenkins.HashLittle2(region, 0, 0)
		var blockSumBuf [4]byte
		binary.BigEndian.PutUint32(blockSumBuf[:], blockSum)
		buf.Write(blockSumBuf[:])
	}

	return buf.Bytes(), nil
}

// coalesce sorts entries by prefix and merges duplicates within the
// batch, last-write-wins. It does not merge against any existing
// on-disk shard; callers that need to merge
// a batch into an existing shard should combine idx.All() with the new
// entries before calling Build.
func coalesce(entries []Entry) []Entry {
	byPrefix := make(map[[9]byte]Entry, len(entries))
	order := make([][9]byte, 0, len(entries))
	for _, e := range entries {
		if _, exists := byPrefix[e.Prefix]; !exists {
			order = append(order, e.Prefix)
		}
		byPrefix[e.Prefix] = e
	}
	out := make([]Entry, len(order))
	for i, p := range order {
		out[i] = byPrefix[p]
	}
	sort.Slice(out, func(i, j int) bool { return cmpPrefix(out[i].Prefix, out[j].Prefix) < 0 })
	return out
}

// Flush writes data to path atomically: a temp file in the same
// directory, fsynced, then renamed over the live file. Rename is
// retried a small, bounded number of times, matching the documented
// flush-and-bind pattern of a KMT-style file format.
func Flush(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".shard-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	const maxAttempts = 3
	var renameErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if renameErr = os.Rename(tmpPath, path); renameErr == nil {
			return nil
		}
	}
	return fmt.Errorf("shard: atomic rename failed after %d attempts: %w", maxAttempts, renameErr)
}
