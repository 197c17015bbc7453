package casc

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ngdp-go/casc/archive"
	"github.com/ngdp-go/casc/casckey"
	"github.com/ngdp-go/casc/cryptokeys"
	"github.com/ngdp-go/casc/encoding"
	"github.com/ngdp-go/casc/membership"
	"github.com/ngdp-go/casc/root"
	"github.com/ngdp-go/casc/shard"
	"github.com/ngdp-go/casc/shmem"
	"github.com/ngdp-go/casc/writer"
	"k8s.io/klog/v2"
)

// Store is the storage facade: it resolves reads through the encoding
// and root manifests down to a shard lookup, an archive read, and a
// BLTE decode, and drives writes through the placement algorithm in the
// writer package.
//
// A Store is safe for concurrent use by multiple readers; writes are
// serialized by writeMu, matching a single-cooperative-writer
// concurrency model.
type Store struct {
	cfg Config

	pool  *archive.Pool
	keys  *cryptokeys.KeyStore
	table *writer.FreeSpaceTable
	bloom *membership.BucketedFilter
	coord *shmem.Coordinator

	shardsMu sync.RWMutex
	shards   [casckey.NumBuckets]*shard.Index
	entries  [casckey.NumBuckets][]shard.Entry

	enc  *encoding.Manifest
	rt   *root.Manifest
	pref root.Preference

	writeMu sync.Mutex
}

// Open opens a Store rooted at cfg.DataPath, loading any per-bucket
// shard files already present. A bucket with no shard file yet is
// treated as empty, not an error (a fresh installation has none).
func Open(cfg Config) (*Store, error) {
	cfg = cfg.withDefaults()

	pool, err := archive.NewPool(cfg.DataPath, cfg.HandlePoolSize)
	if err != nil {
		return nil, fmt.Errorf("casc: open archive pool: %w", err)
	}

	s := &Store{
		cfg:   cfg,
		pool:  pool,
		keys:  cryptokeys.NewKeyStore(),
		table: writer.NewFreeSpaceTable(),
		bloom: membership.NewBucketedFilter(4096, 0.01),
	}
	if !cfg.ReadOnly {
		s.coord = shmem.NewCoordinator(cfg.DataPath, uint32(os.Getpid()))
	}

	for bucket := uint8(0); bucket < casckey.NumBuckets; bucket++ {
		if err := s.loadShard(bucket); err != nil {
			return nil, fmt.Errorf("casc: load shard %d: %w", bucket, err)
		}
	}

	if err := s.refreshArchiveTable(); err != nil {
		return nil, fmt.Errorf("casc: scan archives: %w", err)
	}

	klog.V(2).InfoS("casc: store opened", "dataPath", cfg.DataPath, "readOnly", cfg.ReadOnly)
	return s, nil
}

// ShardFileName returns the on-disk file name this Store uses for a
// bucket's shard index. Real installations derive CDN-specific hash
// names for these files; this implementation uses a fixed, predictable
// name per bucket, a deliberate simplification recorded in DESIGN.md.
func ShardFileName(bucket uint8) string {
	return fmt.Sprintf("shard%02x.idx", bucket)
}

func (s *Store) shardPath(bucket uint8) string {
	return filepath.Join(s.cfg.DataPath, ShardFileName(bucket))
}

func (s *Store) loadShard(bucket uint8) error {
	data, err := os.ReadFile(s.shardPath(bucket))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	idx, err := shard.Parse(data, s.cfg.VerifyChecksums)
	if err != nil {
		return err
	}
	entries, err := idx.All()
	if err != nil {
		return err
	}

	s.shardsMu.Lock()
	s.shards[bucket] = idx
	s.entries[bucket] = entries
	s.shardsMu.Unlock()

	for _, e := range entries {
		s.bloom.Add(e.Prefix)
	}
	return nil
}

func (s *Store) refreshArchiveTable() error {
	for id := uint16(0); id < writer.MaxArchives; id++ {
		a, err := archive.Open(s.cfg.DataPath, id)
		if err != nil {
			return err
		}
		if a.Size == 0 {
			continue // no such archive created yet
		}
		s.table.Set(writer.ArchiveInfo{ID: id, Size: a.Size, State: a.State(s.cfg.MaxArchiveSize)})
	}
	return nil
}

// SetEncodingManifest installs the parsed encoding manifest used by
// ReadByCKey.
func (s *Store) SetEncodingManifest(m *encoding.Manifest) { s.enc = m }

// SetRootManifest installs the parsed root manifest used by ReadByFDID
// and ReadByPath. pref is stored on the Store but not applied: each
// file-data ID's candidate was already chosen when m was parsed (by the
// Preference given to root.ParseFile or root.ParseFileWide).
func (s *Store) SetRootManifest(m *root.Manifest, pref root.Preference) {
	s.rt = m
	s.pref = pref
}

// InstallKey registers a decryption key by its 8-byte key name, for
// BLTE 'E'-chunk decoding.
func (s *Store) InstallKey(keyName uint64, key []byte) {
	s.keys.Install(keyName, key)
}

// Close releases all pooled archive file handles.
func (s *Store) Close() error {
	return s.pool.Close()
}

func (s *Store) lookupShard(ekey casckey.EncodingKey) (shard.Location, bool, error) {
	bucket := ekey.Bucket()
	if !s.bloom.MaybeContains(ekey.Prefix()) {
		return shard.Location{}, false, nil
	}

	s.shardsMu.RLock()
	idx := s.shards[bucket]
	s.shardsMu.RUnlock()
	if idx == nil {
		return shard.Location{}, false, nil
	}
	return idx.Lookup(ekey.Prefix())
}
