// Package casc implements a local CASC (Content Addressable Storage
// Container) store: the read/write storage engine behind Blizzard game
// installations, combining a shard index, fixed-size archive files, and
// an encoding/root manifest resolver.
package casc

import "github.com/ngdp-go/casc/shard"

// Config configures a Store. CDN/network configuration (URIs, CID
// schemes, Ribbit endpoints) is out of scope for this local engine.
type Config struct {
	// DataPath is the directory containing shard index files and
	// data.NNN archive files.
	DataPath string

	// ReadOnly disables Write and any lock acquisition.
	ReadOnly bool

	// MaxArchiveSize bounds how large a single data.NNN file may grow
	// before the writer considers it frozen.
	MaxArchiveSize uint64

	// OffsetFieldBits is the width of the packed offset field in shard
	// locations; must match what was used to
	// build the on-disk shard files.
	OffsetFieldBits uint8

	// VerifyChecksums enables the shard header checksum check when a
	// shard file is loaded and per-chunk MD5 verification during BLTE
	// decode. Shard block checksums of files loaded at Open are verified
	// either way, since Open reads every entry.
	VerifyChecksums bool

	// HandlePoolSize bounds how many archive file handles are held open
	// concurrently.
	HandlePoolSize int
}

// DefaultConfig returns a Config with the defaults this package uses
// when a caller leaves a field at its zero value.
func DefaultConfig(dataPath string) Config {
	return Config{
		DataPath:        dataPath,
		MaxArchiveSize:  1 << 30, // 1 GiB, a conservative frozen-archive threshold
		OffsetFieldBits: shard.DefaultOffsetBits,
		VerifyChecksums: true,
		HandlePoolSize:  64,
	}
}

func (c Config) withDefaults() Config {
	if c.MaxArchiveSize == 0 {
		c.MaxArchiveSize = 1 << 30
	}
	if c.OffsetFieldBits == 0 {
		c.OffsetFieldBits = shard.DefaultOffsetBits
	}
	if c.HandlePoolSize == 0 {
		c.HandlePoolSize = 64
	}
	return c
}
