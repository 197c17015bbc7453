// Package errdefs collects error types shared across the casc packages,
// following the sentinel-string / typed-struct split used by the
// reference store package: simple conditions are constant errorType
// values, conditions that must carry data get their own struct type.
package errdefs

import "fmt"

type errorType string

func (e errorType) Error() string { return string(e) }

const (
	// ErrNotFound indicates an entry is absent from a shard, encoding
	// table, or root manifest. Not an error for callers that tolerate
	// absence.
	ErrNotFound = errorType("casc: entry not present")

	// ErrReadOnly indicates a write was attempted against a read-only
	// store.
	ErrReadOnly = errorType("casc: store is read-only")

	// ErrStoreFull indicates the writer could not allocate a new
	// archive because the maximum archive count was reached.
	ErrStoreFull = errorType("casc: store is full")

	// ErrTruncated indicates fewer bytes were available than a format
	// requires.
	ErrTruncated = errorType("casc: truncated data")

	// ErrInvalidMagic indicates a file did not begin with its expected
	// magic bytes.
	ErrInvalidMagic = errorType("casc: invalid magic")

	// ErrCorrupt indicates an on-disk structure failed a structural
	// invariant check (local header / shard disagreement, archive
	// bounds, etc.) distinct from a checksum mismatch.
	ErrCorrupt = errorType("casc: corrupt entry")
)

// ChecksumMismatch reports an expected-vs-actual checksum disagreement
// in a BLTE chunk, shard block, encoding page, or archive-index block.
type ChecksumMismatch struct {
	Component string
	Expected  []byte
	Actual    []byte
}

func (e *ChecksumMismatch) Error() string {
	return fmt.Sprintf("casc: %s checksum mismatch: expected %x, got %x", e.Component, e.Expected, e.Actual)
}

// UnknownMode reports an unrecognized BLTE chunk mode or compression
// sub-variant byte.
type UnknownMode struct {
	Context string
	Mode    byte
}

func (e *UnknownMode) Error() string {
	return fmt.Sprintf("casc: unknown %s mode byte %q (0x%02x)", e.Context, rune(e.Mode), e.Mode)
}

// KeyNotFound reports a BLTE 'E' chunk referencing an encryption key
// name that is not present in the caller's key store.
type KeyNotFound struct {
	KeyName uint64
}

func (e *KeyNotFound) Error() string {
	return fmt.Sprintf("casc: encryption key not found: %#016x", e.KeyName)
}

// SizeMismatch reports a declared size that disagrees with an observed
// size (decompressed chunk length, encoding page entry size, local
// header payload size, ...).
type SizeMismatch struct {
	Component string
	Declared  int64
	Actual    int64
}

func (e *SizeMismatch) Error() string {
	return fmt.Sprintf("casc: %s size mismatch: declared %d, actual %d", e.Component, e.Declared, e.Actual)
}
