package archive

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ngdp-go/casc/casckey"
	"github.com/ngdp-go/casc/internal/errdefs"
	"k8s.io/klog/v2"
)

// State is whether an archive still accepts appends.
type State int

const (
	// Thawed archives accept new appends.
	Thawed State = iota
	// Frozen archives are immutable once a size threshold is crossed
	//.
	Frozen
)

// Archive is a reference to one data.NNN file: an ID, its path, and its
// current size. It does not itself hold an open file handle; callers
// read and append through a Pool, which owns handle lifetime.
type Archive struct {
	ID   uint16
	Path string
	Size uint64
}

// Filename returns "data.NNN" for this archive's ID.
func Filename(id uint16) string {
	return fmt.Sprintf("data.%03d", id)
}

// Open stats dataPath/data.NNN and returns an Archive reference. A
// missing file is not an error: it describes an archive not yet created.
func Open(dataPath string, id uint16) (*Archive, error) {
	path := filepath.Join(dataPath, Filename(id))
	var size uint64
	if fi, err := os.Stat(path); err == nil {
		size = uint64(fi.Size())
	} else if !os.IsNotExist(err) {
		return nil, err
	}
	return &Archive{ID: id, Path: path, Size: size}, nil
}

// State reports whether the archive has crossed maxSize and should no
// longer accept appends.
func (a *Archive) State(maxSize uint64) State {
	if a.Size >= maxSize {
		return Frozen
	}
	return Thawed
}

// FreeTail returns how many more bytes can be appended before the
// archive reaches maxSize.
func (a *Archive) FreeTail(maxSize uint64) uint64 {
	if a.Size >= maxSize {
		return 0
	}
	return maxSize - a.Size
}

// Read reads the BLTE payload at loc from f (an open handle on this
// archive), verifying the local header agrees with both loc and the
// expected EKey. Readers never trust the shard index alone: the shard
// location and the local header must agree or the entry is reported
// corrupt.
func Read(f *os.File, loc Location, expectedEKey casckey.EncodingKey) ([]byte, error) {
	if loc.Offset < LocalHeaderSize {
		return nil, errdefs.ErrCorrupt
	}
	headerOff := int64(loc.Offset) - LocalHeaderSize

	var hdrBuf [LocalHeaderSize]byte
	if _, err := f.ReadAt(hdrBuf[:], headerOff); err != nil {
		return nil, err
	}
	hdr, err := UnmarshalLocalHeader(hdrBuf[:])
	if err != nil {
		return nil, err
	}

	if hdr.EKey != expectedEKey {
		return nil, &errdefs.ChecksumMismatch{
			Component: "archive local header EKey",
			Expected:  expectedEKey[:],
			Actual:    hdr.EKey[:],
		}
	}
	if hdr.Size != loc.Size {
		return nil, &errdefs.SizeMismatch{
			Component: "archive local header size",
			Declared:  int64(loc.Size),
			Actual:    int64(hdr.Size),
		}
	}
	if hdr.Flags != 0 {
		klog.V(2).InfoS("archive: local header flags non-zero and uninterpreted",
			"ekey", hdr.EKey.String(), "flags", hdr.Flags, "err", ErrUnrecognizedFlags)
	}

	payload := make([]byte, loc.Size)
	if _, err := f.ReadAt(payload, int64(loc.Offset)); err != nil {
		return nil, err
	}
	return payload, nil
}

// Location mirrors shard.Location without importing the shard package,
// to keep archive free of a dependency on the index format above it.
type Location struct {
	Offset uint64
	Size   uint32
}

// Append writes a local header followed by payload at the current end
// of f, fsyncs, and returns the offset callers should record in the
// shard: the local header is written just before the payload it
// describes.
func Append(f *os.File, ekey casckey.EncodingKey, payload []byte) (offset uint64, err error) {
	end, err := f.Seek(0, os.SEEK_END)
	if err != nil {
		return 0, err
	}

	hdr := MarshalLocalHeader(LocalHeader{EKey: ekey, Size: uint32(len(payload))})
	if _, err := f.Write(hdr[:]); err != nil {
		return 0, err
	}
	if _, err := f.Write(payload); err != nil {
		return 0, err
	}
	if err := f.Sync(); err != nil {
		return 0, err
	}

	return uint64(end) + LocalHeaderSize, nil
}

// EnsureSegmentHeader writes a zeroed SegmentHeaderSize-byte prefix to a
// freshly created archive file, if it is currently empty. The contents
// beyond its size are opaque to this core; a writer that needs the
// free-space table held there is layered on top (see the writer
// package).
func EnsureSegmentHeader(f *os.File) error {
	fi, err := f.Stat()
	if err != nil {
		return err
	}
	if fi.Size() > 0 {
		return nil
	}
	var hdr [SegmentHeaderSize]byte
	if _, err := f.WriteAt(hdr[:], 0); err != nil {
		return err
	}
	return f.Sync()
}
