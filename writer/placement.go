// Package writer implements the archive placement algorithm: given the
// size of a new BLTE blob, choose where in the archive set to append
// it.
package writer

import (
	"sort"

	"github.com/ngdp-go/casc/archive"
)

// MaxArchives is the archive-count ceiling: archive IDs run from 0 to
// MaxArchives-1, and creating one past that fails writes with "store
// full".
const MaxArchives = archive.MaxSegments

// ErrStoreFull is returned when placement would need to create archive
// ID MaxArchives.
const ErrStoreFull = placementError("writer: store full, archive limit reached")

type placementError string

func (e placementError) Error() string { return string(e) }

// ArchiveInfo is the free-space-table view of one archive that
// Placement reasons over: its ID, current size, and whether it still
// accepts appends.
type ArchiveInfo struct {
	ID    uint16
	Size  uint64
	State archive.State
}

// Plan is the result of a placement decision: which archive to append
// to (creating it if CreateNew is set) and the byte offset the payload
// will land at once the 30-byte local header precedes it.
type Plan struct {
	ArchiveID    uint16
	PayloadStart uint64
	CreateNew    bool
}

// Place chooses where to put a new entry of size S, given the known
// archive table and a maximum archive size. It scans for the
// lowest-numbered unfrozen archive with free tail >= 30+S; ties (equal
// free tail) are broken by lower ID, which falls out naturally from
// scanning table in ID order and keeping the first match. If none
// fits, it proposes creating the next archive ID, unless that would
// exceed MaxArchives.
func Place(table []ArchiveInfo, size uint32, maxArchiveSize uint64) (Plan, error) {
	required := uint64(archive.LocalHeaderSize) + uint64(size)

	sorted := append([]ArchiveInfo(nil), table...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	for _, a := range sorted {
		if a.State == archive.Frozen {
			continue
		}
		freeTail := uint64(0)
		if a.Size < maxArchiveSize {
			freeTail = maxArchiveSize - a.Size
		}
		if freeTail >= required {
			return Plan{ArchiveID: a.ID, PayloadStart: a.Size + archive.LocalHeaderSize, CreateNew: false}, nil
		}
	}

	var highestID uint16
	haveAny := false
	for _, a := range sorted {
		if !haveAny || a.ID > highestID {
			highestID = a.ID
			haveAny = true
		}
	}

	var nextID uint16
	if haveAny {
		nextID = highestID + 1
	}
	if int(nextID) >= MaxArchives {
		return Plan{}, ErrStoreFull
	}

	return Plan{
		ArchiveID:    nextID,
		PayloadStart: archive.SegmentHeaderSize + archive.LocalHeaderSize,
		CreateNew:    true,
	}, nil
}
