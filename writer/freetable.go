package writer

import "sync"

// FreeSpaceTable is the in-memory view of archive sizes and states that
// Place consults, kept current by the writer as it appends and seeded
// by an archive stat scan when the store is opened.
type FreeSpaceTable struct {
	mu   sync.RWMutex
	byID map[uint16]ArchiveInfo
}

// NewFreeSpaceTable creates an empty table.
func NewFreeSpaceTable() *FreeSpaceTable {
	return &FreeSpaceTable{byID: make(map[uint16]ArchiveInfo)}
}

// Set records or updates an archive's known size/state.
func (t *FreeSpaceTable) Set(info ArchiveInfo) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byID[info.ID] = info
}

// Snapshot returns a stable copy of the table for Place to consult.
func (t *FreeSpaceTable) Snapshot() []ArchiveInfo {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]ArchiveInfo, 0, len(t.byID))
	for _, info := range t.byID {
		out = append(out, info)
	}
	return out
}

// Grow records that archive id grew by delta bytes after an append.
func (t *FreeSpaceTable) Grow(id uint16, delta uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	info := t.byID[id]
	info.ID = id
	info.Size += delta
	t.byID[id] = info
}
