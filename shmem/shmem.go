// Package shmem parses and validates the shared-memory control block
// CASC installations use to coordinate writers across processes, and
// provides a named, file-based advisory lock substituting for true OS
// shared memory + mutex primitives on a single Go binary.
//
// Two fields sit at adjacent-looking offsets (a free-space tag and a
// data size). This implementation treats the tag as the 2-byte field at
// [0x42:0x44) and the data size as the 1-byte field immediately
// following it at 0x44, since a 2-byte tag value (0x2AB8) cannot itself
// start at 0x42 and also leave 0x43 free for another field. See
// DESIGN.md's Open Questions for this decision.
package shmem

import (
	"encoding/binary"

	"github.com/ngdp-go/casc/internal/errdefs"
)

const (
	offsetVersion      = 0x00
	offsetInit         = 0x02
	offsetFreeSpaceTag = 0x42
	offsetDataSize     = 0x44
	offsetV5Flags      = 0x54
	offsetPIDSlots     = 0x58

	// FreeSpaceTagValue is the only accepted free-space-table format tag.
	FreeSpaceTagValue = 0x2AB8

	// MinControlBlockSize is the minimum region size this package will
	// validate; real installations allocate a page-sized region but
	// only this much is interpreted.
	MinControlBlockSize = offsetPIDSlots

	// MaxPIDSlots bounds how many (pid, mode) slots ControlBlock.Slots
	// will decode from the region, matching a generous per-process
	// writer-count ceiling; CASC installations have far fewer
	// concurrent writers than this in practice.
	MaxPIDSlots = 64

	pidSlotSize = 8 // u32 pid + u32 mode
)

// ProtocolVersion4 and ProtocolVersion5 are the only versions this
// package accepts.
const (
	ProtocolVersion4 = 4
	ProtocolVersion5 = 5
)

// PIDSlot is one (pid, mode) writer-tracking slot, present starting in
// protocol version 5.
type PIDSlot struct {
	PID  uint32
	Mode uint32
}

// ControlBlock is the parsed, validated shared-memory region header.
type ControlBlock struct {
	Version         uint8
	ExclusiveAccess bool // version 5 only
	DataSize        uint8
	Slots           []PIDSlot
}

// Parse validates and decodes buf as a shmem control block. Readers
// MUST validate the region before trusting it; Parse performs every
// required structural check and returns an error describing the first
// one that fails.
func Parse(buf []byte) (*ControlBlock, error) {
	if len(buf) < MinControlBlockSize {
		return nil, errdefs.ErrTruncated
	}

	version := buf[offsetVersion]
	if version != ProtocolVersion4 && version != ProtocolVersion5 {
		return nil, errdefs.ErrInvalidMagic
	}

	if buf[offsetInit] == 0 {
		return nil, errdefs.ErrCorrupt
	}

	tag := binary.LittleEndian.Uint16(buf[offsetFreeSpaceTag : offsetFreeSpaceTag+2])
	if tag != FreeSpaceTagValue {
		return nil, errdefs.ErrCorrupt
	}

	dataSize := buf[offsetDataSize]
	if dataSize == 0 {
		return nil, errdefs.ErrCorrupt
	}

	cb := &ControlBlock{Version: version, DataSize: dataSize}

	if version == ProtocolVersion5 {
		cb.ExclusiveAccess = buf[offsetV5Flags]&0x1 != 0

		avail := (len(buf) - offsetPIDSlots) / pidSlotSize
		if avail > MaxPIDSlots {
			avail = MaxPIDSlots
		}
		cb.Slots = make([]PIDSlot, avail)
		for i := 0; i < avail; i++ {
			off := offsetPIDSlots + i*pidSlotSize
			cb.Slots[i] = PIDSlot{
				PID:  binary.LittleEndian.Uint32(buf[off : off+4]),
				Mode: binary.LittleEndian.Uint32(buf[off+4 : off+8]),
			}
		}
	}

	return cb, nil
}

// Marshal serializes a ControlBlock back to its wire form, sized to fit
// every populated PID slot (or MinControlBlockSize, whichever is larger).
func Marshal(cb *ControlBlock) []byte {
	size := MinControlBlockSize + len(cb.Slots)*pidSlotSize
	buf := make([]byte, size)

	buf[offsetVersion] = cb.Version
	buf[offsetInit] = 1
	binary.LittleEndian.PutUint16(buf[offsetFreeSpaceTag:offsetFreeSpaceTag+2], FreeSpaceTagValue)
	buf[offsetDataSize] = cb.DataSize

	if cb.Version == ProtocolVersion5 {
		if cb.ExclusiveAccess {
			buf[offsetV5Flags] = 1
		}
		for i, s := range cb.Slots {
			off := offsetPIDSlots + i*pidSlotSize
			binary.LittleEndian.PutUint32(buf[off:off+4], s.PID)
			binary.LittleEndian.PutUint32(buf[off+4:off+8], s.Mode)
		}
	}

	return buf
}

// ClaimSlot records pid as active in mode within cb, reusing a slot
// already held by the same pid if present, otherwise the first free
// (pid == 0) slot. It returns false if no slot was available.
func (cb *ControlBlock) ClaimSlot(pid, mode uint32) bool {
	for i, s := range cb.Slots {
		if s.PID == pid {
			cb.Slots[i].Mode = mode
			return true
		}
	}
	for i, s := range cb.Slots {
		if s.PID == 0 {
			cb.Slots[i] = PIDSlot{PID: pid, Mode: mode}
			return true
		}
	}
	return false
}

// ReleaseSlot clears pid's slot, if claimed. Readers do not require the
// lock but MUST re-load shard headers after any write window they
// observed; releasing a slot is this package's
// signal that such a window has closed.
func (cb *ControlBlock) ReleaseSlot(pid uint32) {
	for i, s := range cb.Slots {
		if s.PID == pid {
			cb.Slots[i] = PIDSlot{}
			return
		}
	}
}
