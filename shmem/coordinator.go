package shmem

import (
	"sync"

	"k8s.io/klog/v2"
)

// Coordinator is the multi-process write-coordination entry point:
// acquire its lock, mutate shards/archives, then release. It locks
// through the file-based advisory Lock in every case and does not map
// or validate a control block itself (see ValidateOrInit). If dataPath
// looks like a network drive, Acquire logs a warning once.
type Coordinator struct {
	dataPath string
	lock     *Lock

	mu           sync.Mutex
	warnedOnce   bool
	networkDrive bool
	pid          uint32
}

// NewCoordinator creates a Coordinator for dataPath, detecting (but not
// yet acting on) whether it sits on a network drive.
func NewCoordinator(dataPath string, pid uint32) *Coordinator {
	nd := IsNetworkDrive(dataPath)
	return &Coordinator{
		dataPath:     dataPath,
		lock:         NewLock(dataPath),
		networkDrive: nd,
		pid:          pid,
	}
}

// Acquire takes the cross-process write lock, warning once (not on
// every call) if this installation is running in network-drive
// fallback mode.
func (c *Coordinator) Acquire() error {
	c.mu.Lock()
	if c.networkDrive && !c.warnedOnce {
		klog.Warningf("shmem: %s appears to be a network drive; falling back to file-based coordination", c.dataPath)
		c.warnedOnce = true
	}
	c.mu.Unlock()

	return c.lock.Acquire()
}

// Release releases the write lock.
func (c *Coordinator) Release() error {
	return c.lock.Release()
}

// ValidateOrInit parses buf as a control block; if that fails because
// the region was never initialized (truncated, or a zero init byte), a
// fresh control block of the requested version (with MaxPIDSlots empty
// slots for version 5) is returned instead, together with its Marshal
// image, ready to be written back by the caller. Any other parse
// failure is returned as an error.
func ValidateOrInit(buf []byte, version uint8, dataSize uint8) (*ControlBlock, []byte, error) {
	cb, err := Parse(buf)
	if err == nil {
		return cb, buf, nil
	}
	if len(buf) >= MinControlBlockSize && buf[offsetInit] != 0 {
		return nil, nil, err
	}

	fresh := &ControlBlock{Version: version, DataSize: dataSize}
	if version == ProtocolVersion5 {
		fresh.Slots = make([]PIDSlot, MaxPIDSlots)
	}
	return fresh, Marshal(fresh), nil
}
