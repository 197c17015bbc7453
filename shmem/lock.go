package shmem

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/gofrs/flock"
)

// Lock is the named, cross-process advisory lock writers take before
// mutating the shared-memory region. It wraps a file lock rather than a true
// OS named mutex, since that is what a single portable Go binary can
// offer without platform-specific syscalls.
type Lock struct {
	fl *flock.Flock
}

// LockPath returns the advisory lock file path for a given installation
// data path: a ".casc.shmem.lock" file inside that directory.
func LockPath(dataPath string) string {
	return filepath.Join(dataPath, ".casc.shmem.lock")
}

// NewLock opens (without acquiring) the advisory lock for dataPath.
func NewLock(dataPath string) *Lock {
	return &Lock{fl: flock.New(LockPath(dataPath))}
}

// Acquire blocks until the lock is held by this process.
func (l *Lock) Acquire() error {
	return l.fl.Lock()
}

// TryAcquire attempts to acquire the lock without blocking.
func (l *Lock) TryAcquire() (bool, error) {
	return l.fl.TryLock()
}

// Release releases the lock.
func (l *Lock) Release() error {
	return l.fl.Unlock()
}

// IsNetworkDrive reports whether dataPath appears to live on a network
// filesystem, in which case true shared-memory mapping is unreliable
// and callers should fall back to Lock-only, file-based coordination.
//
// This is a best-effort heuristic: on Linux it inspects the filesystem
// type /proc/mounts reports for the longest mount point prefixing the
// path; on other platforms (and if that fails) it conservatively
// reports false.
func IsNetworkDrive(path string) bool {
	if runtime.GOOS != "linux" {
		return false
	}
	data, err := os.ReadFile("/proc/mounts")
	if err != nil {
		return false
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	bestMatch := ""
	isNetwork := false
	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		mountPoint, fsType := fields[1], fields[2]
		if !strings.HasPrefix(abs, mountPoint) {
			continue
		}
		if len(mountPoint) < len(bestMatch) {
			continue
		}
		bestMatch = mountPoint
		isNetwork = isNetworkFSType(fsType)
	}
	return isNetwork
}

func isNetworkFSType(fsType string) bool {
	switch fsType {
	case "nfs", "nfs4", "cifs", "smb", "smbfs", "fuse.sshfs", "9p":
		return true
	default:
		return false
	}
}
