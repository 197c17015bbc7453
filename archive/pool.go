package archive

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"k8s.io/klog/v2"
)

// HandlePoolStats are cumulative, telemetry-only counters describing
// Pool's cache behavior. Nothing in this package makes a correctness
// decision based on these values; they exist for observability, the
// same role a key-residency tracker plays for an in-memory key cache,
// repurposed here for archive file handles.
type HandlePoolStats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// Pool bounds the number of concurrently open *os.File handles onto
// archive data.NNN files, evicting the least recently used handle (and
// closing it) once the bound is reached.
type Pool struct {
	dataPath string
	mu       sync.Mutex
	cache    *lru.Cache[uint16, *os.File]

	hits, misses, evictions atomic.Uint64
}

// NewPool creates a Pool capped at size concurrently open handles.
func NewPool(dataPath string, size int) (*Pool, error) {
	p := &Pool{dataPath: dataPath}
	cache, err := lru.NewWithEvict(size, func(id uint16, f *os.File) {
		p.evictions.Add(1)
		if err := f.Close(); err != nil {
			klog.V(2).InfoS("archive: error closing evicted handle", "archiveID", id, "err", err)
		}
	})
	if err != nil {
		return nil, err
	}
	p.cache = cache
	return p, nil
}

// Get returns an open, shared handle for archive id, opening it
// read/write (creating it if necessary) on first use.
func (p *Pool) Get(id uint16) (*os.File, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if f, ok := p.cache.Get(id); ok {
		p.hits.Add(1)
		return f, nil
	}
	p.misses.Add(1)

	path := filepath.Join(p.dataPath, Filename(id))
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}
	p.cache.Add(id, f)
	return f, nil
}

// Stats returns a snapshot of cumulative pool counters.
func (p *Pool) Stats() HandlePoolStats {
	return HandlePoolStats{
		Hits:      p.hits.Load(),
		Misses:    p.misses.Load(),
		Evictions: p.evictions.Load(),
	}
}

// Close closes every handle currently held by the pool.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	for _, id := range p.cache.Keys() {
		if f, ok := p.cache.Peek(id); ok {
			if err := f.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	p.cache.Purge()
	return firstErr
}
