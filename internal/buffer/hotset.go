package buffer

import (
	"github.com/dgraph-io/ristretto/v2"

	"pagevault/internal/page"
)

// hotSet is a side observability cache, never a substitute for the
// pin-count-driven eviction path above. It exists only to answer "how
// well is the pool doing" (hit ratio, hits, misses) the way a production
// cache library would report it, without letting a TinyLFU admission
// policy anywhere near the eviction decision, which the hash table and
// LRU replacer own outright.
type hotSet struct {
	cache *ristretto.Cache[uint64, struct{}]
}

func newHotSet() *hotSet {
	cache, err := ristretto.NewCache(&ristretto.Config[uint64, struct{}]{
		NumCounters: 1e4,
		MaxCost:     1 << 16,
		BufferItems: 64,
		Metrics:     true,
	})
	if err != nil {
		// Metrics are best-effort observability, not correctness: a
		// construction failure just means Stats() reports a zero ratio.
		return nil
	}
	return &hotSet{cache: cache}
}

func (h *hotSet) recordHit(pid page.PageID) {
	if h == nil {
		return
	}
	h.cache.Get(uint64(pid))
}

func (h *hotSet) recordMiss(pid page.PageID) {
	if h == nil {
		return
	}
	h.cache.Set(uint64(pid), struct{}{}, 1)
}

func (h *hotSet) ratio() float64 {
	if h == nil || h.cache.Metrics == nil {
		return 0
	}
	return h.cache.Metrics.Ratio()
}

func (h *hotSet) hits() uint64 {
	if h == nil || h.cache.Metrics == nil {
		return 0
	}
	return h.cache.Metrics.Hits()
}

func (h *hotSet) misses() uint64 {
	if h == nil || h.cache.Metrics == nil {
		return 0
	}
	return h.cache.Metrics.Misses()
}

func (h *hotSet) close() {
	if h != nil {
		h.cache.Close()
	}
}
