package buffer

import (
	"fmt"

	"github.com/dustin/go-humanize"

	"pagevault/internal/page"
)

// Stats is a point-in-time snapshot of the pool's occupancy, used by
// tests and by the bufferpoolctl demo command.
type Stats struct {
	PoolSize      int
	ResidentPages int
	PinnedPages   int
	DirtyPages    int
	ReplacerSize  int
	HitRatio      float64
	Hits          uint64
	Misses        uint64
}

// Stats takes the pool latch to produce a consistent snapshot across all
// frames.
func (bp *BufferPoolManager) Stats() Stats {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	st := Stats{
		PoolSize:      len(bp.frames),
		ResidentPages: bp.pageTable.Size(),
		ReplacerSize:  bp.replacer.Size(),
		HitRatio:      bp.hotset.ratio(),
		Hits:          bp.hotset.hits(),
		Misses:        bp.hotset.misses(),
	}
	for _, f := range bp.frames {
		f.RLock()
		if f.PinCount > 0 {
			st.PinnedPages++
		}
		if f.IsDirty {
			st.DirtyPages++
		}
		f.RUnlock()
	}
	return st
}

// String renders a stats line in the pool's log tag style, with
// human-scaled byte counts and thousands-separated hit/miss counters.
func (s Stats) String() string {
	capacityBytes := uint64(s.PoolSize) * page.PageSize
	return fmt.Sprintf(
		"pool=%s resident=%d/%d pinned=%d dirty=%d replacer=%d hitRatio=%.1f%% hits=%s misses=%s",
		humanize.Bytes(capacityBytes),
		s.ResidentPages, s.PoolSize,
		s.PinnedPages, s.DirtyPages, s.ReplacerSize,
		s.HitRatio*100,
		humanize.Comma(int64(s.Hits)),
		humanize.Comma(int64(s.Misses)),
	)
}
