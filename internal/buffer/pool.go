// Package buffer implements the buffer pool manager: it composes the
// extendible hash table (as the page table) and the LRU replacer to cache
// fixed-size pages read from an external disk manager, mediates
// concurrent fetch/pin/unpin access, and writes dirty pages back on
// demand.
package buffer

import (
	"fmt"
	"sync"

	"pagevault/internal/disk"
	"pagevault/internal/hashtable"
	"pagevault/internal/page"
	"pagevault/internal/replacer"
)

// DefaultBucketCapacity is the page table's per-bucket capacity used by
// New. Callers who want the smaller buckets that make split behavior easy
// to exercise in tests should use NewWithBucketCapacity instead.
const DefaultBucketCapacity = 64

// BufferPoolManager owns a fixed-size array of page frames, the free list
// of vacant ones, the page table mapping resident page ids to frame
// indices, and the LRU replacer tracking unpinned residents. Every public
// method except Close and GetPoolSize holds the single pool_latch mutex for
// its full duration; this
// serializes all page-table and replacer mutations at the pool level.
type BufferPoolManager struct {
	mu sync.Mutex // pool_latch

	frames    []*page.Frame
	pageTable *hashtable.HashTable[page.PageID, int] // page id -> frame index
	replacer  *replacer.LRUReplacer[int]             // unpinned frame indices
	freeList  []int

	disk    disk.Manager
	walGate LogSequenceGate // optional; nil disables WAL-aware flush gating

	hotset *hotSet
}

// New allocates a pool of poolSize frames backed by dm, with no WAL
// gating and the default page-table bucket capacity.
func New(poolSize int, dm disk.Manager) *BufferPoolManager {
	return NewWithBucketCapacity(poolSize, DefaultBucketCapacity, dm, nil)
}

// NewWithWAL is New plus an optional LogSequenceGate; see wal_gate.go.
func NewWithWAL(poolSize int, dm disk.Manager, walGate LogSequenceGate) *BufferPoolManager {
	return NewWithBucketCapacity(poolSize, DefaultBucketCapacity, dm, walGate)
}

// NewWithBucketCapacity is the fully-parameterized constructor. Tests
// typically pass a small bucketCapacity (2 works well) to exercise
// directory splits without needing thousands of pages.
func NewWithBucketCapacity(poolSize, bucketCapacity int, dm disk.Manager, walGate LogSequenceGate) *BufferPoolManager {
	if poolSize <= 0 {
		panic("buffer: pool size must be positive")
	}
	frames := make([]*page.Frame, poolSize)
	freeList := make([]int, poolSize)
	for i := range frames {
		frames[i] = page.NewFrame()
		freeList[i] = i
	}
	return &BufferPoolManager{
		frames:    frames,
		pageTable: hashtable.New[page.PageID, int](bucketCapacity, hashtable.HashInt32[page.PageID]),
		replacer:  replacer.New[int](),
		freeList:  freeList,
		disk:      dm,
		walGate:   walGate,
		hotset:    newHotSet(),
	}
}

// Close releases resources held by observability side-caches. It does not
// flush pages; callers must call FlushAllPages first if that's needed.
func (bp *BufferPoolManager) Close() {
	bp.hotset.close()
}

// FetchPage returns the frame holding pid, pinning it. On a page-table
// hit it increments the pin count and, if the frame had been unpinned,
// removes it from the replacer. On a miss it evicts a victim frame (per
// getVictim), reads pid from disk into it, and installs it in the page
// table with pin count 1. It returns ErrBufferPoolExhausted if every
// frame is pinned and the free list is empty, or a wrapped disk error if
// the read fails.
func (bp *BufferPoolManager) FetchPage(pid page.PageID) (*page.Frame, error) {
	if pid == page.InvalidPageID {
		panic("buffer: FetchPage called with InvalidPageID")
	}

	bp.mu.Lock()
	defer bp.mu.Unlock()

	if idx, ok := bp.pageTable.Find(pid); ok {
		f := bp.frames[idx]
		f.Lock()
		if f.PinCount == 0 {
			bp.replacer.Erase(idx)
		}
		f.PinCount++
		pinCount := f.PinCount
		f.Unlock()
		bp.hotset.recordHit(pid)
		fmt.Printf("[buffer] HIT  pageID=%d pinCount=%d\n", pid, pinCount)
		return f, nil
	}

	fmt.Printf("[buffer] MISS pageID=%d — loading from disk\n", pid)
	idx, ok, err := bp.getVictim()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrBufferPoolExhausted
	}
	f := bp.frames[idx]

	if err := bp.disk.ReadPage(pid, f.Data[:]); err != nil {
		// Reclaimed frame stays clean and vacant; return it to the free
		// list instead of leaving it stranded outside every structure.
		bp.freeList = append(bp.freeList, idx)
		return nil, fmt.Errorf("buffer: fetch page %d: %w", pid, err)
	}

	f.Lock()
	f.ID = pid
	f.PinCount = 1
	f.Unlock()
	bp.pageTable.Insert(pid, idx)
	bp.hotset.recordMiss(pid)
	return f, nil
}

// NewPage asks the disk manager for a fresh page id, evicts a victim
// frame for it, zeros the frame, and returns it pinned. It returns
// ErrBufferPoolExhausted under the same condition as FetchPage.
func (bp *BufferPoolManager) NewPage() (page.PageID, *page.Frame, error) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	idx, ok, err := bp.getVictim()
	if err != nil {
		return page.InvalidPageID, nil, err
	}
	if !ok {
		return page.InvalidPageID, nil, ErrBufferPoolExhausted
	}
	f := bp.frames[idx]

	pid, err := bp.disk.AllocatePage()
	if err != nil {
		bp.freeList = append(bp.freeList, idx)
		return page.InvalidPageID, nil, fmt.Errorf("buffer: allocate page: %w", err)
	}

	f.Lock()
	f.ID = pid
	f.PinCount = 1
	f.Unlock()
	bp.pageTable.Insert(pid, idx)
	fmt.Printf("[buffer] NEW  pageID=%d\n", pid)
	return pid, f, nil
}

// UnpinPage decrements pid's pin count, ORing isDirty into the frame's
// dirty flag first. It returns false if pid is not resident or its pin
// count is already zero (a caller programming error, logged but not
// fatal). When the pin count reaches zero the frame is inserted into the
// replacer.
func (bp *BufferPoolManager) UnpinPage(pid page.PageID, isDirty bool) bool {
	if pid == page.InvalidPageID {
		panic("buffer: UnpinPage called with InvalidPageID")
	}

	bp.mu.Lock()
	defer bp.mu.Unlock()

	idx, ok := bp.pageTable.Find(pid)
	if !ok {
		return false
	}
	f := bp.frames[idx]
	f.Lock()
	defer f.Unlock()

	if f.PinCount <= 0 {
		fmt.Printf("[buffer] UNPIN of already-unpinned pageID=%d\n", pid)
		return false
	}
	if isDirty {
		f.IsDirty = true
	}
	f.PinCount--
	if f.PinCount == 0 {
		bp.replacer.Insert(idx)
	}
	return true
}

// FlushPage writes pid's frame to disk if dirty and clears the dirty
// flag on success. It returns (false, nil) if pid is not resident,
// (true, nil) if the page was already clean or was written successfully,
// and (false, err) if a LogSequenceGate blocks the write or the disk
// write itself fails.
func (bp *BufferPoolManager) FlushPage(pid page.PageID) (bool, error) {
	if pid == page.InvalidPageID {
		panic("buffer: FlushPage called with InvalidPageID")
	}

	bp.mu.Lock()
	defer bp.mu.Unlock()

	idx, ok := bp.pageTable.Find(pid)
	if !ok {
		return false, nil
	}
	return bp.flushFrameLocked(idx)
}

// flushFrameLocked assumes bp.mu is held.
func (bp *BufferPoolManager) flushFrameLocked(idx int) (bool, error) {
	f := bp.frames[idx]
	f.Lock()
	defer f.Unlock()

	if !f.IsDirty {
		return true, nil
	}
	if bp.walGate != nil && f.LSN > bp.walGate.FlushedLSN() {
		return false, ErrWALNotFlushed
	}
	if err := bp.disk.WritePage(f.ID, f.Data[:]); err != nil {
		return false, fmt.Errorf("buffer: flush page %d: %w", f.ID, err)
	}
	f.IsDirty = false
	return true, nil
}

// FlushAllPages flushes every resident dirty page. Pages blocked by a
// LogSequenceGate are skipped (they will be retried on a later call) and
// do not count as failures; any other disk error is returned after all
// eligible pages have been attempted.
func (bp *BufferPoolManager) FlushAllPages() error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	var firstErr error
	for idx, f := range bp.frames {
		f.RLock()
		resident := f.ID != page.InvalidPageID
		dirty := f.IsDirty
		f.RUnlock()
		if !resident || !dirty {
			continue
		}
		if _, err := bp.flushFrameLocked(idx); err != nil && err != ErrWALNotFlushed && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// DeletePage removes pid from the pool and asks the disk manager to
// deallocate it. It returns false only if pid is resident and pinned.
func (bp *BufferPoolManager) DeletePage(pid page.PageID) bool {
	if pid == page.InvalidPageID {
		panic("buffer: DeletePage called with InvalidPageID")
	}

	bp.mu.Lock()
	defer bp.mu.Unlock()

	idx, ok := bp.pageTable.Find(pid)
	if !ok {
		if err := bp.disk.DeallocatePage(pid); err != nil {
			fmt.Printf("[buffer] DEALLOCATE failed pageID=%d err=%v\n", pid, err)
		}
		return true
	}

	f := bp.frames[idx]
	f.Lock()
	if f.PinCount > 0 {
		f.Unlock()
		return false
	}
	f.ID = page.InvalidPageID
	f.PinCount = 0
	f.IsDirty = false
	f.LSN = 0
	for i := range f.Data {
		f.Data[i] = 0
	}
	f.Unlock()

	bp.pageTable.Remove(pid)
	bp.replacer.Erase(idx)
	bp.freeList = append(bp.freeList, idx)

	if err := bp.disk.DeallocatePage(pid); err != nil {
		fmt.Printf("[buffer] DEALLOCATE failed pageID=%d err=%v\n", pid, err)
	}
	return true
}

// getVictim returns a frame ready for reuse: pin count 0, page id
// invalid, not dirty, absent from the free list, page table, and
// replacer. It always prefers the free list. Failing that, it asks the
// replacer for candidates, writing back and evicting the first one that
// isn't blocked by a LogSequenceGate; a blocked candidate is reinserted
// and the next is tried. Assumes bp.mu is held.
//
// ok=false with a nil error means the pool is genuinely
// exhausted (every frame pinned). A non-nil error means a candidate's
// dirty write-back failed on disk — this is fatal to the caller's
// operation and must not be reported as pool exhaustion, since it is a
// materially different, actionable condition.
func (bp *BufferPoolManager) getVictim() (int, bool, error) {
	if n := len(bp.freeList); n > 0 {
		idx := bp.freeList[n-1]
		bp.freeList = bp.freeList[:n-1]
		return idx, true, nil
	}

	for attempts, size := 0, bp.replacer.Size(); attempts < size; attempts++ {
		idx, ok := bp.replacer.Victim()
		if !ok {
			return 0, false, nil
		}
		f := bp.frames[idx]
		f.Lock()

		if f.IsDirty && bp.walGate != nil && f.LSN > bp.walGate.FlushedLSN() {
			f.Unlock()
			bp.replacer.Insert(idx) // not yet durable; try the next candidate
			continue
		}
		if f.IsDirty {
			if err := bp.disk.WritePage(f.ID, f.Data[:]); err != nil {
				pid := f.ID
				f.Unlock()
				bp.replacer.Insert(idx)
				fmt.Printf("[buffer] EVICT write-back failed pageID=%d err=%v\n", pid, err)
				return 0, false, fmt.Errorf("buffer: evict page %d: %w", pid, err)
			}
			f.IsDirty = false
		}

		oldID := f.ID
		f.ID = page.InvalidPageID
		f.PinCount = 0
		f.LSN = 0
		for i := range f.Data {
			f.Data[i] = 0
		}
		f.Unlock()

		bp.pageTable.Remove(oldID)
		fmt.Printf("[buffer] EVICT pageID=%d\n", oldID)
		return idx, true, nil
	}
	return 0, false, nil
}

// GetPinCount is an observability hook for tests: the pin count of a
// resident page.
func (bp *BufferPoolManager) GetPinCount(pid page.PageID) (int32, bool) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	idx, ok := bp.pageTable.Find(pid)
	if !ok {
		return 0, false
	}
	f := bp.frames[idx]
	f.RLock()
	defer f.RUnlock()
	return f.PinCount, true
}

// GetReplacerSize is an observability hook for tests.
func (bp *BufferPoolManager) GetReplacerSize() int {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	return bp.replacer.Size()
}

// GetPageTableSize is an observability hook for tests.
func (bp *BufferPoolManager) GetPageTableSize() int {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	return bp.pageTable.Size()
}

// FindInBuffer is an observability hook for tests: the resident frame for
// pid, without pinning it.
func (bp *BufferPoolManager) FindInBuffer(pid page.PageID) (*page.Frame, bool) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	idx, ok := bp.pageTable.Find(pid)
	if !ok {
		return nil, false
	}
	return bp.frames[idx], true
}

// GetPoolSize is an observability hook for tests: the total frame count.
func (bp *BufferPoolManager) GetPoolSize() int {
	return len(bp.frames)
}
