package disk

import (
	"fmt"
	"sync"

	"pagevault/internal/page"
)

// InMemoryManager is a map-backed disk.Manager for tests that want a
// fresh, fast, in-process disk without touching the filesystem.
type InMemoryManager struct {
	mu       sync.Mutex
	pages    map[page.PageID][]byte
	nextID   page.PageID
	freeList []page.PageID
}

// NewInMemoryManager returns an empty in-memory disk.
func NewInMemoryManager() *InMemoryManager {
	return &InMemoryManager{pages: make(map[page.PageID][]byte)}
}

func (m *InMemoryManager) ReadPage(pid page.PageID, buf []byte) error {
	if pid == page.InvalidPageID {
		panic("disk: ReadPage called with InvalidPageID")
	}
	if len(buf) != page.PageSize {
		return fmt.Errorf("disk: read buffer must be %d bytes, got %d", page.PageSize, len(buf))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if data, ok := m.pages[pid]; ok {
		copy(buf, data)
		return nil
	}
	for i := range buf {
		buf[i] = 0
	}
	return nil
}

func (m *InMemoryManager) WritePage(pid page.PageID, buf []byte) error {
	if pid == page.InvalidPageID {
		panic("disk: WritePage called with InvalidPageID")
	}
	if len(buf) != page.PageSize {
		return fmt.Errorf("disk: write buffer must be %d bytes, got %d", page.PageSize, len(buf))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	data := make([]byte, page.PageSize)
	copy(data, buf)
	m.pages[pid] = data
	return nil
}

func (m *InMemoryManager) AllocatePage() (page.PageID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if n := len(m.freeList); n > 0 {
		pid := m.freeList[n-1]
		m.freeList = m.freeList[:n-1]
		return pid, nil
	}
	pid := m.nextID
	m.nextID++
	return pid, nil
}

func (m *InMemoryManager) DeallocatePage(pid page.PageID) error {
	if pid == page.InvalidPageID {
		panic("disk: DeallocatePage called with InvalidPageID")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pages, pid)
	m.freeList = append(m.freeList, pid)
	return nil
}
