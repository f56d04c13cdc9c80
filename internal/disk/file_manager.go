package disk

import (
	"fmt"
	"os"
	"sync"

	"pagevault/internal/page"
)

// FileManager is a single-file, os.File-backed disk.Manager. Pages are
// stored at a fixed offset of pageID * page.PageSize; deallocated page ids
// are kept on a free list and reused by AllocatePage before the file is
// grown.
type FileManager struct {
	mu       sync.Mutex
	file     *os.File
	nextID   page.PageID
	freeList []page.PageID
}

// NewFileManager opens (creating if necessary) the file at path and
// derives the next page id from its current size.
func NewFileManager(path string) (*FileManager, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("disk: open %s: %w", path, err)
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("disk: stat %s: %w", path, err)
	}
	return &FileManager{
		file:   f,
		nextID: page.PageID(stat.Size() / page.PageSize),
	}, nil
}

func (m *FileManager) ReadPage(pid page.PageID, buf []byte) error {
	if pid == page.InvalidPageID {
		panic("disk: ReadPage called with InvalidPageID")
	}
	if len(buf) != page.PageSize {
		return fmt.Errorf("disk: read buffer must be %d bytes, got %d", page.PageSize, len(buf))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	offset := int64(pid) * page.PageSize
	n, err := m.file.ReadAt(buf, offset)
	if err != nil && n == 0 {
		if pid < m.nextID {
			// A page within the allocated range that was never written
			// (e.g. allocated but not yet flushed) reads as zeros.
			for i := range buf {
				buf[i] = 0
			}
			return nil
		}
		return fmt.Errorf("disk: read page %d: %w", pid, err)
	}
	for i := n; i < len(buf); i++ {
		buf[i] = 0
	}
	return nil
}

func (m *FileManager) WritePage(pid page.PageID, buf []byte) error {
	if pid == page.InvalidPageID {
		panic("disk: WritePage called with InvalidPageID")
	}
	if len(buf) != page.PageSize {
		return fmt.Errorf("disk: write buffer must be %d bytes, got %d", page.PageSize, len(buf))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	offset := int64(pid) * page.PageSize
	if _, err := m.file.WriteAt(buf, offset); err != nil {
		return fmt.Errorf("disk: write page %d: %w", pid, err)
	}
	return nil
}

func (m *FileManager) AllocatePage() (page.PageID, error) {
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

func (m *FileManager) DeallocatePage(pid page.PageID) error {
	if pid == page.InvalidPageID {
		panic("disk: DeallocatePage called with InvalidPageID")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.freeList = append(m.freeList, pid)
	return nil
}

// Close syncs and closes the backing file.
func (m *FileManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.file.Sync(); err != nil {
		return fmt.Errorf("disk: sync: %w", err)
	}
	return m.file.Close()
}
