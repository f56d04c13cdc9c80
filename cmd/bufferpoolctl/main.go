// bufferpoolctl exercises a FileManager-backed BufferPoolManager against a
// scratch file: it allocates a batch of pages, touches them under a pool
// too small to hold them all, and prints before/after stats.
// Run: go run ./cmd/bufferpoolctl
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"pagevault/internal/buffer"
	"pagevault/internal/disk"
	"pagevault/internal/page"
)

func main() {
	poolSize := flag.Int("pool", 16, "number of frames in the buffer pool")
	numPages := flag.Int("pages", 64, "number of pages to allocate and touch")
	dbPath := flag.String("db", "bufferpoolctl.db", "path to the scratch page file")
	keep := flag.Bool("keep", false, "keep the scratch file instead of removing it on exit")
	flag.Parse()

	dm, err := disk.NewFileManager(*dbPath)
	if err != nil {
		log.Fatalf("open disk manager: %v", err)
	}
	defer dm.Close()
	if !*keep {
		defer os.Remove(*dbPath)
	}

	bp := buffer.New(*poolSize, dm)
	defer bp.Close()

	fmt.Printf("before: %s\n", bp.Stats())

	pids := make([]page.PageID, 0, *numPages)
	for i := 0; i < *numPages; i++ {
		pid, f, err := bp.NewPage()
		if err != nil {
			log.Fatalf("new page %d: %v", i, err)
		}
		f.Lock()
		f.Data[0] = byte(i)
		f.IsDirty = true
		f.Unlock()
		bp.UnpinPage(pid, true)
		pids = append(pids, pid)
	}

	// Touch the first quarter again, biasing them toward staying resident.
	for i := 0; i < len(pids)/4; i++ {
		pid := pids[i]
		if _, err := bp.FetchPage(pid); err != nil {
			log.Fatalf("re-fetch page %d: %v", pid, err)
		}
		bp.UnpinPage(pid, false)
	}

	if err := bp.FlushAllPages(); err != nil {
		log.Fatalf("flush all pages: %v", err)
	}

	fmt.Printf("after:  %s\n", bp.Stats())
}
