package buffer

import "errors"

// ErrBufferPoolExhausted is returned by FetchPage and NewPage when every
// frame is pinned and the free list is empty. It is not a disk failure or
// a programming error — callers are expected to retry, evict at a higher
// level, or fail the caller's own request.
var ErrBufferPoolExhausted = errors.New("buffer: pool exhausted, all frames pinned")

// ErrWALNotFlushed is returned by FlushPage when a LogSequenceGate is
// configured and the page's LSN is not yet covered by the write-ahead
// log's durable prefix. See wal_gate.go.
var ErrWALNotFlushed = errors.New("buffer: page LSN not yet covered by flushed WAL")
