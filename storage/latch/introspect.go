package latch

import (
	"fmt"
	"path/filepath"
	"time"
)

// WaitSnapshot is a point-in-time copy of one waiting cell together with
// its latch's state, shaped for external reporting.
type WaitSnapshot struct {
	ThreadID    uint64  `json:"thread_id"`
	File        string  `json:"file"`
	Line        int     `json:"line"`
	WaitSeconds float64 `json:"wait_seconds"`

	Latch       string `json:"latch"`
	LatchAddr   string `json:"latch_addr"`
	RequestMode string `json:"request_mode"`

	WriterThread uint64 `json:"writer_thread"`
	WriterMode   string `json:"writer_mode"`
	Readers      int32  `json:"readers"`
	WaitersFlag  uint32 `json:"waiters_flag"`
	LockWord     int32  `json:"lock_word"`
	LastXFile    string `json:"last_x_file"`
	LastXLine    int    `json:"last_x_line"`
	OSWaitCount  uint32 `json:"os_wait_count"`
}

// WaitReader enumerates the waiting cells of one shard, chosen with the
// same random draw reservations use. NItems is the shard's capacity, not
// its reservation count, and slots may change between calls; the consumer
// tolerates both, and a multi-shard registry under-reports by design.
type WaitReader struct {
	arr *WaitArray
}

// Reader pins a shard for enumeration.
func (r *WaitRegistry) Reader() *WaitReader {
	return &WaitReader{arr: r.pick()}
}

// NItems returns the pinned shard's capacity.
func (wr *WaitReader) NItems() int {
	return len(wr.arr.cells)
}

// GetItem snapshots slot i if it holds a reserved, waiting cell.
func (wr *WaitReader) GetItem(i int) (WaitSnapshot, bool) {
	a := wr.arr
	if i < 0 || i >= len(a.cells) {
		return WaitSnapshot{}, false
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	cell := &a.cells[i]
	if cell.target == nil || !cell.waiting {
		return WaitSnapshot{}, false
	}

	lock := cell.target
	writerMode, writerThread := lock.Writer()
	lastXFile, lastXLine := lock.LastWriter()

	return WaitSnapshot{
		ThreadID:    cell.threadID,
		File:        filepath.Base(cell.file),
		Line:        cell.line,
		WaitSeconds: time.Since(cell.reservedAt).Seconds(),

		Latch:       lock.Name(),
		LatchAddr:   fmt.Sprintf("%p", lock),
		RequestMode: cell.requestMode.String(),

		WriterThread: writerThread,
		WriterMode:   writerMode.String(),
		Readers:      lock.Readers(),
		WaitersFlag:  lock.WaitersFlag(),
		LockWord:     lock.LockWord(),
		LastXFile:    filepath.Base(lastXFile),
		LastXLine:    lastXLine,
		OSWaitCount:  lock.OSWaitCount(),
	}, true
}
