package latch

import (
	"fmt"
	"io"
	"path/filepath"
	"time"
)

// freeListEnd terminates a wait array's intrusive free list.
const freeListEnd = -1

// Cell is one record of "thread T is waiting on latch L in mode M".
//
// A cell with a nil target is free. Between reservation and the wait call
// the cell is "being set up": target is set but waiting is still false,
// and both the long-wait monitor and the deadlock detector skip it.
type Cell struct {
	// arr is the owning wait array; fixed at reservation.
	arr *WaitArray

	// target is the latch being waited on; nil means the cell is free.
	target *RWLatch

	requestMode Mode

	// file and line record the acquisition site. While the cell is free,
	// line is reused as the free-list link.
	file string
	line int

	// threadID and reservedAt are written by the reserving thread after
	// the array mutex is released; they are published to other threads by
	// the later waiting=true store under the mutex.
	threadID   uint64
	reservedAt time.Time

	// waiting is false until the thread actually parks.
	waiting bool
}

// Latch returns the wait target, or nil if the cell is free.
func (c *Cell) Latch() *RWLatch { return c.target }

// RequestMode returns the requested latch mode.
func (c *Cell) RequestMode() Mode { return c.requestMode }

// Site returns the acquisition site recorded at reservation.
func (c *Cell) Site() (string, int) { return c.file, c.line }

// ThreadID returns the waiting goroutine's id.
func (c *Cell) ThreadID() uint64 { return c.threadID }

// printCell writes the standard wait diagnostic for one cell: the wait
// header, the latch state dump, and a trailer if the wait already ended.
func printCell(w io.Writer, c *Cell) {
	fmt.Fprintf(w,
		"--Thread %d has waited at %s:%d for %.2f s the semaphore: %s on %s\n",
		c.threadID, filepath.Base(c.file), c.line,
		time.Since(c.reservedAt).Seconds(),
		c.requestMode.lockDescription(), c.target.Name())

	lock := c.target
	fmt.Fprintf(w, "RW-latch %p created in file %s line %d\n",
		lock, filepath.Base(lock.createdFile), lock.createdLine)

	if mode, thread := lock.Writer(); mode != ModeNotLocked {
		fmt.Fprintf(w, "a writer (thread id %d) has reserved it in mode %s\n",
			thread, mode)
	}

	lastXFile, lastXLine := lock.LastWriter()
	fmt.Fprintf(w,
		"number of readers %d, waiters flag %d, lock_word: %x\n"+
			"Last time write locked in file %s line %d\n",
		lock.Readers(), lock.WaitersFlag(), uint32(lock.LockWord()),
		filepath.Base(lastXFile), lastXLine)

	if !c.waiting {
		fmt.Fprintln(w, "wait has ended")
	}
}
