package latch

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"

	"latchdb/logger"
)

// Debug deadlock detection. When enabled, the engine's lock paths record
// holder entries on each latch, and every wait first walks the holder
// graph looking for a cycle back to itself. The walk stays inside the
// shard holding the root cell; with more than one shard a cycle can span
// shards and go undetected, which is accepted — the default is one shard.

// maxDetectDepth caps the recursion; holder chains are shallow in
// practice, so hitting the cap means the graph itself is corrupt.
const maxDetectDepth = 100

var deadlockDetection atomic.Bool

// EnableDeadlockDetection switches the detector and the holder recording
// it depends on. Debug feature; every wait pays a global mutex
// acquisition while it is on.
func EnableDeadlockDetection(enabled bool) {
	deadlockDetection.Store(enabled)
	if enabled {
		logger.Info("latch deadlock detection enabled")
	} else {
		logger.Info("latch deadlock detection disabled")
	}
}

// DeadlockDetectionEnabled reports whether the detector is active.
func DeadlockDetectionEnabled() bool {
	return deadlockDetection.Load()
}

// detectDeadlock reports whether the wait recorded in cell closes a cycle
// back to start. Caller holds both the array mutex and holderMu.
//
// A holder blocks the cell's request per the mode table: an X or X_WAIT
// request is blocked by any exclusive-family hold of another thread and
// by any S hold including the cell thread's own; an SX request only by
// exclusive-family holds of other threads; an S request by X and X_WAIT
// holds of any thread, its own included. For X, X_WAIT and SX requests,
// same-thread exclusive-family holds never block because re-entry is
// permitted there.
func (a *WaitArray) detectDeadlock(start, cell *Cell, depth int) bool {
	assertf(cell.target != nil, "deadlock walk reached a free cell")
	assertf(depth < maxDetectDepth, "deadlock walk exceeded depth %d", maxDetectDepth)

	if !cell.waiting {
		// Not parked yet, no cycle through this cell.
		return false
	}

	lock := cell.target

	for _, h := range lock.holders {
		blocks := false
		switch cell.requestMode {
		case ModeX, ModeXWait:
			switch h.Mode {
			case ModeX, ModeSX, ModeXWait:
				blocks = h.ThreadID != cell.threadID
			case ModeS:
				blocks = true
			}
		case ModeSX:
			switch h.Mode {
			case ModeX, ModeSX, ModeXWait:
				blocks = h.ThreadID != cell.threadID
			}
		case ModeS:
			blocks = h.Mode == ModeX || h.Mode == ModeXWait
		default:
			logger.Panic("cell with request mode %v in deadlock walk", cell.requestMode)
		}

		if !blocks {
			continue
		}

		if a.deadlockStep(start, h.ThreadID, h.Pass, depth) {
			reportDeadlock(os.Stderr, lock, h, cell)
			return true
		}
	}

	return false
}

// deadlockStep follows one blocking holder: find where that thread itself
// waits and either close the cycle or recurse.
func (a *WaitArray) deadlockStep(start *Cell, thread uint64, pass, depth int) bool {
	if pass != 0 {
		// The hold was acquired on behalf of another thread; nobody in
		// particular is responsible for releasing it, so no cycle can be
		// attributed here.
		return false
	}

	next := a.findThread(thread)
	if next == nil {
		// The holder is not blocked; the chain ends.
		return false
	}

	if next == start {
		fmt.Fprint(os.Stderr,
			"########################################\n"+
				"DEADLOCK of threads detected!\n")
		return true
	}

	return a.detectDeadlock(start, next, depth+1)
}

// reportDeadlock prints the latch, the offending cell and the holder
// record that closed the cycle.
func reportDeadlock(w io.Writer, lock *RWLatch, h HolderRecord, cell *Cell) {
	fmt.Fprintf(w, "rw-lock %p ", lock)
	printCell(w, cell)
	printHolder(w, h)
}

// printHolder writes one holder record.
func printHolder(w io.Writer, h HolderRecord) {
	fmt.Fprintf(w, "Locked: thread %d file %s line %d mode %s pass %d\n",
		h.ThreadID, filepath.Base(h.File), h.Line, h.Mode, h.Pass)
}
