package latch

import (
	"sync/atomic"

	"latchdb/logger"
)

// Hooks into the surrounding engine. All optional; nil means no-op.
var (
	// OnWaitBegin is called just before a thread parks, so a worker pool
	// can spin up a replacement while this one blocks.
	OnWaitBegin func()

	// OnWaitEnd is called right after the park returns.
	OnWaitEnd func()

	// LockTimeoutTask is invoked synchronously by the long-wait monitor
	// after it notices a long wait.
	LockTimeoutTask func()

	// DiagnosticsHook lets the engine dump additional state (pending I/O
	// and the like) when the long-wait monitor fires.
	DiagnosticsHook func()
)

// MonitorActive is the engine-wide "dump diagnostics" flag. The long-wait
// monitor raises it around its diagnostic pass; other subsystems may poll
// it.
var MonitorActive atomic.Bool

// BulkValidationRunning suppresses long-wait escalation while a bulk index
// validation runs; waits of any length are expected during that
// maintenance operation.
var BulkValidationRunning atomic.Bool

// WaitEvent parks the calling thread on its reserved cell's latch until
// the latch can make progress for the requested mode, then frees the cell
// and zeroes the handle.
//
// The waiting flag is published under the array mutex before anything
// else happens, so the deadlock detector and the long-wait monitor see a
// consistent picture of who is blocked. In between the lock-word snapshot
// and the actual park, the loop re-announces the waiters flag and rereads
// the lock word under the latch's wait mutex: either it observes the
// post-release lock word and skips the park, or the announcement is
// visible to the next releaser and the wakeup cannot be lost.
func (r *WaitRegistry) WaitEvent(cellp **Cell) {
	cell := *cellp
	a := cell.arr

	a.mu.Lock()

	assertf(!cell.waiting, "wait on a cell that is already waiting")
	assertf(cell.target != nil, "wait on a free cell")
	assertf(cell.threadID == logger.GoroutineID(), "wait on another thread's cell")

	cell.waiting = true

	if deadlockDetection.Load() {
		// The holder mutex is taken while the array mutex is held so the
		// holder lists and cell states snapshot together. It is a plain
		// mutex: anything built on this registry would recurse.
		holderMu.Lock()
		found := a.detectDeadlock(cell, cell, 0)
		holderMu.Unlock()

		if found {
			a.mu.Unlock()
			logger.Fatal("######################################## Deadlock Detected!")
		}
	}

	a.mu.Unlock()

	if OnWaitBegin != nil {
		OnWaitBegin()
	}

	lock := cell.target
	logger.LogLatchOperation(lock.Name(), cell.requestMode.String(), "park")

	lockWord := lock.lockWord.Load()
	if cell.requestMode == ModeXWait {
		// Write intent is already published; wait for readers to drain.
		if lockWord != 0 {
			lock.osWaitCount.Add(1)
			lock.waitMu.Lock()
			for lock.lockWord.Load() != 0 {
				lock.waitExCond.Wait()
			}
			lock.waitMu.Unlock()
		}
	} else if lockWord <= 0 {
		lock.osWaitCount.Add(1)
		lock.waitMu.Lock()
		for {
			// Ensure that we will be woken up: the announcement must be
			// visible before the lock word is reread.
			lock.waiters.Store(1)
			l := lock.lockWord.Load()
			if l > 0 {
				break
			} else if l == 0 {
				// An upgrader may be waiting for the readers to drain;
				// this is its rendezvous point.
				lock.waitExCond.Signal()
			}

			lock.waitCond.Wait()
		}
		lock.waitMu.Unlock()
	}

	logger.LogLatchOperation(lock.Name(), cell.requestMode.String(), "wake")

	if OnWaitEnd != nil {
		OnWaitEnd()
	}

	a.freeCell(cellp)
}
