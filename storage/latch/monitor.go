package latch

import (
	"os"
	"time"

	"latchdb/logger"
)

// longWaitSoftSeconds is the wait age past which the monitor starts
// warning. Instrumented builds run far slower, so the threshold scales by
// timeoutMultiplier there.
const longWaitSoftSeconds = 240

func longWaitThreshold() time.Duration {
	return longWaitSoftSeconds * timeoutMultiplier * time.Second
}

// PrintLongWaits scans every shard for waits past the soft threshold,
// warning on each. It returns the longest current waiter's thread and
// latch, and whether any wait exceeded the fatal ceiling — the caller
// escalates on fatal, typically by killing the process.
//
// When any long wait is noticed, the monitor prints every current wait of
// the shard where it was noticed and of each shard scanned after it; shards
// scanned earlier in the same pass get no such listing. It then raises
// MonitorActive around a diagnostic pass so other subsystems dump their
// state, and runs the lock-timeout task synchronously.
func (r *WaitRegistry) PrintLongWaits() (waiter uint64, waited *RWLatch, fatal bool) {
	noticed := false
	var longest time.Duration

	for _, a := range r.shards {
		a.mu.Lock()
		if a.printLongWaitsLocked(r.fatalTimeout, &waiter, &waited, &longest, &noticed) {
			fatal = true
		}
		a.mu.Unlock()
	}

	if noticed {
		logger.Warn("###### starts diagnostics monitor to print diagnostic info")

		old := MonitorActive.Swap(true)

		if DiagnosticsHook != nil {
			DiagnosticsHook()
		}
		if LockTimeoutTask != nil {
			LockTimeoutTask()
		}

		MonitorActive.Store(old)

		logger.Warn("###### diagnostic info printed to the standard error stream")
	}

	return waiter, waited, fatal
}

// printLongWaitsLocked scans one shard. Caller holds the array mutex.
func (a *WaitArray) printLongWaitsLocked(fatalTimeout time.Duration,
	waiter *uint64, waited **RWLatch, longest *time.Duration, noticed *bool) bool {

	// Long waits are expected while a bulk index validation churns
	// through huge tables; skip the scan entirely.
	if BulkValidationRunning.Load() {
		return false
	}

	soft := longWaitThreshold()
	hard := fatalTimeout * timeoutMultiplier
	fatal := false

	for i := range a.cells {
		cell := &a.cells[i]
		if cell.target == nil || !cell.waiting {
			continue
		}

		diff := time.Since(cell.reservedAt)

		if diff > soft {
			logger.Warn("a long semaphore wait:")
			printCell(os.Stderr, cell)
			*noticed = true
		}

		if diff > hard {
			fatal = true
		}

		if diff > *longest {
			*longest = diff
			*waited = cell.target
			*waiter = cell.threadID
		}
	}

	// Something waited too long; print every thread still parked here.
	if *noticed {
		for i := range a.cells {
			cell := &a.cells[i]
			if cell.target == nil || !cell.waiting {
				continue
			}
			logger.Info("a semaphore wait:")
			printCell(os.Stderr, cell)
		}
	}

	return fatal
}
