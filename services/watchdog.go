// Package services provides latchdb's background workers.
package services

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"latchdb/logger"
	"latchdb/storage/latch"
)

// Watchdog periodically scans the wait registry for latches held
// pathologically long. Soft violations are logged by the scan itself;
// when the fatal ceiling is exceeded the watchdog escalates, by default
// killing the process — a latch wait that long means the engine is hung
// and restart is the only recovery.
type Watchdog struct {
	registry *latch.WaitRegistry

	config WatchdogConfig

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running int32

	stats WatchdogStats
	mu    sync.RWMutex
}

// WatchdogConfig configures the watchdog behavior
type WatchdogConfig struct {
	// Interval determines how often the registry is scanned
	Interval time.Duration

	// Escalate is called when a wait exceeds the fatal ceiling. Defaults
	// to terminating the process.
	Escalate func(waiter uint64, waited *latch.RWLatch)
}

// WatchdogStats tracks scan activity
type WatchdogStats struct {
	TotalScans    int64     `json:"total_scans"`
	LastScanTime  time.Time `json:"last_scan_time"`
	LongestWaiter uint64    `json:"longest_waiter"`
	LongestLatch  string    `json:"longest_latch"`
}

// NewWatchdog creates a watchdog over the given registry
func NewWatchdog(registry *latch.WaitRegistry, config WatchdogConfig) *Watchdog {
	if config.Interval <= 0 {
		config.Interval = time.Second
	}
	if config.Escalate == nil {
		config.Escalate = func(waiter uint64, waited *latch.RWLatch) {
			name := "?"
			if waited != nil {
				name = waited.Name()
			}
			fmt.Fprintf(os.Stderr,
				"latch wait exceeded the fatal threshold: thread %d on %s; terminating\n",
				waiter, name)
			logger.Fatal("latch wait exceeded the fatal threshold: thread %d on %s; terminating",
				waiter, name)
		}
	}
	return &Watchdog{
		registry: registry,
		config:   config,
	}
}

// Start launches the scan loop. No-op if already running.
func (wd *Watchdog) Start() {
	if !atomic.CompareAndSwapInt32(&wd.running, 0, 1) {
		return
	}

	wd.ctx, wd.cancel = context.WithCancel(context.Background())
	wd.wg.Add(1)

	go func() {
		defer wd.wg.Done()

		ticker := time.NewTicker(wd.config.Interval)
		defer ticker.Stop()

		logger.Info("latch watchdog started, scanning every %v", wd.config.Interval)

		for {
			select {
			case <-wd.ctx.Done():
				return
			case <-ticker.C:
				wd.scan()
			}
		}
	}()
}

// Stop halts the scan loop and waits for it to exit
func (wd *Watchdog) Stop() {
	if !atomic.CompareAndSwapInt32(&wd.running, 1, 0) {
		return
	}
	wd.cancel()
	wd.wg.Wait()
	logger.Info("latch watchdog stopped")
}

// scan runs one monitor pass and escalates on a fatal result
func (wd *Watchdog) scan() {
	waiter, waited, fatal := wd.registry.PrintLongWaits()

	wd.mu.Lock()
	wd.stats.TotalScans++
	wd.stats.LastScanTime = time.Now()
	wd.stats.LongestWaiter = waiter
	if waited != nil {
		wd.stats.LongestLatch = waited.Name()
	} else {
		wd.stats.LongestLatch = ""
	}
	wd.mu.Unlock()

	logger.TraceIf("monitor", "watchdog scan: longest waiter %d, fatal=%v", waiter, fatal)

	if fatal {
		wd.config.Escalate(waiter, waited)
	}
}

// Stats returns a copy of the scan statistics
func (wd *Watchdog) Stats() WatchdogStats {
	wd.mu.RLock()
	defer wd.mu.RUnlock()
	return wd.stats
}
