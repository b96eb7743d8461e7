package services

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"latchdb/storage/latch"
)

func TestWatchdogScansAndStops(t *testing.T) {
	r, err := latch.NewWaitRegistry(1, 4, 600*time.Second)
	require.NoError(t, err)

	wd := NewWatchdog(r, WatchdogConfig{Interval: 10 * time.Millisecond})
	wd.Start()

	deadline := time.Now().Add(5 * time.Second)
	for wd.Stats().TotalScans < 3 {
		if time.Now().After(deadline) {
			t.Fatal("watchdog never scanned")
		}
		time.Sleep(5 * time.Millisecond)
	}

	wd.Stop()

	scans := wd.Stats().TotalScans
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, scans, wd.Stats().TotalScans, "no scans after Stop")

	// Restart works
	wd.Start()
	deadline = time.Now().Add(5 * time.Second)
	for wd.Stats().TotalScans == scans {
		if time.Now().After(deadline) {
			t.Fatal("watchdog did not resume after restart")
		}
		time.Sleep(5 * time.Millisecond)
	}
	wd.Stop()
}

func TestWatchdogEscalatesOnFatalWait(t *testing.T) {
	// A one-nanosecond ceiling makes any real park fatal immediately.
	r, err := latch.NewWaitRegistry(1, 4, time.Nanosecond)
	require.NoError(t, err)

	l := latch.NewRWLatch("hung_latch", "hang.go", 1)
	l.StoreLockWord(-1)

	var mu sync.Mutex
	var gotWaiter uint64
	var gotLatch *latch.RWLatch
	escalated := make(chan struct{})
	var once sync.Once

	wd := NewWatchdog(r, WatchdogConfig{
		Interval: 10 * time.Millisecond,
		Escalate: func(waiter uint64, waited *latch.RWLatch) {
			mu.Lock()
			gotWaiter = waiter
			gotLatch = waited
			mu.Unlock()
			once.Do(func() { close(escalated) })
		},
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		cell := r.ReserveCell(l, latch.ModeX, "hang.go", 2)
		if cell == nil {
			t.Error("no free cell")
			return
		}
		r.WaitEvent(&cell)
	}()

	// Wait for the park to become visible.
	parked := time.Now().Add(5 * time.Second)
	for l.OSWaitCount() == 0 {
		if time.Now().After(parked) {
			t.Fatal("waiter never parked")
		}
		time.Sleep(time.Millisecond)
	}

	wd.Start()

	select {
	case <-escalated:
	case <-time.After(5 * time.Second):
		t.Fatal("watchdog did not escalate")
	}

	wd.Stop()

	mu.Lock()
	require.NotZero(t, gotWaiter)
	require.Same(t, l, gotLatch)
	mu.Unlock()

	l.Release(1)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("waiter did not wake")
	}
}
