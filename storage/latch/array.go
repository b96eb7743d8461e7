package latch

import (
	"fmt"
	"io"
	"math/rand"
	"sync"
	"time"

	"latchdb/logger"
	"latchdb/models"
)

// WaitArray is one shard of the wait registry: a fixed-size cell array
// guarded by a single mutex, with an intrusive free list threaded through
// unused cells and a high-water index of never-used slots.
//
// Invariants, all maintained under mu:
//   - a cell has a target iff it is reserved; nReserved counts exactly
//     those cells
//   - every slot below nextUnused is either reserved or on the free list
//   - the high-water mark only retreats in freeCell's compaction, after
//     verifying no slot below it is still in use
type WaitArray struct {
	mu    sync.Mutex
	cells []Cell

	// nReserved is the number of currently reserved cells.
	nReserved int

	// nextUnused is the lowest slot never yet used.
	nextUnused int

	// firstFree heads the free list; freeListEnd means empty.
	firstFree int

	// resCount counts reservations over the array's lifetime.
	resCount uint64
}

// newWaitArray creates a wait array with n cells.
func newWaitArray(n int) *WaitArray {
	assertf(n > 0, "wait array needs at least one cell, got %d", n)
	return &WaitArray{
		cells:     make([]Cell, n),
		firstFree: freeListEnd,
	}
}

// reserveCell takes a slot for a wait on the given latch. It prefers the
// free list, then the never-used region. Returns nil when the array is
// full; that is not an error — the caller retries elsewhere or spins.
func (a *WaitArray) reserveCell(target *RWLatch, mode Mode, file string, line int) *Cell {
	a.mu.Lock()

	var cell *Cell
	switch {
	case a.firstFree != freeListEnd:
		assertf(a.firstFree < a.nextUnused, "free list points past the high-water mark")
		cell = &a.cells[a.firstFree]
		a.firstFree = cell.line
	case a.nextUnused < len(a.cells):
		cell = &a.cells[a.nextUnused]
		a.nextUnused++
	default:
		a.mu.Unlock()
		return nil
	}

	a.resCount++
	assertf(a.nReserved < len(a.cells), "reserved count exceeds capacity")
	a.nReserved++

	assertf(cell.target == nil, "reserving a cell that is still in use")
	cell.arr = a
	cell.target = target
	cell.requestMode = mode
	cell.file = file
	cell.line = line
	cell.waiting = false

	a.mu.Unlock()

	// Identity and timestamp belong to the reserving thread alone; the
	// waiting=true store later publishes them to the scanners.
	cell.threadID = logger.GoroutineID()
	cell.reservedAt = time.Now()

	logger.LogLatchOperation(target.Name(), mode.String(), "reserve")

	return cell
}

// freeCell returns the slot to the free pool and zeroes the caller's
// handle. When the last reservation drains after the high-water mark
// passed the halfway point, the array compacts so later scans stay short.
func (a *WaitArray) freeCell(cellp **Cell) {
	cell := *cellp

	a.mu.Lock()

	assertf(cell.target != nil, "freeing a cell that is not reserved")

	name := cell.target.Name()
	mode := cell.requestMode.String()
	cell.waiting = false
	cell.target = nil

	cell.line = a.firstFree
	a.firstFree = a.indexOf(cell)

	assertf(a.nReserved > 0, "reserved count underflow")
	a.nReserved--

	if a.nextUnused > len(a.cells)/2 && a.nReserved == 0 {
		for i := 0; i < a.nextUnused; i++ {
			assertf(!a.cells[i].waiting, "compacting over a waiting cell")
			assertf(a.cells[i].target == nil, "compacting over a reserved cell")
		}
		a.nextUnused = 0
		a.firstFree = freeListEnd
	}

	a.mu.Unlock()

	logger.LogLatchOperation(name, mode, "free")

	*cellp = nil
}

// indexOf returns the slot index of a cell belonging to this array.
func (a *WaitArray) indexOf(cell *Cell) int {
	for i := range a.cells {
		if &a.cells[i] == cell {
			return i
		}
	}
	logger.Panic("cell does not belong to this wait array")
	return -1
}

// findThread returns the cell where the given thread is registered, or
// nil. Slot order decides ties. Caller holds mu.
func (a *WaitArray) findThread(thread uint64) *Cell {
	for i := range a.cells {
		cell := &a.cells[i]
		if cell.target != nil && cell.threadID == thread {
			return cell
		}
	}
	return nil
}

// validate checks that the reserved-cell count matches nReserved.
func (a *WaitArray) validate() {
	a.mu.Lock()
	defer a.mu.Unlock()

	count := 0
	for i := range a.cells {
		if a.cells[i].target != nil {
			count++
		}
	}
	assertf(count == a.nReserved,
		"wait array inconsistent: %d reserved cells, counter says %d", count, a.nReserved)
}

// printInfoLocked dumps the array's reservation count and every reserved
// cell. Caller holds mu.
func (a *WaitArray) printInfoLocked(w io.Writer) {
	fmt.Fprintf(w, "WAIT ARRAY INFO: reservation count %d\n", a.resCount)

	count := 0
	for i := 0; count < a.nReserved && i < len(a.cells); i++ {
		cell := &a.cells[i]
		if cell.target != nil {
			count++
			printCell(w, cell)
		}
	}
}

// WaitRegistry is the set of wait arrays. A waiter picks a shard with a
// random draw to spread registry mutex contention.
type WaitRegistry struct {
	shards       []*WaitArray
	fatalTimeout time.Duration
}

// NewWaitRegistry creates a registry of shardCount arrays with a combined
// capacity of at least maxThreads cells.
func NewWaitRegistry(shardCount, maxThreads int, fatalTimeout time.Duration) (*WaitRegistry, error) {
	if shardCount < 1 {
		return nil, fmt.Errorf("%w: shard count must be >= 1, got %d",
			models.ErrInvalidConfig, shardCount)
	}
	if maxThreads < 1 {
		return nil, fmt.Errorf("%w: max threads must be >= 1, got %d",
			models.ErrInvalidConfig, maxThreads)
	}
	if fatalTimeout <= 0 {
		return nil, fmt.Errorf("%w: fatal timeout must be positive, got %v",
			models.ErrInvalidConfig, fatalTimeout)
	}

	perShard := 1 + (maxThreads-1)/shardCount

	r := &WaitRegistry{
		shards:       make([]*WaitArray, shardCount),
		fatalTimeout: fatalTimeout,
	}
	for i := range r.shards {
		r.shards[i] = newWaitArray(perShard)
	}

	logger.Info("wait registry created: %d shard(s) x %d cells, fatal timeout %v",
		shardCount, perShard, fatalTimeout)

	return r, nil
}

// pick selects the shard for a new reservation or enumeration.
func (r *WaitRegistry) pick() *WaitArray {
	if len(r.shards) == 1 {
		return r.shards[0]
	}
	return r.shards[rand.Intn(len(r.shards))]
}

// ReserveCell registers a wait on the given latch. Returns nil when the
// chosen shard is full; the caller may retry (a fresh random draw, which
// may or may not land on another shard) or fall back to spinning on the
// latch.
func (r *WaitRegistry) ReserveCell(target *RWLatch, mode Mode, file string, line int) *Cell {
	return r.pick().reserveCell(target, mode, file, line)
}

// FreeCell releases a reservation without waiting and zeroes the handle.
// WaitEvent frees its cell itself; this is for callers that reserved but
// then acquired the latch without parking.
func (r *WaitRegistry) FreeCell(cellp **Cell) {
	(*cellp).arr.freeCell(cellp)
}

// Validate checks every shard's bookkeeping.
func (r *WaitRegistry) Validate() {
	for _, a := range r.shards {
		a.validate()
	}
}

// PrintInfo dumps every shard followed by the global signal count.
func (r *WaitRegistry) PrintInfo(w io.Writer) {
	for _, a := range r.shards {
		a.mu.Lock()
		a.printInfoLocked(w)
		a.mu.Unlock()
	}
	fmt.Fprintf(w, "WAIT ARRAY INFO: signal count %d\n", SignalCount())
}

// Process-wide registry lifecycle. The engine initializes one registry at
// startup and closes it during ordered shutdown; everything else receives
// the handle or uses Default.
var (
	registryMu sync.Mutex
	registry   *WaitRegistry
)

// Init creates the process-wide wait registry.
func Init(shardCount, maxThreads int, fatalTimeout time.Duration) error {
	registryMu.Lock()
	defer registryMu.Unlock()

	if registry != nil {
		return models.ErrAlreadyInitialized
	}

	r, err := NewWaitRegistry(shardCount, maxThreads, fatalTimeout)
	if err != nil {
		return err
	}
	registry = r
	return nil
}

// Default returns the process-wide registry, or nil before Init.
func Default() *WaitRegistry {
	registryMu.Lock()
	defer registryMu.Unlock()
	return registry
}

// Close tears down the process-wide registry. Every shard must have
// drained; the engine's ordered shutdown releases all latches first.
func Close() error {
	registryMu.Lock()
	defer registryMu.Unlock()

	if registry == nil {
		return models.ErrNotInitialized
	}

	for _, a := range registry.shards {
		a.validate()
		a.mu.Lock()
		n := a.nReserved
		a.mu.Unlock()
		if n != 0 {
			return fmt.Errorf("%w: %d cell(s) outstanding", models.ErrBusy, n)
		}
	}

	registry = nil
	return nil
}

// assertf is the invariant check used throughout the registry. A failure
// is a bug in the engine, never a recoverable condition.
func assertf(cond bool, format string, args ...interface{}) {
	if !cond {
		logger.Panic(format, args...)
	}
}
