package latch

import (
	"sync"
	"sync/atomic"
)

// RWLatch is the waitable surface of a reader/writer latch. The wait
// registry consumes it: the lock word and waiters flag drive the park
// predicates, the condition variables are the rendezvous with the release
// path, and the remaining fields feed diagnostics. Acquisition and release
// policy live with the engine, not here.
//
// Lock word encoding: positive values mean the latch can make progress for
// a parked waiter (reader count / free), zero and below mean exclusively
// held or contested.
type RWLatch struct {
	lockWord atomic.Int32
	waiters  atomic.Uint32

	// waitMu guards the condition variables. It is never held together
	// with a wait-array mutex; the wait path releases the array mutex
	// before touching it.
	waitMu     sync.Mutex
	waitCond   *sync.Cond // shared waiters (S, X, SX)
	waitExCond *sync.Cond // X_WAIT upgrader waiting for readers to drain

	name        string
	createdFile string
	createdLine int

	// Writer bookkeeping, maintained by the engine's lock path and read
	// for diagnostics only.
	writerThread atomic.Uint64
	writerMode   atomic.Int32

	infoMu    sync.Mutex
	lastXFile string
	lastXLine int

	// osWaitCount counts how many times a thread parked on this latch.
	osWaitCount atomic.Uint32

	// holders is maintained only while deadlock detection is enabled.
	// Guarded by the package-wide holderMu.
	holders []HolderRecord
}

// HolderRecord describes one current hold on a latch, for the debug
// deadlock detector.
type HolderRecord struct {
	ThreadID uint64
	Mode     Mode
	// Pass is non-zero when the hold was acquired on behalf of another
	// thread; such holds cannot be attributed for deadlock purposes.
	Pass int
	File string
	Line int
}

// holderMu guards every latch's holder list. A plain mutex on purpose:
// taking anything built on the wait registry here would recurse into the
// registry itself.
var holderMu sync.Mutex

// signalCount counts release-side wakeups across all latches.
var signalCount atomic.Uint64

// NewRWLatch creates a latch surface. The file and line identify the
// creation site for diagnostics.
func NewRWLatch(name string, file string, line int) *RWLatch {
	l := &RWLatch{
		name:        name,
		createdFile: file,
		createdLine: line,
	}
	l.waitCond = sync.NewCond(&l.waitMu)
	l.waitExCond = sync.NewCond(&l.waitMu)
	l.writerMode.Store(int32(ModeNotLocked))
	return l
}

// Name returns the latch name.
func (l *RWLatch) Name() string { return l.name }

// CreatedAt returns the creation site.
func (l *RWLatch) CreatedAt() (string, int) { return l.createdFile, l.createdLine }

// LockWord returns the current lock word.
func (l *RWLatch) LockWord() int32 { return l.lockWord.Load() }

// StoreLockWord publishes a new lock word. Release-path use only.
func (l *RWLatch) StoreLockWord(v int32) { l.lockWord.Store(v) }

// WaitersFlag reports whether the waiters flag is set.
func (l *RWLatch) WaitersFlag() uint32 { return l.waiters.Load() }

// Readers returns the current reader count derived from the lock word.
func (l *RWLatch) Readers() int32 {
	if w := l.lockWord.Load(); w > 0 {
		return w
	}
	return 0
}

// OSWaitCount returns how many times a thread parked on this latch.
func (l *RWLatch) OSWaitCount() uint32 { return l.osWaitCount.Load() }

// SetWriter records the current writer for diagnostics.
func (l *RWLatch) SetWriter(thread uint64, mode Mode) {
	l.writerThread.Store(thread)
	l.writerMode.Store(int32(mode))
}

// ClearWriter clears the writer record.
func (l *RWLatch) ClearWriter() {
	l.writerThread.Store(0)
	l.writerMode.Store(int32(ModeNotLocked))
}

// Writer returns the recorded writer mode and thread.
func (l *RWLatch) Writer() (Mode, uint64) {
	return Mode(l.writerMode.Load()), l.writerThread.Load()
}

// SetLastWriter records the site of the most recent write lock.
func (l *RWLatch) SetLastWriter(file string, line int) {
	l.infoMu.Lock()
	l.lastXFile = file
	l.lastXLine = line
	l.infoMu.Unlock()
}

// LastWriter returns the site of the most recent write lock.
func (l *RWLatch) LastWriter() (string, int) {
	l.infoMu.Lock()
	defer l.infoMu.Unlock()
	return l.lastXFile, l.lastXLine
}

// WakeWaiters clears the waiters flag and wakes every parked S/X/SX
// waiter. Release-path use.
func (l *RWLatch) WakeWaiters() {
	l.waiters.Store(0)
	l.waitMu.Lock()
	l.waitCond.Broadcast()
	l.waitMu.Unlock()
	signalCount.Add(1)
}

// WakeUpgrader wakes a parked X_WAIT upgrader. Release-path use.
func (l *RWLatch) WakeUpgrader() {
	l.waitMu.Lock()
	l.waitExCond.Signal()
	l.waitMu.Unlock()
	signalCount.Add(1)
}

// Release publishes a new lock word and wakes whoever can now make
// progress: the upgrader when the readers drained to zero, and the parked
// waiters whenever the flag was up.
func (l *RWLatch) Release(lockWord int32) {
	l.lockWord.Store(lockWord)
	if lockWord == 0 {
		l.WakeUpgrader()
	}
	if l.waiters.Swap(0) != 0 {
		l.WakeWaiters()
	}
}

// AddHolder records a hold for the deadlock detector. No-op unless
// detection is enabled.
func (l *RWLatch) AddHolder(thread uint64, mode Mode, pass int, file string, line int) {
	if !deadlockDetection.Load() {
		return
	}
	holderMu.Lock()
	l.holders = append(l.holders, HolderRecord{
		ThreadID: thread,
		Mode:     mode,
		Pass:     pass,
		File:     file,
		Line:     line,
	})
	holderMu.Unlock()
}

// RemoveHolder drops the first matching hold record.
func (l *RWLatch) RemoveHolder(thread uint64, mode Mode) {
	if !deadlockDetection.Load() {
		return
	}
	holderMu.Lock()
	for i, h := range l.holders {
		if h.ThreadID == thread && h.Mode == mode {
			l.holders = append(l.holders[:i], l.holders[i+1:]...)
			break
		}
	}
	holderMu.Unlock()
}

// Holders returns a snapshot of the current hold records.
func (l *RWLatch) Holders() []HolderRecord {
	holderMu.Lock()
	defer holderMu.Unlock()
	out := make([]HolderRecord, len(l.holders))
	copy(out, l.holders)
	return out
}

// SignalCount returns the number of release-side wakeups issued since
// process start, across all latches.
func SignalCount() uint64 {
	return signalCount.Load()
}
