package latch

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// detection tests drive detectDeadlock directly: the production path
// terminates the process on a hit, which is exactly what a test must not
// do.

func enableDetection(t *testing.T) {
	t.Helper()
	EnableDeadlockDetection(true)
	t.Cleanup(func() { EnableDeadlockDetection(false) })
}

// reserveWaiting reserves a cell, forces its ownership onto the given
// fake thread id and marks it parked, as if that thread had gone through
// the wait path.
func reserveWaiting(t *testing.T, r *WaitRegistry, l *RWLatch, mode Mode, thread uint64) *Cell {
	t.Helper()
	cell := r.ReserveCell(l, mode, "wait_test.go", 1)
	require.NotNil(t, cell)

	a := cell.arr
	a.mu.Lock()
	cell.threadID = thread
	cell.waiting = true
	a.mu.Unlock()
	return cell
}

func detect(a *WaitArray, root *Cell) bool {
	a.mu.Lock()
	holderMu.Lock()
	found := a.detectDeadlock(root, root, 0)
	holderMu.Unlock()
	a.mu.Unlock()
	return found
}

func TestDetectTwoThreadCycle(t *testing.T) {
	enableDetection(t)

	r := newTestRegistry(t, 1, 8)
	a := r.shards[0]

	latchA := NewRWLatch("A", "a.go", 1)
	latchB := NewRWLatch("B", "b.go", 2)

	// Thread 1 holds A and waits for B; thread 2 holds B and waits for A.
	latchA.AddHolder(1, ModeX, 0, "a.go", 10)
	latchB.AddHolder(2, ModeX, 0, "b.go", 20)

	c1 := reserveWaiting(t, r, latchB, ModeX, 1)
	c2 := reserveWaiting(t, r, latchA, ModeX, 2)

	require.True(t, detect(a, c2), "two-thread cycle must be detected")
	require.True(t, detect(a, c1), "the cycle is visible from either root")

	r.FreeCell(&c1)
	r.FreeCell(&c2)
}

func TestDetectSkipsRootNotYetWaiting(t *testing.T) {
	enableDetection(t)

	r := newTestRegistry(t, 1, 8)
	a := r.shards[0]

	latchA := NewRWLatch("A", "a.go", 1)
	latchB := NewRWLatch("B", "b.go", 2)
	latchA.AddHolder(1, ModeX, 0, "a.go", 10)
	latchB.AddHolder(2, ModeX, 0, "b.go", 20)

	c1 := reserveWaiting(t, r, latchB, ModeX, 1)
	c2 := reserveWaiting(t, r, latchA, ModeX, 2)

	// A cell that has not parked yet cannot close a cycle.
	a.mu.Lock()
	c2.waiting = false
	a.mu.Unlock()

	require.False(t, detect(a, c2))

	r.FreeCell(&c1)
	r.FreeCell(&c2)
}

func TestDetectIgnoresDelegatedHolds(t *testing.T) {
	enableDetection(t)

	r := newTestRegistry(t, 1, 8)
	a := r.shards[0]

	latchA := NewRWLatch("A", "a.go", 1)
	latchB := NewRWLatch("B", "b.go", 2)

	// Thread 2's hold on A carries a non-zero pass: acquired on behalf of
	// another thread, so no release responsibility can be attributed.
	latchA.AddHolder(2, ModeX, 7, "a.go", 10)
	latchB.AddHolder(1, ModeX, 0, "b.go", 20)

	c1 := reserveWaiting(t, r, latchA, ModeX, 1)
	c2 := reserveWaiting(t, r, latchB, ModeX, 2)

	require.False(t, detect(a, c1))

	r.FreeCell(&c1)
	r.FreeCell(&c2)
}

func TestDetectReentrantExclusiveDoesNotBlockSelf(t *testing.T) {
	enableDetection(t)

	r := newTestRegistry(t, 1, 8)
	a := r.shards[0]

	latchA := NewRWLatch("A", "a.go", 1)

	// Thread 1 already holds A in SX and now waits for X on the same
	// latch. Exclusive-family re-entry is permitted, so its own hold must
	// not count as blocking.
	latchA.AddHolder(1, ModeSX, 0, "a.go", 10)

	c1 := reserveWaiting(t, r, latchA, ModeX, 1)

	require.False(t, detect(a, c1))

	// Its own S hold does block an X request: a reader cannot upgrade
	// past itself.
	latchA.AddHolder(1, ModeS, 0, "a.go", 11)

	// The S hold blocks, but thread 1's cell is the root itself, and the
	// step from the root back to the root is a genuine cycle.
	require.True(t, detect(a, c1))

	r.FreeCell(&c1)
}

func TestDetectModeRules(t *testing.T) {
	enableDetection(t)

	r := newTestRegistry(t, 1, 8)
	a := r.shards[0]

	latchA := NewRWLatch("A", "a.go", 1)
	latchB := NewRWLatch("B", "b.go", 2)

	// Thread 2 holds A in SX while waiting for B; thread 1 holds B in X
	// and requests S on A. SX does not block an S request, so there is no
	// cycle from thread 1's point of view.
	latchA.AddHolder(2, ModeSX, 0, "a.go", 10)
	latchB.AddHolder(1, ModeX, 0, "b.go", 20)

	c1 := reserveWaiting(t, r, latchA, ModeS, 1)
	c2 := reserveWaiting(t, r, latchB, ModeSX, 2)

	require.False(t, detect(a, c1))

	// The same shape with an X hold on A does block S, closing the cycle:
	// 1 waits on A held by 2, 2 waits on B held by 1.
	latchA.RemoveHolder(2, ModeSX)
	latchA.AddHolder(2, ModeX, 0, "a.go", 12)

	require.True(t, detect(a, c1))

	r.FreeCell(&c1)
	r.FreeCell(&c2)
}

func TestDetectChainOfThree(t *testing.T) {
	enableDetection(t)

	r := newTestRegistry(t, 1, 8)
	a := r.shards[0]

	latchA := NewRWLatch("A", "a.go", 1)
	latchB := NewRWLatch("B", "b.go", 2)
	latchC := NewRWLatch("C", "c.go", 3)

	// 1 -> B(2) -> C(3) -> A(1): a three-thread cycle.
	latchA.AddHolder(1, ModeX, 0, "a.go", 10)
	latchB.AddHolder(2, ModeX, 0, "b.go", 20)
	latchC.AddHolder(3, ModeX, 0, "c.go", 30)

	c1 := reserveWaiting(t, r, latchB, ModeX, 1)
	c2 := reserveWaiting(t, r, latchC, ModeX, 2)
	c3 := reserveWaiting(t, r, latchA, ModeX, 3)

	require.True(t, detect(a, c1))

	// Break the chain: thread 3 stops waiting, leaving 1 -> 2 -> 3 with
	// no edge back.
	a.mu.Lock()
	c3.waiting = false
	a.mu.Unlock()

	require.False(t, detect(a, c1))

	r.FreeCell(&c1)
	r.FreeCell(&c2)
	r.FreeCell(&c3)
}

func TestHolderRecording(t *testing.T) {
	enableDetection(t)

	l := NewRWLatch("A", "a.go", 1)
	l.AddHolder(9, ModeX, 0, "x.go", 5)
	l.AddHolder(9, ModeS, 0, "x.go", 6)

	holders := l.Holders()
	require.Len(t, holders, 2)

	l.RemoveHolder(9, ModeX)
	holders = l.Holders()
	require.Len(t, holders, 1)
	require.Equal(t, ModeS, holders[0].Mode)

	l.RemoveHolder(9, ModeS)
	require.Empty(t, l.Holders())
}

func TestHolderRecordingDisabled(t *testing.T) {
	l := NewRWLatch("A", "a.go", 1)
	l.AddHolder(9, ModeX, 0, "x.go", 5)
	require.Empty(t, l.Holders(), "holder records are debug-only")
}
