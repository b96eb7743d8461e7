package latch

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T, shards, maxThreads int) *WaitRegistry {
	t.Helper()
	r, err := NewWaitRegistry(shards, maxThreads, 600*time.Second)
	require.NoError(t, err)
	return r
}

func TestReserveFreeSingleCell(t *testing.T) {
	r := newTestRegistry(t, 1, 4)
	a := r.shards[0]

	l := NewRWLatch("dict_sys", "dict.go", 88)

	cell := r.ReserveCell(l, ModeS, "btree.go", 10)
	require.NotNil(t, cell)
	require.Equal(t, 1, a.nReserved)
	require.Equal(t, uint64(1), a.resCount)
	require.Equal(t, 1, a.nextUnused)
	require.Equal(t, freeListEnd, a.firstFree)
	require.Same(t, l, cell.Latch())
	require.Equal(t, ModeS, cell.RequestMode())

	file, line := cell.Site()
	require.Equal(t, "btree.go", file)
	require.Equal(t, 10, line)

	r.FreeCell(&cell)
	require.Nil(t, cell)
	require.Equal(t, 0, a.nReserved)
	require.Equal(t, uint64(1), a.resCount)

	// High-water mark is at 1 of 4, below the compaction threshold: the
	// freed slot goes on the free list and nothing resets.
	require.Equal(t, 1, a.nextUnused)
	require.Equal(t, 0, a.firstFree)

	r.Validate()
}

func TestFreeListReuseAndCompaction(t *testing.T) {
	r := newTestRegistry(t, 1, 4)
	a := r.shards[0]

	l := NewRWLatch("fil_system", "fil.go", 31)

	c0 := r.ReserveCell(l, ModeX, "a.go", 1)
	c1 := r.ReserveCell(l, ModeX, "b.go", 2)
	c2 := r.ReserveCell(l, ModeX, "c.go", 3)
	require.NotNil(t, c0)
	require.NotNil(t, c1)
	require.NotNil(t, c2)
	require.Same(t, &a.cells[0], c0)
	require.Same(t, &a.cells[1], c1)
	require.Same(t, &a.cells[2], c2)
	require.Equal(t, 3, a.nextUnused)

	// Freeing the middle slot puts it at the head of the free list; the
	// next reservation must reuse it before touching slot 3.
	r.FreeCell(&c1)
	require.Equal(t, 1, a.firstFree)

	c3 := r.ReserveCell(l, ModeX, "d.go", 4)
	require.Same(t, &a.cells[1], c3)
	require.Equal(t, freeListEnd, a.firstFree)
	require.Equal(t, 3, a.nextUnused)

	r.FreeCell(&c2)
	r.FreeCell(&c0)
	require.Equal(t, 1, a.nReserved)

	// Last reservation drains with the high-water mark past N/2: the
	// array compacts back to pristine.
	r.FreeCell(&c3)
	require.Equal(t, 0, a.nReserved)
	require.Equal(t, 0, a.nextUnused)
	require.Equal(t, freeListEnd, a.firstFree)
	require.Equal(t, uint64(4), a.resCount)

	r.Validate()
}

func TestReserveWhenFull(t *testing.T) {
	r := newTestRegistry(t, 1, 2)
	a := r.shards[0]

	l := NewRWLatch("log_sys", "log.go", 77)

	c0 := r.ReserveCell(l, ModeS, "a.go", 1)
	c1 := r.ReserveCell(l, ModeS, "b.go", 2)
	require.NotNil(t, c0)
	require.NotNil(t, c1)

	nextUnused := a.nextUnused
	firstFree := a.firstFree
	resCount := a.resCount

	// A full shard reports nil and changes nothing.
	c2 := r.ReserveCell(l, ModeS, "c.go", 3)
	require.Nil(t, c2)
	require.Equal(t, 2, a.nReserved)
	require.Equal(t, nextUnused, a.nextUnused)
	require.Equal(t, firstFree, a.firstFree)
	require.Equal(t, resCount, a.resCount)

	r.FreeCell(&c0)
	r.FreeCell(&c1)
	r.Validate()
}

func TestSingleSlotRegistry(t *testing.T) {
	r := newTestRegistry(t, 1, 1)

	l := NewRWLatch("trx_sys", "trx.go", 5)

	c0 := r.ReserveCell(l, ModeX, "a.go", 1)
	require.NotNil(t, c0)
	require.Nil(t, r.ReserveCell(l, ModeX, "b.go", 2))

	r.FreeCell(&c0)
}

func TestRegistryConfigValidation(t *testing.T) {
	_, err := NewWaitRegistry(0, 4, time.Second)
	require.Error(t, err)

	_, err = NewWaitRegistry(1, 0, time.Second)
	require.Error(t, err)

	_, err = NewWaitRegistry(1, 4, 0)
	require.Error(t, err)

	// Capacity is spread over the shards, rounding up.
	r, err := NewWaitRegistry(3, 10, time.Second)
	require.NoError(t, err)
	require.Len(t, r.shards, 3)
	for _, a := range r.shards {
		require.Len(t, a.cells, 4)
	}
}

func TestLifecycle(t *testing.T) {
	require.NoError(t, Init(1, 8, 600*time.Second))
	require.Error(t, Init(1, 8, 600*time.Second))

	r := Default()
	require.NotNil(t, r)

	l := NewRWLatch("buf_pool", "buf.go", 9)
	cell := r.ReserveCell(l, ModeS, "a.go", 1)
	require.NotNil(t, cell)

	// Closing with an outstanding reservation must refuse.
	require.Error(t, Close())

	r.FreeCell(&cell)
	require.NoError(t, Close())
	require.Nil(t, Default())
	require.Error(t, Close())
}

func TestConcurrentReserveFree(t *testing.T) {
	const goroutines = 8
	const iterations = 200

	r := newTestRegistry(t, 1, goroutines)
	l := NewRWLatch("ibuf", "ibuf.go", 61)

	var wg sync.WaitGroup
	wg.Add(goroutines)

	start := time.Now()

	for g := 0; g < goroutines; g++ {
		go func(id int) {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				cell := r.ReserveCell(l, ModeS, "worker.go", id)
				if cell == nil {
					t.Errorf("goroutine %d: no free cell with capacity %d", id, goroutines)
					return
				}
				r.FreeCell(&cell)
			}
		}(g)
	}

	wg.Wait()
	t.Logf("%d reserve/free pairs in %v", goroutines*iterations, time.Since(start))

	r.Validate()

	a := r.shards[0]
	if a.nReserved != 0 {
		t.Errorf("expected drained shard, got %d reserved", a.nReserved)
	}
	if a.resCount != goroutines*iterations {
		t.Errorf("expected %d reservations, got %d", goroutines*iterations, a.resCount)
	}
}

func BenchmarkReserveFree(b *testing.B) {
	r, err := NewWaitRegistry(4, 64, 600*time.Second)
	if err != nil {
		b.Fatalf("registry: %v", err)
	}
	l := NewRWLatch("bench", "bench.go", 1)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			cell := r.ReserveCell(l, ModeS, "bench.go", 2)
			if cell != nil {
				r.FreeCell(&cell)
			}
		}
	})
}
