package fabric

import (
	"sync"
	"testing"
)

func TestLocalFabric(t *testing.T) {
	l := NewLocal()
	if l.NumWorkers() != 1 {
		t.Errorf("NumWorkers = %d, want 1", l.NumWorkers())
	}
	if !l.IsPrimary() {
		t.Error("single worker should be primary")
	}
	l.Barrier()

	in := []float64{1, 2, 3}
	out := l.AllReduceSum(in)
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("out[%d] = %v, want %v", i, out[i], in[i])
		}
	}
	out[0] = 99
	if in[0] == 99 {
		t.Error("AllReduceSum should return a copy")
	}
}

func TestGroupAllReduceSum(t *testing.T) {
	const n = 4
	group := NewGroup(n)

	results := make([][]float64, n)
	var wg sync.WaitGroup
	for rank := 0; rank < n; rank++ {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			w := group.Worker(rank)
			results[rank] = w.AllReduceSum([]float64{float64(rank), 1.0})
		}(rank)
	}
	wg.Wait()

	// Sum across ranks: 0+1+2+3 = 6 and 4*1 = 4, identical on every worker.
	for rank := 0; rank < n; rank++ {
		if results[rank][0] != 6 || results[rank][1] != 4 {
			t.Errorf("worker %d: got %v, want [6 4]", rank, results[rank])
		}
	}
}

func TestGroupBarrierReusable(t *testing.T) {
	const n = 3
	const rounds = 5
	group := NewGroup(n)

	counts := make([]int, n)
	var wg sync.WaitGroup
	for rank := 0; rank < n; rank++ {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			w := group.Worker(rank)
			for r := 0; r < rounds; r++ {
				w.Barrier()
				counts[rank]++
			}
		}(rank)
	}
	wg.Wait()

	for rank, c := range counts {
		if c != rounds {
			t.Errorf("worker %d passed %d barriers, want %d", rank, c, rounds)
		}
	}
}

func TestGroupPrimaryRank(t *testing.T) {
	group := NewGroup(2)
	if !group.Worker(0).IsPrimary() {
		t.Error("rank 0 should be primary")
	}
	if group.Worker(1).IsPrimary() {
		t.Error("rank 1 should not be primary")
	}
	if group.Worker(1).NumWorkers() != 2 {
		t.Errorf("NumWorkers = %d, want 2", group.Worker(1).NumWorkers())
	}
}

func TestGroupSequentialReduces(t *testing.T) {
	// Two consecutive reduces must not mix contributions across rounds.
	const n = 2
	group := NewGroup(n)

	firsts := make([][]float64, n)
	seconds := make([][]float64, n)
	var wg sync.WaitGroup
	for rank := 0; rank < n; rank++ {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			w := group.Worker(rank)
			firsts[rank] = w.AllReduceSum([]float64{1})
			seconds[rank] = w.AllReduceSum([]float64{10})
		}(rank)
	}
	wg.Wait()

	for rank := 0; rank < n; rank++ {
		if firsts[rank][0] != 2 {
			t.Errorf("worker %d first round: got %v, want 2", rank, firsts[rank][0])
		}
		if seconds[rank][0] != 20 {
			t.Errorf("worker %d second round: got %v, want 20", rank, seconds[rank][0])
		}
	}
}
