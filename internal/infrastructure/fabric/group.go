package fabric

import "sync"

// Group coordinates a fixed-size set of in-process workers with a
// reusable barrier and an all-reduce-sum. Every collective call blocks
// until all workers arrive; a stalled worker stalls the group.
type Group struct {
	n int

	mu         sync.Mutex
	cond       *sync.Cond
	arrived    int
	generation int

	contrib [][]float64
	result  []float64
}

// NewGroup creates a coordinator for n workers.
func NewGroup(n int) *Group {
	g := &Group{
		n:       n,
		contrib: make([][]float64, n),
	}
	g.cond = sync.NewCond(&g.mu)
	return g
}

// Worker returns the fabric handle for the given rank. Rank 0 is the
// primary worker.
func (g *Group) Worker(rank int) *Worker {
	return &Worker{group: g, rank: rank}
}

func (g *Group) await() {
	gen := g.generation
	g.arrived++
	if g.arrived == g.n {
		g.arrived = 0
		g.generation++
		g.cond.Broadcast()
		return
	}
	for gen == g.generation {
		g.cond.Wait()
	}
}

func (g *Group) barrier() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.await()
}

func (g *Group) allReduceSum(rank int, values []float64) []float64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.contrib[rank] = values
	gen := g.generation
	g.arrived++
	if g.arrived == g.n {
		sum := make([]float64, len(values))
		for _, c := range g.contrib {
			for i, v := range c {
				sum[i] += v
			}
		}
		g.result = sum
		g.arrived = 0
		g.generation++
		g.cond.Broadcast()
	} else {
		for gen == g.generation {
			g.cond.Wait()
		}
	}

	out := make([]float64, len(g.result))
	copy(out, g.result)
	return out
}

// Worker is one rank's view of the group.
type Worker struct {
	group *Group
	rank  int
}

// Barrier blocks until every worker in the group reaches a barrier.
func (w *Worker) Barrier() {
	w.group.barrier()
}

// AllReduceSum sums the vector across all workers and returns the sum
// to every worker. All workers must pass equal-length vectors.
func (w *Worker) AllReduceSum(values []float64) []float64 {
	return w.group.allReduceSum(w.rank, values)
}

// NumWorkers reports the group size.
func (w *Worker) NumWorkers() int {
	return w.group.n
}

// IsPrimary reports whether this worker is rank 0.
func (w *Worker) IsPrimary() bool {
	return w.rank == 0
}
