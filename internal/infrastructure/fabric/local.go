// Package fabric provides distributed coordination primitives for the
// trainer: a single-process fabric and an in-memory worker group.
package fabric

// Local is the single-worker fabric: barriers are no-ops and reduction
// returns the input unchanged.
type Local struct{}

// NewLocal creates a single-worker fabric.
func NewLocal() *Local {
	return &Local{}
}

// Barrier is a no-op for a single worker.
func (l *Local) Barrier() {}

// AllReduceSum returns a copy of the input.
func (l *Local) AllReduceSum(values []float64) []float64 {
	out := make([]float64, len(values))
	copy(out, values)
	return out
}

// NumWorkers reports 1.
func (l *Local) NumWorkers() int {
	return 1
}

// IsPrimary reports true.
func (l *Local) IsPrimary() bool {
	return true
}
