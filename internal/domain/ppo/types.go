package ppo

// TokenBatch is a padded batch of token sequences ready for a network
// forward pass. Lengths records each row's unpadded length.
type TokenBatch struct {
	// IDs is the padded token matrix, one row per example.
	IDs [][]int64

	// Lengths holds the unpadded length of each row.
	Lengths []int
}

// ForwardOutput is the result of running a policy over a TokenBatch.
// Logits is [example][position][vocab]; Values is [example][position].
type ForwardOutput struct {
	Logits [][][]float64
	Values [][]float64
}

// BackwardFunc accumulates parameter gradients from gradients taken with
// respect to the forward pass's logits and values. It may be called at
// most once per ForwardBackward invocation.
type BackwardFunc func(dLogits [][][]float64, dValues [][]float64) error

// Policy is the policy/value network contract. The reference policy uses
// the same contract; only Forward is ever called on it.
type Policy interface {
	// Forward runs the network without gradient tracking.
	Forward(input *TokenBatch) (*ForwardOutput, error)

	// ForwardBackward runs the network with gradient tracking and returns
	// a closure that backpropagates logit/value gradients into the
	// network's parameter gradient buffers.
	ForwardBackward(input *TokenBatch) (*ForwardOutput, BackwardFunc, error)
}

// Optimizer applies accumulated parameter gradients.
type Optimizer interface {
	// ZeroGrad clears the gradient buffers.
	ZeroGrad()

	// Step applies the accumulated gradients to the parameters.
	Step()
}

// Collator pads a set of variable-length token sequences into a single
// batch. Padding policy belongs to the collator, not to this core.
type Collator interface {
	Collate(seqs [][]int64) *TokenBatch
}

// Fabric is the distributed coordination capability. Both calls block
// until every worker in the group reaches them.
type Fabric interface {
	// Barrier blocks until all workers arrive.
	Barrier()

	// AllReduceSum sums the vector element-wise across all workers and
	// returns the summed vector to every worker.
	AllReduceSum(values []float64) []float64

	// NumWorkers reports the size of the worker group.
	NumWorkers() int

	// IsPrimary reports whether this worker is the designated primary.
	IsPrimary() bool
}

// StatsRecord maps dotted statistic names to scalar or sequence values.
// Values are float64 or []float64.
type StatsRecord map[string]any

// Scalar returns the named statistic as a float64, with ok reporting
// whether the key exists and holds a scalar.
func (r StatsRecord) Scalar(key string) (float64, bool) {
	v, ok := r[key]
	if !ok {
		return 0, false
	}
	f, ok := v.(float64)
	return f, ok
}

// Sequence returns the named statistic as a []float64, with ok reporting
// whether the key exists and holds a sequence.
func (r StatsRecord) Sequence(key string) ([]float64, bool) {
	v, ok := r[key]
	if !ok {
		return nil, false
	}
	s, ok := v.([]float64)
	return s, ok
}

// TelemetrySink receives one StatsRecord per completed step. The trainer
// behaves identically whether or not any sink is attached.
type TelemetrySink interface {
	Record(step int, stats StatsRecord) error
}

// KLController adjusts the KL penalty coefficient between steps.
type KLController interface {
	// Update observes the step's mean KL and the number of samples the
	// observation represents.
	Update(currentKL float64, batchSize int)

	// Value returns the current coefficient.
	Value() float64
}
