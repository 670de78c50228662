package ppo

import (
	"errors"
	"math"
	"testing"

	domain "github.com/seqtune/seqtune/internal/domain/ppo"
	"github.com/seqtune/seqtune/internal/infrastructure/fabric"
	"github.com/seqtune/seqtune/internal/infrastructure/model"
)

// positionPolicy encodes the position index into its outputs so slicing
// windows can be verified exactly: value at position i is 100*row + i,
// and the logits at position i favor token (i % vocab).
type positionPolicy struct {
	vocab int
}

func (p *positionPolicy) Forward(input *domain.TokenBatch) (*domain.ForwardOutput, error) {
	out := &domain.ForwardOutput{
		Logits: make([][][]float64, len(input.IDs)),
		Values: make([][]float64, len(input.IDs)),
	}
	for j, row := range input.IDs {
		logits := make([][]float64, len(row))
		values := make([]float64, len(row))
		for i := range row {
			logits[i] = make([]float64, p.vocab)
			logits[i][i%p.vocab] = float64(i + 1)
			values[i] = float64(100*j + i)
		}
		out.Logits[j] = logits
		out.Values[j] = values
	}
	return out, nil
}

func (p *positionPolicy) ForwardBackward(input *domain.TokenBatch) (*domain.ForwardOutput, domain.BackwardFunc, error) {
	out, err := p.Forward(input)
	if err != nil {
		return nil, nil, err
	}
	return out, func(dLogits [][][]float64, dValues [][]float64) error { return nil }, nil
}

func newForwardTestTrainer(t *testing.T, cfg domain.Config) *Trainer {
	t.Helper()
	policy := &positionPolicy{vocab: 4}
	tr, err := NewTrainer(cfg, policy, policy, &nopOptimizer{}, &model.RightPadCollator{}, fabric.NewLocal())
	if err != nil {
		t.Fatalf("NewTrainer: %v", err)
	}
	return tr
}

type nopOptimizer struct{}

func (o *nopOptimizer) ZeroGrad() {}
func (o *nopOptimizer) Step()     {}

func TestBatchedForwardPassAlignment(t *testing.T) {
	// query_len=3, response_len=2: logprob positions [2,4) of the
	// shifted sequence, value positions [1,3) of the raw sequence.
	cfg := domain.DefaultConfig()
	cfg.BatchSize = 1
	cfg.ForwardBatchSize = 1

	tr := newForwardTestTrainer(t, cfg)
	queries := [][]int64{{1, 2, 3}}
	responses := [][]int64{{0, 1}}

	logprobs, refLogprobs, values, err := tr.batchedForwardPass(queries, responses)
	if err != nil {
		t.Fatalf("batchedForwardPass: %v", err)
	}

	if len(logprobs[0]) != 2 || len(refLogprobs[0]) != 2 || len(values[0]) != 2 {
		t.Fatalf("window lengths: logprobs %d, refLogprobs %d, values %d, want 2 each",
			len(logprobs[0]), len(refLogprobs[0]), len(values[0]))
	}

	// Value positions [1,3): 100*0 + {1, 2}.
	if values[0][0] != 1 || values[0][1] != 2 {
		t.Errorf("value window = %v, want [1 2]", values[0])
	}

	// Logprob positions [2,4) of the shifted sequence: the shifted
	// logprob at position i gathers logits[i] at token input[i+1].
	input := []int64{1, 2, 3, 0, 1}
	policy := &positionPolicy{vocab: 4}
	out, _ := policy.Forward(&domain.TokenBatch{IDs: [][]int64{input}, Lengths: []int{5}})
	shifted := logprobsFromLogits(out.Logits[0], input)
	for k := 0; k < 2; k++ {
		if math.Abs(logprobs[0][k]-shifted[2+k]) > 1e-12 {
			t.Errorf("logprob window[%d] = %v, want shifted[%d] = %v", k, logprobs[0][k], 2+k, shifted[2+k])
		}
	}
}

func TestBatchedForwardPassDivisibility(t *testing.T) {
	cfg := domain.DefaultConfig()
	cfg.BatchSize = 3
	cfg.ForwardBatchSize = 2

	tr := newForwardTestTrainer(t, cfg)
	queries := [][]int64{{1, 2}, {1, 2}, {1, 2}}
	responses := [][]int64{{0}, {0}, {0}}

	_, _, _, err := tr.batchedForwardPass(queries, responses)
	var divErr *domain.DivisibilityError
	if !errors.As(err, &divErr) {
		t.Fatalf("expected DivisibilityError, got %v", err)
	}
	if divErr.BatchSize != 3 || divErr.ForwardBatchSize != 2 {
		t.Errorf("error fields = %d/%d, want 3/2", divErr.BatchSize, divErr.ForwardBatchSize)
	}
}

func TestBatchedForwardPassChunking(t *testing.T) {
	// Four examples in chunks of two: every example gets its own
	// correctly sized window regardless of chunk boundaries.
	cfg := domain.DefaultConfig()
	cfg.BatchSize = 4
	cfg.ForwardBatchSize = 2

	tr := newForwardTestTrainer(t, cfg)
	queries := [][]int64{{1, 2}, {1, 2, 3}, {0, 1}, {2, 3, 1, 0}}
	responses := [][]int64{{0}, {0, 1}, {3, 2, 1}, {1}}

	logprobs, _, values, err := tr.batchedForwardPass(queries, responses)
	if err != nil {
		t.Fatalf("batchedForwardPass: %v", err)
	}
	for i := range responses {
		if len(logprobs[i]) != len(responses[i]) {
			t.Errorf("example %d: logprob window %d, want %d", i, len(logprobs[i]), len(responses[i]))
		}
		if len(values[i]) != len(responses[i]) {
			t.Errorf("example %d: value window %d, want %d", i, len(values[i]), len(responses[i]))
		}
	}
}
