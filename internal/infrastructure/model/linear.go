// Package model provides a small trainable policy with a value head,
// optimizers, and batch collation for driving the PPO core without an
// external network runtime.
package model

import (
	"fmt"
	"math"
	"math/rand"

	domain "github.com/seqtune/seqtune/internal/domain/ppo"
)

// LinearPolicy is a bigram-style policy: the logits for the next token
// and the value estimate at a position are linear in a per-token
// parameter row. Small enough to train in-process, rich enough to move
// under PPO updates.
type LinearPolicy struct {
	vocabSize int

	// params holds the next-token table (vocabSize*vocabSize) followed
	// by the value head (vocabSize), flat for the optimizers.
	params []float64
	grads  []float64
}

// NewLinearPolicy creates a policy over the given vocabulary with
// Xavier-style initialization from the seeded source.
func NewLinearPolicy(vocabSize int, seed int64) *LinearPolicy {
	p := &LinearPolicy{
		vocabSize: vocabSize,
		params:    make([]float64, vocabSize*vocabSize+vocabSize),
		grads:     make([]float64, vocabSize*vocabSize+vocabSize),
	}
	rng := rand.New(rand.NewSource(seed))
	scale := math.Sqrt(2.0 / float64(vocabSize))
	for i := range p.params {
		p.params[i] = (rng.Float64() - 0.5) * scale
	}
	return p
}

// Clone returns a deep copy, used as the frozen reference policy.
func (p *LinearPolicy) Clone() *LinearPolicy {
	out := &LinearPolicy{
		vocabSize: p.vocabSize,
		params:    make([]float64, len(p.params)),
		grads:     make([]float64, len(p.grads)),
	}
	copy(out.params, p.params)
	return out
}

// VocabSize returns the vocabulary size.
func (p *LinearPolicy) VocabSize() int {
	return p.vocabSize
}

// Params returns the flat parameter slice, shared with the optimizers.
func (p *LinearPolicy) Params() []float64 {
	return p.params
}

// Grads returns the flat gradient buffer, shared with the optimizers.
func (p *LinearPolicy) Grads() []float64 {
	return p.grads
}

func (p *LinearPolicy) logitRow(token int64) []float64 {
	off := int(token) * p.vocabSize
	return p.params[off : off+p.vocabSize]
}

func (p *LinearPolicy) valueParam(token int64) *float64 {
	return &p.params[p.vocabSize*p.vocabSize+int(token)]
}

func (p *LinearPolicy) run(input *domain.TokenBatch) (*domain.ForwardOutput, error) {
	out := &domain.ForwardOutput{
		Logits: make([][][]float64, len(input.IDs)),
		Values: make([][]float64, len(input.IDs)),
	}
	for j, row := range input.IDs {
		logits := make([][]float64, len(row))
		values := make([]float64, len(row))
		for i, token := range row {
			if token < 0 || int(token) >= p.vocabSize {
				return nil, fmt.Errorf("token %d out of vocabulary range [0, %d)", token, p.vocabSize)
			}
			logits[i] = append([]float64(nil), p.logitRow(token)...)
			values[i] = *p.valueParam(token)
		}
		out.Logits[j] = logits
		out.Values[j] = values
	}
	return out, nil
}

// Forward implements the no-gradient policy contract.
func (p *LinearPolicy) Forward(input *domain.TokenBatch) (*domain.ForwardOutput, error) {
	return p.run(input)
}

// ForwardBackward implements the gradient-mode policy contract. The
// returned closure accumulates logit/value gradients into the flat
// gradient buffer.
func (p *LinearPolicy) ForwardBackward(input *domain.TokenBatch) (*domain.ForwardOutput, domain.BackwardFunc, error) {
	out, err := p.run(input)
	if err != nil {
		return nil, nil, err
	}
	backward := func(dLogits [][][]float64, dValues [][]float64) error {
		if len(dLogits) != len(input.IDs) || len(dValues) != len(input.IDs) {
			return fmt.Errorf("gradient batch size %d/%d does not match input batch size %d", len(dLogits), len(dValues), len(input.IDs))
		}
		for j, row := range input.IDs {
			for i, token := range row {
				off := int(token) * p.vocabSize
				for v, g := range dLogits[j][i] {
					p.grads[off+v] += g
				}
				p.grads[p.vocabSize*p.vocabSize+int(token)] += dValues[j][i]
			}
		}
		return nil
	}
	return out, backward, nil
}
