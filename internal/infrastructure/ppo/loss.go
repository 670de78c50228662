package ppo

import (
	"math"

	domain "github.com/seqtune/seqtune/internal/domain/ppo"
)

// lossResult carries the losses, diagnostics, and the pending backward
// call for one minibatch.
type lossResult struct {
	policyLoss float64
	valueLoss  float64 // already scaled by VfCoef
	stats      domain.StatsRecord

	// backprop pushes the loss gradients through the live policy's
	// parameter gradient buffers.
	backprop func() error
}

// loss computes the clipped PPO policy and value losses for a single
// example, re-running the live policy with gradient tracking.
//
// oldLogprobs, values and rewards are the response-aligned sequences
// captured by the forward pass at the start of the step; modelInput is
// the concatenated query+response.
func (t *Trainer) loss(oldLogprobs, values, rewards []float64, response, modelInput []int64) (*lossResult, error) {
	genLen := len(response)
	cfg := t.config

	advantages, returns := computeGAE(cfg.Gamma, cfg.Lam, rewards, values)
	// Advantages are whitened and treated as constants: no gradient
	// flows through them.
	whiten(advantages)

	batch := t.collator.Collate([][]int64{modelInput})
	out, backward, err := t.policy.ForwardBackward(batch)
	if err != nil {
		return nil, err
	}
	logits := out.Logits[0]
	seqLen := len(modelInput)

	// Slice the response window exactly as the no-grad forward pass does.
	shifted := logprobsFromLogits(logits, modelInput)
	logprob := shifted[len(shifted)-genLen:]
	vpred := out.Values[0][seqLen-genLen-1 : seqLen-1]

	vpredClipped := make([]float64, genLen)
	for k := 0; k < genLen; k++ {
		vpredClipped[k] = clip(vpred[k], values[k]-cfg.CliprangeValue, values[k]+cfg.CliprangeValue)
	}

	// Pessimistic value loss: per token, the larger of the clipped and
	// unclipped squared errors.
	var vfLoss, vfClipfrac float64
	vfUnclippedLarger := make([]bool, genLen)
	for k := 0; k < genLen; k++ {
		l1 := (vpred[k] - returns[k]) * (vpred[k] - returns[k])
		l2 := (vpredClipped[k] - returns[k]) * (vpredClipped[k] - returns[k])
		if l2 > l1 {
			vfLoss += l2
			vfClipfrac++
		} else {
			vfLoss += l1
			vfUnclippedLarger[k] = true
		}
	}
	vfLoss = 0.5 * vfLoss / float64(genLen)
	vfClipfrac /= float64(genLen)

	ratio := make([]float64, genLen)
	for k := 0; k < genLen; k++ {
		ratio[k] = math.Exp(logprob[k] - oldLogprobs[k])
	}

	// Clipped surrogate: per token, the larger (worse) of the clipped
	// and unclipped losses.
	var pgLoss, pgClipfrac float64
	pgUnclippedLarger := make([]bool, genLen)
	for k := 0; k < genLen; k++ {
		l1 := -advantages[k] * ratio[k]
		l2 := -advantages[k] * clip(ratio[k], 1-cfg.Cliprange, 1+cfg.Cliprange)
		if l2 > l1 {
			pgLoss += l2
			pgClipfrac++
		} else {
			pgLoss += l1
			pgUnclippedLarger[k] = true
		}
	}
	pgLoss /= float64(genLen)
	pgClipfrac /= float64(genLen)

	// Analytic gradients of pgLoss + VfCoef*vfLoss with respect to the
	// fresh logits and value predictions. Selected clipped branches
	// outside the clip range contribute zero gradient.
	dLogits := zerosLike(logits)
	dValues := make([]float64, len(out.Values[0]))
	for k := 0; k < genLen; k++ {
		if pgUnclippedLarger[k] {
			g := -advantages[k] * ratio[k] / float64(genLen)
			pos := len(shifted) - genLen + k
			probs := softmax(logits[pos])
			token := modelInput[pos+1]
			for v := range dLogits[pos] {
				indicator := 0.0
				if int64(v) == token {
					indicator = 1.0
				}
				dLogits[pos][v] += g * (indicator - probs[v])
			}
		}
		if vfUnclippedLarger[k] {
			dValues[seqLen-genLen-1+k] = cfg.VfCoef * (vpred[k] - returns[k]) / float64(genLen)
		}
	}
	backprop := func() error {
		return backward([][][]float64{dLogits}, [][]float64{dValues})
	}

	var entropy float64
	for i := range logits {
		entropy += entropyFromLogits(logits[i])
	}
	entropy /= float64(len(logits))

	var approxKL, policyKL, vfError float64
	for k := 0; k < genLen; k++ {
		d := logprob[k] - oldLogprobs[k]
		approxKL += 0.5 * d * d
		policyKL += d
		vfError += (vpred[k] - returns[k]) * (vpred[k] - returns[k])
	}
	approxKL /= float64(genLen)
	policyKL /= float64(genLen)
	vfError /= float64(genLen)

	returnMean, returnVar := meanVar(returns)
	valueMean, valueVar := meanVar(values)

	stats := domain.StatsRecord{
		"loss/policy":             pgLoss,
		"loss/value":              vfLoss,
		"loss/total":              pgLoss + cfg.VfCoef*vfLoss,
		"policy/entropy":          entropy,
		"policy/approxkl":         approxKL,
		"policy/policykl":         policyKL,
		"policy/clipfrac":         pgClipfrac,
		"policy/advantages":       advantages,
		"policy/advantages_mean":  mean(advantages),
		"policy/ratio":            ratio,
		"returns/mean":            returnMean,
		"returns/var":             returnVar,
		"val/vpred":               mean(vpred),
		"val/error":               vfError,
		"val/clipfrac":            vfClipfrac,
		"val/mean":                valueMean,
		"val/var":                 valueVar,
	}

	return &lossResult{
		policyLoss: pgLoss,
		valueLoss:  cfg.VfCoef * vfLoss,
		stats:      stats,
		backprop:   backprop,
	}, nil
}

func zerosLike(m [][]float64) [][]float64 {
	out := make([][]float64, len(m))
	for i := range m {
		out[i] = make([]float64, len(m[i]))
	}
	return out
}
