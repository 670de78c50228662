package ppo

import "math"

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// meanVar returns mean and population variance.
func meanVar(values []float64) (mean, variance float64) {
	if len(values) == 0 {
		return 0, 0
	}
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(values))
	return mean, variance
}

func mean(values []float64) float64 {
	m, _ := meanVar(values)
	return m
}

func sum(values []float64) float64 {
	var s float64
	for _, v := range values {
		s += v
	}
	return s
}

// whiten normalizes values in place to zero mean and unit variance using
// population statistics.
func whiten(values []float64) {
	m, v := meanVar(values)
	inv := 1 / math.Sqrt(v+1e-8)
	for i := range values {
		values[i] = (values[i] - m) * inv
	}
}

// logSoftmax computes log-softmax over one logit vector.
func logSoftmax(logits []float64) []float64 {
	maxVal := logits[0]
	for _, v := range logits {
		if v > maxVal {
			maxVal = v
		}
	}
	var sumExp float64
	for _, v := range logits {
		sumExp += math.Exp(v - maxVal)
	}
	logZ := maxVal + math.Log(sumExp)
	out := make([]float64, len(logits))
	for i, v := range logits {
		out[i] = v - logZ
	}
	return out
}

// softmax computes softmax over one logit vector.
func softmax(logits []float64) []float64 {
	out := logSoftmax(logits)
	for i, v := range out {
		out[i] = math.Exp(v)
	}
	return out
}

// entropyFromLogits returns the entropy of the categorical distribution
// defined by one logit vector.
func entropyFromLogits(logits []float64) float64 {
	logProbs := logSoftmax(logits)
	var h float64
	for _, lp := range logProbs {
		h -= math.Exp(lp) * lp
	}
	return h
}

// logprobsFromLogits gathers the next-token log-probability at each
// observed position: out[i] = logSoftmax(logits[i])[input[i+1]] for
// i in [0, len(input)-1). Positions at or past length-1 are dropped.
func logprobsFromLogits(logits [][]float64, input []int64) []float64 {
	n := len(input) - 1
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = logSoftmax(logits[i])[input[i+1]]
	}
	return out
}
