package ppo

import (
	"math"
	"sort"

	domain "github.com/seqtune/seqtune/internal/domain/ppo"
)

// advantageSentinel replaces NaN entries in the reported advantage
// distribution. Loss-path values are never sanitized.
const advantageSentinel = -1.0

// stackStats collapses per-minibatch records into one record: scalar
// statistics become the mean across minibatches, sequence statistics are
// concatenated in minibatch order.
func stackStats(all []domain.StatsRecord) domain.StatsRecord {
	out := domain.StatsRecord{}
	if len(all) == 0 {
		return out
	}
	for key := range all[0] {
		switch all[0][key].(type) {
		case float64:
			acc := make([]float64, 0, len(all))
			for _, rec := range all {
				v, _ := rec.Scalar(key)
				acc = append(acc, v)
			}
			out[key] = mean(acc)
		case []float64:
			var acc []float64
			for _, rec := range all {
				seq, _ := rec.Sequence(key)
				acc = append(acc, seq...)
			}
			out[key] = acc
		}
	}
	return out
}

// sanitizeStat substitutes sentinel for NaN entries of a concatenated
// sequence statistic, in place.
func sanitizeStat(rec domain.StatsRecord, key string, sentinel float64) {
	seq, ok := rec.Sequence(key)
	if !ok {
		return
	}
	for i, v := range seq {
		if math.IsNaN(v) {
			seq[i] = sentinel
		}
	}
}

// recordStepStats assembles the step-level record from the raw forward
// pass outputs and the stacked minibatch statistics.
func (t *Trainer) recordStepStats(scores []float64, logprobs, refLogprobs, nonScoreRewards [][]float64, trainStats domain.StatsRecord, klCoef float64) domain.StatsRecord {
	n := len(logprobs)

	klDist := make([]float64, n)
	var flatLogprobs, flatRefLogprobs []float64
	var meanKL, meanEntropy, meanNonScore float64
	for i := 0; i < n; i++ {
		var klSum, lpSum float64
		for tk := range logprobs[i] {
			klSum += logprobs[i][tk] - refLogprobs[i][tk]
			lpSum += logprobs[i][tk]
		}
		klDist[i] = klSum
		meanKL += klSum
		meanEntropy += -lpSum
		meanNonScore += sum(nonScoreRewards[i])
		flatLogprobs = append(flatLogprobs, logprobs[i]...)
		flatRefLogprobs = append(flatRefLogprobs, refLogprobs[i]...)
	}
	meanKL /= float64(n)
	meanEntropy /= float64(n)
	meanNonScore /= float64(n)

	scoreMean, scoreVar := meanVar(scores)

	record := domain.StatsRecord{
		"objective/kl":              meanKL,
		"objective/kl_dist":         klDist,
		"objective/kl_coef":         klCoef,
		"objective/entropy":         meanEntropy,
		"objective/logprobs":        flatLogprobs,
		"objective/ref_logprobs":    flatRefLogprobs,
		"objective/score_mean":      scoreMean,
		"objective/score_var":       scoreVar,
		"ppo/mean_non_score_reward": meanNonScore,
	}
	for key, v := range trainStats {
		record["ppo/"+key] = v
	}

	valError, _ := record.Scalar("ppo/val/error")
	returnsVar, _ := record.Scalar("ppo/returns/var")
	record["ppo/val/var_explained"] = 1 - valError/returnsVar

	return record
}

// gatherStats reduces the record across all workers: barrier, then
// element-wise all-reduce-sum divided by the worker count. All workers
// process equal-sized batches, so the average of averages is exact.
// Keys are visited in sorted order so every worker issues the same
// collective sequence.
func (t *Trainer) gatherStats(record domain.StatsRecord) domain.StatsRecord {
	t.fabric.Barrier()
	workers := float64(t.fabric.NumWorkers())

	keys := make([]string, 0, len(record))
	for key := range record {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	out := domain.StatsRecord{}
	for _, key := range keys {
		switch val := record[key].(type) {
		case float64:
			reduced := t.fabric.AllReduceSum([]float64{val})
			out[key] = reduced[0] / workers
		case []float64:
			reduced := t.fabric.AllReduceSum(val)
			for i := range reduced {
				reduced[i] /= workers
			}
			out[key] = reduced
		default:
			out[key] = record[key]
		}
	}
	return out
}
