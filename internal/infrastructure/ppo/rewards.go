package ppo

// computeRewards combines outcome scores with the per-token KL penalty.
//
// The KL penalty is a cost intrinsic to each generated token, while the
// score belongs to the completed sequence, so the score is added only at
// the final response position. Inputs are never mutated; each reward
// sequence is a distinct copy of its non-score counterpart.
func computeRewards(klCoef float64, scores []float64, logprobs, refLogprobs [][]float64) (rewards, nonScoreRewards [][]float64) {
	rewards = make([][]float64, len(scores))
	nonScoreRewards = make([][]float64, len(scores))
	for i := range scores {
		nonScore := make([]float64, len(logprobs[i]))
		for t := range nonScore {
			kl := logprobs[i][t] - refLogprobs[i][t]
			nonScore[t] = -klCoef * kl
		}
		reward := make([]float64, len(nonScore))
		copy(reward, nonScore)
		reward[len(reward)-1] += scores[i]
		nonScoreRewards[i] = nonScore
		rewards[i] = reward
	}
	return rewards, nonScoreRewards
}
