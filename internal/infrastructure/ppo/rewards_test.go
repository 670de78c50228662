package ppo

import (
	"math"
	"testing"
)

func TestComputeRewardsSumInvariant(t *testing.T) {
	// For every example: sum(reward) == sum(nonScoreReward) + score.
	scores := []float64{1.5, -2.0, 0.0}
	logprobs := [][]float64{
		{-1.0, -2.0, -0.5},
		{-0.1},
		{-3.0, -0.3},
	}
	refLogprobs := [][]float64{
		{-1.5, -1.0, -0.5},
		{-0.4},
		{-2.0, -0.1},
	}

	rewards, nonScore := computeRewards(0.2, scores, logprobs, refLogprobs)

	for i := range scores {
		got := sum(rewards[i])
		want := sum(nonScore[i]) + scores[i]
		if math.Abs(got-want) > 1e-12 {
			t.Errorf("example %d: sum(reward)=%v, want %v", i, got, want)
		}
	}
}

func TestComputeRewardsPerToken(t *testing.T) {
	klCoef := 0.5
	scores := []float64{2.0}
	logprobs := [][]float64{{-1.0, -2.0}}
	refLogprobs := [][]float64{{-1.4, -1.5}}

	rewards, nonScore := computeRewards(klCoef, scores, logprobs, refLogprobs)

	// kl = [0.4, -0.5]; nonScore = -0.5*kl = [-0.2, 0.25].
	wantNonScore := []float64{-0.2, 0.25}
	for tk, want := range wantNonScore {
		if math.Abs(nonScore[0][tk]-want) > 1e-12 {
			t.Errorf("nonScore[%d] = %v, want %v", tk, nonScore[0][tk], want)
		}
	}

	// Score lands only on the final token.
	if math.Abs(rewards[0][0]-wantNonScore[0]) > 1e-12 {
		t.Errorf("reward[0] = %v, want %v", rewards[0][0], wantNonScore[0])
	}
	if math.Abs(rewards[0][1]-(wantNonScore[1]+2.0)) > 1e-12 {
		t.Errorf("reward[1] = %v, want %v", rewards[0][1], wantNonScore[1]+2.0)
	}
}

func TestComputeRewardsDoesNotMutateInputs(t *testing.T) {
	logprobs := [][]float64{{-1.0, -2.0}}
	refLogprobs := [][]float64{{-1.5, -1.0}}
	scores := []float64{3.0}

	rewards, nonScore := computeRewards(0.1, scores, logprobs, refLogprobs)

	if logprobs[0][0] != -1.0 || refLogprobs[0][1] != -1.0 {
		t.Error("inputs were mutated")
	}
	// The reward sequence must be a distinct copy: mutating it must not
	// affect the non-score sequence.
	rewards[0][0] = 99
	if nonScore[0][0] == 99 {
		t.Error("reward shares backing storage with nonScoreReward")
	}
}
