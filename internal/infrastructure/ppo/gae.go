package ppo

// computeGAE runs the generalized advantage estimation backward
// recurrence over one response. Returns per-token advantages and returns
// (advantage + value). The caller whitens advantages separately.
func computeGAE(gamma, lam float64, rewards, values []float64) (advantages, returns []float64) {
	n := len(rewards)
	advantages = make([]float64, n)
	returns = make([]float64, n)

	var lastGAELam float64
	for t := n - 1; t >= 0; t-- {
		nextValue := 0.0
		if t < n-1 {
			nextValue = values[t+1]
		}
		delta := rewards[t] + gamma*nextValue - values[t]
		lastGAELam = delta + gamma*lam*lastGAELam
		advantages[t] = lastGAELam
	}
	for t := 0; t < n; t++ {
		returns[t] = advantages[t] + values[t]
	}
	return advantages, returns
}
