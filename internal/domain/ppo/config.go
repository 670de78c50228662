// Package ppo provides domain types for PPO sequence-policy optimization.
package ppo

import "fmt"

// Config holds the PPO hyperparameters for one trainer instance.
type Config struct {
	// BatchSize is the number of (query, response, score) triples per step.
	BatchSize int `json:"batchSize" yaml:"batchSize"`

	// ForwardBatchSize is the chunk size for reference forward passes.
	// Must evenly divide BatchSize.
	ForwardBatchSize int `json:"forwardBatchSize" yaml:"forwardBatchSize"`

	// PPOEpochs is the number of optimization epochs per step.
	PPOEpochs int `json:"ppoEpochs" yaml:"ppoEpochs"`

	// Gamma is the discount factor across response tokens.
	Gamma float64 `json:"gamma" yaml:"gamma"`

	// Lam is the GAE smoothing parameter.
	Lam float64 `json:"lam" yaml:"lam"`

	// Cliprange bounds the policy importance ratio.
	Cliprange float64 `json:"cliprange" yaml:"cliprange"`

	// CliprangeValue bounds the value prediction around its old value.
	CliprangeValue float64 `json:"cliprangeValue" yaml:"cliprangeValue"`

	// VfCoef scales the value loss in the total loss.
	VfCoef float64 `json:"vfCoef" yaml:"vfCoef"`

	// AdaptiveKL selects the adaptive KL controller over the fixed one.
	AdaptiveKL bool `json:"adaptiveKL" yaml:"adaptiveKL"`

	// InitKLCoef is the initial KL penalty coefficient.
	InitKLCoef float64 `json:"initKLCoef" yaml:"initKLCoef"`

	// TargetKL is the adaptive controller's target divergence.
	TargetKL float64 `json:"targetKL" yaml:"targetKL"`

	// Horizon damps the adaptive controller's step size.
	Horizon float64 `json:"horizon" yaml:"horizon"`
}

// DefaultConfig returns the default PPO configuration.
func DefaultConfig() Config {
	return Config{
		BatchSize:        256,
		ForwardBatchSize: 16,
		PPOEpochs:        4,
		Gamma:            1.0,
		Lam:              0.95,
		Cliprange:        0.2,
		CliprangeValue:   0.2,
		VfCoef:           0.1,
		AdaptiveKL:       true,
		InitKLCoef:       0.2,
		TargetKL:         6.0,
		Horizon:          10000,
	}
}

// Validate checks the configuration for values the trainer cannot run with.
func (c Config) Validate() error {
	if c.BatchSize <= 0 {
		return fmt.Errorf("batchSize must be positive, got %d", c.BatchSize)
	}
	if c.ForwardBatchSize <= 0 {
		return fmt.Errorf("forwardBatchSize must be positive, got %d", c.ForwardBatchSize)
	}
	if c.PPOEpochs <= 0 {
		return fmt.Errorf("ppoEpochs must be positive, got %d", c.PPOEpochs)
	}
	if c.AdaptiveKL {
		if c.TargetKL <= 0 {
			return fmt.Errorf("targetKL must be positive for adaptive KL control, got %v", c.TargetKL)
		}
		if c.Horizon <= 0 {
			return fmt.Errorf("horizon must be positive for adaptive KL control, got %v", c.Horizon)
		}
	}
	return nil
}
