// Package ppo implements the PPO optimization core: KL control, reward
// shaping, batched forward passes, GAE, the clipped loss, and the
// epoch/minibatch training loop.
package ppo

import domain "github.com/seqtune/seqtune/internal/domain/ppo"

// FixedKLController keeps the KL coefficient constant.
type FixedKLController struct {
	value float64
}

// NewFixedKLController creates a fixed controller with the given coefficient.
func NewFixedKLController(klCoef float64) *FixedKLController {
	return &FixedKLController{value: klCoef}
}

// Update is a no-op for the fixed controller.
func (c *FixedKLController) Update(currentKL float64, batchSize int) {}

// Value returns the constant coefficient.
func (c *FixedKLController) Value() float64 {
	return c.value
}

// AdaptiveKLController nudges the KL coefficient toward a target
// divergence with a damped proportional update.
type AdaptiveKLController struct {
	value   float64
	target  float64
	horizon float64
}

// NewAdaptiveKLController creates an adaptive controller. The caller
// guarantees target > 0 and horizon > 0.
func NewAdaptiveKLController(initKLCoef, target, horizon float64) *AdaptiveKLController {
	return &AdaptiveKLController{
		value:   initKLCoef,
		target:  target,
		horizon: horizon,
	}
}

// Update scales the coefficient by a factor proportional to how far the
// observed KL sits from the target. The proportional error is clipped to
// [-0.2, 0.2] and the step size is scaled by batchSize/horizon so that
// the effective batch size drives the adjustment magnitude.
func (c *AdaptiveKLController) Update(currentKL float64, batchSize int) {
	proportionalError := clip(currentKL/c.target-1, -0.2, 0.2)
	multiplier := 1 + proportionalError*float64(batchSize)/c.horizon
	c.value *= multiplier
}

// Value returns the current coefficient.
func (c *AdaptiveKLController) Value() float64 {
	return c.value
}

// NewKLController selects a controller variant from the configuration.
func NewKLController(config domain.Config) domain.KLController {
	if config.AdaptiveKL {
		return NewAdaptiveKLController(config.InitKLCoef, config.TargetKL, config.Horizon)
	}
	return NewFixedKLController(config.InitKLCoef)
}
