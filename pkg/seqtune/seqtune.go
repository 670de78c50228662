// Package seqtune provides the public API for the seqtune PPO core.
//
// The entry point is the Trainer, which runs one PPO optimization step
// at a time over externally generated (query, response, score) triples:
//
//	policy := seqtune.NewLinearPolicy(32, 1)
//	trainer, err := seqtune.NewTrainer(seqtune.DefaultConfig(), policy,
//	    policy.Clone(), seqtune.NewAdam(policy, 1e-2),
//	    &seqtune.RightPadCollator{}, seqtune.NewLocalFabric())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	stats, err := trainer.Step(queries, responses, scores)
package seqtune

import (
	appppo "github.com/seqtune/seqtune/internal/application/ppo"
	domain "github.com/seqtune/seqtune/internal/domain/ppo"
	"github.com/seqtune/seqtune/internal/infrastructure/fabric"
	"github.com/seqtune/seqtune/internal/infrastructure/model"
	infraPPO "github.com/seqtune/seqtune/internal/infrastructure/ppo"
	"github.com/seqtune/seqtune/internal/infrastructure/store"
)

// Re-export types for the public API.
type (
	// Core configuration and contracts
	Config        = domain.Config
	StatsRecord   = domain.StatsRecord
	TokenBatch    = domain.TokenBatch
	ForwardOutput = domain.ForwardOutput
	BackwardFunc  = domain.BackwardFunc
	Policy        = domain.Policy
	Optimizer     = domain.Optimizer
	Collator      = domain.Collator
	Fabric        = domain.Fabric
	TelemetrySink = domain.TelemetrySink
	KLController  = domain.KLController

	// Errors
	InputShapeError   = domain.InputShapeError
	DivisibilityError = domain.DivisibilityError

	// Trainer and service
	Trainer     = infraPPO.Trainer
	Service     = appppo.Service
	StepSummary = appppo.StepSummary

	// Toy model stack
	LinearPolicy     = model.LinearPolicy
	Adam             = model.Adam
	MomentumSGD      = model.MomentumSGD
	RightPadCollator = model.RightPadCollator

	// Persistence
	StatsStore       = store.StatsStore
	StatsStoreConfig = store.StatsStoreConfig
)

// DefaultConfig returns the default PPO configuration.
func DefaultConfig() Config {
	return domain.DefaultConfig()
}

// NewTrainer creates a PPO trainer; see the infrastructure package for
// the collaborator contracts.
func NewTrainer(config Config, policy, ref Policy, opt Optimizer, collator Collator, fab Fabric) (*Trainer, error) {
	return infraPPO.NewTrainer(config, policy, ref, opt, collator, fab)
}

// NewFixedKLController creates a constant-coefficient KL controller.
func NewFixedKLController(klCoef float64) KLController {
	return infraPPO.NewFixedKLController(klCoef)
}

// NewAdaptiveKLController creates a damped proportional KL controller.
func NewAdaptiveKLController(initKLCoef, target, horizon float64) KLController {
	return infraPPO.NewAdaptiveKLController(initKLCoef, target, horizon)
}

// NewLinearPolicy creates the built-in toy policy.
func NewLinearPolicy(vocabSize int, seed int64) *LinearPolicy {
	return model.NewLinearPolicy(vocabSize, seed)
}

// NewAdam creates an Adam optimizer bound to a linear policy.
func NewAdam(policy *LinearPolicy, lr float64) *Adam {
	return model.NewAdam(policy, lr)
}

// NewMomentumSGD creates a momentum optimizer bound to a linear policy.
func NewMomentumSGD(policy *LinearPolicy, lr float64) *MomentumSGD {
	return model.NewMomentumSGD(policy, lr)
}

// NewLocalFabric creates the single-worker fabric.
func NewLocalFabric() Fabric {
	return fabric.NewLocal()
}

// NewWorkerGroup creates an in-memory fabric group of n workers.
func NewWorkerGroup(n int) *fabric.Group {
	return fabric.NewGroup(n)
}

// NewStatsStore opens a step-stats store bound to a run ID.
func NewStatsStore(config StatsStoreConfig, runID string) (*StatsStore, error) {
	return store.NewStatsStore(config, runID)
}
