package ppo

import (
	"math/rand"
	"time"

	domain "github.com/seqtune/seqtune/internal/domain/ppo"
)

// Trainer runs PPO optimization steps over a sequence-generation policy.
// It owns the KL controller; everything else is an injected collaborator.
type Trainer struct {
	config   domain.Config
	policy   domain.Policy
	ref      domain.Policy
	opt      domain.Optimizer
	collator domain.Collator
	fabric   domain.Fabric
	klCtl    domain.KLController
	rng      *rand.Rand
}

// NewTrainer creates a trainer. The reference policy is never updated;
// the optimizer must be bound to the live policy's parameters.
func NewTrainer(config domain.Config, policy, ref domain.Policy, opt domain.Optimizer, collator domain.Collator, fabric domain.Fabric) (*Trainer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Trainer{
		config:   config,
		policy:   policy,
		ref:      ref,
		opt:      opt,
		collator: collator,
		fabric:   fabric,
		klCtl:    NewKLController(config),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// KLCoef returns the KL penalty coefficient currently in effect.
func (t *Trainer) KLCoef() float64 {
	return t.klCtl.Value()
}

// Step runs one full PPO optimization step: forward pass, reward
// shaping, PPOEpochs epochs of shuffled single-example minibatch
// updates, stat aggregation, and the KL controller update. The returned
// record's "objective/kl_coef" is the coefficient that shaped this
// step's rewards, not the post-update one.
func (t *Trainer) Step(queries, responses [][]int64, scores []float64) (domain.StatsRecord, error) {
	bs := t.config.BatchSize
	if err := validateInputs(bs, queries, responses, scores); err != nil {
		return nil, err
	}

	klCoef := t.klCtl.Value()

	logprobs, refLogprobs, values, err := t.batchedForwardPass(queries, responses)
	if err != nil {
		return nil, err
	}

	rewards, nonScoreRewards := computeRewards(klCoef, scores, logprobs, refLogprobs)

	allStats := make([]domain.StatsRecord, 0, bs*t.config.PPOEpochs)
	idxs := make([]int, bs)
	for i := range idxs {
		idxs[i] = i
	}
	for epoch := 0; epoch < t.config.PPOEpochs; epoch++ {
		t.rng.Shuffle(bs, func(i, j int) { idxs[i], idxs[j] = idxs[j], idxs[i] })
		for _, idx := range idxs {
			stats, err := t.trainMinibatch(
				logprobs[idx], values[idx], rewards[idx],
				responses[idx], concat(queries[idx], responses[idx]),
			)
			if err != nil {
				return nil, err
			}
			allStats = append(allStats, stats)
		}
	}

	trainStats := stackStats(allStats)
	// Advantages and ratio stay flattened per-token for distribution
	// diagnostics; only advantages are NaN-sanitized.
	sanitizeStat(trainStats, "policy/advantages", advantageSentinel)

	record := t.recordStepStats(scores, logprobs, refLogprobs, nonScoreRewards, trainStats, klCoef)
	if t.fabric.NumWorkers() > 1 {
		record = t.gatherStats(record)
	}

	meanKL, _ := record.Scalar("objective/kl")
	t.klCtl.Update(meanKL, bs*t.fabric.NumWorkers())

	return record, nil
}

// trainMinibatch computes the loss for one example, backpropagates, and
// steps the optimizer immediately.
func (t *Trainer) trainMinibatch(oldLogprobs, values, rewards []float64, response, modelInput []int64) (domain.StatsRecord, error) {
	res, err := t.loss(oldLogprobs, values, rewards, response, modelInput)
	if err != nil {
		return nil, err
	}
	t.opt.ZeroGrad()
	if err := res.backprop(); err != nil {
		return nil, err
	}
	t.opt.Step()
	return res.stats, nil
}

// validateInputs checks the step inputs before any computation runs.
func validateInputs(batchSize int, queries, responses [][]int64, scores []float64) error {
	if len(queries) != batchSize {
		return &domain.InputShapeError{Field: "queries", Expected: batchSize, Got: len(queries)}
	}
	if len(responses) != batchSize {
		return &domain.InputShapeError{Field: "responses", Expected: batchSize, Got: len(responses)}
	}
	if len(scores) != batchSize {
		return &domain.InputShapeError{Field: "scores", Expected: batchSize, Got: len(scores)}
	}
	for i, q := range queries {
		if len(q) < 2 {
			return &domain.InputShapeError{Field: "queries", Reason: "each query needs at least 2 tokens to anchor the value window", Got: len(q), Expected: 2}
		}
		if len(responses[i]) == 0 {
			return &domain.InputShapeError{Field: "responses", Reason: "empty response", Expected: 1}
		}
	}
	return nil
}
