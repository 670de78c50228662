// Package ppo provides the application service that wraps the PPO
// trainer with run tracking, logging, and telemetry fan-out.
package ppo

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	domain "github.com/seqtune/seqtune/internal/domain/ppo"
	infra "github.com/seqtune/seqtune/internal/infrastructure/ppo"
)

// Service drives a training run: it owns the trainer, assigns a run ID,
// fans step statistics out to attached sinks, and keeps a step history.
type Service struct {
	mu sync.Mutex

	runID   string
	trainer *infra.Trainer
	sinks   []domain.TelemetrySink
	logger  *zap.Logger

	stepCount int
	history   []StepSummary
	startTime time.Time
}

// StepSummary is the in-memory record of one completed step.
type StepSummary struct {
	Step       int     `json:"step"`
	KL         float64 `json:"kl"`
	KLCoef     float64 `json:"klCoef"`
	PolicyLoss float64 `json:"policyLoss"`
	ValueLoss  float64 `json:"valueLoss"`
	ElapsedMs  float64 `json:"elapsedMs"`
}

// NewService creates a service around a trainer with a fresh run ID. A
// nil logger disables logging; sinks may be empty.
func NewService(trainer *infra.Trainer, logger *zap.Logger, sinks ...domain.TelemetrySink) *Service {
	return NewServiceWithRunID(uuid.NewString(), trainer, logger, sinks...)
}

// NewServiceWithRunID creates a service bound to an existing run ID, so
// callers can share the ID with sinks created ahead of the service.
func NewServiceWithRunID(runID string, trainer *infra.Trainer, logger *zap.Logger, sinks ...domain.TelemetrySink) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		runID:     runID,
		trainer:   trainer,
		sinks:     sinks,
		logger:    logger,
		startTime: time.Now(),
	}
}

// RunID returns the run identifier assigned at construction.
func (s *Service) RunID() string {
	return s.runID
}

// Step runs one PPO optimization step and records its statistics. Sink
// failures abort the step's recording but the optimization itself has
// already been applied; the error reports which sink failed.
func (s *Service) Step(queries, responses [][]int64, scores []float64) (domain.StatsRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	record, err := s.trainer.Step(queries, responses, scores)
	if err != nil {
		s.logger.Error("ppo step failed", zap.String("runId", s.runID), zap.Int("step", s.stepCount), zap.Error(err))
		return nil, err
	}
	elapsed := float64(time.Since(start).Microseconds()) / 1000.0

	step := s.stepCount
	s.stepCount++

	kl, _ := record.Scalar("objective/kl")
	klCoef, _ := record.Scalar("objective/kl_coef")
	policyLoss, _ := record.Scalar("ppo/loss/policy")
	valueLoss, _ := record.Scalar("ppo/loss/value")

	s.history = append(s.history, StepSummary{
		Step:       step,
		KL:         kl,
		KLCoef:     klCoef,
		PolicyLoss: policyLoss,
		ValueLoss:  valueLoss,
		ElapsedMs:  elapsed,
	})

	s.logger.Info("ppo step",
		zap.String("runId", s.runID),
		zap.Int("step", step),
		zap.Float64("kl", kl),
		zap.Float64("klCoef", klCoef),
		zap.Float64("policyLoss", policyLoss),
		zap.Float64("valueLoss", valueLoss),
		zap.Float64("elapsedMs", elapsed),
	)

	for _, sink := range s.sinks {
		if err := sink.Record(step, record); err != nil {
			return record, fmt.Errorf("telemetry sink failed at step %d: %w", step, err)
		}
	}
	return record, nil
}

// History returns a copy of the per-step summaries so far.
func (s *Service) History() []StepSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]StepSummary, len(s.history))
	copy(out, s.history)
	return out
}

// StepCount returns the number of completed steps.
func (s *Service) StepCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stepCount
}
