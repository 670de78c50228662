// Package commands provides CLI command implementations.
package commands

import (
	"fmt"
	"math/rand"
	"os"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	appPPO "github.com/seqtune/seqtune/internal/application/ppo"
	domain "github.com/seqtune/seqtune/internal/domain/ppo"
	"github.com/seqtune/seqtune/internal/infrastructure/fabric"
	"github.com/seqtune/seqtune/internal/infrastructure/model"
	infraPPO "github.com/seqtune/seqtune/internal/infrastructure/ppo"
	"github.com/seqtune/seqtune/internal/infrastructure/store"
)

// Flag variables for the train command
var (
	trainSteps        int
	trainBatchSize    int
	trainEpochs       int
	trainVocabSize    int
	trainLearningRate float64
	trainAdaptiveKL   bool
	trainSeed         int64
	trainConfigFile   string
	trainStatsDB      string
	trainVerbose      bool
)

// TrainCmd runs a PPO training demo on synthetic data. The "environment"
// rewards responses for containing the target token, so the demo shows
// the score rising while the KL penalty holds the policy near the
// reference.
var TrainCmd = &cobra.Command{
	Use:   "train",
	Short: "Run a PPO training demo on synthetic sequences",
	RunE:  runTrain,
}

func init() {
	TrainCmd.Flags().IntVar(&trainSteps, "steps", 20, "Number of outer PPO steps")
	TrainCmd.Flags().IntVar(&trainBatchSize, "batch-size", 16, "Examples per step")
	TrainCmd.Flags().IntVar(&trainEpochs, "epochs", 4, "PPO epochs per step")
	TrainCmd.Flags().IntVar(&trainVocabSize, "vocab", 16, "Vocabulary size of the toy policy")
	TrainCmd.Flags().Float64Var(&trainLearningRate, "lr", 0.01, "Learning rate")
	TrainCmd.Flags().BoolVar(&trainAdaptiveKL, "adaptive-kl", true, "Use the adaptive KL controller")
	TrainCmd.Flags().Int64Var(&trainSeed, "seed", 42, "Random seed for the toy policy and data")
	TrainCmd.Flags().StringVar(&trainConfigFile, "config", "", "YAML config file (overrides flags for ppo/store sections)")
	TrainCmd.Flags().StringVar(&trainStatsDB, "stats-db", "", "SQLite path for persisting step stats (empty disables)")
	TrainCmd.Flags().BoolVar(&trainVerbose, "verbose", false, "Structured per-step logging")
}

func runTrain(cmd *cobra.Command, args []string) error {
	cfg := appPPO.DefaultFileConfig()
	if trainConfigFile != "" {
		loaded, err := appPPO.LoadFileConfig(trainConfigFile)
		if err != nil {
			return err
		}
		cfg = loaded
	} else {
		cfg.PPO.BatchSize = trainBatchSize
		cfg.PPO.ForwardBatchSize = forwardBatchFor(trainBatchSize)
		cfg.PPO.PPOEpochs = trainEpochs
		cfg.PPO.AdaptiveKL = trainAdaptiveKL
	}

	policy := model.NewLinearPolicy(trainVocabSize, trainSeed)
	ref := policy.Clone()
	opt := model.NewAdam(policy, trainLearningRate)
	collator := &model.RightPadCollator{PadID: 0}

	trainer, err := infraPPO.NewTrainer(cfg.PPO, policy, ref, opt, collator, fabric.NewLocal())
	if err != nil {
		return err
	}

	logger := zap.NewNop()
	if trainVerbose {
		logger, err = zap.NewDevelopment()
		if err != nil {
			return err
		}
		defer logger.Sync()
	}

	runID := uuid.NewString()
	var sinks []domain.TelemetrySink
	if trainStatsDB != "" {
		storeCfg := cfg.Store
		storeCfg.DSN = trainStatsDB
		statsStore, err := store.NewStatsStore(storeCfg, runID)
		if err != nil {
			return err
		}
		defer statsStore.Close()
		sinks = append(sinks, statsStore)
	}
	service := appPPO.NewServiceWithRunID(runID, trainer, logger, sinks...)

	rng := rand.New(rand.NewSource(trainSeed))
	targetToken := int64(trainVocabSize - 1)

	fmt.Printf("run %s: %d steps, batch %d, vocab %d\n", service.RunID(), trainSteps, cfg.PPO.BatchSize, trainVocabSize)
	for i := 0; i < trainSteps; i++ {
		queries, responses, scores := syntheticBatch(rng, cfg.PPO.BatchSize, trainVocabSize, targetToken)
		if _, err := service.Step(queries, responses, scores); err != nil {
			return err
		}
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STEP\tKL\tKL_COEF\tPOLICY_LOSS\tVALUE_LOSS\tMS")
	for _, s := range service.History() {
		fmt.Fprintf(w, "%d\t%.4f\t%.4f\t%.4f\t%.4f\t%.1f\n", s.Step, s.KL, s.KLCoef, s.PolicyLoss, s.ValueLoss, s.ElapsedMs)
	}
	return w.Flush()
}

// forwardBatchFor picks the largest forward sub-batch up to 8 that
// evenly divides the batch size.
func forwardBatchFor(batchSize int) int {
	for fbs := 8; fbs > 1; fbs-- {
		if batchSize%fbs == 0 {
			return fbs
		}
	}
	return 1
}

// syntheticBatch generates random query/response pairs and scores each
// response by whether it contains the target token.
func syntheticBatch(rng *rand.Rand, batchSize, vocabSize int, targetToken int64) (queries, responses [][]int64, scores []float64) {
	queries = make([][]int64, batchSize)
	responses = make([][]int64, batchSize)
	scores = make([]float64, batchSize)
	for i := 0; i < batchSize; i++ {
		qLen := 2 + rng.Intn(4)
		rLen := 1 + rng.Intn(5)
		queries[i] = randomTokens(rng, qLen, vocabSize)
		responses[i] = randomTokens(rng, rLen, vocabSize)
		scores[i] = -1.0
		for _, tok := range responses[i] {
			if tok == targetToken {
				scores[i] = 1.0
				break
			}
		}
	}
	return queries, responses, scores
}

func randomTokens(rng *rand.Rand, n, vocabSize int) []int64 {
	out := make([]int64, n)
	for i := range out {
		out[i] = int64(rng.Intn(vocabSize))
	}
	return out
}
