// Package store provides SQL persistence for training-step statistics.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	domain "github.com/seqtune/seqtune/internal/domain/ppo"
)

// StatsStoreConfig configures the stats store.
type StatsStoreConfig struct {
	// Driver selects the SQL driver: "sqlite" (default) or "postgres".
	Driver string `json:"driver" yaml:"driver"`

	// DSN is the data source name. Defaults to an in-memory SQLite
	// database.
	DSN string `json:"dsn" yaml:"dsn"`

	// MaxSteps is the maximum number of step rows to keep per run.
	// Zero disables pruning.
	MaxSteps int `json:"maxSteps" yaml:"maxSteps"`
}

// DefaultStatsStoreConfig returns the default configuration.
func DefaultStatsStoreConfig() StatsStoreConfig {
	return StatsStoreConfig{
		Driver:   "sqlite",
		DSN:      ":memory:",
		MaxSteps: 100000,
	}
}

// StatsStore persists one row per training step and serves as a
// TelemetrySink for a single run.
type StatsStore struct {
	mu     sync.Mutex
	db     *sql.DB
	config StatsStoreConfig
	runID  string
}

// NewStatsStore opens the database, initializes the schema, and binds
// the store to the given run ID.
func NewStatsStore(config StatsStoreConfig, runID string) (*StatsStore, error) {
	if config.Driver == "" {
		config.Driver = "sqlite"
	}
	if config.DSN == "" {
		config.DSN = ":memory:"
	}
	db, err := sql.Open(config.Driver, config.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open stats database: %w", err)
	}

	s := &StatsStore{db: db, config: config, runID: runID}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize stats schema: %w", err)
	}
	return s, nil
}

func (s *StatsStore) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS step_stats (
			run_id TEXT NOT NULL,
			step INTEGER NOT NULL,
			kl REAL,
			kl_coef REAL,
			policy_loss REAL,
			value_loss REAL,
			record_json TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			PRIMARY KEY (run_id, step)
		);
		CREATE INDEX IF NOT EXISTS idx_step_stats_run ON step_stats(run_id, step);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record implements the TelemetrySink contract.
func (s *StatsStore) Record(step int, stats domain.StatsRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.Marshal(jsonSafe(stats))
	if err != nil {
		return fmt.Errorf("failed to encode stats record: %w", err)
	}
	kl, _ := stats.Scalar("objective/kl")
	klCoef, _ := stats.Scalar("objective/kl_coef")
	policyLoss, _ := stats.Scalar("ppo/loss/policy")
	valueLoss, _ := stats.Scalar("ppo/loss/value")

	_, err = s.db.Exec(
		`INSERT INTO step_stats (run_id, step, kl, kl_coef, policy_loss, value_loss, record_json, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		s.runID, step, kl, klCoef, policyLoss, valueLoss, string(payload), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert step stats: %w", err)
	}
	return s.pruneLocked()
}

func (s *StatsStore) pruneLocked() error {
	if s.config.MaxSteps <= 0 {
		return nil
	}
	_, err := s.db.Exec(
		`DELETE FROM step_stats WHERE run_id = $1 AND step <= (
			SELECT step FROM step_stats WHERE run_id = $1
			ORDER BY step DESC LIMIT 1 OFFSET $2
		)`,
		s.runID, s.config.MaxSteps,
	)
	return err
}

// jsonSafe replaces non-finite floats with JSON null so a record with
// NaN/Inf diagnostics still persists.
func jsonSafe(stats domain.StatsRecord) map[string]any {
	out := make(map[string]any, len(stats))
	for k, v := range stats {
		switch val := v.(type) {
		case float64:
			if math.IsNaN(val) || math.IsInf(val, 0) {
				out[k] = nil
			} else {
				out[k] = val
			}
		case []float64:
			seq := make([]any, len(val))
			for i, f := range val {
				if math.IsNaN(f) || math.IsInf(f, 0) {
					seq[i] = nil
				} else {
					seq[i] = f
				}
			}
			out[k] = seq
		default:
			out[k] = v
		}
	}
	return out
}

// StepRow is one persisted step summary.
type StepRow struct {
	RunID      string  `json:"runId"`
	Step       int     `json:"step"`
	KL         float64 `json:"kl"`
	KLCoef     float64 `json:"klCoef"`
	PolicyLoss float64 `json:"policyLoss"`
	ValueLoss  float64 `json:"valueLoss"`
}

// Steps returns the persisted step summaries for the bound run in step
// order.
func (s *StatsStore) Steps() ([]StepRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(
		`SELECT run_id, step, kl, kl_coef, policy_loss, value_loss
		 FROM step_stats WHERE run_id = $1 ORDER BY step`,
		s.runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query step stats: %w", err)
	}
	defer rows.Close()

	var out []StepRow
	for rows.Next() {
		var r StepRow
		if err := rows.Scan(&r.RunID, &r.Step, &r.KL, &r.KLCoef, &r.PolicyLoss, &r.ValueLoss); err != nil {
			return nil, fmt.Errorf("failed to scan step stats row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Load returns the full StatsRecord persisted for one step.
func (s *StatsStore) Load(step int) (domain.StatsRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var payload string
	err := s.db.QueryRow(
		`SELECT record_json FROM step_stats WHERE run_id = $1 AND step = $2`,
		s.runID, step,
	).Scan(&payload)
	if err != nil {
		return nil, fmt.Errorf("failed to load step %d: %w", step, err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, fmt.Errorf("failed to decode step %d: %w", step, err)
	}
	record := domain.StatsRecord{}
	for k, v := range raw {
		var scalar float64
		if err := json.Unmarshal(v, &scalar); err == nil {
			record[k] = scalar
			continue
		}
		var seq []float64
		if err := json.Unmarshal(v, &seq); err == nil {
			record[k] = seq
		}
	}
	return record, nil
}

// Close closes the underlying database.
func (s *StatsStore) Close() error {
	return s.db.Close()
}
