package ppo

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	domain "github.com/seqtune/seqtune/internal/domain/ppo"
	"github.com/seqtune/seqtune/internal/infrastructure/store"
)

// FileConfig is the on-disk configuration consumed by the CLI.
type FileConfig struct {
	PPO   domain.Config          `yaml:"ppo"`
	Store store.StatsStoreConfig `yaml:"store"`
}

// DefaultFileConfig returns the defaults for both sections.
func DefaultFileConfig() FileConfig {
	return FileConfig{
		PPO:   domain.DefaultConfig(),
		Store: store.DefaultStatsStoreConfig(),
	}
}

// LoadFileConfig reads a YAML configuration file over the defaults.
func LoadFileConfig(path string) (FileConfig, error) {
	cfg := DefaultFileConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.PPO.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid ppo config: %w", err)
	}
	return cfg, nil
}
