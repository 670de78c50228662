package ppo

import "testing"

func TestDefaultConfigValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"zero batch size", func(c *Config) { c.BatchSize = 0 }, true},
		{"negative forward batch", func(c *Config) { c.ForwardBatchSize = -1 }, true},
		{"zero epochs", func(c *Config) { c.PPOEpochs = 0 }, true},
		{"adaptive with zero target", func(c *Config) { c.TargetKL = 0 }, true},
		{"adaptive with zero horizon", func(c *Config) { c.Horizon = 0 }, true},
		{"fixed ignores target", func(c *Config) { c.AdaptiveKL = false; c.TargetKL = 0 }, false},
		{"valid", func(c *Config) {}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}
