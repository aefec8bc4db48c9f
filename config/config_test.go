package config

import (
	"strings"
	"testing"
)

func validConfig() Config {
	return Config{
		Model:        "SimpleCNN",
		BatchSize:    512,
		LearningRate: 0.1,
		Epochs:       5,
		NumWorkers:   4,
		Device:       "auto",
		DataDir:      "./data",
		OODDir:       "./data/ood-test",
	}
}

func TestValidateAcceptsCompleteConfig(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing model", func(c *Config) { c.Model = "" }},
		{"zero batch size", func(c *Config) { c.BatchSize = 0 }},
		{"negative batch size", func(c *Config) { c.BatchSize = -8 }},
		{"zero learning rate", func(c *Config) { c.LearningRate = 0 }},
		{"zero epochs", func(c *Config) { c.Epochs = 0 }},
		{"missing data dir", func(c *Config) { c.DataDir = "" }},
	}

	for _, tt := range tests {
		cfg := validConfig()
		tt.mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error, got nil", tt.name)
		}
	}
}

func TestValidateFillsDefaults(t *testing.T) {
	cfg := validConfig()
	cfg.NumWorkers = 0
	cfg.Device = ""
	cfg.CheckpointDir = ""

	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.NumWorkers != 1 {
		t.Errorf("expected default workers 1, got %d", cfg.NumWorkers)
	}
	if cfg.Device != "auto" {
		t.Errorf("expected default device auto, got %q", cfg.Device)
	}
	if cfg.CheckpointDir != "checkpoints" {
		t.Errorf("expected default checkpoint dir, got %q", cfg.CheckpointDir)
	}
}

func TestMapCarriesTrackerKeys(t *testing.T) {
	cfg := validConfig()
	m := cfg.Map()

	for _, key := range []string{"model", "batch_size", "learning_rate", "epochs", "num_workers", "device", "seed"} {
		if _, ok := m[key]; !ok {
			t.Errorf("config map missing key %q", key)
		}
	}
	if m["batch_size"] != 512 {
		t.Errorf("expected batch_size 512, got %v", m["batch_size"])
	}
}

func TestStringListsEveryKnob(t *testing.T) {
	cfg := validConfig()
	s := cfg.String()
	for _, want := range []string{"SimpleCNN", "batch_size", "learning_rate", "device"} {
		if !strings.Contains(s, want) {
			t.Errorf("config string missing %q:\n%s", want, s)
		}
	}
}
