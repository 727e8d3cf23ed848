// Package config loads engine configuration from a TOML file, falling back
// to defaults for anything unset. Every tuning threshold the engine uses
// lives here rather than as a constant.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the full engine configuration.
type Config struct {
	Store       StoreConfig       `toml:"store"`
	Embedding   EmbeddingConfig   `toml:"embedding"`
	Search      SearchConfig      `toml:"search"`
	Consolidate ConsolidateConfig `toml:"consolidate"`
	Surface     SurfaceConfig     `toml:"surface"`
}

// StoreConfig locates the database.
type StoreConfig struct {
	Path string `toml:"path"`
}

// EmbeddingConfig selects and tunes the embedding provider.
type EmbeddingConfig struct {
	Provider       string `toml:"provider"` // "ollama", "openai", or "" (disabled)
	Model          string `toml:"model"`
	BaseURL        string `toml:"base_url"`
	Dimensions     int    `toml:"dimensions"`
	RetryAttempts  int    `toml:"retry_attempts"`
	RetryBackoffMS int    `toml:"retry_backoff_ms"`
}

// SearchConfig tunes the semantic index.
type SearchConfig struct {
	// Floor is the minimum cosine similarity for a search hit. Results
	// below it are excluded, not ranked last.
	Floor float64 `toml:"floor"`
}

// ConsolidateConfig tunes the merge/prune/promote pass.
type ConsolidateConfig struct {
	MergeThreshold         float64 `toml:"merge_threshold"`
	PruneSalienceFloor     float64 `toml:"prune_salience_floor"`
	PruneRetentionDays     int     `toml:"prune_retention_days"`
	PromoteAccessThreshold int     `toml:"promote_access_threshold"`
	PromoteWindowDays      int     `toml:"promote_window_days"`
	ActiveSoftCap          int     `toml:"active_soft_cap"`
}

// SurfaceConfig tunes predictive surfacing.
type SurfaceConfig struct {
	ConflictThreshold  float64 `toml:"conflict_threshold"`
	EntityConfidence   float64 `toml:"entity_confidence"`
	SemanticConfidence float64 `toml:"semantic_confidence"`
	TemporalConfidence float64 `toml:"temporal_confidence"`
	MinConfidence      float64 `toml:"min_confidence"`
	LearningBias       float64 `toml:"learning_bias"`
}

// Default returns a fully-populated Config with the documented defaults.
func Default() Config {
	home, _ := os.UserHomeDir()
	return Config{
		Store: StoreConfig{
			Path: filepath.Join(home, ".agent-memory", "memory.db"),
		},
		Embedding: EmbeddingConfig{
			Provider:       "ollama",
			Model:          "all-minilm",
			Dimensions:     384,
			RetryAttempts:  3,
			RetryBackoffMS: 250,
		},
		Search: SearchConfig{
			Floor: 0.15,
		},
		Consolidate: ConsolidateConfig{
			MergeThreshold:         0.85,
			PruneSalienceFloor:     0.3,
			PruneRetentionDays:     30,
			PromoteAccessThreshold: 3,
			PromoteWindowDays:      7,
			ActiveSoftCap:          32,
		},
		Surface: SurfaceConfig{
			ConflictThreshold:  0.75,
			EntityConfidence:   0.85,
			SemanticConfidence: 0.65,
			TemporalConfidence: 0.4,
			MinConfidence:      0.3,
			LearningBias:       0.05,
		},
	}
}

// Load reads the config file at path. A missing file is not an error:
// callers always receive a fully-populated Config, with file values
// overriding defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}
