// Package cli implements the agent-memory CLI commands.
package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/g1itchbot8888-del/agent-memory/internal/config"
	"github.com/g1itchbot8888-del/agent-memory/internal/embedding"
	"github.com/g1itchbot8888-del/agent-memory/internal/logger"
	"github.com/g1itchbot8888-del/agent-memory/internal/store"
)

var (
	dbPath     string
	configPath string
	debugFlag  bool
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "agent-memory",
	Short: "Persistent tiered memory for AI agents",
	Long:  "A memory engine for autonomous agents. Tiered records, semantic recall, relation graph, consolidation. SQLite-backed, single binary.",
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Database path (default: $AGENT_MEMORY_DB or ~/.agent-memory/memory.db)")
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (default: $AGENT_MEMORY_CONFIG or ~/.agent-memory/config.toml)")
	RootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "Verbose logging")
}

func loadConfig() config.Config {
	path := configPath
	if path == "" {
		path = os.Getenv("AGENT_MEMORY_CONFIG")
	}
	if path == "" {
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, ".agent-memory", "config.toml")
	}
	cfg, err := config.Load(path)
	if err != nil {
		exitErr("load config", err)
	}
	if dbPath != "" {
		cfg.Store.Path = dbPath
	} else if env := os.Getenv("AGENT_MEMORY_DB"); env != "" {
		cfg.Store.Path = env
	}
	return cfg
}

func newLogger() *slog.Logger {
	return logger.New(logger.WithWriter(os.Stderr), logger.WithDebug(debugFlag))
}

func newEmbedder(cfg config.Config) embedding.Embedder {
	var base embedding.Embedder
	switch cfg.Embedding.Provider {
	case "ollama":
		base = embedding.NewOllamaEmbedder(cfg.Embedding.BaseURL, cfg.Embedding.Model, cfg.Embedding.Dimensions)
	case "openai":
		base = embedding.NewOpenAIEmbedder(cfg.Embedding.BaseURL, os.Getenv("OPENAI_API_KEY"), cfg.Embedding.Model, cfg.Embedding.Dimensions)
	default:
		return nil
	}
	backoff := time.Duration(cfg.Embedding.RetryBackoffMS) * time.Millisecond
	return embedding.WithRetry(base, cfg.Embedding.RetryAttempts, backoff)
}

func openStore() (*store.Store, config.Config, error) {
	cfg := loadConfig()
	s, err := store.New(cfg, newEmbedder(cfg), newLogger())
	return s, cfg, err
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
