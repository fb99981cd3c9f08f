// Package main implements the retailtasks binary: the HTTP API server and
// the maintenance commands that run against the same database.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yukikurage/retail-tasks/internal/config"
	"github.com/yukikurage/retail-tasks/internal/database"
	"github.com/yukikurage/retail-tasks/internal/logging"
)

var (
	// configPath points at an optional YAML config file
	configPath string
	version    = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "retailtasks",
	Short: "Retail task visibility service",
	Long: `retailtasks serves the retail task API and runs maintenance jobs
against its database.

Configuration is read from an optional YAML file and overridden by
environment variables (DB_HOST, REDIS_PORT, OPENAI_API_KEY, ...).`,
	Version:      version,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to YAML config file (ignored when missing)")
}

// bootstrap loads config, builds the logger and opens the database.
func bootstrap() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build logger: %w", err)
	}

	if err := database.Connect(cfg, logger); err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
