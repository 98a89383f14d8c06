// Package main provides the CLI entry point for the personal AI assistant
// runtime: a single-user agent loop with long-term memory, a personal task
// manager, and a hybrid cron/heartbeat/event scheduler.
//
// # Basic Usage
//
// Start the interactive agent loop:
//
//	nexus-assistant serve --config assistant.yaml
//
// Manage tasks directly without going through the agent loop:
//
//	nexus-assistant task list
//	nexus-assistant task create "Renew passport" --due 2026-09-01
//
// Search or add to long-term memory directly:
//
//	nexus-assistant memory search "passport renewal"
//	nexus-assistant memory remember "Passport expires 2026-09-01"
//
// # Environment Variables
//
//   - NEXUS_ASSISTANT_CONFIG: path to the configuration file (default: assistant.yaml)
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Build information, populated by ldflags during build.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"

	configPath string
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := buildRootCmd().Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "nexus-assistant",
		Short: "A personal AI assistant with long-term memory, tasks, and scheduling",
		Long: `nexus-assistant runs a single-user agent loop backed by long-term memory,
a personal task manager, and a hybrid cron/heartbeat/event scheduler.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to configuration file (default: assistant.yaml, or $NEXUS_ASSISTANT_CONFIG)")

	root.AddCommand(
		buildServeCmd(),
		buildTaskCmd(),
		buildMemoryCmd(),
	)
	return root
}

func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	if env := os.Getenv("NEXUS_ASSISTANT_CONFIG"); env != "" {
		return env
	}
	return "assistant.yaml"
}
