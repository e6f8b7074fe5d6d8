// Command assistantd is the personal assistant daemon: it loads
// configuration, wires the LLM router, tool registry, agent orchestrator,
// scheduler, workflow engine, file watchdog, and notification dispatcher
// together, and serves HTTP (health, webhooks, metrics).
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
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "assistantd",
		Short:        "Personal assistant agent-orchestration daemon",
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}
	rootCmd.AddCommand(
		buildServeCmd(),
		buildScheduleCmd(),
		buildAgentsCmd(),
	)
	return rootCmd
}
