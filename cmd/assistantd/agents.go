package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kestrelai/assistant/internal/agents"
	"github.com/kestrelai/assistant/internal/config"
)

func buildAgentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agents",
		Short: "Inspect and reload sub-agent definitions",
	}
	cmd.AddCommand(buildAgentsListCmd(), buildAgentsReloadCmd())
	return cmd
}

func loadAgentsDir(configPath string) (*agents.Loader, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	agentsDir := filepath.Join(cfg.DataDir, "agents")
	if err := os.MkdirAll(agentsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create agents dir: %w", err)
	}
	loader := agents.NewLoader(agentsDir, slog.Default())
	if err := loader.LoadAll(); err != nil {
		return nil, fmt.Errorf("load agents: %w", err)
	}
	return loader, nil
}

func buildAgentsListCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List configured sub-agent definitions",
		RunE: func(cmd *cobra.Command, args []string) error {
			loader, err := loadAgentsDir(configPath)
			if err != nil {
				return err
			}
			defs := loader.List()
			out := cmd.OutOrStdout()
			if len(defs) == 0 {
				fmt.Fprintln(out, "No agents configured.")
				return nil
			}
			for _, def := range defs {
				fmt.Fprintf(out, "%s  delegate=%v  model=%s  %s\n", def.Name, def.CanDelegate, def.Model, def.Description)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "assistant.yaml", "Path to YAML configuration file")
	return cmd
}

func buildAgentsReloadCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "reload",
		Short: "Re-read agent definitions from disk",
		RunE: func(cmd *cobra.Command, args []string) error {
			loader, err := loadAgentsDir(configPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Reloaded %d agent definitions.\n", len(loader.List()))
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "assistant.yaml", "Path to YAML configuration file")
	return cmd
}
