package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/kestrelai/assistant/internal/config"
	"github.com/kestrelai/assistant/internal/scheduler"
	"github.com/kestrelai/assistant/pkg/models"
)

func buildScheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Inspect and manage scheduled jobs",
	}
	cmd.AddCommand(buildScheduleListCmd(), buildScheduleAddCmd(), buildScheduleRemoveCmd())
	return cmd
}

func openScheduleStore(configPath string) (scheduler.Store, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	store, err := scheduler.NewSQLiteStore(filepath.Join(cfg.DataDir, "scheduler.db"))
	if err != nil {
		return nil, nil, fmt.Errorf("open scheduler store: %w", err)
	}
	return store, func() { store.Close() }, nil
}

func buildScheduleListCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all scheduled jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := openScheduleStore(configPath)
			if err != nil {
				return err
			}
			defer closeStore()

			jobs, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(jobs) == 0 {
				fmt.Fprintln(out, "No scheduled jobs.")
				return nil
			}
			for _, job := range jobs {
				fmt.Fprintf(out, "%s  [%s/%s]  %s\n", job.ID, job.TriggerType, job.JobType, job.Description)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "assistant.yaml", "Path to YAML configuration file")
	return cmd
}

func buildScheduleAddCmd() *cobra.Command {
	var (
		configPath string
		trigger    string
		at         string
		cronExpr   string
		every      time.Duration
		message    string
		urgent     bool
		desc       string
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a notification job (date, cron, or interval trigger)",
		RunE: func(cmd *cobra.Command, args []string) error {
			triggerType, triggerArgs, err := buildTriggerArgs(trigger, at, cronExpr, every)
			if err != nil {
				return err
			}

			store, closeStore, err := openScheduleStore(configPath)
			if err != nil {
				return err
			}
			defer closeStore()

			sched := scheduler.New(store, nil)
			job, err := sched.AddNotification(cmd.Context(), desc, triggerType, triggerArgs, message, urgent)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Scheduled: %s\n", job.ID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "assistant.yaml", "Path to YAML configuration file")
	cmd.Flags().StringVar(&trigger, "trigger", "date", "Trigger type: date, cron, or interval")
	cmd.Flags().StringVar(&at, "at", "", "RFC3339 timestamp for a date trigger")
	cmd.Flags().StringVar(&cronExpr, "cron", "", "Cron expression for a cron trigger")
	cmd.Flags().DurationVar(&every, "every", 0, "Interval duration for an interval trigger (e.g. 1h)")
	cmd.Flags().StringVar(&message, "message", "", "Notification message")
	cmd.Flags().BoolVar(&urgent, "urgent", false, "Bypass the do-not-disturb window")
	cmd.Flags().StringVar(&desc, "description", "", "Human-readable job description")
	return cmd
}

func buildScheduleRemoveCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a scheduled job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := openScheduleStore(configPath)
			if err != nil {
				return err
			}
			defer closeStore()

			sched := scheduler.New(store, nil)
			if err := sched.RemoveJob(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed: %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "assistant.yaml", "Path to YAML configuration file")
	return cmd
}

func buildTriggerArgs(trigger, at, cronExpr string, every time.Duration) (models.TriggerType, json.RawMessage, error) {
	switch trigger {
	case "date":
		if at == "" {
			return "", nil, fmt.Errorf("--at is required for a date trigger")
		}
		parsed, err := time.Parse(time.RFC3339, at)
		if err != nil {
			return "", nil, fmt.Errorf("invalid --at timestamp: %w", err)
		}
		args, err := json.Marshal(map[string]any{"at": parsed})
		return models.TriggerDate, args, err

	case "cron":
		if cronExpr == "" {
			return "", nil, fmt.Errorf("--cron is required for a cron trigger")
		}
		args, err := json.Marshal(map[string]any{"expression": cronExpr})
		return models.TriggerCron, args, err

	case "interval":
		if every <= 0 {
			return "", nil, fmt.Errorf("--every is required for an interval trigger")
		}
		args, err := json.Marshal(map[string]any{"every": every})
		return models.TriggerInterval, args, err

	default:
		return "", nil, fmt.Errorf("unknown trigger type %q", trigger)
	}
}
