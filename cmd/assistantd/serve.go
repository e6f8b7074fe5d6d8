package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/go-telegram/bot"
	"github.com/spf13/cobra"

	"github.com/kestrelai/assistant/internal/agents"
	"github.com/kestrelai/assistant/internal/assistant"
	"github.com/kestrelai/assistant/internal/audit"
	"github.com/kestrelai/assistant/internal/config"
	"github.com/kestrelai/assistant/internal/filemonitor"
	"github.com/kestrelai/assistant/internal/httpserver"
	"github.com/kestrelai/assistant/internal/llm"
	"github.com/kestrelai/assistant/internal/llm/providers"
	"github.com/kestrelai/assistant/internal/notify"
	"github.com/kestrelai/assistant/internal/notify/sinks"
	"github.com/kestrelai/assistant/internal/orchestrator"
	"github.com/kestrelai/assistant/internal/scheduler"
	"github.com/kestrelai/assistant/internal/session"
	"github.com/kestrelai/assistant/internal/tools"
	"github.com/kestrelai/assistant/internal/webhook"
	"github.com/kestrelai/assistant/internal/workflow"
	"github.com/kestrelai/assistant/pkg/models"
)

func buildServeCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the assistant daemon: HTTP server, scheduler, and file watchdog",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "assistant.yaml", "Path to YAML configuration file")
	return cmd
}

func runServe(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	logger := slog.Default()

	auditFile, err := os.OpenFile(filepath.Join(cfg.DataDir, "audit.log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer auditFile.Close()
	auditLogger := audit.NewLogger(auditFile, logger)

	classifier := tools.NewClassifier(func() bool { return false })
	registry := tools.NewRegistry(classifier, auditLogger, cfg.DataDir, logger)
	if cfg.AutoApproveReads {
		registry.SetApprover(func(ctx context.Context, req tools.PermissionRequest) bool {
			return !req.RequiresApproval()
		})
	} else {
		registry.SetApprover(tools.AlwaysDeny)
	}

	var adapters []llm.Adapter
	if cfg.AnthropicAPIKey != "" {
		adapters = append(adapters, providers.NewAnthropic(cfg.AnthropicAPIKey, cfg.Model, cfg.MaxTokens))
	}
	router := llm.NewRouter(llm.RouterConfig{
		DefaultProvider: llm.ProviderAnthropic,
		DefaultModel:    cfg.Model,
	}, logger, adapters...)

	agentsDir := filepath.Join(cfg.DataDir, "agents")
	_ = os.MkdirAll(agentsDir, 0o755)
	loader := agents.NewLoader(agentsDir, logger)
	if cfg.AgentsEnabled {
		if err := loader.LoadAll(); err != nil {
			return fmt.Errorf("load agents: %w", err)
		}
	}

	agentRunner := agents.NewRunner(router, registry)
	baseSystemPrompt := "You are a personal AI assistant with access to tools, scheduling, and delegated sub-agents."

	var orchOpts []orchestrator.Option
	if cfg.AgentsEnabled {
		orchOpts = append(orchOpts, orchestrator.WithBackgroundDelegation(orchestrator.DefaultBackgroundCapacity))
	}
	orch := orchestrator.New(loader, agentRunner, logger, orchOpts...)
	if cfg.AgentsEnabled {
		orch.RegisterTools(registry, "", baseSystemPrompt)
	}

	sessionStore, err := session.NewSQLiteStore(filepath.Join(cfg.DataDir, "sessions.db"))
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}
	defer sessionStore.Close()
	sessionManager := session.NewManager(sessionStore, cfg.MaxContextMessages)

	invoker := assistant.New(agentRunner, sessionManager, baseSystemPrompt, cfg.Model, 10)

	dndStart, dndEnd, err := cfg.DNDWindow()
	if err != nil {
		return fmt.Errorf("parse dnd window: %w", err)
	}
	dispatcher := notify.New(notify.DNDWindow{
		Enabled:     cfg.DNDEnabled,
		Start:       dndStart,
		End:         dndEnd,
		AllowUrgent: cfg.DNDAllowUrgent,
	}, logger)
	wireNotificationSinks(dispatcher, logger)

	metrics := httpserver.NewMetrics()

	workflowsDir := filepath.Join(cfg.DataDir, "workflows")
	_ = os.MkdirAll(workflowsDir, 0o755)
	workflowExecutor := &tools.Executor{
		Registry:  registry,
		SessionID: scheduler.SchedulerSessionID,
		Approver:  tools.AutoApprove,
	}
	workflowRunner := workflow.NewRunner(instrumentedExecutor{inner: workflowExecutor, metrics: metrics}, nil)
	workflowManager := workflow.NewManager(workflowsDir, workflowRunner, logger)
	if err := workflowManager.LoadAll(); err != nil {
		return fmt.Errorf("load workflows: %w", err)
	}

	var webhookHandler *webhook.Handler
	if cfg.WebhookEnabled {
		webhookHandler = webhook.New(workflowManager, dispatcher, cfg.WebhookSecret, logger)
	}

	var sched *scheduler.Scheduler
	if cfg.SchedulerEnabled {
		tz, err := time.LoadLocation(cfg.SchedulerTimezone)
		if err != nil {
			tz = time.UTC
		}
		schedStore, err := scheduler.NewSQLiteStore(filepath.Join(cfg.DataDir, "scheduler.db"))
		if err != nil {
			return fmt.Errorf("open scheduler store: %w", err)
		}
		defer schedStore.Close()
		sched = scheduler.New(schedStore, logger,
			scheduler.WithNotifier(dispatcher),
			scheduler.WithAssistant(invoker),
			scheduler.WithWorkflows(workflowManager),
			scheduler.WithTimezone(tz),
		)
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
		go runPruneLoop(ctx, sched, logger)
	}

	var monitor *filemonitor.Monitor
	if cfg.WatchdogEnabled {
		monitor, err = filemonitor.New(dispatcher, cfg.WatchdogDebounce(), true, logger)
		if err != nil {
			return fmt.Errorf("start file monitor: %w", err)
		}
		defer monitor.Stop()
		for _, p := range cfg.WatchdogPaths {
			if err := monitor.AddPath(p); err != nil {
				logger.Warn("failed to watch path", "path", p, "error", err)
			}
		}
		go monitor.Run()
	}

	var httpHandler http.Handler
	if webhookHandler != nil {
		httpHandler = webhookHandler
	}
	srv := httpserver.New(httpHandler, true)

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	logger.Info("assistant daemon starting", "addr", addr)

	return runHTTPUntilSignal(ctx, addr, srv.Handler())
}

// runHTTPUntilSignal serves handler on addr until the process receives
// SIGINT/SIGTERM, then shuts down gracefully with a bounded timeout.
func runHTTPUntilSignal(ctx context.Context, addr string, handler http.Handler) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpSrv := &http.Server{Addr: addr, Handler: handler}

	errCh := make(chan error, 1)
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// runPruneLoop periodically clears expired one-shot date jobs that fired
// while the process was down and therefore never got their timer-driven
// cleanup.
func runPruneLoop(ctx context.Context, sched *scheduler.Scheduler, logger *slog.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := sched.PruneExpired(ctx); err != nil {
				logger.Warn("prune expired jobs failed", "error", err)
			} else if n > 0 {
				logger.Info("pruned expired scheduled jobs", "count", n)
			}
		}
	}
}

// instrumentedExecutor wraps a workflow.ToolExecutor with tool-execution
// metrics. It is the only place those metrics are recorded; tool calls
// made inside LLM rounds are not counted.
type instrumentedExecutor struct {
	inner   workflow.ToolExecutor
	metrics *httpserver.Metrics
}

func (e instrumentedExecutor) Execute(ctx context.Context, call models.ToolCall) (models.ToolResult, error) {
	start := time.Now()
	result, err := e.inner.Execute(ctx, call)
	e.metrics.ToolCall(call.Name, err != nil || result.IsError, time.Since(start).Seconds())
	return result, err
}

func wireNotificationSinks(dispatcher *notify.Dispatcher, logger *slog.Logger) {
	if token := os.Getenv("SLACK_BOT_TOKEN"); token != "" {
		if channel := os.Getenv("SLACK_NOTIFY_CHANNEL"); channel != "" {
			dispatcher.AddSink(sinks.NewSlack(token, channel))
		}
	}

	if token := os.Getenv("DISCORD_BOT_TOKEN"); token != "" {
		if channel := os.Getenv("DISCORD_NOTIFY_CHANNEL"); channel != "" {
			session, err := discordgo.New("Bot " + token)
			if err != nil {
				logger.Warn("failed to build discord session for notifications", "error", err)
			} else {
				dispatcher.AddSink(sinks.NewDiscord(session, channel))
			}
		}
	}

	if token := os.Getenv("TELEGRAM_BOT_TOKEN"); token != "" {
		if chatID := os.Getenv("TELEGRAM_NOTIFY_CHAT_ID"); chatID != "" {
			id, err := strconv.ParseInt(chatID, 10, 64)
			if err != nil {
				logger.Warn("invalid TELEGRAM_NOTIFY_CHAT_ID", "error", err)
			} else if b, err := bot.New(token); err != nil {
				logger.Warn("failed to build telegram bot client for notifications", "error", err)
			} else {
				dispatcher.AddSink(sinks.NewTelegram(b, id))
			}
		}
	}
}
