package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kestrelai/assistant/internal/format"
	"github.com/kestrelai/assistant/pkg/models"
)

// SchedulerSessionID is the well-known session id used for assistant-type
// jobs, so scheduled prompts never get attributed to a user conversation.
const SchedulerSessionID = "scheduler"

// Notifier dispatches a message, e.g. *notify.Dispatcher.
type Notifier interface {
	Send(message string, urgent bool)
}

// AssistantInvoker drives one LLM turn for an assistant-type job and
// returns the response text.
type AssistantInvoker interface {
	Invoke(ctx context.Context, sessionID, prompt string) (string, error)
}

// WorkflowRunner looks up and runs a workflow by name for a workflow-type
// job.
type WorkflowRunner interface {
	RunByName(ctx context.Context, name string, seedContext map[string]any) ([]models.StepResult, error)
}

type notificationJobArgs struct {
	Message string `json:"message"`
	Urgent  bool   `json:"urgent,omitempty"`
}

type assistantJobArgs struct {
	Prompt string `json:"prompt"`
}

type workflowJobArgs struct {
	WorkflowName string         `json:"workflow_name"`
	Context      map[string]any `json:"context,omitempty"`
}

type scheduledEntry struct {
	job   models.ScheduledJob
	timer *time.Timer
}

// Scheduler reads persisted jobs at Start and registers each with an
// in-process timer; add persists to the store before registering the timer
// so the store remains the durable source of truth if the process restarts
// mid-run.
type Scheduler struct {
	store      Store
	notifier   Notifier
	assistant  AssistantInvoker
	workflows  WorkflowRunner
	logger     *slog.Logger
	timezone   *time.Location

	mu      sync.Mutex
	entries map[string]*scheduledEntry
	started bool
}

// Option configures a Scheduler at construction.
type Option func(*Scheduler)

func WithNotifier(n Notifier) Option     { return func(s *Scheduler) { s.notifier = n } }
func WithAssistant(a AssistantInvoker) Option { return func(s *Scheduler) { s.assistant = a } }
func WithWorkflows(w WorkflowRunner) Option   { return func(s *Scheduler) { s.workflows = w } }
func WithTimezone(loc *time.Location) Option  { return func(s *Scheduler) { s.timezone = loc } }

// New builds a scheduler over a durable store.
func New(store Store, logger *slog.Logger, opts ...Option) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		store:    store,
		logger:   logger,
		timezone: time.UTC,
		entries:  make(map[string]*scheduledEntry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start reads every persisted job and registers it with the in-process
// timer. Safe to call once.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.mu.Unlock()

	jobs, err := s.store.List(ctx)
	if err != nil {
		return fmt.Errorf("list scheduled jobs: %w", err)
	}
	for _, job := range jobs {
		s.register(job)
	}
	return nil
}

// AddNotification persists and registers a notification job.
func (s *Scheduler) AddNotification(ctx context.Context, description string, trigger models.TriggerType, triggerArgs json.RawMessage, message string, urgent bool) (models.ScheduledJob, error) {
	args, err := json.Marshal(notificationJobArgs{Message: message, Urgent: urgent})
	if err != nil {
		return models.ScheduledJob{}, err
	}
	return s.add(ctx, description, trigger, triggerArgs, models.JobNotification, args)
}

// AddAssistant persists and registers an assistant job.
func (s *Scheduler) AddAssistant(ctx context.Context, description string, trigger models.TriggerType, triggerArgs json.RawMessage, prompt string) (models.ScheduledJob, error) {
	args, err := json.Marshal(assistantJobArgs{Prompt: prompt})
	if err != nil {
		return models.ScheduledJob{}, err
	}
	return s.add(ctx, description, trigger, triggerArgs, models.JobAssistant, args)
}

// AddWorkflow persists and registers a workflow job.
func (s *Scheduler) AddWorkflow(ctx context.Context, description string, trigger models.TriggerType, triggerArgs json.RawMessage, workflowName string, seedContext map[string]any) (models.ScheduledJob, error) {
	args, err := json.Marshal(workflowJobArgs{WorkflowName: workflowName, Context: seedContext})
	if err != nil {
		return models.ScheduledJob{}, err
	}
	return s.add(ctx, description, trigger, triggerArgs, models.JobWorkflow, args)
}

func (s *Scheduler) add(ctx context.Context, description string, triggerType models.TriggerType, triggerArgs json.RawMessage, jobType models.JobType, jobArgs json.RawMessage) (models.ScheduledJob, error) {
	job := models.ScheduledJob{
		ID:          uuid.NewString(),
		Description: description,
		TriggerType: triggerType,
		TriggerArgs: triggerArgs,
		JobType:     jobType,
		JobArgs:     jobArgs,
	}
	if err := s.store.Save(ctx, job); err != nil {
		return models.ScheduledJob{}, fmt.Errorf("persist scheduled job: %w", err)
	}
	s.register(job)
	return job, nil
}

// RemoveJob removes a job from the timer and the store. Removing an id
// that no longer exists (a one-shot that already fired) is not an error.
func (s *Scheduler) RemoveJob(ctx context.Context, id string) error {
	s.mu.Lock()
	if entry, ok := s.entries[id]; ok {
		if entry.timer != nil {
			entry.timer.Stop()
		}
		delete(s.entries, id)
	}
	s.mu.Unlock()
	return s.store.Delete(ctx, id)
}

// PruneExpired removes one-shot date jobs whose trigger time has passed
// and is no longer registered with the timer, as a housekeeping pass
// independent of RemoveJob.
func (s *Scheduler) PruneExpired(ctx context.Context) (int, error) {
	jobs, err := s.store.List(ctx)
	if err != nil {
		return 0, err
	}
	now := time.Now().In(s.timezone)
	pruned := 0
	for _, job := range jobs {
		if !isOneShot(job.TriggerType) {
			continue
		}
		if _, ok, err := next(job, now); err == nil && !ok {
			if err := s.store.Delete(ctx, job.ID); err == nil {
				pruned++
			}
		}
	}
	return pruned, nil
}

func (s *Scheduler) register(job models.ScheduledJob) {
	now := time.Now().In(s.timezone)
	at, ok, err := next(job, now)
	if err != nil {
		s.logger.Warn("scheduler: failed to compute next fire time", "job_id", job.ID, "error", err)
		return
	}
	if !ok {
		s.logger.Info("scheduler: job has no further occurrences, dropping", "job_id", job.ID)
		return
	}

	entry := &scheduledEntry{job: job}
	entry.timer = time.AfterFunc(at.Sub(now), func() { s.fire(job) })

	s.mu.Lock()
	s.entries[job.ID] = entry
	s.mu.Unlock()
}

func (s *Scheduler) fire(job models.ScheduledJob) {
	ctx := context.Background()
	if err := s.run(ctx, job); err != nil {
		s.logger.Error("scheduler: job run failed", "job_id", job.ID, "error", err)
	}

	if isOneShot(job.TriggerType) {
		s.mu.Lock()
		delete(s.entries, job.ID)
		s.mu.Unlock()
		if err := s.store.Delete(ctx, job.ID); err != nil {
			s.logger.Warn("scheduler: failed to remove fired one-shot job", "job_id", job.ID, "error", err)
		}
		return
	}

	s.register(job)
}

func (s *Scheduler) run(ctx context.Context, job models.ScheduledJob) error {
	switch job.JobType {
	case models.JobNotification:
		var args notificationJobArgs
		if err := json.Unmarshal(job.JobArgs, &args); err != nil {
			return fmt.Errorf("invalid notification job args: %w", err)
		}
		if s.notifier == nil {
			return fmt.Errorf("notification job %s fired with no notifier wired", job.ID)
		}
		s.notifier.Send(args.Message, args.Urgent)
		return nil

	case models.JobAssistant:
		var args assistantJobArgs
		if err := json.Unmarshal(job.JobArgs, &args); err != nil {
			return fmt.Errorf("invalid assistant job args: %w", err)
		}
		if s.assistant == nil {
			return fmt.Errorf("assistant job %s fired with no invoker wired", job.ID)
		}
		response, err := s.assistant.Invoke(ctx, SchedulerSessionID, args.Prompt)
		if err != nil {
			return fmt.Errorf("assistant job invoke: %w", err)
		}
		if s.notifier != nil {
			s.notifier.Send(response, false)
		}
		return nil

	case models.JobWorkflow:
		var args workflowJobArgs
		if err := json.Unmarshal(job.JobArgs, &args); err != nil {
			return fmt.Errorf("invalid workflow job args: %w", err)
		}
		if s.workflows == nil {
			return fmt.Errorf("workflow job %s fired with no workflow runner wired", job.ID)
		}
		start := time.Now()
		results, err := s.workflows.RunByName(ctx, args.WorkflowName, args.Context)
		if err != nil {
			return err
		}
		if s.notifier != nil {
			elapsed := format.FormatDurationMsInt(time.Since(start).Milliseconds())
			s.notifier.Send(summarizeWorkflowRun(args.WorkflowName, results, elapsed), false)
		}
		return nil

	default:
		return fmt.Errorf("unknown job type: %s", job.JobType)
	}
}

// summarizeWorkflowRun reports step outcomes and wall-clock duration for a
// scheduler-triggered workflow, mirroring the webhook handler's success
// notification for a manually-triggered one.
func summarizeWorkflowRun(name string, results []models.StepResult, elapsed string) string {
	succeeded := 0
	for _, r := range results {
		if r.Status == models.StepSuccess {
			succeeded++
		}
	}
	return "Scheduled workflow \"" + name + "\" completed: " + strconv.Itoa(succeeded) + "/" + strconv.Itoa(len(results)) + " steps succeeded in " + elapsed + "."
}
