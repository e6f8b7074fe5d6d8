package models

import "encoding/json"

// TriggerType selects how a ScheduledJob is fired.
type TriggerType string

const (
	TriggerDate     TriggerType = "date"
	TriggerCron     TriggerType = "cron"
	TriggerInterval TriggerType = "interval"
)

// JobType selects what a ScheduledJob does when it fires.
type JobType string

const (
	JobNotification JobType = "notification"
	JobAssistant    JobType = "assistant"
	JobWorkflow     JobType = "workflow"
)

// ScheduledJob is a durable timed/cron/interval job, persisted before it is
// registered with the in-process timer.
type ScheduledJob struct {
	ID          string          `json:"id"`
	Description string          `json:"description"`
	TriggerType TriggerType     `json:"trigger_type"`
	TriggerArgs json.RawMessage `json:"trigger_args"`
	JobType     JobType         `json:"job_type"`
	JobArgs     json.RawMessage `json:"job_args"`
}

// WorkflowStep is one thin declarative tool invocation in a workflow.
type WorkflowStep struct {
	Name             string         `yaml:"name" json:"name"`
	Tool             string         `yaml:"tool" json:"tool"`
	Args             map[string]any `yaml:"args" json:"args,omitempty"`
	RequiresApproval bool           `yaml:"requires_approval" json:"requires_approval,omitempty"`
}

// WorkflowTrigger selects how a WorkflowDefinition is invoked.
type WorkflowTrigger string

const (
	WorkflowTriggerManual   WorkflowTrigger = "manual"
	WorkflowTriggerWebhook  WorkflowTrigger = "webhook"
	WorkflowTriggerSchedule WorkflowTrigger = "schedule"
)

// WorkflowDefinition is a multi-step declarative run with approval gates and
// context threading between steps.
type WorkflowDefinition struct {
	Name        string          `yaml:"name" json:"name"`
	Description string          `yaml:"description" json:"description"`
	Trigger     WorkflowTrigger `yaml:"trigger" json:"trigger"`
	Enabled     bool            `yaml:"enabled" json:"enabled"`
	Steps       []WorkflowStep  `yaml:"steps" json:"steps"`
}

// StepStatus is the outcome of running one WorkflowStep.
type StepStatus string

const (
	StepSuccess StepStatus = "success"
	StepError   StepStatus = "error"
	StepSkipped StepStatus = "skipped"
)

// StepResult records what happened when a workflow step ran.
type StepResult struct {
	Step   string     `json:"step"`
	Status StepStatus `json:"status"`
	Output string     `json:"output,omitempty"`
	Error  string     `json:"error,omitempty"`
	Reason string     `json:"reason,omitempty"`
}
