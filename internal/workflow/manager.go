package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/kestrelai/assistant/pkg/models"
)

// Manager loads workflow definitions from a directory, keeping the latest
// load in memory. On a .yaml/.yml name collision the .yaml file wins.
type Manager struct {
	mu        sync.RWMutex
	dir       string
	runner    *Runner
	logger    *slog.Logger
	workflows map[string]models.WorkflowDefinition
}

// NewManager builds a manager over dir, driving runs through runner.
func NewManager(dir string, runner *Runner, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{dir: dir, runner: runner, logger: logger, workflows: make(map[string]models.WorkflowDefinition)}
}

// LoadAll (re)reads every *.yaml/*.yml file in the directory.
func (m *Manager) LoadAll() error {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return fmt.Errorf("read workflow directory: %w", err)
	}

	var ymlPaths, yamlPaths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch {
		case strings.HasSuffix(e.Name(), ".yaml"):
			yamlPaths = append(yamlPaths, filepath.Join(m.dir, e.Name()))
		case strings.HasSuffix(e.Name(), ".yml"):
			ymlPaths = append(ymlPaths, filepath.Join(m.dir, e.Name()))
		}
	}
	sort.Strings(ymlPaths)
	sort.Strings(yamlPaths)

	loaded := make(map[string]models.WorkflowDefinition)
	// .yml first, then .yaml, so a same-name .yaml overwrites and wins.
	for _, p := range append(ymlPaths, yamlPaths...) {
		def, err := readWorkflowFile(p)
		if err != nil {
			m.logger.Warn("skipping malformed workflow file", "path", p, "error", err)
			continue
		}
		loaded[def.Name] = def
	}

	m.mu.Lock()
	m.workflows = loaded
	m.mu.Unlock()
	return nil
}

func (m *Manager) get(name string) (models.WorkflowDefinition, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	def, ok := m.workflows[name]
	return def, ok
}

// Get exposes a loaded workflow definition by name, used by the webhook
// receiver to distinguish unknown (404) from disabled (409).
func (m *Manager) Get(name string) (models.WorkflowDefinition, bool) {
	return m.get(name)
}

// RunByName looks up a workflow by name and runs it, satisfying
// scheduler.WorkflowRunner.
func (m *Manager) RunByName(ctx context.Context, name string, seedContext map[string]any) ([]models.StepResult, error) {
	def, ok := m.get(name)
	if !ok {
		return nil, fmt.Errorf("unknown workflow: %s", name)
	}
	if !def.Enabled {
		return nil, fmt.Errorf("workflow disabled: %s", name)
	}
	return m.runner.Run(ctx, def, seedContext), nil
}

func readWorkflowFile(path string) (models.WorkflowDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.WorkflowDefinition{}, err
	}
	var def models.WorkflowDefinition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return models.WorkflowDefinition{}, err
	}
	if def.Name == "" {
		return models.WorkflowDefinition{}, fmt.Errorf("workflow missing name")
	}
	return def, nil
}
