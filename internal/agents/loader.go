// Package agents loads declarative agent definitions and drives isolated,
// scoped-tool conversations on their behalf.
package agents

import (
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/kestrelai/assistant/pkg/models"
)

// Loader reads agent definitions from a directory, keeping the
// last-known-good set in memory so a malformed file never aborts loading
// or evicts a previously valid definition.
type Loader struct {
	mu     sync.RWMutex
	dir    string
	agents map[string]models.AgentDefinition
	logger *slog.Logger
}

// NewLoader builds a loader over dir. Call LoadAll before first use.
func NewLoader(dir string, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{dir: dir, agents: make(map[string]models.AgentDefinition), logger: logger}
}

// LoadAll (re)reads every *.yaml/*.yml file in the directory, sorted
// lexically. A file that fails to parse is logged and skipped; it does
// not abort loading the rest, and the previously loaded definition named
// after that file is kept. On a name collision a .yaml file wins.
func (l *Loader) LoadAll() error {
	paths, err := globAgentFiles(l.dir)
	if err != nil {
		return err
	}

	l.mu.RLock()
	prev := l.agents
	l.mu.RUnlock()

	loaded := make(map[string]models.AgentDefinition, len(paths))
	for _, p := range paths {
		def, err := readAgentFile(p)
		if err != nil {
			l.logger.Warn("skipping malformed agent file", "path", p, "error", err)
			stem := filepath.Base(p)
			stem = stem[:len(stem)-len(filepath.Ext(stem))]
			if old, ok := prev[stem]; ok {
				if _, have := loaded[stem]; !have {
					loaded[stem] = old
				}
			}
			continue
		}
		if _, dup := loaded[def.Name]; dup && filepath.Ext(p) == ".yml" {
			continue
		}
		loaded[def.Name] = def
	}

	l.mu.Lock()
	l.agents = loaded
	l.mu.Unlock()
	return nil
}

// GetAgent returns a named agent definition. It hot-reloads that specific
// file from disk on every call so edits become visible without a full
// reload, falling back to the last-known-good in-memory copy if the file
// is currently unreadable or malformed.
func (l *Loader) GetAgent(name string) (models.AgentDefinition, bool) {
	if path := l.findFile(name); path != "" {
		if def, err := readAgentFile(path); err == nil {
			l.mu.Lock()
			l.agents[def.Name] = def
			l.mu.Unlock()
		} else {
			l.logger.Warn("hot-reload failed, keeping last-known-good", "name", name, "error", err)
		}
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	def, ok := l.agents[name]
	return def, ok
}

// List returns every currently loaded agent definition, sorted by name.
func (l *Loader) List() []models.AgentDefinition {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]models.AgentDefinition, 0, len(l.agents))
	for _, d := range l.agents {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// findFile locates the on-disk file backing a loaded agent name, if any.
func (l *Loader) findFile(name string) string {
	for _, ext := range []string{".yaml", ".yml"} {
		p := filepath.Join(l.dir, name+ext)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func globAgentFiles(dir string) ([]string, error) {
	var all []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		all = append(all, matches...)
	}
	sort.Strings(all)
	return all, nil
}

func readAgentFile(path string) (models.AgentDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.AgentDefinition{}, err
	}
	var def models.AgentDefinition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return models.AgentDefinition{}, err
	}
	if def.MaxToolRounds <= 0 {
		def.MaxToolRounds = 10
	}
	return def, nil
}
