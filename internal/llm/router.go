package llm

import (
	"context"
	"log/slog"
	"strings"
	"sync"
)

// RouterConfig configures provider selection and the vision/local-model
// heuristics.
type RouterConfig struct {
	// DefaultProvider/DefaultModel are used when a request carries no
	// explicit model override.
	DefaultProvider Provider
	DefaultModel    string

	// LocalModel, when non-empty, is used for short tool-free prompts
	// (the "simple query" heuristic) if LocalModelEnabled and the local
	// provider is reachable.
	LocalModelEnabled   bool
	LocalModel          string
	LocalModelProvider  Provider
	LocalModelThreshold int // prompt length (chars) below which a query counts as "simple"

	// VisionModels is a short allow-list of model-name substrings known to
	// support image input.
	VisionModels []string
}

// DefaultRouterConfig returns the heuristic thresholds observed in the
// original router: short, tool-free prompts route to a local model when
// one is configured and reachable.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		LocalModelThreshold: 200,
		VisionModels:        []string{"claude-3", "claude-sonnet", "claude-opus", "gpt-4o", "gpt-4-vision", "gemini"},
	}
}

// Router holds a mapping from provider to the adapter instance passed to
// NewRouter and selects which adapter serves each request.
type Router struct {
	mu       sync.RWMutex
	adapters map[Provider]Adapter
	cfg      RouterConfig
	logger   *slog.Logger
	ping     func(Provider) bool // reachability check for the local model, overridable in tests
}

// NewRouter builds a router over already-constructed adapters (one per
// provider actually configured; not every Provider constant need be
// present).
func NewRouter(cfg RouterConfig, logger *slog.Logger, adapters ...Adapter) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	m := make(map[Provider]Adapter, len(adapters))
	for _, a := range adapters {
		m[a.Provider()] = a
	}
	return &Router{adapters: m, cfg: cfg, logger: logger, ping: func(Provider) bool { return true }}
}

// SetReachabilityCheck overrides how the router decides a provider is
// reachable before routing a simple query to it.
func (r *Router) SetReachabilityCheck(fn func(Provider) bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ping = fn
}

// SupportsVision reports whether model is a known vision-capable family,
// via a case-insensitive substring match over the configured allow-list.
func (r *Router) SupportsVision(model string) bool {
	lower := strings.ToLower(model)
	for _, v := range r.cfg.VisionModels {
		if strings.Contains(lower, strings.ToLower(v)) {
			return true
		}
	}
	return false
}

// selectProvider picks (provider, model, reason) for req per the policy in
// §4.5: explicit override, then the simple-query heuristic, then the
// configured default.
func (r *Router) selectProvider(req CompletionRequest) (Provider, string, string) {
	if req.Model != "" {
		if p, model, ok := splitProviderModel(req.Model); ok {
			return p, model, "explicit model override"
		}
		return r.cfg.DefaultProvider, req.Model, "explicit model override"
	}

	if r.cfg.LocalModelEnabled && len(req.Tools) == 0 && promptLength(req) < r.cfg.LocalModelThreshold {
		r.mu.RLock()
		reachable := r.ping(r.cfg.LocalModelProvider)
		r.mu.RUnlock()
		if reachable {
			return r.cfg.LocalModelProvider, r.cfg.LocalModel, "simple query routed to local model"
		}
	}

	return r.cfg.DefaultProvider, r.cfg.DefaultModel, "default provider"
}

func promptLength(req CompletionRequest) int {
	n := len(req.System)
	for _, m := range req.Messages {
		n += len(m.Content)
		for _, b := range m.Blocks {
			n += len(b.Text)
		}
	}
	return n
}

// splitProviderModel parses a "provider/model" override into its parts.
func splitProviderModel(modelSpec string) (Provider, string, bool) {
	idx := strings.IndexByte(modelSpec, '/')
	if idx <= 0 {
		return "", "", false
	}
	return Provider(modelSpec[:idx]), modelSpec[idx+1:], true
}

// StreamWithToolLoop selects an adapter, yields one routing_info event, and
// then forwards every adapter event verbatim.
func (r *Router) StreamWithToolLoop(ctx context.Context, req CompletionRequest) <-chan StreamEvent {
	provider, model, reason := r.selectProvider(req)

	r.mu.RLock()
	adapter, ok := r.adapters[provider]
	r.mu.RUnlock()

	out := make(chan StreamEvent, 8)
	if !ok {
		go func() {
			defer close(out)
			out <- StreamEvent{Type: EventError, Error: "no adapter registered for provider: " + string(provider)}
		}()
		return out
	}

	req.Model = model
	go func() {
		defer close(out)
		out <- StreamEvent{Type: EventRoutingInfo, Provider: provider, Model: model, Reason: reason}
		for ev := range adapter.Stream(ctx, req) {
			out <- ev
		}
	}()
	return out
}
