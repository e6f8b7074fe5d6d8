package llm

import (
	"context"
	"testing"
)

type fakeAdapter struct {
	provider Provider
	events   []StreamEvent
}

func (a *fakeAdapter) Provider() Provider { return a.provider }

func (a *fakeAdapter) Stream(ctx context.Context, req CompletionRequest) <-chan StreamEvent {
	out := make(chan StreamEvent, len(a.events))
	for _, ev := range a.events {
		out <- ev
	}
	close(out)
	return out
}

func TestSelectProviderExplicitOverride(t *testing.T) {
	r := NewRouter(RouterConfig{DefaultProvider: ProviderAnthropic, DefaultModel: "claude-default"}, nil)

	provider, model, reason := r.selectProvider(CompletionRequest{Model: "openai/gpt-4o"})
	if provider != ProviderOpenAI || model != "gpt-4o" {
		t.Fatalf("got (%v, %v), want (openai, gpt-4o)", provider, model)
	}
	if reason != "explicit model override" {
		t.Errorf("got reason %q", reason)
	}

	provider, model, _ = r.selectProvider(CompletionRequest{Model: "claude-haiku"})
	if provider != ProviderAnthropic || model != "claude-haiku" {
		t.Fatalf("bare model name should use the default provider, got (%v, %v)", provider, model)
	}
}

func TestSelectProviderDefaultsWhenNoOverride(t *testing.T) {
	r := NewRouter(RouterConfig{DefaultProvider: ProviderAnthropic, DefaultModel: "claude-default"}, nil)
	provider, model, reason := r.selectProvider(CompletionRequest{})
	if provider != ProviderAnthropic || model != "claude-default" || reason != "default provider" {
		t.Fatalf("got (%v, %v, %v)", provider, model, reason)
	}
}

func TestSelectProviderRoutesSimpleQueryToLocalModel(t *testing.T) {
	cfg := RouterConfig{
		DefaultProvider:     ProviderAnthropic,
		DefaultModel:        "claude-default",
		LocalModelEnabled:   true,
		LocalModel:          "llama-local",
		LocalModelProvider:  Provider("local"),
		LocalModelThreshold: 200,
	}
	r := NewRouter(cfg, nil)

	provider, model, reason := r.selectProvider(CompletionRequest{System: "short prompt"})
	if provider != Provider("local") || model != "llama-local" {
		t.Fatalf("got (%v, %v), want local model for a short tool-free prompt", provider, model)
	}
	if reason != "simple query routed to local model" {
		t.Errorf("got reason %q", reason)
	}
}

func TestSelectProviderSkipsLocalModelWhenUnreachable(t *testing.T) {
	cfg := RouterConfig{
		DefaultProvider:     ProviderAnthropic,
		DefaultModel:        "claude-default",
		LocalModelEnabled:   true,
		LocalModel:          "llama-local",
		LocalModelProvider:  Provider("local"),
		LocalModelThreshold: 200,
	}
	r := NewRouter(cfg, nil)
	r.SetReachabilityCheck(func(Provider) bool { return false })

	provider, model, _ := r.selectProvider(CompletionRequest{System: "short prompt"})
	if provider != ProviderAnthropic || model != "claude-default" {
		t.Fatalf("got (%v, %v), want fallback to default when local model unreachable", provider, model)
	}
}

func TestSelectProviderSkipsLocalModelWhenToolsPresent(t *testing.T) {
	cfg := RouterConfig{
		DefaultProvider:     ProviderAnthropic,
		DefaultModel:        "claude-default",
		LocalModelEnabled:   true,
		LocalModel:          "llama-local",
		LocalModelProvider:  Provider("local"),
		LocalModelThreshold: 200,
	}
	r := NewRouter(cfg, nil)

	provider, _, _ := r.selectProvider(CompletionRequest{System: "short", Tools: []ToolDefinition{{Name: "read_file"}}})
	if provider != ProviderAnthropic {
		t.Fatalf("got %v, want default provider when tools are present", provider)
	}
}

func TestSelectProviderSkipsLocalModelWhenPromptTooLong(t *testing.T) {
	cfg := RouterConfig{
		DefaultProvider:     ProviderAnthropic,
		DefaultModel:        "claude-default",
		LocalModelEnabled:   true,
		LocalModel:          "llama-local",
		LocalModelProvider:  Provider("local"),
		LocalModelThreshold: 5,
	}
	r := NewRouter(cfg, nil)

	provider, _, _ := r.selectProvider(CompletionRequest{System: "this prompt is much longer than the threshold"})
	if provider != ProviderAnthropic {
		t.Fatalf("got %v, want default provider when prompt exceeds threshold", provider)
	}
}

func TestSupportsVision(t *testing.T) {
	r := NewRouter(DefaultRouterConfig(), nil)
	if !r.SupportsVision("claude-3-opus-20240229") {
		t.Error("expected claude-3 family to support vision")
	}
	if !r.SupportsVision("GPT-4O-MINI") {
		t.Error("expected case-insensitive match on gpt-4o")
	}
	if r.SupportsVision("claude-instant-1.2") {
		t.Error("claude-instant should not be classified as vision-capable")
	}
}

func TestStreamWithToolLoopEmitsRoutingInfoThenAdapterEvents(t *testing.T) {
	adapter := &fakeAdapter{
		provider: ProviderAnthropic,
		events:   []StreamEvent{{Type: EventTextDelta, Text: "hi"}, {Type: EventMessageComplete}},
	}
	r := NewRouter(RouterConfig{DefaultProvider: ProviderAnthropic, DefaultModel: "claude-default"}, nil, adapter)

	events := collectEvents(r.StreamWithToolLoop(context.Background(), CompletionRequest{}))
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3 (routing info + 2 adapter events)", len(events))
	}
	if events[0].Type != EventRoutingInfo {
		t.Fatalf("first event should be routing info, got %v", events[0].Type)
	}
	if events[1].Type != EventTextDelta || events[2].Type != EventMessageComplete {
		t.Fatalf("got %v, %v", events[1].Type, events[2].Type)
	}
}

func TestStreamWithToolLoopErrorsWhenNoAdapterRegistered(t *testing.T) {
	r := NewRouter(RouterConfig{DefaultProvider: ProviderAnthropic, DefaultModel: "claude-default"}, nil)
	events := collectEvents(r.StreamWithToolLoop(context.Background(), CompletionRequest{}))
	if len(events) != 1 || events[0].Type != EventError {
		t.Fatalf("got %v, want a single error event", events)
	}
}

func collectEvents(ch <-chan StreamEvent) []StreamEvent {
	var out []StreamEvent
	for ev := range ch {
		out = append(out, ev)
	}
	return out
}
