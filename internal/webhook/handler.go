// Package webhook implements the POST /webhooks/<workflow-name> receiver:
// bearer auth, workflow lookup, and a notification summary on success.
package webhook

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/kestrelai/assistant/pkg/models"
)

// WorkflowRunner is the subset of *workflow.Manager the handler needs.
type WorkflowRunner interface {
	Get(name string) (models.WorkflowDefinition, bool)
	RunByName(ctx context.Context, name string, seedContext map[string]any) ([]models.StepResult, error)
}

// Notifier posts a short summary on a successful run.
type Notifier interface {
	Send(message string, urgent bool)
}

// Handler serves POST /webhooks/<workflow-name>. A nil runner makes every
// request resolve to 503 (workflow subsystem not wired).
type Handler struct {
	runner   WorkflowRunner
	notifier Notifier
	secret   string
	logger   *slog.Logger
}

// New builds a handler. secret, if non-empty, requires "Authorization:
// Bearer <secret>" on every request.
func New(runner WorkflowRunner, notifier Notifier, secret string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{runner: runner, notifier: notifier, secret: secret, logger: logger}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.runner == nil {
		http.Error(w, "workflow subsystem not available", http.StatusServiceUnavailable)
		return
	}

	if h.secret != "" {
		switch h.checkAuth(r) {
		case authMissing:
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		case authInvalid:
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
	}

	name := strings.TrimPrefix(r.URL.Path, "/webhooks/")
	name = strings.Trim(name, "/")
	if name == "" {
		http.NotFound(w, r)
		return
	}

	def, ok := h.runner.Get(name)
	if !ok {
		http.NotFound(w, r)
		return
	}
	if !def.Enabled {
		http.Error(w, "workflow disabled", http.StatusConflict)
		return
	}

	seedContext, err := decodeBody(r.Body)
	if err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	results, err := h.runner.RunByName(r.Context(), name, seedContext)
	if err != nil {
		h.logger.Warn("webhook: workflow run failed", "workflow", name, "error", err)
		http.Error(w, "workflow run failed", http.StatusInternalServerError)
		return
	}

	if h.notifier != nil {
		h.notifier.Send(summarize(name, results), false)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":   "ok",
		"workflow": name,
		"results":  results,
	})
}

// authResult distinguishes a missing/malformed Authorization header (401)
// from a present-but-wrong bearer token (403), matching the gateway's
// original split between "not authenticated" and "not authorized."
type authResult int

const (
	authOK authResult = iota
	authMissing
	authInvalid
)

func (h *Handler) checkAuth(r *http.Request) authResult {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return authMissing
	}
	token := strings.TrimPrefix(auth, prefix)
	if subtle.ConstantTimeCompare([]byte(token), []byte(h.secret)) != 1 {
		return authInvalid
	}
	return authOK
}

func decodeBody(body io.Reader) (map[string]any, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return map[string]any{}, nil
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func summarize(name string, results []models.StepResult) string {
	succeeded := 0
	for _, r := range results {
		if r.Status == models.StepSuccess {
			succeeded++
		}
	}
	return "Workflow \"" + name + "\" completed: " + strconv.Itoa(succeeded) + "/" + strconv.Itoa(len(results)) + " steps succeeded."
}
