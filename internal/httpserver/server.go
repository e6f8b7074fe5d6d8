// Package httpserver exposes the process's HTTP surface: a health check,
// the webhook receiver, and (when enabled) Prometheus metrics — a plain
// net/http.ServeMux, matching the rest of the corpus's mux-based routing
// rather than reaching for a router framework.
package httpserver

import (
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Version is stamped into /health responses; set at build time.
var Version = "dev"

// Server wraps the process's net/http.ServeMux.
type Server struct {
	mux *http.ServeMux
}

// New builds a server. webhookHandler and metricsEnabled are optional:
// a nil webhookHandler leaves /webhooks/ unmounted (requests 404), and
// metricsEnabled mounts /metrics via promhttp.
func New(webhookHandler http.Handler, metricsEnabled bool) *Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", handleHealth)
	if webhookHandler != nil {
		mux.Handle("/webhooks/", webhookHandler)
	}
	if metricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
	}
	return &Server{mux: mux}
}

func (s *Server) Handler() http.Handler { return s.mux }

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status":  "ok",
		"version": Version,
	})
}
