// Package health serves the liveness routes the hosting platform probes.
package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// CheckFunc reports the health of one dependency.
type CheckFunc func(ctx context.Context) error

type Handler struct {
	checks  map[string]CheckFunc
	timeout time.Duration
}

func NewHandler(timeout time.Duration) *Handler {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Handler{checks: make(map[string]CheckFunc), timeout: timeout}
}

// Add registers a named dependency check. Not safe after the router is serving.
func (h *Handler) Add(name string, fn CheckFunc) *Handler {
	h.checks[name] = fn
	return h
}

func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("MindCheck bot running"))
}

// Health pings every registered dependency.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	checks := map[string]string{"bot": "ok"}
	status, code := "healthy", http.StatusOK
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			slog.Error("health check failed", "check", name, "error", err)
			checks[name] = "unreachable"
			status, code = "degraded", http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{"status": status, "checks": checks})
}

func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Get("/", h.Root)
	r.Head("/", h.Root)
	r.Get("/healthz", h.Health)
	return r
}
