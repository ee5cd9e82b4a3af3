package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/bdobrica/Kuruma/common/version"
)

// HealthServer exposes /health and /status. It is optional; Kuruma runs
// without it when HTTPAddr is empty.
type HealthServer struct {
	addr      string
	store     statusProvider
	startedAt time.Time
	server    *http.Server
	mux       *http.ServeMux
}

// statusProvider is the minimal interface the health server needs from Store.
type statusProvider interface {
	CountCars(ctx context.Context) (int, error)
	CountActiveSessions(ctx context.Context, now time.Time) (int, error)
}

// healthResponse is returned by GET /health.
type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Commit  string `json:"commit"`
}

// statusResponse is returned by GET /status. Checks names each count that
// could not be read; any entry there makes the status "degraded".
type statusResponse struct {
	Status         string            `json:"status"`
	Version        string            `json:"version"`
	Commit         string            `json:"commit"`
	BuildTime      string            `json:"build_time"`
	StartedAt      time.Time         `json:"started_at"`
	UptimeSecs     float64           `json:"uptime_seconds"`
	CarCount       int               `json:"car_count"`
	ActiveSessions int               `json:"active_sessions"`
	Checks         map[string]string `json:"checks,omitempty"`
}
// NewHealthServer creates and configures the HTTP server (does not start it).
func NewHealthServer(addr string, sp statusProvider) *HealthServer {
	mux := http.NewServeMux()
	hs := &HealthServer{
		addr:      addr,
		store:     sp,
		startedAt: time.Now(),
		mux:       mux,
	}
	mux.HandleFunc("/health", hs.handleHealth)
	mux.HandleFunc("/status", hs.handleStatus)
	return hs
}

// ServeHTTP implements http.Handler so the server can be tested with
// httptest.NewRecorder.
func (h *HealthServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// Start begins listening in the background. It returns once the listener
// is established.
func (h *HealthServer) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", h.addr)
	if err != nil {
		return fmt.Errorf("health server: listen %s: %w", h.addr, err)
	}

	h.server = &http.Server{
		Handler:      h,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("health server listening", "addr", ln.Addr().String())
		if err := h.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("health server stopped", "err", err)
		}
	}()

	go func() {
		<-ctx.Done()
		h.Stop()
	}()
	return nil
}

// Stop shuts down the HTTP server.
func (h *HealthServer) Stop() {
	if h.server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.server.Shutdown(ctx); err != nil {
		slog.Warn("health server shutdown error", "err", err)
	}
}

// handleHealth reports liveness only; it never touches the database.
func (h *HealthServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:  "ok",
		Version: version.Version,
		Commit:  version.GitCommit,
	})
}

// handleStatus responds with build info, uptime and fleet/session counts.
func (h *HealthServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Status:     "ok",
		Version:    version.Version,
		Commit:     version.GitCommit,
		BuildTime:  version.BuildTime,
		StartedAt:  h.startedAt,
		UptimeSecs: time.Since(h.startedAt).Seconds(),
	}
	if h.store != nil {
		recordCount(r.Context(), &resp, "cars", &resp.CarCount, h.store.CountCars)
		recordCount(r.Context(), &resp, "sessions", &resp.ActiveSessions, func(ctx context.Context) (int, error) {
			return h.store.CountActiveSessions(ctx, time.Now())
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// recordCount stores the result of fn in dst, or records the failure under name.
func recordCount(ctx context.Context, resp *statusResponse, name string, dst *int, fn func(context.Context) (int, error)) {
	n, err := fn(ctx)
	if err != nil {
		slog.Warn("health: status check failed", "check", name, "err", err)
		if resp.Checks == nil {
			resp.Checks = make(map[string]string)
		}
		resp.Checks[name] = "unavailable"
		resp.Status = "degraded"
		return
	}
	*dst = n
}

// writeJSON serialises v as JSON and writes it to w with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("health: failed to encode JSON response", "err", err)
	}
}
