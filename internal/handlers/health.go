package handlers

import (
	"net/http"
	"runtime"
	"time"

	"media-catalog/internal/indexer"
	"media-catalog/internal/logging"
	"media-catalog/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusStarting = "starting"
	statusDegraded = "degraded"
)

// watcherDisabled is reported when no watcher was configured.
const watcherDisabled = "disabled"

// HealthResponse contains the health check response
type HealthResponse struct {
	Status   string `json:"status"`
	Ready    bool   `json:"ready"`
	Version  string `json:"version"`
	Uptime   string `json:"uptime"`
	Database string `json:"database"`

	WatcherState string `json:"watcher_state"`
	WatcherError string `json:"watcher_error,omitempty"`

	Reconcile indexer.Stats `json:"reconcile"`

	// Library totals
	Catalogs int64 `json:"catalogs"`
	Videos   int64 `json:"videos"`

	// System info
	GoVersion    string `json:"go_version"`
	NumCPU       int    `json:"num_cpu"`
	NumGoroutine int    `json:"num_goroutine"`
}

// ready reports whether the database answers and, when a startup pass is
// configured, that at least one pass has finished.
func (h *Handlers) ready(r *http.Request) (bool, error) {
	if err := h.db.Ping(r.Context()); err != nil {
		return false, err
	}
	return !h.config.ScanOnStartup || h.reconciler.Stats().TotalRuns > 0, nil
}

// HealthCheck returns the health status of the service
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ready, dbErr := h.ready(r)

	response := HealthResponse{
		Ready:        ready,
		Version:      startup.Version,
		Uptime:       time.Since(h.started).Round(time.Second).String(),
		Database:     "ok",
		WatcherState: watcherDisabled,
		Reconcile:    h.reconciler.Stats(),
		GoVersion:    runtime.Version(),
		NumCPU:       runtime.NumCPU(),
		NumGoroutine: runtime.NumGoroutine(),
	}

	if dbErr != nil {
		logging.Warn("Health check: database unavailable: %v", dbErr)
		response.Database = dbErr.Error()
	} else if stats, err := h.db.LibraryStats(r.Context()); err == nil {
		response.Catalogs = stats.Catalogs
		response.Videos = stats.Videos
	}

	watcherFailed := false
	if h.watcher != nil {
		response.WatcherState = h.watcher.State().String()
		if err := h.watcher.Err(); err != nil {
			response.WatcherError = err.Error()
			watcherFailed = true
		}
	}

	switch {
	case !ready:
		response.Status = statusStarting
		if dbErr != nil {
			response.Status = statusDegraded
		}
	case watcherFailed || response.Reconcile.LastError != "":
		response.Status = statusDegraded
	default:
		response.Status = statusHealthy
	}

	// 503 only when not ready at all
	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, response)
}

// LivenessCheck is a simple liveness probe (always returns 200 if server is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodHead {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// ReadinessCheck returns 200 only when the service is ready to accept traffic
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	if ready, _ := h.ready(r); ready {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
		return
	}
	writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
}
