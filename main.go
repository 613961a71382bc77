package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"media-catalog/internal/database"
	"media-catalog/internal/filesystem"
	"media-catalog/internal/handlers"
	"media-catalog/internal/indexer"
	"media-catalog/internal/logging"
	"media-catalog/internal/memory"
	"media-catalog/internal/metrics"
	"media-catalog/internal/middleware"
	"media-catalog/internal/prober"
	"media-catalog/internal/startup"
	"media-catalog/internal/streaming"
	"media-catalog/internal/watcher"
	"media-catalog/internal/workers"
)

// shutdownTimeout bounds the whole graceful shutdown sequence.
const shutdownTimeout = 30 * time.Second

// services holds everything the shutdown sequence has to stop.
type services struct {
	server        *http.Server
	metricsServer *http.Server
	watcher       *watcher.Watcher
	scheduler     *indexer.Scheduler
	collector     *metrics.Collector
	memory        *memory.Monitor
	db            *database.Database
}

func main() {
	startTime := time.Now()

	// Load configuration
	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	if config.LogDir != "" {
		if err := logging.EnableFileOutput(logging.DefaultFileConfig(config.LogDir)); err != nil {
			logging.Warn("File logging disabled: %v", err)
		}
	}

	memory.ConfigureLimit(config.MemoryLimit, config.MemoryRatio)
	memMonitor := memory.NewMonitor(memory.DefaultConfig())
	memMonitor.Start()

	metrics.InitializeMetrics()
	filesystem.SetObserver(metrics.NewFilesystemObserver())
	filesystem.SetDefaultVolumeResolver(filesystem.NewVolumeResolver(map[string]string{
		"store":    config.StoreDir,
		"database": config.DatabaseDir,
	}))

	// Initialize database
	ctx := context.Background()
	dbStart := time.Now()
	db, err := database.New(ctx, config.DatabasePath)
	if err != nil {
		startup.LogFatal("Failed to initialize database: %v", err)
	}
	startup.LogDatabaseInit(config.DatabasePath, time.Since(dbStart))
	logLibrary(ctx, db)

	// Metadata prober, degraded to a no-op when ffprobe is missing
	probeWorkers := workers.ForProbes(config.ProbeWorkers)
	ffprobe := prober.NewFFProbe(prober.Config{Binary: config.FFProbePath, Timeout: config.ProbeTimeout})
	var probe prober.Prober = ffprobe
	version, err := ffprobe.Check(ctx)
	if err != nil {
		probe = prober.Noop{}
	}
	probes := prober.NewPool(probe, probeWorkers)
	startup.LogProberInit(config.FFProbePath, version, probes.Workers(), err)

	// Reconciler
	scanner := indexer.NewScanner(config.StoreDir, indexer.ScannerConfig{SkipHidden: config.SkipHidden})
	reconciler := indexer.NewReconciler(db, scanner, probes)
	startup.LogReconcilerInit(config)

	if config.ScanOnStartup {
		go func() {
			if _, err := reconciler.Run(ctx, indexer.TriggerStartup); err != nil {
				logging.Error("Startup reconciliation failed: %v", err)
			}
		}()
	}

	var scheduler *indexer.Scheduler
	if config.ScanSchedule != "" {
		scheduler, err = indexer.NewScheduler(reconciler, config.ScanSchedule)
		if err != nil {
			startup.LogFatal("Invalid scan schedule: %v", err)
		}
		scheduler.Start()
	}

	// Watcher failures leave the server running without live updates
	var fsWatcher *watcher.Watcher
	var watchStatus handlers.WatcherStatus
	if config.WatchEnabled {
		fsWatcher = watcher.New(config.StoreDir, reconciler, watcher.Config{
			Debounce:   config.DebounceTimeout,
			Settle:     config.FSTimeout,
			QueueSize:  watcher.DefaultConfig().QueueSize,
			SkipHidden: config.SkipHidden,
		})
		startup.LogWatcherStarted(fsWatcher.Start(ctx))
		watchStatus = fsWatcher
	}

	collector := metrics.NewCollector(db, time.Minute)
	collector.Start()

	streams := streaming.NewServer(config.StoreDir, config.StreamChunkSize)
	logging.Info("Serving at most %s per range request", humanize.IBytes(uint64(streams.ChunkSize())))

	// Initialize handlers
	h := handlers.New(db, reconciler, streams, watchStatus, handlers.Config{
		RequestTimeout: config.RequestTimeout,
		WriteTimeout:   streaming.DefaultWriteTimeout,
		ScanOnStartup:  config.ScanOnStartup,
		Memory:         memMonitor,
	})

	router := setupRouter(h)
	startup.LogHTTPRoutes(router, config.LogHealthChecks)

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	loggingConfig.LogStreamChunks = config.LogStreamChunks
	handler := middleware.RequestID(middleware.Logger(loggingConfig)(router))

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(config.Port),
		Handler:           handler,
		ReadHeaderTimeout: config.RequestTimeout,
		// stream chunks manage their own write deadlines
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	var metricsSrv *http.Server
	if config.MetricsEnabled {
		metricsSrv = newMetricsServer(config.MetricsPort)
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logging.Error("Metrics server error: %v", err)
			}
		}()
	}

	go handleShutdown(&services{
		server:        srv,
		metricsServer: metricsSrv,
		watcher:       fsWatcher,
		scheduler:     scheduler,
		collector:     collector,
		memory:        memMonitor,
		db:            db,
	})

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		startup.LogFatal("Server error: %v", err)
	}
	// handleShutdown exits the process once cleanup is done
	select {}
}

func setupRouter(h *handlers.Handlers) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.Metrics(middleware.DefaultMetricsConfig()))

	// Health check and version routes
	r.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/healthz", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/livez", h.LivenessCheck).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods(http.MethodGet)
	r.HandleFunc("/version", h.GetVersion).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/scan", h.Scan).Methods(http.MethodGet, http.MethodPost)
	api.HandleFunc("/catalogs", h.ListCatalogs).Methods(http.MethodGet)
	api.HandleFunc("/catalogs/{id:[0-9]+}", h.GetCatalog).Methods(http.MethodGet)
	api.HandleFunc("/catalogs/{id:[0-9]+}/videos", h.ListCatalogVideos).Methods(http.MethodGet)
	api.HandleFunc("/videos", h.ListVideos).Methods(http.MethodGet)
	api.HandleFunc("/videos/{id:[0-9]+}", h.GetVideo).Methods(http.MethodGet)
	api.HandleFunc("/videos/{id:[0-9]+}/stream", h.StreamVideo).Methods(http.MethodGet, http.MethodHead)

	// Paths used by existing players
	r.HandleFunc("/file/store/scan", h.Scan).Methods(http.MethodGet)
	r.HandleFunc("/file/video/{id:[0-9]+}/stream", h.StreamVideo).Methods(http.MethodGet, http.MethodHead)

	return r
}

func newMetricsServer(port int) *http.Server {
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	return &http.Server{
		Addr:              ":" + strconv.Itoa(port),
		Handler:           metricsMux,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
}

func logLibrary(ctx context.Context, db *database.Database) {
	stats, err := db.LibraryStats(ctx)
	if err != nil {
		logging.Warn("Failed to read library totals: %v", err)
		return
	}
	lastChange, err := db.LastChange(ctx)
	if err != nil {
		logging.Warn("Failed to read last change time: %v", err)
	}
	startup.LogLibrary(stats.Catalogs, stats.Videos, lastChange)
}

func handleShutdown(s *services) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := s.server.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	if s.watcher != nil {
		startup.LogShutdownStep("Stopping filesystem watcher")
		s.watcher.Stop()
		startup.LogShutdownStepComplete("Watcher stopped")
	}

	if s.scheduler != nil {
		startup.LogShutdownStep("Stopping scan scheduler")
		select {
		case <-s.scheduler.Stop().Done():
			startup.LogShutdownStepComplete("Scheduler stopped")
		case <-ctx.Done():
			logging.Warn("Scheduled pass still running at shutdown deadline")
		}
	}

	s.collector.Stop()
	s.memory.Stop()

	if s.metricsServer != nil {
		startup.LogShutdownStep("Shutting down metrics server")
		if err := s.metricsServer.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		} else {
			startup.LogShutdownStepComplete("Metrics server stopped")
		}
	}

	startup.LogShutdownStep("Closing database")
	if err := s.db.Close(); err != nil {
		logging.Warn("Database close error: %v", err)
	} else {
		startup.LogShutdownStepComplete("Database closed")
	}

	startup.LogShutdownComplete()
	_ = logging.Close()
	os.Exit(0)
}
