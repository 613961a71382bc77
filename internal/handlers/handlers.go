package handlers

import (
	"time"

	"media-catalog/internal/database"
	"media-catalog/internal/indexer"
	"media-catalog/internal/streaming"
	"media-catalog/internal/watcher"
)

// WatcherStatus is the part of the filesystem watcher health reporting needs.
type WatcherStatus interface {
	State() watcher.State
	Err() error
}

// MemoryPressure reports whether new stream buffers should be refused.
type MemoryPressure interface {
	UnderPressure() bool
}

// Config holds the handler settings taken from the application config.
type Config struct {
	// RequestTimeout bounds database work done for one API request.
	RequestTimeout time.Duration
	// WriteTimeout bounds writing one stream chunk to the client.
	WriteTimeout time.Duration
	// ScanOnStartup makes readiness wait for the first pass.
	ScanOnStartup bool
	// Memory, when set, sheds stream requests under memory pressure.
	Memory MemoryPressure
}

type Handlers struct {
	db         *database.Database
	reconciler *indexer.Reconciler
	streams    *streaming.Server
	watcher    WatcherStatus
	config     Config
	started    time.Time
}

// New creates the handler set. watch may be nil when watching is disabled.
func New(db *database.Database, reconciler *indexer.Reconciler, streams *streaming.Server, watch WatcherStatus, config Config) *Handlers {
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = 30 * time.Second
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = streaming.DefaultWriteTimeout
	}
	return &Handlers{
		db:         db,
		reconciler: reconciler,
		streams:    streams,
		watcher:    watch,
		config:     config,
		started:    time.Now(),
	}
}
