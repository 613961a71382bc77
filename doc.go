// Package main provides the entry point for the media catalog server.
//
// The server keeps a SQLite catalog in step with a store directory laid out
// as one directory per catalog with video files below it, and serves those
// videos to players in bounded byte ranges.
//
// # Application Lifecycle
//
//  1. Configuration Loading: environment variables through viper, validated
//  2. Memory Limit: GOMEMLIMIT from MEMORY_LIMIT and MEMORY_RATIO
//  3. Database Initialization: opens catalog.db in WAL mode and applies the schema
//  4. Component Initialization:
//     - Prober: ffprobe metadata extraction, disabled if the binary is missing
//     - Reconciler: scans the store and inserts new catalogs and videos in one transaction
//     - Scheduler: periodic full passes on SCAN_SCHEDULE
//     - Watcher: fsnotify events debounced into passes
//     - Metrics Collector: refreshes library gauges every minute
//  5. HTTP Server Setup: routes, request id, access logging and metrics middleware
//  6. Graceful Shutdown: on SIGINT/SIGTERM every component is stopped in turn
//
// # HTTP Server
//
// The main server (default port 8080) serves the catalog API, range
// streaming and health endpoints. A separate metrics server (default port
// 9090) exposes /metrics when METRICS_ENABLED is true.
//
// # Graceful Shutdown
//
//  1. Stop accepting HTTP requests and drain in-flight ones
//  2. Stop the filesystem watcher (an in-flight pass completes)
//  3. Stop the scheduler
//  4. Stop the metrics collector and memory monitor
//  5. Shut down the metrics server
//  6. Close the database
//
// All steps share a 30 second deadline.
package main
