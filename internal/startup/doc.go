// Package startup loads configuration and writes the startup and shutdown
// log sections.
//
// # Configuration
//
// [Load] reads every setting from the environment through viper, using the
// mapstructure tag of each Config field as the variable name, then checks
// the result with go-playground/validator:
//
//   - STORE_DIR: store root to catalog (default: /media)
//   - DATABASE_DIR: directory holding catalog.db (default: /database)
//   - LOG_DIR: also write rotated logs to LOG_DIR/app.log (default: unset)
//   - PORT, METRICS_PORT: listen ports (default: 8080, 9090)
//   - METRICS_ENABLED: serve /metrics on METRICS_PORT (default: true)
//   - REQUEST_TIMEOUT: per-request deadline for API handlers (default: 30s)
//   - WATCH_ENABLED: run the filesystem watcher (default: true)
//   - DEBOUNCE_TIMEOUT: quiet period before a watcher pass (default: 3s)
//   - FS_TIMEOUT: settle delay after the debounce (default: 2s)
//   - SCAN_SCHEDULE: cron expression for full passes, "off" to disable (default: @every 30m)
//   - SCAN_ON_STARTUP: run a pass before serving (default: true)
//   - SKIP_HIDDEN: ignore dot files and directories (default: true)
//   - STREAM_CHUNK_SIZE: largest range served per request in bytes (default: 1 MiB)
//   - FFPROBE_PATH, PROBE_TIMEOUT, PROBE_WORKERS: metadata probing
//   - MEMORY_LIMIT, MEMORY_RATIO: container limit in bytes and the share given to GOMEMLIMIT
//   - LOG_LEVEL or DEBUG: log verbosity
//
// [LoadConfig] additionally prints the banner, creates missing directories
// and verifies that the database directory is writable.
package startup
