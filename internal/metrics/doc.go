// Package metrics provides Prometheus instrumentation for media-catalog.
//
// All collectors are registered with the default registry through promauto
// and carry the "media_catalog_" prefix. They are grouped by the component
// that records them:
//
//   - HTTP: request counts, latency and in-flight requests (middleware)
//   - Database: query and transaction latency, SQLITE_BUSY retries
//   - Reconciler: passes by trigger and result, rows added, orphans skipped
//   - Watcher: notifications, coalesced events, current state
//   - Prober: ffprobe results, latency, processes in flight
//   - Streaming: range reads by outcome and bytes served
//   - Filesystem: stale-handle retries per volume
//
// InitializeMetrics pre-populates label combinations so dashboards see every
// series from the first scrape. Collector refreshes the library gauges from a
// StatsProvider on an interval.
package metrics
